package domain

import (
	"context"
	"errors"
	"time"
)

// ErrAppNotFound is returned by registries when no application matches the
// given client id or credentials.
var ErrAppNotFound = errors.New("application not found")

// Application represents a registered client application. The registry owns
// and mutates these records; the token service only reads them.
//
//nolint:tagliatelle
type Application struct {
	ID           string    `bson:"_id,omitempty"  json:"id,omitempty"`
	ClientID     string    `bson:"client_id"      json:"client_id"`
	ClientSecret string    `bson:"client_secret"  json:"-"` // bcrypt hash in persistent registries
	Name         string    `bson:"name,omitempty" json:"name,omitempty"`
	RedirectURIs []string  `bson:"redirect_uris"  json:"redirect_uris"`
	DefaultScope string    `bson:"default_scope"  json:"default_scope,omitempty"`
	ValidScopes  []string  `bson:"valid_scopes"   json:"valid_scopes,omitempty"`
	CreatedAt    time.Time `bson:"created_at"     json:"created_at,omitempty"`
}

// ApplicationRegistry resolves client credentials to applications and
// validates redirect URIs. It is an external collaborator of the token
// service; implementations must be safe for concurrent use.
type ApplicationRegistry interface {
	// GetAppForCredentials authenticates the client id/secret pair.
	// Returns ErrAppNotFound on unknown id or mismatched secret.
	GetAppForCredentials(ctx context.Context, clientID, clientSecret string) (*Application, error)

	// GetAppForClientID resolves an application by client id alone.
	GetAppForClientID(ctx context.Context, clientID string) (*Application, error)

	// GetAppIDForCredentials authenticates and returns only the application id.
	GetAppIDForCredentials(ctx context.Context, clientID, clientSecret string) (string, error)

	// CheckRedirectURI reports whether redirectURI is registered for the client.
	CheckRedirectURI(ctx context.Context, clientID, redirectURI string) (bool, error)
}
