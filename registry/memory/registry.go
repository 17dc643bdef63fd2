// Package memory provides an in-process ApplicationRegistry for tests and
// local development. Secrets are stored and compared in the clear; the
// persistent registry lives in registry/mongodb.
package memory

import (
	"context"
	"crypto/subtle"
	"errors"
	"sync"

	"go.pilab.hu/tokend/domain"
)

// Registry implements domain.ApplicationRegistry over a map.
type Registry struct {
	mu   sync.RWMutex
	apps map[string]*domain.Application // keyed by client id
}

// NewRegistry creates an empty [Registry].
func NewRegistry() *Registry {
	return &Registry{apps: make(map[string]*domain.Application)}
}

// Register adds or replaces an application.
func (r *Registry) Register(app *domain.Application) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.apps[app.ClientID] = app
}

// GetAppForCredentials implements domain.ApplicationRegistry.
func (r *Registry) GetAppForCredentials(_ context.Context, clientID, clientSecret string) (*domain.Application, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	app, ok := r.apps[clientID]
	if !ok || subtle.ConstantTimeCompare([]byte(app.ClientSecret), []byte(clientSecret)) != 1 {
		return nil, domain.ErrAppNotFound
	}

	return app, nil
}

// GetAppForClientID implements domain.ApplicationRegistry.
func (r *Registry) GetAppForClientID(_ context.Context, clientID string) (*domain.Application, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	app, ok := r.apps[clientID]
	if !ok {
		return nil, domain.ErrAppNotFound
	}

	return app, nil
}

// GetAppIDForCredentials implements domain.ApplicationRegistry.
func (r *Registry) GetAppIDForCredentials(ctx context.Context, clientID, clientSecret string) (string, error) {
	app, err := r.GetAppForCredentials(ctx, clientID, clientSecret)
	if err != nil {
		return "", err
	}

	return app.ID, nil
}

// CheckRedirectURI implements domain.ApplicationRegistry.
func (r *Registry) CheckRedirectURI(ctx context.Context, clientID, redirectURI string) (bool, error) {
	app, err := r.GetAppForClientID(ctx, clientID)
	if err != nil {
		if errors.Is(err, domain.ErrAppNotFound) {
			return false, nil
		}

		return false, err
	}

	for _, uri := range app.RedirectURIs {
		if uri == redirectURI {
			return true, nil
		}
	}

	return false, nil
}
