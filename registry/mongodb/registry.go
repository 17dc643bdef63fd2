// Package mongodb implements the ApplicationRegistry on MongoDB. Client
// secrets are stored as bcrypt hashes.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"
	"golang.org/x/crypto/bcrypt"

	"go.pilab.hu/tokend/domain"
)

// ApplicationsCollection is the collection holding registered applications.
const ApplicationsCollection = "oauth_applications"

// Connect establishes an instrumented MongoDB connection and verifies it with
// a ping against the primary.
func Connect(ctx context.Context, uri, dbName string) (*mongo.Database, error) {
	clientOptions := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetMonitor(otelmongo.NewMonitor())

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	return client.Database(dbName), nil
}

// Registry implements domain.ApplicationRegistry using MongoDB.
type Registry struct {
	coll *mongo.Collection
}

// NewRegistry creates a new [Registry] on the given database.
func NewRegistry(db *mongo.Database) *Registry {
	return &Registry{coll: db.Collection(ApplicationsCollection)}
}

// CreateApplication registers a new application. The given plaintext secret
// is bcrypt-hashed before it is stored.
func (r *Registry) CreateApplication(ctx context.Context, app *domain.Application, plainSecret string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(plainSecret), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash client secret: %w", err)
	}

	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	app.ClientSecret = string(hash)
	app.CreatedAt = time.Now()

	_, err = r.coll.InsertOne(ctx, app)

	return err
}

// GetAppForClientID implements domain.ApplicationRegistry.
func (r *Registry) GetAppForClientID(ctx context.Context, clientID string) (*domain.Application, error) {
	var app domain.Application

	err := r.coll.FindOne(ctx, bson.M{"client_id": clientID}).Decode(&app)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrAppNotFound
		}

		return nil, fmt.Errorf("find application: %w", err)
	}

	return &app, nil
}

// GetAppForCredentials implements domain.ApplicationRegistry. A mismatched
// secret is indistinguishable from an unknown client.
func (r *Registry) GetAppForCredentials(ctx context.Context, clientID, clientSecret string) (*domain.Application, error) {
	app, err := r.GetAppForClientID(ctx, clientID)
	if err != nil {
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(app.ClientSecret), []byte(clientSecret)) != nil {
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

// CheckRedirectURI implements domain.ApplicationRegistry. The comparison is
// an exact match against the registered URIs.
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
