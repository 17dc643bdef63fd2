// Package oauth orchestrates the OAuth2 grant protocols over the application
// registry and the credential store. Clients and redirect URIs are validated
// by the registry; this package owns minting, persisting, consuming and
// rotating the opaque credentials that flow through the grants.
package oauth

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"time"

	"go.pilab.hu/tokend/domain"
	oautherrors "go.pilab.hu/tokend/errors"
	"go.pilab.hu/tokend/kv"
	"go.pilab.hu/tokend/log"
	"go.pilab.hu/tokend/store"
	"go.pilab.hu/tokend/token"
)

// TokenService orchestrates the grant protocols. It holds no cross-request
// mutable state; everything lives in the credential store, so instances are
// safe for concurrent use and horizontally scalable without coordination.
type TokenService struct {
	registry domain.ApplicationRegistry
	creds    *store.CredentialStore
	gen      token.Generator
	logger   log.Logger
}

// NewTokenService creates a new [TokenService].
func NewTokenService(
	registry domain.ApplicationRegistry,
	creds *store.CredentialStore,
	gen token.Generator,
	logger log.Logger,
) *TokenService {
	return &TokenService{
		registry: registry,
		creds:    creds,
		gen:      gen,
		logger:   logger,
	}
}

// ClientCredentials implements the client_credentials grant. The response
// never carries a refresh token.
func (s *TokenService) ClientCredentials(ctx context.Context, req ClientCredentialsRequest) (*TokenResponse, error) {
	app, err := s.authenticate(ctx, req.ClientID, req.ClientSecret)
	if err != nil {
		return nil, err
	}

	scope, err := ResolveScope(req.Scope, app)
	if err != nil {
		return nil, err
	}

	return s.issueTokens(ctx, app.ClientID, scope, lifetime(req.TokenLifetime), false)
}

// Password implements the password grant. The resource owner's credentials
// were validated out of band; this grant behaves like client_credentials but
// always issues a refresh token.
func (s *TokenService) Password(ctx context.Context, req PasswordRequest) (*TokenResponse, error) {
	app, err := s.authenticate(ctx, req.ClientID, req.ClientSecret)
	if err != nil {
		return nil, err
	}

	scope, err := ResolveScope(req.Scope, app)
	if err != nil {
		return nil, err
	}

	return s.issueTokens(ctx, app.ClientID, scope, lifetime(req.TokenLifetime), true)
}

// Authorize implements the generate step of the authorization_code grant. It
// returns the redirect URI with the code (and optional state and scope)
// appended as query parameters.
func (s *TokenService) Authorize(ctx context.Context, req AuthorizeRequest) (string, error) {
	ok, err := s.registry.CheckRedirectURI(ctx, req.ClientID, req.RedirectURI)
	if err != nil {
		return "", s.registryFailure(ctx, err)
	}
	if !ok {
		return "", oautherrors.NewInvalidRequest("redirect_uri is not registered for this client")
	}

	app, err := s.registry.GetAppForClientID(ctx, req.ClientID)
	if err != nil {
		if errors.Is(err, domain.ErrAppNotFound) {
			return "", oautherrors.NewInvalidClient("unknown client")
		}

		return "", s.registryFailure(ctx, err)
	}

	scope, err := ResolveScope(req.Scope, app)
	if err != nil {
		return "", err
	}

	code, err := s.gen.Generate()
	if err != nil {
		return "", oautherrors.NewServerError("could not generate authorization code", err)
	}

	record := &domain.AuthCode{RedirectURI: req.RedirectURI, Scope: scope}
	if err := s.creds.PutAuthCode(ctx, req.ClientID, code, record); err != nil {
		return "", s.storageFailure(ctx, err)
	}

	s.logger.Info(ctx, "authorization code issued", map[string]interface{}{
		"client_id": req.ClientID,
	})

	// The redirect echoes only what the caller sent; the resolved scope
	// travels with the stored record.
	return buildCodeRedirect(req.RedirectURI, code, req.State, req.Scope)
}

// Exchange implements the exchange step of the authorization_code grant. The
// code is consumed atomically before anything else, so a losing concurrent
// exchange attempt fails even when this one later errors out. A refresh
// token is always issued; the scope stored with the code wins.
func (s *TokenService) Exchange(ctx context.Context, req ExchangeRequest) (*TokenResponse, error) {
	code, err := s.creds.ConsumeAuthCode(ctx, req.ClientID, req.Code)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, oautherrors.NewInvalidRequest("authorization code is missing, expired or already used")
		}

		return nil, s.storageFailure(ctx, err)
	}

	if code.RedirectURI != req.RedirectURI {
		// The code stays consumed; a mismatched redirect does not restore it.
		return nil, oautherrors.NewInvalidRequest("redirect_uri does not match the authorization request")
	}

	app, err := s.authenticate(ctx, req.ClientID, req.ClientSecret)
	if err != nil {
		return nil, err
	}

	return s.issueTokens(ctx, app.ClientID, code.Scope, lifetime(req.TokenLifetime), true)
}

// Implicit implements the implicit grant. The token and its metadata are
// returned on the redirect URI's fragment, and a refresh token is never
// issued.
func (s *TokenService) Implicit(ctx context.Context, req ImplicitRequest) (string, error) {
	ok, err := s.registry.CheckRedirectURI(ctx, req.ClientID, req.RedirectURI)
	if err != nil {
		return "", s.registryFailure(ctx, err)
	}
	if !ok {
		return "", oautherrors.NewInvalidRequest("redirect_uri is not registered for this client")
	}

	app, err := s.registry.GetAppForClientID(ctx, req.ClientID)
	if err != nil {
		if errors.Is(err, domain.ErrAppNotFound) {
			return "", oautherrors.NewInvalidClient("unknown client")
		}

		return "", s.registryFailure(ctx, err)
	}

	scope, err := ResolveScope(req.Scope, app)
	if err != nil {
		return "", err
	}

	resp, err := s.issueTokens(ctx, app.ClientID, scope, lifetime(req.TokenLifetime), false)
	if err != nil {
		return "", err
	}

	return buildImplicitRedirect(req.RedirectURI, resp, req.State)
}

// Refresh implements the refresh_token grant. The presented token is
// consumed atomically before the new pair is minted, so the old and new
// refresh tokens are never simultaneously valid.
func (s *TokenService) Refresh(ctx context.Context, req RefreshRequest) (*TokenResponse, error) {
	old, err := s.creds.ConsumeRefreshToken(ctx, req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, kv.ErrNotFound):
			return nil, oautherrors.NewInvalidRequest("refresh token is unknown or already used")
		case errors.Is(err, store.ErrWrongType):
			return nil, oautherrors.NewInvalidRequest("token is not a refresh token")
		}

		return nil, s.storageFailure(ctx, err)
	}

	return s.issueTokens(ctx, old.ClientID, old.Scope, lifetime(req.TokenLifetime), true)
}

// Invalidate deletes the supplied access and/or refresh tokens. The registry
// authentication strictly precedes any deletion: on failed authentication
// nothing is removed.
func (s *TokenService) Invalidate(ctx context.Context, req InvalidateRequest) error {
	if _, err := s.registry.GetAppIDForCredentials(ctx, req.ClientID, req.ClientSecret); err != nil {
		if errors.Is(err, domain.ErrAppNotFound) {
			return oautherrors.NewInvalidClient("invalid client credentials")
		}

		return s.registryFailure(ctx, err)
	}

	if req.AccessToken != "" {
		if err := s.creds.DeleteToken(ctx, req.AccessToken); err != nil {
			return s.storageFailure(ctx, err)
		}
	}
	if req.RefreshToken != "" {
		if err := s.creds.DeleteRefreshToken(ctx, req.RefreshToken); err != nil {
			return s.storageFailure(ctx, err)
		}
	}

	s.logger.Info(ctx, "tokens invalidated", map[string]interface{}{
		"client_id": req.ClientID,
	})

	return nil
}

// Verify resolves an access token to its owning application. It never
// mutates state.
func (s *TokenService) Verify(ctx context.Context, req VerifyRequest) (*domain.Application, error) {
	tok, err := s.creds.LookupToken(ctx, req.AccessToken)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, oautherrors.NewInvalidRequest("access token is unknown or expired")
		}

		return nil, s.storageFailure(ctx, err)
	}

	app, err := s.registry.GetAppForClientID(ctx, tok.ClientID)
	if err != nil {
		if errors.Is(err, domain.ErrAppNotFound) {
			return nil, oautherrors.NewInvalidClient("owning application no longer registered")
		}

		return nil, s.registryFailure(ctx, err)
	}

	return app, nil
}

// authenticate resolves client credentials through the registry and maps the
// outcome onto the error taxonomy.
func (s *TokenService) authenticate(ctx context.Context, clientID, clientSecret string) (*domain.Application, error) {
	app, err := s.registry.GetAppForCredentials(ctx, clientID, clientSecret)
	if err != nil {
		if errors.Is(err, domain.ErrAppNotFound) {
			return nil, oautherrors.NewInvalidClient("invalid client credentials")
		}

		return nil, s.registryFailure(ctx, err)
	}

	return app, nil
}

// issueTokens mints and persists an access token, optionally paired with a
// non-expiring refresh token. The access token is persisted before the
// refresh token is minted; an earlier failure leaves no partial refresh
// credential behind.
func (s *TokenService) issueTokens(ctx context.Context, clientID, scope string, ttl time.Duration, withRefresh bool) (*TokenResponse, error) {
	value, err := s.gen.Generate()
	if err != nil {
		return nil, oautherrors.NewServerError("could not generate access token", err)
	}

	expiresIn := int(ttl / time.Second)
	access := &domain.Token{
		AccessToken: value,
		TokenType:   domain.TokenTypeBearer,
		ClientID:    clientID,
		ExpiresIn:   expiresIn,
		Scope:       scope,
	}
	if err := s.creds.PutToken(ctx, access); err != nil {
		return nil, s.storageFailure(ctx, err)
	}

	resp := &TokenResponse{
		AccessToken: value,
		TokenType:   domain.TokenTypeBearer,
		ExpiresIn:   expiresIn,
		Scope:       scope,
	}

	if withRefresh {
		refreshValue, err := s.gen.Generate()
		if err != nil {
			return nil, oautherrors.NewServerError("could not generate refresh token", err)
		}

		refresh := &domain.Token{
			AccessToken: refreshValue,
			TokenType:   domain.TokenTypeRefresh,
			ClientID:    clientID,
			Scope:       scope,
		}
		if err := s.creds.PutToken(ctx, refresh); err != nil {
			return nil, s.storageFailure(ctx, err)
		}

		resp.RefreshToken = refreshValue
	}

	s.logger.Info(ctx, "tokens issued", map[string]interface{}{
		"client_id":    clientID,
		"expires_in":   expiresIn,
		"with_refresh": withRefresh,
	})

	return resp, nil
}

func (s *TokenService) registryFailure(ctx context.Context, err error) error {
	s.logger.Error(ctx, "application registry failure", err)

	return oautherrors.NewServerError("application registry unavailable", err)
}

func (s *TokenService) storageFailure(ctx context.Context, err error) error {
	s.logger.Error(ctx, "credential storage failure", err)

	return oautherrors.NewServerError("credential storage unavailable", err)
}

// buildCodeRedirect appends code, state and scope as query parameters.
func buildCodeRedirect(redirectURI, code, state, scope string) (string, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return "", oautherrors.NewInvalidRequest("redirect_uri is not a valid URI")
	}

	q := u.Query()
	q.Set("code", code)
	if state != "" {
		q.Set("state", state)
	}
	if scope != "" {
		q.Set("scope", scope)
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// buildImplicitRedirect carries the token response on the URI fragment, per
// the implicit-flow convention.
func buildImplicitRedirect(redirectURI string, resp *TokenResponse, state string) (string, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return "", oautherrors.NewInvalidRequest("redirect_uri is not a valid URI")
	}

	f := url.Values{}
	f.Set("access_token", resp.AccessToken)
	f.Set("token_type", resp.TokenType)
	f.Set("expires_in", strconv.Itoa(resp.ExpiresIn))
	if resp.Scope != "" {
		f.Set("scope", resp.Scope)
	}
	if state != "" {
		f.Set("state", state)
	}
	u.Fragment = f.Encode()

	return u.String(), nil
}
