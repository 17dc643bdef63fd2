// Package echoapi is a thin HTTP binding over the token service. It maps
// form parameters onto the grant request structs and OAuth2 errors onto
// status codes; all protocol logic lives in the oauth package.
package echoapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	oautherrors "go.pilab.hu/tokend/errors"
	"go.pilab.hu/tokend/log"
	"go.pilab.hu/tokend/oauth"
)

// API holds the HTTP handlers and their dependencies.
type API struct {
	svc             *oauth.TokenService
	logger          log.Logger
	defaultLifetime time.Duration
}

// NewAPI initializes the OAuth2 HTTP API. A non-positive defaultLifetime
// falls back to the service default.
func NewAPI(svc *oauth.TokenService, logger log.Logger, defaultLifetime time.Duration) *API {
	return &API{
		svc:             svc,
		logger:          logger,
		defaultLifetime: defaultLifetime,
	}
}

// RegisterRoutes registers the OAuth2 routes.
func (a *API) RegisterRoutes(e *echo.Echo) {
	e.POST("/oauth2/token", a.TokenHandler)
	e.GET("/oauth2/authorize", a.AuthorizeHandler)
	e.POST("/oauth2/revoke", a.RevokeHandler)
	e.GET("/oauth2/verify", a.VerifyHandler)
}

// TokenHandler dispatches on grant_type and returns a token response.
func (a *API) TokenHandler(c echo.Context) error {
	ctx := c.Request().Context()

	var (
		resp *oauth.TokenResponse
		err  error
	)

	switch grantType := c.FormValue("grant_type"); grantType {
	case "client_credentials":
		resp, err = a.svc.ClientCredentials(ctx, oauth.ClientCredentialsRequest{
			ClientID:      c.FormValue("client_id"),
			ClientSecret:  c.FormValue("client_secret"),
			Scope:         c.FormValue("scope"),
			TokenLifetime: a.defaultLifetime,
		})
	case "password":
		resp, err = a.svc.Password(ctx, oauth.PasswordRequest{
			ClientID:      c.FormValue("client_id"),
			ClientSecret:  c.FormValue("client_secret"),
			Scope:         c.FormValue("scope"),
			TokenLifetime: a.defaultLifetime,
		})
	case "authorization_code":
		resp, err = a.svc.Exchange(ctx, oauth.ExchangeRequest{
			ClientID:      c.FormValue("client_id"),
			ClientSecret:  c.FormValue("client_secret"),
			Code:          c.FormValue("code"),
			RedirectURI:   c.FormValue("redirect_uri"),
			TokenLifetime: a.defaultLifetime,
		})
	case "refresh_token":
		resp, err = a.svc.Refresh(ctx, oauth.RefreshRequest{
			RefreshToken:  c.FormValue("refresh_token"),
			TokenLifetime: a.defaultLifetime,
		})
	default:
		return a.writeError(c, oautherrors.NewInvalidRequest("unsupported grant_type"))
	}

	if err != nil {
		return a.writeError(c, err)
	}

	return c.JSON(http.StatusOK, resp)
}

// AuthorizeHandler handles the redirect-based flows: response_type=code for
// the authorization-code grant and response_type=token for implicit.
func (a *API) AuthorizeHandler(c echo.Context) error {
	ctx := c.Request().Context()

	var (
		redirect string
		err      error
	)

	switch responseType := c.QueryParam("response_type"); responseType {
	case "code":
		redirect, err = a.svc.Authorize(ctx, oauth.AuthorizeRequest{
			ClientID:    c.QueryParam("client_id"),
			RedirectURI: c.QueryParam("redirect_uri"),
			Scope:       c.QueryParam("scope"),
			State:       c.QueryParam("state"),
		})
	case "token":
		redirect, err = a.svc.Implicit(ctx, oauth.ImplicitRequest{
			ClientID:      c.QueryParam("client_id"),
			RedirectURI:   c.QueryParam("redirect_uri"),
			Scope:         c.QueryParam("scope"),
			State:         c.QueryParam("state"),
			TokenLifetime: a.defaultLifetime,
		})
	default:
		return a.writeError(c, oautherrors.NewInvalidRequest("unsupported response_type"))
	}

	if err != nil {
		return a.writeError(c, err)
	}

	return c.Redirect(http.StatusFound, redirect)
}

// RevokeHandler deletes the supplied tokens after client authentication.
func (a *API) RevokeHandler(c echo.Context) error {
	err := a.svc.Invalidate(c.Request().Context(), oauth.InvalidateRequest{
		ClientID:     c.FormValue("client_id"),
		ClientSecret: c.FormValue("client_secret"),
		AccessToken:  c.FormValue("access_token"),
		RefreshToken: c.FormValue("refresh_token"),
	})
	if err != nil {
		return a.writeError(c, err)
	}

	return c.NoContent(http.StatusOK)
}

// VerifyHandler resolves a bearer token to its owning application.
func (a *API) VerifyHandler(c echo.Context) error {
	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	tokenValue, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok || tokenValue == "" {
		return a.writeError(c, oautherrors.NewInvalidRequest("missing bearer token"))
	}

	app, err := a.svc.Verify(c.Request().Context(), oauth.VerifyRequest{
		AccessToken: tokenValue,
		Method:      c.Request().Method,
		URL:         c.Request().URL.String(),
	})
	if err != nil {
		return a.writeError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]string{
		"app_id":    app.ID,
		"client_id": app.ClientID,
		"name":      app.Name,
	})
}

// writeError maps the error taxonomy onto HTTP status codes.
func (a *API) writeError(c echo.Context, err error) error {
	var oe *oautherrors.OAuth2Error
	if !errors.As(err, &oe) {
		a.logger.Error(c.Request().Context(), "unclassified handler error", err)
		oe = oautherrors.NewServerError("internal error", err)
	}

	status := http.StatusBadRequest
	switch oe.Code {
	case oautherrors.InvalidClient:
		status = http.StatusUnauthorized
	case oautherrors.ServerError:
		status = http.StatusServiceUnavailable
	}

	return c.JSON(status, oe)
}
