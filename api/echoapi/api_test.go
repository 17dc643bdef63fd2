package echoapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.pilab.hu/tokend/domain"
	"go.pilab.hu/tokend/kv/memory"
	"go.pilab.hu/tokend/log"
	"go.pilab.hu/tokend/oauth"
	registrymem "go.pilab.hu/tokend/registry/memory"
	"go.pilab.hu/tokend/store"
	"go.pilab.hu/tokend/token"
)

func newTestEcho(t *testing.T) *echo.Echo {
	t.Helper()

	mem := memory.NewStore()
	t.Cleanup(mem.Stop)

	reg := registrymem.NewRegistry()
	reg.Register(&domain.Application{
		ID:           "app-1",
		ClientID:     "client-1",
		ClientSecret: "s3cret",
		Name:         "Example App",
		RedirectURIs: []string{"https://app.example/cb"},
		DefaultScope: "read",
		ValidScopes:  []string{"read", "write"},
	})

	creds := store.NewCredentialStore(mem, log.NewNop())
	svc := oauth.NewTokenService(reg, creds, token.NewSecureGenerator(), log.NewNop())

	e := echo.New()
	NewAPI(svc, log.NewNop(), 0).RegisterRoutes(e)

	return e
}

func postForm(e *echo.Echo, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	return rec
}

func TestTokenHandler_ClientCredentials(t *testing.T) {
	e := newTestEcho(t)

	rec := postForm(e, "/oauth2/token", url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {"client-1"},
		"client_secret": {"s3cret"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp oauth.TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.AccessToken, 43)
	assert.Equal(t, "bearer", resp.TokenType)
	assert.Equal(t, 86400, resp.ExpiresIn)
	assert.Empty(t, resp.RefreshToken)
}

func TestTokenHandler_InvalidClientIs401(t *testing.T) {
	e := newTestEcho(t)

	rec := postForm(e, "/oauth2/token", url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {"client-1"},
		"client_secret": {"wrong"},
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_client")
}

func TestTokenHandler_UnsupportedGrantType(t *testing.T) {
	e := newTestEcho(t)

	rec := postForm(e, "/oauth2/token", url.Values{"grant_type": {"device_code"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_request")
}

func TestAuthorizeHandler_CodeFlowRedirects(t *testing.T) {
	e := newTestEcho(t)

	q := url.Values{
		"response_type": {"code"},
		"client_id":     {"client-1"},
		"redirect_uri":  {"https://app.example/cb"},
		"state":         {"st"},
	}
	req := httptest.NewRequest(http.MethodGet, "/oauth2/authorize?"+q.Encode(), nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)

	loc, err := url.Parse(rec.Header().Get(echo.HeaderLocation))
	require.NoError(t, err)
	assert.Equal(t, "app.example", loc.Host)
	assert.Len(t, loc.Query().Get("code"), 43)
	assert.Equal(t, "st", loc.Query().Get("state"))
}

func TestFullCodeFlowOverHTTP(t *testing.T) {
	e := newTestEcho(t)

	q := url.Values{
		"response_type": {"code"},
		"client_id":     {"client-1"},
		"redirect_uri":  {"https://app.example/cb"},
		"scope":         {"write"},
	}
	req := httptest.NewRequest(http.MethodGet, "/oauth2/authorize?"+q.Encode(), nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusFound, rec.Code)

	loc, err := url.Parse(rec.Header().Get(echo.HeaderLocation))
	require.NoError(t, err)
	code := loc.Query().Get("code")

	rec = postForm(e, "/oauth2/token", url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {"client-1"},
		"client_secret": {"s3cret"},
		"code":          {code},
		"redirect_uri":  {"https://app.example/cb"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp oauth.TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, "write", resp.Scope)

	// Verify resolves the fresh token to its owning application.
	vreq := httptest.NewRequest(http.MethodGet, "/oauth2/verify", nil)
	vreq.Header.Set(echo.HeaderAuthorization, "Bearer "+resp.AccessToken)
	vrec := httptest.NewRecorder()
	e.ServeHTTP(vrec, vreq)
	require.Equal(t, http.StatusOK, vrec.Code)
	assert.Contains(t, vrec.Body.String(), `"client_id":"client-1"`)

	// Revoke and verify again.
	rec = postForm(e, "/oauth2/revoke", url.Values{
		"client_id":     {"client-1"},
		"client_secret": {"s3cret"},
		"access_token":  {resp.AccessToken},
		"refresh_token": {resp.RefreshToken},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	vrec = httptest.NewRecorder()
	e.ServeHTTP(vrec, vreq)
	assert.Equal(t, http.StatusBadRequest, vrec.Code)
}

func TestVerifyHandler_MissingBearer(t *testing.T) {
	e := newTestEcho(t)

	req := httptest.NewRequest(http.MethodGet, "/oauth2/verify", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
