package oauth

import "time"

// DefaultTokenLifetime is the access token TTL applied when a request does
// not carry its own.
const DefaultTokenLifetime = 24 * time.Hour

// Every grant takes a fully enumerated request struct. Optional fields
// default explicitly here; there is no dynamic option merging.

// ClientCredentialsRequest carries the client_credentials grant inputs.
type ClientCredentialsRequest struct {
	ClientID     string
	ClientSecret string

	// Scope is optional; empty resolves to the application's default scope.
	Scope string

	// TokenLifetime is optional; zero applies DefaultTokenLifetime.
	TokenLifetime time.Duration
}

// PasswordRequest carries the password grant inputs. The resource owner's
// username/password must have been validated out of band before calling.
type PasswordRequest struct {
	ClientID      string
	ClientSecret  string
	Scope         string
	TokenLifetime time.Duration
}

// AuthorizeRequest carries the authorization_code generate-step inputs.
type AuthorizeRequest struct {
	ClientID    string
	RedirectURI string

	// Scope and State are optional and, when present, echoed on the redirect.
	Scope string
	State string
}

// ExchangeRequest carries the authorization_code exchange-step inputs. Any
// caller-supplied scope is ignored; the scope stored with the code wins.
type ExchangeRequest struct {
	ClientID      string
	ClientSecret  string
	Code          string
	RedirectURI   string
	TokenLifetime time.Duration
}

// ImplicitRequest carries the implicit grant inputs.
type ImplicitRequest struct {
	ClientID      string
	RedirectURI   string
	Scope         string
	State         string
	TokenLifetime time.Duration
}

// RefreshRequest carries the refresh_token grant inputs.
type RefreshRequest struct {
	RefreshToken  string
	TokenLifetime time.Duration
}

// InvalidateRequest names the credentials to delete. Tokens left empty are
// skipped.
type InvalidateRequest struct {
	ClientID     string
	ClientSecret string
	AccessToken  string
	RefreshToken string
}

// VerifyRequest carries an access token plus the request context it arrived
// with. Method and URL are accepted as opaque context for future
// authorization decisions; they are not interpreted today.
type VerifyRequest struct {
	AccessToken string
	Method      string
	URL         string
}

func lifetime(requested time.Duration) time.Duration {
	if requested <= 0 {
		return DefaultTokenLifetime
	}

	return requested
}
