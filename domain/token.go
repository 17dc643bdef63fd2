package domain

// Token type identifiers as they appear in persisted records and responses.
const (
	TokenTypeBearer  = "bearer"
	TokenTypeRefresh = "refresh"
)

// Token is the persisted credential record for both access and refresh
// tokens. Records are immutable once issued; expiry is enforced by the
// store's TTL, never re-checked here.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ClientID    string `json:"client_id"`
	ExpiresIn   int    `json:"expires_in,omitempty"` // seconds; 0 means non-expiring
	Scope       string `json:"scope,omitempty"`
}

// IsRefresh reports whether the record is a refresh token.
func (t *Token) IsRefresh() bool {
	return t.TokenType == TokenTypeRefresh
}
