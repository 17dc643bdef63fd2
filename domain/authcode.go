package domain

// AuthCode is the record stored for an OAuth 2.0 authorization code. The code
// value itself is part of the storage key, not the record. The record is
// destroyed the instant the code is exchanged, or on TTL expiry.
type AuthCode struct {
	RedirectURI string `json:"redirect_uri"`
	Scope       string `json:"scope,omitempty"`
}
