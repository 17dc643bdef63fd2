// Package store persists and retrieves credential records (access tokens,
// refresh tokens, authorization codes) on top of a kv.Store.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.pilab.hu/tokend/domain"
	"go.pilab.hu/tokend/kv"
	"go.pilab.hu/tokend/log"
)

const (
	// namespace prefixes every key; the separator joins the identifying
	// tuple behind it. Neither is configurable.
	namespace = "oauth2"
	separator = ":"

	// AuthCodeTTL is the fixed lifetime of an authorization code.
	AuthCodeTTL = 5 * time.Minute
)

// ErrWrongType is returned by ConsumeRefreshToken when the stored record is
// not a refresh token.
var ErrWrongType = errors.New("store: token is not a refresh token")

// Key composes a storage key from the namespace and the identifying tuple.
func Key(parts ...string) string {
	return namespace + separator + strings.Join(parts, separator)
}

// CredentialStore owns every credential record; no other component holds one
// beyond the scope of a single request.
type CredentialStore struct {
	kv     kv.Store
	logger log.Logger
}

// NewCredentialStore creates a new [CredentialStore] on top of a kv.Store.
func NewCredentialStore(kvs kv.Store, logger log.Logger) *CredentialStore {
	return &CredentialStore{kv: kvs, logger: logger}
}

// PutToken persists an access or refresh token record. Records with
// ExpiresIn > 0 expire after that many seconds; ExpiresIn == 0 stores the
// record without expiry (refresh tokens).
func (s *CredentialStore) PutToken(ctx context.Context, tok *domain.Token) error {
	raw, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encode token record: %w", err)
	}

	ttl := time.Duration(tok.ExpiresIn) * time.Second
	if err := s.kv.Set(ctx, Key(tok.AccessToken), string(raw), ttl); err != nil {
		return err
	}

	s.logger.Debug(ctx, "token record stored", map[string]interface{}{
		"client_id":  tok.ClientID,
		"token_type": tok.TokenType,
		"expires_in": tok.ExpiresIn,
	})

	return nil
}

// PutAuthCode persists an authorization code record under the (clientID,
// code) tuple with the fixed short TTL.
func (s *CredentialStore) PutAuthCode(ctx context.Context, clientID, code string, ac *domain.AuthCode) error {
	raw, err := json.Marshal(ac)
	if err != nil {
		return fmt.Errorf("encode auth code record: %w", err)
	}

	if err := s.kv.Set(ctx, Key(clientID, code), string(raw), AuthCodeTTL); err != nil {
		return err
	}

	s.logger.Debug(ctx, "authorization code stored", map[string]interface{}{
		"client_id": clientID,
	})

	return nil
}

// ConsumeAuthCode atomically reads and deletes an authorization code. The
// read-and-delete is a single store operation, so concurrent exchange
// attempts for the same code cannot both succeed. Returns kv.ErrNotFound if
// the code is missing, expired or already consumed.
func (s *CredentialStore) ConsumeAuthCode(ctx context.Context, clientID, code string) (*domain.AuthCode, error) {
	raw, err := s.kv.GetDel(ctx, Key(clientID, code))
	if err != nil {
		return nil, err
	}

	var ac domain.AuthCode
	if err := json.Unmarshal([]byte(raw), &ac); err != nil {
		return nil, fmt.Errorf("decode auth code record: %w", err)
	}

	return &ac, nil
}

// ConsumeRefreshToken atomically reads and deletes a refresh token. The old
// token is gone before the caller can mint a replacement, so there is no
// window in which both rotations are valid. A record whose type is not
// "refresh" yields ErrWrongType; the record is consumed either way, since a
// credential presented in the wrong slot is treated as burned.
func (s *CredentialStore) ConsumeRefreshToken(ctx context.Context, tokenValue string) (*domain.Token, error) {
	raw, err := s.kv.GetDel(ctx, Key(tokenValue))
	if err != nil {
		return nil, err
	}

	var tok domain.Token
	if err := json.Unmarshal([]byte(raw), &tok); err != nil {
		return nil, fmt.Errorf("decode token record: %w", err)
	}

	if !tok.IsRefresh() {
		s.logger.Warn(ctx, "refresh consume hit a non-refresh record", map[string]interface{}{
			"client_id":  tok.ClientID,
			"token_type": tok.TokenType,
		})

		return nil, ErrWrongType
	}

	return &tok, nil
}

// DeleteToken removes an access token. Idempotent.
func (s *CredentialStore) DeleteToken(ctx context.Context, tokenValue string) error {
	return s.kv.Del(ctx, Key(tokenValue))
}

// DeleteRefreshToken removes a refresh token. Idempotent.
func (s *CredentialStore) DeleteRefreshToken(ctx context.Context, tokenValue string) error {
	return s.kv.Del(ctx, Key(tokenValue))
}

// LookupToken reads a token record without mutating it. Returns
// kv.ErrNotFound if the token is unknown or expired.
func (s *CredentialStore) LookupToken(ctx context.Context, tokenValue string) (*domain.Token, error) {
	raw, err := s.kv.Get(ctx, Key(tokenValue))
	if err != nil {
		return nil, err
	}

	var tok domain.Token
	if err := json.Unmarshal([]byte(raw), &tok); err != nil {
		return nil, fmt.Errorf("decode token record: %w", err)
	}

	return &tok, nil
}
