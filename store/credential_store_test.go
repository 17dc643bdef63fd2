package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.pilab.hu/tokend/domain"
	"go.pilab.hu/tokend/kv"
	"go.pilab.hu/tokend/kv/memory"
	"go.pilab.hu/tokend/log"
)

func newTestStore(t *testing.T) *CredentialStore {
	t.Helper()

	mem := memory.NewStore()
	t.Cleanup(mem.Stop)

	return NewCredentialStore(mem, log.NewNop())
}

func TestKey(t *testing.T) {
	assert.Equal(t, "oauth2:abc", Key("abc"))
	assert.Equal(t, "oauth2:client-1:xyz", Key("client-1", "xyz"))
}

func TestCredentialStore_PutLookupToken(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tok := &domain.Token{
		AccessToken: "tok-1",
		TokenType:   domain.TokenTypeBearer,
		ClientID:    "client-1",
		ExpiresIn:   3600,
		Scope:       "read write",
	}
	require.NoError(t, s.PutToken(ctx, tok))

	got, err := s.LookupToken(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, tok, got)
}

func TestCredentialStore_LookupUnknownToken(t *testing.T) {
	s := newTestStore(t)

	_, err := s.LookupToken(context.Background(), "missing")
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func TestCredentialStore_TokenTTLExpiry(t *testing.T) {
	mem := memory.NewStore()
	t.Cleanup(mem.Stop)
	s := NewCredentialStore(mem, log.NewNop())
	ctx := context.Background()

	// The record TTL is whole seconds, so drive expiry through the kv layer
	// with a short-lived entry written the same way PutToken writes it.
	require.NoError(t, mem.Set(ctx, Key("tok-short"),
		`{"access_token":"tok-short","token_type":"bearer","client_id":"client-1","expires_in":1}`,
		20*time.Millisecond))

	time.Sleep(50 * time.Millisecond)

	_, err := s.LookupToken(ctx, "tok-short")
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func TestCredentialStore_ConsumeAuthCodeOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ac := &domain.AuthCode{RedirectURI: "https://app.example/cb", Scope: "read"}
	require.NoError(t, s.PutAuthCode(ctx, "client-1", "code-1", ac))

	got, err := s.ConsumeAuthCode(ctx, "client-1", "code-1")
	require.NoError(t, err)
	assert.Equal(t, ac, got)

	_, err = s.ConsumeAuthCode(ctx, "client-1", "code-1")
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func TestCredentialStore_ConsumeAuthCodeConcurrent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutAuthCode(ctx, "client-1", "code-race",
		&domain.AuthCode{RedirectURI: "https://app.example/cb"}))

	const workers = 16

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		hits int
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.ConsumeAuthCode(ctx, "client-1", "code-race"); err == nil {
				mu.Lock()
				hits++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, hits, "at most one exchange may succeed")
}

func TestCredentialStore_ConsumeRefreshToken(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	refresh := &domain.Token{
		AccessToken: "refresh-1",
		TokenType:   domain.TokenTypeRefresh,
		ClientID:    "client-1",
		Scope:       "read",
	}
	require.NoError(t, s.PutToken(ctx, refresh))

	got, err := s.ConsumeRefreshToken(ctx, "refresh-1")
	require.NoError(t, err)
	assert.Equal(t, "client-1", got.ClientID)
	assert.Equal(t, "read", got.Scope)

	// Consumed: a second rotation attempt must fail.
	_, err = s.ConsumeRefreshToken(ctx, "refresh-1")
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func TestCredentialStore_ConsumeRefreshTokenWrongType(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	access := &domain.Token{
		AccessToken: "tok-access",
		TokenType:   domain.TokenTypeBearer,
		ClientID:    "client-1",
		ExpiresIn:   3600,
	}
	require.NoError(t, s.PutToken(ctx, access))

	_, err := s.ConsumeRefreshToken(ctx, "tok-access")
	assert.ErrorIs(t, err, ErrWrongType)
}

func TestCredentialStore_DeleteIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutToken(ctx, &domain.Token{
		AccessToken: "tok-del",
		TokenType:   domain.TokenTypeBearer,
		ClientID:    "client-1",
		ExpiresIn:   3600,
	}))

	require.NoError(t, s.DeleteToken(ctx, "tok-del"))
	require.NoError(t, s.DeleteToken(ctx, "tok-del"))

	_, err := s.LookupToken(ctx, "tok-del")
	assert.ErrorIs(t, err, kv.ErrNotFound)
}
