package auth

import (
	"chat-sync/domain"
	"chat-sync/errors"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHashAndCompare(t *testing.T) {
	req := require.New(t)
	secret, err := GenerateRefreshToken()
	req.NoError(err)

	hash, err := HashSecret(secret)
	req.NoError(err)
	req.True(strings.HasPrefix(hash, "$argon2id$"))

	match, err := CompareSecret(secret, hash)
	req.NoError(err)
	req.True(match)

	// Wrong secret
	match, err = CompareSecret("not-the-token", hash)
	req.NoError(err)
	req.False(match)

	// Garbage hash
	_, err = CompareSecret(secret, "$bcrypt$nope")
	req.ErrorIs(err, errors.ErrInvalidCredentials)
}

func TestTokenManager(t *testing.T) {
	manager := NewTokenManager("a-test-secret-that-is-long-enough", time.Hour)
	ctx := context.Background()

	t.Run("should resolve the phone of a valid token", func(t *testing.T) {
		req := require.New(t)
		token, expiresAt, err := manager.Generate("+33600000001")
		req.NoError(err)
		req.WithinDuration(time.Now().Add(time.Hour), expiresAt, time.Minute)

		user, err := manager.Resolve(ctx, token)
		req.NoError(err)
		req.Equal(domain.UserID("+33600000001"), user)
	})

	t.Run("should refuse a token signed with another secret", func(t *testing.T) {
		other := NewTokenManager("another-secret-entirely", time.Hour)
		token, _, err := other.Generate("+33600000001")
		require.NoError(t, err)

		_, err = manager.Resolve(ctx, token)
		require.ErrorIs(t, err, errors.ErrInvalidToken)
	})

	t.Run("should refuse an expired token", func(t *testing.T) {
		expired := NewTokenManager("a-test-secret-that-is-long-enough", time.Hour)
		expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
		token, _, err := expired.Generate("+33600000001")
		require.NoError(t, err)

		_, err = manager.Resolve(ctx, token)
		require.ErrorIs(t, err, errors.ErrInvalidToken)
	})

	t.Run("should refuse garbage", func(t *testing.T) {
		_, err := manager.Resolve(ctx, "not.a.jwt")
		require.ErrorIs(t, err, errors.ErrInvalidToken)
	})
}

func TestRegistrationValidation(t *testing.T) {
	tests := []struct {
		name    string
		req     RegisterRequest
		wantErr bool
	}{
		{"Valid request", RegisterRequest{Phone: "+33612345678", Code: "123456"}, false},
		{"Valid request with name", RegisterRequest{Phone: "+14155550100", Code: "123456", DisplayName: "Bob"}, false},
		{"Phone without plus", RegisterRequest{Phone: "0612345678", Code: "123456"}, true},
		{"Missing code", RegisterRequest{Phone: "+33612345678"}, true},
		{"Code too short", RegisterRequest{Phone: "+33612345678", Code: "12"}, true},
		{"Name too long", RegisterRequest{Phone: "+33612345678", Code: "123456", DisplayName: strings.Repeat("a", 65)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRequest(tt.req)
			if tt.wantErr {
				require.ErrorIs(t, err, errors.ErrInvalidRequest)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestParsePhone(t *testing.T) {
	req := require.New(t)
	user, err := ParsePhone("+33612345678")
	req.NoError(err)
	req.Equal(domain.UserID("+33612345678"), user)

	_, err = ParsePhone("hello")
	req.ErrorIs(err, errors.ErrInvalidRequest)
}

func TestStaticVerifier(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	ok, err := NewStaticVerifier("424242").Verify(ctx, "+33612345678", "424242")
	req.NoError(err)
	req.True(ok)

	ok, err = NewStaticVerifier("424242").Verify(ctx, "+33612345678", "000000")
	req.NoError(err)
	req.False(ok)

	ok, err = NewStaticVerifier("").Verify(ctx, "+33612345678", "")
	req.NoError(err)
	req.False(ok)
}

// BenchmarkHashSecret measures the CPU/RAM cost of a refresh
func BenchmarkHashSecret(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = HashSecret("A-very-long-and-random-refresh-token-for-bench")
	}
}
