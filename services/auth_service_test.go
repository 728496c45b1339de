package services

import (
	"chat-sync/auth"
	"chat-sync/domain"
	"chat-sync/errors"
	"chat-sync/mocks"
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestAuthService_Register(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newFixture(t)
	ctx := context.Background()
	verifier := mocks.NewMockPhoneVerifier(ctrl)
	tokens := auth.NewTokenManager("a-test-secret-that-is-long-enough", time.Hour)
	svc := NewAuthService(logs.GetLoggerFromLevel(slog.LevelDebug), f.users, verifier, tokens, 24*time.Hour)

	t.Run("should register successfully when the code is valid", func(t *testing.T) {
		req := require.New(t)
		verifier.EXPECT().Verify(gomock.Any(), domain.UserID("+33612345678"), "123456").Return(true, nil).Times(1)

		issued, err := svc.Register(ctx, auth.RegisterRequest{Phone: "+33612345678", Code: "123456", DisplayName: "Alice"})

		req.NoError(err)
		req.NotEmpty(issued.AccessToken)
		req.NotEmpty(issued.RefreshToken)
		user, err := tokens.Resolve(ctx, issued.AccessToken)
		req.NoError(err)
		req.Equal(domain.UserID("+33612345678"), user)
		profile, err := f.users.Profile(ctx, user)
		req.NoError(err)
		req.Equal("Alice", profile.DisplayName)
		stored, err := f.users.Tokens(ctx, user)
		req.NoError(err)
		req.NotEqual(issued.RefreshToken, stored.RefreshTokenHash)
	})

	t.Run("should fail when the code is wrong", func(t *testing.T) {
		verifier.EXPECT().Verify(gomock.Any(), gomock.Any(), "000000").Return(false, nil).Times(1)

		_, err := svc.Register(ctx, auth.RegisterRequest{Phone: "+33612345679", Code: "000000"})

		require.ErrorIs(t, err, errors.ErrInvalidCredentials)
		exists, err := f.users.Exists(ctx, "+33612345679")
		require.NoError(t, err)
		require.False(t, exists)
	})

	t.Run("should fail on a malformed phone before verifying", func(t *testing.T) {
		verifier.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		_, err := svc.Register(ctx, auth.RegisterRequest{Phone: "0612345678", Code: "123456"})

		require.ErrorIs(t, err, errors.ErrInvalidRequest)
	})
}

func TestAuthService_Refresh(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newFixture(t)
	ctx := context.Background()
	verifier := mocks.NewMockPhoneVerifier(ctrl)
	verifier.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any()).Return(true, nil).AnyTimes()
	svc := NewAuthService(logs.GetLoggerFromLevel(slog.LevelDebug), f.users, verifier,
		auth.NewTokenManager("a-test-secret-that-is-long-enough", time.Hour), 24*time.Hour)
	phone := "+33612345678"
	issued, err := svc.Register(ctx, auth.RegisterRequest{Phone: phone, Code: "123456"})
	require.NoError(t, err)

	t.Run("should rotate the refresh token", func(t *testing.T) {
		req := require.New(t)
		refreshed, err := svc.Refresh(ctx, auth.RefreshRequest{Phone: phone, RefreshToken: issued.RefreshToken})
		req.NoError(err)
		req.NotEqual(issued.RefreshToken, refreshed.RefreshToken)

		// The old one no longer works
		_, err = svc.Refresh(ctx, auth.RefreshRequest{Phone: phone, RefreshToken: issued.RefreshToken})
		req.ErrorIs(err, errors.ErrInvalidCredentials)
	})

	t.Run("should return invalid credentials when the user is unknown", func(t *testing.T) {
		_, err := svc.Refresh(ctx, auth.RefreshRequest{Phone: "+14155550100", RefreshToken: "anything"})
		require.ErrorIs(t, err, errors.ErrInvalidCredentials)
	})

	t.Run("should return invalid credentials when the refresh token expired", func(t *testing.T) {
		req := require.New(t)
		current, err := svc.Register(ctx, auth.RegisterRequest{Phone: phone, Code: "123456"})
		req.NoError(err)
		svc.(*AuthService).now = func() time.Time { return time.Now().Add(48 * time.Hour) }
		defer func() { svc.(*AuthService).now = time.Now }()

		_, err = svc.Refresh(ctx, auth.RefreshRequest{Phone: phone, RefreshToken: current.RefreshToken})
		req.ErrorIs(err, errors.ErrInvalidCredentials)
	})
}

func TestAuthService_Refresh_Accepts_A_Token_Once(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newFixture(t)
	ctx := context.Background()
	verifier := mocks.NewMockPhoneVerifier(ctrl)
	verifier.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any()).Return(true, nil).Times(1)
	svc := NewAuthService(logs.GetLoggerFromLevel(slog.LevelDebug), f.users, verifier,
		auth.NewTokenManager("a-test-secret-that-is-long-enough", time.Hour), 24*time.Hour)
	phone := "+33612345678"

	// Given one refresh token
	issued, err := svc.Register(ctx, auth.RegisterRequest{Phone: phone, Code: "123456"})
	req.NoError(err)

	// When several clients present it at the same time
	const attempts = 4
	var succeeded, refused atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := svc.Refresh(ctx, auth.RefreshRequest{Phone: phone, RefreshToken: issued.RefreshToken})
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, errors.ErrInvalidCredentials):
				refused.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	// Then exactly one of them gets a new pair
	req.Equal(int32(1), succeeded.Load())
	req.Equal(int32(attempts-1), refused.Load())
}
