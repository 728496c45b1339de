package services

import (
	"chat-sync/actors"
	"chat-sync/auth"
	"chat-sync/contract"
	"chat-sync/domain"
	"chat-sync/errors"
	"context"
	"fmt"
	"log/slog"
	"time"
)

type IAuthService interface {
	Register(ctx context.Context, req auth.RegisterRequest) (Tokens, error)
	Refresh(ctx context.Context, req auth.RefreshRequest) (Tokens, error)
}

// Tokens is what a client receives after registering or refreshing.
type Tokens struct {
	UserID              domain.UserID `json:"user_id"`
	AccessToken         string        `json:"access_token"`
	AccessTokenExpires  time.Time     `json:"access_token_expires"`
	RefreshToken        string        `json:"refresh_token"`
	RefreshTokenExpires time.Time     `json:"refresh_token_expires"`
}

type AuthService struct {
	log             *slog.Logger
	users           *actors.UserActor
	verifier        contract.PhoneVerifier
	tokens          *auth.TokenManager
	refreshDuration time.Duration
	now             func() time.Time
}

func NewAuthService(log *slog.Logger, users *actors.UserActor, verifier contract.PhoneVerifier,
	tokens *auth.TokenManager, refreshDuration time.Duration) IAuthService {
	return &AuthService{
		log:             log,
		users:           users,
		verifier:        verifier,
		tokens:          tokens,
		refreshDuration: refreshDuration,
		now:             time.Now,
	}
}

// Register verifies the phone number, creates the user on first success and
// issues a fresh token pair.
func (s *AuthService) Register(ctx context.Context, req auth.RegisterRequest) (Tokens, error) {
	// 1. Validate the request before any expensive operation
	if err := auth.ValidateRequest(req); err != nil {
		return Tokens{}, err
	}
	phone := domain.UserID(req.Phone)

	// 2. Check the verification code
	ok, err := s.verifier.Verify(ctx, phone, req.Code)
	if err != nil {
		return Tokens{}, fmt.Errorf("verify %s: %w", phone, err)
	}
	if !ok {
		return Tokens{}, errors.ErrInvalidCredentials
	}

	// 3. Create the user, idempotent for returning users
	displayName := req.DisplayName
	if displayName == "" {
		displayName = req.Phone
	}
	if _, _, err := s.users.Register(ctx, phone, displayName); err != nil {
		return Tokens{}, err
	}

	// 4. Issue the tokens
	return s.issue(ctx, phone)
}

// Refresh exchanges a valid refresh token for a new pair; the old refresh
// token stops working. The compare and the rotation happen in one mutation,
// so a refresh token is accepted at most once.
func (s *AuthService) Refresh(ctx context.Context, req auth.RefreshRequest) (Tokens, error) {
	if err := auth.ValidateRequest(req); err != nil {
		return Tokens{}, err
	}
	phone := domain.UserID(req.Phone)

	issued, next, err := s.mint(phone)
	if err != nil {
		return Tokens{}, err
	}
	err = s.users.RotateTokens(ctx, phone, func(current domain.Tokens) error {
		if current.RefreshTokenHash == "" || s.now().After(current.RefreshTokenExpires) {
			return errors.ErrInvalidCredentials
		}
		match, err := auth.CompareSecret(req.RefreshToken, current.RefreshTokenHash)
		if err != nil || !match {
			return errors.ErrInvalidCredentials
		}
		return nil
	}, next)
	if err != nil {
		// Generic error to prevent user enumeration
		if !errors.Is(err, errors.ErrInvalidCredentials) {
			s.log.Debug("Refresh refused", "user_id", phone, "error", err)
		}
		return Tokens{}, errors.ErrInvalidCredentials
	}
	s.log.Debug("Tokens refreshed", "user_id", phone)
	return issued, nil
}

func (s *AuthService) issue(ctx context.Context, phone domain.UserID) (Tokens, error) {
	issued, next, err := s.mint(phone)
	if err != nil {
		return Tokens{}, err
	}
	if err := s.users.SetTokens(ctx, phone, next); err != nil {
		return Tokens{}, err
	}
	s.log.Debug("Tokens issued", "user_id", phone)
	return issued, nil
}

// mint creates a token pair and the record stored for it.
func (s *AuthService) mint(phone domain.UserID) (Tokens, domain.Tokens, error) {
	access, accessExpires, err := s.tokens.Generate(phone)
	if err != nil {
		return Tokens{}, domain.Tokens{}, err
	}
	refresh, err := auth.GenerateRefreshToken()
	if err != nil {
		return Tokens{}, domain.Tokens{}, err
	}
	hash, err := auth.HashSecret(refresh)
	if err != nil {
		return Tokens{}, domain.Tokens{}, fmt.Errorf("%w: %w", errors.ErrTokenGeneration, err)
	}
	refreshExpires := s.now().Add(s.refreshDuration)

	issued := Tokens{
		UserID:              phone,
		AccessToken:         access,
		AccessTokenExpires:  accessExpires,
		RefreshToken:        refresh,
		RefreshTokenExpires: refreshExpires,
	}
	return issued, domain.Tokens{RefreshTokenHash: hash, RefreshTokenExpires: refreshExpires}, nil
}
