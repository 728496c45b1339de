package services

import (
	"chat-sync/actors"
	"chat-sync/domain"
	"chat-sync/errors"
	"context"
	"fmt"
	"log/slog"
)

type IUserService interface {
	GetProfile(ctx context.Context, user domain.UserID) (domain.Profile, error)
	UpdateProfile(ctx context.Context, user domain.UserID, update domain.ProfileUpdate) (domain.Profile, error)
	SetProfilePicture(ctx context.Context, user domain.UserID, filename string, data []byte) (domain.Media, error)
	ClearProfilePicture(ctx context.Context, user domain.UserID) error
	GetOptions(ctx context.Context, user domain.UserID) (domain.Options, error)
	SetOptions(ctx context.Context, user domain.UserID, options domain.Options) error
	Contacts(ctx context.Context, user domain.UserID) ([]domain.UserID, error)
	AddContact(ctx context.Context, user, contact domain.UserID) error
	RemoveContact(ctx context.Context, user, contact domain.UserID) error
}

type UserService struct {
	log   *slog.Logger
	users *actors.UserActor
	media IMediaService
}

func NewUserService(log *slog.Logger, users *actors.UserActor, media IMediaService) IUserService {
	return &UserService{log: log, users: users, media: media}
}

func (s *UserService) GetProfile(ctx context.Context, user domain.UserID) (domain.Profile, error) {
	return s.users.Profile(ctx, user)
}

func (s *UserService) UpdateProfile(ctx context.Context, user domain.UserID, update domain.ProfileUpdate) (domain.Profile, error) {
	if update.DisplayName != nil && *update.DisplayName == "" {
		return domain.Profile{}, errors.ErrEmptyName
	}
	return s.users.UpdateProfile(ctx, user, update)
}

// SetProfilePicture stores the new picture, then drops the blob it replaced.
func (s *UserService) SetProfilePicture(ctx context.Context, user domain.UserID, filename string, data []byte) (domain.Media, error) {
	exists, err := s.users.Exists(ctx, user)
	if err != nil {
		return domain.Media{}, err
	}
	if !exists {
		return domain.Media{}, fmt.Errorf("user %s: %w", user, errors.ErrNotFound)
	}
	media, err := s.media.StoreProfilePicture(ctx, filename, data)
	if err != nil {
		return domain.Media{}, err
	}
	previous, err := s.users.SetAvatar(ctx, user, &media)
	if err != nil {
		s.dropBlob(ctx, media.StoreID)
		return domain.Media{}, err
	}
	if previous != nil {
		s.dropBlob(ctx, previous.StoreID)
	}
	return media, nil
}

func (s *UserService) ClearProfilePicture(ctx context.Context, user domain.UserID) error {
	previous, err := s.users.SetAvatar(ctx, user, nil)
	if err != nil {
		return err
	}
	if previous != nil {
		s.dropBlob(ctx, previous.StoreID)
	}
	return nil
}

func (s *UserService) GetOptions(ctx context.Context, user domain.UserID) (domain.Options, error) {
	return s.users.Options(ctx, user)
}

func (s *UserService) SetOptions(ctx context.Context, user domain.UserID, options domain.Options) error {
	return s.users.SetOptions(ctx, user, options)
}

func (s *UserService) Contacts(ctx context.Context, user domain.UserID) ([]domain.UserID, error) {
	return s.users.Contacts(ctx, user)
}

// AddContact only accepts registered users.
func (s *UserService) AddContact(ctx context.Context, user, contact domain.UserID) error {
	exists, err := s.users.Exists(ctx, contact)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("contact %s: %w", contact, errors.ErrNotFound)
	}
	return s.users.AddContact(ctx, user, contact)
}

func (s *UserService) RemoveContact(ctx context.Context, user, contact domain.UserID) error {
	return s.users.RemoveContact(ctx, user, contact)
}

func (s *UserService) dropBlob(ctx context.Context, id domain.StoreID) {
	if err := s.media.Delete(ctx, id); err != nil {
		s.log.Warn("Unable to delete media blob", "store_id", id, "error", err)
	}
}
