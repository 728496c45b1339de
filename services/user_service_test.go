package services

import (
	"bytes"
	"chat-sync/domain"
	"chat-sync/errors"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMediaService_Store(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("should classify by content and keep the blob", func(t *testing.T) {
		req := require.New(t)
		media, err := f.media.Store(ctx, "photo.bin", png)
		req.NoError(err)
		req.Equal("image/png", media.ContentType)
		req.Equal(domain.MediaImage, media.Kind())
		req.Equal(int64(len(png)), media.Size)

		data, contentType, err := f.media.Get(ctx, media.StoreID)
		req.NoError(err)
		req.Equal(png, data)
		req.Equal("image/png", contentType)
	})

	t.Run("should refuse oversized media", func(t *testing.T) {
		big := append(append([]byte{}, png...), bytes.Repeat([]byte{0}, 2048)...)
		_, err := f.media.Store(ctx, "big.png", big)
		require.ErrorIs(t, err, errors.ErrMediaTooLarge)
	})

	t.Run("should refuse unknown kinds", func(t *testing.T) {
		_, err := f.media.Store(ctx, "notes.txt", []byte("plain text"))
		require.ErrorIs(t, err, errors.ErrUnsupportedMedia)
	})

	t.Run("should report missing blobs", func(t *testing.T) {
		_, _, err := f.media.Get(ctx, domain.NewStoreID())
		require.ErrorIs(t, err, errors.ErrNotFound)
	})
}

func TestUserService_Profile_Picture(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "A")

	// Given a first picture
	first, err := f.profiles.SetProfilePicture(ctx, "A", "me.png", png)
	req.NoError(err)

	// When it is replaced
	second, err := f.profiles.SetProfilePicture(ctx, "A", "me2.png", png)
	req.NoError(err)

	// Then the profile points to the new one and the old blob is gone
	profile, err := f.profiles.GetProfile(ctx, "A")
	req.NoError(err)
	req.Equal(second.StoreID, profile.Avatar.StoreID)
	_, _, err = f.media.Get(ctx, first.StoreID)
	req.ErrorIs(err, errors.ErrNotFound)

	// When cleared
	req.NoError(f.profiles.ClearProfilePicture(ctx, "A"))
	profile, err = f.profiles.GetProfile(ctx, "A")
	req.NoError(err)
	req.Nil(profile.Avatar)

	// And pictures of unknown users are refused
	_, err = f.profiles.SetProfilePicture(ctx, "nobody", "x.png", png)
	req.ErrorIs(err, errors.ErrNotFound)
}

func TestUserService_Profile_And_Contacts(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "A", "B")
	name := "Alice"
	empty := ""

	profile, err := f.profiles.UpdateProfile(ctx, "A", domain.ProfileUpdate{DisplayName: &name})
	req.NoError(err)
	req.Equal("Alice", profile.DisplayName)
	_, err = f.profiles.UpdateProfile(ctx, "A", domain.ProfileUpdate{DisplayName: &empty})
	req.ErrorIs(err, errors.ErrEmptyName)

	req.NoError(f.profiles.AddContact(ctx, "A", "B"))
	req.ErrorIs(f.profiles.AddContact(ctx, "A", "Z"), errors.ErrNotFound)
	contacts, err := f.profiles.Contacts(ctx, "A")
	req.NoError(err)
	req.Equal([]domain.UserID{"B"}, contacts)
	req.NoError(f.profiles.RemoveContact(ctx, "A", "B"))
	contacts, err = f.profiles.Contacts(ctx, "A")
	req.NoError(err)
	req.Empty(contacts)

	req.NoError(f.profiles.SetOptions(ctx, "A", domain.Options{SendNotifications: false}))
	options, err := f.profiles.GetOptions(ctx, "A")
	req.NoError(err)
	req.False(options.SendNotifications)
}
