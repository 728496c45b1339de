package services

import (
	"chat-sync/domain"
	"chat-sync/errors"
	"chat-sync/repositories"
	"context"
	"fmt"
	"log/slog"

	"github.com/gabriel-vasile/mimetype"
)

// MediaLimits holds the largest accepted upload per media kind, in bytes.
type MediaLimits struct {
	Image          int64
	Audio          int64
	Video          int64
	ProfilePicture int64
}

func (l MediaLimits) of(kind domain.MediaKind) (int64, bool) {
	switch kind {
	case domain.MediaImage:
		return l.Image, true
	case domain.MediaAudio:
		return l.Audio, true
	case domain.MediaVideo:
		return l.Video, true
	default:
		return 0, false
	}
}

type IMediaService interface {
	Store(ctx context.Context, filename string, data []byte) (domain.Media, error)
	StoreProfilePicture(ctx context.Context, filename string, data []byte) (domain.Media, error)
	Get(ctx context.Context, id domain.StoreID) ([]byte, string, error)
	Delete(ctx context.Context, id domain.StoreID) error
}

// MediaService classifies uploads by their content, not their name,
// and keeps the blobs in the media store.
type MediaService struct {
	log        *slog.Logger
	repository repositories.IMediaRepository
	limits     MediaLimits
}

func NewMediaService(log *slog.Logger, repository repositories.IMediaRepository, limits MediaLimits) IMediaService {
	return &MediaService{log: log, repository: repository, limits: limits}
}

// Store accepts images, audio and video within their size limit.
func (s *MediaService) Store(_ context.Context, filename string, data []byte) (domain.Media, error) {
	media := s.classify(filename, data)
	limit, ok := s.limits.of(media.Kind())
	if !ok {
		return domain.Media{}, fmt.Errorf("%w: %s", errors.ErrUnsupportedMedia, media.ContentType)
	}
	if limit > 0 && media.Size > limit {
		return domain.Media{}, fmt.Errorf("%w: %d bytes, %s limit is %d", errors.ErrMediaTooLarge, media.Size, media.Kind(), limit)
	}
	return s.save(media, data)
}

func (s *MediaService) StoreProfilePicture(_ context.Context, filename string, data []byte) (domain.Media, error) {
	media := s.classify(filename, data)
	if media.Kind() != domain.MediaImage {
		return domain.Media{}, fmt.Errorf("%w: profile picture must be an image, got %s", errors.ErrUnsupportedMedia, media.ContentType)
	}
	if s.limits.ProfilePicture > 0 && media.Size > s.limits.ProfilePicture {
		return domain.Media{}, fmt.Errorf("%w: %d bytes, limit is %d", errors.ErrMediaTooLarge, media.Size, s.limits.ProfilePicture)
	}
	return s.save(media, data)
}

// Get returns a blob with its detected content type.
func (s *MediaService) Get(_ context.Context, id domain.StoreID) ([]byte, string, error) {
	data, err := s.repository.GetMedia(id)
	if err != nil {
		return nil, "", err
	}
	return data, mimetype.Detect(data).String(), nil
}

func (s *MediaService) Delete(_ context.Context, id domain.StoreID) error {
	return s.repository.DeleteMedia(id)
}

func (s *MediaService) classify(filename string, data []byte) domain.Media {
	return domain.Media{
		StoreID:     domain.NewStoreID(),
		Filename:    filename,
		ContentType: mimetype.Detect(data).String(),
		Size:        int64(len(data)),
	}
}

func (s *MediaService) save(media domain.Media, data []byte) (domain.Media, error) {
	if err := s.repository.StoreMedia(media.StoreID, data); err != nil {
		return domain.Media{}, err
	}
	s.log.Debug("Media accepted", "store_id", media.StoreID, "content_type", media.ContentType, "size", media.Size)
	return media, nil
}
