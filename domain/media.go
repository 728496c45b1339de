package domain

import (
	"strings"

	"github.com/google/uuid"
)

// StoreID identifies a blob in the media store.
type StoreID string

func NewStoreID() StoreID {
	return StoreID(uuid.NewString())
}

type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaAudio MediaKind = "audio"
	MediaVideo MediaKind = "video"
	MediaOther MediaKind = "other"
)

// Media is a reference to binary content kept outside the entity records.
type Media struct {
	StoreID     StoreID `json:"store_id"`
	Filename    string  `json:"filename"`
	ContentType string  `json:"content_type"`
	Size        int64   `json:"size"`
}

func (m Media) Kind() MediaKind {
	return KindOfContentType(m.ContentType)
}

func KindOfContentType(contentType string) MediaKind {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return MediaImage
	case strings.HasPrefix(contentType, "audio/"):
		return MediaAudio
	case strings.HasPrefix(contentType, "video/"):
		return MediaVideo
	default:
		return MediaOther
	}
}
