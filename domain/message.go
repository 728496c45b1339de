package domain

import (
	"chat-sync/errors"
	"time"

	"github.com/google/uuid"
)

type MessageID string

func NewMessageID() MessageID {
	return MessageID(uuid.NewString())
}

func ParseMessageID(s string) (MessageID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return "", errors.ErrInvalidRequest
	}
	return MessageID(id.String()), nil
}

// Message exists only once authored. The payload is end-to-end encrypted
// and opaque to the server.
type Message struct {
	ID            MessageID
	Sender        UserID
	Timestamp     time.Time
	EncryptedText []byte
	Media         *Media
}

// AttachMedia sets the media reference. A media reference moves from empty
// to set exactly once.
func (m *Message) AttachMedia(media Media) error {
	if m.Media != nil {
		return errors.ErrMediaAlreadyAttached
	}
	m.Media = &media
	return nil
}
