package internal

import (
	"chat-sync/domain"
	"chat-sync/repositories"
	"fmt"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Describe summarizes one stored record for inspection tools: the record kind
// taken from its namespace and a one line detail.
func Describe(key string, value []byte) (string, string) {
	switch {
	case strings.HasPrefix(key, repositories.MediaNamespace+"/"):
		return "MEDIA", fmt.Sprintf("%d bytes", len(value))
	case strings.HasPrefix(key, repositories.UserNamespace+"/"):
		var u domain.User
		if err := cbor.Unmarshal(value, &u); err != nil {
			return "USER", "Error: decode failed"
		}
		return "USER", fmt.Sprintf("%q conversations=%d invitations=%d contacts=%d",
			u.Profile.DisplayName, len(u.Conversations), len(u.Invitations), len(u.Contacts))
	case strings.HasPrefix(key, repositories.ConversationNamespace+"/"):
		var c domain.Conversation
		if err := cbor.Unmarshal(value, &c); err != nil {
			return "CONVERSATION", "Error: decode failed"
		}
		return "CONVERSATION", fmt.Sprintf("%s %q members=%d invited=%d messages=%d",
			c.Kind(), c.Name, len(c.Members), len(c.Invitations), len(c.Messages))
	case strings.HasPrefix(key, repositories.MessageNamespace+"/"):
		var m domain.Message
		if err := cbor.Unmarshal(value, &m); err != nil {
			return "MESSAGE", "Error: decode failed"
		}
		detail := fmt.Sprintf("from=%s at=%s %d bytes", m.Sender, m.Timestamp.Format(time.RFC3339), len(m.EncryptedText))
		if m.Media != nil {
			detail += fmt.Sprintf(" media=%s", m.Media.ContentType)
		}
		return "MESSAGE", detail
	default:
		return "UNKNOWN", fmt.Sprintf("%d bytes", len(value))
	}
}
