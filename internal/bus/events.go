package bus

import (
	"time"

	"github.com/google/uuid"
)

// ChatMessage is one normalized inbound chat event. Adapters create it,
// buffers own it; it is never mutated after creation.
type ChatMessage struct {
	ID        string
	Content   string
	Username  string
	ChannelID string
	Platform  string
	Timestamp time.Time
	Metadata  map[string]any
}

func NewChatMessage(content, username, channelID, platform string) ChatMessage {
	return ChatMessage{
		ID:        uuid.NewString(),
		Content:   content,
		Username:  username,
		ChannelID: channelID,
		Platform:  platform,
		Timestamp: time.Now(),
	}
}

func (m *ChatMessage) SessionKey() string {
	return m.Platform + ":" + m.ChannelID
}

// OutboundMessage is plain text handed back to a platform adapter. Chunking
// to the platform's size limit is the adapter's job.
type OutboundMessage struct {
	Platform  string
	ChannelID string
	Content   string
	ReplyTo   string
}
