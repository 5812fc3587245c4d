package domain

import "time"

// Friend is one entry in a user's friendship list, enriched with the
// per-conversation unread count and a preview of the latest message.
type Friend struct {
	Username       string  `json:"username"`
	ConversationID string  `json:"conversationId"`
	LastMessage    *string `json:"lastMessage"`
	UnreadMessages int     `json:"unreadMessages"`
}

type FriendRequest struct {
	RequestID  string    `json:"requestId"`
	Sender     string    `json:"sender"`
	Recipient  string    `json:"recipient"`
	Message    *string   `json:"message,omitempty"`
	CreateTime time.Time `json:"createTime"`
}

// Message is one persisted conversation message. SelfDestruct is the
// post-view TTL in minutes; nil means the message never self-destructs.
// DeleteTime is assigned exactly once, when a self-destructing message
// is first viewed.
type Message struct {
	MessageID      string     `json:"messageId"`
	ConversationID string     `json:"conversationId"`
	Author         string     `json:"author"`
	Content        string     `json:"content"`
	MessageType    *string    `json:"messageType,omitempty"`
	GifURL         *string    `json:"gifURL,omitempty"`
	SelfDestruct   *int       `json:"selfDestruct,omitempty"`
	Viewed         bool       `json:"viewed"`
	DeleteTime     *time.Time `json:"deleteTime,omitempty"`
	SendTime       time.Time  `json:"sendTime"`
}

// ExpiredMessage identifies a message past its destruct deadline.
type ExpiredMessage struct {
	ConversationID string
	MessageID      string
}

type Presence struct {
	Identity string `json:"user"`
	Online   bool   `json:"online"`
}

const MessageTypeGIF = "GIF"

// PageSize is the fixed message page length for history loads and bulk
// viewed marking.
const PageSize = 20
