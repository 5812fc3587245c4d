// Package live implements the session registry and the live-update
// protocol engine served over WebSocket.
package live

import (
	"encoding/json"
	"time"
)

const (
	msgTypeResponse = "RESPONSE"
	msgTypeEvent    = "EVENT"
)

// Inbound request types. The set is closed; anything else is a 400.
const (
	RequestSendMessage = "SEND_MESSAGE"
	RequestViewMessage = "VIEW_MESSAGE"
	RequestUserTyping  = "USER_TYPING"
)

// Outbound event types.
const (
	EventNewMessage          = "NEW_MESSAGE"
	EventUserTyping          = "USER_TYPING"
	EventPresenceChange      = "PRESENCE_CHANGE"
	EventDeleteMessage       = "DELETE_MESSAGE"
	EventFriendRequestAccept = "FRIEND_REQUEST_ACCEPT"
	EventRemoveConversation  = "REMOVE_CONVERSATION"
)

// Request is the inbound frame envelope. SendTime is optional and only
// used by the legacy clock-skew filter.
type Request struct {
	RequestType string          `json:"requestType"`
	RequestID   string          `json:"requestId"`
	SendTime    *time.Time      `json:"sendTime,omitempty"`
	Body        json.RawMessage `json:"body"`
}

// Response correlates to exactly one inbound request.
type Response struct {
	MsgType    string `json:"msgType"`
	RequestID  string `json:"requestId"`
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message,omitempty"`
}

func NewResponse(requestID string, statusCode int, message string) Response {
	return Response{
		MsgType:    msgTypeResponse,
		RequestID:  requestID,
		StatusCode: statusCode,
		Message:    message,
	}
}

// Event is a server-originated frame, never correlated to a request.
type Event struct {
	MsgType   string `json:"msgType"`
	EventType string `json:"eventType"`
	Data      any    `json:"data"`
}

func NewEvent(eventType string, data any) Event {
	return Event{
		MsgType:   msgTypeEvent,
		EventType: eventType,
		Data:      data,
	}
}

// Request bodies use pointer fields so missing keys are detectable.

type sendMessageBody struct {
	ConversationID      *string `json:"conversationId"`
	Text                *string `json:"text"`
	MessageType         *string `json:"messageType"`
	GifURL              *string `json:"gifURL"`
	SelfDestructMinutes *int    `json:"selfDestructMinutes"`
}

type viewMessageBody struct {
	ConversationID *string `json:"conversationId"`
	MessageID      *string `json:"messageId"`
}

type userTypingBody struct {
	ConversationID *string `json:"conversationId"`
	IsTyping       *bool   `json:"isTyping"`
}

// Event payloads.

type MessagePayload struct {
	ID       string    `json:"id"`
	Author   string    `json:"author"`
	Text     string    `json:"text"`
	Type     *string   `json:"type,omitempty"`
	GifURL   *string   `json:"gifURL,omitempty"`
	SendTime time.Time `json:"sendTime"`
}

type NewMessageData struct {
	ConversationID string         `json:"conversationId"`
	Message        MessagePayload `json:"message"`
}

type TypingData struct {
	ConversationID string `json:"conversationId"`
	User           string `json:"user"`
	IsTyping       bool   `json:"isTyping"`
}

type DeleteMessageData struct {
	ConversationID string `json:"conversationId"`
	MessageID      string `json:"messageId"`
}

type FriendRequestAcceptData struct {
	User           string `json:"user"`
	ConversationID string `json:"conversationId"`
}

type RemoveConversationData struct {
	ConversationID string `json:"conversationId"`
}
