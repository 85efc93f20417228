package models

import (
	"encoding/json"
	"time"
)

// ChatMessage is one row of a queue-entry-scoped conversation.
type ChatMessage struct {
	ID          string    `json:"id"`
	SenderID    string    `json:"senderId"`
	RecipientID string    `json:"recipientId"`
	Message     string    `json:"message"`
	QueueID     string    `json:"queueId"`
	SentAt      time.Time `json:"sent_at,omitempty"`
	// Pending marks an optimistic local append not yet confirmed by the
	// messaging server.
	Pending bool `json:"pending,omitempty"`
}

// ChatFrame is the wire format of the messaging socket, both directions.
type ChatFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

const (
	ChatEventRegister           = "register"
	ChatEventRegisterQueueEntry = "registerQueueEntry"
	ChatEventMessage            = "chat message"
)

// DecodeChatMessage validates an incoming "chat message" frame payload.
func DecodeChatMessage(data []byte) (*ChatMessage, error) {
	var msg ChatMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, &DecodeError{What: "chat message", Err: err}
	}
	if msg.SenderID == "" || msg.Message == "" {
		return nil, &DecodeError{What: "chat message missing sender or body"}
	}
	return &msg, nil
}
