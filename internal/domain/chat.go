package domain

import (
	"encoding/json"
	"time"
)

// Sender identifies who authored a chat message.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// MessageStatus tracks delivery of a user message.
type MessageStatus string

const (
	StatusSending MessageStatus = "sending"
	StatusSent    MessageStatus = "sent"
	StatusFailed  MessageStatus = "failed"
)

// MessageType selects how the dashboard renders a message.
type MessageType string

const (
	TypeText     MessageType = "text"
	TypeWeather  MessageType = "weather"
	TypeCrop     MessageType = "crop"
	TypeMarket   MessageType = "market"
	TypeImage    MessageType = "image"
	TypeLocation MessageType = "location"
)

// ChatMessage is a single entry of the assistant transcript.
type ChatMessage struct {
	ID        string          `json:"id"`
	Text      string          `json:"text"`
	Sender    Sender          `json:"sender"`
	Timestamp time.Time       `json:"timestamp"`
	Status    MessageStatus   `json:"status,omitempty"`
	Type      MessageType     `json:"type,omitempty"`
	RichData  json.RawMessage `json:"rich_data,omitempty"`
}

// ChatSession stores the persisted transcript for a user.
type ChatSession struct {
	UserID         string
	TranscriptJSON string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
