package models

import (
	"time"

	"github.com/google/uuid"
)

// Sender identifies who authored a chat bubble.
type Sender string

// CycleKind tells which request/response exchange a message belongs to. The initial exchange is
// rendered first, followed by the follow-up history.
type CycleKind string

const (
	// SenderUser marks messages typed by the person using the UI.
	SenderUser Sender = "user"
	// SenderBot marks messages produced by the backend, including placeholders and error bubbles.
	SenderBot Sender = "bot"

	// CycleInitial is the exchange started from the landing prompt.
	CycleInitial CycleKind = "initial"
	// CycleFollowup is any exchange started from the follow-up box.
	CycleFollowup CycleKind = "followup"

	// ThinkingText is the text shown inside a placeholder bubble.
	ThinkingText = "Thinking..."

	// TimestampLayout is the local wall-clock format of Message.Timestamp.
	TimestampLayout = "15:04"
)

// Message is a single chat bubble. ID is unique and stable for the lifetime of the thread view,
// Timestamp is formatted once at creation time.
type Message struct {
	ID        string
	Sender    Sender
	Text      string
	Timestamp string
	Cycle     CycleKind

	// Thinking marks the transient placeholder shown while a request is in flight.
	Thinking bool
	// Failed marks a bot bubble that carries a failure message instead of an answer.
	Failed bool
}

// NewMessage creates a message with a fresh ID built from prefix and a random UUID.
func NewMessage(prefix string, sender Sender, kind CycleKind, text string, now time.Time) Message {
	return Message{
		ID:        prefix + "-" + uuid.NewString(),
		Sender:    sender,
		Text:      text,
		Timestamp: now.Format(TimestampLayout),
		Cycle:     kind,
	}
}

// NewThinkingMessage creates the placeholder bot bubble for a cycle.
func NewThinkingMessage(kind CycleKind, now time.Time) Message {
	msg := NewMessage("bot-thinking", SenderBot, kind, ThinkingText, now)
	msg.Thinking = true
	return msg
}
