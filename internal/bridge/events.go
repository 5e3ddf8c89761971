package bridge

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/arafateasin/chainquiz/internal/lifecycle"
)

// EventType identifies the payload carried by a QuizEvent.
type EventType string

const (
	// EventTypeState carries the full lifecycle view after a state change.
	EventTypeState EventType = "quiz_state"
	// EventTypeTick carries a countdown sample between polls.
	EventTypeTick EventType = "countdown_tick"
)

// QuizEvent is the envelope pushed to UI clients over the WebSocket bridge.
type QuizEvent struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// TickPayload is the countdown_tick event body.
type TickPayload struct {
	RemainingSec int64  `json:"remaining_sec"`
	Display      string `json:"display"`
}

func newEvent(eventType EventType, payload any) (*QuizEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &QuizEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}, nil
}

// NewStateEvent wraps a lifecycle view in a quiz_state event.
func NewStateEvent(view lifecycle.View) (*QuizEvent, error) {
	return newEvent(EventTypeState, view)
}

// NewTickEvent wraps a countdown sample in a countdown_tick event.
func NewTickEvent(payload TickPayload) (*QuizEvent, error) {
	return newEvent(EventTypeTick, payload)
}
