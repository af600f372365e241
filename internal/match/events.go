package match

import "time"

// EventType tags a match event for stream subscribers.
type EventType string

const (
	EventStarted  EventType = "started"
	EventMove     EventType = "move"
	EventStrike   EventType = "strike"
	EventTerminal EventType = "terminal"
	EventReset    EventType = "reset"
)

// Event is a best-effort notification about match progress.
type Event struct {
	MatchID   string    `json:"matchId"`
	Type      EventType `json:"type"`
	Side      string    `json:"side,omitempty"`
	Move      string    `json:"move,omitempty"`
	Reasoning string    `json:"reasoning,omitempty"`
	Attempts  int       `json:"attempts,omitempty"`
	FEN       string    `json:"fen,omitempty"`
	Result    string    `json:"result,omitempty"`
	Method    string    `json:"method,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	At        time.Time `json:"at"`
}

// Sink receives match events. Implementations must not block.
type Sink interface {
	Publish(Event)
}

type noopSink struct{}

func (noopSink) Publish(Event) {}
