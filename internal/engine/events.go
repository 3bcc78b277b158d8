package engine

import "time"

// Event is anything the engine loop consumes. The event's time is the
// engine's clock for staleness and funding boundaries.
type Event interface {
	EventTime() time.Time
}

// Tick asks for a snapshot and re-evaluates staleness without new data.
type Tick struct {
	At time.Time
}

func (t Tick) EventTime() time.Time { return t.At }
