package recorder

import "LovelyStaking/internal/model"

// Recorder persists ledger history for reporting.
type Recorder interface {
	RecordEvent(evt *model.Event) error
	RecordSnapshot(sum *model.Summary) error
	// RecentEvents returns up to limit events, newest first.
	RecentEvents(limit int) ([]model.Event, error)
	Close() error
}

// Sink adapts a Recorder to the ledger's event sink interface.
type Sink struct {
	Recorder
}

func (s Sink) HandleEvent(evt *model.Event) error {
	return s.RecordEvent(evt)
}
