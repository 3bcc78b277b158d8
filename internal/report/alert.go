package report

import (
	"context"

	"basis-sim/internal/alerts"
	"basis-sim/internal/engine"
)

type sender interface {
	Send(ctx context.Context, message string) error
}

// Alert forwards position, funding and feed-health changes to a messenger.
type Alert struct {
	sender sender
}

func NewAlert(s sender) *Alert {
	return &Alert{sender: s}
}

func (a *Alert) Name() string { return "alert" }

func (a *Alert) Report(ctx context.Context, snap engine.Snapshot) error {
	msg, ok := alerts.Message(snap)
	if !ok {
		return nil
	}
	return a.sender.Send(ctx, msg)
}
