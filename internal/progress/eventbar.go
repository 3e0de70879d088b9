package progress

import (
	"time"

	"github.com/rescale/assetmover/internal/events"
)

// EventBar publishes a ProgressEvent whenever the bar is shown, updated or
// hidden. Useful for headless runs that stream events instead of drawing.
type EventBar struct {
	*Counter
	bus *events.EventBus
}

// NewEventBar creates a bar publishing to bus.
func NewEventBar(bus *events.EventBus) *EventBar {
	return &EventBar{Counter: NewCounter(), bus: bus}
}

func (e *EventBar) ShowProgressBar() {
	e.Counter.ShowProgressBar()
	e.publish()
}

func (e *EventBar) HideProgressBar() {
	e.Counter.HideProgressBar()
	e.publish()
}

func (e *EventBar) UpdateProgressBar() {
	e.publish()
}

func (e *EventBar) publish() {
	snap := e.Snapshot()
	e.bus.Publish(&events.ProgressEvent{
		BaseEvent: events.BaseEvent{EventType: events.EventProgress, Time: time.Now()},
		Label:     snap.Label,
		Processed: snap.Processed,
		Total:     snap.Total,
		Visible:   snap.Visible,
	})
}
