package events

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestEventBus_PublishSubscribe(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	ch := bus.Subscribe(EventRoundStarted)

	bus.Publish(&RoundEvent{
		BaseEvent: BaseEvent{EventType: EventRoundStarted, Time: time.Now()},
		Operation: "assets",
		Phase:     "move",
		Round:     1,
		Requests:  3,
	})

	select {
	case received := <-ch:
		round, ok := received.(*RoundEvent)
		if !ok {
			t.Fatal("Expected RoundEvent")
		}
		if round.Requests != 3 {
			t.Errorf("Expected 3 requests, got %d", round.Requests)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Timeout waiting for event")
	}
}

func TestEventBus_DifferentEventTypes(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	outcomeCh := bus.Subscribe(EventItemOutcome)
	completeCh := bus.Subscribe(EventMoveComplete)

	bus.Publish(&OutcomeEvent{
		BaseEvent: BaseEvent{EventType: EventItemOutcome, Time: time.Now()},
		Status:    "success",
	})

	select {
	case <-outcomeCh:
	case <-time.After(100 * time.Millisecond):
		t.Error("Outcome subscriber didn't receive event")
	}

	select {
	case <-completeCh:
		t.Error("Complete subscriber received wrong event type")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEventBus_SubscribeAll(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	allCh := bus.SubscribeAll()

	bus.Publish(&QueueStateEvent{BaseEvent: BaseEvent{EventType: EventQueueState, Time: time.Now()}})
	bus.Publish(&CompleteEvent{BaseEvent: BaseEvent{EventType: EventMoveComplete, Time: time.Now()}})

	count := 0
	for i := 0; i < 2; i++ {
		select {
		case <-allCh:
			count++
		case <-time.After(100 * time.Millisecond):
		}
	}

	if count != 2 {
		t.Errorf("Expected to receive 2 events, got %d", count)
	}
}

func TestEventBus_NonBlockingCountsDrops(t *testing.T) {
	bus := NewEventBus(2)
	defer bus.Close()

	_ = bus.Subscribe(EventProgress)

	for i := 0; i < 10; i++ {
		bus.Publish(&ProgressEvent{
			BaseEvent: BaseEvent{EventType: EventProgress, Time: time.Now()},
			Processed: i,
		})
	}

	if got := bus.GetDroppedEventCount(); got != 8 {
		t.Errorf("Expected 8 dropped events, got %d", got)
	}
}

func TestEventBus_CloseAndNil(t *testing.T) {
	bus := NewEventBus(10)
	ch := bus.Subscribe(EventLog)

	bus.Close()

	if _, ok := <-ch; ok {
		t.Error("Channel should be closed after bus.Close()")
	}

	// Publishing after close, or on a nil bus, must not panic
	bus.PublishLog(InfoLevel, "late", "assets")
	var nilBus *EventBus
	nilBus.PublishLog(ErrorLevel, "nobody listening", "folders")
}

func TestEventBus_UnsubscribeAll(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	ch := bus.SubscribeAll()
	typed := bus.Subscribe(EventLog)
	bus.UnsubscribeAll(ch)
	bus.UnsubscribeAll(typed)

	bus.PublishLog(InfoLevel, "hello", "assets")

	select {
	case <-ch:
		t.Error("Unsubscribed channel should not receive events")
	case <-typed:
		t.Error("Unsubscribed typed channel should not receive events")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestLogEvent_JSONLevelName(t *testing.T) {
	data, err := json.Marshal(&LogEvent{Level: ErrorLevel, Message: "Asset 2 is locked"})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !strings.Contains(string(data), `"Level":"ERROR"`) {
		t.Errorf("Expected level by name, got %s", data)
	}
}

func TestLogLevel_String(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{DebugLevel, "DEBUG"},
		{InfoLevel, "INFO"},
		{WarnLevel, "WARN"},
		{ErrorLevel, "ERROR"},
		{LogLevel(42), "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.level.String(); got != tt.expected {
			t.Errorf("Level %d: expected %s, got %s", tt.level, tt.expected, got)
		}
	}
}
