package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rescale/assetmover/internal/constants"
)

// EventType defines the types of events that can be emitted
type EventType string

const (
	// Per-item errors, mirrored from what the index displays
	EventLog EventType = "log"

	// Move engine events
	EventRoundStarted      EventType = "round_started"      // A wave of requests was dispatched
	EventRoundFinished     EventType = "round_finished"     // Every request in the wave settled
	EventItemOutcome       EventType = "item_outcome"       // One request settled
	EventConflictsResolved EventType = "conflicts_resolved" // User answered a batch of prompts
	EventMoveComplete      EventType = "move_complete"      // MoveAssets/MoveFolders returned

	// Job queue lifecycle, bridged from the queue's listeners
	EventQueueState EventType = "queue_state"

	// Progress counter changes
	EventProgress EventType = "progress"
)

// LogLevel defines log severity levels
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l LogLevel) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// MarshalText renders the level by name in JSON event streams.
func (l LogLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// Event is the base interface for all events
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common event fields
type BaseEvent struct {
	EventType EventType
	Time      time.Time
}

func (e BaseEvent) Type() EventType      { return e.EventType }
func (e BaseEvent) Timestamp() time.Time { return e.Time }

// LogEvent represents log messages
type LogEvent struct {
	BaseEvent
	Level     LogLevel
	Message   string
	Operation string
}

// RoundEvent describes one round of a move operation.
// Counts are zero on EventRoundStarted except Requests.
type RoundEvent struct {
	BaseEvent
	Operation string // "assets", "folders"
	Phase     string // "move", "transfer", "delete"
	Round     int    // 1-based
	Requests  int
	Successes int
	Conflicts int
	Errors    int
}

// OutcomeEvent reports a single settled request.
type OutcomeEvent struct {
	BaseEvent
	Operation string
	Phase     string
	Action    string
	RequestID string
	ItemID    string
	Status    string // "success", "conflict", "error", "unknown"
	Message   string
}

// ConflictsResolvedEvent summarises a prompt batch.
type ConflictsResolvedEvent struct {
	BaseEvent
	Operation string
	Prompts   int
	Cancelled int
	Choices   map[string]int // choice value -> count
}

// CompleteEvent represents the end of a MoveAssets/MoveFolders call
type CompleteEvent struct {
	BaseEvent
	Operation string
	Requested int
	Moved     int
	Duration  time.Duration
}

// QueueStateEvent mirrors a job queue lifecycle notification.
type QueueStateEvent struct {
	BaseEvent
	State   string // "beforeRun", "afterRun", "beforeExec", "afterExec", "pause", "resume"
	Pending int
}

// ProgressEvent carries the processed/total counters of a progress bar.
type ProgressEvent struct {
	BaseEvent
	Label     string
	Processed int
	Total     int
	Visible   bool
}

// EventBus manages event subscriptions and publishing
type EventBus struct {
	subscribers   map[EventType][]chan Event
	all           []chan Event // Subscribers to all events
	mu            sync.RWMutex
	bufferSize    int
	closed        bool
	droppedEvents atomic.Int64 // Count of dropped events due to full buffers
}

// NewEventBus creates a new event bus with specified buffer size
func NewEventBus(bufferSize int) *EventBus {
	if bufferSize <= 0 {
		bufferSize = constants.EventBusDefaultBuffer
	}
	if bufferSize > constants.EventBusMaxBuffer {
		bufferSize = constants.EventBusMaxBuffer
	}
	return &EventBus{
		subscribers: make(map[EventType][]chan Event),
		all:         make([]chan Event, 0),
		bufferSize:  bufferSize,
	}
}

// Subscribe creates a subscription to a specific event type
func (eb *EventBus) Subscribe(eventType EventType) <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.subscribers[eventType] = append(eb.subscribers[eventType], ch)
	return ch
}

// SubscribeAll creates a subscription to all events
func (eb *EventBus) SubscribeAll() <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.all = append(eb.all, ch)
	return ch
}

// Publish sends an event to all subscribers without blocking.
// Events for a full subscriber are dropped and counted.
func (eb *EventBus) Publish(event Event) {
	if eb == nil {
		return
	}

	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed {
		return
	}

	for _, ch := range eb.subscribers[event.Type()] {
		select {
		case ch <- event:
		default:
			eb.droppedEvents.Add(1)
		}
	}

	for _, ch := range eb.all {
		select {
		case ch <- event:
		default:
			eb.droppedEvents.Add(1)
		}
	}
}

// Close shuts down the event bus and closes all channels
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	eb.closed = true

	for _, channels := range eb.subscribers {
		for _, ch := range channels {
			close(ch)
		}
	}

	for _, ch := range eb.all {
		close(ch)
	}
}

// PublishLog is a convenience method for publishing log events
func (eb *EventBus) PublishLog(level LogLevel, message, operation string) {
	eb.Publish(&LogEvent{
		BaseEvent: BaseEvent{
			EventType: EventLog,
			Time:      time.Now(),
		},
		Level:     level,
		Message:   message,
		Operation: operation,
	})
}

// UnsubscribeAll removes a subscription channel from all event types
func (eb *EventBus) UnsubscribeAll(ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	for eventType, subscribers := range eb.subscribers {
		for i, subCh := range subscribers {
			if subCh == ch {
				subscribers[i] = subscribers[len(subscribers)-1]
				eb.subscribers[eventType] = subscribers[:len(subscribers)-1]
				break
			}
		}
	}

	for i, subCh := range eb.all {
		if subCh == ch {
			eb.all[i] = eb.all[len(eb.all)-1]
			eb.all = eb.all[:len(eb.all)-1]
			break
		}
	}
}

// GetDroppedEventCount returns the total number of events dropped due to full buffers
func (eb *EventBus) GetDroppedEventCount() int64 {
	return eb.droppedEvents.Load()
}
