package session

import (
	"sync"
	"time"

	"drivesync/internal/transfer"
)

// EventKind distinguishes phase transitions from per-task completions.
type EventKind string

const (
	EventPhase EventKind = "phase"
	EventTask  EventKind = "task"
)

// Event is one progress notification. Phase events carry the new phase;
// task events carry the terminated task's outcome.
type Event struct {
	Kind      EventKind
	SessionID string
	At        time.Time
	Phase     Phase
	Task      *transfer.Task
}

// Sink receives progress events. Implementations must tolerate bursts; the
// coordinator never blocks on a sink, so a slow consumer sees dropped
// events rather than stalling the run.
type Sink interface {
	Publish(Event)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(Event)

func (f SinkFunc) Publish(event Event) { f(event) }

const fanoutBuffer = 256

// fanout delivers events to every sink on a dedicated goroutine so the
// coordinator's send is a non-blocking channel write.
type fanout struct {
	sinks []Sink
	ch    chan Event
	once  sync.Once
	done  chan struct{}
}

func newFanout(sinks []Sink) *fanout {
	f := &fanout{
		sinks: sinks,
		ch:    make(chan Event, fanoutBuffer),
		done:  make(chan struct{}),
	}
	go f.drain()
	return f
}

func (f *fanout) drain() {
	defer close(f.done)
	for event := range f.ch {
		for _, sink := range f.sinks {
			sink.Publish(event)
		}
	}
}

func (f *fanout) publish(event Event) {
	select {
	case f.ch <- event:
	default:
		// Sink consumption is best-effort; accounting lives in the report.
	}
}

// close flushes buffered events and stops the delivery goroutine.
func (f *fanout) close() {
	f.once.Do(func() {
		close(f.ch)
	})
	<-f.done
}
