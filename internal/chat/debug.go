package chat

import (
	"sync"
	"time"
)

const debugLogSize = 256

// DebugEvent is one captured wire event.
type DebugEvent struct {
	Time      time.Time `json:"time"`
	RequestId string    `json:"request_id"`
	Name      string    `json:"name"`
	Data      string    `json:"data"`
}

// DebugLog keeps a ring buffer of recent wire events plus a frequency
// count per event name. It only observes the stream, recording an event
// never changes how it is reconciled.
type DebugLog struct {
	mu        sync.Mutex
	events    []DebugEvent
	next      int
	wrapped   bool
	histogram map[string]int
}

func NewDebugLog() *DebugLog {
	return &DebugLog{
		events:    make([]DebugEvent, debugLogSize),
		histogram: make(map[string]int),
	}
}

// Record captures an event into the ring buffer.
func (d *DebugLog) Record(requestId string, name string, data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.events[d.next] = DebugEvent{
		Time:      time.Now().UTC(),
		RequestId: requestId,
		Name:      name,
		Data:      string(data),
	}
	d.next++
	if d.next >= len(d.events) {
		d.next = 0
		d.wrapped = true
	}

	d.histogram[name]++
}

// Events returns the captured events oldest first.
func (d *DebugLog) Events() []DebugEvent {
	d.mu.Lock()
	defer d.mu.Unlock()

	var events []DebugEvent
	if d.wrapped {
		events = append(events, d.events[d.next:]...)
	}
	events = append(events, d.events[:d.next]...)

	return events
}

// Histogram returns a copy of the per-event-name frequency counts.
func (d *DebugLog) Histogram() map[string]int {
	d.mu.Lock()
	defer d.mu.Unlock()

	histogram := make(map[string]int, len(d.histogram))
	for name, count := range d.histogram {
		histogram[name] = count
	}

	return histogram
}
