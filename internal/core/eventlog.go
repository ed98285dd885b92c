package core

import (
	"fmt"
	"time"
)

const DefaultLogCapacity = 50

type EventKind string

const (
	EventJobCreated         EventKind = "job_created"
	EventJobStarted         EventKind = "job_started"
	EventJobCompleted       EventKind = "job_completed"
	EventJobCancelled       EventKind = "job_cancelled"
	EventJobDelayed         EventKind = "job_delayed"
	EventJobResumed         EventKind = "job_resumed"
	EventJobPriorityUpdated EventKind = "job_priority_updated"
	EventPrinterToggled     EventKind = "printer_toggled"
	EventQueueCleared       EventKind = "queue_cleared"
	EventHistoryCleared     EventKind = "history_cleared"
	EventSettingsChanged    EventKind = "settings_changed"
	EventJobNotFound        EventKind = "job_not_found"
	EventPrinterNotFound    EventKind = "printer_not_found"
	EventPrinterUnavailable EventKind = "printer_unavailable"
	EventInvalidInput       EventKind = "invalid_input"
)

var eventKinds = []EventKind{
	EventJobCreated, EventJobStarted, EventJobCompleted, EventJobCancelled,
	EventJobDelayed, EventJobResumed, EventJobPriorityUpdated, EventPrinterToggled,
	EventQueueCleared, EventHistoryCleared, EventSettingsChanged, EventJobNotFound,
	EventPrinterNotFound, EventPrinterUnavailable, EventInvalidInput,
}

func EventKinds() []EventKind {
	out := make([]EventKind, len(eventKinds))
	copy(out, eventKinds)
	return out
}

func KnownEventKind(s string) bool {
	for _, k := range eventKinds {
		if string(k) == s {
			return true
		}
	}
	return false
}

// Event describes one externally visible state change. Job is a copy taken
// when the event was produced.
type Event struct {
	Kind      EventKind `json:"kind"`
	At        time.Time `json:"at"`
	JobID     string    `json:"job_id,omitempty"`
	PrinterID int64     `json:"printer_id,omitempty"`
	Job       *Job      `json:"job,omitempty"`
	Message   string    `json:"message"`
}

func (e Event) String() string {
	return fmt.Sprintf("[%s] %s", e.At.Format("15:04:05"), e.Message)
}

// EventLog keeps the most recent entries, newest first.
type EventLog struct {
	entries  []Event
	capacity int
}

func NewEventLog(capacity int) *EventLog {
	if capacity <= 0 {
		capacity = DefaultLogCapacity
	}
	return &EventLog{capacity: capacity}
}

func (l *EventLog) Append(e Event) {
	l.entries = append([]Event{e}, l.entries...)
	if len(l.entries) > l.capacity {
		l.entries = l.entries[:l.capacity:l.capacity]
	}
}

func (l *EventLog) Len() int { return len(l.entries) }

func (l *EventLog) Entries() []Event {
	out := make([]Event, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *EventLog) Lines() []string {
	out := make([]string, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, e.String())
	}
	return out
}
