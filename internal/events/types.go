// Package events provides an asynchronous event bus that fans catalog
// changes out to consumers (such as MQTT) without blocking the request
// that caused them.
package events

import (
	"time"
)

// Action is what happened to a catalog record.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
)

// Change describes one successful mutation of the catalog.
type Change struct {
	Entity string    `json:"entity"` // aves, familias, ...
	Action Action    `json:"action"`
	ID     int       `json:"id"`
	At     time.Time `json:"at"`
}

// EventConsumer processes changes delivered by the bus.
type EventConsumer interface {
	// Name returns the consumer name for identification
	Name() string

	// ProcessEvent handles a single change
	ProcessEvent(change Change) error
}

// EventBusStats contains runtime statistics for monitoring
type EventBusStats struct {
	EventsReceived   uint64
	EventsSuppressed uint64
	EventsProcessed  uint64
	EventsDropped    uint64
	ConsumerErrors   uint64
}
