package models

import "time"

// EventType names an observable state change
type EventType string

const (
	// Agreement events
	EventInitialized         EventType = "Initialized"
	EventDeadlineSet         EventType = "DeadlineSet"
	EventVariableMetadataSet EventType = "VariableMetadataSet"
	EventStakeAdded          EventType = "StakeAdded"
	EventStakeTaken          EventType = "StakeTaken"
	EventGriefed             EventType = "Griefed"
	EventOperatorUpdated     EventType = "OperatorUpdated"

	// Registry events
	EventFactoryAuthorized EventType = "FactoryAuthorized"
	EventFactoryRetired    EventType = "FactoryRetired"
	EventInstanceCreated   EventType = "InstanceCreated"
)

// Event represents an event emitted by an agreement or a registry
type Event struct {
	// Identification
	EventID   string    `json:"event_id"`
	SourceID  string    `json:"source_id"` // agreement or registry that emitted it
	EventType EventType `json:"event_type"`
	Sequence  uint64    `json:"sequence"` // per-source, starts at 1

	// Event data
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	// State after the event, set on the emitting side only (not serialized)
	Agreement *Agreement      `json:"-"`
	Factory   *Factory        `json:"-"`
	Instance  *InstanceRecord `json:"-"`
}

// EventFilter provides criteria for filtering events
type EventFilter struct {
	SourceID  string
	EventType EventType
	Limit     int
	Offset    int
}
