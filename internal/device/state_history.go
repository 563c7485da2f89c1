package device

import (
	"context"
	"time"
)

// State history source values.
const (
	StateHistorySourcePoll    = "poll"
	StateHistorySourceCommand = "command"
)

// Snapshot is a JSON-shaped record of an entity's observable properties.
type Snapshot map[string]any

// StateHistoryEntry represents a single entity state change record.
//
// Each entry stores a full snapshot of the entity state at the time the
// change was observed, so history survives without InfluxDB.
type StateHistoryEntry struct {
	// ID is the auto-incremented primary key for the history row.
	ID int64 `json:"id"`

	// EntityID is the unique id of the entity the snapshot belongs to.
	EntityID string `json:"entity_id"`

	// State is the JSON snapshot of the entity state.
	State Snapshot `json:"state"`

	// Source identifies how the state change was recorded (poll, command).
	Source string `json:"source"`

	// CreatedAt is the timestamp of the state change (UTC).
	CreatedAt time.Time `json:"created_at"`
}

// StateHistoryRepository stores and retrieves entity state change history.
//
// Implementations must be thread-safe and use UTC timestamps.
type StateHistoryRepository interface {
	// RecordStateChange records an entity state change.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - entityID: Unique entity identifier
	//   - state: State snapshot to persist
	//   - source: Origin of the change (poll, command)
	//
	// Returns:
	//   - error: nil on success, otherwise the underlying persistence error
	RecordStateChange(ctx context.Context, entityID string, state Snapshot, source string) error

	// GetHistory returns recent state change history for the entity.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - entityID: Unique entity identifier
	//   - limit: Maximum entries to return (implementation may clamp bounds)
	//
	// Returns:
	//   - []StateHistoryEntry: Ordered newest-first history entries (may be empty)
	//   - error: nil on success, otherwise the underlying query error
	GetHistory(ctx context.Context, entityID string, limit int) ([]StateHistoryEntry, error)
}
