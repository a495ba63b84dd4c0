// Package session stores transient per-user conversation state.
//
// Each record is keyed by (user id, flow kind) and carries a version that
// increases on every write. Writers that loaded an older version are rejected
// by CompareAndSwap, which serializes concurrent actions for the same key.
package session

import "errors"

// Flow identifies one of the independent conversation state machines.
type Flow string

const (
	FlowAuthoring   Flow = "authoring"
	FlowBrowsing    Flow = "browsing"
	FlowTraining    Flow = "training"
	FlowAccessCodes Flow = "access_codes"
)

// Flows lists every flow kind, for bulk resets.
var Flows = []Flow{FlowAuthoring, FlowBrowsing, FlowTraining, FlowAccessCodes}

// Key addresses a single conversation state.
type Key struct {
	UserID int64
	Flow   Flow
}

// Record is a stored state blob with its version.
type Record struct {
	Value   any
	Version uint64
}

// ErrConflict is returned by CompareAndSwap when the stored version moved on.
var ErrConflict = errors.New("session: version conflict")

// Store maps keys to versioned state records.
type Store interface {
	// Get returns the record for key, or ok=false when no flow is active.
	Get(key Key) (Record, bool)
	// Put overwrites whatever is stored for key and returns the new version.
	// A fresh flow invocation resets prior session data this way.
	Put(key Key, value any) uint64
	// CompareAndSwap replaces the record only if the stored version equals
	// version; otherwise it returns ErrConflict and leaves the record intact.
	CompareAndSwap(key Key, value any, version uint64) (uint64, error)
	// Clear removes the record for key if present.
	Clear(key Key)
}
