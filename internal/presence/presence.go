// Package presence tracks who is currently connected to a room. Entries are
// ephemeral and TTL-bounded; the durable membership ledger is refreshed from
// them on a best-effort basis only.
package presence

import (
	"context"
	"time"
)

// Entry marshals directly into the active_users wire frame.
type Entry struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

// Store exposes atomic per-key operations. Implementations must not require
// callers to read-modify-write the whole room map; concurrent joins to the
// same room must not lose each other's entries.
type Store interface {
	Upsert(ctx context.Context, room, username, displayName string) error
	// Remove deletes the entry and its heartbeat. Reports whether an entry
	// was actually present, so delayed-removal tasks stay idempotent.
	Remove(ctx context.Context, room, username string) (bool, error)
	Snapshot(ctx context.Context, room string) ([]Entry, error)
	TouchHeartbeat(ctx context.Context, room, username string) error
	// HeartbeatAge returns the time since the user's last heartbeat. The bool
	// is false when no heartbeat has ever been recorded (or it expired).
	HeartbeatAge(ctx context.Context, room, username string) (time.Duration, bool, error)
	Clear(ctx context.Context, room string) error
}
