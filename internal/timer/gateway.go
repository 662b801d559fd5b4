// Package timer defines the exact-timer gateway boundary: the host
// platform facility that fires a callback at an exact wall-clock instant
// even while the application process is suspended or killed. The
// coordinator only ever talks to this interface; platform specifics live
// in the adapters.
package timer

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrPermissionDenied means the calling context is not authorized to
	// schedule exact alarms. Callers surface this distinctly so the client
	// can run a permission-request flow and retry the arm.
	ErrPermissionDenied = errors.New("exact alarm scheduling not permitted")
	// ErrPlatformFailure means the underlying platform call failed for an
	// unspecified reason.
	ErrPlatformFailure = errors.New("platform timer failure")
)

// Handle is the opaque token correlating a record to its currently armed
// platform timer.
type Handle struct {
	Token string    `json:"token"`
	At    time.Time `json:"at"`
}

// IsZero reports whether the handle references no armed timer.
func (h Handle) IsZero() bool {
	return h.Token == ""
}

// Metadata rides along with an armed timer and is echoed back in the
// fired signal.
type Metadata struct {
	Label     string
	Repeating bool
}

// Gateway is the exact-timer boundary. Arming an id that is already armed
// replaces the pending entry; arming is never additive.
type Gateway interface {
	// CanScheduleExact reports whether exact scheduling is currently
	// authorized.
	CanScheduleExact(ctx context.Context) bool

	// RequestPermission starts the platform's authorization flow.
	RequestPermission(ctx context.Context) error

	// Arm schedules a firing at the given instant correlated to id.
	Arm(ctx context.Context, id string, at time.Time, meta Metadata) (Handle, error)

	// Disarm removes the pending timer for id, if any.
	Disarm(ctx context.Context, id string) error

	// DisarmAll removes every pending timer.
	DisarmAll(ctx context.Context) error
}
