package lock

import (
	"fmt"
	"os"
	"time"
)

// LockInfo contains metadata about the session holding a transport lock.
type LockInfo struct {
	SetupID int
	Action  string
	Started time.Time
	PID     int
}

// NewLockInfo creates a LockInfo for the given setup and action, stamped now.
func NewLockInfo(setupID int, action string) *LockInfo {
	return &LockInfo{
		SetupID: setupID,
		Action:  action,
		Started: time.Now(),
		PID:     os.Getpid(),
	}
}

// Age returns how long ago the lock was acquired.
func (i *LockInfo) Age() time.Duration {
	return time.Since(i.Started)
}

// String returns a human-readable description of the holder.
func (i *LockInfo) String() string {
	return fmt.Sprintf("setup %d (%s, pid %d, %s ago)", i.SetupID, i.Action, i.PID, i.Age().Round(time.Millisecond))
}
