// Package lock implements the process-wide transport locks. Only one session
// per transport kind may own the transport at a time; a second session fails
// fast instead of waiting.
package lock

import (
	"fmt"
	"sync"

	"github.com/rileyhilliard/doorctl/internal/errors"
)

// Lock represents an acquired transport lock.
type Lock struct {
	Kind string
	Info *LockInfo
	once sync.Once
}

var (
	mu      sync.Mutex
	holders = make(map[string]*LockInfo)
)

// Acquire takes the lock for a transport kind. It never waits: when the kind
// is already held it returns an error wrapping ErrLocked.
func Acquire(kind string, info *LockInfo) (*Lock, error) {
	if info == nil {
		info = NewLockInfo(-1, "")
	}

	mu.Lock()
	defer mu.Unlock()

	if holder, ok := holders[kind]; ok {
		return nil, errors.WrapWithCode(ErrLocked, errors.ErrLock,
			fmt.Sprintf("%s is already in use", kind),
			fmt.Sprintf("Held by %s. Wait for it to finish.", holder))
	}

	holders[kind] = info
	return &Lock{Kind: kind, Info: info}, nil
}

// Release frees the lock. It is safe to call more than once and on a nil Lock;
// only the first call has an effect.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}
	l.once.Do(func() {
		mu.Lock()
		defer mu.Unlock()
		if holders[l.Kind] == l.Info {
			delete(holders, l.Kind)
		}
	})
	return nil
}

// Held reports whether a session currently owns the transport kind.
func Held(kind string) bool {
	mu.Lock()
	defer mu.Unlock()
	_, ok := holders[kind]
	return ok
}

// Holder returns a description of the current holder of kind.
func Holder(kind string) string {
	mu.Lock()
	defer mu.Unlock()
	if info, ok := holders[kind]; ok {
		return info.String()
	}
	return "nobody"
}
