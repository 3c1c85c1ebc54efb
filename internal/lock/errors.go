package lock

import "errors"

// ErrLocked is returned by Acquire when the transport is held by another session.
// This is a sentinel error that can be checked with errors.Is().
var ErrLocked = errors.New("transport is held by another session")
