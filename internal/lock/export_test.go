package lock

// ForceRelease drops the lock for kind regardless of who holds it.
func ForceRelease(kind string) {
	mu.Lock()
	defer mu.Unlock()
	delete(holders, kind)
}
