//go:build !unix

package storage

// lockMemory is a no-op where memory locking is not available.
func lockMemory([]byte) error { return nil }

func unlockMemory([]byte) error { return nil }
