//go:build unix

package storage

import "golang.org/x/sys/unix"

// lockMemory keeps b out of swap.
func lockMemory(b []byte) error {
	return unix.Mlock(b)
}

func unlockMemory(b []byte) error {
	return unix.Munlock(b)
}
