// Package migrationlock provides a multi-process-safe file advisory lock
// guarding schema migration (SPEC_FULL.md §4.1).
package migrationlock

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"
)

// Lock guards the migration step for one database file via an advisory
// flock on a sibling lock file.
type Lock struct {
	path string
	file *os.File
}

// New creates a Lock for the database at dbPath, deriving the lock file
// path as "{dir}/.{base}.migration.lock".
func New(dbPath string) *Lock {
	dir := filepath.Dir(dbPath)
	base := filepath.Base(dbPath)
	return &Lock{path: filepath.Join(dir, "."+base+".migration.lock")}
}

// Acquire blocks until the exclusive lock is held, then returns a release
// function. Mirrors the source's blocking `with MigrationLock(...)` usage.
func (l *Lock) Acquire() (release func(), err error) {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open migration lock file: %w", err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		f.Close()
		return nil, fmt.Errorf("acquire migration lock: %w", err)
	}

	l.file = f
	return l.release, nil
}

// TryAcquire attempts a non-blocking lock immediately, then polls every
// 100ms until timeout elapses. Returns ok=false on deadline, mirroring the
// source's try_acquire(timeout) semantics.
func (l *Lock) TryAcquire(timeout time.Duration) (release func(), ok bool) {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, false
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err == nil {
		l.file = f
		return l.release, true
	}

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		<-ticker.C
		if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err == nil {
			l.file = f
			return l.release, true
		}
	}

	f.Close()
	return nil, false
}

func (l *Lock) release() {
	if l.file == nil {
		return
	}
	unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	l.file.Close()
	l.file = nil
}
