package runlock

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestAcquireAndRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locks", "run.lock")

	lock, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if err := lock.Unlock(); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}

	// Reacquire after release.
	lock, err = Acquire(path)
	if err != nil {
		t.Fatalf("second Acquire failed: %v", err)
	}
	defer lock.Unlock()
}

func TestAcquireHeldLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.lock")

	lock, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer lock.Unlock()

	if _, err := Acquire(path); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
}

func TestUnlockNil(t *testing.T) {
	var lock *Lock
	if err := lock.Unlock(); err != nil {
		t.Fatalf("nil Unlock should be a no-op, got %v", err)
	}
}
