// ABOUTME: Coordinators serializing store access within and across processes
// ABOUTME: FileCoordinator pairs a mutex with a juju/fslock sentinel file

package keystore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/juju/fslock"
)

// Coordinator grants exclusive access to the store. Lock blocks until the
// caller holds the coordinator; there is no timeout.
type Coordinator interface {
	Lock() error
	Unlock() error
}

// FileCoordinator excludes goroutines with a mutex and processes with an
// advisory lock on a sentinel file.
type FileCoordinator struct {
	mu   sync.Mutex
	path string
	lck  *fslock.Lock
}

// NewFileCoordinator creates a coordinator locking the file at path,
// creating its parent directory if needed.
func NewFileCoordinator(path string) (*FileCoordinator, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}
	return &FileCoordinator{
		path: path,
		lck:  fslock.New(path),
	}, nil
}

// Path returns the sentinel file path.
func (c *FileCoordinator) Path() string {
	return c.path
}

func (c *FileCoordinator) Lock() error {
	c.mu.Lock()
	if err := c.lck.Lock(); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("acquiring %s: %w", c.path, err)
	}
	return nil
}

func (c *FileCoordinator) Unlock() error {
	defer c.mu.Unlock()
	if err := c.lck.Unlock(); err != nil {
		return fmt.Errorf("releasing %s: %w", c.path, err)
	}
	return nil
}

// MemoryCoordinator is a process-local Coordinator.
type MemoryCoordinator struct {
	mu sync.Mutex
}

// NewMemoryCoordinator creates a MemoryCoordinator.
func NewMemoryCoordinator() *MemoryCoordinator {
	return &MemoryCoordinator{}
}

func (c *MemoryCoordinator) Lock() error {
	c.mu.Lock()
	return nil
}

func (c *MemoryCoordinator) Unlock() error {
	c.mu.Unlock()
	return nil
}

// withCoordination runs fn while holding c. The coordinator is released on
// every return path, including panics in fn.
func withCoordination(c Coordinator, fn func() error) (err error) {
	if err := c.Lock(); err != nil {
		return err
	}
	defer func() {
		if unlockErr := c.Unlock(); unlockErr != nil {
			err = errors.Join(err, unlockErr)
		}
	}()
	return fn()
}
