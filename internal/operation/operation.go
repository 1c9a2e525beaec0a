// Package operation provides the domain model for async snapshot operations.
// An Operation moves through a linear lifecycle:
//
//	pending → running → complete | failed.
//
// The store is the authoritative source of truth for operation state; HTTP
// handlers read and write exclusively through it.
package operation

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle state of an operation.
type Status string

const (
	StatusPending  Status = "pending"
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
)

// Operation represents a single async snapshot job.
type Operation struct {
	ID        string    `json:"id"`
	Status    Status    `json:"status"`
	Root      string    `json:"root"`
	Prefix    string    `json:"prefix"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Key and Location are populated once the operation reaches
	// StatusComplete.
	Key      string `json:"key,omitempty"`
	Location string `json:"location,omitempty"`

	// Error is non-empty if the operation reached StatusFailed.
	Error string `json:"error,omitempty"`
}

// Store is the interface for persisting and retrieving operations.
type Store interface {
	Create(root, prefix string) (*Operation, error)
	Get(id string) (*Operation, error)
	MarkRunning(id string) error
	MarkComplete(id, key, location string) error
	MarkFailed(id string, err error) error
}

// MemoryStore is a concurrency-safe in-memory Store implementation.
type MemoryStore struct {
	mu  sync.RWMutex
	ops map[string]*Operation
	now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{ops: make(map[string]*Operation), now: time.Now}
}

func (s *MemoryStore) Create(root, prefix string) (*Operation, error) {
	now := s.now()
	op := &Operation{
		ID:        uuid.New().String(),
		Status:    StatusPending,
		Root:      root,
		Prefix:    prefix,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.ops[op.ID] = op
	s.mu.Unlock()

	copy := *op
	return &copy, nil
}

func (s *MemoryStore) Get(id string) (*Operation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	op, ok := s.ops[id]
	if !ok {
		return nil, fmt.Errorf("operation %q not found", id)
	}
	// Return a copy to prevent callers from mutating internal state.
	copy := *op
	return &copy, nil
}

func (s *MemoryStore) MarkRunning(id string) error {
	return s.update(id, func(op *Operation) {
		op.Status = StatusRunning
	})
}

func (s *MemoryStore) MarkComplete(id, key, location string) error {
	return s.update(id, func(op *Operation) {
		op.Status = StatusComplete
		op.Key = key
		op.Location = location
	})
}

func (s *MemoryStore) MarkFailed(id string, err error) error {
	return s.update(id, func(op *Operation) {
		op.Status = StatusFailed
		op.Error = err.Error()
	})
}

func (s *MemoryStore) update(id string, fn func(*Operation)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	op, ok := s.ops[id]
	if !ok {
		return fmt.Errorf("operation %q not found", id)
	}
	fn(op)
	op.UpdatedAt = s.now()
	return nil
}
