// Package records keeps the local, newest-first history of scan attempts.
package records

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
	"time"

	"github.com/AMEND09/ID-Scanner/internal/errors"
	"github.com/AMEND09/ID-Scanner/internal/kvstore"
	"github.com/AMEND09/ID-Scanner/internal/logger"
	"github.com/AMEND09/ID-Scanner/internal/scan"
)

// DefaultCapacity is the number of records kept when no capacity is configured.
const DefaultCapacity = 200

// Record is one attempted log entry.
type Record struct {
	Label     string         `json:"label"`
	Timestamp time.Time      `json:"timestamp"`
	Succeeded bool           `json:"succeeded"`
	Payload   *scan.Snapshot `json:"payload,omitempty"`
}

// ChangeType tells subscribers what happened to the store.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeResynced ChangeType = "resynced"
)

// Change is delivered to subscribers after the store was modified.
type Change struct {
	Type   ChangeType
	Record Record // set for ChangeAdded
	Count  int    // number of records affected
}

// Store is the ordered record history. Index 0 is the newest record.
type Store struct {
	mu          sync.RWMutex
	records     []Record
	capacity    int
	kv          kvstore.Store
	now         func() time.Time
	subscribers []func(Change)
	log         logger.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithCapacity overrides DefaultCapacity.
func WithCapacity(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// WithClock replaces time.Now for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New returns an empty store persisting to kv. Call Load to restore saved history.
func New(kv kvstore.Store, opts ...Option) *Store {
	s := &Store{
		capacity: DefaultCapacity,
		kv:       kv,
		now:      time.Now,
		log:      GetLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetLogger returns the records module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("records")
}

// Load restores persisted history. Corrupt state is logged and discarded.
func (s *Store) Load(ctx context.Context) error {
	raw, ok, err := s.kv.Get(ctx, kvstore.KeyRecentScans)
	if err != nil {
		return err
	}

	var loaded []Record
	if ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &loaded); err != nil {
			s.log.Warn("discarding unreadable scan history", logger.Error(err))
			loaded = nil
		}
	}
	if len(loaded) > s.capacity {
		loaded = loaded[:s.capacity]
	}

	s.mu.Lock()
	s.records = loaded
	s.mu.Unlock()

	s.log.Debug("scan history loaded", logger.Int("records", len(loaded)))
	return nil
}

// Subscribe registers fn for every change. fn runs synchronously after the store lock is released.
func (s *Store) Subscribe(fn func(Change)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// Add prepends a record stamped with the store clock, drops the oldest beyond capacity and
// persists. The record is kept in memory even when persisting fails; the error is returned.
func (s *Store) Add(ctx context.Context, label string, succeeded bool, payload *scan.Snapshot) (Record, error) {
	return s.AddAt(ctx, s.now(), label, succeeded, payload)
}

// AddAt is Add with an explicit timestamp, used when the read happened before the record
// is created.
func (s *Store) AddAt(ctx context.Context, at time.Time, label string, succeeded bool, payload *scan.Snapshot) (Record, error) {
	rec := Record{
		Label:     label,
		Timestamp: at,
		Succeeded: succeeded,
		Payload:   payload,
	}

	s.mu.Lock()
	s.records = slices.Insert(s.records, 0, rec)
	if len(s.records) > s.capacity {
		clear(s.records[s.capacity:])
		s.records = s.records[:s.capacity]
	}
	data, err := s.encodeLocked()
	subscribers := slices.Clone(s.subscribers)
	s.mu.Unlock()

	if err == nil {
		err = s.persist(ctx, data)
	}

	notify(subscribers, Change{Type: ChangeAdded, Record: rec, Count: 1})
	return rec, err
}

// MarkAllSucceeded flags every record as written and persists.
func (s *Store) MarkAllSucceeded(ctx context.Context) error {
	s.mu.Lock()
	for i := range s.records {
		s.records[i].Succeeded = true
	}
	count := len(s.records)
	data, err := s.encodeLocked()
	subscribers := slices.Clone(s.subscribers)
	s.mu.Unlock()

	if err == nil {
		err = s.persist(ctx, data)
	}

	notify(subscribers, Change{Type: ChangeResynced, Count: count})
	return err
}

// List returns up to limit newest records. A non-positive limit returns all of them.
func (s *Store) List(limit int) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.records) {
		limit = len(s.records)
	}
	return slices.Clone(s.records[:limit])
}

// Snapshot returns a copy of the whole history.
func (s *Store) Snapshot() []Record {
	return s.List(0)
}

// Len returns the number of records held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Capacity returns the maximum number of records kept.
func (s *Store) Capacity() int {
	return s.capacity
}

// Pending counts records not yet written remotely.
func (s *Store) Pending() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for i := range s.records {
		if !s.records[i].Succeeded {
			n++
		}
	}
	return n
}

func (s *Store) encodeLocked() ([]byte, error) {
	records := s.records
	if records == nil {
		records = []Record{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return nil, errors.New(err).
			Component("records").
			Category(errors.CategoryStorage).
			Context("operation", "encode").
			Build()
	}
	return data, nil
}

func (s *Store) persist(ctx context.Context, data []byte) error {
	if err := s.kv.Set(ctx, kvstore.KeyRecentScans, string(data)); err != nil {
		s.log.Warn("failed to persist scan history", logger.Error(err))
		return err
	}
	return nil
}

func notify(subscribers []func(Change), c Change) {
	for _, fn := range subscribers {
		fn(c)
	}
}
