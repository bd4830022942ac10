package recordstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

type registered interface {
	Invalidate()
	Reset(ctx context.Context) error
}

// Store groups the collections that share one backend.
type Store struct {
	backend Backend
	logger  *zap.SugaredLogger
	now     func() time.Time

	mu          sync.RWMutex
	collections map[string]registered
	hooks       []func(name string)

	loads        atomic.Int64
	writes       atomic.Int64
	failedWrites atomic.Int64
}

type Option func(*Store)

func WithLogger(logger *zap.SugaredLogger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func New(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend:     backend,
		logger:      zap.NewNop().Sugar(),
		now:         func() time.Time { return time.Now().UTC() },
		collections: make(map[string]registered),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) register(name string, c registered) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.collections[name]; exists {
		panic("recordstore: collection registered twice: " + name)
	}
	s.collections[name] = c
}

// Names lists registered collections in sorted order.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Invalidate drops the cached document of a collection so the next access
// reloads it from the backend, then runs the OnInvalidate hooks.
func (s *Store) Invalidate(name string) {
	s.mu.RLock()
	c, ok := s.collections[name]
	s.mu.RUnlock()
	if !ok {
		return
	}
	c.Invalidate()
	s.runHooks(name)
}

func (s *Store) runHooks(name string) {
	s.mu.RLock()
	hooks := append([]func(string){}, s.hooks...)
	s.mu.RUnlock()
	for _, fn := range hooks {
		fn(name)
	}
}

// Reset empties the named collections, or every registered collection when
// no names are given.
func (s *Store) Reset(ctx context.Context, names ...string) error {
	if len(names) == 0 {
		names = s.Names()
	}
	for _, name := range names {
		s.mu.RLock()
		c, ok := s.collections[name]
		s.mu.RUnlock()
		if !ok {
			return fmt.Errorf("reset %s: %w", name, ErrInvalidName)
		}
		if err := c.Reset(ctx); err != nil {
			return err
		}
		s.runHooks(name)
	}
	return nil
}

func (s *Store) OnInvalidate(fn func(name string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, fn)
}

type Stats struct {
	Collections  []string `json:"collections"`
	Loads        int64    `json:"loads"`
	Writes       int64    `json:"writes"`
	FailedWrites int64    `json:"failed_writes"`
}

func (s *Store) Stats() Stats {
	return Stats{
		Collections:  s.Names(),
		Loads:        s.loads.Load(),
		Writes:       s.writes.Load(),
		FailedWrites: s.failedWrites.Load(),
	}
}
