// Package clientcache is a keyed cache of query results that supports
// optimistic mutation with rollback and authoritative refetch.
package clientcache

import (
	"context"
	"errors"
	"sync"

	"github.com/yungbote/insightflow-backend/internal/pkg/logger"
)

// Fetcher loads the authoritative value for key.
type Fetcher[V any] func(ctx context.Context, key string) (V, error)

type Notification struct {
	Key     string
	Message string
	Err     error
}

// Notifier surfaces failures to whoever presents them.
type Notifier interface {
	Notify(n Notification)
}

type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

type Options[V any] struct {
	Fetcher  Fetcher[V]
	Notifier Notifier
	// Clone copies a value before a mutation edits it. Values that share
	// memory (slices, maps, pointers) need one.
	Clone func(V) V
	// Retries is the number of extra attempts for a failing fetch. Negative
	// disables retry; zero means one retry.
	Retries int
	Log     *logger.Logger
}

// Snapshot is a key's state at one point: the value, whether one exists, and
// the version it was at.
type Snapshot[V any] struct {
	Value   V
	Has     bool
	Version uint64
}

type entry[V any] struct {
	value   V
	has     bool
	version uint64
	pending int
	dirty   bool

	fetchGen    uint64
	cancelFetch context.CancelFunc
}

type Store[V any] struct {
	mu      sync.Mutex
	entries map[string]*entry[V]

	fetcher  Fetcher[V]
	notifier Notifier
	clone    func(V) V
	retries  int
	log      *logger.Logger

	root   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var ErrNoFetcher = errors.New("clientcache: no fetcher configured")

func New[V any](opts Options[V]) *Store[V] {
	retries := opts.Retries
	switch {
	case retries == 0:
		retries = 1
	case retries < 0:
		retries = 0
	}
	clone := opts.Clone
	if clone == nil {
		clone = func(v V) V { return v }
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = NotifierFunc(func(Notification) {})
	}
	root, cancel := context.WithCancel(context.Background())
	s := &Store[V]{
		entries:  map[string]*entry[V]{},
		fetcher:  opts.Fetcher,
		notifier: notifier,
		clone:    clone,
		retries:  retries,
		root:     root,
		cancel:   cancel,
	}
	if opts.Log != nil {
		s.log = opts.Log.With("component", "clientcache")
	}
	return s
}

func (s *Store[V]) entryLocked(key string) *entry[V] {
	e, ok := s.entries[key]
	if !ok {
		e = &entry[V]{}
		s.entries[key] = e
	}
	return e
}

// Get returns a copy of the cached value.
func (s *Store[V]) Get(key string) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok || !e.has {
		var zero V
		return zero, false
	}
	return s.clone(e.value), true
}

// Set stores an authoritative value.
func (s *Store[V]) Set(key string, v V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entryLocked(key)
	e.value = s.clone(v)
	e.has = true
	e.version++
	e.dirty = false
}

func (s *Store[V]) Snapshot(key string) Snapshot[V] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(s.entryLocked(key))
}

func (s *Store[V]) snapshotLocked(e *entry[V]) Snapshot[V] {
	snap := Snapshot[V]{Has: e.has, Version: e.version}
	if e.has {
		snap.Value = s.clone(e.value)
	}
	return snap
}

// Pending reports how many mutations on key have not settled.
func (s *Store[V]) Pending(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[key]; ok {
		return e.pending
	}
	return 0
}

// CancelFetch stops an in-flight fetch for key and makes sure its result, if
// it still lands, is discarded.
func (s *Store[V]) CancelFetch(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelFetchLocked(s.entryLocked(key))
}

func (s *Store[V]) cancelFetchLocked(e *entry[V]) {
	e.fetchGen++
	if e.cancelFetch != nil {
		e.cancelFetch()
		e.cancelFetch = nil
	}
}

// Fetch loads key through the Fetcher, retrying failures. The result is stored
// only if no mutation is pending and no newer fetch has started.
func (s *Store[V]) Fetch(ctx context.Context, key string) (V, error) {
	var zero V
	if s.fetcher == nil {
		return zero, ErrNoFetcher
	}

	s.mu.Lock()
	e := s.entryLocked(key)
	s.cancelFetchLocked(e)
	fctx, cancel := context.WithCancel(ctx)
	gen := e.fetchGen
	e.cancelFetch = cancel
	s.mu.Unlock()
	defer cancel()

	var (
		v   V
		err error
	)
	for attempt := 0; attempt <= s.retries; attempt++ {
		v, err = s.fetcher(fctx, key)
		if err == nil || fctx.Err() != nil {
			break
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e.fetchGen == gen {
		e.cancelFetch = nil
	}
	if err != nil {
		return zero, err
	}
	if e.fetchGen != gen || e.pending > 0 {
		if s.log != nil {
			s.log.Debug("Discarded stale fetch", "key", key)
		}
		return v, nil
	}
	e.value = s.clone(v)
	e.has = true
	e.version++
	e.dirty = false
	return v, nil
}

// Invalidate marks key stale. With no mutation pending it refetches right away.
func (s *Store[V]) Invalidate(ctx context.Context, key string) error {
	s.mu.Lock()
	e := s.entryLocked(key)
	e.dirty = true
	pending := e.pending
	s.mu.Unlock()
	if pending > 0 || s.fetcher == nil {
		return nil
	}
	_, err := s.Fetch(ctx, key)
	return err
}

// Wait blocks until background refetches have finished.
func (s *Store[V]) Wait() {
	s.wg.Wait()
}

// Close cancels background refetches and waits for them.
func (s *Store[V]) Close() {
	s.cancel()
	s.mu.Lock()
	for _, e := range s.entries {
		s.cancelFetchLocked(e)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Store[V]) refetchInBackground(key string) {
	if s.fetcher == nil || s.root.Err() != nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if _, err := s.Fetch(s.root, key); err != nil && !errors.Is(err, context.Canceled) {
			s.notifier.Notify(Notification{Key: key, Message: "Could not refresh data", Err: err})
		}
	}()
}
