package clientcache

import "context"

// Mutation describes one optimistic change to a cached key.
type Mutation[V any] struct {
	Key string
	// Apply returns the speculative value. It receives a copy of the current
	// value; has is false when nothing is cached yet.
	Apply func(current V, has bool) V
	// Call performs the server mutation.
	Call func(ctx context.Context) error
	// FailureMessage is shown through the Notifier when Call fails.
	FailureMessage string
}

// Mutate applies m optimistically, calls the server, then reconciles:
//
//   - on failure, the key is restored to the snapshot this mutation captured if
//     no later change has been applied since; otherwise it is marked dirty;
//   - on success, the key is marked dirty;
//   - once no mutation on the key is pending, a dirty key is refetched.
func Mutate[V any](ctx context.Context, s *Store[V], m Mutation[V]) error {
	s.mu.Lock()
	e := s.entryLocked(m.Key)
	s.cancelFetchLocked(e)
	snap := s.snapshotLocked(e)

	var current V
	if e.has {
		current = s.clone(e.value)
	}
	if m.Apply != nil {
		e.value = m.Apply(current, e.has)
		e.has = true
	}
	e.version++
	mine := e.version
	e.pending++
	s.mu.Unlock()

	err := m.Call(ctx)

	s.mu.Lock()
	e.pending--
	if err != nil {
		if e.version == mine {
			e.value = snap.Value
			e.has = snap.Has
			e.version++
		} else {
			e.dirty = true
		}
	} else {
		e.dirty = true
	}
	settle := e.pending == 0 && e.dirty
	s.mu.Unlock()

	if err != nil {
		msg := m.FailureMessage
		if msg == "" {
			msg = "Something went wrong"
		}
		s.notifier.Notify(Notification{Key: m.Key, Message: msg, Err: err})
	}
	if settle {
		s.refetchInBackground(m.Key)
	}
	return err
}
