package observer

import (
	"log/slog"
	"sync"

	"github.com/garrettladley/notisync/internal/xslog"
)

// Set is an ordered set of callbacks. Add returns the func that removes the
// callback again; calling it more than once is a no-op.
type Set[T any] struct {
	mu      sync.Mutex
	nextID  uint64
	entries []entry[T]
	logger  *slog.Logger
}

type entry[T any] struct {
	id uint64
	fn func(T)
}

func (s *Set[T]) SetLogger(logger *slog.Logger) {
	s.mu.Lock()
	s.logger = logger
	s.mu.Unlock()
}

func (s *Set[T]) Add(fn func(T)) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.entries = append(s.entries, entry[T]{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { s.remove(id) })
	}
}

func (s *Set[T]) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.entries {
		if e.id == id {
			s.entries = append(s.entries[:i:i], s.entries[i+1:]...)
			return
		}
	}
}

func (s *Set[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Notify calls every callback in registration order. A panicking callback is
// logged and does not stop the rest. Must not be called with caller locks held.
func (s *Set[T]) Notify(v T) {
	s.mu.Lock()
	snapshot := make([]entry[T], len(s.entries))
	copy(snapshot, s.entries)
	logger := s.logger
	s.mu.Unlock()

	for _, e := range snapshot {
		call(logger, e.fn, v)
	}
}

func call[T any](logger *slog.Logger, fn func(T), v T) {
	defer func() {
		if r := recover(); r != nil {
			if logger == nil {
				logger = slog.Default()
			}
			logger.Error("observer panicked", xslog.ErrorGroupWithStack(r))
		}
	}()
	fn(v)
}
