package gateway

import (
	"sync"
	"time"

	"github.com/georgeshao/fio-dashboard/internal/coordinator"
)

// ResourceState is the view-facing status of one resource class. Callers get
// copies and must not mutate Data.
type ResourceState[T any] struct {
	Data        T
	Loaded      bool
	Loading     bool
	Error       error
	LastFetched time.Time
}

// stateSink receives the lifecycle of a fetch.
type stateSink[T any] interface {
	begin()
	settle(v T, err error, at time.Time)
}

type resource[T any] struct {
	mu      sync.Mutex
	state   ResourceState[T]
	pending int
}

func (r *resource[T]) begin() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pending++
	r.state.Loading = true
}

// settle ends one fetch. Aborted fetches only clear the loading flag.
func (r *resource[T]) settle(v T, err error, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pending > 0 {
		r.pending--
	}
	r.state.Loading = r.pending > 0

	switch {
	case err == nil:
		r.state.Data = v
		r.state.Loaded = true
		r.state.Error = nil
		r.state.LastFetched = at
	case coordinator.IsAborted(err):
	default:
		r.state.Error = err
	}
}

func (r *resource[T]) snapshot() ResourceState[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// clearError drops a stale error, e.g. after the user dismissed it.
func (r *resource[T]) clearError() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.Error = nil
}
