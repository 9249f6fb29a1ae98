package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

var (
	// ErrAborted is the outcome of a cancelled request. It is not a failure and
	// callers are expected to drop it silently.
	ErrAborted = errors.New("request aborted")

	// ErrSuperseded is returned when a newer request took over the same slot.
	ErrSuperseded = fmt.Errorf("%w: superseded by a newer request", ErrAborted)
)

// IsAborted reports whether err is a cancellation rather than a real failure.
func IsAborted(err error) bool {
	return errors.Is(err, ErrAborted) || errors.Is(err, context.Canceled)
}

// SlotKey identifies a logical request slot such as "GET:/api/test-runs/".
func SlotKey(method, endpoint string) string {
	return method + ":" + endpoint
}

// Scope is the cancellation token of one request slot. Cancel is the only way
// to abort it; Release ends its lifetime once the request has settled.
type Scope struct {
	slot   string
	ctx    context.Context
	cancel context.CancelCauseFunc
	owner  *Coordinator
}

func (s *Scope) Slot() string {
	return s.slot
}

func (s *Scope) Context() context.Context {
	return s.ctx
}

// Cancel aborts the scope. Cancelling twice, or after Release, is a no-op.
func (s *Scope) Cancel() {
	s.cancel(ErrAborted)
}

// Current reports whether the scope is still the registered token of its slot
// and has not been cancelled.
func (s *Scope) Current() bool {
	if s.ctx.Err() != nil {
		return false
	}
	s.owner.mu.Lock()
	defer s.owner.mu.Unlock()
	return s.owner.scopes[s.slot] == s
}

// Commit runs apply only if the scope is still current, holding the slot
// registry while it runs so no newer scope can take over in between. It
// reports whether apply ran.
func (s *Scope) Commit(apply func()) bool {
	s.owner.mu.Lock()
	defer s.owner.mu.Unlock()

	if s.ctx.Err() != nil || s.owner.scopes[s.slot] != s {
		return false
	}
	apply()
	return true
}

// Err returns the cancellation cause, or nil while the scope is live.
func (s *Scope) Err() error {
	if s.ctx.Err() == nil {
		return nil
	}
	return context.Cause(s.ctx)
}

// Release unregisters the scope if it still owns its slot and frees its context.
func (s *Scope) Release() {
	s.owner.mu.Lock()
	if s.owner.scopes[s.slot] == s {
		delete(s.owner.scopes, s.slot)
	}
	s.owner.mu.Unlock()
	s.cancel(ErrAborted)
}

// Coordinator shares in-flight requests between identical callers and keeps
// one cancellation scope per request slot.
type Coordinator struct {
	group singleflight.Group

	mu       sync.Mutex
	scopes   map[string]*Scope
	inflight map[string]int
}

func New() *Coordinator {
	return &Coordinator{
		scopes:   make(map[string]*Scope),
		inflight: make(map[string]int),
	}
}

// Acquire issues a new scope for slot, cancelling the one it replaces. The
// scope inherits values but not cancellation from parent.
func (c *Coordinator) Acquire(parent context.Context, slot string) *Scope {
	ctx, cancel := context.WithCancelCause(context.WithoutCancel(parent))
	scope := &Scope{
		slot:   slot,
		ctx:    ctx,
		cancel: cancel,
		owner:  c,
	}

	c.mu.Lock()
	previous := c.scopes[slot]
	c.scopes[slot] = scope
	c.mu.Unlock()

	if previous != nil {
		previous.cancel(ErrSuperseded)
	}
	return scope
}

// Cancel aborts the current scope of slot, if any.
func (c *Coordinator) Cancel(slot string) {
	c.mu.Lock()
	scope := c.scopes[slot]
	delete(c.scopes, slot)
	c.mu.Unlock()

	if scope != nil {
		scope.Cancel()
	}
}

func (c *Coordinator) CancelAll() {
	c.mu.Lock()
	scopes := c.scopes
	c.scopes = make(map[string]*Scope)
	c.mu.Unlock()

	for _, scope := range scopes {
		scope.Cancel()
	}
}

// Active returns the number of slots holding a live scope.
func (c *Coordinator) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.scopes)
}

// InFlight reports whether a request for key is currently running.
func (c *Coordinator) InFlight(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inflight[key] > 0
}

// Pending returns the number of distinct keys with a running request.
func (c *Coordinator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.inflight)
}

// Do runs fn at most once per key at any instant. Callers arriving while a
// request for key is running wait for its result; shared is true when the
// result went to more than one caller. Only the
// caller that starts the request acquires a scope for slot, so identical calls
// never supersede each other. A waiter whose ctx ends gets ErrAborted without
// affecting the running request.
func (c *Coordinator) Do(ctx context.Context, slot, key string, fn func(*Scope) (any, error)) (v any, shared bool, err error) {
	ch := c.group.DoChan(key, func() (any, error) {
		c.begin(key)
		defer c.end(key)

		scope := c.Acquire(ctx, slot)
		defer scope.Release()

		return fn(scope)
	})

	select {
	case res := <-ch:
		return res.Val, res.Shared, res.Err
	case <-ctx.Done():
		return nil, false, fmt.Errorf("%w: %v", ErrAborted, context.Cause(ctx))
	}
}

// Run is the typed form of Do.
func Run[T any](ctx context.Context, c *Coordinator, slot, key string, fn func(*Scope) (T, error)) (T, bool, error) {
	v, shared, err := c.Do(ctx, slot, key, func(s *Scope) (any, error) {
		return fn(s)
	})
	if err != nil {
		var zero T
		return zero, shared, err
	}
	typed, ok := v.(T)
	if !ok {
		var zero T
		return zero, shared, fmt.Errorf("coordinator: unexpected result type %T for key %s", v, key)
	}
	return typed, shared, nil
}

func (c *Coordinator) begin(key string) {
	c.mu.Lock()
	c.inflight[key]++
	c.mu.Unlock()
}

func (c *Coordinator) end(key string) {
	c.mu.Lock()
	if c.inflight[key] <= 1 {
		delete(c.inflight, key)
	} else {
		c.inflight[key]--
	}
	c.mu.Unlock()
}
