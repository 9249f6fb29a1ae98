package filter

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/georgeshao/fio-dashboard/internal/storage"
	"github.com/georgeshao/fio-dashboard/pkg/types"
)

// Selection is a snapshot of the active filter state. Categories without
// values are left out.
type Selection map[Category][]Value

type Option func(*Engine)

// WithStore persists the selection under key after every mutation.
func WithStore(store storage.KV, key string) Option {
	return func(e *Engine) {
		e.store = store
		e.key = key
	}
}

func WithLogger(logger *zap.SugaredLogger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// Engine holds the active filter selection and evaluates records against it.
// A record passes when, for every category with selected values, its own
// value is one of them.
type Engine struct {
	mu        sync.RWMutex
	selection map[Category]*valueSet
	applied   bool
	options   *Options

	store  storage.KV
	key    string
	logger *zap.SugaredLogger
}

func New(opts ...Option) *Engine {
	e := &Engine{
		selection: make(map[Category]*valueSet),
		key:       storage.FilterSelectionKey,
		logger:    zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetOptions replaces the option universe used by IsAllowed. A nil options
// value makes every value allowed again.
func (e *Engine) SetOptions(o *Options) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.options = o
}

func (e *Engine) Options() *Options {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.options
}

// IsAllowed reports whether v may be selected for c. Until options are
// loaded every well-formed value is allowed.
func (e *Engine) IsAllowed(c Category, v Value) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.allowedLocked(c, v) == nil
}

func (e *Engine) allowedLocked(c Category, v Value) error {
	if !c.Valid() {
		return fmt.Errorf("%w: %v", ErrUnknownCategory, c)
	}
	if v.Kind() != c.Kind() {
		return fmt.Errorf("%w: %s expects a %s, got %v", ErrInvalidValue, c, c.Kind(), v)
	}
	if e.options != nil && !e.options.Contains(c, v) {
		return fmt.Errorf("%w: %s=%v", ErrNotAllowed, c, v)
	}
	return nil
}

// Toggle removes v if selected and adds it otherwise. It returns whether v is
// selected afterwards.
func (e *Engine) Toggle(ctx context.Context, c Category, v Value) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !c.Valid() {
		return false, fmt.Errorf("%w: %v", ErrUnknownCategory, c)
	}
	if set := e.selection[c]; set != nil && set.has(v) {
		e.removeLocked(c, v)
		e.changedLocked(ctx)
		return false, nil
	}
	if err := e.allowedLocked(c, v); err != nil {
		return false, err
	}
	e.addLocked(c, v)
	e.changedLocked(ctx)
	return true, nil
}

func (e *Engine) Add(ctx context.Context, c Category, v Value) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.allowedLocked(c, v); err != nil {
		return err
	}
	e.addLocked(c, v)
	e.changedLocked(ctx)
	return nil
}

// Remove is always permitted, even for values no longer among the options.
func (e *Engine) Remove(ctx context.Context, c Category, v Value) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !c.Valid() {
		return fmt.Errorf("%w: %v", ErrUnknownCategory, c)
	}
	e.removeLocked(c, v)
	e.changedLocked(ctx)
	return nil
}

// SetCategory replaces the selection of c. Either every value is accepted or
// the category is left untouched.
func (e *Engine) SetCategory(ctx context.Context, c Category, values []Value) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !c.Valid() {
		return fmt.Errorf("%w: %v", ErrUnknownCategory, c)
	}
	set := newValueSet()
	for _, v := range values {
		if err := e.allowedLocked(c, v); err != nil {
			return err
		}
		set.add(v)
	}

	if set.len() == 0 {
		delete(e.selection, c)
	} else {
		e.selection[c] = set
	}
	e.changedLocked(ctx)
	return nil
}

func (e *Engine) ClearCategory(ctx context.Context, c Category) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !c.Valid() {
		return fmt.Errorf("%w: %v", ErrUnknownCategory, c)
	}
	delete(e.selection, c)
	e.changedLocked(ctx)
	return nil
}

func (e *Engine) ClearAll(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.selection = make(map[Category]*valueSet)
	e.changedLocked(ctx)
}

// Apply marks the current selection as committed.
func (e *Engine) Apply(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.applied = true
	e.persistLocked(ctx)
}

// Prune drops selected values that the loaded options no longer list and
// returns how many were dropped.
func (e *Engine) Prune(ctx context.Context) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.options == nil {
		return 0
	}
	dropped := 0
	for c, set := range e.selection {
		for _, v := range set.values() {
			if !e.options.Contains(c, v) {
				e.removeLocked(c, v)
				dropped++
			}
		}
	}
	if dropped > 0 {
		e.logger.Infow("Dropped filter values missing from options", "count", dropped)
		e.changedLocked(ctx)
	}
	return dropped
}

func (e *Engine) IsValueActive(c Category, v Value) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	set := e.selection[c]
	return set != nil && set.has(v)
}

func (e *Engine) Values(c Category) []Value {
	e.mu.RLock()
	defer e.mu.RUnlock()

	set := e.selection[c]
	if set == nil {
		return nil
	}
	return set.values()
}

func (e *Engine) Snapshot() Selection {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() Selection {
	out := make(Selection, len(e.selection))
	for c, set := range e.selection {
		out[c] = set.values()
	}
	return out
}

// HasActive reports whether any category constrains matching.
func (e *Engine) HasActive() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.selection) > 0
}

func (e *Engine) Applied() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.applied
}

func (e *Engine) Matches(r types.TestRun) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.matchesLocked(&r)
}

func (e *Engine) matchesLocked(r *types.TestRun) bool {
	for c, set := range e.selection {
		if set.len() == 0 {
			continue
		}
		v, ok := c.field(r)
		if !ok || !set.has(v) {
			return false
		}
	}
	return true
}

// Filter returns the records that match, preserving order.
func (e *Engine) Filter(runs []types.TestRun) []types.TestRun {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]types.TestRun, 0, len(runs))
	for i := range runs {
		if e.matchesLocked(&runs[i]) {
			out = append(out, runs[i])
		}
	}
	return out
}

// Query converts the categories the upstream can filter on into a server-side
// query. Other categories are only applied locally.
func (e *Engine) Query() types.TestRunQuery {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return types.TestRunQuery{
		Hostnames:   e.stringsLocked(Hostnames),
		DriveTypes:  e.stringsLocked(DriveTypes),
		DriveModels: e.stringsLocked(DriveModels),
		Protocols:   e.stringsLocked(Protocols),
		Patterns:    e.stringsLocked(Patterns),
		BlockSizes:  e.stringsLocked(BlockSizes),
		Syncs:       e.intsLocked(Syncs),
		QueueDepths: e.intsLocked(QueueDepths),
		Directs:     e.intsLocked(Directs),
		NumJobs:     e.intsLocked(NumJobs),
	}
}

func (e *Engine) stringsLocked(c Category) []string {
	set := e.selection[c]
	if set == nil {
		return nil
	}
	out := make([]string, 0, set.len())
	for _, v := range set.order {
		out = append(out, v.String())
	}
	return out
}

func (e *Engine) intsLocked(c Category) []int {
	set := e.selection[c]
	if set == nil {
		return nil
	}
	out := make([]int, 0, set.len())
	for _, v := range set.order {
		if n, ok := v.Int(); ok {
			out = append(out, n)
		}
	}
	return out
}

func (e *Engine) addLocked(c Category, v Value) {
	set := e.selection[c]
	if set == nil {
		set = newValueSet()
		e.selection[c] = set
	}
	set.add(v)
}

func (e *Engine) removeLocked(c Category, v Value) {
	set := e.selection[c]
	if set == nil {
		return
	}
	set.remove(v)
	if set.len() == 0 {
		delete(e.selection, c)
	}
}

func (e *Engine) changedLocked(ctx context.Context) {
	e.applied = false
	e.persistLocked(ctx)
}
