package filter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/georgeshao/fio-dashboard/internal/metrics"
	"github.com/georgeshao/fio-dashboard/internal/storage"
)

const persistVersion = 1

type persistedState struct {
	Version int              `json:"version"`
	Filters map[string][]any `json:"filters"`
	Applied bool             `json:"applied"`
}

// Marshal encodes a selection in the persisted format.
func Marshal(sel Selection, applied bool) ([]byte, error) {
	state := persistedState{
		Version: persistVersion,
		Filters: make(map[string][]any, len(sel)),
		Applied: applied,
	}
	for c, values := range sel {
		if len(values) == 0 {
			continue
		}
		raw := make([]any, len(values))
		for i, v := range values {
			raw[i] = v.Any()
		}
		state.Filters[c.String()] = raw
	}
	return json.Marshal(state)
}

// Unmarshal decodes a persisted selection. A payload that is not exactly the
// expected shape is rejected as a whole.
func Unmarshal(data []byte) (Selection, bool, error) {
	var state persistedState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, false, fmt.Errorf("failed to decode filter state: %w", err)
	}
	if state.Version != persistVersion {
		return nil, false, fmt.Errorf("unsupported filter state version %d", state.Version)
	}
	if state.Filters == nil {
		return nil, false, errors.New("filter state has no filters object")
	}

	sel := make(Selection, len(state.Filters))
	for name, raw := range state.Filters {
		c, err := ParseCategory(name)
		if err != nil {
			return nil, false, err
		}
		values, err := ParseValues(c, raw)
		if err != nil {
			return nil, false, err
		}
		if len(values) > 0 {
			sel[c] = values
		}
	}
	return sel, state.Applied, nil
}

// persistLocked writes the selection to the store. Failures are logged and
// counted; the in-memory state stays authoritative.
func (e *Engine) persistLocked(ctx context.Context) {
	if e.store == nil {
		return
	}
	data, err := Marshal(e.snapshotLocked(), e.applied)
	if err != nil {
		metrics.RecordPersistFailure()
		e.logger.Warnw("Failed to encode filter state", "error", err)
		return
	}
	if err := e.store.Set(ctx, e.key, string(data)); err != nil {
		metrics.RecordPersistFailure()
		e.logger.Warnw("Failed to persist filter state", "key", e.key, "error", err)
	}
}

// Restore loads the persisted selection, replacing the current one. It returns
// false and leaves the engine empty when nothing valid is stored.
func (e *Engine) Restore(ctx context.Context) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.selection = make(map[Category]*valueSet)
	e.applied = false

	if e.store == nil {
		return false
	}
	data, err := e.store.Get(ctx, e.key)
	if errors.Is(err, storage.ErrNotFound) {
		return false
	}
	if err != nil {
		e.logger.Warnw("Failed to read filter state", "key", e.key, "error", err)
		return false
	}

	sel, applied, err := Unmarshal([]byte(data))
	if err != nil {
		e.logger.Warnw("Discarding invalid filter state", "key", e.key, "error", err)
		return false
	}
	for c, values := range sel {
		set := newValueSet()
		for _, v := range values {
			set.add(v)
		}
		e.selection[c] = set
	}
	e.applied = applied
	e.logger.Infow("Restored filter state", "categories", len(sel), "applied", applied)
	return true
}
