package gateway

import (
	"bytes"
	"encoding/json"

	"github.com/georgeshao/fio-dashboard/pkg/types"
)

// legacyPage is the older paginated test run shape of the upstream.
type legacyPage[T any] struct {
	TestRuns []T `json:"test_runs"`
	Total    int `json:"total"`
	Page     int `json:"page"`
	PerPage  int `json:"per_page"`
}

// decodeList accepts a bare JSON array, a {data,total,limit,offset,has_more}
// envelope, or the legacy {test_runs,total,page,per_page} page. Anything else
// is a shape error.
func decodeList[T any](body []byte) (*types.ListEnvelope[T], error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, shapeError("empty body, expected a list")
	}

	switch body[0] {
	case '[':
		var items []T
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, shapeError("decode list: %v", err)
		}
		return &types.ListEnvelope[T]{
			Data:  nonNil(items),
			Total: len(items),
		}, nil

	case '{':
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(body, &fields); err != nil {
			return nil, shapeError("decode envelope: %v", err)
		}
		if raw, ok := fields["data"]; ok {
			if !isArray(raw) {
				return nil, shapeError("envelope data is not an array")
			}
			var env types.ListEnvelope[T]
			if err := json.Unmarshal(body, &env); err != nil {
				return nil, shapeError("decode envelope: %v", err)
			}
			env.Data = nonNil(env.Data)
			return &env, nil
		}
		if raw, ok := fields["test_runs"]; ok {
			if !isArray(raw) {
				return nil, shapeError("test_runs is not an array")
			}
			var page legacyPage[T]
			if err := json.Unmarshal(body, &page); err != nil {
				return nil, shapeError("decode page: %v", err)
			}
			return page.envelope(), nil
		}
		return nil, shapeError("object without a data array")
	}

	return nil, shapeError("expected a list, got %.32s", body)
}

// decodeObject requires a JSON object.
func decodeObject[T any](body []byte) (T, error) {
	var out T
	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '{' {
		return out, shapeError("expected an object, got %.32s", body)
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return out, shapeError("decode object: %v", err)
	}
	return out, nil
}

func (p legacyPage[T]) envelope() *types.ListEnvelope[T] {
	env := &types.ListEnvelope[T]{
		Data:  nonNil(p.TestRuns),
		Total: p.Total,
		Limit: p.PerPage,
	}
	if p.Page > 1 && p.PerPage > 0 {
		env.Offset = (p.Page - 1) * p.PerPage
	}
	env.HasMore = env.Offset+len(env.Data) < env.Total
	return env
}

func isArray(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '['
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
