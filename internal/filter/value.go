package filter

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Value is a filter scalar: a string or an integer. It is comparable, so it
// can key maps directly.
type Value struct {
	str   string
	num   int
	isNum bool
}

func StringValue(s string) Value {
	return Value{str: s}
}

func IntValue(n int) Value {
	return Value{num: n, isNum: true}
}

func (v Value) Kind() Kind {
	if v.isNum {
		return KindNumber
	}
	return KindString
}

func (v Value) Int() (int, bool) {
	return v.num, v.isNum
}

func (v Value) String() string {
	if v.isNum {
		return strconv.Itoa(v.num)
	}
	return v.str
}

// Any returns the value as a JSON-friendly string or int.
func (v Value) Any() any {
	if v.isNum {
		return v.num
	}
	return v.str
}

// ParseValue coerces decoded JSON or query-string input to the kind of c.
// Numeric categories accept integral numbers and their decimal string form.
func ParseValue(c Category, raw any) (Value, error) {
	if !c.Valid() {
		return Value{}, fmt.Errorf("%w: %v", ErrUnknownCategory, c)
	}

	if c.Kind() == KindString {
		s, ok := raw.(string)
		if !ok || s == "" {
			return Value{}, fmt.Errorf("%w: %s expects a non-empty string, got %v", ErrInvalidValue, c, raw)
		}
		return StringValue(s), nil
	}

	switch n := raw.(type) {
	case int:
		return IntValue(n), nil
	case int64:
		if n < math.MinInt || n > math.MaxInt {
			break
		}
		return IntValue(int(n)), nil
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) || n < math.MinInt || n >= math.MaxInt {
			break
		}
		return IntValue(int(n)), nil
	case json.Number:
		if i, err := strconv.Atoi(n.String()); err == nil {
			return IntValue(i), nil
		}
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return IntValue(i), nil
		}
	}
	return Value{}, fmt.Errorf("%w: %s expects an integer, got %v", ErrInvalidValue, c, raw)
}

// ParseValues is ParseValue over a list; it fails on the first bad element.
func ParseValues(c Category, raw []any) ([]Value, error) {
	values := make([]Value, 0, len(raw))
	for _, r := range raw {
		v, err := ParseValue(c, r)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

// valueSet is an insertion-ordered set. Order matters only for display.
type valueSet struct {
	order []Value
	index map[Value]struct{}
}

func newValueSet() *valueSet {
	return &valueSet{index: make(map[Value]struct{})}
}

func (s *valueSet) has(v Value) bool {
	_, ok := s.index[v]
	return ok
}

func (s *valueSet) add(v Value) bool {
	if s.has(v) {
		return false
	}
	s.index[v] = struct{}{}
	s.order = append(s.order, v)
	return true
}

func (s *valueSet) remove(v Value) bool {
	if !s.has(v) {
		return false
	}
	delete(s.index, v)
	for i, existing := range s.order {
		if existing == v {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

func (s *valueSet) len() int {
	return len(s.order)
}

func (s *valueSet) values() []Value {
	return append([]Value(nil), s.order...)
}
