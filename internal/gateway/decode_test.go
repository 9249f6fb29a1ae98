package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/georgeshao/fio-dashboard/pkg/types"
)

func TestDecodeList(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantLen int
		total   int
		offset  int
		hasMore bool
	}{
		{"bare array", `[{"id":1},{"id":2}]`, 2, 2, 0, false},
		{"empty array", ` [] `, 0, 0, 0, false},
		{"envelope", `{"data":[{"id":3}],"total":10,"limit":1,"offset":4,"has_more":true}`, 1, 10, 4, true},
		{"legacy page", `{"test_runs":[{"id":1},{"id":2}],"total":5,"page":2,"per_page":2}`, 2, 5, 2, true},
		{"legacy last page", `{"test_runs":[{"id":5}],"total":5,"page":3,"per_page":2}`, 1, 5, 4, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := decodeList[types.TestRun]([]byte(tt.body))
			require.NoError(t, err)
			assert.Len(t, env.Data, tt.wantLen)
			assert.NotNil(t, env.Data)
			assert.Equal(t, tt.total, env.Total)
			assert.Equal(t, tt.offset, env.Offset)
			assert.Equal(t, tt.hasMore, env.HasMore)
		})
	}
}

func TestDecodeListRejectsOtherShapes(t *testing.T) {
	bodies := []string{
		``,
		`null`,
		`"runs"`,
		`{"items":[]}`,
		`{"data":{"id":1}}`,
		`{"data":null}`,
		`{"test_runs":"none"}`,
		`[1,2,3]`,
		`[{"id":1}`,
	}

	for _, body := range bodies {
		_, err := decodeList[types.TestRun]([]byte(body))
		assert.ErrorIs(t, err, ErrInvalidShape, "body %q", body)
	}
}

func TestDecodeObject(t *testing.T) {
	h, err := decodeObject[types.Health]([]byte(`{"status":"healthy","version":"1.0.0"}`))
	require.NoError(t, err)
	assert.Equal(t, "healthy", h.Status)

	for _, body := range []string{`[]`, `null`, `"ok"`, `{"status":`} {
		_, err := decodeObject[types.Health]([]byte(body))
		assert.ErrorIs(t, err, ErrInvalidShape, "body %q", body)
	}
}

func TestStatusError(t *testing.T) {
	err := statusError(403, []byte(`{"detail":"Admin access required"}`))
	assert.Equal(t, "Admin access required", err.Message)
	assert.Equal(t, "upstream returned 403: Admin access required", err.Error())
	assert.False(t, err.Unauthorized())

	err = statusError(500, []byte(`<html>oops</html>`))
	assert.Equal(t, "Internal Server Error", err.Message)
	assert.Equal(t, "<html>oops</html>", err.Details)

	err = statusError(401, []byte(`{"error":"token expired"}`))
	assert.Equal(t, "token expired", err.Message)
	assert.True(t, err.Unauthorized())
}
