package filter

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/georgeshao/fio-dashboard/pkg/types"
)

func strPtr(s string) *string { return &s }

func intPtr(n int) *int { return &n }

func run(id int64, blockSize, protocol, hostname string) types.TestRun {
	return types.TestRun{
		ID:               id,
		BlockSize:        blockSize,
		ReadWritePattern: "randread",
		QueueDepth:       32,
		Protocol:         strPtr(protocol),
		Hostname:         strPtr(hostname),
		DriveModel:       "Samsung 980",
	}
}

func TestMatchesAndAcrossOrWithin(t *testing.T) {
	ctx := context.Background()
	e := New()

	require.NoError(t, e.SetCategory(ctx, BlockSizes, []Value{StringValue("4K"), StringValue("8K")}))
	require.NoError(t, e.SetCategory(ctx, Protocols, []Value{StringValue("NVMe")}))

	assert.True(t, e.Matches(run(1, "4K", "NVMe", "server-01")))
	assert.True(t, e.Matches(run(2, "8K", "NVMe", "server-01")), "any selected value within a category passes")
	assert.False(t, e.Matches(run(3, "16K", "NVMe", "server-01")), "every constrained category must match")
	assert.False(t, e.Matches(run(4, "4K", "SATA", "server-01")))
}

func TestEmptySelectionAcceptsEverything(t *testing.T) {
	e := New()
	assert.False(t, e.HasActive())

	runs := []types.TestRun{
		run(1, "4K", "NVMe", "server-01"),
		run(2, "1M", "SAS", "server-02"),
		{ID: 3},
	}
	assert.Equal(t, runs, e.Filter(runs))
}

func TestMissingFieldFailsConstrainedCategory(t *testing.T) {
	ctx := context.Background()
	e := New()
	require.NoError(t, e.Add(ctx, NumJobs, IntValue(4)))

	r := run(1, "4K", "NVMe", "server-01")
	assert.False(t, e.Matches(r))

	r.NumJobs = intPtr(4)
	assert.True(t, e.Matches(r))
}

func TestToggleBackToEmpty(t *testing.T) {
	ctx := context.Background()
	e := New()
	other := run(1, "4K", "NVMe", "server-02")

	active, err := e.Toggle(ctx, Hostnames, StringValue("server-01"))
	require.NoError(t, err)
	assert.True(t, active)
	assert.False(t, e.Matches(other))

	active, err = e.Toggle(ctx, Hostnames, StringValue("server-01"))
	require.NoError(t, err)
	assert.False(t, active)

	assert.Empty(t, e.Values(Hostnames))
	assert.False(t, e.HasActive())
	assert.True(t, e.Matches(other))
}

func TestHostDiskComposite(t *testing.T) {
	ctx := context.Background()
	e := New()

	key := HostDiskKey("server-01", "NVMe", "Samsung 980")
	assert.Equal(t, "server-01 - NVMe - Samsung 980", key)

	host, proto, model, ok := SplitHostDiskKey(key)
	require.True(t, ok)
	assert.Equal(t, []string{"server-01", "NVMe", "Samsung 980"}, []string{host, proto, model})

	require.NoError(t, e.Add(ctx, HostDiskCombinations, StringValue(key)))
	assert.True(t, e.Matches(run(1, "4K", "NVMe", "server-01")))
	assert.False(t, e.Matches(run(2, "4K", "NVMe", "server-02")))

	noHost := run(3, "4K", "NVMe", "server-01")
	noHost.Hostname = nil
	assert.False(t, e.Matches(noHost))
}

func TestSplitHostDiskKeyKeepsModelSeparators(t *testing.T) {
	_, _, model, ok := SplitHostDiskKey("h - p - Model - X")
	require.True(t, ok)
	assert.Equal(t, "Model - X", model)

	_, _, _, ok = SplitHostDiskKey("no separators")
	assert.False(t, ok)
}

func TestIsAllowedPermissiveUntilOptionsLoad(t *testing.T) {
	ctx := context.Background()
	e := New()

	assert.True(t, e.IsAllowed(BlockSizes, StringValue("128K")))
	assert.False(t, e.IsAllowed(BlockSizes, IntValue(128)), "kind mismatch is never allowed")

	e.SetOptions(OptionsFrom(types.FilterOptions{
		BlockSizes:  []string{"4K", "8K"},
		QueueDepths: []int{1, 32},
	}))

	assert.True(t, e.IsAllowed(BlockSizes, StringValue("4K")))
	assert.False(t, e.IsAllowed(BlockSizes, StringValue("128K")))
	assert.True(t, e.IsAllowed(QueueDepths, IntValue(32)))
	assert.False(t, e.IsAllowed(Protocols, StringValue("NVMe")))

	err := e.Add(ctx, BlockSizes, StringValue("128K"))
	assert.ErrorIs(t, err, ErrNotAllowed)
	assert.False(t, e.HasActive())
}

func TestRemoveAlwaysPermitted(t *testing.T) {
	ctx := context.Background()
	e := New()
	require.NoError(t, e.Add(ctx, BlockSizes, StringValue("128K")))

	e.SetOptions(OptionsFrom(types.FilterOptions{BlockSizes: []string{"4K"}}))
	require.NoError(t, e.Remove(ctx, BlockSizes, StringValue("128K")))
	assert.False(t, e.HasActive())

	e.SetOptions(nil)
	require.NoError(t, e.Add(ctx, BlockSizes, StringValue("128K")))
	e.SetOptions(OptionsFrom(types.FilterOptions{BlockSizes: []string{"4K"}}))
	active, err := e.Toggle(ctx, BlockSizes, StringValue("128K"))
	require.NoError(t, err)
	assert.False(t, active)
}

func TestSetCategoryAllOrNothing(t *testing.T) {
	ctx := context.Background()
	e := New()
	e.SetOptions(OptionsFrom(types.FilterOptions{BlockSizes: []string{"4K", "8K"}}))

	require.NoError(t, e.SetCategory(ctx, BlockSizes, []Value{StringValue("4K")}))

	err := e.SetCategory(ctx, BlockSizes, []Value{StringValue("8K"), StringValue("1M")})
	assert.ErrorIs(t, err, ErrNotAllowed)
	assert.Equal(t, []Value{StringValue("4K")}, e.Values(BlockSizes))

	require.NoError(t, e.SetCategory(ctx, BlockSizes, nil))
	assert.False(t, e.HasActive())
}

func TestSetCategoryDeduplicates(t *testing.T) {
	ctx := context.Background()
	e := New()

	require.NoError(t, e.SetCategory(ctx, QueueDepths, []Value{IntValue(32), IntValue(1), IntValue(32)}))
	assert.Equal(t, []Value{IntValue(32), IntValue(1)}, e.Values(QueueDepths))
}

func TestUnknownCategory(t *testing.T) {
	ctx := context.Background()
	e := New()

	_, err := ParseCategory("colours")
	assert.ErrorIs(t, err, ErrUnknownCategory)

	assert.ErrorIs(t, e.Add(ctx, Category(99), StringValue("x")), ErrUnknownCategory)
	assert.ErrorIs(t, e.ClearCategory(ctx, numCategories), ErrUnknownCategory)
}

func TestCategoryNamesRoundTrip(t *testing.T) {
	for _, c := range Categories() {
		parsed, err := ParseCategory(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, parsed)
	}
	assert.Len(t, Categories(), 13)
}

func TestParseValue(t *testing.T) {
	v, err := ParseValue(QueueDepths, float64(32))
	require.NoError(t, err)
	assert.Equal(t, IntValue(32), v)

	v, err = ParseValue(QueueDepths, "16")
	require.NoError(t, err)
	assert.Equal(t, IntValue(16), v)

	_, err = ParseValue(QueueDepths, 1.5)
	assert.ErrorIs(t, err, ErrInvalidValue)

	_, err = ParseValue(BlockSizes, 4)
	assert.ErrorIs(t, err, ErrInvalidValue)

	_, err = ParseValue(BlockSizes, "")
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestParseValueRejectsOutOfRangeNumbers(t *testing.T) {
	for _, raw := range []any{1e300, -1e300, math.Inf(1), float64(math.MaxInt)} {
		_, err := ParseValue(QueueDepths, raw)
		assert.ErrorIs(t, err, ErrInvalidValue, "value %v", raw)
	}

	v, err := ParseValue(QueueDepths, float64(1<<40))
	require.NoError(t, err)
	assert.Equal(t, IntValue(1<<40), v)
}

func TestApplyAndMutationsResetApplied(t *testing.T) {
	ctx := context.Background()
	e := New()

	e.Apply(ctx)
	assert.True(t, e.Applied())

	require.NoError(t, e.Add(ctx, Patterns, StringValue("randwrite")))
	assert.False(t, e.Applied())

	e.Apply(ctx)
	e.ClearAll(ctx)
	assert.False(t, e.Applied())
	assert.False(t, e.HasActive())
}

func TestPrune(t *testing.T) {
	ctx := context.Background()
	e := New()
	require.NoError(t, e.Add(ctx, Hostnames, StringValue("server-01")))
	require.NoError(t, e.Add(ctx, Hostnames, StringValue("retired")))

	assert.Equal(t, 0, e.Prune(ctx), "nothing to prune against without options")

	e.SetOptions(OptionsFrom(types.FilterOptions{Hostnames: []string{"server-01"}}))
	assert.Equal(t, 1, e.Prune(ctx))
	assert.Equal(t, []Value{StringValue("server-01")}, e.Values(Hostnames))
}

func TestQuery(t *testing.T) {
	ctx := context.Background()
	e := New()
	require.NoError(t, e.SetCategory(ctx, BlockSizes, []Value{StringValue("4K"), StringValue("8K")}))
	require.NoError(t, e.Add(ctx, QueueDepths, IntValue(32)))
	require.NoError(t, e.Add(ctx, TestSizes, StringValue("10G")))

	q := e.Query()
	assert.Equal(t, []string{"4K", "8K"}, q.BlockSizes)
	assert.Equal(t, []int{32}, q.QueueDepths)
	assert.Nil(t, q.Hostnames)

	values := q.Values()
	assert.Equal(t, "4K,8K", values.Get("block_sizes"))
	assert.Equal(t, "32", values.Get("queue_depths"))
	assert.False(t, values.Has("test_sizes"))
}
