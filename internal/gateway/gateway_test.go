package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/georgeshao/fio-dashboard/internal/cache"
	"github.com/georgeshao/fio-dashboard/internal/coordinator"
	"github.com/georgeshao/fio-dashboard/internal/storage"
	"github.com/georgeshao/fio-dashboard/internal/storage/pebbledb"
	"github.com/georgeshao/fio-dashboard/internal/testutil"
	"github.com/georgeshao/fio-dashboard/pkg/types"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func strPtr(s string) *string { return &s }

func sampleRuns() []types.TestRun {
	return []types.TestRun{
		{ID: 1, TestName: "a", Hostname: strPtr("server-01"), Protocol: strPtr("NVMe"), DriveModel: "Samsung 980", BlockSize: "4K", ReadWritePattern: "randread", QueueDepth: 32},
		{ID: 2, TestName: "b", Hostname: strPtr("server-02"), Protocol: strPtr("SATA"), DriveModel: "Intel S4510", BlockSize: "8K", ReadWritePattern: "randwrite", QueueDepth: 1},
	}
}

func setupGateway(t *testing.T, configure func(*Config), opts ...Option) (*Gateway, *testutil.Upstream, *fakeClock) {
	t.Helper()

	up := testutil.NewUpstream(t)
	up.SetTestRuns(sampleRuns())
	up.SetOptions(types.FilterOptions{BlockSizes: []string{"4K", "8K"}, Hostnames: []string{"server-01", "server-02"}})

	cfg := DefaultConfig()
	cfg.BaseURL = up.URL()
	cfg.RequestsPerSecond = 0
	if configure != nil {
		configure(&cfg)
	}

	clock := newFakeClock()
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return New(cfg, opts...), up, clock
}

type result[T any] struct {
	v   T
	err error
}

func TestTestRunsServedFromCacheWithinTTL(t *testing.T) {
	g, up, clock := setupGateway(t, nil)
	ctx := context.Background()

	first, err := g.TestRuns(ctx, types.TestRunQuery{})
	require.NoError(t, err)
	require.Len(t, first, 2)

	clock.Advance(2*time.Minute - time.Second)
	second, err := g.TestRuns(ctx, types.TestRunQuery{})
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, up.Calls(http.MethodGet, "/api/test-runs/"))

	clock.Advance(time.Second)
	_, err = g.TestRuns(ctx, types.TestRunQuery{})
	require.NoError(t, err)
	assert.Equal(t, 2, up.Calls(http.MethodGet, "/api/test-runs/"), "entry at exactly ttl is expired")

	state := g.TestRunsState()
	assert.True(t, state.Loaded)
	assert.False(t, state.Loading)
	assert.Equal(t, clock.Now(), state.LastFetched)
}

func TestEveryClassHonoursItsTTL(t *testing.T) {
	g, up, clock := setupGateway(t, nil)
	ctx := context.Background()

	_, err := g.FilterOptions(ctx)
	require.NoError(t, err)
	_, err = g.Users(ctx)
	require.NoError(t, err)
	_, err = g.Health(ctx)
	require.NoError(t, err)

	clock.Advance(5*time.Minute - time.Second)
	_, _ = g.FilterOptions(ctx)
	_, _ = g.Users(ctx)
	_, _ = g.Health(ctx)
	assert.Equal(t, 1, up.Calls(http.MethodGet, "/api/filters"))
	assert.Equal(t, 1, up.Calls(http.MethodGet, "/api/users/"))
	assert.Equal(t, 1, up.Calls(http.MethodGet, "/health"))

	clock.Advance(time.Second)
	_, _ = g.FilterOptions(ctx)
	_, _ = g.Users(ctx)
	assert.Equal(t, 2, up.Calls(http.MethodGet, "/api/filters"))
	assert.Equal(t, 1, up.Calls(http.MethodGet, "/api/users/"))

	clock.Advance(5 * time.Minute)
	_, _ = g.Users(ctx)
	_, _ = g.Health(ctx)
	assert.Equal(t, 2, up.Calls(http.MethodGet, "/api/users/"))
	assert.Equal(t, 1, up.Calls(http.MethodGet, "/health"))
}

func TestParameterizedFetchesBypassCacheByDefault(t *testing.T) {
	g, up, _ := setupGateway(t, nil)
	ctx := context.Background()
	q := types.TestRunQuery{Hostnames: []string{"server-01"}}

	runs, err := g.TestRuns(ctx, q)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	_, err = g.TestRuns(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, 2, up.Calls(http.MethodGet, "/api/test-runs/"))
}

func TestParameterizedCachingWhenEnabled(t *testing.T) {
	g, up, _ := setupGateway(t, func(c *Config) { c.CacheParameterized = true })
	ctx := context.Background()

	q := types.TestRunQuery{Hostnames: []string{"server-01"}, Limit: 50}
	_, err := g.TestRuns(ctx, q)
	require.NoError(t, err)
	_, err = g.TestRuns(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, 1, up.Calls(http.MethodGet, "/api/test-runs/"))

	_, err = g.TestRuns(ctx, types.TestRunQuery{Hostnames: []string{"server-02"}, Limit: 50})
	require.NoError(t, err)
	assert.Equal(t, 2, up.Calls(http.MethodGet, "/api/test-runs/"))
}

func TestConcurrentIdenticalFetchesShareOneRequest(t *testing.T) {
	g, up, _ := setupGateway(t, nil)
	gate := up.Gate(http.MethodGet, "/api/test-runs/")
	q := types.TestRunQuery{BlockSizes: []string{"4K"}}

	results := make(chan result[[]types.TestRun], 2)
	fetchOnce := func() {
		runs, err := g.TestRuns(context.Background(), q)
		results <- result[[]types.TestRun]{runs, err}
	}

	go fetchOnce()
	<-gate.Arrived()
	go fetchOnce()

	select {
	case <-gate.Arrived():
		t.Fatal("identical fetch issued a second request")
	case <-time.After(100 * time.Millisecond):
	}
	gate.Release()

	for i := 0; i < 2; i++ {
		res := <-results
		require.NoError(t, res.err)
		require.Len(t, res.v, 1)
		assert.Equal(t, int64(1), res.v[0].ID)
	}
	assert.Equal(t, 1, up.Calls(http.MethodGet, "/api/test-runs/"))
}

func TestNewerFetchSupersedesOlderOnSameSlot(t *testing.T) {
	g, up, _ := setupGateway(t, nil)
	gate := up.Gate(http.MethodGet, "/api/test-runs/")
	ctx := context.Background()

	older := make(chan result[[]types.TestRun], 1)
	go func() {
		runs, err := g.TestRuns(ctx, types.TestRunQuery{Hostnames: []string{"server-01"}})
		older <- result[[]types.TestRun]{runs, err}
	}()
	<-gate.Arrived()

	newer := make(chan result[[]types.TestRun], 1)
	go func() {
		runs, err := g.TestRuns(ctx, types.TestRunQuery{Hostnames: []string{"server-02"}})
		newer <- result[[]types.TestRun]{runs, err}
	}()

	res := <-older
	assert.True(t, coordinator.IsAborted(res.err))
	assert.ErrorIs(t, res.err, coordinator.ErrSuperseded)

	<-gate.Arrived()
	gate.Release()

	res = <-newer
	require.NoError(t, res.err)
	require.Len(t, res.v, 1)
	assert.Equal(t, "server-02", *res.v[0].Hostname)

	state := g.TestRunsState()
	assert.NoError(t, state.Error)
	assert.False(t, state.Loading)
	require.Len(t, state.Data, 1)
	assert.Equal(t, int64(2), state.Data[0].ID)
}

func TestCancelAllIsNotAnError(t *testing.T) {
	g, up, _ := setupGateway(t, nil)
	gate := up.Gate(http.MethodGet, "/api/filters")
	defer gate.Release()

	done := make(chan error, 1)
	go func() {
		_, err := g.FilterOptions(context.Background())
		done <- err
	}()
	<-gate.Arrived()

	g.CancelAll()
	g.CancelAll()

	err := <-done
	assert.True(t, coordinator.IsAborted(err))

	state := g.FilterOptionsState()
	assert.NoError(t, state.Error)
	assert.False(t, state.Loading)
	assert.False(t, state.Loaded)
}

func TestWaiterCancellationLeavesFlightRunning(t *testing.T) {
	g, up, _ := setupGateway(t, nil)
	gate := up.Gate(http.MethodGet, "/health")

	leader := make(chan error, 1)
	go func() {
		_, err := g.Health(context.Background())
		leader <- err
	}()
	<-gate.Arrived()

	ctx, cancel := context.WithCancel(context.Background())
	waiter := make(chan error, 1)
	go func() {
		_, err := g.Health(ctx)
		waiter <- err
	}()
	cancel()

	assert.True(t, coordinator.IsAborted(<-waiter))

	gate.Release()
	require.NoError(t, <-leader)
	assert.True(t, g.HealthState().Loaded)
}

func TestMutationInvalidatesCachedTestRuns(t *testing.T) {
	g, up, _ := setupGateway(t, nil)
	ctx := context.Background()

	before, err := g.TestRuns(ctx, types.TestRunQuery{})
	require.NoError(t, err)
	_, err = g.FilterOptions(ctx)
	require.NoError(t, err)

	updated, err := g.UpdateTestRun(ctx, 1, types.TestRunUpdate{Hostname: strPtr("server-09")})
	require.NoError(t, err)
	assert.Equal(t, "server-09", *updated.Hostname)

	after, err := g.TestRuns(ctx, types.TestRunQuery{})
	require.NoError(t, err)
	assert.Equal(t, 2, up.Calls(http.MethodGet, "/api/test-runs/"))
	assert.NotEqual(t, before, after)
	assert.Equal(t, "server-09", *after[0].Hostname)

	_, err = g.FilterOptions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, up.Calls(http.MethodGet, "/api/filters"))
}

func TestFailedMutationKeepsCache(t *testing.T) {
	g, up, _ := setupGateway(t, nil)
	ctx := context.Background()

	_, err := g.TestRuns(ctx, types.TestRunQuery{})
	require.NoError(t, err)

	err = g.DeleteTestRun(ctx, 999)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "Test run not found", apiErr.Message)

	_, err = g.TestRuns(ctx, types.TestRunQuery{})
	require.NoError(t, err)
	assert.Equal(t, 1, up.Calls(http.MethodGet, "/api/test-runs/"))
}

func TestLateResponseAfterInvalidationIsNotCached(t *testing.T) {
	g, up, _ := setupGateway(t, nil)
	gate := up.Gate(http.MethodGet, "/api/test-runs/")
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := g.TestRuns(ctx, types.TestRunQuery{})
		done <- err
	}()
	<-gate.Arrived()

	g.Invalidate(cache.TestRuns)
	gate.Release()
	require.NoError(t, <-done)

	_, err := g.TestRuns(ctx, types.TestRunQuery{})
	require.NoError(t, err)
	assert.Equal(t, 2, up.Calls(http.MethodGet, "/api/test-runs/"))
}

func TestShapeErrorsSurfaceInState(t *testing.T) {
	g, up, _ := setupGateway(t, nil)
	ctx := context.Background()

	up.Override(http.MethodGet, "/api/filters", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`["4K","8K"]`))
	})
	up.Override(http.MethodGet, "/api/test-runs/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items":[]}`))
	})

	_, err := g.FilterOptions(ctx)
	require.ErrorIs(t, err, ErrInvalidShape)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Invalid response format", apiErr.Message)
	assert.ErrorIs(t, g.FilterOptionsState().Error, ErrInvalidShape)

	_, err = g.TestRuns(ctx, types.TestRunQuery{})
	assert.ErrorIs(t, err, ErrInvalidShape)
	assert.False(t, g.TestRunsState().Loaded)
}

func TestUnauthorizedError(t *testing.T) {
	g, up, _ := setupGateway(t, nil)
	up.Override(http.MethodGet, "/api/users/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"Not authenticated"}`))
	})

	_, err := g.Users(context.Background())
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))

	state := g.UsersState()
	var apiErr *APIError
	require.ErrorAs(t, state.Error, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "Not authenticated", apiErr.Message)
	assert.Contains(t, apiErr.Details, "Not authenticated")

	g.DismissError(cache.Users)
	assert.NoError(t, g.UsersState().Error)
}

func TestNetworkError(t *testing.T) {
	g, up, _ := setupGateway(t, nil)
	up.Server.Close()

	_, err := g.Health(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 0, apiErr.Status)
	assert.Contains(t, apiErr.Message, "Network error")
	assert.False(t, coordinator.IsAborted(err))
}

func TestRequestHeaders(t *testing.T) {
	g, up, _ := setupGateway(t, nil, WithCredentials(StaticCredentials("Bearer secret")))

	_, err := g.Health(context.Background())
	require.NoError(t, err)
	_, err = g.FilterOptions(context.Background())
	require.NoError(t, err)

	headers := up.Headers()
	require.Len(t, headers, 2)
	for _, h := range headers {
		assert.Equal(t, "Bearer secret", h.Get("Authorization"))
		assert.Equal(t, "application/json", h.Get("Accept"))
		assert.NotEmpty(t, h.Get("X-Request-ID"))
	}
	assert.NotEqual(t, headers[0].Get("X-Request-ID"), headers[1].Get("X-Request-ID"))
}

func TestStoredCredentials(t *testing.T) {
	store, err := pebbledb.NewInMemory()
	require.NoError(t, err)
	defer store.Close()

	creds := StoredCredentials{Store: store}
	g, up, _ := setupGateway(t, nil, WithCredentials(creds))
	ctx := context.Background()

	_, err = g.Health(ctx)
	require.NoError(t, err)
	assert.Empty(t, up.Headers()[0].Get("Authorization"))

	require.NoError(t, store.Set(ctx, storage.AuthTokenKey, "Bearer stored"))
	_, err = g.FilterOptions(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Bearer stored", up.Headers()[1].Get("Authorization"))
}

func TestSignInAndSignOut(t *testing.T) {
	store, err := pebbledb.NewInMemory()
	require.NoError(t, err)
	defer store.Close()

	g, up, _ := setupGateway(t, nil, WithCredentials(StoredCredentials{Store: store}))
	ctx := context.Background()
	valid := BasicAuthorization("admin", "secret")
	up.Override(http.MethodGet, "/api/users/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != valid {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"detail":"Invalid credentials"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"username":"admin","role":"admin"}`))
	})

	_, err = g.SignIn(ctx, "admin", "wrong")
	assert.True(t, IsUnauthorized(err))
	_, err = store.Get(ctx, storage.AuthTokenKey)
	assert.ErrorIs(t, err, storage.ErrNotFound, "rejected credentials must not be kept")

	user, err := g.SignIn(ctx, "admin", "secret")
	require.NoError(t, err)
	assert.Equal(t, types.RoleAdmin, user.Role)
	stored, err := store.Get(ctx, storage.AuthTokenKey)
	require.NoError(t, err)
	assert.Equal(t, valid, stored)

	require.NoError(t, g.SignOut(ctx))
	_, err = store.Get(ctx, storage.AuthTokenKey)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = g.CurrentUser(ctx)
	assert.True(t, IsUnauthorized(err), "sign out must drop the cached user")
}

func TestSignInNeedsWritableCredentials(t *testing.T) {
	g, _, _ := setupGateway(t, nil, WithCredentials(StaticCredentials("Bearer fixed")))

	_, err := g.SignIn(context.Background(), "admin", "secret")
	assert.ErrorIs(t, err, ErrCredentialsReadOnly)
	assert.ErrorIs(t, g.SignOut(context.Background()), ErrCredentialsReadOnly)
}

type brokenCredentials struct{}

func (brokenCredentials) Authorization(ctx context.Context) (string, error) {
	return "", errors.New("keychain locked")
}

func TestCredentialFailureSendsUnauthenticated(t *testing.T) {
	g, up, _ := setupGateway(t, nil, WithCredentials(brokenCredentials{}))

	_, err := g.Health(context.Background())
	require.NoError(t, err)
	assert.Empty(t, up.Headers()[0].Get("Authorization"))
}

func TestTestRunsPageEnvelope(t *testing.T) {
	g, up, _ := setupGateway(t, nil)
	up.UseEnvelope(true)

	page, err := g.TestRunsPage(context.Background(), types.TestRunQuery{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, page.Data, 1)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, 1, page.Limit)
	assert.True(t, page.HasMore)
}

func manyRuns(n int) []types.TestRun {
	runs := make([]types.TestRun, n)
	for i := range runs {
		runs[i] = types.TestRun{
			ID:               int64(i + 1),
			TestName:         fmt.Sprintf("run-%d", i+1),
			Hostname:         strPtr("server-01"),
			BlockSize:        "4K",
			ReadWritePattern: "randread",
			QueueDepth:       1,
		}
	}
	return runs
}

func TestTestRunsWalksEveryPage(t *testing.T) {
	tests := []struct {
		name     string
		envelope bool
		pageSize int
		calls    int
	}{
		{"envelope", true, 50, 3},
		{"bare array", false, 50, 3},
		{"default page size", true, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, up, _ := setupGateway(t, func(c *Config) { c.PageSize = tt.pageSize })
			up.SetTestRuns(manyRuns(120))
			up.UseEnvelope(tt.envelope)

			runs, err := g.TestRuns(context.Background(), types.TestRunQuery{})
			require.NoError(t, err)
			require.Len(t, runs, 120)
			assert.Equal(t, int64(1), runs[0].ID)
			assert.Equal(t, int64(120), runs[119].ID)
			assert.Equal(t, tt.calls, up.Calls(http.MethodGet, "/api/test-runs/"))

			state := g.TestRunsState()
			assert.True(t, state.Loaded)
			assert.Len(t, state.Data, 120)
		})
	}
}

func TestExplicitPageIsFetchedAlone(t *testing.T) {
	g, up, _ := setupGateway(t, nil)
	up.SetTestRuns(manyRuns(120))
	up.UseEnvelope(true)

	runs, err := g.TestRuns(context.Background(), types.TestRunQuery{Limit: 10, Offset: 100})
	require.NoError(t, err)
	require.Len(t, runs, 10)
	assert.Equal(t, int64(101), runs[0].ID)
	assert.Equal(t, 1, up.Calls(http.MethodGet, "/api/test-runs/"))
	assert.False(t, g.TestRunsState().Loaded, "a single page must not replace the full list state")
}

func TestSingleItemFetchesAreCached(t *testing.T) {
	g, up, _ := setupGateway(t, nil)
	ctx := context.Background()

	run, err := g.TestRun(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "b", run.TestName)
	_, err = g.TestRun(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, up.Calls(http.MethodGet, "/api/test-runs/2"))

	me, err := g.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.RoleAdmin, me.Role)

	_, err = g.TestRun(ctx, 404)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}

func TestPerformanceData(t *testing.T) {
	g, up, _ := setupGateway(t, nil)
	iops := 12000.0
	runs := sampleRuns()
	runs[0].IOPS = &iops
	up.SetTestRuns(runs)

	data, err := g.PerformanceData(context.Background(), []int64{1, 2}, []string{"iops"})
	require.NoError(t, err)
	require.Len(t, data, 2)
	assert.Equal(t, 12000.0, *data[0].Metrics["iops"].Value)
	assert.Empty(t, data[1].Metrics)
}

func TestBulkUpdateAndDelete(t *testing.T) {
	g, up, _ := setupGateway(t, nil)
	ctx := context.Background()

	resp, err := g.BulkUpdateTestRuns(ctx, types.BulkUpdateRequest{
		TestRunIDs: []int64{1, 2, 3},
		Updates:    types.TestRunUpdate{Description: strPtr("rack 4")},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Updated)
	assert.Equal(t, 1, resp.Failed)

	require.NoError(t, g.DeleteTestRun(ctx, 1))
	runs, err := g.TestRuns(ctx, types.TestRunQuery{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "rack 4", *runs[0].Description)
	assert.Equal(t, 1, up.Calls(http.MethodDelete, "/api/test-runs/1"))
}

func TestImportFileInvalidatesFilterOptions(t *testing.T) {
	g, up, _ := setupGateway(t, nil)
	ctx := context.Background()

	_, err := g.FilterOptions(ctx)
	require.NoError(t, err)

	resp, err := g.ImportFile(ctx, "run.json", []byte(`{"jobs":[{}]}`), types.ImportMetadata{Hostname: "server-03", Protocol: "NVMe"})
	require.NoError(t, err)
	assert.Equal(t, "run.json", resp.Filename)
	assert.NotZero(t, resp.TestRunID)

	_, err = g.FilterOptions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, up.Calls(http.MethodGet, "/api/filters"))

	runs, err := g.TestRuns(ctx, types.TestRunQuery{Hostnames: []string{"server-03"}})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, resp.TestRunID, runs[0].ID)
}

func TestUserMutationsInvalidateUsers(t *testing.T) {
	g, up, _ := setupGateway(t, nil)
	ctx := context.Background()

	users, err := g.Users(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)

	created, err := g.CreateUser(ctx, types.CreateUserRequest{Username: "ops", Password: "pw", Role: types.RoleUploader})
	require.NoError(t, err)
	assert.Equal(t, "ops", created.Username)

	users, err = g.Users(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)

	role := types.RoleAdmin
	updated, err := g.UpdateUser(ctx, "ops", types.UpdateUserRequest{Role: &role})
	require.NoError(t, err)
	assert.Equal(t, types.RoleAdmin, updated.Role)

	require.NoError(t, g.DeleteUser(ctx, "ops"))
	users, err = g.Users(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, 3, up.Calls(http.MethodGet, "/api/users/"))

	_, err = g.CreateUser(ctx, types.CreateUserRequest{Username: "admin", Password: "pw", Role: types.RoleAdmin})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "User already exists", apiErr.Message)
}

func TestPrefetch(t *testing.T) {
	g, up, _ := setupGateway(t, nil)

	require.NoError(t, g.Prefetch(context.Background()))
	assert.Equal(t, 1, up.Calls(http.MethodGet, "/api/filters"))
	assert.Equal(t, 1, up.Calls(http.MethodGet, "/api/test-runs/"))
	assert.Equal(t, 1, up.Calls(http.MethodGet, "/health"))

	assert.True(t, g.FilterOptionsState().Loaded)
	assert.True(t, g.TestRunsState().Loaded)
	assert.Equal(t, "healthy", g.HealthState().Data.Status)
}

func TestClearCache(t *testing.T) {
	g, up, _ := setupGateway(t, nil)
	ctx := context.Background()

	_, err := g.Health(ctx)
	require.NoError(t, err)
	g.ClearCache()
	_, err = g.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, up.Calls(http.MethodGet, "/health"))
}
