package gateway

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/georgeshao/fio-dashboard/internal/cache"
	"github.com/georgeshao/fio-dashboard/internal/coordinator"
	"github.com/georgeshao/fio-dashboard/internal/metrics"
	"github.com/georgeshao/fio-dashboard/pkg/types"
)

const (
	testRunsPath        = "/api/test-runs/"
	bulkUpdatePath      = "/api/test-runs/bulk"
	performanceDataPath = "/api/test-runs/performance-data"
	filtersPath         = "/api/filters"
	usersPath           = "/api/users/"
	currentUserPath     = "/api/users/me"
	importPath          = "/api/import/"
	healthPath          = "/health"
)

func testRunPath(id int64) string {
	return testRunsPath + strconv.FormatInt(id, 10)
}

func userPath(username string) string {
	return usersPath + url.PathEscape(username)
}

type fetchSpec[T any] struct {
	class  cache.Class
	path   string
	params url.Values
	// key overrides the canonical key derived from class and params.
	key    string
	decode func([]byte) (T, error)
	sink   stateSink[T]
	// load replaces the single GET of path, e.g. to walk several pages.
	load func(*coordinator.Scope) (T, error)
}

// fetch resolves one read: join a running request for the same key, else
// answer from cache when allowed, else go to the network. Results of a
// superseded request are dropped without touching cache or state.
func fetch[T any](ctx context.Context, g *Gateway, spec fetchSpec[T]) (T, error) {
	var zero T

	key := spec.key
	if key == "" {
		key = cache.Key(spec.class, spec.params)
	}
	cacheable := len(spec.params) == 0 || g.cfg.CacheParameterized

	if cacheable && !g.coord.InFlight(key) {
		if payload, ok := g.cache.Get(key, g.ttl(spec.class)); ok {
			if v, ok := payload.(T); ok {
				return v, nil
			}
		}
	}

	slot := coordinator.SlotKey(http.MethodGet, spec.path)
	v, shared, err := coordinator.Run(ctx, g.coord, slot, key, func(scope *coordinator.Scope) (T, error) {
		gen := g.generation(spec.class)
		if spec.sink != nil {
			spec.sink.begin()
		}

		var v T
		var err error
		if spec.load != nil {
			v, err = spec.load(scope)
		} else {
			v, err = load(g, scope, spec)
		}
		if err != nil {
			if spec.sink != nil {
				spec.sink.settle(zero, err, g.now())
			}
			return zero, err
		}

		committed := scope.Commit(func() {
			if cacheable {
				g.storeIfCurrent(spec.class, gen, key, v, spec.params)
			}
			if spec.sink != nil {
				spec.sink.settle(v, nil, g.now())
			}
		})
		if !committed {
			err = supersededError(scope)
			g.logger.Debugw("Dropping superseded response", "slot", scope.Slot(), "key", key)
			if spec.sink != nil {
				spec.sink.settle(zero, err, g.now())
			}
			return zero, err
		}
		return v, nil
	})

	if shared {
		metrics.RecordShared(string(spec.class))
	}
	if err != nil {
		if coordinator.IsAborted(err) {
			metrics.RecordAborted(string(spec.class))
			g.logger.Debugw("Fetch aborted", "key", key, "reason", err)
		}
		return zero, err
	}
	return v, nil
}

func load[T any](g *Gateway, scope *coordinator.Scope, spec fetchSpec[T]) (T, error) {
	var zero T

	body, err := g.send(scope.Context(), call{
		class:  spec.class,
		method: http.MethodGet,
		path:   spec.path,
		params: spec.params,
	})
	if err == nil && !scope.Current() {
		err = supersededError(scope)
	}
	if err != nil {
		return zero, err
	}

	return spec.decode(body)
}

// queryPart is the "?..." suffix of the canonical key for params, or "" when
// there are none.
func queryPart(params url.Values) string {
	return cache.Key("", params)
}

func supersededError(scope *coordinator.Scope) error {
	if err := scope.Err(); err != nil {
		return err
	}
	return coordinator.ErrSuperseded
}

// storeIfCurrent caches v unless the class was invalidated after the fetch
// started.
func (g *Gateway) storeIfCurrent(class cache.Class, gen uint64, key string, v any, params url.Values) {
	g.genMu.Lock()
	defer g.genMu.Unlock()

	if g.generations[class] != gen {
		g.logger.Debugw("Skipping cache write after invalidation", "key", key)
		return
	}
	g.cache.Set(key, v, params)
}

// TestRunsPage fetches one upstream page of test runs with the envelope
// metadata. It does not feed TestRunsState.
func (g *Gateway) TestRunsPage(ctx context.Context, q types.TestRunQuery) (types.ListEnvelope[types.TestRun], error) {
	params := q.Values()
	return fetch(ctx, g, fetchSpec[types.ListEnvelope[types.TestRun]]{
		class:  cache.TestRuns,
		path:   testRunsPath,
		params: params,
		// Pages decode to a different type than the full list and must not
		// share its key.
		key:    cache.ItemKey(cache.TestRuns, "page") + queryPart(params),
		decode: decodeListValue[types.TestRun],
	})
}

// TestRuns returns every test run matching q. Without an explicit Limit or
// Offset the upstream is walked page by page until it reports no more data.
func (g *Gateway) TestRuns(ctx context.Context, q types.TestRunQuery) ([]types.TestRun, error) {
	if q.Limit > 0 || q.Offset > 0 {
		page, err := g.TestRunsPage(ctx, q)
		if err != nil {
			return nil, err
		}
		return page.Data, nil
	}

	all, err := fetch(ctx, g, fetchSpec[[]types.TestRun]{
		class:  cache.TestRuns,
		path:   testRunsPath,
		params: q.Values(),
		sink:   &g.testRuns,
		load: func(scope *coordinator.Scope) ([]types.TestRun, error) {
			return g.loadAllTestRuns(scope, q)
		},
	})
	if err != nil {
		return nil, err
	}
	return all, nil
}

func (g *Gateway) loadAllTestRuns(scope *coordinator.Scope, q types.TestRunQuery) ([]types.TestRun, error) {
	size := g.pageSize()
	all := []types.TestRun{}

	for page := q; ; page.Offset = len(all) {
		page.Limit = size
		env, err := load(g, scope, fetchSpec[types.ListEnvelope[types.TestRun]]{
			class:  cache.TestRuns,
			path:   testRunsPath,
			params: page.Values(),
			decode: decodeListValue[types.TestRun],
		})
		if err != nil {
			return nil, err
		}
		all = append(all, env.Data...)

		if !morePages(env, size, len(all)) {
			break
		}
	}
	return all, nil
}

// morePages reports whether another page follows env. Bare arrays carry no
// paging metadata, so a full page is taken to mean there may be more.
func morePages[T any](env types.ListEnvelope[T], size, fetched int) bool {
	if len(env.Data) == 0 {
		return false
	}
	if env.Limit == 0 && !env.HasMore {
		return len(env.Data) >= size
	}
	return env.HasMore && (env.Total == 0 || fetched < env.Total)
}

func (g *Gateway) TestRun(ctx context.Context, id int64) (types.TestRun, error) {
	return fetch(ctx, g, fetchSpec[types.TestRun]{
		class:  cache.TestRuns,
		path:   testRunPath(id),
		key:    cache.ItemKey(cache.TestRuns, strconv.FormatInt(id, 10)),
		decode: decodeObject[types.TestRun],
	})
}

// PerformanceData returns the requested metrics of the given test runs.
func (g *Gateway) PerformanceData(ctx context.Context, ids []int64, metricTypes []string) ([]types.PerformanceData, error) {
	idParts := make([]string, len(ids))
	for i, id := range ids {
		idParts[i] = strconv.FormatInt(id, 10)
	}
	params := url.Values{}
	params.Set("test_run_ids", strings.Join(idParts, ","))
	params.Set("metric_types", strings.Join(metricTypes, ","))

	resp, err := fetch(ctx, g, fetchSpec[types.PerformanceDataResponse]{
		class:  cache.TestRuns,
		path:   performanceDataPath,
		params: params,
		decode: decodeObject[types.PerformanceDataResponse],
	})
	if err != nil {
		return nil, err
	}
	return resp.PerformanceData, nil
}

func (g *Gateway) FilterOptions(ctx context.Context) (types.FilterOptions, error) {
	return fetch(ctx, g, fetchSpec[types.FilterOptions]{
		class:  cache.FilterOptions,
		path:   filtersPath,
		decode: decodeObject[types.FilterOptions],
		sink:   &g.filterOptions,
	})
}

func (g *Gateway) Users(ctx context.Context) ([]types.User, error) {
	return fetch(ctx, g, fetchSpec[[]types.User]{
		class:  cache.Users,
		path:   usersPath,
		decode: decodeListData[types.User],
		sink:   &g.users,
	})
}

// CurrentUser returns the account the credentials belong to.
func (g *Gateway) CurrentUser(ctx context.Context) (types.User, error) {
	return fetch(ctx, g, fetchSpec[types.User]{
		class:  cache.Users,
		path:   currentUserPath,
		key:    cache.ItemKey(cache.Users, "me"),
		decode: decodeObject[types.User],
	})
}

func (g *Gateway) Health(ctx context.Context) (types.Health, error) {
	return fetch(ctx, g, fetchSpec[types.Health]{
		class:  cache.Health,
		path:   healthPath,
		decode: decodeObject[types.Health],
		sink:   &g.health,
	})
}

func decodeListValue[T any](body []byte) (types.ListEnvelope[T], error) {
	env, err := decodeList[T](body)
	if err != nil {
		return types.ListEnvelope[T]{}, err
	}
	return *env, nil
}

func decodeListData[T any](body []byte) ([]T, error) {
	env, err := decodeList[T](body)
	if err != nil {
		return nil, err
	}
	return env.Data, nil
}
