package gateway

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/georgeshao/fio-dashboard/internal/cache"
	"github.com/georgeshao/fio-dashboard/internal/coordinator"
	"github.com/georgeshao/fio-dashboard/pkg/types"
)

type Config struct {
	BaseURL           string
	RequestTimeout    time.Duration
	RequestsPerSecond float64
	Burst             int
	TTLs              map[cache.Class]time.Duration
	// PageSize is the limit sent per request when walking a paginated list.
	PageSize int
	// CacheParameterized also serves filtered or paginated fetches from cache.
	CacheParameterized bool
}

func DefaultConfig() Config {
	return Config{
		BaseURL:           "http://localhost:8000",
		RequestTimeout:    30 * time.Second,
		RequestsPerSecond: 20,
		Burst:             10,
		TTLs:              cache.DefaultTTLs(),
		PageSize:          DefaultPageSize,
	}
}

// DefaultPageSize is the largest page the upstream list endpoints accept.
const DefaultPageSize = 1000

type Option func(*Gateway)

func WithCache(c *cache.Cache) Option {
	return func(g *Gateway) {
		g.cache = c
	}
}

func WithCoordinator(c *coordinator.Coordinator) Option {
	return func(g *Gateway) {
		g.coord = c
	}
}

func WithCredentials(creds CredentialSupplier) Option {
	return func(g *Gateway) {
		g.creds = creds
	}
}

func WithLogger(logger *zap.SugaredLogger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(g *Gateway) {
		g.client = client
	}
}

// WithClock replaces time.Now for state timestamps and, unless a cache is
// injected too, for cache expiry.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) {
		g.now = now
	}
}

// Gateway is the data access facade over the upstream FIO API. It combines
// the resource cache and the request coordinator and keeps one
// ResourceState per resource class. Create one per application instance.
type Gateway struct {
	cfg     Config
	baseURL string
	client  *http.Client
	cache   *cache.Cache
	coord   *coordinator.Coordinator
	creds   CredentialSupplier
	limiter *rate.Limiter
	logger  *zap.SugaredLogger
	now     func() time.Time

	genMu       sync.Mutex
	generations map[cache.Class]uint64

	testRuns      resource[[]types.TestRun]
	filterOptions resource[types.FilterOptions]
	users         resource[[]types.User]
	health        resource[types.Health]
	timeSeries    resource[[]types.ServerInfo]
}

func New(cfg Config, opts ...Option) *Gateway {
	g := &Gateway{
		cfg:         cfg,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		creds:       noCredentials{},
		logger:      zap.NewNop().Sugar(),
		now:         time.Now,
		generations: make(map[cache.Class]uint64),
	}
	for _, opt := range opts {
		opt(g)
	}

	if g.client == nil {
		g.client = &http.Client{Timeout: cfg.RequestTimeout}
	}
	if g.cache == nil {
		g.cache = cache.New(cache.WithClock(g.now))
	}
	if g.coord == nil {
		g.coord = coordinator.New()
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	g.limiter = rate.NewLimiter(limit, burst)

	return g
}

func (g *Gateway) pageSize() int {
	if g.cfg.PageSize > 0 {
		return min(g.cfg.PageSize, DefaultPageSize)
	}
	return DefaultPageSize
}

func (g *Gateway) ttl(class cache.Class) time.Duration {
	if ttl, ok := g.cfg.TTLs[class]; ok && ttl > 0 {
		return ttl
	}
	return cache.DefaultTTLs()[class]
}

// Invalidate drops every cached entry of the given classes. Fetches already
// running when it is called will not write their results back to the cache.
func (g *Gateway) Invalidate(classes ...cache.Class) int {
	g.genMu.Lock()
	for _, class := range classes {
		g.generations[class]++
	}
	removed := g.cache.InvalidateClass(classes...)
	g.genMu.Unlock()

	g.logger.Debugw("Invalidated cache", "classes", classes, "removed", removed)
	return removed
}

func (g *Gateway) generation(class cache.Class) uint64 {
	g.genMu.Lock()
	defer g.genMu.Unlock()
	return g.generations[class]
}

// ClearCache empties the cache for every class.
func (g *Gateway) ClearCache() {
	g.Invalidate(cache.Classes()...)
	g.cache.Clear()
}

// CancelAll aborts every in-flight fetch. The aborted calls return
// coordinator.ErrAborted and leave their ResourceState untouched.
func (g *Gateway) CancelAll() {
	g.coord.CancelAll()
}

// Prefetch loads filter options, the unfiltered test run list and health in
// parallel. Aborts are not reported as errors.
func (g *Gateway) Prefetch(ctx context.Context) error {
	var eg errgroup.Group
	eg.Go(func() error {
		_, err := g.FilterOptions(ctx)
		return ignoreAbort(err)
	})
	eg.Go(func() error {
		_, err := g.TestRuns(ctx, types.TestRunQuery{})
		return ignoreAbort(err)
	})
	eg.Go(func() error {
		_, err := g.Health(ctx)
		return ignoreAbort(err)
	})
	return eg.Wait()
}

func ignoreAbort(err error) error {
	if coordinator.IsAborted(err) {
		return nil
	}
	return err
}

func (g *Gateway) TestRunsState() ResourceState[[]types.TestRun] {
	return g.testRuns.snapshot()
}

func (g *Gateway) FilterOptionsState() ResourceState[types.FilterOptions] {
	return g.filterOptions.snapshot()
}

func (g *Gateway) UsersState() ResourceState[[]types.User] {
	return g.users.snapshot()
}

func (g *Gateway) HealthState() ResourceState[types.Health] {
	return g.health.snapshot()
}

// DismissError clears the stored error of a resource class.
func (g *Gateway) DismissError(class cache.Class) {
	switch class {
	case cache.TestRuns:
		g.testRuns.clearError()
	case cache.FilterOptions:
		g.filterOptions.clearError()
	case cache.Users:
		g.users.clearError()
	case cache.Health:
		g.health.clearError()
	case cache.TimeSeries:
		g.timeSeries.clearError()
	}
}
