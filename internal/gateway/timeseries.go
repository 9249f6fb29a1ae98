package gateway

import (
	"context"

	"github.com/georgeshao/fio-dashboard/internal/cache"
	"github.com/georgeshao/fio-dashboard/pkg/types"
)

const (
	timeSeriesServersPath = "/api/time-series/servers"
	timeSeriesLatestPath  = "/api/time-series/latest"
	timeSeriesHistoryPath = "/api/time-series/history"
	timeSeriesTrendsPath  = "/api/time-series/trends"
	infoPath              = "/api/info"
)

// TimeSeriesServers lists every host with recorded tests. It feeds
// TimeSeriesState.
func (g *Gateway) TimeSeriesServers(ctx context.Context) ([]types.ServerInfo, error) {
	return fetch(ctx, g, fetchSpec[[]types.ServerInfo]{
		class:  cache.TimeSeries,
		path:   timeSeriesServersPath,
		decode: decodeListData[types.ServerInfo],
		sink:   &g.timeSeries,
	})
}

// LatestTimeSeries returns the newest points of the latest test runs.
func (g *Gateway) LatestTimeSeries(ctx context.Context, q types.TimeSeriesQuery) ([]types.TimeSeriesPoint, error) {
	return g.timeSeriesPoints(ctx, timeSeriesLatestPath, "latest", q)
}

// TimeSeriesHistory returns points across every recorded run, including the
// ones later superseded.
func (g *Gateway) TimeSeriesHistory(ctx context.Context, q types.TimeSeriesQuery) ([]types.TimeSeriesPoint, error) {
	return g.timeSeriesPoints(ctx, timeSeriesHistoryPath, "history", q)
}

func (g *Gateway) timeSeriesPoints(ctx context.Context, path, view string, q types.TimeSeriesQuery) ([]types.TimeSeriesPoint, error) {
	params := q.Values()
	resp, err := fetch(ctx, g, fetchSpec[types.TimeSeriesResponse]{
		class:  cache.TimeSeries,
		path:   path,
		params: params,
		key:    cache.ItemKey(cache.TimeSeries, view) + queryPart(params),
		decode: decodeObject[types.TimeSeriesResponse],
	})
	if err != nil {
		return nil, err
	}
	return nonNil(resp.Data), nil
}

// Trends returns the trend analysis of one metric on one host.
func (g *Gateway) Trends(ctx context.Context, q types.TrendQuery) (types.TrendResponse, error) {
	params := q.Values()
	resp, err := fetch(ctx, g, fetchSpec[types.TrendResponse]{
		class:  cache.TimeSeries,
		path:   timeSeriesTrendsPath,
		params: params,
		key:    cache.ItemKey(cache.TimeSeries, "trends") + queryPart(params),
		decode: decodeObject[types.TrendResponse],
	})
	if err != nil {
		return types.TrendResponse{}, err
	}
	resp.Data = nonNil(resp.Data)
	return resp, nil
}

// Info describes the upstream API. It is cached with health.
func (g *Gateway) Info(ctx context.Context) (types.APIInfo, error) {
	return fetch(ctx, g, fetchSpec[types.APIInfo]{
		class:  cache.Health,
		path:   infoPath,
		key:    cache.ItemKey(cache.Health, "info"),
		decode: decodeObject[types.APIInfo],
	})
}

func (g *Gateway) TimeSeriesState() ResourceState[[]types.ServerInfo] {
	return g.timeSeries.snapshot()
}
