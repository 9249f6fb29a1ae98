package api

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/georgeshao/fio-dashboard/pkg/types"
)

const (
	defaultLatestLimit  = 100
	maxLatestLimit      = 1000
	defaultHistoryLimit = 1000
	maxHistoryLimit     = 10000
	defaultTrendDays    = 30
	maxTrendDays        = 365
)

func (h *Handler) TimeSeriesServers(c *fiber.Ctx) error {
	servers, err := h.gateway.TimeSeriesServers(c.UserContext())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(servers)
}

// LatestTimeSeries handles GET /v1/time-series/latest?hostnames=a,b&limit=100
func (h *Handler) LatestTimeSeries(c *fiber.Ctx) error {
	q, err := timeSeriesQuery(c, defaultLatestLimit, maxLatestLimit)
	if err != nil {
		return badRequest(c, err.Error())
	}

	points, err := h.gateway.LatestTimeSeries(c.UserContext(), q)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(types.TimeSeriesResponse{Data: points})
}

// TimeSeriesHistory handles GET /v1/time-series/history with optional
// start_date and end_date bounds.
func (h *Handler) TimeSeriesHistory(c *fiber.Ctx) error {
	q, err := timeSeriesQuery(c, defaultHistoryLimit, maxHistoryLimit)
	if err != nil {
		return badRequest(c, err.Error())
	}
	q.StartDate = strings.TrimSpace(c.Query("start_date"))
	q.EndDate = strings.TrimSpace(c.Query("end_date"))

	points, err := h.gateway.TimeSeriesHistory(c.UserContext(), q)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(types.TimeSeriesResponse{Data: points})
}

// Trends handles GET /v1/time-series/trends?hostname=h&metric=iops&days=30
func (h *Handler) Trends(c *fiber.Ctx) error {
	q := types.TrendQuery{
		Hostname: strings.TrimSpace(c.Query("hostname")),
		Metric:   c.Query("metric", "iops"),
		Days:     c.QueryInt("days", defaultTrendDays),
	}
	if q.Hostname == "" {
		return badRequest(c, "hostname is required")
	}
	if _, ok := types.TrendMetrics[q.Metric]; !ok {
		return badRequest(c, "Unknown metric: "+q.Metric)
	}
	if q.Days < 1 || q.Days > maxTrendDays {
		return badRequest(c, "days must be between 1 and 365")
	}

	trend, err := h.gateway.Trends(c.UserContext(), q)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(trend)
}

func (h *Handler) Info(c *fiber.Ctx) error {
	info, err := h.gateway.Info(c.UserContext())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(info)
}

func timeSeriesQuery(c *fiber.Ctx, defaultLimit, maxLimit int) (types.TimeSeriesQuery, error) {
	limit := c.QueryInt("limit", defaultLimit)
	if limit < 1 || limit > maxLimit {
		return types.TimeSeriesQuery{}, fmt.Errorf("limit must be between 1 and %d", maxLimit)
	}
	return types.TimeSeriesQuery{
		Hostnames: splitCSV(c.Query("hostnames")),
		Limit:     limit,
	}, nil
}
