package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/georgeshao/fio-dashboard/internal/filter"
	"github.com/georgeshao/fio-dashboard/internal/gateway"
	"github.com/georgeshao/fio-dashboard/internal/importer"
)

func SetupRoutes(app *fiber.App, gw *gateway.Gateway, engine *filter.Engine, im *importer.Importer, logger *zap.SugaredLogger) {
	h := NewHandler(gw, engine, im, logger)

	v1 := app.Group("/v1")

	v1.Get("/test-runs", h.ListTestRuns)
	v1.Put("/test-runs/bulk", h.BulkUpdateTestRuns)
	v1.Get("/test-runs/:id", h.GetTestRun)
	v1.Patch("/test-runs/:id", h.UpdateTestRun)
	v1.Delete("/test-runs/:id", h.DeleteTestRun)
	v1.Get("/performance-data", h.GetPerformanceData)
	v1.Get("/configurations", h.ListConfigurations)

	v1.Get("/filters", h.GetFilters)
	v1.Post("/filters/toggle", h.ToggleFilter)
	v1.Post("/filters/apply", h.ApplyFilters)
	v1.Post("/filters/refresh", h.RefreshFilterOptions)
	v1.Put("/filters/:category", h.SetFilterCategory)
	v1.Delete("/filters/:category", h.ClearFilterCategory)
	v1.Delete("/filters", h.ClearFilters)

	v1.Get("/users", h.ListUsers)
	v1.Get("/users/me", h.CurrentUser)
	v1.Post("/users", h.CreateUser)
	v1.Patch("/users/:username", h.UpdateUser)
	v1.Delete("/users/:username", h.DeleteUser)

	v1.Get("/time-series/servers", h.TimeSeriesServers)
	v1.Get("/time-series/latest", h.LatestTimeSeries)
	v1.Get("/time-series/history", h.TimeSeriesHistory)
	v1.Get("/time-series/trends", h.Trends)
	v1.Get("/info", h.Info)

	v1.Put("/auth", h.SignIn)
	v1.Delete("/auth", h.SignOut)

	v1.Post("/import", h.Import)

	v1.Get("/state", h.GetState)
	v1.Delete("/state/:class/error", h.DismissError)
	v1.Delete("/cache", h.ClearCache)

	app.Get("/health", h.Health)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
}
