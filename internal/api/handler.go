package api

import (
	"io"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/georgeshao/fio-dashboard/internal/cache"
	"github.com/georgeshao/fio-dashboard/internal/filter"
	"github.com/georgeshao/fio-dashboard/internal/gateway"
	"github.com/georgeshao/fio-dashboard/internal/importer"
	"github.com/georgeshao/fio-dashboard/pkg/types"
)

type Handler struct {
	gateway  *gateway.Gateway
	engine   *filter.Engine
	importer *importer.Importer
	logger   *zap.SugaredLogger

	// optionsSynced is the fetch time of the options last given to engine.
	optionsMu     sync.Mutex
	optionsSynced time.Time
}

func NewHandler(gw *gateway.Gateway, engine *filter.Engine, im *importer.Importer, logger *zap.SugaredLogger) *Handler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Handler{
		gateway:  gw,
		engine:   engine,
		importer: im,
		logger:   logger,
	}
}

func (h *Handler) fail(c *fiber.Ctx, err error) error {
	status := errorStatus(err)
	if status >= fiber.StatusInternalServerError {
		h.logger.Errorw("Request failed", "method", c.Method(), "path", c.Path(), "status", status, "error", err)
	}
	return c.Status(status).JSON(types.ErrorResponse{Error: errorMessage(err)})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(types.ErrorResponse{Error: msg})
}

// filteredRuns fetches test runs and applies the active selection. With
// server=true the selection is also pushed upstream as query parameters.
func (h *Handler) filteredRuns(c *fiber.Ctx, server bool) ([]types.TestRun, error) {
	q := types.TestRunQuery{}
	if server {
		q = h.engine.Query()
	}
	runs, err := h.gateway.TestRuns(c.UserContext(), q)
	if err != nil {
		return nil, err
	}
	return h.engine.Filter(runs), nil
}

// ListTestRuns handles GET /v1/test-runs
func (h *Handler) ListTestRuns(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 0)
	offset := c.QueryInt("offset", 0)
	if limit < 0 || offset < 0 {
		return badRequest(c, "limit and offset must not be negative")
	}

	runs, err := h.filteredRuns(c, c.QueryBool("server_filter", false))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(paginate(runs, limit, offset))
}

func (h *Handler) GetTestRun(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return badRequest(c, "Invalid test run ID")
	}

	run, err := h.gateway.TestRun(c.UserContext(), int64(id))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(run)
}

func (h *Handler) UpdateTestRun(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return badRequest(c, "Invalid test run ID")
	}

	var req types.TestRunUpdate
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.IsEmpty() {
		return badRequest(c, "No fields to update")
	}

	run, err := h.gateway.UpdateTestRun(c.UserContext(), int64(id), req)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(run)
}

func (h *Handler) DeleteTestRun(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return badRequest(c, "Invalid test run ID")
	}

	if err := h.gateway.DeleteTestRun(c.UserContext(), int64(id)); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(types.MessageResponse{Message: "Test run deleted successfully"})
}

func (h *Handler) BulkUpdateTestRuns(c *fiber.Ctx) error {
	var req types.BulkUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if len(req.TestRunIDs) == 0 {
		return badRequest(c, "test_run_ids is required")
	}
	if req.Updates.IsEmpty() {
		return badRequest(c, "No fields to update")
	}

	resp, err := h.gateway.BulkUpdateTestRuns(c.UserContext(), req)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(resp)
}

// GetPerformanceData handles GET /v1/performance-data?test_run_ids=1,2&metric_types=iops
func (h *Handler) GetPerformanceData(c *fiber.Ctx) error {
	ids, err := parseIDList(c.Query("test_run_ids"))
	if err != nil || len(ids) == 0 {
		return badRequest(c, "test_run_ids must be a comma separated list of IDs")
	}

	data, err := h.gateway.PerformanceData(c.UserContext(), ids, splitCSV(c.Query("metric_types")))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(types.PerformanceDataResponse{PerformanceData: data})
}

// ListConfigurations handles GET /v1/configurations. Filtered runs are
// grouped by test configuration in first-appearance order.
func (h *Handler) ListConfigurations(c *fiber.Ctx) error {
	runs, err := h.filteredRuns(c, c.QueryBool("server_filter", false))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(configGroups(runs))
}

func (h *Handler) ListUsers(c *fiber.Ctx) error {
	users, err := h.gateway.Users(c.UserContext())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(users)
}

func (h *Handler) CurrentUser(c *fiber.Ctx) error {
	user, err := h.gateway.CurrentUser(c.UserContext())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(user)
}

func (h *Handler) CreateUser(c *fiber.Ctx) error {
	var req types.CreateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Username == "" || req.Password == "" {
		return badRequest(c, "Username and password are required")
	}
	if req.Role == "" {
		req.Role = types.RoleUploader
	}
	if req.Role != types.RoleAdmin && req.Role != types.RoleUploader {
		return badRequest(c, "Role must be admin or uploader")
	}

	user, err := h.gateway.CreateUser(c.UserContext(), req)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(user)
}

func (h *Handler) UpdateUser(c *fiber.Ctx) error {
	username := c.Params("username")
	if username == "" {
		return badRequest(c, "Username is required")
	}

	var req types.UpdateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Password == nil && req.Role == nil {
		return badRequest(c, "No fields to update")
	}
	if req.Role != nil && *req.Role != types.RoleAdmin && *req.Role != types.RoleUploader {
		return badRequest(c, "Role must be admin or uploader")
	}

	user, err := h.gateway.UpdateUser(c.UserContext(), username, req)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(user)
}

func (h *Handler) DeleteUser(c *fiber.Ctx) error {
	username := c.Params("username")
	if username == "" {
		return badRequest(c, "Username is required")
	}

	if err := h.gateway.DeleteUser(c.UserContext(), username); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(types.MessageResponse{Message: "User '" + username + "' deleted successfully"})
}

// SignIn handles PUT /v1/auth. The credentials are stored for every later
// upstream request once the upstream accepted them.
func (h *Handler) SignIn(c *fiber.Ctx) error {
	var req types.SignInRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Username == "" || req.Password == "" {
		return badRequest(c, "Username and password are required")
	}

	user, err := h.gateway.SignIn(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(user)
}

func (h *Handler) SignOut(c *fiber.Ctx) error {
	if err := h.gateway.SignOut(c.UserContext()); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Import handles POST /v1/import with one or more multipart "files" parts.
func (h *Handler) Import(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return badRequest(c, "Expected multipart form data")
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		return badRequest(c, "No files uploaded")
	}

	files := make([]importer.File, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return badRequest(c, "Failed to read "+fh.Filename)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return badRequest(c, "Failed to read "+fh.Filename)
		}
		files = append(files, importer.File{Name: fh.Filename, Data: data})
	}

	meta := types.ImportMetadata{
		Hostname:    strings.TrimSpace(c.FormValue("hostname")),
		Protocol:    strings.TrimSpace(c.FormValue("protocol")),
		DriveType:   strings.TrimSpace(c.FormValue("drive_type")),
		DriveModel:  strings.TrimSpace(c.FormValue("drive_model")),
		Description: strings.TrimSpace(c.FormValue("description")),
	}

	report, err := h.importer.Import(c.UserContext(), files, meta)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(report)
}

// GetState reports loading, error and freshness of every resource class.
func (h *Handler) GetState(c *fiber.Ctx) error {
	return c.JSON(types.StateResponse{
		TestRuns:      resourceStatus(h.gateway.TestRunsState()),
		FilterOptions: resourceStatus(h.gateway.FilterOptionsState()),
		Users:         resourceStatus(h.gateway.UsersState()),
		Health:        resourceStatus(h.gateway.HealthState()),
		TimeSeries:    resourceStatus(h.gateway.TimeSeriesState()),
	})
}

func (h *Handler) DismissError(c *fiber.Ctx) error {
	class := cache.Class(c.Params("class"))
	if !slices.Contains(cache.Classes(), class) {
		return badRequest(c, "Unknown resource class: "+string(class))
	}

	h.gateway.DismissError(class)
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) ClearCache(c *fiber.Ctx) error {
	h.gateway.ClearCache()
	return c.JSON(types.MessageResponse{Message: "Cache cleared"})
}

// Health handles GET /health. The dashboard itself is up whenever it can
// answer; an unreachable upstream only degrades the status.
func (h *Handler) Health(c *fiber.Ctx) error {
	resp := types.DashboardHealth{Status: "ok"}

	upstream, err := h.gateway.Health(c.UserContext())
	if err != nil {
		msg := errorMessage(err)
		resp.Status = "degraded"
		resp.Error = &msg
		return c.JSON(resp)
	}

	resp.Upstream = &upstream
	return c.JSON(resp)
}
