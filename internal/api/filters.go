package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/georgeshao/fio-dashboard/internal/cache"
	"github.com/georgeshao/fio-dashboard/internal/filter"
	"github.com/georgeshao/fio-dashboard/pkg/types"
)

func (h *Handler) filterState() types.FilterStateResponse {
	resp := types.FilterStateResponse{
		Filters: selectionToWire(h.engine.Snapshot()),
		Applied: h.engine.Applied(),
		Active:  h.engine.HasActive(),
	}
	if st := h.gateway.FilterOptionsState(); st.Loaded {
		opts := st.Data
		resp.Options = &opts
	}
	return resp
}

// ensureOptions keeps the engine's option universe in step with the cached
// filter options. The fetch is served from cache within its TTL and refetched
// after a mutation invalidated it. Without options every value is accepted.
func (h *Handler) ensureOptions(c *fiber.Ctx) {
	opts, err := h.gateway.FilterOptions(c.UserContext())
	if err != nil {
		if h.engine.Options() == nil {
			h.logger.Warnw("Filter options unavailable, accepting any value", "error", err)
		} else {
			h.logger.Warnw("Filter options refresh failed, keeping previous options", "error", err)
		}
		return
	}

	fetched := h.gateway.FilterOptionsState().LastFetched

	h.optionsMu.Lock()
	defer h.optionsMu.Unlock()
	if h.engine.Options() != nil && fetched.Equal(h.optionsSynced) {
		return
	}
	h.engine.SetOptions(filter.OptionsFrom(opts))
	h.optionsSynced = fetched
}

func (h *Handler) GetFilters(c *fiber.Ctx) error {
	return c.JSON(h.filterState())
}

// ToggleFilter handles POST /v1/filters/toggle
func (h *Handler) ToggleFilter(c *fiber.Ctx) error {
	var req types.ToggleFilterRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	category, err := filter.ParseCategory(req.Category)
	if err != nil {
		return h.fail(c, err)
	}
	value, err := filter.ParseValue(category, req.Value)
	if err != nil {
		return h.fail(c, err)
	}

	h.ensureOptions(c)
	active, err := h.engine.Toggle(c.UserContext(), category, value)
	if err != nil {
		return h.fail(c, err)
	}

	return c.JSON(types.ToggleFilterResponse{
		Category: category.String(),
		Value:    value.Any(),
		Active:   active,
	})
}

// SetFilterCategory handles PUT /v1/filters/:category. Either every value
// is accepted or the category is left unchanged.
func (h *Handler) SetFilterCategory(c *fiber.Ctx) error {
	category, err := filter.ParseCategory(c.Params("category"))
	if err != nil {
		return h.fail(c, err)
	}

	var req types.SetFilterRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	values, err := filter.ParseValues(category, req.Values)
	if err != nil {
		return h.fail(c, err)
	}

	h.ensureOptions(c)
	if err := h.engine.SetCategory(c.UserContext(), category, values); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(h.filterState())
}

func (h *Handler) ClearFilterCategory(c *fiber.Ctx) error {
	category, err := filter.ParseCategory(c.Params("category"))
	if err != nil {
		return h.fail(c, err)
	}
	if err := h.engine.ClearCategory(c.UserContext(), category); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(h.filterState())
}

func (h *Handler) ClearFilters(c *fiber.Ctx) error {
	h.engine.ClearAll(c.UserContext())
	return c.JSON(h.filterState())
}

func (h *Handler) ApplyFilters(c *fiber.Ctx) error {
	h.engine.Apply(c.UserContext())
	return c.JSON(h.filterState())
}

// RefreshFilterOptions handles POST /v1/filters/refresh. Options are refetched
// upstream and selected values that are no longer offered are dropped.
func (h *Handler) RefreshFilterOptions(c *fiber.Ctx) error {
	h.gateway.Invalidate(cache.FilterOptions)

	opts, err := h.gateway.FilterOptions(c.UserContext())
	if err != nil {
		return h.fail(c, err)
	}
	h.optionsMu.Lock()
	h.engine.SetOptions(filter.OptionsFrom(opts))
	h.optionsSynced = h.gateway.FilterOptionsState().LastFetched
	h.optionsMu.Unlock()
	pruned := h.engine.Prune(c.UserContext())

	resp := h.filterState()
	resp.Pruned = pruned
	return c.JSON(resp)
}
