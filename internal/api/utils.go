package api

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/georgeshao/fio-dashboard/internal/configkey"
	"github.com/georgeshao/fio-dashboard/internal/coordinator"
	"github.com/georgeshao/fio-dashboard/internal/filter"
	"github.com/georgeshao/fio-dashboard/internal/gateway"
	"github.com/georgeshao/fio-dashboard/internal/importer"
	"github.com/georgeshao/fio-dashboard/pkg/types"
)

// StatusClientClosedRequest is reported when the fetch behind a view was
// aborted or superseded by a newer one.
const StatusClientClosedRequest = 499

// errorStatus maps an error from the gateway, the filter engine or the
// importer to the status code returned to the dashboard.
func errorStatus(err error) int {
	if coordinator.IsAborted(err) {
		return StatusClientClosedRequest
	}

	var apiErr *gateway.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Status >= 400 && apiErr.Status < 500 {
			return apiErr.Status
		}
		return fiber.StatusBadGateway
	}

	switch {
	case errors.Is(err, filter.ErrUnknownCategory),
		errors.Is(err, filter.ErrInvalidValue),
		errors.Is(err, filter.ErrNotAllowed):
		return fiber.StatusBadRequest
	case errors.Is(err, importer.ErrImportInProgress),
		errors.Is(err, gateway.ErrCredentialsReadOnly):
		return fiber.StatusConflict
	}
	return fiber.StatusInternalServerError
}

func errorMessage(err error) string {
	var apiErr *gateway.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	if coordinator.IsAborted(err) {
		return "Request aborted"
	}
	return err.Error()
}

func resourceStatus[T any](s gateway.ResourceState[T]) types.ResourceStatus {
	status := types.ResourceStatus{
		Loaded:  s.Loaded,
		Loading: s.Loading,
	}
	if s.Error != nil {
		msg := errorMessage(s.Error)
		status.Error = &msg

		var apiErr *gateway.APIError
		if errors.As(s.Error, &apiErr) {
			status.ErrorStatus = apiErr.Status
		}
	}
	if !s.LastFetched.IsZero() {
		at := s.LastFetched.UTC().Format(time.RFC3339)
		status.LastFetched = &at
	}
	return status
}

func selectionToWire(sel filter.Selection) map[string][]any {
	out := make(map[string][]any, len(sel))
	for c, values := range sel {
		wire := make([]any, len(values))
		for i, v := range values {
			wire[i] = v.Any()
		}
		out[c.String()] = wire
	}
	return out
}

// paginate slices an already filtered list. A limit of zero returns
// everything from offset on.
func paginate(runs []types.TestRun, limit, offset int) types.ListEnvelope[types.TestRun] {
	total := len(runs)
	start := min(offset, total)
	end := total
	if limit > 0 {
		end = min(start+limit, total)
	}

	page := runs[start:end]
	if page == nil {
		page = []types.TestRun{}
	}
	return types.ListEnvelope[types.TestRun]{
		Data:    page,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: end < total,
	}
}

func parseIDList(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func configGroups(runs []types.TestRun) []types.ConfigGroup {
	groups := configkey.GroupRuns(runs)
	out := make([]types.ConfigGroup, len(groups))
	for i, g := range groups {
		out[i] = types.ConfigGroup{
			Key:        g.Key,
			Label:      g.Label,
			Count:      len(g.Runs),
			TestRunIDs: g.IDs(),
		}
	}
	return out
}
