package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/georgeshao/fio-dashboard/pkg/types"
)

// The list endpoint answers at most DefaultListLimit runs unless asked for
// more, and never more than MaxListLimit.
const (
	DefaultListLimit = 50
	MaxListLimit     = 1000
)

// Upstream is an in-memory stand-in for the FIO API. It counts calls per
// "METHOD path", can hold requests at a gate, and can replace any route with
// a custom handler.
type Upstream struct {
	Server *httptest.Server

	mu        sync.Mutex
	calls     map[string]int
	gates     map[string]*Gate
	overrides map[string]http.HandlerFunc
	headers   []http.Header

	testRuns []types.TestRun
	options  types.FilterOptions
	users    []types.User
	nextID   int64
	envelope bool
}

// NewUpstream starts the fake and closes it when the test ends.
func NewUpstream(t testing.TB) *Upstream {
	t.Helper()

	u := &Upstream{
		calls:     make(map[string]int),
		gates:     make(map[string]*Gate),
		overrides: make(map[string]http.HandlerFunc),
		users:     []types.User{{Username: "admin", Role: types.RoleAdmin}},
		nextID:    1000,
	}
	u.Server = httptest.NewServer(http.HandlerFunc(u.serve))
	t.Cleanup(u.Server.Close)
	return u
}

func (u *Upstream) URL() string {
	return u.Server.URL
}

func (u *Upstream) SetTestRuns(runs []types.TestRun) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.testRuns = append([]types.TestRun(nil), runs...)
}

func (u *Upstream) SetOptions(o types.FilterOptions) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.options = o
}

// UseEnvelope switches list responses from bare arrays to the
// {data,total,limit,offset,has_more} envelope.
func (u *Upstream) UseEnvelope(on bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.envelope = on
}

// Calls returns how many requests reached "METHOD path".
func (u *Upstream) Calls(method, path string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.calls[method+" "+path]
}

// Headers returns the headers of every request received so far.
func (u *Upstream) Headers() []http.Header {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]http.Header(nil), u.headers...)
}

// Override replaces the handling of "METHOD path".
func (u *Upstream) Override(method, path string, h http.HandlerFunc) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.overrides[method+" "+path] = h
}

// Gate holds requests to a route until Release is called.
type Gate struct {
	arrived chan struct{}
	release chan struct{}
	once    sync.Once
}

// Arrived receives once per request that reached the gate.
func (g *Gate) Arrived() <-chan struct{} {
	return g.arrived
}

func (g *Gate) Release() {
	g.once.Do(func() { close(g.release) })
}

// Gate installs a gate on "METHOD path" and returns it.
func (u *Upstream) Gate(method, path string) *Gate {
	g := &Gate{
		arrived: make(chan struct{}, 64),
		release: make(chan struct{}),
	}
	u.mu.Lock()
	u.gates[method+" "+path] = g
	u.mu.Unlock()
	return g
}

func (u *Upstream) serve(w http.ResponseWriter, r *http.Request) {
	route := r.Method + " " + r.URL.Path

	u.mu.Lock()
	u.calls[route]++
	u.headers = append(u.headers, r.Header.Clone())
	gate := u.gates[route]
	override := u.overrides[route]
	u.mu.Unlock()

	if gate != nil {
		select {
		case gate.arrived <- struct{}{}:
		default:
		}
		select {
		case <-gate.release:
		case <-r.Context().Done():
			return
		}
	}

	if override != nil {
		override(w, r)
		return
	}

	path := r.URL.Path
	switch {
	case path == "/health" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, types.Health{Status: "healthy", Version: "1.0.0"})
	case path == "/api/filters" && r.Method == http.MethodGet:
		u.mu.Lock()
		opts := u.options
		u.mu.Unlock()
		writeJSON(w, http.StatusOK, opts)
	case path == "/api/test-runs/" && r.Method == http.MethodGet:
		u.listTestRuns(w, r)
	case path == "/api/test-runs/bulk" && r.Method == http.MethodPut:
		u.bulkUpdate(w, r)
	case path == "/api/test-runs/performance-data" && r.Method == http.MethodGet:
		u.performanceData(w, r)
	case strings.HasPrefix(path, "/api/test-runs/"):
		u.testRun(w, r, strings.TrimPrefix(path, "/api/test-runs/"))
	case path == "/api/import/" && r.Method == http.MethodPost:
		u.importFile(w, r)
	case path == "/api/info" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, types.APIInfo{Name: "FIO Analyzer API", Version: "1.0.0", Endpoints: 14, Documentation: "/docs"})
	case path == "/api/time-series/servers" && r.Method == http.MethodGet:
		u.timeSeriesServers(w)
	case (path == "/api/time-series/latest" || path == "/api/time-series/history") && r.Method == http.MethodGet:
		u.timeSeriesPoints(w, r)
	case path == "/api/time-series/trends" && r.Method == http.MethodGet:
		u.trends(w, r)
	case path == "/api/users/me" && r.Method == http.MethodGet:
		u.mu.Lock()
		me := u.users[0]
		u.mu.Unlock()
		writeJSON(w, http.StatusOK, me)
	case path == "/api/users/":
		u.usersCollection(w, r)
	case strings.HasPrefix(path, "/api/users/"):
		u.user(w, r, strings.TrimPrefix(path, "/api/users/"))
	default:
		writeDetail(w, http.StatusNotFound, "Not Found")
	}
}

func (u *Upstream) listTestRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	u.mu.Lock()
	runs := make([]types.TestRun, 0, len(u.testRuns))
	for _, run := range u.testRuns {
		if matchesQuery(run, q) {
			runs = append(runs, run)
		}
	}
	envelope := u.envelope
	u.mu.Unlock()

	total := len(runs)
	offset, _ := strconv.Atoi(q.Get("offset"))
	limit := DefaultListLimit
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > MaxListLimit {
			writeDetail(w, http.StatusUnprocessableEntity, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}
	if offset > len(runs) {
		offset = len(runs)
	}
	runs = runs[offset:]
	if limit < len(runs) {
		runs = runs[:limit]
	}

	if !envelope {
		writeJSON(w, http.StatusOK, runs)
		return
	}
	writeJSON(w, http.StatusOK, types.ListEnvelope[types.TestRun]{
		Data:    runs,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+len(runs) < total,
	})
}

func matchesQuery(run types.TestRun, q map[string][]string) bool {
	in := func(param, value string) bool {
		raw := ""
		if values := q[param]; len(values) > 0 {
			raw = values[0]
		}
		if raw == "" {
			return true
		}
		return slices.Contains(strings.Split(raw, ","), value)
	}
	return in("hostnames", deref(run.Hostname)) &&
		in("protocols", deref(run.Protocol)) &&
		in("drive_types", deref(run.DriveType)) &&
		in("patterns", run.ReadWritePattern) &&
		in("block_sizes", run.BlockSize)
}

func (u *Upstream) testRun(w http.ResponseWriter, r *http.Request, rawID string) {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "Invalid test run id")
		return
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	idx := slices.IndexFunc(u.testRuns, func(run types.TestRun) bool { return run.ID == id })
	if idx < 0 {
		writeDetail(w, http.StatusNotFound, "Test run not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, u.testRuns[idx])
	case http.MethodPut:
		var update types.TestRunUpdate
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			writeDetail(w, http.StatusBadRequest, "Invalid body")
			return
		}
		applyUpdate(&u.testRuns[idx], update)
		writeJSON(w, http.StatusOK, u.testRuns[idx])
	case http.MethodDelete:
		u.testRuns = slices.Delete(u.testRuns, idx, idx+1)
		writeJSON(w, http.StatusOK, types.MessageResponse{Message: "Test run deleted successfully"})
	default:
		writeDetail(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	}
}

func (u *Upstream) bulkUpdate(w http.ResponseWriter, r *http.Request) {
	var req types.BulkUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid body")
		return
	}
	if req.Updates.IsEmpty() {
		writeDetail(w, http.StatusBadRequest, "No updates provided")
		return
	}

	u.mu.Lock()
	updated := 0
	for i := range u.testRuns {
		if slices.Contains(req.TestRunIDs, u.testRuns[i].ID) {
			applyUpdate(&u.testRuns[i], req.Updates)
			updated++
		}
	}
	u.mu.Unlock()

	writeJSON(w, http.StatusOK, types.BulkUpdateResponse{
		Message: "Successfully updated " + strconv.Itoa(updated) + " test runs",
		Updated: updated,
		Failed:  len(req.TestRunIDs) - updated,
	})
}

func applyUpdate(run *types.TestRun, update types.TestRunUpdate) {
	if update.Description != nil {
		run.Description = update.Description
	}
	if update.TestName != nil {
		run.TestName = *update.TestName
	}
	if update.Hostname != nil {
		run.Hostname = update.Hostname
	}
	if update.Protocol != nil {
		run.Protocol = update.Protocol
	}
	if update.DriveType != nil {
		run.DriveType = update.DriveType
	}
	if update.DriveModel != nil {
		run.DriveModel = *update.DriveModel
	}
}

func (u *Upstream) performanceData(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	metricTypes := strings.Split(q.Get("metric_types"), ",")

	u.mu.Lock()
	defer u.mu.Unlock()

	resp := types.PerformanceDataResponse{PerformanceData: []types.PerformanceData{}}
	for _, rawID := range strings.Split(q.Get("test_run_ids"), ",") {
		id, err := strconv.ParseInt(rawID, 10, 64)
		if err != nil {
			continue
		}
		idx := slices.IndexFunc(u.testRuns, func(run types.TestRun) bool { return run.ID == id })
		if idx < 0 {
			continue
		}
		data := types.PerformanceData{TestRunID: id, Metrics: map[string]types.PerformanceMetric{}}
		for _, m := range metricTypes {
			if m == "iops" && u.testRuns[idx].IOPS != nil {
				data.Metrics[m] = types.PerformanceMetric{Value: u.testRuns[idx].IOPS, Unit: "IOPS"}
			}
		}
		resp.PerformanceData = append(resp.PerformanceData, data)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (u *Upstream) importFile(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()
	if _, err := io.Copy(io.Discard, file); err != nil {
		writeDetail(w, http.StatusBadRequest, "Unreadable file")
		return
	}

	u.mu.Lock()
	u.nextID++
	run := types.TestRun{
		ID:               u.nextID,
		TestName:         header.Filename,
		DriveModel:       r.FormValue("drive_model"),
		BlockSize:        "4K",
		ReadWritePattern: "randread",
		QueueDepth:       1,
		IsLatest:         1,
	}
	if v := r.FormValue("hostname"); v != "" {
		run.Hostname = &v
	}
	if v := r.FormValue("protocol"); v != "" {
		run.Protocol = &v
	}
	u.testRuns = append(u.testRuns, run)
	u.mu.Unlock()

	writeJSON(w, http.StatusOK, types.ImportResponse{
		Message:   "FIO results imported successfully",
		TestRunID: run.ID,
		Filename:  header.Filename,
	})
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (u *Upstream) timeSeriesServers(w http.ResponseWriter) {
	u.mu.Lock()
	defer u.mu.Unlock()

	servers := []types.ServerInfo{}
	index := map[string]int{}
	for _, run := range u.testRuns {
		if run.Hostname == nil || run.Protocol == nil {
			continue
		}
		key := *run.Hostname + "|" + *run.Protocol + "|" + run.DriveModel
		i, ok := index[key]
		if !ok {
			i = len(servers)
			index[key] = i
			servers = append(servers, types.ServerInfo{
				Hostname:      *run.Hostname,
				Protocol:      *run.Protocol,
				DriveModel:    run.DriveModel,
				FirstTestTime: run.Timestamp,
			})
		}
		servers[i].TestCount++
		servers[i].LastTestTime = run.Timestamp
	}
	writeJSON(w, http.StatusOK, servers)
}

func (u *Upstream) timeSeriesPoints(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 100
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeDetail(w, http.StatusUnprocessableEntity, "Invalid limit")
			return
		}
		limit = n
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	points := []types.TimeSeriesPoint{}
	for _, run := range u.testRuns {
		if len(points) == limit {
			break
		}
		if !matchesQuery(run, q) {
			continue
		}
		if start := q.Get("start_date"); start != "" && run.Timestamp < start {
			continue
		}
		if end := q.Get("end_date"); end != "" && run.Timestamp > end {
			continue
		}
		points = append(points, types.TimeSeriesPoint{
			Timestamp:        run.Timestamp,
			Hostname:         run.Hostname,
			Protocol:         run.Protocol,
			DriveModel:       run.DriveModel,
			DriveType:        run.DriveType,
			BlockSize:        run.BlockSize,
			ReadWritePattern: run.ReadWritePattern,
			QueueDepth:       run.QueueDepth,
			Metrics:          map[string]*float64{"iops": run.IOPS, "avg_latency": run.AvgLatency, "bandwidth": run.Bandwidth},
		})
	}
	writeJSON(w, http.StatusOK, types.TimeSeriesResponse{Data: points})
}

// trends only analyses iops.
func (u *Upstream) trends(w http.ResponseWriter, r *http.Request) {
	hostname := r.URL.Query().Get("hostname")
	if hostname == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "hostname is required")
		return
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	resp := types.TrendResponse{Data: []types.TrendPoint{}}
	var values []float64
	for _, run := range u.testRuns {
		if deref(run.Hostname) != hostname || run.IOPS == nil {
			continue
		}
		values = append(values, *run.IOPS)
		resp.Data = append(resp.Data, types.TrendPoint{
			Timestamp:        run.Timestamp,
			BlockSize:        run.BlockSize,
			ReadWritePattern: run.ReadWritePattern,
			QueueDepth:       run.QueueDepth,
			Value:            *run.IOPS,
			Unit:             "IOPS",
		})
	}
	if len(values) == 0 {
		resp.TrendAnalysis.Message = "No data found for the specified period"
	} else {
		first, last := values[0], values[len(values)-1]
		resp.TrendAnalysis.TotalPoints = len(values)
		resp.TrendAnalysis.FirstValue = &first
		resp.TrendAnalysis.LastValue = &last
	}
	writeJSON(w, http.StatusOK, resp)
}

func (u *Upstream) usersCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		u.mu.Lock()
		users := append([]types.User(nil), u.users...)
		u.mu.Unlock()
		writeJSON(w, http.StatusOK, users)
	case http.MethodPost:
		var req types.CreateUserRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
			writeDetail(w, http.StatusBadRequest, "Invalid user")
			return
		}
		u.mu.Lock()
		defer u.mu.Unlock()
		if slices.ContainsFunc(u.users, func(user types.User) bool { return user.Username == req.Username }) {
			writeDetail(w, http.StatusBadRequest, "User already exists")
			return
		}
		user := types.User{Username: req.Username, Role: req.Role}
		u.users = append(u.users, user)
		writeJSON(w, http.StatusOK, user)
	default:
		writeDetail(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	}
}

func (u *Upstream) user(w http.ResponseWriter, r *http.Request, username string) {
	u.mu.Lock()
	defer u.mu.Unlock()

	idx := slices.IndexFunc(u.users, func(user types.User) bool { return user.Username == username })
	if idx < 0 {
		writeDetail(w, http.StatusNotFound, "User not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, u.users[idx])
	case http.MethodPut:
		var req types.UpdateUserRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeDetail(w, http.StatusBadRequest, "Invalid body")
			return
		}
		if req.Role != nil {
			u.users[idx].Role = *req.Role
		}
		writeJSON(w, http.StatusOK, u.users[idx])
	case http.MethodDelete:
		u.users = slices.Delete(u.users, idx, idx+1)
		writeJSON(w, http.StatusOK, types.MessageResponse{Message: "User deleted successfully"})
	default:
		writeDetail(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
