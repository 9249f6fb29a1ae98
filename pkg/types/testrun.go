package types

import (
	"net/url"
	"slices"
	"strconv"
	"strings"
)

type TestRun struct {
	ID               int64   `json:"id"`
	Timestamp        string  `json:"timestamp"`
	TestDate         *string `json:"test_date,omitempty"`
	TestName         string  `json:"test_name"`
	Description      *string `json:"description,omitempty"`
	Hostname         *string `json:"hostname,omitempty"`
	Protocol         *string `json:"protocol,omitempty"`
	DriveType        *string `json:"drive_type,omitempty"`
	DriveModel       string  `json:"drive_model"`
	BlockSize        string  `json:"block_size"`
	ReadWritePattern string  `json:"read_write_pattern"`
	QueueDepth       int     `json:"queue_depth"`
	NumJobs          *int    `json:"num_jobs,omitempty"`
	Direct           *int    `json:"direct,omitempty"`
	Sync             *int    `json:"sync,omitempty"`
	Duration         *int    `json:"duration,omitempty"`
	TestSize         *string `json:"test_size,omitempty"`
	FioVersion       *string `json:"fio_version,omitempty"`
	IsLatest         int     `json:"is_latest"`

	IOPS       *float64 `json:"iops,omitempty"`
	AvgLatency *float64 `json:"avg_latency,omitempty"`
	Bandwidth  *float64 `json:"bandwidth,omitempty"`
	P95Latency *float64 `json:"p95_latency,omitempty"`
	P99Latency *float64 `json:"p99_latency,omitempty"`
	UsrCPU     *float64 `json:"usr_cpu,omitempty"`
	SysCPU     *float64 `json:"sys_cpu,omitempty"`
}

// TestRunQuery is the server-side filter for GET /api/test-runs/. Multi-value
// fields are sent sorted and comma-joined, so selection order never changes
// the request.
type TestRunQuery struct {
	Hostnames   []string
	DriveTypes  []string
	DriveModels []string
	Protocols   []string
	Patterns    []string
	BlockSizes  []string
	Syncs       []int
	QueueDepths []int
	Directs     []int
	NumJobs     []int
	Limit       int
	Offset      int
}

func (q TestRunQuery) Values() url.Values {
	v := url.Values{}
	setStrings(v, "hostnames", q.Hostnames)
	setStrings(v, "drive_types", q.DriveTypes)
	setStrings(v, "drive_models", q.DriveModels)
	setStrings(v, "protocols", q.Protocols)
	setStrings(v, "patterns", q.Patterns)
	setStrings(v, "block_sizes", q.BlockSizes)
	setInts(v, "syncs", q.Syncs)
	setInts(v, "queue_depths", q.QueueDepths)
	setInts(v, "directs", q.Directs)
	setInts(v, "num_jobs", q.NumJobs)
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		v.Set("offset", strconv.Itoa(q.Offset))
	}
	return v
}

func (q TestRunQuery) IsZero() bool {
	return len(q.Values()) == 0
}

func setStrings(v url.Values, key string, values []string) {
	if len(values) == 0 {
		return
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	v.Set(key, strings.Join(sorted, ","))
}

func setInts(v url.Values, key string, values []int) {
	if len(values) == 0 {
		return
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	parts := make([]string, len(sorted))
	for i, n := range sorted {
		parts[i] = strconv.Itoa(n)
	}
	v.Set(key, strings.Join(parts, ","))
}

type TestRunUpdate struct {
	Description *string `json:"description,omitempty"`
	TestName    *string `json:"test_name,omitempty"`
	Hostname    *string `json:"hostname,omitempty"`
	Protocol    *string `json:"protocol,omitempty"`
	DriveType   *string `json:"drive_type,omitempty"`
	DriveModel  *string `json:"drive_model,omitempty"`
}

func (u TestRunUpdate) IsEmpty() bool {
	return u.Description == nil && u.TestName == nil && u.Hostname == nil &&
		u.Protocol == nil && u.DriveType == nil && u.DriveModel == nil
}

type BulkUpdateRequest struct {
	TestRunIDs []int64       `json:"test_run_ids"`
	Updates    TestRunUpdate `json:"updates"`
}

type BulkUpdateResponse struct {
	Message string `json:"message"`
	Updated int    `json:"updated"`
	Failed  int    `json:"failed"`
}

type PerformanceMetric struct {
	Value *float64 `json:"value"`
	Unit  string   `json:"unit"`
}

type PerformanceData struct {
	TestRunID int64                        `json:"test_run_id"`
	Metrics   map[string]PerformanceMetric `json:"metrics"`
}

type PerformanceDataResponse struct {
	PerformanceData []PerformanceData `json:"performance_data"`
}
