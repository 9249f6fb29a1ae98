package types

import (
	"net/url"
	"strconv"
)

// ServerInfo summarises the tests recorded for one host, protocol and drive.
type ServerInfo struct {
	Hostname      string `json:"hostname"`
	Protocol      string `json:"protocol"`
	DriveModel    string `json:"drive_model"`
	TestCount     int    `json:"test_count"`
	LastTestTime  string `json:"last_test_time"`
	FirstTestTime string `json:"first_test_time"`
}

type TimeSeriesPoint struct {
	Timestamp        string              `json:"timestamp"`
	Hostname         *string             `json:"hostname"`
	Protocol         *string             `json:"protocol"`
	DriveModel       string              `json:"drive_model"`
	DriveType        *string             `json:"drive_type"`
	BlockSize        string              `json:"block_size"`
	ReadWritePattern string              `json:"read_write_pattern"`
	QueueDepth       int                 `json:"queue_depth"`
	Metrics          map[string]*float64 `json:"metrics"`
}

type TimeSeriesResponse struct {
	Data []TimeSeriesPoint `json:"data"`
}

// TimeSeriesQuery selects points for the latest and history views. History
// also honours the date bounds.
type TimeSeriesQuery struct {
	Hostnames []string
	StartDate string
	EndDate   string
	Limit     int
}

func (q TimeSeriesQuery) Values() url.Values {
	v := url.Values{}
	setStrings(v, "hostnames", q.Hostnames)
	if q.StartDate != "" {
		v.Set("start_date", q.StartDate)
	}
	if q.EndDate != "" {
		v.Set("end_date", q.EndDate)
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	return v
}

// TrendMetrics are the metrics the trend analysis accepts, with their units.
var TrendMetrics = map[string]string{
	"iops":        "IOPS",
	"avg_latency": "ms",
	"p95_latency": "ms",
	"p99_latency": "ms",
	"bandwidth":   "MB/s",
}

type TrendQuery struct {
	Hostname string
	Metric   string
	Days     int
}

func (q TrendQuery) Values() url.Values {
	v := url.Values{}
	v.Set("hostname", q.Hostname)
	if q.Metric != "" {
		v.Set("metric", q.Metric)
	}
	if q.Days > 0 {
		v.Set("days", strconv.Itoa(q.Days))
	}
	return v
}

type TrendPoint struct {
	Timestamp        string   `json:"timestamp"`
	BlockSize        string   `json:"block_size"`
	ReadWritePattern string   `json:"read_write_pattern"`
	QueueDepth       int      `json:"queue_depth"`
	Value            float64  `json:"value"`
	Unit             string   `json:"unit"`
	MovingAvg        *float64 `json:"moving_avg"`
	PercentChange    *string  `json:"percent_change"`
}

// TrendAnalysis summarises a trend. An empty period only carries Message.
type TrendAnalysis struct {
	Message       string   `json:"message,omitempty"`
	TotalPoints   int      `json:"total_points,omitempty"`
	MinValue      *float64 `json:"min_value,omitempty"`
	MaxValue      *float64 `json:"max_value,omitempty"`
	AvgValue      *float64 `json:"avg_value,omitempty"`
	FirstValue    *float64 `json:"first_value,omitempty"`
	LastValue     *float64 `json:"last_value,omitempty"`
	OverallChange string   `json:"overall_change,omitempty"`
}

type TrendResponse struct {
	Data          []TrendPoint  `json:"data"`
	TrendAnalysis TrendAnalysis `json:"trend_analysis"`
}

type APIInfo struct {
	Name          string `json:"name"`
	Version       string `json:"version"`
	Description   string `json:"description"`
	Endpoints     int    `json:"endpoints"`
	Documentation string `json:"documentation"`
}
