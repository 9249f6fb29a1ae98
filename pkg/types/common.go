package types

type ErrorResponse struct {
	Error string `json:"error"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type Health struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp,omitempty"`
	Version   string `json:"version,omitempty"`
}

type DashboardHealth struct {
	Status   string  `json:"status"`
	Upstream *Health `json:"upstream,omitempty"`
	Error    *string `json:"error,omitempty"`
}

// ListEnvelope is the paginated list shape. Upstream endpoints may also answer
// with a bare array.
type ListEnvelope[T any] struct {
	Data    []T  `json:"data"`
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

type ResourceStatus struct {
	Loaded      bool    `json:"loaded"`
	Loading     bool    `json:"loading"`
	Error       *string `json:"error,omitempty"`
	ErrorStatus int     `json:"error_status,omitempty"`
	LastFetched *string `json:"last_fetched,omitempty"`
}

type StateResponse struct {
	TestRuns      ResourceStatus `json:"test_runs"`
	FilterOptions ResourceStatus `json:"filter_options"`
	Users         ResourceStatus `json:"users"`
	Health        ResourceStatus `json:"health"`
	TimeSeries    ResourceStatus `json:"time_series"`
}

type ConfigGroup struct {
	Key        string  `json:"key"`
	Label      string  `json:"label"`
	Count      int     `json:"count"`
	TestRunIDs []int64 `json:"test_run_ids"`
}
