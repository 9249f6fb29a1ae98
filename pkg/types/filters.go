package types

// FilterOptions is the option universe returned by GET /api/filters.
type FilterOptions struct {
	DriveModels          []string `json:"drive_models"`
	DriveTypes           []string `json:"drive_types"`
	Hostnames            []string `json:"hostnames"`
	Protocols            []string `json:"protocols"`
	HostDiskCombinations []string `json:"host_disk_combinations"`
	BlockSizes           []string `json:"block_sizes"`
	Patterns             []string `json:"patterns"`
	Syncs                []int    `json:"syncs"`
	QueueDepths          []int    `json:"queue_depths"`
	Directs              []int    `json:"directs"`
	NumJobs              []int    `json:"num_jobs"`
	TestSizes            []string `json:"test_sizes"`
	Durations            []int    `json:"durations"`
}

type FilterStateResponse struct {
	Filters map[string][]any `json:"filters"`
	Applied bool             `json:"applied"`
	Active  bool             `json:"active"`
	Options *FilterOptions   `json:"options,omitempty"`
	Pruned  int              `json:"pruned,omitempty"`
}

type ToggleFilterRequest struct {
	Category string `json:"category"`
	Value    any    `json:"value"`
}

type ToggleFilterResponse struct {
	Category string `json:"category"`
	Value    any    `json:"value"`
	Active   bool   `json:"active"`
}

type SetFilterRequest struct {
	Values []any `json:"values"`
}
