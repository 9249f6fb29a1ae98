package types

type ImportResponse struct {
	Message   string `json:"message"`
	TestRunID int64  `json:"test_run_id"`
	Filename  string `json:"filename"`
}

// ImportMetadata is sent as multipart form fields next to the uploaded file.
type ImportMetadata struct {
	Hostname    string `json:"hostname,omitempty"`
	Protocol    string `json:"protocol,omitempty"`
	DriveType   string `json:"drive_type,omitempty"`
	DriveModel  string `json:"drive_model,omitempty"`
	Description string `json:"description,omitempty"`
}

func (m ImportMetadata) Fields() map[string]string {
	fields := make(map[string]string)
	if m.Hostname != "" {
		fields["hostname"] = m.Hostname
	}
	if m.Protocol != "" {
		fields["protocol"] = m.Protocol
	}
	if m.DriveType != "" {
		fields["drive_type"] = m.DriveType
	}
	if m.DriveModel != "" {
		fields["drive_model"] = m.DriveModel
	}
	if m.Description != "" {
		fields["description"] = m.Description
	}
	return fields
}

type ImportStatus string

const (
	ImportQueued    ImportStatus = "queued"
	ImportCompleted ImportStatus = "completed"
	ImportFailed    ImportStatus = "failed"
)

type ImportFileResult struct {
	Filename  string       `json:"filename"`
	Status    ImportStatus `json:"status"`
	TestRunID *int64       `json:"test_run_id,omitempty"`
	Error     *string      `json:"error,omitempty"`
}

type ImportBatchResponse struct {
	BatchID   string             `json:"batch_id"`
	Imported  int                `json:"imported"`
	Failed    int                `json:"failed"`
	Results   []ImportFileResult `json:"results"`
	StartedAt string             `json:"started_at"`
	Duration  string             `json:"duration"`
}
