package importer

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// MaxFileSize matches the upstream upload limit.
const MaxFileSize = 50 << 20

var ErrInvalidFile = errors.New("invalid FIO result file")

type fioOutput struct {
	FioVersion string            `json:"fio version"`
	Jobs       []json.RawMessage `json:"jobs"`
}

// Validate checks a file locally before it is uploaded, so obviously broken
// files never cost an upstream request.
func Validate(name string, data []byte) error {
	if !strings.HasSuffix(strings.ToLower(name), ".json") {
		return fmt.Errorf("%w: only JSON files are supported", ErrInvalidFile)
	}
	if len(data) == 0 {
		return fmt.Errorf("%w: file is empty", ErrInvalidFile)
	}
	if len(data) > MaxFileSize {
		return fmt.Errorf("%w: file too large (%d bytes, limit %d)", ErrInvalidFile, len(data), MaxFileSize)
	}

	var out fioOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("%w: invalid JSON format: %v", ErrInvalidFile, err)
	}
	if len(out.Jobs) == 0 {
		return fmt.Errorf("%w: no jobs in FIO output", ErrInvalidFile)
	}
	return nil
}
