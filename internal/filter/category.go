package filter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/georgeshao/fio-dashboard/pkg/types"
)

var (
	ErrUnknownCategory = errors.New("unknown filter category")
	ErrInvalidValue    = errors.New("invalid filter value")
	ErrNotAllowed      = errors.New("filter value not among available options")
)

// Kind is the scalar type of a category's values.
type Kind int

const (
	KindString Kind = iota
	KindNumber
)

func (k Kind) String() string {
	if k == KindNumber {
		return "number"
	}
	return "string"
}

type Category int

const (
	BlockSizes Category = iota
	Patterns
	QueueDepths
	NumJobs
	Syncs
	Directs
	Durations
	TestSizes
	Protocols
	Hostnames
	DriveTypes
	DriveModels
	HostDiskCombinations

	numCategories
)

var categoryNames = [numCategories]string{
	BlockSizes:           "block_sizes",
	Patterns:             "patterns",
	QueueDepths:          "queue_depths",
	NumJobs:              "num_jobs",
	Syncs:                "syncs",
	Directs:              "directs",
	Durations:            "durations",
	TestSizes:            "test_sizes",
	Protocols:            "protocols",
	Hostnames:            "hostnames",
	DriveTypes:           "drive_types",
	DriveModels:          "drive_models",
	HostDiskCombinations: "host_disk_combinations",
}

// Categories returns every category in declaration order.
func Categories() []Category {
	all := make([]Category, numCategories)
	for i := range all {
		all[i] = Category(i)
	}
	return all
}

func ParseCategory(name string) (Category, error) {
	for i, n := range categoryNames {
		if n == name {
			return Category(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCategory, name)
}

func (c Category) Valid() bool {
	return c >= 0 && c < numCategories
}

func (c Category) String() string {
	if !c.Valid() {
		return fmt.Sprintf("Category(%d)", int(c))
	}
	return categoryNames[c]
}

func (c Category) Kind() Kind {
	switch c {
	case QueueDepths, NumJobs, Syncs, Directs, Durations:
		return KindNumber
	default:
		return KindString
	}
}

// field extracts the value a record holds for c. ok is false when the record
// has no value for the category, in which case it can only pass while the
// category is unconstrained.
func (c Category) field(r *types.TestRun) (Value, bool) {
	switch c {
	case BlockSizes:
		return nonEmpty(r.BlockSize)
	case Patterns:
		return nonEmpty(r.ReadWritePattern)
	case QueueDepths:
		return IntValue(r.QueueDepth), true
	case NumJobs:
		return optionalInt(r.NumJobs)
	case Syncs:
		return optionalInt(r.Sync)
	case Directs:
		return optionalInt(r.Direct)
	case Durations:
		return optionalInt(r.Duration)
	case TestSizes:
		return optionalString(r.TestSize)
	case Protocols:
		return optionalString(r.Protocol)
	case Hostnames:
		return optionalString(r.Hostname)
	case DriveTypes:
		return optionalString(r.DriveType)
	case DriveModels:
		return nonEmpty(r.DriveModel)
	case HostDiskCombinations:
		if r.Hostname == nil || r.Protocol == nil || r.DriveModel == "" {
			return Value{}, false
		}
		return StringValue(HostDiskKey(*r.Hostname, *r.Protocol, r.DriveModel)), true
	}
	return Value{}, false
}

const hostDiskSeparator = " - "

// HostDiskKey builds the composite host/protocol/drive-model value, in the
// same form the upstream lists under host_disk_combinations.
func HostDiskKey(hostname, protocol, driveModel string) string {
	return hostname + hostDiskSeparator + protocol + hostDiskSeparator + driveModel
}

// SplitHostDiskKey reverses HostDiskKey. The drive model keeps any further
// separators it contains.
func SplitHostDiskKey(key string) (hostname, protocol, driveModel string, ok bool) {
	parts := strings.SplitN(key, hostDiskSeparator, 3)
	if len(parts) != 3 {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}

func nonEmpty(s string) (Value, bool) {
	if s == "" {
		return Value{}, false
	}
	return StringValue(s), true
}

func optionalString(s *string) (Value, bool) {
	if s == nil {
		return Value{}, false
	}
	return nonEmpty(*s)
}

func optionalInt(n *int) (Value, bool) {
	if n == nil {
		return Value{}, false
	}
	return IntValue(*n), true
}
