package configkey

import (
	"strconv"
	"strings"

	"github.com/georgeshao/fio-dashboard/pkg/types"
)

const (
	separator = "|"
	null      = "null"

	// DefaultDuration is the run length in seconds that labels leave out.
	DefaultDuration = 60
)

// Key returns the grouping key of a test run's configuration, ignoring host,
// drive and protocol. Absent optional numbers become "null" so runs missing
// the same field still group together.
func Key(r types.TestRun) string {
	parts := []string{
		escape(r.BlockSize),
		escape(r.ReadWritePattern),
		strconv.Itoa(r.QueueDepth),
		optional(r.NumJobs),
		optional(r.Direct),
		optional(r.Sync),
		optional(r.Duration),
	}
	return strings.Join(parts, separator)
}

// Label renders the configuration for display, e.g. "4K randread QD32, 4 jobs, direct".
func Label(r types.TestRun) string {
	var b strings.Builder
	b.WriteString(r.BlockSize)
	b.WriteByte(' ')
	b.WriteString(r.ReadWritePattern)
	b.WriteString(" QD")
	b.WriteString(strconv.Itoa(r.QueueDepth))

	if r.NumJobs != nil && *r.NumJobs != 1 {
		b.WriteString(", ")
		b.WriteString(strconv.Itoa(*r.NumJobs))
		b.WriteString(" jobs")
	}
	if r.Direct != nil {
		if *r.Direct != 0 {
			b.WriteString(", direct")
		} else {
			b.WriteString(", buffered")
		}
	}
	if r.Sync != nil {
		if *r.Sync != 0 {
			b.WriteString(", sync")
		} else {
			b.WriteString(", async")
		}
	}
	if r.Duration != nil && *r.Duration != DefaultDuration {
		b.WriteString(", ")
		b.WriteString(strconv.Itoa(*r.Duration))
		b.WriteByte('s')
	}
	return b.String()
}

type Group struct {
	Key   string
	Label string
	Runs  []types.TestRun
}

// IDs returns the ids of the runs in the group.
func (g Group) IDs() []int64 {
	ids := make([]int64, len(g.Runs))
	for i, r := range g.Runs {
		ids[i] = r.ID
	}
	return ids
}

// GroupRuns buckets runs by configuration key. Groups keep the order in which
// their key first appears; runs keep their input order within a group.
func GroupRuns(runs []types.TestRun) []Group {
	index := make(map[string]int)
	var groups []Group
	for _, r := range runs {
		key := Key(r)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, Group{Key: key, Label: Label(r)})
		}
		groups[i].Runs = append(groups[i].Runs, r)
	}
	return groups
}

func optional(n *int) string {
	if n == nil {
		return null
	}
	return strconv.Itoa(*n)
}

// escape keeps free-form components from forging a separator or the null
// sentinel.
func escape(s string) string {
	if s == null {
		return `\null`
	}
	if !strings.ContainsAny(s, `|\`) {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		if r == '|' || r == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
