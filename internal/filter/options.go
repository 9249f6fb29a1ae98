package filter

import "github.com/georgeshao/fio-dashboard/pkg/types"

// Options is the universe of legal values per category as declared by the
// upstream. It is only used for validation, never to filter records.
type Options struct {
	sets map[Category]*valueSet
}

func OptionsFrom(fo types.FilterOptions) *Options {
	o := &Options{sets: make(map[Category]*valueSet, numCategories)}
	o.addStrings(BlockSizes, fo.BlockSizes)
	o.addStrings(Patterns, fo.Patterns)
	o.addInts(QueueDepths, fo.QueueDepths)
	o.addInts(NumJobs, fo.NumJobs)
	o.addInts(Syncs, fo.Syncs)
	o.addInts(Directs, fo.Directs)
	o.addInts(Durations, fo.Durations)
	o.addStrings(TestSizes, fo.TestSizes)
	o.addStrings(Protocols, fo.Protocols)
	o.addStrings(Hostnames, fo.Hostnames)
	o.addStrings(DriveTypes, fo.DriveTypes)
	o.addStrings(DriveModels, fo.DriveModels)
	o.addStrings(HostDiskCombinations, fo.HostDiskCombinations)
	return o
}

func (o *Options) addStrings(c Category, values []string) {
	set := newValueSet()
	for _, s := range values {
		set.add(StringValue(s))
	}
	o.sets[c] = set
}

func (o *Options) addInts(c Category, values []int) {
	set := newValueSet()
	for _, n := range values {
		set.add(IntValue(n))
	}
	o.sets[c] = set
}

func (o *Options) Contains(c Category, v Value) bool {
	set, ok := o.sets[c]
	return ok && set.has(v)
}

// Values returns the legal values of c in upstream order.
func (o *Options) Values(c Category) []Value {
	set, ok := o.sets[c]
	if !ok {
		return nil
	}
	return set.values()
}
