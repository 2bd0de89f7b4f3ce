package schemarun

import "sort"

// Registry is an immutable, version-ordered index over a catalog of
// Migrations. It answers "what comes next/previous" without re-scanning
// the catalog; all operations run against a pre-sorted slice so lookups
// are O(log n) and emission is O(k) in the returned count.
type Registry struct {
	sorted []Migration        // ascending by Version
	byVer  map[uint64]int     // Version -> index into sorted
}

// NewRegistry builds a Registry from migrations. It fails with
// DuplicateVersionError if two entries share a Version.
func NewRegistry(migrations []Migration) (*Registry, error) {
	sorted := make([]Migration, len(migrations))
	copy(sorted, migrations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })

	byVer := make(map[uint64]int, len(sorted))
	for i, m := range sorted {
		if _, dup := byVer[m.Version]; dup {
			return nil, DuplicateVersionError{Version: m.Version}
		}
		byVer[m.Version] = i
	}

	return &Registry{sorted: sorted, byVer: byVer}, nil
}

// Len returns the number of migrations in the registry.
func (r *Registry) Len() int { return len(r.sorted) }

// Get returns the migration at version, and whether it was found.
func (r *Registry) Get(version uint64) (Migration, bool) {
	i, ok := r.byVer[version]
	if !ok {
		return Migration{}, false
	}
	return r.sorted[i], true
}

// NextAfter returns migrations with version strictly greater than after
// (nil meaning baseline, i.e. every migration), in ascending order, capped
// at limit entries when limit > 0.
func (r *Registry) NextAfter(after *uint64, limit int) []Migration {
	start := 0
	if after != nil {
		start = sort.Search(len(r.sorted), func(i int) bool {
			return r.sorted[i].Version > *after
		})
	}
	end := len(r.sorted)
	if limit > 0 && start+limit < end {
		end = start + limit
	}
	out := make([]Migration, end-start)
	copy(out, r.sorted[start:end])
	return out
}

// AtOrBelow returns migrations with version <= v, in descending order,
// capped at limit entries when limit > 0.
func (r *Registry) AtOrBelow(v uint64, limit int) []Migration {
	end := sort.Search(len(r.sorted), func(i int) bool {
		return r.sorted[i].Version > v
	})
	start := 0
	if limit > 0 && end-limit > start {
		start = end - limit
	}
	out := make([]Migration, end-start)
	for i := range out {
		out[i] = r.sorted[end-1-i]
	}
	return out
}

// PreviousOf returns the migration with the largest version below v, or
// (zero, false) if no registered version is below v. v need not itself be
// a registered version.
func (r *Registry) PreviousOf(v uint64) (Migration, bool) {
	i := sort.Search(len(r.sorted), func(i int) bool {
		return r.sorted[i].Version >= v
	})
	if i == 0 {
		return Migration{}, false
	}
	return r.sorted[i-1], true
}

// CountBetween returns the number of registered versions in
// (lowerExclusive, upperInclusive]. lowerExclusive == nil means "from the
// beginning of the registry".
func (r *Registry) CountBetween(lowerExclusive *uint64, upperInclusive uint64) int {
	hi := sort.Search(len(r.sorted), func(i int) bool {
		return r.sorted[i].Version > upperInclusive
	})
	lo := 0
	if lowerExclusive != nil {
		lo = sort.Search(len(r.sorted), func(i int) bool {
			return r.sorted[i].Version > *lowerExclusive
		})
	}
	if hi < lo {
		return 0
	}
	return hi - lo
}
