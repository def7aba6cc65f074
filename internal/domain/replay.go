package domain

// ReplayRange is one completed replay interval recorded in the completion
// ledger. Dates are calendar days in YYYY-MM-DD form, inclusive on both
// ends. Ranges for a symbol are kept merged and non-overlapping.
type ReplayRange struct {
	Symbol   string
	FromDate string
	ToDate   string
}

// Covers reports whether r fully contains [from, to]. Lexicographic
// comparison is correct for YYYY-MM-DD strings.
func (r ReplayRange) Covers(from, to string) bool {
	return r.FromDate <= from && r.ToDate >= to
}

// overlapsOrAdjoins reports whether two ranges can be merged into one.
func (r ReplayRange) overlapsOrAdjoins(other ReplayRange) bool {
	return r.FromDate <= other.ToDate && other.FromDate <= r.ToDate
}

// MergeRanges merges overlapping ranges for one symbol and returns them
// sorted by FromDate. Input order does not matter.
func MergeRanges(ranges []ReplayRange) []ReplayRange {
	if len(ranges) == 0 {
		return nil
	}

	sorted := make([]ReplayRange, len(ranges))
	copy(sorted, ranges)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].FromDate < sorted[j-1].FromDate; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}

	merged := sorted[:1]
	for _, r := range sorted[1:] {
		last := &merged[len(merged)-1]
		if last.overlapsOrAdjoins(r) {
			if r.ToDate > last.ToDate {
				last.ToDate = r.ToDate
			}
			continue
		}
		merged = append(merged, r)
	}
	return merged
}
