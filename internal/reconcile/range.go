// Package reconcile holds the pure range and classification rules shared by
// the store implementations: interval overlap, range materialization math,
// scan-outcome classification and aggregate counting.
package reconcile

// Overlaps reports whether the closed integer intervals [aStart,aEnd] and
// [bStart,bEnd] intersect. Ranges sharing a boundary sequence conflict;
// abutting ranges (aEnd+1 == bStart) do not.
func Overlaps(aStart, aEnd, bStart, bEnd int) bool {
	return aStart <= bEnd && aEnd >= bStart
}

// Packages is the row count a range materializes to.
func Packages(startSeq, endSeq int) int {
	return endSeq - startSeq + 1
}

// InRange reports whether seq falls inside the closed range.
func InRange(seq, startSeq, endSeq int) bool {
	return seq >= startSeq && seq <= endSeq
}

// MissingSeqs returns, in ascending order, every sequence in
// [startSeq,endSeq] absent from have. Used by the synchronizer's fill step.
func MissingSeqs(have map[int]bool, startSeq, endSeq int) []int {
	var out []int
	for s := startSeq; s <= endSeq; s++ {
		if !have[s] {
			out = append(out, s)
		}
	}
	return out
}
