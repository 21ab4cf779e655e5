// pkg/scanners/idor/baseline.go
package idor

// SelectBaseline picks the bucket with the greatest recorded body length.
// Equal lengths resolve to the smallest bucket key. ok is false when the
// histogram is empty, in which case the zero shape (no status, length 0)
// is returned.
func SelectBaseline(h Histogram) (ResponseShape, bool) {
	var (
		best    ResponseShape
		bestKey int
		found   bool
	)
	for key, shape := range h {
		if !found || shape.Length > best.Length || (shape.Length == best.Length && key < bestKey) {
			best, bestKey, found = shape, key, true
		}
	}
	return best, found
}

// Diff compares every result to baseline and sets DiffStatus/DiffLen in place.
//
// DiffStatus is only set when both statuses are known. DiffLen is only set when
// the baseline length is nonzero and the result carries a response. Results
// that cannot be compared are reset to nil, so running Diff twice gives the
// same flags.
func Diff(results []*ScanResult, baseline ResponseShape) {
	for _, r := range results {
		r.DiffStatus = nil
		r.DiffLen = nil

		if r.Status == nil {
			continue
		}

		if baseline.Status != nil {
			changed := *r.Status != *baseline.Status
			r.DiffStatus = &changed
		}

		if baseline.Length != 0 {
			changed := r.BodyLen != baseline.Length
			r.DiffLen = &changed
		}
	}
}
