// pkg/scanners/idor/stats.go
package idor

// Aggregate reduces diffed results into scan counters
func Aggregate(results []*ScanResult) ScanStats {
	var stats ScanStats
	for _, r := range results {
		stats.Total++
		if r.Status != nil {
			stats.Success++
		} else {
			stats.Errors++
		}
		if r.DiffStatus != nil && *r.DiffStatus {
			stats.StatusChanges++
		}
		if r.DiffLen != nil && *r.DiffLen {
			stats.LengthChanges++
		}
	}
	return stats
}
