package progress

import (
	"context"

	"github.com/CodeMonkeyCybersecurity/idorscan/internal/logger"
	"github.com/CodeMonkeyCybersecurity/idorscan/pkg/scanners/idor"
)

// DefaultStep is the completion interval, in percent, between progress log lines
const DefaultStep = 10

// LogCheckpoints returns a ProgressFunc that logs each time the scan crosses
// another step percent of its range. Like every ProgressFunc it must be
// called serially.
func LogCheckpoints(ctx context.Context, log *logger.Logger, step int) idor.ProgressFunc {
	if step <= 0 || step > 100 {
		step = DefaultStep
	}
	next := step

	return func(p idor.Progress) {
		if p.Total <= 0 {
			return
		}
		pct := p.Completed * 100 / p.Total
		if pct < next {
			return
		}
		for next <= pct {
			next += step
		}

		details := map[string]interface{}{}
		if p.Result != nil {
			details["last_id"] = p.Result.ID
		}
		log.LogScanProgress(ctx, p.ScanID, p.Completed, p.Total, details)
	}
}

// Tee fans one progress stream out to several observers. Nil observers are skipped.
func Tee(fns ...idor.ProgressFunc) idor.ProgressFunc {
	return func(p idor.Progress) {
		for _, fn := range fns {
			if fn != nil {
				fn(p)
			}
		}
	}
}
