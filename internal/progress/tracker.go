package progress

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/CodeMonkeyCybersecurity/idorscan/pkg/scanners/idor"
)

// Tracker drives a terminal progress bar from a scan's progress stream.
// The bar is created on the first update, once the range size is known.
type Tracker struct {
	out     io.Writer
	enabled bool
	start   time.Time

	mu        sync.Mutex
	bar       *progressbar.ProgressBar
	completed int
	errors    int
	lastID    int
}

// New creates a tracker writing to out. A disabled tracker discards updates.
func New(out io.Writer, enabled bool) *Tracker {
	return &Tracker{
		out:     out,
		enabled: enabled,
		start:   time.Now(),
	}
}

// Observe matches idor.ProgressFunc
func (t *Tracker) Observe(p idor.Progress) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.completed = p.Completed
	if p.Result != nil {
		t.lastID = p.Result.ID
		if !p.Result.HasStatus() {
			t.errors++
		}
	}

	if !t.enabled {
		return
	}
	if t.bar == nil {
		t.bar = t.newBar(p.Total)
	} else if t.bar.GetMax() != p.Total {
		t.bar.ChangeMax(p.Total)
	}
	t.bar.Describe(t.description())
	_ = t.bar.Set(p.Completed)
}

func (t *Tracker) newBar(total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(t.out),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetDescription(t.description()),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionSetWidth(30),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

func (t *Tracker) description() string {
	return fmt.Sprintf("id %d | errors %d", t.lastID, t.errors)
}

// Complete finishes the bar and prints the elapsed time
func (t *Tracker) Complete() {
	if !t.enabled {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.bar != nil {
		_ = t.bar.Finish()
	}
	fmt.Fprintf(t.out, "Scanned %d identifiers (%d errors) in %s\n",
		t.completed, t.errors, time.Since(t.start).Round(time.Millisecond))
}
