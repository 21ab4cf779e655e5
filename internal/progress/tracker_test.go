package progress

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/CodeMonkeyCybersecurity/idorscan/internal/logger"
	"github.com/CodeMonkeyCybersecurity/idorscan/pkg/scanners/idor"
)

func statusPtr(v int) *int { return &v }

func TestTracker_Observe(t *testing.T) {
	var buf bytes.Buffer
	tracker := New(&buf, true)

	tracker.Observe(idor.Progress{Completed: 1, Total: 4, Result: &idor.ScanResult{ID: 7, Status: statusPtr(200)}})
	require.NotNil(t, tracker.bar)
	assert.Equal(t, 4, tracker.bar.GetMax())
	assert.EqualValues(t, 1, tracker.bar.State().CurrentNum)
	assert.Contains(t, buf.String(), "1/4")
	assert.Contains(t, buf.String(), "id 7")

	errMsg := "connection refused"
	tracker.Observe(idor.Progress{Completed: 2, Total: 4, Result: &idor.ScanResult{ID: 8, Error: &errMsg}})
	assert.EqualValues(t, 2, tracker.bar.State().CurrentNum)
	assert.Contains(t, buf.String(), "errors 1")

	tracker.Complete()
	assert.Contains(t, buf.String(), "Scanned 2 identifiers (1 errors)")
}

func TestTracker_Disabled(t *testing.T) {
	var buf bytes.Buffer
	tracker := New(&buf, false)

	tracker.Observe(idor.Progress{Completed: 1, Total: 1, Result: &idor.ScanResult{ID: 1}})
	tracker.Complete()

	assert.Empty(t, buf.String())
	assert.Nil(t, tracker.bar)
	assert.Equal(t, 1, tracker.errors, "counters are kept even without a bar")
}

func TestTracker_EmptyScan(t *testing.T) {
	var buf bytes.Buffer
	tracker := New(&buf, true)

	tracker.Complete()
	assert.Nil(t, tracker.bar)
	assert.Contains(t, buf.String(), "Scanned 0 identifiers")
}

func TestLogCheckpoints(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	observe := LogCheckpoints(context.Background(), logger.FromCore(core), 25)

	for i := 1; i <= 8; i++ {
		observe(idor.Progress{ScanID: "scan-1", Completed: i, Total: 8, Result: &idor.ScanResult{ID: 100 + i}})
	}

	entries := logs.FilterMessage("Scan progress update").AllUntimed()
	require.Len(t, entries, 4, "one line at 25, 50, 75 and 100 percent")

	last := entries[3].ContextMap()
	assert.Equal(t, "scan-1", last["scan_id"])
	assert.EqualValues(t, 8, last["completed"])
	assert.EqualValues(t, 108, last["last_id"])
}

func TestLogCheckpoints_SmallScanLogsEveryStepOnce(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	observe := LogCheckpoints(context.Background(), logger.FromCore(core), 0)

	observe(idor.Progress{Completed: 1, Total: 3})
	observe(idor.Progress{Completed: 2, Total: 3})
	observe(idor.Progress{Completed: 3, Total: 3})
	observe(idor.Progress{Completed: 0, Total: 0})

	assert.Equal(t, 3, logs.Len())
}

func TestTee(t *testing.T) {
	var a, b []int
	fn := Tee(
		func(p idor.Progress) { a = append(a, p.Completed) },
		nil,
		func(p idor.Progress) { b = append(b, p.Completed) },
	)

	fn(idor.Progress{Completed: 1, Total: 2})
	fn(idor.Progress{Completed: 2, Total: 2})

	assert.Equal(t, []int{1, 2}, a)
	assert.Equal(t, []int{1, 2}, b)
}
