package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/CodeMonkeyCybersecurity/idorscan/internal/config"
	"github.com/CodeMonkeyCybersecurity/idorscan/pkg/scanners/idor"
)

func TestNew_DisabledReturnsNoop(t *testing.T) {
	tel, err := New(context.Background(), config.TelemetryConfig{Enabled: false})
	require.NoError(t, err)

	assert.IsType(t, noopTelemetry{}, tel)
	tel.RecordScan(context.Background(), &idor.Report{}, nil)
	assert.NoError(t, tel.Close())
}

func TestNew_UnsupportedExporter(t *testing.T) {
	_, err := New(context.Background(), config.TelemetryConfig{
		Enabled:      true,
		ServiceName:  "idorscan",
		ExporterType: "carrier-pigeon",
		SampleRate:   1,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported exporter type")
}

func TestRecordScan(t *testing.T) {
	tel, err := newInstruments(noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)

	report := &idor.Report{
		Duration: 2 * time.Second,
		Stats:    idor.ScanStats{Total: 3, Success: 2, Errors: 1, StatusChanges: 1, LengthChanges: 2},
	}

	assert.NotPanics(t, func() {
		tel.RecordScan(context.Background(), report, nil)
		tel.RecordScan(context.Background(), nil, errors.New("invalid scan config"))
	})
	assert.NoError(t, tel.Close())
}
