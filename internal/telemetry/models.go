package telemetry

import (
	"context"
	"fmt"
	"time"
)

// ResourceSample is a single interval of observed resource usage.
// Percentage fields are bounded to [0, 100]; CostPerInterval is the
// provisioned cost of one interval at full capacity, in currency units.
type ResourceSample struct {
	Timestamp       time.Time `json:"timestamp"`
	CPUUsagePct     float64   `json:"cpu_usage_pct"`
	GPUUsagePct     float64   `json:"gpu_usage_pct"`
	MemoryUsagePct  float64   `json:"memory_usage_pct"`
	CostPerInterval float64   `json:"provisioned_cost_per_interval"`
}

// SampleStore defines the interface for telemetry sample access
type SampleStore interface {
	// Load returns the full, validated, time-ordered sample sequence
	Load(ctx context.Context) ([]ResourceSample, error)
	// Version returns an opaque identifier that changes whenever the
	// backing data changes. Callers use it to invalidate derived state
	// such as trained models.
	Version(ctx context.Context) (string, error)
}

// DataError reports malformed or missing telemetry data.
// Row is the 1-based data row that failed validation, 0 when the
// error is not specific to a row.
type DataError struct {
	Row int
	Msg string
}

func (e *DataError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("telemetry data error at row %d: %s", e.Row, e.Msg)
	}
	return fmt.Sprintf("telemetry data error: %s", e.Msg)
}

func dataErrorf(row int, format string, args ...any) *DataError {
	return &DataError{Row: row, Msg: fmt.Sprintf(format, args...)}
}
