// Package features derives fixed-width numeric feature vectors from raw
// telemetry. Vector layout is identical for training and inference.
package features

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/ktripathi/cloudopt/internal/telemetry"
)

const (
	// LagDepth is the number of past intervals included as lag features.
	LagDepth = 2
	// RollingWindow is the width of the trailing window for rolling
	// mean and standard deviation.
	RollingWindow = 3

	// WarmupIntervals is the number of leading intervals dropped because
	// a full lag/rolling history is not yet available. Downstream
	// interval indexing accounts for this offset through Vector.Index.
	WarmupIntervals = LagDepth + RollingWindow - 1
)

// FeatureCount is the fixed length of every feature vector:
// 3 current metrics, 3 metrics x 2 lags, 3 metrics x (rolling mean,
// rolling std), and 4 cyclical time encodings.
const FeatureCount = 3 + 3*LagDepth + 3*2 + 4

// Vector is one interval's feature tuple. Index is the position of the
// source sample in the original telemetry sequence.
type Vector struct {
	Index  int
	Values []float64
}

// Build derives one feature vector per interval, from the first interval
// with a full history window through the last sample. Output length is
// always len(samples) - WarmupIntervals. Build is pure: identical input
// yields identical output.
func Build(samples []telemetry.ResourceSample) ([]Vector, error) {
	if len(samples) <= WarmupIntervals {
		return nil, &telemetry.DataError{Msg: "not enough samples for feature window"}
	}

	cpu := metricSeries(samples, func(s telemetry.ResourceSample) float64 { return s.CPUUsagePct })
	gpu := metricSeries(samples, func(s telemetry.ResourceSample) float64 { return s.GPUUsagePct })
	mem := metricSeries(samples, func(s telemetry.ResourceSample) float64 { return s.MemoryUsagePct })

	vectors := make([]Vector, 0, len(samples)-WarmupIntervals)
	for t := WarmupIntervals; t < len(samples); t++ {
		values := make([]float64, 0, FeatureCount)

		// Current raw metrics
		values = append(values, cpu[t], gpu[t], mem[t])

		// Lag features, nearest first
		for lag := 1; lag <= LagDepth; lag++ {
			values = append(values, cpu[t-lag], gpu[t-lag], mem[t-lag])
		}

		// Rolling statistics over the trailing window ending at t
		for _, series := range [][]float64{cpu, gpu, mem} {
			window := series[t-RollingWindow+1 : t+1]
			values = append(values, stat.Mean(window, nil), math.Sqrt(stat.Variance(window, nil)))
		}

		// Cyclical time-of-day and day-of-week encodings
		ts := samples[t].Timestamp
		hour := float64(ts.Hour())
		dow := float64(ts.Weekday())
		values = append(values,
			math.Sin(2*math.Pi*hour/24), math.Cos(2*math.Pi*hour/24),
			math.Sin(2*math.Pi*dow/7), math.Cos(2*math.Pi*dow/7),
		)

		vectors = append(vectors, Vector{Index: t, Values: values})
	}

	return vectors, nil
}

func metricSeries(samples []telemetry.ResourceSample, get func(telemetry.ResourceSample) float64) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = get(s)
	}
	return out
}
