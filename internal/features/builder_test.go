package features

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ktripathi/cloudopt/internal/telemetry"
)

func hourlySamples(values []float64) []telemetry.ResourceSample {
	start := time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC)
	samples := make([]telemetry.ResourceSample, len(values))
	for i, v := range values {
		samples[i] = telemetry.ResourceSample{
			Timestamp:       start.Add(time.Duration(i) * time.Hour),
			CPUUsagePct:     v,
			GPUUsagePct:     v / 2,
			MemoryUsagePct:  v / 4,
			CostPerInterval: 0.60,
		}
	}
	return samples
}

func TestBuildLengthAndWidth(t *testing.T) {
	for _, n := range []int{5, 10, 48, 168} {
		samples := telemetry.GenerateSamples(n, time.Hour, 0.60)

		vectors, err := Build(samples)
		require.NoError(t, err)
		assert.Len(t, vectors, n-WarmupIntervals)

		for _, v := range vectors {
			assert.Len(t, v.Values, FeatureCount)
		}
	}
}

func TestBuildRejectsShortInput(t *testing.T) {
	samples := telemetry.GenerateSamples(WarmupIntervals, time.Hour, 0.60)

	_, err := Build(samples)
	var dataErr *telemetry.DataError
	require.ErrorAs(t, err, &dataErr)

	_, err = Build(nil)
	require.ErrorAs(t, err, &dataErr)
}

func TestBuildIsDeterministic(t *testing.T) {
	samples := telemetry.GenerateSamples(48, time.Hour, 0.60)

	a, err := Build(samples)
	require.NoError(t, err)
	b, err := Build(samples)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestBuildValues(t *testing.T) {
	samples := hourlySamples([]float64{10, 20, 30, 40, 50, 60})

	vectors, err := Build(samples)
	require.NoError(t, err)
	require.Len(t, vectors, 2)

	first := vectors[0]
	assert.Equal(t, WarmupIntervals, first.Index)

	// Current metrics at t=4: cpu 50, gpu 25, mem 12.5
	assert.Equal(t, 50.0, first.Values[0])
	assert.Equal(t, 25.0, first.Values[1])
	assert.Equal(t, 12.5, first.Values[2])

	// Lag-1 cpu 40, lag-2 cpu 30
	assert.Equal(t, 40.0, first.Values[3])
	assert.Equal(t, 30.0, first.Values[6])

	// Rolling mean of cpu over {30, 40, 50} and its sample std dev
	assert.InDelta(t, 40.0, first.Values[9], 1e-9)
	assert.InDelta(t, 10.0, first.Values[10], 1e-9)

	// Hour encoding: t=4 lands at 04:00
	assert.InDelta(t, math.Sin(2*math.Pi*4/24), first.Values[15], 1e-9)
	assert.InDelta(t, math.Cos(2*math.Pi*4/24), first.Values[16], 1e-9)
}

func TestVectorIndexTracksSourceSample(t *testing.T) {
	samples := telemetry.GenerateSamples(12, time.Hour, 0.60)

	vectors, err := Build(samples)
	require.NoError(t, err)

	for i, v := range vectors {
		assert.Equal(t, WarmupIntervals+i, v.Index)
	}
}
