package telemetry

import (
	"math"
	"math/rand"
	"time"
)

// generatorSeed fixes the jitter source so every generated dataset is
// identical across runs and hosts.
const generatorSeed = 1042

// generatorStart anchors the synthetic series; midnight keeps the
// daily cycle aligned with the hour-of-day encoding.
var generatorStart = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

// GenerateSamples produces a deterministic synthetic usage series with a
// plausible daily cycle per metric: CPU peaks mid-day, GPU peaks six
// hours later, memory tracks CPU with extra headroom. Jitter comes from
// a fixed-seed source so the series is reproducible.
func GenerateSamples(count int, interval time.Duration, costPerInterval float64) []ResourceSample {
	rng := rand.New(rand.NewSource(generatorSeed))

	samples := make([]ResourceSample, 0, count)
	for i := 0; i < count; i++ {
		ts := generatorStart.Add(time.Duration(i) * interval)
		hour := float64(ts.Hour()) + float64(ts.Minute())/60

		cpu := 45 + 25*math.Sin(2*math.Pi*hour/24) + rng.Float64()*10
		gpu := 35 + 20*math.Sin(2*math.Pi*(hour-6)/24) + rng.Float64()*8
		mem := 0.6*cpu + 20 + rng.Float64()*12

		samples = append(samples, ResourceSample{
			Timestamp:       ts,
			CPUUsagePct:     clampPct(cpu),
			GPUUsagePct:     clampPct(gpu),
			MemoryUsagePct:  clampPct(mem),
			CostPerInterval: costPerInterval,
		})
	}
	return samples
}

func clampPct(v float64) float64 {
	return math.Min(100, math.Max(0, v))
}
