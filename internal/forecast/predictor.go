// Package forecast trains a tree-ensemble regressor per resource metric
// and predicts next-interval usage from feature vectors.
package forecast

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ktripathi/cloudopt/internal/config"
	"github.com/ktripathi/cloudopt/internal/features"
	"github.com/ktripathi/cloudopt/internal/telemetry"
)

// MinTrainingSamples is the smallest number of (feature, label) pairs
// the predictor will fit on. Below this the model would be degenerate.
const MinTrainingSamples = 24

// PredictedUsage is the forecast for one interval's next step. Values
// are raw model output and may fall outside [0, 100]; clamping is the
// allocation engine's responsibility.
type PredictedUsage struct {
	CPU    float64 `json:"cpu_pred"`
	GPU    float64 `json:"gpu_pred"`
	Memory float64 `json:"mem_pred"`
}

// ModelError reports insufficient training data or a fitting failure.
type ModelError struct {
	Msg string
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("model error: %s", e.Msg)
}

// Predictor holds one trained forest per target metric, mirroring a
// per-resource model registry. The zero value is untrained; Train must
// succeed before Predict.
type Predictor struct {
	logger  zerolog.Logger
	cfg     config.ModelConfig
	forests map[string]*forest
}

// metric seed offsets decorrelate the per-metric ensembles
var metricOffsets = map[string]int64{"cpu": 0, "gpu": 100003, "memory": 200003}

// NewPredictor creates an untrained predictor
func NewPredictor(logger zerolog.Logger, cfg config.ModelConfig) *Predictor {
	return &Predictor{logger: logger, cfg: cfg}
}

// Train fits one forest per metric on next-interval labels: the vector
// derived at interval t is paired with the observed usage at t+1. The
// vector for the final sample has no label and is skipped.
func (p *Predictor) Train(vectors []features.Vector, samples []telemetry.ResourceSample) error {
	var x [][]float64
	var cpuY, gpuY, memY []float64
	for _, v := range vectors {
		next := v.Index + 1
		if next >= len(samples) {
			continue
		}
		x = append(x, v.Values)
		cpuY = append(cpuY, samples[next].CPUUsagePct)
		gpuY = append(gpuY, samples[next].GPUUsagePct)
		memY = append(memY, samples[next].MemoryUsagePct)
	}

	if len(x) < MinTrainingSamples {
		return &ModelError{Msg: fmt.Sprintf("need at least %d training pairs, got %d", MinTrainingSamples, len(x))}
	}

	params := forestParams{
		trees:           p.cfg.Trees,
		seed:            p.cfg.Seed,
		minSamplesSplit: p.cfg.MinSamplesSplit,
		maxDepth:        p.cfg.MaxDepth,
	}

	forests := make(map[string]*forest, 3)
	for metric, y := range map[string][]float64{"cpu": cpuY, "gpu": gpuY, "memory": memY} {
		mp := params
		mp.seed += metricOffsets[metric]
		forests[metric] = fitForest(x, y, mp)
		p.logger.Debug().Str("metric", metric).Int("pairs", len(x)).Msg("Forest trained")
	}
	p.forests = forests

	return nil
}

// Predict runs inference over a feature sequence. The trained model is
// not mutated; concurrent Predict calls on one Predictor are safe.
func (p *Predictor) Predict(vectors []features.Vector) ([]PredictedUsage, error) {
	if p.forests == nil {
		return nil, &ModelError{Msg: "predictor is not trained"}
	}

	out := make([]PredictedUsage, 0, len(vectors))
	for _, v := range vectors {
		out = append(out, PredictedUsage{
			CPU:    p.forests["cpu"].predict(v.Values),
			GPU:    p.forests["gpu"].predict(v.Values),
			Memory: p.forests["memory"].predict(v.Values),
		})
	}
	return out, nil
}
