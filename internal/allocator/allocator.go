// Package allocator maps predicted usage plus current thresholds to a
// discrete scaling decision.
package allocator

import (
	"fmt"

	"github.com/ktripathi/cloudopt/internal/config"
	"github.com/ktripathi/cloudopt/internal/forecast"
)

// Action is a scaling decision variant
type Action int

const (
	Maintain Action = iota
	ScaleUp
	ScaleDown
)

func (a Action) String() string {
	switch a {
	case ScaleUp:
		return "SCALE_UP"
	case ScaleDown:
		return "SCALE_DOWN"
	default:
		return "MAINTAIN"
	}
}

// Decision is the allocation outcome for one interval. Immutable once
// computed: Interval is the telemetry sample index the decision applies
// to, Predicted the usage forecast that produced it.
type Decision struct {
	Interval  int                     `json:"interval"`
	Action    Action                  `json:"action"`
	Predicted forecast.PredictedUsage `json:"predicted"`
	Reason    string                  `json:"reason"`
}

// Engine evaluates the threshold rule set. It carries no mutable state:
// Decide is a pure function of its arguments and the fixed thresholds.
type Engine struct {
	upper float64
	lower float64
	step  float64
}

// NewEngine validates the thresholds and returns a decision engine.
// Invalid thresholds surface as *config.ConfigError.
func NewEngine(cfg config.ThresholdConfig) (*Engine, error) {
	if cfg.UpperThreshold <= 0 || cfg.UpperThreshold > 100 {
		return nil, &config.ConfigError{Field: "thresholds.upper_threshold", Reason: "must be in (0, 100]"}
	}
	if cfg.LowerThreshold <= 0 || cfg.LowerThreshold >= cfg.UpperThreshold {
		return nil, &config.ConfigError{Field: "thresholds.lower_threshold", Reason: "must be positive and below upper_threshold"}
	}
	if cfg.StepSizePct <= 0 {
		return nil, &config.ConfigError{Field: "thresholds.step_size_pct", Reason: "must be positive"}
	}
	return &Engine{upper: cfg.UpperThreshold, lower: cfg.LowerThreshold, step: cfg.StepSizePct}, nil
}

// StepSizePct is the capacity delta one scale action implies
func (e *Engine) StepSizePct() float64 {
	return e.step
}

// Decide applies the worst-case rule: predicted metrics are clamped to
// [0, 100] and the maximum across CPU, memory and GPU drives the
// decision. Metrics are checked in priority order CPU > memory > GPU,
// which only determines the metric named in Reason when several tie.
// The decision for an interval never looks past that interval.
func (e *Engine) Decide(interval int, predicted forecast.PredictedUsage) Decision {
	metrics := []struct {
		name  string
		value float64
	}{
		{"cpu", clamp(predicted.CPU)},
		{"memory", clamp(predicted.Memory)},
		{"gpu", clamp(predicted.GPU)},
	}

	worst := metrics[0]
	for _, m := range metrics[1:] {
		if m.value > worst.value {
			worst = m
		}
	}

	d := Decision{Interval: interval, Predicted: predicted}
	switch {
	case worst.value >= e.upper:
		d.Action = ScaleUp
		d.Reason = fmt.Sprintf("predicted %s usage (%.1f%%) exceeds scale-up threshold of %.1f%%, proactive scaling recommended",
			worst.name, worst.value, e.upper)
	case worst.value <= e.lower:
		d.Action = ScaleDown
		d.Reason = fmt.Sprintf("predicted usage of all resources is below scale-down threshold of %.1f%%, resources can be conserved",
			e.lower)
	default:
		d.Action = Maintain
		d.Reason = "predicted usage is within optimal thresholds"
	}
	return d
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
