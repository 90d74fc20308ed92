// Package simulator replays the interval sequence and quantifies the
// cost and energy impact of following the allocation decisions versus
// keeping the original static allocation.
package simulator

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/ktripathi/cloudopt/internal/allocator"
	"github.com/ktripathi/cloudopt/internal/config"
	"github.com/ktripathi/cloudopt/internal/telemetry"
)

// baseCapacityPct is the provisioned capacity both tracks start from.
const baseCapacityPct = 100.0

// Result is the sole externally visible artifact of a pipeline run.
// Costs are in the currency units of the telemetry cost column,
// rounded to 2 decimals; energy is in kWh.
type Result struct {
	TotalIntervals     int     `json:"total_intervals"`
	OriginalCost       float64 `json:"original_cost"`
	OptimizedCost      float64 `json:"optimized_cost"`
	CostSavings        float64 `json:"cost_savings"`
	CostSavingsPercent float64 `json:"cost_savings_percent"`
	EnergySavedKWh     float64 `json:"energy_saved_kwh"`
}

// Simulator holds the validated capacity and energy model parameters
type Simulator struct {
	stepPct       float64
	minPct        float64
	maxPct        float64
	idleCoeff     float64
	powerPerCapW  float64
	intervalHours float64
}

// New validates the simulation parameters and returns a Simulator.
// Invalid parameters surface as *config.ConfigError.
func New(cfg config.SimulationConfig, stepSizePct float64, intervalHours float64) (*Simulator, error) {
	if cfg.MinCapacityPct < 0 {
		return nil, &config.ConfigError{Field: "simulation.min_capacity_pct", Reason: "must be non-negative"}
	}
	if cfg.MaxCapacityPct <= cfg.MinCapacityPct {
		return nil, &config.ConfigError{Field: "simulation.max_capacity_pct", Reason: "must be above min_capacity_pct"}
	}
	if cfg.IdleCoefficient < 0 || cfg.IdleCoefficient > 1 {
		return nil, &config.ConfigError{Field: "simulation.idle_coefficient", Reason: "must be in [0, 1]"}
	}
	if cfg.PowerPerCapacityW <= 0 {
		return nil, &config.ConfigError{Field: "simulation.power_per_capacity_watt", Reason: "must be positive"}
	}
	if stepSizePct <= 0 {
		return nil, &config.ConfigError{Field: "thresholds.step_size_pct", Reason: "must be positive"}
	}
	if intervalHours <= 0 {
		return nil, &config.ConfigError{Field: "telemetry.interval", Reason: "must be positive"}
	}
	return &Simulator{
		stepPct:       stepSizePct,
		minPct:        cfg.MinCapacityPct,
		maxPct:        cfg.MaxCapacityPct,
		idleCoeff:     cfg.IdleCoefficient,
		powerPerCapW:  cfg.PowerPerCapacityW,
		intervalHours: intervalHours,
	}, nil
}

// Run replays the decisions in order against two capacity tracks: the
// original track never moves from the base capacity, the optimized
// track applies each decision's step delta, bounded to [min, max].
// Cost accumulation uses decimal arithmetic so currency totals are
// exact; float conversion happens only in the returned Result.
func (s *Simulator) Run(samples []telemetry.ResourceSample, decisions []allocator.Decision) (Result, error) {
	if len(decisions) == 0 {
		return Result{}, &telemetry.DataError{Msg: "no intervals to simulate"}
	}

	origCap := baseCapacityPct
	optCap := baseCapacityPct

	origCost := decimal.Zero
	optCost := decimal.Zero
	var origKWh, optKWh float64

	hundred := decimal.NewFromInt(100)

	for _, d := range decisions {
		if d.Interval < 0 || d.Interval >= len(samples) {
			return Result{}, &telemetry.DataError{Msg: "decision interval outside sample range"}
		}
		sample := samples[d.Interval]

		switch d.Action {
		case allocator.ScaleUp:
			optCap = math.Min(s.maxPct, optCap+s.stepPct)
		case allocator.ScaleDown:
			optCap = math.Max(s.minPct, optCap-s.stepPct)
		}

		rate := decimal.NewFromFloat(sample.CostPerInterval)
		origCost = origCost.Add(rate.Mul(decimal.NewFromFloat(origCap)).Div(hundred))
		optCost = optCost.Add(rate.Mul(decimal.NewFromFloat(optCap)).Div(hundred))

		usage := (sample.CPUUsagePct + sample.GPUUsagePct + sample.MemoryUsagePct) / 3
		origKWh += s.energyKWh(origCap, usage)
		optKWh += s.energyKWh(optCap, usage)
	}

	savings := origCost.Sub(optCost)
	percent := 0.0
	if origCost.IsPositive() {
		percent = roundTo(savings.Div(origCost).InexactFloat64()*100, 2)
	}

	return Result{
		TotalIntervals:     len(decisions),
		OriginalCost:       origCost.Round(2).InexactFloat64(),
		OptimizedCost:      optCost.Round(2).InexactFloat64(),
		CostSavings:        savings.Round(2).InexactFloat64(),
		CostSavingsPercent: percent,
		EnergySavedKWh:     roundTo(origKWh-optKWh, 2),
	}, nil
}

// energyKWh models one interval's draw for a track: provisioned
// capacity draws the idle fraction regardless of load, the remainder
// scales with observed usage capped at the track's capacity.
func (s *Simulator) energyKWh(capacityPct, usagePct float64) float64 {
	effective := math.Min(usagePct, capacityPct)
	watts := s.powerPerCapW * (s.idleCoeff*capacityPct + (1-s.idleCoeff)*effective)
	return watts * s.intervalHours / 1000
}

func roundTo(v float64, places int) float64 {
	shift := math.Pow(10, float64(places))
	return math.Round(v*shift) / shift
}
