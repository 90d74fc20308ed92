// Package pipeline wires the optimization stages into a single run:
// telemetry load, feature construction, usage forecasting, allocation
// decisions, and the savings simulation.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/ktripathi/cloudopt/internal/allocator"
	"github.com/ktripathi/cloudopt/internal/config"
	"github.com/ktripathi/cloudopt/internal/features"
	"github.com/ktripathi/cloudopt/internal/forecast"
	"github.com/ktripathi/cloudopt/internal/simulator"
	"github.com/ktripathi/cloudopt/internal/telemetry"
)

// runnerMetrics holds all metrics for the pipeline
type runnerMetrics struct {
	runs        metric.Int64Counter
	runErrors   metric.Int64Counter
	runDuration metric.Float64Histogram
}

// Runner executes the full pipeline. The trained predictor is cached
// across runs and invalidated when the telemetry store's version
// changes; everything else is scoped to a single run, so concurrent
// runs share no mutable state.
type Runner struct {
	logger zerolog.Logger
	cfg    *config.Config
	store  telemetry.SampleStore
	engine *allocator.Engine
	sim    *simulator.Simulator

	mu              sync.Mutex
	cachedVersion   string
	cachedPredictor *forecast.Predictor

	metrics runnerMetrics
}

// NewRunner builds a Runner from validated configuration
func NewRunner(logger zerolog.Logger, cfg *config.Config, store telemetry.SampleStore) (*Runner, error) {
	engine, err := allocator.NewEngine(cfg.Thresholds)
	if err != nil {
		return nil, err
	}

	sim, err := simulator.New(cfg.Simulation, engine.StepSizePct(), cfg.Telemetry.Interval.Hours())
	if err != nil {
		return nil, err
	}

	meter := otel.GetMeterProvider().Meter("github.com/ktripathi/cloudopt/pipeline")
	runs, _ := meter.Int64Counter(
		"optimizer_runs_total",
		metric.WithDescription("Total number of optimization pipeline runs"),
	)
	runErrors, _ := meter.Int64Counter(
		"optimizer_run_errors_total",
		metric.WithDescription("Total number of failed pipeline runs"),
	)
	runDuration, _ := meter.Float64Histogram(
		"optimizer_run_duration_seconds",
		metric.WithDescription("Time taken to execute a full pipeline run"),
		metric.WithUnit("s"),
	)

	return &Runner{
		logger: logger,
		cfg:    cfg,
		store:  store,
		engine: engine,
		sim:    sim,
		metrics: runnerMetrics{
			runs:        runs,
			runErrors:   runErrors,
			runDuration: runDuration,
		},
	}, nil
}

// Run executes one full pipeline pass and returns the simulation
// result. Typed errors from the stages propagate unchanged; the caller
// owns mapping them to a user-visible failure report.
func (r *Runner) Run(ctx context.Context) (simulator.Result, error) {
	runID := uuid.NewString()
	logger := r.logger.With().Str("run_id", runID).Logger()
	start := time.Now()

	r.metrics.runs.Add(ctx, 1)

	result, err := r.run(ctx, logger)
	r.metrics.runDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		r.metrics.runErrors.Add(ctx, 1)
		logger.Error().Err(err).Msg("Pipeline run failed")
		return simulator.Result{}, err
	}

	logger.Info().
		Int("intervals", result.TotalIntervals).
		Float64("cost_savings", result.CostSavings).
		Float64("energy_saved_kwh", result.EnergySavedKWh).
		Dur("elapsed", time.Since(start)).
		Msg("Pipeline run complete")
	return result, nil
}

func (r *Runner) run(ctx context.Context, logger zerolog.Logger) (simulator.Result, error) {
	samples, err := r.store.Load(ctx)
	if err != nil {
		return simulator.Result{}, err
	}

	vectors, err := features.Build(samples)
	if err != nil {
		return simulator.Result{}, err
	}

	predictor, err := r.predictorFor(ctx, logger, vectors, samples)
	if err != nil {
		return simulator.Result{}, err
	}

	// In-sample span: the last vector has no next-interval label, so it
	// is neither trained on nor decided for. This keeps the reported
	// summary identical on every run over unchanged data.
	span := vectors
	if span[len(span)-1].Index == len(samples)-1 {
		span = span[:len(span)-1]
	}
	if len(span) == 0 {
		return simulator.Result{}, &telemetry.DataError{Msg: "no intervals left to predict"}
	}

	predictions, err := predictor.Predict(span)
	if err != nil {
		return simulator.Result{}, err
	}

	decisions := make([]allocator.Decision, 0, len(predictions))
	for i, pred := range predictions {
		decisions = append(decisions, r.engine.Decide(span[i].Index, pred))
	}

	return r.sim.Run(samples, decisions)
}

// predictorFor returns the cached trained predictor when the telemetry
// version is unchanged, otherwise trains a fresh one under the lock so
// concurrent runs never observe a half-trained model.
func (r *Runner) predictorFor(ctx context.Context, logger zerolog.Logger, vectors []features.Vector, samples []telemetry.ResourceSample) (*forecast.Predictor, error) {
	version, err := r.store.Version(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve telemetry version: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cachedPredictor != nil && r.cachedVersion == version {
		logger.Debug().Str("version", version).Msg("Reusing cached predictor")
		return r.cachedPredictor, nil
	}

	predictor := forecast.NewPredictor(logger, r.cfg.Model)
	if err := predictor.Train(vectors, samples); err != nil {
		return nil, err
	}

	r.cachedPredictor = predictor
	r.cachedVersion = version
	logger.Debug().Str("version", version).Msg("Predictor trained and cached")
	return predictor, nil
}
