package telemetry

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// csvColumns is the required header, in file order.
var csvColumns = []string{
	"timestamp",
	"cpu_usage_pct",
	"gpu_usage_pct",
	"memory_usage_pct",
	"provisioned_cost_per_interval",
}

// CSVStore loads resource telemetry from a CSV file. When the file is
// absent or empty it synthesizes a deterministic sample dataset and
// persists it, so later runs read identical data.
type CSVStore struct {
	logger      zerolog.Logger
	path        string
	interval    time.Duration
	seedSamples int
	seedCost    float64
}

// StoreConfig holds configuration for the CSVStore
type StoreConfig struct {
	MetricsPath string
	Interval    time.Duration
	SeedSamples int
	SeedCost    float64
}

// NewCSVStore creates a new CSV-backed sample store
func NewCSVStore(logger zerolog.Logger, cfg StoreConfig) *CSVStore {
	return &CSVStore{
		logger:      logger,
		path:        cfg.MetricsPath,
		interval:    cfg.Interval,
		seedSamples: cfg.SeedSamples,
		seedCost:    cfg.SeedCost,
	}
}

// Load implements SampleStore.Load
func (s *CSVStore) Load(ctx context.Context) ([]ResourceSample, error) {
	if err := s.ensureDataExists(); err != nil {
		return nil, err
	}

	file, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open metrics file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, &DataError{Msg: fmt.Sprintf("failed to read CSV header: %v", err)}
	}

	colMap := make(map[string]int, len(header))
	for i, col := range header {
		colMap[col] = i
	}
	for _, col := range csvColumns {
		if _, ok := colMap[col]; !ok {
			return nil, &DataError{Msg: fmt.Sprintf("missing required column %q", col)}
		}
	}

	var samples []ResourceSample
	row := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &DataError{Row: row + 1, Msg: fmt.Sprintf("failed to read CSV record: %v", err)}
		}
		row++

		sample, derr := parseRecord(record, colMap, row)
		if derr != nil {
			return nil, derr
		}
		samples = append(samples, sample)
	}

	if err := validateSequence(samples, s.interval); err != nil {
		return nil, err
	}

	s.logger.Info().Int("count", len(samples)).Str("path", s.path).Msg("Loaded telemetry samples")
	return samples, nil
}

// Version implements SampleStore.Version. The version is derived from
// the file's modification time and size: any rewrite of the backing
// file invalidates state keyed on it.
func (s *CSVStore) Version(ctx context.Context) (string, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("failed to stat metrics file: %w", err)
	}
	return fmt.Sprintf("%d-%d", info.ModTime().UnixNano(), info.Size()), nil
}

// ensureDataExists synthesizes and writes the sample dataset when the
// backing file is missing or empty. An existing non-empty file is left
// untouched. The write is retried once: a partially written file must
// not survive a transient filesystem failure.
func (s *CSVStore) ensureDataExists() error {
	info, err := os.Stat(s.path)
	if err == nil && info.Size() > 0 {
		return nil
	}
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to stat metrics file: %w", err)
	}

	s.logger.Info().Str("path", s.path).Msg("Metrics file missing, generating sample dataset")

	samples := GenerateSamples(s.seedSamples, s.interval, s.seedCost)
	if err := s.writeSamples(samples); err != nil {
		s.logger.Warn().Err(err).Msg("Writing sample dataset failed, retrying once")
		if err := s.writeSamples(samples); err != nil {
			return fmt.Errorf("failed to write sample dataset: %w", err)
		}
	}
	return nil
}

// writeSamples writes the dataset atomically via a temp file rename.
func (s *CSVStore) writeSamples(samples []ResourceSample) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "metrics-*.csv")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	writer := csv.NewWriter(tmp)
	if err := writer.Write(csvColumns); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, sample := range samples {
		record := []string{
			sample.Timestamp.UTC().Format(time.RFC3339),
			strconv.FormatFloat(sample.CPUUsagePct, 'f', 2, 64),
			strconv.FormatFloat(sample.GPUUsagePct, 'f', 2, 64),
			strconv.FormatFloat(sample.MemoryUsagePct, 'f', 2, 64),
			strconv.FormatFloat(sample.CostPerInterval, 'f', 2, 64),
		}
		if err := writer.Write(record); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to move metrics file into place: %w", err)
	}

	s.logger.Info().Int("count", len(samples)).Str("path", s.path).Msg("Sample dataset written")
	return nil
}

// parseRecord converts one CSV record into a ResourceSample
func parseRecord(record []string, colMap map[string]int, row int) (ResourceSample, *DataError) {
	var sample ResourceSample

	for _, col := range csvColumns {
		if colMap[col] >= len(record) || record[colMap[col]] == "" {
			return sample, dataErrorf(row, "missing value for column %q", col)
		}
	}

	ts, err := time.Parse(time.RFC3339, record[colMap["timestamp"]])
	if err != nil {
		return sample, dataErrorf(row, "invalid timestamp: %v", err)
	}
	sample.Timestamp = ts

	fields := []struct {
		name    string
		dst     *float64
		percent bool
	}{
		{"cpu_usage_pct", &sample.CPUUsagePct, true},
		{"gpu_usage_pct", &sample.GPUUsagePct, true},
		{"memory_usage_pct", &sample.MemoryUsagePct, true},
		{"provisioned_cost_per_interval", &sample.CostPerInterval, false},
	}
	for _, f := range fields {
		val, err := strconv.ParseFloat(record[colMap[f.name]], 64)
		if err != nil {
			return sample, dataErrorf(row, "invalid %s: %v", f.name, err)
		}
		if f.percent && (val < 0 || val > 100) {
			return sample, dataErrorf(row, "%s %.2f outside [0, 100]", f.name, val)
		}
		if !f.percent && val < 0 {
			return sample, dataErrorf(row, "%s must be non-negative, got %.2f", f.name, val)
		}
		*f.dst = val
	}

	return sample, nil
}

// validateSequence enforces the sequence invariants: non-empty, strictly
// time-ordered, fixed interval spacing.
func validateSequence(samples []ResourceSample, interval time.Duration) *DataError {
	if len(samples) == 0 {
		return &DataError{Msg: "no telemetry samples after validation"}
	}
	for i := 1; i < len(samples); i++ {
		gap := samples[i].Timestamp.Sub(samples[i-1].Timestamp)
		if gap <= 0 {
			return dataErrorf(i+1, "timestamps not strictly increasing")
		}
		if gap != interval {
			return dataErrorf(i+1, "interval %s does not match configured interval %s", gap, interval)
		}
	}
	return nil
}
