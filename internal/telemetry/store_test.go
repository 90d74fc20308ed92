package telemetry

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T, path string) *CSVStore {
	t.Helper()
	return NewCSVStore(zerolog.Nop(), StoreConfig{
		MetricsPath: path,
		Interval:    time.Hour,
		SeedSamples: 48,
		SeedCost:    0.60,
	})
}

func TestLoadGeneratesMissingDataset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "metrics.csv")
	store := testStore(t, path)

	samples, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, samples, 48)

	// File must exist and be readable on the next run
	_, err = os.Stat(path)
	require.NoError(t, err)

	for i, s := range samples {
		assert.GreaterOrEqual(t, s.CPUUsagePct, 0.0)
		assert.LessOrEqual(t, s.CPUUsagePct, 100.0)
		assert.GreaterOrEqual(t, s.GPUUsagePct, 0.0)
		assert.LessOrEqual(t, s.MemoryUsagePct, 100.0)
		assert.Equal(t, 0.60, s.CostPerInterval)
		if i > 0 {
			assert.Equal(t, time.Hour, s.Timestamp.Sub(samples[i-1].Timestamp))
		}
	}
}

func TestLoadIsDeterministicAcrossStores(t *testing.T) {
	pathA := filepath.Join(t.TempDir(), "a.csv")
	pathB := filepath.Join(t.TempDir(), "b.csv")

	samplesA, err := testStore(t, pathA).Load(context.Background())
	require.NoError(t, err)
	samplesB, err := testStore(t, pathB).Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, samplesA, samplesB)
}

func TestLoadDoesNotOverwriteExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.csv")
	content := strings.Join([]string{
		"timestamp,cpu_usage_pct,gpu_usage_pct,memory_usage_pct,provisioned_cost_per_interval",
		"2025-01-01T00:00:00Z,50.00,40.00,60.00,0.60",
		"2025-01-01T01:00:00Z,55.00,42.00,61.00,0.60",
		"",
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	samples, err := testStore(t, path).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, 50.0, samples[0].CPUUsagePct)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, content, string(data))
}

func TestLoadRejectsInvalidData(t *testing.T) {
	header := "timestamp,cpu_usage_pct,gpu_usage_pct,memory_usage_pct,provisioned_cost_per_interval"

	tests := []struct {
		name    string
		rows    []string
		wantMsg string
	}{
		{
			name: "non-monotonic timestamps",
			rows: []string{
				"2025-01-01T02:00:00Z,50,40,60,0.60",
				"2025-01-01T01:00:00Z,55,42,61,0.60",
			},
			wantMsg: "not strictly increasing",
		},
		{
			name: "duplicate timestamps",
			rows: []string{
				"2025-01-01T01:00:00Z,50,40,60,0.60",
				"2025-01-01T01:00:00Z,55,42,61,0.60",
			},
			wantMsg: "not strictly increasing",
		},
		{
			name: "irregular interval",
			rows: []string{
				"2025-01-01T00:00:00Z,50,40,60,0.60",
				"2025-01-01T00:30:00Z,55,42,61,0.60",
			},
			wantMsg: "does not match configured interval",
		},
		{
			name:    "cpu out of range",
			rows:    []string{"2025-01-01T00:00:00Z,120,40,60,0.60"},
			wantMsg: "outside [0, 100]",
		},
		{
			name:    "negative cost",
			rows:    []string{"2025-01-01T00:00:00Z,50,40,60,-1"},
			wantMsg: "non-negative",
		},
		{
			name:    "missing field",
			rows:    []string{"2025-01-01T00:00:00Z,50,40,60"},
			wantMsg: "missing value",
		},
		{
			name:    "unparseable metric",
			rows:    []string{"2025-01-01T00:00:00Z,abc,40,60,0.60"},
			wantMsg: "invalid cpu_usage_pct",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "metrics.csv")
			content := header + "\n" + strings.Join(tt.rows, "\n") + "\n"
			require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

			_, err := testStore(t, path).Load(context.Background())
			require.Error(t, err)

			var dataErr *DataError
			require.ErrorAs(t, err, &dataErr)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestLoadRejectsMissingColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.csv")
	content := "timestamp,cpu_usage_pct,gpu_usage_pct,memory_usage_pct\n2025-01-01T00:00:00Z,50,40,60\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := testStore(t, path).Load(context.Background())
	var dataErr *DataError
	require.ErrorAs(t, err, &dataErr)
	assert.Contains(t, err.Error(), "provisioned_cost_per_interval")
}

func TestVersionChangesOnRewrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.csv")
	store := testStore(t, path)
	ctx := context.Background()

	// No file yet
	v0, err := store.Version(ctx)
	require.NoError(t, err)
	assert.Empty(t, v0)

	_, err = store.Load(ctx)
	require.NoError(t, err)
	v1, err := store.Version(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, v1)

	// Rewrite with different content and a different mtime
	content := strings.Join([]string{
		"timestamp,cpu_usage_pct,gpu_usage_pct,memory_usage_pct,provisioned_cost_per_interval",
		"2025-01-01T00:00:00Z,50.00,40.00,60.00,0.60",
		"",
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	v2, err := store.Version(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, v1, v2)
}

func TestMemoryStoreEmptyIsDataError(t *testing.T) {
	store := NewMemoryStore(nil)

	_, err := store.Load(context.Background())
	var dataErr *DataError
	require.ErrorAs(t, err, &dataErr)
}

func TestMemoryStoreReplaceBumpsVersion(t *testing.T) {
	store := NewMemoryStore(GenerateSamples(10, time.Hour, 0.60))
	ctx := context.Background()

	v1, err := store.Version(ctx)
	require.NoError(t, err)

	store.Replace(GenerateSamples(12, time.Hour, 0.60))
	v2, err := store.Version(ctx)
	require.NoError(t, err)

	assert.NotEqual(t, v1, v2)

	samples, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, samples, 12)
}
