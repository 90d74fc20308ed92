package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ktripathi/cloudopt/internal/config"
	"github.com/ktripathi/cloudopt/internal/forecast"
	"github.com/ktripathi/cloudopt/internal/simulator"
	"github.com/ktripathi/cloudopt/internal/telemetry"
)

// MockRunner is a mock implementation of Runner for testing
type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) Run(ctx context.Context) (simulator.Result, error) {
	args := m.Called(ctx)
	return args.Get(0).(simulator.Result), args.Error(1)
}

func TestNewServer(t *testing.T) {
	logger := zerolog.Nop()
	mockRunner := new(MockRunner)

	server := NewServer(logger, mockRunner, 8080)

	assert.NotNil(t, server)
	assert.NotNil(t, server.router)
}

func TestHealthCheck(t *testing.T) {
	server := NewServer(zerolog.Nop(), new(MockRunner), 8080)

	recorder := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/health", nil)
	server.router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestRunOptimizationSuccess(t *testing.T) {
	mockRunner := new(MockRunner)
	mockRunner.On("Run", mock.Anything).Return(simulator.Result{
		TotalIntervals:     162,
		OriginalCost:       97.20,
		OptimizedCost:      80.10,
		CostSavings:        17.10,
		CostSavingsPercent: 17.59,
		EnergySavedKWh:     12.34,
	}, nil)

	server := NewServer(zerolog.Nop(), mockRunner, 8080)

	recorder := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/api/v1/optimize", nil)
	server.router.ServeHTTP(recorder, req)

	require.Equal(t, http.StatusOK, recorder.Code)

	var body struct {
		Status string           `json:"status"`
		Data   simulator.Result `json:"data"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Equal(t, "success", body.Status)
	assert.Equal(t, 162, body.Data.TotalIntervals)
	assert.Equal(t, 97.20, body.Data.OriginalCost)
	assert.Equal(t, 17.10, body.Data.CostSavings)

	mockRunner.AssertExpectations(t)
}

func TestRunOptimizationErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{
			name:       "data error",
			err:        &telemetry.DataError{Msg: "no telemetry samples after validation"},
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "model error",
			err:        &forecast.ModelError{Msg: "need at least 24 training pairs, got 3"},
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "config error",
			err:        &config.ConfigError{Field: "thresholds.step_size_pct", Reason: "must be positive"},
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "unknown error",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRunner := new(MockRunner)
			mockRunner.On("Run", mock.Anything).Return(simulator.Result{}, tt.err)

			server := NewServer(zerolog.Nop(), mockRunner, 8080)

			recorder := httptest.NewRecorder()
			req, _ := http.NewRequest(http.MethodPost, "/api/v1/optimize", nil)
			server.router.ServeHTTP(recorder, req)

			assert.Equal(t, tt.wantStatus, recorder.Code)

			var body struct {
				Status  string `json:"status"`
				Message string `json:"message"`
			}
			require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
			assert.Equal(t, "error", body.Status)
			assert.Contains(t, body.Message, tt.err.Error())
		})
	}
}
