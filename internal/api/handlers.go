package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ktripathi/cloudopt/internal/config"
	"github.com/ktripathi/cloudopt/internal/forecast"
	"github.com/ktripathi/cloudopt/internal/telemetry"
)

// runOptimization handles POST /api/v1/optimize. It triggers one full
// pipeline run and shapes the result as
// {"status": "success", "data": {...}} or
// {"status": "error", "message": ...} on failure.
func (s *Server) runOptimization(c *gin.Context) {
	result, err := s.runner.Run(c.Request.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Optimization run failed")
		c.JSON(errorStatus(err), gin.H{
			"status":  "error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   result,
	})
}

// errorStatus maps the core error taxonomy to HTTP status codes:
// malformed telemetry is the caller's data problem, everything else is
// a server-side failure.
func errorStatus(err error) int {
	var dataErr *telemetry.DataError
	if errors.As(err, &dataErr) {
		return http.StatusUnprocessableEntity
	}
	var modelErr *forecast.ModelError
	if errors.As(err, &modelErr) {
		return http.StatusInternalServerError
	}
	var cfgErr *config.ConfigError
	if errors.As(err, &cfgErr) {
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}
