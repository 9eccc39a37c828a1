// types.go - Wire-Typen der Predictor-API
// Enthaelt: StatusError, PredictionRequest/Response, HealthResponse, SchemaResponse, VersionResponse
package api

import (
	"encoding/json"
	"fmt"
	"time"
)

// StatusError is an error with an HTTP status code and message.
type StatusError struct {
	StatusCode   int    `json:"-"`
	Status       string `json:"-"`
	ErrorMessage string `json:"error"`
}

func (e StatusError) Error() string {
	switch {
	case e.Status != "" && e.ErrorMessage != "":
		return fmt.Sprintf("%s: %s", e.Status, e.ErrorMessage)
	case e.Status != "":
		return e.Status
	case e.ErrorMessage != "":
		return e.ErrorMessage
	default:
		// this should not happen
		return "something went wrong, please see the fluxserve logs for details"
	}
}

// PredictionStatus ist der Endzustand einer Prediction
type PredictionStatus string

const (
	StatusSucceeded PredictionStatus = "succeeded"
	StatusFailed    PredictionStatus = "failed"
)

// PredictionRequest is the request body of POST /predictions.
type PredictionRequest struct {
	// ID is echoed back in the response; a new one is generated when empty.
	ID    string         `json:"id,omitempty"`
	Input map[string]any `json:"input"`
}

// PredictionResponse is returned by POST /predictions.
type PredictionResponse struct {
	ID          string            `json:"id"`
	Model       string            `json:"model"`
	Status      PredictionStatus  `json:"status"`
	Input       map[string]any    `json:"input"`
	Output      string            `json:"output,omitempty"`
	Error       string            `json:"error,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	StartedAt   time.Time         `json:"started_at"`
	CompletedAt time.Time         `json:"completed_at"`
	Metrics     PredictionMetrics `json:"metrics"`
}

// PredictionMetrics enthaelt die Laufzeit einer Prediction in Sekunden
type PredictionMetrics struct {
	PredictTime float64 `json:"predict_time"`
}

// HealthStatus beschreibt den Zustand des Predictors
type HealthStatus string

const (
	HealthStarting    HealthStatus = "STARTING"
	HealthReady       HealthStatus = "READY"
	HealthBusy        HealthStatus = "BUSY"
	HealthSetupFailed HealthStatus = "SETUP_FAILED"
	HealthDefunct     HealthStatus = "DEFUNCT"
)

// SetupResult describes the setup phase. CompletedAt and Status are empty
// while setup is running.
type SetupResult struct {
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Status      string     `json:"status,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// HealthResponse is returned by GET /health-check.
type HealthResponse struct {
	Status HealthStatus `json:"status"`
	Setup  SetupResult  `json:"setup"`
}

// SchemaResponse is returned by GET /openapi.json.
type SchemaResponse struct {
	Model string          `json:"model"`
	Input json.RawMessage `json:"input"`
}

// VersionResponse is returned by GET /api/version.
type VersionResponse struct {
	Version string `json:"version"`
}
