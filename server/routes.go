// Package server - Cog-kompatibler HTTP-Server fuer einen Predictor
// Beinhaltet: Server-Struct, Router-Registrierung, Prediction-Handler
package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/fluxserve/fluxserve/api"
	"github.com/fluxserve/fluxserve/envconfig"
	"github.com/fluxserve/fluxserve/pipeline"
	"github.com/fluxserve/fluxserve/predictor"
	"github.com/fluxserve/fluxserve/version"
)

var mode string = gin.DebugMode

func init() {
	switch mode {
	case gin.DebugMode:
	case gin.ReleaseMode:
	case gin.TestMode:
	default:
		mode = gin.DebugMode
	}

	gin.SetMode(mode)
}

// Server hostet genau einen Predictor
type Server struct {
	addr      net.Addr
	predictor predictor.Predictor
	metrics   *metrics
	setup     setupState

	// slot laesst genau eine Prediction gleichzeitig zu
	slot *semaphore.Weighted
}

func newServer(addr net.Addr, p predictor.Predictor, m *metrics) *Server {
	return &Server{
		addr:      addr,
		predictor: p,
		metrics:   m,
		slot:      semaphore.NewWeighted(1),
	}
}

// GenerateRoutes erstellt und konfiguriert den HTTP-Router
func (s *Server) GenerateRoutes() http.Handler {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowWildcard = true
	corsConfig.AllowBrowserExtensions = true
	corsConfig.AllowHeaders = []string{
		"Authorization",
		"Content-Type",
		"User-Agent",
		"Accept",
		"X-Requested-With",
	}
	corsConfig.AllowOrigins = envconfig.AllowedOrigins()

	r := gin.Default()
	r.HandleMethodNotAllowed = true
	r.Use(
		cors.New(corsConfig),
		allowedHostsMiddleware(s.addr),
	)

	// General
	r.HEAD("/", func(c *gin.Context) { c.String(http.StatusOK, "fluxserve is running") })
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, "fluxserve is running") })
	r.HEAD("/api/version", func(c *gin.Context) { c.JSON(http.StatusOK, api.VersionResponse{Version: version.Version}) })
	r.GET("/api/version", func(c *gin.Context) { c.JSON(http.StatusOK, api.VersionResponse{Version: version.Version}) })

	// Cog
	r.GET("/health-check", s.HealthHandler)
	r.GET("/openapi.json", s.SchemaHandler)
	r.POST("/predictions", s.PredictHandler)

	// Observability
	r.GET("/metrics", gin.WrapH(s.metrics.handler()))

	return r
}

// HealthHandler meldet Setup-Zustand und Auslastung
func (s *Server) HealthHandler(c *gin.Context) {
	result, failed := s.setup.snapshot()

	status := api.HealthReady
	switch {
	case failed:
		status = api.HealthSetupFailed
	case !s.predictor.Ready():
		status = api.HealthStarting
	case s.predictor.Defunct():
		status = api.HealthDefunct
	case s.predictor.Busy():
		status = api.HealthBusy
	}

	c.JSON(http.StatusOK, api.HealthResponse{Status: status, Setup: result})
}

// SchemaHandler liefert das Input-Schema des Predictors
func (s *Server) SchemaHandler(c *gin.Context) {
	input, err := json.Marshal(predictor.SchemaDocument(s.predictor.Fields()))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, api.SchemaResponse{Model: s.predictor.Name(), Input: input})
}

// decodeRequest liest Zahlen als json.Number, damit grosse Seeds exakt bleiben
func decodeRequest(r io.Reader, req *api.PredictionRequest) error {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	return dec.Decode(req)
}

// PredictHandler fuehrt genau eine Prediction aus
func (s *Server) PredictHandler(c *gin.Context) {
	var req api.PredictionRequest
	if err := decodeRequest(c.Request.Body, &req); errors.Is(err, io.EOF) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing request body"})
		return
	} else if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !s.predictor.Ready() {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": predictor.ErrNotReady.Error()})
		return
	}

	if s.predictor.Defunct() {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": pipeline.ErrBackendExited.Error()})
		return
	}

	if !s.slot.TryAcquire(1) {
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": pipeline.ErrBusy.Error()})
		return
	}
	defer s.slot.Release(1)

	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Input == nil {
		req.Input = map[string]any{}
	}

	resp := api.PredictionResponse{
		ID:        req.ID,
		Model:     s.predictor.Name(),
		Input:     req.Input,
		CreatedAt: time.Now().UTC(),
	}

	slog.Info("prediction started", "id", req.ID, "model", resp.Model)
	resp.StartedAt = time.Now().UTC()
	path, err := s.predictor.Predict(c.Request.Context(), predictor.Input(req.Input))
	resp.CompletedAt = time.Now().UTC()
	elapsed := resp.CompletedAt.Sub(resp.StartedAt)
	resp.Metrics.PredictTime = elapsed.Seconds()

	switch {
	case err == nil:
		resp.Status = api.StatusSucceeded
		resp.Output = path
		s.metrics.observePrediction(statusSucceeded, elapsed)
		slog.Info("prediction succeeded", "id", req.ID, "output", path, "duration", elapsed)
		c.JSON(http.StatusOK, resp)
	case predictor.IsValidation(err):
		s.metrics.observePrediction(statusInvalid, elapsed)
		slog.Info("prediction rejected", "id", req.ID, "error", err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, predictor.ErrNotReady):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		resp.Status = api.StatusFailed
		resp.Error = err.Error()
		s.metrics.observePrediction(statusFailed, elapsed)
		slog.Error("prediction failed", "id", req.ID, "error", err)
		c.JSON(http.StatusInternalServerError, resp)
	}
}
