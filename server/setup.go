// setup.go - Setup-Phase des Predictors im Hintergrund
// Enthaelt: setupState, runSetup()

package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fluxserve/fluxserve/api"
	"github.com/fluxserve/fluxserve/envconfig"
	"github.com/fluxserve/fluxserve/pipeline"
)

const (
	setupSucceeded = "succeeded"
	setupFailed    = "failed"
)

// setupState haelt das Ergebnis der einmaligen Setup-Phase
type setupState struct {
	mu     sync.RWMutex
	result api.SetupResult
}

func (st *setupState) start() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.result = api.SetupResult{StartedAt: time.Now().UTC()}
}

func (st *setupState) finish(err error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	now := time.Now().UTC()
	st.result.CompletedAt = &now
	st.result.Status = setupSucceeded
	if err != nil {
		st.result.Status = setupFailed
		st.result.Error = err.Error()
	}
}

// snapshot gibt das Setup-Ergebnis zurueck und ob das Setup fehlgeschlagen ist
func (st *setupState) snapshot() (api.SetupResult, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.result, st.result.Status == setupFailed
}

// runSetup laedt die Pipeline, begrenzt durch FLUXSERVE_LOAD_TIMEOUT
func (s *Server) runSetup(ctx context.Context, loader pipeline.Loader) error {
	s.setup.start()

	ctx, cancel := context.WithTimeout(ctx, envconfig.LoadTimeout())
	defer cancel()

	slog.Info("starting setup", "model", s.predictor.Name(), "timeout", envconfig.LoadTimeout())
	err := s.predictor.Setup(ctx, loader)
	s.setup.finish(err)
	if err != nil {
		slog.Error("setup failed", "model", s.predictor.Name(), "error", err)
		return err
	}

	return nil
}
