// serve.go - Server-Start und Lifecycle-Management
// Enthaelt: Serve() - Hauptfunktion zum Starten des HTTP-Servers

package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/fluxserve/fluxserve/envconfig"
	"github.com/fluxserve/fluxserve/logutil"
	"github.com/fluxserve/fluxserve/pipeline"
	"github.com/fluxserve/fluxserve/predictor"
	"github.com/fluxserve/fluxserve/version"
)

// Serve hostet die Variante model auf ln. Das Setup laeuft im Hintergrund,
// bis dahin meldet /health-check STARTING.
func Serve(ln net.Listener, model string, loader pipeline.Loader) error {
	slog.SetDefault(logutil.NewLogger(os.Stderr, envconfig.LogLevel()))
	slog.Info("server config", "env", envconfig.Values())

	m, err := newMetrics(model)
	if err != nil {
		return err
	}

	p, err := predictor.Lookup(model, predictor.WithTuningUnavailable(m.observeTuningUnavailable))
	if err != nil {
		return err
	}

	s := newServer(ln.Addr(), p, m)
	http.Handle("/", s.GenerateRoutes())

	ctx, done := context.WithCancel(context.Background())
	setupCtx, cancelSetup := context.WithCancel(ctx)
	go s.runSetup(setupCtx, loader)

	slog.Info(fmt.Sprintf("Listening on %s (version %s)", ln.Addr(), version.Version), "model", model)
	srvr := &http.Server{
		Handler: nil,
	}

	// listen for a ctrl+c and stop the pipeline backend
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signals
		srvr.Close()
		cancelSetup()
		if err := p.Close(); err != nil {
			slog.Warn("failed to close predictor", "error", err)
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.shutdown(shutdownCtx); err != nil {
			slog.Debug("metrics shutdown", "error", err)
		}
		done()
	}()

	err = srvr.Serve(ln)
	// If server is closed from the signal handler, wait for the ctx to be done
	// otherwise error out quickly
	if !slices.Contains([]error{http.ErrServerClosed}, err) {
		return err
	}
	<-ctx.Done()
	return nil
}
