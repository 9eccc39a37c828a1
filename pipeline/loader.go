// loader.go - Setup-Phase: Backend aufloesen und Pipeline laden
//
// Dieses Modul enthaelt:
// - RemoteLoader: verbindet sich mit einer Backend-URL oder startet einen Runner
// - PreviewLoader: laedt die In-Process Preview-Pipeline
// - LoaderFromEnvironment: Auswahl ueber FLUXSERVE_BACKEND/FLUXSERVE_RUNNER
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/fluxserve/fluxserve/envconfig"
)

// RemoteLoader loads the pipeline into a diffusion backend. Exactly one of
// BaseURL and Command is set.
type RemoteLoader struct {
	BaseURL *url.URL
	Command []string
}

func (l RemoteLoader) Load(ctx context.Context, req LoadRequest) (Pipeline, error) {
	base := l.BaseURL
	var runner *Runner
	if base == nil {
		var err error
		runner, err = StartRunner(ctx, l.Command)
		if err != nil {
			return nil, err
		}
		base = runner.URL()
	}

	remote := NewRemote(base, nil)
	remote.runner = runner

	slog.Info("loading pipeline", "model", req.Model, "backend", base.String(), "local_path", req.LocalPath)
	if req.Smash != nil {
		slog.Info("smashing pipeline", "options", strings.Join(req.Smash.Keys(), ","))
	}

	if err := remote.Load(ctx, req); err != nil {
		remote.Close()
		return nil, err
	}

	slog.Info("backend capabilities", "cache_helper", remote.Supports(CapabilityCacheTuning))
	return remote, nil
}

// PreviewLoader returns the in-process preview pipeline.
type PreviewLoader struct{}

func (PreviewLoader) Load(_ context.Context, req LoadRequest) (Pipeline, error) {
	slog.Info("loading preview pipeline", "model", req.Model)
	return NewPreview(), nil
}

// LoaderFromEnvironment picks the loader configured through
// FLUXSERVE_BACKEND and FLUXSERVE_RUNNER.
func LoaderFromEnvironment() (Loader, error) {
	backend := envconfig.Backend()
	switch {
	case backend == envconfig.PreviewBackend:
		return PreviewLoader{}, nil
	case backend != "":
		u, err := url.Parse(backend)
		if err != nil {
			return nil, fmt.Errorf("invalid FLUXSERVE_BACKEND: %w", err)
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("invalid FLUXSERVE_BACKEND %q: expected scheme://host:port", backend)
		}
		return RemoteLoader{BaseURL: u}, nil
	case len(envconfig.Runner()) > 0:
		return RemoteLoader{Command: envconfig.Runner()}, nil
	default:
		return nil, errors.New("no diffusion backend configured: set FLUXSERVE_BACKEND or FLUXSERVE_RUNNER")
	}
}
