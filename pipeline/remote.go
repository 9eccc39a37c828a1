// remote.go - Pipeline ueber ein externes Diffusion-Backend
//
// Dieses Modul enthaelt:
// - Remote: Pipeline + CacheTuner ueber HTTP
// - Ping/Load fuer die Setup-Phase
// - Completion-Streaming (NDJSON) fuer Inferenz-Aufrufe
package pipeline

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"
)

// Remote talks to a diffusion backend that owns the model.
type Remote struct {
	base   *url.URL
	client *http.Client

	capabilities []Capability

	// runner is the backend process, if fluxserve started it.
	runner *Runner
}

// NewRemote returns a pipeline client for the backend at base. Capabilities
// are unknown until Ping or Load succeeds.
func NewRemote(base *url.URL, client *http.Client) *Remote {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Minute}
	}
	return &Remote{base: base, client: client}
}

type healthResponse struct {
	Status       string       `json:"status"`
	Capabilities []Capability `json:"capabilities"`
}

type cacheRequest struct {
	Action string       `json:"action"`
	Params *CacheTuning `json:"params,omitempty"`
}

type completionRequest struct {
	Prompt        string  `json:"prompt"`
	Width         int     `json:"width"`
	Height        int     `json:"height"`
	GuidanceScale float64 `json:"guidance_scale"`
	Steps         int     `json:"num_inference_steps"`
	Seed          *int64  `json:"seed,omitempty"`
}

type completionResponse struct {
	Step  int    `json:"step,omitempty"`
	Total int    `json:"total,omitempty"`
	Done  bool   `json:"done"`
	Image string `json:"image,omitempty"`
	Error string `json:"error,omitempty"`
}

// Ping checks if the backend is healthy and refreshes its capabilities.
func (r *Remote) Ping(ctx context.Context) error {
	var resp healthResponse
	if err := r.do(ctx, http.MethodGet, "/health", nil, &resp); err != nil {
		return err
	}
	r.capabilities = resp.Capabilities
	return nil
}

// Load asks the backend to load and smash the pipeline.
func (r *Remote) Load(ctx context.Context, req LoadRequest) error {
	if err := r.do(ctx, http.MethodPost, "/load", req, nil); err != nil {
		return fmt.Errorf("load %s: %w", req.Model, err)
	}
	return r.Ping(ctx)
}

// Supports reports the capabilities advertised by the backend's health check.
func (r *Remote) Supports(c Capability) bool {
	return slices.Contains(r.capabilities, c)
}

func (r *Remote) ResetCache(ctx context.Context) error {
	return r.do(ctx, http.MethodPost, "/cache", cacheRequest{Action: "reset"}, nil)
}

func (r *Remote) SetCacheParams(ctx context.Context, params CacheTuning) error {
	return r.do(ctx, http.MethodPost, "/cache", cacheRequest{Action: "set_params", Params: &params}, nil)
}

// Alive reports false once the backend process started by fluxserve has
// exited. Backends reached by URL are assumed alive.
func (r *Remote) Alive() bool {
	return r.runner == nil || !r.runner.HasExited()
}

// Generate forwards the request to the backend and waits for the final image.
func (r *Remote) Generate(ctx context.Context, req GenerateRequest, fn func(Progress)) (image.Image, error) {
	if !r.Alive() {
		return nil, fmt.Errorf("%w (pid %d)", ErrBackendExited, r.runner.Pid())
	}

	creq := completionRequest{
		Prompt:        req.Prompt,
		Width:         req.Width,
		Height:        req.Height,
		GuidanceScale: req.GuidanceScale,
		Steps:         req.Steps,
	}
	if n, ok := req.Seed.Value(); ok {
		creq.Seed = &n
	}

	body, err := json.Marshal(creq)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.base.JoinPath("/completion").String(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, statusError(http.MethodPost, "/completion", resp.Status, body)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 1024*1024), 64*1024*1024) // 64MB max
	for scanner.Scan() {
		var raw completionResponse
		if err := json.Unmarshal(scanner.Bytes(), &raw); err != nil {
			slog.Debug("skipping malformed backend line", "error", err)
			continue
		}

		if raw.Error != "" {
			return nil, errors.New(raw.Error)
		}

		if !raw.Done {
			if fn != nil && raw.Total > 0 {
				fn(Progress{Step: raw.Step, Total: raw.Total})
			}
			continue
		}

		if raw.Image == "" {
			return nil, errors.New("backend finished without an image")
		}

		data, err := base64.StdEncoding.DecodeString(raw.Image)
		if err != nil {
			return nil, fmt.Errorf("failed to decode image: %w", err)
		}

		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to decode image: %w", err)
		}
		return img, nil
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return nil, errors.New("backend closed the stream without an image")
}

// Close stops the backend process when fluxserve started it.
func (r *Remote) Close() error {
	if r.runner != nil {
		return r.runner.Close()
	}
	return nil
}

func (r *Remote) do(ctx context.Context, method, path string, reqData, respData any) error {
	var reqBody io.Reader
	if reqData != nil {
		data, err := json.Marshal(reqData)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(data)
	}

	request, err := http.NewRequestWithContext(ctx, method, r.base.JoinPath(path).String(), reqBody)
	if err != nil {
		return err
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(request)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return statusError(method, path, resp.Status, body)
	}

	if respData != nil && len(body) > 0 {
		if err := json.Unmarshal(body, respData); err != nil {
			return err
		}
	}

	return nil
}

// statusError builds the error for a failed backend call from its body,
// falling back to the HTTP status when the body carries no message.
func statusError(method, path, status string, body []byte) error {
	var apiError struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &apiError); err == nil && apiError.Error != "" {
		return fmt.Errorf("%s %s: %s", method, path, apiError.Error)
	}
	if msg := strings.TrimSpace(string(body)); msg != "" {
		return fmt.Errorf("%s %s: %s: %s", method, path, status, msg)
	}
	return fmt.Errorf("%s %s: %s", method, path, status)
}

var (
	_ CacheTuner = (*Remote)(nil)
	_ Liveness   = (*Remote)(nil)
)
