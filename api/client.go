// Package api - Client fuer den fluxserve Predictor.
// Dieses Modul enthaelt die Client-Struktur und die API-Methoden.
//
// Package api implements the client-side API for code wishing to interact
// with a running fluxserve predictor. The methods of the [Client] type
// correspond to the Cog-compatible HTTP routes of the server.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"runtime"

	"github.com/fluxserve/fluxserve/envconfig"
	"github.com/fluxserve/fluxserve/version"
)

// Client encapsulates client state for interacting with the fluxserve
// server. Use [ClientFromEnvironment] to create new Clients.
type Client struct {
	base *url.URL
	http *http.Client
}

func checkError(resp *http.Response, body []byte) error {
	if resp.StatusCode < http.StatusBadRequest {
		return nil
	}

	apiError := StatusError{StatusCode: resp.StatusCode, Status: resp.Status}

	err := json.Unmarshal(body, &apiError)
	if err != nil {
		// Use the full body as the message if we fail to decode a response.
		apiError.ErrorMessage = string(body)
	}

	return apiError
}

// ClientFromEnvironment creates a new [Client] using configuration from the
// environment variable FLUXSERVE_HOST, which points to the network host and
// port on which the server is listening. The format of this variable is:
//
//	<scheme>://<host>:<port>
//
// If the variable is not specified, a default host and port will be used.
func ClientFromEnvironment() (*Client, error) {
	return &Client{
		base: envconfig.Host(),
		http: http.DefaultClient,
	}, nil
}

func NewClient(base *url.URL, http *http.Client) *Client {
	return &Client{
		base: base,
		http: http,
	}
}

func (c *Client) do(ctx context.Context, method, path string, reqData, respData any) error {
	var reqBody io.Reader
	if reqData != nil {
		data, err := json.Marshal(reqData)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(data)
	}

	request, err := http.NewRequestWithContext(ctx, method, c.base.JoinPath(path).String(), reqBody)
	if err != nil {
		return err
	}

	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "application/json")
	request.Header.Set("User-Agent", fmt.Sprintf("fluxserve/%s (%s %s) Go/%s", version.Version, runtime.GOARCH, runtime.GOOS, runtime.Version()))

	respObj, err := c.http.Do(request)
	if err != nil {
		return err
	}
	defer respObj.Body.Close()

	respBody, err := io.ReadAll(respObj.Body)
	if err != nil {
		return err
	}

	if err := checkError(respObj, respBody); err != nil {
		return err
	}

	if len(respBody) > 0 && respData != nil {
		if err := json.Unmarshal(respBody, respData); err != nil {
			return err
		}
	}
	return nil
}

// Predict runs one prediction and waits for its result. A failed
// prediction is returned as a [StatusError].
func (c *Client) Predict(ctx context.Context, req *PredictionRequest) (*PredictionResponse, error) {
	var resp PredictionResponse
	if err := c.do(ctx, http.MethodPost, "/predictions", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Health returns the setup and readiness state of the server.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.do(ctx, http.MethodGet, "/health-check", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Schema returns the input schema of the served model.
func (c *Client) Schema(ctx context.Context) (*SchemaResponse, error) {
	var resp SchemaResponse
	if err := c.do(ctx, http.MethodGet, "/openapi.json", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Version returns the server version.
func (c *Client) Version(ctx context.Context) (string, error) {
	var version VersionResponse
	if err := c.do(ctx, http.MethodGet, "/api/version", nil, &version); err != nil {
		return "", err
	}
	return version.Version, nil
}

// Heartbeat checks if the server has started and is responsive.
func (c *Client) Heartbeat(ctx context.Context) error {
	return c.do(ctx, http.MethodHead, "/", nil, nil)
}
