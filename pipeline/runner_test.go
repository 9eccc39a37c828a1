package pipeline

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("benoetigt /bin/sh")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh nicht gefunden")
	}
}

func TestStartRunnerEmptyCommand(t *testing.T) {
	_, err := StartRunner(context.Background(), nil)
	assert.EqualError(t, err, "runner command is empty")
}

func TestStartRunnerMissingBinary(t *testing.T) {
	_, err := StartRunner(context.Background(), []string{"fluxserve-no-such-backend"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start runner")
}

func TestStartRunnerExits(t *testing.T) {
	requireShell(t)

	// sh -c SCRIPT NAME --port N: das Skript ignoriert die Argumente
	_, err := StartRunner(context.Background(), []string{"sh", "-c", "echo boom >&2; exit 3", "backend"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "runner")
}

func TestStartRunnerTimeout(t *testing.T) {
	requireShell(t)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := StartRunner(ctx, []string{"sh", "-c", "exec sleep 30", "backend"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
	assert.Less(t, time.Since(start), 10*time.Second, "runner sollte nach Timeout beendet werden")
}

// TestHelperBackend ist ein minimales Backend, das der Testprozess als
// Subprozess von sich selbst startet.
func TestHelperBackend(t *testing.T) {
	if os.Getenv("FLUXSERVE_HELPER_BACKEND") != "1" {
		t.Skip("nur als Subprozess")
	}

	var port string
	for i, arg := range os.Args {
		if arg == "--port" && i+1 < len(os.Args) {
			port = os.Args[i+1]
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(healthResponse{Status: "ok", Capabilities: []Capability{CapabilityCacheTuning}})
	})
	mux.HandleFunc("POST /load", func(w http.ResponseWriter, r *http.Request) {})

	http.ListenAndServe(net.JoinHostPort("127.0.0.1", port), mux)
	os.Exit(0)
}

func helperCommand(t *testing.T) []string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("benoetigt SIGINT")
	}
	t.Setenv("FLUXSERVE_HELPER_BACKEND", "1")
	return []string{os.Args[0], "-test.run=^TestHelperBackend$", "--"}
}

func TestStartRunnerReady(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	r, err := StartRunner(ctx, helperCommand(t))
	require.NoError(t, err)

	assert.Greater(t, r.Pid(), 0)
	assert.False(t, r.HasExited())
	assert.NoError(t, r.ping(ctx, http.DefaultClient))

	require.NoError(t, r.Close())
	assert.True(t, r.HasExited(), "Close muss den Prozess abraeumen")
	assert.Equal(t, -1, r.Pid())
	assert.NoError(t, r.Close(), "zweites Close ist ein no-op")
}

func TestRemoteRunnerExited(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	p, err := RemoteLoader{Command: helperCommand(t)}.Load(ctx, LoadRequest{Model: "m"})
	require.NoError(t, err)
	defer p.Close()

	remote := p.(*Remote)
	assert.True(t, remote.Supports(CapabilityCacheTuning))
	assert.True(t, remote.Alive())

	h := NewHandle(p)
	assert.True(t, h.Alive())

	require.NoError(t, remote.runner.cmd.Process.Kill())
	require.Eventually(t, remote.runner.HasExited, 10*time.Second, 10*time.Millisecond)

	assert.False(t, remote.Alive())
	assert.False(t, h.Alive())
	_, err = p.Generate(ctx, GenerateRequest{Prompt: "x", Width: 4, Height: 4, Steps: 1}, nil)
	assert.ErrorIs(t, err, ErrBackendExited)
}
