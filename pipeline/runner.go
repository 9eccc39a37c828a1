// runner.go - Lifecycle-Management fuer den Backend-Subprocess
//
// Dieses Modul enthaelt:
// - StartRunner: freien Port finden, Prozess starten, Logs weiterleiten
// - waitUntilRunning: Health-Check Polling bis der Prozess bereit ist
// - Close/Pid/HasExited
package pipeline

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"
)

// Runner is a diffusion backend subprocess started by fluxserve.
type Runner struct {
	mu          sync.Mutex
	cmd         *exec.Cmd
	port        int
	done        chan error
	exited      chan struct{}
	lastErr     string // Last stderr line for error reporting
	lastErrLock sync.Mutex
}

// StartRunner spawns command with `--port N` appended and waits until its
// /health endpoint answers or ctx is done.
func StartRunner(ctx context.Context, command []string) (*Runner, error) {
	if len(command) == 0 {
		return nil, errors.New("runner command is empty")
	}

	port := 0
	if a, err := net.ResolveTCPAddr("tcp", "localhost:0"); err == nil {
		if l, err := net.ListenTCP("tcp", a); err == nil {
			port = l.Addr().(*net.TCPAddr).Port
			l.Close()
		}
	}
	if port == 0 {
		port = rand.Intn(65535-49152) + 49152
	}

	args := append(append([]string{}, command[1:]...), "--port", strconv.Itoa(port))
	cmd := exec.Command(command[0], args...)
	cmd.Env = os.Environ()

	r := &Runner{
		cmd:    cmd,
		port:   port,
		done:   make(chan error, 1),
		exited: make(chan struct{}),
	}

	// Forward subprocess stdout/stderr to server logs
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}
	go func() {
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			slog.Info("runner", "msg", scanner.Text())
		}
	}()
	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			line := scanner.Text()
			slog.Warn("runner", "msg", line)
			r.lastErrLock.Lock()
			r.lastErr = line
			r.lastErrLock.Unlock()
		}
	}()

	slog.Info("starting runner subprocess", "cmd", command[0], "port", port)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start runner: %w", err)
	}

	// Reap subprocess when it exits
	go func() {
		err := cmd.Wait()
		close(r.exited)
		r.done <- err
	}()

	if err := r.waitUntilRunning(ctx); err != nil {
		slog.Error("runner did not become ready", "pid", r.Pid(), "error", err)
		r.Close()
		return nil, err
	}

	return r, nil
}

// URL returns the base URL of the subprocess.
func (r *Runner) URL() *url.URL {
	return &url.URL{Scheme: "http", Host: net.JoinHostPort("127.0.0.1", strconv.Itoa(r.port))}
}

func (r *Runner) ping(ctx context.Context, client *http.Client) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.URL().JoinPath("/health").String(), nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed: %d", resp.StatusCode)
	}
	return nil
}

func (r *Runner) waitUntilRunning(ctx context.Context) error {
	client := &http.Client{Timeout: 5 * time.Second}
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case err := <-r.done:
			// Include recent stderr lines for better error context
			if msg := r.getLastErr(); msg != "" {
				return fmt.Errorf("runner failed: %s (exit: %v)", msg, err)
			}
			return fmt.Errorf("runner exited unexpectedly: %w", err)
		case <-ctx.Done():
			if msg := r.getLastErr(); msg != "" {
				return fmt.Errorf("timeout waiting for runner: %s", msg)
			}
			return fmt.Errorf("timeout waiting for runner to start: %w", ctx.Err())
		case <-ticker.C:
			if err := r.ping(ctx, client); err == nil {
				slog.Info("runner is ready", "pid", r.Pid(), "port", r.port)
				return nil
			}
		}
	}
}

func (r *Runner) getLastErr() string {
	r.lastErrLock.Lock()
	defer r.lastErrLock.Unlock()
	return r.lastErr
}

// Close terminates the subprocess.
func (r *Runner) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cmd != nil && r.cmd.Process != nil {
		slog.Info("stopping runner subprocess", "pid", r.cmd.Process.Pid)
		r.cmd.Process.Signal(os.Interrupt)

		// Wait briefly for graceful shutdown
		select {
		case <-r.exited:
		case <-time.After(5 * time.Second):
			r.cmd.Process.Kill()
			<-r.exited
		}
		r.cmd = nil
	}
	return nil
}

// Pid returns the process ID of the subprocess.
func (r *Runner) Pid() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cmd != nil && r.cmd.Process != nil {
		return r.cmd.Process.Pid
	}
	return -1
}

// HasExited returns true if the subprocess has exited.
func (r *Runner) HasExited() bool {
	select {
	case <-r.exited:
		return true
	default:
		return false
	}
}
