package logutil

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLoggerTraceLevel(t *testing.T) {
	var buf bytes.Buffer
	slog.SetDefault(NewLogger(&buf, LevelTrace))
	t.Cleanup(func() { slog.SetDefault(NewLogger(&bytes.Buffer{}, slog.LevelInfo)) })

	Trace("pipeline step", "step", 3)

	out := buf.String()
	if !strings.Contains(out, "level=TRACE") {
		t.Errorf("Ausgabe = %q, sollte level=TRACE enthalten", out)
	}
	if !strings.Contains(out, "source=logutil_test.go:") {
		t.Errorf("Ausgabe = %q, sollte den Dateinamen ohne Pfad enthalten", out)
	}
}

func TestTraceDisabledAtInfo(t *testing.T) {
	var buf bytes.Buffer
	slog.SetDefault(NewLogger(&buf, slog.LevelInfo))
	t.Cleanup(func() { slog.SetDefault(NewLogger(&bytes.Buffer{}, slog.LevelInfo)) })

	Trace("hidden")

	if buf.Len() != 0 {
		t.Errorf("Ausgabe = %q, erwartet leer", buf.String())
	}
}
