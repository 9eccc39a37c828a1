// config.go - Haupt-Konfigurationsfunktionen fuer fluxserve
//
// Dieses Modul enthaelt:
// - Host: Gibt Scheme und Host zurueck (FLUXSERVE_HOST)
// - AllowedOrigins: Gibt erlaubte Origins zurueck (FLUXSERVE_ORIGINS)
// - Model: Gibt die bediente Modell-Variante zurueck (FLUXSERVE_MODEL)
// - LoadTimeout: Gibt das Setup-Timeout zurueck (FLUXSERVE_LOAD_TIMEOUT)
// - Outputs: Gibt das Basisverzeichnis fuer Ausgaben zurueck (FLUXSERVE_OUTPUTS)
// - LogLevel: Gibt Log-Level zurueck (FLUXSERVE_DEBUG)
//
// Weitere Konfigurationen sind ausgelagert:
// - config_backend.go: Backend-, Runner- und Token-Variablen
// - config_utils.go: Utility-Funktionen und AsMap/Values
package envconfig

import (
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultModel is the variant served when FLUXSERVE_MODEL is unset.
const DefaultModel = "flux-dev"

// Host gibt Scheme und Host zurueck
// Konfigurierbar via FLUXSERVE_HOST
// Default: http://127.0.0.1:5000
func Host() *url.URL {
	defaultPort := "5000"

	s := strings.TrimSpace(Var("FLUXSERVE_HOST"))
	scheme, hostport, ok := strings.Cut(s, "://")
	switch {
	case !ok:
		scheme, hostport = "http", s
	case scheme == "http":
		defaultPort = "80"
	case scheme == "https":
		defaultPort = "443"
	}

	hostport, path, _ := strings.Cut(hostport, "/")
	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		host, port = "127.0.0.1", defaultPort
		if ip := net.ParseIP(strings.Trim(hostport, "[]")); ip != nil {
			host = ip.String()
		} else if hostport != "" {
			host = hostport
		}
	}

	if n, err := strconv.ParseInt(port, 10, 32); err != nil || n > 65535 || n < 0 {
		slog.Warn("invalid port, using default", "port", port, "default", defaultPort)
		port = defaultPort
	}

	return &url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(host, port),
		Path:   path,
	}
}

// AllowedOrigins gibt erlaubte Origins zurueck
// Konfigurierbar via FLUXSERVE_ORIGINS (komma-separiert)
// Enthaelt Standard-Origins fuer localhost
func AllowedOrigins() (origins []string) {
	if s := Var("FLUXSERVE_ORIGINS"); s != "" {
		origins = strings.Split(s, ",")
	}

	for _, origin := range []string{"localhost", "127.0.0.1", "0.0.0.0"} {
		origins = append(origins,
			fmt.Sprintf("http://%s", origin),
			fmt.Sprintf("https://%s", origin),
			fmt.Sprintf("http://%s", net.JoinHostPort(origin, "*")),
			fmt.Sprintf("https://%s", net.JoinHostPort(origin, "*")),
		)
	}

	return origins
}

// Model gibt die Variante zurueck, die `serve` bedient
// Konfigurierbar via FLUXSERVE_MODEL
// Default: flux-dev
func Model() string {
	if s := Var("FLUXSERVE_MODEL"); s != "" {
		return s
	}
	return DefaultModel
}

// LoadTimeout gibt das Timeout fuer das Setup (Laden + Smashen) zurueck
// Konfigurierbar via FLUXSERVE_LOAD_TIMEOUT
// 0 oder negative Werte = unendlich
// Default: 10 Minuten
func LoadTimeout() (loadTimeout time.Duration) {
	loadTimeout = 10 * time.Minute
	if s := Var("FLUXSERVE_LOAD_TIMEOUT"); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			loadTimeout = d
		} else if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			loadTimeout = time.Duration(n) * time.Second
		}
	}

	if loadTimeout <= 0 {
		return time.Duration(math.MaxInt64)
	}

	return loadTimeout
}

// Outputs gibt das Elternverzeichnis fuer die Temp-Verzeichnisse pro Request zurueck
// Konfigurierbar via FLUXSERVE_OUTPUTS
// Default: os.TempDir()
func Outputs() string {
	if s := Var("FLUXSERVE_OUTPUTS"); s != "" {
		return s
	}
	return os.TempDir()
}

// LogLevel gibt das Log-Level zurueck
// Konfigurierbar via FLUXSERVE_DEBUG
// Werte: 0/false = INFO (Default), 1/true = DEBUG, 2 = TRACE
func LogLevel() slog.Level {
	level := slog.LevelInfo
	if s := Var("FLUXSERVE_DEBUG"); s != "" {
		if b, _ := strconv.ParseBool(s); b {
			level = slog.LevelDebug
		} else if i, _ := strconv.ParseInt(s, 10, 64); i != 0 {
			level = slog.Level(i * -4)
		}
	}

	return level
}

// Var gibt eine Environment-Variable zurueck
// Entfernt fuehrende/trailing Quotes und Leerzeichen
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}
