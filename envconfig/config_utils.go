// config_utils.go - Utility-Funktionen und Export fuer Konfiguration
//
// Dieses Modul enthaelt:
// - String: String-Getter
// - EnvVar: Struktur fuer Environment-Variablen-Info
// - AsMap: Gibt alle Konfigurationen als Map zurueck
// - Values: Gibt alle Konfigurationswerte als String-Map zurueck
package envconfig

import (
	"fmt"
	"strings"
)

// =============================================================================
// String-Getter
// =============================================================================

// String gibt eine Funktion zurueck, die einen String liest
func String(s string) func() string {
	return func() string {
		return Var(s)
	}
}

// =============================================================================
// Export-Strukturen und -Funktionen
// =============================================================================

// EnvVar repraesentiert eine Environment-Variable mit Metadaten
type EnvVar struct {
	Name        string
	Value       any
	Description string
}

// AsMap gibt alle Konfigurationen als Map zurueck
// Enthaelt Namen, aktuelle Werte und Beschreibungen
func AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"FLUXSERVE_DEBUG":        {"FLUXSERVE_DEBUG", LogLevel(), "Show additional debug information (e.g. FLUXSERVE_DEBUG=1)"},
		"FLUXSERVE_HOST":         {"FLUXSERVE_HOST", Host(), "IP Address for the fluxserve server (default 127.0.0.1:5000)"},
		"FLUXSERVE_ORIGINS":      {"FLUXSERVE_ORIGINS", AllowedOrigins(), "A comma separated list of allowed origins"},
		"FLUXSERVE_MODEL":        {"FLUXSERVE_MODEL", Model(), "Model variant to serve (default \"flux-dev\")"},
		"FLUXSERVE_BACKEND":      {"FLUXSERVE_BACKEND", Backend(), "URL of a running diffusion backend, or \"preview\""},
		"FLUXSERVE_RUNNER":       {"FLUXSERVE_RUNNER", strings.Join(Runner(), " "), "Command that starts a diffusion backend (--port is appended)"},
		"FLUXSERVE_LOAD_TIMEOUT": {"FLUXSERVE_LOAD_TIMEOUT", LoadTimeout(), "How long to allow setup to run before giving up (default \"10m\")"},
		"FLUXSERVE_OUTPUTS":      {"FLUXSERVE_OUTPUTS", Outputs(), "Parent directory for generated images"},
		"FLUXSERVE_SMASH_TOKEN":  {"FLUXSERVE_SMASH_TOKEN", redact(SmashToken()), "Token for the acceleration layer"},
		"HF_TOKEN":               {"HF_TOKEN", redact(HFToken()), "Hugging Face token used to download weights"},
	}
}

// Values gibt alle Konfigurationswerte als String-Map zurueck
func Values() map[string]string {
	vals := make(map[string]string)
	for k, v := range AsMap() {
		vals[k] = fmt.Sprintf("%v", v.Value)
	}
	return vals
}

// redact verbirgt Tokens in Logs
func redact(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}
