// config_backend.go - Backend- und Token-Konfiguration
//
// Dieses Modul enthaelt:
// - Backend-Adresse und Runner-Kommando
// - Tokens fuer Accelerator und Hugging Face
package envconfig

import "strings"

// =============================================================================
// Backend-Konfiguration
// =============================================================================

// PreviewBackend selects the in-process preview pipeline.
const PreviewBackend = "preview"

var (
	// Backend ist die URL eines laufenden Diffusion-Backends oder "preview"
	Backend = String("FLUXSERVE_BACKEND")

	// SmashToken wird an die Acceleration-Schicht weitergereicht
	SmashToken = String("FLUXSERVE_SMASH_TOKEN")

	// HFToken wird an das Backend fuer den Download der Gewichte weitergereicht
	HFToken = String("HF_TOKEN")
)

// Runner gibt das Kommando zurueck, mit dem ein Backend gestartet wird
// Konfigurierbar via FLUXSERVE_RUNNER (durch Leerzeichen getrennt)
// Der Server haengt `--port N` an.
func Runner() []string {
	return strings.Fields(Var("FLUXSERVE_RUNNER"))
}
