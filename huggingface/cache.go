// Package huggingface - Lookup vortrainierter Gewichte im Hugging Face Hub Cache.
//
// Dieses Modul enthaelt:
// - GetCacheDir: Cache-Verzeichnis aus HF_HUB_CACHE/HF_HOME/XDG
// - GetCachedModel: Snapshot-Pfad der main-Revision eines Modells
//
// Kompatibel mit der huggingface_hub Cache-Struktur:
// models--{org}--{name}/{refs,blobs,snapshots}.
package huggingface

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Cache-Konstanten
const (
	DefaultCacheSubdir = "huggingface/hub"
	CacheRefDir        = "refs"
	CacheSnapshotDir   = "snapshots"
	CacheModelPrefix   = "models--"

	// DefaultRevision ist der Branch, den from_pretrained ohne Angabe laedt
	DefaultRevision = "main"
)

// Umgebungsvariablen fuer den Cache-Ort
const (
	EnvHFHubCache = "HF_HUB_CACHE"
	EnvHFHome     = "HF_HOME"
)

// GetCacheDir gibt das Cache-Verzeichnis zurueck
func GetCacheDir() string {
	if cacheDir := os.Getenv(EnvHFHubCache); cacheDir != "" {
		return cacheDir
	}
	if hfHome := os.Getenv(EnvHFHome); hfHome != "" {
		return filepath.Join(hfHome, "hub")
	}
	return getDefaultCacheDir()
}

func getDefaultCacheDir() string {
	var baseDir string
	switch runtime.GOOS {
	case "windows":
		if userProfile := os.Getenv("USERPROFILE"); userProfile != "" {
			baseDir = filepath.Join(userProfile, ".cache")
		} else {
			baseDir = filepath.Join(os.TempDir(), "huggingface_cache")
		}
	default:
		if xdgCache := os.Getenv("XDG_CACHE_HOME"); xdgCache != "" {
			baseDir = xdgCache
		} else if home, err := os.UserHomeDir(); err == nil {
			baseDir = filepath.Join(home, ".cache")
		} else {
			baseDir = filepath.Join(os.TempDir(), "huggingface_cache")
		}
	}
	return filepath.Join(baseDir, DefaultCacheSubdir)
}

// GetCachedModel prueft ob die main-Revision eines Modells im Cache ist
// und gibt den Snapshot-Pfad zurueck.
func GetCachedModel(modelID string) (string, bool) {
	return GetCachedModelWithRevision(modelID, DefaultRevision)
}

// GetCachedModelWithRevision loest revision ueber refs/ auf (Branch oder Tag)
// und faellt auf einen gleichnamigen Snapshot zurueck (Commit-Hash).
func GetCachedModelWithRevision(modelID, revision string) (string, bool) {
	modelDir := filepath.Join(GetCacheDir(), modelIDToCacheDir(modelID))

	candidates := []string{revision}
	if ref, err := os.ReadFile(filepath.Join(modelDir, CacheRefDir, revision)); err == nil {
		if commit := strings.TrimSpace(string(ref)); commit != "" {
			candidates = []string{commit, revision}
		}
	}

	for _, rev := range candidates {
		snapshotPath := filepath.Join(modelDir, CacheSnapshotDir, rev)
		if stat, err := os.Stat(snapshotPath); err == nil && stat.IsDir() {
			if entries, err := os.ReadDir(snapshotPath); err == nil && len(entries) > 0 {
				return snapshotPath, true
			}
		}
	}
	return "", false
}

func modelIDToCacheDir(modelID string) string {
	return CacheModelPrefix + strings.ReplaceAll(modelID, "/", "--")
}
