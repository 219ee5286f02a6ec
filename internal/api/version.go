package api

import (
	"encoding/json"
	"net/http"
	"runtime"
)

// BuildInfo is stamped into the binary with -ldflags.
type BuildInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
}

// WithDefaults fills in placeholders for values the build did not set.
func (b BuildInfo) WithDefaults() BuildInfo {
	if b.Version == "" {
		b.Version = "dev"
	}
	if b.GitCommit == "" {
		b.GitCommit = "unknown"
	}
	if b.BuildDate == "" {
		b.BuildDate = "unknown"
	}
	return b
}

type versionResponse struct {
	Service string `json:"service"`
	BuildInfo
	GoVersion string `json:"go_version"`
}

// VersionHandler serves build metadata at /version. No authentication.
func VersionHandler(info BuildInfo) http.Handler {
	response := versionResponse{
		Service:   "listsync",
		BuildInfo: info.WithDefaults(),
		GoVersion: runtime.Version(),
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	})
}
