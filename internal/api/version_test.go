package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionHandler(t *testing.T) {
	tests := []struct {
		name string
		info BuildInfo
		want BuildInfo
	}{
		{
			name: "with all values",
			info: BuildInfo{Version: "0.1.0", GitCommit: "abc123def456", BuildDate: "2026-01-28T12:00:00Z"},
			want: BuildInfo{Version: "0.1.0", GitCommit: "abc123def456", BuildDate: "2026-01-28T12:00:00Z"},
		},
		{
			name: "with defaults",
			want: BuildInfo{Version: "dev", GitCommit: "unknown", BuildDate: "unknown"},
		},
		{
			name: "with partial values",
			info: BuildInfo{Version: "1.0.0", BuildDate: "2026-01-28T12:00:00Z"},
			want: BuildInfo{Version: "1.0.0", GitCommit: "unknown", BuildDate: "2026-01-28T12:00:00Z"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			VersionHandler(tt.info).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/version", nil))

			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var resp versionResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, "listsync", resp.Service)
			assert.Equal(t, tt.want, resp.BuildInfo)
			assert.Equal(t, runtime.Version(), resp.GoVersion)
		})
	}
}

func TestVersionHandler_MethodNotAllowed(t *testing.T) {
	handler := VersionHandler(BuildInfo{Version: "0.1.0"})

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch} {
		t.Run(method, func(t *testing.T) {
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(method, "/version", nil))
			assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
		})
	}
}
