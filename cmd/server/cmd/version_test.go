package cmd

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Togather-Foundation/listsync/internal/domain/lists"
)

func setVersion(t *testing.T, version, commit, date string) {
	t.Helper()
	origVersion, origGitCommit, origBuildDate := Version, GitCommit, BuildDate
	t.Cleanup(func() {
		Version = origVersion
		GitCommit = origGitCommit
		BuildDate = origBuildDate
	})
	Version, GitCommit, BuildDate = version, commit, date
}

func runVersion(t *testing.T, args ...string) string {
	t.Helper()
	root := newRootCommand()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(append([]string{"version"}, args...))

	if err := root.Execute(); err != nil {
		t.Fatalf("version command failed: %v", err)
	}
	return buf.String()
}

func TestVersionCommand(t *testing.T) {
	setVersion(t, "1.0.0", "abc123", "2026-01-27T12:00:00Z")

	output := runVersion(t)

	expectedStrings := []string{
		"listsync server",
		"Version:    1.0.0",
		"Git commit: abc123",
		"Build date: 2026-01-27T12:00:00Z",
		"Go version:",
		"Platform:",
		"Storage:    postgres, memory",
		"Realtime:   local, redis",
		"Policies:   allow_all, owner_only",
	}
	for _, expected := range expectedStrings {
		if !strings.Contains(output, expected) {
			t.Errorf("expected output to contain %q, got:\n%s", expected, output)
		}
	}
}

func TestVersionCommandDefaultValues(t *testing.T) {
	setVersion(t, "dev", "unknown", "unknown")

	output := runVersion(t)

	for _, expected := range []string{"Version:    dev", "Git commit: unknown", "Build date: unknown"} {
		if !strings.Contains(output, expected) {
			t.Errorf("expected output to contain %q, got:\n%s", expected, output)
		}
	}
}

func TestVersionCommandHelp(t *testing.T) {
	output := runVersion(t, "--help")

	if !strings.Contains(output, "Print the version number") {
		t.Errorf("expected help text to contain version description, got:\n%s", output)
	}
}

func TestVersionCommandNoServerStart(t *testing.T) {
	// The version command must run without config or storage.
	setVersion(t, "test", "test", "test")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DATABASE_URL", "")

	_ = runVersion(t)
}

func TestVersionCommandJSON(t *testing.T) {
	setVersion(t, "1.2.3", "def456", "")
	t.Cleanup(func() { versionJSON = false })

	var report map[string]any
	require.NoError(t, json.Unmarshal([]byte(runVersion(t, "--json")), &report))

	assert.Equal(t, "1.2.3", report["version"])
	assert.Equal(t, "def456", report["git_commit"])
	assert.Equal(t, "unknown", report["build_date"])
	assert.Equal(t, []any{"postgres", "memory"}, report["storage_drivers"])
	assert.Equal(t, []any{"local", "redis"}, report["realtime_transports"])
}

func TestAdvertisedPoliciesResolve(t *testing.T) {
	for _, name := range currentBuild().Policies {
		_, err := lists.PolicyByName(name)
		assert.NoError(t, err, name)
	}
}
