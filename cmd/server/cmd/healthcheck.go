package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	// healthcheckCmd represents the healthcheck command
	healthcheckCmd = &cobra.Command{
		Use:   "healthcheck",
		Short: "Check if the server is healthy",
		Long: `Performs a health check by calling the /readyz endpoint.

This command is used by container HEALTHCHECK directives to monitor the
server. It exits with code 0 if the server is healthy, non-zero otherwise.

Exit codes:
  0 - Server is healthy
  1 - Server is unhealthy, degraded or unreachable
  2 - Invalid response from server`,
		RunE: runHealthcheck,
	}

	// Flags
	healthcheckTimeout int
	healthcheckURL     string
)

func init() {
	healthcheckCmd.Flags().IntVar(&healthcheckTimeout, "timeout", 5, "timeout in seconds")
	healthcheckCmd.Flags().StringVar(&healthcheckURL, "url", "", "health check URL (default: http://localhost:{SERVER_PORT}/readyz)")
}

// HealthResponse matches the body served by /readyz.
type HealthResponse struct {
	Status  string                 `json:"status"`
	Version string                 `json:"version,omitempty"`
	Checks  map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult is one entry of HealthResponse.Checks.
type CheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthCheckResult summarizes one probe.
type HealthCheckResult struct {
	IsHealthy  bool
	Status     string
	StatusCode int
	LatencyMs  int64
	Error      string
	// invalid marks a response that could not be parsed
	invalid bool
}

func runHealthcheck(cmd *cobra.Command, args []string) error {
	url := healthcheckURL
	if url == "" {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		url = fmt.Sprintf("http://localhost:%s/readyz", port)
	}

	result := performHealthCheck(url)
	switch {
	case result.invalid:
		fmt.Fprintf(os.Stderr, "Error parsing health check response: %s\n", result.Error)
		os.Exit(2)
	case result.Error != "":
		fmt.Fprintf(os.Stderr, "Health check failed: %s\n", result.Error)
		os.Exit(1)
	case !result.IsHealthy:
		fmt.Fprintf(os.Stderr, "Server status: %s (HTTP %d)\n", result.Status, result.StatusCode)
		os.Exit(1)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "healthy (%dms)\n", result.LatencyMs)
	return nil
}

func performHealthCheck(url string) HealthCheckResult {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(healthcheckTimeout)*time.Second)
	defer cancel()

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return HealthCheckResult{Error: err.Error()}
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return HealthCheckResult{Error: err.Error(), LatencyMs: time.Since(start).Milliseconds()}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	result := HealthCheckResult{StatusCode: resp.StatusCode, LatencyMs: time.Since(start).Milliseconds()}

	var body HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		result.Error = err.Error()
		result.invalid = true
		return result
	}
	result.Status = body.Status
	result.IsHealthy = resp.StatusCode == http.StatusOK && body.Status == "healthy"
	return result
}
