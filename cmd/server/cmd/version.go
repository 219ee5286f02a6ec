package cmd

import (
	"encoding/json"
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Togather-Foundation/listsync/internal/api"
	"github.com/Togather-Foundation/listsync/internal/config"
	"github.com/Togather-Foundation/listsync/internal/domain/lists"
)

// Set with -ldflags "-X .../cmd.Version=..." at build time.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var versionJSON bool

// buildReport is what `listsync version` prints: the stamped build plus the
// backends this binary can be configured with.
type buildReport struct {
	api.BuildInfo
	GoVersion  string   `json:"go_version"`
	Platform   string   `json:"platform"`
	Storage    []string `json:"storage_drivers"`
	Transports []string `json:"realtime_transports"`
	Policies   []string `json:"list_policies"`
}

func currentBuild() buildReport {
	return buildReport{
		BuildInfo:  api.BuildInfo{Version: Version, GitCommit: GitCommit, BuildDate: BuildDate}.WithDefaults(),
		GoVersion:  runtime.Version(),
		Platform:   runtime.GOOS + "/" + runtime.GOARCH,
		Storage:    []string{config.StoragePostgres, config.StorageMemory},
		Transports: []string{"local", "redis"},
		Policies:   lists.PolicyNames,
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long: `Print the version number, git commit, build date and Go runtime version,
along with the storage drivers, realtime transports and list policies
this build supports.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		b := currentBuild()
		out := cmd.OutOrStdout()
		if versionJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(b)
		}

		fmt.Fprintln(out, "listsync server")
		for _, row := range [][2]string{
			{"Version", b.Version},
			{"Git commit", b.GitCommit},
			{"Build date", b.BuildDate},
			{"Go version", b.GoVersion},
			{"Platform", b.Platform},
			{"Storage", strings.Join(b.Storage, ", ")},
			{"Realtime", strings.Join(b.Transports, ", ")},
			{"Policies", strings.Join(b.Policies, ", ")},
		} {
			fmt.Fprintf(out, "%-11s %s\n", row[0]+":", row[1])
		}
		return nil
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "print build information as JSON")
}
