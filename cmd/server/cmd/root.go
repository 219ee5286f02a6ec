package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	logLevel   string
	logFormat  string

	// rootCmd represents the base command when called without any subcommands
	rootCmd = &cobra.Command{
		Use:   "listsync",
		Short: "listsync server - real-time shared checklists",
		Long: `listsync serves shared checklists over a JSON API and pushes every
change to connected clients over websockets.

The server supports:
- Lists and items with per-list activity history
- Real-time fan-out to global and per-list channels
- Cross-instance relay through Redis pub/sub
- PostgreSQL or in-memory storage`,
		SilenceUsage: true,
		// Run the serve command by default if no subcommand is specified
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveCmd.RunE(cmd, args)
		},
	}
)

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	registerGlobalFlags(rootCmd, &configPath, &logLevel, &logFormat)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(healthcheckCmd)
}

func registerGlobalFlags(c *cobra.Command, config, level, format *string) {
	c.PersistentFlags().StringVar(config, "config", "", "config file path (optional, uses env vars by default)")
	c.PersistentFlags().StringVar(level, "log-level", "", "log level (debug, info, warn, error) (default: info)")
	c.PersistentFlags().StringVar(format, "log-format", "", "log format (json, console) (default: json)")
}
