// Actuator Core - autonomous actuator control for growing facilities.
//
// actuatord turns AI recommendations and operator commands into safe,
// rate-limited device writes. It serves the management API, consumes
// recommendation batches from the MQTT bus and dispatches commands to
// devices through protocol bridges.
//
// Subcommands:
//   - serve: run the control core until interrupted
//   - check-config: load and validate a configuration file
//   - token: mint an operator or viewer API token
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

const (
	// defaultConfigPath is used when neither --config nor ACTUATOR_CONFIG is set.
	defaultConfigPath = "configs/config.yaml"

	configEnvVar = "ACTUATOR_CONFIG"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. A fresh tree per call keeps flag
// state out of package globals so tests can execute commands repeatedly.
func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "actuatord",
		Short:         "Autonomous actuator control core",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"path to config file (default $"+configEnvVar+" or "+defaultConfigPath+")")

	resolve := func() string { return getConfigPath(configPath) }

	root.AddCommand(
		newServeCmd(resolve),
		newCheckConfigCmd(resolve),
		newTokenCmd(resolve),
	)
	return root
}

// getConfigPath returns the configuration file path.
// The flag wins, then ACTUATOR_CONFIG, then the default.
func getConfigPath(flag string) string {
	if flag != "" {
		return flag
	}
	if path := os.Getenv(configEnvVar); path != "" {
		return path
	}
	return defaultConfigPath
}
