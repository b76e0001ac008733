package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/actuator-core/internal/api"
	"github.com/nerrad567/actuator-core/internal/control"
	"github.com/nerrad567/actuator-core/internal/device"
	"github.com/nerrad567/actuator-core/internal/infrastructure/config"
	"github.com/nerrad567/actuator-core/internal/infrastructure/database"
	"github.com/nerrad567/actuator-core/internal/transport/fake"
	"github.com/nerrad567/actuator-core/migrations"
)

func newCheckConfigCmd(configPath func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "check-config",
		Short: "Load and validate a configuration file",
		Long: "Loads the configuration, builds the controller options, parses the " +
			"device seed file and applies the migrations to an in-memory database. " +
			"Nothing is connected or written.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := configPath()
			if err := checkConfig(cmd.Context(), path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "configuration OK: %s\n", path)
			return nil
		},
	}
}

// checkConfig runs every startup validation that needs no network.
func checkConfig(ctx context.Context, path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	opts, err := controlOptions(cfg)
	if err != nil {
		return fmt.Errorf("building control options: %w", err)
	}
	if _, err := control.New(opts, control.Deps{
		Registry:  device.NewRegistry(nil),
		Transport: fake.New(),
	}); err != nil {
		return fmt.Errorf("validating control options: %w", err)
	}

	if cfg.Devices.SeedFile != "" {
		if _, err := device.LoadSeedFile(cfg.Devices.SeedFile); err != nil {
			return fmt.Errorf("checking device seed file: %w", err)
		}
	}

	db, err := database.OpenMemory()
	if err != nil {
		return fmt.Errorf("opening scratch database: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		return fmt.Errorf("checking migrations: %w", err)
	}
	return nil
}

func newTokenCmd(configPath func() string) *cobra.Command {
	var (
		subject string
		role    string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an API token signed with the configured secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath())
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if ttl <= 0 {
				ttl = time.Duration(cfg.Security.JWT.TokenTTL) * time.Minute
			}

			token, err := api.IssueToken(cfg.Security.JWT.Secret, cfg.Security.JWT.Issuer, subject, role, ttl)
			if err != nil {
				return fmt.Errorf("issuing token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "token subject, e.g. an operator name (required)")
	cmd.Flags().StringVar(&role, "role", api.RoleOperator, "operator or viewer")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default security.jwt.token_ttl)")
	_ = cmd.MarkFlagRequired("subject") //nolint:errcheck // flag defined above

	return cmd
}
