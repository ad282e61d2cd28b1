package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/vulntor/volworker/cmd/volworker/internal/format"
	"github.com/vulntor/volworker/pkg/appctx"
	"github.com/vulntor/volworker/pkg/config"
	"github.com/vulntor/volworker/pkg/logging"
	"github.com/vulntor/volworker/pkg/paths"
	"github.com/vulntor/volworker/pkg/workspace"
)

const cliExecutable = "volworker"

// NewCommand constructs the top-level volworker command, wiring global flags,
// configuration loading, logging and workspace preparation.
func NewCommand() *cobra.Command {
	var (
		configFile        string
		workspaceDir      string
		workspaceDisabled bool
		verbosityCount    int
	)

	cmd := &cobra.Command{
		Use:   cliExecutable,
		Short: "Run Volatility 3 plugin sets against memory images",
		Long: `volworker runs a fixed, OS dependent set of Volatility 3 plugins against
memory images and collects plugin reports and extracted artifacts into an
output directory. It runs one-shot from the command line or as a queue worker.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if mode, _ := cmd.Flags().GetString("output"); mode != "" {
				if _, err := format.ParseMode(mode); err != nil {
					return err
				}
			}

			mgr := config.NewManager()
			load := mgr.LoadExplicit
			path := configFile
			if path == "" {
				load, path = mgr.Load, paths.ConfigFile()
			}
			if err := load(cmd.Flags(), path); err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			cfg := mgr.Get()

			if err := logging.ConfigureGlobalLogging(cfg.Log.Level, cfg.Log.Format, cfg.Log.File); err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx = appctx.WithConfig(ctx, mgr)

			if !workspaceDisabled {
				prepared, err := workspace.Prepare(workspaceDir)
				if err != nil {
					return fmt.Errorf("prepare workspace: %w", err)
				}
				ctx = workspace.WithContext(ctx, prepared)
				log.Debug().Str("workspace", prepared).Msg("workspace ready")
			}

			ctx = appctx.WithOutput(ctx, setupOutputPipeline(cmd))

			cmd.SetContext(ctx)
			if root := cmd.Root(); root != nil && root != cmd {
				root.SetContext(ctx)
			}
			return nil
		},
	}

	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	flags := cmd.PersistentFlags()
	flags.StringVarP(&configFile, "config", "c", "", "Configuration file path")
	flags.StringVar(&workspaceDir, "workspace-dir", "", "Override workspace root directory")
	flags.BoolVar(&workspaceDisabled, "no-workspace", false, "Do not create or use a workspace for this run")
	flags.CountVarP(&verbosityCount, "verbosity", "v", "Increase output verbosity (repeatable)")
	flags.StringP("output", "o", "table", "Output format for command results (table, json)")
	flags.BoolP("quiet", "q", false, "Suppress summaries")
	flags.Bool("no-color", false, "Disable colored output")

	config.BindFlags(flags)

	cmd.AddGroup(&cobra.Group{ID: "task", Title: "Task Commands"})
	cmd.AddGroup(&cobra.Group{ID: "core", Title: "Core Commands"})

	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newWorkerCommand())
	cmd.AddCommand(newSubmitCommand())
	cmd.AddCommand(newPluginsCommand())
	cmd.AddCommand(newMetadataCommand())
	cmd.AddCommand(newDoctorCommand())
	cmd.AddCommand(newVersionCommand())

	return cmd
}

// configFrom returns the configuration loaded by the root command.
func configFrom(cmd *cobra.Command) (config.Config, error) {
	mgr, ok := appctx.Config(cmd.Context())
	if !ok {
		return config.Config{}, fmt.Errorf("configuration not loaded")
	}
	return mgr.Get(), nil
}
