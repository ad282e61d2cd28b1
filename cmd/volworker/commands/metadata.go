package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/vulntor/volworker/cmd/volworker/internal/format"
	"github.com/vulntor/volworker/pkg/task"
)

func newMetadataCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "metadata",
		GroupID: "core",
		Short:   "Print the task registration metadata",
		Example: `  volworker metadata
  volworker metadata --format yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := format.FromCommand(cmd)
			meta := task.DefaultMetadata()

			switch f, _ := cmd.Flags().GetString("format"); f {
			case "", "json":
				return formatter.PrintJSON(meta)
			case "yaml":
				data, err := yaml.Marshal(meta)
				if err != nil {
					return fmt.Errorf("marshal metadata: %w", err)
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			default:
				err := task.WithErrorCode(fmt.Errorf("%w: unsupported format %q (json, yaml)", task.ErrInvalidConfig, f), task.CodeInvalidConfig)
				_ = formatter.PrintFailure("print metadata", err, task.ErrorCode(err), nil)
				return err
			}
		},
	}

	cmd.Flags().String("format", "json", "Metadata encoding (json, yaml)")
	return cmd
}
