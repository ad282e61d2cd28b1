package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vulntor/volworker/cmd/volworker/internal/format"
	"github.com/vulntor/volworker/pkg/version"
)

func newVersionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "version",
		GroupID: "core",
		Short:   "Print the build version",
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := format.FromCommand(cmd)
			info := version.Get()
			if short, _ := cmd.Flags().GetBool("short"); short {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), info.Version)
				return err
			}
			if formatter.Mode() == format.ModeJSON {
				return formatter.PrintJSON(info)
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s\n  go:       %s\n  platform: %s\n", info, info.GoVersion, info.Platform)
			return err
		},
	}
	cmd.Flags().Bool("short", false, "Print only the version number")
	return cmd
}
