package commands

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/vulntor/volworker/cmd/volworker/internal/format"
	"github.com/vulntor/volworker/pkg/task"
	"github.com/vulntor/volworker/pkg/volatility"
)

func newPluginsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "plugins",
		GroupID: "core",
		Short:   "List the plugins run for each OS group",
		Example: `  volworker plugins
  volworker plugins --os-group lin -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := format.FromCommand(cmd)
			fail := func(err error) error {
				_ = formatter.PrintFailure("list plugins", err, task.ErrorCode(err), task.Suggestions(err))
				return err
			}

			cfg, err := configFrom(cmd)
			if err != nil {
				return fail(err)
			}
			catalog, err := volatility.LoadCatalog(cfg.Volatility.CatalogFile)
			if err != nil {
				return fail(task.WithErrorCode(err, task.CodeInvalidConfig))
			}

			groups := catalog.Groups()
			if only, _ := cmd.Flags().GetString("os-group"); only != "" {
				group := volatility.OSGroup(strings.ToLower(only))
				if !catalog.Has(group) {
					return fail(task.WithErrorCode(volatility.ErrUnknownOSGroup, task.CodeUnknownGroup))
				}
				groups = []volatility.OSGroup{group}
			}

			return formatter.PrintTable([]string{"group", "plugin", "params", "yara"}, catalogRows(catalog, groups))
		},
	}

	cmd.Flags().String("os-group", "", "Only list this OS group")
	return cmd
}

func catalogRows(catalog volatility.Catalog, groups []volatility.OSGroup) [][]string {
	var rows [][]string
	for _, name := range groups {
		group := catalog[name]
		for _, p := range group.Plugins {
			rows = append(rows, []string{string(name), p.Name, strings.Join(p.Params, " "), ""})
		}
		if group.YaraPlugin != "" {
			rows = append(rows, []string{string(name), group.YaraPlugin, volatility.YaraFileParam + " <rules>", "yes"})
		}
	}
	return rows
}
