package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/vulntor/volworker/cmd/volworker/internal/bind"
	"github.com/vulntor/volworker/cmd/volworker/internal/format"
	"github.com/vulntor/volworker/pkg/logging"
	"github.com/vulntor/volworker/pkg/output"
	"github.com/vulntor/volworker/pkg/task"
	"github.com/vulntor/volworker/pkg/workspace"
)

// newTask builds the task used by run and worker. Tests swap it for one
// backed by a fake runner.
var newTask = task.NewFromConfig

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run [images...]",
		GroupID: "task",
		Short:   "Run the plugin set of an OS group against memory images",
		Long: `Run every plugin of the selected OS group against each memory image and
write plugin output, extracted artifacts and a markdown report into the
output directory.

Without --output-dir a new directory under the workspace outputs/ is used.`,
		Example: `  volworker run memory.raw
  volworker run --os-group lin --format json -d /cases/42 memory.lime
  volworker run --yara-rules rules.yar memory.raw -v`,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := format.FromCommand(cmd)
			fail := func(err error) error {
				_ = formatter.PrintFailure("run volatility", err, task.ErrorCode(err), task.Suggestions(err))
				return err
			}

			opts, err := bind.BindTaskOptions(cmd, args)
			if err != nil {
				return fail(err)
			}
			if opts.OutputDir == "" {
				dir, err := defaultOutputDir(cmd)
				if err != nil {
					return fail(err)
				}
				opts.OutputDir = dir
			}

			req, err := opts.Request()
			if err != nil {
				return fail(err)
			}

			cfg, err := configFrom(cmd)
			if err != nil {
				return fail(err)
			}
			t, err := newTask(cfg, logging.Component("cli"))
			if err != nil {
				return fail(task.WithErrorCode(fmt.Errorf("%w: %v", task.ErrInvalidConfig, err), task.CodeInvalidConfig))
			}

			out := outputFrom(cmd)
			res, err := t.Run(cmd.Context(), req, progressToOutput(out))
			if err != nil {
				return fail(err)
			}

			return printResult(formatter, res)
		},
	}

	bind.AddTaskFlags(cmd)
	return cmd
}

// defaultOutputDir creates a timestamped directory under the workspace outputs.
func defaultOutputDir(cmd *cobra.Command) (string, error) {
	root := workspace.Path(cmd.Context(), workspace.OutputsDir)
	if root == "" {
		return "", task.WithErrorCode(fmt.Errorf("%w: --output-dir is required without a workspace", task.ErrInvalidConfig), task.CodeInvalidConfig)
	}
	dir := filepath.Join(root, "run-"+time.Now().UTC().Format("20060102T150405Z"))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	log.Debug().Str("output_dir", dir).Msg("Using workspace output directory")
	return dir, nil
}

// progressToOutput forwards task progress into the output pipeline.
func progressToOutput(out output.Output) task.ProgressFunc {
	return func(p task.Progress) {
		data := output.ProgressData{
			Image:     p.Image,
			Total:     p.Total,
			Completed: p.Completed,
			Failed:    p.Failed,
		}
		out.Progress(data)
		if data.Done() {
			out.Diag(output.LevelVerbose, "Finished "+p.Image, map[string]any{
				"completed": p.Completed,
				"failed":    p.Failed,
			})
		}
	}
}

func printResult(f format.Formatter, res *task.Result) error {
	if f.Mode() == format.ModeJSON {
		return f.PrintJSON(res)
	}

	rows := make([][]string, 0, len(res.OutputFiles))
	for _, file := range res.OutputFiles {
		rows = append(rows, []string{file.DisplayName, file.DataType, file.Path})
	}
	if err := f.PrintTable([]string{"name", "data type", "path"}, rows); err != nil {
		return err
	}

	summary := format.Summary{
		Operation:   "run",
		OutputFiles: len(res.OutputFiles),
		Success:     res.Meta.PluginsCompleted,
		Failed:      res.Meta.PluginsFailed,
	}
	for _, failure := range res.Meta.Failures {
		summary.Errors = append(summary.Errors, format.ErrorDetail{
			Image:  failure.Image,
			Plugin: failure.Plugin,
			Error:  failure.Error,
		})
	}
	if res.Meta.YaraIgnored {
		summary.Notes = append(summary.Notes, fmt.Sprintf("Yara rules ignored: OS group %q has no Yara scan plugin", res.Meta.OSGroup))
	}
	return f.PrintRunSummary(summary)
}
