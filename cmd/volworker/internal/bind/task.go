// Package bind turns command flags into validated task requests.
package bind

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vulntor/volworker/pkg/outputfile"
	"github.com/vulntor/volworker/pkg/task"
)

// TaskOptions holds the flags shared by the run and submit commands.
type TaskOptions struct {
	Images       []string
	OutputDir    string
	OSGroup      string
	OutputFormat string
	YaraFile     string
	WorkflowID   string
	PipeResult   string
}

// AddTaskFlags registers the task flags on cmd.
func AddTaskFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringP("output-dir", "d", "", "Directory receiving plugin output (must exist)")
	flags.String("os-group", "", "OS group of plugins to run (win, lin, macos)")
	flags.String("format", "", "Plugin output format (txt, json, md)")
	flags.String("yara-rules", "", "File with Yara rules forwarded to the Yara scan plugin")
	flags.String("workflow-id", "", "Workflow identifier recorded in the result")
	flags.String("pipe-result", "", "Encoded result of a previous task whose outputs become the inputs")
}

// BindTaskOptions reads the task flags and the image arguments.
func BindTaskOptions(cmd *cobra.Command, args []string) (TaskOptions, error) {
	outputDir, _ := cmd.Flags().GetString("output-dir")
	osGroup, _ := cmd.Flags().GetString("os-group")
	format, _ := cmd.Flags().GetString("format")
	yaraFile, _ := cmd.Flags().GetString("yara-rules")
	workflowID, _ := cmd.Flags().GetString("workflow-id")
	pipeResult, _ := cmd.Flags().GetString("pipe-result")

	opts := TaskOptions{
		Images:       args,
		OutputDir:    strings.TrimSpace(outputDir),
		OSGroup:      strings.TrimSpace(osGroup),
		OutputFormat: strings.TrimSpace(format),
		YaraFile:     strings.TrimSpace(yaraFile),
		WorkflowID:   strings.TrimSpace(workflowID),
		PipeResult:   strings.TrimSpace(pipeResult),
	}

	if len(opts.Images) == 0 && opts.PipeResult == "" {
		return TaskOptions{}, task.WithErrorCode(task.ErrNoInputFiles, task.CodeNoInput)
	}
	return opts, nil
}

// Request builds the task request. Image paths are made absolute and the
// Yara rules file, when given, is read into the task config.
func (o TaskOptions) Request() (task.Request, error) {
	req := task.Request{
		PipeResult: o.PipeResult,
		OutputPath: o.OutputDir,
		WorkflowID: o.WorkflowID,
		TaskConfig: map[string]any{},
	}

	for _, image := range o.Images {
		f, err := outputfile.FromPath(image)
		if err != nil {
			return task.Request{}, task.WithErrorCode(fmt.Errorf("%w: image %s: %v", task.ErrNoInputFiles, image, err), task.CodeNoInput)
		}
		req.InputFiles = append(req.InputFiles, f)
	}

	if o.OSGroup != "" {
		req.TaskConfig[task.OptionOSGroup] = o.OSGroup
	}
	if o.OutputFormat != "" {
		req.TaskConfig[task.OptionOutputFormat] = o.OutputFormat
	}
	if o.YaraFile != "" {
		rules, err := os.ReadFile(o.YaraFile)
		if err != nil {
			return task.Request{}, task.WithErrorCode(fmt.Errorf("%w: yara rules: %v", task.ErrInvalidConfig, err), task.CodeInvalidConfig)
		}
		req.TaskConfig[task.OptionYaraRules] = string(rules)
	}
	return req, nil
}
