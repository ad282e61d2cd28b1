package commands

import (
	"github.com/spf13/cobra"

	"github.com/vulntor/volworker/cmd/volworker/internal/format"
	"github.com/vulntor/volworker/pkg/appctx"
	"github.com/vulntor/volworker/pkg/output"
	"github.com/vulntor/volworker/pkg/output/subscribers"
)

// setupOutputPipeline creates the live output pipeline based on CLI flags.
//
//   - --output=json: JSON lines on stderr, so stdout keeps the final result
//   - --output=table: lipgloss progress lines on stdout
//   - -v/-vv/-vvv: diagnostic lines on stderr (table mode only)
func setupOutputPipeline(cmd *cobra.Command) output.Output {
	stream := output.NewOutputEventStream()
	f := format.FromCommand(cmd)
	verbosityCount, _ := cmd.Flags().GetCount("verbosity")
	quiet, _ := cmd.Flags().GetBool("quiet")

	if f.Mode() == format.ModeJSON {
		stream.Subscribe(subscribers.NewJSONSubscriber(cmd.ErrOrStderr()))
		return output.NewDefaultOutput(stream)
	}

	if !quiet {
		stream.Subscribe(subscribers.NewHumanSubscriber(cmd.OutOrStdout(), cmd.ErrOrStderr(), f.Color()))
	}
	if verbosityCount > 0 {
		level := output.OutputLevel(min(verbosityCount, int(output.LevelTrace)))
		stream.Subscribe(subscribers.NewDiagnosticSubscriber(level, cmd.ErrOrStderr(), f.Color()))
	}
	return output.NewDefaultOutput(stream)
}

// outputFrom returns the pipeline stored by the root command, or a silent one.
func outputFrom(cmd *cobra.Command) output.Output {
	if out, ok := appctx.Output(cmd.Context()); ok {
		return out
	}
	return output.NewDefaultOutput(output.NewOutputEventStream())
}
