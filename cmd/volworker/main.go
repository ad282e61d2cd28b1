package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/vulntor/volworker/cmd/volworker/commands"
	"github.com/vulntor/volworker/pkg/logging"
	"github.com/vulntor/volworker/pkg/task"
)

// Exit codes:
//   - 0: Success
//   - 1: General error, plugin execution failure
//   - 2: Invalid usage or input (no images, unknown OS group, bad options)
//   - 3: Output directory locked by another task
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := commands.NewCommand().ExecuteContext(ctx)
	stop()
	_ = logging.Close()
	if err != nil {
		os.Exit(task.ExitCode(err))
	}
}
