package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vulntor/volworker/cmd/volworker/internal/format"
	"github.com/vulntor/volworker/pkg/config"
	"github.com/vulntor/volworker/pkg/inbox"
	"github.com/vulntor/volworker/pkg/jobs"
	"github.com/vulntor/volworker/pkg/logging"
	"github.com/vulntor/volworker/pkg/server/app"
	"github.com/vulntor/volworker/pkg/task"
	"github.com/vulntor/volworker/pkg/workspace"
)

// newWorkerCommand creates the 'volworker worker' command.
//
// The worker hosts, in a single runtime:
//   - the job manager (in-memory or Redis queue consumer)
//   - the HTTP health and job API (unless --server.enabled=false)
//   - the inbox watcher, when an inbox directory is configured
//
// It runs until interrupted and drains in-flight jobs on shutdown.
func newWorkerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "worker",
		GroupID: "core",
		Short:   "Consume volatility jobs from a queue",
		Example: `  volworker worker
  REDIS_URL=redis://localhost:6379/0 volworker worker --worker.queue redis --worker.concurrency 2
  volworker worker --inbox --server.port 9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := format.FromCommand(cmd)
			fail := func(err error) error {
				_ = formatter.PrintFailure("start worker", err, task.ErrorCode(err), task.Suggestions(err))
				return err
			}

			cfg, err := configFrom(cmd)
			if err != nil {
				return fail(err)
			}
			useInbox, _ := cmd.Flags().GetBool("inbox")

			deps, err := buildWorkerDeps(cmd, cfg, useInbox)
			if err != nil {
				return fail(err)
			}

			worker, err := app.New(cfg.Server, deps)
			if err != nil {
				return fail(err)
			}
			if err := worker.Run(cmd.Context()); err != nil {
				return fail(err)
			}
			return nil
		},
	}

	config.BindWorkerFlags(cmd.Flags())
	config.BindServerFlags(cmd.Flags())
	cmd.Flags().Bool("inbox", false, "Watch the workspace inbox/ directory when --worker.inbox_dir is unset")

	return cmd
}

func buildWorkerDeps(cmd *cobra.Command, cfg config.Config, useInbox bool) (*app.Deps, error) {
	logger := logging.Component("worker")

	t, err := newTask(cfg, logger)
	if err != nil {
		return nil, task.WithErrorCode(fmt.Errorf("%w: %v", task.ErrInvalidConfig, err), task.CodeInvalidConfig)
	}

	handlers := jobs.Handlers{task.Name: task.NewJobHandler(t)}
	mgr, err := jobs.NewManager(cfg.Worker, handlers, logger)
	if err != nil {
		return nil, task.WithErrorCode(fmt.Errorf("%w: %v", task.ErrInvalidConfig, err), task.CodeInvalidConfig)
	}

	deps := &app.Deps{
		Jobs:         mgr,
		Catalog:      t.Catalog(),
		TaskDefaults: t.Defaults(),
		Logger:       logger,
	}

	inboxDir := cfg.Worker.InboxDir
	if inboxDir == "" && useInbox {
		inboxDir = workspace.Path(cmd.Context(), workspace.InboxDir)
		if inboxDir == "" {
			return nil, task.WithErrorCode(fmt.Errorf("%w: --inbox needs a workspace", task.ErrInvalidConfig), task.CodeInvalidConfig)
		}
	}
	if inboxDir != "" {
		outputRoot := cfg.Worker.OutputRoot
		if outputRoot == "" {
			outputRoot = workspace.Path(cmd.Context(), workspace.OutputsDir)
		}
		w, err := inbox.New(inboxDir, outputRoot, mgr, logger)
		if err != nil {
			return nil, task.WithErrorCode(fmt.Errorf("%w: %v", task.ErrInvalidConfig, err), task.CodeInvalidConfig)
		}
		deps.Inbox = w
	}

	return deps, nil
}
