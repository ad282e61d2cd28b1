package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vulntor/volworker/cmd/volworker/internal/bind"
	"github.com/vulntor/volworker/cmd/volworker/internal/format"
	"github.com/vulntor/volworker/pkg/jobs"
	"github.com/vulntor/volworker/pkg/logging"
	"github.com/vulntor/volworker/pkg/output"
	"github.com/vulntor/volworker/pkg/task"
)

const stopTimeout = 5 * time.Second

func newSubmitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "submit [images...]",
		GroupID: "task",
		Short:   "Enqueue a volatility job on the Redis queue",
		Long: `Enqueue a volatility job for a worker consuming the Redis queue.

Image and output paths must be valid on the worker host. The connection URL
comes from --worker.redis_url or REDIS_URL.`,
		Example: `  volworker submit -d /cases/42 /cases/42/memory.raw
  volworker submit --wait --timeout 30m -d /cases/42 /cases/42/memory.raw`,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := format.FromCommand(cmd)
			fail := func(err error) error {
				_ = formatter.PrintFailure("submit job", err, task.ErrorCode(err), task.Suggestions(err))
				return err
			}

			opts, err := bind.BindTaskOptions(cmd, args)
			if err != nil {
				return fail(err)
			}
			if opts.OutputDir == "" {
				return fail(task.WithErrorCode(fmt.Errorf("%w: --output-dir is required", task.ErrInvalidConfig), task.CodeInvalidConfig))
			}
			req, err := opts.Request()
			if err != nil {
				return fail(err)
			}
			job, err := task.NewJob(req)
			if err != nil {
				return fail(err)
			}

			cfg, err := configFrom(cmd)
			if err != nil {
				return fail(err)
			}
			if cfg.Worker.RedisURL == "" {
				return fail(task.WithErrorCode(fmt.Errorf("%w: no Redis URL (set REDIS_URL or --worker.redis_url)", task.ErrInvalidConfig), task.CodeInvalidConfig))
			}

			mgr, err := jobs.NewRedisManager(jobs.RedisOptionsFromConfig(cfg.Worker), nil, logging.Component("submit"))
			if err != nil {
				return fail(err)
			}
			defer func() {
				stopCtx, cancel := context.WithTimeout(context.WithoutCancel(cmd.Context()), stopTimeout)
				defer cancel()
				_ = mgr.Stop(stopCtx)
			}()

			ctx := cmd.Context()
			if err := mgr.Ping(ctx); err != nil {
				return fail(err)
			}
			id, err := mgr.Submit(ctx, job)
			if err != nil {
				return fail(err)
			}

			wait, _ := cmd.Flags().GetBool("wait")
			if !wait {
				if formatter.Mode() == format.ModeJSON {
					return formatter.PrintJSON(map[string]string{"id": id, "state": string(jobs.StateQueued)})
				}
				_, err := fmt.Fprintln(cmd.OutOrStdout(), id)
				return err
			}

			timeout, _ := cmd.Flags().GetDuration("timeout")
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			res, err := waitForJob(ctx, mgr, id, outputFrom(cmd))
			if err != nil {
				return fail(err)
			}
			return printResult(formatter, res)
		},
	}

	bind.AddTaskFlags(cmd)
	cmd.Flags().Bool("wait", false, "Wait for the job and print its result")
	cmd.Flags().Duration("timeout", 0, "Give up waiting after this long (0 waits forever)")
	cmd.Flags().String("worker.redis_url", "", "Redis connection URL (default: $REDIS_URL)")
	cmd.Flags().String("worker.queue_name", "volworker:tasks", "Redis list consumed by the worker")

	return cmd
}

// waitForJob follows job id until it finishes, forwarding progress to out.
func waitForJob(ctx context.Context, mgr *jobs.RedisManager, id string, out output.Output) (*task.Result, error) {
	var last output.ProgressData
	rec, err := mgr.Watch(ctx, id, func(rec jobs.Record) {
		if len(rec.Progress) == 0 {
			return
		}
		var p task.Progress
		if err := json.Unmarshal(rec.Progress, &p); err != nil {
			return
		}
		data := output.ProgressData{Image: p.Image, Total: p.Total, Completed: p.Completed, Failed: p.Failed}
		if data == last {
			return
		}
		last = data
		out.Progress(data)
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("job %s still %s: %w", id, rec.State, err)
		}
		return nil, err
	}

	if rec.State == jobs.StateFailed {
		code := rec.ErrorCode
		if code == "" {
			code = task.CodeFailure
		}
		return nil, task.WithErrorCode(fmt.Errorf("job %s failed: %s", id, rec.Error), code)
	}

	var res task.Result
	if err := json.Unmarshal(rec.Result, &res); err != nil {
		return nil, fmt.Errorf("decode job result: %w", err)
	}
	return &res, nil
}
