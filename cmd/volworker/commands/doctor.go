package commands

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/spf13/cobra"

	"github.com/vulntor/volworker/cmd/volworker/internal/format"
	"github.com/vulntor/volworker/pkg/config"
	"github.com/vulntor/volworker/pkg/jobs"
	"github.com/vulntor/volworker/pkg/logging"
	"github.com/vulntor/volworker/pkg/volatility"
)

const doctorTimeout = 30 * time.Second

var (
	lookPath  = exec.LookPath
	newRunner = func(timeout time.Duration) volatility.Runner { return volatility.NewExecRunner(timeout) }
)

// ErrDoctorFailed is returned when at least one check fails.
var ErrDoctorFailed = errors.New("environment checks failed")

type check struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail"`
}

func newDoctorCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "doctor",
		GroupID: "core",
		Short:   "Check the vol binary, its version and the queue connection",
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := format.FromCommand(cmd)
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}

			checks := runChecks(cmd.Context(), cfg)

			failed := 0
			rows := make([][]string, 0, len(checks))
			for _, c := range checks {
				status := "ok"
				if !c.OK {
					status = "FAIL"
					failed++
				}
				rows = append(rows, []string{c.Name, status, c.Detail})
			}
			if err := formatter.PrintTable([]string{"check", "status", "detail"}, rows); err != nil {
				return err
			}

			if failed > 0 {
				return fmt.Errorf("%w: %d of %d", ErrDoctorFailed, failed, len(checks))
			}
			return formatter.PrintSummary("✓ All checks passed")
		},
	}
	return cmd
}

func runChecks(ctx context.Context, cfg config.Config) []check {
	var checks []check

	binary := cfg.Volatility.Binary
	path, err := lookPath(binary)
	if err != nil {
		checks = append(checks, check{Name: "vol binary", Detail: err.Error()})
	} else {
		checks = append(checks, check{Name: "vol binary", OK: true, Detail: path})

		vctx, cancel := context.WithTimeout(ctx, doctorTimeout)
		v, err := volatility.DetectVersion(vctx, newRunner(doctorTimeout), path)
		cancel()
		switch {
		case err != nil:
			checks = append(checks, check{Name: "vol version", Detail: err.Error()})
		default:
			if err := volatility.CheckVersion(v, cfg.Volatility.MinVersion); err != nil {
				checks = append(checks, check{Name: "vol version", Detail: err.Error()})
			} else {
				checks = append(checks, check{Name: "vol version", OK: true, Detail: v.String()})
			}
		}
	}

	if catalog, err := volatility.LoadCatalog(cfg.Volatility.CatalogFile); err != nil {
		checks = append(checks, check{Name: "plugin catalog", Detail: err.Error()})
	} else {
		checks = append(checks, check{Name: "plugin catalog", OK: true, Detail: fmt.Sprintf("%d groups", len(catalog))})
	}

	if cfg.Worker.Queue == "redis" || cfg.Worker.RedisURL != "" {
		checks = append(checks, redisCheck(ctx, cfg.Worker))
	}
	return checks
}

func redisCheck(ctx context.Context, cfg config.WorkerConfig) check {
	opts := jobs.RedisOptionsFromConfig(cfg)
	opts.Retry = jobs.NoRetry()
	mgr, err := jobs.NewRedisManager(opts, nil, logging.Component("doctor"))
	if err != nil {
		return check{Name: "redis", Detail: err.Error()}
	}
	defer func() { _ = mgr.Stop(context.WithoutCancel(ctx)) }()

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := mgr.Ping(pctx); err != nil {
		return check{Name: "redis", Detail: err.Error()}
	}
	status, err := mgr.Status(pctx)
	if err != nil {
		return check{Name: "redis", Detail: err.Error()}
	}
	return check{Name: "redis", OK: true, Detail: fmt.Sprintf("queue %s depth %d", opts.QueueName, status.QueueDepth)}
}
