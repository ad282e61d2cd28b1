// Package appctx carries the services a command shares with its
// subcommands: the loaded configuration and the output pipeline.
package appctx

import (
	"context"

	"github.com/vulntor/volworker/pkg/config"
	"github.com/vulntor/volworker/pkg/output"
)

type key int

const (
	configKey key = iota
	outputKey
)

func WithConfig(ctx context.Context, manager *config.Manager) context.Context {
	return context.WithValue(ctx, configKey, manager)
}

// Config returns the manager stored by WithConfig. A nil manager counts as
// missing.
func Config(ctx context.Context) (*config.Manager, bool) {
	mgr, _ := lookup[*config.Manager](ctx, configKey)
	return mgr, mgr != nil
}

func WithOutput(ctx context.Context, out output.Output) context.Context {
	return context.WithValue(ctx, outputKey, out)
}

// Output returns the pipeline stored by WithOutput.
func Output(ctx context.Context) (output.Output, bool) {
	out, _ := lookup[output.Output](ctx, outputKey)
	return out, out != nil
}

func lookup[T any](ctx context.Context, k key) (T, bool) {
	v, ok := ctx.Value(k).(T)
	return v, ok
}
