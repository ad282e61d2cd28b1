package appctx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vulntor/volworker/pkg/config"
	"github.com/vulntor/volworker/pkg/output"
)

func TestConfig(t *testing.T) {
	manager := config.NewManager()

	tests := map[string]struct {
		ctx context.Context
		ok  bool
	}{
		"stored":      {ctx: WithConfig(context.Background(), manager), ok: true},
		"missing":     {ctx: context.Background()},
		"nil manager": {ctx: WithConfig(context.Background(), nil)},
		"wrong type":  {ctx: context.WithValue(context.Background(), configKey, "nope")},
		"stored under output key": {
			ctx: context.WithValue(context.Background(), outputKey, manager),
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got, ok := Config(tt.ctx)
			require.Equal(t, tt.ok, ok)
			if tt.ok {
				require.Same(t, manager, got)
			}
		})
	}
}

func TestOutput(t *testing.T) {
	out := output.NewDefaultOutput(output.NewOutputEventStream())

	got, ok := Output(WithOutput(context.Background(), out))
	require.True(t, ok)
	require.Same(t, out, got)

	_, ok = Output(context.Background())
	require.False(t, ok)

	_, ok = Output(WithOutput(context.Background(), nil))
	require.False(t, ok)
}

func TestServicesCoexist(t *testing.T) {
	manager := config.NewManager()
	out := output.NewDefaultOutput(output.NewOutputEventStream())
	ctx := WithOutput(WithConfig(context.Background(), manager), out)

	gotCfg, ok := Config(ctx)
	require.True(t, ok)
	require.Same(t, manager, gotCfg)

	gotOut, ok := Output(ctx)
	require.True(t, ok)
	require.Same(t, out, gotOut)
}
