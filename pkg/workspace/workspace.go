package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vulntor/volworker/pkg/paths"
)

// EnvVar names the workspace root when --workspace-dir is not given.
const EnvVar = "VOLWORKER_WORKSPACE"

// Subdirectories of a prepared workspace. The worker watches InboxDir when
// started with --inbox; run and the inbox write task outputs below OutputsDir.
const (
	InboxDir   = "inbox"
	OutputsDir = "outputs"
	LogsDir    = "logs"
)

var layout = [...]string{InboxDir, OutputsDir, LogsDir}

var dataDir = paths.DataDir

// Prepare creates root and its subdirectories and checks that the worker can
// write there. An empty root resolves to $VOLWORKER_WORKSPACE, then the data
// directory. The absolute root is returned.
func Prepare(root string) (string, error) {
	if root == "" {
		root = os.Getenv(EnvVar)
	}
	if root == "" {
		root = dataDir()
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve workspace %s: %w", root, err)
	}

	for _, dir := range append([]string{abs}, subdirs(abs)...) {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return "", fmt.Errorf("create workspace directory: %w", err)
		}
	}

	probe, err := os.CreateTemp(abs, ".write-probe-*")
	if err != nil {
		return "", fmt.Errorf("workspace %s is not writable: %w", abs, err)
	}
	probe.Close()
	_ = os.Remove(probe.Name())

	return abs, nil
}

func subdirs(root string) []string {
	out := make([]string, 0, len(layout))
	for _, sub := range layout {
		out = append(out, filepath.Join(root, sub))
	}
	return out
}

type rootKey struct{}

// WithContext records a prepared workspace root on ctx.
func WithContext(ctx context.Context, root string) context.Context {
	return context.WithValue(ctx, rootKey{}, root)
}

// FromContext returns the workspace root stored by WithContext.
func FromContext(ctx context.Context) (string, bool) {
	root, ok := ctx.Value(rootKey{}).(string)
	return root, ok && root != ""
}

// Path joins sub onto the workspace root in ctx, or returns "" when the
// command runs with --no-workspace.
func Path(ctx context.Context, sub string) string {
	root, ok := FromContext(ctx)
	if !ok {
		return ""
	}
	return filepath.Join(root, sub)
}
