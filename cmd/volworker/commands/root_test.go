package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/vulntor/volworker/pkg/config"
	"github.com/vulntor/volworker/pkg/jobs"
	"github.com/vulntor/volworker/pkg/task"
	"github.com/vulntor/volworker/pkg/version"
	"github.com/vulntor/volworker/pkg/volatility"
)

// fakeVol writes a line per plugin and drops a process dump for windows.pslist.
type fakeVol struct {
	fail map[string]bool
}

func (f *fakeVol) Run(_ context.Context, argv []string, stdout io.Writer) error {
	if len(argv) > 1 && argv[1] == "-h" {
		_, err := io.WriteString(stdout, "Volatility 3 Framework 2.7.0\nusage: vol ...")
		return err
	}
	outDir := argv[2]
	plugin := argv[len(argv)-1]
	for i, a := range argv {
		if a == "-f" && i+2 < len(argv) {
			plugin = argv[i+2]
		}
	}
	if f.fail[plugin] {
		return &volatility.ExitError{ExitCode: 1, Stderr: "boom"}
	}
	if plugin == "windows.pslist" {
		if err := os.WriteFile(filepath.Join(outDir, "pid.4.dmp"), []byte("dump"), 0o600); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(stdout, "output of %s\n", plugin)
	return err
}

func useFakeTask(t *testing.T, runner volatility.Runner) {
	t.Helper()
	old := newTask
	newTask = func(cfg config.Config, logger zerolog.Logger) (*task.Task, error) {
		return task.New(volatility.DefaultCatalog(), runner, task.Settings{
			Binary:       cfg.Volatility.Binary,
			ArtifactGlob: cfg.Volatility.ArtifactGlob,
			Defaults: task.Options{
				OSGroup:      volatility.OSGroup(cfg.Task.OSGroup),
				OutputFormat: cfg.Task.OutputFormat,
			},
		}, logger), nil
	}
	t.Cleanup(func() { newTask = old })
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cmd := NewCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--workspace-dir", t.TempDir(), "--no-color"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeImage(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("memory"), 0o600))
	return path
}

func TestRootCommandPreparesWorkspaceAndRunsVersion(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	ws := filepath.Join(t.TempDir(), "ws")

	cmd := NewCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"--workspace-dir", ws, "version", "--short"})
	require.NoError(t, cmd.Execute())

	require.Equal(t, version.Get().Version+"\n", buf.String())
	for _, sub := range []string{"inbox", "outputs", "logs"} {
		require.DirExists(t, filepath.Join(ws, sub))
	}
}

func TestVersionJSON(t *testing.T) {
	stdout, _, err := execute(t, "version", "-o", "json")
	require.NoError(t, err)

	var info version.BuildInfo
	require.NoError(t, json.Unmarshal([]byte(stdout), &info))
	require.Equal(t, version.Get().Version, info.Version)
}

func TestInvalidConfigFileFails(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte("task:\n  output_format: pdf\n"), 0o600))

	_, _, err := execute(t, "--config", file, "version")
	require.Error(t, err)
	require.Contains(t, err.Error(), "load configuration")
}

func TestMissingExplicitConfigFileFails(t *testing.T) {
	_, _, err := execute(t, "--config", filepath.Join(t.TempDir(), "absent.yaml"), "version")
	require.Error(t, err)
	require.Contains(t, err.Error(), "does not exist")
}

func TestUnknownOutputModeFails(t *testing.T) {
	_, _, err := execute(t, "-o", "yaml", "version")
	require.ErrorContains(t, err, "invalid output mode")
}

func TestPluginsCommand(t *testing.T) {
	stdout, _, err := execute(t, "plugins", "-o", "json")
	require.NoError(t, err)

	var rows []map[string]string
	require.NoError(t, json.Unmarshal([]byte(stdout), &rows))
	// lin 3+yara, macos 3, win 3+yara
	require.Len(t, rows, 11)
	require.Equal(t, "lin", rows[0]["group"])

	stdout, _, err = execute(t, "plugins", "--os-group", "win")
	require.NoError(t, err)
	require.Contains(t, stdout, "windows.pslist")
	require.Contains(t, stdout, "--dump")
	require.Contains(t, stdout, "windows.vadyarascan.VadYaraScan")
	require.NotContains(t, stdout, "linux.bash")

	_, stderr, err := execute(t, "plugins", "--os-group", "bsd")
	require.ErrorIs(t, err, volatility.ErrUnknownOSGroup)
	require.Equal(t, 2, task.ExitCode(err))
	require.Contains(t, stderr, "Failed to list plugins")
}

func TestMetadataCommand(t *testing.T) {
	stdout, _, err := execute(t, "metadata")
	require.NoError(t, err)
	var meta task.Metadata
	require.NoError(t, json.Unmarshal([]byte(stdout), &meta))
	require.Equal(t, task.DefaultMetadata(), meta)

	stdout, _, err = execute(t, "metadata", "--format", "yaml")
	require.NoError(t, err)
	var fromYAML task.Metadata
	require.NoError(t, yaml.Unmarshal([]byte(stdout), &fromYAML))
	require.Equal(t, task.Name, fromYAML.Name)
	require.Len(t, fromYAML.Config, 3)

	_, _, err = execute(t, "metadata", "--format", "xml")
	require.ErrorIs(t, err, task.ErrInvalidConfig)
}

func TestRunCommand_JSON(t *testing.T) {
	useFakeTask(t, &fakeVol{})
	dir := t.TempDir()
	image := writeImage(t, dir, "mem.raw")
	out := t.TempDir()

	stdout, stderr, err := execute(t, "run", "-o", "json", "-d", out, "--workflow-id", "wf-7", image)
	require.NoError(t, err)

	var res task.Result
	require.NoError(t, json.Unmarshal([]byte(stdout), &res))
	require.Equal(t, "wf-7", res.WorkflowID)
	require.Equal(t, 3, res.Meta.PluginsCompleted)
	// 3 plugin outputs, the report and one artifact
	require.Len(t, res.OutputFiles, 5)
	for _, f := range res.OutputFiles {
		require.Equal(t, out, filepath.Dir(f.Path))
	}

	// progress went to stderr as JSON lines
	require.Contains(t, stderr, `"type":"progress"`)
}

func TestRunCommand_TableWithFailure(t *testing.T) {
	useFakeTask(t, &fakeVol{fail: map[string]bool{"windows.pstree": true}})
	image := writeImage(t, t.TempDir(), "mem.raw")
	out := t.TempDir()

	stdout, _, err := execute(t, "run", "-d", out, image)
	require.NoError(t, err)
	require.Contains(t, stdout, "mem.raw_windows.info.txt")
	require.Contains(t, stdout, "mem.raw-volatility-report.md")
	require.Contains(t, stdout, "Plugins completed: 2")
	require.Contains(t, stdout, "Plugins failed:    1")
	require.Contains(t, stdout, "- mem.raw windows.pstree:")
	require.Contains(t, stdout, "mem.raw [####################] 3/3 (1 failed)")
}

func TestRunCommand_DefaultsToWorkspaceOutputs(t *testing.T) {
	useFakeTask(t, &fakeVol{})
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	image := writeImage(t, t.TempDir(), "mem.lime")
	ws := t.TempDir()

	cmd := NewCommand()
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--workspace-dir", ws, "run", "-o", "json", "--os-group", "lin", image})
	require.NoError(t, cmd.Execute())

	var res task.Result
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &res))
	require.Equal(t, volatility.OSGroupLinux, res.Meta.OSGroup)
	require.NotEmpty(t, res.OutputFiles)
	require.True(t, strings.HasPrefix(res.OutputFiles[0].Path, filepath.Join(ws, "outputs", "run-")))
}

func TestRunCommand_Errors(t *testing.T) {
	useFakeTask(t, &fakeVol{})
	image := writeImage(t, t.TempDir(), "mem.raw")

	tests := []struct {
		name     string
		args     []string
		code     string
		exitCode int
	}{
		{"no images", []string{"run", "-d", t.TempDir()}, task.CodeNoInput, 2},
		{"missing image", []string{"run", "-d", t.TempDir(), filepath.Join(t.TempDir(), "nope.raw")}, task.CodeNoInput, 2},
		{"unknown group", []string{"run", "-d", t.TempDir(), "--os-group", "bsd", image}, task.CodeUnknownGroup, 2},
		{"bad format", []string{"run", "-d", t.TempDir(), "--format", "pdf", image}, task.CodeInvalidConfig, 2},
		{"missing output dir", []string{"run", "-d", filepath.Join(t.TempDir(), "missing"), image}, task.CodeInvalidConfig, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, stderr, err := execute(t, tt.args...)
			require.Error(t, err)
			require.Equal(t, tt.code, task.ErrorCode(err))
			require.Equal(t, tt.exitCode, task.ExitCode(err))
			require.Contains(t, stderr, "Failed to run volatility")
		})
	}
}

func TestRunCommand_NoWorkspaceNeedsOutputDir(t *testing.T) {
	useFakeTask(t, &fakeVol{})
	image := writeImage(t, t.TempDir(), "mem.raw")

	_, _, err := execute(t, "--no-workspace", "run", image)
	require.ErrorIs(t, err, task.ErrInvalidConfig)
}

func TestDoctorCommand(t *testing.T) {
	oldLook, oldRunner := lookPath, newRunner
	t.Cleanup(func() { lookPath, newRunner = oldLook, oldRunner })
	newRunner = func(time.Duration) volatility.Runner { return &fakeVol{} }

	t.Run("healthy", func(t *testing.T) {
		lookPath = func(string) (string, error) { return "/usr/bin/vol", nil }
		stdout, _, err := execute(t, "doctor")
		require.NoError(t, err)
		require.Contains(t, stdout, "/usr/bin/vol")
		require.Contains(t, stdout, "2.7.0")
		require.Contains(t, stdout, "All checks passed")
	})

	t.Run("version too old", func(t *testing.T) {
		lookPath = func(string) (string, error) { return "/usr/bin/vol", nil }
		file := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(file, []byte("volatility:\n  min_version: \">= 3.0.0\"\n"), 0o600))

		stdout, _, err := execute(t, "--config", file, "doctor")
		require.ErrorIs(t, err, ErrDoctorFailed)
		require.Contains(t, stdout, "FAIL")
	})

	t.Run("binary missing", func(t *testing.T) {
		lookPath = func(string) (string, error) { return "", errors.New("executable file not found") }
		stdout, _, err := execute(t, "doctor", "-o", "json")
		require.ErrorIs(t, err, ErrDoctorFailed)

		var rows []map[string]string
		require.NoError(t, json.Unmarshal([]byte(stdout), &rows))
		require.Equal(t, "vol binary", rows[0]["check"])
		require.Equal(t, "FAIL", rows[0]["status"])
	})

	t.Run("redis reachable", func(t *testing.T) {
		lookPath = func(string) (string, error) { return "/usr/bin/vol", nil }
		mr := miniredis.RunT(t)
		t.Setenv("REDIS_URL", "redis://"+mr.Addr())

		stdout, _, err := execute(t, "doctor")
		require.NoError(t, err)
		require.Contains(t, stdout, "queue volworker:tasks depth 0")
	})
}

func TestSubmitCommand(t *testing.T) {
	mr := miniredis.RunT(t)
	t.Setenv("REDIS_URL", "redis://"+mr.Addr())
	image := writeImage(t, t.TempDir(), "mem.raw")
	out := t.TempDir()

	stdout, _, err := execute(t, "submit", "-d", out, "--os-group", "lin", image)
	require.NoError(t, err)
	id := strings.TrimSpace(stdout)
	require.NotEmpty(t, id)

	queued, err := mr.List("volworker:tasks")
	require.NoError(t, err)
	require.Len(t, queued, 1)

	var job jobs.Job
	require.NoError(t, json.Unmarshal([]byte(queued[0]), &job))
	require.Equal(t, id, job.ID)
	require.Equal(t, task.Name, job.Type)

	var req task.Request
	require.NoError(t, json.Unmarshal(job.Payload, &req))
	require.Equal(t, out, req.OutputPath)
	require.Equal(t, image, req.InputFiles[0].Path)
	require.Equal(t, "lin", req.TaskConfig[task.OptionOSGroup])
}

func TestSubmitCommand_Wait(t *testing.T) {
	mr := miniredis.RunT(t)
	t.Setenv("REDIS_URL", "redis://"+mr.Addr())
	useFakeTask(t, &fakeVol{})

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := config.DefaultConfig()
	tk, err := newTask(cfg, zerolog.Nop())
	require.NoError(t, err)
	consumer := jobs.NewRedisManagerWithClient(client, jobs.RedisOptions{
		QueueName: "volworker:tasks",
		KeyPrefix: "volworker",
		ResultTTL: time.Minute,
	}, jobs.Handlers{task.Name: task.NewJobHandler(tk)}, zerolog.Nop())
	require.NoError(t, consumer.Start(context.Background()))
	t.Cleanup(func() { _ = consumer.Stop(context.Background()) })

	image := writeImage(t, t.TempDir(), "mem.raw")
	out := t.TempDir()

	stdout, _, err := execute(t, "submit", "--wait", "--timeout", "30s", "-o", "json", "-d", out, image)
	require.NoError(t, err)

	var res task.Result
	require.NoError(t, json.Unmarshal([]byte(stdout), &res))
	require.Equal(t, 3, res.Meta.PluginsCompleted)
	require.NotEmpty(t, res.WorkflowID)
}

func TestSubmitCommand_Errors(t *testing.T) {
	image := writeImage(t, t.TempDir(), "mem.raw")

	t.Setenv("REDIS_URL", "")
	_, _, err := execute(t, "submit", "-d", t.TempDir(), image)
	require.ErrorIs(t, err, task.ErrInvalidConfig)

	_, _, err = execute(t, "submit", image)
	require.ErrorIs(t, err, task.ErrInvalidConfig)
}
