// Package api holds the shared dependencies and response helpers of the
// HTTP job API.
package api

import (
	"sync/atomic"

	"github.com/vulntor/volworker/pkg/jobs"
	"github.com/vulntor/volworker/pkg/task"
	"github.com/vulntor/volworker/pkg/volatility"
)

// Deps holds dependencies for API handlers.
// This pattern enables dependency injection and easier testing.
type Deps struct {
	// Jobs queues and tracks task runs.
	Jobs jobs.Manager

	// Catalog lists the plugins per OS group.
	Catalog volatility.Catalog

	// TaskDefaults are the option defaults applied to submitted jobs.
	TaskDefaults task.Options

	// Ready flag for readiness check
	Ready *atomic.Bool

	// Config holds handler-level settings.
	Config Config
}

// SubmitJobResponse is returned for an accepted job.
type SubmitJobResponse struct {
	ID        string `json:"id"`
	StatusURL string `json:"status_url"`
}

// ReadinessResponse is the /readyz body.
type ReadinessResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

// PluginGroup describes the plugins of one OS group.
type PluginGroup struct {
	OSGroup    volatility.OSGroup  `json:"os_group"`
	Plugins    []volatility.Plugin `json:"plugins"`
	YaraPlugin string              `json:"yara_plugin,omitempty"`
}
