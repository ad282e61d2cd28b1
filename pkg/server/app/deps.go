package app

import (
	"github.com/rs/zerolog"

	"github.com/vulntor/volworker/pkg/inbox"
	"github.com/vulntor/volworker/pkg/jobs"
	"github.com/vulntor/volworker/pkg/task"
	"github.com/vulntor/volworker/pkg/volatility"
)

// Deps holds dependencies for the worker application.
type Deps struct {
	// Jobs runs submitted tasks. Required.
	Jobs jobs.Manager

	// Inbox watches a drop directory for new images. Optional.
	Inbox *inbox.Watcher

	// Catalog is exposed through the plugins endpoint.
	Catalog volatility.Catalog

	// TaskDefaults validate submitted task options.
	TaskDefaults task.Options

	// Logger for structured logging (injected by caller)
	Logger zerolog.Logger
}
