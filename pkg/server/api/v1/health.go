package v1

import (
	"net/http"
	"sync/atomic"

	"github.com/vulntor/volworker/pkg/server/api"
	"github.com/vulntor/volworker/pkg/version"
)

// ReadyzHandler answers 200 while ready is set and 503 otherwise. The app
// sets it once the job manager and inbox watcher run and clears it when
// shutdown begins.
func ReadyzHandler(ready *atomic.Bool) http.HandlerFunc {
	build := version.Get().Version
	return func(w http.ResponseWriter, r *http.Request) {
		body := api.ReadinessResponse{Status: "ready", Version: build, Uptime: version.Uptime().String()}
		code := http.StatusOK
		if ready == nil || !ready.Load() {
			body.Status, code = "not_ready", http.StatusServiceUnavailable
		}
		api.WriteJSON(w, code, body)
	}
}
