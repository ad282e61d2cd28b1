package httpx

import (
	"net/http"

	"github.com/vulntor/volworker/pkg/server/api"
	v1 "github.com/vulntor/volworker/pkg/server/api/v1"
)

// NewRouter creates and configures the main HTTP router.
//
// Health endpoints are always mounted for liveness/readiness checks. Job
// endpoints need a job manager in deps.
func NewRouter(deps *api.Deps) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", HealthzHandler)
	mux.HandleFunc("GET /readyz", v1.ReadyzHandler(deps.Ready))

	mux.HandleFunc("GET /api/v1/metadata", v1.MetadataHandler())
	mux.HandleFunc("GET /api/v1/plugins", v1.PluginsHandler(deps))

	if deps.Jobs != nil {
		mux.HandleFunc("POST /api/v1/jobs", v1.SubmitJobHandler(deps))
		mux.HandleFunc("GET /api/v1/jobs/{id}", v1.GetJobHandler(deps))
		mux.HandleFunc("GET /api/v1/status", v1.StatusHandler(deps))
	}

	return mux
}

// HealthzHandler responds with 200 OK if the process is alive.
// It does not check dependencies; use /readyz for that.
func HealthzHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
