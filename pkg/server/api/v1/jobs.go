package v1

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vulntor/volworker/pkg/server/api"
	"github.com/vulntor/volworker/pkg/task"
)

// SubmitJobHandler handles POST /api/v1/jobs.
//
// The body is validated and the task options are checked against the plugin
// catalog before the job is queued, so configuration errors surface as 400
// instead of as a failed job.
func SubmitJobHandler(deps *api.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := deps.Config.RequestContext(r)
		defer cancel()

		var body SubmitJobRequest
		dec := json.NewDecoder(deps.Config.Body(w, r))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&body); err != nil {
			api.WriteJSONError(w, http.StatusBadRequest, "Invalid Input", "malformed JSON body: "+err.Error())
			return
		}

		req, err := body.ToRequest()
		if err != nil {
			var verr *ValidationError
			if errors.As(err, &verr) {
				api.WriteJSONError(w, http.StatusBadRequest, "Invalid Input", verr.Error())
				return
			}
			api.WriteError(w, r, err)
			return
		}

		if _, err := task.ParseOptions(req.TaskConfig, deps.TaskDefaults, deps.Catalog); err != nil {
			api.WriteError(w, r, err)
			return
		}

		job, err := task.NewJob(req)
		if err != nil {
			api.WriteError(w, r, err)
			return
		}
		id, err := deps.Jobs.Submit(ctx, job)
		if err != nil {
			api.WriteError(w, r, err)
			return
		}

		api.WriteJSON(w, http.StatusAccepted, api.SubmitJobResponse{
			ID:        id,
			StatusURL: "/api/v1/jobs/" + id,
		})
	}
}

// GetJobHandler handles GET /api/v1/jobs/{id}.
func GetJobHandler(deps *api.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := deps.Config.RequestContext(r)
		defer cancel()

		rec, err := deps.Jobs.Get(ctx, r.PathValue("id"))
		if err != nil {
			api.WriteError(w, r, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, rec)
	}
}

// StatusHandler handles GET /api/v1/status.
func StatusHandler(deps *api.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := deps.Config.RequestContext(r)
		defer cancel()

		status, err := deps.Jobs.Status(ctx)
		if err != nil {
			api.WriteError(w, r, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, status)
	}
}

// MetadataHandler handles GET /api/v1/metadata.
func MetadataHandler() http.HandlerFunc {
	md := task.DefaultMetadata()
	return func(w http.ResponseWriter, r *http.Request) {
		api.WriteJSON(w, http.StatusOK, md)
	}
}

// PluginsHandler handles GET /api/v1/plugins.
func PluginsHandler(deps *api.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		groups := make([]api.PluginGroup, 0, len(deps.Catalog))
		for _, name := range deps.Catalog.Groups() {
			g := deps.Catalog[name]
			groups = append(groups, api.PluginGroup{
				OSGroup:    name,
				Plugins:    g.Plugins,
				YaraPlugin: g.YaraPlugin,
			})
		}
		api.WriteJSON(w, http.StatusOK, groups)
	}
}
