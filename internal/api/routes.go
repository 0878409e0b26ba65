package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/markerlane/markerlane-agent/internal/review"
	"github.com/markerlane/markerlane-agent/internal/stash"
	"github.com/markerlane/markerlane-agent/internal/timeline"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(LoopbackGuard())
	r.Use(CORSAllowlist(cfg.AllowedOrigins...))

	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Tokens, cfg.Logger))

		r.Get("/status", statusHandler(cfg))
		r.Get("/tags", listTagsHandler(cfg))
		r.Get("/jobs", listJobsHandler(cfg))
		r.Get("/jobs/{id}", getJobHandler(cfg))

		r.Get("/scenes", listScenesHandler(cfg))
		r.Route("/scenes/{id}", func(r chi.Router) {
			r.Post("/sync", syncSceneHandler(cfg))
			r.Get("/timeline", timelineHandler(cfg))
			r.Post("/navigate", navigateHandler(cfg))
			r.Get("/readiness", readinessHandler(cfg))
			r.Post("/complete", completeHandler(cfg))
			r.Get("/history", historyHandler(cfg))
			r.Post("/export", exportHandler(cfg))
			r.Post("/markers", createMarkerHandler(cfg))
		})

		r.Route("/markers/{id}", func(r chi.Router) {
			r.Patch("/", updateMarkerHandler(cfg))
			r.Delete("/", deleteMarkerHandler(cfg))
			r.Post("/confirm", markerActionHandler(cfg, ReviewService.Confirm))
			r.Post("/reject", markerActionHandler(cfg, ReviewService.Reject))
			r.Post("/reset", markerActionHandler(cfg, ReviewService.Reset))
			r.Post("/duplicate", duplicateHandler(cfg))
			r.Post("/split", splitHandler(cfg))
		})
	})

	return r
}

// writeServiceError maps review and Stash errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	var reqErr *stash.RequestError
	var gqlErr *stash.GraphQLError

	switch {
	case errors.Is(err, review.ErrSceneNotFound), errors.Is(err, review.ErrMarkerNotFound):
		WriteError(w, http.StatusNotFound, err.Error(), "NOT_FOUND")
	case errors.Is(err, review.ErrInvalidMarker), errors.Is(err, review.ErrInvalidSplit):
		WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
	case errors.Is(err, review.ErrShotBoundary):
		WriteError(w, http.StatusConflict, err.Error(), "SHOT_BOUNDARY")
	case errors.Is(err, review.ErrSceneNotReady):
		WriteError(w, http.StatusConflict, err.Error(), "NOT_READY")
	case errors.Is(err, review.ErrTagNotConfigured):
		WriteError(w, http.StatusConflict, err.Error(), "TAG_NOT_CONFIGURED")
	case errors.As(err, &reqErr), errors.As(err, &gqlErr):
		WriteError(w, http.StatusBadGateway, err.Error(), "STASH_ERROR")
	default:
		WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
	}
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:   "ok",
			Version:  cfg.Version,
			UptimeS:  uptime,
			DeviceID: cfg.DeviceID,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		scenes, _ := cfg.Service.ListScenes(ctx)
		pending, _ := cfg.Service.PendingReviewCount(ctx)
		jobs, _ := cfg.Service.ListJobs(ctx, 20)

		state := "idle"
		var activeJob *JobResponse
		jobsRunning, jobsPending := 0, 0
		lastError := ""

		runnerActive := cfg.Runner != nil && cfg.Runner.IsRunning()
		if cfg.Runner != nil && cfg.Runner.IsPaused() {
			state = "paused"
		}

		for _, j := range jobs {
			switch j.Status {
			case review.JobStatusRunning:
				state = "syncing"
				resp := JobToResponse(j)
				activeJob = &resp
				jobsRunning++
			case review.JobStatusPending:
				jobsPending++
			case review.JobStatusFailed:
				if lastError == "" {
					lastError = j.Error
				}
			}
		}

		if lastError != "" && state == "idle" {
			state = "error"
		}

		resp := StatusResponse{
			State:         state,
			LastError:     lastError,
			ScenesCount:   len(scenes),
			PendingReview: pending,
			RunnerActive:  runnerActive,
			JobsRunning:   jobsRunning,
			JobsPending:   jobsPending,
			ActiveJob:     activeJob,
		}

		if cfg.Probe != nil {
			if h, ok := cfg.Probe.Peek(); ok {
				resp.Stash = HealthToResponse(h)
			}
		}

		WriteJSON(w, http.StatusOK, resp)
	}
}

func listScenesHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scenes, err := cfg.Service.ListScenes(r.Context())
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list scenes", "INTERNAL_ERROR")
			return
		}

		resp := ScenesResponse{Scenes: make([]SceneResponse, len(scenes))}
		for i, s := range scenes {
			resp.Scenes[i] = SceneToResponse(s)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func listTagsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tags, err := cfg.Service.ListTags(r.Context())
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list tags", "INTERNAL_ERROR")
			return
		}
		if tags == nil {
			tags = []*review.Tag{}
		}
		WriteJSON(w, http.StatusOK, TagsResponse{Tags: tags})
	}
}

// syncSceneHandler pulls the scene from Stash inline, or queues a job when
// async=true.
func syncSceneHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		if queryBool(r, "async") {
			job, err := cfg.Service.QueueSync(r.Context(), id)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			WriteJSON(w, http.StatusAccepted, QueuedResponse{JobID: job.ID})
			return
		}

		scene, err := cfg.Service.SyncScene(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, SceneToResponse(scene))
	}
}

func timelineHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		filter, err := parseFilter(splitCSV(q.Get("status")), q.Get("q"))
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		t := 0.0
		if raw := q.Get("t"); raw != "" {
			t, err = strconv.ParseFloat(raw, 64)
			if err != nil {
				WriteError(w, http.StatusBadRequest, "t must be a number", "BAD_REQUEST")
				return
			}
		}

		tl, err := cfg.Service.Timeline(r.Context(), chi.URLParam(r, "id"), filter)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, TimelineToResponse(tl, q.Get("selected"), t))
	}
}

func navigateHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req NavigateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		move, ok := timeline.ParseMove(req.Move)
		if !ok {
			WriteError(w, http.StatusBadRequest, "unknown move "+strconv.Quote(req.Move), "BAD_REQUEST")
			return
		}
		filter, err := parseFilter(req.Status, req.Query)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		res, err := cfg.Service.Navigate(r.Context(), chi.URLParam(r, "id"), filter, timeline.Request{
			Move:        move,
			SelectedID:  req.SelectedID,
			CurrentTime: req.CurrentTime,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, res)
	}
}

func readinessHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rd, err := cfg.Service.Readiness(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, rd)
	}
}

func completeHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		if queryBool(r, "async") {
			job, err := cfg.Service.QueueComplete(r.Context(), id)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			WriteJSON(w, http.StatusAccepted, QueuedResponse{JobID: job.ID})
			return
		}

		res, err := cfg.Service.CompleteScene(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, res)
	}
}

func historyHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				WriteError(w, http.StatusBadRequest, "limit must be a non-negative integer", "BAD_REQUEST")
				return
			}
			limit = n
		}

		scene, err := cfg.Service.GetScene(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if scene == nil {
			WriteError(w, http.StatusNotFound, "scene not found", "NOT_FOUND")
			return
		}

		events, err := cfg.Service.History(r.Context(), id, limit)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		resp := HistoryResponse{SceneID: id, Events: make([]EventResponse, len(events))}
		for i, e := range events {
			resp.Events[i] = EventToResponse(e)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func createMarkerHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req review.NewMarker
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		m, err := cfg.Service.CreateManual(r.Context(), chi.URLParam(r, "id"), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, m)
	}
}

func updateMarkerHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var patch review.MarkerPatch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		m, err := cfg.Service.UpdateMarker(r.Context(), chi.URLParam(r, "id"), patch)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, m)
	}
}

func deleteMarkerHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.Service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type markerAction func(ReviewService, context.Context, string) (*review.Marker, error)

// markerActionHandler serves the single-marker status moves.
func markerActionHandler(cfg ServerConfig, action markerAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, err := action(cfg.Service, r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, m)
	}
}

func duplicateHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, err := cfg.Service.Duplicate(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, m)
	}
}

func splitHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SplitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.At == nil {
			WriteError(w, http.StatusBadRequest, "at is required", "BAD_REQUEST")
			return
		}

		first, second, err := cfg.Service.Split(r.Context(), chi.URLParam(r, "id"), *req.At)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, SplitResponse{First: first, Second: second})
	}
}

func listJobsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobs, err := cfg.Service.ListJobs(r.Context(), 50)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list jobs", "INTERNAL_ERROR")
			return
		}

		resp := JobsResponse{Jobs: make([]JobResponse, len(jobs))}
		for i, j := range jobs {
			resp.Jobs[i] = JobToResponse(j)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getJobHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			WriteError(w, http.StatusBadRequest, "job id required", "BAD_REQUEST")
			return
		}

		job, err := cfg.Service.GetJob(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if job == nil {
			WriteError(w, http.StatusNotFound, "job not found", "NOT_FOUND")
			return
		}

		WriteJSON(w, http.StatusOK, JobToResponse(job))
	}
}

func parseFilter(statuses []string, query string) (timeline.Filter, error) {
	f := timeline.Filter{Query: query}
	for _, raw := range statuses {
		st, ok := timeline.ParseStatus(raw)
		if !ok {
			return f, errors.New("unknown status " + strconv.Quote(raw))
		}
		f.Statuses = append(f.Statuses, st)
	}
	return f, nil
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func queryBool(r *http.Request, key string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(key))
	return err == nil && v
}
