package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/markerlane/markerlane-agent/internal/export"
	"github.com/markerlane/markerlane-agent/internal/timeline"
)

// exportHandler writes the approved markers of a scene to an EDL file in
// the requested directory.
func exportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req export.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		if err := export.ValidateOutputDir(req.OutputDir); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		tl, err := cfg.Service.Timeline(r.Context(), chi.URLParam(r, "id"), timeline.Filter{})
		if err != nil {
			writeServiceError(w, err)
			return
		}

		clips, skipped := export.ClipsFromLayout(tl.Layout, tl.Scene.Path, req.Lanes)

		resp, err := export.WriteEDL(req, clips, skipped, tl.Scene.FrameRate, tl.Scene.Title)
		switch {
		case errors.Is(err, export.ErrNoClips):
			WriteError(w, http.StatusUnprocessableEntity, err.Error(), "NO_CLIPS")
			return
		case err != nil:
			if cfg.Logger != nil {
				cfg.Logger.Error("export failed", "scene_id", tl.Scene.ID, "error", err)
			}
			WriteError(w, http.StatusInternalServerError, "failed to write export file", "INTERNAL_ERROR")
			return
		}

		WriteJSON(w, http.StatusOK, resp)
	}
}
