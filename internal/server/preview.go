package server

import (
	"encoding/json"
	"io"
	"net/http"

	"example/merch-display/internal/layout"
	"example/merch-display/internal/models"
)

type previewRequest struct {
	Base    *models.Settings  `json:"base"`
	Actions []json.RawMessage `json:"actions"`
}

type previewResult struct {
	State    layout.EditorState `json:"state"`
	Params   layout.Params      `json:"params"`
	Settings models.Settings    `json:"settings"`
}

// previewSettings folds editor actions over the base settings without
// saving anything
func (a *App) previewSettings(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(&req); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "invalid preview body")
		return
	}
	actions, err := layout.DecodeActions(req.Actions)
	if err != nil {
		WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	base := a.Settings.Get()
	if req.Base != nil {
		base = *req.Base
	}
	state := layout.ReduceAll(layout.EditorStateFrom(base), actions...)
	writeJSON(w, http.StatusOK, models.Envelope[previewResult]{Payload: previewResult{
		State:    state,
		Params:   state.Preview(base),
		Settings: state.Update(base),
	}})
}
