package controller

import (
	"encoding/json"
	"net/http"
)

// HandleResync rewinds the sync cursor so blocks from the given height are
// fetched and re-attributed. Auth is enforced by RequireAdmin on the route.
func (c *Controller) HandleResync(w http.ResponseWriter, r *http.Request) {
	var in struct {
		From uint64 `json:"from"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}

	if err := c.App.Daemon.RequestResync(in.From); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"resync_from": in.From})
}
