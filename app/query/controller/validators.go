package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/parsec-labs/sidewatch/pkg/db"
	"github.com/parsec-labs/sidewatch/pkg/db/models"
)

func (c *Controller) HandleValidators(w http.ResponseWriter, r *http.Request) {
	validators, err := c.App.Store.ListValidators(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	// ours=true narrows to the operator's own validators.
	if r.URL.Query().Get("ours") == "true" {
		filtered := validators[:0]
		for _, v := range validators {
			if v.IsOurs {
				filtered = append(filtered, v)
			}
		}
		validators = filtered
	}
	if validators == nil {
		validators = []models.Validator{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": validators})
}

func (c *Controller) HandleCommittee(w http.ResponseWriter, r *http.Request) {
	epochStr := mux.Vars(r)["epoch"]
	epoch, err := strconv.ParseUint(epochStr, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid epoch")
		return
	}

	snapshot, err := c.App.Store.GetCommittee(r.Context(), epoch)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, "committee not captured")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	writeJSON(w, http.StatusOK, snapshot)
}
