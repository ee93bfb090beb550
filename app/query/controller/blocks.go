package controller

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/parsec-labs/sidewatch/pkg/db"
	"github.com/parsec-labs/sidewatch/pkg/db/models"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

type rangeSpec struct {
	From  uint64
	To    uint64
	Limit int
}

func parseRangeSpec(r *http.Request) (rangeSpec, error) {
	qs := r.URL.Query()

	spec := rangeSpec{To: math.MaxUint64, Limit: defaultLimit}
	if v := qs.Get("from"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return rangeSpec{}, errors.New("invalid from")
		}
		spec.From = n
	}
	if v := qs.Get("to"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return rangeSpec{}, errors.New("invalid to")
		}
		spec.To = n
	}
	if spec.From > spec.To {
		return rangeSpec{}, errors.New("from is past to")
	}
	if v := qs.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return rangeSpec{}, errors.New("invalid limit")
		}
		spec.Limit = min(n, maxLimit)
	}
	return spec, nil
}

type blocksResponse struct {
	Data  []models.Block `json:"data"`
	Limit int            `json:"limit"`
}

func (c *Controller) HandleBlocks(w http.ResponseWriter, r *http.Request) {
	spec, err := parseRangeSpec(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rows, err := c.App.Store.QueryBlocks(r.Context(), spec.From, spec.To, spec.Limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if rows == nil {
		rows = []models.Block{}
	}

	writeJSON(w, http.StatusOK, blocksResponse{Data: rows, Limit: spec.Limit})
}

// HandleBlockByHeight returns a single block by height.
// Returns 404 if block not found, 400 for invalid parameters.
func (c *Controller) HandleBlockByHeight(w http.ResponseWriter, r *http.Request) {
	heightStr := mux.Vars(r)["height"]
	height, err := strconv.ParseUint(heightStr, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid height")
		return
	}

	block, err := c.App.Store.GetBlock(r.Context(), height)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, "block not synced")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	writeJSON(w, http.StatusOK, block)
}
