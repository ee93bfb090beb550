package controller

import (
	"net/http"
	"time"

	"github.com/parsec-labs/sidewatch/pkg/timing"
)

type progressResponse struct {
	LastSyncedBlock uint64 `json:"last_synced_block"`
	Synced          bool   `json:"synced_any"`
	State           string `json:"state"`
}

func (c *Controller) progress(r *http.Request) (progressResponse, error) {
	height, ok, err := c.App.Store.LastSynced(r.Context())
	if err != nil {
		return progressResponse{}, err
	}
	return progressResponse{
		LastSyncedBlock: height,
		Synced:          ok,
		State:           c.App.Daemon.State().String(),
	}, nil
}

// HandleProgress responds with the current sync cursor and daemon phase.
func (c *Controller) HandleProgress(w http.ResponseWriter, r *http.Request) {
	resp, err := c.progress(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type epochView struct {
	Epoch    uint64  `json:"epoch"`
	Slot     uint64  `json:"slot"`
	Progress float64 `json:"progress"`
}

type statusResponse struct {
	Network   string    `json:"network"`
	Mainchain epochView `json:"mainchain"`
	Sidechain epochView `json:"sidechain"`
	// SidechainEpochInMainchain is which of the nested sidechain epochs the
	// chain is currently in, derived from mainchain progress.
	SidechainEpochInMainchain uint64 `json:"sidechain_epoch_in_mainchain"`
}

// HandleStatus reports both epoch clocks as the node sees them, plus the
// derived nested-epoch position.
func (c *Controller) HandleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := c.App.Node.Status(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "node unavailable")
		return
	}

	now := time.Now()
	preset := c.App.Preset
	mainProgress := timing.LiveProgress(status.Mainchain.NextEpochTimestamp, now, preset.MainchainEpoch)
	sideProgress := timing.LiveProgress(status.Sidechain.NextEpochTimestamp, now, preset.SidechainEpoch)
	sidechainIdx, _ := preset.Progress(mainProgress)

	writeJSON(w, http.StatusOK, statusResponse{
		Network: preset.Name,
		Mainchain: epochView{
			Epoch:    status.Mainchain.Epoch,
			Slot:     status.Mainchain.Slot,
			Progress: mainProgress,
		},
		Sidechain: epochView{
			Epoch:    status.Sidechain.Epoch,
			Slot:     status.Sidechain.Slot,
			Progress: sideProgress,
		},
		SidechainEpochInMainchain: sidechainIdx,
	})
}
