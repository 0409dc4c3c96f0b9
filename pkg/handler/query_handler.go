package handler

import (
	"net/http"
	"strconv"

	"github.com/bioepi/snapdb/pkg/model"
)

// GetSNPAddressHandler returns a sample's 7-level cluster address.
// GET /api/v1/sample/{name}/address
func (dbctx *DBContext) GetSNPAddressHandler(w http.ResponseWriter, r *http.Request) {

	name := r.PathValue("name")

	snad, err := model.GetSNPAddressByName(r.Context(), dbctx.DB, name)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sample":      name,
		"address":     snad,
		"snp_address": snad.String(),
	})
}

// GetClosestHandler returns the n nearest samples, ties included.
// GET /api/v1/sample/{name}/closest?n=10
func (dbctx *DBContext) GetClosestHandler(w http.ResponseWriter, r *http.Request) {

	name := r.PathValue("name")
	n := 1
	if raw := r.URL.Query().Get("n"); raw != "" {
		var err error
		if n, err = strconv.Atoi(raw); err != nil {
			writeError(w, &model.ValidationError{Msg: "n must be an integer"})
			return
		}
	}

	closest, err := model.GetClosest(r.Context(), dbctx.DB, name, n)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, closest)
}

// GetNearestHandler returns the single nearest sample.
// GET /api/v1/sample/{name}/nearest
func (dbctx *DBContext) GetNearestHandler(w http.ResponseWriter, r *http.Request) {

	nearest, err := model.GetNearest(r.Context(), dbctx.DB, r.PathValue("name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nearest)
}

// GetBelowThresholdHandler returns all samples within a distance.
// GET /api/v1/sample/{name}/below?distance=25
func (dbctx *DBContext) GetBelowThresholdHandler(w http.ResponseWriter, r *http.Request) {

	name := r.PathValue("name")
	dist, err := strconv.Atoi(r.URL.Query().Get("distance"))
	if err != nil {
		writeError(w, &model.ValidationError{Msg: "distance must be an integer"})
		return
	}

	within, err := model.GetSamplesBelowThreshold(r.Context(), dbctx.DB, name, dist)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, within)
}

// GetHistoryHandler returns a sample's rename audit trail.
// GET /api/v1/sample/{name}/history
func (dbctx *DBContext) GetHistoryHandler(w http.ResponseWriter, r *http.Request) {

	entries, err := model.GetSampleHistoryByName(r.Context(), dbctx.DB, r.PathValue("name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
