package handler

import (
	"encoding/json"
	"net/http"

	"github.com/bioepi/snapdb/logger"
	"github.com/bioepi/snapdb/pkg/model"
	"go.uber.org/zap"
)

// AddSampleHandler ingests the variant calls of one sample.
// POST /api/v1/sample
func (dbctx *DBContext) AddSampleHandler(w http.ResponseWriter, r *http.Request) {

	var doc model.VariantsDocument
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeError(w, &model.ValidationError{Msg: "malformed JSON body: " + err.Error()})
		return
	}

	sample, err := model.AddSample(r.Context(), dbctx.DB, &doc)
	if err != nil {
		writeError(w, err)
		return
	}

	logger.Info("Sample ingested",
		zap.String("sample", sample.Name),
		zap.Int64("id", sample.ID))
	writeJSON(w, http.StatusCreated, sample)
}

// ClusterSampleHandler assigns an ingested sample to the hierarchy.
// POST /api/v1/sample/{name}/cluster?force_merge=&no_zscore=&dry_run=
func (dbctx *DBContext) ClusterSampleHandler(w http.ResponseWriter, r *http.Request) {

	name := r.PathValue("name")
	query := r.URL.Query()

	opts := model.AssignOptions{
		ForceMerge: query.Get("force_merge") == "true",
		NoZScore:   query.Get("no_zscore") == "true",
	}

	var res *model.AssignResult
	var err error
	if query.Get("dry_run") == "true" {
		res, err = dbctx.Clusterer.EvaluateSample(r.Context(), name, opts)
	} else {
		res, err = dbctx.Clusterer.ClusterSample(r.Context(), name, opts)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// RemoveSampleHandler reverses a sample's clustering effects.
// DELETE /api/v1/sample/{name}?ignore_only=true
func (dbctx *DBContext) RemoveSampleHandler(w http.ResponseWriter, r *http.Request) {

	name := r.PathValue("name")

	mode := model.RemoveFully
	if r.URL.Query().Get("ignore_only") == "true" {
		mode = model.RemoveIgnoreOnly
	}

	if err := dbctx.Clusterer.RemoveSample(r.Context(), name, mode); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"removed": name})
}

// AddReferenceHandler registers the reference contigs and ignore
// positions. POST /api/v1/reference
func (dbctx *DBContext) AddReferenceHandler(w http.ResponseWriter, r *http.Request) {

	var req struct {
		Name    string            `json:"name"`
		Contigs []model.ContigDef `json:"contigs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &model.ValidationError{Msg: "malformed JSON body: " + err.Error()})
		return
	}

	sample, err := model.AddReference(r.Context(), dbctx.DB, req.Name, req.Contigs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sample)
}
