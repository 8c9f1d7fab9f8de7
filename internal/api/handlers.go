package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"gomix/domain/allocation"
	"gomix/domain/core"
	"gomix/domain/model"
	"gomix/internal/allocator"
	"gomix/internal/pipeline"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// runResponse summarizes a run: the manifest plus per-region model IDs.
type runResponse struct {
	Manifest pipeline.RunManifest `json:"manifest"`
	Regions  []runRegionSummary   `json:"regions"`
}

type runRegionSummary struct {
	Region           core.RegionCode `json:"region"`
	ModelID          core.ModelID    `json:"model_id,omitempty"`
	Converged        bool            `json:"converged,omitempty"`
	ResidualVariance float64         `json:"residual_variance,omitempty"`
	Warnings         []model.Warning `json:"warnings,omitempty"`
	Error            string          `json:"error,omitempty"`
}

// handleRun fits one model per region and persists the results.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req pipeline.RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid run request: "+err.Error())
		return
	}
	req = s.withEngineDefaults(req)

	result, err := s.runner.Run(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := runResponse{Manifest: result.Manifest}
	for _, region := range result.Regions {
		summary := runRegionSummary{Region: region.Region, Error: region.Err}
		if region.Model != nil {
			if err := s.models.Save(r.Context(), region.Model); err != nil {
				s.log.Error("failed to persist model for region %s: %v", region.Region, err)
				writeError(w, http.StatusInternalServerError, "failed to persist models")
				return
			}
			summary.ModelID = region.Model.ID
			summary.Converged = region.Model.Converged
			summary.ResidualVariance = region.Model.ResidualVariance
			summary.Warnings = region.Model.Warnings
		}
		resp.Regions = append(resp.Regions, summary)
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListRunModels(w http.ResponseWriter, r *http.Request) {
	runID := core.RunID(chi.URLParam(r, "runID"))
	models, err := s.models.ListByRun(r.Context(), runID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models)
}

func (s *Server) handleGetModel(w http.ResponseWriter, r *http.Request) {
	m, ok := s.fetchModel(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleModelReport(w http.ResponseWriter, r *http.Request) {
	m, ok := s.fetchModel(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(s.reporter.RenderHTML(m))
}

// optimizeRequest carries constraints and optional search settings.
type optimizeRequest struct {
	Constraints allocation.Constraints `json:"constraints"`
	Config      allocator.Config       `json:"config"`
}

// handleOptimize searches for an allocation against a stored model. A
// non-converged search still returns the best-found plan, labeled as
// such; the caller decides whether to accept it.
func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	m, ok := s.fetchModel(w, r)
	if !ok {
		return
	}

	var req optimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid optimize request: "+err.Error())
		return
	}

	plan, err := s.optimizer.Optimize(r.Context(), m, req.Constraints, s.withSearchDefaults(req.Config))
	if err != nil && !core.IsNonConvergence(err) {
		writeDomainError(w, err)
		return
	}
	if err := s.plans.Save(r.Context(), plan); err != nil {
		s.log.Error("failed to persist plan %s: %v", plan.ID, err)
		writeError(w, http.StatusInternalServerError, "failed to persist plan")
		return
	}
	writeJSON(w, http.StatusCreated, plan)
}

func (s *Server) handleListModelPlans(w http.ResponseWriter, r *http.Request) {
	modelID := core.ModelID(chi.URLParam(r, "modelID"))
	plans, err := s.plans.ListByModel(r.Context(), modelID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, plans)
}

func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	p, ok := s.fetchPlan(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleExportPlan streams the plan as an xlsx workbook.
func (s *Server) handleExportPlan(w http.ResponseWriter, r *http.Request) {
	p, ok := s.fetchPlan(w, r)
	if !ok {
		return
	}
	m, err := s.models.Get(r.Context(), p.ModelID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	workbook, err := s.exporter.Export(m, p)
	if err != nil {
		s.log.Error("failed to export plan %s: %v", p.ID, err)
		writeError(w, http.StatusInternalServerError, "failed to export plan")
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="allocation_plan.xlsx"`)
	w.WriteHeader(http.StatusOK)
	w.Write(workbook)
}

func (s *Server) fetchModel(w http.ResponseWriter, r *http.Request) (*model.FittedModel, bool) {
	id, err := core.ParseModelID(chi.URLParam(r, "modelID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	m, err := s.models.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return nil, false
	}
	return m, true
}

func (s *Server) fetchPlan(w http.ResponseWriter, r *http.Request) (*allocation.AllocationPlan, bool) {
	id, err := core.ParsePlanID(chi.URLParam(r, "planID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	p, err := s.plans.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return nil, false
	}
	return p, true
}

// writeDomainError maps domain error kinds to HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case core.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error())
	case core.IsInfeasible(err):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case core.IsInvalidParameter(err), core.IsInvalidInput(err), core.IsAlignmentError(err):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
