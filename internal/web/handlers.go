package web

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/emiliopalmerini/splitlab/internal/domain"
)

type variantPayload struct {
	ID        string            `json:"id"`
	Weight    float64           `json:"weight"`
	IsControl bool              `json:"is_control"`
	Config    map[string]string `json:"config,omitempty"`
}

type experimentPayload struct {
	ID                    string           `json:"id"`
	Name                  string           `json:"name"`
	Variants              []variantPayload `json:"variants"`
	Status                string           `json:"status"`
	TargetSampleSize      int64            `json:"target_sample_size,omitempty"`
	SignificanceThreshold float64          `json:"significance_threshold,omitempty"`
	Metrics               []string         `json:"metrics"`
	StartedAt             string           `json:"started_at,omitempty"`
	EndedAt               string           `json:"ended_at,omitempty"`
	CreatedAt             string           `json:"created_at,omitempty"`
}

func experimentToPayload(exp domain.Experiment) experimentPayload {
	p := experimentPayload{
		ID:                    exp.ID,
		Name:                  exp.Name,
		Status:                string(exp.Status),
		TargetSampleSize:      exp.TargetSampleSize,
		SignificanceThreshold: exp.SignificanceThreshold,
		Metrics:               exp.Metrics,
	}
	for _, v := range exp.Variants {
		p.Variants = append(p.Variants, variantPayload{
			ID:        v.ID,
			Weight:    v.Weight,
			IsControl: v.IsControl,
			Config:    v.Config,
		})
	}
	if !exp.StartedAt.IsZero() {
		p.StartedAt = exp.StartedAt.Format(time.RFC3339)
	}
	if exp.EndedAt != nil {
		p.EndedAt = exp.EndedAt.Format(time.RFC3339)
	}
	if !exp.CreatedAt.IsZero() {
		p.CreatedAt = exp.CreatedAt.Format(time.RFC3339)
	}
	return p
}

func (s *Server) handleRegisterExperiment(w http.ResponseWriter, r *http.Request) {
	var req experimentPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body")
		return
	}

	exp := &domain.Experiment{
		ID:                    req.ID,
		Name:                  req.Name,
		TargetSampleSize:      req.TargetSampleSize,
		SignificanceThreshold: req.SignificanceThreshold,
		Metrics:               req.Metrics,
	}
	if exp.ID == "" {
		exp.ID = uuid.NewString()
	}
	for _, v := range req.Variants {
		exp.Variants = append(exp.Variants, domain.Variant{
			ID:        v.ID,
			Weight:    v.Weight,
			IsControl: v.IsControl,
			Config:    v.Config,
		})
	}

	if err := s.engine.RegisterExperiment(r.Context(), exp); err != nil {
		if domain.IsValidation(err) {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, experimentToPayload(*exp))
}

func (s *Server) handleListExperiments(w http.ResponseWriter, r *http.Request) {
	exps := s.engine.ListExperiments()
	payloads := make([]experimentPayload, 0, len(exps))
	for _, exp := range exps {
		payloads = append(payloads, experimentToPayload(exp))
	}
	writeJSON(w, http.StatusOK, payloads)
}

func (s *Server) handleGetExperiment(w http.ResponseWriter, r *http.Request) {
	exp, err := s.engine.GetExperiment(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, experimentToPayload(exp))
}

func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body")
		return
	}
	status, err := domain.ParseStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	err = s.engine.SetExperimentStatus(r.Context(), r.PathValue("id"), status)
	switch {
	case err == nil:
		exp, _ := s.engine.GetExperiment(r.PathValue("id"))
		writeJSON(w, http.StatusOK, experimentToPayload(exp))
	case domain.IsNotFound(err):
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case domain.IsInvalidTransition(err):
		writeError(w, http.StatusConflict, "INVALID_TRANSITION", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
	}
}

func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SubjectID    string `json:"subject_id"`
		ExperimentID string `json:"experiment_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SubjectID == "" || req.ExperimentID == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "subject_id and experiment_id are required")
		return
	}

	assignment, variant, ok := s.engine.GetAssignment(r.Context(), req.SubjectID, req.ExperimentID)
	if !ok {
		// NoAssignment: the caller takes its default path.
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := map[string]any{
		"subject_id":    assignment.SubjectID,
		"experiment_id": assignment.ExperimentID,
		"variant_id":    assignment.VariantID,
	}
	if variant != nil {
		resp["config"] = variant.Config
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SubjectID    string   `json:"subject_id"`
		ExperimentID string   `json:"experiment_id"`
		Metric       string   `json:"metric"`
		Value        *float64 `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		// Fire-and-forget: even a bad body is only logged.
		log.Printf("web: unparseable conversion call: %v", err)
		w.WriteHeader(http.StatusAccepted)
		return
	}

	value := 1.0
	if req.Value != nil {
		value = *req.Value
	}
	s.engine.TrackConversion(r.Context(), req.SubjectID, req.ExperimentID, req.Metric, value)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	results, err := s.engine.GetResults(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
		return
	}
	exp, _ := s.engine.GetExperiment(id)

	out := make([]map[string]any, 0, len(results))
	for _, res := range results {
		entry := map[string]any{
			"variant_id":      res.VariantID,
			"is_control":      res.IsControl,
			"participants":    res.Participants,
			"conversions":     res.Conversions,
			"conversion_rate": res.ConversionRate,
			"confidence":      res.Confidence,
			"is_significant":  res.IsSignificant,
			"bayes": map[string]any{
				"expected_rate": res.Bayes.ExpectedRate,
				"variance":      res.Bayes.Variance,
				"credible_low":  res.Bayes.CredibleLow,
				"credible_high": res.Bayes.CredibleHigh,
			},
			"probability_best": res.ProbabilityBest,
		}
		if res.Lift != nil {
			entry["lift"] = *res.Lift
		}
		if exp.TargetSampleSize > 0 {
			entry["target_progress"] = float64(res.Participants) / float64(exp.TargetSampleSize)
		}
		out = append(out, entry)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleFlags(w http.ResponseWriter, r *http.Request) {
	if s.flagStore != nil {
		flags, err := s.flagStore.ListFlags(r.Context(), r.URL.Query().Get("experiment_id"), 100)
		if err == nil {
			writeJSON(w, http.StatusOK, flagPayloads(flags))
			return
		}
		log.Printf("web: flag store read failed, falling back to ring: %v", err)
	}

	flags := s.flags.Recent()
	if want := r.URL.Query().Get("experiment_id"); want != "" {
		filtered := flags[:0]
		for _, f := range flags {
			if f.ExperimentID == want {
				filtered = append(filtered, f)
			}
		}
		flags = filtered
	}
	writeJSON(w, http.StatusOK, flagPayloads(flags))
}

func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ignored_conversions": s.engine.IgnoredConversions(),
	})
}

func flagPayloads(flags []domain.UnderperformingFlag) []map[string]any {
	out := make([]map[string]any, 0, len(flags))
	for _, f := range flags {
		out = append(out, map[string]any{
			"id":            f.ID,
			"experiment_id": f.ExperimentID,
			"variant_id":    f.VariantID,
			"confidence":    f.Confidence,
			"lift":          f.Lift,
			"control_rate":  f.ControlRate,
			"variant_rate":  f.VariantRate,
			"raised_at":     f.RaisedAt.Format(time.RFC3339),
		})
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"code": code, "error": message})
}
