package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/cv-autofill/internal/common"
	"github.com/joseph-ayodele/cv-autofill/internal/feedback"
)

const jsonBodyLimit = 1 << 20

func itoa(n int) string { return strconv.Itoa(n) }

type recordedResponse struct {
	Success bool      `json:"success"`
	ID      uuid.UUID `json:"id,omitempty"`
}

type batchResponse struct {
	Success  bool `json:"success"`
	Recorded int  `json:"recorded"`
	Total    int  `json:"total"`
}

type fieldPair struct {
	Label string `json:"label"`
	Field string `json:"field"`
}

type aliasPair struct {
	Alias string `json:"alias"`
	Skill string `json:"skill"`
}

// POST /api/v1/corrections
func (s *Server) handleCorrection(w http.ResponseWriter, r *http.Request) {
	op, err := operatorFrom(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var in feedback.CorrectionInput
	if err := decode(w, r, jsonBodyLimit, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.feedback.ValidateCorrection(in); err != nil {
		s.writeError(w, r, err)
		return
	}
	id, ok := s.feedback.RecordCorrection(r.Context(), op, in)
	if !ok {
		s.writeError(w, r, common.NewAppError(common.CodePersistenceFailed, "record correction", nil))
		return
	}
	writeJSON(w, http.StatusCreated, recordedResponse{Success: true, ID: id})
}

// POST /api/v1/corrections/batch
func (s *Server) handleCorrectionBatch(w http.ResponseWriter, r *http.Request) {
	op, err := operatorFrom(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var in []feedback.CorrectionInput
	if err := decode(w, r, jsonBodyLimit, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	n := s.feedback.BatchRecordCorrections(r.Context(), op, in)
	writeJSON(w, http.StatusOK, batchResponse{Success: n == len(in), Recorded: n, Total: len(in)})
}

// POST /api/v1/segments/assignments
func (s *Server) handleAssignment(w http.ResponseWriter, r *http.Request) {
	op, err := operatorFrom(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var in feedback.SegmentAssignmentInput
	if err := decode(w, r, jsonBodyLimit, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	id, ok := s.feedback.RecordSegmentAssignment(r.Context(), op, in)
	if !ok {
		s.writeError(w, r, common.NewAppError(common.CodeInvalidPayload, "assignment rejected", nil))
		return
	}
	writeJSON(w, http.StatusCreated, recordedResponse{Success: true, ID: id})
}

// POST /api/v1/segments/suggestions
func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	op, err := operatorFrom(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var seg feedback.Segment
	if err := decode(w, r, jsonBodyLimit, &seg); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.feedback.SuggestionsForUnmapped(r.Context(), s.feedback.Tenant(op), seg))
}

// POST /api/v1/segments/assignments/{id}/use
func (s *Server) handleSuggestionUsed(w http.ResponseWriter, r *http.Request) {
	op, err := operatorFrom(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, common.NewAppError(common.CodeInvalidPayload, "id must be a UUID", err))
		return
	}
	if !s.feedback.MarkSuggestionUsed(r.Context(), op, id) {
		s.writeError(w, r, common.NewAppError(common.CodeNotFound, "assignment not found", common.ErrNotFound))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/v1/metrics/fields
func (s *Server) handleFieldMetrics(w http.ResponseWriter, r *http.Request) {
	op, err := operatorFrom(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.feedback.FieldAccuracies(r.Context(), s.feedback.Tenant(op)))
}

// GET /api/v1/metrics/problematic
func (s *Server) handleProblematic(w http.ResponseWriter, r *http.Request) {
	op, err := operatorFrom(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.feedback.ProblematicFields(r.Context(), s.feedback.Tenant(op)))
}

// POST /api/v1/dictionary/synonyms
func (s *Server) handleSynonym(w http.ResponseWriter, r *http.Request) {
	op, _ := common.OperatorFromContext(r.Context())
	var in fieldPair
	if err := decode(w, r, jsonBodyLimit, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.feedback.AddFieldSynonym(r.Context(), op, in.Label, in.Field); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/v1/dictionary/aliases
func (s *Server) handleAlias(w http.ResponseWriter, r *http.Request) {
	op, _ := common.OperatorFromContext(r.Context())
	var in aliasPair
	if err := decode(w, r, jsonBodyLimit, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.feedback.AddSkillAlias(r.Context(), op, in.Alias, in.Skill); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/v1/dictionary/import with a YAML body
func (s *Server) handleDictionaryImport(w http.ResponseWriter, r *http.Request) {
	op, _ := common.OperatorFromContext(r.Context())
	res, err := s.feedback.ImportDictionary(r.Context(), op, http.MaxBytesReader(w, r.Body, jsonBodyLimit))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
