package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/cv-autofill/internal/common"
	"github.com/joseph-ayodele/cv-autofill/internal/jobs"
)

// base64 inflates by 4/3; leave room for the JSON envelope
func (s *Server) uploadBodyLimit() int64 {
	mb := int64(s.cfg.MaxUploadMB)
	if mb <= 0 {
		mb = 10
	}
	return mb<<20*4/3 + 64<<10
}

func jobID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, common.NewAppError(common.CodeInvalidPayload, "id must be a UUID", err)
	}
	return id, nil
}

// POST /api/v1/jobs
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req jobs.SubmitRequest
	if err := decode(w, r, s.uploadBodyLimit(), &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	op, _ := common.OperatorFromContext(r.Context())
	resp := s.jobs.Submit(r.Context(), op, req)
	if !resp.Success {
		ae := common.NewAppError(resp.Code, resp.Message, nil)
		status := statusFor(ae)
		if resp.RetryAfterSeconds > 0 {
			w.Header().Set("Retry-After", itoa(resp.RetryAfterSeconds))
		}
		writeJSON(w, status, resp)
		return
	}
	writeJSON(w, http.StatusAccepted, resp)
}

// GET /api/v1/jobs/{id}
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	op, err := operatorFrom(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := jobID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	st, err := s.jobs.Status(r.Context(), op, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// POST /api/v1/jobs/{id}/confirm
func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	op, err := operatorFrom(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := jobID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req jobs.ConfirmRequest
	if err := decode(w, r, jsonBodyLimit, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.jobs.Confirm(r.Context(), op, id, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
