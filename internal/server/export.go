package server

import (
	"net/http"
	"time"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// GET /api/v1/export/feedback.xlsx
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	op, err := operatorFrom(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	tenant := s.feedback.Tenant(op)
	xlsx, err := s.export.ExportFeedbackXLSX(r.Context(), tenant)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	name := "feedback-" + tenant + "-" + time.Now().UTC().Format("20060102") + ".xlsx"
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(xlsx)
}
