package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/joseph-ayodele/cv-autofill/internal/common"
)

// Failure is the body of every non-2xx JSON response.
type Failure struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func statusFor(ae *common.AppError) int {
	switch ae.Code {
	case common.CodeNotFound:
		return http.StatusNotFound
	case common.CodeUnauthorized:
		return http.StatusUnauthorized
	case common.CodeFileTooLarge:
		return http.StatusRequestEntityTooLarge
	case common.CodeUnsupportedType:
		return http.StatusUnsupportedMediaType
	case common.CodeAlreadyConfirmed:
		return http.StatusConflict
	}
	switch ae.Kind() {
	case common.KindValidation:
		return http.StatusBadRequest
	case common.KindAdmission:
		return http.StatusTooManyRequests
	case common.KindAcquisition, common.KindExtraction:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func retryAfterSeconds(d time.Duration) int {
	return int((d + time.Second - 1) / time.Second)
}

// writeError answers with a localized message. Raw causes only go to the log.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	ae := common.AsAppError(err)
	status := statusFor(ae)
	if status >= http.StatusInternalServerError {
		s.logger.Error("http.request.failed", zap.String("path", r.URL.Path), zap.String("code", ae.Code), zap.Error(err))
	} else {
		s.logger.Debug("http.request.rejected", zap.String("path", r.URL.Path), zap.String("code", ae.Code), zap.Error(err))
	}
	if ae.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(ae.RetryAfter)))
	}
	writeJSON(w, status, Failure{
		Success: false,
		Code:    ae.Code,
		Message: common.UserMessage(ae.Code, common.LocaleFromContext(r.Context())),
	})
}

// decode reads a JSON body of at most limit bytes into v.
func decode(w http.ResponseWriter, r *http.Request, limit int64, v any) error {
	body := http.MaxBytesReader(w, r.Body, limit)
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return common.NewAppError(common.CodeFileTooLarge, "request body too large", err)
		}
		if errors.Is(err, io.EOF) {
			return common.NewAppError(common.CodeInvalidPayload, "empty body", err)
		}
		return common.NewAppError(common.CodeInvalidPayload, "malformed JSON", err)
	}
	return nil
}

func operatorFrom(r *http.Request) (common.Operator, error) {
	op, _ := common.OperatorFromContext(r.Context())
	if op.UserID == "" {
		return op, common.NewAppError(common.CodeUnauthorized, "missing "+HeaderUserID, common.ErrUnauthorized)
	}
	return op, nil
}
