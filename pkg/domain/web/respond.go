package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/napryag/clinic_booking_bot/pkg/utils/errs"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// StatusFor maps an error kind to the HTTP status the API answers with.
func StatusFor(err error) int {
	switch errs.KindOf(err) {
	case errs.KindValidation, errs.KindUnavailable:
		return http.StatusUnprocessableEntity
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindConflict, errs.KindBusy:
		return http.StatusConflict
	case errs.KindUnsupported:
		return http.StatusNotImplemented
	case errs.KindTransport:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	msg := errs.Message(err)
	if status == http.StatusInternalServerError {
		h.logger.Error().Err(err).Msg("request failed")
		msg = "internal server error"
	} else {
		h.logger.Debug().Err(err).Int("status", status).Msg("request rejected")
	}
	writeJSON(w, status, errorBody{Error: msg})
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("http request")
	})
}
