package api

import (
	"errors"
	"net/http"

	"github.com/wansing/editorial/core"
)

type errorBody struct {
	Message string      `json:"message"`
	Code    string      `json:"code"`
	Reason  core.Reason `json:"reason,omitempty"`
}

// Status maps an engine error to an HTTP status code and an error code.
func Status(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, "NotFound"
	case errors.Is(err, core.ErrInvalidTransition):
		return http.StatusBadRequest, "InvalidTransition"
	case errors.Is(err, core.ErrPreconditionFailed):
		return http.StatusBadRequest, "PreconditionFailed"
	case errors.Is(err, core.ErrInvalidInput):
		return http.StatusBadRequest, "InvalidInput"
	case errors.Is(err, core.ErrUnauthorized):
		return http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, core.ErrForbidden):
		return http.StatusForbidden, "Forbidden"
	case errors.Is(err, core.ErrConflict):
		return http.StatusConflict, "Conflict"
	case errors.Is(err, core.ErrUnavailable):
		return http.StatusServiceUnavailable, "Unavailable"
	default:
		return http.StatusInternalServerError, "Internal"
	}
}

// writeError logs unexpected errors and hides their message from the client.
func (srv *Server) writeError(w http.ResponseWriter, req *http.Request, err error) {
	status, code := Status(err)
	var body = errorBody{
		Message: err.Error(),
		Code:    code,
		Reason:  core.ReasonOf(err),
	}
	switch {
	case status == http.StatusInternalServerError:
		srv.Logger.Error("request failed", "method", req.Method, "path", req.URL.Path, "err", err)
		body.Message = "internal server error"
	case status == http.StatusServiceUnavailable:
		srv.Logger.Warn("repository unavailable", "method", req.Method, "path", req.URL.Path, "err", err)
		w.Header().Set("Retry-After", "1")
	default:
		srv.Logger.Debug("request rejected", "method", req.Method, "path", req.URL.Path, "status", status, "err", err)
	}
	writeJSON(w, status, body)
}
