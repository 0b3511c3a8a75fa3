// Package middleware provides HTTP middleware for the storefront API.
package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/dukerupert/cloudmerce/internal/domain"
)

// These helpers mirror handler.ErrorResponse but are self-contained
// because the handler packages import middleware for GetLogger.

// respondWithError writes the JSON error envelope for a domain error.
func respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	code := domain.ErrorCode(err)
	respondStatus(w, r, errorCodeToHTTPStatus(code), code, domain.ErrorMessage(err), err)
}

// respondStatus writes the error envelope with an explicit status, for
// transport failures that have no domain code of their own.
func respondStatus(w http.ResponseWriter, r *http.Request, status int, code, message string, err error) {
	attrs := []any{
		"code", code,
		"status", status,
	}
	if err != nil {
		attrs = append(attrs, "error", err.Error())
	}

	logger := GetLogger(r.Context())
	if status >= 500 {
		logger.Error("middleware error", attrs...)
	} else {
		logger.Info("middleware error", attrs...)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}

func respondInternalError(w http.ResponseWriter, r *http.Request, err error) {
	respondWithError(w, r, domain.Internal(err, "", "An unexpected error occurred"))
}

func respondTooManyRequests(w http.ResponseWriter, r *http.Request) {
	respondWithError(w, r, domain.Errorf(domain.ERATELIMIT, "", "Too many requests"))
}

func respondBadRequest(w http.ResponseWriter, r *http.Request, message string) {
	respondWithError(w, r, domain.Errorf(domain.EINVALID, "", "%s", message))
}

func respondTooLarge(w http.ResponseWriter, r *http.Request) {
	respondStatus(w, r, http.StatusRequestEntityTooLarge, domain.EINVALID, "Request body too large", nil)
}

// errorCodeToHTTPStatus maps domain error codes to HTTP status codes.
func errorCodeToHTTPStatus(code string) int {
	switch code {
	case domain.EINVALID:
		return http.StatusBadRequest // 400
	case domain.ENOTFOUND:
		return http.StatusNotFound // 404
	case domain.ECONFLICT:
		return http.StatusConflict // 409
	case domain.EMISSING:
		return http.StatusUnprocessableEntity // 422
	case domain.ERATELIMIT:
		return http.StatusTooManyRequests // 429
	case domain.EEXTERNAL:
		return http.StatusBadGateway // 502
	default:
		return http.StatusInternalServerError // 500
	}
}
