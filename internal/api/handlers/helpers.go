package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"route-tracker/internal/auth"
	"route-tracker/internal/domain"
	"route-tracker/internal/platform/obs"
	"route-tracker/internal/session"
)

const maxJSONBody = 1 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode failed: req_id=%s method=%s path=%s err=%v", obs.RequestID(r.Context()), r.Method, r.URL.Path, err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, map[string]string{"error": msg})
}

// decodeJSON reads exactly one JSON object from the body into v and checks
// its validate tags.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	defer r.Body.Close()
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json body")
		return false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		writeError(w, r, http.StatusBadRequest, "body must contain only one JSON object")
		return false
	}

	if err := validate.Struct(v); err != nil {
		writeError(w, r, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request"
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, strings.ToLower(fe.Field())+" failed "+fe.Tag())
	}
	return "invalid request: " + strings.Join(parts, ", ")
}

// writeDomainError maps handler errors onto HTTP statuses. Unexpected errors
// are logged and reported with a generic message.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var dataErr *domain.DataError
	var optErr *domain.OptimizationFailure

	switch {
	case errors.As(err, &dataErr):
		writeError(w, r, http.StatusUnprocessableEntity, dataErr.Error())
	case errors.As(err, &optErr):
		writeError(w, r, http.StatusUnprocessableEntity, domain.ErrOptimizationFailed.Error())
	case errors.Is(err, domain.ErrInvalidIndex),
		errors.Is(err, session.ErrInvalidPosition),
		errors.Is(err, session.ErrInvalidViewMode):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrLocationUnavailable):
		writeError(w, r, http.StatusConflict, "waiting for position")
	case errors.Is(err, domain.ErrNoUpload),
		errors.Is(err, session.ErrNoActiveStop),
		errors.Is(err, session.ErrSessionConflict):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, session.ErrSessionNotFound):
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
	default:
		log.Printf("req_id=%s method=%s path=%s err=%v", obs.RequestID(r.Context()), r.Method, r.URL.Path, err)
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
