package middleware

import (
	"net/http"

	apperrors "tutorbook/pkg/errors"
)

// writeAppError answers with the same body shape handlers produce.
func writeAppError(w http.ResponseWriter, err *apperrors.AppError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode())
	_, _ = w.Write(err.ToJSON())
}
