package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/tablepos/api/internal/service"
)

// writeServiceError maps a service error class to its HTTP status. Anything
// outside the known classes is logged and hidden behind a 500.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, service.ErrPaymentDeclined):
		status = http.StatusPaymentRequired
	}

	if status == http.StatusInternalServerError {
		log.Printf("ERROR: %s: %v", op, err)
		writeJSON(w, status, map[string]string{"error": "internal server error"})
		return
	}
	if status == http.StatusPaymentRequired {
		// Gateway detail stays in the log.
		log.Printf("WARNING: %s: %v", op, err)
		writeJSON(w, status, map[string]string{"error": service.ErrPaymentDeclined.Error()})
		return
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
