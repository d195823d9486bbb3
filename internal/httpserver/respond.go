package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/BenjaminPelletier/dss/internal/dsserr"
)

// Respond writes a JSON response with the given status code.
func Respond(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("encoding response", "error", err)
	}
}

// messageEnvelope is the sole error body shape the wire contract defines:
// `{message: string}` with the HTTP status (spec section 6).
type messageEnvelope struct {
	Message string `json:"message"`
}

// RespondError renders err as the `{"message": ...}` envelope with the
// status its dsserr.Kind maps to. Errors that aren't a *dsserr.Error (a
// programming bug, a dependency failure) are logged with full detail and
// rendered as an opaque 500 — nothing about them reaches the client.
func RespondError(w http.ResponseWriter, err error) {
	dsErr, ok := dsserr.As(err)
	if !ok {
		slog.Error("unclassified error reached the request pipeline", "error", err)
		Respond(w, http.StatusInternalServerError, messageEnvelope{Message: "internal server error"})
		return
	}
	Respond(w, dsErr.Kind.Status(), messageEnvelope{Message: dsErr.Message})
}
