package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/tracerun/coreruntime/internal/runtimeerr"
)

// errorEnvelope is the transport-edge JSON error shape for every failure
// path (§7: "structured JSON error with a code ... plus a human-readable
// message").
type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError maps a runtimeerr.Kind (when present) to an HTTP status and
// writes the error envelope. Errors with no recognized Kind map to 500.
func writeError(w http.ResponseWriter, err error) {
	kind, ok := runtimeerr.KindOf(err)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorEnvelope{Code: "InternalError", Message: err.Error()})
		return
	}

	status := http.StatusInternalServerError
	switch kind {
	case runtimeerr.KindSessionNotFound:
		status = http.StatusNotFound
	case runtimeerr.KindUniquenessViolation:
		status = http.StatusConflict
	case runtimeerr.KindOracleUnavailable, runtimeerr.KindOracleTimeout, runtimeerr.KindEventLogUnavailable:
		status = http.StatusBadGateway
	case runtimeerr.KindNoCapableAgent:
		status = http.StatusUnprocessableEntity
	case runtimeerr.KindChecksumMismatch, runtimeerr.KindVectorDimension, runtimeerr.KindMigrationSignatureMismatch, runtimeerr.KindMigrationFailed:
		status = http.StatusInternalServerError
	case runtimeerr.KindAgentExecutionFailed:
		status = http.StatusBadGateway
	}

	writeJSON(w, status, errorEnvelope{Code: string(kind), Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
