package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"linen-ledger/internal/core"
)

type errorResponse struct {
	Error      string                `json:"error"`
	Code       string                `json:"code"`
	RequestID  string                `json:"request_id,omitempty"`
	Violations []core.StockViolation `json:"violations,omitempty"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := errorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestIDFromContext(r.Context()),
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// writeLedgerError maps a ledger error code to an HTTP status and writes it,
// including stock violation details when present.
func writeLedgerError(w http.ResponseWriter, r *http.Request, err error) {
	var le *core.LedgerError
	if !errors.As(err, &le) {
		writeError(w, r, err.Error(), string(core.CodeUnknown), http.StatusInternalServerError)
		return
	}

	status := http.StatusInternalServerError
	switch le.Code {
	case core.CodeValidation:
		status = http.StatusBadRequest
	case core.CodeNotFound:
		status = http.StatusNotFound
	case core.CodeConflict, core.CodeAlreadyVoided, core.CodeInsufficientStock:
		status = http.StatusConflict
	case core.CodeForbidden:
		status = http.StatusForbidden
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := errorResponse{
		Error:      le.Message,
		Code:       string(le.Code),
		RequestID:  requestIDFromContext(r.Context()),
		Violations: le.Violations,
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// writeJSON writes a JSON response with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
