package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"pinengine/internal/domain"
)

// Firmware-compatible failure messages.
const (
	msgSetMissing      = "GPIO or state parameter missing"
	msgOpsMissing      = "operations parameter missing"
	msgGPIOMissing     = "gpio parameter missing"
	msgScheduleMissing = "gpio, state, or delay parameter missing"
	msgBlinkMissing    = "gpio or interval parameter missing"
	msgOpsFormat       = "Invalid operations format"
	msgInvalidPin      = "Invalid GPIO pin"
	msgInvalidMode     = "Invalid state value"
	msgRoutineUnknown  = "Routine not found"
)

// writeJSON encodes v before touching w so an encoding failure can still be
// reported as a 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("encode response", "status", status, "error", err)
		data = []byte(`{"error":"Internal error","status":"failure"}`)
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(data, '\n')); err != nil {
		slog.Debug("write response", "error", err)
	}
}

func writeFailure(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg, "status": "failure"})
}

// messageFor maps an engine error to the message returned to the caller.
// Internal detail such as store paths or driver names never leaves here.
func messageFor(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidPin):
		return msgInvalidPin
	case errors.Is(err, domain.ErrInvalidMode):
		return msgInvalidMode
	case errors.Is(err, domain.ErrMissingParameter):
		return "Missing parameter"
	case errors.Is(err, domain.ErrInvalidInput):
		return "Invalid input"
	case errors.Is(err, domain.ErrDriverFailure):
		return "Pin driver failure"
	case errors.Is(err, domain.ErrStoreFailure):
		return "State store failure"
	default:
		return "Internal error"
	}
}

// batchMessage joins per-entry failures as "entry <i> (gpio <n>): <message>".
func batchMessage(failures []domain.BatchFailure) string {
	parts := make([]string, len(failures))
	for i, f := range failures {
		parts[i] = fmt.Sprintf("entry %d (gpio %d): %s", f.Index, f.Pin, messageFor(f.Err))
	}
	return strings.Join(parts, "; ")
}

// intParam reads an integer query parameter. A present but non-integer
// value yields the "Invalid <name> value" message.
func intParam(r *http.Request, name string) (n int, present bool, msg string) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, false, ""
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, true, "Invalid " + name + " value"
	}
	return n, true, ""
}
