package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"time"

	"pinengine/internal/domain"
)

type handlers struct {
	deps *Deps
}

func (h *handlers) setGPIO(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	gpio, ok, msg := intParam(r, "gpio")
	if msg != "" {
		writeFailure(w, msg)
		return
	}
	if !ok || state == "" {
		writeFailure(w, msgSetMissing)
		return
	}

	eng := h.deps.Engine
	req, err := domain.NewOperationRequest(eng.Pins(), gpio, state, 0, 0)
	if err != nil {
		writeFailure(w, messageFor(err))
		return
	}
	applied, err := eng.Apply(r.Context(), req)
	if err != nil {
		h.deps.Logger.Warn("setgpio failed", "gpio", gpio, "state", state, "error", err)
		writeFailure(w, messageFor(err))
		return
	}

	resp := map[string]any{
		"gpio":   applied.Pin,
		"state":  applied.Mode.Label(),
		"status": "success",
	}
	if applied.Mode.IsPWM() {
		resp["pwm_value"] = applied.Mode.Duty
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) batch(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("operations")
	if raw == "" {
		writeFailure(w, msgOpsMissing)
		return
	}
	var entries []domain.BatchEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		writeFailure(w, msgOpsFormat)
		return
	}

	res := h.deps.Engine.ApplyBatch(r.Context(), entries)
	if len(res.Failures) > 0 {
		h.deps.Logger.Warn("batch entries rejected",
			"applied", len(res.Applied), "failed", len(res.Failures), "error", res.Err())
		writeFailure(w, batchMessage(res.Failures))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (h *handlers) readGPIO(w http.ResponseWriter, r *http.Request) {
	gpio, ok := h.pinParam(w, r)
	if !ok {
		return
	}
	level, err := h.deps.Driver.ReadDigital(gpio)
	if err != nil {
		h.deps.Logger.Warn("readgpio failed", "gpio", gpio, "error", err)
		writeFailure(w, messageFor(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"gpio": gpio, "state": level.String()})
}

func (h *handlers) readADC(w http.ResponseWriter, r *http.Request) {
	gpio, ok := h.pinParam(w, r)
	if !ok {
		return
	}
	value, err := h.deps.Driver.ReadAnalog(gpio)
	if err != nil {
		h.deps.Logger.Warn("readadc failed", "gpio", gpio, "error", err)
		writeFailure(w, messageFor(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"gpio": gpio, "adc_value": value})
}

// pinParam reads and range-checks the gpio parameter for the read endpoints.
func (h *handlers) pinParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	gpio, ok, msg := intParam(r, "gpio")
	if msg != "" {
		writeFailure(w, msg)
		return 0, false
	}
	if !ok {
		writeFailure(w, msgGPIOMissing)
		return 0, false
	}
	if err := h.deps.Engine.Pins().Validate(gpio); err != nil {
		writeFailure(w, messageFor(err))
		return 0, false
	}
	return gpio, true
}

func (h *handlers) schedule(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	gpio, hasGPIO, msg := intParam(r, "gpio")
	if msg != "" {
		writeFailure(w, msg)
		return
	}
	delay, hasDelay, msg := intParam(r, "delay")
	if msg != "" {
		writeFailure(w, msg)
		return
	}
	duration, _, msg := intParam(r, "duration")
	if msg != "" {
		writeFailure(w, msg)
		return
	}
	if !hasGPIO || !hasDelay || state == "" {
		writeFailure(w, msgScheduleMissing)
		return
	}
	delayD, err := domain.Millis("delay", int64(delay))
	if err != nil {
		writeFailure(w, "Invalid delay value")
		return
	}
	durationD, err := domain.Millis("duration", int64(duration))
	if err != nil {
		writeFailure(w, "Invalid duration value")
		return
	}

	eng := h.deps.Engine
	req, err := domain.NewOperationRequest(eng.Pins(), gpio, state, delayD, durationD)
	if err != nil {
		writeFailure(w, messageFor(err))
		return
	}
	if _, err := eng.Schedule(r.Context(), req); err != nil {
		h.deps.Logger.Warn("schedule failed", "gpio", gpio, "state", state, "error", err)
		writeFailure(w, messageFor(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "scheduled"})
}

// blink starts toggling gpio every interval ms. An interval of 0 stops it.
func (h *handlers) blink(w http.ResponseWriter, r *http.Request) {
	gpio, hasGPIO, msg := intParam(r, "gpio")
	if msg != "" {
		writeFailure(w, msg)
		return
	}
	interval, hasInterval, msg := intParam(r, "interval")
	if msg != "" {
		writeFailure(w, msg)
		return
	}
	if !hasGPIO || !hasInterval {
		writeFailure(w, msgBlinkMissing)
		return
	}
	every, err := domain.Millis("interval", int64(interval))
	if err != nil {
		writeFailure(w, "Invalid interval value")
		return
	}

	eng := h.deps.Engine
	if err := eng.Pins().Validate(gpio); err != nil {
		writeFailure(w, messageFor(err))
		return
	}
	if interval == 0 {
		eng.StopBlink(gpio)
		writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
		return
	}
	if err := eng.StartBlink(r.Context(), gpio, every); err != nil {
		h.deps.Logger.Warn("blink failed", "gpio", gpio, "error", err)
		writeFailure(w, messageFor(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (h *handlers) status(w http.ResponseWriter, r *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	writeJSON(w, http.StatusOK, map[string]any{
		"uptime":            int64(time.Since(h.deps.StartTime).Seconds()),
		"free_heap":         mem.HeapSys - mem.HeapAlloc,
		"connected_clients": h.deps.clients(),
	})
}

func (h *handlers) pins(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Engine.Snapshot())
}

func (h *handlers) routines(w http.ResponseWriter, r *http.Request) {
	if h.deps.Routines == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Routines.Routines())
}

func (h *handlers) removeRoutine(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if h.deps.Routines == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": msgRoutineUnknown, "status": "failure"})
		return
	}
	if err := h.deps.Routines.RemoveRoutine(name); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": msgRoutineUnknown, "status": "failure"})
			return
		}
		h.deps.Logger.Warn("remove routine failed", "routine", name, "error", err)
		writeFailure(w, messageFor(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// journal returns the last n journal entries, 50 by default.
func (h *handlers) journal(w http.ResponseWriter, r *http.Request) {
	if h.deps.Journal == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	n, ok, msg := intParam(r, "n")
	if msg != "" {
		writeFailure(w, msg)
		return
	}
	if !ok {
		n = 50
	}
	if n < 0 || n > 1000 {
		writeFailure(w, "Invalid n value")
		return
	}
	events, err := h.deps.Journal.Tail(n)
	if err != nil {
		h.deps.Logger.Error("journal read failed", "error", err)
		writeFailure(w, "Journal unavailable")
		return
	}
	if events == nil {
		events = []domain.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *handlers) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"pins":   h.deps.Engine.Pins().String(),
	})
}
