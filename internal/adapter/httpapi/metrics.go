package httpapi

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"pinengine/internal/domain"
)

// metrics writes engine and runtime counters in the Prometheus text format.
// The format is small enough that the prometheus client is not pulled in.
func (h *handlers) metrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	st := h.deps.Engine.Stats()
	counter := func(name, help string, v uint64) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s counter\n", name)
		fmt.Fprintf(w, "%s %d\n", name, v)
	}
	gauge := func(name, help string, v any) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s gauge\n", name)
		fmt.Fprintf(w, "%s %v\n", name, v)
	}

	counter("pinengine_operations_applied_total", "Pin modes applied, including timer and batch applies.", st.Applied)
	counter("pinengine_operations_reverted_total", "Timed operations reverted.", st.Reverted)
	counter("pinengine_operations_scheduled_total", "Operations armed with an apply delay.", st.Scheduled)
	counter("pinengine_operations_resumed_total", "Pin states replayed at boot.", st.Resumed)
	counter("pinengine_operations_dropped_total", "Timer-fired operations dropped at fire time.", st.Dropped)
	counter("pinengine_store_failures_total", "State store writes or deletes that failed.", st.StoreFailures)
	counter("pinengine_blink_ticks_total", "Blink toggles written.", st.BlinkTicks)
	counter("pinengine_events_dropped_total", "Events lost to full subscriber queues.", h.deps.dropped())

	var active, pending, blinking int
	for _, ps := range h.deps.Engine.Snapshot() {
		if ps.Blinking {
			blinking++
		}
		switch ps.State {
		case domain.StateActive, domain.StateActiveTimed:
			active++
		case domain.StatePendingScheduled:
			pending++
		}
	}
	gauge("pinengine_pins_active", "Pins holding an applied mode.", active)
	gauge("pinengine_pins_pending", "Pins waiting on an apply delay.", pending)
	gauge("pinengine_pins_blinking", "Pins with an active blink.", blinking)
	gauge("pinengine_gateway_clients", "Connected WebSocket clients.", h.deps.clients())
	gauge("pinengine_uptime_seconds", "Seconds since the process started.",
		fmt.Sprintf("%.0f", time.Since(h.deps.StartTime).Seconds()))

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	gauge("go_goroutines", "Number of goroutines.", runtime.NumGoroutine())
	gauge("go_memstats_alloc_bytes", "Bytes of allocated heap objects.", mem.Alloc)
	gauge("go_memstats_sys_bytes", "Total bytes of memory obtained from the OS.", mem.Sys)
}
