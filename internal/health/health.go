// Package health serves the liveness and readiness probes of the admin
// server. /healthz answers 200 while the process can serve HTTP; /readyz
// answers 200 only when every registered check passes.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

const probeTimeout = 3 * time.Second

// Check probes one dependency and returns nil when it is usable.
type Check func(ctx context.Context) error

type report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

type Handler struct {
	mu     sync.RWMutex
	names  []string
	checks map[string]Check
}

func New() *Handler {
	return &Handler{checks: make(map[string]Check)}
}

// Add registers check under name, replacing an earlier one of the same name.
func (h *Handler) Add(name string, check Check) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.checks[name]; !ok {
		h.names = append(h.names, name)
	}
	h.checks[name] = check
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeReport(w, http.StatusOK, report{Status: "ok"})
}

func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	names := append([]string(nil), h.names...)
	checks := make([]Check, len(names))
	for i, n := range names {
		checks[i] = h.checks[n]
	}
	h.mu.RUnlock()

	rep := report{Status: "ok", Checks: make(map[string]string, len(names))}
	status := http.StatusOK
	for i, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		err := checks[i](ctx)
		cancel()
		if err != nil {
			rep.Checks[name] = "fail: " + err.Error()
			rep.Status = "fail"
			status = http.StatusServiceUnavailable
			continue
		}
		rep.Checks[name] = "ok"
	}
	writeReport(w, status, rep)
}

func writeReport(w http.ResponseWriter, status int, rep report) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(rep)
}
