// Package health serves liveness and readiness probes.
//
// Every check runs in its own goroutine. A check flips to unhealthy after
// FailureThreshold consecutive failures and back after SuccessThreshold
// consecutive successes.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// CheckFunc returns nil when the checked component is healthy.
type CheckFunc func(ctx context.Context) error

// Check describes a probe. Zero thresholds default to 3 failures and 1
// success; a zero timeout defaults to one second.
type Check struct {
	Name             string
	Timeout          time.Duration
	FailureThreshold int
	SuccessThreshold int
	Func             CheckFunc
}

// state is owned by one runner goroutine; healthy and lastErr are read
// concurrently by the endpoints.
type state struct {
	Check

	healthy atomic.Bool
	lastErr atomic.Pointer[error]

	fails int
	oks   int
}

func newState(c Check) *state {
	if c.Timeout <= 0 {
		c.Timeout = time.Second
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 3
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = 1
	}
	s := &state{Check: c}
	s.healthy.Store(true)
	return s
}

func (s *state) err() error {
	if p := s.lastErr.Load(); p != nil {
		return *p
	}
	return nil
}

func (s *state) run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	err := s.Func(ctx)
	s.lastErr.Store(&err)
	if err != nil {
		s.oks = 0
		s.fails++
		if s.fails >= s.FailureThreshold {
			s.healthy.Store(false)
		}
		return
	}
	s.fails = 0
	s.oks++
	if s.oks >= s.SuccessThreshold {
		s.healthy.Store(true)
	}
}

// Health holds the registered checks and the manual readiness flag.
type Health struct {
	ready atomic.Bool

	mu        sync.RWMutex
	liveness  []*state
	readiness []*state
	cancel    context.CancelFunc
}

// New returns a Health that reports not ready until SetReady(true).
func New() *Health {
	return &Health{}
}

// AddLiveness registers a liveness check.
func (h *Health) AddLiveness(c Check) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.liveness = append(h.liveness, newState(c))
}

// AddReadiness registers a readiness check.
func (h *Health) AddReadiness(c Check) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readiness = append(h.readiness, newState(c))
}

// Start runs every check immediately and then at interval until Stop or
// ctx cancellation.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.cancel = cancel
	all := append(append([]*state(nil), h.liveness...), h.readiness...)
	h.mu.Unlock()

	for _, s := range all {
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			s.run(ctx)
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					s.run(ctx)
				}
			}
		}()
	}
}

// Stop cancels the check goroutines. It is idempotent.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// SetReady toggles readiness, e.g. off while draining on shutdown.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports the manual flag combined with every readiness check.
func (h *Health) IsReady() bool {
	return h.ready.Load() && len(failures(h.snapshot(false))) == 0
}

func (h *Health) snapshot(live bool) []*state {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if live {
		return append([]*state(nil), h.liveness...)
	}
	return append([]*state(nil), h.readiness...)
}

// LiveEndpoint serves /livez.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	write(w, failures(h.snapshot(true)))
}

// ReadyEndpoint serves /readyz.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	failed := failures(h.snapshot(false))
	if !h.ready.Load() {
		failed["_readiness"] = "service is not ready"
	}
	write(w, failed)
}

func failures(checks []*state) map[string]string {
	out := make(map[string]string)
	for _, s := range checks {
		if s.healthy.Load() {
			continue
		}
		if err := s.err(); err != nil {
			out[s.Name] = err.Error()
		} else {
			out[s.Name] = "check is unhealthy"
		}
	}
	return out
}

type status struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

type envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    status `json:"data"`
}

func write(w http.ResponseWriter, failed map[string]string) {
	resp := envelope{Code: http.StatusOK, Message: "ok", Data: status{Status: "ok"}}
	if len(failed) > 0 {
		resp = envelope{
			Code:    http.StatusServiceUnavailable,
			Message: "unhealthy",
			Data:    status{Status: "unhealthy", Checks: failed},
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Code)
	_ = json.NewEncoder(w).Encode(resp)
}
