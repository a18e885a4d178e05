// Package handler reports service readiness over HTTP and the standard gRPC health service.
package handler

import (
	"context"
	"log"
	"maps"
	"net/http"
	"slices"
	"time"

	"github.com/goccy/go-json"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const checkTimeout = 2 * time.Second

// Pinger is used for readiness checks (e.g. *sql.DB).
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) PingContext(ctx context.Context) error {
	return f(ctx)
}

// Server checks named dependencies. Nil pingers are skipped.
type Server struct {
	pingers map[string]Pinger
}

// NewServer returns a health Server over pingers keyed by dependency name.
func NewServer(pingers map[string]Pinger) *Server {
	return &Server{pingers: pingers}
}

// Check pings every dependency and returns the error message of each failing one.
// An empty result means the service is ready.
func (s *Server) Check(ctx context.Context) map[string]string {
	failed := make(map[string]string)
	for _, name := range slices.Sorted(maps.Keys(s.pingers)) {
		p := s.pingers[name]
		if p == nil {
			continue
		}
		pingCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := p.PingContext(pingCtx)
		cancel()
		if err != nil {
			failed[name] = err.Error()
		}
	}
	return failed
}

type healthResponse struct {
	Status string            `json:"status"`
	Failed map[string]string `json:"failed,omitempty"`
}

// ServeHTTP answers 200 when all dependencies respond and 503 otherwise.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	code := http.StatusOK
	if failed := s.Check(r.Context()); len(failed) > 0 {
		resp = healthResponse{Status: "unavailable", Failed: failed}
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("health: write response: %v", err)
	}
}

// Sync sets the overall serving status of hs from one Check.
func (s *Server) Sync(ctx context.Context, hs *health.Server) {
	status := healthpb.HealthCheckResponse_SERVING
	if failed := s.Check(ctx); len(failed) > 0 {
		status = healthpb.HealthCheckResponse_NOT_SERVING
		log.Printf("health: not serving: %v", failed)
	}
	hs.SetServingStatus("", status)
}

// Watch calls Sync every interval until ctx is done.
func (s *Server) Watch(ctx context.Context, hs *health.Server, interval time.Duration) {
	s.Sync(ctx, hs)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sync(ctx, hs)
		}
	}
}
