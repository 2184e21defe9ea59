package core

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// healthCheckTimeout is the maximum time allowed for all health probes to
// complete. Probes still running at the deadline are reported as timed out.
const healthCheckTimeout = 2 * time.Second

// HealthProbe is a subsystem health check. db.PoolProbe is the database probe.
type HealthProbe interface {
	// Name returns a short identifier for the probe (e.g., "database").
	Name() string

	// Check returns an error if the subsystem is unhealthy or unreachable.
	// It should respect the context deadline.
	Check(ctx context.Context) error
}

type componentStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type healthResponse struct {
	Status     string                     `json:"status"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]componentStatus `json:"components,omitempty"`
}

// HandleHealth runs all registered probes concurrently under a 2 second
// deadline. It answers 200 when every probe reports healthy and 503 when any
// probe fails or does not finish in time.
//
// This endpoint is public and is mounted at GET /health.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	version := ""
	if s.Config != nil {
		version = s.Config.Build.Version
	}

	probes := s.HealthProbes
	if len(probes) == 0 {
		JSON(w, r, http.StatusOK, healthResponse{Status: "healthy", Version: version})
		return
	}

	var (
		mu      sync.Mutex
		results = make(map[string]error, len(probes))
		g       errgroup.Group
	)

	for _, probe := range probes {
		probe := probe // per-iteration copy (go directive < 1.22)
		g.Go(func() error {
			var checkErr error
			defer func() {
				if rec := recover(); rec != nil {
					checkErr = fmt.Errorf("probe panicked: %v", rec)
				}
				mu.Lock()
				results[probe.Name()] = checkErr
				mu.Unlock()
			}()
			// Probe failures are collected per component rather than
			// cancelling siblings, so the group never sees an error.
			checkErr = probe.Check(ctx)
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
	}

	mu.Lock()
	defer mu.Unlock()

	components := make(map[string]componentStatus, len(probes))
	allHealthy := true
	for _, probe := range probes {
		name := probe.Name()
		err, finished := results[name]
		switch {
		case !finished:
			allHealthy = false
			components[name] = componentStatus{Status: "unhealthy", Message: "health check timed out"}
		case err != nil:
			allHealthy = false
			components[name] = componentStatus{Status: "unhealthy", Message: err.Error()}
		default:
			components[name] = componentStatus{Status: "healthy"}
		}
	}

	resp := healthResponse{Version: version, Components: components}
	if allHealthy {
		resp.Status = "healthy"
		JSON(w, r, http.StatusOK, resp)
		return
	}
	resp.Status = "unhealthy"
	JSON(w, r, http.StatusServiceUnavailable, resp)
}
