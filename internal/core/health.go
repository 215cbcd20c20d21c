package core

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// All probes share this deadline; a probe still running when it expires is
// reported as timed out.
const healthCheckTimeout = 2 * time.Second

// HealthProbe checks one dependency (model registry, weather cache).
type HealthProbe interface {
	Name() string
	Check(ctx context.Context) error
}

// HealthDetailer is implemented by probes that expose extra status fields,
// such as the number of loaded models.
type HealthDetailer interface {
	HealthDetails() map[string]any
}

type componentStatus struct {
	Status  string         `json:"status"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

type healthResponse struct {
	Status     string                     `json:"status"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]componentStatus `json:"components,omitempty"`
}

type probeResult struct {
	name string
	err  error
}

// HandleHealth runs every probe concurrently and answers 200 when all pass,
// 503 otherwise.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "healthy"}
	if s.Config != nil {
		resp.Version = s.Config.Build.Version
	}
	if len(s.HealthProbes) == 0 {
		JSON(w, r, http.StatusOK, resp)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	// Buffered so late probes never block after the deadline.
	results := make(chan probeResult, len(s.HealthProbes))
	for _, probe := range s.HealthProbes {
		go func(p HealthProbe) {
			var err error
			defer func() {
				if rec := recover(); rec != nil {
					err = fmt.Errorf("probe panicked: %v", rec)
				}
				results <- probeResult{name: p.Name(), err: err}
			}()
			err = p.Check(ctx)
		}(probe)
	}

	completed := make(map[string]error, len(s.HealthProbes))
collect:
	for range s.HealthProbes {
		select {
		case res := <-results:
			completed[res.name] = res.err
		case <-ctx.Done():
			break collect
		}
	}

	resp.Components = make(map[string]componentStatus, len(s.HealthProbes))
	healthy := true
	for _, probe := range s.HealthProbes {
		name := probe.Name()
		cs := componentStatus{Status: "healthy"}

		err, done := completed[name]
		switch {
		case !done:
			cs = componentStatus{Status: "unhealthy", Message: "health check timed out"}
		case err != nil:
			cs = componentStatus{Status: "unhealthy", Message: err.Error()}
		}
		if d, ok := probe.(HealthDetailer); ok {
			cs.Details = d.HealthDetails()
		}
		if cs.Status != "healthy" {
			healthy = false
		}
		resp.Components[name] = cs
	}

	if !healthy {
		resp.Status = "unhealthy"
		JSON(w, r, http.StatusServiceUnavailable, resp)
		return
	}
	JSON(w, r, http.StatusOK, resp)
}
