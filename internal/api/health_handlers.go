package api

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/sync/errgroup"
)

// Component states, worst last.
const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
)

const probeTimeout = 2 * time.Second

func (s *Server) registerHealthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "healthCheck",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Reports the record store, history index, event stream and API key state",
		Tags:        []string{"Health"},
	}, s.handleHealthCheck)
}

// ComponentHealth describes one dependency.
type ComponentHealth struct {
	Status  string `json:"status" enum:"healthy,degraded,unhealthy" doc:"Component status"`
	Latency string `json:"latency,omitempty" doc:"Time the probe took"`
	Message string `json:"message,omitempty" doc:"Additional status information"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status     string                     `json:"status" enum:"healthy,degraded,unhealthy" doc:"Worst component status"`
	Uptime     string                     `json:"uptime" doc:"Time since the server started"`
	Components map[string]ComponentHealth `json:"components" doc:"Individual component statuses"`
}

// HealthOutput wraps the health response for Huma.
type HealthOutput struct {
	Body HealthResponse
}

type probe func(context.Context) ComponentHealth

func (s *Server) probes() map[string]probe {
	return map[string]probe{
		"store":      s.probeStore,
		"search":     s.probeIndex,
		"sse":        s.probeEvents,
		"credential": s.probeCredential,
	}
}

func (s *Server) handleHealthCheck(ctx context.Context, _ *struct{}) (*HealthOutput, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	var (
		mu         sync.Mutex
		components = make(map[string]ComponentHealth)
	)
	g, gctx := errgroup.WithContext(ctx)
	for name, p := range s.probes() {
		g.Go(func() error {
			start := time.Now()
			h := p(gctx)
			if h.Latency == "" {
				h.Latency = time.Since(start).Round(time.Microsecond).String()
			}
			mu.Lock()
			components[name] = h
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return &HealthOutput{
		Body: HealthResponse{
			Status:     worstStatus(components),
			Uptime:     time.Since(s.startedAt).Round(time.Second).String(),
			Components: components,
		},
	}, nil
}

func worstStatus(components map[string]ComponentHealth) string {
	rank := map[string]int{statusHealthy: 0, statusDegraded: 1, statusUnhealthy: 2}
	overall := statusHealthy
	for _, c := range components {
		if rank[c.Status] > rank[overall] {
			overall = c.Status
		}
	}
	return overall
}

func (s *Server) probeStore(ctx context.Context) ComponentHealth {
	if s.store == nil {
		return ComponentHealth{Status: statusDegraded, Message: "store not configured"}
	}
	if err := s.store.Ping(ctx); err != nil {
		return ComponentHealth{Status: statusUnhealthy, Message: "store unreachable"}
	}
	return ComponentHealth{Status: statusHealthy}
}

// probeIndex treats an empty index as healthy; history may simply be empty.
func (s *Server) probeIndex(context.Context) ComponentHealth {
	if s.index == nil {
		return ComponentHealth{Status: statusDegraded, Message: "search index not configured"}
	}
	n, err := s.index.DocumentCount()
	if err != nil {
		return ComponentHealth{Status: statusDegraded, Message: "search index unreachable, falling back to substring search"}
	}
	return ComponentHealth{Status: statusHealthy, Message: strconv.FormatUint(n, 10) + " indexed"}
}

func (s *Server) probeEvents(context.Context) ComponentHealth {
	if s.sseManager == nil {
		return ComponentHealth{Status: statusDegraded, Message: "event stream not configured"}
	}
	return ComponentHealth{Status: statusHealthy, Message: plural(s.sseManager.ClientCount(), "open tab")}
}

// probeCredential never reports the key itself, only where it comes from.
func (s *Server) probeCredential(ctx context.Context) ComponentHealth {
	if s.services.Credential == nil {
		return ComponentHealth{Status: statusDegraded, Message: "credential vault not configured"}
	}
	st, err := s.services.Credential.Status(ctx)
	switch {
	case err != nil:
		return ComponentHealth{Status: statusUnhealthy, Message: "credential store unreadable"}
	case !st.Configured:
		return ComponentHealth{Status: statusDegraded, Message: "no API key, generation disabled"}
	default:
		return ComponentHealth{Status: statusHealthy, Message: "key from " + string(st.Source)}
	}
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return strconv.Itoa(n) + " " + noun + "s"
}
