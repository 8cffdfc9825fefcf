package health

import (
	"context"
	"sync/atomic"
	"time"
)

// Probes adds liveness and readiness to a Manager for the portal server.
type Probes struct {
	*Manager

	startTime  time.Time
	inShutdown atomic.Bool
	version    string
}

// NewProbes creates probes reporting version.
func NewProbes(version string) *Probes {
	return &Probes{
		Manager:   NewManager(),
		startTime: time.Now(),
		version:   version,
	}
}

// MarkShutdown makes readiness fail from now on.
func (p *Probes) MarkShutdown() {
	p.inShutdown.Store(true)
}

// IsShuttingDown reports whether MarkShutdown was called.
func (p *Probes) IsShuttingDown() bool {
	return p.inShutdown.Load()
}

// ProbeResult is the JSON body of a probe endpoint.
type ProbeResult struct {
	Status    Status             `json:"status"`
	Version   string             `json:"version,omitempty"`
	Uptime    string             `json:"uptime,omitempty"`
	Checks    map[string]*Result `json:"checks,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

func (p *Probes) result(status Status, checks map[string]*Result) *ProbeResult {
	return &ProbeResult{
		Status:    status,
		Version:   p.version,
		Uptime:    time.Since(p.startTime).Round(time.Second).String(),
		Checks:    checks,
		Timestamp: time.Now(),
	}
}

// Liveness only reports that the process answers; it runs no checks.
// During shutdown it is degraded rather than unhealthy.
func (p *Probes) Liveness() *ProbeResult {
	if p.IsShuttingDown() {
		return p.result(StatusDegraded, nil)
	}
	return p.result(StatusHealthy, nil)
}

// Readiness runs every checker. It is unhealthy during shutdown without
// running them.
func (p *Probes) Readiness(ctx context.Context) *ProbeResult {
	if p.IsShuttingDown() {
		return p.result(StatusUnhealthy, nil)
	}
	checks := p.Check(ctx)
	return p.result(OverallStatus(checks), checks)
}
