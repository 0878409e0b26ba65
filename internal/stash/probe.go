package stash

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"
)

const defaultProbeTTL = time.Minute

// Versioner is the part of Client the probe needs.
type Versioner interface {
	Version(ctx context.Context) (string, error)
}

// Health is the outcome of the last reachability probe.
type Health struct {
	Reachable bool      `json:"reachable"`
	Version   string    `json:"version,omitempty"`
	Error     string    `json:"error,omitempty"`
	ProbedAt  time.Time `json:"probed_at"`
}

// CachedProbe caches Stash reachability for the status endpoint and tray.
type CachedProbe struct {
	client Versioner
	ttl    time.Duration
	logger *slog.Logger

	mu     sync.RWMutex
	cached *Health
}

func NewCachedProbe(client Versioner, logger *slog.Logger) *CachedProbe {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &CachedProbe{client: client, ttl: defaultProbeTTL, logger: logger}
}

// Get returns the cached result if fresh, otherwise re-probes.
func (p *CachedProbe) Get(ctx context.Context) Health {
	p.mu.RLock()
	if p.cached != nil && time.Since(p.cached.ProbedAt) < p.ttl {
		h := *p.cached
		p.mu.RUnlock()
		return h
	}
	p.mu.RUnlock()

	return p.Refresh(ctx)
}

// Peek returns the cached result without probing.
func (p *CachedProbe) Peek() (Health, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.cached == nil {
		return Health{}, false
	}
	return *p.cached, true
}

// Refresh probes Stash regardless of cache freshness.
func (p *CachedProbe) Refresh(ctx context.Context) Health {
	p.mu.Lock()
	defer p.mu.Unlock()

	h := Health{ProbedAt: time.Now()}
	version, err := p.client.Version(ctx)
	if err != nil {
		p.logger.Warn("stash probe failed", "error", err)
		h.Error = err.Error()
	} else {
		h.Reachable = true
		h.Version = version
	}
	p.cached = &h
	return h
}

func (p *CachedProbe) Invalidate() {
	p.mu.Lock()
	p.cached = nil
	p.mu.Unlock()
}
