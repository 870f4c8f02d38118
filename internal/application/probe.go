package application

import (
	"context"
	"errors"
	"sync"
)

// AvailabilityChecker answers availability queries.
type AvailabilityChecker interface {
	CheckAvailability(ctx context.Context, query AvailabilityQuery) (AvailabilityResult, error)
}

// AvailabilityProbe runs availability checks on behalf of interactive
// clients. A newer probe from the same client cancels the older one, and an
// older probe never returns its result after a newer probe has started.
type AvailabilityProbe struct {
	checker AvailabilityChecker

	mu       sync.Mutex
	seq      uint64
	inflight map[string]*probeGeneration
}

type probeGeneration struct {
	id     uint64
	cancel context.CancelFunc
}

// NewAvailabilityProbe constructs a probe around checker.
func NewAvailabilityProbe(checker AvailabilityChecker) *AvailabilityProbe {
	return &AvailabilityProbe{
		checker:  checker,
		inflight: make(map[string]*probeGeneration),
	}
}

// Check runs query for clientKey. An empty clientKey disables supersession.
func (p *AvailabilityProbe) Check(ctx context.Context, clientKey string, query AvailabilityQuery) (AvailabilityResult, error) {
	if clientKey == "" {
		return p.checker.CheckAvailability(ctx, query)
	}

	probeCtx, generation := p.begin(ctx, clientKey)
	defer p.finish(clientKey, generation)

	result, err := p.checker.CheckAvailability(probeCtx, query)
	if !p.current(clientKey, generation) {
		return AvailabilityResult{}, ErrProbeSuperseded
	}
	if err != nil && errors.Is(err, context.Canceled) && ctx.Err() == nil {
		return AvailabilityResult{}, ErrProbeSuperseded
	}
	return result, err
}

// Pending returns the number of clients with a probe in flight.
func (p *AvailabilityProbe) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.inflight)
}

func (p *AvailabilityProbe) begin(ctx context.Context, clientKey string) (context.Context, uint64) {
	probeCtx, cancel := context.WithCancel(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()

	if previous, ok := p.inflight[clientKey]; ok {
		previous.cancel()
	}
	p.seq++
	p.inflight[clientKey] = &probeGeneration{id: p.seq, cancel: cancel}
	return probeCtx, p.seq
}

func (p *AvailabilityProbe) current(clientKey string, generation uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	entry, ok := p.inflight[clientKey]
	return ok && entry.id == generation
}

func (p *AvailabilityProbe) finish(clientKey string, generation uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	entry, ok := p.inflight[clientKey]
	if !ok || entry.id != generation {
		return
	}
	entry.cancel()
	delete(p.inflight, clientKey)
}
