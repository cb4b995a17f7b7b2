// Package eventsource implements the pluggable event sources:
// Neo and Ethereum blockchain pollers, a time ticker, a market feed, and
// programmatic/HTTP custom sources, all producing the uniform
// eventmodel.Event stream consumed by the dispatcher.
package eventsource

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/r3e-network/faas-trigger-engine/internal/eventfilter"
	"github.com/r3e-network/faas-trigger-engine/pkg/eventmodel"
)

// Source is the capability set every event source implements. Sources are
// single-producer: AcquireNextEvent is never called concurrently on one
// Source, but distinct Sources run independently.
type Source interface {
	// AcquireNextEvent blocks (honoring ctx) until the next event is
	// available. Sources that poll upstream feeds sleep their configured
	// interval before each acquisition to bound RPC load.
	AcquireNextEvent(ctx context.Context) (*eventmodel.Event, error)

	// SourceTag returns the stable tag stamped on emitted events ("neo",
	// "ethereum", "time", "market", or a custom source name).
	SourceTag() string
}

// Config is the common construction profile: an upstream endpoint,
// a poll interval, and an optional declarative filter applied before the
// event leaves the source. Events rejected by the filter are replaced with
// an Event of kind None, which nothing downstream ever matches.
type Config struct {
	EndpointURL  string
	PollInterval time.Duration
	Filter       *eventfilter.Filter
}

func (c Config) pollInterval() time.Duration {
	if c.PollInterval <= 0 {
		return 5 * time.Second
	}
	return c.PollInterval
}

// sleep waits one poll interval or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// applyFilter funnels an event through the source's optional filter,
// degrading rejected events to kind None rather than dropping them, so the
// source still produces a heartbeat for the dispatcher's fan-in loop.
func applyFilter(f *eventfilter.Filter, e *eventmodel.Event) *eventmodel.Event {
	if f == nil || e == nil || f.Apply(e) {
		return e
	}
	return &eventmodel.Event{Kind: eventmodel.EventNone, Source: e.Source, Timestamp: e.Timestamp}
}

// Pump fans a set of sources into one channel. Each source gets its own
// goroutine so a slow RPC endpoint never stalls the others; cross-source
// ordering is explicitly not guaranteed.
type Pump struct {
	sources []Source
	logger  *zap.Logger
	out     chan *eventmodel.Event

	wg sync.WaitGroup
}

// NewPump builds a pump over the given sources. The channel buffer absorbs
// short bursts without blocking producers.
func NewPump(logger *zap.Logger, sources ...Source) *Pump {
	return &Pump{
		sources: sources,
		logger:  logger,
		out:     make(chan *eventmodel.Event, 64),
	}
}

// Events returns the fan-in channel. It is closed after Start's context is
// cancelled and every source goroutine has drained.
func (p *Pump) Events() <-chan *eventmodel.Event { return p.out }

// Start launches one producer goroutine per source and returns immediately.
func (p *Pump) Start(ctx context.Context) {
	for _, src := range p.sources {
		p.wg.Add(1)
		go p.run(ctx, src)
	}
	go func() {
		p.wg.Wait()
		close(p.out)
	}()
}

func (p *Pump) run(ctx context.Context, src Source) {
	defer p.wg.Done()
	for {
		event, err := src.AcquireNextEvent(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Warn("source acquisition failed",
				zap.String("source", src.SourceTag()),
				zap.Error(err))
			continue
		}
		if event == nil || event.Kind == eventmodel.EventNone {
			continue
		}
		select {
		case p.out <- event:
		case <-ctx.Done():
			return
		}
	}
}
