package eventsource

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/r3e-network/faas-trigger-engine/pkg/eventmodel"
)

// CustomSource is a channel-backed source for programmatic event
// injection: other subsystems (and tests) push payloads in with Emit and
// the dispatcher pulls uniform events out. An optional Guard expression
// screens payloads before they are emitted.
type CustomSource struct {
	tag    string
	cfg    Config
	guard  *Guard
	logger *zap.Logger

	events chan *eventmodel.Event
}

// NewCustomSource builds a source with the given tag. guard may be nil.
func NewCustomSource(tag string, cfg Config, guard *Guard, logger *zap.Logger) *CustomSource {
	if tag == "" {
		tag = "custom"
	}
	return &CustomSource{
		tag:    tag,
		cfg:    cfg,
		guard:  guard,
		logger: logger,
		events: make(chan *eventmodel.Event, 64),
	}
}

func (s *CustomSource) SourceTag() string { return s.tag }

// Emit injects a custom event carrying {event_name, data}. It returns
// false if the event was rejected by the guard or the buffer is full.
func (s *CustomSource) Emit(eventName string, data interface{}) bool {
	payload := map[string]interface{}{
		"event_name": eventName,
		"data":       data,
	}
	event, err := eventmodel.NewEvent(eventmodel.EventCustom, s.tag, time.Now().Unix(), payload)
	if err != nil {
		s.logger.Warn("failed to build custom event", zap.Error(err))
		return false
	}

	if pass, err := s.guard.Allow(event); err != nil || !pass {
		if err != nil {
			s.logger.Warn("guard evaluation failed", zap.Error(err))
		}
		return false
	}

	select {
	case s.events <- event:
		return true
	default:
		s.logger.Warn("custom event buffer full, dropping event",
			zap.String("source", s.tag),
			zap.String("event_name", eventName))
		return false
	}
}

func (s *CustomSource) AcquireNextEvent(ctx context.Context) (*eventmodel.Event, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case event := <-s.events:
		return applyFilter(s.cfg.Filter, event), nil
	}
}
