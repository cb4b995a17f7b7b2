package eventsource

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/r3e-network/faas-trigger-engine/pkg/eventmodel"
)

// TimeSource emits one tick event per poll interval. Time triggers are
// evaluated downstream against the tick's timestamp, so the interval only
// needs to be finer than the tightest cron schedule (one minute).
type TimeSource struct {
	cfg    Config
	logger *zap.Logger
}

func NewTimeSource(cfg Config, logger *zap.Logger) *TimeSource {
	return &TimeSource{cfg: cfg, logger: logger}
}

func (s *TimeSource) SourceTag() string { return "time" }

func (s *TimeSource) AcquireNextEvent(ctx context.Context) (*eventmodel.Event, error) {
	if err := sleep(ctx, s.cfg.pollInterval()); err != nil {
		return nil, err
	}

	now := time.Now()
	payload := map[string]interface{}{
		"timestamp": now.Unix(),
		"iso":       now.UTC().Format(time.RFC3339),
	}
	event, err := eventmodel.NewEvent(eventmodel.EventTime, s.SourceTag(), now.Unix(), payload)
	if err != nil {
		return nil, err
	}
	return applyFilter(s.cfg.Filter, event), nil
}
