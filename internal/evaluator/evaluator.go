// Package evaluator implements the trigger evaluator: given a
// TriggerCondition and an Event, decide match/no-match with
// protocol-specific rules for each of the four condition kinds.
package evaluator

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/r3e-network/faas-trigger-engine/pkg/eventmodel"
)

// Evaluator matches a trigger condition against an event.
type Evaluator interface {
	Evaluate(ctx context.Context, cond *eventmodel.TriggerCondition, event *eventmodel.Event) (bool, error)
}

// marketPrice is the evaluator's market-price cache entry: the last
// observed price and timestamp for an asset pair.
type marketPrice struct {
	price     float64
	timestamp int64
}

// StandardEvaluator is the default Evaluator implementation. It owns the
// market-price cache as shared state; the LRU cache type serializes
// access internally.
type StandardEvaluator struct {
	logger      *zap.Logger
	marketCache *lru.Cache[string, marketPrice]
}

// NewStandardEvaluator builds an evaluator with a bounded market-price
// cache so per-tenant growth stays capped under unbounded asset pairs.
func NewStandardEvaluator(logger *zap.Logger, cacheSize int) (*StandardEvaluator, error) {
	if cacheSize <= 0 {
		cacheSize = 4096
	}
	cache, err := lru.New[string, marketPrice](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create market price cache: %w", err)
	}
	return &StandardEvaluator{logger: logger, marketCache: cache}, nil
}

func (e *StandardEvaluator) Evaluate(ctx context.Context, cond *eventmodel.TriggerCondition, event *eventmodel.Event) (bool, error) {
	if cond == nil || event == nil || event.Kind == eventmodel.EventNone {
		return false, nil
	}

	switch cond.Source {
	case eventmodel.ConditionBlockchain:
		return evaluateBlockchain(cond.Params, event)
	case eventmodel.ConditionTime:
		return evaluateTime(cond.Params, event)
	case eventmodel.ConditionMarket:
		return e.evaluateMarket(cond.Params, event)
	case eventmodel.ConditionCustom:
		return evaluateCustom(cond.Params, event)
	default:
		return false, eventmodel.InvalidParametersError(fmt.Sprintf("unknown condition source: %s", cond.Source))
	}
}
