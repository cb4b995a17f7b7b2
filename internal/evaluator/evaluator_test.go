package evaluator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/r3e-network/faas-trigger-engine/pkg/eventmodel"
)

func newTestEvaluator(t *testing.T) *StandardEvaluator {
	t.Helper()
	ev, err := NewStandardEvaluator(zap.NewNop(), 128)
	require.NoError(t, err)
	return ev
}

func blockchainEvent(t *testing.T, source string, fields map[string]interface{}) *eventmodel.Event {
	t.Helper()
	e, err := eventmodel.NewEvent(eventmodel.EventNeoContractEvent, source, 1000, fields)
	require.NoError(t, err)
	return e
}

func TestEvaluateBlockchain_WildcardNetwork(t *testing.T) {
	ev := newTestEvaluator(t)
	cond := &eventmodel.TriggerCondition{
		Source: eventmodel.ConditionBlockchain,
		Params: map[string]interface{}{"network": "*"},
	}
	e := blockchainEvent(t, "ethereum", map[string]interface{}{})
	matched, err := ev.Evaluate(context.Background(), cond, e)
	require.NoError(t, err)
	assert.True(t, matched)
}

func TestEvaluateBlockchain_MinBlockBoundary(t *testing.T) {
	ev := newTestEvaluator(t)
	cond := &eventmodel.TriggerCondition{
		Source: eventmodel.ConditionBlockchain,
		Params: map[string]interface{}{"block_number": 100.0},
	}

	matches := func(height float64) bool {
		e := blockchainEvent(t, "neo", map[string]interface{}{"block_number": height})
		ok, err := ev.Evaluate(context.Background(), cond, e)
		require.NoError(t, err)
		return ok
	}

	assert.True(t, matches(100))
	assert.True(t, matches(101))
	assert.False(t, matches(99))
}

func TestEvaluateMarket_ThresholdAndCache(t *testing.T) {
	ev := newTestEvaluator(t)
	cond := &eventmodel.TriggerCondition{
		Source: eventmodel.ConditionMarket,
		Params: map[string]interface{}{"asset_pair": "NEO/USD", "condition": "gt", "price": 50.0},
	}

	e1, err := eventmodel.NewEvent(eventmodel.EventMarket, "market", 1000, map[string]interface{}{
		"asset_pair": "NEO/USD", "price": 55.0,
	})
	require.NoError(t, err)
	matched, err := ev.Evaluate(context.Background(), cond, e1)
	require.NoError(t, err)
	assert.True(t, matched)

	e2, err := eventmodel.NewEvent(eventmodel.EventMarket, "market", 1001, map[string]interface{}{
		"asset_pair": "NEO/USD", "price": 49.0,
	})
	require.NoError(t, err)
	matched, err = ev.Evaluate(context.Background(), cond, e2)
	require.NoError(t, err)
	assert.False(t, matched)

	cached, ok := ev.marketCache.Get("NEO/USD")
	require.True(t, ok)
	assert.Equal(t, 49.0, cached.price)
}

func TestEvaluateMarket_PctChange(t *testing.T) {
	ev := newTestEvaluator(t)
	cond := &eventmodel.TriggerCondition{
		Source: eventmodel.ConditionMarket,
		Params: map[string]interface{}{"asset_pair": "NEO/USD", "condition": "pct_change", "price": 5.0},
	}

	seed, err := eventmodel.NewEvent(eventmodel.EventMarket, "market", 1000, map[string]interface{}{
		"asset_pair": "NEO/USD", "price": 100.0,
	})
	require.NoError(t, err)
	_, err = ev.Evaluate(context.Background(), cond, seed)
	require.NoError(t, err)

	check := func(price float64) bool {
		e, err := eventmodel.NewEvent(eventmodel.EventMarket, "market", 1001, map[string]interface{}{
			"asset_pair": "NEO/USD", "price": price,
		})
		require.NoError(t, err)
		matched, err := ev.Evaluate(context.Background(), cond, e)
		require.NoError(t, err)
		return matched
	}

	assert.True(t, check(106))
	ev.marketCache.Add("NEO/USD", marketPrice{price: 100, timestamp: 1000})
	assert.True(t, check(94))
	ev.marketCache.Add("NEO/USD", marketPrice{price: 100, timestamp: 1000})
	assert.False(t, check(104))
}

func TestEvaluateTime_WithinWindow(t *testing.T) {
	cond := &eventmodel.TriggerCondition{
		Source: eventmodel.ConditionTime,
		Params: map[string]interface{}{"cron": "0 * * * *", "timezone": "UTC"},
	}

	// 2024-01-01T00:00:30Z is within 60s of the 00:00:00 tick.
	e, err := eventmodel.NewEvent(eventmodel.EventTime, "time", 1704067230, map[string]interface{}{})
	require.NoError(t, err)

	ev := newTestEvaluator(t)
	matched, err := ev.Evaluate(context.Background(), cond, e)
	require.NoError(t, err)
	assert.True(t, matched)
}

func TestEvaluateTime_OutsideWindow(t *testing.T) {
	cond := &eventmodel.TriggerCondition{
		Source: eventmodel.ConditionTime,
		Params: map[string]interface{}{"cron": "0 * * * *", "timezone": "UTC"},
	}

	e, err := eventmodel.NewEvent(eventmodel.EventTime, "time", 1704067800, map[string]interface{}{}) // 00:10:00
	require.NoError(t, err)

	ev := newTestEvaluator(t)
	matched, err := ev.Evaluate(context.Background(), cond, e)
	require.NoError(t, err)
	assert.False(t, matched)
}

func TestEvaluateTime_InvalidCron(t *testing.T) {
	cond := &eventmodel.TriggerCondition{
		Source: eventmodel.ConditionTime,
		Params: map[string]interface{}{"cron": "not a cron"},
	}
	e, err := eventmodel.NewEvent(eventmodel.EventTime, "time", 1000, map[string]interface{}{})
	require.NoError(t, err)

	ev := newTestEvaluator(t)
	_, err = ev.Evaluate(context.Background(), cond, e)
	require.Error(t, err)
	assert.Equal(t, eventmodel.KindInvalidParams, err.(*eventmodel.Error).Kind)
}

func TestEvaluateBlockchain_BlockEventNameAndHeight(t *testing.T) {
	ev := newTestEvaluator(t)
	cond := &eventmodel.TriggerCondition{
		Source: eventmodel.ConditionBlockchain,
		Params: map[string]interface{}{"network": "neo", "event_name": "block", "block_number": 1000.0},
	}

	block, err := eventmodel.NewEvent(eventmodel.EventNeoBlock, "neo", 1000, map[string]interface{}{
		"height": 1500.0, "hash": "0xabc",
	})
	require.NoError(t, err)

	matched, err := ev.Evaluate(context.Background(), cond, block)
	require.NoError(t, err)
	assert.True(t, matched)

	low, err := eventmodel.NewEvent(eventmodel.EventNeoBlock, "neo", 1000, map[string]interface{}{
		"height": 999.0,
	})
	require.NoError(t, err)
	matched, err = ev.Evaluate(context.Background(), cond, low)
	require.NoError(t, err)
	assert.False(t, matched)
}

func TestEvaluateCustom_RegexAndJSONPath(t *testing.T) {
	ev := newTestEvaluator(t)

	e, err := eventmodel.NewEvent(eventmodel.EventCustom, "custom", 1000, map[string]interface{}{
		"event_name": "price-alert",
		"data":       map[string]interface{}{"symbol": "NEOUSD", "price": 12.5},
	})
	require.NoError(t, err)

	regexCond := &eventmodel.TriggerCondition{
		Source: eventmodel.ConditionCustom,
		Params: map[string]interface{}{"matching_mode": "regex", "event_data": "NEO.*"},
	}
	matched, err := ev.Evaluate(context.Background(), regexCond, e)
	require.NoError(t, err)
	assert.True(t, matched)

	jsonpathCond := &eventmodel.TriggerCondition{
		Source: eventmodel.ConditionCustom,
		Params: map[string]interface{}{"matching_mode": "jsonpath", "event_data": "$.symbol", "expected_value": "NEOUSD"},
	}
	matched, err = ev.Evaluate(context.Background(), jsonpathCond, e)
	require.NoError(t, err)
	assert.True(t, matched)
}

func TestEvaluateCustom_JSONPathMissingKeyIsNoMatch(t *testing.T) {
	ev := newTestEvaluator(t)

	e, err := eventmodel.NewEvent(eventmodel.EventCustom, "custom", 1000, map[string]interface{}{
		"event_name": "price-alert",
		"data":       map[string]interface{}{"symbol": "NEOUSD"},
	})
	require.NoError(t, err)

	// A valid path that resolves to nothing is a non-match, not an error.
	absent := &eventmodel.TriggerCondition{
		Source: eventmodel.ConditionCustom,
		Params: map[string]interface{}{"matching_mode": "jsonpath", "event_data": "$.missing"},
	}
	matched, err := ev.Evaluate(context.Background(), absent, e)
	require.NoError(t, err)
	assert.False(t, matched)

	malformed := &eventmodel.TriggerCondition{
		Source: eventmodel.ConditionCustom,
		Params: map[string]interface{}{"matching_mode": "jsonpath", "event_data": "$[["},
	}
	_, err = ev.Evaluate(context.Background(), malformed, e)
	require.Error(t, err)
	assert.True(t, eventmodel.Is(err, eventmodel.KindInvalidParams))
}
