// Package integration exercises the full event->execution pipeline: a
// custom source pumped into the dispatcher, triggers evaluated, and the
// real goja sandbox executing user code end to end.
package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/r3e-network/faas-trigger-engine/internal/dispatcher"
	"github.com/r3e-network/faas-trigger-engine/internal/evaluator"
	"github.com/r3e-network/faas-trigger-engine/internal/eventsource"
	"github.com/r3e-network/faas-trigger-engine/internal/sandbox"
	"github.com/r3e-network/faas-trigger-engine/internal/storage"
	"github.com/r3e-network/faas-trigger-engine/internal/threatdetector"
	"github.com/r3e-network/faas-trigger-engine/internal/triggerregistry"
	"github.com/r3e-network/faas-trigger-engine/pkg/eventmodel"
)

type pipeline struct {
	store    *storage.MemoryStore
	registry *triggerregistry.Registry
	source   *eventsource.CustomSource
	cancel   context.CancelFunc
	done     chan struct{}
}

func startPipeline(t *testing.T) *pipeline {
	t.Helper()

	log := zap.NewNop()
	store := storage.NewMemoryStore()
	registry := triggerregistry.New(store)

	ev, err := evaluator.NewStandardEvaluator(log, 128)
	require.NoError(t, err)

	detector := threatdetector.New(threatdetector.DefaultConfig(), log)
	box := sandbox.New(sandbox.DefaultConfig(), log)
	source := eventsource.NewCustomSource("integration", eventsource.Config{}, nil, log)

	ctx, cancel := context.WithCancel(context.Background())
	pump := eventsource.NewPump(log, source)
	pump.Start(ctx)

	disp := dispatcher.New(dispatcher.Config{Workers: 2, DefaultDeadline: 5 * time.Second},
		registry, ev, store, store, box, detector, log, nil)

	done := make(chan struct{})
	go func() {
		disp.Run(ctx, pump.Events())
		close(done)
	}()

	p := &pipeline{store: store, registry: registry, source: source, cancel: cancel, done: done}
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return p
}

func (p *pipeline) waitForCallbacks(t *testing.T, triggerID string, n int) []*eventmodel.CallbackResult {
	t.Helper()
	var out []*eventmodel.CallbackResult
	require.Eventually(t, func() bool {
		results, err := p.store.ListCallbacksByTrigger(context.Background(), triggerID)
		if err != nil || len(results) < n {
			return false
		}
		for _, r := range results {
			if !r.Status.IsTerminal() {
				return false
			}
		}
		out = results
		return true
	}, 10*time.Second, 20*time.Millisecond)
	return out
}

func TestCustomEventRunsFunctionEndToEnd(t *testing.T) {
	p := startPipeline(t)

	require.NoError(t, p.store.CreateFunction(context.Background(), &eventmodel.Function{
		ID:      "fn-echo",
		OwnerID: "alice",
		Name:    "echo",
		Code: `export default function(payload) {
			return { echoed: payload.event_data.data.value, callback: payload.callback_id };
		}`,
		Metadata: eventmodel.FunctionMetadata{Version: "1.0.0", Description: "echo"},
	}))

	triggerID, err := p.registry.Register("alice", "fn-echo", eventmodel.TriggerCondition{
		Source: eventmodel.ConditionCustom,
		Params: map[string]interface{}{"event_name": "ping"},
	})
	require.NoError(t, err)

	require.True(t, p.source.Emit("ping", map[string]interface{}{"value": 42.0}))

	results := p.waitForCallbacks(t, triggerID, 1)
	require.Len(t, results, 1)
	assert.Equal(t, eventmodel.CallbackSucceeded, results[0].Status)

	m, ok := results[0].Result.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, int64(42), m["echoed"])
	assert.Equal(t, results[0].ID, m["callback"])
}

func TestThrowingFunctionRecordsFailure(t *testing.T) {
	p := startPipeline(t)

	require.NoError(t, p.store.CreateFunction(context.Background(), &eventmodel.Function{
		ID:      "fn-bad",
		OwnerID: "bob",
		Name:    "always-throws",
		Code:    `export default function() { throw new Error("integration boom"); }`,
		Metadata: eventmodel.FunctionMetadata{Version: "1.0.0", Description: "throws"},
	}))

	triggerID, err := p.registry.Register("bob", "fn-bad", eventmodel.TriggerCondition{
		Source: eventmodel.ConditionCustom,
		Params: map[string]interface{}{"event_name": "crash"},
	})
	require.NoError(t, err)

	require.True(t, p.source.Emit("crash", nil))

	results := p.waitForCallbacks(t, triggerID, 1)
	assert.Equal(t, eventmodel.CallbackFailed, results[0].Status)
	assert.Contains(t, results[0].Error, "integration boom")
}

func TestNonMatchingEventCreatesNoCallback(t *testing.T) {
	p := startPipeline(t)

	require.NoError(t, p.store.CreateFunction(context.Background(), &eventmodel.Function{
		ID:      "fn-idle",
		OwnerID: "carol",
		Name:    "idle",
		Code:    `export default function() { return "never"; }`,
		Metadata: eventmodel.FunctionMetadata{Version: "1.0.0", Description: "idle"},
	}))

	triggerID, err := p.registry.Register("carol", "fn-idle", eventmodel.TriggerCondition{
		Source: eventmodel.ConditionCustom,
		Params: map[string]interface{}{"event_name": "wanted"},
	})
	require.NoError(t, err)

	require.True(t, p.source.Emit("unwanted", nil))
	time.Sleep(300 * time.Millisecond)

	results, err := p.store.ListCallbacksByTrigger(context.Background(), triggerID)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestUnregisteredTriggerNotDispatched(t *testing.T) {
	p := startPipeline(t)

	require.NoError(t, p.store.CreateFunction(context.Background(), &eventmodel.Function{
		ID:      "fn-gone",
		OwnerID: "dave",
		Name:    "gone",
		Code:    `export default function() { return 1; }`,
		Metadata: eventmodel.FunctionMetadata{Version: "1.0.0", Description: "gone"},
	}))

	triggerID, err := p.registry.Register("dave", "fn-gone", eventmodel.TriggerCondition{
		Source: eventmodel.ConditionCustom,
		Params: map[string]interface{}{"event_name": "x"},
	})
	require.NoError(t, err)
	p.registry.Unregister(triggerID)

	require.True(t, p.source.Emit("x", nil))
	time.Sleep(300 * time.Millisecond)

	results, err := p.store.ListCallbacksByTrigger(context.Background(), triggerID)
	require.NoError(t, err)
	assert.Empty(t, results)

	_, err = p.registry.Get(triggerID)
	assert.True(t, eventmodel.Is(err, eventmodel.KindNotFound))
}
