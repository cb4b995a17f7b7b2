package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r3e-network/faas-trigger-engine/pkg/eventmodel"
)

func TestTriggerLifecycle(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	trigger := &eventmodel.Trigger{
		ID:         "t1",
		UserID:     "u1",
		FunctionID: "f1",
		Condition:  eventmodel.TriggerCondition{Source: eventmodel.ConditionTime},
		Enabled:    true,
		CreatedAt:  time.Now(),
	}
	require.NoError(t, s.CreateTrigger(ctx, trigger))

	got, err := s.GetTrigger(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "f1", got.FunctionID)

	// Mutating the returned copy must not affect the stored record.
	got.FunctionID = "tampered"
	again, err := s.GetTrigger(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "f1", again.FunctionID)

	require.NoError(t, s.DeleteTrigger(ctx, "t1"))
	_, err = s.GetTrigger(ctx, "t1")
	assert.True(t, eventmodel.Is(err, eventmodel.KindNotFound))

	// Delete is idempotent.
	assert.NoError(t, s.DeleteTrigger(ctx, "t1"))
}

func TestCreateTriggerDuplicate(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	trigger := &eventmodel.Trigger{ID: "t1"}

	require.NoError(t, s.CreateTrigger(ctx, trigger))
	err := s.CreateTrigger(ctx, trigger)
	assert.True(t, eventmodel.Is(err, eventmodel.KindStorage))
}

func TestListTriggersByFunction(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	base := time.Now()
	for i, fn := range []string{"f1", "f1", "f2"} {
		require.NoError(t, s.CreateTrigger(ctx, &eventmodel.Trigger{
			ID:         string(rune('a' + i)),
			FunctionID: fn,
			CreatedAt:  base.Add(time.Duration(i) * time.Second),
		}))
	}

	out, err := s.ListTriggersByFunction(ctx, "f1")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].ID)
	assert.Equal(t, "b", out[1].ID)
}

func TestCallbackUpsert(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	cb := &eventmodel.CallbackResult{ID: "c1", TriggerID: "t1", Status: eventmodel.CallbackPending, CreatedAt: time.Now()}
	require.NoError(t, s.StoreCallback(ctx, cb))

	cb.Status = eventmodel.CallbackExecuting
	require.NoError(t, s.StoreCallback(ctx, cb))

	got, err := s.GetCallback(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, eventmodel.CallbackExecuting, got.Status)

	list, err := s.ListCallbacksByTrigger(ctx, "t1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestFunctionVersionUpdate(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	fn := &eventmodel.Function{ID: "f1", OwnerID: "u1", Metadata: eventmodel.FunctionMetadata{Version: "1.0.0"}}
	require.NoError(t, s.CreateFunction(ctx, fn))

	fn.Metadata.Version = "1.1.0"
	require.NoError(t, s.UpdateFunctionVersion(ctx, fn))

	got, err := s.GetFunction(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, "1.1.0", got.Metadata.Version)

	err = s.UpdateFunctionVersion(ctx, &eventmodel.Function{ID: "missing"})
	assert.True(t, eventmodel.Is(err, eventmodel.KindNotFound))
}

func TestOwnerOf(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.CreateFunction(context.Background(), &eventmodel.Function{ID: "f1", OwnerID: "u9"}))

	owner, err := s.OwnerOf("f1")
	require.NoError(t, err)
	assert.Equal(t, "u9", owner)

	_, err = s.OwnerOf("nope")
	assert.True(t, eventmodel.Is(err, eventmodel.KindNotFound))
}

func TestThreatEventQueryRecent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Now()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.AppendThreatEvent(ctx, eventmodel.ThreatEvent{
			Kind:      eventmodel.ThreatTooManyFailedExecutions,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	out, err := s.QueryRecentThreatEvents(ctx, base.Add(2*time.Minute), 0)
	require.NoError(t, err)
	assert.Len(t, out, 3)

	limited, err := s.QueryRecentThreatEvents(ctx, base, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}
