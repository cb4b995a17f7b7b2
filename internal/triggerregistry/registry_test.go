package triggerregistry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r3e-network/faas-trigger-engine/pkg/eventmodel"
)

type fakeOwners struct{ owner map[string]string }

func (f fakeOwners) OwnerOf(functionID string) (string, error) {
	owner, ok := f.owner[functionID]
	if !ok {
		return "", eventmodel.NotFoundError("function not found")
	}
	return owner, nil
}

func TestRegister_RejectsNonOwner(t *testing.T) {
	reg := New(fakeOwners{owner: map[string]string{"fn1": "alice"}})
	_, err := reg.Register("bob", "fn1", eventmodel.TriggerCondition{Source: eventmodel.ConditionBlockchain})
	require.Error(t, err)
	assert.Equal(t, eventmodel.KindUnauthorized, err.(*eventmodel.Error).Kind)
}

func TestRegisterUnregisterLookup_IsIdempotentAndNotFound(t *testing.T) {
	reg := New(fakeOwners{owner: map[string]string{"fn1": "alice"}})
	id, err := reg.Register("alice", "fn1", eventmodel.TriggerCondition{Source: eventmodel.ConditionBlockchain})
	require.NoError(t, err)

	reg.Unregister(id)
	reg.Unregister(id) // idempotent

	_, err = reg.Get(id)
	require.Error(t, err)
	assert.Equal(t, eventmodel.KindNotFound, err.(*eventmodel.Error).Kind)
}

func TestListBySource_OnlyEnabled(t *testing.T) {
	reg := New(fakeOwners{owner: map[string]string{"fn1": "alice"}})
	id, err := reg.Register("alice", "fn1", eventmodel.TriggerCondition{Source: eventmodel.ConditionMarket})
	require.NoError(t, err)

	assert.Len(t, reg.ListBySource(eventmodel.ConditionMarket), 1)

	require.NoError(t, reg.Enable(id, false))
	assert.Len(t, reg.ListBySource(eventmodel.ConditionMarket), 0)
}

func TestListForFunction(t *testing.T) {
	reg := New(fakeOwners{owner: map[string]string{"fn1": "alice"}})
	_, err := reg.Register("alice", "fn1", eventmodel.TriggerCondition{Source: eventmodel.ConditionTime})
	require.NoError(t, err)
	_, err = reg.Register("alice", "fn1", eventmodel.TriggerCondition{Source: eventmodel.ConditionMarket})
	require.NoError(t, err)

	assert.Len(t, reg.ListForFunction("fn1"), 2)
}
