package eventfilter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r3e-network/faas-trigger-engine/pkg/eventmodel"
)

func neoBlock(t *testing.T, height int) *eventmodel.Event {
	t.Helper()
	e, err := eventmodel.NewEvent(eventmodel.EventNeoBlock, "neo", 1000, map[string]interface{}{
		"height": height,
		"hash":   "0xabc",
	})
	require.NoError(t, err)
	return e
}

func TestFilter_MinBlock(t *testing.T) {
	ptr := func(v uint64) *uint64 { return &v }

	f := &Filter{MinBlock: ptr(100)}
	assert.True(t, f.Apply(neoBlock(t, 100)))
	assert.True(t, f.Apply(neoBlock(t, 101)))
	assert.False(t, f.Apply(neoBlock(t, 99)))
}

func TestFilter_NetworkAndEventType(t *testing.T) {
	e := neoBlock(t, 1500)

	assert.True(t, (&Filter{Network: "neo"}).Apply(e))
	assert.False(t, (&Filter{Network: "ethereum"}).Apply(e))
	assert.True(t, (&Filter{EventType: "block"}).Apply(e))
	assert.False(t, (&Filter{EventType: "transaction"}).Apply(e))
}

func TestFilter_NoneEventNeverMatches(t *testing.T) {
	e := &eventmodel.Event{Kind: eventmodel.EventNone}
	assert.False(t, (&Filter{}).Apply(e))
}

func TestFilter_IrrelevantFieldAgainstWrongVariantIsFalse(t *testing.T) {
	e := neoBlock(t, 1500)
	assert.False(t, (&Filter{From: "0xdeadbeef"}).Apply(e))
}

func TestFilter_CustomDeepSubset(t *testing.T) {
	e, err := eventmodel.NewEvent(eventmodel.EventCustom, "custom", 1000, map[string]interface{}{
		"event_name": "ping",
		"data": map[string]interface{}{
			"a": 1,
			"b": "two",
		},
	})
	require.NoError(t, err)

	f := &Filter{Custom: map[string]interface{}{"a": 1}}
	assert.True(t, f.Apply(e))

	f2 := &Filter{Custom: map[string]interface{}{"a": 2}}
	assert.False(t, f2.Apply(e))
}

func TestFilter_EthereumMinBlockHex(t *testing.T) {
	e, err := eventmodel.NewEvent(eventmodel.EventEthereumBlock, "ethereum", 1000, map[string]interface{}{
		"number": "0x1b4",
	})
	require.NoError(t, err)

	min := uint64(0x100)
	assert.True(t, (&Filter{MinBlock: &min}).Apply(e))

	min2 := uint64(0x200)
	assert.False(t, (&Filter{MinBlock: &min2}).Apply(e))
}
