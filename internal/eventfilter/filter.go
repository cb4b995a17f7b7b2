// Package eventfilter implements the declarative Event predicate:
// every present field is an implicit AND; an irrelevant field against an
// event variant that lacks it evaluates to false, and the Event{Kind: None}
// variant never matches.
package eventfilter

import (
	"reflect"
	"strings"

	"github.com/r3e-network/faas-trigger-engine/pkg/eventmodel"
)

// Filter is a declarative predicate over events. All fields are
// optional; the zero value matches every non-None event.
type Filter struct {
	Network         string      `json:"network,omitempty"`
	EventType       string      `json:"event_type,omitempty"`
	ContractAddress string      `json:"contract_address,omitempty"`
	EventName       string      `json:"event_name,omitempty"`
	MinBlock        *uint64     `json:"min_block,omitempty"`
	TxHash          string      `json:"tx_hash,omitempty"`
	From            string      `json:"from,omitempty"`
	To              string      `json:"to,omitempty"`
	MinValue        *uint64     `json:"min_value,omitempty"`
	Custom          interface{} `json:"custom,omitempty"`
}

// eventTypeFor maps an EventKind to the event_type filter vocabulary.
func eventTypeFor(k eventmodel.EventKind) string {
	switch k {
	case eventmodel.EventNeoBlock, eventmodel.EventEthereumBlock:
		return "block"
	case eventmodel.EventNeoTransaction, eventmodel.EventEthereumTransaction:
		return "transaction"
	case eventmodel.EventNeoContractEvent, eventmodel.EventEthereumContractLog:
		return "contract_event"
	case eventmodel.EventTime:
		return "time"
	case eventmodel.EventMarket:
		return "market"
	case eventmodel.EventCustom:
		return "custom"
	default:
		return ""
	}
}

// Apply evaluates the filter against an event, returning true iff every
// present field matches.
func (f *Filter) Apply(e *eventmodel.Event) bool {
	if e == nil || e.Kind == eventmodel.EventNone {
		return false
	}

	if f.Network != "" && !strings.EqualFold(f.Network, e.Source) {
		return false
	}
	if f.EventType != "" && f.EventType != eventTypeFor(e.Kind) {
		return false
	}
	if f.ContractAddress != "" && !matchesContractAddress(f.ContractAddress, e) {
		return false
	}
	if f.EventName != "" && !matchesEventName(f.EventName, e) {
		return false
	}
	if f.MinBlock != nil && !matchesMinBlock(*f.MinBlock, e) {
		return false
	}
	if f.TxHash != "" && !matchesTxHash(f.TxHash, e) {
		return false
	}
	if f.From != "" && !matchesAddressField(f.From, "from", e) {
		return false
	}
	if f.To != "" && !matchesAddressField(f.To, "to", e) {
		return false
	}
	if f.MinValue != nil && !matchesMinValue(*f.MinValue, e) {
		return false
	}
	if f.Custom != nil && !matchesCustom(f.Custom, e) {
		return false
	}
	return true
}

func matchesContractAddress(want string, e *eventmodel.Event) bool {
	switch e.Kind {
	case eventmodel.EventNeoContractEvent, eventmodel.EventEthereumContractLog:
		got := e.StringField("contract_address")
		return got != "" && strings.EqualFold(got, want)
	default:
		return false
	}
}

func matchesEventName(want string, e *eventmodel.Event) bool {
	switch e.Kind {
	case eventmodel.EventNeoContractEvent:
		return innerEntryMatches(e, "events", "name", want, false)
	case eventmodel.EventEthereumContractLog:
		return innerEntryMatches(e, "events", "topic", want, false)
	default:
		return false
	}
}

// innerEntryMatches requires at least one element of the payload's `arrKey`
// array to have `fieldKey` equal to want.
func innerEntryMatches(e *eventmodel.Event, arrKey, fieldKey, want string, ci bool) bool {
	v, ok := e.Field(arrKey)
	if !ok {
		return false
	}
	arr, ok := v.([]interface{})
	if !ok {
		return false
	}
	for _, item := range arr {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		s, _ := m[fieldKey].(string)
		if ci {
			if strings.EqualFold(s, want) {
				return true
			}
		} else if s == want {
			return true
		}
	}
	return false
}

func matchesMinBlock(min uint64, e *eventmodel.Event) bool {
	switch e.Kind {
	case eventmodel.EventNeoBlock:
		n, ok := e.NumberField("height")
		return ok && uint64(n) >= min
	case eventmodel.EventEthereumBlock:
		n, ok := e.NumberField("number")
		return ok && uint64(n) >= min
	default:
		return false
	}
}

func matchesTxHash(want string, e *eventmodel.Event) bool {
	switch e.Kind {
	case eventmodel.EventNeoTransaction, eventmodel.EventEthereumTransaction:
		got := e.StringField("hash")
		return got != "" && got == want
	default:
		return false
	}
}

func matchesAddressField(want, key string, e *eventmodel.Event) bool {
	switch e.Kind {
	case eventmodel.EventNeoTransaction, eventmodel.EventEthereumTransaction:
		got := e.StringField(key)
		return got != "" && strings.EqualFold(got, want)
	default:
		return false
	}
}

func matchesMinValue(min uint64, e *eventmodel.Event) bool {
	switch e.Kind {
	case eventmodel.EventNeoTransaction, eventmodel.EventEthereumTransaction:
		n, ok := e.NumberField("value")
		return ok && uint64(n) >= min
	default:
		return false
	}
}

// matchesCustom performs the deep subset match: for an object,
// every key in want must be present in the event's data with an equal
// value; for an array, every element of want must appear in the data.
func matchesCustom(want interface{}, e *eventmodel.Event) bool {
	var data interface{}
	if e.Kind == eventmodel.EventCustom {
		v, ok := e.Field("data")
		if !ok {
			return false
		}
		data = v
	} else {
		v, ok := e.Field("data")
		if !ok {
			return false
		}
		data = v
	}
	return DeepSubsetMatch(want, data)
}

// DeepSubsetMatch is the shared object/array subset predicate used by the
// event filter's `custom` field and the evaluator's Custom condition
// `partial` matching mode; they are defined identically.
func DeepSubsetMatch(want, got interface{}) bool {
	switch w := want.(type) {
	case map[string]interface{}:
		g, ok := got.(map[string]interface{})
		if !ok {
			return false
		}
		for k, v := range w {
			gv, present := g[k]
			if !present || !reflect.DeepEqual(normalizeNumber(v), normalizeNumber(gv)) {
				return false
			}
		}
		return true
	case []interface{}:
		g, ok := got.([]interface{})
		if !ok {
			return false
		}
		for _, item := range w {
			if !containsValue(g, item) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func containsValue(arr []interface{}, item interface{}) bool {
	for _, v := range arr {
		if reflect.DeepEqual(normalizeNumber(v), normalizeNumber(item)) {
			return true
		}
	}
	return false
}

// normalizeNumber collapses int/float discrepancies introduced by building
// filters from Go literals vs. decoding them from JSON, so DeepEqual
// compares values, not representations.
func normalizeNumber(v interface{}) interface{} {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return v
	}
}
