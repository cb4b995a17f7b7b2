package evaluator

import (
	"strings"

	"github.com/r3e-network/faas-trigger-engine/pkg/eventmodel"
)

// blockchainParam reads a string parameter from a Blockchain condition's
// params bag, treating "*" and absence identically as "don't care".
func blockchainParam(params map[string]interface{}, key string) string {
	v, ok := params[key]
	if !ok {
		return "*"
	}
	s, _ := v.(string)
	if s == "" {
		return "*"
	}
	return s
}

// evaluateBlockchain implements the Blockchain condition: every present,
// non-"*" key must case-insensitively match the corresponding flattened
// event field; block_number is a lower bound on the event's block height.
func evaluateBlockchain(params map[string]interface{}, event *eventmodel.Event) (bool, error) {
	if network := blockchainParam(params, "network"); network != "*" {
		if !strings.EqualFold(network, event.Source) {
			return false, nil
		}
	}

	if contractAddr := blockchainParam(params, "contract_address"); contractAddr != "*" {
		got := event.StringField("contract_address")
		if !strings.EqualFold(contractAddr, got) {
			return false, nil
		}
	}

	if eventName := blockchainParam(params, "event_name"); eventName != "*" {
		if !eventNameMatches(eventName, event) {
			return false, nil
		}
	}

	if methodName := blockchainParam(params, "method_name"); methodName != "*" {
		got := event.StringField("method_name")
		if !strings.EqualFold(methodName, got) {
			return false, nil
		}
	}

	if raw, ok := params["block_number"]; ok {
		minBlock, ok := toFloat64(raw)
		if !ok {
			return false, eventmodel.InvalidParametersError("block_number must be numeric")
		}
		got, ok := eventBlockNumber(event)
		if !ok {
			return false, nil
		}
		if got < minBlock {
			return false, nil
		}
	}

	return true, nil
}

// eventNameMatches resolves the "event field" that corresponds to the
// condition's event_name key: the variant's own name for block and
// transaction events, any inner entry's name for contract events, and the
// payload's event_name field for everything else.
func eventNameMatches(want string, event *eventmodel.Event) bool {
	switch event.Kind {
	case eventmodel.EventNeoBlock, eventmodel.EventEthereumBlock:
		return strings.EqualFold(want, "block")
	case eventmodel.EventNeoTransaction, eventmodel.EventEthereumTransaction:
		return strings.EqualFold(want, "transaction")
	case eventmodel.EventNeoContractEvent, eventmodel.EventEthereumContractLog:
		entries, ok := event.Field("events")
		if !ok {
			return false
		}
		arr, ok := entries.([]interface{})
		if !ok {
			return false
		}
		for _, item := range arr {
			m, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			name, _ := m["name"].(string)
			topic, _ := m["topic"].(string)
			if strings.EqualFold(want, name) || strings.EqualFold(want, topic) {
				return true
			}
		}
		return false
	default:
		return strings.EqualFold(want, event.StringField("event_name"))
	}
}

// eventBlockNumber resolves the block height field for each variant.
func eventBlockNumber(event *eventmodel.Event) (float64, bool) {
	switch event.Kind {
	case eventmodel.EventNeoBlock:
		return event.NumberField("height")
	case eventmodel.EventEthereumBlock:
		return event.NumberField("number")
	case eventmodel.EventNeoTransaction, eventmodel.EventEthereumTransaction,
		eventmodel.EventNeoContractEvent, eventmodel.EventEthereumContractLog:
		if n, ok := event.NumberField("block_height"); ok {
			return n, true
		}
		return event.NumberField("block_number")
	default:
		return event.NumberField("block_number")
	}
}

func toFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
