package eventsource

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/r3e-network/faas-trigger-engine/pkg/eventmodel"
)

// Synthetic mock events are the sources' failure policy: when an
// upstream RPC call fails or returns malformed data, the source emits a
// well-known marker payload instead of propagating the failure, and the
// cursor does not advance. Downstream filters drop them naturally; empty
// filters see a heartbeat. The marker is the source-tagged hash prefix
// (e.g. "neo_block_hash_<cursor>") so tests and operators can tell
// synthetic data from real chain data at a glance.

func mockEvent(logger *zap.Logger, kind eventmodel.EventKind, source string, cause error, payload map[string]interface{}) *eventmodel.Event {
	logger.Warn("emitting synthetic mock event",
		zap.String("source", source),
		zap.String("kind", string(kind)),
		zap.Error(cause))
	event, err := eventmodel.NewEvent(kind, source, time.Now().Unix(), payload)
	if err != nil {
		return &eventmodel.Event{Kind: eventmodel.EventNone, Source: source, Timestamp: time.Now().Unix()}
	}
	event.IsMock = true
	return event
}

func mockNeoBlockPayload(cursor uint32) map[string]interface{} {
	return map[string]interface{}{
		"height":    float64(cursor),
		"hash":      fmt.Sprintf("neo_block_hash_%d", cursor),
		"prev_hash": fmt.Sprintf("neo_block_hash_%d", cursor-1),
		"time":      time.Now().UnixMilli(),
		"tx_count":  0,
	}
}

func mockNeoTransactionPayload(cursor uint32) map[string]interface{} {
	return map[string]interface{}{
		"hash":         fmt.Sprintf("neo_tx_hash_%d", cursor),
		"block_height": float64(cursor),
		"from":         "neo_mock_sender",
		"to":           "neo_mock_recipient",
		"value":        float64(0),
		"script":       "",
	}
}

func mockNeoNotificationPayload(cursor uint32) map[string]interface{} {
	return map[string]interface{}{
		"contract_address": "neo_contract_hash_mock",
		"block_height":     float64(cursor),
		"events": []interface{}{
			map[string]interface{}{
				"name": "mock_notification",
				"data": map[string]interface{}{},
			},
		},
	}
}

func mockEthereumBlockPayload(cursor uint64) map[string]interface{} {
	return map[string]interface{}{
		"number":       float64(cursor),
		"hash":         fmt.Sprintf("ethereum_block_hash_%d", cursor),
		"parent_hash":  fmt.Sprintf("ethereum_block_hash_%d", cursor-1),
		"miner":        "0x0000000000000000000000000000000000000000",
		"timestamp":    time.Now().Unix(),
		"transactions": []interface{}{},
	}
}

func mockEthereumTransactionPayload(cursor uint64) map[string]interface{} {
	return map[string]interface{}{
		"hash":         fmt.Sprintf("ethereum_tx_hash_%d", cursor),
		"block_number": float64(cursor),
		"from":         "0x0000000000000000000000000000000000000000",
		"to":           "0x0000000000000000000000000000000000000000",
		"value":        float64(0),
		"gas":          float64(0),
	}
}

func mockEthereumLogPayload(cursor uint64) map[string]interface{} {
	return map[string]interface{}{
		"contract_address": "0x0000000000000000000000000000000000000000",
		"block_number":     float64(cursor),
		"events": []interface{}{
			map[string]interface{}{
				"topic":  "ethereum_log_topic_mock",
				"topics": []interface{}{"ethereum_log_topic_mock"},
				"data":   "0x",
			},
		},
	}
}

func mockMarketPayload(assetPair string) map[string]interface{} {
	return map[string]interface{}{
		"asset_pair": assetPair,
		"price":      float64(0),
		"provider":   "market_mock",
	}
}
