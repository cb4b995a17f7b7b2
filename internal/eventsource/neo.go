package eventsource

import (
	"context"
	"fmt"
	"time"

	nrpc "github.com/joeqian10/neo3-gogogo/rpc"
	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/r3e-network/faas-trigger-engine/pkg/eventmodel"
)

// neoTriggerCategory is the small state machine a Neo source cycles
// through so one logical source produces events of several variants in
// turn: Block -> Tx -> Notification -> Block -> ...
type neoTriggerCategory int

const (
	neoNewBlock neoTriggerCategory = iota
	neoNewTx
	neoNotification
)

// NeoSource polls a Neo N3 RPC node. Block and notification data come from
// the neo-go client; the mempool transaction category uses the
// neo3-gogogo client, which exposes getrawmempool directly.
type NeoSource struct {
	cfg    Config
	logger *zap.Logger

	client  *rpcclient.Client
	mempool *nrpc.RpcClient

	category neoTriggerCategory
	cursor   uint32 // last fully processed block height
	txIndex  int    // rotation position within the mempool snapshot
}

// NewNeoSource dials the configured RPC endpoint. Dial failure is not
// fatal: the source starts in mock mode and retries the connection on each
// acquisition, consistent with the mock-event failure policy.
func NewNeoSource(cfg Config, logger *zap.Logger) *NeoSource {
	s := &NeoSource{
		cfg:     cfg,
		logger:  logger,
		mempool: nrpc.NewClient(cfg.EndpointURL),
	}
	s.dial()
	return s
}

func (s *NeoSource) dial() {
	if s.client != nil {
		return
	}
	client, err := rpcclient.New(context.Background(), s.cfg.EndpointURL, rpcclient.Options{
		DialTimeout:    10 * time.Second,
		RequestTimeout: 30 * time.Second,
	})
	if err != nil {
		s.logger.Warn("neo rpc dial failed, source will emit mock events",
			zap.String("endpoint", s.cfg.EndpointURL),
			zap.Error(err))
		return
	}
	s.client = client
}

func (s *NeoSource) SourceTag() string { return "neo" }

// AcquireNextEvent sleeps the poll interval, then synthesizes the next
// event for the current trigger category and advances the rotation.
func (s *NeoSource) AcquireNextEvent(ctx context.Context) (*eventmodel.Event, error) {
	if err := sleep(ctx, s.cfg.pollInterval()); err != nil {
		return nil, err
	}
	s.dial()

	var event *eventmodel.Event
	switch s.category {
	case neoNewBlock:
		event = s.nextBlockEvent()
		s.category = neoNewTx
	case neoNewTx:
		event = s.nextTransactionEvent()
		s.category = neoNotification
	case neoNotification:
		event = s.nextNotificationEvent()
		s.category = neoNewBlock
	}
	return applyFilter(s.cfg.Filter, event), nil
}

func (s *NeoSource) nextBlockEvent() *eventmodel.Event {
	height, err := s.chainHeight()
	if err != nil {
		return mockEvent(s.logger, eventmodel.EventNeoBlock, s.SourceTag(), err, mockNeoBlockPayload(s.cursor+1))
	}
	if height <= s.cursor {
		// No new block yet; a mock heartbeat keeps the stream alive
		// without moving the cursor.
		return mockEvent(s.logger, eventmodel.EventNeoBlock, s.SourceTag(), nil, mockNeoBlockPayload(s.cursor))
	}

	next := s.cursor + 1
	block, err := s.client.GetBlockByIndex(next)
	if err != nil {
		return mockEvent(s.logger, eventmodel.EventNeoBlock, s.SourceTag(),
			errors.Wrap(err, "get block by index"), mockNeoBlockPayload(next))
	}

	payload := map[string]interface{}{
		"height":    float64(block.Index),
		"hash":      block.Hash().StringLE(),
		"prev_hash": block.PrevHash.StringLE(),
		"time":      block.Timestamp,
		"tx_count":  len(block.Transactions),
	}
	event, err := eventmodel.NewEvent(eventmodel.EventNeoBlock, s.SourceTag(), time.Now().Unix(), payload)
	if err != nil {
		return mockEvent(s.logger, eventmodel.EventNeoBlock, s.SourceTag(), err, mockNeoBlockPayload(next))
	}
	s.cursor = next
	return event
}

func (s *NeoSource) nextTransactionEvent() *eventmodel.Event {
	if s.client == nil {
		return mockEvent(s.logger, eventmodel.EventNeoTransaction, s.SourceTag(),
			errors.New("rpc client unavailable"), mockNeoTransactionPayload(s.cursor))
	}

	resp := s.mempool.GetRawMemPool()
	if resp.HasError() {
		return mockEvent(s.logger, eventmodel.EventNeoTransaction, s.SourceTag(),
			errors.New(resp.GetErrorInfo()), mockNeoTransactionPayload(s.cursor))
	}
	if len(resp.Result) == 0 {
		return mockEvent(s.logger, eventmodel.EventNeoTransaction, s.SourceTag(), nil, mockNeoTransactionPayload(s.cursor))
	}

	hash := resp.Result[s.txIndex%len(resp.Result)]
	s.txIndex++

	payload := map[string]interface{}{
		"hash":         hash,
		"block_height": float64(s.cursor),
		"from":         "",
		"value":        float64(0),
	}
	event, err := eventmodel.NewEvent(eventmodel.EventNeoTransaction, s.SourceTag(), time.Now().Unix(), payload)
	if err != nil {
		return mockEvent(s.logger, eventmodel.EventNeoTransaction, s.SourceTag(), err, mockNeoTransactionPayload(s.cursor))
	}
	return event
}

func (s *NeoSource) nextNotificationEvent() *eventmodel.Event {
	if s.client == nil || s.cursor == 0 {
		return mockEvent(s.logger, eventmodel.EventNeoContractEvent, s.SourceTag(),
			errors.New("rpc client unavailable or no processed block"), mockNeoNotificationPayload(s.cursor))
	}

	blockHash, err := s.client.GetBlockHash(s.cursor)
	if err != nil {
		return mockEvent(s.logger, eventmodel.EventNeoContractEvent, s.SourceTag(),
			errors.Wrap(err, "get block hash"), mockNeoNotificationPayload(s.cursor))
	}
	notifications, err := s.client.GetBlockNotifications(blockHash)
	if err != nil {
		return mockEvent(s.logger, eventmodel.EventNeoContractEvent, s.SourceTag(),
			errors.Wrap(err, "get block notifications"), mockNeoNotificationPayload(s.cursor))
	}
	if len(notifications.Application) == 0 {
		return mockEvent(s.logger, eventmodel.EventNeoContractEvent, s.SourceTag(), nil, mockNeoNotificationPayload(s.cursor))
	}

	contract := notifications.Application[0].ScriptHash
	entries := make([]interface{}, 0, len(notifications.Application))
	for _, n := range notifications.Application {
		data, err := parseStackItem(n.Item)
		if err != nil {
			s.logger.Warn("failed to parse notification stack item",
				zap.String("name", n.Name),
				zap.Error(err))
			data = map[string]interface{}{}
		}
		entries = append(entries, map[string]interface{}{
			"name":     n.Name,
			"contract": address.Uint160ToString(n.ScriptHash),
			"data":     data,
		})
	}

	payload := map[string]interface{}{
		"contract_address": contract.StringLE(),
		"block_height":     float64(s.cursor),
		"events":           entries,
	}
	event, err := eventmodel.NewEvent(eventmodel.EventNeoContractEvent, s.SourceTag(), time.Now().Unix(), payload)
	if err != nil {
		return mockEvent(s.logger, eventmodel.EventNeoContractEvent, s.SourceTag(), err, mockNeoNotificationPayload(s.cursor))
	}
	return event
}

func (s *NeoSource) chainHeight() (uint32, error) {
	if s.client == nil {
		return 0, errors.New("rpc client unavailable")
	}
	count, err := s.client.GetBlockCount()
	if err != nil {
		return 0, errors.Wrap(err, "get block count")
	}
	if count == 0 {
		return 0, errors.New("empty chain")
	}
	return count - 1, nil
}

// parseStackItem flattens a Neo VM notification payload (a key/value array
// of stack items) into a JSON-friendly map.
func parseStackItem(item stackitem.Item) (map[string]interface{}, error) {
	result := make(map[string]interface{})

	array, ok := item.(*stackitem.Array)
	if !ok {
		return nil, fmt.Errorf("expected Array, got %T", item)
	}

	value, ok := array.Value().([]stackitem.Item)
	if !ok || len(value)%2 != 0 {
		return nil, fmt.Errorf("invalid notification array")
	}

	for i := 0; i < len(value); i += 2 {
		key, err := value[i].TryBytes()
		if err != nil {
			return nil, errors.Wrap(err, "convert key to string")
		}

		var decoded interface{}
		switch v := value[i+1].(type) {
		case *stackitem.Array:
			items, _ := v.Value().([]stackitem.Item)
			arr := make([]interface{}, 0, len(items))
			for _, inner := range items {
				b, err := inner.TryBytes()
				if err != nil {
					return nil, errors.Wrap(err, "convert array item to bytes")
				}
				arr = append(arr, string(b))
			}
			decoded = arr
		case *stackitem.ByteArray:
			b, err := v.TryBytes()
			if err != nil {
				return nil, errors.Wrap(err, "convert value to bytes")
			}
			decoded = string(b)
		case *stackitem.BigInteger:
			n, err := v.TryInteger()
			if err != nil {
				return nil, errors.Wrap(err, "convert value to integer")
			}
			decoded = n.String()
		case *stackitem.Bool:
			b, err := v.TryBool()
			if err != nil {
				return nil, errors.Wrap(err, "convert value to bool")
			}
			decoded = b
		default:
			return nil, fmt.Errorf("unsupported stack item type: %T", v)
		}

		result[string(key)] = decoded
	}

	return result, nil
}
