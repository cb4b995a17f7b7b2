package eventsource

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/r3e-network/faas-trigger-engine/pkg/eventmodel"
)

type ethTriggerCategory int

const (
	ethNewBlock ethTriggerCategory = iota
	ethContractLog
	ethTransaction
)

// EthereumSource polls an Ethereum JSON-RPC node via go-ethereum's
// ethclient, rotating Block -> ContractLog -> Transaction the same way the
// Neo source rotates its categories.
type EthereumSource struct {
	cfg    Config
	logger *zap.Logger

	client *ethclient.Client

	category ethTriggerCategory
	cursor   uint64 // last fully processed block number
}

// NewEthereumSource dials lazily like NewNeoSource: a dead endpoint leaves
// the source in mock mode rather than failing construction.
func NewEthereumSource(cfg Config, logger *zap.Logger) *EthereumSource {
	s := &EthereumSource{cfg: cfg, logger: logger}
	s.dial()
	return s
}

func (s *EthereumSource) dial() {
	if s.client != nil {
		return
	}
	client, err := ethclient.Dial(s.cfg.EndpointURL)
	if err != nil {
		s.logger.Warn("ethereum rpc dial failed, source will emit mock events",
			zap.String("endpoint", s.cfg.EndpointURL),
			zap.Error(err))
		return
	}
	s.client = client
}

func (s *EthereumSource) SourceTag() string { return "ethereum" }

func (s *EthereumSource) AcquireNextEvent(ctx context.Context) (*eventmodel.Event, error) {
	if err := sleep(ctx, s.cfg.pollInterval()); err != nil {
		return nil, err
	}
	s.dial()

	var event *eventmodel.Event
	switch s.category {
	case ethNewBlock:
		event = s.nextBlockEvent(ctx)
		s.category = ethContractLog
	case ethContractLog:
		event = s.nextLogEvent(ctx)
		s.category = ethTransaction
	case ethTransaction:
		event = s.nextTransactionEvent(ctx)
		s.category = ethNewBlock
	}
	return applyFilter(s.cfg.Filter, event), nil
}

func (s *EthereumSource) nextBlockEvent(ctx context.Context) *eventmodel.Event {
	if s.client == nil {
		return mockEvent(s.logger, eventmodel.EventEthereumBlock, s.SourceTag(),
			errors.New("rpc client unavailable"), mockEthereumBlockPayload(s.cursor+1))
	}

	head, err := s.client.BlockNumber(ctx)
	if err != nil {
		return mockEvent(s.logger, eventmodel.EventEthereumBlock, s.SourceTag(),
			errors.Wrap(err, "get block number"), mockEthereumBlockPayload(s.cursor+1))
	}
	if head <= s.cursor {
		return mockEvent(s.logger, eventmodel.EventEthereumBlock, s.SourceTag(), nil, mockEthereumBlockPayload(s.cursor))
	}

	next := s.cursor + 1
	block, err := s.client.BlockByNumber(ctx, new(big.Int).SetUint64(next))
	if err != nil {
		return mockEvent(s.logger, eventmodel.EventEthereumBlock, s.SourceTag(),
			errors.Wrap(err, "get block"), mockEthereumBlockPayload(next))
	}

	txs := make([]interface{}, 0, len(block.Transactions()))
	for _, tx := range block.Transactions() {
		txs = append(txs, transactionPayload(tx, next))
	}
	payload := map[string]interface{}{
		"number":       float64(block.NumberU64()),
		"hash":         block.Hash().Hex(),
		"parent_hash":  block.ParentHash().Hex(),
		"miner":        strings.ToLower(block.Coinbase().Hex()),
		"timestamp":    block.Time(),
		"transactions": txs,
	}
	event, err := eventmodel.NewEvent(eventmodel.EventEthereumBlock, s.SourceTag(), time.Now().Unix(), payload)
	if err != nil {
		return mockEvent(s.logger, eventmodel.EventEthereumBlock, s.SourceTag(), err, mockEthereumBlockPayload(next))
	}
	s.cursor = next
	return event
}

func (s *EthereumSource) nextLogEvent(ctx context.Context) *eventmodel.Event {
	if s.client == nil || s.cursor == 0 {
		return mockEvent(s.logger, eventmodel.EventEthereumContractLog, s.SourceTag(),
			errors.New("rpc client unavailable or no processed block"), mockEthereumLogPayload(s.cursor))
	}

	blockNum := new(big.Int).SetUint64(s.cursor)
	logs, err := s.client.FilterLogs(ctx, ethereum.FilterQuery{FromBlock: blockNum, ToBlock: blockNum})
	if err != nil {
		return mockEvent(s.logger, eventmodel.EventEthereumContractLog, s.SourceTag(),
			errors.Wrap(err, "filter logs"), mockEthereumLogPayload(s.cursor))
	}
	if len(logs) == 0 {
		return mockEvent(s.logger, eventmodel.EventEthereumContractLog, s.SourceTag(), nil, mockEthereumLogPayload(s.cursor))
	}

	contract := strings.ToLower(logs[0].Address.Hex())
	entries := make([]interface{}, 0, len(logs))
	for _, lg := range logs {
		topics := make([]interface{}, 0, len(lg.Topics))
		for _, t := range lg.Topics {
			topics = append(topics, t.Hex())
		}
		topic := ""
		if len(lg.Topics) > 0 {
			topic = lg.Topics[0].Hex()
		}
		entries = append(entries, map[string]interface{}{
			"topic":     topic,
			"topics":    topics,
			"data":      hexutil.Encode(lg.Data),
			"address":   strings.ToLower(lg.Address.Hex()),
			"tx_hash":   lg.TxHash.Hex(),
			"log_index": float64(lg.Index),
		})
	}

	payload := map[string]interface{}{
		"contract_address": contract,
		"block_number":     float64(s.cursor),
		"events":           entries,
	}
	event, err := eventmodel.NewEvent(eventmodel.EventEthereumContractLog, s.SourceTag(), time.Now().Unix(), payload)
	if err != nil {
		return mockEvent(s.logger, eventmodel.EventEthereumContractLog, s.SourceTag(), err, mockEthereumLogPayload(s.cursor))
	}
	return event
}

func (s *EthereumSource) nextTransactionEvent(ctx context.Context) *eventmodel.Event {
	if s.client == nil || s.cursor == 0 {
		return mockEvent(s.logger, eventmodel.EventEthereumTransaction, s.SourceTag(),
			errors.New("rpc client unavailable or no processed block"), mockEthereumTransactionPayload(s.cursor))
	}

	block, err := s.client.BlockByNumber(ctx, new(big.Int).SetUint64(s.cursor))
	if err != nil {
		return mockEvent(s.logger, eventmodel.EventEthereumTransaction, s.SourceTag(),
			errors.Wrap(err, "get block"), mockEthereumTransactionPayload(s.cursor))
	}
	if len(block.Transactions()) == 0 {
		return mockEvent(s.logger, eventmodel.EventEthereumTransaction, s.SourceTag(), nil, mockEthereumTransactionPayload(s.cursor))
	}

	payload := transactionPayload(block.Transactions()[0], s.cursor)
	event, err := eventmodel.NewEvent(eventmodel.EventEthereumTransaction, s.SourceTag(), time.Now().Unix(), payload)
	if err != nil {
		return mockEvent(s.logger, eventmodel.EventEthereumTransaction, s.SourceTag(), err, mockEthereumTransactionPayload(s.cursor))
	}
	return event
}

func transactionPayload(tx *types.Transaction, blockNumber uint64) map[string]interface{} {
	from := ""
	if sender, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx); err == nil {
		from = strings.ToLower(sender.Hex())
	}
	to := ""
	if tx.To() != nil {
		to = strings.ToLower(tx.To().Hex())
	}
	value, _ := new(big.Float).SetInt(tx.Value()).Float64()
	return map[string]interface{}{
		"hash":         tx.Hash().Hex(),
		"block_number": float64(blockNumber),
		"from":         from,
		"to":           to,
		"value":        value,
		"gas":          float64(tx.Gas()),
	}
}
