package eventsource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/r3e-network/faas-trigger-engine/pkg/eventmodel"
)

// MarketSource polls a Binance-compatible ticker endpoint, rotating through
// its configured asset pairs and emitting one market event per poll. The
// previous poll's price is carried in the payload as previous_price so the
// evaluator's pct_change condition has a baseline even on a cold cache.
type MarketSource struct {
	cfg        Config
	logger     *zap.Logger
	httpClient *http.Client

	assetPairs []string
	pairIndex  int
	lastPrices map[string]float64
}

// marketTicker is the subset of the ticker response the source reads.
type marketTicker struct {
	Symbol    string `json:"symbol"`
	LastPrice string `json:"lastPrice"`
	CloseTime int64  `json:"closeTime"`
}

// NewMarketSource builds a source over the given asset pairs ("NEO/USD"
// style). An empty list defaults to NEO/USD.
func NewMarketSource(cfg Config, assetPairs []string, logger *zap.Logger) *MarketSource {
	if len(assetPairs) == 0 {
		assetPairs = []string{"NEO/USD"}
	}
	return &MarketSource{
		cfg:        cfg,
		logger:     logger,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		assetPairs: assetPairs,
		lastPrices: make(map[string]float64),
	}
}

func (s *MarketSource) SourceTag() string { return "market" }

func (s *MarketSource) AcquireNextEvent(ctx context.Context) (*eventmodel.Event, error) {
	if err := sleep(ctx, s.cfg.pollInterval()); err != nil {
		return nil, err
	}

	pair := s.assetPairs[s.pairIndex%len(s.assetPairs)]
	s.pairIndex++

	price, ts, err := s.fetchPrice(ctx, pair)
	if err != nil {
		return applyFilter(s.cfg.Filter,
			mockEvent(s.logger, eventmodel.EventMarket, s.SourceTag(), err, mockMarketPayload(pair))), nil
	}

	payload := map[string]interface{}{
		"asset_pair": pair,
		"price":      price,
		"provider":   "market",
		"close_time": ts,
	}
	if prev, ok := s.lastPrices[pair]; ok {
		payload["previous_price"] = prev
	}
	s.lastPrices[pair] = price

	event, err := eventmodel.NewEvent(eventmodel.EventMarket, s.SourceTag(), time.Now().Unix(), payload)
	if err != nil {
		return nil, err
	}
	return applyFilter(s.cfg.Filter, event), nil
}

func (s *MarketSource) fetchPrice(ctx context.Context, assetPair string) (float64, int64, error) {
	url := fmt.Sprintf("%s/ticker/24hr?symbol=%s", strings.TrimRight(s.cfg.EndpointURL, "/"), tickerSymbol(assetPair))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, 0, errors.Wrap(err, "build ticker request")
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, 0, errors.Wrap(err, "get ticker")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, 0, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var ticker marketTicker
	if err := json.NewDecoder(resp.Body).Decode(&ticker); err != nil {
		return 0, 0, errors.Wrap(err, "decode ticker response")
	}
	price, err := strconv.ParseFloat(ticker.LastPrice, 64)
	if err != nil {
		return 0, 0, errors.Wrap(err, "parse price")
	}
	return price, ticker.CloseTime, nil
}

// tickerSymbol converts "NEO/USD" to the exchange's concatenated form.
func tickerSymbol(assetPair string) string {
	if !strings.Contains(assetPair, "/") {
		return assetPair + "USDT"
	}
	parts := strings.SplitN(assetPair, "/", 2)
	quote := parts[1]
	if quote == "USD" {
		quote = "USDT"
	}
	return parts[0] + quote
}
