package evaluator

import (
	"math"

	"github.com/r3e-network/faas-trigger-engine/pkg/eventmodel"
)

const pctChangeEpsilon = 1e-6

// evaluateMarket implements the Market condition. The cache is updated
// unconditionally on every evaluated market event, including non-matching
// ones, so pct_change baselines track the feed rather than the matches.
func (e *StandardEvaluator) evaluateMarket(params map[string]interface{}, event *eventmodel.Event) (bool, error) {
	assetPair := event.StringField("asset_pair")

	if want, ok := params["asset_pair"].(string); ok && want != "" && want != "*" {
		if want != assetPair {
			return false, nil
		}
	}

	eventPrice, _ := event.NumberField("price")
	eventTimestamp := event.Timestamp

	condition, _ := params["condition"].(string)
	if condition == "" {
		condition = "eq"
	}

	matched, err := e.matchMarketCondition(condition, params, assetPair, eventPrice, event)
	if err != nil {
		return false, err
	}

	if assetPair != "" {
		e.marketCache.Add(assetPair, marketPrice{price: eventPrice, timestamp: eventTimestamp})
	}

	return matched, nil
}

func (e *StandardEvaluator) matchMarketCondition(condition string, params map[string]interface{}, assetPair string, eventPrice float64, event *eventmodel.Event) (bool, error) {
	price, hasPrice := toFloat64(params["price"])

	switch condition {
	case "eq":
		if !hasPrice {
			return false, eventmodel.InvalidParametersError("market condition eq requires price")
		}
		return math.Abs(eventPrice-price) <= pctChangeEpsilon, nil
	case "gt":
		if !hasPrice {
			return false, eventmodel.InvalidParametersError("market condition gt requires price")
		}
		return eventPrice > price, nil
	case "lt":
		if !hasPrice {
			return false, eventmodel.InvalidParametersError("market condition lt requires price")
		}
		return eventPrice < price, nil
	case "gte":
		if !hasPrice {
			return false, eventmodel.InvalidParametersError("market condition gte requires price")
		}
		return eventPrice >= price, nil
	case "lte":
		if !hasPrice {
			return false, eventmodel.InvalidParametersError("market condition lte requires price")
		}
		return eventPrice <= price, nil
	case "pct_change":
		if !hasPrice {
			return false, eventmodel.InvalidParametersError("market condition pct_change requires price")
		}
		prev := e.previousPrice(assetPair, event)
		if prev == 0 {
			// Avoid division by zero; no baseline means no change to report.
			return false, nil
		}
		pctChange := 100 * (eventPrice - prev) / prev
		return math.Abs(pctChange) >= math.Abs(price), nil
	case "range":
		if !hasPrice {
			return false, eventmodel.InvalidParametersError("market condition range requires price")
		}
		upper, hasUpper := toFloat64(params["upper_bound"])
		if !hasUpper {
			return false, eventmodel.InvalidParametersError("market condition range requires upper_bound")
		}
		return price <= eventPrice && eventPrice <= upper, nil
	default:
		return false, eventmodel.InvalidParametersError("invalid market condition: " + condition)
	}
}

// previousPrice resolves pct_change's `prev`: the cached price for this
// asset pair, else the event's own previous_price field, else the event's
// current price (which forces a false match).
func (e *StandardEvaluator) previousPrice(assetPair string, event *eventmodel.Event) float64 {
	if cached, ok := e.marketCache.Get(assetPair); ok {
		return cached.price
	}
	if prev, ok := event.NumberField("previous_price"); ok {
		return prev
	}
	eventPrice, _ := event.NumberField("price")
	return eventPrice
}
