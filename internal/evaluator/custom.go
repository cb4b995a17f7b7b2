package evaluator

import (
	"context"
	"fmt"
	"regexp"

	"github.com/PaesslerAG/jsonpath"

	"github.com/r3e-network/faas-trigger-engine/internal/eventfilter"
	"github.com/r3e-network/faas-trigger-engine/pkg/eventmodel"
)

// evaluateCustom implements the Custom condition: an optional event_name
// gate, followed by one of four matching_mode strategies over event.data.
func evaluateCustom(params map[string]interface{}, event *eventmodel.Event) (bool, error) {
	if wantName, ok := params["event_name"].(string); ok && wantName != "" && wantName != "*" {
		if wantName != event.StringField("event_name") {
			return false, nil
		}
	}

	filter, hasFilter := params["event_data"]
	if !hasFilter {
		return true, nil
	}

	actual, ok := event.Field("data")
	if !ok {
		return false, nil
	}

	mode, _ := params["matching_mode"].(string)
	if mode == "" {
		mode = "exact"
	}

	switch mode {
	case "exact":
		return sameJSONShape(filter, actual), nil
	case "partial":
		return eventfilter.DeepSubsetMatch(filter, actual), nil
	case "regex":
		return regexMatch(filter, actual)
	case "jsonpath":
		return jsonPathMatch(filter, actual, params["expected_value"])
	default:
		return false, eventmodel.InvalidParametersError("invalid matching mode: " + mode)
	}
}

// sameJSONShape is deep equality for decoded JSON values: for objects it
// compares subset-both-ways (equivalent to deep equality), for arrays it
// compares length and then elements in order, and for scalars it compares
// directly.
func sameJSONShape(a, b interface{}) bool {
	switch av := a.(type) {
	case map[string]interface{}:
		return eventfilter.DeepSubsetMatch(a, b) && eventfilter.DeepSubsetMatch(b, a)
	case []interface{}:
		bv, ok := b.([]interface{})
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !sameJSONShape(av[i], bv[i]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

func regexMatch(filter, actual interface{}) (bool, error) {
	pattern, ok := filter.(string)
	if !ok {
		return false, eventmodel.InvalidParametersError("regex matching_mode requires a string event_data")
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, eventmodel.InvalidParametersError("invalid regex: " + err.Error())
	}
	return re.MatchString(fmt.Sprintf("%v", actual)), nil
}

func jsonPathMatch(filter, actual interface{}, expected interface{}) (bool, error) {
	path, ok := filter.(string)
	if !ok {
		return false, eventmodel.InvalidParametersError("jsonpath matching_mode requires a string event_data")
	}

	// Only a malformed path expression is a parameter error. A valid path
	// that resolves to nothing (missing key, out-of-range index) is a
	// plain non-match.
	eval, err := jsonpath.New(path)
	if err != nil {
		return false, eventmodel.InvalidParametersError("invalid jsonpath: " + err.Error())
	}
	result, err := eval(context.Background(), actual)
	if err != nil {
		return false, nil
	}

	if isEmptyResult(result) {
		return false, nil
	}

	if expected == nil {
		return true, nil
	}
	return sameJSONShape(expected, result), nil
}

func isEmptyResult(v interface{}) bool {
	switch r := v.(type) {
	case nil:
		return true
	case []interface{}:
		return len(r) == 0
	default:
		return false
	}
}
