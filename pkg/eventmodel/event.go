package eventmodel

import "encoding/json"

// EventKind tags the concrete variant carried by an Event.
type EventKind string

const (
	EventNone                 EventKind = "none"
	EventNeoBlock             EventKind = "neo_block"
	EventNeoTransaction       EventKind = "neo_transaction"
	EventNeoContractEvent     EventKind = "neo_contract_event"
	EventEthereumBlock        EventKind = "ethereum_block"
	EventEthereumTransaction  EventKind = "ethereum_transaction"
	EventEthereumContractLog  EventKind = "ethereum_contract_event"
	EventTime                 EventKind = "time"
	EventMarket               EventKind = "market"
	EventCustom               EventKind = "custom"
)

// Event is the uniform, immutable record emitted by every Source. Payload
// is the variant-specific JSON tree; Source is the emitting adapter's tag
// ("neo", "ethereum", "time", "market", or a custom source name).
type Event struct {
	Kind      EventKind       `json:"kind"`
	Source    string          `json:"source"`
	Timestamp int64           `json:"timestamp"` // seconds since epoch, ingestion time
	Payload   json.RawMessage `json:"payload"`

	// IsMock marks a synthetic event emitted by a Source's failure policy.
	// Cursors must not advance for these; filters may choose to drop them
	// by checking this flag directly instead of parsing the payload.
	IsMock bool `json:"is_mock,omitempty"`
}

// payload returns the payload decoded as a generic map, or nil if the
// payload isn't a JSON object (callers treat that as "field absent").
func (e *Event) payload() map[string]interface{} {
	if len(e.Payload) == 0 {
		return nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal(e.Payload, &m); err != nil {
		return nil
	}
	return m
}

// Field reads a top-level field out of the event payload. ok is false if
// the payload isn't an object or the key is absent.
func (e *Event) Field(key string) (interface{}, bool) {
	m := e.payload()
	if m == nil {
		return nil, false
	}
	v, ok := m[key]
	return v, ok
}

// StringField reads a string field, returning "" if absent or not a string.
func (e *Event) StringField(key string) string {
	v, ok := e.Field(key)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// NumberField reads a numeric field as float64, accepting JSON numbers and
// numeric strings (hex "0x..." or decimal), for min_block/min_value-style
// fields fed by hex-encoded RPC payloads.
func (e *Event) NumberField(key string) (float64, bool) {
	v, ok := e.Field(key)
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		return parseNumericString(t)
	}
	return 0, false
}

func parseNumericString(s string) (float64, bool) {
	n, ok := parseHexOrDecimal(s)
	if !ok {
		return 0, false
	}
	return float64(n), true
}

// NewEvent builds an Event from any JSON-marshalable payload value.
func NewEvent(kind EventKind, source string, timestamp int64, payload interface{}) (*Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{Kind: kind, Source: source, Timestamp: timestamp, Payload: raw}, nil
}
