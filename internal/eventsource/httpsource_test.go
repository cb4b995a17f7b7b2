package eventsource

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/r3e-network/faas-trigger-engine/pkg/eventmodel"
)

func postEvent(t *testing.T, server *httptest.Server, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(server.URL+"/events", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHTTPSourceAcceptsWebhook(t *testing.T) {
	src := NewHTTPSource("hooks", Config{}, nil, 100, 100, zap.NewNop())
	server := httptest.NewServer(src.Router())
	defer server.Close()

	resp := postEvent(t, server, `{"event_name":"ping","data":{"n":1}}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	event, err := src.AcquireNextEvent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, eventmodel.EventCustom, event.Kind)
	assert.Equal(t, "ping", event.StringField("event_name"))
}

func TestHTTPSourceRejectsBadRequests(t *testing.T) {
	src := NewHTTPSource("hooks", Config{}, nil, 100, 100, zap.NewNop())
	server := httptest.NewServer(src.Router())
	defer server.Close()

	resp := postEvent(t, server, `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postEvent(t, server, `{"data":{}}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHTTPSourceScreensDangerousPayload(t *testing.T) {
	src := NewHTTPSource("hooks", Config{}, nil, 100, 100, zap.NewNop())
	server := httptest.NewServer(src.Router())
	defer server.Close()

	resp := postEvent(t, server, `{"event_name":"x","data":{"html":"<script>alert(1)</script>"}}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := src.AcquireNextEvent(ctx)
	assert.Error(t, err, "screened payload must not be emitted into the pipeline")
}

func TestHTTPSourceRateLimits(t *testing.T) {
	src := NewHTTPSource("hooks", Config{}, nil, 1, 1, zap.NewNop())
	server := httptest.NewServer(src.Router())
	defer server.Close()

	first := postEvent(t, server, `{"event_name":"a"}`)
	assert.Equal(t, http.StatusAccepted, first.StatusCode)

	second := postEvent(t, server, `{"event_name":"b"}`)
	assert.Equal(t, http.StatusTooManyRequests, second.StatusCode)
}

func TestMarketSourcePollsTicker(t *testing.T) {
	ticker := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "NEOUSDT", r.URL.Query().Get("symbol"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"symbol":"NEOUSDT","lastPrice":"12.34","closeTime":1704067200000}`))
	}))
	defer ticker.Close()

	src := NewMarketSource(Config{EndpointURL: ticker.URL, PollInterval: time.Millisecond}, []string{"NEO/USD"}, zap.NewNop())

	event, err := src.AcquireNextEvent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, eventmodel.EventMarket, event.Kind)
	assert.Equal(t, "NEO/USD", event.StringField("asset_pair"))
	price, ok := event.NumberField("price")
	require.True(t, ok)
	assert.Equal(t, 12.34, price)

	// Second poll carries the previous price for pct_change baselines.
	event, err = src.AcquireNextEvent(context.Background())
	require.NoError(t, err)
	prev, ok := event.NumberField("previous_price")
	require.True(t, ok)
	assert.Equal(t, 12.34, prev)
}

func TestMarketSourceMockOnFailure(t *testing.T) {
	src := NewMarketSource(Config{EndpointURL: "http://127.0.0.1:1", PollInterval: time.Millisecond}, []string{"NEO/USD"}, zap.NewNop())

	event, err := src.AcquireNextEvent(context.Background())
	require.NoError(t, err)
	assert.True(t, event.IsMock)
	assert.Equal(t, "market_mock", event.StringField("provider"))
}
