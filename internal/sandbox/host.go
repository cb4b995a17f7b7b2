package sandbox

import (
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/r3e-network/faas-trigger-engine/pkg/eventmodel"
)

const (
	maxResponseBytes = 1 << 20 // 1 MB per response body
	httpCallTimeout  = 10 * time.Second
)

// httpObject exposes a minimal outbound HTTP surface when net is granted.
// Requests are permitted only to hosts on the configured allowed-domains
// list; violations surface as JS exceptions and are reported to the
// violation hook if one is registered.
func (s *Sandbox) httpObject(vm *goja.Runtime, fn *eventmodel.Function) map[string]interface{} {
	return map[string]interface{}{
		"get": func(call goja.FunctionCall) goja.Value {
			rawURL := call.Argument(0).String()
			if !s.domainAllowed(rawURL) {
				s.reportNetworkViolation(fn, rawURL)
				panic(vm.NewGoError(eventmodel.New(eventmodel.KindUnauthorized, "domain not on allow-list: "+rawURL)))
			}

			client := &http.Client{Timeout: httpCallTimeout}
			resp, err := client.Get(rawURL)
			if err != nil {
				panic(vm.NewGoError(err))
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
			if err != nil {
				panic(vm.NewGoError(err))
			}
			return vm.ToValue(map[string]interface{}{
				"status": resp.StatusCode,
				"body":   string(body),
			})
		},
	}
}

// domainAllowed matches the request host against the allow-list; entries
// match exactly or as a parent domain ("example.com" admits
// "api.example.com").
func (s *Sandbox) domainAllowed(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Hostname() == "" {
		return false
	}
	host := strings.ToLower(parsed.Hostname())
	for _, allowed := range s.cfg.AllowedDomains {
		allowed = strings.ToLower(strings.TrimSpace(allowed))
		if allowed == "" {
			continue
		}
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}
	return false
}

func (s *Sandbox) reportNetworkViolation(fn *eventmodel.Function, rawURL string) {
	s.logger.Warn("sandbox network access violation",
		zap.String("function_id", fn.ID),
		zap.String("url", rawURL))
	if s.cfg.OnNetworkViolation != nil {
		s.cfg.OnNetworkViolation(fn.OwnerID, fn.ID, rawURL)
	}
}

// envObject exposes read-only environment lookups when env is granted.
func (s *Sandbox) envObject(vm *goja.Runtime) map[string]interface{} {
	return map[string]interface{}{
		"get": func(call goja.FunctionCall) goja.Value {
			name := call.Argument(0).String()
			value, ok := os.LookupEnv(name)
			if !ok {
				return goja.Null()
			}
			return vm.ToValue(value)
		},
	}
}
