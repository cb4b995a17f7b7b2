// Package sandbox implements the sandbox runtime adapter: a
// goja-backed JavaScript isolate that executes one call into user code
// under capability gating, resource limits, and a wall-clock deadline.
package sandbox

import "time"

// Resource defaults applied when neither the function's limits nor the
// runtime configuration specify a cap.
const (
	DefaultMemoryMB    = 128
	DefaultCPUMs       = 5000
	DefaultWallClockMs = 5000
	DefaultStorageKB   = 1024
	memoryPollInterval = 100 * time.Millisecond
)

// Config is the default capability/resource profile applied when a
// Function's own ResourceLimits field is zero-valued, populated from the
// runtime.sandbox.* and runtime.js.* configuration keys.
type Config struct {
	MaxMemoryMB        int
	MaxExecutionTimeMs int
	EnableJIT          bool // goja has no JIT; retained as an inert passthrough.

	EnableNetwork     bool
	EnableFilesystem  bool
	EnableEnvironment bool
	AllowedDomains    []string

	// OnNetworkViolation, when set, is invoked for every outbound request
	// rejected by the domain allow-list so the threat detector can record
	// an UnauthorizedNetworkAccess event.
	OnNetworkViolation func(userID, functionID, url string)
}

// DefaultConfig is the profile applied when no configuration is given.
func DefaultConfig() Config {
	return Config{
		MaxMemoryMB:        DefaultMemoryMB,
		MaxExecutionTimeMs: DefaultWallClockMs,
		EnableJIT:          false,
		EnableNetwork:      false,
		EnableFilesystem:   false,
		EnableEnvironment:  false,
	}
}
