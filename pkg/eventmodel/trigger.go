package eventmodel

import "time"

// ConditionSource is the tagged source of a TriggerCondition.
type ConditionSource string

const (
	ConditionBlockchain ConditionSource = "blockchain"
	ConditionTime       ConditionSource = "time"
	ConditionMarket     ConditionSource = "market"
	ConditionCustom     ConditionSource = "custom"
)

// TriggerCondition is a tagged union over the four condition kinds. Params
// holds the kind-specific parameter bag; recognized keys
// are validated lazily by the evaluator, not by this type.
type TriggerCondition struct {
	Source ConditionSource        `json:"source"`
	Params map[string]interface{} `json:"params"`
}

// Trigger is a persistent (user, function, condition) subscription.
type Trigger struct {
	ID         string           `json:"id"`
	UserID     string           `json:"user_id"`
	FunctionID string           `json:"function_id"`
	Condition  TriggerCondition `json:"condition"`
	Enabled    bool             `json:"enabled"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// FunctionRuntime enumerates the allowed `runtime` metadata values.
type FunctionRuntime string

const (
	RuntimeJavaScript FunctionRuntime = "javascript"
	RuntimeTypeScript FunctionRuntime = "typescript"
	RuntimeDeno       FunctionRuntime = "deno"
)

// Permission is one of the six capability grants a function may request.
type Permission string

const (
	PermissionNet    Permission = "net"
	PermissionFS     Permission = "fs"
	PermissionEnv    Permission = "env"
	PermissionRun    Permission = "run"
	PermissionFFI    Permission = "ffi"
	PermissionHRTime Permission = "hrtime"
)

// AllPermissions is the enumerated permission set that EffectivePermissions
// starts from for the sandbox's capability gate.
var AllPermissions = []Permission{
	PermissionNet, PermissionFS, PermissionEnv, PermissionRun, PermissionFFI, PermissionHRTime,
}

// ResourceLimits are the registered per-invocation caps.
type ResourceLimits struct {
	MemoryMB    int `json:"memory_mb"`
	CPUMs       int `json:"cpu_ms"`
	WallClockMs int `json:"wall_clock_ms"`
	StorageKB   int `json:"storage_kb"`
}

// FunctionMetadata is the validated, user-supplied metadata for a function
// version.
type FunctionMetadata struct {
	Version      string              `json:"version"`
	Description  string              `json:"description"`
	Author       string              `json:"author,omitempty"`
	Tags         []string            `json:"tags,omitempty"`
	Dependencies map[string]string   `json:"dependencies,omitempty"`
	Runtime      FunctionRuntime     `json:"runtime,omitempty"`
	Permissions  map[Permission]bool `json:"permissions,omitempty"`
}

// Function is immutable for a given (ID, Metadata.Version); a new version
// supersedes it via the storage collaborator's update_version operation.
type Function struct {
	ID        string           `json:"id"`
	OwnerID   string           `json:"owner_id"`
	Name      string           `json:"name"`
	Code      string           `json:"code"`
	Metadata  FunctionMetadata `json:"metadata"`
	Limits    ResourceLimits   `json:"limits"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// EffectivePermissions returns the set of granted capabilities, defaulting
// every unlisted permission to false.
func (f *Function) EffectivePermissions() map[Permission]bool {
	out := make(map[Permission]bool, len(AllPermissions))
	for _, p := range AllPermissions {
		out[p] = false
	}
	for k, v := range f.Metadata.Permissions {
		out[k] = v
	}
	return out
}

// CallbackStatus is the monotonic lifecycle of a dispatch.
type CallbackStatus string

const (
	CallbackPending   CallbackStatus = "pending"
	CallbackExecuting CallbackStatus = "executing"
	CallbackSucceeded CallbackStatus = "succeeded"
	CallbackFailed    CallbackStatus = "failed"
	CallbackTimedOut  CallbackStatus = "timed_out"
)

// terminalStatuses are CallbackStatus values that end a dispatch's lifecycle.
var terminalStatuses = map[CallbackStatus]bool{
	CallbackSucceeded: true,
	CallbackFailed:    true,
	CallbackTimedOut:  true,
}

// IsTerminal reports whether s is one of the three terminal states.
func (s CallbackStatus) IsTerminal() bool { return terminalStatuses[s] }

// CanTransitionTo enforces the Pending -> Executing -> {terminal} monotonic
// chain; no status ever regresses.
func (s CallbackStatus) CanTransitionTo(next CallbackStatus) bool {
	switch s {
	case CallbackPending:
		return next == CallbackExecuting
	case CallbackExecuting:
		return terminalStatuses[next]
	default:
		return false
	}
}

// CallbackResult is appended-once per dispatch.
type CallbackResult struct {
	ID         string         `json:"id"`
	TriggerID  string         `json:"trigger_id"`
	UserID     string         `json:"user_id"`
	FunctionID string         `json:"function_id"`
	Status     CallbackStatus `json:"status"`
	Result     interface{}    `json:"result,omitempty"`
	Error      string         `json:"error,omitempty"`
	Duration   time.Duration  `json:"duration"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// ThreatKind enumerates the detector's event types.
type ThreatKind string

const (
	ThreatTooManyFailedExecutions  ThreatKind = "too_many_failed_executions"
	ThreatHighCPUUsage             ThreatKind = "high_cpu_usage"
	ThreatHighMemoryUsage          ThreatKind = "high_memory_usage"
	ThreatLongExecutionTime        ThreatKind = "long_execution_time"
	ThreatSuspiciousCodePattern    ThreatKind = "suspicious_code_pattern"
	ThreatNetworkScanning          ThreatKind = "network_scanning"
	ThreatCryptoMining             ThreatKind = "crypto_mining"
	ThreatShellExecutionAttempt    ThreatKind = "shell_execution_attempt"
	ThreatFileSystemViolation      ThreatKind = "file_system_access_violation"
	ThreatUnauthorizedNetworkAccess ThreatKind = "unauthorized_network_access"
)

// Severity ranks a ThreatEvent.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ThreatEvent is an append-only log entry raised by the Threat Detector.
type ThreatEvent struct {
	Kind      ThreatKind `json:"kind"`
	UserID    string     `json:"user_id"`
	FunctionID string    `json:"function_id"`
	Detail    string     `json:"detail"`
	Severity  Severity   `json:"severity"`
	Timestamp time.Time  `json:"timestamp"`
}
