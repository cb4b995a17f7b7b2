// Package threatdetector implements the threat detector: a
// synchronous observer registry that watches for failed-execution bursts,
// resource-threshold breaches, and suspicious code patterns, and raises
// ThreatEvent notifications for anything that crosses a configured bound.
package threatdetector

import (
	"regexp"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/r3e-network/faas-trigger-engine/pkg/eventmodel"
)

// Config mirrors ThreatDetectionConfig's defaults and feature flags.
type Config struct {
	MaxFailedExecutions      int
	FailedExecutionWindow    time.Duration
	MaxCPUUsageThreshold     int // percent
	MaxMemoryUsageThreshold  int // percent
	MaxExecutionTimeThreshold time.Duration
	DetectSuspiciousPatterns bool
	DetectNetworkScanning    bool
	DetectCryptoMining       bool
}

// DefaultConfig reproduces ThreatDetectionConfig::default().
func DefaultConfig() Config {
	return Config{
		MaxFailedExecutions:       5,
		FailedExecutionWindow:     60 * time.Second,
		MaxCPUUsageThreshold:      90,
		MaxMemoryUsageThreshold:   90,
		MaxExecutionTimeThreshold: 30 * time.Second,
		DetectSuspiciousPatterns:  true,
		DetectNetworkScanning:     true,
		DetectCryptoMining:        true,
	}
}

// Observer receives every ThreatEvent the detector raises, in registration
// order, synchronously on the goroutine that triggered it.
type Observer func(eventmodel.ThreatEvent)

type failedExecutionRecord struct {
	mu         sync.Mutex
	timestamps []time.Time
}

// Detector is the concurrent threat-detection service. One Detector is
// shared process-wide; per-(user,function) state is guarded independently
// so unrelated functions never contend on the same lock.
type Detector struct {
	cfg    Config
	log    *zap.Logger
	mu     sync.RWMutex
	failed map[string]*failedExecutionRecord

	observersMu sync.Mutex
	observers   []Observer

	suspiciousRe []*regexp.Regexp
	scanningRe   []*regexp.Regexp
	miningRe     []*regexp.Regexp
}

// New builds a Detector, pre-compiling whichever pattern lists their
// feature flag enables.
func New(cfg Config, log *zap.Logger) *Detector {
	d := &Detector{
		cfg:    cfg,
		log:    log,
		failed: make(map[string]*failedExecutionRecord),
	}
	if cfg.DetectSuspiciousPatterns {
		d.suspiciousRe = compileAll(suspiciousCodePatterns)
	}
	if cfg.DetectNetworkScanning {
		d.scanningRe = compileAll(networkScanningPatterns)
	}
	if cfg.DetectCryptoMining {
		d.miningRe = compileAll(cryptoMiningPatterns)
	}
	return d
}

func compileAll(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(p))
	}
	return out
}

// OnThreat registers an observer. Observers fire in registration order.
func (d *Detector) OnThreat(obs Observer) {
	d.observersMu.Lock()
	defer d.observersMu.Unlock()
	d.observers = append(d.observers, obs)
}

func (d *Detector) emit(event eventmodel.ThreatEvent) {
	d.log.Warn("threat detected",
		zap.String("kind", string(event.Kind)),
		zap.String("user_id", event.UserID),
		zap.String("function_id", event.FunctionID),
		zap.String("severity", string(event.Severity)),
		zap.String("detail", event.Detail),
	)
	d.observersMu.Lock()
	obs := make([]Observer, len(d.observers))
	copy(obs, d.observers)
	d.observersMu.Unlock()
	for _, o := range obs {
		o(event)
	}
}

func (d *Detector) recordFor(key string) *failedExecutionRecord {
	d.mu.RLock()
	rec, ok := d.failed[key]
	d.mu.RUnlock()
	if ok {
		return rec
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if rec, ok := d.failed[key]; ok {
		return rec
	}
	rec = &failedExecutionRecord{}
	d.failed[key] = rec
	return rec
}

// RecordFailedExecution appends a failure timestamp to the sliding window
// for (userID, functionID) and raises TooManyFailedExecutions once the
// window holds at least MaxFailedExecutions entries.
func (d *Detector) RecordFailedExecution(userID, functionID string, now time.Time) {
	rec := d.recordFor(userID + ":" + functionID)

	rec.mu.Lock()
	rec.timestamps = append(rec.timestamps, now)
	windowStart := now.Add(-d.cfg.FailedExecutionWindow)
	kept := rec.timestamps[:0]
	for _, ts := range rec.timestamps {
		if ts.After(windowStart) {
			kept = append(kept, ts)
		}
	}
	rec.timestamps = kept
	count := len(rec.timestamps)
	rec.mu.Unlock()

	if count >= d.cfg.MaxFailedExecutions {
		d.emit(eventmodel.ThreatEvent{
			Kind:       eventmodel.ThreatTooManyFailedExecutions,
			UserID:     userID,
			FunctionID: functionID,
			Timestamp:  now,
			Detail:     "too many failed executions in the configured window",
			Severity:   eventmodel.SeverityMedium,
		})
	}
}

// CheckCPUUsage raises HighCPUUsage when usage crosses the configured
// threshold, escalating to High severity at or above 95%.
func (d *Detector) CheckCPUUsage(userID, functionID string, cpuPercent int, now time.Time) {
	if cpuPercent < d.cfg.MaxCPUUsageThreshold {
		return
	}
	d.emit(eventmodel.ThreatEvent{
		Kind:       eventmodel.ThreatHighCPUUsage,
		UserID:     userID,
		FunctionID: functionID,
		Timestamp:  now,
		Detail:     "cpu usage above threshold",
		Severity:   severityFor(cpuPercent, 95),
	})
}

// CheckMemoryUsage raises HighMemoryUsage the same way CheckCPUUsage does.
func (d *Detector) CheckMemoryUsage(userID, functionID string, memPercent int, now time.Time) {
	if memPercent < d.cfg.MaxMemoryUsageThreshold {
		return
	}
	d.emit(eventmodel.ThreatEvent{
		Kind:       eventmodel.ThreatHighMemoryUsage,
		UserID:     userID,
		FunctionID: functionID,
		Timestamp:  now,
		Detail:     "memory usage above threshold",
		Severity:   severityFor(memPercent, 95),
	})
}

func severityFor(value, highCutoff int) eventmodel.Severity {
	if value >= highCutoff {
		return eventmodel.SeverityHigh
	}
	return eventmodel.SeverityMedium
}

// CheckExecutionTime raises LongExecutionTime once elapsed crosses the
// threshold, escalating to High severity at double the threshold.
func (d *Detector) CheckExecutionTime(userID, functionID string, elapsed time.Duration, now time.Time) {
	if elapsed < d.cfg.MaxExecutionTimeThreshold {
		return
	}
	severity := eventmodel.SeverityMedium
	if elapsed >= 2*d.cfg.MaxExecutionTimeThreshold {
		severity = eventmodel.SeverityHigh
	}
	d.emit(eventmodel.ThreatEvent{
		Kind:       eventmodel.ThreatLongExecutionTime,
		UserID:     userID,
		FunctionID: functionID,
		Timestamp:  now,
		Detail:     "execution time above threshold",
		Severity:   severity,
	})
}

// ScanCode matches code against the three pattern families, raising and
// returning one ThreatEvent per match (suspicious: High, network scanning:
// High, crypto mining: Critical), mirroring scan_code's per-match loop.
func (d *Detector) ScanCode(userID, functionID, code string, now time.Time) []eventmodel.ThreatEvent {
	var events []eventmodel.ThreatEvent

	if d.cfg.DetectSuspiciousPatterns {
		events = append(events, d.scanFamily(userID, functionID, code, now,
			d.suspiciousRe, eventmodel.ThreatSuspiciousCodePattern, "suspicious code pattern detected", eventmodel.SeverityHigh)...)
	}
	if d.cfg.DetectNetworkScanning {
		events = append(events, d.scanFamily(userID, functionID, code, now,
			d.scanningRe, eventmodel.ThreatNetworkScanning, "network scanning pattern detected", eventmodel.SeverityHigh)...)
	}
	if d.cfg.DetectCryptoMining {
		events = append(events, d.scanFamily(userID, functionID, code, now,
			d.miningRe, eventmodel.ThreatCryptoMining, "crypto mining pattern detected", eventmodel.SeverityCritical)...)
	}
	return events
}

func (d *Detector) scanFamily(userID, functionID, code string, now time.Time, patterns []*regexp.Regexp, kind eventmodel.ThreatKind, detail string, severity eventmodel.Severity) []eventmodel.ThreatEvent {
	var out []eventmodel.ThreatEvent
	for _, re := range patterns {
		match := re.FindString(code)
		if match == "" {
			continue
		}
		event := eventmodel.ThreatEvent{
			Kind:       kind,
			UserID:     userID,
			FunctionID: functionID,
			Timestamp:  now,
			Detail:     detail + ": " + match,
			Severity:   severity,
		}
		out = append(out, event)
		d.emit(event)
	}
	return out
}

// RecordShellExecutionAttempt raises a Critical ShellExecutionAttempt.
func (d *Detector) RecordShellExecutionAttempt(userID, functionID, command string, now time.Time) {
	d.emit(eventmodel.ThreatEvent{
		Kind:       eventmodel.ThreatShellExecutionAttempt,
		UserID:     userID,
		FunctionID: functionID,
		Timestamp:  now,
		Detail:     "shell execution attempt: " + command,
		Severity:   eventmodel.SeverityCritical,
	})
}

// RecordFSAccessViolation raises a High FileSystemAccessViolation.
func (d *Detector) RecordFSAccessViolation(userID, functionID, path string, now time.Time) {
	d.emit(eventmodel.ThreatEvent{
		Kind:       eventmodel.ThreatFileSystemViolation,
		UserID:     userID,
		FunctionID: functionID,
		Timestamp:  now,
		Detail:     "file system access violation: " + path,
		Severity:   eventmodel.SeverityHigh,
	})
}

// RecordNetworkAccessViolation raises a High UnauthorizedNetworkAccess.
func (d *Detector) RecordNetworkAccessViolation(userID, functionID, url string, now time.Time) {
	d.emit(eventmodel.ThreatEvent{
		Kind:       eventmodel.ThreatUnauthorizedNetworkAccess,
		UserID:     userID,
		FunctionID: functionID,
		Timestamp:  now,
		Detail:     "unauthorized network access: " + url,
		Severity:   eventmodel.SeverityHigh,
	})
}
