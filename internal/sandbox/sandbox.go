package sandbox

import (
	"context"
	stderrors "errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/dop251/goja"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/r3e-network/faas-trigger-engine/pkg/eventmodel"
)

var (
	// ErrTimeout is raised when execution exceeds the wall-clock deadline.
	ErrTimeout = errors.New("script execution timed out")

	// ErrMemoryLimit is raised when the memory monitor trips.
	ErrMemoryLimit = errors.New("script exceeded memory limit")
)

// Output is the result of one sandboxed call: the exported JSON value,
// captured console output, and the resource usage that drives billing.
type Output struct {
	Result     interface{}
	Logs       []string
	Duration   time.Duration
	MemoryPeak uint64
}

// Sandbox executes one call into user code inside an isolated goja VM. A
// fresh VM is created per execution so no state leaks between calls; the
// Sandbox exclusively owns the isolate for the duration of one call.
type Sandbox struct {
	cfg    Config
	logger *zap.Logger
}

// New builds a sandbox with the given default capability/resource profile.
func New(cfg Config, logger *zap.Logger) *Sandbox {
	if cfg.MaxMemoryMB <= 0 {
		cfg.MaxMemoryMB = DefaultMemoryMB
	}
	if cfg.MaxExecutionTimeMs <= 0 {
		cfg.MaxExecutionTimeMs = DefaultWallClockMs
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sandbox{cfg: cfg, logger: logger}
}

type executionResult struct {
	value goja.Value
	err   error
}

// Execute runs fn's code against input under the function's declared
// permissions and resource limits. The wall-clock deadline is the smaller
// of the function's own limit and the sandbox default; on expiry the
// isolate is interrupted and killed, and no partial output is returned.
func (s *Sandbox) Execute(ctx context.Context, fn *eventmodel.Function, input interface{}) (*Output, error) {
	start := time.Now()

	deadline := time.Duration(s.cfg.MaxExecutionTimeMs) * time.Millisecond
	if fn.Limits.WallClockMs > 0 && fn.Limits.WallClockMs < s.cfg.MaxExecutionTimeMs {
		deadline = time.Duration(fn.Limits.WallClockMs) * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	memoryMB := s.cfg.MaxMemoryMB
	if fn.Limits.MemoryMB > 0 {
		memoryMB = fn.Limits.MemoryMB
	}

	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))

	output := &Output{Logs: []string{}}
	perms := fn.EffectivePermissions()
	if err := s.setupHostSurface(vm, fn, perms, output); err != nil {
		return nil, eventmodel.Wrap(err, eventmodel.KindExecution, "failed to set up execution environment")
	}

	monitor := newMemoryMonitor(uint64(memoryMB)*1024*1024, func() {
		vm.Interrupt(ErrMemoryLimit)
	})
	monitor.start()
	defer monitor.stop()

	resultCh := make(chan *executionResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				resultCh <- &executionResult{err: fmt.Errorf("script execution panicked: %v", r)}
			}
		}()

		if _, err := vm.RunString(prepareCode(fn.Code)); err != nil {
			resultCh <- &executionResult{err: err}
			return
		}

		handler, ok := goja.AssertFunction(vm.Get(handlerName))
		if !ok {
			if handler, ok = goja.AssertFunction(vm.Get("main")); !ok {
				resultCh <- &executionResult{err: errors.New("no default export or main function in script")}
				return
			}
		}

		value, err := handler(goja.Undefined(), vm.ToValue(input))
		resultCh <- &executionResult{value: value, err: err}
	}()

	var res *executionResult
	select {
	case <-ctx.Done():
		vm.Interrupt(ErrTimeout)
		output.Duration = time.Since(start)
		output.MemoryPeak = monitor.peakUsage()
		if ctx.Err() == context.DeadlineExceeded {
			return nil, eventmodel.Wrap(ErrTimeout, eventmodel.KindTimeout, "wall-clock deadline exceeded")
		}
		return nil, eventmodel.Wrap(ctx.Err(), eventmodel.KindExecution, "execution cancelled")
	case res = <-resultCh:
	}

	output.Duration = time.Since(start)
	output.MemoryPeak = monitor.peakUsage()

	if res.err != nil {
		if isInterrupt(res.err, ErrMemoryLimit) {
			return nil, eventmodel.Wrap(ErrMemoryLimit, eventmodel.KindExecution, "memory limit exceeded")
		}
		if isInterrupt(res.err, ErrTimeout) {
			return nil, eventmodel.Wrap(ErrTimeout, eventmodel.KindTimeout, "wall-clock deadline exceeded")
		}
		return nil, eventmodel.Wrap(res.err, eventmodel.KindExecution, "script execution failed")
	}

	if res.value != nil && !goja.IsUndefined(res.value) && !goja.IsNull(res.value) {
		output.Result = res.value.Export()
	}
	return output, nil
}

// isInterrupt reports whether err is a goja interrupt carrying sentinel.
func isInterrupt(err error, sentinel error) bool {
	var interrupted *goja.InterruptedError
	if !stderrors.As(err, &interrupted) {
		return false
	}
	cause, ok := interrupted.Value().(error)
	return ok && stderrors.Is(cause, sentinel)
}

const handlerName = "__faas_handler"

var (
	exportDefaultRe = regexp.MustCompile(`\bexport\s+default\s+`)
	exportBindingRe = regexp.MustCompile(`\bexport\s+(function|const|let|var|async)\b`)
)

// prepareCode rewrites the module-style entry points the validator demands
// (export default / export function / export const) into plain script form
// goja can run: the default export is bound to a well-known handler name
// and named exports become ordinary top-level bindings.
func prepareCode(code string) string {
	rewritten := exportDefaultRe.ReplaceAllString(code, "const "+handlerName+" = ")
	rewritten = exportBindingRe.ReplaceAllString(rewritten, "$1")
	return rewritten
}

// setupHostSurface installs the capability-gated globals. Any host-surface
// object whose permission is not granted is absent from the isolate's
// global scope entirely; run and ffi have no host surface at all.
func (s *Sandbox) setupHostSurface(vm *goja.Runtime, fn *eventmodel.Function, perms map[eventmodel.Permission]bool, output *Output) error {
	if err := vm.Set("console", s.consoleObject(vm, output)); err != nil {
		return errors.Wrap(err, "set console")
	}

	if perms[eventmodel.PermissionNet] && s.cfg.EnableNetwork {
		if err := vm.Set("http", s.httpObject(vm, fn)); err != nil {
			return errors.Wrap(err, "set http")
		}
	}
	if perms[eventmodel.PermissionEnv] && s.cfg.EnableEnvironment {
		if err := vm.Set("env", s.envObject(vm)); err != nil {
			return errors.Wrap(err, "set env")
		}
	}
	if perms[eventmodel.PermissionHRTime] {
		if err := vm.Set("hrtime", func() float64 {
			return float64(time.Now().UnixNano()) / 1e6
		}); err != nil {
			return errors.Wrap(err, "set hrtime")
		}
	}
	return nil
}

func (s *Sandbox) consoleObject(vm *goja.Runtime, output *Output) map[string]interface{} {
	logFn := func(level string) func(args ...interface{}) {
		return func(args ...interface{}) {
			parts := make([]string, len(args))
			for i, a := range args {
				parts[i] = fmt.Sprintf("%+v", a)
			}
			msg := strings.Join(parts, " ")
			output.Logs = append(output.Logs, level+": "+msg)
			s.logger.Debug("script log", zap.String("level", level), zap.String("message", msg))
		}
	}
	return map[string]interface{}{
		"log":   logFn("LOG"),
		"info":  logFn("INFO"),
		"warn":  logFn("WARN"),
		"error": logFn("ERROR"),
	}
}
