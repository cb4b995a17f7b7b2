// Package dispatcher implements the dispatcher and callback executor:
// it consumes the fan-in event stream, matches events against
// registered triggers, and runs one bounded, deadline-enforced callback
// per match on a dedicated worker pool.
package dispatcher

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/r3e-network/faas-trigger-engine/internal/evaluator"
	"github.com/r3e-network/faas-trigger-engine/internal/sandbox"
	"github.com/r3e-network/faas-trigger-engine/internal/storage"
	"github.com/r3e-network/faas-trigger-engine/internal/threatdetector"
	"github.com/r3e-network/faas-trigger-engine/internal/triggerregistry"
	"github.com/r3e-network/faas-trigger-engine/pkg/eventmodel"
)

// Executor runs one sandboxed call. Implemented by *sandbox.Sandbox;
// tests substitute fakes.
type Executor interface {
	Execute(ctx context.Context, fn *eventmodel.Function, input interface{}) (*sandbox.Output, error)
}

// Config bounds the dispatcher's concurrency and deadlines.
type Config struct {
	// DefaultDeadline is the per-callback wall-clock deadline (default
	// 30s). A function's own tighter limit still applies inside the
	// sandbox.
	DefaultDeadline time.Duration

	// Workers sizes the sandbox worker pool. CPU-bound sandbox calls run
	// here, separate from the event-consumption loop, so a burst of slow
	// functions cannot stall ingestion.
	Workers int
}

func (c Config) withDefaults() Config {
	if c.DefaultDeadline <= 0 {
		c.DefaultDeadline = 30 * time.Second
	}
	if c.Workers <= 0 {
		c.Workers = 8
	}
	return c
}

// Dispatcher wires the registry, evaluator, sandbox and threat detector
// into the event->execution pipeline.
type Dispatcher struct {
	cfg       Config
	registry  *triggerregistry.Registry
	evaluator evaluator.Evaluator
	functions storage.Functions
	callbacks storage.Callbacks
	executor  Executor
	detector  *threatdetector.Detector
	logger    *zap.Logger
	metrics   *metrics

	flights *triggerFlights
	jobs    chan job
	wg      sync.WaitGroup
}

type job struct {
	trigger *eventmodel.Trigger
	event   *eventmodel.Event
}

// New builds a dispatcher. reg may be nil to skip metric registration.
func New(
	cfg Config,
	registry *triggerregistry.Registry,
	ev evaluator.Evaluator,
	functions storage.Functions,
	callbacks storage.Callbacks,
	executor Executor,
	detector *threatdetector.Detector,
	logger *zap.Logger,
	reg prometheus.Registerer,
) *Dispatcher {
	cfg = cfg.withDefaults()
	return &Dispatcher{
		cfg:       cfg,
		registry:  registry,
		evaluator: ev,
		functions: functions,
		callbacks: callbacks,
		executor:  executor,
		detector:  detector,
		logger:    logger,
		metrics:   newMetrics(reg),
		flights:   newTriggerFlights(),
		jobs:      make(chan job, cfg.Workers*4),
	}
}

// Run consumes events until the channel closes or ctx is cancelled, then
// drains the worker pool. It blocks; callers run it in its own goroutine.
func (d *Dispatcher) Run(ctx context.Context, events <-chan *eventmodel.Event) {
	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			close(d.jobs)
			d.wg.Wait()
			return
		case event, ok := <-events:
			if !ok {
				close(d.jobs)
				d.wg.Wait()
				return
			}
			d.handleEvent(ctx, event)
		}
	}
}

func (d *Dispatcher) worker(ctx context.Context) {
	defer d.wg.Done()
	for j := range d.jobs {
		d.dispatch(ctx, j.trigger, j.event)
		d.flights.release(j.trigger.ID)
	}
}

// conditionSourcesFor maps an event variant to the trigger condition
// sources it can satisfy, for the registry's indexed candidate lookup.
func conditionSourcesFor(kind eventmodel.EventKind) []eventmodel.ConditionSource {
	switch kind {
	case eventmodel.EventNeoBlock, eventmodel.EventNeoTransaction, eventmodel.EventNeoContractEvent,
		eventmodel.EventEthereumBlock, eventmodel.EventEthereumTransaction, eventmodel.EventEthereumContractLog:
		return []eventmodel.ConditionSource{eventmodel.ConditionBlockchain}
	case eventmodel.EventTime:
		return []eventmodel.ConditionSource{eventmodel.ConditionTime}
	case eventmodel.EventMarket:
		return []eventmodel.ConditionSource{eventmodel.ConditionMarket}
	case eventmodel.EventCustom:
		return []eventmodel.ConditionSource{eventmodel.ConditionCustom}
	default:
		return nil
	}
}

func (d *Dispatcher) handleEvent(ctx context.Context, event *eventmodel.Event) {
	if event == nil || event.Kind == eventmodel.EventNone {
		return
	}
	d.metrics.eventsConsumed.WithLabelValues(event.Source).Inc()

	for _, source := range conditionSourcesFor(event.Kind) {
		for _, trigger := range d.registry.ListBySource(source) {
			matched, err := d.evaluator.Evaluate(ctx, &trigger.Condition, event)
			if err != nil {
				d.metrics.evalErrors.Inc()
				d.logger.Warn("trigger condition evaluation failed",
					zap.String("trigger_id", trigger.ID),
					zap.Error(err))
				continue
			}
			if !matched {
				continue
			}

			if !d.flights.tryAcquire(trigger.ID) {
				d.metrics.skippedInflight.Inc()
				d.logger.Warn("skipping dispatch, callback already in flight for trigger",
					zap.String("trigger_id", trigger.ID),
					zap.String("event_source", event.Source))
				continue
			}

			select {
			case d.jobs <- job{trigger: trigger, event: event}:
			case <-ctx.Done():
				d.flights.release(trigger.ID)
				return
			}
		}
	}
}

// dispatch runs the full callback protocol for one matched
// (trigger, event) pair: persist Pending, transition to Executing,
// invoke the sandbox, record the terminal state.
func (d *Dispatcher) dispatch(ctx context.Context, trigger *eventmodel.Trigger, event *eventmodel.Event) {
	start := time.Now()
	defer func() {
		d.metrics.dispatchSeconds.Observe(time.Since(start).Seconds())
	}()

	now := time.Now()
	result := &eventmodel.CallbackResult{
		ID:         uuid.NewString(),
		TriggerID:  trigger.ID,
		UserID:     trigger.UserID,
		FunctionID: trigger.FunctionID,
		Status:     eventmodel.CallbackPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	d.persist(result)

	d.transition(result, eventmodel.CallbackExecuting)
	d.persist(result)

	// Cancellation must not leave the record stuck in Executing.
	terminal := false
	defer func() {
		if !terminal {
			result.Error = "cancelled"
			d.transition(result, eventmodel.CallbackFailed)
			result.Duration = time.Since(start)
			d.persist(result)
			d.metrics.callbacks.WithLabelValues(string(eventmodel.CallbackFailed)).Inc()
		}
	}()

	var eventData interface{}
	if len(event.Payload) > 0 {
		if err := json.Unmarshal(event.Payload, &eventData); err != nil {
			d.logger.Warn("undecodable event payload", zap.Error(err))
		}
	}
	payload := map[string]interface{}{
		"callback_id":         result.ID,
		"trigger_id":          trigger.ID,
		"user_id":             trigger.UserID,
		"function_id":         trigger.FunctionID,
		"event_data":          eventData,
		"ingestion_timestamp": event.Timestamp,
	}

	fn, err := d.functions.GetFunction(ctx, trigger.FunctionID)
	if err != nil {
		d.fail(result, start, "function not found: "+trigger.FunctionID)
		terminal = true
		return
	}

	execCtx, cancel := context.WithTimeout(ctx, d.cfg.DefaultDeadline)
	output, err := d.executor.Execute(execCtx, fn, payload)
	cancel()

	switch {
	case err == nil:
		result.Result = output.Result
		result.Duration = time.Since(start)
		d.transition(result, eventmodel.CallbackSucceeded)
	case eventmodel.Is(err, eventmodel.KindTimeout):
		result.Error = err.Error()
		result.Duration = time.Since(start)
		d.transition(result, eventmodel.CallbackTimedOut)
		d.detector.RecordFailedExecution(trigger.UserID, trigger.FunctionID, time.Now())
		d.detector.CheckExecutionTime(trigger.UserID, trigger.FunctionID, result.Duration, time.Now())
	default:
		result.Error = err.Error()
		result.Duration = time.Since(start)
		d.transition(result, eventmodel.CallbackFailed)
		d.detector.RecordFailedExecution(trigger.UserID, trigger.FunctionID, time.Now())
	}

	terminal = true
	d.persist(result)
	d.metrics.callbacks.WithLabelValues(string(result.Status)).Inc()
}

func (d *Dispatcher) fail(result *eventmodel.CallbackResult, start time.Time, message string) {
	result.Error = message
	result.Duration = time.Since(start)
	d.transition(result, eventmodel.CallbackFailed)
	d.detector.RecordFailedExecution(result.UserID, result.FunctionID, time.Now())
	d.persist(result)
	d.metrics.callbacks.WithLabelValues(string(eventmodel.CallbackFailed)).Inc()
}

// transition applies a status change, enforcing the monotonic lifecycle.
func (d *Dispatcher) transition(result *eventmodel.CallbackResult, next eventmodel.CallbackStatus) {
	if !result.Status.CanTransitionTo(next) {
		d.logger.Error("illegal callback status transition",
			zap.String("callback_id", result.ID),
			zap.String("from", string(result.Status)),
			zap.String("to", string(next)))
		return
	}
	result.Status = next
	result.UpdatedAt = time.Now()
}

// persist writes the record's current state; storage failures are logged
// and swallowed; the terminal state still reflects what happened in
// memory.
func (d *Dispatcher) persist(result *eventmodel.CallbackResult) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.callbacks.StoreCallback(ctx, result); err != nil {
		d.logger.Error("failed to persist callback result",
			zap.String("callback_id", result.ID),
			zap.Error(err))
	}
}
