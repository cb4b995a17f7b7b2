// Package triggerregistry implements the trigger registry: a
// concurrent map of triggers keyed by ID, with secondary indices by
// function ID and by condition source for dispatch lookup.
package triggerregistry

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/r3e-network/faas-trigger-engine/pkg/eventmodel"
)

// FunctionOwnerLookup resolves a function's owner for the ownership check
// in Register.
type FunctionOwnerLookup interface {
	OwnerOf(functionID string) (userID string, err error)
}

// Registry is the concurrent trigger store. The Registry exclusively owns
// the Trigger table; the Dispatcher only ever borrows
// trigger data by value through List/Get.
type Registry struct {
	mu       sync.RWMutex
	byID     map[string]*eventmodel.Trigger
	byFunc   map[string]map[string]struct{}
	bySource map[eventmodel.ConditionSource]map[string]struct{}

	owners FunctionOwnerLookup
}

// New builds an empty registry. owners is consulted by Register to enforce
// the function-ownership invariant.
func New(owners FunctionOwnerLookup) *Registry {
	return &Registry{
		byID:     make(map[string]*eventmodel.Trigger),
		byFunc:   make(map[string]map[string]struct{}),
		bySource: make(map[eventmodel.ConditionSource]map[string]struct{}),
		owners:   owners,
	}
}

// Register validates ownership and appends a new trigger, returning its ID.
func (r *Registry) Register(userID, functionID string, cond eventmodel.TriggerCondition) (string, error) {
	ownerID, err := r.owners.OwnerOf(functionID)
	if err != nil {
		return "", err
	}
	if ownerID != userID {
		return "", eventmodel.UnauthorizedError("user does not own function " + functionID)
	}

	now := time.Now()
	trigger := &eventmodel.Trigger{
		ID:         uuid.NewString(),
		UserID:     userID,
		FunctionID: functionID,
		Condition:  cond,
		Enabled:    true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[trigger.ID] = trigger
	r.indexLocked(trigger)
	return trigger.ID, nil
}

func (r *Registry) indexLocked(t *eventmodel.Trigger) {
	if r.byFunc[t.FunctionID] == nil {
		r.byFunc[t.FunctionID] = make(map[string]struct{})
	}
	r.byFunc[t.FunctionID][t.ID] = struct{}{}

	if r.bySource[t.Condition.Source] == nil {
		r.bySource[t.Condition.Source] = make(map[string]struct{})
	}
	r.bySource[t.Condition.Source][t.ID] = struct{}{}
}

func (r *Registry) unindexLocked(t *eventmodel.Trigger) {
	delete(r.byFunc[t.FunctionID], t.ID)
	if len(r.byFunc[t.FunctionID]) == 0 {
		delete(r.byFunc, t.FunctionID)
	}
	delete(r.bySource[t.Condition.Source], t.ID)
	if len(r.bySource[t.Condition.Source]) == 0 {
		delete(r.bySource, t.Condition.Source)
	}
}

// Unregister removes a trigger. It is idempotent: removing an already-
// absent trigger is a no-op.
func (r *Registry) Unregister(triggerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byID[triggerID]
	if !ok {
		return
	}
	r.unindexLocked(t)
	delete(r.byID, triggerID)
}

// Get returns a snapshot copy of a trigger, or NotFound.
func (r *Registry) Get(triggerID string) (*eventmodel.Trigger, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byID[triggerID]
	if !ok {
		return nil, eventmodel.NotFoundError("trigger not found: " + triggerID)
	}
	cp := *t
	return &cp, nil
}

// ListForFunction returns snapshot copies of a function's triggers.
func (r *Registry) ListForFunction(functionID string) []*eventmodel.Trigger {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := r.byFunc[functionID]
	out := make([]*eventmodel.Trigger, 0, len(ids))
	for id := range ids {
		cp := *r.byID[id]
		out = append(out, &cp)
	}
	return out
}

// ListBySource returns a snapshot of all enabled triggers whose condition
// source matches, for the dispatcher's per-event candidate lookup.
func (r *Registry) ListBySource(source eventmodel.ConditionSource) []*eventmodel.Trigger {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := r.bySource[source]
	out := make([]*eventmodel.Trigger, 0, len(ids))
	for id := range ids {
		t := r.byID[id]
		if !t.Enabled {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	return out
}

// Enable toggles a trigger's enabled flag.
func (r *Registry) Enable(triggerID string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byID[triggerID]
	if !ok {
		return eventmodel.NotFoundError("trigger not found: " + triggerID)
	}
	t.Enabled = enabled
	t.UpdatedAt = time.Now()
	return nil
}

// Update replaces a trigger's condition, re-indexing by source if changed.
func (r *Registry) Update(triggerID string, cond eventmodel.TriggerCondition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byID[triggerID]
	if !ok {
		return eventmodel.NotFoundError("trigger not found: " + triggerID)
	}
	r.unindexLocked(t)
	t.Condition = cond
	t.UpdatedAt = time.Now()
	r.indexLocked(t)
	return nil
}
