package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/r3e-network/faas-trigger-engine/pkg/eventmodel"
)

// MemoryStore is the in-memory Store implementation. All methods copy
// records on the way in and out so callers never share mutable state with
// the store.
type MemoryStore struct {
	mu        sync.RWMutex
	triggers  map[string]*eventmodel.Trigger
	callbacks map[string]*eventmodel.CallbackResult
	functions map[string]*eventmodel.Function
	threats   []eventmodel.ThreatEvent
}

// NewMemoryStore builds an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		triggers:  make(map[string]*eventmodel.Trigger),
		callbacks: make(map[string]*eventmodel.CallbackResult),
		functions: make(map[string]*eventmodel.Function),
	}
}

func (s *MemoryStore) CreateTrigger(ctx context.Context, t *eventmodel.Trigger) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.triggers[t.ID]; exists {
		return eventmodel.New(eventmodel.KindStorage, "trigger already exists: "+t.ID)
	}
	cp := *t
	s.triggers[t.ID] = &cp
	return nil
}

func (s *MemoryStore) GetTrigger(ctx context.Context, id string) (*eventmodel.Trigger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.triggers[id]
	if !ok {
		return nil, eventmodel.NotFoundError("trigger not found: " + id)
	}
	cp := *t
	return &cp, nil
}

func (s *MemoryStore) ListTriggersByFunction(ctx context.Context, functionID string) ([]*eventmodel.Trigger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*eventmodel.Trigger
	for _, t := range s.triggers {
		if t.FunctionID == functionID {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) UpdateTrigger(ctx context.Context, t *eventmodel.Trigger) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.triggers[t.ID]; !ok {
		return eventmodel.NotFoundError("trigger not found: " + t.ID)
	}
	cp := *t
	s.triggers[t.ID] = &cp
	return nil
}

func (s *MemoryStore) DeleteTrigger(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.triggers, id)
	return nil
}

func (s *MemoryStore) StoreCallback(ctx context.Context, r *eventmodel.CallbackResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	s.callbacks[r.ID] = &cp
	return nil
}

func (s *MemoryStore) GetCallback(ctx context.Context, id string) (*eventmodel.CallbackResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.callbacks[id]
	if !ok {
		return nil, eventmodel.NotFoundError("callback not found: " + id)
	}
	cp := *r
	return &cp, nil
}

func (s *MemoryStore) ListCallbacksByTrigger(ctx context.Context, triggerID string) ([]*eventmodel.CallbackResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*eventmodel.CallbackResult
	for _, r := range s.callbacks {
		if r.TriggerID == triggerID {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) CreateFunction(ctx context.Context, f *eventmodel.Function) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.functions[f.ID]; exists {
		return eventmodel.New(eventmodel.KindStorage, "function already exists: "+f.ID)
	}
	cp := *f
	s.functions[f.ID] = &cp
	return nil
}

func (s *MemoryStore) GetFunction(ctx context.Context, id string) (*eventmodel.Function, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.functions[id]
	if !ok {
		return nil, eventmodel.NotFoundError("function not found: " + id)
	}
	cp := *f
	return &cp, nil
}

func (s *MemoryStore) ListFunctionsByUser(ctx context.Context, userID string) ([]*eventmodel.Function, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*eventmodel.Function
	for _, f := range s.functions {
		if f.OwnerID == userID {
			cp := *f
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) UpdateFunctionVersion(ctx context.Context, f *eventmodel.Function) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.functions[f.ID]; !ok {
		return eventmodel.NotFoundError("function not found: " + f.ID)
	}
	cp := *f
	cp.UpdatedAt = time.Now()
	s.functions[f.ID] = &cp
	return nil
}

func (s *MemoryStore) DeleteFunction(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.functions, id)
	return nil
}

func (s *MemoryStore) AppendThreatEvent(ctx context.Context, e eventmodel.ThreatEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threats = append(s.threats, e)
	return nil
}

func (s *MemoryStore) QueryRecentThreatEvents(ctx context.Context, since time.Time, limit int) ([]eventmodel.ThreatEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []eventmodel.ThreatEvent
	for i := len(s.threats) - 1; i >= 0; i-- {
		if s.threats[i].Timestamp.Before(since) {
			continue
		}
		out = append(out, s.threats[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// OwnerOf satisfies the registry's FunctionOwnerLookup so the ownership
// invariant check can resolve owners without a context plumbed through.
func (s *MemoryStore) OwnerOf(functionID string) (string, error) {
	f, err := s.GetFunction(context.Background(), functionID)
	if err != nil {
		return "", err
	}
	return f.OwnerID, nil
}
