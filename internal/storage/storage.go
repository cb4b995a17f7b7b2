// Package storage defines the four capability groups the core expects
// from its storage collaborator and provides the in-memory backend
// used by the default deployment profile and by tests. Persistent backend
// internals are a collaborator concern; anything satisfying these
// interfaces can be plugged in.
package storage

import (
	"context"
	"time"

	"github.com/r3e-network/faas-trigger-engine/pkg/eventmodel"
)

// Triggers persists trigger records.
type Triggers interface {
	CreateTrigger(ctx context.Context, t *eventmodel.Trigger) error
	GetTrigger(ctx context.Context, id string) (*eventmodel.Trigger, error)
	ListTriggersByFunction(ctx context.Context, functionID string) ([]*eventmodel.Trigger, error)
	UpdateTrigger(ctx context.Context, t *eventmodel.Trigger) error
	DeleteTrigger(ctx context.Context, id string) error
}

// Callbacks persists dispatch outcomes. Store upserts by callback ID: the
// dispatcher persists the same record once per status transition.
type Callbacks interface {
	StoreCallback(ctx context.Context, r *eventmodel.CallbackResult) error
	GetCallback(ctx context.Context, id string) (*eventmodel.CallbackResult, error)
	ListCallbacksByTrigger(ctx context.Context, triggerID string) ([]*eventmodel.CallbackResult, error)
}

// Functions persists function records. A version update replaces the
// stored record wholesale; prior versions are immutable history kept by
// the collaborator, not modeled here.
type Functions interface {
	CreateFunction(ctx context.Context, f *eventmodel.Function) error
	GetFunction(ctx context.Context, id string) (*eventmodel.Function, error)
	ListFunctionsByUser(ctx context.Context, userID string) ([]*eventmodel.Function, error)
	UpdateFunctionVersion(ctx context.Context, f *eventmodel.Function) error
	DeleteFunction(ctx context.Context, id string) error
}

// ThreatEvents is the append-only threat log.
type ThreatEvents interface {
	AppendThreatEvent(ctx context.Context, e eventmodel.ThreatEvent) error
	QueryRecentThreatEvents(ctx context.Context, since time.Time, limit int) ([]eventmodel.ThreatEvent, error)
}

// Store aggregates the four capability groups.
type Store interface {
	Triggers
	Callbacks
	Functions
	ThreatEvents
}
