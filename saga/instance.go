package saga

import (
	"context"
	"errors"
	"time"
)

// ErrInstanceNotFound is returned by an InstanceStore for an unknown correlation id.
var ErrInstanceNotFound = errors.New("saga: instance not found")

// Status of a saga instance.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	// StatusAbandoned marks instances left running by a previous process.
	StatusAbandoned Status = "abandoned"
)

// Instance is the persisted state of one saga run.
type Instance struct {
	StartedAt     time.Time `json:"startedAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
	CorrelationID string    `json:"correlationId"`
	Kind          string    `json:"kind"`
	Step          string    `json:"step"`
	Status        Status    `json:"status"`
	Reason        string    `json:"reason,omitempty"`
}

// InstanceStore persists saga instances keyed by correlation id.
type InstanceStore interface {
	Save(ctx context.Context, instance Instance) error
	Get(ctx context.Context, correlationID string) (Instance, error)
	ListByStatus(ctx context.Context, status Status) ([]Instance, error)
}
