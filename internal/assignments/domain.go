// Package assignments records role-assignment requests and their decisions.
// Every membership change goes through an assignment row: the row is the
// audit trail, the approval is what writes the actual grant.
package assignments

import (
	"time"

	"github.com/google/uuid"
)

// Kind tells which resource type an assignment binds a role to.
type Kind string

const (
	KindDataProduct Kind = "data_product"
	KindDataset     Kind = "dataset"
	KindGlobal      Kind = "global"
)

func (k Kind) Valid() bool {
	switch k {
	case KindDataProduct, KindDataset, KindGlobal:
		return true
	}
	return false
}

// DecisionStatus is the lifecycle of an assignment request.
type DecisionStatus string

const (
	StatusPending  DecisionStatus = "pending"
	StatusApproved DecisionStatus = "approved"
	StatusDenied   DecisionStatus = "denied"
)

// Assignment is one user-role binding on a resource (or globally for
// KindGlobal, where ResourceID is nil).
type Assignment struct {
	ID          uuid.UUID      `json:"id"`
	Kind        Kind           `json:"kind"`
	ResourceID  *uuid.UUID     `json:"resource_id,omitempty"`
	UserID      uuid.UUID      `json:"user_id"`
	RoleID      uuid.UUID      `json:"role_id"`
	Status      DecisionStatus `json:"status"`
	RequestedBy uuid.UUID      `json:"requested_by"`
	RequestedAt time.Time      `json:"requested_at"`
	DecidedBy   *uuid.UUID     `json:"decided_by,omitempty"`
	DecidedAt   *time.Time     `json:"decided_at,omitempty"`
}
