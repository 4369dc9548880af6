// Package catalog holds the data catalog itself: business domains, data
// products and datasets. The authorization layer treats it as the source of
// truth for which resources exist and which domain they roll up to.
package catalog

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state shared by products and datasets.
type Status string

const (
	StatusPending Status = "pending"
	StatusActive  Status = "active"
	StatusDeleted Status = "deleted"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusDeleted:
		return true
	}
	return false
}

// AccessType controls how visible a dataset is outside its members.
type AccessType string

const (
	AccessPublic     AccessType = "public"
	AccessRestricted AccessType = "restricted"
	AccessPrivate    AccessType = "private"
)

func (a AccessType) Valid() bool {
	switch a {
	case AccessPublic, AccessRestricted, AccessPrivate:
		return true
	}
	return false
}

// Domain is a business area products and datasets are grouped under.
// Domain-scoped grants cascade to every resource inside.
type Domain struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DataProduct is a managed deliverable owned by a team within a domain.
type DataProduct struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Namespace   string    `json:"namespace"`
	Description string    `json:"description"`
	DomainID    uuid.UUID `json:"domain_id"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Dataset is a consumable data asset within a domain.
type Dataset struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Namespace   string     `json:"namespace"`
	Description string     `json:"description"`
	DomainID    uuid.UUID  `json:"domain_id"`
	AccessType  AccessType `json:"access_type"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
