// Package store implements the ReferenceStore component: the entity tables,
// the S2-cell bucket index, and the single-exclusive-writer transaction
// discipline described by spec section 5.
package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/BenjaminPelletier/dss/internal/geo"
)

// Subscription is a USS's standing interest in a 4-D region.
type Subscription struct {
	ID                   uuid.UUID
	Owner                string
	Version              int
	NotificationIndex    int
	Vol4                 geo.Volume4
	USSBaseURL           string
	NotifyForOperations  bool
	NotifyForConstraints bool
	Implicit             bool
	DependentOperations  map[uuid.UUID]struct{}
}

// Operation is a planned flight volume registered by a USS.
type Operation struct {
	ID           uuid.UUID
	Owner        string
	Version      int
	OVN          string
	Vol4         geo.Volume4
	USSBaseURL   string
	Subscription uuid.UUID
}

// Tx is the capability set exposed inside a single exclusive critical
// section. No method on Tx may be called outside of Store.Transact.
type Tx interface {
	GetSubscription(id uuid.UUID) (*Subscription, bool)
	UpsertSubscription(sub *Subscription)
	DeleteSubscription(id uuid.UUID)
	// FindSubscriptions returns subscriptions whose cells intersect vol4's
	// and whose vol4 overlaps vol4's on time and altitude. If owner is
	// non-empty, results are additionally filtered to that owner.
	FindSubscriptions(vol4 geo.Volume4, owner string) []*Subscription

	GetOperation(id uuid.UUID) (*Operation, bool)
	UpsertOperation(op *Operation)
	DeleteOperation(id uuid.UUID)
	FindOperations(vol4 geo.Volume4) []*Operation
}

// Store is the ReferenceStore contract: every read and write happens inside
// a Transact call, which holds the store's single exclusive lock for the
// call's full duration. This is what makes a PUT-Operation's read-modify-
// write-then-query-subscribers sequence one atomic critical section.
type Store interface {
	Transact(ctx context.Context, fn func(Tx) error) error
}
