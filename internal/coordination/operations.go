package coordination

import (
	"context"

	"github.com/google/uuid"

	"github.com/BenjaminPelletier/dss/internal/dsserr"
	"github.com/BenjaminPelletier/dss/internal/geo"
	"github.com/BenjaminPelletier/dss/internal/store"
)

// OperationService implements the contract in spec section 4.5 — the most
// intricate subsystem: the binding invariant between an Operation and its
// subscription, the implicit-subscription lifecycle, and the subscriber
// fan-out computed on every mutation.
type OperationService struct {
	Store    store.Store
	GeoIndex geo.Config
}

// NewSubscriptionSpec is the `new_subscription` block of a PUT /operations
// request, used to create a fresh implicit subscription bound to the
// operation being created.
type NewSubscriptionSpec struct {
	USSBaseURL           string
	NotifyForConstraints bool
}

// PutOperationRequest is the parsed body of PUT /operations/{id}.
type PutOperationRequest struct {
	OldVersion      *int
	USSBaseURL      string
	Extents         []map[string]any
	SubscriptionID  *uuid.UUID
	NewSubscription *NewSubscriptionSpec
}

// PutOperationResult is what the request pipeline serializes back.
type PutOperationResult struct {
	Operation   *store.Operation
	Subscribers Plan
	Created     bool
}

// Put creates or mutates an operation. See spec section 4.5 steps 1-7.
func (s *OperationService) Put(ctx context.Context, id uuid.UUID, caller string, req PutOperationRequest) (*PutOperationResult, error) {
	if req.USSBaseURL == "" {
		return nil, dsserr.InvalidRequestf("uss_base_url is required")
	}
	if len(req.Extents) == 0 {
		return nil, dsserr.InvalidRequestf("extents is required and must be non-empty")
	}

	// Step 1: parse each extent and combine into the operation's envelope.
	vol4s := make([]geo.Volume4, 0, len(req.Extents))
	for _, extent := range req.Extents {
		v, err := geo.ExpandVolume4(extent, s.GeoIndex.MinS2Level, s.GeoIndex.MaxS2Level)
		if err != nil {
			return nil, err
		}
		vol4s = append(vol4s, v)
	}
	vol4, err := geo.CombineVolume4s(vol4s)
	if err != nil {
		return nil, err
	}
	if vol4.TimeStart == nil || vol4.TimeEnd == nil || vol4.AltitudeLo == nil || vol4.AltitudeHi == nil {
		return nil, dsserr.InvalidRequestf("operations must have bounded time_start, time_end, altitude_lo, and altitude_hi")
	}

	var result PutOperationResult
	err = s.Store.Transact(ctx, func(tx store.Tx) error {
		// Step 2: existence, ownership, and version checks.
		existing, exists := tx.GetOperation(id)
		if exists {
			if existing.Owner != caller {
				return dsserr.Forbiddenf("operation %s is owned by a different client", id)
			}
			if req.OldVersion == nil || *req.OldVersion != existing.Version {
				return dsserr.VersionConflictf("old_version does not match current version of operation %s", id)
			}
		} else if req.OldVersion != nil && *req.OldVersion != 0 {
			return dsserr.VersionConflictf("old_version must be 0 or absent when creating operation %s", id)
		}

		// Step 3: resolve the binding subscription.
		sub, err := resolveBindingSubscription(tx, id, caller, vol4, req)
		if err != nil {
			return err
		}

		// Step 4: build the new Operation.
		op := &store.Operation{
			ID:           id,
			Owner:        caller,
			OVN:          uuid.NewString(),
			Vol4:         vol4,
			USSBaseURL:   req.USSBaseURL,
			Subscription: sub.ID,
		}
		if exists {
			op.Version = existing.Version + 1
		} else {
			op.Version = 1
		}

		// Step 5: persist both atomically (already under the store lock).
		tx.UpsertSubscription(sub)
		tx.UpsertOperation(op)

		// Step 6: compute and bump the subscriber fan-out.
		subscribers := planAndBump(tx, tx.FindSubscriptions(vol4, ""))

		result = PutOperationResult{Operation: op, Subscribers: subscribers, Created: !exists}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// resolveBindingSubscription implements spec section 4.5 step 3: either bind
// to an existing subscription that must already contain vol4, or mint a
// fresh implicit one.
func resolveBindingSubscription(tx store.Tx, opID uuid.UUID, caller string, vol4 geo.Volume4, req PutOperationRequest) (*store.Subscription, error) {
	switch {
	case req.SubscriptionID != nil:
		sub, ok := tx.GetSubscription(*req.SubscriptionID)
		if !ok {
			return nil, dsserr.InvalidRequestf("subscription_id %s does not exist", *req.SubscriptionID)
		}
		if !sub.Vol4.Contains(vol4) {
			return nil, dsserr.InvalidRequestf("subscription %s does not contain the operation's volume", sub.ID)
		}
		if sub.DependentOperations == nil {
			sub.DependentOperations = make(map[uuid.UUID]struct{})
		}
		sub.DependentOperations[opID] = struct{}{}
		sub.Version++
		return sub, nil

	case req.NewSubscription != nil:
		return &store.Subscription{
			ID:                   uuid.New(),
			Owner:                caller,
			Version:              1,
			NotificationIndex:    0,
			Vol4:                 vol4,
			USSBaseURL:           req.NewSubscription.USSBaseURL,
			NotifyForOperations:  true,
			NotifyForConstraints: req.NewSubscription.NotifyForConstraints,
			Implicit:             true,
			DependentOperations:  map[uuid.UUID]struct{}{opID: {}},
		}, nil

	default:
		return nil, dsserr.InvalidRequestf("one of subscription_id or new_subscription is required")
	}
}

// Get returns the operation by ID. revealOVN reports whether the caller is
// the owner, per spec section 4.5.
func (s *OperationService) Get(ctx context.Context, id uuid.UUID, caller string) (op *store.Operation, revealOVN bool, err error) {
	err = s.Store.Transact(ctx, func(tx store.Tx) error {
		found, ok := tx.GetOperation(id)
		if !ok {
			return dsserr.NotFoundf("operation %s not found", id)
		}
		op = found
		revealOVN = found.Owner == caller
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return op, revealOVN, nil
}

// Query returns all operations whose vol4 intersects the query volume.
func (s *OperationService) Query(ctx context.Context, queryExtents map[string]any) ([]*store.Operation, error) {
	vol4, err := geo.ExpandVolume4(queryExtents, s.GeoIndex.MinS2Level, s.GeoIndex.MaxS2Level)
	if err != nil {
		return nil, err
	}
	var ops []*store.Operation
	err = s.Store.Transact(ctx, func(tx store.Tx) error {
		ops = tx.FindOperations(vol4)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ops, nil
}

// DeleteOperationResult is what the request pipeline serializes back.
type DeleteOperationResult struct {
	Operation   *store.Operation
	Subscribers Plan
}

// Delete removes an operation and unwinds its binding subscription. See
// spec section 4.5's DELETE steps 1-4.
func (s *OperationService) Delete(ctx context.Context, id uuid.UUID, caller string) (*DeleteOperationResult, error) {
	var result DeleteOperationResult
	err := s.Store.Transact(ctx, func(tx store.Tx) error {
		op, ok := tx.GetOperation(id)
		if !ok {
			return dsserr.NotFoundf("operation %s not found", id)
		}
		if op.Owner != caller {
			return dsserr.Forbiddenf("operation %s is owned by a different client", id)
		}
		tx.DeleteOperation(id)

		if sub, ok := tx.GetSubscription(op.Subscription); ok {
			delete(sub.DependentOperations, id)
			if sub.Implicit && len(sub.DependentOperations) == 0 {
				tx.DeleteSubscription(sub.ID)
			} else {
				sub.Version++
				tx.UpsertSubscription(sub)
			}
		}

		subscribers := planAndBump(tx, tx.FindSubscriptions(op.Vol4, ""))
		result = DeleteOperationResult{Operation: op, Subscribers: subscribers}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}
