// Package coordination implements SubscriptionService, OperationService, and
// NotificationPlanner: the version/ownership protocol, the implicit-
// subscription lifecycle, and the notification fan-out described by spec
// sections 4.4 through 4.6.
package coordination

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/BenjaminPelletier/dss/internal/dsserr"
	"github.com/BenjaminPelletier/dss/internal/geo"
	"github.com/BenjaminPelletier/dss/internal/store"
)

// SubscriptionService implements the contracts in spec section 4.4.
type SubscriptionService struct {
	Store    store.Store
	GeoIndex geo.Config
}

// PutSubscriptionRequest is the parsed body of PUT /subscriptions/{id}.
type PutSubscriptionRequest struct {
	OldVersion           *int
	USSBaseURL           string
	NotifyForOperations  bool
	NotifyForConstraints bool
	Extents              map[string]any
}

// PutSubscriptionResult is what the request pipeline serializes back.
type PutSubscriptionResult struct {
	Subscription *store.Subscription
	Operations   []*store.Operation
	Created      bool
}

// Put creates or mutates a subscription. See spec section 4.4 for the full
// contract; req's required fields are checked and its extents parsed first,
// then ownership and version checks run inside the store transaction, and the
// write only happens once both pass.
func (s *SubscriptionService) Put(ctx context.Context, id uuid.UUID, caller string, req PutSubscriptionRequest) (*PutSubscriptionResult, error) {
	if req.USSBaseURL == "" {
		return nil, dsserr.InvalidRequestf("uss_base_url is required")
	}
	if req.Extents == nil {
		return nil, dsserr.InvalidRequestf("extents is required")
	}

	vol4, err := geo.ExpandVolume4(req.Extents, s.GeoIndex.MinS2Level, s.GeoIndex.MaxS2Level)
	if err != nil {
		return nil, err
	}
	if vol4.TimeStart == nil {
		now := time.Now().UTC()
		vol4.TimeStart = &now
	}

	var result PutSubscriptionResult
	err = s.Store.Transact(ctx, func(tx store.Tx) error {
		existing, exists := tx.GetSubscription(id)

		if exists {
			if existing.Owner != caller {
				return dsserr.Forbiddenf("subscription %s is owned by a different client", id)
			}
			if req.OldVersion == nil || *req.OldVersion != existing.Version {
				return dsserr.VersionConflictf("old_version does not match current version of subscription %s", id)
			}
		} else if req.OldVersion != nil && *req.OldVersion != 0 {
			return dsserr.VersionConflictf("old_version must be 0 or absent when creating subscription %s", id)
		}

		sub := &store.Subscription{
			ID:                   id,
			Owner:                caller,
			Vol4:                 vol4,
			USSBaseURL:           req.USSBaseURL,
			NotifyForOperations:  req.NotifyForOperations,
			NotifyForConstraints: req.NotifyForConstraints,
			Implicit:             false,
		}
		if exists {
			sub.Version = existing.Version + 1
			sub.NotificationIndex = existing.NotificationIndex
			sub.DependentOperations = existing.DependentOperations
		} else {
			sub.Version = 1
			sub.NotificationIndex = 0
			sub.DependentOperations = make(map[uuid.UUID]struct{})
		}
		tx.UpsertSubscription(sub)

		result = PutSubscriptionResult{
			Subscription: sub,
			Operations:   tx.FindOperations(vol4),
			Created:      !exists,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Get returns the subscription by ID. Reads require the configured scope but
// no ownership check (spec section 4.4).
func (s *SubscriptionService) Get(ctx context.Context, id uuid.UUID) (*store.Subscription, error) {
	var sub *store.Subscription
	err := s.Store.Transact(ctx, func(tx store.Tx) error {
		found, ok := tx.GetSubscription(id)
		if !ok {
			return dsserr.NotFoundf("subscription %s not found", id)
		}
		sub = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// Query returns the caller's own subscriptions whose vol4 intersects aoi.
func (s *SubscriptionService) Query(ctx context.Context, caller string, aoiExtents map[string]any) ([]*store.Subscription, error) {
	aoi, err := geo.ExpandVolume4(aoiExtents, s.GeoIndex.MinS2Level, s.GeoIndex.MaxS2Level)
	if err != nil {
		return nil, err
	}
	var subs []*store.Subscription
	err = s.Store.Transact(ctx, func(tx store.Tx) error {
		subs = tx.FindSubscriptions(aoi, caller)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return subs, nil
}

// DeleteSubscriptionResult is what the request pipeline serializes back.
type DeleteSubscriptionResult struct {
	Subscription *store.Subscription
}

// Delete removes a subscription. Owner-only; NotFound if absent.
func (s *SubscriptionService) Delete(ctx context.Context, id uuid.UUID, caller string) (*DeleteSubscriptionResult, error) {
	var result DeleteSubscriptionResult
	err := s.Store.Transact(ctx, func(tx store.Tx) error {
		existing, ok := tx.GetSubscription(id)
		if !ok {
			return dsserr.NotFoundf("subscription %s not found", id)
		}
		if existing.Owner != caller {
			return dsserr.Forbiddenf("subscription %s is owned by a different client", id)
		}
		tx.DeleteSubscription(id)
		result = DeleteSubscriptionResult{Subscription: existing}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}
