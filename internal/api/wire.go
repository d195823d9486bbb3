// Package api implements the RequestPipeline component (spec section 4.7):
// chi handlers that authenticate, parse wire bodies into coordination-layer
// requests, call SubscriptionService/OperationService, and serialize the
// result per the wire shapes in spec section 6.
package api

import (
	"github.com/google/uuid"

	"github.com/BenjaminPelletier/dss/internal/coordination"
	"github.com/BenjaminPelletier/dss/internal/geo"
	"github.com/BenjaminPelletier/dss/internal/store"
)

// subscriptionRef is the wire shape of a Subscription.
type subscriptionRef struct {
	ID                   uuid.UUID `json:"id"`
	Owner                string    `json:"owner"`
	Version              int       `json:"version"`
	NotificationIndex    int       `json:"notification_index"`
	USSBaseURL           string    `json:"uss_base_url"`
	NotifyForOperations  bool      `json:"notify_for_operations"`
	NotifyForConstraints bool      `json:"notify_for_constraints"`
	Implicit             bool      `json:"implicit"`
	TimeStart            *string   `json:"time_start,omitempty"`
	TimeEnd              *string   `json:"time_end,omitempty"`
	AltitudeLo           *float64  `json:"altitude_lo,omitempty"`
	AltitudeHi           *float64  `json:"altitude_hi,omitempty"`
}

func toSubscriptionRef(sub *store.Subscription) subscriptionRef {
	return subscriptionRef{
		ID:                   sub.ID,
		Owner:                sub.Owner,
		Version:              sub.Version,
		NotificationIndex:    sub.NotificationIndex,
		USSBaseURL:           sub.USSBaseURL,
		NotifyForOperations:  sub.NotifyForOperations,
		NotifyForConstraints: sub.NotifyForConstraints,
		Implicit:             sub.Implicit,
		TimeStart:            geo.FormatTimestamp(sub.Vol4.TimeStart),
		TimeEnd:              geo.FormatTimestamp(sub.Vol4.TimeEnd),
		AltitudeLo:           sub.Vol4.AltitudeLo,
		AltitudeHi:           sub.Vol4.AltitudeHi,
	}
}

// operationRef is the wire shape of an Operation. OVN is omitted entirely
// (not merely empty-stringed) when the caller isn't the owner, so it never
// leaks via presence-in-body either.
type operationRef struct {
	ID           uuid.UUID `json:"id"`
	Owner        string    `json:"owner"`
	Version      int       `json:"version"`
	OVN          string    `json:"ovn,omitempty"`
	USSBaseURL   string    `json:"uss_base_url"`
	Subscription uuid.UUID `json:"subscription_id"`
	TimeStart    *string   `json:"time_start,omitempty"`
	TimeEnd      *string   `json:"time_end,omitempty"`
	AltitudeLo   *float64  `json:"altitude_lo,omitempty"`
	AltitudeHi   *float64  `json:"altitude_hi,omitempty"`
}

func toOperationRef(op *store.Operation, revealOVN bool) operationRef {
	ref := operationRef{
		ID:           op.ID,
		Owner:        op.Owner,
		Version:      op.Version,
		USSBaseURL:   op.USSBaseURL,
		Subscription: op.Subscription,
		TimeStart:    geo.FormatTimestamp(op.Vol4.TimeStart),
		TimeEnd:      geo.FormatTimestamp(op.Vol4.TimeEnd),
		AltitudeLo:   op.Vol4.AltitudeLo,
		AltitudeHi:   op.Vol4.AltitudeHi,
	}
	if revealOVN {
		ref.OVN = op.OVN
	}
	return ref
}

// subscriberEntry is the wire shape of one subscription entry inside a
// notification group.
type subscriberEntry struct {
	SubscriptionID    uuid.UUID `json:"subscription_id"`
	NotificationIndex int       `json:"notification_index"`
}

// ussNotification is the wire shape of one notification group.
type ussNotification struct {
	USSBaseURL    string            `json:"uss_base_url"`
	Subscriptions []subscriberEntry `json:"subscriptions"`
}

func toSubscribersWire(plan coordination.Plan) []ussNotification {
	out := make([]ussNotification, 0, len(plan))
	for _, group := range plan {
		entries := make([]subscriberEntry, 0, len(group.Subscriptions))
		for _, e := range group.Subscriptions {
			entries = append(entries, subscriberEntry{
				SubscriptionID:    e.SubscriptionID,
				NotificationIndex: e.NotificationIndex,
			})
		}
		out = append(out, ussNotification{USSBaseURL: group.USSBaseURL, Subscriptions: entries})
	}
	return out
}
