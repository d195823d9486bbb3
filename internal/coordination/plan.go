package coordination

import (
	"github.com/google/uuid"

	"github.com/BenjaminPelletier/dss/internal/store"
)

// SubscriberEntry is one subscriber's notification coordinates within a plan.
type SubscriberEntry struct {
	SubscriptionID    uuid.UUID
	NotificationIndex int
}

// USSNotification groups the subscribers belonging to one USS base URL.
type USSNotification struct {
	USSBaseURL    string
	Subscriptions []SubscriberEntry
}

// Plan is the notification fan-out plan returned to the caller of a
// mutation: the client, not the DSS, is responsible for delivering these
// notifications out of band.
type Plan []USSNotification

// planAndBump groups subs by USSBaseURL, preserving the first-seen order of
// both groups and members within a group, and advances each subscription's
// notification_index. Per spec section 4.5's notification-index note, the
// index is bumped at subscriber-collection time inside the same store
// transaction as the triggering mutation, so every subscription included in
// the plan is also upserted here to persist the bump.
func planAndBump(tx store.Tx, subs []*store.Subscription) Plan {
	var order []string
	groups := make(map[string][]SubscriberEntry)

	for _, sub := range subs {
		sub.NotificationIndex++
		tx.UpsertSubscription(sub)

		if _, seen := groups[sub.USSBaseURL]; !seen {
			order = append(order, sub.USSBaseURL)
		}
		groups[sub.USSBaseURL] = append(groups[sub.USSBaseURL], SubscriberEntry{
			SubscriptionID:    sub.ID,
			NotificationIndex: sub.NotificationIndex,
		})
	}

	plan := make(Plan, 0, len(order))
	for _, url := range order {
		plan = append(plan, USSNotification{USSBaseURL: url, Subscriptions: groups[url]})
	}
	return plan
}
