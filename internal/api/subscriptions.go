package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/BenjaminPelletier/dss/internal/auth"
	"github.com/BenjaminPelletier/dss/internal/coordination"
	"github.com/BenjaminPelletier/dss/internal/dsserr"
	"github.com/BenjaminPelletier/dss/internal/httpserver"
)

// SubscriptionHandlers adapts coordination.SubscriptionService to chi routes.
type SubscriptionHandlers struct {
	Service *coordination.SubscriptionService
}

// putSubscriptionBody is the wire body of PUT /subscriptions/{id}.
type putSubscriptionBody struct {
	OldVersion           *int           `json:"old_version"`
	USSBaseURL           string         `json:"uss_base_url"`
	NotifyForOperations  bool           `json:"notify_for_operations"`
	NotifyForConstraints bool           `json:"notify_for_constraints"`
	Extents              map[string]any `json:"extents"`
}

// Get handles GET /dss/v1/subscriptions/{id}.
func (h *SubscriptionHandlers) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, dsserr.InvalidRequestf("invalid subscription id: %s", err))
		return
	}

	sub, err := h.Service.Get(r.Context(), id)
	if err != nil {
		httpserver.RespondError(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, map[string]any{"subscription": toSubscriptionRef(sub)})
}

// queryBody is the wire body of POST /subscriptions/query and
// POST /operations/query.
type queryBody struct {
	AreaOfInterest map[string]any `json:"area_of_interest"`
}

// Query handles POST /dss/v1/subscriptions/query.
func (h *SubscriptionHandlers) Query(w http.ResponseWriter, r *http.Request) {
	var body queryBody
	if err := httpserver.Decode(r, &body); err != nil {
		httpserver.RespondError(w, dsserr.InvalidRequestf("%s", err))
		return
	}

	id := auth.FromContext(r.Context())
	subs, err := h.Service.Query(r.Context(), id.ClientID, body.AreaOfInterest)
	if err != nil {
		httpserver.RespondError(w, err)
		return
	}

	refs := make([]subscriptionRef, 0, len(subs))
	for _, sub := range subs {
		refs = append(refs, toSubscriptionRef(sub))
	}
	httpserver.Respond(w, http.StatusOK, map[string]any{"subscriptions": refs})
}

// Put handles PUT /dss/v1/subscriptions/{id}.
func (h *SubscriptionHandlers) Put(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, dsserr.InvalidRequestf("invalid subscription id: %s", err))
		return
	}

	var body putSubscriptionBody
	if err := httpserver.Decode(r, &body); err != nil {
		httpserver.RespondError(w, dsserr.InvalidRequestf("%s", err))
		return
	}

	caller := auth.FromContext(r.Context())
	result, err := h.Service.Put(r.Context(), id, caller.ClientID, coordination.PutSubscriptionRequest{
		OldVersion:           body.OldVersion,
		USSBaseURL:           body.USSBaseURL,
		NotifyForOperations:  body.NotifyForOperations,
		NotifyForConstraints: body.NotifyForConstraints,
		Extents:              body.Extents,
	})
	if err != nil {
		httpserver.RespondError(w, err)
		return
	}

	ops := make([]operationRef, 0, len(result.Operations))
	for _, op := range result.Operations {
		ops = append(ops, toOperationRef(op, op.Owner == caller.ClientID))
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	httpserver.Respond(w, status, map[string]any{
		"subscription": toSubscriptionRef(result.Subscription),
		"operations":   ops,
		"constraints":  []any{},
	})
}

// Delete handles DELETE /dss/v1/subscriptions/{id}.
func (h *SubscriptionHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, dsserr.InvalidRequestf("invalid subscription id: %s", err))
		return
	}

	caller := auth.FromContext(r.Context())
	result, err := h.Service.Delete(r.Context(), id, caller.ClientID)
	if err != nil {
		httpserver.RespondError(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, map[string]any{"subscription": toSubscriptionRef(result.Subscription)})
}
