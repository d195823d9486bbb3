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

// OperationHandlers adapts coordination.OperationService to chi routes.
type OperationHandlers struct {
	Service *coordination.OperationService
}

// newSubscriptionBody is the wire shape of the `new_subscription` block.
type newSubscriptionBody struct {
	USSBaseURL           string `json:"uss_base_url"`
	NotifyForConstraints bool   `json:"notify_for_constraints"`
}

// putOperationBody is the wire body of PUT /operations/{id}.
type putOperationBody struct {
	OldVersion      *int                 `json:"old_version"`
	USSBaseURL      string               `json:"uss_base_url"`
	Extents         []map[string]any     `json:"extents"`
	SubscriptionID  *uuid.UUID           `json:"subscription_id"`
	NewSubscription *newSubscriptionBody `json:"new_subscription"`
	// Key carries the OVNs the caller claims to have already observed. It is
	// decoded but not validated, stored, or echoed back: Put does not pass it
	// on to the OperationService.
	Key []string `json:"key"`
}

// Get handles GET /dss/v1/operations/{id}.
func (h *OperationHandlers) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, dsserr.InvalidRequestf("invalid operation id: %s", err))
		return
	}

	caller := auth.FromContext(r.Context())
	op, revealOVN, err := h.Service.Get(r.Context(), id, caller.ClientID)
	if err != nil {
		httpserver.RespondError(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, map[string]any{"operation_reference": toOperationRef(op, revealOVN)})
}

// Query handles POST /dss/v1/operations/query.
func (h *OperationHandlers) Query(w http.ResponseWriter, r *http.Request) {
	var body queryBody
	if err := httpserver.Decode(r, &body); err != nil {
		httpserver.RespondError(w, dsserr.InvalidRequestf("%s", err))
		return
	}

	caller := auth.FromContext(r.Context())
	ops, err := h.Service.Query(r.Context(), body.AreaOfInterest)
	if err != nil {
		httpserver.RespondError(w, err)
		return
	}

	refs := make([]operationRef, 0, len(ops))
	for _, op := range ops {
		refs = append(refs, toOperationRef(op, op.Owner == caller.ClientID))
	}
	httpserver.Respond(w, http.StatusOK, map[string]any{"operation_references": refs})
}

// Put handles PUT /dss/v1/operations/{id}.
func (h *OperationHandlers) Put(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, dsserr.InvalidRequestf("invalid operation id: %s", err))
		return
	}

	var body putOperationBody
	if err := httpserver.Decode(r, &body); err != nil {
		httpserver.RespondError(w, dsserr.InvalidRequestf("%s", err))
		return
	}

	req := coordination.PutOperationRequest{
		OldVersion:     body.OldVersion,
		USSBaseURL:     body.USSBaseURL,
		Extents:        body.Extents,
		SubscriptionID: body.SubscriptionID,
	}
	if body.NewSubscription != nil {
		req.NewSubscription = &coordination.NewSubscriptionSpec{
			USSBaseURL:           body.NewSubscription.USSBaseURL,
			NotifyForConstraints: body.NewSubscription.NotifyForConstraints,
		}
	}

	caller := auth.FromContext(r.Context())
	result, err := h.Service.Put(r.Context(), id, caller.ClientID, req)
	if err != nil {
		httpserver.RespondError(w, err)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	httpserver.Respond(w, status, map[string]any{
		"operation_reference": toOperationRef(result.Operation, true),
		"subscribers":         toSubscribersWire(result.Subscribers),
	})
}

// Delete handles DELETE /dss/v1/operations/{id}.
func (h *OperationHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, dsserr.InvalidRequestf("invalid operation id: %s", err))
		return
	}

	caller := auth.FromContext(r.Context())
	result, err := h.Service.Delete(r.Context(), id, caller.ClientID)
	if err != nil {
		httpserver.RespondError(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, map[string]any{
		"operation_reference": toOperationRef(result.Operation, true),
		"subscribers":         toSubscribersWire(result.Subscribers),
	})
}
