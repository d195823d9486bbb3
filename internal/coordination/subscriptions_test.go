package coordination

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/BenjaminPelletier/dss/internal/dsserr"
)

func TestSubscriptionService_PutCreatesThenUpdates(t *testing.T) {
	subs, _ := newTestServices()
	ctx := context.Background()
	id := uuid.New()

	result, err := subs.Put(ctx, id, "uss1", PutSubscriptionRequest{
		USSBaseURL: "https://uss1.example.com",
		Extents:    boundedExtents(37.8, -122.4, 500),
	})
	if err != nil {
		t.Fatalf("Put() (create) error = %v", err)
	}
	if !result.Created {
		t.Error("expected Created = true")
	}
	if result.Subscription.Version != 1 {
		t.Errorf("Version = %d, want 1", result.Subscription.Version)
	}

	oldVersion := 1
	result, err = subs.Put(ctx, id, "uss1", PutSubscriptionRequest{
		OldVersion: &oldVersion,
		USSBaseURL: "https://uss1.example.com/v2",
		Extents:    boundedExtents(37.8, -122.4, 600),
	})
	if err != nil {
		t.Fatalf("Put() (update) error = %v", err)
	}
	if result.Created {
		t.Error("expected Created = false on update")
	}
	if result.Subscription.Version != 2 {
		t.Errorf("Version = %d, want 2 (single increment)", result.Subscription.Version)
	}
}

func TestSubscriptionService_PutRejectsVersionConflict(t *testing.T) {
	subs, _ := newTestServices()
	ctx := context.Background()
	id := uuid.New()

	if _, err := subs.Put(ctx, id, "uss1", PutSubscriptionRequest{
		USSBaseURL: "https://uss1.example.com",
		Extents:    boundedExtents(0, 0, 500),
	}); err != nil {
		t.Fatalf("initial Put() error = %v", err)
	}

	_, err := subs.Put(ctx, id, "uss1", PutSubscriptionRequest{
		USSBaseURL: "https://uss1.example.com",
		Extents:    boundedExtents(0, 0, 500),
	})
	assertKind(t, err, dsserr.VersionConflict)
}

func TestSubscriptionService_PutRejectsNonOwner(t *testing.T) {
	subs, _ := newTestServices()
	ctx := context.Background()
	id := uuid.New()
	oldVersion := 0

	if _, err := subs.Put(ctx, id, "uss1", PutSubscriptionRequest{
		OldVersion: &oldVersion,
		USSBaseURL: "https://uss1.example.com",
		Extents:    boundedExtents(0, 0, 500),
	}); err != nil {
		t.Fatalf("initial Put() error = %v", err)
	}

	newVersion := 1
	_, err := subs.Put(ctx, id, "uss2", PutSubscriptionRequest{
		OldVersion: &newVersion,
		USSBaseURL: "https://uss2.example.com",
		Extents:    boundedExtents(0, 0, 500),
	})
	assertKind(t, err, dsserr.Forbidden)
}

func TestSubscriptionService_GetAndQuery(t *testing.T) {
	subs, _ := newTestServices()
	ctx := context.Background()
	id := uuid.New()
	zero := 0

	if _, err := subs.Put(ctx, id, "uss1", PutSubscriptionRequest{
		OldVersion: &zero,
		USSBaseURL: "https://uss1.example.com",
		Extents:    boundedExtents(10, 10, 1000),
	}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := subs.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.ID != id {
		t.Errorf("Get() returned ID %s, want %s", got.ID, id)
	}

	if _, err := subs.Get(ctx, uuid.New()); err == nil {
		t.Error("expected NotFound for unknown subscription")
	} else {
		assertKind(t, err, dsserr.NotFound)
	}

	found, err := subs.Query(ctx, "uss1", boundedExtents(10, 10, 1000))
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(found) != 1 || found[0].ID != id {
		t.Errorf("Query() = %v, want [%s]", found, id)
	}

	notFound, err := subs.Query(ctx, "uss2", boundedExtents(10, 10, 1000))
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(notFound) != 0 {
		t.Errorf("Query() for non-owner returned %d results, want 0", len(notFound))
	}
}

func TestSubscriptionService_Delete(t *testing.T) {
	subs, _ := newTestServices()
	ctx := context.Background()
	id := uuid.New()
	zero := 0

	if _, err := subs.Put(ctx, id, "uss1", PutSubscriptionRequest{
		OldVersion: &zero,
		USSBaseURL: "https://uss1.example.com",
		Extents:    boundedExtents(0, 0, 500),
	}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	if _, err := subs.Delete(ctx, id, "uss2"); err == nil {
		t.Error("expected Forbidden for non-owner delete")
	} else {
		assertKind(t, err, dsserr.Forbidden)
	}

	if _, err := subs.Delete(ctx, id, "uss1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := subs.Get(ctx, id); err == nil {
		t.Error("expected NotFound after delete")
	}
}

func assertKind(t *testing.T, err error, want dsserr.Kind) {
	t.Helper()
	dsErr, ok := dsserr.As(err)
	if !ok {
		t.Fatalf("error %v is not a *dsserr.Error", err)
	}
	if dsErr.Kind != want {
		t.Errorf("Kind = %v, want %v", dsErr.Kind, want)
	}
}
