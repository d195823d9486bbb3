package app

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/BenjaminPelletier/dss/internal/config"
	"github.com/BenjaminPelletier/dss/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOpenStore_Memory(t *testing.T) {
	cfg := &config.Config{StoreBackend: "memory"}

	s, closeStore, err := openStore(context.Background(), cfg, testLogger())
	if err != nil {
		t.Fatalf("openStore() error = %v", err)
	}
	defer closeStore()

	if s == nil {
		t.Fatal("openStore() returned a nil store for the memory backend")
	}
	if err := s.Transact(context.Background(), func(tx store.Tx) error { return nil }); err != nil {
		t.Errorf("Transact() on the opened memory store error = %v", err)
	}
}

func TestOpenStore_UnknownBackend(t *testing.T) {
	cfg := &config.Config{StoreBackend: "dynamodb"}

	_, _, err := openStore(context.Background(), cfg, testLogger())
	if err == nil {
		t.Fatal("openStore() expected an error for an unknown store backend")
	}
}
