package httpserver

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/BenjaminPelletier/dss/internal/auth"
)

func testGate(t *testing.T) *auth.Gate {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating test key: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshaling public key: %v", err)
	}
	pemBlock := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})

	gate, err := auth.NewGate(string(pemBlock), "dss.example.com")
	if err != nil {
		t.Fatalf("NewGate() error = %v", err)
	}
	return gate
}

func testDeps(t *testing.T) Deps {
	called := func(w http.ResponseWriter, r *http.Request) { Respond(w, http.StatusOK, map[string]string{"ok": "true"}) }
	return Deps{
		Gate:                testGate(t),
		CORSOrigins:         []string{"*"},
		MetricsReg:          prometheus.NewRegistry(),
		StatusHandler:       func(w http.ResponseWriter, r *http.Request) { Respond(w, http.StatusOK, map[string]string{"status": "ok"}) },
		SubscriptionsGet:    called,
		SubscriptionsQuery:  called,
		SubscriptionsPut:    called,
		SubscriptionsDelete: called,
		OperationsGet:       called,
		OperationsQuery:     called,
		OperationsPut:       called,
		OperationsDelete:    called,
	}
}

func TestServer_StatusIsUnauthenticated(t *testing.T) {
	s := NewServer(testLogger(), testDeps(t))

	req := httptest.NewRequest(http.MethodGet, "/dss/v1/status", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestServer_SubscriptionsRequireAuth(t *testing.T) {
	s := NewServer(testLogger(), testDeps(t))

	req := httptest.NewRequest(http.MethodGet, "/dss/v1/subscriptions/"+"00000000-0000-4000-8000-000000000000", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 without a bearer token", w.Code)
	}
}

func TestServer_HealthzIsUnauthenticated(t *testing.T) {
	s := NewServer(testLogger(), testDeps(t))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestServer_MetricsEndpointIsMounted(t *testing.T) {
	s := NewServer(testLogger(), testDeps(t))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}
