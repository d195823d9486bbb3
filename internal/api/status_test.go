package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStatusHandlers_Get(t *testing.T) {
	h := NewStatusHandlers()

	w := httptest.NewRecorder()
	h.Get(w, httptest.NewRequest(http.MethodGet, "/dss/v1/status", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp struct {
		Status        string `json:"status"`
		UptimeSeconds int64  `json:"uptime_seconds"`
	}
	decodeBody(t, w, &resp)
	if resp.Status != "ok" {
		t.Errorf("status field = %q, want %q", resp.Status, "ok")
	}
	if resp.UptimeSeconds < 0 {
		t.Errorf("uptime_seconds = %d, want >= 0", resp.UptimeSeconds)
	}
}
