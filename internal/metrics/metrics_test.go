package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			match := true
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					match = false
				}
			}
			if !match {
				continue
			}
			if m.GetCounter() != nil {
				return m.GetCounter().GetValue()
			}
			if m.GetGauge() != nil {
				return m.GetGauge().GetValue()
			}
		}
	}
	t.Fatalf("metric %s %v not found", name, labels)
	return 0
}

func TestCollector_Logins(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordLogin("ok")
	c.RecordLogin("ok")
	c.RecordLogin("role_mismatch")

	if v := counterValue(t, reg, "clinic_logins_total", map[string]string{"outcome": "ok"}); v != 2 {
		t.Errorf("ok logins = %v, want 2", v)
	}
	if v := counterValue(t, reg, "clinic_logins_total", map[string]string{"outcome": "role_mismatch"}); v != 1 {
		t.Errorf("role_mismatch logins = %v, want 1", v)
	}
}

func TestCollector_StationsAndSessions(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordStationAssigned()
	c.RecordStationReleased()
	c.RecordStationReleased()
	c.SetActiveSessions(3)
	c.RecordLogout("timeout")

	if v := counterValue(t, reg, "clinic_station_assignments_total", nil); v != 1 {
		t.Errorf("assignments = %v, want 1", v)
	}
	if v := counterValue(t, reg, "clinic_station_releases_total", nil); v != 2 {
		t.Errorf("releases = %v, want 2", v)
	}
	if v := counterValue(t, reg, "clinic_active_sessions", nil); v != 3 {
		t.Errorf("active sessions = %v, want 3", v)
	}
	if v := counterValue(t, reg, "clinic_logouts_total", map[string]string{"reason": "timeout"}); v != 1 {
		t.Errorf("timeout logouts = %v, want 1", v)
	}
}

func TestHandler_ExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordMessageSent()
	c.RecordHTTPRequest("GET", "/api/v1/stations", 200, 15*time.Millisecond)

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET metrics error = %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	for _, want := range []string{"clinic_chat_messages_total 1", "clinic_http_request_duration_seconds_count"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
