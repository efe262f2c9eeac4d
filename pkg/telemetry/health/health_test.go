package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type staticReporter []string

func (s staticReporter) AvailableIDs() []string { return s }

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestChecker_RegisterAndList(t *testing.T) {
	c := New(0)
	c.RegisterCheck("journal", func(ctx context.Context) error { return nil })
	c.RegisterCheck("backends", func(ctx context.Context) error { return nil })
	c.RegisterCheck("extra", func(ctx context.Context) error { return nil })
	c.UnregisterCheck("extra")

	if diff := cmp.Diff([]string{"backends", "journal"}, c.ListChecks()); diff != "" {
		t.Errorf("ListChecks() mismatch (-want +got):\n%s", diff)
	}
}

func TestCheckReadiness(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]CheckFunc
		wantStatus string
		wantFailed []string
	}{
		{
			name:       "no checks",
			wantStatus: StatusReady,
		},
		{
			name: "all healthy",
			checks: map[string]CheckFunc{
				"backends": BackendsCheck(staticReporter{"gotoml", "text"}, 1),
				"journal":  PingCheck(pingFunc(func(ctx context.Context) error { return nil })),
			},
			wantStatus: StatusReady,
		},
		{
			name: "not enough backends",
			checks: map[string]CheckFunc{
				"backends": BackendsCheck(staticReporter{"text"}, 2),
			},
			wantStatus: StatusDegraded,
			wantFailed: []string{"backends"},
		},
		{
			name: "journal down",
			checks: map[string]CheckFunc{
				"journal": PingCheck(pingFunc(func(ctx context.Context) error { return errors.New("database is closed") })),
			},
			wantStatus: StatusDegraded,
			wantFailed: []string{"journal"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(time.Second)
			for name, check := range tt.checks {
				c.RegisterCheck(name, check)
			}

			status := c.CheckReadiness(context.Background())
			if status.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", status.Status, tt.wantStatus)
			}
			for _, name := range tt.wantFailed {
				if status.Checks[name].Status != StatusUnhealthy {
					t.Errorf("check %q = %+v, want unhealthy", name, status.Checks[name])
				}
			}
		})
	}
}

func TestCheckReadiness_Timeout(t *testing.T) {
	c := New(20 * time.Millisecond)
	c.RegisterCheck("slow", func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(50 * time.Millisecond)
		return nil
	})

	status := c.CheckReadiness(context.Background())
	if got := status.Checks["slow"]; got.Status != StatusUnhealthy || got.Message != ErrCheckTimeout.Error() {
		t.Errorf("slow check = %+v, want timeout", got)
	}
}

func TestHandlers(t *testing.T) {
	c := New(time.Second)
	c.RegisterCheck("backends", BackendsCheck(staticReporter{}, 1))

	tests := []struct {
		name     string
		handler  http.HandlerFunc
		method   string
		wantCode int
	}{
		{"liveness", c.LivenessHandler(), http.MethodGet, http.StatusOK},
		{"liveness head", c.LivenessHandler(), http.MethodHead, http.StatusOK},
		{"liveness post", c.LivenessHandler(), http.MethodPost, http.StatusMethodNotAllowed},
		{"readiness degraded", c.ReadinessHandler(), http.MethodGet, http.StatusServiceUnavailable},
		{"version", VersionHandler("1.0.0", "abc", "today"), http.MethodGet, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.handler(rec, httptest.NewRequest(tt.method, "/", nil))
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
		})
	}
}

func TestReadinessHandler_Body(t *testing.T) {
	c := New(time.Second)
	c.RegisterCheck("backends", BackendsCheck(staticReporter{"gotoml"}, 1))

	rec := httptest.NewRecorder()
	c.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	var status HealthStatus
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.Status != StatusReady || status.Checks["backends"].Status != StatusOK {
		t.Errorf("unexpected body: %+v", status)
	}
}
