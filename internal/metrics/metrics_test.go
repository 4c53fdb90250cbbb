package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"openvpn-webui/internal/gateway"
)

func TestObserveInvocationCounts(t *testing.T) {
	c := New(nil)
	c.ObserveInvocation(gateway.Invocation{Subcommand: "get", Duration: 20 * time.Millisecond})
	c.ObserveInvocation(gateway.Invocation{Subcommand: "get", Duration: time.Second})
	c.ObserveInvocation(gateway.Invocation{Subcommand: "setup", ExitCode: 2, Err: errors.New("exit status 2")})

	if got := testutil.ToFloat64(c.calls.WithLabelValues("get")); got != 2 {
		t.Fatalf("expected 2 get calls, got %v", got)
	}
	if got := testutil.ToFloat64(c.failures.WithLabelValues("setup", "2")); got != 1 {
		t.Fatalf("expected 1 setup failure, got %v", got)
	}
	if got := testutil.CollectAndCount(c.failures); got != 1 {
		t.Fatalf("expected a single failure series, got %d", got)
	}
}

func TestHandlerExposesWorkspaces(t *testing.T) {
	c := New(func() int { return 3 })
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "openvpn_webui_workspaces 3") {
		t.Fatalf("expected workspace gauge in output:\n%s", rec.Body.String())
	}
}
