package obs

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                            "/",
		"/metrics":                    "/metrics",
		"/v1/reports":                 "/v1/reports",
		"/v1/reports/01J0ABC":         "/v1/reports/:id",
		"/v1/reports/01J0ABC/actions": "/v1/reports/:id/actions",
		"/v1/reports?status=pending":  "/v1/reports",
		"/v1/users/u-1/role":          "/v1/users/:id/role",
		"/v1/bans/01J0XYZ":            "/v1/bans/:id",
		"/v1/session/refresh":         "/v1/session/refresh",
		"/v1/admin/dashboard":         "/v1/admin/dashboard",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}

func TestObservePermissionCheck(t *testing.T) {
	before := testutil.ToFloat64(permissionChecks.WithLabelValues("manage:users", "deny"))
	ObservePermissionCheck("manage:users", false)
	after := testutil.ToFloat64(permissionChecks.WithLabelValues("manage:users", "deny"))
	if after-before != 1 {
		t.Fatalf("expected deny counter to grow by 1, got %v", after-before)
	}
}

func TestInstrumentRecordsStatus(t *testing.T) {
	h := Instrument(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/v1/reports/:id", "418"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/reports/abc", nil))
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/v1/reports/:id", "418"))
	if after-before != 1 {
		t.Fatalf("expected request counter to grow by 1, got %v", after-before)
	}
}
