// Package httpapi is the JSON HTTP surface of the moderation core.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"plaza.social/internal/admin"
	"plaza.social/internal/auth"
	"plaza.social/internal/moderation"
	"plaza.social/internal/obs"
	"plaza.social/internal/session"
)

const serviceName = "plaza-api"

// Pinger is implemented by stores that can report connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadyProbe pings every configured dependency.
type ReadyProbe struct {
	Deps []Pinger
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	for _, d := range rp.Deps {
		if d == nil {
			continue
		}
		if err := d.Ping(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Services bundles the domain services the API dispatches to.
type Services struct {
	Verifier *auth.TokenVerifier
	Sessions *session.Manager
	Reports  *moderation.Workflow
	Bans     *moderation.BanService
	Admin    *admin.Service
}

// API is the HTTP layer over the moderation services.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string
	svc        Services

	ratePerSec   float64
	rateBurst    int
	maxBodyBytes int64
	corsOrigins  []string
}

type Option func(*API)

// WithRateLimit sets the per-client token bucket.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(a *API) {
		a.ratePerSec = perSecond
		a.rateBurst = burst
	}
}

func WithMaxBodyBytes(n int64) Option {
	return func(a *API) {
		if n > 0 {
			a.maxBodyBytes = n
		}
	}
}

func WithCORSOrigins(origins ...string) Option {
	return func(a *API) { a.corsOrigins = append(a.corsOrigins, origins...) }
}

func New(rp ReadyProbe, version string, svc Services, opts ...Option) *API {
	a := &API{
		mux:          http.NewServeMux(),
		readyProbe:   rp,
		version:      version,
		svc:          svc,
		ratePerSec:   20,
		rateBurst:    40,
		maxBodyBytes: 1 << 20,
	}
	for _, opt := range opts {
		opt(a)
	}

	// health/ready/metrics
	a.mux.HandleFunc("GET /healthz", a.Healthz)
	a.mux.HandleFunc("GET /readyz", a.Ready)
	a.mux.Handle("GET /metrics", obs.Handler())

	a.mux.HandleFunc("GET /v1/session", a.getSession)
	a.mux.HandleFunc("POST /v1/session/refresh", a.refreshSession)
	a.mux.HandleFunc("DELETE /v1/session", a.deleteSession)
	a.mux.HandleFunc("GET /v1/session/warnings", a.listOwnWarnings)
	a.mux.HandleFunc("POST /v1/permissions/check", a.checkPermissions)

	a.mux.HandleFunc("POST /v1/reports", a.createReport)
	a.mux.HandleFunc("GET /v1/reports", a.listReports)
	a.mux.HandleFunc("GET /v1/reports/{id}", a.getReport)
	a.mux.HandleFunc("GET /v1/reports/{id}/actions", a.listReportActions)
	a.mux.HandleFunc("POST /v1/reports/{id}/actions", a.applyReportAction)

	a.mux.HandleFunc("POST /v1/bans", a.createBan)
	a.mux.HandleFunc("DELETE /v1/bans/{id}", a.liftBan)
	a.mux.HandleFunc("GET /v1/users/{id}/bans", a.listUserBans)
	a.mux.HandleFunc("GET /v1/users/{id}/warnings", a.listUserWarnings)
	a.mux.HandleFunc("PUT /v1/users/{id}/role", a.setUserRole)
	a.mux.HandleFunc("GET /v1/admin/dashboard", a.dashboard)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "resource not found")
	})

	return a
}

// Handler returns the mux wrapped in the full middleware chain.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.banGate(h)
	h = a.withAuth(h)
	h = obs.Instrument(h)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = MaxBodyBytes(h, a.maxBodyBytes)
	h = CORS(h, a.corsOrigins)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	return RequestID(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.readyProbe.Check(ctx); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
