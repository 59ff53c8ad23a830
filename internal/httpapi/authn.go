package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"plaza.social/internal/auth"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/metrics",
	"/healthz",
	"/readyz",
}

// withAuth verifies the bearer token, resolves the caller's cached session
// and stores both the identity and the access snapshot in the context.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		if a.svc.Verifier == nil || a.svc.Sessions == nil {
			writeError(w, r, http.StatusServiceUnavailable, "authentication unavailable")
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}
		claims, err := a.svc.Verifier.Verify(token)
		if err != nil || strings.TrimSpace(claims.Subject) == "" {
			writeError(w, r, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := auth.ContextWithIdentity(r.Context(), claims.Identity())
		st, err := a.svc.Sessions.For(claims.Subject).Refresh(ctx, false)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		ctx = auth.ContextWithAccess(ctx, st.Access())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type banInfo struct {
	Reason    string     `json:"reason"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// banGate confines a banned session to reading and ending itself.
func (a *API) banGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		access := auth.AccessFromContext(r.Context())
		if !access.Banned || banExempt(r) {
			next.ServeHTTP(w, r)
			return
		}
		info := banInfo{Reason: "account role is banned_user"}
		if b := access.ActiveBan; b != nil {
			exp := b.ExpiresAt
			info = banInfo{Reason: b.Reason, ExpiresAt: &exp}
		}
		payload := map[string]any{
			"error":   "account banned",
			"ban":     info,
			"actions": []string{"sign_out"},
		}
		if rid := RequestIDFromContext(r.Context()); rid != "" {
			payload["request_id"] = rid
		}
		writeJSON(w, http.StatusForbidden, payload)
	})
}

func banExempt(r *http.Request) bool {
	if isPublicPath(r.URL.Path) || r.Method == http.MethodOptions {
		return true
	}
	if strings.TrimSuffix(r.URL.Path, "/") != "/v1/session" {
		return false
	}
	return r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodDelete
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
