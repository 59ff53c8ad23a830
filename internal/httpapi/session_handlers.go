package httpapi

import (
	"net/http"
	"strings"

	"plaza.social/internal/audit"
	"plaza.social/internal/auth"
	"plaza.social/internal/session"
)

type permissionCheckRequest struct {
	Permissions []string `json:"permissions"`
	Mode        string   `json:"mode"`
}

type permissionCheckResponse struct {
	Allowed bool              `json:"allowed"`
	Mode    string            `json:"mode"`
	Missing []auth.Permission `json:"missing"`
}

func (a *API) sessionCache(r *http.Request) (*session.Cache, bool) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return nil, false
	}
	return a.svc.Sessions.For(id.ID), true
}

func (a *API) getSession(w http.ResponseWriter, r *http.Request) {
	cache, ok := a.sessionCache(r)
	if !ok {
		writeServiceError(w, r, auth.ErrUnauthenticated)
		return
	}
	writeJSON(w, http.StatusOK, cache.Get())
}

func (a *API) refreshSession(w http.ResponseWriter, r *http.Request) {
	cache, ok := a.sessionCache(r)
	if !ok {
		writeServiceError(w, r, auth.ErrUnauthenticated)
		return
	}
	st, err := cache.Refresh(r.Context(), true)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (a *API) deleteSession(w http.ResponseWriter, r *http.Request) {
	cache, ok := a.sessionCache(r)
	if !ok {
		writeServiceError(w, r, auth.ErrUnauthenticated)
		return
	}
	if err := cache.Invalidate(r.Context()); err != nil {
		writeServiceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "session.signed_out", nil)
	w.WriteHeader(http.StatusNoContent)
}

// checkPermissions answers UI gating questions. It never errors on a denied
// permission; the caller gets allowed=false and the missing set.
func (a *API) checkPermissions(w http.ResponseWriter, r *http.Request) {
	var req permissionCheckRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Permissions) == 0 {
		writeError(w, r, http.StatusBadRequest, "permissions are required")
		return
	}
	mode := strings.ToLower(strings.TrimSpace(req.Mode))
	if mode == "" {
		mode = "all"
	}
	perms := make([]auth.Permission, 0, len(req.Permissions))
	for _, p := range req.Permissions {
		perms = append(perms, auth.Permission(strings.TrimSpace(p)))
	}

	access := auth.AccessFromContext(r.Context())
	resp := permissionCheckResponse{Mode: mode, Missing: []auth.Permission{}}
	switch mode {
	case "all":
		resp.Allowed = access.HasAll(perms...)
	case "any":
		resp.Allowed = access.HasAny(perms...)
	default:
		writeError(w, r, http.StatusBadRequest, "mode must be any or all")
		return
	}
	for _, p := range perms {
		if !access.Check(p) {
			resp.Missing = append(resp.Missing, p)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
