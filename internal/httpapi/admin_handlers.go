package httpapi

import (
	"fmt"
	"net/http"

	"plaza.social/internal/auth"
	"plaza.social/internal/moderation"
	"plaza.social/internal/obs"
)

type createBanRequest struct {
	UserID        string `json:"user_id"`
	Reason        string `json:"reason"`
	DurationHours int    `json:"duration_hours"`
}

type setRoleRequest struct {
	Role   string `json:"role"`
	Reason string `json:"reason"`
}

// invalidate drops the cached session of userID on this instance. Other
// instances learn about the change through the realtime feed.
func (a *API) invalidate(r *http.Request, userID string) {
	if a.svc.Sessions == nil {
		return
	}
	if err := a.svc.Sessions.InvalidateUser(r.Context(), userID); err != nil {
		obs.Logger().Warn().Err(err).Str("user_id", userID).Msg("invalidate session")
	}
}

func (a *API) createBan(w http.ResponseWriter, r *http.Request) {
	var req createBanRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	dur, err := banDuration(req.DurationHours)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	ban, err := a.svc.Bans.Ban(r.Context(), auth.AccessFromContext(r.Context()), moderation.BanRequest{
		UserID:   req.UserID,
		Reason:   req.Reason,
		Duration: dur,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	a.invalidate(r, ban.UserID)
	w.Header().Set("Location", fmt.Sprintf("/v1/bans/%s", ban.ID))
	writeJSON(w, http.StatusCreated, ban)
}

func (a *API) liftBan(w http.ResponseWriter, r *http.Request) {
	ban, err := a.svc.Bans.Lift(r.Context(), auth.AccessFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	a.invalidate(r, ban.UserID)
	writeJSON(w, http.StatusOK, ban)
}

func (a *API) listUserBans(w http.ResponseWriter, r *http.Request) {
	bans, err := a.svc.Bans.ListForUser(r.Context(), auth.AccessFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if bans == nil {
		bans = []auth.Ban{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": bans})
}

func (a *API) setUserRole(w http.ResponseWriter, r *http.Request) {
	var req setRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	assignment, err := a.svc.Admin.SetRole(r.Context(), auth.AccessFromContext(r.Context()),
		r.PathValue("id"), auth.ParseRole(req.Role), req.Reason)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, assignment)
}

func (a *API) dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := a.svc.Admin.Dashboard(r.Context(), auth.AccessFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
