package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"plaza.social/internal/auth"
	"plaza.social/internal/moderation"
)

type createReportRequest struct {
	ContentKind    string `json:"content_kind"`
	ContentID      string `json:"content_id"`
	ReportedUserID string `json:"reported_user_id"`
	Reason         string `json:"reason"`
}

type reportActionRequest struct {
	Action        string `json:"action"`
	Note          string `json:"note"`
	DurationHours int    `json:"duration_hours"`
}

type listReportsResponse struct {
	Items []moderation.Report `json:"items"`
	AsOf  time.Time           `json:"as_of"`
}

func (a *API) createReport(w http.ResponseWriter, r *http.Request) {
	var req createReportRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	report, err := a.svc.Reports.CreateReport(r.Context(), auth.AccessFromContext(r.Context()), moderation.NewReport{
		Content:        moderation.ContentRef{Kind: moderation.ContentKind(req.ContentKind), ID: req.ContentID},
		ReportedUserID: req.ReportedUserID,
		Reason:         req.Reason,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/v1/reports/%s", report.ID))
	writeJSON(w, http.StatusCreated, report)
}

func (a *API) listReports(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := parsePositiveInt(q.Get("limit"), 50, 1, 200)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	f := moderation.Filter{Limit: limit, ReportedUserID: q.Get("reported_user_id")}
	if raw := q.Get("status"); raw != "" {
		if f.Status, err = moderation.ParseReportStatus(raw); err != nil {
			writeServiceError(w, r, err)
			return
		}
	}
	items, err := a.svc.Reports.ListReports(r.Context(), auth.AccessFromContext(r.Context()), f)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if items == nil {
		items = []moderation.Report{}
	}
	writeJSON(w, http.StatusOK, listReportsResponse{Items: items, AsOf: time.Now().UTC()})
}

func (a *API) getReport(w http.ResponseWriter, r *http.Request) {
	report, err := a.svc.Reports.GetReport(r.Context(), auth.AccessFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"report":          report,
		"allowed_actions": moderation.AllowedActions(report.Status),
	})
}

func (a *API) listReportActions(w http.ResponseWriter, r *http.Request) {
	actions, err := a.svc.Reports.ListActions(r.Context(), auth.AccessFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if actions == nil {
		actions = []moderation.Action{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": actions})
}

func (a *API) applyReportAction(w http.ResponseWriter, r *http.Request) {
	var req reportActionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	dur, err := banDuration(req.DurationHours)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	res, err := a.svc.Reports.Apply(r.Context(), auth.AccessFromContext(r.Context()), r.PathValue("id"), moderation.Command{
		Action:      moderation.ActionType(strings.ToLower(strings.TrimSpace(req.Action))),
		Note:        req.Note,
		BanDuration: dur,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if res.Ban != nil {
		a.invalidate(r, res.Ban.UserID)
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) listOwnWarnings(w http.ResponseWriter, r *http.Request) {
	access := auth.AccessFromContext(r.Context())
	a.writeWarnings(w, r, access, access.UserID())
}

func (a *API) listUserWarnings(w http.ResponseWriter, r *http.Request) {
	a.writeWarnings(w, r, auth.AccessFromContext(r.Context()), r.PathValue("id"))
}

func (a *API) writeWarnings(w http.ResponseWriter, r *http.Request, access auth.Access, userID string) {
	warnings, err := a.svc.Reports.ListWarnings(r.Context(), access, userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if warnings == nil {
		warnings = []moderation.Warning{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": warnings})
}
