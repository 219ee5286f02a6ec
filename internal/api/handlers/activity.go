package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/Togather-Foundation/listsync/internal/activity"
	"github.com/Togather-Foundation/listsync/internal/auth"
	"github.com/Togather-Foundation/listsync/internal/domain/errs"
)

type ActivityHandler struct {
	Log *activity.Log
	Env string
}

func NewActivityHandler(log *activity.Log, env string) *ActivityHandler {
	return &ActivityHandler{Log: log, Env: env}
}

type activityPage struct {
	ListID     *int64              `json:"listId,omitempty"`
	UserID     *int64              `json:"userId,omitempty"`
	Activities []activity.Activity `json:"activities"`
	Total      int                 `json:"total"`
}

// Recent handles GET /api/v1/activity/recent
func (h *ActivityHandler) Recent(w http.ResponseWriter, r *http.Request) {
	h.query(w, r, activity.All(), activityPage{})
}

// ListHistory handles GET /api/v1/activity/lists/{listId}
func (h *ActivityHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	listID, err := pathID(r, "listId", "list")
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	h.query(w, r, activity.ByList(listID), activityPage{ListID: &listID})
}

// UserHistory handles GET /api/v1/activity/user for the calling user.
func (h *ActivityHandler) UserHistory(w http.ResponseWriter, r *http.Request) {
	userID := auth.ActorID(r.Context())
	if userID == 0 {
		writeError(w, r, errs.Unauthenticated("User authentication required"), h.Env)
		return
	}
	h.query(w, r, activity.ByUser(userID), activityPage{UserID: &userID})
}

func (h *ActivityHandler) query(w http.ResponseWriter, r *http.Request, scope activity.Scope, page activityPage) {
	limit, err := queryLimit(r)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	records, err := h.Log.Query(r.Context(), scope, limit)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	page.Activities = records
	page.Total = len(records)
	writeData(w, http.StatusOK, "", page)
}

type statsResponse struct {
	ListID any            `json:"listId"`
	Stats  activity.Stats `json:"stats"`
}

// Stats handles GET /api/v1/activity/stats. Without ?listId the counts
// cover every list and listId is reported as "all".
func (h *ActivityHandler) Stats(w http.ResponseWriter, r *http.Request) {
	var listID *int64
	resp := statsResponse{ListID: "all"}

	if raw := strings.TrimSpace(r.URL.Query().Get("listId")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			writeError(w, r, errs.Validation("listId", "Invalid list ID"), h.Env)
			return
		}
		listID = &id
		resp.ListID = id
	}

	stats, err := h.Log.Stats(r.Context(), listID)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	resp.Stats = stats
	writeData(w, http.StatusOK, "", resp)
}
