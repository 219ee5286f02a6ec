package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/Togather-Foundation/listsync/internal/api/problem"
	"github.com/Togather-Foundation/listsync/internal/domain/errs"
)

// envelope is the success body of every API response.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeData(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, envelope{Success: true, Message: message, Data: data})
}

func writeError(w http.ResponseWriter, r *http.Request, err error, env string) {
	problem.FromError(w, r, err, env)
}

// decodeJSON reads a JSON body into dst. Oversized bodies keep their
// *http.MaxBytesError so they are reported as 413.
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return err
		}
		if errors.Is(err, io.EOF) {
			return errs.Validation("body", "Request body is required")
		}
		return &errs.Error{Kind: errs.KindValidation, Field: "body", Message: "Invalid JSON body", Err: err}
	}
	return nil
}

func pathParam(r *http.Request, key string) string {
	if r == nil {
		return ""
	}
	return r.PathValue(key)
}

// pathID parses a positive integer path parameter. entity names the
// resource in the error message ("Invalid list ID").
func pathID(r *http.Request, key, entity string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(pathParam(r, key)), 10, 64)
	if err != nil || id <= 0 {
		return 0, errs.Validation(key, "Invalid "+entity+" ID")
	}
	return id, nil
}

// queryLimit parses ?limit=. Absent means 0, which the activity log
// replaces with its default.
func queryLimit(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, errs.Validation("limit", "Invalid limit")
	}
	return limit, nil
}
