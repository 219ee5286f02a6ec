package memory

import (
	"context"

	"github.com/Togather-Foundation/listsync/internal/activity"
	"github.com/Togather-Foundation/listsync/internal/domain/errs"
)

type activityView struct {
	*view
}

// enrich mirrors the LEFT JOINs of the SQL store: references to deleted
// rows keep their ids but carry no projection.
func (st *state) enrich(row activityRow) activity.Activity {
	a := activity.Activity{
		ID:        row.ID,
		Action:    row.Action,
		UserID:    row.UserID,
		ListID:    row.ListID,
		ItemID:    row.ItemID,
		CreatedAt: row.CreatedAt,
	}
	a.User.ID = row.UserID
	if u, ok := st.users[row.UserID]; ok {
		a.User = u.Ref()
	}
	if row.ListID != nil {
		if l, ok := st.lists[*row.ListID]; ok {
			a.List = &activity.ListRef{ID: l.ID, Title: l.Title}
		}
	}
	if row.ItemID != nil {
		if it, ok := st.items[*row.ItemID]; ok {
			a.Item = &activity.ItemRef{ID: it.ID, Title: it.Title, Completed: it.Completed}
		}
	}
	return a
}

func (v activityView) Create(_ context.Context, e activity.Entry) (int64, error) {
	var id int64
	err := v.write(func(st *state) error {
		// a wall clock stepping backwards must not reorder the log
		at := v.now()
		if n := len(st.activities); n > 0 && at.Before(st.activities[n-1].CreatedAt) {
			at = st.activities[n-1].CreatedAt
		}
		st.nextActivityID++
		id = st.nextActivityID
		st.activities = append(st.activities, activityRow{
			ID:        id,
			Action:    e.Action,
			UserID:    e.UserID,
			ListID:    e.ListID,
			ItemID:    e.ItemID,
			CreatedAt: at,
		})
		return nil
	})
	return id, err
}

func (v activityView) GetByID(_ context.Context, id int64) (*activity.Activity, error) {
	var out *activity.Activity
	err := v.read(func(st *state) error {
		for _, row := range st.activities {
			if row.ID == id {
				a := st.enrich(row)
				out = &a
				return nil
			}
		}
		return errs.NotFound("Activity", id)
	})
	return out, err
}

func matches(row activityRow, listID, userID *int64) bool {
	if listID != nil && (row.ListID == nil || *row.ListID != *listID) {
		return false
	}
	if userID != nil && row.UserID != *userID {
		return false
	}
	return true
}

// List walks the append-only slice backwards. Create never stamps a row
// earlier than its predecessor, so insertion order is created_at desc, id desc.
func (v activityView) List(_ context.Context, f activity.Filter) ([]activity.Activity, error) {
	out := make([]activity.Activity, 0)
	err := v.read(func(st *state) error {
		for i := len(st.activities) - 1; i >= 0; i-- {
			if f.Limit > 0 && len(out) >= f.Limit {
				break
			}
			row := st.activities[i]
			if matches(row, f.ListID, f.UserID) {
				out = append(out, st.enrich(row))
			}
		}
		return nil
	})
	return out, err
}

func (v activityView) Count(_ context.Context, listID *int64) (int64, error) {
	var n int64
	err := v.read(func(st *state) error {
		for _, row := range st.activities {
			if matches(row, listID, nil) {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (v activityView) CountByAction(_ context.Context, listID *int64) (map[activity.Action]int64, error) {
	out := make(map[activity.Action]int64)
	err := v.read(func(st *state) error {
		for _, row := range st.activities {
			if matches(row, listID, nil) {
				out[row.Action]++
			}
		}
		return nil
	})
	return out, err
}
