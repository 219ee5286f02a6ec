package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/Togather-Foundation/listsync/internal/activity"
	"github.com/Togather-Foundation/listsync/internal/domain/errs"
)

var _ activity.Repository = (*ActivityRepository)(nil)

// ActivityRepository stores audit records. It only inserts and reads;
// enrichment LEFT JOINs the referenced rows so records about deleted
// entities still load.
type ActivityRepository struct {
	conn
}

const selectActivity = `
SELECT a.id, a.action, a.user_id, a.list_id, a.item_id, a.created_at,
       u.name, u.email,
       l.title,
       i.title, i.completed
  FROM activity_logs a
  LEFT JOIN users u ON u.id = a.user_id
  LEFT JOIN lists l ON l.id = a.list_id
  LEFT JOIN items i ON i.id = a.item_id
`

func scanActivity(row pgx.Row) (activity.Activity, error) {
	var (
		a             activity.Activity
		action        string
		userName      pgtype.Text
		userEmail     pgtype.Text
		listTitle     pgtype.Text
		itemTitle     pgtype.Text
		itemCompleted pgtype.Bool
	)
	if err := row.Scan(
		&a.ID,
		&action,
		&a.UserID,
		&a.ListID,
		&a.ItemID,
		&a.CreatedAt,
		&userName,
		&userEmail,
		&listTitle,
		&itemTitle,
		&itemCompleted,
	); err != nil {
		return a, err
	}

	a.Action = activity.Action(action)
	a.User.ID = a.UserID
	a.User.Name = userName.String
	a.User.Email = userEmail.String
	if a.ListID != nil && listTitle.Valid {
		a.List = &activity.ListRef{ID: *a.ListID, Title: listTitle.String}
	}
	if a.ItemID != nil && itemTitle.Valid {
		a.Item = &activity.ItemRef{ID: *a.ItemID, Title: itemTitle.String, Completed: itemCompleted.Bool}
	}
	return a, nil
}

func (r *ActivityRepository) Create(ctx context.Context, entry activity.Entry) (id int64, err error) {
	defer observe("insert_activity", time.Now(), &err)

	err = r.queryer().QueryRow(ctx, `
INSERT INTO activity_logs (action, user_id, list_id, item_id)
VALUES ($1, $2, $3, $4)
RETURNING id
`, string(entry.Action), entry.UserID, entry.ListID, entry.ItemID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert activity: %w", err)
	}
	return id, nil
}

func (r *ActivityRepository) GetByID(ctx context.Context, id int64) (out *activity.Activity, err error) {
	defer observe("select_activity", time.Now(), &err)

	a, err := scanActivity(r.queryer().QueryRow(ctx, selectActivity+` WHERE a.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.NotFound("Activity", id)
		}
		return nil, fmt.Errorf("select activity: %w", err)
	}
	return &a, nil
}

func (r *ActivityRepository) List(ctx context.Context, f activity.Filter) (out []activity.Activity, err error) {
	defer observe("select_activities", time.Now(), &err)

	// LIMIT NULL means no limit.
	var limit *int
	if f.Limit > 0 {
		limit = &f.Limit
	}

	rows, err := r.queryer().Query(ctx, selectActivity+`
 WHERE ($1::bigint IS NULL OR a.list_id = $1)
   AND ($2::bigint IS NULL OR a.user_id = $2)
 ORDER BY a.created_at DESC, a.id DESC
 LIMIT $3
`, f.ListID, f.UserID, limit)
	if err != nil {
		return nil, fmt.Errorf("query activities: %w", err)
	}
	defer rows.Close()

	out = make([]activity.Activity, 0)
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activities: %w", err)
	}
	return out, nil
}

func (r *ActivityRepository) Count(ctx context.Context, listID *int64) (n int64, err error) {
	defer observe("count_activities", time.Now(), &err)

	err = r.queryer().QueryRow(ctx, `
SELECT count(*) FROM activity_logs WHERE ($1::bigint IS NULL OR list_id = $1)
`, listID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count activities: %w", err)
	}
	return n, nil
}

func (r *ActivityRepository) CountByAction(ctx context.Context, listID *int64) (out map[activity.Action]int64, err error) {
	defer observe("count_activities_by_action", time.Now(), &err)

	rows, err := r.queryer().Query(ctx, `
SELECT action, count(*)
  FROM activity_logs
 WHERE ($1::bigint IS NULL OR list_id = $1)
 GROUP BY action
`, listID)
	if err != nil {
		return nil, fmt.Errorf("count activities by action: %w", err)
	}
	defer rows.Close()

	out = make(map[activity.Action]int64)
	for rows.Next() {
		var (
			action string
			n      int64
		)
		if err := rows.Scan(&action, &n); err != nil {
			return nil, fmt.Errorf("scan activity count: %w", err)
		}
		out[activity.Action(action)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity counts: %w", err)
	}
	return out, nil
}
