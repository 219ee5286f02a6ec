package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Togather-Foundation/listsync/internal/domain/errs"
	"github.com/Togather-Foundation/listsync/internal/domain/lists"
)

const selectItem = `
SELECT i.id, i.list_id, COALESCE(l.title, ''), i.title, i.completed, i.created_at, i.updated_at
  FROM items i
  LEFT JOIN lists l ON l.id = i.list_id
`

func scanItem(row pgx.Row) (lists.Item, error) {
	var it lists.Item
	err := row.Scan(
		&it.ID,
		&it.ListID,
		&it.List.Title,
		&it.Title,
		&it.Completed,
		&it.CreatedAt,
		&it.UpdatedAt,
	)
	it.List.ID = it.ListID
	return it, err
}

// itemsFor loads the items of several lists in one round trip, oldest first.
func (r *ListRepository) itemsFor(ctx context.Context, listIDs []int64) (map[int64][]lists.Item, error) {
	rows, err := r.queryer().Query(ctx, selectItem+`
 WHERE i.list_id = ANY($1)
 ORDER BY i.created_at ASC, i.id ASC
`, listIDs)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]lists.Item, len(listIDs))
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		out[it.ListID] = append(out[it.ListID], it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return out, nil
}

func (r *ListRepository) CreateItem(ctx context.Context, params lists.CreateItemParams) (id int64, err error) {
	defer observe("insert_item", time.Now(), &err)

	err = r.queryer().QueryRow(ctx, `
INSERT INTO items (list_id, title, completed)
VALUES ($1, $2, $3)
RETURNING id
`, params.ListID, params.Title, params.Completed).Scan(&id)
	if err != nil {
		if pgCode(err) == pgForeignKeyViolation {
			return 0, errs.NotFound("List", params.ListID)
		}
		return 0, fmt.Errorf("insert item: %w", err)
	}
	return id, nil
}

func (r *ListRepository) GetItem(ctx context.Context, id int64) (out *lists.Item, err error) {
	defer observe("select_item", time.Now(), &err)

	it, err := scanItem(r.queryer().QueryRow(ctx, selectItem+` WHERE i.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.NotFound("Item", id)
		}
		return nil, fmt.Errorf("select item: %w", err)
	}
	return &it, nil
}

func (r *ListRepository) ItemsByList(ctx context.Context, listID int64) (out []lists.Item, err error) {
	defer observe("select_items", time.Now(), &err)

	byList, err := r.itemsFor(ctx, []int64{listID})
	if err != nil {
		return nil, err
	}
	out = byList[listID]
	if out == nil {
		out = make([]lists.Item, 0)
	}
	return out, nil
}

func (r *ListRepository) UpdateItem(ctx context.Context, id int64, patch lists.ItemPatch) (err error) {
	defer observe("update_item", time.Now(), &err)

	tag, err := r.queryer().Exec(ctx, `
UPDATE items
   SET title = COALESCE($2, title),
       completed = COALESCE($3, completed),
       updated_at = now()
 WHERE id = $1
`, id, patch.Title, patch.Completed)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.NotFound("Item", id)
	}
	return nil
}

func (r *ListRepository) SetItemCompleted(ctx context.Context, id int64, completed bool) (err error) {
	defer observe("update_item_completed", time.Now(), &err)

	tag, err := r.queryer().Exec(ctx, `
UPDATE items SET completed = $2, updated_at = now() WHERE id = $1
`, id, completed)
	if err != nil {
		return fmt.Errorf("update item completed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.NotFound("Item", id)
	}
	return nil
}

func (r *ListRepository) DeleteItem(ctx context.Context, id int64) (err error) {
	defer observe("delete_item", time.Now(), &err)

	tag, err := r.queryer().Exec(ctx, `DELETE FROM items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.NotFound("Item", id)
	}
	return nil
}

func (r *ListRepository) CountItems(ctx context.Context, listID int64) (total int64, completed int64, err error) {
	defer observe("count_items", time.Now(), &err)

	err = r.queryer().QueryRow(ctx, `
SELECT count(*), count(*) FILTER (WHERE completed)
  FROM items
 WHERE list_id = $1
`, listID).Scan(&total, &completed)
	if err != nil {
		return 0, 0, fmt.Errorf("count items: %w", err)
	}
	return total, completed, nil
}
