package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Togather-Foundation/listsync/internal/activity"
	"github.com/Togather-Foundation/listsync/internal/domain/errs"
	"github.com/Togather-Foundation/listsync/internal/domain/lists"
)

var _ lists.Repository = (*ListRepository)(nil)

// ListRepository stores lists and their items.
type ListRepository struct {
	conn
}

const selectList = `
SELECT l.id, l.title, l.description, l.owner_id, l.created_at, l.updated_at,
       COALESCE(u.name, ''), COALESCE(u.email, '')
  FROM lists l
  LEFT JOIN users u ON u.id = l.owner_id
`

func scanList(row pgx.Row) (lists.List, error) {
	var l lists.List
	err := row.Scan(
		&l.ID,
		&l.Title,
		&l.Description,
		&l.OwnerID,
		&l.CreatedAt,
		&l.UpdatedAt,
		&l.Owner.Name,
		&l.Owner.Email,
	)
	l.Owner.ID = l.OwnerID
	return l, err
}

func (r *ListRepository) CreateList(ctx context.Context, params lists.CreateListParams) (id int64, err error) {
	defer observe("insert_list", time.Now(), &err)

	err = r.queryer().QueryRow(ctx, `
INSERT INTO lists (title, description, owner_id)
VALUES ($1, $2, $3)
RETURNING id
`, params.Title, params.Description, params.OwnerID).Scan(&id)
	if err != nil {
		if pgCode(err) == pgForeignKeyViolation {
			return 0, errs.NotFound("User", params.OwnerID)
		}
		return 0, fmt.Errorf("insert list: %w", err)
	}
	return id, nil
}

func (r *ListRepository) GetList(ctx context.Context, id int64) (out *lists.List, err error) {
	defer observe("select_list", time.Now(), &err)

	l, err := scanList(r.queryer().QueryRow(ctx, selectList+` WHERE l.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.NotFound("List", id)
		}
		return nil, fmt.Errorf("select list: %w", err)
	}

	items, err := r.itemsFor(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	attachItems(&l, items[id])
	return &l, nil
}

func (r *ListRepository) AllLists(ctx context.Context) (out []lists.List, err error) {
	defer observe("select_lists", time.Now(), &err)
	return r.queryLists(ctx, selectList+` ORDER BY l.created_at DESC, l.id DESC`)
}

func (r *ListRepository) ListsByOwner(ctx context.Context, ownerID int64) (out []lists.List, err error) {
	defer observe("select_lists_by_owner", time.Now(), &err)
	return r.queryLists(ctx, selectList+` WHERE l.owner_id = $1 ORDER BY l.created_at DESC, l.id DESC`, ownerID)
}

func (r *ListRepository) queryLists(ctx context.Context, sql string, args ...any) ([]lists.List, error) {
	rows, err := r.queryer().Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query lists: %w", err)
	}
	defer rows.Close()

	out := make([]lists.List, 0)
	ids := make([]int64, 0)
	for rows.Next() {
		l, err := scanList(rows)
		if err != nil {
			return nil, fmt.Errorf("scan list: %w", err)
		}
		out = append(out, l)
		ids = append(ids, l.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lists: %w", err)
	}
	if len(ids) == 0 {
		return out, nil
	}

	items, err := r.itemsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		attachItems(&out[i], items[out[i].ID])
	}
	return out, nil
}

func attachItems(l *lists.List, items []lists.Item) {
	if items == nil {
		items = make([]lists.Item, 0)
	}
	l.Items = items
	l.ItemCount = len(items)
}

func (r *ListRepository) UpdateList(ctx context.Context, id int64, patch lists.ListPatch) (err error) {
	defer observe("update_list", time.Now(), &err)

	tag, err := r.queryer().Exec(ctx, `
UPDATE lists
   SET title = COALESCE($2, title),
       description = COALESCE($3, description),
       updated_at = now()
 WHERE id = $1
`, id, patch.Title, patch.Description)
	if err != nil {
		return fmt.Errorf("update list: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.NotFound("List", id)
	}
	return nil
}

func (r *ListRepository) DeleteList(ctx context.Context, id int64) (err error) {
	defer observe("delete_list", time.Now(), &err)

	tag, err := r.queryer().Exec(ctx, `DELETE FROM lists WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete list: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.NotFound("List", id)
	}
	return nil
}

func (r *ListRepository) Activity() activity.Repository {
	return &ActivityRepository{r.conn}
}

// BeginTx starts a transaction and returns a repository bound to it.
func (r *ListRepository) BeginTx(ctx context.Context) (lists.Repository, lists.TxCommitter, error) {
	if r.tx != nil {
		return nil, nil, fmt.Errorf("repository already in transaction")
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin transaction: %w", err)
	}

	txRepo := &ListRepository{conn{pool: r.pool, tx: tx}}
	return txRepo, &txCommitter{tx: tx}, nil
}
