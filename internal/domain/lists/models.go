package lists

import (
	"context"
	"time"

	"github.com/Togather-Foundation/listsync/internal/activity"
	"github.com/Togather-Foundation/listsync/internal/domain/users"
)

// List is a shared checklist. Items are ordered by creation time, oldest
// first.
type List struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	OwnerID     int64     `json:"ownerId"`
	Owner       users.Ref `json:"owner"`
	Items       []Item    `json:"items"`
	ItemCount   int       `json:"itemCount"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Summary is the list projection returned alongside item collections.
type Summary struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
}

// Item is a single checklist entry.
type Item struct {
	ID        int64            `json:"id"`
	ListID    int64            `json:"listId"`
	List      activity.ListRef `json:"list"`
	Title     string           `json:"title"`
	Completed bool             `json:"completed"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// ItemsPage is the result of ItemService.ByList.
type ItemsPage struct {
	List  Summary `json:"list"`
	Items []Item  `json:"items"`
}

// ItemStats summarises completion of a list.
type ItemStats struct {
	Total          int64 `json:"total"`
	Completed      int64 `json:"completed"`
	Pending        int64 `json:"pending"`
	CompletionRate int   `json:"completionRate"`
}

// CreateListInput is the client-supplied body for a new list.
type CreateListInput struct {
	Title       string  `json:"title" validate:"required,max=200"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
}

// ListPatch carries optional list field updates; nil fields are unchanged.
type ListPatch struct {
	Title       *string `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
}

// CreateItemInput is the client-supplied body for a new item.
type CreateItemInput struct {
	Title     string `json:"title" validate:"required,max=500"`
	Completed bool   `json:"completed"`
}

// ItemPatch carries optional item field updates; nil fields are unchanged.
type ItemPatch struct {
	Title     *string `json:"title" validate:"omitempty,min=1,max=500"`
	Completed *bool   `json:"completed"`
}

type CreateListParams struct {
	Title       string
	Description *string
	OwnerID     int64
}

type CreateItemParams struct {
	ListID    int64
	Title     string
	Completed bool
}

// Repository persists lists and items. Getters return an errs.KindNotFound
// error for unknown ids. Deleting a list removes its items.
type Repository interface {
	CreateList(ctx context.Context, params CreateListParams) (int64, error)
	GetList(ctx context.Context, id int64) (*List, error)
	AllLists(ctx context.Context) ([]List, error)
	ListsByOwner(ctx context.Context, ownerID int64) ([]List, error)
	UpdateList(ctx context.Context, id int64, patch ListPatch) error
	DeleteList(ctx context.Context, id int64) error

	CreateItem(ctx context.Context, params CreateItemParams) (int64, error)
	GetItem(ctx context.Context, id int64) (*Item, error)
	ItemsByList(ctx context.Context, listID int64) ([]Item, error)
	UpdateItem(ctx context.Context, id int64, patch ItemPatch) error
	SetItemCompleted(ctx context.Context, id int64, completed bool) error
	DeleteItem(ctx context.Context, id int64) error
	CountItems(ctx context.Context, listID int64) (total int64, completed int64, err error)

	// Activity returns the audit repository sharing this repository's
	// transaction, if any.
	Activity() activity.Repository

	BeginTx(ctx context.Context) (Repository, TxCommitter, error)
}

// TxCommitter finishes a transaction started with BeginTx. Rollback after
// Commit is a no-op.
type TxCommitter interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
