// Package activity implements the audit trail for shared lists.
//
// Records are append-only: the package exposes no update or delete path.
// Every record is returned enriched with its actor and, when present, the
// list and item it refers to, plus a human-readable message that is produced
// by FormatMessage on both the history and the live broadcast paths.
package activity

import (
	"context"
	"time"

	"github.com/Togather-Foundation/listsync/internal/domain/users"
)

// Action is the fixed vocabulary of audited mutations.
type Action string

const (
	ActionListCreated     Action = "list_created"
	ActionListUpdated     Action = "list_updated"
	ActionListDeleted     Action = "list_deleted"
	ActionItemCreated     Action = "item_created"
	ActionItemUpdated     Action = "item_updated"
	ActionItemCompleted   Action = "item_completed"
	ActionItemUncompleted Action = "item_uncompleted"
	ActionItemDeleted     Action = "item_deleted"
)

// Actions lists the vocabulary in a stable order.
var Actions = []Action{
	ActionListCreated,
	ActionListUpdated,
	ActionListDeleted,
	ActionItemCreated,
	ActionItemUpdated,
	ActionItemCompleted,
	ActionItemUncompleted,
	ActionItemDeleted,
}

func (a Action) Valid() bool {
	for _, known := range Actions {
		if a == known {
			return true
		}
	}
	return false
}

type ListRef struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

type ItemRef struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

// Activity is an enriched audit record.
type Activity struct {
	ID        int64     `json:"id"`
	Action    Action    `json:"action"`
	UserID    int64     `json:"userId"`
	ListID    *int64    `json:"listId"`
	ItemID    *int64    `json:"itemId"`
	CreatedAt time.Time `json:"createdAt"`
	User      users.Ref `json:"user"`
	List      *ListRef  `json:"list,omitempty"`
	Item      *ItemRef  `json:"item,omitempty"`
	Message   string    `json:"message"`
}

// Entry is the input to Append.
type Entry struct {
	Action Action
	UserID int64
	ListID *int64
	ItemID *int64
}

type ScopeKind int

const (
	ScopeAll ScopeKind = iota
	ScopeList
	ScopeUser
)

// Scope selects which records a Query returns.
type Scope struct {
	Kind ScopeKind
	ID   int64
}

func All() Scope                { return Scope{Kind: ScopeAll} }
func ByList(listID int64) Scope { return Scope{Kind: ScopeList, ID: listID} }
func ByUser(userID int64) Scope { return Scope{Kind: ScopeUser, ID: userID} }

const (
	DefaultRecentLimit  = 20
	DefaultHistoryLimit = 50
	MaxLimit            = 200
)

// Filter is the repository-level form of a Scope with a resolved limit.
type Filter struct {
	ListID *int64
	UserID *int64
	Limit  int
}

// Stats aggregates audit records, optionally for one list.
type Stats struct {
	Total    int64            `json:"total"`
	ByAction map[Action]int64 `json:"byAction"`
}

// Repository stores audit records. List must order by created_at desc, id desc.
type Repository interface {
	Create(ctx context.Context, entry Entry) (int64, error)
	GetByID(ctx context.Context, id int64) (*Activity, error)
	List(ctx context.Context, filter Filter) ([]Activity, error)
	Count(ctx context.Context, listID *int64) (int64, error)
	CountByAction(ctx context.Context, listID *int64) (map[Action]int64, error)
}
