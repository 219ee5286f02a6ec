// Package memory is an in-process implementation of the storage interfaces
// for development and tests. Transactions work on a private copy of the
// data that replaces the shared copy on commit; writers, transactional or
// not, are serialized.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Togather-Foundation/listsync/internal/activity"
	"github.com/Togather-Foundation/listsync/internal/domain/lists"
	"github.com/Togather-Foundation/listsync/internal/domain/users"
)

type userRow struct {
	users.User
}

type listRow struct {
	ID          int64
	Title       string
	Description *string
	OwnerID     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type itemRow struct {
	ID        int64
	ListID    int64
	Title     string
	Completed bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type activityRow struct {
	ID        int64
	Action    activity.Action
	UserID    int64
	ListID    *int64
	ItemID    *int64
	CreatedAt time.Time
}

type state struct {
	users      map[int64]userRow
	lists      map[int64]listRow
	items      map[int64]itemRow
	activities []activityRow

	nextUserID     int64
	nextListID     int64
	nextItemID     int64
	nextActivityID int64
}

func newState() *state {
	return &state{
		users: make(map[int64]userRow),
		lists: make(map[int64]listRow),
		items: make(map[int64]itemRow),
	}
}

func (s *state) clone() *state {
	c := &state{
		users:          make(map[int64]userRow, len(s.users)),
		lists:          make(map[int64]listRow, len(s.lists)),
		items:          make(map[int64]itemRow, len(s.items)),
		activities:     make([]activityRow, len(s.activities)),
		nextUserID:     s.nextUserID,
		nextListID:     s.nextListID,
		nextItemID:     s.nextItemID,
		nextActivityID: s.nextActivityID,
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.lists {
		c.lists[k] = v
	}
	for k, v := range s.items {
		c.items[k] = v
	}
	copy(c.activities, s.activities)
	return c
}

// Store holds all data in memory.
type Store struct {
	writeMu sync.Mutex   // serializes writers and transactions
	mu      sync.RWMutex // guards data
	data    *state
	now     func() time.Time
}

func New() *Store {
	return &Store{
		data: newState(),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the time source, for tests.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Store) Lists() lists.Repository       { return &view{store: s} }
func (s *Store) Activity() activity.Repository { return activityView{&view{store: s}} }
func (s *Store) Users() users.Repository       { return usersView{&view{store: s}} }

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() {}

// view is a repository over either the shared data or a transaction's copy.
type view struct {
	store *Store
	tx    *tx
}

type tx struct {
	store *Store
	data  *state
	mu    sync.Mutex
	done  bool
}

var errTxDone = errors.New("transaction already finished")

func (v *view) read(fn func(st *state) error) error {
	if v.tx != nil {
		v.tx.mu.Lock()
		defer v.tx.mu.Unlock()
		if v.tx.done {
			return errTxDone
		}
		return fn(v.tx.data)
	}
	v.store.mu.RLock()
	defer v.store.mu.RUnlock()
	return fn(v.store.data)
}

func (v *view) write(fn func(st *state) error) error {
	if v.tx != nil {
		return v.read(fn)
	}
	v.store.writeMu.Lock()
	defer v.store.writeMu.Unlock()
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	return fn(v.store.data)
}

func (v *view) now() time.Time { return v.store.now() }

// BeginTx starts a transaction. It blocks until any other writer finishes.
func (v *view) BeginTx(ctx context.Context) (lists.Repository, lists.TxCommitter, error) {
	if v.tx != nil {
		return nil, nil, errors.New("nested transactions are not supported")
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	s := v.store
	s.writeMu.Lock()
	s.mu.RLock()
	t := &tx{store: s, data: s.data.clone()}
	s.mu.RUnlock()

	return &view{store: s, tx: t}, t, nil
}

func (v *view) Activity() activity.Repository {
	return activityView{v}
}

func (t *tx) Commit(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return errTxDone
	}
	t.done = true

	t.store.mu.Lock()
	t.store.data = t.data
	t.store.mu.Unlock()
	t.store.writeMu.Unlock()
	return nil
}

func (t *tx) Rollback(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return nil
	}
	t.done = true
	t.store.writeMu.Unlock()
	return nil
}
