package memory

import (
	"context"
	"sort"

	"github.com/Togather-Foundation/listsync/internal/activity"
	"github.com/Togather-Foundation/listsync/internal/domain/errs"
	"github.com/Togather-Foundation/listsync/internal/domain/lists"
)

func (st *state) listByID(id int64) (*lists.List, error) {
	row, ok := st.lists[id]
	if !ok {
		return nil, errs.NotFound("List", id)
	}
	l := st.toList(row)
	return &l, nil
}

func (st *state) toList(row listRow) lists.List {
	l := lists.List{
		ID:          row.ID,
		Title:       row.Title,
		Description: row.Description,
		OwnerID:     row.OwnerID,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
	if u, ok := st.users[row.OwnerID]; ok {
		l.Owner = u.Ref()
	}
	l.Items = st.itemsOf(row.ID)
	l.ItemCount = len(l.Items)
	return l
}

func (st *state) itemsOf(listID int64) []lists.Item {
	out := make([]lists.Item, 0)
	for _, row := range st.items {
		if row.ListID == listID {
			out = append(out, st.toItem(row))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (st *state) toItem(row itemRow) lists.Item {
	it := lists.Item{
		ID:        row.ID,
		ListID:    row.ListID,
		List:      activity.ListRef{ID: row.ListID},
		Title:     row.Title,
		Completed: row.Completed,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
	if l, ok := st.lists[row.ListID]; ok {
		it.List.Title = l.Title
	}
	return it
}

// listsNewestFirst returns rows matching keep ordered by created_at desc.
func (st *state) listsNewestFirst(keep func(listRow) bool) []lists.List {
	rows := make([]listRow, 0, len(st.lists))
	for _, row := range st.lists {
		if keep(row) {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].CreatedAt.After(rows[j].CreatedAt)
		}
		return rows[i].ID > rows[j].ID
	})
	out := make([]lists.List, 0, len(rows))
	for _, row := range rows {
		out = append(out, st.toList(row))
	}
	return out
}

func (v *view) CreateList(_ context.Context, params lists.CreateListParams) (int64, error) {
	var id int64
	err := v.write(func(st *state) error {
		if _, ok := st.users[params.OwnerID]; !ok {
			return errs.NotFound("User", params.OwnerID)
		}
		st.nextListID++
		id = st.nextListID
		now := v.now()
		st.lists[id] = listRow{
			ID:          id,
			Title:       params.Title,
			Description: params.Description,
			OwnerID:     params.OwnerID,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		return nil
	})
	return id, err
}

func (v *view) GetList(_ context.Context, id int64) (*lists.List, error) {
	var out *lists.List
	err := v.read(func(st *state) error {
		l, err := st.listByID(id)
		out = l
		return err
	})
	return out, err
}

func (v *view) AllLists(context.Context) ([]lists.List, error) {
	var out []lists.List
	err := v.read(func(st *state) error {
		out = st.listsNewestFirst(func(listRow) bool { return true })
		return nil
	})
	return out, err
}

func (v *view) ListsByOwner(_ context.Context, ownerID int64) ([]lists.List, error) {
	var out []lists.List
	err := v.read(func(st *state) error {
		out = st.listsNewestFirst(func(r listRow) bool { return r.OwnerID == ownerID })
		return nil
	})
	return out, err
}

func (v *view) UpdateList(_ context.Context, id int64, patch lists.ListPatch) error {
	return v.write(func(st *state) error {
		row, ok := st.lists[id]
		if !ok {
			return errs.NotFound("List", id)
		}
		if patch.Title != nil {
			row.Title = *patch.Title
		}
		if patch.Description != nil {
			d := *patch.Description
			row.Description = &d
		}
		row.UpdatedAt = v.now()
		st.lists[id] = row
		return nil
	})
}

func (v *view) DeleteList(_ context.Context, id int64) error {
	return v.write(func(st *state) error {
		if _, ok := st.lists[id]; !ok {
			return errs.NotFound("List", id)
		}
		delete(st.lists, id)
		for itemID, row := range st.items {
			if row.ListID == id {
				delete(st.items, itemID)
			}
		}
		return nil
	})
}

func (v *view) CreateItem(_ context.Context, params lists.CreateItemParams) (int64, error) {
	var id int64
	err := v.write(func(st *state) error {
		if _, ok := st.lists[params.ListID]; !ok {
			return errs.NotFound("List", params.ListID)
		}
		st.nextItemID++
		id = st.nextItemID
		now := v.now()
		st.items[id] = itemRow{
			ID:        id,
			ListID:    params.ListID,
			Title:     params.Title,
			Completed: params.Completed,
			CreatedAt: now,
			UpdatedAt: now,
		}
		return nil
	})
	return id, err
}

func (v *view) GetItem(_ context.Context, id int64) (*lists.Item, error) {
	var out *lists.Item
	err := v.read(func(st *state) error {
		row, ok := st.items[id]
		if !ok {
			return errs.NotFound("Item", id)
		}
		it := st.toItem(row)
		out = &it
		return nil
	})
	return out, err
}

func (v *view) ItemsByList(_ context.Context, listID int64) ([]lists.Item, error) {
	var out []lists.Item
	err := v.read(func(st *state) error {
		out = st.itemsOf(listID)
		return nil
	})
	return out, err
}

func (v *view) UpdateItem(_ context.Context, id int64, patch lists.ItemPatch) error {
	return v.write(func(st *state) error {
		row, ok := st.items[id]
		if !ok {
			return errs.NotFound("Item", id)
		}
		if patch.Title != nil {
			row.Title = *patch.Title
		}
		if patch.Completed != nil {
			row.Completed = *patch.Completed
		}
		row.UpdatedAt = v.now()
		st.items[id] = row
		return nil
	})
}

func (v *view) SetItemCompleted(_ context.Context, id int64, completed bool) error {
	return v.write(func(st *state) error {
		row, ok := st.items[id]
		if !ok {
			return errs.NotFound("Item", id)
		}
		row.Completed = completed
		row.UpdatedAt = v.now()
		st.items[id] = row
		return nil
	})
}

func (v *view) DeleteItem(_ context.Context, id int64) error {
	return v.write(func(st *state) error {
		if _, ok := st.items[id]; !ok {
			return errs.NotFound("Item", id)
		}
		delete(st.items, id)
		return nil
	})
}

func (v *view) CountItems(_ context.Context, listID int64) (int64, int64, error) {
	var total, completed int64
	err := v.read(func(st *state) error {
		for _, row := range st.items {
			if row.ListID != listID {
				continue
			}
			total++
			if row.Completed {
				completed++
			}
		}
		return nil
	})
	return total, completed, err
}
