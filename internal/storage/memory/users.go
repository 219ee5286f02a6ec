package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/Togather-Foundation/listsync/internal/domain/errs"
	"github.com/Togather-Foundation/listsync/internal/domain/users"
)

type usersView struct {
	*view
}

func (v usersView) Create(_ context.Context, p users.CreateParams) (*users.User, error) {
	var out *users.User
	err := v.write(func(st *state) error {
		for _, u := range st.users {
			if strings.EqualFold(u.Email, p.Email) {
				return errs.Conflict("User with this email already exists")
			}
		}
		st.nextUserID++
		now := v.now()
		u := users.User{
			ID:           st.nextUserID,
			Name:         p.Name,
			Email:        p.Email,
			PasswordHash: p.PasswordHash,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		st.users[u.ID] = userRow{User: u}
		out = &u
		return nil
	})
	return out, err
}

func (v usersView) GetByID(_ context.Context, id int64) (*users.User, error) {
	var out *users.User
	err := v.read(func(st *state) error {
		row, ok := st.users[id]
		if !ok {
			return errs.NotFound("User", id)
		}
		u := row.User
		out = &u
		return nil
	})
	return out, err
}

func (v usersView) GetByEmail(_ context.Context, email string) (*users.User, error) {
	var out *users.User
	err := v.read(func(st *state) error {
		for _, row := range st.users {
			if strings.EqualFold(row.Email, email) {
				u := row.User
				out = &u
				return nil
			}
		}
		return &errs.Error{Kind: errs.KindNotFound, Entity: "User", Message: "User not found"}
	})
	return out, err
}

func (v usersView) List(context.Context) ([]users.User, error) {
	var out []users.User
	err := v.read(func(st *state) error {
		out = make([]users.User, 0, len(st.users))
		for _, row := range st.users {
			out = append(out, row.User)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
		return nil
	})
	return out, err
}

// Delete removes the user and the lists they own. Activity rows keep the
// user id.
func (v usersView) Delete(_ context.Context, id int64) error {
	return v.write(func(st *state) error {
		if _, ok := st.users[id]; !ok {
			return errs.NotFound("User", id)
		}
		delete(st.users, id)
		for listID, l := range st.lists {
			if l.OwnerID != id {
				continue
			}
			delete(st.lists, listID)
			for itemID, it := range st.items {
				if it.ListID == listID {
					delete(st.items, itemID)
				}
			}
		}
		return nil
	})
}
