package users

import (
	"context"
	"time"
)

// User is an account that can own lists and act on shared ones.
type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Ref is the projection of a User embedded in lists and activity records.
type Ref struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (u User) Ref() Ref {
	return Ref{ID: u.ID, Name: u.Name, Email: u.Email}
}

type CreateParams struct {
	Name         string
	Email        string
	PasswordHash string
}

// Repository persists users. Lookups return an errs.KindNotFound error for
// unknown ids or emails; Create returns errs.KindConflict for a taken email.
type Repository interface {
	Create(ctx context.Context, params CreateParams) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context) ([]User, error)
	Delete(ctx context.Context, id int64) error
}
