package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Togather-Foundation/listsync/internal/activity"
	"github.com/Togather-Foundation/listsync/internal/domain/lists"
	"github.com/Togather-Foundation/listsync/internal/domain/users"
	"github.com/Togather-Foundation/listsync/internal/storage"
)

var _ storage.Repository = (*Repository)(nil)

// Repository implements storage.Repository with a PostgreSQL backend.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) (*Repository, error) {
	if pool == nil {
		return nil, fmt.Errorf("postgres repository: pool is nil")
	}
	return &Repository{pool: pool}, nil
}

func (r *Repository) Lists() lists.Repository {
	return &ListRepository{conn{pool: r.pool}}
}

func (r *Repository) Activity() activity.Repository {
	return &ActivityRepository{conn{pool: r.pool}}
}

func (r *Repository) Users() users.Repository {
	return &UserRepository{conn{pool: r.pool}}
}

func (r *Repository) Pool() *pgxpool.Pool {
	return r.pool
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *Repository) Close() {
	r.pool.Close()
}
