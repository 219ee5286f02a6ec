package storage

import (
	"context"

	"github.com/Togather-Foundation/listsync/internal/activity"
	"github.com/Togather-Foundation/listsync/internal/domain/lists"
	"github.com/Togather-Foundation/listsync/internal/domain/users"
)

// Repository groups data access by domain. Transactions are started from
// Lists().BeginTx; the transactional repository exposes the matching
// activity repository.
type Repository interface {
	Lists() lists.Repository
	Activity() activity.Repository
	Users() users.Repository

	Ping(ctx context.Context) error
	Close()
}
