package lists

import (
	"context"

	"github.com/Togather-Foundation/listsync/internal/domain/errs"
)

// Op identifies the mutation a Policy is asked about.
type Op string

const (
	OpUpdateList Op = "update_list"
	OpDeleteList Op = "delete_list"
	OpCreateItem Op = "create_item"
	OpUpdateItem Op = "update_item"
	OpToggleItem Op = "toggle_item"
	OpDeleteItem Op = "delete_item"
)

// Policy decides whether actorID may perform op on list. It runs after the
// list has been loaded and before anything is written; a non-nil error
// aborts the mutation with no audit record and no broadcast.
type Policy interface {
	Authorize(ctx context.Context, actorID int64, op Op, list *List) error
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc func(ctx context.Context, actorID int64, op Op, list *List) error

func (f PolicyFunc) Authorize(ctx context.Context, actorID int64, op Op, list *List) error {
	return f(ctx, actorID, op, list)
}

// AllowAll lets any authenticated actor mutate any list.
var AllowAll Policy = PolicyFunc(func(context.Context, int64, Op, *List) error { return nil })

// OwnerOnly restricts list updates and deletes to the list owner while
// leaving item operations open to every collaborator.
var OwnerOnly Policy = PolicyFunc(func(_ context.Context, actorID int64, op Op, list *List) error {
	switch op {
	case OpUpdateList, OpDeleteList:
		if list.OwnerID != actorID {
			return errs.Forbidden("only the list owner can modify this list")
		}
	}
	return nil
})

// PolicyByName resolves a configured policy name.
// PolicyNames lists every name PolicyByName accepts.
var PolicyNames = []string{"allow_all", "owner_only"}

func PolicyByName(name string) (Policy, error) {
	switch name {
	case "", "allow_all":
		return AllowAll, nil
	case "owner_only":
		return OwnerOnly, nil
	default:
		return nil, errs.Validation("policy", "unknown list policy "+name)
	}
}
