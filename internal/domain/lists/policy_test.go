package lists

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Togather-Foundation/listsync/internal/domain/errs"
)

func TestOwnerOnly(t *testing.T) {
	ctx := context.Background()
	list := &List{ID: 1, OwnerID: 10}

	assert.NoError(t, OwnerOnly.Authorize(ctx, 10, OpDeleteList, list))
	assert.NoError(t, OwnerOnly.Authorize(ctx, 11, OpToggleItem, list))

	err := OwnerOnly.Authorize(ctx, 11, OpUpdateList, list)
	assert.Equal(t, errs.KindForbidden, errs.KindOf(err))
}

func TestPolicyByName(t *testing.T) {
	p, err := PolicyByName("")
	require.NoError(t, err)
	assert.NoError(t, p.Authorize(context.Background(), 2, OpDeleteList, &List{OwnerID: 1}))

	p, err = PolicyByName("owner_only")
	require.NoError(t, err)
	assert.Error(t, p.Authorize(context.Background(), 2, OpDeleteList, &List{OwnerID: 1}))

	_, err = PolicyByName("admins")
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", outcome(nil))
	assert.Equal(t, "not_found", outcome(errs.NotFound("List", 1)))
	assert.Equal(t, "forbidden", outcome(errs.Forbidden("no")))
	assert.Equal(t, "error", outcome(assert.AnError))
}
