package users_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Togather-Foundation/listsync/internal/domain/errs"
	"github.com/Togather-Foundation/listsync/internal/domain/users"
	"github.com/Togather-Foundation/listsync/internal/storage/memory"
)

type stubTokens struct{}

func (stubTokens) Generate(userID int64, email string) (string, error) {
	return fmt.Sprintf("token-%d-%s", userID, email), nil
}

func newService(t *testing.T) *users.Service {
	t.Helper()
	// Minimum bcrypt cost keeps the tests fast.
	return users.NewService(memory.New().Users(), users.BcryptHasher{Cost: 4}, stubTokens{}, zerolog.Nop())
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	sess, err := svc.Register(ctx, users.RegisterInput{Name: "Alice", Email: " Alice@Example.com ", Password: "hunter22"})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", sess.User.Email)
	assert.Equal(t, fmt.Sprintf("token-%d-alice@example.com", sess.User.ID), sess.Token)
	assert.NotEqual(t, "hunter22", sess.User.PasswordHash)

	login, err := svc.Login(ctx, users.LoginInput{Email: "alice@example.com", Password: "hunter22"})
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, login.User.ID)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	_, err := svc.Register(ctx, users.RegisterInput{Name: "Alice", Email: "alice@example.com", Password: "hunter22"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, users.RegisterInput{Name: "Impostor", Email: "ALICE@example.com", Password: "hunter22"})
	assert.Equal(t, errs.KindConflict, errs.KindOf(err))
}

func TestRegisterValidation(t *testing.T) {
	svc := newService(t)

	tests := []struct {
		name  string
		in    users.RegisterInput
		field string
	}{
		{"missing name", users.RegisterInput{Email: "a@example.com", Password: "secret1"}, "name"},
		{"bad email", users.RegisterInput{Name: "A", Email: "nope", Password: "secret1"}, "email"},
		{"short password", users.RegisterInput{Name: "A", Email: "a@example.com", Password: "123"}, "password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tt.in)
			require.Error(t, err)
			assert.Equal(t, errs.KindValidation, errs.KindOf(err))
			assert.Equal(t, tt.field, errs.FieldOf(err))
		})
	}
}

func TestLoginFailures(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	_, err := svc.Register(ctx, users.RegisterInput{Name: "Alice", Email: "alice@example.com", Password: "hunter22"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, users.LoginInput{Email: "nobody@example.com", Password: "x"})
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
	assert.Equal(t, "User not found, try register!", err.Error())

	_, err = svc.Login(ctx, users.LoginInput{Email: "alice@example.com", Password: "wrong"})
	assert.Equal(t, errs.KindUnauthenticated, errs.KindOf(err))
}

func TestListAndDelete(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	a, err := svc.Register(ctx, users.RegisterInput{Name: "Alice", Email: "alice@example.com", Password: "hunter22"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, users.RegisterInput{Name: "Bob", Email: "bob@example.com", Password: "hunter22"})
	require.NoError(t, err)

	all, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, svc.Delete(ctx, a.User.ID))
	err = svc.Delete(ctx, a.User.ID)
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
	assert.Equal(t, fmt.Sprintf("User with ID %d not found", a.User.ID), err.Error())

	_, err = svc.Get(ctx, a.User.ID)
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
}
