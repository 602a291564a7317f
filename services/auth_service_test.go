package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phishdrill/models"
	"phishdrill/testutil"
)

const testSecret = "test-secret-that-is-long-enough-for-hs256"

func TestAuthService_Login(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()

	created, err := models.CreateDefaultAdmin(db, "admin", "s3cret-pass")
	require.NoError(t, err)
	require.True(t, created)

	svc := NewAuthService(db, testSecret, testutil.NewLogger())

	session, err := svc.Login(ctx, LoginInput{Username: "admin", Password: "s3cret-pass"})
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
	assert.True(t, session.User.IsAdmin())
	assert.NotNil(t, session.User.LastLogin)

	user, claims, err := svc.UserFromToken(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, user.ID)
	assert.Equal(t, models.RoleAdmin, claims.Role)

	_, err = svc.Login(ctx, LoginInput{Username: "admin", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, LoginInput{Username: "ghost", Password: "whatever"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, LoginInput{Username: "admin"})
	assert.True(t, IsValidationError(err))

	_, _, err = svc.UserFromToken(ctx, "garbage")
	assert.Error(t, err)
}

func TestCreateDefaultAdminRunsOnce(t *testing.T) {
	db := testutil.NewDB(t)

	created, err := models.CreateDefaultAdmin(db, "admin", "pw")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = models.CreateDefaultAdmin(db, "admin2", "pw")
	require.NoError(t, err)
	assert.False(t, created)
}
