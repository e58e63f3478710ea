package auth_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/newsshelf/shelf-auth"
)

var rootActor = auth.ActorRef{ID: "root", Type: "user"}

func TestListIdentities(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "reader@example.com", "tech")
	f.register(t, "lurker@example.com")

	all, err := f.admin.ListIdentities(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 3, all.Total)
	assert.Len(t, all.Users, 3)

	byEmail := map[string]auth.AdminUserItem{}
	for _, u := range all.Users {
		byEmail[u.Email] = u
	}
	assert.Equal(t, auth.RoleAdmin, byEmail[mainAdminEmail].Role)
	assert.Equal(t, auth.RoleReader, byEmail["reader@example.com"].Role)
	assert.Equal(t, auth.RoleReader, byEmail["lurker@example.com"].Role)

	admins, err := f.admin.ListIdentities(ctx, "admin")
	require.NoError(t, err)
	require.Equal(t, 1, admins.Total)
	assert.Equal(t, mainAdminEmail, admins.Users[0].Email)

	readers, err := f.admin.ListIdentities(ctx, "READER")
	require.NoError(t, err)
	require.Equal(t, 1, readers.Total)
	assert.Equal(t, "reader@example.com", readers.Users[0].Email)

	_, err = f.admin.ListIdentities(ctx, "EDITOR")
	require.ErrorIs(t, err, auth.ErrInvalidRole)
}

func TestAssignRoleChecks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	readerID, _ := f.register(t, "reader@example.com", "tech")
	lurkerID, _ := f.register(t, "lurker@example.com")
	adminID := f.userID(t, mainAdminEmail)

	cases := []struct {
		name   string
		id     string
		role   string
		err    error
		status int
	}{
		{"malformed id", "not-a-uuid", "READER", auth.ErrIdentityNotFound, http.StatusNotFound},
		{"unknown id", uuid.NewString(), "READER", auth.ErrIdentityNotFound, http.StatusNotFound},
		{"main admin", adminID, "READER", auth.ErrMainAdminProtected, http.StatusForbidden},
		{"main admin with invalid role", adminID, "EDITOR", auth.ErrMainAdminProtected, http.StatusForbidden},
		{"invalid role", readerID, "EDITOR", auth.ErrInvalidRole, http.StatusBadRequest},
		{"publisher without topics", lurkerID, "PUBLISHER", auth.ErrFavoriteTopicsRequired, http.StatusBadRequest},
		{"reader without topics", lurkerID, "", auth.ErrFavoriteTopicsRequired, http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.admin.AssignRole(ctx, rootActor, tc.id, tc.role)
			require.ErrorIs(t, err, tc.err)
			assert.Equal(t, tc.status, auth.ErrorStatus(err))
		})
	}
}

func TestAssignRoleReplacesRoles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id, _ := f.register(t, "reader@example.com", "tech")

	role, err := f.admin.AssignRole(ctx, rootActor, id, "")
	require.NoError(t, err)
	assert.Equal(t, auth.RoleReader, role)

	role, err = f.admin.AssignRole(ctx, rootActor, id, "publisher")
	require.NoError(t, err)
	assert.Equal(t, auth.RolePublisher, role)

	profile, err := f.profiles.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"PUBLISHER"}, profile.Roles)

	event := f.sink.last()
	assert.Equal(t, auth.ActivityEventAdminRoleAssigned, event.EventType)
	assert.Equal(t, rootActor, event.Actor)
	assert.Equal(t, id, event.UserID)
	assert.Equal(t, "PUBLISHER", event.Metadata["role"])

	// ADMIN has no topic precondition
	lurkerID, _ := f.register(t, "lurker@example.com")
	role, err = f.admin.AssignRole(ctx, rootActor, lurkerID, "ADMIN")
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, role)
}

func TestAssignRoleIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id, _ := f.register(t, "reader@example.com", "tech")

	for i := 0; i < 2; i++ {
		role, err := f.admin.AssignRole(ctx, rootActor, id, "READER")
		require.NoError(t, err)
		assert.Equal(t, auth.RoleReader, role)
	}

	profile, err := f.profiles.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"READER"}, profile.Roles)

	count, err := f.db.NewSelect().Table("user_roles").Where("user_id = ?", id).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	fresh, err := f.auther.Login(ctx, "reader@example.com", "secret1")
	require.NoError(t, err)
	claims, err := f.auther.TokenService().Validate(fresh.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, []string{"READER"}, claims.RoleNames())
}

func TestAssignRoleAfterTopicsAreSet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id, _ := f.register(t, "lurker@example.com")

	_, err := f.admin.AssignRole(ctx, rootActor, id, "PUBLISHER")
	require.ErrorIs(t, err, auth.ErrFavoriteTopicsRequired)

	_, err = f.profiles.SetFavoriteTopics(ctx, id, []string{"science"})
	require.NoError(t, err)

	role, err := f.admin.AssignRole(ctx, rootActor, id, "PUBLISHER")
	require.NoError(t, err)
	assert.Equal(t, auth.RolePublisher, role)
}

func TestRoleChangeAppliesOnNextLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id, oldToken := f.register(t, "reader@example.com", "tech")

	_, err := f.admin.AssignRole(ctx, rootActor, id, "PUBLISHER")
	require.NoError(t, err)

	old, err := f.auther.TokenService().Validate(oldToken.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, []string{"READER"}, old.RoleNames())

	fresh, err := f.auther.Login(ctx, "reader@example.com", "secret1")
	require.NoError(t, err)
	claims, err := f.auther.TokenService().Validate(fresh.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, []string{"PUBLISHER"}, claims.RoleNames())
}

func TestDeleteIdentity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id, _ := f.register(t, "gone@example.com", "tech", "sports")

	_, err := f.profiles.RecordRead(ctx, id, auth.ReadRecord{NewsID: "n-1", Topic: "tech"})
	require.NoError(t, err)

	require.NoError(t, f.admin.DeleteIdentity(ctx, rootActor, id))
	deleted := f.sink.last()
	assert.Equal(t, auth.ActivityEventAdminIdentityDeleted, deleted.EventType)
	assert.Equal(t, f.now, deleted.Metadata["deleted_at"])
	assert.Equal(t, f.now, deleted.OccurredAt)

	_, err = f.profiles.Get(ctx, id)
	require.ErrorIs(t, err, auth.ErrIdentityNotFound)

	_, err = f.auther.Login(ctx, "gone@example.com", "secret1")
	require.ErrorIs(t, err, auth.ErrMismatchedHashAndPassword)

	for _, table := range []string{"user_favorite_topics", "user_activities", "user_roles"} {
		count, err := f.db.NewSelect().Table(table).Where("user_id = ?", id).Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, count, table)
	}

	err = f.admin.DeleteIdentity(ctx, rootActor, id)
	require.ErrorIs(t, err, auth.ErrIdentityNotFound)
}

func TestDeleteMainAdminIsForbidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.admin.DeleteIdentity(ctx, rootActor, f.userID(t, mainAdminEmail))
	require.ErrorIs(t, err, auth.ErrMainAdminProtected)

	list, err := f.admin.ListIdentities(ctx, "ADMIN")
	require.NoError(t, err)
	assert.Equal(t, 1, list.Total)
}
