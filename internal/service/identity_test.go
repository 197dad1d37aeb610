package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/resumiro/internal/apperror"
	"github.com/sakif/resumiro/internal/model"
)

// =========================================================================
// ADD USER
// =========================================================================

// hasRole reflects exactly the registered role and no other.
func TestAddUser_HasRoleIsExact(t *testing.T) {
	for _, role := range []model.Role{model.RoleCandidate, model.RoleRecruiter, model.RoleCompanyAdmin, model.RoleRecruiterAdmin} {
		t.Run(role.String(), func(t *testing.T) {
			f := newFixture(t)
			p := "0x" + role.String()

			require.NoError(t, f.users.AddUser(as(p), p, role))

			for other := model.RoleCandidate; other <= model.RoleAdmin; other++ {
				got, err := f.users.HasRole(context.Background(), p, other)
				require.NoError(t, err)
				assert.Equal(t, other == role, got, "HasRole(%s)", other)
			}
			registered, err := f.users.IsRegistered(context.Background(), p)
			require.NoError(t, err)
			assert.True(t, registered)
		})
	}
}

func TestAddUser_ReRegisterAlwaysFails(t *testing.T) {
	f := newFixture(t)
	f.register(t, candidate, model.RoleCandidate)

	for role := model.RoleCandidate; role <= model.RoleRecruiterAdmin; role++ {
		err := f.users.AddUser(as(candidate), candidate, role)
		assert.ErrorIs(t, err, apperror.ErrAlreadyExists, "role %s", role)
	}

	got, err := f.users.HasRole(context.Background(), candidate, model.RoleCandidate)
	require.NoError(t, err)
	assert.True(t, got, "first registration survives")
}

func TestAddUser_NotSelf(t *testing.T) {
	f := newFixture(t)
	f.register(t, candidate, model.RoleCandidate)

	err := f.users.AddUser(as(candidate), candidate2, model.RoleCandidate)
	assert.ErrorIs(t, err, apperror.ErrNotSelf)

	registered, err := f.users.IsRegistered(context.Background(), candidate2)
	require.NoError(t, err)
	assert.False(t, registered)
}

func TestAddUser_AdminRegistersOthers(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.users.AddUser(as(admin), recruiter, model.RoleRecruiter))

	got, err := f.users.HasRole(context.Background(), recruiter, model.RoleRecruiter)
	require.NoError(t, err)
	assert.True(t, got)
	assert.Equal(t, []model.EventKind{model.EventUserAdded}, f.published.kinds())
	assert.Equal(t, admin, f.published.events[0].Actor)
}

func TestAddUser_OnlyAdminGrantsAdmin(t *testing.T) {
	f := newFixture(t)

	err := f.users.AddUser(as("0xmallory"), "0xmallory", model.RoleAdmin)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)

	require.NoError(t, f.users.AddUser(as(admin), "0xadmin2", model.RoleAdmin))
}

func TestAddUser_Validation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name      string
		principal string
		role      model.Role
		field     string
	}{
		{"blank principal", "   ", model.RoleCandidate, "principal"},
		{"unknown role", "0xnew", model.Role(42), "role"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.users.AddUser(as(admin), tt.principal, tt.role)
			require.ErrorIs(t, err, apperror.ErrValidation)

			var appErr *apperror.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.field, appErr.Field)
		})
	}
}

func TestAddUser_NoCaller(t *testing.T) {
	f := newFixture(t)

	err := f.users.AddUser(context.Background(), candidate, model.RoleCandidate)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}

// =========================================================================
// DELETE USER
// =========================================================================

func TestDeleteUser_RevokesRole(t *testing.T) {
	f := newFixture(t)
	f.register(t, recruiter, model.RoleRecruiter)

	require.NoError(t, f.users.DeleteUser(as(admin), recruiter))

	got, err := f.users.HasRole(context.Background(), recruiter, model.RoleRecruiter)
	require.NoError(t, err)
	assert.False(t, got)
	registered, err := f.users.IsRegistered(context.Background(), recruiter)
	require.NoError(t, err)
	assert.False(t, registered)

	// the principal may register again, with any role
	f.register(t, recruiter, model.RoleCandidate)
}

func TestDeleteUser_RequiresAdmin(t *testing.T) {
	f := newFixture(t)
	f.register(t, candidate, model.RoleCandidate)

	err := f.users.DeleteUser(as(candidate), candidate)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}

func TestDeleteUser_AbsentIsNotFound(t *testing.T) {
	f := newFixture(t)

	err := f.users.DeleteUser(as(admin), "0xnobody")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.Empty(t, f.published.kinds())
}

// A revoked role takes effect on the next call of a downstream component.
func TestDeleteUser_RevocationIsImmediate(t *testing.T) {
	f := newFixture(t)
	f.register(t, companyAdmin, model.RoleCompanyAdmin)
	_, err := f.companies.AddCompany(as(companyAdmin), "fpt", "", "", "")
	require.NoError(t, err)

	require.NoError(t, f.users.DeleteUser(as(admin), companyAdmin))

	_, err = f.companies.AddCompany(as(companyAdmin), "vng", "", "", "")
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}

// =========================================================================
// BOOTSTRAP & READS
// =========================================================================

func TestBootstrap_Idempotent(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.users.Bootstrap(context.Background(), admin))

	admins, err := f.users.ListByRole(context.Background(), model.RoleAdmin)
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.Equal(t, admin, admins[0].Principal)
	assert.Empty(t, f.published.kinds())
}

func TestBootstrap_RefusesNonAdminPrincipal(t *testing.T) {
	f := newFixture(t)
	f.register(t, candidate, model.RoleCandidate)

	assert.Error(t, f.users.Bootstrap(context.Background(), candidate))
}

func TestListUsers_RegistrationOrder(t *testing.T) {
	f := newFixture(t)
	f.register(t, recruiter, model.RoleRecruiter)
	f.register(t, candidate, model.RoleCandidate)

	users, err := f.users.ListUsers(context.Background())
	require.NoError(t, err)

	var got []string
	for _, u := range users {
		got = append(got, u.Principal)
	}
	assert.Equal(t, []string{admin, recruiter, candidate}, got)
}

func TestListByRole_InvalidRole(t *testing.T) {
	f := newFixture(t)

	_, err := f.users.ListByRole(context.Background(), model.Role(-1))
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestCountByRole(t *testing.T) {
	f := newFixture(t)
	f.register(t, recruiter, model.RoleRecruiter)
	f.register(t, "0xrecruiter2", model.RoleRecruiter)

	n, err := f.users.CountByRole(context.Background(), model.RoleRecruiter)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, f.users.DeleteUser(as(admin), recruiter))

	n, err = f.users.CountByRole(context.Background(), model.RoleRecruiter)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = f.users.CountByRole(context.Background(), model.Role(9))
	assert.ErrorIs(t, err, apperror.ErrValidation)
}
