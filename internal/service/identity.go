package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/resumiro/internal/apperror"
	"github.com/sakif/resumiro/internal/model"
	"github.com/sakif/resumiro/internal/repository"
)

// RoleChecker is the identity registry as downstream components see it.
// They ask it on every call instead of caching roles, so a deleted user loses
// its rights on the very next call.
type RoleChecker interface {
	// RoleOf returns ok=false for an unregistered principal.
	RoleOf(ctx context.Context, principal string) (role model.Role, ok bool, err error)
}

// IdentityRegistry owns the principal → role mapping.
type IdentityRegistry struct {
	users   repository.UserRepository
	journal *Journal
	logger  *slog.Logger
}

var _ RoleChecker = (*IdentityRegistry)(nil)

func NewIdentityRegistry(users repository.UserRepository, journal *Journal, logger *slog.Logger) *IdentityRegistry {
	return &IdentityRegistry{users: users, journal: journal, logger: logger}
}

// AddUser registers principal with role.
//
// Principals register themselves. A platform admin may register anyone, and
// only a platform admin may register another admin. The registry row carries
// the role, so existence and role are written by one statement and can never
// disagree.
func (r *IdentityRegistry) AddUser(ctx context.Context, principal string, role model.Role) error {
	principal = strings.TrimSpace(principal)

	return r.journal.Do(ctx, "user.add", func(ctx context.Context, caller string, rec *Recorder) error {
		if caller == "" {
			return apperror.Unauthorized("", model.RoleAdmin.String())
		}

		callerIsAdmin, err := r.hasRole(ctx, caller, model.RoleAdmin)
		if err != nil {
			return err
		}
		if caller != principal && !callerIsAdmin {
			return apperror.NotSelf(caller, principal)
		}
		if role == model.RoleAdmin && !callerIsAdmin {
			return apperror.Unauthorized(caller, model.RoleAdmin.String())
		}

		if err := check(userInput{Principal: principal}); err != nil {
			return err
		}
		if !role.Valid() {
			return apperror.ValidationFailed("role", fmt.Sprintf("unknown role %d", int(role)))
		}

		if err := r.users.CreateUser(ctx, &model.User{Principal: principal, Role: role}); err != nil {
			return err
		}

		rec.Record(model.EventUserAdded, "user", principal, role.String())
		r.logger.Info("user registered",
			slog.String("principal", principal),
			slog.String("role", role.String()),
			slog.String("by", caller),
		)
		return nil
	})
}

// DeleteUser removes principal and with it every role it held. Only a
// platform admin may do it.
func (r *IdentityRegistry) DeleteUser(ctx context.Context, principal string) error {
	principal = strings.TrimSpace(principal)

	return r.journal.Do(ctx, "user.delete", func(ctx context.Context, caller string, rec *Recorder) error {
		if err := r.requireRole(ctx, caller, model.RoleAdmin); err != nil {
			return err
		}

		if err := r.users.DeleteUser(ctx, principal); err != nil {
			return err
		}

		rec.Record(model.EventUserDeleted, "user", principal, "")
		r.logger.Info("user deleted",
			slog.String("principal", principal),
			slog.String("by", caller),
		)
		return nil
	})
}

// Bootstrap registers principal as platform admin unless it already is one.
// It runs at startup on behalf of the configured admin and bypasses the
// caller checks, the way a freshly deployed registry grants its deployer the
// admin role.
func (r *IdentityRegistry) Bootstrap(ctx context.Context, principal string) error {
	principal = strings.TrimSpace(principal)
	if err := check(userInput{Principal: principal}); err != nil {
		return err
	}

	return r.journal.Do(ctx, "user.bootstrap", func(ctx context.Context, _ string, rec *Recorder) error {
		role, ok, err := r.RoleOf(ctx, principal)
		if err != nil {
			return err
		}
		if ok {
			if role != model.RoleAdmin {
				return fmt.Errorf("service: bootstrap admin %s is already registered as %s", principal, role)
			}
			return nil
		}

		if err := r.users.CreateUser(ctx, &model.User{Principal: principal, Role: model.RoleAdmin}); err != nil {
			return err
		}

		rec.actor = principal
		rec.Record(model.EventUserAdded, "user", principal, model.RoleAdmin.String())
		r.logger.Info("platform admin bootstrapped", slog.String("principal", principal))
		return nil
	})
}

// RoleOf implements RoleChecker.
func (r *IdentityRegistry) RoleOf(ctx context.Context, principal string) (model.Role, bool, error) {
	if principal == "" {
		return 0, false, nil
	}
	u, err := r.users.GetUser(ctx, principal)
	if errors.Is(err, apperror.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return u.Role, true, nil
}

// HasRole reports whether principal is registered with exactly role.
func (r *IdentityRegistry) HasRole(ctx context.Context, principal string, role model.Role) (bool, error) {
	return r.hasRole(ctx, principal, role)
}

func (r *IdentityRegistry) IsRegistered(ctx context.Context, principal string) (bool, error) {
	_, ok, err := r.RoleOf(ctx, principal)
	return ok, err
}

// ListByRole returns the principals holding role, in registration order.
func (r *IdentityRegistry) ListByRole(ctx context.Context, role model.Role) ([]model.User, error) {
	if !role.Valid() {
		return nil, apperror.ValidationFailed("role", fmt.Sprintf("unknown role %d", int(role)))
	}
	return r.users.ListUsersByRole(ctx, role)
}

// CountByRole reports how many principals hold role.
func (r *IdentityRegistry) CountByRole(ctx context.Context, role model.Role) (int, error) {
	if !role.Valid() {
		return 0, apperror.ValidationFailed("role", fmt.Sprintf("unknown role %d", int(role)))
	}
	return r.users.CountUsersByRole(ctx, role)
}

// ListUsers returns every registered principal in registration order.
func (r *IdentityRegistry) ListUsers(ctx context.Context) ([]model.User, error) {
	return r.users.ListUsers(ctx)
}

func (r *IdentityRegistry) hasRole(ctx context.Context, principal string, role model.Role) (bool, error) {
	return hasRole(ctx, r, principal, role)
}

func (r *IdentityRegistry) requireRole(ctx context.Context, principal string, role model.Role) error {
	return requireRole(ctx, r, principal, role)
}

// ROLE HELPERS
// Shared by every component that holds a RoleChecker.

func hasRole(ctx context.Context, roles RoleChecker, principal string, role model.Role) (bool, error) {
	got, ok, err := roles.RoleOf(ctx, principal)
	if err != nil {
		return false, fmt.Errorf("service: reading role of %s: %w", principal, err)
	}
	return ok && got == role, nil
}

func requireRole(ctx context.Context, roles RoleChecker, principal string, role model.Role) error {
	ok, err := hasRole(ctx, roles, principal, role)
	if err != nil {
		return err
	}
	if !ok {
		return apperror.Unauthorized(principal, role.String())
	}
	return nil
}
