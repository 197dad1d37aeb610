package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/resumiro/internal/apperror"
	"github.com/sakif/resumiro/internal/model"
	"github.com/sakif/resumiro/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

// CreateUser inserts a registry entry. The role is part of the same row, so
// existence and role can never disagree.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := db.q(ctx).ExecContext(ctx,
		`INSERT INTO users (principal, role, created_at) VALUES (?, ?, ?)`,
		user.Principal,
		int64(user.Role),
		user.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.AlreadyExists("user", user.Principal)
		}
		return fmt.Errorf("sqlite: inserting user %s: %w", user.Principal, err)
	}
	return nil
}

// GetUser returns apperror.ErrNotFound if the principal is not registered.
func (db *DB) GetUser(ctx context.Context, principal string) (*model.User, error) {
	var u model.User

	err := db.q(ctx).QueryRowContext(ctx,
		`SELECT principal, role, created_at FROM users WHERE principal = ?`,
		principal,
	).Scan(&u.Principal, &u.Role, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", principal)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", principal, err)
	}

	return &u, nil
}

func (db *DB) DeleteUser(ctx context.Context, principal string) error {
	res, err := db.q(ctx).ExecContext(ctx, `DELETE FROM users WHERE principal = ?`, principal)
	if err != nil {
		return fmt.Errorf("sqlite: deleting user %s: %w", principal, err)
	}

	return requireRow(res, "user", principal)
}

// ListUsers returns every registered principal in registration order.
func (db *DB) ListUsers(ctx context.Context) ([]model.User, error) {
	return db.queryUsers(ctx,
		`SELECT principal, role, created_at FROM users ORDER BY rowid`)
}

func (db *DB) ListUsersByRole(ctx context.Context, role model.Role) ([]model.User, error) {
	return db.queryUsers(ctx,
		`SELECT principal, role, created_at FROM users WHERE role = ? ORDER BY rowid`,
		int64(role))
}

func (db *DB) CountUsersByRole(ctx context.Context, role model.Role) (int, error) {
	var n int
	err := db.q(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE role = ?`, int64(role),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting users with role %s: %w", role, err)
	}
	return n, nil
}

func (db *DB) queryUsers(ctx context.Context, query string, args ...any) ([]model.User, error) {
	rows, err := db.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing users: %w", err)
	}
	defer rows.Close()

	users := make([]model.User, 0)
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.Principal, &u.Role, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning user row: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating user rows: %w", err)
	}

	return users, nil
}
