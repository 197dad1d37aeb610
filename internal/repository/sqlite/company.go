package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sakif/resumiro/internal/apperror"
	"github.com/sakif/resumiro/internal/model"
	"github.com/sakif/resumiro/internal/repository"
)

var _ repository.CompanyRepository = (*DB)(nil)

const companyColumns = `id, name, website, location, extra, creator, created_at, updated_at`

// CreateCompany inserts company and stores the allocated id in company.ID.
func (db *DB) CreateCompany(ctx context.Context, company *model.Company) error {
	now := time.Now().UTC()
	company.CreatedAt = now
	company.UpdatedAt = now

	res, err := db.q(ctx).ExecContext(ctx,
		`INSERT INTO companies (name, website, location, extra, creator, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		company.Name,
		company.Website,
		company.Location,
		company.Extra,
		company.Creator,
		company.CreatedAt,
		company.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating company: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading company id: %w", err)
	}
	company.ID = id

	return nil
}

// GetCompany returns apperror.ErrNotFound for unallocated or deleted ids.
func (db *DB) GetCompany(ctx context.Context, id int64) (*model.Company, error) {
	row := db.q(ctx).QueryRowContext(ctx,
		`SELECT `+companyColumns+` FROM companies WHERE id = ?`, id)

	c, err := scanCompany(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("company", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("sqlite: getting company %d: %w", id, err)
	}
	return c, nil
}

// UpdateCompany overwrites the mutable fields. The creator column is never
// written after the insert.
func (db *DB) UpdateCompany(ctx context.Context, company *model.Company) error {
	company.UpdatedAt = time.Now().UTC()

	res, err := db.q(ctx).ExecContext(ctx,
		`UPDATE companies SET name = ?, website = ?, location = ?, extra = ?, updated_at = ?
		 WHERE id = ?`,
		company.Name,
		company.Website,
		company.Location,
		company.Extra,
		company.UpdatedAt,
		company.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating company %d: %w", company.ID, err)
	}
	return requireRow(res, "company", strconv.FormatInt(company.ID, 10))
}

// DeleteCompany removes the company and its membership edges. The explicit
// edge delete does not rely on the foreign_keys pragma being enabled.
func (db *DB) DeleteCompany(ctx context.Context, id int64) error {
	return db.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := db.q(ctx).ExecContext(ctx,
			`DELETE FROM memberships WHERE company_id = ?`, id); err != nil {
			return fmt.Errorf("sqlite: deleting memberships of company %d: %w", id, err)
		}

		res, err := db.q(ctx).ExecContext(ctx, `DELETE FROM companies WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("sqlite: deleting company %d: %w", id, err)
		}
		return requireRow(res, "company", strconv.FormatInt(id, 10))
	})
}

// ListCompanies returns live companies ordered by id.
func (db *DB) ListCompanies(ctx context.Context) ([]model.Company, error) {
	return db.queryCompanies(ctx, `SELECT `+companyColumns+` FROM companies ORDER BY id`)
}

func (db *DB) AddMembership(ctx context.Context, companyID int64, recruiter string) (bool, error) {
	res, err := db.q(ctx).ExecContext(ctx,
		`INSERT OR IGNORE INTO memberships (company_id, recruiter, created_at) VALUES (?, ?, ?)`,
		companyID, recruiter, time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: connecting %s to company %d: %w", recruiter, companyID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: checking membership insert: %w", err)
	}
	return n > 0, nil
}

func (db *DB) RemoveMembership(ctx context.Context, companyID int64, recruiter string) (bool, error) {
	res, err := db.q(ctx).ExecContext(ctx,
		`DELETE FROM memberships WHERE company_id = ? AND recruiter = ?`,
		companyID, recruiter,
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: disconnecting %s from company %d: %w", recruiter, companyID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: checking membership delete: %w", err)
	}
	return n > 0, nil
}

func (db *DB) ListCompaniesForRecruiter(ctx context.Context, recruiter string) ([]model.Company, error) {
	return db.queryCompanies(ctx,
		`SELECT c.id, c.name, c.website, c.location, c.extra, c.creator, c.created_at, c.updated_at
		 FROM companies c
		 JOIN memberships m ON m.company_id = c.id
		 WHERE m.recruiter = ?
		 ORDER BY c.id`,
		recruiter,
	)
}

// ListRecruitersForCompany returns recruiters in the order they were connected.
func (db *DB) ListRecruitersForCompany(ctx context.Context, companyID int64) ([]string, error) {
	rows, err := db.q(ctx).QueryContext(ctx,
		`SELECT recruiter FROM memberships WHERE company_id = ? ORDER BY rowid`, companyID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing recruiters of company %d: %w", companyID, err)
	}
	defer rows.Close()

	recruiters := make([]string, 0)
	for rows.Next() {
		var r string
		if err := rows.Scan(&r); err != nil {
			return nil, fmt.Errorf("sqlite: scanning recruiter row: %w", err)
		}
		recruiters = append(recruiters, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating recruiter rows: %w", err)
	}
	return recruiters, nil
}

func (db *DB) queryCompanies(ctx context.Context, query string, args ...any) ([]model.Company, error) {
	rows, err := db.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing companies: %w", err)
	}
	defer rows.Close()

	companies := make([]model.Company, 0)
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning company row: %w", err)
		}
		companies = append(companies, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating company rows: %w", err)
	}
	return companies, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanCompany(s scanner) (*model.Company, error) {
	var c model.Company
	err := s.Scan(
		&c.ID,
		&c.Name,
		&c.Website,
		&c.Location,
		&c.Extra,
		&c.Creator,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func requireRow(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking affected rows for %s %s: %w", resource, id, err)
	}
	if n == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}
