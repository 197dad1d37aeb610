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

var _ repository.CertificateRepository = (*DB)(nil)

const certificateColumns = `id, name, url, candidate, company_id, status, decided_at, created_at, updated_at`

// CreateCertificate inserts cert and stores the allocated id in cert.ID.
// A url already held by any candidate yields apperror.ErrAlreadyExists.
func (db *DB) CreateCertificate(ctx context.Context, cert *model.Certificate) error {
	now := time.Now().UTC()
	cert.CreatedAt = now
	cert.UpdatedAt = now

	res, err := db.q(ctx).ExecContext(ctx,
		`INSERT INTO certificates (name, url, candidate, company_id, status, decided_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		cert.Name,
		cert.URL,
		cert.Candidate,
		cert.CompanyID,
		int64(cert.Status),
		nullTime(cert.DecidedAt),
		cert.CreatedAt,
		cert.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.AlreadyExists("certificate", cert.URL)
		}
		return fmt.Errorf("sqlite: creating certificate: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading certificate id: %w", err)
	}
	cert.ID = id

	return nil
}

func (db *DB) GetCertificate(ctx context.Context, id int64) (*model.Certificate, error) {
	row := db.q(ctx).QueryRowContext(ctx,
		`SELECT `+certificateColumns+` FROM certificates WHERE id = ?`, id)

	c, err := scanCertificate(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("certificate", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("sqlite: getting certificate %d: %w", id, err)
	}
	return c, nil
}

func (db *DB) GetCertificateByURL(ctx context.Context, url string) (*model.Certificate, error) {
	row := db.q(ctx).QueryRowContext(ctx,
		`SELECT `+certificateColumns+` FROM certificates WHERE url = ?`, url)

	c, err := scanCertificate(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("certificate", url)
		}
		return nil, fmt.Errorf("sqlite: getting certificate by url %s: %w", url, err)
	}
	return c, nil
}

// UpdateCertificate writes every mutable column. candidate is never written
// after the insert.
func (db *DB) UpdateCertificate(ctx context.Context, cert *model.Certificate) error {
	cert.UpdatedAt = time.Now().UTC()

	res, err := db.q(ctx).ExecContext(ctx,
		`UPDATE certificates
		 SET name = ?, url = ?, company_id = ?, status = ?, decided_at = ?, updated_at = ?
		 WHERE id = ?`,
		cert.Name,
		cert.URL,
		cert.CompanyID,
		int64(cert.Status),
		nullTime(cert.DecidedAt),
		cert.UpdatedAt,
		cert.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.AlreadyExists("certificate", cert.URL)
		}
		return fmt.Errorf("sqlite: updating certificate %d: %w", cert.ID, err)
	}
	return requireRow(res, "certificate", strconv.FormatInt(cert.ID, 10))
}

// DeleteCertificate removes the row, which also releases its url.
func (db *DB) DeleteCertificate(ctx context.Context, id int64) error {
	res, err := db.q(ctx).ExecContext(ctx, `DELETE FROM certificates WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting certificate %d: %w", id, err)
	}
	return requireRow(res, "certificate", strconv.FormatInt(id, 10))
}

// ListCertificatesByCandidate returns the candidate's certificates oldest first.
func (db *DB) ListCertificatesByCandidate(ctx context.Context, candidate string) ([]model.Certificate, error) {
	rows, err := db.q(ctx).QueryContext(ctx,
		`SELECT `+certificateColumns+` FROM certificates WHERE candidate = ? ORDER BY id`, candidate)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing certificates of %s: %w", candidate, err)
	}
	defer rows.Close()

	certs := make([]model.Certificate, 0)
	for rows.Next() {
		c, err := scanCertificate(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning certificate row: %w", err)
		}
		certs = append(certs, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating certificate rows: %w", err)
	}
	return certs, nil
}

func scanCertificate(s scanner) (*model.Certificate, error) {
	var (
		c         model.Certificate
		decidedAt sql.NullTime
	)
	err := s.Scan(
		&c.ID,
		&c.Name,
		&c.URL,
		&c.Candidate,
		&c.CompanyID,
		&c.Status,
		&decidedAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if decidedAt.Valid {
		c.DecidedAt = decidedAt.Time
	}
	return &c, nil
}

// nullTime stores the zero time as NULL.
func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
