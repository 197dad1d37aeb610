// Package repository declares the storage contracts the services depend on.
//
// Every method takes the request context. When a transaction started by
// Transactor.WithinTx is carried in that context, implementations must run
// inside it, so a service can read, check and write as one atomic step.
package repository

import (
	"context"

	"github.com/sakif/resumiro/internal/model"
)

// Transactor runs fn inside a single serialized transaction. Calls made with
// a context that already carries a transaction join it instead of opening a
// new one. If fn returns an error nothing it wrote is kept.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// UserRepository stores identity registry entries.
type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	// GetUser returns apperror.ErrNotFound when the principal is unknown.
	GetUser(ctx context.Context, principal string) (*model.User, error)
	DeleteUser(ctx context.Context, principal string) error
	ListUsers(ctx context.Context) ([]model.User, error)
	ListUsersByRole(ctx context.Context, role model.Role) ([]model.User, error)
	CountUsersByRole(ctx context.Context, role model.Role) (int, error)
}

// CompanyRepository stores companies and their recruiter memberships.
type CompanyRepository interface {
	// CreateCompany allocates the next id and stores it in company.ID.
	CreateCompany(ctx context.Context, company *model.Company) error
	GetCompany(ctx context.Context, id int64) (*model.Company, error)
	UpdateCompany(ctx context.Context, company *model.Company) error
	// DeleteCompany removes the company together with its memberships.
	DeleteCompany(ctx context.Context, id int64) error
	ListCompanies(ctx context.Context) ([]model.Company, error)

	// AddMembership reports whether a new edge was created.
	AddMembership(ctx context.Context, companyID int64, recruiter string) (bool, error)
	// RemoveMembership reports whether an edge existed.
	RemoveMembership(ctx context.Context, companyID int64, recruiter string) (bool, error)
	ListCompaniesForRecruiter(ctx context.Context, recruiter string) ([]model.Company, error)
	ListRecruitersForCompany(ctx context.Context, companyID int64) ([]string, error)
}

// CertificateRepository stores certificates.
type CertificateRepository interface {
	// CreateCertificate returns apperror.ErrAlreadyExists when the url is taken.
	CreateCertificate(ctx context.Context, cert *model.Certificate) error
	GetCertificate(ctx context.Context, id int64) (*model.Certificate, error)
	GetCertificateByURL(ctx context.Context, url string) (*model.Certificate, error)
	UpdateCertificate(ctx context.Context, cert *model.Certificate) error
	DeleteCertificate(ctx context.Context, id int64) error
	ListCertificatesByCandidate(ctx context.Context, candidate string) ([]model.Certificate, error)
}

// EventRepository is the append-only audit log.
type EventRepository interface {
	// AppendEvent assigns ID (when empty) and Seq.
	AppendEvent(ctx context.Context, event *model.Event) error
	// ListEvents returns up to limit events with Seq > afterSeq, oldest first.
	ListEvents(ctx context.Context, afterSeq int64, limit int) ([]model.Event, error)
}
