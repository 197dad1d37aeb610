// Package facade is the single call surface over the identity registry, the
// company directory and the certificate ledger.
//
// It owns no state. Every method forwards to the component that owns the
// data and returns that component's error unchanged, so callers can match
// kinds with errors.Is exactly as if they had called the component.
package facade

import (
	"context"
	"log/slog"
	"time"

	"github.com/sakif/resumiro/internal/metrics"
	"github.com/sakif/resumiro/internal/model"
	"github.com/sakif/resumiro/internal/repository"
	"github.com/sakif/resumiro/internal/service"
)

type Facade struct {
	users     *service.IdentityRegistry
	companies *service.CompanyDirectory
	certs     *service.CertificateLedger
	journal   *service.Journal
}

func New(
	users *service.IdentityRegistry,
	companies *service.CompanyDirectory,
	certs *service.CertificateLedger,
	journal *service.Journal,
) *Facade {
	return &Facade{users: users, companies: companies, certs: certs, journal: journal}
}

// Store is everything the components persist. *sqlite.DB implements it.
type Store interface {
	repository.Transactor
	repository.UserRepository
	repository.CompanyRepository
	repository.CertificateRepository
	repository.EventRepository
}

// Wire builds the three components over store and returns the facade. The
// registry is handed to the directory and the ledger as their RoleChecker,
// the directory to the ledger as its CompanyAuthority. publisher and m may
// be nil.
func Wire(store Store, publisher service.Publisher, m *metrics.Metrics, logger *slog.Logger) *Facade {
	journal := service.NewJournal(store, store, publisher, m, logger)
	users := service.NewIdentityRegistry(store, journal, logger.With(slog.String("component", "identity")))
	companies := service.NewCompanyDirectory(store, users, journal, logger.With(slog.String("component", "directory")))
	certs := service.NewCertificateLedger(store, users, companies, journal, logger.With(slog.String("component", "ledger")))
	return New(users, companies, certs, journal)
}

// Bootstrap registers the platform admin if absent.
func (f *Facade) Bootstrap(ctx context.Context, admin string) error {
	return f.users.Bootstrap(ctx, admin)
}

// CertificateView is a certificate with its verifying company's name.
type CertificateView struct {
	model.Certificate
	// CompanyName is empty when the company has been deleted.
	CompanyName string `json:"companyName"`
}

// ---- identity registry ----

func (f *Facade) AddUser(ctx context.Context, principal string, role model.Role) error {
	return f.users.AddUser(ctx, principal, role)
}

func (f *Facade) DeleteUser(ctx context.Context, principal string) error {
	return f.users.DeleteUser(ctx, principal)
}

func (f *Facade) HasRole(ctx context.Context, principal string, role model.Role) (bool, error) {
	return f.users.HasRole(ctx, principal, role)
}

func (f *Facade) IsRegistered(ctx context.Context, principal string) (bool, error) {
	return f.users.IsRegistered(ctx, principal)
}

func (f *Facade) ListByRole(ctx context.Context, role model.Role) ([]model.User, error) {
	return f.users.ListByRole(ctx, role)
}

func (f *Facade) CountByRole(ctx context.Context, role model.Role) (int, error) {
	return f.users.CountByRole(ctx, role)
}

func (f *Facade) ListUsers(ctx context.Context) ([]model.User, error) {
	return f.users.ListUsers(ctx)
}

// ---- company directory ----

func (f *Facade) AddCompany(ctx context.Context, name, website, location, extra string) (int64, error) {
	return f.companies.AddCompany(ctx, name, website, location, extra)
}

func (f *Facade) UpdateCompany(ctx context.Context, id int64, name, website, location, extra string) error {
	return f.companies.UpdateCompany(ctx, id, name, website, location, extra)
}

func (f *Facade) DeleteCompany(ctx context.Context, id int64) error {
	return f.companies.DeleteCompany(ctx, id)
}

func (f *Facade) ConnectRecruiter(ctx context.Context, recruiter string, companyID int64) error {
	return f.companies.ConnectRecruiter(ctx, recruiter, companyID)
}

func (f *Facade) DisconnectRecruiter(ctx context.Context, recruiter string, companyID int64) error {
	return f.companies.DisconnectRecruiter(ctx, recruiter, companyID)
}

func (f *Facade) GetAllCompanies(ctx context.Context) ([]model.Company, error) {
	return f.companies.GetAllCompanies(ctx)
}

func (f *Facade) GetCompany(ctx context.Context, id int64) (model.Company, error) {
	return f.companies.GetCompany(ctx, id)
}

func (f *Facade) IsCreator(ctx context.Context, companyID int64, principal string) (bool, error) {
	return f.companies.IsCreator(ctx, companyID, principal)
}

// GetCompaniesConnectedToRecruiter lists the companies recruiter works for.
func (f *Facade) GetCompaniesConnectedToRecruiter(ctx context.Context, recruiter string) ([]model.Company, error) {
	return f.companies.GetCompaniesForRecruiter(ctx, recruiter)
}

// GetUsersConnectedToCompany resolves the company's recruiters to their
// registry entries. A recruiter deleted from the registry is skipped.
func (f *Facade) GetUsersConnectedToCompany(ctx context.Context, companyID int64) ([]model.User, error) {
	principals, err := f.companies.GetRecruitersForCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}

	users := make([]model.User, 0, len(principals))
	for _, p := range principals {
		role, ok, err := f.users.RoleOf(ctx, p)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		users = append(users, model.User{Principal: p, Role: role})
	}
	return users, nil
}

// ---- certificate ledger ----

func (f *Facade) AddCertificate(ctx context.Context, name, url, candidate, verifyingAdmin string, companyID int64) (int64, error) {
	return f.certs.AddCertificate(ctx, name, url, candidate, verifyingAdmin, companyID)
}

func (f *Facade) UpdateCertificate(ctx context.Context, id int64, name, url, verifyingAdmin string, companyID int64) error {
	return f.certs.UpdateCertificate(ctx, id, name, url, verifyingAdmin, companyID)
}

func (f *Facade) ChangeCertificateStatus(ctx context.Context, id int64, status model.CertificateStatus, decidedAt time.Time) error {
	return f.certs.ChangeCertificateStatus(ctx, id, status, decidedAt)
}

func (f *Facade) DeleteCertificate(ctx context.Context, id int64) error {
	return f.certs.DeleteCertificate(ctx, id)
}

func (f *Facade) GetCertificate(ctx context.Context, url string) (model.Certificate, error) {
	return f.certs.GetCertificate(ctx, url)
}

func (f *Facade) GetCertificateByID(ctx context.Context, id int64) (model.Certificate, error) {
	return f.certs.GetCertificateByID(ctx, id)
}

func (f *Facade) GetCertificatesForCandidate(ctx context.Context, candidate string) ([]model.Certificate, error) {
	return f.certs.GetCertificatesForCandidate(ctx, candidate)
}

// GetCandidateCertificateViews joins the candidate's certificates with the
// names of their verifying companies. Each company is looked up once.
func (f *Facade) GetCandidateCertificateViews(ctx context.Context, candidate string) ([]CertificateView, error) {
	certs, err := f.certs.GetCertificatesForCandidate(ctx, candidate)
	if err != nil {
		return nil, err
	}

	names := make(map[int64]string)
	views := make([]CertificateView, 0, len(certs))
	for _, c := range certs {
		name, seen := names[c.CompanyID]
		if !seen {
			company, err := f.companies.GetCompany(ctx, c.CompanyID)
			if err != nil {
				return nil, err
			}
			name = company.Name
			names[c.CompanyID] = name
		}
		views = append(views, CertificateView{Certificate: c, CompanyName: name})
	}
	return views, nil
}

// ---- audit ----

// Events returns up to limit audit events with sequence numbers after
// afterSeq, oldest first.
func (f *Facade) Events(ctx context.Context, afterSeq int64, limit int) ([]model.Event, error) {
	return f.journal.Events(ctx, afterSeq, limit)
}
