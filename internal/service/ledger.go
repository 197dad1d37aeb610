package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/resumiro/internal/apperror"
	"github.com/sakif/resumiro/internal/model"
	"github.com/sakif/resumiro/internal/repository"
)

// CertificateLedger owns candidate certificates and their verification state.
//
// STATE MACHINE:
//
//	Pending ──verify──▶ Verified
//	   └────reject───▶ Rejected
//
// Verified and Rejected are terminal. Content edits are allowed only while
// Pending.
//
// WHO DECIDES:
// The ledger never stores a verifier. The principal allowed to decide is
// whoever currently created the certificate's company, asked of the
// CompanyAuthority at decision time.
type CertificateLedger struct {
	certs     repository.CertificateRepository
	roles     RoleChecker
	companies CompanyAuthority
	journal   *Journal
	now       func() time.Time
	logger    *slog.Logger
}

func NewCertificateLedger(
	certs repository.CertificateRepository,
	roles RoleChecker,
	companies CompanyAuthority,
	journal *Journal,
	logger *slog.Logger,
) *CertificateLedger {
	return &CertificateLedger{
		certs:     certs,
		roles:     roles,
		companies: companies,
		journal:   journal,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logger,
	}
}

// AddCertificate records a Pending certificate for the calling candidate.
// verifyingAdmin must be the creator of companyID. The url must not be held
// by any other certificate on the platform.
func (l *CertificateLedger) AddCertificate(ctx context.Context, name, url, candidate, verifyingAdmin string, companyID int64) (int64, error) {
	in := certificateInput{
		Name:           strings.TrimSpace(name),
		URL:            strings.TrimSpace(url),
		VerifyingAdmin: strings.TrimSpace(verifyingAdmin),
	}
	candidate = strings.TrimSpace(candidate)

	var id int64
	err := l.journal.Do(ctx, "certificate.add", func(ctx context.Context, caller string, rec *Recorder) error {
		if err := requireRole(ctx, l.roles, caller, model.RoleCandidate); err != nil {
			return err
		}
		if candidate != caller {
			return apperror.NotSelf(caller, candidate)
		}
		if err := check(in); err != nil {
			return err
		}
		if err := l.requireCreator(ctx, companyID, in.VerifyingAdmin); err != nil {
			return err
		}

		cert := &model.Certificate{
			Name:      in.Name,
			URL:       in.URL,
			Candidate: candidate,
			CompanyID: companyID,
			Status:    model.StatusPending,
		}
		if err := l.certs.CreateCertificate(ctx, cert); err != nil {
			return err
		}

		id = cert.ID
		rec.Record(model.EventCertificateAdded, "certificate", formatID(id), cert.URL)
		l.logger.Info("certificate added",
			slog.Int64("certificateID", id),
			slog.String("candidate", candidate),
			slog.Int64("companyID", companyID),
		)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// UpdateCertificate edits a Pending certificate owned by the caller. Empty
// name or url keep the stored value; companyID always replaces it, and
// verifyingAdmin must be the creator of the new company. Status is never
// touched.
func (l *CertificateLedger) UpdateCertificate(ctx context.Context, id int64, name, url, verifyingAdmin string, companyID int64) error {
	patch := certificatePatch{
		Name:           strings.TrimSpace(name),
		URL:            strings.TrimSpace(url),
		VerifyingAdmin: strings.TrimSpace(verifyingAdmin),
	}

	return l.journal.Do(ctx, "certificate.update", func(ctx context.Context, caller string, rec *Recorder) error {
		cert, err := l.ownedCertificate(ctx, id, caller)
		if err != nil {
			return err
		}
		if err := check(patch); err != nil {
			return err
		}
		if err := l.requireCreator(ctx, companyID, patch.VerifyingAdmin); err != nil {
			return err
		}
		if cert.Status != model.StatusPending {
			return apperror.NotPending(id, cert.Status.String())
		}

		cert.Name = keep(cert.Name, patch.Name)
		cert.URL = keep(cert.URL, patch.URL)
		cert.CompanyID = companyID

		// A url taken by another certificate surfaces here as ErrAlreadyExists.
		if err := l.certs.UpdateCertificate(ctx, cert); err != nil {
			return err
		}

		rec.Record(model.EventCertificateUpdated, "certificate", formatID(id), "")
		l.logger.Info("certificate updated", slog.Int64("certificateID", id), slog.String("by", caller))
		return nil
	})
}

// ChangeCertificateStatus decides a Pending certificate. status must be
// Verified or Rejected. A zero decidedAt means now.
func (l *CertificateLedger) ChangeCertificateStatus(ctx context.Context, id int64, status model.CertificateStatus, decidedAt time.Time) error {
	return l.journal.Do(ctx, "certificate.decide", func(ctx context.Context, caller string, rec *Recorder) error {
		if !status.Terminal() {
			return apperror.ValidationFailed("status",
				fmt.Sprintf("status must be verified or rejected, got %s", status))
		}
		if err := requireRole(ctx, l.roles, caller, model.RoleCompanyAdmin); err != nil {
			return err
		}

		cert, err := l.certs.GetCertificate(ctx, id)
		if err != nil {
			return err
		}

		isVerifier, err := l.companies.IsCreator(ctx, cert.CompanyID, caller)
		if err != nil {
			return err
		}
		if !isVerifier {
			return apperror.NotVerifier(id, caller)
		}
		if cert.Status != model.StatusPending {
			return apperror.NotPending(id, cert.Status.String())
		}

		if decidedAt.IsZero() {
			decidedAt = l.now()
		}
		cert.Status = status
		cert.DecidedAt = decidedAt.UTC()

		if err := l.certs.UpdateCertificate(ctx, cert); err != nil {
			return err
		}

		rec.Record(model.EventCertificateStatusChange, "certificate", formatID(id), status.String())
		l.logger.Info("certificate decided",
			slog.Int64("certificateID", id),
			slog.String("status", status.String()),
			slog.String("by", caller),
		)
		return nil
	})
}

// DeleteCertificate removes a certificate owned by the caller, whatever its
// status, and frees its url.
func (l *CertificateLedger) DeleteCertificate(ctx context.Context, id int64) error {
	return l.journal.Do(ctx, "certificate.delete", func(ctx context.Context, caller string, rec *Recorder) error {
		if _, err := l.ownedCertificate(ctx, id, caller); err != nil {
			return err
		}

		if err := l.certs.DeleteCertificate(ctx, id); err != nil {
			return err
		}

		rec.Record(model.EventCertificateDeleted, "certificate", formatID(id), "")
		l.logger.Info("certificate deleted", slog.Int64("certificateID", id), slog.String("by", caller))
		return nil
	})
}

// GetCertificate returns the zero Certificate for an unknown url.
func (l *CertificateLedger) GetCertificate(ctx context.Context, url string) (model.Certificate, error) {
	return sentinel(l.certs.GetCertificateByURL(ctx, strings.TrimSpace(url)))
}

// GetCertificateByID returns the zero Certificate for an unknown id.
func (l *CertificateLedger) GetCertificateByID(ctx context.Context, id int64) (model.Certificate, error) {
	return sentinel(l.certs.GetCertificate(ctx, id))
}

// GetCertificatesForCandidate lists the candidate's certificates in the
// order they were added.
func (l *CertificateLedger) GetCertificatesForCandidate(ctx context.Context, candidate string) ([]model.Certificate, error) {
	return l.certs.ListCertificatesByCandidate(ctx, strings.TrimSpace(candidate))
}

// ownedCertificate checks, in order: the caller is a candidate, the
// certificate exists, the caller owns it.
func (l *CertificateLedger) ownedCertificate(ctx context.Context, id int64, caller string) (*model.Certificate, error) {
	if err := requireRole(ctx, l.roles, caller, model.RoleCandidate); err != nil {
		return nil, err
	}

	cert, err := l.certs.GetCertificate(ctx, id)
	if err != nil {
		return nil, err
	}
	if cert.Candidate != caller {
		return nil, apperror.NotOwned("certificate", formatID(id), caller)
	}
	return cert, nil
}

func (l *CertificateLedger) requireCreator(ctx context.Context, companyID int64, principal string) error {
	ok, err := l.companies.IsCreator(ctx, companyID, principal)
	if err != nil {
		return err
	}
	if !ok {
		return apperror.NotCreator(companyID, principal)
	}
	return nil
}

func sentinel(cert *model.Certificate, err error) (model.Certificate, error) {
	if errors.Is(err, apperror.ErrNotFound) {
		return model.Certificate{}, nil
	}
	if err != nil {
		return model.Certificate{}, err
	}
	return *cert, nil
}
