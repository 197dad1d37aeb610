package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/sakif/resumiro/internal/apperror"
	"github.com/sakif/resumiro/internal/model"
	"github.com/sakif/resumiro/internal/repository"
)

// CompanyAuthority answers whether a principal currently controls a company.
// The certificate ledger holds one and asks it on every call.
type CompanyAuthority interface {
	IsCreator(ctx context.Context, companyID int64, principal string) (bool, error)
}

// CompanyDirectory owns companies and their recruiter memberships.
//
// A company is created by a company admin, who becomes its immutable
// creator. Only the creator (or a platform admin) may edit it, delete it, or
// change who recruits for it.
type CompanyDirectory struct {
	companies repository.CompanyRepository
	roles     RoleChecker
	journal   *Journal
	logger    *slog.Logger
}

var _ CompanyAuthority = (*CompanyDirectory)(nil)

func NewCompanyDirectory(
	companies repository.CompanyRepository,
	roles RoleChecker,
	journal *Journal,
	logger *slog.Logger,
) *CompanyDirectory {
	return &CompanyDirectory{
		companies: companies,
		roles:     roles,
		journal:   journal,
		logger:    logger,
	}
}

// AddCompany creates a company owned by the caller and returns its id.
func (d *CompanyDirectory) AddCompany(ctx context.Context, name, website, location, extra string) (int64, error) {
	in := companyInput{
		Name:     strings.TrimSpace(name),
		Website:  strings.TrimSpace(website),
		Location: strings.TrimSpace(location),
		Extra:    strings.TrimSpace(extra),
	}

	var id int64
	err := d.journal.Do(ctx, "company.add", func(ctx context.Context, caller string, rec *Recorder) error {
		if err := requireRole(ctx, d.roles, caller, model.RoleCompanyAdmin); err != nil {
			return err
		}
		if err := check(in); err != nil {
			return err
		}

		c := &model.Company{
			Name:     in.Name,
			Website:  in.Website,
			Location: in.Location,
			Extra:    in.Extra,
			Creator:  caller,
		}
		if err := d.companies.CreateCompany(ctx, c); err != nil {
			return err
		}

		id = c.ID
		rec.Record(model.EventCompanyAdded, "company", formatID(id), c.Name)
		d.logger.Info("company created",
			slog.Int64("companyID", id),
			slog.String("creator", caller),
		)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// UpdateCompany patches the company: an empty argument keeps the stored
// value, a non-empty one replaces it. The creator never changes.
func (d *CompanyDirectory) UpdateCompany(ctx context.Context, id int64, name, website, location, extra string) error {
	patch := companyPatch{
		Name:     strings.TrimSpace(name),
		Website:  strings.TrimSpace(website),
		Location: strings.TrimSpace(location),
		Extra:    strings.TrimSpace(extra),
	}

	return d.journal.Do(ctx, "company.update", func(ctx context.Context, caller string, rec *Recorder) error {
		c, err := d.authorizeCreator(ctx, id, caller)
		if err != nil {
			return err
		}
		if err := check(patch); err != nil {
			return err
		}

		c.Name = keep(c.Name, patch.Name)
		c.Website = keep(c.Website, patch.Website)
		c.Location = keep(c.Location, patch.Location)
		c.Extra = keep(c.Extra, patch.Extra)

		if err := d.companies.UpdateCompany(ctx, c); err != nil {
			return err
		}

		rec.Record(model.EventCompanyUpdated, "company", formatID(id), "")
		d.logger.Info("company updated", slog.Int64("companyID", id), slog.String("by", caller))
		return nil
	})
}

// DeleteCompany removes the company and all of its membership edges.
// Certificates naming it as verifier stay behind; with no creator left to
// pass the verifier check they can no longer be decided.
func (d *CompanyDirectory) DeleteCompany(ctx context.Context, id int64) error {
	return d.journal.Do(ctx, "company.delete", func(ctx context.Context, caller string, rec *Recorder) error {
		if _, err := d.authorizeCreator(ctx, id, caller); err != nil {
			return err
		}

		if err := d.companies.DeleteCompany(ctx, id); err != nil {
			return err
		}

		rec.Record(model.EventCompanyDeleted, "company", formatID(id), "")
		d.logger.Info("company deleted", slog.Int64("companyID", id), slog.String("by", caller))
		return nil
	})
}

// ConnectRecruiter links a registered recruiter to the company. Connecting
// an existing edge succeeds and changes nothing.
func (d *CompanyDirectory) ConnectRecruiter(ctx context.Context, recruiter string, companyID int64) error {
	recruiter = strings.TrimSpace(recruiter)

	return d.journal.Do(ctx, "membership.connect", func(ctx context.Context, caller string, rec *Recorder) error {
		if err := d.authorizeMembership(ctx, companyID, caller, recruiter); err != nil {
			return err
		}

		created, err := d.companies.AddMembership(ctx, companyID, recruiter)
		if err != nil {
			return err
		}
		if !created {
			return nil
		}

		rec.Record(model.EventRecruiterConnected, "membership", membershipID(companyID, recruiter), "")
		d.logger.Info("recruiter connected",
			slog.Int64("companyID", companyID),
			slog.String("recruiter", recruiter),
		)
		return nil
	})
}

// DisconnectRecruiter removes the edge. A missing edge is ErrNotFound.
func (d *CompanyDirectory) DisconnectRecruiter(ctx context.Context, recruiter string, companyID int64) error {
	recruiter = strings.TrimSpace(recruiter)

	return d.journal.Do(ctx, "membership.disconnect", func(ctx context.Context, caller string, rec *Recorder) error {
		if err := d.authorizeMembership(ctx, companyID, caller, recruiter); err != nil {
			return err
		}

		removed, err := d.companies.RemoveMembership(ctx, companyID, recruiter)
		if err != nil {
			return err
		}
		if !removed {
			return apperror.NotFound("membership", membershipID(companyID, recruiter))
		}

		rec.Record(model.EventRecruiterDisconnected, "membership", membershipID(companyID, recruiter), "")
		d.logger.Info("recruiter disconnected",
			slog.Int64("companyID", companyID),
			slog.String("recruiter", recruiter),
		)
		return nil
	})
}

// GetAllCompanies lists live companies by id.
func (d *CompanyDirectory) GetAllCompanies(ctx context.Context) ([]model.Company, error) {
	return d.companies.ListCompanies(ctx)
}

// GetCompany returns the zero Company (ID 0, empty name) for an id that was
// never allocated or has been deleted.
func (d *CompanyDirectory) GetCompany(ctx context.Context, id int64) (model.Company, error) {
	c, err := d.companies.GetCompany(ctx, id)
	if errors.Is(err, apperror.ErrNotFound) {
		return model.Company{}, nil
	}
	if err != nil {
		return model.Company{}, err
	}
	return *c, nil
}

// IsCreator implements CompanyAuthority. A missing company has no creator.
func (d *CompanyDirectory) IsCreator(ctx context.Context, companyID int64, principal string) (bool, error) {
	if principal == "" {
		return false, nil
	}
	c, err := d.GetCompany(ctx, companyID)
	if err != nil {
		return false, err
	}
	return c.Exists() && c.Creator == principal, nil
}

func (d *CompanyDirectory) GetCompaniesForRecruiter(ctx context.Context, recruiter string) ([]model.Company, error) {
	return d.companies.ListCompaniesForRecruiter(ctx, strings.TrimSpace(recruiter))
}

// GetRecruitersForCompany returns an empty list for a missing company.
func (d *CompanyDirectory) GetRecruitersForCompany(ctx context.Context, companyID int64) ([]string, error) {
	return d.companies.ListRecruitersForCompany(ctx, companyID)
}

// AUTHORIZATION
//
// Checks run in this order: caller role, company existence, creatorship.
// A platform admin passes the role check and skips creatorship.

func (d *CompanyDirectory) authorizeCreator(ctx context.Context, id int64, caller string) (*model.Company, error) {
	role, ok, err := d.roles.RoleOf(ctx, caller)
	if err != nil {
		return nil, fmt.Errorf("service: reading role of %s: %w", caller, err)
	}
	if !ok || (role != model.RoleCompanyAdmin && role != model.RoleAdmin) {
		return nil, apperror.Unauthorized(caller, model.RoleCompanyAdmin.String())
	}

	c, err := d.companies.GetCompany(ctx, id)
	if err != nil {
		return nil, err
	}

	if role != model.RoleAdmin && c.Creator != caller {
		return nil, apperror.NotCreator(id, caller)
	}
	return c, nil
}

func (d *CompanyDirectory) authorizeMembership(ctx context.Context, companyID int64, caller, recruiter string) error {
	if _, err := d.authorizeCreator(ctx, companyID, caller); err != nil {
		return err
	}

	isRecruiter, err := hasRole(ctx, d.roles, recruiter, model.RoleRecruiter)
	if err != nil {
		return err
	}
	if !isRecruiter {
		return apperror.NotRecruiter(recruiter)
	}
	return nil
}

func keep(stored, patch string) string {
	if patch == "" {
		return stored
	}
	return patch
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func membershipID(companyID int64, recruiter string) string {
	return formatID(companyID) + "/" + recruiter
}
