package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/resumiro/internal/apperror"
	"github.com/sakif/resumiro/internal/model"
)

// addTOEIC adds the candidate's "toeic 990" certificate verified by
// companyAdmin's company.
func (f *fixture) addTOEIC(t *testing.T, companyID int64) int64 {
	t.Helper()
	id, err := f.certs.AddCertificate(as(candidate), "toeic 990", "xyz.com", candidate, companyAdmin, companyID)
	require.NoError(t, err)
	return id
}

// =========================================================================
// ADD CERTIFICATE
// =========================================================================

func TestAddCertificate_StartsPending(t *testing.T) {
	f := newFixture(t)
	companyID := f.seed(t)

	id := f.addTOEIC(t, companyID)

	cert, err := f.certs.GetCertificate(context.Background(), "xyz.com")
	require.NoError(t, err)
	assert.Equal(t, id, cert.ID)
	assert.Equal(t, "toeic 990", cert.Name)
	assert.Equal(t, candidate, cert.Candidate)
	assert.Equal(t, companyID, cert.CompanyID)
	assert.Equal(t, model.StatusPending, cert.Status)
	assert.True(t, cert.DecidedAt.IsZero())
	assert.Equal(t, []model.EventKind{model.EventCertificateAdded}, f.published.kinds())
}

func TestAddCertificate_Errors(t *testing.T) {
	f := newFixture(t)
	companyID := f.seed(t)
	f.addTOEIC(t, companyID)

	tests := []struct {
		name           string
		caller         string
		certName, url  string
		owner          string
		verifyingAdmin string
		companyID      int64
		want           error
	}{
		{"caller not a candidate", recruiter, "a", "a.com", recruiter, companyAdmin, companyID, apperror.ErrUnauthorized},
		{"for someone else", candidate, "a", "a.com", candidate2, companyAdmin, companyID, apperror.ErrNotSelf},
		{"blank name", candidate, " ", "a.com", candidate, companyAdmin, companyID, apperror.ErrValidation},
		{"blank url", candidate, "a", "", candidate, companyAdmin, companyID, apperror.ErrValidation},
		{"verifier not creator", candidate, "a", "a.com", candidate, companyAdmin2, companyID, apperror.ErrNotCreator},
		{"unknown company", candidate, "a", "a.com", candidate, companyAdmin, 77, apperror.ErrNotCreator},
		{"url taken", candidate2, "b", "xyz.com", candidate2, companyAdmin, companyID, apperror.ErrAlreadyExists},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.certs.AddCertificate(as(tt.caller), tt.certName, tt.url, tt.owner, tt.verifyingAdmin, tt.companyID)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	certs, err := f.certs.GetCertificatesForCandidate(context.Background(), candidate2)
	require.NoError(t, err)
	assert.Empty(t, certs)
}

// NotCreator is checked before url uniqueness.
func TestAddCertificate_CheckOrder(t *testing.T) {
	f := newFixture(t)
	companyID := f.seed(t)
	f.addTOEIC(t, companyID)

	_, err := f.certs.AddCertificate(as(candidate2), "b", "xyz.com", candidate2, companyAdmin2, companyID)
	assert.ErrorIs(t, err, apperror.ErrNotCreator)
}

// =========================================================================
// UPDATE CERTIFICATE
// =========================================================================

func TestUpdateCertificate_OtherCandidateNotOwned(t *testing.T) {
	f := newFixture(t)
	companyID := f.seed(t)
	id := f.addTOEIC(t, companyID)

	err := f.certs.UpdateCertificate(as(candidate2), id, "forged", "", companyAdmin, companyID)
	assert.ErrorIs(t, err, apperror.ErrNotOwned)
}

func TestUpdateCertificate_PatchAndRepoint(t *testing.T) {
	f := newFixture(t)
	companyID := f.seed(t)
	id := f.addTOEIC(t, companyID)
	other, err := f.companies.AddCompany(as(companyAdmin2), "vng", "", "", "")
	require.NoError(t, err)

	require.NoError(t, f.certs.UpdateCertificate(as(candidate), id, "", "new.com", companyAdmin2, other))

	cert, err := f.certs.GetCertificateByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "toeic 990", cert.Name, "empty name keeps the stored one")
	assert.Equal(t, "new.com", cert.URL)
	assert.Equal(t, other, cert.CompanyID)
	assert.Equal(t, model.StatusPending, cert.Status)

	old, err := f.certs.GetCertificate(context.Background(), "xyz.com")
	require.NoError(t, err)
	assert.False(t, old.Exists(), "old url is released")
}

func TestUpdateCertificate_Errors(t *testing.T) {
	f := newFixture(t)
	companyID := f.seed(t)
	id := f.addTOEIC(t, companyID)
	_, err := f.certs.AddCertificate(as(candidate), "ielts", "taken.com", candidate, companyAdmin, companyID)
	require.NoError(t, err)

	tests := []struct {
		name           string
		caller         string
		id             int64
		url            string
		verifyingAdmin string
		want           error
	}{
		{"caller not a candidate", companyAdmin, id, "", companyAdmin, apperror.ErrUnauthorized},
		{"missing certificate", candidate, 999, "", companyAdmin, apperror.ErrNotFound},
		{"not the verifier company's creator", candidate, id, "", companyAdmin2, apperror.ErrNotCreator},
		{"url held by another certificate", candidate, id, "taken.com", companyAdmin, apperror.ErrAlreadyExists},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.certs.UpdateCertificate(as(tt.caller), tt.id, "", tt.url, tt.verifyingAdmin, companyID)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	cert, err := f.certs.GetCertificateByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "xyz.com", cert.URL)
}

// =========================================================================
// CHANGE STATUS
// =========================================================================

func TestChangeCertificateStatus_Verify(t *testing.T) {
	f := newFixture(t)
	companyID := f.seed(t)
	id := f.addTOEIC(t, companyID)
	decided := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, f.certs.ChangeCertificateStatus(as(companyAdmin), id, model.StatusVerified, decided))

	cert, err := f.certs.GetCertificateByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusVerified, cert.Status)
	assert.True(t, decided.Equal(cert.DecidedAt))
}

func TestChangeCertificateStatus_ZeroTimeMeansNow(t *testing.T) {
	f := newFixture(t)
	companyID := f.seed(t)
	id := f.addTOEIC(t, companyID)

	require.NoError(t, f.certs.ChangeCertificateStatus(as(companyAdmin), id, model.StatusRejected, time.Time{}))

	cert, err := f.certs.GetCertificateByID(context.Background(), id)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), cert.DecidedAt, 5*time.Second)
}

// companyAdmin2 did not create the certificate's company.
func TestChangeCertificateStatus_NotVerifier(t *testing.T) {
	f := newFixture(t)
	companyID := f.seed(t)
	id := f.addTOEIC(t, companyID)

	err := f.certs.ChangeCertificateStatus(as(companyAdmin2), id, model.StatusVerified, time.Time{})
	assert.ErrorIs(t, err, apperror.ErrNotVerifier)
}

// Rejected, then Verified: the second decision fails.
func TestChangeCertificateStatus_AlreadyDecided(t *testing.T) {
	f := newFixture(t)
	companyID := f.seed(t)
	id := f.addTOEIC(t, companyID)

	require.NoError(t, f.certs.ChangeCertificateStatus(as(companyAdmin), id, model.StatusRejected, time.Time{}))

	err := f.certs.ChangeCertificateStatus(as(companyAdmin), id, model.StatusVerified, time.Time{})
	assert.ErrorIs(t, err, apperror.ErrNotPending)

	cert, err := f.certs.GetCertificateByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, cert.Status)
}

func TestChangeCertificateStatus_Errors(t *testing.T) {
	f := newFixture(t)
	companyID := f.seed(t)
	id := f.addTOEIC(t, companyID)

	tests := []struct {
		name   string
		caller string
		id     int64
		status model.CertificateStatus
		want   error
	}{
		{"pending is not a decision", companyAdmin, id, model.StatusPending, apperror.ErrValidation},
		{"out of range status", companyAdmin, id, model.CertificateStatus(9), apperror.ErrValidation},
		{"candidate cannot decide", candidate, id, model.StatusVerified, apperror.ErrUnauthorized},
		{"platform admin is not a verifier", admin, id, model.StatusVerified, apperror.ErrUnauthorized},
		{"missing certificate", companyAdmin, 404, model.StatusVerified, apperror.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.certs.ChangeCertificateStatus(as(tt.caller), tt.id, tt.status, time.Time{})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

// Once a certificate leaves Pending nobody can update or re-decide it.
func TestTerminalStatesAreFinal(t *testing.T) {
	for _, final := range []model.CertificateStatus{model.StatusVerified, model.StatusRejected} {
		t.Run(final.String(), func(t *testing.T) {
			f := newFixture(t)
			companyID := f.seed(t)
			id := f.addTOEIC(t, companyID)
			require.NoError(t, f.certs.ChangeCertificateStatus(as(companyAdmin), id, final, time.Time{}))

			for _, caller := range []string{candidate, candidate2, companyAdmin, companyAdmin2, admin, recruiter} {
				err := f.certs.UpdateCertificate(as(caller), id, "changed", "", companyAdmin, companyID)
				assert.Error(t, err, "update by %s", caller)

				for _, next := range []model.CertificateStatus{model.StatusVerified, model.StatusRejected} {
					err := f.certs.ChangeCertificateStatus(as(caller), id, next, time.Time{})
					assert.Error(t, err, "decide %s by %s", next, caller)
				}
			}

			err := f.certs.UpdateCertificate(as(candidate), id, "changed", "", companyAdmin, companyID)
			assert.ErrorIs(t, err, apperror.ErrNotPending)

			cert, err := f.certs.GetCertificateByID(context.Background(), id)
			require.NoError(t, err)
			assert.Equal(t, final, cert.Status)
			assert.Equal(t, "toeic 990", cert.Name)
		})
	}
}

// =========================================================================
// DELETE CERTIFICATE
// =========================================================================

func TestDeleteCertificate_FreesURLForAnyone(t *testing.T) {
	f := newFixture(t)
	companyID := f.seed(t)
	id := f.addTOEIC(t, companyID)
	require.NoError(t, f.certs.ChangeCertificateStatus(as(companyAdmin), id, model.StatusVerified, time.Time{}))

	require.NoError(t, f.certs.DeleteCertificate(as(candidate), id))

	gone, err := f.certs.GetCertificate(context.Background(), "xyz.com")
	require.NoError(t, err)
	assert.Equal(t, model.Certificate{}, gone)

	reused, err := f.certs.AddCertificate(as(candidate2), "toeic 900", "xyz.com", candidate2, companyAdmin, companyID)
	require.NoError(t, err)
	assert.Greater(t, reused, id)

	mine, err := f.certs.GetCertificatesForCandidate(context.Background(), candidate)
	require.NoError(t, err)
	assert.Empty(t, mine)
}

func TestDeleteCertificate_Errors(t *testing.T) {
	f := newFixture(t)
	companyID := f.seed(t)
	id := f.addTOEIC(t, companyID)

	assert.ErrorIs(t, f.certs.DeleteCertificate(as(companyAdmin), id), apperror.ErrUnauthorized)
	assert.ErrorIs(t, f.certs.DeleteCertificate(as(candidate), 31), apperror.ErrNotFound)
	assert.ErrorIs(t, f.certs.DeleteCertificate(as(candidate2), id), apperror.ErrNotOwned)
}

// =========================================================================
// READS & ORPHANS
// =========================================================================

func TestGetCertificatesForCandidate_InsertionOrder(t *testing.T) {
	f := newFixture(t)
	companyID := f.seed(t)

	var want []int64
	for _, url := range []string{"c.com", "a.com", "b.com"} {
		id, err := f.certs.AddCertificate(as(candidate), "cert "+url, url, candidate, companyAdmin, companyID)
		require.NoError(t, err)
		want = append(want, id)
	}

	certs, err := f.certs.GetCertificatesForCandidate(context.Background(), candidate)
	require.NoError(t, err)
	var got []int64
	for _, c := range certs {
		got = append(got, c.ID)
	}
	assert.Equal(t, want, got)
}

func TestGetCertificateByID_Sentinel(t *testing.T) {
	f := newFixture(t)

	cert, err := f.certs.GetCertificateByID(context.Background(), 12)
	require.NoError(t, err)
	assert.False(t, cert.Exists())
}

// A certificate whose company was deleted stays queryable and deletable but
// can never be decided.
func TestOrphanedCertificate(t *testing.T) {
	f := newFixture(t)
	companyID := f.seed(t)
	id := f.addTOEIC(t, companyID)

	require.NoError(t, f.companies.DeleteCompany(as(companyAdmin), companyID))

	cert, err := f.certs.GetCertificateByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, companyID, cert.CompanyID)
	assert.Equal(t, model.StatusPending, cert.Status)

	for _, caller := range []string{companyAdmin, companyAdmin2} {
		err := f.certs.ChangeCertificateStatus(as(caller), id, model.StatusVerified, time.Time{})
		assert.ErrorIs(t, err, apperror.ErrNotVerifier)
	}

	err = f.certs.UpdateCertificate(as(candidate), id, "x", "", companyAdmin, companyID)
	assert.ErrorIs(t, err, apperror.ErrNotCreator)

	require.NoError(t, f.certs.DeleteCertificate(as(candidate), id))
}
