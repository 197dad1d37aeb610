package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sakif/resumiro/internal/auth"
	"github.com/sakif/resumiro/internal/metrics"
	"github.com/sakif/resumiro/internal/model"
	"github.com/sakif/resumiro/internal/repository/sqlite"
)

// =========================================================================
// FIXTURE
// =========================================================================
//
// Services run against a real in-memory SQLite database, so transaction
// behaviour under test is the production one.

const (
	admin         = "0xadmin"
	companyAdmin  = "0xcompanyadmin"
	companyAdmin2 = "0xcompanyadmin2"
	recruiter     = "0xrecruiter"
	candidate     = "0xcandidate"
	candidate2    = "0xcandidate2"
)

// capturePublisher records what the journal publishes after commit.
type capturePublisher struct {
	mu     sync.Mutex
	events []model.Event
}

func (p *capturePublisher) Publish(_ context.Context, events []model.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
}

func (p *capturePublisher) kinds() []model.EventKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.EventKind, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Kind)
	}
	return out
}

func (p *capturePublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}

type fixture struct {
	db        *sqlite.DB
	published *capturePublisher
	metrics   *metrics.Metrics
	journal   *Journal
	users     *IdentityRegistry
	companies *CompanyDirectory
	certs     *CertificateLedger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pub := &capturePublisher{}
	m := metrics.New()
	journal := NewJournal(db, db, pub, m, logger)

	users := NewIdentityRegistry(db, journal, logger)
	companies := NewCompanyDirectory(db, users, journal, logger)
	certs := NewCertificateLedger(db, users, companies, journal, logger)

	require.NoError(t, users.Bootstrap(context.Background(), admin))
	pub.reset()

	return &fixture{
		db:        db,
		published: pub,
		metrics:   m,
		journal:   journal,
		users:     users,
		companies: companies,
		certs:     certs,
	}
}

// as returns a context acting as principal.
func as(principal string) context.Context {
	return auth.WithPrincipal(context.Background(), principal)
}

// register self-registers principal with role.
func (f *fixture) register(t *testing.T, principal string, role model.Role) {
	t.Helper()
	require.NoError(t, f.users.AddUser(as(principal), principal, role))
}

// seed registers the standard cast and a company created by companyAdmin.
func (f *fixture) seed(t *testing.T) int64 {
	t.Helper()
	f.register(t, companyAdmin, model.RoleCompanyAdmin)
	f.register(t, companyAdmin2, model.RoleCompanyAdmin)
	f.register(t, recruiter, model.RoleRecruiter)
	f.register(t, candidate, model.RoleCandidate)
	f.register(t, candidate2, model.RoleCandidate)

	id, err := f.companies.AddCompany(as(companyAdmin), "fpt", "fpt.com", "quan 9", "")
	require.NoError(t, err)
	f.published.reset()
	return id
}
