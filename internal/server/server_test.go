package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/resumiro/internal/audit"
	"github.com/sakif/resumiro/internal/auth"
	"github.com/sakif/resumiro/internal/facade"
	"github.com/sakif/resumiro/internal/handler"
	"github.com/sakif/resumiro/internal/metrics"
	"github.com/sakif/resumiro/internal/model"
	"github.com/sakif/resumiro/internal/repository/sqlite"
)

const secret = "test-secret-at-least-16-chars!!"

func newTestServer(t *testing.T, jwtSecret string) (*Server, *facade.Facade) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	m := metrics.New()
	f := facade.Wire(db, audit.NewDispatcher(audit.MetricsSink(m)), m, logger)
	require.NoError(t, f.Bootstrap(context.Background(), "0xadmin"))

	srv, err := New(Config{Port: 0, JWTSecret: jwtSecret}, Deps{Events: f, DB: db, Metrics: m}, logger)
	require.NoError(t, err)
	return srv, f
}

func do(t *testing.T, srv *Server, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	return rr
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, secret)

	rr := do(t, srv, "/healthz", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("X-Request-Id"))
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, secret)

	rr := do(t, srv, "/metrics", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `resumiro_state_transitions_total{kind="user.added"} 1`)
}

func TestEventsFeed(t *testing.T) {
	srv, f := newTestServer(t, secret)
	tokens, err := auth.NewTokenService(secret)
	require.NoError(t, err)

	require.NoError(t, f.AddUser(auth.WithPrincipal(context.Background(), "0xcand"), "0xcand", model.RoleCandidate))

	t.Run("no token", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, do(t, srv, "/api/events", "").Code)
	})

	t.Run("non admin", func(t *testing.T) {
		token, err := tokens.Generate("0xcand")
		require.NoError(t, err)
		assert.Equal(t, http.StatusForbidden, do(t, srv, "/api/events", token).Code)
	})

	t.Run("admin", func(t *testing.T) {
		token, err := tokens.Generate("0xadmin")
		require.NoError(t, err)

		rr := do(t, srv, "/api/events?after=1", token)
		require.Equal(t, http.StatusOK, rr.Code)

		var page handler.EventsPage
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&page))
		require.Len(t, page.Events, 1)
		assert.Equal(t, "0xcand", page.Events[0].EntityID)
		assert.Equal(t, page.Events[0].Seq, page.Next)
	})
}

func TestEventsFeedDisabledWithoutSecret(t *testing.T) {
	srv, _ := newTestServer(t, "")

	assert.Equal(t, http.StatusNotFound, do(t, srv, "/api/events", "").Code)
}

func TestNew_RejectsShortSecret(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	_, err := New(Config{JWTSecret: "short"}, Deps{}, logger)
	assert.ErrorContains(t, err, "16 characters")
}

func TestRun_StopsWorkersOnCancel(t *testing.T) {
	srv, _ := newTestServer(t, "")

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	worker := func(ctx context.Context) error {
		<-ctx.Done()
		close(stopped)
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx, worker) }()
	cancel()

	require.NoError(t, <-done)
	<-stopped
}
