package admin

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatekeeper/internal/gateway"
	"gatekeeper/internal/reconcile"
	"gatekeeper/pkg/domain"
)

const testToken = "test-admin-token"

type stubReconciler struct {
	report     *reconcile.Report
	err        error
	lastGroup  domain.GroupID
	sweepCalls int
}

func (s *stubReconciler) Reconcile(_ context.Context, group domain.GroupID) (*reconcile.Report, error) {
	s.lastGroup = group
	return s.report, s.err
}

func (s *stubReconciler) ExpirySweep(context.Context) (*reconcile.Report, error) {
	s.sweepCalls++
	return s.report, s.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newServer(t *testing.T, engine Reconciler, announcer Announcer, checks map[string]HealthChecker) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	New(engine, announcer, testToken, checks, testLogger()).Register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, token, body string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("X-Admin-Token", token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestAdmin_RejectsMissingOrWrongToken(t *testing.T) {
	engine := &stubReconciler{report: &reconcile.Report{}}
	srv := newServer(t, engine, &gateway.FakeAnnouncer{}, nil)

	resp := do(t, http.MethodPost, srv.URL+"/admin/sweep", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = do(t, http.MethodPost, srv.URL+"/admin/sweep", "wrong-token", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	assert.Zero(t, engine.sweepCalls)
}

func TestAdmin_ReconcileReturnsReport(t *testing.T) {
	engine := &stubReconciler{report: &reconcile.Report{Audited: 12, Repaired: 3, Failed: 1}}
	srv := newServer(t, engine, &gateway.FakeAnnouncer{}, nil)

	resp := do(t, http.MethodPost, srv.URL+"/admin/groups/2001/reconcile", testToken, "")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body reportResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, reportResponse{Audited: 12, Repaired: 3, Failed: 1}, body)
	assert.Equal(t, domain.GroupID("2001"), engine.lastGroup)
}

func TestAdmin_ReconcileEngineFailure(t *testing.T) {
	engine := &stubReconciler{err: errors.New("mirror unreachable")}
	srv := newServer(t, engine, &gateway.FakeAnnouncer{}, nil)

	resp := do(t, http.MethodPost, srv.URL+"/admin/groups/2001/reconcile", testToken, "")

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestAdmin_SweepReturnsReport(t *testing.T) {
	engine := &stubReconciler{report: &reconcile.Report{Audited: 4, Repaired: 4}}
	srv := newServer(t, engine, &gateway.FakeAnnouncer{}, nil)

	resp := do(t, http.MethodPost, srv.URL+"/admin/sweep", testToken, "")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, engine.sweepCalls)
}

func TestAdmin_PromptPostsDefaultContent(t *testing.T) {
	announcer := &gateway.FakeAnnouncer{}
	srv := newServer(t, &stubReconciler{}, announcer, nil)

	resp := do(t, http.MethodPost, srv.URL+"/admin/groups/2001/prompt", testToken,
		`{"channel_id":"3001"}`)

	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Len(t, announcer.Prompts, 1)
	assert.Contains(t, announcer.Prompts[0], "Verify you are human")
}

func TestAdmin_PromptRequiresChannel(t *testing.T) {
	announcer := &gateway.FakeAnnouncer{}
	srv := newServer(t, &stubReconciler{}, announcer, nil)

	resp := do(t, http.MethodPost, srv.URL+"/admin/groups/2001/prompt", testToken, `{}`)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, announcer.Prompts)
}

func TestHealthz_ReportsDependencies(t *testing.T) {
	checks := map[string]HealthChecker{
		"postgres": HealthCheckFunc(func(context.Context) error { return nil }),
		"redis":    HealthCheckFunc(func(context.Context) error { return errors.New("down") }),
	}
	srv := newServer(t, &stubReconciler{}, &gateway.FakeAnnouncer{}, checks)

	resp := do(t, http.MethodGet, srv.URL+"/healthz", "", "")

	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	var body struct {
		Status       string            `json:"status"`
		Dependencies map[string]string `json:"dependencies"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "ok", body.Dependencies["postgres"])
	assert.Equal(t, "unreachable", body.Dependencies["redis"])
}

func TestHealthz_OpenWithoutToken(t *testing.T) {
	srv := newServer(t, &stubReconciler{}, &gateway.FakeAnnouncer{}, nil)

	resp := do(t, http.MethodGet, srv.URL+"/healthz", "", "")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
