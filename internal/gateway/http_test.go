package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatekeeper/pkg/platform/sentinel"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHTTPMirror_GrantedRoles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/groups/2001/members/1001/roles", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode([]string{"role-a", "role-b"})
	}))
	defer srv.Close()

	mirror := NewHTTPMirror(srv.URL, "secret", discardLogger())
	roles, err := mirror.GrantedRoles(context.Background(), "1001", "2001")

	require.NoError(t, err)
	assert.True(t, roles.Has("role-a"))
	assert.True(t, roles.Has("role-b"))
	assert.False(t, roles.Has("role-c"))
}

func TestHTTPMirror_GrantRoleUsesPut(t *testing.T) {
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	mirror := NewHTTPMirror(srv.URL, "", discardLogger())
	err := mirror.GrantRole(context.Background(), "1001", "2001", "role-a")

	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/groups/2001/members/1001/roles/role-a", gotPath)
}

func TestHTTPMirror_NotFoundMapsToSentinel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	mirror := NewHTTPMirror(srv.URL, "", discardLogger())
	err := mirror.RevokeRole(context.Background(), "1001", "2001", "role-a")

	assert.True(t, errors.Is(err, sentinel.ErrNotFound))
}

func TestHTTPMirror_BreakerOpensOnServerErrors(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	mirror := NewHTTPMirror(srv.URL, "", discardLogger())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		err := mirror.GrantRole(ctx, "1001", "2001", "role-a")
		assert.True(t, errors.Is(err, sentinel.ErrUnavailable))
	}
	require.Equal(t, 5, hits)

	// Breaker is open now: calls fail fast without reaching the upstream.
	err := mirror.GrantRole(ctx, "1001", "2001", "role-a")
	assert.True(t, errors.Is(err, sentinel.ErrUnavailable))
	assert.Equal(t, 5, hits)
}

func TestHTTPMirror_BreakerRecoversOnceUpstreamHeals(t *testing.T) {
	var hits int
	healthy := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		if !healthy {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	mirror := NewHTTPMirror(srv.URL, "", discardLogger())
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	mirror.now = func() time.Time { return clock }
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		err := mirror.GrantRole(ctx, "1001", "2001", "role-a")
		assert.True(t, errors.Is(err, sentinel.ErrUnavailable))
	}
	require.Equal(t, 5, hits)

	healthy = true

	// Within the cooldown the open breaker still fails fast.
	err := mirror.GrantRole(ctx, "1001", "2001", "role-a")
	assert.True(t, errors.Is(err, sentinel.ErrUnavailable))
	assert.Equal(t, 5, hits)

	// First trial request reaches the healed upstream and succeeds for the caller,
	// but one success is not enough to close the breaker.
	clock = clock.Add(mirror.retryEvery)
	require.NoError(t, mirror.GrantRole(ctx, "1001", "2001", "role-a"))
	assert.Equal(t, 6, hits)

	err = mirror.GrantRole(ctx, "1001", "2001", "role-a")
	assert.True(t, errors.Is(err, sentinel.ErrUnavailable))
	assert.Equal(t, 6, hits)

	// Second trial closes the breaker; traffic flows without waiting again.
	clock = clock.Add(mirror.retryEvery)
	require.NoError(t, mirror.GrantRole(ctx, "1001", "2001", "role-a"))
	require.NoError(t, mirror.GrantRole(ctx, "1001", "2001", "role-a"))
	assert.Equal(t, 8, hits)
}
