package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"gatekeeper/pkg/domain"
	"gatekeeper/pkg/platform/circuit"
	"gatekeeper/pkg/platform/sentinel"
)

// mirrorRetryInterval is how often an open breaker lets one request through
// to test whether the upstream has recovered.
const mirrorRetryInterval = 30 * time.Second

// HTTPMirror talks to the platform gateway's REST surface. A circuit breaker
// guards it: while open, calls fail fast with sentinel.ErrUnavailable instead
// of piling timeouts onto an already struggling upstream, except that one
// trial request per interval is let through so consecutive successes
// can close the breaker again. The reconciler treats fail-fast errors exactly
// like any other mirror failure.
type HTTPMirror struct {
	baseURL    string
	token      string
	client     *http.Client
	breaker    *circuit.Breaker
	retryEvery time.Duration
	logger     *slog.Logger

	mu        sync.Mutex
	nextRetry time.Time
	now       func() time.Time
}

func NewHTTPMirror(baseURL, token string, logger *slog.Logger) *HTTPMirror {
	return &HTTPMirror{
		baseURL:    baseURL,
		token:      token,
		client:     &http.Client{Timeout: 10 * time.Second},
		breaker:    circuit.New("role-mirror", circuit.WithFailureThreshold(5), circuit.WithSuccessThreshold(2)),
		retryEvery: mirrorRetryInterval,
		logger:     logger,
		now:        time.Now,
	}
}

type memberEntry struct {
	MemberID string `json:"member_id"`
	IsBot    bool   `json:"is_bot"`
}

func (m *HTTPMirror) ListGroups(ctx context.Context) ([]domain.GroupID, error) {
	var raw []string
	if err := m.get(ctx, "/groups", &raw); err != nil {
		return nil, err
	}
	groups := make([]domain.GroupID, 0, len(raw))
	for _, g := range raw {
		groups = append(groups, domain.GroupID(g))
	}
	return groups, nil
}

func (m *HTTPMirror) ListMembers(ctx context.Context, group domain.GroupID) ([]Member, error) {
	var raw []memberEntry
	path := fmt.Sprintf("/groups/%s/members", url.PathEscape(group.String()))
	if err := m.get(ctx, path, &raw); err != nil {
		return nil, err
	}
	members := make([]Member, 0, len(raw))
	for _, e := range raw {
		members = append(members, Member{ID: domain.MemberID(e.MemberID), IsBot: e.IsBot})
	}
	return members, nil
}

func (m *HTTPMirror) GrantedRoles(ctx context.Context, member domain.MemberID, group domain.GroupID) (RoleSet, error) {
	var raw []string
	path := fmt.Sprintf("/groups/%s/members/%s/roles",
		url.PathEscape(group.String()), url.PathEscape(member.String()))
	if err := m.get(ctx, path, &raw); err != nil {
		return nil, err
	}
	roles := make(RoleSet, len(raw))
	for _, r := range raw {
		roles[domain.RoleID(r)] = true
	}
	return roles, nil
}

func (m *HTTPMirror) GrantRole(ctx context.Context, member domain.MemberID, group domain.GroupID, role domain.RoleID) error {
	path := fmt.Sprintf("/groups/%s/members/%s/roles/%s",
		url.PathEscape(group.String()), url.PathEscape(member.String()), url.PathEscape(role.String()))
	return m.do(ctx, http.MethodPut, path, nil)
}

func (m *HTTPMirror) RevokeRole(ctx context.Context, member domain.MemberID, group domain.GroupID, role domain.RoleID) error {
	path := fmt.Sprintf("/groups/%s/members/%s/roles/%s",
		url.PathEscape(group.String()), url.PathEscape(member.String()), url.PathEscape(role.String()))
	return m.do(ctx, http.MethodDelete, path, nil)
}

func (m *HTTPMirror) get(ctx context.Context, path string, out any) error {
	return m.do(ctx, http.MethodGet, path, out)
}

func (m *HTTPMirror) do(ctx context.Context, method, path string, out any) error {
	if m.breaker.IsOpen() && !m.allowRetry() {
		return fmt.Errorf("mirror %s %s: %w", method, path, sentinel.ErrUnavailable)
	}

	req, err := http.NewRequestWithContext(ctx, method, m.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("mirror request: %w", err)
	}
	if m.token != "" {
		req.Header.Set("Authorization", "Bearer "+m.token)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		m.recordFailure()
		return fmt.Errorf("mirror %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		// Not an upstream fault: the entity is simply gone.
		m.recordSuccess()
		return fmt.Errorf("mirror %s %s: %w", method, path, sentinel.ErrNotFound)
	case resp.StatusCode >= 500:
		m.recordFailure()
		return fmt.Errorf("mirror %s %s: upstream status %d: %w", method, path, resp.StatusCode, sentinel.ErrUnavailable)
	case resp.StatusCode >= 400:
		m.recordSuccess()
		return fmt.Errorf("mirror %s %s: unexpected status %d", method, path, resp.StatusCode)
	}

	m.recordSuccess()
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("mirror %s %s: decode: %w", method, path, err)
	}
	return nil
}

// allowRetry grants at most one request per retry interval while the breaker
// is open. The trial's outcome feeds the breaker like any other call, so a
// recovered upstream closes it after enough consecutive successes.
func (m *HTTPMirror) allowRetry() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if now.Before(m.nextRetry) {
		return false
	}
	m.nextRetry = now.Add(m.retryEvery)
	return true
}

func (m *HTTPMirror) recordFailure() {
	if _, change := m.breaker.RecordFailure(); change.Opened {
		m.mu.Lock()
		m.nextRetry = m.now().Add(m.retryEvery)
		m.mu.Unlock()
		m.logger.Warn("mirror circuit opened",
			"breaker", m.breaker.Name(),
			"retry_interval", m.retryEvery,
		)
	}
}

func (m *HTTPMirror) recordSuccess() {
	if _, change := m.breaker.RecordSuccess(); change.Closed {
		m.logger.Info("mirror circuit closed", "breaker", m.breaker.Name())
	}
}
