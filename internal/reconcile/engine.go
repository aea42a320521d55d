// Package reconcile repairs drift between the verification store's intended
// grants and the role mirror's actual grants. Drift is never an error here;
// it is the expected, self-healing condition this package exists to correct.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"gatekeeper/internal/gateway"
	"gatekeeper/internal/reconcile/metrics"
	"gatekeeper/internal/verification"
	"gatekeeper/pkg/domain"
	"gatekeeper/pkg/platform/sentinel"
)

// defaultConcurrency bounds the per-member fan-out within one group. Members
// are independent, so parallelism is safe; the bound protects the mirror.
const defaultConcurrency = 8

// Report summarizes one pass.
type Report struct {
	mu sync.Mutex
	// Audited is the number of members examined.
	Audited int
	// Repaired is the number of role mutations applied to restore
	// correspondence. An idempotent second pass reports zero.
	Repaired int
	// Failed is the number of members skipped after a mutation failure.
	Failed int
}

func (r *Report) addAudited() {
	r.mu.Lock()
	r.Audited++
	r.mu.Unlock()
}

func (r *Report) addRepaired(n int) {
	r.mu.Lock()
	r.Repaired += n
	r.mu.Unlock()
}

func (r *Report) addFailed() {
	r.mu.Lock()
	r.Failed++
	r.mu.Unlock()
}

// Engine compares desired state (store) against actual grants (mirror) and
// applies the minimal corrective mutations. Passes are idempotent and
// commutative across members; one member's failure never blocks convergence
// for the rest.
type Engine struct {
	store       verification.Store
	mirror      gateway.Mirror
	roles       verification.RoleConfig
	threshold   time.Duration
	concurrency int
	logger      *slog.Logger
	metrics     *metrics.Metrics
	tracer      trace.Tracer
	now         func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithConcurrency overrides the per-group fan-out bound.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// New constructs a reconciliation engine.
func New(
	store verification.Store,
	mirror gateway.Mirror,
	roles verification.RoleConfig,
	inactivityThreshold time.Duration,
	logger *slog.Logger,
	m *metrics.Metrics,
	opts ...Option,
) *Engine {
	e := &Engine{
		store:       store,
		mirror:      mirror,
		roles:       roles,
		threshold:   inactivityThreshold,
		concurrency: defaultConcurrency,
		logger:      logger,
		metrics:     m,
		tracer:      otel.Tracer("gatekeeper/reconcile"),
		now:         time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Reconcile runs the full per-member audit for one group. Bot accounts are
// skipped. The returned error covers only listing failures; per-member
// mutation failures are logged, counted, and skipped.
func (e *Engine) Reconcile(ctx context.Context, group domain.GroupID) (*Report, error) {
	ctx, span := e.tracer.Start(ctx, "reconcile.Reconcile")
	defer span.End()
	start := time.Now()
	defer func() { e.metrics.Duration.Observe(time.Since(start).Seconds()) }()
	e.metrics.Passes.WithLabelValues("audit").Inc()

	members, err := e.mirror.ListMembers(ctx, group)
	if err != nil {
		return nil, fmt.Errorf("list members of group %s: %w", group, err)
	}

	report := &Report{}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for _, member := range members {
		if member.IsBot {
			continue
		}
		g.Go(func() error {
			report.addAudited()
			if err := e.reconcileMember(ctx, member.ID, group, report); err != nil {
				report.addFailed()
				e.metrics.Failures.Inc()
				e.logger.Error("member reconciliation failed, continuing",
					"member_id", member.ID,
					"group_id", group,
					"error", err,
				)
			}
			// Per-member isolation: never abort the group pass.
			return nil
		})
	}
	_ = g.Wait()

	e.logger.Info("reconcile pass complete",
		"group_id", group,
		"audited", report.Audited,
		"repaired", report.Repaired,
		"failed", report.Failed,
	)
	return report, nil
}

// reconcileMember applies the minimal corrective mutation for one member.
func (e *Engine) reconcileMember(ctx context.Context, member domain.MemberID, group domain.GroupID, report *Report) error {
	record, err := e.store.GetMember(ctx, member, group)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return fmt.Errorf("read verification record: %w", err)
	}

	actual, err := e.mirror.GrantedRoles(ctx, member, group)
	if err != nil {
		return fmt.Errorf("read granted roles: %w", err)
	}

	if record.IsVerified() {
		return e.applyVerified(ctx, member, group, actual, report)
	}

	// Not Verified (Unverified, PendingChallenge, or no record at all):
	// the mirror must hold none of the verified roles.
	if err := e.applyNotVerified(ctx, member, group, actual, report); err != nil {
		return err
	}
	if record == nil {
		if _, err := e.store.EnsureMember(ctx, member, group, e.now().UTC()); err != nil {
			return fmt.Errorf("ensure tracking record: %w", err)
		}
	}
	return nil
}

func (e *Engine) applyVerified(ctx context.Context, member domain.MemberID, group domain.GroupID, actual gateway.RoleSet, report *Report) error {
	for _, role := range e.roles.VerifiedRoles {
		if actual.Has(role) {
			continue
		}
		if err := e.mirror.GrantRole(ctx, member, group, role); err != nil {
			return fmt.Errorf("grant role %s: %w", role, err)
		}
		e.repaired(report)
	}
	if e.roles.HasMarker() && actual.Has(e.roles.UnverifiedRole) {
		if err := e.mirror.RevokeRole(ctx, member, group, e.roles.UnverifiedRole); err != nil {
			return fmt.Errorf("revoke marker: %w", err)
		}
		e.repaired(report)
	}
	return nil
}

func (e *Engine) applyNotVerified(ctx context.Context, member domain.MemberID, group domain.GroupID, actual gateway.RoleSet, report *Report) error {
	for _, role := range e.roles.VerifiedRoles {
		if !actual.Has(role) {
			continue
		}
		if err := e.mirror.RevokeRole(ctx, member, group, role); err != nil {
			return fmt.Errorf("revoke role %s: %w", role, err)
		}
		e.repaired(report)
	}
	if e.roles.HasMarker() && !actual.Has(e.roles.UnverifiedRole) {
		if err := e.mirror.GrantRole(ctx, member, group, e.roles.UnverifiedRole); err != nil {
			return fmt.Errorf("grant marker: %w", err)
		}
		e.repaired(report)
	}
	return nil
}

func (e *Engine) repaired(report *Report) {
	report.addRepaired(1)
	e.metrics.Repairs.Inc()
}

// ReconcileAll audits every group the process is attached to. Run once at
// startup to repair drift accumulated while offline; group failures are
// logged and skipped so one bad group cannot block the rest.
func (e *Engine) ReconcileAll(ctx context.Context) error {
	groups, err := e.mirror.ListGroups(ctx)
	if err != nil {
		return fmt.Errorf("list groups: %w", err)
	}
	for _, group := range groups {
		if _, err := e.Reconcile(ctx, group); err != nil {
			e.logger.Error("group reconciliation failed, continuing",
				"group_id", group,
				"error", err,
			)
		}
	}
	return nil
}

// ExpirySweep transitions Verified members whose last activity exceeds the
// inactivity threshold back to Unverified. The store transition commits
// first; mirror failures leave drift for the next full audit.
func (e *Engine) ExpirySweep(ctx context.Context) (*Report, error) {
	ctx, span := e.tracer.Start(ctx, "reconcile.ExpirySweep")
	defer span.End()
	start := time.Now()
	defer func() { e.metrics.Duration.Observe(time.Since(start).Seconds()) }()
	e.metrics.Passes.WithLabelValues("sweep").Inc()

	cutoff := e.now().UTC().Add(-e.threshold)
	expired, err := e.store.ListExpiredVerified(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list expired members: %w", err)
	}

	report := &Report{}
	for _, key := range expired {
		report.addAudited()
		if err := e.expireMember(ctx, key, report); err != nil {
			report.addFailed()
			e.metrics.Failures.Inc()
			e.logger.Error("member expiry failed, continuing",
				"member_id", key.MemberID,
				"group_id", key.GroupID,
				"error", err,
			)
			continue
		}
		e.metrics.Expired.Inc()
		e.logger.Info("verified status expired for inactivity",
			"member_id", key.MemberID,
			"group_id", key.GroupID,
		)
	}
	return report, nil
}

func (e *Engine) expireMember(ctx context.Context, key verification.MemberKey, report *Report) error {
	if err := e.store.MarkUnverified(ctx, key.MemberID, key.GroupID); err != nil {
		// Already gone (member left between listing and sweep) is fine.
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("mark unverified: %w", err)
	}
	for _, role := range e.roles.VerifiedRoles {
		if err := e.mirror.RevokeRole(ctx, key.MemberID, key.GroupID, role); err != nil {
			return fmt.Errorf("revoke role %s: %w", role, err)
		}
		e.repaired(report)
	}
	if e.roles.HasMarker() {
		if err := e.mirror.GrantRole(ctx, key.MemberID, key.GroupID, e.roles.UnverifiedRole); err != nil {
			return fmt.Errorf("grant marker: %w", err)
		}
		e.repaired(report)
	}
	return nil
}
