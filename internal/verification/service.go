package verification

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"gatekeeper/internal/challenge"
	"gatekeeper/internal/gateway"
	"gatekeeper/internal/verification/metrics"
	"gatekeeper/pkg/domain"
	dErrors "gatekeeper/pkg/domain-errors"
	"gatekeeper/pkg/platform/sentinel"
)

// RoleConfig is the grant set implied by each lifecycle state: all verified
// roles when Verified, the marker (when configured) otherwise.
type RoleConfig struct {
	VerifiedRoles  []domain.RoleID
	UnverifiedRole domain.RoleID
}

// HasMarker reports whether an unverified marker role is configured.
func (c RoleConfig) HasMarker() bool {
	return c.UnverifiedRole != ""
}

// Outcome is the result of an answer submission.
type Outcome string

const (
	OutcomeVerified Outcome = "verified"
	OutcomeRejected Outcome = "rejected"
)

// IssuedChallenge is what the caller presents to the member. The correct
// answer is deliberately absent: correctness is judged against the store,
// never against anything the client holds.
type IssuedChallenge struct {
	Question  string
	Choices   []int
	ExpiresAt time.Time
}

// Service is the verification state machine. It decides legal transitions
// for a member and drives the side effects each transition requires: the
// store mutation commits first, then the role mirror is mutated, and a
// mirror failure is reported and left for reconciliation rather than
// retried inline.
type Service struct {
	store     Store
	mirror    gateway.Mirror
	generator *challenge.Generator
	roles     RoleConfig
	timeout   time.Duration
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer

	now      func() time.Time
	schedule func(d time.Duration, fn func())
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithScheduler overrides the deferred-cleanup scheduler, for tests.
func WithScheduler(schedule func(d time.Duration, fn func())) Option {
	return func(s *Service) { s.schedule = schedule }
}

// NewService constructs the state machine with its collaborators.
func NewService(
	store Store,
	mirror gateway.Mirror,
	generator *challenge.Generator,
	roles RoleConfig,
	timeout time.Duration,
	logger *slog.Logger,
	m *metrics.Metrics,
	opts ...Option,
) *Service {
	s := &Service{
		store:     store,
		mirror:    mirror,
		generator: generator,
		roles:     roles,
		timeout:   timeout,
		logger:    logger,
		metrics:   m,
		tracer:    otel.Tracer("gatekeeper/verification"),
		now:       time.Now,
		schedule: func(d time.Duration, fn func()) {
			time.AfterFunc(d, fn)
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// RequestChallenge issues a fresh challenge for a member. An already
// verified member gets a logical-conflict rejection with no mutation; an
// already pending member gets their challenge overwritten in place, which
// makes a double-click benign. The timeout cleanup is scheduled fire and
// forget: if the member resolves first it finds nothing to delete.
func (s *Service) RequestChallenge(ctx context.Context, member domain.MemberID, group domain.GroupID) (*IssuedChallenge, error) {
	record, err := s.store.GetMember(ctx, member, group)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "verification is temporarily unavailable")
	}
	if record.IsVerified() {
		return nil, dErrors.New(dErrors.CodeAlreadyVerified, "you are already verified")
	}

	generated := s.generator.Generate()
	// Truncate to the store's timestamp precision so the timeout cleanup's
	// issued-at equality survives the round trip.
	issuedAt := s.now().UTC().Truncate(time.Microsecond)
	pending := PendingChallenge{
		MemberID:       member,
		GroupID:        group,
		ExpectedAnswer: generated.CorrectAnswer,
		IssuedAt:       issuedAt,
	}
	if err := s.store.UpsertPending(ctx, pending); err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			return nil, dErrors.New(dErrors.CodeAlreadyVerified, "you are already verified")
		}
		// The transition aborts entirely: no partial pending challenge.
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "could not issue a challenge, try again")
	}

	s.schedule(s.timeout, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		s.ExpireChallenge(ctx, member, group, issuedAt)
	})

	s.metrics.ChallengesIssued.Inc()
	s.logger.Info("challenge issued",
		"member_id", member,
		"group_id", group,
		"timeout", s.timeout,
	)
	return &IssuedChallenge{
		Question:  generated.Question,
		Choices:   generated.Choices,
		ExpiresAt: issuedAt.Add(s.timeout),
	}, nil
}

// SubmitAnswer resolves a live challenge. A correct answer commits the
// Verified transition in one store transaction and then applies the role
// grants; an incorrect answer destroys the challenge so the next attempt
// requires a fresh question, which defeats enumeration within one challenge
// lifetime.
func (s *Service) SubmitAnswer(ctx context.Context, member domain.MemberID, group domain.GroupID, answer int) (Outcome, error) {
	ctx, span := s.tracer.Start(ctx, "verification.SubmitAnswer")
	defer span.End()

	pending, err := s.store.GetPending(ctx, member, group)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", dErrors.New(dErrors.CodeNoChallenge, "no active challenge, request a new one")
		}
		return "", dErrors.Wrap(err, dErrors.CodeUnavailable, "verification is temporarily unavailable")
	}

	if answer != pending.ExpectedAnswer {
		if _, err := s.store.DeletePending(ctx, member, group); err != nil {
			return "", dErrors.Wrap(err, dErrors.CodeUnavailable, "verification is temporarily unavailable")
		}
		s.metrics.ChallengesFailed.Inc()
		s.logger.Info("challenge failed",
			"member_id", member,
			"group_id", group,
		)
		return OutcomeRejected, nil
	}

	// Store commit first; only then the mirror. The window between the two
	// is the drift the reconciliation pass exists to repair.
	if err := s.store.MarkVerified(ctx, member, group, s.now().UTC()); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeUnavailable, "verification is temporarily unavailable")
	}
	s.applyVerifiedRoles(ctx, member, group)

	s.metrics.ChallengesPassed.Inc()
	s.logger.Info("member verified",
		"member_id", member,
		"group_id", group,
	)
	return OutcomeVerified, nil
}

// applyVerifiedRoles moves the mirror to the grant set implied by Verified.
// Failures are logged and counted, never bubbled: the store already
// committed, and the next reconcile pass repairs the mirror.
func (s *Service) applyVerifiedRoles(ctx context.Context, member domain.MemberID, group domain.GroupID) {
	if s.roles.HasMarker() {
		if err := s.mirror.RevokeRole(ctx, member, group, s.roles.UnverifiedRole); err != nil {
			s.reportDrift(ctx, member, group, "revoke unverified marker", err)
		}
	}
	for _, role := range s.roles.VerifiedRoles {
		if err := s.mirror.GrantRole(ctx, member, group, role); err != nil {
			s.reportDrift(ctx, member, group, "grant verified role", err)
		}
	}
}

func (s *Service) reportDrift(ctx context.Context, member domain.MemberID, group domain.GroupID, action string, err error) {
	s.metrics.RoleDrift.Inc()
	s.logger.ErrorContext(ctx, "role mirror mutation failed, reconciliation will repair",
		"action", action,
		"member_id", member,
		"group_id", group,
		"error", err,
	)
}

// ExpireChallenge is the deferred timeout cleanup. The delete is keyed by
// issuance time, so a challenge that was resolved or re-issued in the
// meantime does not match and the call is a no-op. The member silently
// reverts to Unverified with no role change.
func (s *Service) ExpireChallenge(ctx context.Context, member domain.MemberID, group domain.GroupID, issuedAt time.Time) {
	deleted, err := s.store.DeletePendingIssuedAt(ctx, member, group, issuedAt)
	if err != nil {
		s.logger.Error("challenge timeout cleanup failed",
			"member_id", member,
			"group_id", group,
			"error", err,
		)
		return
	}
	if deleted {
		s.metrics.ChallengeTimeouts.Inc()
		s.logger.Info("challenge expired",
			"member_id", member,
			"group_id", group,
		)
	}
}

// MemberJoined records a newly observed member as Unverified and grants the
// marker role best effort.
func (s *Service) MemberJoined(ctx context.Context, member domain.MemberID, group domain.GroupID) error {
	created, err := s.store.EnsureMember(ctx, member, group, s.now().UTC())
	if err != nil {
		return err
	}
	if created && s.roles.HasMarker() {
		if err := s.mirror.GrantRole(ctx, member, group, s.roles.UnverifiedRole); err != nil {
			s.reportDrift(ctx, member, group, "grant unverified marker", err)
		}
	}
	return nil
}

// MemberLeft purges all records for the pair. No role action is needed: the
// roles are not observable after departure.
func (s *Service) MemberLeft(ctx context.Context, member domain.MemberID, group domain.GroupID) error {
	return s.store.DeleteMember(ctx, member, group)
}
