package verification_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"gatekeeper/internal/challenge"
	"gatekeeper/internal/gateway"
	"gatekeeper/internal/gateway/mocks"
	"gatekeeper/internal/verification"
	"gatekeeper/internal/verification/metrics"
	"gatekeeper/pkg/domain"
	dErrors "gatekeeper/pkg/domain-errors"
	"gatekeeper/pkg/platform/sentinel"
)

var (
	member = domain.MemberID("1001")
	group  = domain.GroupID("2001")

	roles = verification.RoleConfig{
		VerifiedRoles:  []domain.RoleID{"role-verified", "role-member"},
		UnverifiedRole: "role-unverified",
	}
)

var verificationMetrics = metrics.New()

type fixture struct {
	store     *verification.InMemoryStore
	mirror    *gateway.FakeMirror
	service   *verification.Service
	scheduled []func()
	now       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:  verification.NewInMemoryStore(),
		mirror: gateway.NewFakeMirror(),
		now:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	f.service = verification.NewService(
		f.store,
		f.mirror,
		challenge.NewGenerator(),
		roles,
		5*time.Minute,
		testLogger(),
		verificationMetrics,
		verification.WithClock(func() time.Time { return f.now }),
		verification.WithScheduler(func(_ time.Duration, fn func()) {
			f.scheduled = append(f.scheduled, fn)
		}),
	)
	return f
}

// pendingAnswer reads the stored expected answer; the store, not the client
// payload, is the authority the service checks against.
func (f *fixture) pendingAnswer(t *testing.T) int {
	t.Helper()
	pending, err := f.store.GetPending(context.Background(), member, group)
	require.NoError(t, err)
	return pending.ExpectedAnswer
}

func TestRequestChallenge_IssuesPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	issued, err := f.service.RequestChallenge(ctx, member, group)
	require.NoError(t, err)

	assert.NotEmpty(t, issued.Question)
	assert.Len(t, issued.Choices, challenge.ChoiceCount)
	assert.Equal(t, f.now.Add(5*time.Minute), issued.ExpiresAt)
	assert.Len(t, f.scheduled, 1, "timeout cleanup must be scheduled")

	record, err := f.store.GetMember(ctx, member, group)
	require.NoError(t, err)
	assert.Equal(t, verification.StatePending, record.State)

	assert.Contains(t, issued.Choices, f.pendingAnswer(t))
}

func TestRequestChallenge_AlreadyVerified(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.MarkVerified(ctx, member, group, f.now))

	_, err := f.service.RequestChallenge(ctx, member, group)

	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeAlreadyVerified))
	_, err = f.store.GetPending(ctx, member, group)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestRequestChallenge_DoubleRequestOverwrites(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.RequestChallenge(ctx, member, group)
	require.NoError(t, err)

	f.now = f.now.Add(time.Minute)
	_, err = f.service.RequestChallenge(ctx, member, group)
	require.NoError(t, err)

	// Still exactly one live pending challenge, carrying the fresh issuance.
	pending, err := f.store.GetPending(ctx, member, group)
	require.NoError(t, err)
	assert.Equal(t, f.now.Truncate(time.Microsecond), pending.IssuedAt)
}

func TestSubmitAnswer_CorrectVerifies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.service.RequestChallenge(ctx, member, group)
	require.NoError(t, err)

	outcome, err := f.service.SubmitAnswer(ctx, member, group, f.pendingAnswer(t))
	require.NoError(t, err)
	assert.Equal(t, verification.OutcomeVerified, outcome)

	record, err := f.store.GetMember(ctx, member, group)
	require.NoError(t, err)
	assert.Equal(t, verification.StateVerified, record.State)
	assert.Equal(t, f.now.UTC(), record.LastActivity)

	_, err = f.store.GetPending(ctx, member, group)
	assert.ErrorIs(t, err, sentinel.ErrNotFound, "no residual pending challenge")

	granted, err := f.mirror.GrantedRoles(ctx, member, group)
	require.NoError(t, err)
	assert.True(t, granted.Has("role-verified"))
	assert.True(t, granted.Has("role-member"))
	assert.False(t, granted.Has("role-unverified"))
}

func TestSubmitAnswer_IncorrectRejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.service.RequestChallenge(ctx, member, group)
	require.NoError(t, err)
	wrong := f.pendingAnswer(t) + 1

	outcome, err := f.service.SubmitAnswer(ctx, member, group, wrong)
	require.NoError(t, err)
	assert.Equal(t, verification.OutcomeRejected, outcome)

	record, err := f.store.GetMember(ctx, member, group)
	require.NoError(t, err)
	assert.Equal(t, verification.StateUnverified, record.State)

	// The challenge is destroyed: no retry in place against the same answer.
	_, err = f.store.GetPending(ctx, member, group)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	assert.Zero(t, f.mirror.MutationCount(), "rejection never touches roles")
}

func TestSubmitAnswer_NoChallenge(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.SubmitAnswer(context.Background(), member, group, 42)

	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNoChallenge))
}

func TestSubmitAnswer_AlreadyVerified(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.service.RequestChallenge(ctx, member, group)
	require.NoError(t, err)
	_, err = f.service.SubmitAnswer(ctx, member, group, f.pendingAnswer(t))
	require.NoError(t, err)
	mutations := f.mirror.MutationCount()

	// Verification destroyed the challenge, so a stray late answer has
	// nothing to match against.
	_, err = f.service.SubmitAnswer(ctx, member, group, 42)

	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNoChallenge))

	record, err := f.store.GetMember(ctx, member, group)
	require.NoError(t, err)
	assert.Equal(t, verification.StateVerified, record.State)
	assert.Equal(t, mutations, f.mirror.MutationCount(), "late answer never touches roles")
}

func TestSubmitAnswer_MirrorFailureStillVerifies(t *testing.T) {
	// Store commit is the authority; a failed grant is drift for the
	// reconciler, not a user-visible failure.
	ctrl := gomock.NewController(t)
	mirror := mocks.NewMockMirror(ctrl)
	store := verification.NewInMemoryStore()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	service := verification.NewService(
		store,
		mirror,
		challenge.NewGenerator(),
		roles,
		5*time.Minute,
		testLogger(),
		verificationMetrics,
		verification.WithClock(func() time.Time { return now }),
		verification.WithScheduler(func(time.Duration, func()) {}),
	)

	ctx := context.Background()
	_, err := service.RequestChallenge(ctx, member, group)
	require.NoError(t, err)
	pending, err := store.GetPending(ctx, member, group)
	require.NoError(t, err)

	mirror.EXPECT().RevokeRole(gomock.Any(), member, group, domain.RoleID("role-unverified")).Return(assert.AnError)
	mirror.EXPECT().GrantRole(gomock.Any(), member, group, gomock.Any()).Return(assert.AnError).Times(2)

	outcome, err := service.SubmitAnswer(ctx, member, group, pending.ExpectedAnswer)
	require.NoError(t, err)
	assert.Equal(t, verification.OutcomeVerified, outcome)

	record, err := store.GetMember(ctx, member, group)
	require.NoError(t, err)
	assert.Equal(t, verification.StateVerified, record.State)
}

func TestChallengeTimeout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.service.RequestChallenge(ctx, member, group)
	require.NoError(t, err)
	require.Len(t, f.scheduled, 1)

	f.scheduled[0]()

	record, err := f.store.GetMember(ctx, member, group)
	require.NoError(t, err)
	assert.Equal(t, verification.StateUnverified, record.State)
	_, err = f.store.GetPending(ctx, member, group)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	// A fresh request after timeout issues a new question.
	issued, err := f.service.RequestChallenge(ctx, member, group)
	require.NoError(t, err)
	assert.NotEmpty(t, issued.Question)
}

func TestChallengeTimeout_AfterResolutionIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.service.RequestChallenge(ctx, member, group)
	require.NoError(t, err)
	require.Len(t, f.scheduled, 1)

	outcome, err := f.service.SubmitAnswer(ctx, member, group, f.pendingAnswer(t))
	require.NoError(t, err)
	require.Equal(t, verification.OutcomeVerified, outcome)

	// The deferred cleanup finds no matching row; verification stands.
	f.scheduled[0]()

	record, err := f.store.GetMember(ctx, member, group)
	require.NoError(t, err)
	assert.Equal(t, verification.StateVerified, record.State)
}

func TestChallengeTimeout_AfterReissueIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.service.RequestChallenge(ctx, member, group)
	require.NoError(t, err)

	f.now = f.now.Add(time.Minute)
	_, err = f.service.RequestChallenge(ctx, member, group)
	require.NoError(t, err)
	require.Len(t, f.scheduled, 2)

	// The first challenge's cleanup fires after re-issue: its issuance time
	// no longer matches, so the fresh challenge survives.
	f.scheduled[0]()

	_, err = f.store.GetPending(ctx, member, group)
	assert.NoError(t, err)
}

func TestMemberJoined_GrantsMarkerOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mirror.AddMember(group, gateway.Member{ID: member})

	require.NoError(t, f.service.MemberJoined(ctx, member, group))
	require.NoError(t, f.service.MemberJoined(ctx, member, group))

	assert.Equal(t, 1, f.mirror.Grants, "marker granted only on first observation")
	record, err := f.store.GetMember(ctx, member, group)
	require.NoError(t, err)
	assert.Equal(t, verification.StateUnverified, record.State)
}

func TestMemberLeft_PurgesRecords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.service.RequestChallenge(ctx, member, group)
	require.NoError(t, err)

	require.NoError(t, f.service.MemberLeft(ctx, member, group))

	_, err = f.store.GetMember(ctx, member, group)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	_, err = f.store.GetPending(ctx, member, group)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}
