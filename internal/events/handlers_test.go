package events

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatekeeper/internal/challenge"
	"gatekeeper/internal/gateway"
	"gatekeeper/internal/platform/kafka/consumer"
	"gatekeeper/internal/verification"
	"gatekeeper/internal/verification/metrics"
	"gatekeeper/pkg/domain"
)

var serviceMetrics = metrics.New()

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordedActivity struct {
	mu    sync.Mutex
	calls []verification.MemberKey
}

func (r *recordedActivity) Record(member domain.MemberID, group domain.GroupID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, verification.MemberKey{MemberID: member, GroupID: group})
}

func newService(t *testing.T) (*verification.Service, *verification.InMemoryStore) {
	t.Helper()
	store := verification.NewInMemoryStore()
	service := verification.NewService(
		store,
		gateway.NewFakeMirror(),
		challenge.NewGenerator(),
		verification.RoleConfig{VerifiedRoles: []domain.RoleID{"role-verified"}},
		5*time.Minute,
		testLogger(),
		serviceMetrics,
		verification.WithScheduler(func(time.Duration, func()) {}),
	)
	return service, store
}

func msg(topic, value string) *consumer.Message {
	return &consumer.Message{Topic: topic, Value: []byte(value)}
}

func TestRouter_DispatchesByTopic(t *testing.T) {
	service, store := newService(t)
	router := NewRouter(testLogger())
	router.Register("gateway.member-joined", NewMemberJoinedHandler(service, testLogger()))

	err := router.Handle(context.Background(), msg("gateway.member-joined",
		`{"member_id":"1001","group_id":"2001"}`))
	require.NoError(t, err)

	record, err := store.GetMember(context.Background(), "1001", "2001")
	require.NoError(t, err)
	assert.Equal(t, verification.StateUnverified, record.State)
}

func TestRouter_UnroutableTopicIsCommitted(t *testing.T) {
	router := NewRouter(testLogger())

	err := router.Handle(context.Background(), msg("gateway.unknown", `{}`))

	assert.NoError(t, err, "unroutable messages must be committed, not redelivered")
}

func TestMemberJoinedHandler_SkipsBotsAndMalformed(t *testing.T) {
	service, store := newService(t)
	handler := NewMemberJoinedHandler(service, testLogger())
	ctx := context.Background()

	require.NoError(t, handler.Handle(ctx, msg("t", `{"member_id":"9","group_id":"2001","is_bot":true}`)))
	require.NoError(t, handler.Handle(ctx, msg("t", `not json`)))

	_, err := store.GetMember(ctx, "9", "2001")
	assert.Error(t, err)
}

func TestMemberLeftHandler_Purges(t *testing.T) {
	service, store := newService(t)
	ctx := context.Background()
	_, err := store.EnsureMember(ctx, "1001", "2001", time.Now())
	require.NoError(t, err)

	handler := NewMemberLeftHandler(service, testLogger())
	require.NoError(t, handler.Handle(ctx, msg("t", `{"member_id":"1001","group_id":"2001"}`)))

	_, err = store.GetMember(ctx, "1001", "2001")
	assert.Error(t, err)
}

func TestTrafficHandler_RecordsHumansOnly(t *testing.T) {
	rec := &recordedActivity{}
	handler := NewTrafficHandler(rec, testLogger())
	ctx := context.Background()

	require.NoError(t, handler.Handle(ctx, msg("t", `{"member_id":"1001","group_id":"2001"}`)))
	require.NoError(t, handler.Handle(ctx, msg("t", `{"member_id":"7","group_id":"2001","is_bot":true}`)))

	require.Len(t, rec.calls, 1)
	assert.Equal(t, domain.MemberID("1001"), rec.calls[0].MemberID)
}

func TestInteractionHandler_FullChallengeFlow(t *testing.T) {
	service, store := newService(t)
	responder := gateway.NewFakeResponder()
	handler := NewInteractionHandler(service, responder, testLogger())
	ctx := context.Background()

	start := `{"interaction_id":"i1","member_id":"1001","group_id":"2001","custom_id":"verify:start"}`
	require.NoError(t, handler.Handle(ctx, msg("t", start)))

	require.Len(t, responder.Replies["i1"], 1)
	assert.True(t, strings.HasPrefix(responder.Replies["i1"][0], "What is "))

	pending, err := store.GetPending(ctx, "1001", "2001")
	require.NoError(t, err)

	answer := fmt.Sprintf(
		`{"interaction_id":"i2","member_id":"1001","group_id":"2001","custom_id":"verify:answer:%d"}`,
		pending.ExpectedAnswer,
	)
	require.NoError(t, handler.Handle(ctx, msg("t", answer)))

	require.Len(t, responder.Replies["i2"], 1)
	assert.Equal(t, "correct, you are verified", responder.Replies["i2"][0])

	record, err := store.GetMember(ctx, "1001", "2001")
	require.NoError(t, err)
	assert.Equal(t, verification.StateVerified, record.State)
}

func TestInteractionHandler_WrongAnswerReply(t *testing.T) {
	service, store := newService(t)
	responder := gateway.NewFakeResponder()
	handler := NewInteractionHandler(service, responder, testLogger())
	ctx := context.Background()

	start := `{"interaction_id":"i1","member_id":"1001","group_id":"2001","custom_id":"verify:start"}`
	require.NoError(t, handler.Handle(ctx, msg("t", start)))
	pending, err := store.GetPending(ctx, "1001", "2001")
	require.NoError(t, err)

	answer := fmt.Sprintf(
		`{"interaction_id":"i2","member_id":"1001","group_id":"2001","custom_id":"verify:answer:%d"}`,
		pending.ExpectedAnswer+1,
	)
	require.NoError(t, handler.Handle(ctx, msg("t", answer)))

	require.Len(t, responder.Replies["i2"], 1)
	assert.Contains(t, responder.Replies["i2"][0], "wrong answer")
}

func TestInteractionHandler_AnswerWithoutChallenge(t *testing.T) {
	service, _ := newService(t)
	responder := gateway.NewFakeResponder()
	handler := NewInteractionHandler(service, responder, testLogger())

	answer := `{"interaction_id":"i1","member_id":"1001","group_id":"2001","custom_id":"verify:answer:42"}`
	require.NoError(t, handler.Handle(context.Background(), msg("t", answer)))

	require.Len(t, responder.Replies["i1"], 1)
	assert.Contains(t, responder.Replies["i1"][0], "no active challenge")
}

func TestInboundTopics(t *testing.T) {
	topics := InboundTopics("gateway")

	assert.Len(t, topics, 6)
	assert.Contains(t, topics, "gateway.interaction")
	assert.Equal(t, "gateway.outbound", OutboundTopic("gateway"))
}
