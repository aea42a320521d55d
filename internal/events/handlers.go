package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"gatekeeper/internal/gateway"
	"gatekeeper/internal/platform/kafka/consumer"
	"gatekeeper/internal/verification"
	"gatekeeper/pkg/domain"
	dErrors "gatekeeper/pkg/domain-errors"
)

// Interaction custom-id actions.
const (
	actionStart        = "verify:start"
	actionAnswerPrefix = "verify:answer:"
)

// VerificationService is the slice of the state machine the event layer
// drives.
type VerificationService interface {
	RequestChallenge(ctx context.Context, member domain.MemberID, group domain.GroupID) (*verification.IssuedChallenge, error)
	SubmitAnswer(ctx context.Context, member domain.MemberID, group domain.GroupID, answer int) (verification.Outcome, error)
	MemberJoined(ctx context.Context, member domain.MemberID, group domain.GroupID) error
	MemberLeft(ctx context.Context, member domain.MemberID, group domain.GroupID) error
}

// ActivityRecorder is the non-blocking activity write path.
type ActivityRecorder interface {
	Record(member domain.MemberID, group domain.GroupID)
}

// MemberJoinedHandler records newly joined members as Unverified.
type MemberJoinedHandler struct {
	service VerificationService
	logger  *slog.Logger
}

func NewMemberJoinedHandler(service VerificationService, logger *slog.Logger) *MemberJoinedHandler {
	return &MemberJoinedHandler{service: service, logger: logger}
}

func (h *MemberJoinedHandler) Handle(ctx context.Context, msg *consumer.Message) error {
	var payload memberPayload
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		h.logger.Warn("malformed member-joined payload, skipping", "error", err)
		return nil
	}
	if payload.IsBot || payload.MemberID == "" || payload.GroupID == "" {
		return nil
	}
	return h.service.MemberJoined(ctx, domain.MemberID(payload.MemberID), domain.GroupID(payload.GroupID))
}

// MemberLeftHandler purges all records for departing members.
type MemberLeftHandler struct {
	service VerificationService
	logger  *slog.Logger
}

func NewMemberLeftHandler(service VerificationService, logger *slog.Logger) *MemberLeftHandler {
	return &MemberLeftHandler{service: service, logger: logger}
}

func (h *MemberLeftHandler) Handle(ctx context.Context, msg *consumer.Message) error {
	var payload memberPayload
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		h.logger.Warn("malformed member-left payload, skipping", "error", err)
		return nil
	}
	if payload.MemberID == "" || payload.GroupID == "" {
		return nil
	}
	return h.service.MemberLeft(ctx, domain.MemberID(payload.MemberID), domain.GroupID(payload.GroupID))
}

// TrafficHandler feeds messages, reactions, and voice-state changes into the
// activity recorder. One handler serves all three topics.
type TrafficHandler struct {
	recorder ActivityRecorder
	logger   *slog.Logger
}

func NewTrafficHandler(recorder ActivityRecorder, logger *slog.Logger) *TrafficHandler {
	return &TrafficHandler{recorder: recorder, logger: logger}
}

func (h *TrafficHandler) Handle(_ context.Context, msg *consumer.Message) error {
	var payload trafficPayload
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		h.logger.Debug("malformed traffic payload, skipping", "topic", msg.Topic, "error", err)
		return nil
	}
	if payload.IsBot || payload.MemberID == "" || payload.GroupID == "" {
		return nil
	}
	h.recorder.Record(domain.MemberID(payload.MemberID), domain.GroupID(payload.GroupID))
	return nil
}

// InteractionHandler resolves verify button clicks against the state
// machine and answers with a short caller-private message. Every rejection
// leaves prior state unchanged and explains itself; partial success is
// never shown as success.
type InteractionHandler struct {
	service   VerificationService
	responder gateway.Responder
	logger    *slog.Logger
}

func NewInteractionHandler(service VerificationService, responder gateway.Responder, logger *slog.Logger) *InteractionHandler {
	return &InteractionHandler{service: service, responder: responder, logger: logger}
}

func (h *InteractionHandler) Handle(ctx context.Context, msg *consumer.Message) error {
	var payload interactionPayload
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		h.logger.Warn("malformed interaction payload, skipping", "error", err)
		return nil
	}
	if payload.IsBot || payload.MemberID == "" || payload.GroupID == "" || payload.InteractionID == "" {
		return nil
	}

	member := domain.MemberID(payload.MemberID)
	group := domain.GroupID(payload.GroupID)

	var reply string
	switch {
	case payload.CustomID == actionStart:
		reply = h.startChallenge(ctx, member, group)
	case strings.HasPrefix(payload.CustomID, actionAnswerPrefix):
		reply = h.submitAnswer(ctx, member, group, strings.TrimPrefix(payload.CustomID, actionAnswerPrefix))
	default:
		h.logger.Debug("unknown interaction custom id, skipping", "custom_id", payload.CustomID)
		return nil
	}

	if err := h.responder.RespondEphemeral(ctx, payload.InteractionID, reply); err != nil {
		h.logger.Error("interaction response failed",
			"interaction_id", payload.InteractionID,
			"error", err,
		)
	}
	return nil
}

func (h *InteractionHandler) startChallenge(ctx context.Context, member domain.MemberID, group domain.GroupID) string {
	issued, err := h.service.RequestChallenge(ctx, member, group)
	if err != nil {
		return dErrors.MessageOf(err)
	}
	choices := make([]string, 0, len(issued.Choices))
	for _, c := range issued.Choices {
		choices = append(choices, strconv.Itoa(c))
	}
	return fmt.Sprintf("What is %s? Pick one: %s", issued.Question, strings.Join(choices, ", "))
}

func (h *InteractionHandler) submitAnswer(ctx context.Context, member domain.MemberID, group domain.GroupID, raw string) string {
	answer, err := strconv.Atoi(raw)
	if err != nil {
		return "that answer does not look valid, request a new challenge"
	}
	outcome, err := h.service.SubmitAnswer(ctx, member, group, answer)
	if err != nil {
		return dErrors.MessageOf(err)
	}
	if outcome == verification.OutcomeVerified {
		return "correct, you are verified"
	}
	return "wrong answer, request a new challenge to try again"
}
