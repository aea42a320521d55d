// Package admin exposes the operator surface: on-demand reconciliation and
// expiry sweeps, prompt posting, and health. Every /admin route sits behind
// the static-token middleware; health and metrics stay open for probes and
// scrapes.
package admin

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gatekeeper/internal/reconcile"
	"gatekeeper/pkg/domain"
	dErrors "gatekeeper/pkg/domain-errors"
	"gatekeeper/pkg/platform/httputil"
	adminmw "gatekeeper/pkg/platform/middleware/admin"
	request "gatekeeper/pkg/platform/middleware/request"
)

// defaultPrompt is posted when the operator does not supply custom content.
const defaultPrompt = "Verify you are human to unlock this space: click the button below and answer one quick question."

// Reconciler is the slice of the reconciliation engine the admin surface
// triggers.
type Reconciler interface {
	Reconcile(ctx context.Context, group domain.GroupID) (*reconcile.Report, error)
	ExpirySweep(ctx context.Context) (*reconcile.Report, error)
}

// Announcer posts the challenge-entry prompt into a channel.
type Announcer interface {
	PostPrompt(ctx context.Context, group domain.GroupID, channel domain.ChannelID, content string) error
}

// HealthChecker reports whether a backing dependency is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// HealthCheckFunc adapts a plain function to HealthChecker.
type HealthCheckFunc func(ctx context.Context) error

func (f HealthCheckFunc) Ping(ctx context.Context) error { return f(ctx) }

type promptRequest struct {
	ChannelID string `json:"channel_id"`
	Content   string `json:"content"`
}

type reportResponse struct {
	Audited  int `json:"audited"`
	Repaired int `json:"repaired"`
	Failed   int `json:"failed"`
}

// Handler serves the operator endpoints.
type Handler struct {
	logger     *slog.Logger
	engine     Reconciler
	announcer  Announcer
	adminToken string
	checks     map[string]HealthChecker
}

func New(engine Reconciler, announcer Announcer, adminToken string, checks map[string]HealthChecker, logger *slog.Logger) *Handler {
	return &Handler{
		logger:     logger,
		engine:     engine,
		announcer:  announcer,
		adminToken: adminToken,
		checks:     checks,
	}
}

// Register mounts the admin, health, and metrics routes.
func (h *Handler) Register(r chi.Router) {
	r.Use(request.RequestID)

	r.Get("/healthz", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/admin", func(r chi.Router) {
		r.Use(adminmw.RequireAdminToken(h.adminToken, h.logger))
		r.Post("/groups/{groupID}/reconcile", h.handleReconcile)
		r.Post("/groups/{groupID}/prompt", h.handlePrompt)
		r.Post("/sweep", h.handleSweep)
	})
}

func (h *Handler) handleReconcile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	group, err := domain.ParseGroupID(chi.URLParam(r, "groupID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	report, err := h.engine.Reconcile(ctx, group)
	if err != nil {
		h.logger.ErrorContext(ctx, "manual reconciliation failed",
			"request_id", request.GetRequestID(ctx),
			"group_id", group,
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "reconciliation failed"))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, reportResponse{
		Audited:  report.Audited,
		Repaired: report.Repaired,
		Failed:   report.Failed,
	})
}

func (h *Handler) handleSweep(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	report, err := h.engine.ExpirySweep(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "manual expiry sweep failed",
			"request_id", request.GetRequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "expiry sweep failed"))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, reportResponse{
		Audited:  report.Audited,
		Repaired: report.Repaired,
		Failed:   report.Failed,
	})
}

func (h *Handler) handlePrompt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	group, err := domain.ParseGroupID(chi.URLParam(r, "groupID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, err := httputil.DecodeJSON[promptRequest](r)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	if req.ChannelID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "channel_id is required"))
		return
	}
	content := req.Content
	if content == "" {
		content = defaultPrompt
	}

	if err := h.announcer.PostPrompt(ctx, group, domain.ChannelID(req.ChannelID), content); err != nil {
		h.logger.ErrorContext(ctx, "prompt post failed",
			"request_id", request.GetRequestID(ctx),
			"group_id", group,
			"channel_id", req.ChannelID,
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "prompt post failed"))
		return
	}

	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "posted"})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := http.StatusOK
	deps := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check.Ping(ctx); err != nil {
			deps[name] = "unreachable"
			status = http.StatusServiceUnavailable
			h.logger.WarnContext(ctx, "health check failed", "dependency", name, "error", err)
			continue
		}
		deps[name] = "ok"
	}

	httputil.WriteJSON(w, status, map[string]any{
		"status":       healthWord(status),
		"dependencies": deps,
	})
}

func healthWord(status int) string {
	if status == http.StatusOK {
		return "ok"
	}
	return "degraded"
}
