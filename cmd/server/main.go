// Command server runs the verification gatekeeper: the Kafka event consumer,
// the reconciliation scheduler, the activity flusher, and the admin HTTP
// surface share one process and shut down together.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"gatekeeper/internal/activity"
	"gatekeeper/internal/admin"
	"gatekeeper/internal/challenge"
	"gatekeeper/internal/events"
	"gatekeeper/internal/gateway"
	"gatekeeper/internal/platform/config"
	"gatekeeper/internal/platform/httpserver"
	kafkaadmin "gatekeeper/internal/platform/kafka/admin"
	"gatekeeper/internal/platform/kafka/consumer"
	"gatekeeper/internal/platform/logger"
	"gatekeeper/internal/platform/postgres"
	"gatekeeper/internal/platform/redis"
	"gatekeeper/internal/reconcile"
	reconcileMetrics "gatekeeper/internal/reconcile/metrics"
	"gatekeeper/internal/verification"
	verificationMetrics "gatekeeper/internal/verification/metrics"
)

const (
	activityQueueDepth  = 4096
	activityFlushEvery  = time.Minute
	sweepEvery          = 24 * time.Hour
	shutdownGracePeriod = 10 * time.Second
)

func main() {
	log := logger.New()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Error("configuration invalid", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage.
	db, err := postgres.Open(ctx, cfg.DatabaseURL, log)
	if err != nil {
		log.Error("postgres unavailable", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	store := verification.NewPostgresStore(db)
	if err := store.EnsureSchema(ctx); err != nil {
		log.Error("schema migration failed", "error", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.RedisURL)
	if err != nil {
		log.Error("redis unavailable", "error", err)
		os.Exit(1)
	}

	// Outbound surfaces.
	mirror := gateway.NewHTTPMirror(cfg.MirrorBaseURL, cfg.MirrorToken, log)

	outbound, err := gateway.NewKafkaOutbound(cfg.KafkaBrokers, events.OutboundTopic(cfg.TopicPrefix), log)
	if err != nil {
		log.Error("kafka producer init failed", "error", err)
		os.Exit(1)
	}
	defer outbound.Close()

	topics := append(events.InboundTopics(cfg.TopicPrefix), events.OutboundTopic(cfg.TopicPrefix))
	if err := kafkaadmin.EnsureTopics(ctx, cfg.KafkaBrokers, topics...); err != nil {
		log.Error("topic setup failed", "error", err)
		os.Exit(1)
	}

	// Core services.
	roles := verification.RoleConfig{
		VerifiedRoles:  cfg.VerifiedRoles(),
		UnverifiedRole: cfg.UnverifiedRoleID(),
	}

	service := verification.NewService(
		store,
		mirror,
		challenge.NewGenerator(),
		roles,
		cfg.ChallengeTimeout(),
		log,
		verificationMetrics.New(),
	)

	engine := reconcile.New(
		store,
		mirror,
		roles,
		cfg.InactivityThreshold(),
		log,
		reconcileMetrics.New(),
	)
	scheduler := reconcile.NewScheduler(engine, sweepEvery, log)

	var buffer activity.Buffer
	if redisClient != nil {
		buffer = activity.NewRedisBuffer(redisClient.Client)
	} else {
		log.Warn("redis not configured, activity buffer is process-local")
		buffer = activity.NewMemoryBuffer()
	}
	recorder := activity.NewRecorder(buffer, activityQueueDepth, log)
	flusher := activity.NewFlusher(buffer, store, activityFlushEvery, log)

	// Event consumption.
	router := events.NewRouter(log)
	router.Register(cfg.TopicPrefix+"."+events.TopicMemberJoined, events.NewMemberJoinedHandler(service, log))
	router.Register(cfg.TopicPrefix+"."+events.TopicMemberLeft, events.NewMemberLeftHandler(service, log))
	router.Register(cfg.TopicPrefix+"."+events.TopicInteraction, events.NewInteractionHandler(service, outbound, log))
	traffic := events.NewTrafficHandler(recorder, log)
	for _, topic := range []string{events.TopicMessageSent, events.TopicReactionAdded, events.TopicVoiceStateChanged} {
		router.Register(cfg.TopicPrefix+"."+topic, traffic)
	}

	kafkaConsumer, err := consumer.New(cfg.KafkaBrokers, cfg.KafkaGroupID, events.InboundTopics(cfg.TopicPrefix), router, log)
	if err != nil {
		log.Error("kafka consumer init failed", "error", err)
		os.Exit(1)
	}
	defer kafkaConsumer.Close()

	// Admin surface.
	checks := map[string]admin.HealthChecker{
		"postgres": admin.HealthCheckFunc(db.PingContext),
	}
	if redisClient != nil {
		checks["redis"] = admin.HealthCheckFunc(redisClient.Health)
	}

	mux := chi.NewRouter()
	admin.New(engine, outbound, cfg.AdminToken, checks, log).Register(mux)
	srv := httpserver.New(cfg.Addr, mux)

	// One startup audit repairs drift accumulated while we were down.
	go func() {
		if err := engine.ReconcileAll(ctx); err != nil {
			log.Error("startup reconciliation failed", "error", err)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return kafkaConsumer.Run(gctx) })
	g.Go(func() error { return recorder.Run(gctx) })
	g.Go(func() error { return flusher.Run(gctx) })
	g.Go(func() error { return scheduler.Run(gctx) })
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	log.Info("gatekeeper started", "addr", cfg.Addr, "topic_prefix", cfg.TopicPrefix)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("gatekeeper exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("gatekeeper stopped")
}
