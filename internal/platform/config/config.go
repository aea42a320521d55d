package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"gatekeeper/pkg/domain"
	platformstrings "gatekeeper/pkg/platform/strings"
)

// Config captures process-level configuration so main stays lean.
type Config struct {
	Addr       string `env:"GATEKEEPER_ADDR" envDefault:":8080"`
	AdminToken string `env:"ADMIN_TOKEN,required"`

	DatabaseURL string `env:"DATABASE_URL,required"`
	RedisURL    string `env:"REDIS_URL"`

	MirrorBaseURL string `env:"MIRROR_BASE_URL,required"`
	MirrorToken   string `env:"MIRROR_TOKEN"`

	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaGroupID string   `env:"KAFKA_GROUP_ID" envDefault:"gatekeeper"`
	TopicPrefix  string   `env:"KAFKA_TOPIC_PREFIX" envDefault:"gateway"`

	// Role grants applied on verification success, and the optional marker
	// role carried while a member is not yet verified.
	VerifiedRoleIDs []string `env:"VERIFIED_ROLE_IDS" envSeparator:","`
	UnverifiedRole  string   `env:"UNVERIFIED_ROLE_ID"`

	InactivityThresholdDays int `env:"INACTIVITY_THRESHOLD_DAYS" envDefault:"30"`
	ChallengeTimeoutSeconds int `env:"CHALLENGE_TIMEOUT_SECONDS" envDefault:"300"`
}

// FromEnv builds a Config from environment variables.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.VerifiedRoleIDs = platformstrings.DedupeAndTrim(cfg.VerifiedRoleIDs)
	if len(cfg.VerifiedRoleIDs) == 0 {
		return Config{}, fmt.Errorf("VERIFIED_ROLE_IDS must list at least one role")
	}
	if cfg.InactivityThresholdDays <= 0 {
		return Config{}, fmt.Errorf("INACTIVITY_THRESHOLD_DAYS must be positive")
	}
	if cfg.ChallengeTimeoutSeconds <= 0 {
		return Config{}, fmt.Errorf("CHALLENGE_TIMEOUT_SECONDS must be positive")
	}
	return cfg, nil
}

// VerifiedRoles returns the verified role grants as typed IDs.
func (c Config) VerifiedRoles() []domain.RoleID {
	roles := make([]domain.RoleID, 0, len(c.VerifiedRoleIDs))
	for _, r := range c.VerifiedRoleIDs {
		roles = append(roles, domain.RoleID(r))
	}
	return roles
}

// UnverifiedRoleID returns the marker role, or empty when not configured.
func (c Config) UnverifiedRoleID() domain.RoleID {
	return domain.RoleID(c.UnverifiedRole)
}

// InactivityThreshold returns the expiry threshold as a duration.
func (c Config) InactivityThreshold() time.Duration {
	return time.Duration(c.InactivityThresholdDays) * 24 * time.Hour
}

// ChallengeTimeout returns the pending-challenge lifetime.
func (c Config) ChallengeTimeout() time.Duration {
	return time.Duration(c.ChallengeTimeoutSeconds) * time.Second
}
