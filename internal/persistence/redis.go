package persistence

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/login-api/internal/config"
)

// Redis holds the client used by the login attempt limiter.
type Redis struct {
	Client *redis.Client
}

// NewRedis builds the limiter client. An empty address disables it, which
// turns login throttling off. An unreachable server is only logged: the
// limiter fails open and the readiness probe reports the outage.
func NewRedis(cfg config.RedisConfig, logger *zap.Logger) *Redis {
	if cfg.Addr == "" {
		logger.Warn("REDIS_ADDR empty; login throttling disabled")
		return &Redis{}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), startupProbeTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("limiter store unreachable", zap.String("addr", cfg.Addr), zap.Error(err))
	} else {
		logger.Info("limiter store connected", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))
	}
	return &Redis{Client: client}
}

func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}

// Ping backs the readiness probe.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return ErrNotConfigured
	}
	return r.Client.Ping(ctx).Err()
}

// LimiterClient returns the client, or nil when throttling is disabled.
func (r *Redis) LimiterClient() *redis.Client {
	if r == nil {
		return nil
	}
	return r.Client
}
