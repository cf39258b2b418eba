package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"github.com/jhoicas/inventario-wac/internal/application/inventory"
	"github.com/jhoicas/inventario-wac/internal/domain"
	"github.com/jhoicas/inventario-wac/pkg/config"
	"github.com/jhoicas/inventario-wac/pkg/logger"
)

var _ inventory.ScopeLocker = (*RedisScopeLocker)(nil)

const keyPrefix = "wac:lock:"

// RedisScopeLocker lock distribuido por scope con bsm/redislock.
// El TTL debe superar el plazo de la transacción del motor: si el proceso muere, el lock expira solo.
type RedisScopeLocker struct {
	client *redislock.Client
	log    *logger.Logger
	wait   time.Duration
	retry  time.Duration
	ttl    time.Duration
}

// NewRedisClient abre el cliente Redis y verifica la conexión.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}

// NewRedisScopeLocker construye el locker sobre un cliente ya conectado.
func NewRedisScopeLocker(rdb redis.UniversalClient, cfg config.EngineConfig, log *logger.Logger) *RedisScopeLocker {
	if log == nil {
		log = logger.Nop()
	}
	return &RedisScopeLocker{
		client: redislock.New(rdb),
		log:    log.Component("redis_lock"),
		wait:   cfg.LockWait,
		retry:  cfg.LockRetry,
		ttl:    cfg.LockTTL,
	}
}

// Lock reintenta con backoff lineal hasta obtener el lock o agotar la espera.
func (l *RedisScopeLocker) Lock(ctx context.Context, key string) (func(), error) {
	waitCtx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	lk, err := l.client.Obtain(waitCtx, keyPrefix+key, l.ttl, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(l.retry),
	})
	switch {
	case err == nil:
	case errors.Is(err, redislock.ErrNotObtained), errors.Is(err, context.DeadlineExceeded):
		return nil, fmt.Errorf("%w: lock de %s no obtenido en %s", domain.ErrEngineBusy, key, l.wait)
	default:
		return nil, fmt.Errorf("%w: redis: %w", domain.ErrEngineBusy, err)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			relCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := lk.Release(relCtx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
				l.log.Warn().Err(err).Str("scope", key).Msg("no se pudo liberar el lock; expirará por TTL")
			}
		})
	}, nil
}
