package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gomodule/redigo/redis"
	"go.uber.org/zap"

	"github.com/simplesurance/mergekeeper/internal/logfields"
	"github.com/simplesurance/mergekeeper/internal/mkerr"
)

const redisDialTimeout = 10 * time.Second

// RedisConfig configures the connection to a redis server.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisStore is a Store that stores the data in redis.
// String values are stored via SET, lists via RPUSH.
type RedisStore struct {
	pool   *redis.Pool
	logger *zap.Logger
}

var _ Store = &RedisStore{}

func NewRedisStore(cfg RedisConfig) *RedisStore {
	return &RedisStore{
		pool: &redis.Pool{
			MaxIdle:     2,
			IdleTimeout: 5 * time.Minute,
			DialContext: func(ctx context.Context) (redis.Conn, error) {
				return redis.DialContext(
					ctx,
					"tcp",
					cfg.Addr,
					redis.DialPassword(cfg.Password),
					redis.DialDatabase(cfg.DB),
					redis.DialConnectTimeout(redisDialTimeout),
				)
			},
		},
		logger: zap.L().Named("redis_store").With(zap.String("redis.addr", cfg.Addr)),
	}
}

func (s *RedisStore) do(ctx context.Context, cmd string, args ...interface{}) (interface{}, error) {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return nil, mkerr.NewRetryableAnytimeError(fmt.Errorf("connecting to redis failed: %w", err))
	}
	defer conn.Close()

	reply, err := redis.DoContext(conn, ctx, cmd, args...)
	if err != nil {
		var redisErr redis.Error
		if errors.As(err, &redisErr) {
			return nil, fmt.Errorf("redis %s failed: %w", cmd, err)
		}

		return nil, mkerr.NewRetryableAnytimeError(fmt.Errorf("redis %s failed: %w", cmd, err))
	}

	s.logger.Debug(
		"redis command executed",
		logfields.Event("redis_command_executed"),
		zap.String("redis.command", cmd),
		zap.Any("redis.args", args),
	)

	return reply, nil
}

func (s *RedisStore) Put(ctx context.Context, key, val string) error {
	_, err := s.do(ctx, "SET", key, val)
	return err
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := redis.String(s.do(ctx, "GET", key))
	if err != nil {
		if errors.Is(err, redis.ErrNil) {
			return "", false, nil
		}

		return "", false, err
	}

	return val, true, nil
}

func (s *RedisStore) AppendToList(ctx context.Context, key, val string) error {
	_, err := s.do(ctx, "RPUSH", key, val)
	return err
}

func (s *RedisStore) List(ctx context.Context, key string) ([]string, error) {
	vals, err := redis.Strings(s.do(ctx, "LRANGE", key, 0, -1))
	if err != nil {
		if errors.Is(err, redis.ErrNil) {
			return nil, nil
		}

		return nil, err
	}

	return vals, nil
}

func (s *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	_, err := s.do(ctx, "EXPIRE", key, int64(ttl.Seconds()))
	return err
}

func (s *RedisStore) Close() error {
	return s.pool.Close()
}
