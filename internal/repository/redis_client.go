package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"hirepal/internal/domain"
	"hirepal/internal/session"
)

const defaultKeyPrefix = "hirepal:session:"

// appendScript pushes turns only while the meta key exists and refreshes both
// TTLs in the same step. KEYS: meta, turns. ARGV: ttl millis, turns...
// Returns -1 for a missing session, else the new list length.
const appendScript = `
if redis.call('EXISTS', KEYS[1]) == 0 then
  return -1
end
local n = 0
for i = 2, #ARGV do
  n = redis.call('RPUSH', KEYS[2], ARGV[i])
end
local ttl = tonumber(ARGV[1])
if ttl > 0 then
  redis.call('PEXPIRE', KEYS[1], ttl)
  redis.call('PEXPIRE', KEYS[2], ttl)
end
return n
`

// redisAPI is the subset of *redis.Client used by RedisRegistry.
type redisAPI interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisRegistry keeps each session as a marker key plus a list of JSON
// encoded turns. Both keys share a sliding TTL.
type RedisRegistry struct {
	client redisAPI
	prefix string
	ttl    time.Duration
}

var _ session.Registry = (*RedisRegistry)(nil)

// NewRedisRegistry wraps a connected client. A non-positive ttl disables expiry.
func NewRedisRegistry(client redisAPI, prefix string, ttl time.Duration) (*RedisRegistry, error) {
	if client == nil {
		return nil, errors.New("repository: redis client must not be nil")
	}
	if strings.TrimSpace(prefix) == "" {
		prefix = defaultKeyPrefix
	}
	if ttl < 0 {
		ttl = 0
	}
	return &RedisRegistry{client: client, prefix: prefix, ttl: ttl}, nil
}

// ConnectRedis dials Redis and pings it with exponential backoff.
func ConnectRedis(ctx context.Context, addr, password string, db, maxRetries int, log *zap.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:            addr,
		Password:        password,
		DB:              db,
		MaxRetries:      3,
		MinRetryBackoff: 8 * time.Millisecond,
		MaxRetryBackoff: 512 * time.Millisecond,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     3 * time.Second,
		WriteTimeout:    3 * time.Second,
	})
	if maxRetries <= 0 {
		maxRetries = 1
	}

	var err error
	for i := 0; i < maxRetries; i++ {
		if i > 0 {
			backoff := time.Duration(1<<uint(i)) * time.Second
			log.Info("waiting before redis retry", zap.Duration("backoff", backoff))
			select {
			case <-ctx.Done():
				_ = client.Close()
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
		if err = client.Ping(ctx).Err(); err == nil {
			log.Info("redis connected", zap.String("addr", addr), zap.Int("attempts", i+1))
			return client, nil
		}
		log.Warn("redis ping failed", zap.Error(err), zap.Int("attempt", i+1))
	}
	_ = client.Close()
	return nil, fmt.Errorf("repository: connect redis after %d attempts: %w", maxRetries, err)
}

func (r *RedisRegistry) metaKey(id string) string  { return r.prefix + id + ":meta" }
func (r *RedisRegistry) turnsKey(id string) string { return r.prefix + id + ":turns" }

func (r *RedisRegistry) Create(ctx context.Context) (string, error) {
	for attempt := 0; attempt < 3; attempt++ {
		id := session.NewID()
		ok, err := r.client.SetNX(ctx, r.metaKey(id), time.Now().UTC().Format(time.RFC3339Nano), r.ttl).Result()
		if err != nil {
			return "", fmt.Errorf("repository: redis Create: %w", err)
		}
		if ok {
			return id, nil
		}
	}
	return "", errors.New("repository: redis Create: could not allocate a unique id")
}

func (r *RedisRegistry) Append(ctx context.Context, sessionID string, turns ...domain.Turn) error {
	if len(turns) == 0 {
		return nil
	}
	if strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("repository: redis Append: %w", session.ErrNotFound)
	}

	args := make([]interface{}, 0, len(turns)+1)
	args = append(args, r.ttl.Milliseconds())
	for _, t := range turns {
		raw, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("repository: redis Append marshal: %w", err)
		}
		args = append(args, string(raw))
	}
	n, err := r.client.Eval(ctx, appendScript, []string{r.metaKey(sessionID), r.turnsKey(sessionID)}, args...).Int64()
	if err != nil {
		return fmt.Errorf("repository: redis Append: %w", err)
	}
	if n < 0 {
		return fmt.Errorf("repository: redis Append: %w", session.ErrNotFound)
	}
	return nil
}

func (r *RedisRegistry) History(ctx context.Context, sessionID string) ([]domain.Turn, error) {
	if err := r.ensureExists(ctx, sessionID); err != nil {
		return nil, fmt.Errorf("repository: redis History: %w", err)
	}
	raw, err := r.client.LRange(ctx, r.turnsKey(sessionID), 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("repository: redis History: %w", err)
	}
	turns := make([]domain.Turn, 0, len(raw))
	for _, s := range raw {
		var t domain.Turn
		if err := json.Unmarshal([]byte(s), &t); err != nil {
			return nil, fmt.Errorf("repository: redis History unmarshal: %w", err)
		}
		turns = append(turns, t)
	}
	return turns, nil
}

func (r *RedisRegistry) Expire(ctx context.Context, sessionID string) error {
	if err := r.ensureExists(ctx, sessionID); err != nil {
		return fmt.Errorf("repository: redis Expire: %w", err)
	}
	if err := r.client.Del(ctx, r.metaKey(sessionID), r.turnsKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("repository: redis Expire: %w", err)
	}
	return nil
}

func (r *RedisRegistry) ensureExists(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return session.ErrNotFound
	}
	n, err := r.client.Exists(ctx, r.metaKey(sessionID)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return session.ErrNotFound
	}
	return nil
}
