package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/xraph/fieldgate"
	"github.com/xraph/fieldgate/permission"
)

// Compile-time interface check.
var _ fieldgate.Cache = (*Redis)(nil)

// Redis caches module entries in Redis so several engine processes share
// one cache. Values are JSON arrays of entries stored under
// "<prefix>entries:<module>". Generations live in Redis too, as the sum of
// "<prefix>version:<module>" and "<prefix>epoch", so a fill from one
// process is refused after an invalidation from any other.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// RedisOption configures the Redis cache.
type RedisOption func(*Redis)

// WithRedisTTL sets how long a module's entries stay cached.
func WithRedisTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) { r.ttl = ttl }
}

// WithKeyPrefix sets the key namespace. Defaults to "fieldgate:".
func WithKeyPrefix(prefix string) RedisOption {
	return func(r *Redis) { r.prefix = prefix }
}

// WithRedisLogger sets the logger used for Redis failures.
func WithRedisLogger(l *slog.Logger) RedisOption {
	return func(r *Redis) { r.logger = l }
}

// NewRedis wraps an existing client.
func NewRedis(client *redis.Client, opts ...RedisOption) *Redis {
	r := &Redis{
		client: client,
		prefix: "fieldgate:",
		ttl:    5 * time.Minute,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewRedisFromURL connects to the Redis server at url (redis://...) and
// checks connectivity.
func NewRedisFromURL(ctx context.Context, url string, opts ...RedisOption) (*Redis, error) {
	o, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("cache: parse redis url: %w", err)
	}
	client := redis.NewClient(o)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cache: connect to redis: %w", err)
	}
	return NewRedis(client, opts...), nil
}

// Close closes the underlying client.
func (r *Redis) Close() error { return r.client.Close() }

// GetEntries returns the cached entries of a module. Redis failures and
// undecodable values count as misses.
func (r *Redis) GetEntries(ctx context.Context, moduleCode string) ([]*permission.Entry, bool) {
	data, err := r.client.Get(ctx, r.key(moduleCode)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		r.logger.Warn("fieldgate: redis cache get", slog.String("module", moduleCode), slog.String("error", err.Error()))
		return nil, false
	}
	var entries []*permission.Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		r.logger.Warn("fieldgate: redis cache decode", slog.String("module", moduleCode), slog.String("error", err.Error()))
		return nil, false
	}
	return entries, true
}

// setIfGeneration writes KEYS[1] only while version plus epoch still
// equals the generation the caller loaded under.
var setIfGeneration = redis.NewScript(`
local cur = tonumber(redis.call('GET', KEYS[2]) or '0') + tonumber(redis.call('GET', KEYS[3]) or '0')
if cur ~= tonumber(ARGV[1]) then
  return 0
end
if tonumber(ARGV[3]) > 0 then
  redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
else
  redis.call('SET', KEYS[1], ARGV[2])
end
return 1
`)

// Generation returns the current generation of a module. A Redis failure
// reports ok=false so the caller skips the fill.
func (r *Redis) Generation(ctx context.Context, moduleCode string) (uint64, bool) {
	vals, err := r.client.MGet(ctx, r.versionKey(moduleCode), r.epochKey()).Result()
	if err != nil {
		r.logger.Warn("fieldgate: redis cache generation", slog.String("module", moduleCode), slog.String("error", err.Error()))
		return 0, false
	}
	var gen uint64
	for _, v := range vals {
		if v == nil {
			continue
		}
		s, _ := v.(string)
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			r.logger.Warn("fieldgate: redis cache generation decode", slog.String("module", moduleCode), slog.String("error", err.Error()))
			return 0, false
		}
		gen += n
	}
	return gen, true
}

// SetEntries caches a module's entries unless the module was invalidated
// after gen was read.
func (r *Redis) SetEntries(ctx context.Context, moduleCode string, gen uint64, entries []*permission.Entry) {
	if entries == nil {
		entries = []*permission.Entry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		r.logger.Warn("fieldgate: redis cache encode", slog.String("module", moduleCode), slog.String("error", err.Error()))
		return
	}
	keys := []string{r.key(moduleCode), r.versionKey(moduleCode), r.epochKey()}
	err = setIfGeneration.Run(ctx, r.client, keys,
		strconv.FormatUint(gen, 10), data, strconv.FormatInt(r.ttl.Milliseconds(), 10)).Err()
	if err != nil {
		r.logger.Warn("fieldgate: redis cache set", slog.String("module", moduleCode), slog.String("error", err.Error()))
	}
}

// InvalidateModule advances the module's generation and drops its cached
// entries in one transaction.
func (r *Redis) InvalidateModule(ctx context.Context, moduleCode string) {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, r.versionKey(moduleCode))
		pipe.Del(ctx, r.key(moduleCode))
		return nil
	})
	if err != nil {
		r.logger.Error("fieldgate: redis cache invalidate", slog.String("module", moduleCode), slog.String("error", err.Error()))
	}
}

// InvalidateAll advances every generation and drops every cached module
// under the key prefix.
func (r *Redis) InvalidateAll(ctx context.Context) {
	if err := r.client.Incr(ctx, r.epochKey()).Err(); err != nil {
		r.logger.Error("fieldgate: redis cache epoch", slog.String("error", err.Error()))
		return
	}
	var keys []string
	iter := r.client.Scan(ctx, 0, r.prefix+"entries:*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		r.logger.Error("fieldgate: redis cache scan", slog.String("error", err.Error()))
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		r.logger.Error("fieldgate: redis cache invalidate all", slog.String("error", err.Error()))
	}
}

func (r *Redis) key(moduleCode string) string {
	return r.prefix + "entries:" + moduleCode
}

func (r *Redis) versionKey(moduleCode string) string {
	return r.prefix + "version:" + moduleCode
}

func (r *Redis) epochKey() string { return r.prefix + "epoch" }
