// Package rd provides a redis client wrapping go-redis with the small
// command surface the ranked cache and lease manager need
package rd

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config configures redis connectivity
type Config struct {
	Addr string
	DB   int
}

// Scored is one member of a ranked range result
type Scored struct {
	Member string
	Score  float64
}

// Pipe is the batched write surface inside Pipelined
type Pipe interface {
	ZAdd(key string, score float64, member string)
	ZRem(key string, members ...string)
	SAdd(key string, members ...string)
	SRem(key string, members ...string)
}

// RD is a redis client
type RD struct {
	client *redis.Client
}

// compareDel deletes KEYS[1] only when its value equals ARGV[1].
// Token-guarded release for lock leases
var compareDel = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`)

// Open creates a new RD client with the given config
func Open(_ context.Context, cfg Config) (*RD, error) {
	client := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
		DB:   cfg.DB,
	})
	return &RD{client: client}, nil
}

// Ping verifies connectivity
func (r *RD) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the client
func (r *RD) Close() error { return r.client.Close() }

// ZAdd upserts member with score into the sorted set at key
func (r *RD) ZAdd(ctx context.Context, key string, score float64, member string) error {
	return r.client.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err()
}

// ZRem removes members from the sorted set at key
func (r *RD) ZRem(ctx context.Context, key string, members ...string) error {
	args := make([]any, len(members))
	for i, m := range members {
		args[i] = m
	}
	return r.client.ZRem(ctx, key, args...).Err()
}

// ZRevRange returns members with scores, ordered by score descending,
// for ranks [start, stop] inclusive
func (r *RD) ZRevRange(ctx context.Context, key string, start, stop int64) ([]Scored, error) {
	zs, err := r.client.ZRevRangeWithScores(ctx, key, start, stop).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Scored, 0, len(zs))
	for _, z := range zs {
		m, _ := z.Member.(string)
		out = append(out, Scored{Member: m, Score: z.Score})
	}
	return out, nil
}

// SAdd adds members to the set at key
func (r *RD) SAdd(ctx context.Context, key string, members ...string) error {
	args := make([]any, len(members))
	for i, m := range members {
		args[i] = m
	}
	return r.client.SAdd(ctx, key, args...).Err()
}

// SRem removes members from the set at key
func (r *RD) SRem(ctx context.Context, key string, members ...string) error {
	args := make([]any, len(members))
	for i, m := range members {
		args[i] = m
	}
	return r.client.SRem(ctx, key, args...).Err()
}

// SMembers returns all members of the set at key
func (r *RD) SMembers(ctx context.Context, key string) ([]string, error) {
	return r.client.SMembers(ctx, key).Result()
}

// SIsMember reports whether member is in the set at key
func (r *RD) SIsMember(ctx context.Context, key, member string) (bool, error) {
	return r.client.SIsMember(ctx, key, member).Result()
}

// HGetAll returns the hash stored at key; empty map when missing
func (r *RD) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return r.client.HGetAll(ctx, key).Result()
}

// SetNX sets key=value with a TTL only when the key is absent
func (r *RD) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, key, value, ttl).Result()
}

// CompareDel deletes key atomically only when its value equals value
func (r *RD) CompareDel(ctx context.Context, key, value string) (bool, error) {
	n, err := compareDel.Run(ctx, r.client, []string{key}, value).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Pipelined runs the queued writes as a single MULTI/EXEC round trip
func (r *RD) Pipelined(ctx context.Context, fn func(p Pipe) error) error {
	_, err := r.client.TxPipelined(ctx, func(tp redis.Pipeliner) error {
		return fn(pipe{ctx: ctx, p: tp})
	})
	return err
}

// pipe adapts redis.Pipeliner to Pipe
type pipe struct {
	ctx context.Context
	p   redis.Pipeliner
}

func (w pipe) ZAdd(key string, score float64, member string) {
	w.p.ZAdd(w.ctx, key, redis.Z{Score: score, Member: member})
}

func (w pipe) ZRem(key string, members ...string) {
	args := make([]any, len(members))
	for i, m := range members {
		args[i] = m
	}
	w.p.ZRem(w.ctx, key, args...)
}

func (w pipe) SAdd(key string, members ...string) {
	args := make([]any, len(members))
	for i, m := range members {
		args[i] = m
	}
	w.p.SAdd(w.ctx, key, args...)
}

func (w pipe) SRem(key string, members ...string) {
	args := make([]any, len(members))
	for i, m := range members {
		args[i] = m
	}
	w.p.SRem(w.ctx, key, args...)
}
