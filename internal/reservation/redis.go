package reservation

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "reservation:"

// Each tutor arena is a hash of "<slot_key>|<holder_id>" to
// "<start_ms> <end_ms> <expires_ms>". Times are passed in by the caller so
// every backend shares the same clock.
var claimScript = redis.NewScript(`
-- KEYS[1] = arena
-- ARGV[1] = field, ARGV[2] = start_ms, ARGV[3] = end_ms
-- ARGV[4] = expires_ms, ARGV[5] = now_ms, ARGV[6] = ttl_ms
local now = tonumber(ARGV[5])
local start = tonumber(ARGV[2])
local finish = tonumber(ARGV[3])

local entries = redis.call("HGETALL", KEYS[1])
for i = 1, #entries, 2 do
    local s, e, x = string.match(entries[i + 1], "^(%d+) (%d+) (%d+)$")
    s = tonumber(s)
    e = tonumber(e)
    x = tonumber(x)
    if x == nil or x <= now then
        redis.call("HDEL", KEYS[1], entries[i])
    elseif s < finish and e > start then
        return 0
    end
end

redis.call("HSET", KEYS[1], ARGV[1], ARGV[2] .. " " .. ARGV[3] .. " " .. ARGV[4])
if redis.call("PTTL", KEYS[1]) < tonumber(ARGV[6]) then
    redis.call("PEXPIRE", KEYS[1], ARGV[6])
end
return 1
`)

var refreshScript = redis.NewScript(`
-- KEYS[1] = arena
-- ARGV[1] = field, ARGV[2] = now_ms, ARGV[3] = expires_ms, ARGV[4] = ttl_ms
local value = redis.call("HGET", KEYS[1], ARGV[1])
if not value then
    return 0
end
local s, e, x = string.match(value, "^(%d+) (%d+) (%d+)$")
if tonumber(x) == nil or tonumber(x) <= tonumber(ARGV[2]) then
    return 0
end
redis.call("HSET", KEYS[1], ARGV[1], s .. " " .. e .. " " .. ARGV[3])
if redis.call("PTTL", KEYS[1]) < tonumber(ARGV[4]) then
    redis.call("PEXPIRE", KEYS[1], ARGV[4])
end
return 1
`)

var pruneScript = redis.NewScript(`
-- KEYS[1] = arena
-- ARGV[1] = now_ms
local now = tonumber(ARGV[1])
local removed = 0
local entries = redis.call("HGETALL", KEYS[1])
for i = 1, #entries, 2 do
    local x = tonumber(string.match(entries[i + 1], " (%d+)$"))
    if x == nil or x <= now then
        redis.call("HDEL", KEYS[1], entries[i])
        removed = removed + 1
    end
end
return removed
`)

// RedisLock runs every check-and-set as a Lua script so the overlap test and
// the write happen atomically inside Redis.
type RedisLock struct {
	rdb    *redis.Client
	commit time.Duration
	now    func() time.Time
}

func NewRedisLock(rdb *redis.Client, commitTTL time.Duration) *RedisLock {
	return &RedisLock{
		rdb:    rdb,
		commit: commitTTL,
		now:    time.Now,
	}
}

// PreloadScripts loads the Lua scripts so the first claim skips the EVAL
// fallback.
func (r *RedisLock) PreloadScripts(ctx context.Context) error {
	for _, s := range []*redis.Script{claimScript, refreshScript, pruneScript} {
		if err := s.Load(ctx, r.rdb).Err(); err != nil {
			return fmt.Errorf("failed to load reservation script: %w", err)
		}
	}
	return nil
}

func (r *RedisLock) TryClaim(ctx context.Context, tutorID string, start, end time.Time, holderID string, ttl time.Duration) (*Token, error) {
	now := r.now()
	token, err := newToken(tutorID, start, end, holderID, ttl, now)
	if err != nil {
		return nil, err
	}

	res, err := claimScript.Run(ctx, r.rdb, []string{arenaKey(tutorID)},
		field(token),
		token.Start.UnixMilli(),
		token.End.UnixMilli(),
		token.ExpiresAt.UnixMilli(),
		now.UnixMilli(),
		ttl.Milliseconds(),
	).Int()
	if err != nil {
		return nil, fmt.Errorf("failed to claim reservation: %w", err)
	}
	if res == 0 {
		return nil, ErrAlreadyClaimed
	}
	return token, nil
}

func (r *RedisLock) Commit(ctx context.Context, token *Token, persist func(ctx context.Context) error) error {
	return commitWith(ctx, r, token, r.refresh, persist)
}

func (r *RedisLock) refresh(ctx context.Context, token *Token) error {
	now := r.now()
	expires := now.Add(r.commit).UTC()

	res, err := refreshScript.Run(ctx, r.rdb, []string{arenaKey(token.TutorID)},
		field(token),
		now.UnixMilli(),
		expires.UnixMilli(),
		r.commit.Milliseconds(),
	).Int()
	if err != nil {
		return fmt.Errorf("failed to refresh reservation: %w", err)
	}
	if res == 0 {
		return ErrClaimExpired
	}
	token.ExpiresAt = expires
	return nil
}

func (r *RedisLock) Release(ctx context.Context, token *Token) error {
	if token == nil {
		return nil
	}
	if err := r.rdb.HDel(ctx, arenaKey(token.TutorID), field(token)).Err(); err != nil {
		return fmt.Errorf("failed to release reservation: %w", err)
	}
	return nil
}

func (r *RedisLock) Sweep(ctx context.Context, now time.Time) (int, error) {
	removed := 0
	iter := r.rdb.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		n, err := pruneScript.Run(ctx, r.rdb, []string{iter.Val()}, now.UnixMilli()).Int()
		if err != nil {
			return removed, fmt.Errorf("failed to sweep %s: %w", iter.Val(), err)
		}
		removed += n
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("failed to scan reservations: %w", err)
	}
	return removed, nil
}

func arenaKey(tutorID string) string {
	return keyPrefix + tutorID
}

func field(token *Token) string {
	return token.SlotKey + "|" + token.HolderID
}
