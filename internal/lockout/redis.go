// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package lockout provides a Redis-backed auth.LoginAttemptTracker shared by
// every authcore instance pointing at the same Redis.
package lockout

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/holomush/authcore/internal/auth"
)

// KeyPrefix namespaces attempt records. The full key is KeyPrefix + email.
const KeyPrefix = "authcore:attempts:"

// Hash fields. Times are Unix milliseconds; locked_until is 0 when unlocked.
const (
	fieldFailures    = "failures"
	fieldFirst       = "first"
	fieldLockedUntil = "locked_until"
)

// recordFailureScript applies one failure to the record at KEYS[1] with the
// same transitions as auth.LockoutPolicy.ApplyFailure.
// ARGV: now_ms, threshold, window_ms, cooldown_ms.
// Returns {failures, first_ms, locked_until_ms}.
var recordFailureScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local threshold = tonumber(ARGV[2])
local window = tonumber(ARGV[3])
local cooldown = tonumber(ARGV[4])

local rec = redis.call('HMGET', KEYS[1], 'failures', 'first', 'locked_until')
local failures = tonumber(rec[1]) or 0
local first = tonumber(rec[2]) or 0
local locked = tonumber(rec[3]) or 0

if failures > 0 and locked > 0 and now < locked then
    failures = failures + 1
elseif failures > 0 and locked == 0 and now < first + window then
    failures = failures + 1
    if failures >= threshold then
        locked = now + cooldown
    end
else
    failures = 1
    first = now
    locked = 0
    if failures >= threshold then
        locked = now + cooldown
    end
end

redis.call('HSET', KEYS[1], 'failures', failures, 'first', first, 'locked_until', locked)
local ttl = math.max(first + window, locked) - now
if ttl < 1 then
    ttl = 1
end
redis.call('PEXPIRE', KEYS[1], ttl)
return {failures, first, locked}
`)

// RedisTracker is an auth.LoginAttemptTracker over a Redis hash per email.
// Each failure is applied by a single Lua script, so concurrent failures for
// the same email from any number of instances are never lost. Records expire
// once neither the window nor the lock can affect them.
type RedisTracker struct {
	rdb    redis.UniversalClient
	policy auth.LockoutPolicy
	now    func() time.Time
}

// NewRedisTracker creates a RedisTracker. A nil clock uses time.Now.
func NewRedisTracker(rdb redis.UniversalClient, policy auth.LockoutPolicy, now func() time.Time) (*RedisTracker, error) {
	if rdb == nil {
		return nil, oops.Code("LOCKOUT_REDIS_INVALID").Errorf("redis client is required")
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if now == nil {
		now = time.Now
	}
	return &RedisTracker{rdb: rdb, policy: policy, now: now}, nil
}

// CheckAllowed returns the current state of email.
func (t *RedisTracker) CheckAllowed(ctx context.Context, email string) (auth.AttemptState, error) {
	vals, err := t.rdb.HMGet(ctx, KeyPrefix+email, fieldFailures, fieldFirst, fieldLockedUntil).Result()
	if err != nil {
		return auth.AttemptState{}, oops.Code("ATTEMPT_CHECK_FAILED").Wrap(err)
	}
	rec, err := parseRecord(email, vals)
	if err != nil {
		return auth.AttemptState{}, oops.Code("ATTEMPT_CHECK_FAILED").Wrap(err)
	}
	return t.policy.State(rec, t.now()), nil
}

// RecordFailure counts one failure for email and returns the resulting state.
func (t *RedisTracker) RecordFailure(ctx context.Context, email string) (auth.AttemptState, error) {
	now := t.now()
	res, err := recordFailureScript.Run(ctx, t.rdb, []string{KeyPrefix + email},
		now.UnixMilli(),
		t.policy.Threshold,
		t.policy.Window.Milliseconds(),
		t.policy.Cooldown.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return auth.AttemptState{}, oops.Code("ATTEMPT_RECORD_FAILED").Wrap(err)
	}
	if len(res) != 3 {
		return auth.AttemptState{}, oops.Code("ATTEMPT_RECORD_FAILED").
			With("values", len(res)).
			Errorf("unexpected script result")
	}
	return t.policy.State(recordFromMillis(email, res[0], res[1], res[2]), now), nil
}

// RecordSuccess clears the record of email.
func (t *RedisTracker) RecordSuccess(ctx context.Context, email string) error {
	if err := t.rdb.Del(ctx, KeyPrefix+email).Err(); err != nil {
		return oops.Code("ATTEMPT_RESET_FAILED").Wrap(err)
	}
	return nil
}

// parseRecord decodes an HMGET reply. All-nil means no record.
func parseRecord(email string, vals []any) (*auth.AttemptRecord, error) {
	if len(vals) != 3 || vals[0] == nil {
		return nil, nil
	}
	var nums [3]int64
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, errors.Join(errors.New("malformed attempt record"), err)
		}
		nums[i] = n
	}
	return recordFromMillis(email, nums[0], nums[1], nums[2]), nil
}

func recordFromMillis(email string, failures, firstMs, lockedMs int64) *auth.AttemptRecord {
	rec := &auth.AttemptRecord{
		Email:          email,
		Failures:       int(failures),
		FirstFailureAt: time.UnixMilli(firstMs).UTC(),
	}
	if lockedMs > 0 {
		until := time.UnixMilli(lockedMs).UTC()
		rec.LockedUntil = &until
	}
	return rec
}

var _ auth.LoginAttemptTracker = (*RedisTracker)(nil)
