// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package mail

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/holomush/authcore/internal/auth"
	"github.com/holomush/authcore/internal/observability"
	"github.com/holomush/authcore/pkg/errutil"
)

// QueueKey is the Redis list holding pending mail jobs.
const QueueKey = "authcore:mail:queue"

// DefaultMaxQueueSize caps the queue while the downstream transport is down.
const DefaultMaxQueueSize int64 = 1000

// DefaultSendTimeout bounds one delivery attempt by the worker.
const DefaultSendTimeout = 30 * time.Second

// popTimeout is how long the worker blocks on an empty queue before checking
// for shutdown.
const popTimeout = 2 * time.Second

// ErrQueueFull is returned when the queue has reached its cap.
var ErrQueueFull = errors.New("mail queue full")

// Job is one queued email.
type Job struct {
	Kind      string           `json:"kind"`
	User      auth.UserSummary `json:"user"`
	Token     string           `json:"token"`
	ExpiresIn time.Duration    `json:"expires_in"`
}

// enqueueScript pushes ARGV[2] onto KEYS[1] unless the list already holds
// ARGV[1] entries (0 disables the cap). Returns 1 when pushed.
var enqueueScript = redis.NewScript(`
local max = tonumber(ARGV[1])
if max > 0 and redis.call('LLEN', KEYS[1]) >= max then
    return 0
end
redis.call('RPUSH', KEYS[1], ARGV[2])
return 1
`)

// QueueOptions tunes a QueuedMailer.
type QueueOptions struct {
	Key         string        // defaults to QueueKey
	MaxSize     int64         // 0 means unlimited
	SendTimeout time.Duration // defaults to DefaultSendTimeout
	Logger      *slog.Logger
}

// QueuedMailer enqueues mail in Redis and returns at once. Run drains the
// queue into the inner Mailer, so any instance may deliver mail enqueued by
// another.
type QueuedMailer struct {
	inner       auth.Mailer
	rdb         redis.UniversalClient
	key         string
	maxSize     int64
	sendTimeout time.Duration
	logger      *slog.Logger
}

// NewQueuedMailer wraps inner with a Redis-backed queue.
func NewQueuedMailer(inner auth.Mailer, rdb redis.UniversalClient, opts QueueOptions) (*QueuedMailer, error) {
	if inner == nil || rdb == nil {
		return nil, oops.Code("MAIL_QUEUE_INVALID").Errorf("inner mailer and redis client are required")
	}
	if opts.Key == "" {
		opts.Key = QueueKey
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = DefaultSendTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &QueuedMailer{
		inner:       inner,
		rdb:         rdb,
		key:         opts.Key,
		maxSize:     opts.MaxSize,
		sendTimeout: opts.SendTimeout,
		logger:      opts.Logger,
	}, nil
}

// SendVerificationEmail implements auth.Mailer.
func (q *QueuedMailer) SendVerificationEmail(ctx context.Context, user auth.UserSummary, token string, expiresIn time.Duration) error {
	return q.enqueue(ctx, Job{Kind: KindVerification, User: user, Token: token, ExpiresIn: expiresIn})
}

// SendResetEmail implements auth.Mailer.
func (q *QueuedMailer) SendResetEmail(ctx context.Context, user auth.UserSummary, token string, expiresIn time.Duration) error {
	return q.enqueue(ctx, Job{Kind: KindPasswordReset, User: user, Token: token, ExpiresIn: expiresIn})
}

func (q *QueuedMailer) enqueue(ctx context.Context, job Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return oops.Code("MAIL_ENQUEUE_FAILED").With("kind", job.Kind).Wrap(err)
	}
	ok, err := enqueueScript.Run(ctx, q.rdb, []string{q.key}, q.maxSize, data).Int64()
	if err != nil {
		return oops.Code("MAIL_ENQUEUE_FAILED").With("kind", job.Kind).Wrap(err)
	}
	if ok == 0 {
		observability.RecordMailQueueFailure("queue_full")
		return oops.Code("MAIL_QUEUE_FULL").With("kind", job.Kind).With("max", q.maxSize).Wrap(ErrQueueFull)
	}
	return nil
}

// Run delivers queued jobs until ctx is cancelled. Failed deliveries are
// logged and dropped.
func (q *QueuedMailer) Run(ctx context.Context) {
	q.logger.InfoContext(ctx, "mail queue worker started", "key", q.key)
	defer q.logger.Info("mail queue worker stopped")

	for {
		res, err := q.rdb.BLPop(ctx, popTimeout, q.key).Result()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			errutil.LogErrorContext(ctx, q.logger, "mail queue pop failed", oops.Code("MAIL_QUEUE_POP_FAILED").Wrap(err))
			if !sleep(ctx, popTimeout) {
				return
			}
			continue
		}
		// res[0] is the key, res[1] the payload.
		q.handle(ctx, []byte(res[1]))
	}
}

func (q *QueuedMailer) handle(ctx context.Context, payload []byte) {
	var job Job
	if err := json.Unmarshal(payload, &job); err != nil {
		observability.RecordMailQueueFailure("bad_payload")
		q.logger.ErrorContext(ctx, "mail queue job payload invalid", "error", err)
		return
	}
	if err := q.dispatch(ctx, job); err != nil {
		observability.RecordMailQueueFailure("send_failed")
		errutil.LogErrorContext(ctx, q.logger, "queued mail not delivered", err)
	}
}

// dispatch hands job to the inner mailer with its own deadline.
func (q *QueuedMailer) dispatch(ctx context.Context, job Job) error {
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), q.sendTimeout)
	defer cancel()

	var err error
	switch job.Kind {
	case KindVerification:
		err = q.inner.SendVerificationEmail(sendCtx, job.User, job.Token, job.ExpiresIn)
	case KindPasswordReset:
		err = q.inner.SendResetEmail(sendCtx, job.User, job.Token, job.ExpiresIn)
	default:
		return oops.Code("MAIL_JOB_UNKNOWN").With("kind", job.Kind).Errorf("unknown mail job kind")
	}
	if err != nil {
		return oops.Code("MAIL_DISPATCH_FAILED").
			With("kind", job.Kind).
			With("user_id", job.User.ID.String()).
			Wrap(err)
	}
	return nil
}

// sleep waits for d or until ctx is done, reporting whether d elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

var _ auth.Mailer = (*QueuedMailer)(nil)
