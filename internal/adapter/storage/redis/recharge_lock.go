package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"personal-ledger/internal/core/domain"

	"github.com/go-redsync/redsync/v4"
	redsyncpool "github.com/go-redsync/redsync/v4/redis/goredis/v9"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RechargeLocker implements ports.RechargeLocker with a single-attempt redsync mutex.
type RechargeLocker struct {
	rs     *redsync.Redsync
	expiry time.Duration
	log    zerolog.Logger
}

// NewRechargeLocker creates a locker. expiry bounds how long a crashed holder blocks the key.
func NewRechargeLocker(client *goredis.Client, expiry time.Duration, log zerolog.Logger) *RechargeLocker {
	return &RechargeLocker{
		rs:     redsync.New(redsyncpool.NewPool(client)),
		expiry: expiry,
		log:    log,
	}
}

// Acquire takes the lock for key or fails fast with domain.ErrRechargeInProgress.
func (l *RechargeLocker) Acquire(ctx context.Context, key string) (func(), error) {
	mutex := l.rs.NewMutex(
		"recharge-lock:"+key,
		redsync.WithExpiry(l.expiry),
		redsync.WithTries(1),
	)

	if err := mutex.LockContext(ctx); err != nil {
		if isContention(err) {
			return nil, domain.ErrRechargeInProgress
		}
		return nil, fmt.Errorf("acquire recharge lock: %w", err)
	}

	release := func() {
		// The request context may already be cancelled; unlocking must still happen.
		unlockCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if ok, err := mutex.UnlockContext(unlockCtx); err != nil || !ok {
			l.log.Warn().Err(err).Str("key", key).Msg("recharge lock was not released cleanly")
		}
	}
	return release, nil
}

func isContention(err error) bool {
	var taken *redsync.ErrTaken
	if errors.Is(err, redsync.ErrFailed) || errors.As(err, &taken) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "lock already taken") || strings.Contains(msg, "failed to acquire lock")
}
