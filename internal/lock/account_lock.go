package lock

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	topUpKeyFormat = "creditgate:topup:%s"
	topUpTTL       = 30 * time.Second
)

// AccountLock serializes automatic top-ups per account across instances. It
// is advisory: the ledger debit stays the only authoritative guard. A nil
// AccountLock always grants.
type AccountLock struct {
	locker *Locker
	ttl    time.Duration
	log    *zap.Logger
}

func NewAccountLock(locker *Locker, log *zap.Logger) *AccountLock {
	if locker == nil {
		return nil
	}
	return &AccountLock{locker: locker, ttl: topUpTTL, log: log.Named("lock.topup")}
}

// TopUpKey returns the Redis key guarding top-ups for accountID.
func TopUpKey(accountID string) string {
	return fmt.Sprintf(topUpKeyFormat, strings.TrimSpace(accountID))
}

// AcquireTopUp returns acquired=false when another holder owns the lock. The
// release func is always safe to call.
func (a *AccountLock) AcquireTopUp(ctx context.Context, accountID string) (release func(), acquired bool, err error) {
	if a == nil {
		return func() {}, true, nil
	}
	key := TopUpKey(accountID)
	token, ok, err := a.locker.TryLock(ctx, key, a.ttl)
	if err != nil {
		return func() {}, false, err
	}
	if !ok {
		return func() {}, false, nil
	}
	return func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := a.locker.Release(releaseCtx, key, token); err != nil {
			a.log.Warn("release top-up lock", zap.String("key", key), zap.Error(err))
		}
	}, true, nil
}
