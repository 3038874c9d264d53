package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// leaseTTL bounds how long a dead holder can block other workers. There
// is no renewal: a mutation must finish inside the TTL or its lease
// expires and another worker may take the key. Checkpoint mutations are
// a single load-modify-save, far below the bound.
const (
	leaseTTL      = 30 * time.Second
	acquireWait   = 30 * time.Second
	acquireBudget = 100 * time.Millisecond
)

// unlockScript releases the lease only if this holder still owns it.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Locker implements a keyed mutex on Redis SET NX PX leases, letting
// multiple job processes share one checkpoint safely. Redis has no
// shared-lock mode, so read locks degrade to exclusive leases.
type Locker struct {
	rdb *redis.Client
}

// NewLocker builds a distributed keyed locker from a shared client.
func NewLocker(client *Client) *Locker {
	return &Locker{rdb: client.rdb}
}

func lockKey(key string) string {
	return "conductor:lock:" + key
}

// Lock acquires the exclusive lease for key, polling until acquired or
// the wait budget expires. The returned func releases the lease.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	deadline := time.Now().Add(acquireWait)

	for {
		ok, err := l.rdb.SetNX(ctx, lockKey(key), token, leaseTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			release := func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = unlockScript.Run(ctx, l.rdb, []string{lockKey(key)}, token).Err()
			}
			return release, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("timed out waiting for lock %s", key)
		}
		select {
		case <-time.After(acquireBudget):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// RLock acquires a shared lock. Leases are exclusive-only, so this
// delegates to Lock; the CheckpointStore contract only requires that
// readers never observe a mid-mutation record.
func (l *Locker) RLock(ctx context.Context, key string) (func(), error) {
	return l.Lock(ctx, key)
}
