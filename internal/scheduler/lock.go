package scheduler

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// jobLockTTL bounds how long a crashed worker can hold a company lock.
const jobLockTTL = 15 * time.Minute

// JobLock serializes per-company background jobs across worker replicas
// with a redis SET NX lease.
type JobLock struct {
	client *redis.Client
}

// NewJobLock builds a lock manager from the redis URL.
func NewJobLock(redisURL string) (*JobLock, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &JobLock{client: redis.NewClient(opt)}, nil
}

// Close releases the underlying connection.
func (l *JobLock) Close() error {
	if l == nil || l.client == nil {
		return nil
	}
	return l.client.Close()
}

// TryAcquire takes the lease for key. Returns false when another worker
// holds it.
func (l *JobLock) TryAcquire(ctx context.Context, key string) (bool, error) {
	return l.client.SetNX(ctx, key, "1", jobLockTTL).Result()
}

// Release drops the lease. Safe to call on a lease that already expired.
func (l *JobLock) Release(ctx context.Context, key string) {
	l.client.Del(ctx, key)
}
