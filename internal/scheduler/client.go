package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/ganeshchavan786/vega-crm/platform/config"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// Enqueuer schedules engine background jobs. The HTTP surface depends on
// this interface so the api binary can run without a job queue configured.
type Enqueuer interface {
	EnqueueNurtureSweep(ctx context.Context, payload CompanyJobPayload) error
	EnqueueRecomputeScores(ctx context.Context, payload CompanyJobPayload) error
	EnqueueRecomputeAccounts(ctx context.Context, payload CompanyJobPayload) error
}

// Client enqueues engine background jobs.
type Client struct {
	client *asynq.Client
	queue  string
}

var _ Enqueuer = (*Client)(nil)

// NewClient builds an asynq client from the configured redis URL.
func NewClient(cfg config.SchedulerConfig) (*Client, error) {
	opt, err := redisClientOpt(cfg.GetRedisURL())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	return &Client{
		client: asynq.NewClient(opt),
		queue:  queue,
	}, nil
}

// Close releases the underlying connections.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueueNurtureSweep schedules a nurturing sweep for one company.
func (c *Client) EnqueueNurtureSweep(ctx context.Context, payload CompanyJobPayload) error {
	task, err := NewNurtureSweepTask(payload)
	if err != nil {
		return err
	}
	return c.enqueue(ctx, task)
}

// EnqueueRecomputeScores schedules a company-wide lead rescore.
func (c *Client) EnqueueRecomputeScores(ctx context.Context, payload CompanyJobPayload) error {
	task, err := NewRecomputeScoresTask(payload)
	if err != nil {
		return err
	}
	return c.enqueue(ctx, task)
}

// EnqueueRecomputeAccounts schedules a company-wide account refresh.
func (c *Client) EnqueueRecomputeAccounts(ctx context.Context, payload CompanyJobPayload) error {
	task, err := NewRecomputeAccountsTask(payload)
	if err != nil {
		return err
	}
	return c.enqueue(ctx, task)
}

func (c *Client) enqueue(ctx context.Context, task *asynq.Task) error {
	_, err := c.client.EnqueueContext(ctx, task, asynq.Queue(c.queue), asynq.Timeout(30*time.Minute))
	return err
}

func redisClientOpt(redisURL string) (asynq.RedisClientOpt, error) {
	if redisURL == "" {
		return asynq.RedisClientOpt{}, fmt.Errorf("redis url not configured")
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: opt.TLSConfig,
	}, nil
}
