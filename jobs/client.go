package jobs

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
)

// Client submits jobs to the queue.
type Client struct {
	client *asynq.Client
}

// NewClient connects an asynq client to Redis.
func NewClient(redisOpts asynq.RedisClientOpt) *Client {
	return &Client{client: asynq.NewClient(redisOpts)}
}

// Enqueue submits a prepared task.
func (c *Client) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	return c.client.EnqueueContext(ctx, task, opts...)
}

// EnqueueByName submits the task registered under name with its default payload.
func (c *Client) EnqueueByName(ctx context.Context, name string) (*asynq.TaskInfo, error) {
	task, err := NewTaskByName(name)
	if err != nil {
		return nil, fmt.Errorf("%w (known: %v)", err, TaskNames())
	}
	return c.Enqueue(ctx, task)
}

// EnqueueStatsBump asks the worker to invalidate cached dashboard stats.
func (c *Client) EnqueueStatsBump(ctx context.Context, reason string) (*asynq.TaskInfo, error) {
	task, err := NewStatsBumpTask(reason)
	if err != nil {
		return nil, err
	}
	return c.Enqueue(ctx, task)
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}
