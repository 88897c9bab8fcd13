package queue

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	pendingCursor = "0"
	newCursor     = ">"
)

// TaskExecutor runs one ops task. A nil error acks the message.
type TaskExecutor interface {
	Execute(ctx context.Context, msg OpsTaskMessage) error
}

// OpsConsumer reads ops tasks from the stream as a member of ConsumerGroup.
// Entries left pending by a previous crash of the same consumer name are
// replayed before new entries are claimed.
type OpsConsumer struct {
	client   *redis.Client
	executor TaskExecutor
	name     string
	logger   logrus.FieldLogger

	block       time.Duration
	taskTimeout time.Duration
	retryDelay  time.Duration
}

func NewOpsConsumer(client *redis.Client, executor TaskExecutor, name string, logger logrus.FieldLogger) *OpsConsumer {
	return &OpsConsumer{
		client:      client,
		executor:    executor,
		name:        name,
		logger:      logger.WithField("consumer", name),
		block:       5 * time.Second,
		taskTimeout: 5 * time.Minute,
		retryDelay:  time.Second,
	}
}

// Run blocks until ctx is done. Cancellation is a clean stop and returns nil.
func (c *OpsConsumer) Run(ctx context.Context) error {
	if err := c.ensureGroup(ctx); err != nil {
		return err
	}
	c.logger.Infof("consuming ops tasks from %s", StreamName)

	cursor := pendingCursor
	for ctx.Err() == nil {
		msgs, err := c.read(ctx, cursor)
		switch {
		case ctx.Err() != nil:
		case errors.Is(err, redis.Nil):
			cursor = newCursor
		case err != nil:
			c.logger.WithError(err).Warn("stream read failed")
			c.pause(ctx)
		case len(msgs) == 0 && cursor == pendingCursor:
			cursor = newCursor
		default:
			for _, msg := range msgs {
				c.processMessage(ctx, msg)
			}
		}
	}

	c.logger.Info("ops consumer stopped")
	return nil
}

func (c *OpsConsumer) read(ctx context.Context, cursor string) ([]redis.XMessage, error) {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    ConsumerGroup,
		Consumer: c.name,
		Streams:  []string{StreamName, cursor},
		Count:    1,
		Block:    c.block,
	}).Result()
	if err != nil {
		return nil, err
	}
	var msgs []redis.XMessage
	for _, s := range streams {
		msgs = append(msgs, s.Messages...)
	}
	return msgs, nil
}

func (c *OpsConsumer) pause(ctx context.Context) {
	t := time.NewTimer(c.retryDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (c *OpsConsumer) processMessage(ctx context.Context, msg redis.XMessage) {
	task, err := messageFromStream(msg)
	if err != nil {
		// Malformed entries are acked and dropped.
		c.logger.WithError(err).WithField("message_id", msg.ID).Error("dropping malformed ops message")
		c.ack(ctx, msg.ID)
		return
	}

	log := c.logger.WithFields(logrus.Fields{"message_id": msg.ID, "run_id": task.RunID, "task": task.Task})
	log.Info("running ops task")

	runCtx, cancel := context.WithTimeout(ctx, c.taskTimeout)
	defer cancel()

	if err := c.executor.Execute(runCtx, task); err != nil {
		log.WithError(err).Warn("ops task failed, message stays pending")
		return
	}
	c.ack(ctx, msg.ID)
}

func (c *OpsConsumer) ack(ctx context.Context, id string) {
	if err := c.client.XAck(ctx, StreamName, ConsumerGroup, id).Err(); err != nil {
		c.logger.WithError(err).WithField("message_id", id).Warn("ack failed")
	}
}

// ensureGroup creates the stream and group; an existing group is fine.
func (c *OpsConsumer) ensureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, StreamName, ConsumerGroup, pendingCursor).Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}
