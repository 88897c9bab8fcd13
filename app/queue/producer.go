package queue

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type OpsProducer struct {
	client *redis.Client
}

// NewOpsProducer constructs a Redis stream producer.
func NewOpsProducer(client *redis.Client) *OpsProducer {
	return &OpsProducer{client: client}
}

// Publish pushes an ops task onto the stream.
func (p *OpsProducer) Publish(ctx context.Context, msg OpsTaskMessage) error {
	_, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamName,
		Values: msg.values(),
	}).Result()
	if err != nil {
		return fmt.Errorf("xadd to %s: %w", StreamName, err)
	}
	return nil
}

// NoopDispatcher only logs; used when no worker fleet is deployed.
type NoopDispatcher struct {
	logger logrus.FieldLogger
}

func NewNoopDispatcher(logger logrus.FieldLogger) *NoopDispatcher {
	return &NoopDispatcher{logger: logger}
}

func (d *NoopDispatcher) Publish(_ context.Context, msg OpsTaskMessage) error {
	d.logger.WithFields(logrus.Fields{
		"run_id": msg.RunID,
		"task":   msg.Task,
	}).Info("ops task accepted without dispatch")
	return nil
}
