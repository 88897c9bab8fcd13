package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-autonomax/app/lock"
	"github.com/vibast-solutions/ms-go-autonomax/app/queue"
)

// TaskHandler performs the work behind one ops task.
type TaskHandler func(ctx context.Context, msg queue.OpsTaskMessage) error

// OpsTaskRunner executes dispatched ops runs on a worker. Each run holds an
// exclusive lock keyed by its run ID so a redelivered message is not executed
// twice at once.
type OpsTaskRunner struct {
	handlers map[string]TaskHandler
	locker   lock.Locker
	logger   logrus.FieldLogger
}

func NewOpsTaskRunner(locker lock.Locker, logger logrus.FieldLogger) *OpsTaskRunner {
	return &OpsTaskRunner{
		handlers: make(map[string]TaskHandler),
		locker:   locker,
		logger:   logger,
	}
}

// Register binds handler to task, replacing any previous handler.
func (r *OpsTaskRunner) Register(task string, handler TaskHandler) {
	r.handlers[task] = handler
}

// RegisterBuiltin registers the tasks exposed by the HTTP surface.
func (r *OpsTaskRunner) RegisterBuiltin() {
	for _, task := range []string{DefaultTask, TaskLedgerMonitor, TaskShopierVerify} {
		r.Register(task, r.logOnly)
	}
}

// Execute runs msg with its registered handler. Unknown tasks are logged and
// treated as done.
func (r *OpsTaskRunner) Execute(ctx context.Context, msg queue.OpsTaskMessage) error {
	log := r.logger.WithFields(logrus.Fields{"run_id": msg.RunID, "task": msg.Task})

	handler, ok := r.handlers[msg.Task]
	if !ok {
		log.Warn("no handler registered for ops task")
		return nil
	}

	key := "autonomax:ops:run:" + msg.RunID
	if err := r.locker.Acquire(ctx, key, 0); err != nil {
		return fmt.Errorf("acquire run lock: %w", err)
	}
	defer func() {
		if err := r.locker.Release(context.Background(), key); err != nil {
			log.WithError(err).Warn("release run lock")
		}
	}()

	start := time.Now()
	if err := handler(WithRunID(ctx, msg.RunID), msg); err != nil {
		return fmt.Errorf("run %s: %w", msg.Task, err)
	}
	log.WithField("elapsed", time.Since(start).String()).Info("ops task done")
	return nil
}

func (r *OpsTaskRunner) logOnly(ctx context.Context, msg queue.OpsTaskMessage) error {
	runID, _ := RunIDFromContext(ctx)
	fields := logrus.Fields{"run_id": runID, "task": msg.Task}
	if !msg.QueuedAt.IsZero() {
		fields["queue_delay"] = time.Since(msg.QueuedAt).String()
	}
	r.logger.WithFields(fields).Info("ops task executed")
	return nil
}
