package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-autonomax/app/opslock"
	"github.com/vibast-solutions/ms-go-autonomax/app/queue"
)

const (
	DefaultTask       = "hourly-batch"
	TaskLedgerMonitor = "ledger-monitor"
	TaskShopierVerify = "shopier-verify"

	StatusQueued = "queued"
)

var taskPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:-]{0,119}$`)

// LockName is the ops lock guarding task.
func LockName(task string) string {
	return "ops:" + task
}

// OpsLocks is the part of opslock.Manager the ops service needs.
type OpsLocks interface {
	Acquire(ctx context.Context, name string) (bool, error)
	Status(ctx context.Context, name string) (*opslock.Status, error)
	List(ctx context.Context) ([]opslock.Status, error)
}

// Dispatcher hands a granted run to the workers.
type Dispatcher interface {
	Publish(ctx context.Context, msg queue.OpsTaskMessage) error
}

type RunResult struct {
	Status string
	Task   string
	RunID  string
}

type OpsService struct {
	locks      OpsLocks
	dispatcher Dispatcher
	logger     logrus.FieldLogger
	now        func() time.Time
}

// NewOpsService builds the ops trigger service.
func NewOpsService(locks OpsLocks, dispatcher Dispatcher, logger logrus.FieldLogger) *OpsService {
	return &OpsService{locks: locks, dispatcher: dispatcher, logger: logger, now: time.Now}
}

// Run triggers task unless its cooldown window is still active. An empty task
// runs the default batch.
func (s *OpsService) Run(ctx context.Context, task string) (*RunResult, error) {
	task = strings.TrimSpace(task)
	if task == "" {
		task = DefaultTask
	}
	if !taskPattern.MatchString(task) {
		return nil, ErrInvalidTask
	}

	granted, err := s.locks.Acquire(ctx, LockName(task))
	if err != nil {
		return nil, fmt.Errorf("acquire ops lock: %w", err)
	}
	if !granted {
		s.logger.WithField("task", task).Info("ops task rate limited")
		return nil, ErrRateLimited
	}

	msg := queue.OpsTaskMessage{
		RunID:    uuid.NewString(),
		Task:     task,
		QueuedAt: s.now().UTC(),
	}
	// The window stays closed even if dispatch fails.
	if err := s.dispatcher.Publish(ctx, msg); err != nil {
		return nil, fmt.Errorf("dispatch ops task: %w", err)
	}

	s.logger.WithFields(logrus.Fields{"task": task, "run_id": msg.RunID}).Info("ops task queued")
	return &RunResult{Status: StatusQueued, Task: task, RunID: msg.RunID}, nil
}

// Lock returns the window of a single task; an empty task means the default.
func (s *OpsService) Lock(ctx context.Context, task string) (*opslock.Status, error) {
	task = strings.TrimSpace(task)
	if task == "" {
		task = DefaultTask
	}
	if !taskPattern.MatchString(task) {
		return nil, ErrInvalidTask
	}
	st, err := s.locks.Status(ctx, LockName(task))
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, ErrLockNotFound
	}
	return st, nil
}

// Locks lists every ops lock record.
func (s *OpsService) Locks(ctx context.Context) ([]opslock.Status, error) {
	return s.locks.List(ctx)
}
