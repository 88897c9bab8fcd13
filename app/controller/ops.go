package controller

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-autonomax/app/dto"
	"github.com/vibast-solutions/ms-go-autonomax/app/opslock"
	"github.com/vibast-solutions/ms-go-autonomax/app/service"
)

// OpsRunner is the ops trigger surface shared by HTTP, gRPC and the CLI.
type OpsRunner interface {
	Run(ctx context.Context, task string) (*service.RunResult, error)
	Locks(ctx context.Context) ([]opslock.Status, error)
}

type OpsController struct {
	ops    OpsRunner
	logger logrus.FieldLogger
}

type opsRunResponse struct {
	Status string `json:"status"`
	Task   string `json:"task"`
	RunID  string `json:"run_id"`
}

type opsLockResponse struct {
	Name        string    `json:"name"`
	LockedUntil time.Time `json:"locked_until"`
	Active      bool      `json:"active"`
}

func NewOpsController(ops OpsRunner, logger logrus.FieldLogger) *OpsController {
	return &OpsController{ops: ops, logger: logger}
}

// Run triggers the task named in the optional body, or the default batch.
func (c *OpsController) Run(ctx echo.Context) error {
	req, err := dto.OpsRunFromEchoContext(ctx)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	return c.run(ctx, req.Task)
}

// RunFixed returns a handler that always triggers task.
func (c *OpsController) RunFixed(task string) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		return c.run(ctx, task)
	}
}

// Locks lists every ops lock with its current state.
func (c *OpsController) Locks(ctx echo.Context) error {
	locks, err := c.ops.Locks(ctx.Request().Context())
	if err != nil {
		c.logger.WithError(err).Error("list ops locks")
		return ctx.JSON(http.StatusServiceUnavailable, map[string]string{"error": "ops lock store unavailable"})
	}
	out := make([]opsLockResponse, 0, len(locks))
	for _, l := range locks {
		out = append(out, opsLockResponse{Name: l.Name, LockedUntil: l.LockedUntil, Active: l.Active})
	}
	return ctx.JSON(http.StatusOK, out)
}

func (c *OpsController) run(ctx echo.Context, task string) error {
	res, err := c.ops.Run(ctx.Request().Context(), task)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidTask):
			return ctx.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrRateLimited):
			return ctx.JSON(http.StatusTooManyRequests, map[string]string{"error": err.Error()})
		case errors.Is(err, opslock.ErrStoreUnavailable):
			c.logger.WithError(err).WithField("task", task).Error("ops lock store unavailable")
			return ctx.JSON(http.StatusServiceUnavailable, map[string]string{"error": "ops lock store unavailable"})
		default:
			c.logger.WithError(err).WithField("task", task).Error("ops run failed")
			return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to queue ops task"})
		}
	}
	return ctx.JSON(http.StatusOK, opsRunResponse{Status: res.Status, Task: res.Task, RunID: res.RunID})
}
