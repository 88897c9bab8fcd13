package grpc

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-autonomax/app/dto"
	"github.com/vibast-solutions/ms-go-autonomax/app/opslock"
	"github.com/vibast-solutions/ms-go-autonomax/app/service"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type OpsRunner interface {
	Run(ctx context.Context, task string) (*service.RunResult, error)
}

type Server struct {
	ops    OpsRunner
	logger logrus.FieldLogger
}

// NewServer constructs the gRPC ops handler.
func NewServer(ops OpsRunner, logger logrus.FieldLogger) *Server {
	return &Server{ops: ops, logger: logger}
}

// RunTask triggers the task named in the request, or the default batch.
func (s *Server) RunTask(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	msg := dto.OpsRunFromGRPC(req)

	res, err := s.ops.Run(ctx, msg.Task)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidTask):
			return nil, status.Error(codes.InvalidArgument, err.Error())
		case errors.Is(err, service.ErrRateLimited):
			return nil, status.Error(codes.ResourceExhausted, err.Error())
		case errors.Is(err, opslock.ErrStoreUnavailable):
			s.logger.WithError(err).WithField("task", msg.Task).Error("ops lock store unavailable")
			return nil, status.Error(codes.Unavailable, "ops lock store unavailable")
		default:
			s.logger.WithError(err).WithField("task", msg.Task).Error("ops run failed")
			return nil, status.Error(codes.Internal, "failed to queue ops task")
		}
	}

	out, err := structpb.NewStruct(map[string]interface{}{
		"status": res.Status,
		"task":   res.Task,
		"run_id": res.RunID,
	})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}
