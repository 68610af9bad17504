// internal/worker/server.go
package worker

import (
	"context"
	"errors"
	"log/slog"

	"job-worker/internal/domain"
	"job-worker/internal/rpc"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Server implements rpc.WorkerServer on top of a dispatcher.
type Server struct {
	rpc.UnimplementedWorkerServer
	dispatcher domain.Dispatcher
	workerID   string
	logger     *slog.Logger
	tracer     trace.Tracer
}

// NewServer creates a new gRPC server for the worker.
func NewServer(dispatcher domain.Dispatcher, workerID string, logger *slog.Logger) *Server {
	return &Server{
		dispatcher: dispatcher,
		workerID:   workerID,
		logger:     logger.With("component", "grpc-server"),
		tracer:     otel.Tracer("job-worker-grpc"),
	}
}

// Dispatch decodes the request envelope, runs it synchronously and returns
// the success envelope. Dispatch errors map to InvalidArgument.
func (s *Server) Dispatch(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	ctx, span := s.tracer.Start(ctx, "worker.Dispatch")
	defer span.End()

	var req domain.JobRequest
	if err := rpc.FromStruct(in, &req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid job request")
		return nil, status.Error(grpccodes.InvalidArgument, "invalid job request")
	}
	span.SetAttributes(
		attribute.String("job.type", string(req.Job.Type)),
		attribute.String("request.id", req.RequestID),
		attribute.String("worker.id", s.workerID),
	)
	s.logger.Info("received job over grpc", "request_id", req.RequestID, "job_type", req.Job.Type)

	result, err := s.dispatcher.Dispatch(ctx, &req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dispatch failed")
		var de *domain.DispatchError
		if errors.As(err, &de) {
			return nil, status.Error(grpccodes.InvalidArgument, de.Message)
		}
		return nil, status.Error(grpccodes.Internal, "internal error")
	}

	out, err := rpc.ToStruct(result)
	if err != nil {
		span.RecordError(err)
		s.logger.Error("failed to encode job result", "request_id", req.RequestID, "error", err)
		return nil, status.Error(grpccodes.Internal, "failed to encode result")
	}
	return out, nil
}
