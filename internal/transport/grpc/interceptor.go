package grpc

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/brbranch/kvstore/internal/kvpb"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// RequestIDHeader はリクエストIDを返すレスポンスヘッダー名
const RequestIDHeader = "x-request-id"

// workerPool はストア処理を同時にmaxWorkers件までに制限する
// ストリームは終了するまでスロットを保持する
type workerPool struct {
	sem *semaphore.Weighted
}

func newWorkerPool(maxWorkers int) *workerPool {
	return &workerPool{sem: semaphore.NewWeighted(int64(maxWorkers))}
}

// covers はKeyValueStoreのメソッドだけを対象にする（healthは対象外）
func (p *workerPool) covers(fullMethod string) bool {
	return strings.HasPrefix(fullMethod, "/"+kvpb.ServiceName+"/")
}

func (p *workerPool) acquire(ctx context.Context) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return status.FromContextError(err).Err()
	}
	return nil
}

func (p *workerPool) unaryInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if !p.covers(info.FullMethod) {
		return handler(ctx, req)
	}
	if err := p.acquire(ctx); err != nil {
		return nil, err
	}
	defer p.sem.Release(1)
	return handler(ctx, req)
}

func (p *workerPool) streamInterceptor(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	if !p.covers(info.FullMethod) {
		return handler(srv, ss)
	}
	if err := p.acquire(ss.Context()); err != nil {
		return err
	}
	defer p.sem.Release(1)
	return handler(srv, ss)
}

func loggingUnaryInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		requestID := uuid.NewString()
		if err := grpc.SetHeader(ctx, metadata.Pairs(RequestIDHeader, requestID)); err != nil {
			logger.Debug("failed to set request id header", "error", err)
		}

		start := time.Now()
		resp, err := handler(ctx, req)
		logCall(ctx, logger, info.FullMethod, requestID, start, err)
		return resp, err
	}
}

func loggingStreamInterceptor(logger *slog.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		requestID := uuid.NewString()
		if err := ss.SetHeader(metadata.Pairs(RequestIDHeader, requestID)); err != nil {
			logger.Debug("failed to set request id header", "error", err)
		}

		start := time.Now()
		err := handler(srv, ss)
		logCall(ss.Context(), logger, info.FullMethod, requestID, start, err)
		return err
	}
}

func logCall(ctx context.Context, logger *slog.Logger, method, requestID string, start time.Time, err error) {
	code := status.Code(err)
	level := slog.LevelDebug
	if err != nil {
		level = slog.LevelWarn
	}
	logger.Log(ctx, level, "rpc",
		"method", method,
		"request_id", requestID,
		"code", code.String(),
		"duration", time.Since(start).String(),
	)
}
