// Package grpc implements the gRPC transport for kvstore.
package grpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/brbranch/kvstore/internal/kvpb"
	"github.com/brbranch/kvstore/internal/store"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// State はサーバーのライフサイクル状態
type State int32

const (
	StateInitializing State = iota
	StateServing
	StateShuttingDown
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateServing:
		return "serving"
	case StateShuttingDown:
		return "shutting_down"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Config はgRPCサーバー設定
type Config struct {
	Addr          string        // listen address (例: ":50051")
	MaxWorkers    int           // 同時にストア処理を実行できる呼び出し数
	ShutdownGrace time.Duration // GracefulStopを待つ最大時間、超えたらStop
}

// ShutdownHook は接続の排出後、Serveが戻る前に呼ばれる
type ShutdownHook func(ctx context.Context) error

// Option はServerのオプション
type Option func(*Server)

// WithOnShutdown はシャットダウンフックを追加する
func WithOnShutdown(hook ShutdownHook) Option {
	return func(s *Server) {
		s.hooks = append(s.hooks, hook)
	}
}

// WithServerOptions は追加のgrpc.ServerOptionを指定する
func WithServerOptions(opts ...grpc.ServerOption) Option {
	return func(s *Server) {
		s.serverOpts = append(s.serverOpts, opts...)
	}
}

// Server はKeyValueStoreサービスを提供するgRPCサーバー
type Server struct {
	config     Config
	logger     *slog.Logger
	srv        *grpc.Server
	health     *health.Server
	state      atomic.Int32
	hooks      []ShutdownHook
	serverOpts []grpc.ServerOption
}

// New は新しいServerを生成
func New(st store.Store, config Config, logger *slog.Logger, opts ...Option) *Server {
	if config.MaxWorkers < 1 {
		config.MaxWorkers = 1
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Server{
		config: config,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	pool := newWorkerPool(config.MaxWorkers)
	serverOpts := append([]grpc.ServerOption{
		grpc.ForceServerCodec(kvpb.Codec{}),
		grpc.ChainUnaryInterceptor(loggingUnaryInterceptor(logger), pool.unaryInterceptor),
		grpc.ChainStreamInterceptor(loggingStreamInterceptor(logger), pool.streamInterceptor),
	}, s.serverOpts...)
	s.srv = grpc.NewServer(serverOpts...)

	kvpb.RegisterKeyValueStoreServer(s.srv, &handler{store: st})

	s.health = health.NewServer()
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	s.health.SetServingStatus(kvpb.ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(s.srv, s.health)

	return s
}

// State は現在のライフサイクル状態を返す
func (s *Server) State() State {
	return State(s.state.Load())
}

func (s *Server) setState(state State) {
	s.state.Store(int32(state))
	s.logger.Info("server state changed", "state", state.String())
}

// Run はAddrでlistenし、contextがキャンセルされるまで実行
func (s *Server) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}
	return s.Serve(ctx, lis)
}

// Serve はlisで接続を受け付け、contextがキャンセルされるまで実行
// キャンセル後は処理中の呼び出しを猶予時間まで排出し、シャットダウンフックを実行する
// 猶予時間を過ぎても終わらない呼び出しがあっても、フックの実行とTerminatedへの遷移は必ず行う
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(kvpb.ServiceName, healthpb.HealthCheckResponse_SERVING)
	s.setState(StateServing)
	s.logger.Info("grpc server listening", "addr", lis.Addr().String(), "max_workers", s.config.MaxWorkers)

	serveErrCh := make(chan error, 1)
	go func() {
		if err := s.srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			serveErrCh <- fmt.Errorf("failed to serve: %w", err)
			return
		}
		serveErrCh <- nil
	}()

	var serveErr error
	served := false
	select {
	case <-ctx.Done():
	case serveErr = <-serveErrCh:
		served = true
	}

	if stopped := s.drain(); stopped && !served {
		// grpc.Server停止後はServeもすぐに戻る
		select {
		case serveErr = <-serveErrCh:
		case <-time.After(forceStopWait):
		}
	}

	// 親contextはキャンセル済みのことが多いので、フックにはキャンセルされないcontextを渡す
	hookCtx := context.WithoutCancel(ctx)
	var hookErrs []error
	for _, hook := range s.hooks {
		if err := hook(hookCtx); err != nil {
			hookErrs = append(hookErrs, err)
		}
	}

	s.setState(StateTerminated)
	return errors.Join(serveErr, errors.Join(hookErrs...))
}

// forceStopWait は強制停止後にgrpc.Serverの停止完了を待つ上限
// ストア内で止まったハンドラがあるとgrpc.Serverの停止は完了しない
const forceStopWait = 500 * time.Millisecond

// drain は新規受付を止め、処理中の呼び出しを猶予時間まで待つ
// 猶予時間を過ぎたら強制停止し、forceStopWaitだけ待って戻る
// grpc.Serverの停止が完了していればtrueを返す
func (s *Server) drain() bool {
	s.setState(StateShuttingDown)
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.srv.GracefulStop()
		close(done)
	}()

	grace := time.NewTimer(s.config.ShutdownGrace)
	defer grace.Stop()

	select {
	case <-done:
		return true
	case <-grace.C:
	}

	s.logger.Warn("graceful stop timed out, forcing stop", "grace", s.config.ShutdownGrace.String())
	go s.srv.Stop()

	forced := time.NewTimer(forceStopWait)
	defer forced.Stop()

	select {
	case <-done:
		return true
	case <-forced.C:
		s.logger.Warn("handlers still running after forced stop, continuing shutdown")
		return false
	}
}
