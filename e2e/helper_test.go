//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/brbranch/kvstore/internal/bootstrap"
	"github.com/brbranch/kvstore/internal/kvclient"
	"github.com/brbranch/kvstore/internal/model"
	grpctransport "github.com/brbranch/kvstore/internal/transport/grpc"
)

// stack は実TCP上で起動したサーバーと接続済みクライアント
type stack struct {
	services *bootstrap.Services
	server   *grpctransport.Server
	client   *kvclient.Client
	addr     string
	cancel   context.CancelFunc
	errCh    chan error
	cleanup  func()
}

// startStack はbootstrapからサーバーを組み立てて127.0.0.1のランダムポートで起動する
func startStack(t *testing.T, snapPath, backend string) *stack {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	services, cleanup, err := bootstrap.Initialize(context.Background(), "",
		bootstrap.WithOverride(func(cfg *model.Config) {
			cfg.Snapshot.Path = snapPath
			cfg.Snapshot.Backend = backend
			cfg.Server.MaxWorkers = 4
			cfg.Server.ShutdownGrace = model.Duration(2 * time.Second)
		}),
		bootstrap.WithLogWriter(&bytes.Buffer{}),
	)
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		cleanup()
		t.Fatalf("failed to listen: %v", err)
	}

	server := grpctransport.New(services.Store, grpctransport.Config{
		Addr:          lis.Addr().String(),
		MaxWorkers:    services.Config.Server.MaxWorkers,
		ShutdownGrace: services.Config.Server.ShutdownGrace.Std(),
	}, services.Logger, grpctransport.WithOnShutdown(services.Persist))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(ctx, lis)
	}()

	client, err := kvclient.Dial(lis.Addr().String())
	if err != nil {
		cancel()
		cleanup()
		t.Fatalf("Dial failed: %v", err)
	}

	s := &stack{
		services: services,
		server:   server,
		client:   client,
		addr:     lis.Addr().String(),
		cancel:   cancel,
		errCh:    errCh,
		cleanup:  cleanup,
	}
	t.Cleanup(func() {
		if s.cancel != nil {
			s.stop(t)
		}
	})
	return s
}

// stop はSIGINT受信と同じ経路でサーバーを停止する（排出→保存）
func (s *stack) stop(t *testing.T) {
	t.Helper()

	s.client.Close()
	s.cancel()
	s.cancel = nil

	select {
	case err := <-s.errCh:
		if err != nil {
			t.Fatalf("server stopped with error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
	s.cleanup()
}
