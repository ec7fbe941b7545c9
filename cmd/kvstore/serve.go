package main

import (
	"context"

	"github.com/brbranch/kvstore/internal/bootstrap"
	"github.com/brbranch/kvstore/internal/model"
	grpctransport "github.com/brbranch/kvstore/internal/transport/grpc"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// serveOptions はserveコマンドのフラグ
// 指定されたフラグだけが設定ファイル・環境変数の値を上書きする
type serveOptions struct {
	ConfigPath string
	Host       string
	Port       int
	Snapshot   string
	Backend    string
	LogLevel   string
}

func addServeFlags(cmd *cobra.Command, opts *serveOptions) {
	fs := cmd.Flags()
	fs.StringVarP(&opts.ConfigPath, "config", "c", "", "Config file path (.json or .yaml)")
	fs.StringVar(&opts.Host, "host", "", "Listen host (default: all interfaces)")
	fs.IntVarP(&opts.Port, "port", "p", 0, "Listen port (default: 50051)")
	fs.StringVar(&opts.Snapshot, "snapshot", "", "Snapshot path (default: ~/.kvstore/data/kvstore.snap)")
	fs.StringVar(&opts.Backend, "backend", "", "Snapshot backend: file, sqlite")
	fs.StringVar(&opts.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
}

// apply は変更されたフラグだけをcfgに反映する
func (o *serveOptions) apply(fs *pflag.FlagSet) func(cfg *model.Config) {
	return func(cfg *model.Config) {
		if fs.Changed("host") {
			cfg.Server.Host = o.Host
		}
		if fs.Changed("port") {
			cfg.Server.Port = o.Port
		}
		if fs.Changed("snapshot") {
			cfg.Snapshot.Path = o.Snapshot
		}
		if fs.Changed("backend") {
			cfg.Snapshot.Backend = o.Backend
		}
		if fs.Changed("log-level") {
			cfg.Log.Level = o.LogLevel
		}
	}
}

func newServeCmd() *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the gRPC server",
		Long:  `Load the snapshot, serve until SIGINT/SIGTERM, then drain in-flight calls and persist the snapshot.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts, cmd.Flags())
		},
	}
	addServeFlags(cmd, opts)
	return cmd
}

// runServe はserveコマンドを実行
func runServe(ctx context.Context, opts *serveOptions, fs *pflag.FlagSet) error {
	services, cleanup, err := bootstrap.Initialize(ctx, opts.ConfigPath, bootstrap.WithOverride(opts.apply(fs)))
	if err != nil {
		return err
	}
	defer cleanup()

	server := newServer(services)
	return server.Run(ctx)
}

// newServer はServicesからgRPCサーバーを作成する
// シャットダウン時は呼び出しの排出後にスナップショットを保存する
func newServer(services *bootstrap.Services) *grpctransport.Server {
	serverCfg := services.Config.Server
	return grpctransport.New(services.Store, grpctransport.Config{
		Addr:          serverCfg.Addr(),
		MaxWorkers:    serverCfg.MaxWorkers,
		ShutdownGrace: serverCfg.ShutdownGrace.Std(),
	}, services.Logger, grpctransport.WithOnShutdown(services.Persist))
}
