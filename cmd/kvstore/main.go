package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// ビルド時変数（-ldflags で変更可能）
var version = "dev"

func main() {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}

// newRootCmd はコマンドツリーを作成する（テスト容易性のため毎回新しく作る）
// サブコマンドなしの場合はserveを実行する
func newRootCmd() *cobra.Command {
	opts := &serveOptions{}

	root := &cobra.Command{
		Use:           "kvstore",
		Short:         "In-memory chunk/embedding key-value store",
		Long:          `kvstore serves chunk texts and embeddings over gRPC and persists them as a snapshot on shutdown.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts, cmd.Flags())
		},
	}
	addServeFlags(root, opts)

	root.AddCommand(
		newServeCmd(),
		newIngestCmd(),
		newHealthCmd(),
		newVersionCmd(),
		newConfigCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "kvstore version %s\n", version)
		},
	}
}

// setupSignalHandler はSIGINT/SIGTERMを受けてcontextをキャンセルする
func setupSignalHandler() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}
