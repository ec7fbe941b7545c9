package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/brbranch/kvstore/internal/config"
	"github.com/brbranch/kvstore/internal/kvclient"
	"github.com/spf13/cobra"
)

var defaultAddr = fmt.Sprintf("localhost:%d", config.DefaultPort)

func newIngestCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "ingest <file.jsonl>...",
		Short: "Put JSONL chunk records into a running server",
		Long: `Each line is {"chunk_id": string|number, "text": string, "embedding": [float, ...]}.
Use "-" to read from stdin.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := kvclient.Dial(addr)
			if err != nil {
				return err
			}
			defer client.Close()

			return runIngest(cmd.Context(), client, args, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", defaultAddr, "Server address")
	return cmd
}

func runIngest(ctx context.Context, dst kvclient.Putter, files []string, stdin io.Reader, out io.Writer) error {
	var total kvclient.IngestStats
	for _, name := range files {
		stats, err := ingestFile(ctx, dst, name, stdin)
		total.Total += stats.Total
		total.Overwritten += stats.Overwritten
		if err != nil {
			return fmt.Errorf("failed to ingest %s: %w", name, err)
		}
		fmt.Fprintf(out, "%s: total=%d overwritten=%d\n", name, stats.Total, stats.Overwritten)
	}
	if len(files) > 1 {
		fmt.Fprintf(out, "all: total=%d overwritten=%d\n", total.Total, total.Overwritten)
	}
	return nil
}

func ingestFile(ctx context.Context, dst kvclient.Putter, name string, stdin io.Reader) (kvclient.IngestStats, error) {
	if name == "-" {
		return kvclient.Ingest(ctx, dst, stdin)
	}

	f, err := os.Open(name)
	if err != nil {
		return kvclient.IngestStats{}, err
	}
	defer f.Close()
	return kvclient.Ingest(ctx, dst, f)
}

func newHealthCmd() *cobra.Command {
	var (
		addr    string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Query a running server's health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := kvclient.Dial(addr)
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			info, err := client.Health(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "server=%s version=%s keys=%d\n", info.Name, info.Version, info.KeyCount)
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", defaultAddr, "Server address")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "Request timeout")
	return cmd
}
