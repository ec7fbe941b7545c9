// Package kvclient is a typed client for the kvstore gRPC service.
package kvclient

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/brbranch/kvstore/internal/kvpb"
	"github.com/brbranch/kvstore/internal/store"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client はKeyValueStoreサービスのクライアント
type Client struct {
	conn *grpc.ClientConn
	kv   *kvpb.KeyValueStoreClient
}

// Dial はaddrのサーバーへの接続を作成する
// 接続は最初の呼び出し時に確立される
func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create client for %s: %w", addr, err)
	}
	return NewFromConn(conn), nil
}

// NewFromConn は既存の接続からClientを作成する
func NewFromConn(conn *grpc.ClientConn) *Client {
	return &Client{
		conn: conn,
		kv:   kvpb.NewKeyValueStoreClient(conn),
	}
}

// Close は接続を閉じる
func (c *Client) Close() error {
	return c.conn.Close()
}

// Put はチャンクを保存し、既存キーを上書きしたかどうかを返す
func (c *Client) Put(ctx context.Context, key, text string, embedding []byte) (bool, error) {
	resp, err := c.kv.Put(ctx, &kvpb.PutRequest{Key: key, Text: text, Embedding: embedding})
	if err != nil {
		return false, fmt.Errorf("failed to put %q: %w", key, err)
	}
	return resp.Overwritten, nil
}

// GetText はキーのテキストを返す
func (c *Client) GetText(ctx context.Context, key string) (string, bool, error) {
	resp, err := c.kv.GetText(ctx, &kvpb.GetTextRequest{Key: key})
	if err != nil {
		return "", false, fmt.Errorf("failed to get text %q: %w", key, err)
	}
	return resp.Text, resp.Found, nil
}

// GetTexts はkeysと同じ順序でテキストを返す（存在しないキーは空文字）
func (c *Client) GetTexts(ctx context.Context, keys []string) ([]string, error) {
	texts := make([]string, len(keys))
	for i, key := range keys {
		text, _, err := c.GetText(ctx, key)
		if err != nil {
			return nil, err
		}
		texts[i] = text
	}
	return texts, nil
}

// Delete はキーを削除し、存在していたかどうかを返す
func (c *Client) Delete(ctx context.Context, key string) (bool, error) {
	resp, err := c.kv.Delete(ctx, &kvpb.DeleteRequest{Key: key})
	if err != nil {
		return false, fmt.Errorf("failed to delete %q: %w", key, err)
	}
	return resp.Deleted, nil
}

// List は全キーを返す（順序保証なし）
func (c *Client) List(ctx context.Context) ([]string, error) {
	resp, err := c.kv.List(ctx, &kvpb.ListRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	if resp.Keys == nil {
		return []string{}, nil
	}
	return resp.Keys, nil
}

// Health はサーバー名・バージョン・キー数を返す
func (c *Client) Health(ctx context.Context) (store.HealthInfo, error) {
	resp, err := c.kv.Health(ctx, &kvpb.HealthRequest{})
	if err != nil {
		return store.HealthInfo{}, fmt.Errorf("failed to check health: %w", err)
	}
	return store.HealthInfo{
		Name:     resp.ServerName,
		Version:  resp.ServerVersion,
		KeyCount: int(resp.KeyCount),
	}, nil
}

// StreamEmbeddings は全embeddingを受信し、1件ごとにfnを呼ぶ
// fnがエラーを返すとストリームを打ち切ってそのエラーを返す
func (c *Client) StreamEmbeddings(ctx context.Context, fn func(key string, embedding []byte) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := c.kv.StreamEmbeddings(ctx, &kvpb.StreamEmbeddingsRequest{})
	if err != nil {
		return fmt.Errorf("failed to start embedding stream: %w", err)
	}

	for {
		entry, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to receive embedding: %w", err)
		}
		if err := fn(entry.Key, entry.Embedding); err != nil {
			return err
		}
	}
}
