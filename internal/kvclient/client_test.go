package kvclient

import (
	"context"
	"errors"
	"net"
	"slices"
	"testing"
	"time"

	"github.com/brbranch/kvstore/internal/store"
	grpctransport "github.com/brbranch/kvstore/internal/transport/grpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"
)

// newTestClient はbufconn上でサーバーを起動し、接続済みのClientを返す
func newTestClient(t *testing.T, st store.Store) *Client {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := grpctransport.New(st, grpctransport.Config{MaxWorkers: 4, ShutdownGrace: time.Second}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Serve(ctx, lis)
	}()

	client, err := Dial("passthrough:///bufnet", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	require.NoError(t, err)

	t.Cleanup(func() {
		client.Close()
		cancel()
		<-done
	})
	return client
}

func TestClient_Operations(t *testing.T) {
	c := newTestClient(t, store.NewMemoryStore())
	ctx := context.Background()

	keys, err := c.List(ctx)
	require.NoError(t, err)
	assert.NotNil(t, keys)
	assert.Empty(t, keys)

	overwritten, err := c.Put(ctx, "a", "alpha", EncodeEmbedding([]float32{1, 2}))
	require.NoError(t, err)
	assert.False(t, overwritten)

	overwritten, err = c.Put(ctx, "a", "alpha2", EncodeEmbedding([]float32{3, 4}))
	require.NoError(t, err)
	assert.True(t, overwritten)

	text, found, err := c.GetText(ctx, "a")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "alpha2", text)

	info, err := c.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, store.HealthInfo{Name: store.ServerName, Version: store.ServerVersion, KeyCount: 1}, info)

	deleted, err := c.Delete(ctx, "a")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = c.Delete(ctx, "a")
	require.NoError(t, err)
	assert.False(t, deleted)

	_, found, err = c.GetText(ctx, "a")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestClient_GetTextsPreservesOrder(t *testing.T) {
	c := newTestClient(t, store.NewMemoryStore())
	ctx := context.Background()

	for _, k := range []string{"x", "y", "z"} {
		_, err := c.Put(ctx, k, "text-"+k, nil)
		require.NoError(t, err)
	}

	texts, err := c.GetTexts(ctx, []string{"z", "missing", "x", "y", "x"})
	require.NoError(t, err)
	assert.Equal(t, []string{"text-z", "", "text-x", "text-y", "text-x"}, texts)

	texts, err = c.GetTexts(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, texts)
}

func TestClient_StreamEmbeddings(t *testing.T) {
	st := store.NewMemoryStore()
	st.Put("a", "", EncodeEmbedding([]float32{1}))
	st.Put("b", "", EncodeEmbedding([]float32{2}))
	c := newTestClient(t, st)

	var keys []string
	err := c.StreamEmbeddings(context.Background(), func(key string, embedding []byte) error {
		keys = append(keys, key)
		return nil
	})
	require.NoError(t, err)
	slices.Sort(keys)
	assert.Equal(t, []string{"a", "b"}, keys)

	stop := errors.New("stop")
	calls := 0
	err = c.StreamEmbeddings(context.Background(), func(string, []byte) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestClient_CallAfterClose(t *testing.T) {
	c := newTestClient(t, store.NewMemoryStore())
	require.NoError(t, c.Close())

	_, err := c.List(context.Background())
	assert.Error(t, err)
}
