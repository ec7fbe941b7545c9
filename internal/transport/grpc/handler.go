package grpc

import (
	"context"

	"github.com/brbranch/kvstore/internal/kvpb"
	"github.com/brbranch/kvstore/internal/store"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// handler はRPCをストア操作にそのまま変換する
type handler struct {
	store store.Store
}

var _ kvpb.KeyValueStoreServer = (*handler)(nil)

func (h *handler) Put(_ context.Context, req *kvpb.PutRequest) (*kvpb.PutResponse, error) {
	overwritten := h.store.Put(req.Key, req.Text, req.Embedding)
	return &kvpb.PutResponse{Overwritten: overwritten}, nil
}

func (h *handler) GetText(_ context.Context, req *kvpb.GetTextRequest) (*kvpb.GetTextResponse, error) {
	text, found := h.store.GetText(req.Key)
	return &kvpb.GetTextResponse{Found: found, Text: text}, nil
}

func (h *handler) Delete(_ context.Context, req *kvpb.DeleteRequest) (*kvpb.DeleteResponse, error) {
	return &kvpb.DeleteResponse{Deleted: h.store.Delete(req.Key)}, nil
}

func (h *handler) List(_ context.Context, _ *kvpb.ListRequest) (*kvpb.ListResponse, error) {
	return &kvpb.ListResponse{Keys: h.store.List()}, nil
}

func (h *handler) StreamEmbeddings(_ *kvpb.StreamEmbeddingsRequest, stream grpc.ServerStreamingServer[kvpb.EmbeddingEntry]) error {
	ctx := stream.Context()
	for key, embedding := range h.store.StreamEmbeddings() {
		if err := ctx.Err(); err != nil {
			return status.FromContextError(err).Err()
		}
		if err := stream.Send(&kvpb.EmbeddingEntry{Key: key, Embedding: embedding}); err != nil {
			return err
		}
	}
	return nil
}

func (h *handler) Health(_ context.Context, _ *kvpb.HealthRequest) (*kvpb.HealthResponse, error) {
	info := h.store.Health()
	return &kvpb.HealthResponse{
		ServerName:    info.Name,
		ServerVersion: info.Version,
		KeyCount:      int64(info.KeyCount),
	}, nil
}
