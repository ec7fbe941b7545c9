// Package kvpb defines the kvstore wire schema, gRPC service descriptor and client stub.
package kvpb

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName はgRPCサービスの完全名
const ServiceName = "kvstore.v1.KeyValueStore"

// メソッドの完全名
const (
	MethodPut              = "/" + ServiceName + "/Put"
	MethodGetText          = "/" + ServiceName + "/GetText"
	MethodDelete           = "/" + ServiceName + "/Delete"
	MethodList             = "/" + ServiceName + "/List"
	MethodStreamEmbeddings = "/" + ServiceName + "/StreamEmbeddings"
	MethodHealth           = "/" + ServiceName + "/Health"
)

// KeyValueStoreServer はサーバー側で実装するインターフェース
type KeyValueStoreServer interface {
	Put(context.Context, *PutRequest) (*PutResponse, error)
	GetText(context.Context, *GetTextRequest) (*GetTextResponse, error)
	Delete(context.Context, *DeleteRequest) (*DeleteResponse, error)
	List(context.Context, *ListRequest) (*ListResponse, error)
	StreamEmbeddings(*StreamEmbeddingsRequest, grpc.ServerStreamingServer[EmbeddingEntry]) error
	Health(context.Context, *HealthRequest) (*HealthResponse, error)
}

// RegisterKeyValueStoreServer はsrvをgRPCサーバーに登録する
// サーバーはgrpc.ForceServerCodec(Codec{})で作成すること
func RegisterKeyValueStoreServer(s grpc.ServiceRegistrar, srv KeyValueStoreServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// ServiceDesc はKeyValueStoreサービスの記述子
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*KeyValueStoreServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Put",
			Handler: unaryHandler(MethodPut, func(s KeyValueStoreServer, ctx context.Context, in *PutRequest) (any, error) {
				return s.Put(ctx, in)
			}),
		},
		{
			MethodName: "GetText",
			Handler: unaryHandler(MethodGetText, func(s KeyValueStoreServer, ctx context.Context, in *GetTextRequest) (any, error) {
				return s.GetText(ctx, in)
			}),
		},
		{
			MethodName: "Delete",
			Handler: unaryHandler(MethodDelete, func(s KeyValueStoreServer, ctx context.Context, in *DeleteRequest) (any, error) {
				return s.Delete(ctx, in)
			}),
		},
		{
			MethodName: "List",
			Handler: unaryHandler(MethodList, func(s KeyValueStoreServer, ctx context.Context, in *ListRequest) (any, error) {
				return s.List(ctx, in)
			}),
		},
		{
			MethodName: "Health",
			Handler: unaryHandler(MethodHealth, func(s KeyValueStoreServer, ctx context.Context, in *HealthRequest) (any, error) {
				return s.Health(ctx, in)
			}),
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "StreamEmbeddings",
			Handler:       streamEmbeddingsHandler,
			ServerStreams: true,
		},
	},
	Metadata: "kvstore.proto",
}

// unaryHandler はリクエストのデコードとインターセプタ呼び出しを行うハンドラを作る
func unaryHandler[Req any](method string, call func(KeyValueStoreServer, context.Context, *Req) (any, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}

		s := srv.(KeyValueStoreServer)
		if interceptor == nil {
			return call(s, ctx, in)
		}

		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: method,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(s, ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func streamEmbeddingsHandler(srv any, stream grpc.ServerStream) error {
	in := new(StreamEmbeddingsRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(KeyValueStoreServer).StreamEmbeddings(in, &grpc.GenericServerStream[StreamEmbeddingsRequest, EmbeddingEntry]{ServerStream: stream})
}

// KeyValueStoreClient はKeyValueStoreサービスのクライアントスタブ
type KeyValueStoreClient struct {
	cc grpc.ClientConnInterface
}

// NewKeyValueStoreClient はクライアントスタブを作成する
func NewKeyValueStoreClient(cc grpc.ClientConnInterface) *KeyValueStoreClient {
	return &KeyValueStoreClient{cc: cc}
}

// callOptions は全呼び出しでkvpbのコーデックを使うようにする
func callOptions(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.ForceCodec(Codec{})}, opts...)
}

// Put はPutを呼び出す
func (c *KeyValueStoreClient) Put(ctx context.Context, in *PutRequest, opts ...grpc.CallOption) (*PutResponse, error) {
	out := new(PutResponse)
	if err := c.cc.Invoke(ctx, MethodPut, in, out, callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

// GetText はGetTextを呼び出す
func (c *KeyValueStoreClient) GetText(ctx context.Context, in *GetTextRequest, opts ...grpc.CallOption) (*GetTextResponse, error) {
	out := new(GetTextResponse)
	if err := c.cc.Invoke(ctx, MethodGetText, in, out, callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

// Delete はDeleteを呼び出す
func (c *KeyValueStoreClient) Delete(ctx context.Context, in *DeleteRequest, opts ...grpc.CallOption) (*DeleteResponse, error) {
	out := new(DeleteResponse)
	if err := c.cc.Invoke(ctx, MethodDelete, in, out, callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

// List はListを呼び出す
func (c *KeyValueStoreClient) List(ctx context.Context, in *ListRequest, opts ...grpc.CallOption) (*ListResponse, error) {
	out := new(ListResponse)
	if err := c.cc.Invoke(ctx, MethodList, in, out, callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

// Health はHealthを呼び出す
func (c *KeyValueStoreClient) Health(ctx context.Context, in *HealthRequest, opts ...grpc.CallOption) (*HealthResponse, error) {
	out := new(HealthResponse)
	if err := c.cc.Invoke(ctx, MethodHealth, in, out, callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

// StreamEmbeddings はStreamEmbeddingsを開始する
// 返されたストリームのRecvがio.EOFを返すまで読み切ること
func (c *KeyValueStoreClient) StreamEmbeddings(ctx context.Context, in *StreamEmbeddingsRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[EmbeddingEntry], error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], MethodStreamEmbeddings, callOptions(opts)...)
	if err != nil {
		return nil, err
	}

	x := &grpc.GenericClientStream[StreamEmbeddingsRequest, EmbeddingEntry]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
