package kvpb

import (
	"fmt"

	"google.golang.org/protobuf/proto"
)

// CodecName はgRPCのcontent-subtype。ワイヤー形式は標準のprotobufと同一
const CodecName = "proto"

// Codec はkvpbのメッセージとproto.Message（標準のhealthサービス等）の両方を扱うgRPCコーデック
type Codec struct{}

// Marshal はvをワイヤー形式にエンコードする
func (Codec) Marshal(v any) ([]byte, error) {
	switch m := v.(type) {
	case Message:
		return m.AppendWire(nil), nil
	case proto.Message:
		return proto.Marshal(m)
	default:
		return nil, fmt.Errorf("kvpb: cannot marshal %T", v)
	}
}

// Unmarshal はdataをvにデコードする
func (Codec) Unmarshal(data []byte, v any) error {
	switch m := v.(type) {
	case Message:
		return m.UnmarshalWire(data)
	case proto.Message:
		return proto.Unmarshal(data, m)
	default:
		return fmt.Errorf("kvpb: cannot unmarshal into %T", v)
	}
}

// Name はコーデック名を返す
func (Codec) Name() string {
	return CodecName
}
