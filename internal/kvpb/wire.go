package kvpb

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protowire"
)

// Message はkvstore.protoのメッセージを表す
// 全メッセージはproto3のワイヤー形式で読み書きされる
type Message interface {
	// AppendWire はbにエンコード結果を追加して返す
	AppendWire(b []byte) []byte
	// UnmarshalWire はbをデコードしてメッセージを上書きする
	UnmarshalWire(b []byte) error
}

// Marshal はメッセージをワイヤー形式にエンコードする
func Marshal(m Message) []byte {
	return m.AppendWire(nil)
}

// fieldFunc は既知フィールドの値を読み取り、消費したバイト数を返す
// 未知のフィールドの場合はhandled=falseを返す
type fieldFunc func(num protowire.Number, typ protowire.Type, b []byte) (n int, handled bool, err error)

// consumeMessage はbの全フィールドを走査する（未知のフィールドは読み飛ばす）
func consumeMessage(b []byte, fn fieldFunc) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		n, handled, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		if !handled {
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
	}
	return nil
}

func wireTypeError(num protowire.Number, got, want protowire.Type) error {
	return fmt.Errorf("kvpb: field %d has wire type %d, want %d", num, got, want)
}

func consumeString(num protowire.Number, typ protowire.Type, b []byte, dst *string) (int, bool, error) {
	if typ != protowire.BytesType {
		return 0, true, wireTypeError(num, typ, protowire.BytesType)
	}
	v, n := protowire.ConsumeString(b)
	if n < 0 {
		return n, true, nil
	}
	// proto3のstringはUTF-8でなければならない
	if !utf8.ValidString(v) {
		return n, true, fmt.Errorf("kvpb: field %d contains invalid UTF-8", num)
	}
	*dst = v
	return n, true, nil
}

func consumeBytes(num protowire.Number, typ protowire.Type, b []byte, dst *[]byte) (int, bool, error) {
	if typ != protowire.BytesType {
		return 0, true, wireTypeError(num, typ, protowire.BytesType)
	}
	v, n := protowire.ConsumeBytes(b)
	if n >= 0 {
		// 受信バッファから切り離す
		*dst = bytes.Clone(v)
		if *dst == nil {
			*dst = []byte{}
		}
	}
	return n, true, nil
}

func consumeBool(num protowire.Number, typ protowire.Type, b []byte, dst *bool) (int, bool, error) {
	if typ != protowire.VarintType {
		return 0, true, wireTypeError(num, typ, protowire.VarintType)
	}
	v, n := protowire.ConsumeVarint(b)
	if n >= 0 {
		*dst = protowire.DecodeBool(v)
	}
	return n, true, nil
}

func consumeInt64(num protowire.Number, typ protowire.Type, b []byte, dst *int64) (int, bool, error) {
	if typ != protowire.VarintType {
		return 0, true, wireTypeError(num, typ, protowire.VarintType)
	}
	v, n := protowire.ConsumeVarint(b)
	if n >= 0 {
		*dst = int64(v)
	}
	return n, true, nil
}

// proto3ではデフォルト値のフィールドは出力しない

func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeBool(v))
}

func appendInt64(b []byte, num protowire.Number, v int64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(v))
}
