package kvpb

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// PutRequest はPutの要求
type PutRequest struct {
	Key       string
	Text      string
	Embedding []byte
}

func (m *PutRequest) AppendWire(b []byte) []byte {
	b = appendString(b, 1, m.Key)
	b = appendString(b, 2, m.Text)
	return appendBytes(b, 3, m.Embedding)
}

func (m *PutRequest) UnmarshalWire(b []byte) error {
	*m = PutRequest{}
	return consumeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, bool, error) {
		switch num {
		case 1:
			return consumeString(num, typ, b, &m.Key)
		case 2:
			return consumeString(num, typ, b, &m.Text)
		case 3:
			return consumeBytes(num, typ, b, &m.Embedding)
		}
		return 0, false, nil
	})
}

// PutResponse はPutの応答
type PutResponse struct {
	Overwritten bool
}

func (m *PutResponse) AppendWire(b []byte) []byte {
	return appendBool(b, 1, m.Overwritten)
}

func (m *PutResponse) UnmarshalWire(b []byte) error {
	*m = PutResponse{}
	return consumeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, bool, error) {
		if num == 1 {
			return consumeBool(num, typ, b, &m.Overwritten)
		}
		return 0, false, nil
	})
}

// GetTextRequest はGetTextの要求
type GetTextRequest struct {
	Key string
}

func (m *GetTextRequest) AppendWire(b []byte) []byte {
	return appendString(b, 1, m.Key)
}

func (m *GetTextRequest) UnmarshalWire(b []byte) error {
	*m = GetTextRequest{}
	return consumeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, bool, error) {
		if num == 1 {
			return consumeString(num, typ, b, &m.Key)
		}
		return 0, false, nil
	})
}

// GetTextResponse はGetTextの応答
// Found=falseの場合Textは常に空文字
type GetTextResponse struct {
	Found bool
	Text  string
}

func (m *GetTextResponse) AppendWire(b []byte) []byte {
	b = appendBool(b, 1, m.Found)
	return appendString(b, 2, m.Text)
}

func (m *GetTextResponse) UnmarshalWire(b []byte) error {
	*m = GetTextResponse{}
	return consumeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, bool, error) {
		switch num {
		case 1:
			return consumeBool(num, typ, b, &m.Found)
		case 2:
			return consumeString(num, typ, b, &m.Text)
		}
		return 0, false, nil
	})
}

// DeleteRequest はDeleteの要求
type DeleteRequest struct {
	Key string
}

func (m *DeleteRequest) AppendWire(b []byte) []byte {
	return appendString(b, 1, m.Key)
}

func (m *DeleteRequest) UnmarshalWire(b []byte) error {
	*m = DeleteRequest{}
	return consumeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, bool, error) {
		if num == 1 {
			return consumeString(num, typ, b, &m.Key)
		}
		return 0, false, nil
	})
}

// DeleteResponse はDeleteの応答
type DeleteResponse struct {
	Deleted bool
}

func (m *DeleteResponse) AppendWire(b []byte) []byte {
	return appendBool(b, 1, m.Deleted)
}

func (m *DeleteResponse) UnmarshalWire(b []byte) error {
	*m = DeleteResponse{}
	return consumeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, bool, error) {
		if num == 1 {
			return consumeBool(num, typ, b, &m.Deleted)
		}
		return 0, false, nil
	})
}

// ListRequest はListの要求（フィールドなし）
type ListRequest struct{}

func (m *ListRequest) AppendWire(b []byte) []byte { return b }

func (m *ListRequest) UnmarshalWire(b []byte) error {
	return consumeMessage(b, skipAll)
}

// ListResponse はListの応答
type ListResponse struct {
	Keys []string
}

func (m *ListResponse) AppendWire(b []byte) []byte {
	// repeatedの要素は空文字でも出力する
	for _, key := range m.Keys {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendString(b, key)
	}
	return b
}

func (m *ListResponse) UnmarshalWire(b []byte) error {
	*m = ListResponse{}
	return consumeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, bool, error) {
		if num == 1 {
			var key string
			n, handled, err := consumeString(num, typ, b, &key)
			if err == nil && n >= 0 {
				m.Keys = append(m.Keys, key)
			}
			return n, handled, err
		}
		return 0, false, nil
	})
}

// StreamEmbeddingsRequest はStreamEmbeddingsの要求（フィールドなし）
type StreamEmbeddingsRequest struct{}

func (m *StreamEmbeddingsRequest) AppendWire(b []byte) []byte { return b }

func (m *StreamEmbeddingsRequest) UnmarshalWire(b []byte) error {
	return consumeMessage(b, skipAll)
}

// EmbeddingEntry はStreamEmbeddingsで送られる1件
type EmbeddingEntry struct {
	Key       string
	Embedding []byte
}

func (m *EmbeddingEntry) AppendWire(b []byte) []byte {
	b = appendString(b, 1, m.Key)
	return appendBytes(b, 2, m.Embedding)
}

func (m *EmbeddingEntry) UnmarshalWire(b []byte) error {
	*m = EmbeddingEntry{}
	return consumeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, bool, error) {
		switch num {
		case 1:
			return consumeString(num, typ, b, &m.Key)
		case 2:
			return consumeBytes(num, typ, b, &m.Embedding)
		}
		return 0, false, nil
	})
}

// HealthRequest はHealthの要求（フィールドなし）
type HealthRequest struct{}

func (m *HealthRequest) AppendWire(b []byte) []byte { return b }

func (m *HealthRequest) UnmarshalWire(b []byte) error {
	return consumeMessage(b, skipAll)
}

// HealthResponse はHealthの応答
type HealthResponse struct {
	ServerName    string
	ServerVersion string
	KeyCount      int64
}

func (m *HealthResponse) AppendWire(b []byte) []byte {
	b = appendString(b, 1, m.ServerName)
	b = appendString(b, 2, m.ServerVersion)
	return appendInt64(b, 3, m.KeyCount)
}

func (m *HealthResponse) UnmarshalWire(b []byte) error {
	*m = HealthResponse{}
	return consumeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, bool, error) {
		switch num {
		case 1:
			return consumeString(num, typ, b, &m.ServerName)
		case 2:
			return consumeString(num, typ, b, &m.ServerVersion)
		case 3:
			return consumeInt64(num, typ, b, &m.KeyCount)
		}
		return 0, false, nil
	})
}

func skipAll(protowire.Number, protowire.Type, []byte) (int, bool, error) {
	return 0, false, nil
}
