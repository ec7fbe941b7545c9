package kvclient

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeEmbedding_LittleEndian(t *testing.T) {
	assert.Equal(t, []byte{0x00, 0x00, 0x80, 0x3f}, EncodeEmbedding([]float32{1}))
	assert.Empty(t, EncodeEmbedding(nil))
}

func TestDecodeEmbedding(t *testing.T) {
	in := []float32{0, -1.5, 3.25, math.MaxFloat32, float32(math.Inf(1))}
	out, err := DecodeEmbedding(EncodeEmbedding(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)

	out, err = DecodeEmbedding(nil)
	require.NoError(t, err)
	assert.Empty(t, out)

	_, err = DecodeEmbedding([]byte{1, 2, 3})
	assert.Error(t, err)
}
