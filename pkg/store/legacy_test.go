package store

import (
	"bytes"
	"testing"

	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/wdtp/pkg/tree"
)

// deflate produces the legacy encoding.
func deflate(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func TestLegacyHeaderDetection(t *testing.T) {
	packed, err := deflate([]byte("type: wdtpProject\n"))
	require.NoError(t, err)
	assert.True(t, isLegacyCompressed(packed))
	assert.False(t, isLegacyCompressed([]byte("type: wdtpProject\n")))
	assert.False(t, isLegacyCompressed([]byte{0x78}))

	plain, err := inflate(packed)
	require.NoError(t, err)
	assert.Equal(t, "type: wdtpProject\n", string(plain))
}

func TestParseOrder(t *testing.T) {
	key, err := parseOrder("4")
	require.NoError(t, err)
	assert.Equal(t, tree.OrderCreateTime, key)

	key, err = parseOrder("title")
	require.NoError(t, err)
	assert.Equal(t, tree.OrderTitle, key)

	_, err = parseOrder("2")
	assert.Error(t, err)
}
