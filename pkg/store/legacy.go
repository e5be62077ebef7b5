package store

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zlib"

	"github.com/grovetools/wdtp/pkg/tree"
)

// Project files written by early releases are zlib streams at the best
// compression level. They are recognized by their two-byte header.
var legacyHeader = []byte{0x78, 0xDA}

// Older files store the order key as its numeric index. Index 2 was never assigned.
var legacyOrderKeys = map[int]tree.OrderKey{
	0: tree.OrderName,
	1: tree.OrderTitle,
	3: tree.OrderSize,
	4: tree.OrderCreateTime,
	5: tree.OrderModifyTime,
}

func isLegacyCompressed(data []byte) bool {
	return len(data) >= 2 && bytes.Equal(data[:2], legacyHeader)
}

func inflate(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("inflate legacy project: %w", err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("inflate legacy project: %w", err)
	}
	return out, nil
}

func parseOrder(s string) (tree.OrderKey, error) {
	s = strings.TrimSpace(s)
	if i, err := strconv.Atoi(s); err == nil {
		key, ok := legacyOrderKeys[i]
		if !ok {
			return 0, fmt.Errorf("unknown order index %d", i)
		}
		return key, nil
	}
	return tree.ParseOrderKey(s)
}
