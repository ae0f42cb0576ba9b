// Package codec provides optional compression of a drained batch before
// upload. Objects stay newline-delimited JSON after decompression.
package codec

import (
	"bytes"
	"fmt"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Encoder transforms a batch body for storage. Ext is appended to the
// object key postfix ("" for identity, ".gz", ".zst").
type Encoder interface {
	Encode(data []byte) ([]byte, error)
	Ext() string
	Name() string
}

// ForName returns the encoder for a configured encoding name.
func ForName(name string) (Encoder, error) {
	switch name {
	case "", "none":
		return identity{}, nil
	case "gzip":
		return gzipEncoder{}, nil
	case "zstd":
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, fmt.Errorf("create zstd encoder: %w", err)
		}
		return &zstdEncoder{enc: enc}, nil
	default:
		return nil, fmt.Errorf("unknown encoding %q", name)
	}
}

type identity struct{}

func (identity) Encode(data []byte) ([]byte, error) { return data, nil }
func (identity) Ext() string                        { return "" }
func (identity) Name() string                       { return "none" }

type gzipEncoder struct{}

func (gzipEncoder) Encode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, fmt.Errorf("gzip batch: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close gzip writer: %w", err)
	}
	return buf.Bytes(), nil
}

func (gzipEncoder) Ext() string  { return ".gz" }
func (gzipEncoder) Name() string { return "gzip" }

type zstdEncoder struct {
	enc *zstd.Encoder
}

func (z *zstdEncoder) Encode(data []byte) ([]byte, error) {
	return z.enc.EncodeAll(data, nil), nil
}

func (z *zstdEncoder) Ext() string  { return ".zst" }
func (z *zstdEncoder) Name() string { return "zstd" }
