package codec

import (
	"bytes"
	"io"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

func TestForName(t *testing.T) {
	tests := []struct {
		name     string
		wantName string
		wantExt  string
	}{
		{"", "none", ""},
		{"none", "none", ""},
		{"gzip", "gzip", ".gz"},
		{"zstd", "zstd", ".zst"},
	}
	for _, tc := range tests {
		enc, err := ForName(tc.name)
		if err != nil {
			t.Fatalf("ForName(%q) failed: %v", tc.name, err)
		}
		if enc.Name() != tc.wantName {
			t.Errorf("ForName(%q).Name() = %q, want %q", tc.name, enc.Name(), tc.wantName)
		}
		if enc.Ext() != tc.wantExt {
			t.Errorf("ForName(%q).Ext() = %q, want %q", tc.name, enc.Ext(), tc.wantExt)
		}
	}

	if _, err := ForName("lz4"); err == nil {
		t.Error("ForName(lz4) should fail")
	}
}

func TestIdentityPassesThrough(t *testing.T) {
	enc, _ := ForName("none")
	in := []byte(`{"level":"INFO"}` + "\n")
	out, err := enc.Encode(in)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if !bytes.Equal(out, in) {
		t.Errorf("identity changed data: %q", out)
	}
}

func TestGzipRoundtrip(t *testing.T) {
	enc, _ := ForName("gzip")
	in := bytes.Repeat([]byte(`{"level":"INFO","msg":"hello"}`+"\n"), 100)

	out, err := enc.Encode(in)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if len(out) >= len(in) {
		t.Errorf("compressed %d bytes to %d, expected reduction on repetitive input", len(in), len(out))
	}

	r, err := gzip.NewReader(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("gzip.NewReader failed: %v", err)
	}
	defer r.Close()
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("decompress failed: %v", err)
	}
	if !bytes.Equal(got, in) {
		t.Error("gzip roundtrip mismatch")
	}
}

func TestZstdRoundtrip(t *testing.T) {
	enc, _ := ForName("zstd")
	in := bytes.Repeat([]byte(`{"level":"WARN","msg":"slow request"}`+"\n"), 100)

	out, err := enc.Encode(in)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		t.Fatalf("zstd.NewReader failed: %v", err)
	}
	defer dec.Close()
	got, err := dec.DecodeAll(out, nil)
	if err != nil {
		t.Fatalf("decompress failed: %v", err)
	}
	if !bytes.Equal(got, in) {
		t.Error("zstd roundtrip mismatch")
	}
}
