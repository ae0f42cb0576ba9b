package storage

import (
	"context"
	"path/filepath"
	"testing"
)

func TestOpenBucketMem(t *testing.T) {
	ctx := context.Background()
	bucket, err := OpenBucket(ctx, Config{Backend: "mem"})
	if err != nil {
		t.Fatalf("OpenBucket failed: %v", err)
	}
	defer bucket.Close()

	if err := bucket.WriteAll(ctx, "k", []byte("v"), nil); err != nil {
		t.Fatalf("WriteAll failed: %v", err)
	}
	got, err := bucket.ReadAll(ctx, "k")
	if err != nil || string(got) != "v" {
		t.Errorf("ReadAll = (%q, %v), want (v, nil)", got, err)
	}
}

func TestOpenBucketLocal(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	bucket, err := OpenBucket(ctx, Config{Backend: "local", LocalDir: dir})
	if err != nil {
		t.Fatalf("OpenBucket failed: %v", err)
	}
	defer bucket.Close()

	if err := bucket.WriteAll(ctx, "2025-03-09/0/app-x.jsonl", []byte("line\n"), nil); err != nil {
		t.Fatalf("WriteAll failed: %v", err)
	}
	got, err := bucket.ReadAll(ctx, "2025-03-09/0/app-x.jsonl")
	if err != nil || string(got) != "line\n" {
		t.Errorf("ReadAll = (%q, %v)", got, err)
	}
}

func TestOpenBucketRejectsBadConfig(t *testing.T) {
	ctx := context.Background()
	cases := []Config{
		{Backend: "s3"},                // missing bucket
		{Backend: "gcs"},               // missing bucket
		{Backend: "local"},             // missing dir
		{Backend: "tape", Bucket: "b"}, // unknown backend
	}
	for _, cfg := range cases {
		if _, err := OpenBucket(ctx, cfg); err == nil {
			t.Errorf("OpenBucket(%+v) should fail", cfg)
		}
	}
}

func TestURI(t *testing.T) {
	tests := []struct {
		cfg  Config
		want string
	}{
		{Config{Backend: "s3", Bucket: "logs"}, "s3://logs/a/b"},
		{Config{Backend: "gcs", Bucket: "logs"}, "gs://logs/a/b"},
		{Config{Backend: "local", LocalDir: "/data"}, "file://" + filepath.Join("/data", "a/b")},
		{Config{Backend: "mem"}, "a/b"},
	}
	for _, tc := range tests {
		if got := tc.cfg.URI("a/b"); got != tc.want {
			t.Errorf("URI(%s) = %q, want %q", tc.cfg.Backend, got, tc.want)
		}
	}
}
