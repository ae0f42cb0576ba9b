package partition

import (
	"fmt"
	"regexp"
	"testing"
	"time"
)

func testNamer(t *testing.T, limit int64, now func() time.Time) *Namer {
	t.Helper()
	seq := 0
	n, err := New(Config{
		Prefix:          "app",
		Postfix:         "jsonl",
		ObjectSizeLimit: limit,
		Now:             now,
		NewID: func() string {
			seq++
			return fmt.Sprintf("id%04d", seq)
		},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return n
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestKeyLayout(t *testing.T) {
	day := time.Date(2025, 3, 9, 15, 0, 0, 0, time.UTC)
	n := testNamer(t, 1000, fixedClock(day))

	key := n.KeyFor(100)
	want := "2025-03-09/0/app-id0001.jsonl"
	if key != want {
		t.Errorf("key = %q, want %q", key, want)
	}
}

func TestPartitionRollover(t *testing.T) {
	day := time.Date(2025, 3, 9, 15, 0, 0, 0, time.UTC)
	n := testNamer(t, 1000, fixedClock(day))

	// Accumulated sizes 400, 800, then 1200 > 1000: third write rolls over.
	sizes := []int64{400, 400, 400}
	wantIndex := []int{0, 0, 1}
	for i, size := range sizes {
		n.KeyFor(size)
		if got := n.Current().Index; got != wantIndex[i] {
			t.Errorf("flush %d: index = %d, want %d", i, got, wantIndex[i])
		}
	}

	if got := n.Current().Bytes; got != 400 {
		t.Errorf("bytes in new partition = %d, want 400", got)
	}
}

func TestOversizedSingleFlushNotSplit(t *testing.T) {
	day := time.Date(2025, 3, 9, 15, 0, 0, 0, time.UTC)
	n := testNamer(t, 1000, fixedClock(day))

	// A flush that alone exceeds the limit still lands in the empty
	// partition; the limit bounds accumulated writes, not one flush.
	n.KeyFor(5000)
	if got := n.Current().Index; got != 0 {
		t.Errorf("index after oversized flush = %d, want 0", got)
	}

	// The next flush starts a fresh partition.
	n.KeyFor(1)
	if got := n.Current().Index; got != 1 {
		t.Errorf("index after follow-up flush = %d, want 1", got)
	}
}

func TestDateRolloverResetsIndex(t *testing.T) {
	current := time.Date(2025, 3, 9, 23, 59, 0, 0, time.UTC)
	n := testNamer(t, 1000, func() time.Time { return current })

	n.KeyFor(900)
	n.KeyFor(900) // rolls to index 1
	if got := n.Current().Index; got != 1 {
		t.Fatalf("index = %d, want 1", got)
	}

	current = current.Add(2 * time.Minute) // next calendar day
	key := n.KeyFor(900)
	state := n.Current()
	if state.Index != 0 {
		t.Errorf("index after date rollover = %d, want 0", state.Index)
	}
	if state.Date != "2025-03-10" {
		t.Errorf("date = %q, want 2025-03-10", state.Date)
	}
	if want := "2025-03-10/0/app-id0003.jsonl"; key != want {
		t.Errorf("key = %q, want %q", key, want)
	}
}

func TestScenario100MB(t *testing.T) {
	const mb = 1024 * 1024
	day := time.Date(2025, 3, 9, 15, 0, 0, 0, time.UTC)
	n := testNamer(t, 100*mb, fixedClock(day))

	n.KeyFor(60 * mb)
	if got := n.Current(); got.Index != 0 || got.Bytes != 60*mb {
		t.Errorf("after 60MB: index=%d bytes=%d, want 0/%d", got.Index, got.Bytes, 60*mb)
	}

	n.KeyFor(50 * mb)
	if got := n.Current(); got.Index != 1 || got.Bytes != 50*mb {
		t.Errorf("after 50MB: index=%d bytes=%d, want 1/%d", got.Index, got.Bytes, 50*mb)
	}
}

func TestKeyUniqueness(t *testing.T) {
	day := time.Date(2025, 3, 9, 15, 0, 0, 0, time.UTC)
	n, err := New(Config{
		Prefix:          "app",
		Postfix:         "jsonl",
		ObjectSizeLimit: 1000,
		Now:             fixedClock(day),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	keyRe := regexp.MustCompile(`^2025-03-09/\d+/app-[0-9a-f-]{36}\.jsonl$`)
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		key := n.KeyFor(400)
		if !keyRe.MatchString(key) {
			t.Fatalf("key %q does not match expected layout", key)
		}
		if seen[key] {
			t.Fatalf("duplicate key %q", key)
		}
		seen[key] = true
	}
}

func TestStatePersistence(t *testing.T) {
	dir := t.TempDir()
	day := time.Date(2025, 3, 9, 15, 0, 0, 0, time.UTC)

	n, err := New(Config{
		Prefix: "app", Postfix: "jsonl", ObjectSizeLimit: 1000,
		StateDir: dir, Now: fixedClock(day),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	n.KeyFor(900)
	n.KeyFor(900) // index 1, 900 bytes

	// A restarted namer resumes where the previous one left off.
	restarted, err := New(Config{
		Prefix: "app", Postfix: "jsonl", ObjectSizeLimit: 1000,
		StateDir: dir, Now: fixedClock(day),
	})
	if err != nil {
		t.Fatalf("New (restart) failed: %v", err)
	}
	restarted.KeyFor(200) // 900+200 > 1000, rolls to index 2
	if got := restarted.Current().Index; got != 2 {
		t.Errorf("index after restart = %d, want 2", got)
	}
}

func TestStateStoreRoundtrip(t *testing.T) {
	store, err := NewStateStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStateStore failed: %v", err)
	}

	if _, err := store.Load(); err != ErrNoState {
		t.Errorf("Load on empty dir = %v, want ErrNoState", err)
	}

	want := State{Date: "2025-03-09", Index: 3, Bytes: 12345}
	if err := store.Save(want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got != want {
		t.Errorf("Load = %+v, want %+v", got, want)
	}
}
