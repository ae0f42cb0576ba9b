// Package partition derives the remote object key for each flush. Keys
// follow {YYYY-MM-DD}/{index}/{prefix}-{id}.{postfix}: the date and rolling
// index give a sortable, human-navigable key space while the per-flush id
// guarantees each upload lands in a brand-new object. The storage tier is
// append-hostile, so a flush never appends to an existing object.
package partition

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const dateLayout = "2006-01-02"

// State tracks the current partition. Owned by the single flush actor; no
// synchronization needed.
type State struct {
	Date  string `json:"date"`
	Index int    `json:"index"`
	Bytes int64  `json:"bytes_written"`
}

// Config configures a Namer.
type Config struct {
	Prefix          string
	Postfix         string
	ObjectSizeLimit int64 // bytes accumulated per partition before rollover

	// StateDir, when set, persists partition state across restarts so a
	// restarted process keeps filling the partition it left off in.
	StateDir string

	// Now and NewID are test seams; zero values use the wall clock and
	// random UUIDs.
	Now   func() time.Time
	NewID func() string
}

// Namer holds the rolling partition state. Single-writer: only the flush
// actor calls KeyFor.
type Namer struct {
	prefix  string
	postfix string
	limit   int64
	state   State
	store   *StateStore
	now     func() time.Time
	newID   func() string
	log     *slog.Logger
}

// New creates a Namer, restoring persisted state when a state directory is
// configured. Stale state (a previous calendar day) is discarded on the
// first KeyFor.
func New(cfg Config) (*Namer, error) {
	n := &Namer{
		prefix:  cfg.Prefix,
		postfix: cfg.Postfix,
		limit:   cfg.ObjectSizeLimit,
		now:     cfg.Now,
		newID:   cfg.NewID,
		log:     slog.With("component", "partition"),
	}
	if n.now == nil {
		n.now = time.Now
	}
	if n.newID == nil {
		n.newID = func() string { return uuid.New().String() }
	}

	if cfg.StateDir != "" {
		store, err := NewStateStore(cfg.StateDir)
		if err != nil {
			return nil, fmt.Errorf("partition state store: %w", err)
		}
		n.store = store
		state, err := store.Load()
		switch {
		case err == nil:
			n.state = state
			n.log.Info("restored partition state",
				"date", state.Date, "index", state.Index, "bytes", state.Bytes)
		case err == ErrNoState:
		default:
			n.log.Warn("failed to load partition state", "error", err)
		}
	}

	return n, nil
}

// KeyFor returns the object key for an upload of the given size and
// advances the partition state. A new calendar day resets the index to 0.
// The size limit bounds accumulated writes per partition, not a single
// flush: an upload that alone exceeds the limit still lands in one object.
func (n *Namer) KeyFor(uploadSize int64) string {
	today := n.now().UTC().Format(dateLayout)
	if today != n.state.Date {
		n.state = State{Date: today}
	}

	if n.state.Bytes > 0 && n.state.Bytes+uploadSize > n.limit {
		n.state.Index++
		n.state.Bytes = 0
	}
	n.state.Bytes += uploadSize

	key := fmt.Sprintf("%s/%d/%s-%s.%s",
		n.state.Date, n.state.Index, n.prefix, n.newID(), n.postfix)

	if n.store != nil {
		if err := n.store.Save(n.state); err != nil {
			n.log.Warn("failed to save partition state", "error", err)
		}
	}

	return key
}

// Current returns a copy of the partition state, for logs and tests.
func (n *Namer) Current() State {
	return n.state
}
