package book

import (
	"context"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"dexterm/internal/domain"
)

// Source is the order-book collaborator boundary: a one-shot snapshot fetch
// plus a live update subscription. Both deliver raw payloads; the
// synchronizer normalizes them through the same path.
type Source interface {
	FetchSnapshot(ctx context.Context, marketID string) ([]byte, error)
	Subscribe(ctx context.Context, marketID string, onUpdate func(raw []byte)) (Handle, error)
}

// Handle tears down one live subscription. Unsubscribe must be safe to call
// more than once.
type Handle interface {
	Unsubscribe()
}

// State of the synchronizer for the currently selected market.
type State int

const (
	StateUninitialized State = iota
	StateSnapshotPending
	StateLive
	StateTornDown
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "UNINITIALIZED"
	case StateSnapshotPending:
		return "SNAPSHOT_PENDING"
	case StateLive:
		return "LIVE"
	case StateTornDown:
		return "TORN_DOWN"
	default:
		return "UNKNOWN"
	}
}

// Synchronizer owns the book state for the selected market. It merges the
// one-shot snapshot with the live stream under a documented weak-consistency
// model: both go through Normalize, each accepted update replaces the whole
// snapshot, and whichever normalized update arrives last wins. When the
// venue attaches sequence numbers, updates older than the last applied one
// are dropped; without sequences, last write wins unconditionally.
//
// At most one subscription is active at a time. Selecting a market tears
// down the previous one first, and an internal epoch guarantees that
// payloads from a torn-down subscription can never land.
type Synchronizer struct {
	source   Source
	onUpdate func(domain.BookSnapshot) // boundary callback, receives copies

	mu         sync.Mutex
	state      State
	epoch      uint64
	marketID   string
	handle     Handle
	snap       domain.BookSnapshot
	haveBook   bool
	loadFailed bool
}

// NewSynchronizer creates a synchronizer. onUpdate may be nil; when set it
// is invoked with an immutable copy after every accepted update.
func NewSynchronizer(source Source, onUpdate func(domain.BookSnapshot)) *Synchronizer {
	return &Synchronizer{
		source:   source,
		onUpdate: onUpdate,
		state:    StateUninitialized,
	}
}

// Select switches the synchronizer to a market. Any previous subscription
// is torn down first (idempotent, safe when nothing is active). The
// snapshot fetch is issued and the live subscription is opened without
// waiting for the fetch to complete, so a stream update may apply before
// the snapshot response arrives; the snapshot-fetch outcome never blocks or
// discards stream data.
func (s *Synchronizer) Select(ctx context.Context, marketID string) {
	s.Teardown()

	s.mu.Lock()
	s.state = StateSnapshotPending
	s.marketID = marketID
	s.loadFailed = false
	epoch := s.epoch
	s.mu.Unlock()

	go s.fetchSnapshot(ctx, epoch, marketID)
	go s.openSubscription(ctx, epoch, marketID)
}

func (s *Synchronizer) fetchSnapshot(ctx context.Context, epoch uint64, marketID string) {
	raw, err := s.source.FetchSnapshot(ctx, marketID)
	if err != nil {
		slog.Warn("Book snapshot fetch failed", slog.String("market", marketID), slog.Any("error", err))
		s.mu.Lock()
		if epoch == s.epoch {
			s.loadFailed = true
		}
		s.mu.Unlock()
		return
	}
	s.apply(epoch, marketID, raw)
}

func (s *Synchronizer) openSubscription(ctx context.Context, epoch uint64, marketID string) {
	h, err := s.source.Subscribe(ctx, marketID, func(raw []byte) {
		s.apply(epoch, marketID, raw)
	})
	if err != nil {
		slog.Warn("Book subscription failed", slog.String("market", marketID), slog.Any("error", err))
		s.mu.Lock()
		if epoch == s.epoch {
			s.loadFailed = true
		}
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	if epoch != s.epoch {
		// Torn down while the subscribe round trip was in flight.
		s.mu.Unlock()
		h.Unsubscribe()
		return
	}
	s.handle = h
	s.mu.Unlock()
}

// apply runs one raw payload through normalization and, if still current,
// replaces the retained snapshot wholesale.
func (s *Synchronizer) apply(epoch uint64, marketID string, raw []byte) {
	snap, err := Normalize(marketID, raw)
	if err != nil {
		slog.Warn("Dropping malformed book update", slog.String("market", marketID), slog.Any("error", err))
		return
	}

	s.mu.Lock()
	if epoch != s.epoch || s.state == StateTornDown {
		s.mu.Unlock()
		return
	}
	if snap.Sequence != 0 && s.haveBook && s.snap.Sequence != 0 && snap.Sequence < s.snap.Sequence {
		s.mu.Unlock()
		return
	}
	s.snap = snap
	s.haveBook = true
	s.loadFailed = false
	s.state = StateLive
	cb := s.onUpdate
	out := snap.Clone()
	s.mu.Unlock()

	if cb != nil {
		cb(out)
	}
}

// Teardown releases the active subscription, if any, and advances the
// epoch so no further updates for the old market are processed. Safe to
// call repeatedly and before any Select.
func (s *Synchronizer) Teardown() {
	s.mu.Lock()
	h := s.handle
	s.handle = nil
	s.epoch++
	s.state = StateTornDown
	s.snap = domain.BookSnapshot{}
	s.haveBook = false
	s.mu.Unlock()

	if h != nil {
		h.Unsubscribe()
	}
}

// State returns the current lifecycle state.
func (s *Synchronizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LoadFailed reports the non-fatal "book unavailable" signal: the snapshot
// fetch or subscription failed and no update has been accepted since.
func (s *Synchronizer) LoadFailed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadFailed
}

// Snapshot returns an immutable copy of the current book, if one has been
// accepted for the selected market.
func (s *Synchronizer) Snapshot() (domain.BookSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.haveBook {
		return domain.BookSnapshot{}, false
	}
	return s.snap.Clone(), true
}

// ReferencePrice returns the derived mid price for the current book.
func (s *Synchronizer) ReferencePrice() (decimal.Decimal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.haveBook {
		return decimal.Zero, false
	}
	return s.snap.ReferencePrice()
}
