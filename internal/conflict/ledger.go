package conflict

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"drivesync/internal/match"
	"drivesync/internal/media"
)

// Resolution is the lifecycle state of one conflict record.
type Resolution string

const (
	Unresolved Resolution = "unresolved"
	// Same means the two items are the same media; no transfer either way.
	Same Resolution = "same"
	// Different means both items are distinct and each side must be copied
	// to the other store.
	Different Resolution = "different"
)

// Decision is a terminal resolution supplied from outside the core.
type Decision = Resolution

var (
	// ErrAlreadyResolved signals a duplicate decision for a terminal record.
	ErrAlreadyResolved = errors.New("conflict already resolved")
	// ErrUnknownConflict signals a decision for a record the ledger never
	// issued.
	ErrUnknownConflict = errors.New("unknown conflict")
)

// Record is one ambiguous pair awaiting (or holding) a decision.
type Record struct {
	ID         string
	Drive      media.Item
	Photos     media.Item
	Distance   time.Duration
	Resolution Resolution
	ResolvedAt time.Time
}

// Terminal reports whether the record has reached a final resolution.
func (r Record) Terminal() bool {
	return r.Resolution == Same || r.Resolution == Different
}

// Ledger owns every conflict record for one run. Safe for concurrent use;
// decisions may arrive from any goroutine in any order.
type Ledger struct {
	mu      sync.Mutex
	records map[string]*Record
	order   []string
	pending int
	done    chan struct{}
}

// NewLedger creates one record per ambiguous pair. A ledger with no records
// is already settled.
func NewLedger(ambiguous []match.Pair) *Ledger {
	l := &Ledger{
		records: make(map[string]*Record, len(ambiguous)),
		done:    make(chan struct{}),
	}
	for _, pair := range ambiguous {
		record := &Record{
			ID:         uuid.NewString(),
			Drive:      *pair.Drive,
			Photos:     *pair.Photos,
			Distance:   pair.TimeDistance,
			Resolution: Unresolved,
		}
		l.records[record.ID] = record
		l.order = append(l.order, record.ID)
	}
	l.pending = len(l.order)
	if l.pending == 0 {
		close(l.done)
	}
	return l
}

// Resolve applies a terminal decision to one record. Duplicate decisions are
// rejected with ErrAlreadyResolved regardless of whether the decision agrees
// with the recorded one.
func (l *Ledger) Resolve(id string, decision Decision) error {
	if decision != Same && decision != Different {
		return fmt.Errorf("conflict %s: invalid decision %q", id, decision)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	record, ok := l.records[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownConflict, id)
	}
	if record.Terminal() {
		return fmt.Errorf("%w: %s", ErrAlreadyResolved, id)
	}
	record.Resolution = decision
	record.ResolvedAt = time.Now().UTC()
	l.pending--
	if l.pending == 0 {
		close(l.done)
	}
	return nil
}

// Wait blocks until every record is terminal or ctx is cancelled.
func (l *Ledger) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return nil
	}
}

// Settled reports whether every record is terminal.
func (l *Ledger) Settled() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}

// Records returns a snapshot of every record in creation order.
func (l *Ledger) Records() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	records := make([]Record, 0, len(l.order))
	for _, id := range l.order {
		records = append(records, *l.records[id])
	}
	return records
}

// Pending returns snapshots of the unresolved records, ordered by the
// conflicted name for stable presentation.
func (l *Ledger) Pending() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	pending := make([]Record, 0, l.pending)
	for _, id := range l.order {
		if record := l.records[id]; !record.Terminal() {
			pending = append(pending, *record)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		if pending[i].Drive.Name != pending[j].Drive.Name {
			return pending[i].Drive.Name < pending[j].Drive.Name
		}
		return pending[i].ID < pending[j].ID
	})
	return pending
}

// Unresolved reports how many records still await a decision.
func (l *Ledger) Unresolved() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pending
}
