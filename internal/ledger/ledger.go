// Package ledger records outbound transfers that still owe acknowledgements.
// Every mutation is written to the backing store before it returns so a
// restarted node knows exactly which transfers to resume.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rudransh-shrivastava/peer-relay/internal/store"
	"github.com/sirupsen/logrus"
)

// Entry is a snapshot of one outstanding transfer.
type Entry = store.Transfer

type transfer struct {
	sendTime time.Time
	unacked  map[uint32]struct{}
}

type Options struct {
	Logger     *logrus.Logger
	Now        func() time.Time
	Retries    int
	RetryDelay time.Duration
	// SaveTimeout bounds a single write to the store.
	SaveTimeout time.Duration
}

type Ledger struct {
	mu      sync.Mutex
	entries map[string]map[string]*transfer
	store   store.LedgerStore
	logger  *logrus.Logger
	now     func() time.Time

	retries     int
	retryDelay  time.Duration
	saveTimeout time.Duration
}

// Open loads the ledger from st. A store that cannot be read is logged and
// the ledger starts empty.
func Open(ctx context.Context, st store.LedgerStore, opts Options) *Ledger {
	l := &Ledger{
		entries:     make(map[string]map[string]*transfer),
		store:       st,
		logger:      opts.Logger,
		now:         opts.Now,
		retries:     opts.Retries,
		retryDelay:  opts.RetryDelay,
		saveTimeout: opts.SaveTimeout,
	}
	if l.logger == nil {
		l.logger = logrus.StandardLogger()
	}
	if l.now == nil {
		l.now = time.Now
	}
	if l.retries <= 0 {
		l.retries = 3
	}
	if l.retryDelay <= 0 {
		l.retryDelay = 50 * time.Millisecond
	}
	if l.saveTimeout <= 0 {
		l.saveTimeout = 5 * time.Second
	}

	transfers, err := st.Load(ctx)
	if err != nil {
		if errors.Is(err, store.ErrCorrupt) {
			l.logger.Warnf("Ledger state is corrupt, starting empty: %v", err)
		} else {
			l.logger.Warnf("Failed to load ledger, starting empty: %v", err)
		}
		return l
	}
	for _, t := range transfers {
		if len(t.Unacked) == 0 {
			continue
		}
		tr := &transfer{sendTime: t.SendTime, unacked: make(map[uint32]struct{}, len(t.Unacked))}
		for _, p := range t.Unacked {
			tr.unacked[p] = struct{}{}
		}
		l.dest(t.Destination)[t.FileName] = tr
	}
	l.logger.Infof("Ledger loaded with %d outstanding transfers", len(transfers))
	return l
}

func (l *Ledger) dest(destination string) map[string]*transfer {
	files, ok := l.entries[destination]
	if !ok {
		files = make(map[string]*transfer)
		l.entries[destination] = files
	}
	return files
}

func (l *Ledger) lookup(destination, fileName string) (*transfer, bool) {
	files, ok := l.entries[destination]
	if !ok {
		return nil, false
	}
	tr, ok := files[fileName]
	return tr, ok
}

func (l *Ledger) deleteLocked(destination, fileName string) {
	files, ok := l.entries[destination]
	if !ok {
		return
	}
	delete(files, fileName)
	if len(files) == 0 {
		delete(l.entries, destination)
	}
}

// BeginTransfer records a transfer of parts 0..lastPart, replacing any
// earlier entry for the same destination and file.
func (l *Ledger) BeginTransfer(destination, fileName string, lastPart int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	tr := &transfer{sendTime: l.now(), unacked: make(map[uint32]struct{}, lastPart+1)}
	for p := 0; p <= lastPart; p++ {
		tr.unacked[uint32(p)] = struct{}{}
	}
	l.dest(destination)[fileName] = tr
	return l.persistLocked()
}

// RecordFragmentSent adds part to the transfer, creating it if needed.
func (l *Ledger) RecordFragmentSent(destination, fileName string, part uint32) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	tr, ok := l.lookup(destination, fileName)
	if !ok {
		tr = &transfer{sendTime: l.now(), unacked: make(map[uint32]struct{})}
		l.dest(destination)[fileName] = tr
	} else if _, dup := tr.unacked[part]; dup {
		return nil
	}
	tr.unacked[part] = struct{}{}
	return l.persistLocked()
}

// Acknowledge clears part and reports whether that completed the transfer.
// Unknown transfers and parts are ignored.
func (l *Ledger) Acknowledge(destination, fileName string, part uint32) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tr, ok := l.lookup(destination, fileName)
	if !ok {
		return false, nil
	}
	if _, pending := tr.unacked[part]; !pending {
		return false, nil
	}
	delete(tr.unacked, part)
	done := len(tr.unacked) == 0
	if done {
		l.deleteLocked(destination, fileName)
	}
	return done, l.persistLocked()
}

func (l *Ledger) Touch(destination, fileName string, t time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	tr, ok := l.lookup(destination, fileName)
	if !ok {
		return nil
	}
	tr.sendTime = t
	return l.persistLocked()
}

func (l *Ledger) RemoveTransfer(destination, fileName string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.lookup(destination, fileName); !ok {
		return nil
	}
	l.deleteLocked(destination, fileName)
	return l.persistLocked()
}

func (l *Ledger) Get(destination, fileName string) (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tr, ok := l.lookup(destination, fileName)
	if !ok {
		return Entry{}, false
	}
	return entryOf(destination, fileName, tr), true
}

func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for _, files := range l.entries {
		n += len(files)
	}
	return n
}

// Snapshot returns every entry, ordered by destination then file name.
func (l *Ledger) Snapshot() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

// Expired returns the entries whose send time is older than limit.
func (l *Ledger) Expired(limit time.Duration) []Entry {
	cutoff := l.now().Add(-limit)
	var out []Entry
	for _, e := range l.Snapshot() {
		if e.SendTime.Before(cutoff) {
			out = append(out, e)
		}
	}
	return out
}

func (l *Ledger) snapshotLocked() []Entry {
	var out []Entry
	for dest, files := range l.entries {
		for name, tr := range files {
			out = append(out, entryOf(dest, name, tr))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Destination != out[j].Destination {
			return out[i].Destination < out[j].Destination
		}
		return out[i].FileName < out[j].FileName
	})
	return out
}

func entryOf(destination, fileName string, tr *transfer) Entry {
	parts := make([]uint32, 0, len(tr.unacked))
	for p := range tr.unacked {
		parts = append(parts, p)
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i] < parts[j] })
	return Entry{
		Destination: destination,
		FileName:    fileName,
		SendTime:    tr.sendTime,
		Unacked:     parts,
	}
}

func (l *Ledger) persistLocked() error {
	state := l.snapshotLocked()

	var err error
	delay := l.retryDelay
	for attempt := 1; attempt <= l.retries; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), l.saveTimeout)
		err = l.store.Save(ctx, state)
		cancel()
		if err == nil {
			return nil
		}
		l.logger.Warnf("Ledger write attempt %d/%d failed: %v", attempt, l.retries, err)
		if attempt < l.retries {
			time.Sleep(delay)
			delay *= 2
		}
	}
	return fmt.Errorf("persisting ledger: %w", err)
}

// Close closes the backing store.
func (l *Ledger) Close() error {
	return l.store.Close()
}
