package store

import (
	"context"
	"errors"
	"time"
)

// ErrCorrupt is returned by Load when the stored state cannot be parsed.
var ErrCorrupt = errors.New("corrupt ledger state")

// Transfer is one persisted ledger entry.
type Transfer struct {
	Destination string
	FileName    string
	SendTime    time.Time
	// Unacked is sorted ascending.
	Unacked []uint32
}

// LedgerStore persists the complete ledger state. Save must replace the
// previous state atomically: an interrupted Save leaves the last complete
// state readable.
type LedgerStore interface {
	Load(ctx context.Context) ([]Transfer, error)
	Save(ctx context.Context, transfers []Transfer) error
	Close() error
}
