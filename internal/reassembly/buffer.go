package reassembly

import (
	"sort"
	"sync"
	"time"

	"github.com/rudransh-shrivastava/peer-relay/internal/protocol"
)

// Buffer holds the open sessions of a node, keyed by file name.
type Buffer struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewBuffer() *Buffer {
	return &Buffer{sessions: make(map[string]*Session)}
}

// Add files frag into its session, opening one if needed. When the session
// becomes complete it is removed from the buffer and returned as done.
func (b *Buffer) Add(frag *protocol.Fragment) (added bool, done *Session) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.sessions[frag.FileName]
	if !ok {
		s = NewSession(frag.FileName)
		b.sessions[frag.FileName] = s
	}
	added = s.Add(frag)
	if s.Complete() {
		delete(b.sessions, frag.FileName)
		return added, s
	}
	return added, nil
}

func (b *Buffer) Open(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.sessions[name]
	return ok
}

func (b *Buffer) Discard(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.sessions, name)
}

func (b *Buffer) Names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, 0, len(b.sessions))
	for name := range b.sessions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Expire discards sessions that have not grown since cutoff and returns
// their names.
func (b *Buffer) Expire(cutoff time.Time) []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	var names []string
	for name, s := range b.sessions {
		if s.Updated.Before(cutoff) {
			delete(b.sessions, name)
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
