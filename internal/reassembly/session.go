// Package reassembly collects the fragments of incoming files until each
// file is whole.
package reassembly

import (
	"fmt"
	"sort"
	"time"

	"github.com/rudransh-shrivastava/peer-relay/internal/protocol"
)

// Sink receives a completed file.
type Sink interface {
	WriteWholeFile(name string, data []byte) error
}

// Session accumulates the fragments of one file. Fragments may arrive in
// any order and duplicates are ignored.
type Session struct {
	FileName string
	Started  time.Time
	Updated  time.Time

	parts    map[uint32][]byte
	lastPart int64
	size     int
}

func NewSession(fileName string) *Session {
	return &Session{
		FileName: fileName,
		Started:  time.Now(),
		Updated:  time.Now(),
		parts:    make(map[uint32][]byte),
		lastPart: -1,
	}
}

// Add records frag and reports whether it was new.
func (s *Session) Add(frag *protocol.Fragment) bool {
	if _, ok := s.parts[frag.PartNum]; ok {
		return false
	}
	s.parts[frag.PartNum] = frag.Payload
	s.Updated = time.Now()
	s.size += len(frag.Payload)
	if frag.IsLast && int64(frag.PartNum) > s.lastPart {
		s.lastPart = int64(frag.PartNum)
	}
	return true
}

// Complete reports whether the last fragment has been seen and every index
// up to it is present.
func (s *Session) Complete() bool {
	return s.lastPart >= 0 && int64(len(s.parts)) == s.lastPart+1
}

// Size is the number of payload bytes received so far.
func (s *Session) Size() int {
	return s.size
}

func (s *Session) Received() int {
	return len(s.parts)
}

// LastPart returns the final part index, or -1 while it is unknown.
func (s *Session) LastPart() int64 {
	return s.lastPart
}

// Assemble concatenates the payloads ordered by part number.
func (s *Session) Assemble() []byte {
	nums := make([]uint32, 0, len(s.parts))
	for n := range s.parts {
		nums = append(nums, n)
	}
	sort.Slice(nums, func(i, j int) bool { return nums[i] < nums[j] })

	data := make([]byte, 0, s.size)
	for _, n := range nums {
		data = append(data, s.parts[n]...)
	}
	return data
}

func (s *Session) AssembleAndEmit(sink Sink) error {
	if !s.Complete() {
		return fmt.Errorf("session %q incomplete: %d parts, last %d", s.FileName, len(s.parts), s.lastPart)
	}
	if err := sink.WriteWholeFile(s.FileName, s.Assemble()); err != nil {
		return fmt.Errorf("failed to write %q: %w", s.FileName, err)
	}
	return nil
}
