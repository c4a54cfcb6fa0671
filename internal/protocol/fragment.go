package protocol

import (
	"fmt"
	"iter"

	"google.golang.org/protobuf/encoding/protowire"
)

// Fragments splits one file into block-sized fragment frames. Frames are
// produced lazily so a large file is never held as a full set of frames.
type Fragments struct {
	codec    *Codec
	header   Header
	fileName string
	data     []byte
	capacity int
}

// Fragment prepares data for transfer under fileName. The payload capacity
// of each frame is the block size minus the encoded size of a payload-less
// fragment with this header, minus the worst-case payload and length-prefix
// overhead.
func (c *Codec) Fragment(h Header, fileName string, data []byte) (*Fragments, error) {
	probe := &Fragment{Header: h, FileName: fileName, IsLast: true}
	empty := len(appendMessage(nil, probe))
	capacity := c.blockSize - empty - c.payloadOverhead()
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: header for %q takes %d of %d bytes", ErrNoPayloadRoom, fileName, empty, c.blockSize)
	}
	return &Fragments{
		codec:    c,
		header:   h,
		fileName: fileName,
		data:     data,
		capacity: capacity,
	}, nil
}

// payload tag, payload length varint, outer length prefix.
func (c *Codec) payloadOverhead() int {
	return 1 + 2*protowire.SizeVarint(uint64(c.blockSize))
}

func (f *Fragments) Capacity() int {
	return f.capacity
}

// Count is ceil(len/capacity). An empty file still travels as one empty
// final fragment.
func (f *Fragments) Count() int {
	if len(f.data) == 0 {
		return 1
	}
	return (len(f.data) + f.capacity - 1) / f.capacity
}

func (f *Fragments) LastPart() int {
	return f.Count() - 1
}

// Message returns fragment part without encoding it.
func (f *Fragments) Message(part int) *Fragment {
	start := part * f.capacity
	end := min(start+f.capacity, len(f.data))
	if start > end {
		start = end
	}
	return &Fragment{
		Header:   f.header,
		FileName: f.fileName,
		PartNum:  uint32(part),
		IsLast:   part == f.LastPart(),
		Payload:  f.data[start:end],
	}
}

// Frame encodes fragment part.
func (f *Fragments) Frame(part int) (Frame, error) {
	if part < 0 || part > f.LastPart() {
		return nil, fmt.Errorf("part %d out of range [0,%d]", part, f.LastPart())
	}
	return f.codec.EncodeToBytes(f.Message(part))
}

// All yields (partNum, frame) in ascending order. Iteration may be stopped
// early and restarted.
func (f *Fragments) All() iter.Seq2[int, Frame] {
	return func(yield func(int, Frame) bool) {
		for part := 0; part <= f.LastPart(); part++ {
			frame, err := f.Frame(part)
			if err != nil {
				// capacity was sized against this exact header
				panic(err)
			}
			if !yield(part, frame) {
				return
			}
		}
	}
}
