package reassembly

import (
	"bytes"
	"errors"
	"math/rand"
	"testing"

	"github.com/rudransh-shrivastava/peer-relay/internal/protocol"
)

type memorySink struct {
	files map[string][]byte
	err   error
}

func (m *memorySink) WriteWholeFile(name string, data []byte) error {
	if m.err != nil {
		return m.err
	}
	if m.files == nil {
		m.files = make(map[string][]byte)
	}
	m.files[name] = data
	return nil
}

func fragmentsOf(t *testing.T, data []byte, blockSize int) []*protocol.Fragment {
	t.Helper()
	codec := protocol.NewCodec(blockSize)
	frags, err := codec.Fragment(protocol.Header{Sender: "a", Receiver: "b", TTL: 1}, "file.bin", data)
	if err != nil {
		t.Fatal(err)
	}
	var out []*protocol.Fragment
	for part := 0; part <= frags.LastPart(); part++ {
		out = append(out, frags.Message(part))
	}
	return out
}

func TestSessionInOrder(t *testing.T) {
	data := bytes.Repeat([]byte("abcdefgh"), 300)
	s := NewSession("file.bin")
	for _, f := range fragmentsOf(t, data, 256) {
		if s.Complete() {
			t.Fatal("complete before last fragment")
		}
		s.Add(f)
	}
	if !s.Complete() {
		t.Fatal("expected complete")
	}
	if !bytes.Equal(s.Assemble(), data) {
		t.Fatal("assembled data differs")
	}
}

func TestSessionDuplicate(t *testing.T) {
	frags := fragmentsOf(t, make([]byte, 1000), 256)
	s := NewSession("file.bin")

	if !s.Add(frags[0]) {
		t.Fatal("first add reported duplicate")
	}
	if s.Add(frags[0]) {
		t.Fatal("second add reported new")
	}
	if s.Received() != 1 {
		t.Fatalf("received = %d, want 1", s.Received())
	}

	for _, f := range frags[1:] {
		s.Add(f)
		s.Add(f)
	}
	if s.Received() != len(frags) {
		t.Fatalf("received = %d, want %d", s.Received(), len(frags))
	}
	if !s.Complete() {
		t.Fatal("expected complete")
	}
}

func TestSessionOutOfOrder(t *testing.T) {
	data := make([]byte, 5000)
	rand.New(rand.NewSource(7)).Read(data)
	frags := fragmentsOf(t, data, 512)

	reversed := NewSession("file.bin")
	for i := len(frags) - 1; i >= 0; i-- {
		reversed.Add(frags[i])
	}

	shuffled := NewSession("file.bin")
	order := rand.New(rand.NewSource(3)).Perm(len(frags))
	for _, i := range order {
		shuffled.Add(frags[i])
	}

	for name, s := range map[string]*Session{"reversed": reversed, "shuffled": shuffled} {
		if !s.Complete() {
			t.Fatalf("%s: not complete", name)
		}
		if !bytes.Equal(s.Assemble(), data) {
			t.Fatalf("%s: assembled data differs", name)
		}
	}
}

func TestSessionLastFirstNotComplete(t *testing.T) {
	frags := fragmentsOf(t, make([]byte, 1000), 256)
	s := NewSession("file.bin")
	s.Add(frags[len(frags)-1])
	if s.Complete() {
		t.Fatal("complete with only the last fragment")
	}
	if s.LastPart() != int64(len(frags)-1) {
		t.Fatalf("last part = %d", s.LastPart())
	}
}

func TestAssembleAndEmit(t *testing.T) {
	data := []byte("hello, relay")
	s := NewSession("file.bin")
	sink := &memorySink{}

	if err := s.AssembleAndEmit(sink); err == nil {
		t.Fatal("expected error for incomplete session")
	}
	for _, f := range fragmentsOf(t, data, protocol.BlockSize) {
		s.Add(f)
	}
	if err := s.AssembleAndEmit(sink); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(sink.files["file.bin"], data) {
		t.Fatalf("sink got %q", sink.files["file.bin"])
	}

	failing := &memorySink{err: errors.New("disk full")}
	if err := s.AssembleAndEmit(failing); err == nil {
		t.Fatal("expected sink error")
	}
}

func TestEmptyFile(t *testing.T) {
	s := NewSession("empty")
	for _, f := range fragmentsOf(t, nil, protocol.BlockSize) {
		s.Add(f)
	}
	if !s.Complete() {
		t.Fatal("empty file not complete")
	}
	if len(s.Assemble()) != 0 {
		t.Fatal("expected no bytes")
	}
}
