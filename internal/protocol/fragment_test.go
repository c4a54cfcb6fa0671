package protocol

import (
	"bytes"
	"errors"
	"math/rand"
	"testing"
)

func reassemble(t *testing.T, codec *Codec, frags *Fragments) []byte {
	t.Helper()
	var out []byte
	lastSeen := -1
	for part, frame := range frags.All() {
		msg, err := codec.DecodeFromBytes(frame)
		if err != nil {
			t.Fatalf("part %d: %v", part, err)
		}
		frag := msg.(*Fragment)
		if int(frag.PartNum) != part {
			t.Fatalf("part num = %d, want %d", frag.PartNum, part)
		}
		if frag.IsLast {
			if lastSeen != -1 {
				t.Fatalf("IsLast set on part %d and %d", lastSeen, part)
			}
			lastSeen = part
		}
		out = append(out, frag.Payload...)
	}
	if lastSeen != frags.LastPart() {
		t.Fatalf("IsLast on part %d, want %d", lastSeen, frags.LastPart())
	}
	return out
}

func TestFragmentRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	head := Header{Sender: "127.0.0.1:50001", Receiver: "127.0.0.1:50002", TTL: DefaultTTL}

	for _, blockSize := range []int{256, 1024, BlockSize} {
		codec := NewCodec(blockSize)
		for _, size := range []int{0, 1, 100, blockSize, 5000, 20000} {
			data := make([]byte, size)
			rng.Read(data)

			frags, err := codec.Fragment(head, "blob.bin", data)
			if err != nil {
				t.Fatalf("block %d size %d: %v", blockSize, size, err)
			}
			got := reassemble(t, codec, frags)
			if !bytes.Equal(got, data) {
				t.Fatalf("block %d size %d: reassembled data differs", blockSize, size)
			}
		}
	}
}

func TestFragmentCount(t *testing.T) {
	codec := NewCodec(BlockSize)
	head := Header{Sender: "127.0.0.1:50001", Receiver: "127.0.0.1:50002", TTL: DefaultTTL}

	frags, err := codec.Fragment(head, "report.pdf", make([]byte, 5000))
	if err != nil {
		t.Fatal(err)
	}
	want := (5000 + frags.Capacity() - 1) / frags.Capacity()
	if frags.Count() != want {
		t.Errorf("count = %d, want %d", frags.Count(), want)
	}
	if frags.Count() != 3 {
		t.Errorf("5000 bytes in %d-byte frames = %d fragments, want 3", frags.Capacity(), frags.Count())
	}
}

func TestFragmentExactMultiple(t *testing.T) {
	codec := NewCodec(BlockSize)
	probe, err := codec.Fragment(Header{}, "x", nil)
	if err != nil {
		t.Fatal(err)
	}
	frags, _ := codec.Fragment(Header{}, "x", make([]byte, 2*probe.Capacity()))
	if frags.Count() != 2 {
		t.Fatalf("count = %d, want 2", frags.Count())
	}
	last := frags.Message(1)
	if !last.IsLast || len(last.Payload) != probe.Capacity() {
		t.Errorf("last fragment = last:%v len:%d", last.IsLast, len(last.Payload))
	}
}

func TestFragmentEmpty(t *testing.T) {
	codec := NewCodec(BlockSize)
	frags, err := codec.Fragment(Header{}, "empty", nil)
	if err != nil {
		t.Fatal(err)
	}
	if frags.Count() != 1 {
		t.Fatalf("count = %d, want 1", frags.Count())
	}
	msg := frags.Message(0)
	if !msg.IsLast || len(msg.Payload) != 0 {
		t.Errorf("empty fragment = %+v", msg)
	}
}

func TestFragmentNoPayloadRoom(t *testing.T) {
	codec := NewCodec(32)
	_, err := codec.Fragment(Header{Sender: "a-very-long-sender-id", Receiver: "b"}, "name.txt", []byte("x"))
	if !errors.Is(err, ErrNoPayloadRoom) {
		t.Fatalf("err = %v, want ErrNoPayloadRoom", err)
	}
}

func TestFragmentAllEarlyStop(t *testing.T) {
	codec := NewCodec(256)
	frags, err := codec.Fragment(Header{}, "x", make([]byte, 4096))
	if err != nil {
		t.Fatal(err)
	}

	seen := 0
	for part := range frags.All() {
		if part == 2 {
			break
		}
		seen++
	}
	if seen != 2 {
		t.Errorf("seen = %d, want 2", seen)
	}

	total := 0
	for range frags.All() {
		total++
	}
	if total != frags.Count() {
		t.Errorf("restart yielded %d frames, want %d", total, frags.Count())
	}
}
