package reassembly

import (
	"bytes"
	"testing"
	"time"
)

func TestBuffer(t *testing.T) {
	data := bytes.Repeat([]byte{1, 2, 3}, 400)
	frags := fragmentsOf(t, data, 256)
	b := NewBuffer()

	for i, f := range frags[:len(frags)-1] {
		added, done := b.Add(f)
		if !added {
			t.Fatalf("fragment %d reported duplicate", i)
		}
		if done != nil {
			t.Fatalf("done after fragment %d", i)
		}
	}
	if !b.Open("file.bin") {
		t.Fatal("session not open")
	}
	if names := b.Names(); len(names) != 1 || names[0] != "file.bin" {
		t.Fatalf("names = %v", names)
	}

	added, done := b.Add(frags[len(frags)-1])
	if !added || done == nil {
		t.Fatalf("added=%v done=%v", added, done)
	}
	if b.Open("file.bin") {
		t.Fatal("session still open after completion")
	}
	if !bytes.Equal(done.Assemble(), data) {
		t.Fatal("assembled data differs")
	}
}

func TestBufferDiscard(t *testing.T) {
	b := NewBuffer()
	b.Add(fragmentsOf(t, make([]byte, 1000), 256)[0])
	b.Discard("file.bin")
	if b.Open("file.bin") {
		t.Fatal("session survived discard")
	}
}

func TestBufferExpire(t *testing.T) {
	b := NewBuffer()
	b.Add(fragmentsOf(t, make([]byte, 1000), 256)[0])

	if names := b.Expire(time.Now().Add(-time.Minute)); len(names) != 0 {
		t.Fatalf("expired fresh session: %v", names)
	}
	names := b.Expire(time.Now().Add(time.Minute))
	if len(names) != 1 || names[0] != "file.bin" {
		t.Fatalf("expired = %v", names)
	}
	if b.Open("file.bin") {
		t.Fatal("expired session still open")
	}
}
