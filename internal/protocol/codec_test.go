package protocol

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestCodecRoundTrip(t *testing.T) {
	codec := NewCodec(BlockSize)
	head := Header{Sender: "127.0.0.1:4000", Receiver: "127.0.0.1:4001", TTL: DefaultTTL}

	messages := []Message{
		&Join{Header: head},
		&FileSearch{Header: Header{Sender: head.Sender, Receiver: Broadcast, TTL: 3}, FileName: "notes.txt"},
		&HasFile{Header: head, FileName: "notes.txt"},
		&TransferRequest{Header: head, FileName: "notes.txt"},
		&Ack{Header: head, FileName: "notes.txt", PartNum: 7},
		&Fragment{Header: head, FileName: "notes.txt", PartNum: 2, IsLast: true, Payload: []byte("hello")},
	}

	for _, msg := range messages {
		t.Run(msg.Kind().String(), func(t *testing.T) {
			frame, err := codec.EncodeToBytes(msg)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			if len(frame) != BlockSize {
				t.Fatalf("frame length = %d, want %d", len(frame), BlockSize)
			}

			decoded, err := codec.DecodeFromBytes(frame)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if decoded.Kind() != msg.Kind() {
				t.Fatalf("kind = %s, want %s", decoded.Kind(), msg.Kind())
			}
			if *decoded.Head() != *msg.Head() {
				t.Errorf("header = %+v, want %+v", *decoded.Head(), *msg.Head())
			}
			if FileNameOf(decoded) != FileNameOf(msg) {
				t.Errorf("file name = %q, want %q", FileNameOf(decoded), FileNameOf(msg))
			}
		})
	}
}

func TestCodecFragmentFields(t *testing.T) {
	codec := NewCodec(BlockSize)
	in := &Fragment{
		Header:   Header{Sender: "a", Receiver: "b", TTL: 1},
		FileName: "f",
		PartNum:  41,
		IsLast:   false,
		Payload:  []byte{0, 1, 2, '0', '0'},
	}
	frame, err := codec.EncodeToBytes(in)
	if err != nil {
		t.Fatal(err)
	}
	msg, err := codec.DecodeFromBytes(frame)
	if err != nil {
		t.Fatal(err)
	}
	out, ok := msg.(*Fragment)
	if !ok {
		t.Fatalf("decoded %T, want *Fragment", msg)
	}
	if out.PartNum != 41 || out.IsLast {
		t.Errorf("part=%d last=%v", out.PartNum, out.IsLast)
	}
	if !bytes.Equal(out.Payload, in.Payload) {
		t.Errorf("payload = %v, want %v", out.Payload, in.Payload)
	}
}

func TestCodecPadding(t *testing.T) {
	codec := NewCodec(BlockSize)
	frame, err := codec.EncodeToBytes(&Join{Header: Header{Sender: "x", Receiver: "y", TTL: 1}})
	if err != nil {
		t.Fatal(err)
	}
	if frame[len(frame)-1] != filler {
		t.Errorf("last byte = %q, want %q", frame[len(frame)-1], filler)
	}
}

func TestCodecNegativeTTL(t *testing.T) {
	codec := NewCodec(BlockSize)
	frame, err := codec.EncodeToBytes(&Join{Header: Header{TTL: -2}})
	if err != nil {
		t.Fatal(err)
	}
	msg, err := codec.DecodeFromBytes(frame)
	if err != nil {
		t.Fatal(err)
	}
	if msg.Head().TTL != -2 {
		t.Errorf("ttl = %d, want -2", msg.Head().TTL)
	}
}

func TestCodecTooLarge(t *testing.T) {
	codec := NewCodec(64)
	_, err := codec.EncodeToBytes(&Fragment{FileName: "f", Payload: make([]byte, 100)})
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("err = %v, want ErrFrameTooLarge", err)
	}
}

func TestCodecMalformed(t *testing.T) {
	codec := NewCodec(BlockSize)

	cases := map[string][]byte{
		"garbage":        bytes.Repeat([]byte{0xff}, 16),
		"length overrun": {0x7f, 0x08},
		"missing kind":   {0x02, 0x40, 0x02},
		"unknown kind":   {0x02, 0x08, 0x63},
	}
	for name, frame := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := codec.DecodeFromBytes(frame); !errors.Is(err, ErrMalformedFrame) {
				t.Fatalf("err = %v, want ErrMalformedFrame", err)
			}
		})
	}
}

func TestCodecStream(t *testing.T) {
	codec := NewCodec(BlockSize)
	var buf bytes.Buffer

	if err := codec.Encode(&buf, &HasFile{Header: Header{Sender: "a", Receiver: "b", TTL: 2}, FileName: "one"}); err != nil {
		t.Fatal(err)
	}
	if err := codec.Encode(&buf, &Ack{Header: Header{Sender: "b", Receiver: "a", TTL: 2}, FileName: "one", PartNum: 3}); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 2*BlockSize {
		t.Fatalf("stream length = %d, want %d", buf.Len(), 2*BlockSize)
	}

	first, err := codec.Decode(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if first.Kind() != KindHasFile {
		t.Errorf("first kind = %s", first.Kind())
	}
	second, err := codec.Decode(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if ack, ok := second.(*Ack); !ok || ack.PartNum != 3 {
		t.Errorf("second = %+v", second)
	}
	if _, err := codec.Decode(&buf); err != io.EOF {
		t.Errorf("err = %v, want io.EOF", err)
	}
}
