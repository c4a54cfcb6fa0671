package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protowire"
)

const (
	fieldKind     protowire.Number = 1
	fieldSender   protowire.Number = 2
	fieldReceiver protowire.Number = 3
	fieldFileName protowire.Number = 4
	fieldPartNum  protowire.Number = 5
	fieldIsLast   protowire.Number = 6
	fieldPayload  protowire.Number = 7
	fieldTTL      protowire.Number = 8
)

var (
	ErrMalformedFrame = errors.New("malformed frame")
	ErrFrameTooLarge  = errors.New("message does not fit in a frame")
	ErrNoPayloadRoom  = errors.New("no room for payload in frame")
)

// Frame is exactly one block of wire bytes: a length-prefixed message
// followed by filler.
type Frame []byte

type Codec struct {
	blockSize int
}

func NewCodec(blockSize int) *Codec {
	if blockSize <= 0 {
		blockSize = BlockSize
	}
	return &Codec{blockSize: blockSize}
}

func (c *Codec) BlockSize() int {
	return c.blockSize
}

func (c *Codec) Encode(w io.Writer, msg Message) error {
	frame, err := c.EncodeToBytes(msg)
	if err != nil {
		return err
	}
	_, err = w.Write(frame)
	return err
}

// Decode reads exactly one frame from r. A reader that is already at EOF
// yields io.EOF unchanged.
func (c *Codec) Decode(r io.Reader) (Message, error) {
	buf := make([]byte, c.blockSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return c.DecodeFromBytes(buf)
}

func (c *Codec) EncodeToBytes(msg Message) (Frame, error) {
	body := appendMessage(nil, msg)
	frame := make([]byte, 0, c.blockSize)
	frame = protowire.AppendVarint(frame, uint64(len(body)))
	frame = append(frame, body...)
	if len(frame) > c.blockSize {
		return nil, fmt.Errorf("%w: %s needs %d of %d bytes", ErrFrameTooLarge, msg.Kind(), len(frame), c.blockSize)
	}
	for len(frame) < c.blockSize {
		frame = append(frame, filler)
	}
	return frame, nil
}

// DecodeFromBytes parses the length-prefixed message at the start of frame.
// Everything after the declared length is padding and is never inspected.
func (c *Codec) DecodeFromBytes(frame []byte) (Message, error) {
	size, n := protowire.ConsumeVarint(frame)
	if n < 0 {
		return nil, fmt.Errorf("%w: length prefix: %v", ErrMalformedFrame, protowire.ParseError(n))
	}
	if size > uint64(len(frame)-n) {
		return nil, fmt.Errorf("%w: declares %d bytes, %d available", ErrMalformedFrame, size, len(frame)-n)
	}
	return unmarshalMessage(frame[n : n+int(size)])
}

func appendMessage(b []byte, msg Message) []byte {
	h := msg.Head()
	b = protowire.AppendTag(b, fieldKind, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(msg.Kind()))
	b = appendString(b, fieldSender, h.Sender)
	b = appendString(b, fieldReceiver, h.Receiver)
	b = protowire.AppendTag(b, fieldTTL, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(int64(h.TTL)))

	switch m := msg.(type) {
	case *Fragment:
		b = appendString(b, fieldFileName, m.FileName)
		b = appendPartNum(b, m.PartNum)
		b = protowire.AppendTag(b, fieldIsLast, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeBool(m.IsLast))
		if len(m.Payload) > 0 {
			b = protowire.AppendTag(b, fieldPayload, protowire.BytesType)
			b = protowire.AppendBytes(b, m.Payload)
		}
	case *Ack:
		b = appendString(b, fieldFileName, m.FileName)
		b = appendPartNum(b, m.PartNum)
	case *FileSearch:
		b = appendString(b, fieldFileName, m.FileName)
	case *HasFile:
		b = appendString(b, fieldFileName, m.FileName)
	case *TransferRequest:
		b = appendString(b, fieldFileName, m.FileName)
	}
	return b
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

// part numbers are fixed width so every fragment of a transfer has the same
// payload capacity.
func appendPartNum(b []byte, part uint32) []byte {
	b = protowire.AppendTag(b, fieldPartNum, protowire.Fixed32Type)
	return protowire.AppendFixed32(b, part)
}

type wireFields struct {
	kind     Kind
	hasKind  bool
	header   Header
	fileName string
	partNum  uint32
	isLast   bool
	payload  []byte
}

func unmarshalMessage(b []byte) (Message, error) {
	var f wireFields
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldKind && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			n = m
			f.kind, f.hasKind = Kind(v), true
		case num == fieldSender && typ == protowire.BytesType:
			f.header.Sender, n = protowire.ConsumeString(b)
		case num == fieldReceiver && typ == protowire.BytesType:
			f.header.Receiver, n = protowire.ConsumeString(b)
		case num == fieldTTL && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			n = m
			f.header.TTL = int32(protowire.DecodeZigZag(v))
		case num == fieldFileName && typ == protowire.BytesType:
			f.fileName, n = protowire.ConsumeString(b)
		case num == fieldPartNum && typ == protowire.Fixed32Type:
			f.partNum, n = protowire.ConsumeFixed32(b)
		case num == fieldIsLast && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			n = m
			f.isLast = protowire.DecodeBool(v)
		case num == fieldPayload && typ == protowire.BytesType:
			var v []byte
			v, n = protowire.ConsumeBytes(b)
			f.payload = bytes.Clone(v)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return nil, fmt.Errorf("%w: field %d: %v", ErrMalformedFrame, num, protowire.ParseError(n))
		}
		b = b[n:]
	}

	if !f.hasKind {
		return nil, fmt.Errorf("%w: missing kind", ErrMalformedFrame)
	}

	switch f.kind {
	case KindFragment:
		return &Fragment{Header: f.header, FileName: f.fileName, PartNum: f.partNum, IsLast: f.isLast, Payload: f.payload}, nil
	case KindJoin:
		return &Join{Header: f.header}, nil
	case KindFileSearch:
		return &FileSearch{Header: f.header, FileName: f.fileName}, nil
	case KindHasFile:
		return &HasFile{Header: f.header, FileName: f.fileName}, nil
	case KindTransferRequest:
		return &TransferRequest{Header: f.header, FileName: f.fileName}, nil
	case KindAck:
		return &Ack{Header: f.header, FileName: f.fileName, PartNum: f.partNum}, nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %d", ErrMalformedFrame, f.kind)
	}
}
