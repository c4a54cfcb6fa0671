package protocol

// Message is one overlay message. Every kind has its own concrete type so
// dispatch is a type switch over the variants.
type Message interface {
	Kind() Kind
	Head() *Header
}

// Header holds the fields every kind carries.
type Header struct {
	Sender   string
	Receiver string
	TTL      int32
}

func (h *Header) Head() *Header { return h }

type Fragment struct {
	Header
	FileName string
	PartNum  uint32
	IsLast   bool
	Payload  []byte
}

func (*Fragment) Kind() Kind { return KindFragment }

type Join struct {
	Header
}

func (*Join) Kind() Kind { return KindJoin }

type FileSearch struct {
	Header
	FileName string
}

func (*FileSearch) Kind() Kind { return KindFileSearch }

type HasFile struct {
	Header
	FileName string
}

func (*HasFile) Kind() Kind { return KindHasFile }

type TransferRequest struct {
	Header
	FileName string
}

func (*TransferRequest) Kind() Kind { return KindTransferRequest }

type Ack struct {
	Header
	FileName string
	PartNum  uint32
}

func (*Ack) Kind() Kind { return KindAck }

// FileNameOf returns the file name carried by msg, or "" for kinds without one.
func FileNameOf(msg Message) string {
	switch m := msg.(type) {
	case *Fragment:
		return m.FileName
	case *FileSearch:
		return m.FileName
	case *HasFile:
		return m.FileName
	case *TransferRequest:
		return m.FileName
	case *Ack:
		return m.FileName
	default:
		return ""
	}
}
