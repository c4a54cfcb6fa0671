package protocol

const (
	// BlockSize is the size in bytes of every frame on the wire.
	BlockSize = 2048
	// DefaultTTL is the hop budget given to messages a node originates.
	DefaultTTL = 10
	// Broadcast is the receiver marker for flooded messages.
	Broadcast = "*"

	filler = '0'
)

type Kind uint8

const (
	KindFragment Kind = iota
	KindJoin
	KindFileSearch
	KindHasFile
	KindTransferRequest
	KindAck
)

func (k Kind) String() string {
	switch k {
	case KindFragment:
		return "FILE_TRANSFER"
	case KindJoin:
		return "JOIN"
	case KindFileSearch:
		return "FILE_SEARCH"
	case KindHasFile:
		return "HAS_FILE"
	case KindTransferRequest:
		return "TRANSFER_REQUEST"
	case KindAck:
		return "ACK"
	default:
		return "UNKNOWN"
	}
}
