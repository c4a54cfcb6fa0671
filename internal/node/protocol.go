package node

import "github.com/rudransh-shrivastava/peer-relay/internal/protocol"

// Join only ever crosses one link.
func BuildJoinMessage(sender, receiver string) *protocol.Join {
	return &protocol.Join{
		Header: protocol.Header{Sender: sender, Receiver: receiver, TTL: 1},
	}
}

func BuildFileSearchMessage(sender, fileName string, ttl int32) *protocol.FileSearch {
	return &protocol.FileSearch{
		Header:   protocol.Header{Sender: sender, Receiver: protocol.Broadcast, TTL: ttl},
		FileName: fileName,
	}
}

func BuildHasFileMessage(sender, receiver, fileName string, ttl int32) *protocol.HasFile {
	return &protocol.HasFile{
		Header:   protocol.Header{Sender: sender, Receiver: receiver, TTL: ttl},
		FileName: fileName,
	}
}

func BuildTransferRequestMessage(sender, receiver, fileName string, ttl int32) *protocol.TransferRequest {
	return &protocol.TransferRequest{
		Header:   protocol.Header{Sender: sender, Receiver: receiver, TTL: ttl},
		FileName: fileName,
	}
}

func BuildAckMessage(sender, receiver, fileName string, part uint32, ttl int32) *protocol.Ack {
	return &protocol.Ack{
		Header:   protocol.Header{Sender: sender, Receiver: receiver, TTL: ttl},
		FileName: fileName,
		PartNum:  part,
	}
}
