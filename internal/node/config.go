package node

import (
	"time"

	"github.com/rudransh-shrivastava/peer-relay/internal/files"
	"github.com/rudransh-shrivastava/peer-relay/internal/protocol"
)

const (
	DefaultAckLimit         = 20 * time.Second
	DefaultSweepInterval    = time.Second
	DefaultPollInterval     = 500 * time.Millisecond
	DefaultHandshakeTimeout = 10 * time.Second

	inboundBuffer = 256
	// partial inbound sessions idle this many ack limits are dropped
	sessionIdleFactor = 3
)

func (o *Options) applyDefaults() {
	if o.BlockSize <= 0 {
		o.BlockSize = protocol.BlockSize
	}
	if o.TTL <= 0 {
		o.TTL = protocol.DefaultTTL
	}
	if o.AckLimit <= 0 {
		o.AckLimit = DefaultAckLimit
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = DefaultSweepInterval
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if o.Similarity <= 0 {
		o.Similarity = files.DefaultSimilarity
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}
