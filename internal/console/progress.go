package console

import (
	"fmt"
	"io"
	"sync"

	"github.com/rudransh-shrivastava/peer-relay/internal/node"
	"github.com/schollz/progressbar/v3"
)

type barKey struct {
	destination string
	fileName    string
}

// Progress draws one bar per outbound transfer, counting acknowledged
// fragments.
type Progress struct {
	mu   sync.Mutex
	out  io.Writer
	bars map[barKey]*transferBar
}

type transferBar struct {
	bar   *progressbar.ProgressBar
	parts int
}

func NewProgress(out io.Writer) *Progress {
	return &Progress{out: out, bars: make(map[barKey]*transferBar)}
}

// Observe is a node.Options.Progress hook.
func (p *Progress) Observe(ev node.ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := barKey{destination: ev.Destination, fileName: ev.FileName}
	tb := p.bars[key]

	switch ev.Stage {
	case node.StageSent:
		// part 0 marks a fresh send or a restart
		if ev.Part == 0 || tb == nil {
			if tb != nil {
				_ = tb.bar.Exit()
			}
			tb = &transferBar{bar: p.newBar(ev), parts: ev.Parts}
			p.bars[key] = tb
		}
	case node.StageAcked:
		if tb != nil {
			_ = tb.bar.Set(tb.parts - ev.Remaining)
		}
	case node.StageComplete:
		if tb != nil {
			_ = tb.bar.Finish()
			delete(p.bars, key)
		}
		fmt.Fprintf(p.out, "\n%s delivered to %s\n", ev.FileName, ev.Destination)
	case node.StageFailed:
		if tb != nil {
			_ = tb.bar.Exit()
			delete(p.bars, key)
		}
		fmt.Fprintf(p.out, "\n%s to %s failed: %v (will retry)\n", ev.FileName, ev.Destination, ev.Err)
	}
}

func (p *Progress) newBar(ev node.ProgressEvent) *progressbar.ProgressBar {
	return progressbar.NewOptions(ev.Parts,
		progressbar.OptionSetWriter(p.out),
		progressbar.OptionSetDescription(fmt.Sprintf("%s -> %s", ev.FileName, ev.Destination)),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionThrottle(0),
	)
}

// Active returns how many transfers currently have a bar.
func (p *Progress) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.bars)
}
