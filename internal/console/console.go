// Package console is the interactive command line of a running node.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rudransh-shrivastava/peer-relay/internal/api"
)

const usage = `commands:
  join <addr>             connect to the node listening at addr
  send <dest> <file>      send a local file to node dest
  request <file>          search the network for file and fetch it
  list                    list local files
  neighbors               list directly connected nodes
  routes                  show destination -> next hop
  transfers               show outbound transfers awaiting acks
  help                    show this text
  quit                    stop the node`

var errQuit = errors.New("quit")

type Console struct {
	engine api.Engine
	in     io.Reader
	out    io.Writer
	quit   func()
}

// New returns a console over engine. quit is called on "quit".
func New(engine api.Engine, in io.Reader, out io.Writer, quit func()) *Console {
	if quit == nil {
		quit = func() {}
	}
	return &Console{engine: engine, in: in, out: out, quit: quit}
}

// Run reads commands until EOF, "quit" or ctx is cancelled.
func (c *Console) Run(ctx context.Context) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(c.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	fmt.Fprintf(c.out, "node %s ready, type help for commands\n", c.engine.ID())
	for {
		fmt.Fprint(c.out, "> ")
		select {
		case <-ctx.Done():
			return nil
		case err := <-scanErr:
			return err
		case line := <-lines:
			if err := c.RunLine(ctx, line); errors.Is(err, errQuit) {
				return nil
			}
		}
	}
}

// RunLine executes one command. Failures are printed and returned.
func (c *Console) RunLine(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	err := c.exec(ctx, cmd, args)
	if err != nil && !errors.Is(err, errQuit) {
		fmt.Fprintf(c.out, "error: %v\n", err)
	}
	return err
}

func (c *Console) exec(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "join":
		if len(args) != 1 {
			return errors.New("usage: join <addr>")
		}
		id, err := c.engine.Join(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "joined %s\n", id)

	case "send":
		if len(args) != 2 {
			return errors.New("usage: send <dest> <file>")
		}
		if err := c.engine.SendFile(ctx, args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "sending %s to %s\n", args[1], args[0])

	case "request":
		if len(args) != 1 {
			return errors.New("usage: request <file>")
		}
		if err := c.engine.Request(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "searching for %s\n", args[0])

	case "list", "ls":
		names, err := c.engine.LocalFiles()
		if err != nil {
			return err
		}
		printList(c.out, "no local files", names)

	case "neighbors":
		printList(c.out, "no neighbors", c.engine.Neighbors())

	case "routes":
		c.printRoutes()

	case "transfers":
		c.printTransfers()

	case "help":
		fmt.Fprintln(c.out, usage)

	case "quit", "exit":
		c.quit()
		return errQuit

	default:
		return fmt.Errorf("unknown command %q, try help", cmd)
	}
	return nil
}

func printList(w io.Writer, empty string, items []string) {
	if len(items) == 0 {
		fmt.Fprintln(w, empty)
		return
	}
	for _, s := range items {
		fmt.Fprintln(w, s)
	}
}

func (c *Console) printRoutes() {
	routes := c.engine.Routes()
	if len(routes) == 0 {
		fmt.Fprintln(c.out, "no routes")
		return
	}
	dests := make([]string, 0, len(routes))
	for d := range routes {
		dests = append(dests, d)
	}
	sort.Strings(dests)

	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DESTINATION\tNEXT HOP")
	for _, d := range dests {
		fmt.Fprintf(tw, "%s\t%s\n", d, routes[d])
	}
	tw.Flush()
}

func (c *Console) printTransfers() {
	entries := c.engine.Transfers()
	if len(entries) == 0 {
		fmt.Fprintln(c.out, "no pending transfers")
		return
	}
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DESTINATION\tFILE\tUNACKED\tLAST SENT")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", e.Destination, e.FileName, len(e.Unacked), e.SendTime.Format(time.TimeOnly))
	}
	tw.Flush()
}
