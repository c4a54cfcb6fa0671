// Package routing tracks a node's neighbours and the next hop toward every
// node it has heard from.
package routing

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

var ErrUnknownDestination = errors.New("destination unknown")

// Table holds the live links, the neighbour set and the route table.
// Routes are learned from traffic: a message from S arriving over the link
// to neighbour N makes N the next hop for S. A directly joined neighbour
// always routes to itself.
type Table struct {
	mu        sync.RWMutex
	links     map[*Link]struct{}
	neighbors map[string]*Link
	routes    map[string]string
}

func NewTable() *Table {
	return &Table{
		links:     make(map[*Link]struct{}),
		neighbors: make(map[string]*Link),
		routes:    make(map[string]string),
	}
}

// Add tracks a link that has not completed its handshake yet.
func (t *Table) Add(link *Link) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.links[link] = struct{}{}
}

// Join registers link as the neighbour remoteID and returns the link it
// replaced, if any. The caller closes the replaced link.
func (t *Table) Join(remoteID string, link *Link) (*Link, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !link.establish(remoteID) {
		return nil, ErrLinkClosed
	}
	t.links[link] = struct{}{}

	var replaced *Link
	if old, ok := t.neighbors[remoteID]; ok && old != link {
		replaced = old
		delete(t.links, old)
	}
	t.neighbors[remoteID] = link
	t.routes[remoteID] = remoteID
	return replaced, nil
}

// Remove forgets link. If it was the current link of a neighbour, the
// neighbour and every route through it are dropped and its id is returned.
func (t *Table) Remove(link *Link) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.links, link)
	id := link.RemoteID()
	if id == "" || t.neighbors[id] != link {
		return "", false
	}
	delete(t.neighbors, id)
	t.removeRoutesViaLocked(id)
	return id, true
}

// RecordSighting notes that sender's traffic arrived over link.
func (t *Table) RecordSighting(sender string, link *Link) {
	if sender == "" {
		return
	}
	hop := link.RemoteID()
	if hop == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.neighbors[hop] != link {
		return
	}
	if _, direct := t.neighbors[sender]; direct {
		return
	}
	t.routes[sender] = hop
}

// ResolveNextHop returns the established link toward destination.
func (t *Table) ResolveNextHop(destination string) (*Link, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	hop, ok := t.routes[destination]
	if !ok {
		return nil, fmt.Errorf("%w: no route to %s", ErrUnknownDestination, destination)
	}
	link, ok := t.neighbors[hop]
	if !ok || link.State() != Established {
		return nil, fmt.Errorf("%w: next hop %s for %s is not connected", ErrUnknownDestination, hop, destination)
	}
	return link, nil
}

// RemoveRoutesVia drops every route whose next hop is neighbor.
func (t *Table) RemoveRoutesVia(neighbor string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.removeRoutesViaLocked(neighbor)
}

func (t *Table) removeRoutesViaLocked(neighbor string) {
	for dest, hop := range t.routes {
		if hop == neighbor {
			delete(t.routes, dest)
		}
	}
}

func (t *Table) Neighbors() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ids := make([]string, 0, len(t.neighbors))
	for id := range t.neighbors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// IsNeighbor reports whether id has a live established link.
func (t *Table) IsNeighbor(id string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.neighbors[id]
	return ok
}

// Routes returns a copy of destination -> next hop.
func (t *Table) Routes() map[string]string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]string, len(t.routes))
	for dest, hop := range t.routes {
		out[dest] = hop
	}
	return out
}

// NeighborLinks returns the neighbour links ordered by id.
func (t *Table) NeighborLinks() []*Link {
	t.mu.RLock()
	defer t.mu.RUnlock()

	links := make([]*Link, 0, len(t.neighbors))
	for _, l := range t.neighbors {
		links = append(links, l)
	}
	sort.Slice(links, func(i, j int) bool { return links[i].RemoteID() < links[j].RemoteID() })
	return links
}

// Links returns every tracked link, established or not.
func (t *Table) Links() []*Link {
	t.mu.RLock()
	defer t.mu.RUnlock()

	links := make([]*Link, 0, len(t.links))
	for l := range t.links {
		links = append(links, l)
	}
	return links
}

func (t *Table) NeighborID(link *Link) (string, bool) {
	id := link.RemoteID()
	if id == "" {
		return "", false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return id, t.neighbors[id] == link
}

// ExpireConnecting removes links still waiting for a handshake that were
// opened before cutoff and returns them for closing.
func (t *Table) ExpireConnecting(cutoff time.Time) []*Link {
	t.mu.Lock()
	defer t.mu.Unlock()

	var expired []*Link
	for l := range t.links {
		if l.State() == Connecting && l.Opened.Before(cutoff) {
			delete(t.links, l)
			expired = append(expired, l)
		}
	}
	return expired
}
