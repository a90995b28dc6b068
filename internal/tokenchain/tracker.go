// Package tokenchain tracks refresh token identifiers as single-use chains.
//
// Every refresh token carries a jti that names a node in the tracker. Redeeming
// a token links a freshly generated id as the successor of the presented one.
// A node accepts exactly one successor: presenting the same token twice tries
// to attach a second successor, which is treated as replay and purges the
// whole lineage the node belongs to.
package tokenchain

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sync"
)

// DefaultIDBytes yields 30 hex characters (120 bits) per id.
const DefaultIDBytes = 15

// maxGenerateAttempts bounds the retry loop on id collisions.  With 120 bits
// of entropy a single retry is already astronomically unlikely.
const maxGenerateAttempts = 8

var (
	// ErrPreviousNotFound is returned when the predecessor id is unknown,
	// either because it was never issued or because its chain was purged.
	ErrPreviousNotFound = errors.New("tokenchain: previous id does not exist")
	// ErrChainConflict is returned when the predecessor already has a
	// successor.  The predecessor's lineage has been removed when this is
	// returned.
	ErrChainConflict = errors.New("tokenchain: previous id already has a successor")
	// ErrIDExists is returned by add when the id is already tracked.
	ErrIDExists = errors.New("tokenchain: id already exists")
	// ErrIDSpaceExhausted is returned when every generation attempt collided.
	ErrIDSpaceExhausted = errors.New("tokenchain: could not generate a unique id")
)

type node struct {
	prev string
	next string
}

// Tracker is an in-memory arena of chain nodes addressed by id.  It is safe
// for concurrent use; every mutation runs under a single lock so that
// attach, conflict detection and purge appear atomic to racing refreshes.
type Tracker struct {
	mu      sync.Mutex
	nodes   map[string]*node
	idBytes int
	random  io.Reader
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithIDBytes sets the number of random bytes per id.  Values below 8 are
// ignored.
func WithIDBytes(n int) Option {
	return func(t *Tracker) {
		if n >= 8 {
			t.idBytes = n
		}
	}
}

// WithRandom replaces the entropy source.  Tests use it to force collisions.
func WithRandom(r io.Reader) Option {
	return func(t *Tracker) {
		if r != nil {
			t.random = r
		}
	}
}

// New returns an empty tracker.
func New(opts ...Option) *Tracker {
	t := &Tracker{
		nodes:   make(map[string]*node),
		idBytes: DefaultIDBytes,
		random:  rand.Reader,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// GenerateAndLink creates a new id and, when prevID is non-empty, attaches it
// as prevID's successor.  It returns ErrPreviousNotFound when prevID is
// unknown and ErrChainConflict when prevID was already redeemed.
func (t *Tracker) GenerateAndLink(prevID string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for attempt := 0; attempt < maxGenerateAttempts; attempt++ {
		id, err := t.randomID()
		if err != nil {
			return "", fmt.Errorf("tokenchain: read random: %w", err)
		}
		err = t.add(id, prevID)
		if errors.Is(err, ErrIDExists) {
			continue
		}
		if err != nil {
			return "", err
		}
		return id, nil
	}
	return "", ErrIDSpaceExhausted
}

// Exists reports whether id is currently tracked.
func (t *Tracker) Exists(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.nodes[id]
	return ok
}

// Len returns the number of tracked ids.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.nodes)
}

// Next returns the successor of id, if any.
func (t *Tracker) Next(id string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.nodes[id]
	if !ok || n.next == "" {
		return "", false
	}
	return n.next, true
}

// add inserts id; the caller holds t.mu.
func (t *Tracker) add(id, prevID string) error {
	if _, ok := t.nodes[id]; ok {
		return ErrIDExists
	}
	if prevID != "" {
		prev, ok := t.nodes[prevID]
		if !ok {
			return ErrPreviousNotFound
		}
		if prev.next != "" {
			t.purge(prevID)
			return ErrChainConflict
		}
		prev.next = id
	}
	t.nodes[id] = &node{prev: prevID}
	return nil
}

// purge deletes id together with every ancestor and descendant reachable
// through consistent links.  A link is consistent when the neighbour points
// back at the current node; the walk stops at the first inconsistent link
// and leaves that neighbour in place with its dangling pointer cleared.
// The caller holds t.mu.
func (t *Tracker) purge(id string) {
	start, ok := t.nodes[id]
	if !ok {
		return
	}
	doomed := map[string]bool{id: true}

	cur, p := id, start.prev
	for p != "" && !doomed[p] {
		pn, ok := t.nodes[p]
		if !ok || pn.next != cur {
			break
		}
		doomed[p] = true
		cur, p = p, pn.prev
	}

	cur, n := id, start.next
	for n != "" && !doomed[n] {
		nn, ok := t.nodes[n]
		if !ok || nn.prev != cur {
			break
		}
		doomed[n] = true
		cur, n = n, nn.next
	}

	for d := range doomed {
		nd := t.nodes[d]
		if s, ok := t.nodes[nd.prev]; ok && !doomed[nd.prev] && s.next == d {
			s.next = ""
		}
		if s, ok := t.nodes[nd.next]; ok && !doomed[nd.next] && s.prev == d {
			s.prev = ""
		}
	}
	for d := range doomed {
		delete(t.nodes, d)
	}
}

func (t *Tracker) randomID() (string, error) {
	buf := make([]byte, t.idBytes)
	if _, err := io.ReadFull(t.random, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
