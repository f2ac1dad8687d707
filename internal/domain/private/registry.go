// Package private tracks per-session tokens for private-browsing nodes.
//
// Nothing in this package touches disk. A session starts implicitly with the
// first token request and ends with EndSession, which forgets every token so
// the same origin pair maps to a fresh NodeID in the next session.
package private

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/GriffinCanCode/plugstore/internal/shared/id"
	"github.com/GriffinCanCode/plugstore/internal/shared/types"
)

type pairKey struct {
	origin string
	top    string
}

// Session is a snapshot of an ended private session
type Session struct {
	ID        id.SessionID
	StartedAt time.Time
	Nodes     []types.NodeID
}

// Registry holds the current private session
type Registry struct {
	mu        sync.Mutex
	rand      io.Reader
	session   id.SessionID
	startedAt time.Time
	tokens    map[pairKey][]byte
	nodes     map[types.NodeID]struct{}
}

// New creates a registry with no active session
func New() *Registry {
	return NewWithRand(rand.Reader)
}

// NewWithRand creates a registry drawing tokens from r
func NewWithRand(r io.Reader) *Registry {
	return &Registry{
		rand:   r,
		tokens: make(map[pairKey][]byte),
		nodes:  make(map[types.NodeID]struct{}),
	}
}

// GetOrCreateToken returns the pair's token for the current session,
// starting a session if none is active
func (r *Registry) GetOrCreateToken(origin, topLevelOrigin string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.session == "" {
		r.session = id.NewSessionID()
		r.startedAt = time.Now()
	}

	key := pairKey{origin: origin, top: topLevelOrigin}
	if tok, ok := r.tokens[key]; ok {
		return tok, nil
	}

	tok := make([]byte, types.SaltLength)
	if _, err := io.ReadFull(r.rand, tok); err != nil {
		return nil, fmt.Errorf("generate session token: %w", err)
	}
	r.tokens[key] = tok
	return tok, nil
}

// Track records a NodeID issued in the current session
func (r *Registry) Track(nodeID types.NodeID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session != "" {
		r.nodes[nodeID] = struct{}{}
	}
}

// Contains reports whether nodeID was issued in the current session
func (r *Registry) Contains(nodeID types.NodeID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.nodes[nodeID]
	return ok
}

// Active reports whether a session is in progress
func (r *Registry) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session != ""
}

// SessionID returns the current session id, or "" when none is active
func (r *Registry) SessionID() id.SessionID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session
}

// Len returns the number of nodes issued in the current session
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.nodes)
}

// EndSession forgets every token and returns the ended session. With no
// active session it returns false and changes nothing.
func (r *Registry) EndSession() (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.session == "" {
		return Session{}, false
	}

	ended := Session{
		ID:        r.session,
		StartedAt: r.startedAt,
		Nodes:     make([]types.NodeID, 0, len(r.nodes)),
	}
	for n := range r.nodes {
		ended.Nodes = append(ended.Nodes, n)
	}

	r.session = ""
	r.startedAt = time.Time{}
	r.tokens = make(map[pairKey][]byte)
	r.nodes = make(map[types.NodeID]struct{})
	return ended, true
}
