package tracker

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tonimelisma/statetracker/pkg/value"
)

// defaultLabelPrefix prefixes generated scope ids.
const defaultLabelPrefix = "__context_"

// BackwardAccess is a read of a wrapper performed while a scope owned by a
// different tree was active. Source is the root wrapper of the tree that was
// read.
type BackwardAccess struct {
	Path   value.Path
	Source *Proxy
}

// ScopeStack is a stack of recording scopes. Only the innermost scope
// receives log entries. All methods are safe for concurrent use.
type ScopeStack struct {
	mu         sync.Mutex
	scopes     []*Scope
	prefix     string
	lastUpdate time.Time
	nodeSeq    atomic.Uint64
	logger     *slog.Logger
}

// NewScopeStack creates an empty stack. Generated scope ids start with
// labelPrefix, or "__context_" when it is empty. A nil logger discards.
func NewScopeStack(logger *slog.Logger, labelPrefix string) *ScopeStack {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if labelPrefix == "" {
		labelPrefix = defaultLabelPrefix
	}

	return &ScopeStack{
		prefix: labelPrefix,
		logger: logger,
	}
}

// Scope is one recording frame. It stays readable after it has been left.
type Scope struct {
	id       string
	stack    *ScopeStack
	owner    *Proxy
	paths    []value.Path
	backward []BackwardAccess
	closed   bool
}

// Enter pushes a new scope owned by p's tree and makes it active. An empty
// label generates a unique id. The returned scope is the handle Leave needs.
func Enter(p *Proxy, label string) *Scope {
	return p.tree.stack.enter(p, label)
}

// Leave pops the active scope of p's stack.
func Leave(p *Proxy) error {
	_, err := p.tree.stack.leave(nil)
	return err
}

// Current returns the active scope of p's stack, or nil.
func Current(p *Proxy) *Scope {
	return p.tree.stack.Current()
}

// Stack returns the stack p records into.
func Stack(p *Proxy) *ScopeStack {
	return p.tree.stack
}

func (s *ScopeStack) enter(owner *Proxy, label string) *Scope {
	if label == "" {
		label = s.prefix + uuid.New().String()
	}

	sc := &Scope{id: label, stack: s, owner: owner}

	s.mu.Lock()
	s.scopes = append(s.scopes, sc)
	depth := len(s.scopes)
	s.mu.Unlock()

	s.logger.Debug("tracker: entered scope",
		slog.String("scope", label),
		slog.Int("depth", depth),
	)

	return sc
}

// leave pops the active scope. When want is non-nil it must be the active
// scope, otherwise nothing is popped.
func (s *ScopeStack) leave(want *Scope) (*Scope, error) {
	s.mu.Lock()

	if len(s.scopes) == 0 {
		s.mu.Unlock()
		return nil, fmt.Errorf("tracker: leave with no active scope: %w", ErrUnbalancedScope)
	}

	top := s.scopes[len(s.scopes)-1]
	if want != nil && want != top {
		s.mu.Unlock()
		return nil, fmt.Errorf("tracker: leave scope %q while %q is active: %w", want.id, top.id, ErrUnbalancedScope)
	}

	s.scopes[len(s.scopes)-1] = nil
	s.scopes = s.scopes[:len(s.scopes)-1]
	top.closed = true
	depth := len(s.scopes)
	recorded := len(top.paths)
	s.mu.Unlock()

	s.logger.Debug("tracker: left scope",
		slog.String("scope", top.id),
		slog.Int("depth", depth),
		slog.Int("paths", recorded),
	)

	return top, nil
}

// Current returns the active scope, or nil when the stack is empty.
func (s *ScopeStack) Current() *Scope {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.scopes) == 0 {
		return nil
	}

	return s.scopes[len(s.scopes)-1]
}

// Depth returns the number of open scopes.
func (s *ScopeStack) Depth() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.scopes)
}

// LastUpdate returns when a relink last went through this stack.
func (s *ScopeStack) LastUpdate() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lastUpdate
}

func (s *ScopeStack) touch(t time.Time) {
	s.mu.Lock()
	s.lastUpdate = t
	s.mu.Unlock()
}

func (s *ScopeStack) nextNodeID() uint64 {
	return s.nodeSeq.Add(1)
}

// record appends path to the active scope when that scope belongs to t and
// reports whether it did. When the active scope belongs to another tree
// nothing is logged and that scope is returned so the caller can attribute a
// backward access.
func (s *ScopeStack) record(t *tree, path value.Path) (foreign *Scope, logged bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.scopes) == 0 {
		return nil, false
	}

	top := s.scopes[len(s.scopes)-1]
	if top.owner.tree != t {
		return top, false
	}

	top.paths = append(top.paths, path)

	return nil, true
}

func (s *ScopeStack) noteBackward(sc *Scope, ba BackwardAccess) {
	s.mu.Lock()
	sc.backward = append(sc.backward, ba)
	s.mu.Unlock()
}

// ID returns the scope label.
func (sc *Scope) ID() string {
	return sc.id
}

// Owner returns the wrapper the scope was entered through.
func (sc *Scope) Owner() *Proxy {
	return sc.owner
}

// Leave pops this scope. It fails with ErrUnbalancedScope unless this scope
// is the active one, so a scope can only be left through its own handle.
func (sc *Scope) Leave() error {
	_, err := sc.stack.leave(sc)
	return err
}

// Closed reports whether the scope has been left.
func (sc *Scope) Closed() bool {
	sc.stack.mu.Lock()
	defer sc.stack.mu.Unlock()

	return sc.closed
}

// Paths returns every logged read in read order, duplicates included.
func (sc *Scope) Paths() []value.Path {
	sc.stack.mu.Lock()
	defer sc.stack.mu.Unlock()

	out := make([]value.Path, len(sc.paths))
	for i, p := range sc.paths {
		out[i] = p.Clone()
	}

	return out
}

// Backward returns the foreign reads observed while this scope was active.
func (sc *Scope) Backward() []BackwardAccess {
	sc.stack.mu.Lock()
	defer sc.stack.mu.Unlock()

	out := make([]BackwardAccess, len(sc.backward))
	copy(out, sc.backward)

	return out
}

// Remarkable returns the distinct paths that matter to a consumer. A logged
// read counts unless the very next read extends it (the usual walk from a
// parent into a child). Counted paths come out in a post-order walk of the
// prefix trie of everything logged: children in first-seen order, then the
// node itself. For [a, a, a.a1, a, a.a2] that is [a.a1, a.a2, a].
func (sc *Scope) Remarkable() []value.Path {
	return remarkable(sc.Paths())
}

// Invalidated returns the remarkable paths a change at any of changed could
// affect.
func (sc *Scope) Invalidated(changed []value.Path) []value.Path {
	return value.Overlapping(sc.Remarkable(), changed)
}

type pathTrie struct {
	path     value.Path
	terminal bool
	order    []string
	next     map[string]*pathTrie
}

func remarkable(paths []value.Path) []value.Path {
	root := &pathTrie{path: value.Path{}, next: make(map[string]*pathTrie)}

	for i, p := range paths {
		cur := root

		for _, key := range p {
			nx, ok := cur.next[key]
			if !ok {
				nx = &pathTrie{path: cur.path.Child(key), next: make(map[string]*pathTrie)}
				cur.next[key] = nx
				cur.order = append(cur.order, key)
			}

			cur = nx
		}

		if i+1 == len(paths) || !paths[i+1].Extends(p) {
			cur.terminal = true
		}
	}

	var out []value.Path

	var walk func(t *pathTrie)
	walk = func(t *pathTrie) {
		for _, key := range t.order {
			walk(t.next[key])
		}

		if t.terminal && t != root {
			out = append(out, t.path)
		}
	}
	walk(root)

	return out
}
