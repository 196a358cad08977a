package tracker

import (
	"log/slog"
	"maps"
	"time"

	"github.com/google/uuid"

	"github.com/tonimelisma/statetracker/pkg/value"
)

// focusKeyPrefix prefixes generated focus keys.
const focusKeyPrefix = "__focus_"

// node is the per-subtree tracker state behind exactly one Proxy.
//
// Cache invariant: children[k] is valid only while its node's base is
// value.Same as the live value at k. Entries are a memo, not structure; a
// missing entry means "not visited yet".
type node struct {
	id         uint64
	base       any
	accessPath value.Path
	rootPath   value.Path
	parent     *Proxy
	children   map[string]*Proxy

	// peeking > 0 suppresses logging. It is a counter rather than a flag so
	// that reentrant peeks nest and unwind correctly.
	peeking int

	updateTimes    int
	lastUpdateAt   time.Time
	focusKey       string
	propProperties []BackwardAccess
	revoked        bool
}

// acquirePeek turns peeking on until the returned release is called.
func (n *node) acquirePeek() (release func()) {
	n.peeking++

	return func() { n.peeking-- }
}

func (n *node) isPeeking() bool {
	return n.peeking > 0
}

// prune drops cache entries that no longer mirror newBase. Used on the node
// of a discarded wrapper so it stops handing out stale children.
func (n *node) prune(newBase any) {
	for key, child := range n.children {
		live, ok := value.Lookup(newBase, key)
		if !ok || !value.Same(child.node.base, live) {
			delete(n.children, key)
		}
	}
}

// markUpdated bumps the update counters after base was written.
func (n *node) markUpdated(at time.Time) {
	n.updateTimes++
	n.lastUpdateAt = at
}

// TrackerInfo is a read-only snapshot of a wrapper's tracker node.
type TrackerInfo struct {
	ID             uint64
	AccessPath     value.Path
	RootPath       value.Path
	Base           any
	Parent         *Proxy
	Children       map[string]*Proxy
	PropProperties []BackwardAccess
	UpdateTimes    int
	LastUpdateAt   time.Time
	FocusKey       string
	Peeking        bool
	Revoked        bool
}

// Info returns a snapshot of p's tracker node. Slices and maps are copies;
// Base and the wrappers are shared.
func Info(p *Proxy) TrackerInfo {
	n := p.node

	props := make([]BackwardAccess, len(n.propProperties))
	copy(props, n.propProperties)

	return TrackerInfo{
		ID:             n.id,
		AccessPath:     n.accessPath.Clone(),
		RootPath:       n.rootPath.Clone(),
		Base:           n.base,
		Parent:         n.parent,
		Children:       maps.Clone(n.children),
		PropProperties: props,
		UpdateTimes:    n.updateTimes,
		LastUpdateAt:   n.lastUpdateAt,
		FocusKey:       n.focusKey,
		Peeking:        n.isPeeking(),
		Revoked:        n.revoked,
	}
}

// SetFocusKey tags p's node with an opaque key. The tracker never reads it.
func SetFocusKey(p *Proxy, key string) {
	p.node.focusKey = key
}

// NewFocusKey generates a unique focus key.
func NewFocusKey() string {
	return focusKeyPrefix + uuid.New().String()
}

// Revoke permanently disables p when its tree was wrapped WithRevoke(true);
// otherwise it does nothing. Children already handed out stay usable.
func Revoke(p *Proxy) {
	if !p.tree.revocable {
		return
	}

	p.node.revoked = true
	p.tree.logger.Debug("tracker: revoked wrapper", slog.String("path", p.node.accessPath.String()))
}
