package tracker

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/tonimelisma/statetracker/pkg/value"
)

// tree holds what every wrapper of one Wrap (or one BatchRelink draft)
// shares. Scope ownership is decided per tree: a read is foreign when the
// active scope was entered through a wrapper of another tree.
type tree struct {
	root      *Proxy
	stack     *ScopeStack
	revocable bool
	rootPath  value.Path
	logger    *slog.Logger
	observer  Observer
	now       func() time.Time
}

// Proxy is the tracking wrapper over one container. Reads through Get are
// logged into the active scope; trackable values come back as child
// wrappers whose identity is stable until the value at that key changes.
type Proxy struct {
	node *node
	tree *tree
}

// Wrap creates the root wrapper over v. Native map[string]any and []any
// trees are converted with value.Normalize first, so the wrapper then owns
// the converted tree. Anything that is not an object or array fails with
// ErrInvalidTarget.
func Wrap(v any, opts ...Option) (*Proxy, error) {
	var cfg settings
	for _, opt := range opts {
		opt(&cfg)
	}

	v = value.Normalize(v)
	if !value.IsTrackable(v) {
		return nil, fmt.Errorf("tracker: wrap %T: %w", v, ErrInvalidTarget)
	}

	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}

	if cfg.observer == nil {
		cfg.observer = NopObserver{}
	}

	if cfg.now == nil {
		cfg.now = time.Now
	}

	if cfg.stack == nil {
		cfg.stack = NewScopeStack(cfg.logger, "")
	}

	t := &tree{
		stack:     cfg.stack,
		revocable: cfg.revocable,
		rootPath:  cfg.rootPath,
		logger:    cfg.logger,
		observer:  cfg.observer,
		now:       cfg.now,
	}

	root := t.newProxy(v, cfg.accessPath, nil)
	root.node.focusKey = cfg.focusKey
	t.root = root

	return root, nil
}

// newProxy constructs a wrapper and its tracker node. Callers guarantee base
// is trackable.
func (t *tree) newProxy(base any, accessPath value.Path, parent *Proxy) *Proxy {
	if accessPath == nil {
		accessPath = value.Path{}
	}

	p := &Proxy{
		tree: t,
		node: &node{
			id:           t.stack.nextNodeID(),
			base:         base,
			accessPath:   accessPath,
			rootPath:     t.rootPath,
			parent:       parent,
			children:     make(map[string]*Proxy),
			lastUpdateAt: t.now(),
		},
	}

	t.observer.Created(accessPath)

	return p
}

// Get reads key. Keys the base does not own (including prototype-style
// names like "toString") return nil without logging. Owned keys are logged
// into the active scope unless the wrapper is peeking. When the active scope
// belongs to another tree the read is recorded as a backward access on that
// scope's owner and answered by peeking from this tree's root, so the caller
// sees exactly what the owner would. Objects and arrays come back as child
// wrappers.
func (p *Proxy) Get(key string) (any, error) {
	n := p.node
	if n.revoked {
		return nil, fmt.Errorf("tracker: get %q at %q: %w", key, n.accessPath.String(), ErrRevokedAccess)
	}

	raw, ok := value.Lookup(n.base, key)
	if !ok {
		return nil, nil
	}

	next := n.accessPath.Child(key)

	if !n.isPeeking() {
		foreign, logged := p.tree.stack.record(p.tree, next)
		if foreign != nil {
			return p.backwardRead(foreign, next)
		}

		if logged {
			p.tree.observer.Recorded(next)
		}
	}

	if !value.IsTrackable(raw) {
		return raw, nil
	}

	return p.child(key, raw, next), nil
}

// child returns the cached wrapper for key, rebasing it when the live value
// was replaced. Nothing between the identity check and the cache write can
// reenter the tracker.
func (p *Proxy) child(key string, raw any, next value.Path) *Proxy {
	n := p.node

	if cached, ok := n.children[key]; ok {
		if value.Same(cached.node.base, raw) {
			return cached
		}

		p.discard(key, cached, raw)
	}

	c := p.tree.newProxy(raw, next, p)
	n.children[key] = c

	return c
}

// discard drops a cached child whose base no longer mirrors live. The stale
// node keeps its base but loses cache entries live does not share.
func (p *Proxy) discard(key string, cached *Proxy, live any) {
	delete(p.node.children, key)
	cached.node.prune(live)

	path := cached.node.accessPath
	p.tree.logger.Debug("tracker: discarded stale child wrapper",
		slog.String("path", path.String()),
		slog.Uint64("stale_id", cached.node.id),
	)
	p.tree.observer.Rebased(path)
}

func (p *Proxy) backwardRead(foreign *Scope, path value.Path) (any, error) {
	root := p.Root()
	ba := BackwardAccess{Path: path, Source: root}

	owner := foreign.owner.node
	owner.propProperties = append(owner.propProperties, ba)
	p.tree.stack.noteBackward(foreign, ba)
	p.tree.observer.BackwardAccess(path)

	return Peek(root, path[len(root.node.accessPath):])
}

// Set assigns v at key on this wrapper's base: objects add or replace the
// key, arrays accept an index up to Len() or "length". The node's update
// counters are bumped and exactly the cache entry for key is dropped when it
// no longer mirrors v; sibling wrappers are untouched. Set does not log.
func (p *Proxy) Set(key string, v any) error {
	n := p.node
	if n.revoked {
		return fmt.Errorf("tracker: set %q at %q: %w", key, n.accessPath.String(), ErrRevokedAccess)
	}

	v = value.Normalize(v)

	if err := value.Assign(n.base, key, v); err != nil {
		return fmt.Errorf("tracker: set %q at %q: %w: %w", key, n.accessPath.String(), ErrInvalidPath, err)
	}

	n.markUpdated(p.tree.now())

	if key == value.LengthKey && value.IsArray(n.base) {
		// resizing can drop any index
		n.prune(n.base)

		return nil
	}

	if cached, ok := n.children[key]; ok && !value.Same(cached.node.base, v) {
		p.discard(key, cached, v)
	}

	return nil
}

// Len returns the element count. For arrays this is a tracked read of
// "length"; for objects it is the key count and is not logged.
func (p *Proxy) Len() (int, error) {
	if p.node.revoked {
		return 0, fmt.Errorf("tracker: len at %q: %w", p.node.accessPath.String(), ErrRevokedAccess)
	}

	obj, isObj := p.node.base.(*value.Object)
	if isObj {
		return obj.Len(), nil
	}

	v, err := p.Get(value.LengthKey)
	if err != nil {
		return 0, err
	}

	n, ok := v.(int)
	if !ok {
		return 0, fmt.Errorf("tracker: len at %q: got %T: %w", p.node.accessPath.String(), v, ErrInvalidPath)
	}

	return n, nil
}

// Index is Get with a decimal index key.
func (p *Proxy) Index(i int) (any, error) {
	return p.Get(strconv.Itoa(i))
}

// At performs a tracked read along keys, logging every step.
func (p *Proxy) At(keys ...string) (any, error) {
	var cur any = p

	for i, key := range keys {
		px, ok := cur.(*Proxy)
		if !ok {
			return nil, fmt.Errorf("tracker: read %q: %q is not an object or array: %w",
				value.Path(keys).String(), value.Path(keys[:i]).String(), ErrInvalidPath)
		}

		next, err := px.Get(key)
		if err != nil {
			return nil, err
		}

		cur = next
	}

	return cur, nil
}

// Each visits every element the way an array map does: arrays read "length"
// once and then each index in order; objects enumerate their keys without
// logging and read each value. fn receives the tracked result of each read
// and may stop the walk by returning an error.
func (p *Proxy) Each(fn func(key string, item any) error) error {
	keys, err := p.Keys()
	if err != nil {
		return err
	}

	if value.IsArray(p.node.base) {
		n, err := p.Len()
		if err != nil {
			return err
		}

		keys = keys[:min(n, len(keys))]
	}

	for _, key := range keys {
		item, err := p.Get(key)
		if err != nil {
			return err
		}

		if err := fn(key, item); err != nil {
			return err
		}
	}

	return nil
}

// Keys lists own enumerable keys without logging.
func (p *Proxy) Keys() ([]string, error) {
	if p.node.revoked {
		return nil, fmt.Errorf("tracker: keys at %q: %w", p.node.accessPath.String(), ErrRevokedAccess)
	}

	return value.OwnKeys(p.node.base), nil
}

// Raw returns the container this wrapper currently mirrors, without logging.
func (p *Proxy) Raw() any {
	return p.node.base
}

// Path returns the access path of this wrapper.
func (p *Proxy) Path() value.Path {
	return p.node.accessPath.Clone()
}

// Root returns the root wrapper of p's tree.
func (p *Proxy) Root() *Proxy {
	return p.tree.root
}

// String describes the wrapper without reading through it.
func (p *Proxy) String() string {
	return fmt.Sprintf("tracker.Proxy(%s %q #%d)", value.Kind(p.node.base), p.node.accessPath.String(), p.node.id)
}
