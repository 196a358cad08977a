package tracker

import (
	"fmt"
	"log/slog"
	"maps"

	"github.com/tonimelisma/statetracker/pkg/value"
)

// Change is one relink in a batch.
type Change struct {
	Path  value.Path
	Value any
}

// Peek follows path from p with every touched node peeking, so nothing is
// logged and no backward access is recorded. It returns a wrapper for
// containers and the raw value otherwise; a missing final key yields nil.
// An intermediate segment that is not an object or array fails with
// ErrInvalidPath.
func Peek(p *Proxy, path value.Path) (any, error) {
	if p.node.revoked {
		return nil, fmt.Errorf("tracker: peek %q: %w", path.String(), ErrRevokedAccess)
	}

	var cur any = p

	for i, key := range path {
		px, ok := cur.(*Proxy)
		if !ok {
			return nil, fmt.Errorf("tracker: peek %q: %q is %s: %w",
				path.String(), path[:i].String(), value.Kind(cur), ErrInvalidPath)
		}

		next, err := px.peekGet(key)
		if err != nil {
			return nil, err
		}

		cur = next
	}

	return cur, nil
}

func (p *Proxy) peekGet(key string) (any, error) {
	release := p.node.acquirePeek()
	defer release()

	return p.Get(key)
}

// Relink replaces the value at path, relative to p. The parent is resolved
// with Peek and the write goes through its Set, so only the parent's cache
// entry for the last key can be invalidated. Relink either writes or fails
// before touching any state.
func Relink(p *Proxy, path value.Path, v any) error {
	parent, last, err := resolveParent(p, path)
	if err != nil {
		return err
	}

	if err := parent.Set(last, v); err != nil {
		return fmt.Errorf("tracker: relink %q: %w", path.String(), err)
	}

	p.tree.stack.touch(p.tree.now())

	p.tree.logger.Debug("tracker: relinked",
		slog.String("path", path.String()),
		slog.String("kind", value.Kind(v)),
	)
	p.tree.observer.Relinked(path)

	return nil
}

// resolveParent peeks the wrapper that owns the last key of path.
func resolveParent(p *Proxy, path value.Path) (*Proxy, string, error) {
	front, last, ok := path.Split()
	if !ok {
		return nil, "", fmt.Errorf("tracker: relink: empty path: %w", ErrInvalidPath)
	}

	got, err := Peek(p, front)
	if err != nil {
		return nil, "", fmt.Errorf("tracker: relink %q: %w", path.String(), err)
	}

	parent, ok := got.(*Proxy)
	if !ok {
		return nil, "", fmt.Errorf("tracker: relink %q: %q is %s: %w",
			path.String(), front.String(), value.Kind(got), ErrInvalidPath)
	}

	if parent.node.revoked {
		return nil, "", fmt.Errorf("tracker: relink %q: %w", path.String(), ErrRevokedAccess)
	}

	return parent, last, nil
}

// BatchRelink applies every change to p and returns a draft wrapper over a
// snapshot of p's tree as it was before the changes.
//
// The draft has its own tracker node over a shallow copy of p's base, shares
// p's stack, and reuses p's cached child wrappers for every top-level key no
// change touches, so those children keep one identity on both sides. Along
// each changed path the draft copies the intermediate containers before the
// live writes happen, which keeps nested pre-change values visible in the
// draft. Every change is resolved and checked against its current parent
// before the first write, so a rejected batch leaves p untouched.
func BatchRelink(p *Proxy, changes []Change) (*Proxy, error) {
	if p.node.revoked {
		return nil, fmt.Errorf("tracker: batch relink: %w", ErrRevokedAccess)
	}

	for _, c := range changes {
		parent, last, err := resolveParent(p, c.Path)
		if err != nil {
			return nil, err
		}

		if err := value.CanAssign(parent.node.base, last, value.Normalize(c.Value)); err != nil {
			return nil, fmt.Errorf("tracker: batch relink %q: %w: %w", c.Path.String(), ErrInvalidPath, err)
		}
	}

	n := p.node
	snapshot := value.ShallowCopy(n.base)

	for _, c := range changes {
		isolate(snapshot, c.Path)
	}

	draftTree := &tree{
		stack:     p.tree.stack,
		revocable: p.tree.revocable,
		rootPath:  n.rootPath,
		logger:    p.tree.logger,
		observer:  p.tree.observer,
		now:       p.tree.now,
	}
	draft := draftTree.newProxy(snapshot, n.accessPath.Clone(), n.parent)
	draftTree.root = draft

	carried := maps.Clone(n.children)
	for _, c := range changes {
		delete(carried, c.Path[0])
	}

	draft.node.children = carried

	for _, c := range changes {
		if err := Relink(p, c.Path, c.Value); err != nil {
			return nil, err
		}
	}

	p.tree.logger.Debug("tracker: batch relinked",
		slog.Int("changes", len(changes)),
		slog.Int("carried_children", len(carried)),
	)

	return draft, nil
}

// isolate replaces every intermediate container along path inside snapshot
// with a shallow copy, so in-place writes to the live containers do not show
// through.
func isolate(snapshot any, path value.Path) {
	cur := snapshot

	for _, key := range path[:len(path)-1] {
		child, ok := value.Lookup(cur, key)
		if !ok || !value.IsTrackable(child) {
			return
		}

		cp := value.ShallowCopy(child)
		if err := value.Assign(cur, key, cp); err != nil {
			return
		}

		cur = cp
	}
}
