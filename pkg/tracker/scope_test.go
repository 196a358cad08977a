package tracker

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/statetracker/pkg/value"
)

func TestScope_Paths(t *testing.T) {
	t.Parallel()

	w := mustWrap(t, value.Obj(
		"a", value.Obj("a1", 1, "a2", 2),
		"b", value.Obj("b1", 1, "b2", 2),
	))

	s := Enter(w, "")
	mustAt(t, w, "a")
	mustAt(t, w, "a", "a1")
	mustAt(t, w, "a", "a2")

	assert.Equal(t, paths("a", "a", "a.a1", "a", "a.a2"), s.Paths())
	assert.Equal(t, paths("a.a1", "a.a2", "a"), s.Remarkable())
	require.NoError(t, s.Leave())
}

func TestScope_NestedScopesAreIsolated(t *testing.T) {
	t.Parallel()

	w := mustWrap(t, value.Obj(
		"a", value.Obj("a1", 1, "a2", 2),
		"b", value.Obj("b1", value.Obj("b11", 1, "b12", 2), "b2", 2),
	))

	outer := Enter(w, "")
	mustAt(t, w, "a")
	mustAt(t, w, "a", "a1")
	mustAt(t, w, "a", "a2")
	b1 := mustProxy(t, w, "b", "b1")

	inner := Enter(w, "")
	mustAt(t, b1, "b11")
	mustAt(t, b1, "b12")

	assert.Same(t, inner, Current(b1))
	assert.Equal(t, paths("b.b1.b11", "b.b1.b12"), inner.Paths())
	assert.Equal(t, paths("b.b1.b11", "b.b1.b12"), inner.Remarkable())
	require.NoError(t, inner.Leave())

	assert.Same(t, outer, Current(w))
	assert.Equal(t, paths("a", "a", "a.a1", "a", "a.a2", "b", "b.b1"), outer.Paths())
	assert.Equal(t, paths("a.a1", "a.a2", "a", "b.b1"), outer.Remarkable())
	require.NoError(t, outer.Leave())

	assert.Nil(t, Current(w))
}

func TestScope_NoActiveScopeLogsNothing(t *testing.T) {
	t.Parallel()

	w := mustWrap(t, value.Obj("a", value.Obj("a1", 1)))
	mustAt(t, w, "a", "a1")

	s := Enter(w, "")
	require.NoError(t, s.Leave())

	assert.Empty(t, s.Paths())
	assert.Nil(t, s.Remarkable())
}

func TestScope_PeekLogsNothing(t *testing.T) {
	t.Parallel()

	w := mustWrap(t, value.Obj("a", value.Obj("a1", value.Obj("a11", 1))))

	s := Enter(w, "")
	got, err := Peek(w, value.Path{"a", "a1", "a11"})
	require.NoError(t, err)
	require.NoError(t, s.Leave())

	assert.Equal(t, 1, got)
	assert.Empty(t, s.Paths())
}

func TestScope_Unbalanced(t *testing.T) {
	t.Parallel()

	w := mustWrap(t, value.Obj("a", 1))

	err := Leave(w)
	assert.True(t, errors.Is(err, ErrUnbalancedScope))

	first := Enter(w, "first")
	second := Enter(w, "second")

	err = first.Leave()
	assert.True(t, errors.Is(err, ErrUnbalancedScope))
	assert.False(t, first.Closed())
	assert.Equal(t, 2, Stack(w).Depth())

	require.NoError(t, second.Leave())
	require.NoError(t, Leave(w))

	assert.True(t, first.Closed())
	assert.True(t, second.Closed())
	assert.Zero(t, Stack(w).Depth())
}

func TestScope_Labels(t *testing.T) {
	t.Parallel()

	stack := NewScopeStack(nil, "__view_")
	w := mustWrap(t, value.Obj("a", 1), WithStack(stack))

	named := Enter(w, "level1")
	generated := Enter(w, "")

	assert.Equal(t, "level1", named.ID())
	assert.True(t, strings.HasPrefix(generated.ID(), "__view_"))
	assert.NotEqual(t, generated.ID(), Enter(w, "").ID())
	assert.Same(t, w, generated.Owner())

	d := mustWrap(t, value.Obj())
	assert.True(t, strings.HasPrefix(Enter(d, "").ID(), defaultLabelPrefix))
}

func TestBackwardAccess_SameTreeIsNotBackward(t *testing.T) {
	t.Parallel()

	w := mustWrap(t, value.Obj("promotionInfo", value.Obj(
		"header", value.Obj("presellDeposit", value.Obj(), "price", 3, "selected", false),
	)))

	level1 := Enter(w, "level1")
	promotionInfo, err := Peek(w, value.Path{"promotionInfo"})
	require.NoError(t, err)
	header := mustProxy(t, promotionInfo.(*Proxy), "header")

	level2 := Enter(w, "level2")
	assert.Equal(t, 3, mustAt(t, header, "price"))
	require.NoError(t, level2.Leave())
	require.NoError(t, level1.Leave())

	assert.Equal(t, paths("promotionInfo.header"), level1.Paths())
	assert.Equal(t, paths("promotionInfo.header.price"), level2.Paths())
	assert.Empty(t, level2.Backward())
	assert.Empty(t, Info(w).PropProperties)
}

func TestBackwardAccess_ForeignTree(t *testing.T) {
	t.Parallel()

	stack := NewScopeStack(nil, "")
	outer := mustWrap(t, value.Obj("title", "cart"), WithStack(stack))
	inner := mustWrap(t, value.Obj("header", value.Obj(
		"presellDeposit", value.Obj("deposit", 1),
		"price", 3,
	)), WithStack(stack))

	header := mustProxy(t, inner, "header")

	s := Enter(outer, "view")
	price, err := header.Get("price")
	require.NoError(t, err)
	require.NoError(t, s.Leave())

	assert.Equal(t, 3, price)
	assert.Empty(t, s.Paths())

	props := Info(outer).PropProperties
	require.Len(t, props, 1)
	assert.Equal(t, value.Path{"header", "price"}, props[0].Path)
	assert.Same(t, inner, props[0].Source)

	backward := s.Backward()
	require.Len(t, backward, 1)
	assert.Equal(t, props[0].Path, backward[0].Path)
}

func TestBackwardAccess_StaleWrapperReadsLiveValue(t *testing.T) {
	t.Parallel()

	stack := NewScopeStack(nil, "")
	outer := mustWrap(t, value.Obj(), WithStack(stack))
	inner := mustWrap(t, value.Obj("promotionInfo", value.Obj(
		"header", value.Obj("presellDeposit", value.Obj(), "price", 3, "selected", false),
	)), WithStack(stack))

	stale := mustProxy(t, inner, "promotionInfo", "header")

	require.NoError(t, Relink(inner, value.Path{"promotionInfo"}, value.Obj(
		"header", value.Obj(
			"presellDeposit", value.Obj("deposit", 2, "deduction", 3),
			"price", 6,
			"selected", true,
		),
	)))

	s := Enter(outer, "level2")

	price, err := stale.Get("price")
	require.NoError(t, err)
	assert.Equal(t, 6, price)

	selected, err := stale.Get("selected")
	require.NoError(t, err)
	assert.Equal(t, true, selected)

	deposit, err := stale.Get("presellDeposit")
	require.NoError(t, err)
	depositProxy, ok := deposit.(*Proxy)
	require.True(t, ok)

	require.NoError(t, s.Leave())

	live, err := Peek(inner, value.Path{"promotionInfo", "header", "presellDeposit"})
	require.NoError(t, err)
	assert.Same(t, live, depositProxy)
	assert.Equal(t, 2, mustAt(t, depositProxy, "deposit"))

	assert.Len(t, Info(outer).PropProperties, 3)
	assert.Equal(t, paths(
		"promotionInfo.header.price",
		"promotionInfo.header.selected",
		"promotionInfo.header.presellDeposit",
	), backwardPaths(s.Backward()))
}

func TestBackwardAccess_AccessPathPrefix(t *testing.T) {
	t.Parallel()

	stack := NewScopeStack(nil, "")
	outer := mustWrap(t, value.Obj(), WithStack(stack))
	inner := mustWrap(t, value.Obj("a", 1),
		WithStack(stack),
		WithAccessPath(value.Path{"models", "cart"}),
	)

	s := Enter(outer, "")
	got, err := inner.Get("a")
	require.NoError(t, err)
	require.NoError(t, s.Leave())

	assert.Equal(t, 1, got)
	assert.Equal(t, paths("models.cart.a"), backwardPaths(s.Backward()))
}

func backwardPaths(bs []BackwardAccess) []value.Path {
	out := make([]value.Path, len(bs))
	for i, b := range bs {
		out[i] = b.Path
	}

	return out
}

func TestRemarkable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []value.Path
		want []value.Path
	}{
		{"empty", nil, nil},
		{"single", paths("a"), paths("a")},
		{"parent walk collapses", paths("a", "a.a1"), paths("a.a1")},
		{"repeat read counts", paths("a", "a", "a.a1", "a", "a.a2"), paths("a.a1", "a.a2", "a")},
		{
			"siblings keep first seen order",
			paths("a", "a", "a.a1", "a", "a.a2", "b", "b.b1"),
			paths("a.a1", "a.a2", "a", "b.b1"),
		},
		{"duplicates collapse", paths("a.b", "a.b", "a.b"), paths("a.b")},
		{"non adjacent extension", paths("a", "b", "a.x"), paths("a.x", "a", "b")},
		{"array walk", paths("list", "list.length", "list.0", "list.0.id"), paths("list.length", "list.0.id")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, remarkable(tt.in))
		})
	}
}

func TestScope_Invalidated(t *testing.T) {
	t.Parallel()

	w := mustWrap(t, value.Obj(
		"a", value.Obj("a1", 1, "a2", 2),
		"b", value.Obj("b1", 1),
	))

	s := Enter(w, "")
	mustAt(t, w, "a", "a1")
	mustAt(t, w, "b", "b1")
	require.NoError(t, s.Leave())

	assert.Equal(t, paths("a.a1"), s.Invalidated(paths("a")))
	assert.Equal(t, paths("b.b1"), s.Invalidated(paths("b.b1.x")))
	assert.Nil(t, s.Invalidated(paths("a.a2")))
}
