package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/statetracker/pkg/tracker"
	"github.com/tonimelisma/statetracker/pkg/value"
)

func TestParseChange(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		arg     string
		path    value.Path
		want    string
		wantErr bool
	}{
		{"number", "cart.total=5", value.Path{"cart", "total"}, "5", false},
		{"string", `user.name="Bo"`, value.Path{"user", "name"}, `"Bo"`, false},
		{"object", `user={"name":"Bo","age":3}`, value.Path{"user"}, `{"name":"Bo","age":3}`, false},
		{"value with equals", `note="a=b"`, value.Path{"note"}, `"a=b"`, false},
		{"missing equals", "cart.total", nil, "", true},
		{"empty path", "=1", nil, "", true},
		{"bare word", "user.name=Bo", nil, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c, err := parseChange(tt.arg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.path, c.Path)
			assert.Equal(t, tt.want, formatValue(c.Value))
		})
	}
}

func TestBatchRelink_NestedChange(t *testing.T) {
	t.Parallel()

	root, err := tracker.Wrap(value.Obj(
		"user", value.Obj("name", "Ada"),
		"cart", value.Obj("total", 3),
	))
	require.NoError(t, err)

	report, err := batchRelink(root,
		[]value.Path{{"user"}, {"cart", "total"}},
		[]tracker.Change{{Path: value.Path{"cart", "total"}, Value: 5}},
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"cart.total"}, report.Changed)
	assert.Equal(t, []relinkRow{
		{Path: "user", Invalidated: false, Identity: identityKept, Before: `{"name":"Ada"}`, After: `{"name":"Ada"}`},
		{Path: "cart.total", Invalidated: true, Identity: identityPrimitive, Before: "3", After: "5"},
	}, report.Rows)
}

func TestBatchRelink_ReplacedContainer(t *testing.T) {
	t.Parallel()

	root, err := tracker.Wrap(value.Obj("user", value.Obj("name", "Ada")))
	require.NoError(t, err)

	report, err := batchRelink(root,
		[]value.Path{{"user"}},
		[]tracker.Change{{Path: value.Path{"user"}, Value: value.Obj("name", "Bo")}},
	)
	require.NoError(t, err)

	require.Len(t, report.Rows, 1)
	assert.Equal(t, relinkRow{
		Path: "user", Invalidated: true, Identity: identityReplaced,
		Before: `{"name":"Ada"}`, After: `{"name":"Bo"}`,
	}, report.Rows[0])
}

func TestBatchRelink_InvalidChangeWritesNothing(t *testing.T) {
	t.Parallel()

	root, err := tracker.Wrap(value.Obj("a", 1, "c", 3))
	require.NoError(t, err)

	_, err = batchRelink(root, nil, []tracker.Change{
		{Path: value.Path{"a"}, Value: 2},
		{Path: value.Path{"c", "x"}, Value: 2},
	})
	require.ErrorIs(t, err, tracker.ErrInvalidPath)

	got, err := tracker.Peek(root, value.Path{"a"})
	require.NoError(t, err)
	assert.Equal(t, 1, got)
}

func TestRelinkCmd_JSON(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	doc := writeDoc(t, dir, "state.json", cartDoc)

	out, err := runCLI(t, dir, "--json", "relink", doc,
		"--read", "cart.total",
		"--read", "user.name",
		"--set", "cart.total=4",
	)
	require.NoError(t, err)

	var got relinkReport
	require.NoError(t, json.Unmarshal([]byte(out), &got))

	assert.Equal(t, []string{"cart.total"}, got.Changed)
	require.Len(t, got.Rows, 2)
	assert.Equal(t, "cart.total", got.Rows[0].Path)
	assert.True(t, got.Rows[0].Invalidated)
	assert.Equal(t, "3", got.Rows[0].Before)
	assert.Equal(t, "4", got.Rows[0].After)
	assert.Equal(t, "user.name", got.Rows[1].Path)
	assert.False(t, got.Rows[1].Invalidated)
}

func TestRelinkCmd_Table(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	doc := writeDoc(t, dir, "state.json", cartDoc)

	out, err := runCLI(t, dir, "relink", doc, "--read", "user", "--set", `user={"name":"Bo"}`)
	require.NoError(t, err)

	assert.Contains(t, out, "PATH  INVALIDATED  IDENTITY  BEFORE")
	assert.Contains(t, out, "replaced")
}

func TestRelinkCmd_RequiresSet(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	doc := writeDoc(t, dir, "state.json", cartDoc)

	_, err := runCLI(t, dir, "relink", doc, "--read", "user")
	assert.Error(t, err)
}
