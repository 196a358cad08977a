package statefile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/statetracker/pkg/value"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func get(t *testing.T, v any, keys ...string) any {
	t.Helper()

	cur := v
	for _, k := range keys {
		next, ok := value.Lookup(cur, k)
		require.True(t, ok, "missing key %q", k)

		cur = next
	}

	return cur
}

func TestFormatOf(t *testing.T) {
	t.Parallel()

	tests := map[string]Format{
		"state.json": FormatJSON,
		"state.JSON": FormatJSON,
		"a.toml":     FormatTOML,
		"a.yaml":     FormatYAML,
		"a.yml":      FormatYAML,
	}

	for name, want := range tests {
		got, err := FormatOf(name)
		require.NoError(t, err)
		assert.Equal(t, want, got, name)
	}

	_, err := FormatOf("state.xml")
	assert.True(t, errors.Is(err, ErrUnknownFormat))
}

func TestLoad_JSON(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "state.json", `{"goods": {"listData": [{"id": "1"}]}, "title": "cart"}`)

	doc, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"goods", "title"}, value.OwnKeys(doc))
	assert.Equal(t, "1", get(t, doc, "goods", "listData", "0", "id"))
}

func TestLoad_TOML(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "state.toml", `
title = "cart"

[goods]
count = 2
tags = ["a", "b"]

[[goods.items]]
id = 1
`)

	doc, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"goods", "title"}, value.OwnKeys(doc))
	assert.Equal(t, int64(2), get(t, doc, "goods", "count"))
	assert.Equal(t, "b", get(t, doc, "goods", "tags", "1"))
	assert.Equal(t, int64(1), get(t, doc, "goods", "items", "0", "id"))
}

func TestLoad_YAMLKeepsOrder(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "state.yaml", `
zeta: 1
alpha:
  list:
    - id: 1
    - &shared {name: x}
  again: *shared
  flag: true
  none: null
`)

	doc, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"zeta", "alpha"}, value.OwnKeys(doc))
	assert.Equal(t, []string{"list", "again", "flag", "none"}, value.OwnKeys(get(t, doc, "alpha")))
	assert.Equal(t, 1, get(t, doc, "alpha", "list", "0", "id"))
	assert.Equal(t, "x", get(t, doc, "alpha", "again", "name"))
	assert.Equal(t, true, get(t, doc, "alpha", "flag"))
	assert.Nil(t, get(t, doc, "alpha", "none"))
}

func TestLoad_NormalizesKeys(t *testing.T) {
	t.Parallel()

	decomposed := "cafe\u0301"
	composed := "caf\u00e9"

	for _, tt := range []struct {
		name, content string
	}{
		{"state.json", `{"` + decomposed + `": 1}`},
		{"state.yaml", decomposed + ": 1\n"},
		{"state.toml", `"` + decomposed + `" = 1` + "\n"},
	} {
		doc, err := Load(writeFile(t, tt.name, tt.content))
		require.NoError(t, err, tt.name)
		assert.Equal(t, []string{composed}, value.OwnKeys(doc), tt.name)
	}

	assert.Equal(t, value.Path{"a", composed}, NormalizePath(value.Path{"a", decomposed}))
}

func TestDecode_RootMustBeContainer(t *testing.T) {
	t.Parallel()

	_, err := Decode([]byte(`42`), FormatJSON)
	assert.True(t, errors.Is(err, ErrNotContainer))

	_, err = Decode([]byte(``), FormatYAML)
	assert.True(t, errors.Is(err, ErrNotContainer))

	doc, err := Decode([]byte(``), FormatTOML)
	require.NoError(t, err)
	assert.True(t, value.IsObject(doc))
}

func TestDecode_Malformed(t *testing.T) {
	t.Parallel()

	for format, data := range map[Format]string{
		FormatJSON: `{"a": `,
		FormatTOML: `a = `,
		FormatYAML: "a: [1, 2",
	} {
		_, err := Decode([]byte(data), format)
		assert.Error(t, err, string(format))
	}

	_, err := Decode([]byte(`{}`), Format("ini"))
	assert.True(t, errors.Is(err, ErrUnknownFormat))
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
