package fsx

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTree() *Tree {
	return TestFS([][2]string{
		{"a/b/c.sid", "1 2 add"},
		{"a/d/e.txt", "goodbye"},
		{"a/d/f.sid", "\"hi\" print"},
		{"g.sid", "true"},
	})
}

func TestReadFile(t *testing.T) {
	tfs := testTree()
	data, err := fs.ReadFile(tfs, "a/b/c.sid")
	require.NoError(t, err)
	assert.Equal(t, "1 2 add", string(data))

	// each open reads from the start
	data, err = fs.ReadFile(tfs, "a/b/c.sid")
	require.NoError(t, err)
	assert.Equal(t, "1 2 add", string(data))

	_, err = fs.ReadFile(tfs, "a/b/missing.sid")
	assert.ErrorIs(t, err, fs.ErrNotExist)
	_, err = tfs.Open("/abs")
	assert.ErrorIs(t, err, fs.ErrInvalid)
	_, err = fs.ReadFile(tfs, "g.sid/x")
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestReadDir(t *testing.T) {
	entries, err := fs.ReadDir(testTree(), "a/d")
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{"e.txt", "f.sid"}, names)

	info, err := fs.Stat(testTree(), "a")
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestFilesWithExt(t *testing.T) {
	names, err := FilesWithExt(testTree(), ".", ".sid")
	require.NoError(t, err)
	assert.Equal(t, []string{"a/b/c.sid", "a/d/f.sid", "g.sid"}, names)

	names, err = FilesWithExt(testTree(), "g.sid", ".sid")
	require.NoError(t, err)
	assert.Equal(t, []string{"g.sid"}, names)

	_, err = FilesWithExt(testTree(), "nope", ".sid")
	assert.Error(t, err)
}
