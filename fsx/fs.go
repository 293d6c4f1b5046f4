// Package fsx holds an in-memory file tree and helpers for locating source
// files in an fs.FS.
package fsx

import (
	"errors"
	"io"
	"io/fs"
	"path"
	"strings"
	"time"

	"golang.org/x/exp/slices"
)

var (
	_ fs.FS          = (*Tree)(nil)
	_ fs.ReadDirFile = (*openDir)(nil)
	_ fs.File        = (*openFile)(nil)
	_ fs.DirEntry    = (*node)(nil)
	_ fs.FileInfo    = (*node)(nil)
)

// Tree is a read-only file system held in memory.
type Tree struct {
	root *node
}

type node struct {
	name     string
	mode     fs.FileMode
	data     []byte
	children []*node
}

// TestFS builds a Tree from {path, contents} pairs. Directories are created
// as needed.
func TestFS(files [][2]string) *Tree {
	t := &Tree{root: &node{name: ".", mode: fs.ModeDir | 0o555}}
	for _, file := range files {
		cur := t.root
		parts := strings.Split(file[0], "/")
		for i, part := range parts {
			j := slices.IndexFunc(cur.children, func(n *node) bool { return n.name == part })
			if i == len(parts)-1 {
				f := &node{name: part, mode: 0o444, data: []byte(file[1])}
				if j >= 0 {
					cur.children[j] = f
				} else {
					cur.children = append(cur.children, f)
				}
				break
			}
			if j < 0 {
				cur.children = append(cur.children, &node{name: part, mode: fs.ModeDir | 0o555})
				j = len(cur.children) - 1
			}
			cur = cur.children[j]
		}
	}
	t.root.sort()
	return t
}

func (n *node) sort() {
	slices.SortFunc(n.children, func(a, b *node) int { return strings.Compare(a.name, b.name) })
	for _, c := range n.children {
		c.sort()
	}
}

func (t *Tree) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}
	cur := t.root
	if name != "." {
		for _, elem := range strings.Split(name, "/") {
			i := slices.IndexFunc(cur.children, func(n *node) bool { return n.name == elem })
			if i < 0 || !cur.IsDir() {
				return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
			}
			cur = cur.children[i]
		}
	}
	if cur.IsDir() {
		return &openDir{node: cur}, nil
	}
	return &openFile{node: cur}, nil
}

func (n *node) Info() (fs.FileInfo, error) { return n, nil }
func (n *node) Type() fs.FileMode          { return n.mode.Type() }
func (n *node) IsDir() bool                { return n.mode.IsDir() }
func (n *node) ModTime() time.Time         { return time.Time{} }
func (n *node) Mode() fs.FileMode          { return n.mode }
func (n *node) Name() string               { return n.name }
func (n *node) Size() int64                { return int64(len(n.data)) }
func (n *node) Sys() any                   { return nil }

type openFile struct {
	*node
	offset int
}

func (f *openFile) Stat() (fs.FileInfo, error) { return f.node, nil }
func (f *openFile) Close() error               { return nil }

func (f *openFile) Read(p []byte) (int, error) {
	if f.offset >= len(f.data) {
		return 0, io.EOF
	}
	n := copy(p, f.data[f.offset:])
	f.offset += n
	return n, nil
}

type openDir struct {
	*node
	offset int
}

func (d *openDir) Stat() (fs.FileInfo, error) { return d.node, nil }
func (d *openDir) Close() error               { return nil }

func (d *openDir) Read([]byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: d.name, Err: errors.New("is a directory")}
}

func (d *openDir) ReadDir(count int) ([]fs.DirEntry, error) {
	n := len(d.children) - d.offset
	if n == 0 && count > 0 {
		return nil, io.EOF
	}
	if count > 0 && n > count {
		n = count
	}
	list := make([]fs.DirEntry, n)
	for i := range list {
		list[i] = d.children[d.offset+i]
	}
	d.offset += n
	return list, nil
}

// FilesWithExt returns the regular files under root whose names end in
// ext, in lexical order. A root that is itself such a file is returned
// alone.
func FilesWithExt(fsys fs.FS, root, ext string) ([]string, error) {
	var names []string
	err := fs.WalkDir(fsys, root, func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() && path.Ext(name) == ext {
			names = append(names, name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}
