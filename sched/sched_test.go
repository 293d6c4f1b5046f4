package sched_test

import (
	"testing"

	"github.com/smasher164/sid/builtin"
	"github.com/smasher164/sid/check"
	"github.com/smasher164/sid/names"
	"github.com/smasher164/sid/parser"
	"github.com/smasher164/sid/sched"
	"github.com/smasher164/sid/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resolve(t *testing.T, src string) *value.Code {
	t.Helper()
	f, err := parser.ParseString("test.sid", src)
	require.NoError(t, err)
	code, err := names.NewResolver(check.New(nil)).Resolve(f, names.Universe(builtin.Std()).AddScope())
	require.NoError(t, err)
	return code
}

// substack returns the first sub-stack executed by src.
func substack(t *testing.T, src string) *value.Code {
	t.Helper()
	code := resolve(t, src)
	require.NotEmpty(t, code.Items)
	exec, ok := code.Items[0].(value.Exec)
	require.True(t, ok, "%T", code.Items[0])
	return exec.Code
}

func TestIndependentLiterals(t *testing.T) {
	g, err := sched.Analyze(substack(t, "(1 2 3 add)"))
	require.NoError(t, err)
	require.Len(t, g.Nodes, 4)
	assert.Equal(t, [][]int{{0, 1, 2}, {3}}, g.Levels)
	assert.Equal(t, []int{1, 2}, g.Nodes[3].Preds)
	assert.Equal(t, []sched.Slot{{Node: 1}, {Node: 2}}, g.Nodes[3].In)
	assert.Equal(t, []sched.Slot{{Node: 0}, {Node: 3}}, g.Outputs)
	assert.Zero(t, g.Inputs)

	assert.True(t, g.Independent(0, 1))
	assert.True(t, g.Independent(0, 3))
	assert.False(t, g.Independent(1, 3))
	assert.False(t, g.Independent(2, 2))

	assert.Contains(t, g.String(), "n3 call add in=[n1.0 n2.0] out=1 after=[1 2]")
	assert.Contains(t, g.String(), "levels=[[0 1 2] [3]]")
}

func TestImpureChain(t *testing.T) {
	g, err := sched.Analyze(substack(t, `("a" print "b" print)`))
	require.NoError(t, err)
	assert.Equal(t, []sched.Edge{
		{From: 0, To: 1, Kind: sched.DataEdge},
		{From: 2, To: 3, Kind: sched.DataEdge},
		{From: 1, To: 3, Kind: sched.EffectEdge},
	}, g.Edges)
	assert.Equal(t, [][]int{{0, 2}, {1}, {3}}, g.Levels)
	assert.True(t, g.Independent(0, 2))
	assert.True(t, g.Reaches(1, 3))
	assert.False(t, g.Independent(0, 3))
	assert.Empty(t, g.Outputs)
}

func TestExternalSlots(t *testing.T) {
	g, err := sched.Analyze(substack(t, "(add 1)"))
	require.NoError(t, err)
	assert.Equal(t, 2, g.Inputs)
	assert.Equal(t, []sched.Slot{{Node: sched.External, Index: 1}, {Node: sched.External, Index: 0}}, g.Nodes[0].In)
	assert.Empty(t, g.Nodes[0].Preds)
	assert.Equal(t, [][]int{{0, 1}}, g.Levels)
	assert.Equal(t, []sched.Slot{{Node: 0}, {Node: 1}}, g.Outputs)
	assert.Equal(t, "ext1", g.Nodes[0].In[0].String())
}

func TestNested(t *testing.T) {
	// a nested block is one node of its parent
	g, err := sched.Analyze(substack(t, "((1 2 add) 3 mul 4)"))
	require.NoError(t, err)
	require.Len(t, g.Nodes, 4)
	assert.Equal(t, [][]int{{0, 1, 3}, {2}}, g.Levels)
	assert.Equal(t, "exec (1 2 add)", g.Nodes[0].Label)
}

func TestTemplate(t *testing.T) {
	// a parameter is filled in before the block runs, so it is a source
	g, err := sched.Analyze(substack(t, "($1 2 add)"))
	require.NoError(t, err)
	assert.Zero(t, g.Inputs)
	assert.Equal(t, "param $1", g.Nodes[0].Label)
	assert.Equal(t, []sched.Slot{{Node: 0}, {Node: 1}}, g.Nodes[2].In)
	assert.Equal(t, [][]int{{0, 1}, {2}}, g.Levels)
}

func TestAnalyzeErrors(t *testing.T) {
	_, err := sched.Analyze(resolve(t, "1 2 add"))
	assert.ErrorIs(t, err, sched.ErrNotSubStack)

	unchecked := &value.Code{Kind: value.SubStackBlock, Items: []value.Item{value.Invoke{}}, Source: "(!)"}
	_, err = sched.Analyze(unchecked)
	assert.Error(t, err)
}

func TestDump(t *testing.T) {
	g, err := sched.Analyze(substack(t, "(1 2)"))
	require.NoError(t, err)
	assert.Contains(t, g.Dump(), "Nodes")
	assert.Contains(t, g.Dump(), "push 2")
}
