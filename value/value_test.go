package value

import (
	"errors"
	"testing"

	"github.com/smasher164/sid/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestString(t *testing.T) {
	person, err := NewStruct(Field{"name", String("Ada")}, Field{"age", Int(36)})
	require.NoError(t, err)
	set, err := NewSet(Char("a"), Char("b"))
	require.NoError(t, err)
	for _, tc := range []struct {
		v    Value
		want string
	}{
		{Bool(true), "true"},
		{Int(-3), "-3"},
		{Float(3), "3."},
		{Float(1.5), "1.5"},
		{Char("\n"), `'\n'`},
		{String(`say "hi"`), `"say \"hi\""`},
		{TypeValue{T: types.List{Element: types.Int}}, "int list"},
		{NewList(Int(1), Int(2)), "[1, 2]"},
		{set, "{'a', 'b'}"},
		{person, `{name: "Ada", age: 36}`},
	} {
		assert.Equal(t, tc.want, tc.v.String())
	}
}

func TestTypes(t *testing.T) {
	assert.Equal(t, types.List{Element: types.Int}, NewList(Int(1), Int(2)).Type())
	assert.Equal(t, types.List{Element: types.Any}, NewList(Int(1), String("x")).Type())
	assert.Equal(t, types.List{Element: types.Any}, NewList().Type())

	person, err := NewStruct(Field{"name", String("Ada")})
	require.NoError(t, err)
	assert.Equal(t, types.Struct{Fields: []types.Field{{Name: "name", Type: types.String}}}, person.Type())

	decl, err := NewStruct(Field{"message", TypeValue{T: types.String}})
	require.NoError(t, err)
	st, ok := StructType(decl)
	require.True(t, ok)
	assert.Equal(t, "{message: str}", st.String())
	_, ok = StructType(person)
	assert.False(t, ok)
}

func TestSet(t *testing.T) {
	s, err := NewSet(String("yes"), String("Yes"), String("y"))
	require.NoError(t, err)
	assert.Equal(t, 3, s.Len())
	assert.True(t, s.Contains(String("Yes")))
	assert.False(t, s.Contains(String("no")))
	assert.False(t, s.Contains(Char("y")))

	_, err = NewSet(Int(1), Int(2), Int(1))
	var dup *DuplicateError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "duplicate set element 1", err.Error())

	// structural members compare by value
	_, err = NewSet(NewList(Int(1)), NewList(Int(1)))
	assert.Error(t, err)

	a, err := NewSet(Int(1), Int(2))
	require.NoError(t, err)
	b, err := NewSet(Int(2), Int(1))
	require.NoError(t, err)
	assert.True(t, a.Equal(b))
	assert.True(t, Equal(a, b))
	assert.Equal(t, []Value{Int(2), Int(1)}, b.Items())
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(Int(1), Int(1)))
	assert.False(t, Equal(Int(1), Float(1)))
	assert.False(t, Equal(String("a"), Char("a")))
	assert.True(t, Equal(NewList(String("a")), NewList(String("a"))))

	code := &Code{Kind: SubStackBlock, Source: "(1)"}
	assert.True(t, Equal(SubStack{Code: code}, SubStack{Code: code}))
	assert.False(t, Equal(SubStack{Code: code}, SubStack{Code: &Code{Kind: SubStackBlock, Source: "(1)"}}))
}

func TestStructDuplicate(t *testing.T) {
	_, err := NewStruct(Field{"a", Int(1)}, Field{"a", Int(2)})
	assert.EqualError(t, err, `duplicate field "a"`)
}

func TestStack(t *testing.T) {
	st := NewStack(Int(1), Int(2), Int(3))
	v, err := st.Pop()
	require.NoError(t, err)
	assert.Equal(t, Int(3), v)

	vals, err := st.Peek(2)
	require.NoError(t, err)
	assert.Equal(t, []Value{Int(1), Int(2)}, vals)
	assert.Equal(t, 2, st.Len())

	_, err = st.PopN(3)
	assert.ErrorIs(t, err, ErrUnderflow)
	assert.Equal(t, 2, st.Len())

	vals, err = st.PopN(2)
	require.NoError(t, err)
	assert.Equal(t, []Value{Int(1), Int(2)}, vals)
	_, err = st.Pop()
	assert.ErrorIs(t, err, ErrUnderflow)

	st.Push(String("a"), Bool(false))
	assert.Equal(t, `["a" false]`, st.String())
}

func TestCaseMatches(t *testing.T) {
	o := types.Structural{}
	yes, err := NewSet(String("yes"), String("Yes"))
	require.NoError(t, err)
	mixed, err := NewSet(TypeValue{T: types.Int}, String("none"))
	require.NoError(t, err)

	assert.True(t, Case{Pattern: yes}.Matches(o, String("Yes")))
	assert.False(t, Case{Pattern: yes}.Matches(o, String("no")))
	assert.True(t, Case{Pattern: TypeValue{T: types.Any}}.Matches(o, String("no")))
	assert.True(t, Case{Pattern: TypeValue{T: types.Int}}.Matches(o, Int(4)))
	assert.False(t, Case{Pattern: TypeValue{T: types.Int}}.Matches(o, Float(4)))
	assert.True(t, Case{Pattern: mixed}.Matches(o, Int(7)))
	assert.True(t, Case{Pattern: mixed}.Matches(o, String("none")))
	assert.False(t, Case{Pattern: mixed}.Matches(o, String("some")))
}
