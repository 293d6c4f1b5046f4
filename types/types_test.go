package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func effect(consumes []Type, produces ...Type) Effect {
	return Effect{Consumes: consumes, Produces: produces}
}

func TestString(t *testing.T) {
	for _, tc := range []struct {
		t    Type
		want string
	}{
		{Int, "int"},
		{String, "str"},
		{List{Element: Int}, "int list"},
		{Set{Element: List{Element: Char}}, "char list set"},
		{Struct{Fields: []Field{{"name", String}, {"age", Int}}}, "{name: str, age: int}"},
		{Unit, "{}"},
		{Named{Name: "Answer", Type: Bool}, "Answer"},
		{Script{Effect: Effect{Consumes: []Type{String}, Impure: true}}, "<str -- !>"},
		{Tuple{Effect: effect([]Type{Int, Float}, Bool)}, "(float int -- bool)"},
		{Function{Args: Struct{Fields: []Field{{"message", String}}}, Returns: Unit}, "fn {message: str} -> {}"},
	} {
		assert.Equal(t, tc.want, tc.t.String())
	}
}

func TestFunctionEffect(t *testing.T) {
	fn := Function{
		Args:    Struct{Fields: []Field{{"a", Int}, {"b", String}}},
		Returns: Struct{Fields: []Field{{"c", Bool}}},
	}
	e, ok := EffectOf(fn)
	assert.True(t, ok)
	// the last argument is on top
	assert.Equal(t, []Type{String, Int}, e.Consumes)
	assert.Equal(t, []Type{Bool}, e.Produces)

	_, ok = EffectOf(Int)
	assert.False(t, ok)
	_, ok = EffectOf(Named{Name: "F", Type: fn})
	assert.True(t, ok)
}

func TestIdenticalAndJoin(t *testing.T) {
	answer := Named{Name: "Answer", Type: Bool}
	assert.True(t, Identical(answer, Bool))
	assert.True(t, Identical(List{Element: Int}, List{Element: Int}))
	assert.False(t, Identical(List{Element: Int}, Set{Element: Int}))
	assert.False(t, Identical(Struct{Fields: []Field{{"a", Int}}}, Struct{Fields: []Field{{"b", Int}}}))
	assert.True(t, Identical(Script{Effect: effect([]Type{Int}, Int)}, Script{Effect: effect([]Type{Int}, Int)}))

	assert.Equal(t, Int, Join(Int, Int))
	assert.Equal(t, Any, Join(Int, String))
	assert.Equal(t, Any, JoinAll(nil))
	assert.Equal(t, Float, JoinAll([]Type{Float, Float}))
	assert.Equal(t, Any, JoinAll([]Type{Float, Int, Float}))
}

func TestStructural(t *testing.T) {
	var o Oracle = Structural{}
	person := Struct{Fields: []Field{{"name", String}, {"age", Int}}}
	for _, tc := range []struct {
		actual, expected Type
		want             bool
	}{
		{Int, Int, true},
		{Int, Float, false},
		{Int, Any, true},
		{Any, String, true},
		{Named{Name: "Age", Type: Int}, Int, true},
		{Int, Named{Name: "Age", Type: Int}, true},
		{List{Element: Int}, List{Element: Any}, true},
		{List{Element: Any}, List{Element: Int}, true},
		{List{Element: Int}, List{Element: String}, false},
		{Set{Element: String}, List{Element: String}, false},
		{person, person, true},
		{person, Struct{Fields: []Field{{"age", Int}, {"name", String}}}, false},
		{person, Struct{Fields: []Field{{"name", String}}}, false},
		{Struct{Fields: []Field{{"name", Any}, {"age", Int}}}, person, true},
		{Script{Effect: effect([]Type{Any})}, Script{Effect: effect([]Type{String})}, true},
		{Script{Effect: effect([]Type{Int})}, Script{Effect: effect([]Type{String})}, false},
		{Script{Effect: effect([]Type{Int})}, Script{Effect: effect(nil)}, false},
		{Tuple{Effect: effect(nil, Int)}, Script{Effect: effect(nil, Any)}, true},
		{Function{Args: Struct{Fields: []Field{{"x", Int}}}, Returns: Unit}, Script{Effect: effect([]Type{Int})}, true},
		{Script{Effect: effect([]Type{Int})}, Function{Args: Struct{Fields: []Field{{"x", Int}}}, Returns: Unit}, false},
		{TypeT, TypeT, true},
		{TypeT, Int, false},
	} {
		assert.Equal(t, tc.want, o.Compatible(tc.actual, tc.expected), "%s compatible with %s", tc.actual, tc.expected)
	}
}
