package types

// Oracle decides whether a value of type actual may be used where expected
// is required.
type Oracle interface {
	Compatible(actual, expected Type) bool
}

// Structural is the default Oracle. Any is compatible in both directions,
// named types alias their underlying type, collections are covariant in
// their element, and code values compare by stack effect.
type Structural struct{}

var _ Oracle = Structural{}

func (o Structural) Compatible(actual, expected Type) bool {
	actual, expected = Underlying(actual), Underlying(expected)
	if actual == Any || expected == Any {
		return true
	}
	switch e := expected.(type) {
	case Base:
		a, ok := actual.(Base)
		return ok && a == e
	case Struct:
		a, ok := actual.(Struct)
		if !ok || len(a.Fields) != len(e.Fields) {
			return false
		}
		for i := range e.Fields {
			if a.Fields[i].Name != e.Fields[i].Name || !o.Compatible(a.Fields[i].Type, e.Fields[i].Type) {
				return false
			}
		}
		return true
	case List:
		a, ok := actual.(List)
		return ok && o.Compatible(a.Element, e.Element)
	case Set:
		a, ok := actual.(Set)
		return ok && o.Compatible(a.Element, e.Element)
	case Function:
		a, ok := actual.(Function)
		if !ok {
			return false
		}
		return o.EffectCompatible(a.Effect(), e.Effect())
	case Tuple, Script:
		ae, ok := EffectOf(actual)
		if !ok {
			return false
		}
		ee, _ := EffectOf(expected)
		return o.EffectCompatible(ae, ee)
	}
	return false
}

// EffectCompatible reports whether code with effect actual can run where
// effect expected is assumed: same arity, inputs contravariant, outputs
// covariant.
func (o Structural) EffectCompatible(actual, expected Effect) bool {
	if len(actual.Consumes) != len(expected.Consumes) || len(actual.Produces) != len(expected.Produces) {
		return false
	}
	for i := range actual.Consumes {
		if !o.Compatible(expected.Consumes[i], actual.Consumes[i]) {
			return false
		}
	}
	for i := range actual.Produces {
		if !o.Compatible(actual.Produces[i], expected.Produces[i]) {
			return false
		}
	}
	return true
}
