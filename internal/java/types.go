package java

import (
	"strings"

	"github.com/jward/symwalk/internal/oracle"
)

// jtype is a resolved Java type. A zero jtype is unresolved. Class types
// declared in the project or in the bundled library stubs carry their
// class; other reference types are known by name only.
type jtype struct {
	name  string
	class *classSym
	args  string
	dims  int
	// static marks a type name used as an expression, e.g. the receiver
	// of Math.max.
	static bool
}

var (
	nullType   = jtype{name: "null"}
	intType    = jtype{name: "int"}
	boolType   = jtype{name: "boolean"}
	longType   = jtype{name: "long"}
	floatType  = jtype{name: "float"}
	doubleType = jtype{name: "double"}
	charType   = jtype{name: "char"}
	voidType   = jtype{name: "void"}
)

var primitives = map[string]bool{
	"byte": true, "short": true, "char": true, "int": true, "long": true,
	"float": true, "double": true, "boolean": true, "void": true,
}

// numeric rank for widening and binary promotion.
var numericRank = map[string]int{
	"byte": 1, "short": 2, "char": 2, "int": 3, "long": 4, "float": 5, "double": 6,
}

var boxes = map[string]string{
	"java.lang.Byte": "byte", "java.lang.Short": "short", "java.lang.Character": "char",
	"java.lang.Integer": "int", "java.lang.Long": "long", "java.lang.Float": "float",
	"java.lang.Double": "double", "java.lang.Boolean": "boolean",
}

func (t jtype) resolved() bool { return t.name != "" || t.class != nil }

func (t jtype) primitive() bool { return t.class == nil && t.dims == 0 && primitives[t.name] }

func (t jtype) isNull() bool { return t.class == nil && t.name == "null" }

// qualified is the fully qualified base name, without type arguments or
// array dimensions.
func (t jtype) qualified() string {
	if t.class != nil {
		return t.class.fqn
	}
	return t.name
}

func (t jtype) isString() bool {
	return t.dims == 0 && t.qualified() == "java.lang.String"
}

// elem returns the element type of an array type.
func (t jtype) elem() jtype {
	if t.dims == 0 {
		return jtype{}
	}
	t.dims--
	t.static = false
	return t
}

// String is the display form: primitives and java.lang types by simple
// name, everything else fully qualified.
func (t jtype) String() string {
	if !t.resolved() {
		return ""
	}
	var b strings.Builder
	if t.class != nil {
		b.WriteString(t.class.typeName())
	} else {
		b.WriteString(t.name)
	}
	b.WriteString(t.args)
	for range t.dims {
		b.WriteString("[]")
	}
	return b.String()
}

// short is the parameter form used in method display strings.
func (t jtype) short() string {
	if !t.resolved() {
		return "?"
	}
	var b strings.Builder
	if t.class != nil {
		b.WriteString(t.class.nestedName())
	} else {
		name := t.name
		if i := strings.LastIndexByte(name, '.'); i >= 0 {
			name = name[i+1:]
		}
		b.WriteString(name)
	}
	for range t.dims {
		b.WriteString("[]")
	}
	return b.String()
}

func (t jtype) ref() oracle.TypeRef {
	if !t.resolved() || t.isNull() {
		return oracle.Unresolved
	}
	t.static = false
	return oracle.TypeNamed(t.String())
}

// unboxed returns the primitive a boxed type unwraps to.
func (t jtype) unboxed() jtype {
	if t.primitive() {
		return t
	}
	if p, ok := boxes[t.qualified()]; ok && t.dims == 0 {
		return jtype{name: p}
	}
	return jtype{}
}

// promote applies binary numeric promotion.
func promote(a, b jtype) jtype {
	a, b = a.unboxed(), b.unboxed()
	ra, rb := numericRank[a.name], numericRank[b.name]
	if ra == 0 || rb == 0 {
		return jtype{}
	}
	return jtype{name: promoted[max(ra, rb, numericRank["int"])]}
}

var promoted = [...]string{3: "int", 4: "long", 5: "float", 6: "double"}

// widens reports whether primitive from converts to primitive to without a
// cast.
func widens(from, to string) bool {
	if from == to {
		return true
	}
	if from == "boolean" || to == "boolean" || to == "char" {
		return false
	}
	if from == "char" {
		return numericRank[to] >= numericRank["int"]
	}
	rf, rt := numericRank[from], numericRank[to]
	return rf > 0 && rt > 0 && rf < rt
}

// convertible is method invocation conversion of an argument to a
// parameter type. Boxing and unboxing apply only when boxing is set.
// Unknown types on either side are assumed compatible.
func convertible(arg, param jtype, boxing bool) bool {
	if !arg.resolved() || !param.resolved() {
		return true
	}
	if arg.isNull() {
		return !param.primitive()
	}
	if arg.dims != param.dims {
		return param.dims == 0 && param.qualified() == "java.lang.Object" && arg.dims > 0
	}
	if arg.dims > 0 {
		ae, pe := arg.elem(), param.elem()
		if ae.primitive() || pe.primitive() {
			return ae.qualified() == pe.qualified()
		}
		return convertible(ae, pe, false)
	}
	switch {
	case arg.primitive() && param.primitive():
		return widens(arg.name, param.name)
	case arg.primitive():
		if !boxing {
			return false
		}
		if box, ok := boxes[param.qualified()]; ok {
			return box == arg.name
		}
		return param.qualified() == "java.lang.Object" || param.class == nil
	case param.primitive():
		u := arg.unboxed()
		return boxing && u.resolved() && widens(u.name, param.name)
	}
	if param.qualified() == "java.lang.Object" || arg.qualified() == param.qualified() {
		return true
	}
	if arg.class == nil || param.class == nil {
		return true
	}
	return arg.class.subtypeOf(param.class)
}

// exact reports whether arg and param are the same known type.
func exact(arg, param jtype) bool {
	return arg.resolved() && !arg.isNull() && arg.qualified() == param.qualified() && arg.dims == param.dims
}
