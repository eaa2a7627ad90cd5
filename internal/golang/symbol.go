package golang

import (
	"go/types"
	"strings"
	"sync"

	"github.com/jward/symwalk/internal/oracle"
)

// symbol wraps a types.Object, or a package for the synthetic class that
// holds package-level functions and variables.
type symbol struct {
	obj     types.Object
	pkg     *types.Package
	kind    oracle.SymbolKind
	display string
}

func (s *symbol) Name() string {
	if s.obj == nil {
		return s.pkg.Name()
	}
	return s.obj.Name()
}

func (s *symbol) Kind() oracle.SymbolKind { return s.kind }

func (s *symbol) String() string { return s.display }

// symbolTable interns symbols so that one object always maps to the same
// handle across every document of a project.
type symbolTable struct {
	mu   sync.Mutex
	objs map[types.Object]*symbol
	pkgs map[*types.Package]*symbol
}

func newSymbolTable() *symbolTable {
	return &symbolTable{
		objs: make(map[types.Object]*symbol),
		pkgs: make(map[*types.Package]*symbol),
	}
}

func (t *symbolTable) object(obj types.Object) *symbol {
	if obj == nil {
		return nil
	}
	if fn, ok := obj.(*types.Func); ok {
		obj = fn.Origin()
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.objs[obj]
	if !ok {
		s = &symbol{obj: obj, kind: kindOf(obj), display: display(obj)}
		t.objs[obj] = s
	}
	return s
}

func (t *symbolTable) pkg(p *types.Package) *symbol {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.pkgs[p]
	if !ok {
		s = &symbol{pkg: p, kind: oracle.KindOther, display: p.Path()}
		t.pkgs[p] = s
	}
	return s
}

func kindOf(obj types.Object) oracle.SymbolKind {
	switch o := obj.(type) {
	case *types.Func:
		return oracle.KindMethod
	case *types.TypeName:
		return oracle.KindType
	case *types.Builtin:
		return oracle.KindBuiltin
	case *types.Var:
		switch {
		case o.IsField():
			return oracle.KindField
		case o.Pkg() != nil && o.Parent() == o.Pkg().Scope():
			return oracle.KindField
		}
		return oracle.KindLocal
	}
	return oracle.KindOther
}

func qualifier(p *types.Package) string { return p.Name() }

func typeString(t types.Type) string { return types.TypeString(t, qualifier) }

// display renders obj as "pkg.Type.Method(int, string)", "pkg.Func()",
// "pkg.Type" or a bare name for locals and universe objects.
func display(obj types.Object) string {
	switch o := obj.(type) {
	case *types.Func:
		sig, _ := o.Type().(*types.Signature)
		var b strings.Builder
		switch {
		case sig != nil && sig.Recv() != nil:
			b.WriteString(receiverName(sig.Recv().Type()))
			b.WriteByte('.')
		case o.Pkg() != nil:
			b.WriteString(o.Pkg().Name())
			b.WriteByte('.')
		}
		b.WriteString(o.Name())
		b.WriteByte('(')
		if sig != nil {
			b.WriteString(paramList(sig))
		}
		b.WriteByte(')')
		return b.String()
	case *types.TypeName:
		if o.Pkg() == nil {
			return o.Name()
		}
		return o.Pkg().Name() + "." + o.Name()
	case *types.Var:
		if o.Pkg() != nil && o.Parent() == o.Pkg().Scope() {
			return o.Pkg().Name() + "." + o.Name()
		}
	}
	return obj.Name()
}

func receiverName(t types.Type) string {
	if p, ok := t.(*types.Pointer); ok {
		t = p.Elem()
	}
	if n, ok := t.(*types.Named); ok {
		obj := n.Obj()
		if obj.Pkg() == nil {
			return obj.Name()
		}
		return obj.Pkg().Name() + "." + obj.Name()
	}
	return typeString(t)
}

func paramList(sig *types.Signature) string {
	params := sig.Params()
	parts := make([]string, params.Len())
	for i := range params.Len() {
		parts[i] = paramType(sig, i)
	}
	return strings.Join(parts, ", ")
}

// paramType renders the i-th parameter type, using "...T" for the variadic
// tail.
func paramType(sig *types.Signature, i int) string {
	t := sig.Params().At(i).Type()
	if sig.Variadic() && i == sig.Params().Len()-1 {
		if s, ok := t.(*types.Slice); ok {
			return "..." + typeString(s.Elem())
		}
	}
	return typeString(t)
}
