package processor

import (
	"fmt"
	"math/big"

	"github.com/MrShadowKiller/c-slang/pkg/ast"
	"github.com/MrShadowKiller/c-slang/pkg/ctype"
)

// resolveType lowers a syntactic type into the closed data-type algebra:
// typedef and tag references are resolved, array lengths folded, struct
// definitions registered, and pointers back to a struct being defined turned
// into self-pointer markers.
func (p *Processor) resolveType(t ast.Type) (ctype.DataType, error) {
	switch t := t.(type) {
	case *ast.PrimaryType:
		kind, ok := ctype.ParsePrimaryKind(t.Name)
		if !ok {
			return nil, t.WrapError(fmt.Errorf("unrecognized type specifier '%s'", t.Name))
		}

		return &ctype.Primary{PrimaryKind: kind, Const: t.Const}, nil
	case *ast.VoidType:
		return ctype.VoidType, nil
	case *ast.PointerType:
		// A pointer to the struct currently being defined is the
		// self-pointer marker, not a pointer to a (still incomplete) struct.
		if ref, ok := t.Pointee.(*ast.StructType); ok && ref.Fields == nil && p.definingStruct() == ref.Tag && ref.Tag != "" {
			return &ctype.SelfPointer{EnclosingTag: ref.Tag}, nil
		}

		pointee, err := p.resolveType(t.Pointee)
		if err != nil {
			return nil, err
		}

		return &ctype.Pointer{Pointee: pointee, Const: t.Const}, nil
	case *ast.ArrayType:
		elem, err := p.resolveType(t.Elem)
		if err != nil {
			return nil, err
		}

		if elem.Kind() == ctype.KindFunction {
			return nil, t.WrapError(fmt.Errorf("declaration of array of functions"))
		}

		if t.Length == nil {
			return nil, t.WrapError(fmt.Errorf("Variable Length Arrays not supported"))
		}

		length, err := p.foldArrayLength(t.Length)
		if err != nil {
			return nil, t.WrapError(err)
		}

		return &ctype.Array{Elem: elem, Length: length, Const: t.Const}, nil
	case *ast.StructType:
		return p.resolveStructType(t)
	case *ast.EnumType:
		return p.resolveEnumType(t)
	case *ast.TypedefName:
		entry, ok := p.table.Lookup(t.Name)
		if !ok {
			return nil, t.WrapError(fmt.Errorf("'%s' undeclared", t.Name))
		}

		td, ok := entry.(*TypedefSymbol)
		if !ok {
			return nil, t.WrapError(fmt.Errorf("'%s' does not name a type", t.Name))
		}

		return td.DataType, nil
	case *ast.FunctionType:
		return p.resolveFunctionType(t)
	default:
		return nil, t.WrapError(fmt.Errorf("unhandled type node %T", t))
	}
}

func (p *Processor) definingStruct() string {
	if len(p.definingStructs) == 0 {
		return ""
	}

	return p.definingStructs[len(p.definingStructs)-1]
}

func (p *Processor) resolveStructType(t *ast.StructType) (ctype.DataType, error) {
	if t.Fields == nil {
		dt, ok := p.table.LookupTag(t.Tag)
		if !ok {
			return nil, t.WrapError(fmt.Errorf("'%s' is an incomplete type", t.Tag))
		}

		st, ok := dt.(*ctype.Struct)
		if !ok {
			return nil, t.WrapError(fmt.Errorf("'%s' defined as wrong kind of tag", t.Tag))
		}

		return st, nil
	}

	if len(t.Fields) == 0 {
		return nil, t.WrapError(fmt.Errorf("struct has no members"))
	}

	p.definingStructs = append(p.definingStructs, t.Tag)
	defer func() {
		p.definingStructs = p.definingStructs[:len(p.definingStructs)-1]
	}()

	st := &ctype.Struct{Tag: t.Tag}
	for _, field := range t.Fields {
		ft, err := p.resolveType(field.Type)
		if err != nil {
			return nil, err
		}

		if ft.Kind() == ctype.KindFunction {
			return nil, field.WrapError(fmt.Errorf("field '%s' declared as a function", field.Name))
		}

		if ft.Kind() == ctype.KindVoid {
			return nil, field.WrapError(fmt.Errorf("variable or field '%s' declared void", field.Name))
		}

		for _, existing := range st.Fields {
			if existing.Tag == field.Name {
				return nil, field.WrapError(fmt.Errorf("duplicate member '%s'", field.Name))
			}
		}

		st.Fields = append(st.Fields, ctype.Field{Tag: field.Name, Type: ft})
	}

	if t.Tag != "" {
		err := p.table.DeclareTag(t.Tag, st)
		if err != nil {
			return nil, t.WrapError(err)
		}
	}

	return st, nil
}

func (p *Processor) resolveEnumType(t *ast.EnumType) (ctype.DataType, error) {
	if t.Members == nil {
		dt, ok := p.table.LookupTag(t.Tag)
		if !ok {
			return nil, t.WrapError(fmt.Errorf("'%s' is an incomplete type", t.Tag))
		}

		et, ok := dt.(*ctype.Enum)
		if !ok {
			return nil, t.WrapError(fmt.Errorf("'%s' defined as wrong kind of tag", t.Tag))
		}

		return et, nil
	}

	et := &ctype.Enum{Tag: t.Tag}

	if t.Tag != "" {
		err := p.table.DeclareTag(t.Tag, et)
		if err != nil {
			return nil, t.WrapError(err)
		}
	}

	err := p.declareEnumerators(et, t.Members)
	if err != nil {
		return nil, err
	}

	return et, nil
}

// declareEnumerators binds each member as a signed int constant, counting up
// from zero between explicit values.
func (p *Processor) declareEnumerators(et *ctype.Enum, members []ast.EnumMember) error {
	next := big.NewInt(0)

	for _, member := range members {
		value := next
		if member.Value != nil {
			c, err := p.evaluateConstant(member.Value)
			if err != nil {
				return member.WrapError(fmt.Errorf("enumerator value for '%s' is not an integer constant", member.Name))
			}

			ic, ok := c.(*IntegerConstant)
			if !ok || !ctype.IsInteger(ic.DataType) {
				return member.WrapError(fmt.Errorf("enumerator value for '%s' is not an integer constant", member.Name))
			}

			value = wrapToKind(ic.Value, ctype.SignedInt)
		}

		err := p.table.Declare(member.Name, &EnumeratorSymbol{Value: value})
		if err != nil {
			return member.WrapError(err)
		}

		et.Members = append(et.Members, ctype.Enumerator{Name: member.Name, Value: value.Int64()})

		next = new(big.Int).Add(value, big.NewInt(1))
	}

	return nil
}

func (p *Processor) resolveFunctionType(t *ast.FunctionType) (*ctype.Function, error) {
	ret, err := p.resolveType(t.Return)
	if err != nil {
		return nil, err
	}

	// Struct returns are supported; arrays are not returnable.
	if ret.Kind() == ctype.KindArray {
		return nil, t.WrapError(fmt.Errorf("function cannot return array type '%s'", ret))
	}

	fn := &ctype.Function{Return: ret}

	// A single unnamed void parameter means an empty parameter list.
	if len(t.Parameters) == 1 {
		if _, ok := t.Parameters[0].Type.(*ast.VoidType); ok && t.Parameters[0].Name == "" {
			return fn, nil
		}
	}

	for _, param := range t.Parameters {
		pt, err := p.resolveType(param.Type)
		if err != nil {
			return nil, err
		}

		if pt.Kind() == ctype.KindVoid {
			return nil, param.WrapError(fmt.Errorf("parameter '%s' declared void", param.Name))
		}

		// Array and function parameters decay to pointers.
		fn.Parameters = append(fn.Parameters, ctype.Decay(pt))
	}

	return fn, nil
}

// sizeofValue computes the sizeof result for a data type, rejecting the
// types sizeof cannot apply to.
func (p *Processor) sizeofValue(dt ctype.DataType, pos ast.Position) (int, error) {
	switch dt.Kind() {
	case ctype.KindFunction:
		return 0, pos.WrapError(fmt.Errorf("invalid application of 'sizeof' to function type"))
	case ctype.KindVoid:
		return 0, pos.WrapError(fmt.Errorf("invalid application of 'sizeof' to incomplete type"))
	}

	size, err := ctype.SizeOf(dt)
	if err != nil {
		return 0, pos.WrapError(err)
	}

	return size, nil
}
