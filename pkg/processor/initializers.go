package processor

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/big"

	"github.com/MrShadowKiller/c-slang/pkg/ast"
	"github.com/MrShadowKiller/c-slang/pkg/ctype"
	"github.com/MrShadowKiller/c-slang/pkg/ir"
)

// initializerSink receives the scalar pieces of an unpacked initializer in
// layout order. The local variant emits memory stores; the data-segment
// variant appends little-endian bytes.
type initializerSink interface {
	scalar(target ctype.DataType, expr ast.Expression, node ast.Node) error
	zero(target ctype.DataType) error
	aggregate(target ctype.DataType, exprs []ir.Expression, node ast.Node) error
}

// unpackLocalInitializer expands init against dt into one memory store per
// primary scalar piece of the object at the given frame offset.
func (p *Processor) unpackLocalInitializer(frameOffset int, dt ctype.DataType, init ast.Initializer, node ast.Node) ([]ir.Statement, error) {
	slots, err := ctype.UnpackScalars(dt)
	if err != nil {
		return nil, node.WrapError(err)
	}

	sink := &localInitializerSink{p: p, frameOffset: frameOffset, slots: slots}

	err = p.unpackInitializer(dt, init, sink, node)
	if err != nil {
		return nil, err
	}

	return sink.stmts, nil
}

// unpackDataSegmentInitializer expands init against dt into the object's
// byte string. A nil initializer zero-fills the declared size (tentative
// definition semantics).
func (p *Processor) unpackDataSegmentInitializer(dt ctype.DataType, init ast.Initializer, node ast.Node) ([]byte, error) {
	sink := &dataSegmentInitializerSink{p: p}

	err := p.unpackInitializer(dt, init, sink, node)
	if err != nil {
		return nil, err
	}

	return sink.buf, nil
}

func (p *Processor) unpackInitializer(dt ctype.DataType, init ast.Initializer, sink initializerSink, node ast.Node) error {
	if init == nil {
		return p.zeroFill(dt, sink)
	}

	switch init := init.(type) {
	case *ast.InitializerSingle:
		if isScalarTarget(dt) {
			return sink.scalar(dt, init.Expr, init)
		}

		if dt.Kind() == ctype.KindStruct {
			w, err := p.processExpression(init.Expr)
			if err != nil {
				return err
			}

			if !ctype.Compatible(dt, w.OriginalDataType, true) {
				return init.WrapError(fmt.Errorf("incompatible types when initializing type '%s' using type '%s'", dt, w.OriginalDataType))
			}

			return sink.aggregate(dt, w.Exprs, init)
		}

		return init.WrapError(fmt.Errorf("invalid initializer"))
	case *ast.InitializerList:
		cursor, err := p.unpackList(dt, init, 0, sink)
		if err != nil {
			return err
		}

		if cursor < len(init.Elems) {
			return init.WrapError(fmt.Errorf("excess elements in initializer"))
		}

		return nil
	default:
		return node.WrapError(fmt.Errorf("unhandled initializer %T", init))
	}
}

// unpackList walks list elements against dt starting at cursor and returns
// the advanced cursor.
func (p *Processor) unpackList(dt ctype.DataType, list *ast.InitializerList, cursor int, sink initializerSink) (int, error) {
	if isScalarTarget(dt) {
		return p.unpackScalarFromList(dt, list, cursor, sink)
	}

	switch dt := dt.(type) {
	case *ctype.Array:
		for i := 0; i < dt.Length; i++ {
			var err error
			cursor, err = p.unpackAggregateElement(dt.Elem, list, cursor, sink)
			if err != nil {
				return cursor, err
			}
		}

		return cursor, nil
	case *ctype.Struct:
		for _, field := range dt.Fields {
			fieldType := field.Type
			if sp, ok := fieldType.(*ctype.SelfPointer); ok {
				fieldType = sp.AsPointer(dt)
			}

			var err error
			cursor, err = p.unpackAggregateElement(fieldType, list, cursor, sink)
			if err != nil {
				return cursor, err
			}
		}

		return cursor, nil
	default:
		return cursor, list.WrapError(fmt.Errorf("invalid initializer"))
	}
}

// unpackScalarFromList consumes one list element for a scalar target,
// peeling nested single-element braces around it.
func (p *Processor) unpackScalarFromList(dt ctype.DataType, list *ast.InitializerList, cursor int, sink initializerSink) (int, error) {
	if cursor >= len(list.Elems) {
		return cursor, sink.zero(dt)
	}

	elem := list.Elems[cursor]
	cursor++

	for {
		switch e := elem.(type) {
		case *ast.InitializerSingle:
			return cursor, sink.scalar(dt, e.Expr, e)
		case *ast.InitializerList:
			if len(e.Elems) == 0 {
				return cursor, sink.zero(dt)
			}

			if len(e.Elems) > 1 {
				return cursor, e.WrapError(fmt.Errorf("excess elements in initializer"))
			}

			elem = e.Elems[0]
		}
	}
}

// unpackAggregateElement handles one element position while iterating an
// array or struct: scalars pull from the same list level, sub-aggregates
// consume either a whole compatible expression or one braced sub-list.
func (p *Processor) unpackAggregateElement(elemType ctype.DataType, list *ast.InitializerList, cursor int, sink initializerSink) (int, error) {
	if isScalarTarget(elemType) {
		return p.unpackScalarFromList(elemType, list, cursor, sink)
	}

	if cursor >= len(list.Elems) {
		return cursor, p.zeroFill(elemType, sink)
	}

	switch e := list.Elems[cursor].(type) {
	case *ast.InitializerSingle:
		w, err := p.processExpression(e.Expr)
		if err != nil {
			return cursor, err
		}

		if ctype.IsAggregate(w.OriginalDataType) && ctype.Compatible(elemType, w.OriginalDataType, true) {
			exprs, err := p.aggregateValueExprs(w)
			if err != nil {
				return cursor, e.WrapError(err)
			}

			return cursor + 1, sink.aggregate(elemType, exprs, e)
		}

		// Not a whole-aggregate value: keep pulling scalars from this list
		// level into the element.
		return p.unpackList(elemType, list, cursor, sink)
	case *ast.InitializerList:
		sub, err := p.unpackList(elemType, e, 0, sink)
		if err != nil {
			return cursor, err
		}

		if sub < len(e.Elems) {
			return cursor, e.WrapError(fmt.Errorf("excess elements in initializer"))
		}

		return cursor + 1, nil
	default:
		return cursor, list.WrapError(fmt.Errorf("unhandled initializer %T", e))
	}
}

// aggregateValueExprs flattens a processed aggregate value into one scalar
// expression per primary piece. Struct wrappers are already flat; an array
// value is its address, so its elements are loaded out.
func (p *Processor) aggregateValueExprs(w ir.ExpressionWrapper) ([]ir.Expression, error) {
	if w.OriginalDataType.Kind() != ctype.KindArray {
		return w.Exprs, nil
	}

	slots, err := ctype.UnpackScalars(w.OriginalDataType)
	if err != nil {
		return nil, err
	}

	addr := w.Exprs[0]
	exprs := make([]ir.Expression, 0, len(slots))
	for _, slot := range slots {
		exprs = append(exprs, &ir.MemoryLoad{Addr: addrAdd(addr, slot.Offset), Type: slot.Type})
	}

	return exprs, nil
}

func (p *Processor) zeroFill(dt ctype.DataType, sink initializerSink) error {
	if isScalarTarget(dt) {
		return sink.zero(dt)
	}

	switch dt := dt.(type) {
	case *ctype.Array:
		for i := 0; i < dt.Length; i++ {
			err := p.zeroFill(dt.Elem, sink)
			if err != nil {
				return err
			}
		}

		return nil
	case *ctype.Struct:
		for _, field := range dt.Fields {
			fieldType := field.Type
			if sp, ok := fieldType.(*ctype.SelfPointer); ok {
				fieldType = sp.AsPointer(dt)
			}

			err := p.zeroFill(fieldType, sink)
			if err != nil {
				return err
			}
		}

		return nil
	default:
		return fmt.Errorf("cannot zero value of type '%s'", dt)
	}
}

func isScalarTarget(dt ctype.DataType) bool {
	switch dt.Kind() {
	case ctype.KindPrimary, ctype.KindPointer, ctype.KindEnum, ctype.KindSelfPointer:
		return true
	default:
		return false
	}
}

// localInitializerSink emits one memory store per scalar piece of the
// declared object.
type localInitializerSink struct {
	p           *Processor
	frameOffset int
	slots       []ctype.ScalarSlot
	next        int

	stmts []ir.Statement
}

func (s *localInitializerSink) take() ctype.ScalarSlot {
	slot := s.slots[s.next]
	s.next++
	return slot
}

func (s *localInitializerSink) addr(slot ctype.ScalarSlot) ir.Expression {
	return &ir.LocalAddress{Offset: s.frameOffset + slot.Offset}
}

func (s *localInitializerSink) scalar(target ctype.DataType, expr ast.Expression, node ast.Node) error {
	slot := s.take()

	w, err := s.p.operand(expr)
	if err != nil {
		return err
	}

	valueType := ctype.Decay(w.OriginalDataType)
	if !ctype.CanAssign(target, valueType, s.p.isNullPointerConstant(expr)) {
		return node.WrapError(fmt.Errorf("incompatible types when initializing type '%s' using type '%s'", target, w.OriginalDataType))
	}

	s.stmts = append(s.stmts, &ir.MemoryStore{
		Addr:  s.addr(slot),
		Value: convertTo(w.Scalar(), valueType, slot.Type),
		Type:  slot.Type,
	})

	return nil
}

func (s *localInitializerSink) zero(target ctype.DataType) error {
	slot := s.take()

	var value ir.Expression
	if pk, ok := slot.Type.(*ctype.Primary); ok && pk.PrimaryKind.IsFloat() {
		value = &ir.FloatConstant{Value: 0, Type: slot.Type}
	} else {
		value = &ir.IntegerConstant{Value: 0, Type: slot.Type}
	}

	s.stmts = append(s.stmts, &ir.MemoryStore{Addr: s.addr(slot), Value: value, Type: slot.Type})

	return nil
}

func (s *localInitializerSink) aggregate(target ctype.DataType, exprs []ir.Expression, node ast.Node) error {
	slots, err := ctype.UnpackScalars(target)
	if err != nil {
		return node.WrapError(err)
	}

	if len(slots) != len(exprs) {
		return node.WrapError(fmt.Errorf("incompatible types when initializing type '%s'", target))
	}

	for i := range slots {
		slot := s.take()
		s.stmts = append(s.stmts, &ir.MemoryStore{
			Addr:  s.addr(slot),
			Value: exprs[i],
			Type:  slot.Type,
		})
	}

	return nil
}

// dataSegmentInitializerSink accumulates the little-endian byte string of a
// data-segment object; every scalar must fold to a compile-time constant.
type dataSegmentInitializerSink struct {
	p   *Processor
	buf []byte
}

func (s *dataSegmentInitializerSink) scalar(target ctype.DataType, expr ast.Expression, node ast.Node) error {
	c, err := s.p.evaluateConstant(expr)
	if err != nil {
		return node.WrapError(fmt.Errorf("initializer element is not constant"))
	}

	isNull := false
	if ic, ok := c.(*IntegerConstant); ok && ctype.IsInteger(ic.DataType) && ic.Value.Sign() == 0 {
		isNull = true
	}

	if !ctype.CanAssign(target, c.Type(), isNull) {
		return node.WrapError(fmt.Errorf("incompatible types when initializing type '%s' using type '%s'", target, c.Type()))
	}

	s.buf = append(s.buf, encodeScalar(c, target)...)

	return nil
}

func (s *dataSegmentInitializerSink) zero(target ctype.DataType) error {
	s.buf = append(s.buf, make([]byte, ctype.ScalarSize(target))...)
	return nil
}

func (s *dataSegmentInitializerSink) aggregate(target ctype.DataType, exprs []ir.Expression, node ast.Node) error {
	return node.WrapError(fmt.Errorf("initializer element is not constant"))
}

// encodeScalar converts the constant to the target scalar type and renders
// its little-endian bytes.
func encodeScalar(c Constant, target ctype.DataType) []byte {
	switch target := target.(type) {
	case *ctype.Primary:
		switch target.PrimaryKind {
		case ctype.Float:
			fc := convertConstant(c, ctype.Float).(*FloatConstant)
			out := make([]byte, 4)
			binary.LittleEndian.PutUint32(out, math.Float32bits(float32(fc.Value)))
			return out
		case ctype.Double:
			fc := convertConstant(c, ctype.Double).(*FloatConstant)
			out := make([]byte, 8)
			binary.LittleEndian.PutUint64(out, math.Float64bits(fc.Value))
			return out
		default:
			ic := convertConstant(c, target.PrimaryKind).(*IntegerConstant)
			return encodeInteger(ic.Value, target.PrimaryKind.Size())
		}
	case *ctype.Pointer, *ctype.SelfPointer:
		ic := convertConstant(c, ctype.UnsignedInt).(*IntegerConstant)
		return encodeInteger(ic.Value, ctype.PointerSize)
	case *ctype.Enum:
		ic := convertConstant(c, ctype.SignedInt).(*IntegerConstant)
		return encodeInteger(ic.Value, ctype.SignedInt.Size())
	default:
		panic(fmt.Sprintf("bug: encoding non-scalar type %T", target))
	}
}

// encodeInteger renders the two's-complement little-endian bytes of v.
func encodeInteger(v *big.Int, size int) []byte {
	bits := uint(size * 8)

	u := new(big.Int).Set(v)
	if u.Sign() < 0 {
		mod := new(big.Int).Lsh(big.NewInt(1), bits)
		u.Add(u, mod)
	}

	out := make([]byte, size)
	raw := u.Bytes()
	for i := 0; i < len(raw) && i < size; i++ {
		out[i] = raw[len(raw)-1-i]
	}

	return out
}
