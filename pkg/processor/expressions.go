package processor

import (
	"fmt"
	"math/big"

	"github.com/MrShadowKiller/c-slang/pkg/ast"
	"github.com/MrShadowKiller/c-slang/pkg/ctype"
	"github.com/MrShadowKiller/c-slang/pkg/ir"
)

func addressType() *ctype.Primary {
	return ctype.NewPrimary(ctype.UnsignedInt)
}

// addrAdd offsets an address expression by a constant, folding into address
// nodes where possible.
func addrAdd(addr ir.Expression, delta int) ir.Expression {
	if delta == 0 {
		return addr
	}

	switch addr := addr.(type) {
	case *ir.LocalAddress:
		return &ir.LocalAddress{Offset: addr.Offset + delta}
	case *ir.DataSegmentAddress:
		return &ir.DataSegmentAddress{Offset: addr.Offset + delta}
	case *ir.ReturnAreaAddress:
		return &ir.ReturnAreaAddress{Offset: addr.Offset + delta}
	case *ir.IntegerConstant:
		return &ir.IntegerConstant{Value: addr.Value + int64(delta), Type: addr.Type}
	default:
		return &ir.BinaryExpression{
			Left:     addr,
			Operator: "+",
			Right:    &ir.IntegerConstant{Value: int64(delta), Type: addressType()},
			Type:     addressType(),
		}
	}
}

// convertTo materializes a scalar conversion as an explicit node; identical
// scalar kinds and pointer-to-pointer moves pass through unchanged.
func convertTo(expr ir.Expression, from, to ctype.DataType) ir.Expression {
	fp, fromPrimary := from.(*ctype.Primary)
	tp, toPrimary := to.(*ctype.Primary)
	if fromPrimary && toPrimary && fp.PrimaryKind == tp.PrimaryKind {
		return expr
	}

	if !fromPrimary && !toPrimary {
		return expr
	}

	if from.Kind() == ctype.KindEnum && toPrimary && tp.PrimaryKind == ctype.SignedInt {
		return expr
	}

	if to.Kind() == ctype.KindEnum && fromPrimary && fp.PrimaryKind == ctype.SignedInt {
		return expr
	}

	return &ir.ConvertExpression{From: from, To: to, Operand: expr}
}

// lvalueInfo describes an addressable object: where it starts and what it
// holds. dataType is undecayed; self-pointer field types arrive already
// resolved against their enclosing struct.
type lvalueInfo struct {
	addr     ir.Expression
	dataType ctype.DataType
}

func (l *lvalueInfo) modifiable() bool {
	switch l.dataType.Kind() {
	case ctype.KindArray, ctype.KindFunction:
		return false
	}

	return !ctype.IsConst(l.dataType)
}

// loadObject produces the value wrapper of the object at addr: one load per
// primary scalar piece, or the address itself for an array designator.
func (p *Processor) loadObject(addr ir.Expression, dt ctype.DataType) (ir.ExpressionWrapper, error) {
	if dt.Kind() == ctype.KindArray {
		return ir.ExpressionWrapper{OriginalDataType: dt, Exprs: []ir.Expression{addr}}, nil
	}

	slots, err := ctype.UnpackScalars(dt)
	if err != nil {
		return ir.ExpressionWrapper{}, err
	}

	exprs := make([]ir.Expression, 0, len(slots))
	for _, slot := range slots {
		exprs = append(exprs, &ir.MemoryLoad{Addr: addrAdd(addr, slot.Offset), Type: slot.Type})
	}

	return ir.ExpressionWrapper{OriginalDataType: dt, Exprs: exprs}, nil
}

// processLvalue computes the address of an addressable expression. It
// returns (nil, nil) when the expression is simply not an lvalue, so callers
// can phrase their own diagnostics.
func (p *Processor) processLvalue(expr ast.Expression) (*lvalueInfo, error) {
	switch expr := expr.(type) {
	case *ast.Identifier:
		entry, ok := p.table.Lookup(expr.Name)
		if !ok {
			return nil, expr.WrapError(fmt.Errorf("'%s' undeclared", expr.Name))
		}

		switch entry := entry.(type) {
		case *LocalVariable:
			return &lvalueInfo{addr: &ir.LocalAddress{Offset: entry.Offset}, dataType: entry.DataType}, nil
		case *DataSegmentVariable:
			return &lvalueInfo{addr: &ir.DataSegmentAddress{Offset: entry.Offset}, dataType: entry.DataType}, nil
		default:
			return nil, nil
		}
	case *ast.UnaryExpression:
		if expr.Operator != "*" {
			return nil, nil
		}

		w, err := p.operand(expr.Operand)
		if err != nil {
			return nil, err
		}

		decayed := ctype.Decay(w.OriginalDataType)
		ptr, ok := decayed.(*ctype.Pointer)
		if !ok {
			return nil, expr.WrapError(fmt.Errorf("cannot dereference non-pointer type"))
		}

		if ptr.Pointee.Kind() == ctype.KindVoid {
			return nil, expr.WrapError(fmt.Errorf("void value not ignored as it should be"))
		}

		return &lvalueInfo{addr: w.Scalar(), dataType: ptr.Pointee}, nil
	case *ast.SubscriptExpression:
		addr, elem, err := p.subscriptAddress(expr)
		if err != nil {
			return nil, err
		}

		return &lvalueInfo{addr: addr, dataType: elem}, nil
	case *ast.MemberExpression:
		return p.memberLvalue(expr)
	default:
		return nil, nil
	}
}

// subscriptAddress computes the element address of a[i] as *(a + i).
func (p *Processor) subscriptAddress(expr *ast.SubscriptExpression) (ir.Expression, ctype.DataType, error) {
	base, err := p.operand(expr.Array)
	if err != nil {
		return nil, nil, err
	}

	decayed := ctype.Decay(base.OriginalDataType)
	ptr, ok := decayed.(*ctype.Pointer)
	if !ok {
		return nil, nil, expr.WrapError(fmt.Errorf("cannot dereference non-pointer type"))
	}

	index, err := p.operand(expr.Index)
	if err != nil {
		return nil, nil, err
	}

	if !ctype.IsInteger(ctype.Decay(index.OriginalDataType)) {
		return nil, nil, expr.WrapError(fmt.Errorf("array subscript is not an integer"))
	}

	size, err := ctype.SizeOf(ptr.Pointee)
	if err != nil {
		return nil, nil, expr.WrapError(err)
	}

	scaled := &ir.BinaryExpression{
		Left:     convertTo(index.Scalar(), ctype.Decay(index.OriginalDataType), addressType()),
		Operator: "*",
		Right:    &ir.IntegerConstant{Value: int64(size), Type: addressType()},
		Type:     addressType(),
	}

	addr := &ir.BinaryExpression{
		Left:     base.Scalar(),
		Operator: "+",
		Right:    scaled,
		Type:     addressType(),
	}

	return addr, ptr.Pointee, nil
}

func (p *Processor) memberLvalue(expr *ast.MemberExpression) (*lvalueInfo, error) {
	var base ir.Expression
	var objectType ctype.DataType

	if expr.Arrow {
		w, err := p.operand(expr.Object)
		if err != nil {
			return nil, err
		}

		decayed := ctype.Decay(w.OriginalDataType)
		ptr, ok := decayed.(*ctype.Pointer)
		if !ok {
			return nil, expr.WrapError(fmt.Errorf("invalid type argument of '->' (have '%s')", w.OriginalDataType))
		}

		base = w.Scalar()
		objectType = ptr.Pointee
	} else {
		lv, err := p.processLvalue(expr.Object)
		if err != nil {
			return nil, err
		}
		if lv == nil {
			return nil, expr.WrapError(fmt.Errorf("request for member '%s' in something that is not a structure", expr.Member))
		}

		base = lv.addr
		objectType = lv.dataType
	}

	st, ok := objectType.(*ctype.Struct)
	if !ok {
		return nil, expr.WrapError(fmt.Errorf("request for member '%s' in something that is not a structure", expr.Member))
	}

	field, ok := st.Field(expr.Member)
	if !ok {
		return nil, expr.WrapError(fmt.Errorf("%s has no member named '%s'", st, expr.Member))
	}

	offset, _ := st.FieldOffset(expr.Member)

	fieldType := field.Type
	if sp, ok := fieldType.(*ctype.SelfPointer); ok {
		fieldType = sp.AsPointer(st)
	}

	return &lvalueInfo{addr: addrAdd(base, offset), dataType: fieldType}, nil
}

// operand processes a value-position expression and rejects void values.
func (p *Processor) operand(expr ast.Expression) (ir.ExpressionWrapper, error) {
	w, err := p.processExpression(expr)
	if err != nil {
		return ir.ExpressionWrapper{}, err
	}

	if w.OriginalDataType.Kind() == ctype.KindVoid {
		return ir.ExpressionWrapper{}, expr.WrapError(fmt.Errorf("void value not ignored as it should be"))
	}

	return w, nil
}

// processExpression types expr and lowers it to scalar IR expressions, one
// per unpacked primary piece.
func (p *Processor) processExpression(expr ast.Expression) (ir.ExpressionWrapper, error) {
	switch expr := expr.(type) {
	case *ast.IntegerLiteral:
		t := typeIntegerLiteral(expr)
		v := wrapToKind(expr.Value, t.PrimaryKind)
		return scalarWrapper(t, &ir.IntegerConstant{Value: v.Int64(), Type: t}), nil
	case *ast.FloatLiteral:
		if expr.IsFloat {
			t := ctype.NewPrimary(ctype.Float)
			return scalarWrapper(t, &ir.FloatConstant{Value: float64(float32(expr.Value)), Type: t}), nil
		}

		t := ctype.NewPrimary(ctype.Double)
		return scalarWrapper(t, &ir.FloatConstant{Value: expr.Value, Type: t}), nil
	case *ast.CharLiteral:
		t := ctype.NewPrimary(ctype.SignedInt)
		return scalarWrapper(t, &ir.IntegerConstant{Value: int64(expr.Value), Type: t}), nil
	case *ast.StringLiteral:
		offset := p.table.InternString(expr.Value)
		arr := &ctype.Array{Elem: ctype.NewPrimary(ctype.SignedChar), Length: len(expr.Value) + 1}
		return scalarWrapper(arr, &ir.DataSegmentAddress{Offset: offset}), nil
	case *ast.Identifier:
		return p.processIdentifier(expr)
	case *ast.UnaryExpression:
		return p.processUnary(expr)
	case *ast.PrefixExpression:
		w, _, err := p.processIncDec(expr.Operator, expr.Operand, true, expr.Position)
		return w, err
	case *ast.PostfixExpression:
		w, _, err := p.processIncDec(expr.Operator, expr.Operand, false, expr.Position)
		return w, err
	case *ast.BinaryExpression:
		left, err := p.operand(expr.Left)
		if err != nil {
			return ir.ExpressionWrapper{}, err
		}

		right, err := p.operand(expr.Right)
		if err != nil {
			return ir.ExpressionWrapper{}, err
		}

		return p.binaryCore(expr.Operator, left, right, expr.Right, expr.Position)
	case *ast.AssignmentExpression:
		stores, lv, err := p.assignmentStores(expr)
		if err != nil {
			return ir.ExpressionWrapper{}, err
		}

		value, err := p.loadObject(lv.addr, lv.dataType)
		if err != nil {
			return ir.ExpressionWrapper{}, expr.WrapError(err)
		}

		value.Exprs[0] = &ir.PreStatementExpression{Statements: stores, Expr: value.Exprs[0]}

		return value, nil
	case *ast.ConditionalExpression:
		return p.processConditional(expr)
	case *ast.CallExpression:
		return p.processCallValue(expr)
	case *ast.MemberExpression:
		lv, err := p.memberLvalue(expr)
		if err != nil {
			return ir.ExpressionWrapper{}, err
		}

		return p.loadObject(lv.addr, lv.dataType)
	case *ast.SubscriptExpression:
		addr, elem, err := p.subscriptAddress(expr)
		if err != nil {
			return ir.ExpressionWrapper{}, err
		}

		return p.loadObject(addr, elem)
	case *ast.CommaExpression:
		effects, err := p.processExpressionForEffects(expr.Left)
		if err != nil {
			return ir.ExpressionWrapper{}, err
		}

		right, err := p.processExpression(expr.Right)
		if err != nil {
			return ir.ExpressionWrapper{}, err
		}

		if len(effects) > 0 && len(right.Exprs) > 0 {
			right.Exprs[0] = &ir.PreStatementExpression{Statements: effects, Expr: right.Exprs[0]}
		}

		return right, nil
	case *ast.CastExpression:
		return p.processCast(expr)
	case *ast.SizeofExpression, *ast.SizeofType:
		c, err := p.evaluateConstant(expr)
		if err != nil {
			return ir.ExpressionWrapper{}, err
		}

		ic := c.(*IntegerConstant)
		return scalarWrapper(ic.DataType, &ir.IntegerConstant{Value: ic.Value.Int64(), Type: ic.DataType}), nil
	default:
		return ir.ExpressionWrapper{}, expr.WrapError(fmt.Errorf("unhandled expression %T", expr))
	}
}

func scalarWrapper(dt ctype.DataType, expr ir.Expression) ir.ExpressionWrapper {
	return ir.ExpressionWrapper{OriginalDataType: dt, Exprs: []ir.Expression{expr}}
}

func (p *Processor) processIdentifier(expr *ast.Identifier) (ir.ExpressionWrapper, error) {
	entry, ok := p.table.Lookup(expr.Name)
	if !ok {
		return ir.ExpressionWrapper{}, expr.WrapError(fmt.Errorf("'%s' undeclared", expr.Name))
	}

	switch entry := entry.(type) {
	case *LocalVariable:
		return p.loadObject(&ir.LocalAddress{Offset: entry.Offset}, entry.DataType)
	case *DataSegmentVariable:
		return p.loadObject(&ir.DataSegmentAddress{Offset: entry.Offset}, entry.DataType)
	case *FunctionSymbol:
		index := p.functionTableIndex(expr.Name, entry)
		return scalarWrapper(entry.DataType, &ir.FunctionTableIndex{Index: index}), nil
	case *EnumeratorSymbol:
		t := ctype.NewPrimary(ctype.SignedInt)
		return scalarWrapper(t, &ir.IntegerConstant{Value: entry.Value.Int64(), Type: t}), nil
	case *TypedefSymbol:
		return ir.ExpressionWrapper{}, expr.WrapError(fmt.Errorf("unexpected type name '%s' in expression", expr.Name))
	default:
		return ir.ExpressionWrapper{}, expr.WrapError(fmt.Errorf("unhandled symbol entry %T", entry))
	}
}

func (p *Processor) processUnary(expr *ast.UnaryExpression) (ir.ExpressionWrapper, error) {
	switch expr.Operator {
	case "&":
		// Taking the address of a function registers it in the function
		// table; the designator's value is its stable index.
		if ident, ok := expr.Operand.(*ast.Identifier); ok {
			if entry, found := p.table.Lookup(ident.Name); found {
				if fn, isFn := entry.(*FunctionSymbol); isFn {
					index := p.functionTableIndex(ident.Name, fn)
					return scalarWrapper(ctype.NewPointer(fn.DataType), &ir.FunctionTableIndex{Index: index}), nil
				}
			}
		}

		lv, err := p.processLvalue(expr.Operand)
		if err != nil {
			return ir.ExpressionWrapper{}, err
		}
		if lv == nil {
			return ir.ExpressionWrapper{}, expr.WrapError(fmt.Errorf("lvalue required for unary '&' operand"))
		}

		return scalarWrapper(ctype.NewPointer(lv.dataType), lv.addr), nil
	case "*":
		w, err := p.operand(expr.Operand)
		if err != nil {
			return ir.ExpressionWrapper{}, err
		}

		decayed := ctype.Decay(w.OriginalDataType)
		ptr, ok := decayed.(*ctype.Pointer)
		if !ok {
			return ir.ExpressionWrapper{}, expr.WrapError(fmt.Errorf("cannot dereference non-pointer type"))
		}

		// Dereferencing a function pointer yields the function designator
		// again.
		if ptr.Pointee.Kind() == ctype.KindFunction {
			return scalarWrapper(ptr.Pointee, w.Scalar()), nil
		}

		if ptr.Pointee.Kind() == ctype.KindVoid {
			return ir.ExpressionWrapper{}, expr.WrapError(fmt.Errorf("void value not ignored as it should be"))
		}

		return p.loadObject(w.Scalar(), ptr.Pointee)
	case "+", "-":
		w, err := p.operand(expr.Operand)
		if err != nil {
			return ir.ExpressionWrapper{}, err
		}

		dt := ctype.Decay(w.OriginalDataType)
		if !ctype.IsArithmetic(dt) {
			return ir.ExpressionWrapper{}, expr.WrapError(fmt.Errorf("wrong type argument to unary '%s' (have '%s')", expr.Operator, w.OriginalDataType))
		}

		promoted := promoteArithmetic(dt)
		value := convertTo(w.Scalar(), dt, promoted)
		if expr.Operator == "-" {
			value = &ir.UnaryExpression{Operator: "-", Operand: value, Type: promoted}
		}

		return scalarWrapper(promoted, value), nil
	case "~":
		w, err := p.operand(expr.Operand)
		if err != nil {
			return ir.ExpressionWrapper{}, err
		}

		dt := ctype.Decay(w.OriginalDataType)
		if !ctype.IsInteger(dt) {
			return ir.ExpressionWrapper{}, expr.WrapError(fmt.Errorf("wrong type argument to unary '~' (have '%s')", w.OriginalDataType))
		}

		promoted := ctype.PromoteInteger(dt)
		value := &ir.UnaryExpression{Operator: "~", Operand: convertTo(w.Scalar(), dt, promoted), Type: promoted}

		return scalarWrapper(promoted, value), nil
	case "!":
		w, err := p.operand(expr.Operand)
		if err != nil {
			return ir.ExpressionWrapper{}, err
		}

		dt := ctype.Decay(w.OriginalDataType)
		if !ctype.IsScalar(dt) {
			return ir.ExpressionWrapper{}, expr.WrapError(fmt.Errorf("used '%s' where scalar is required", w.OriginalDataType))
		}

		t := ctype.NewPrimary(ctype.SignedInt)
		return scalarWrapper(t, &ir.UnaryExpression{Operator: "!", Operand: w.Scalar(), Type: t}), nil
	default:
		return ir.ExpressionWrapper{}, expr.WrapError(fmt.Errorf("unhandled unary operator '%s'", expr.Operator))
	}
}

func promoteArithmetic(dt ctype.DataType) ctype.DataType {
	if p, ok := dt.(*ctype.Primary); ok && p.PrimaryKind.IsFloat() {
		return ctype.NewPrimary(p.PrimaryKind)
	}

	return ctype.PromoteInteger(dt)
}

// processIncDec lowers ++ and -- into a store sequenced before (prefix) or
// after (postfix) the operand's value.
func (p *Processor) processIncDec(op string, operand ast.Expression, prefix bool, pos ast.Position) (ir.ExpressionWrapper, []ir.Statement, error) {
	verb := "increment"
	binOp := "+"
	if op == "--" {
		verb = "decrement"
		binOp = "-"
	}

	lv, err := p.processLvalue(operand)
	if err != nil {
		return ir.ExpressionWrapper{}, nil, err
	}
	if lv == nil || !lv.modifiable() {
		return ir.ExpressionWrapper{}, nil, pos.WrapError(fmt.Errorf("argument to %s is not a modifiable lvalue", verb))
	}

	dt := lv.dataType

	var updated ir.Expression
	load := &ir.MemoryLoad{Addr: lv.addr, Type: dt}

	switch {
	case ctype.IsArithmetic(dt):
		common := ctype.UsualArithmeticConversions(dt, ctype.NewPrimary(ctype.SignedInt))

		var one ir.Expression
		if common.PrimaryKind.IsFloat() {
			one = &ir.FloatConstant{Value: 1, Type: common}
		} else {
			one = &ir.IntegerConstant{Value: 1, Type: common}
		}

		sum := &ir.BinaryExpression{
			Left:     convertTo(load, dt, common),
			Operator: binOp,
			Right:    one,
			Type:     common,
		}

		updated = convertTo(sum, common, dt)
	case dt.Kind() == ctype.KindPointer:
		ptr := dt.(*ctype.Pointer)
		size, err := ctype.SizeOf(ptr.Pointee)
		if err != nil {
			return ir.ExpressionWrapper{}, nil, pos.WrapError(err)
		}

		updated = &ir.BinaryExpression{
			Left:     load,
			Operator: binOp,
			Right:    &ir.IntegerConstant{Value: int64(size), Type: addressType()},
			Type:     addressType(),
		}
	default:
		return ir.ExpressionWrapper{}, nil, pos.WrapError(fmt.Errorf("wrong type argument to %s (have '%s')", verb, dt))
	}

	store := &ir.MemoryStore{Addr: lv.addr, Value: updated, Type: dt}
	stmts := []ir.Statement{store}

	var value ir.Expression
	if prefix {
		value = &ir.PreStatementExpression{Statements: stmts, Expr: load}
	} else {
		value = &ir.PostStatementExpression{Statements: stmts, Expr: load}
	}

	return scalarWrapper(dt, value), stmts, nil
}

// binaryCore applies the C binary operator constraints and conversions to
// two processed operands.
func (p *Processor) binaryCore(op string, left, right ir.ExpressionWrapper, rightExpr ast.Expression, pos ast.Position) (ir.ExpressionWrapper, error) {
	lt := ctype.Decay(left.OriginalDataType)
	rt := ctype.Decay(right.OriginalDataType)

	invalid := func() error {
		return pos.WrapError(fmt.Errorf("invalid operands to binary '%s' (have '%s' and '%s')", op, left.OriginalDataType, right.OriginalDataType))
	}

	switch op {
	case "*", "/":
		if !ctype.IsArithmetic(lt) || !ctype.IsArithmetic(rt) {
			return ir.ExpressionWrapper{}, invalid()
		}

		return p.arithmeticBinary(op, left, right, lt, rt), nil
	case "%":
		if !ctype.IsInteger(lt) || !ctype.IsInteger(rt) {
			return ir.ExpressionWrapper{}, invalid()
		}

		return p.arithmeticBinary(op, left, right, lt, rt), nil
	case "+", "-":
		lptr, lIsPtr := lt.(*ctype.Pointer)
		rptr, rIsPtr := rt.(*ctype.Pointer)

		switch {
		case !lIsPtr && !rIsPtr:
			if !ctype.IsArithmetic(lt) || !ctype.IsArithmetic(rt) {
				return ir.ExpressionWrapper{}, invalid()
			}

			return p.arithmeticBinary(op, left, right, lt, rt), nil
		case lIsPtr && rIsPtr:
			if op != "-" || !ctype.Compatible(lptr.Pointee, rptr.Pointee, true) {
				return ir.ExpressionWrapper{}, invalid()
			}

			size, err := ctype.SizeOf(lptr.Pointee)
			if err != nil {
				return ir.ExpressionWrapper{}, pos.WrapError(err)
			}

			t := ctype.NewPrimary(ctype.SignedLong)
			diff := &ir.BinaryExpression{Left: left.Scalar(), Operator: "-", Right: right.Scalar(), Type: t}
			count := &ir.BinaryExpression{
				Left:     diff,
				Operator: "/",
				Right:    &ir.IntegerConstant{Value: int64(size), Type: t},
				Type:     t,
			}

			return scalarWrapper(t, count), nil
		case lIsPtr:
			if !ctype.IsInteger(rt) {
				return ir.ExpressionWrapper{}, invalid()
			}

			return p.pointerOffset(op, left, lptr, right, rt, pos)
		default:
			if op != "+" || !ctype.IsInteger(lt) {
				return ir.ExpressionWrapper{}, invalid()
			}

			return p.pointerOffset(op, right, rptr, left, lt, pos)
		}
	case "<<", ">>":
		if !ctype.IsInteger(lt) || !ctype.IsInteger(rt) {
			return ir.ExpressionWrapper{}, invalid()
		}

		// Each operand promotes on its own; the result takes the promoted
		// left type.
		lp := ctype.PromoteInteger(lt)
		rp := ctype.PromoteInteger(rt)

		value := &ir.BinaryExpression{
			Left:     convertTo(left.Scalar(), lt, lp),
			Operator: op,
			Right:    convertTo(right.Scalar(), rt, rp),
			Type:     lp,
		}

		return scalarWrapper(lp, value), nil
	case "<", "<=", ">", ">=", "==", "!=":
		return p.comparisonBinary(op, left, right, lt, rt, rightExpr, pos)
	case "&", "^", "|":
		if !ctype.IsInteger(lt) || !ctype.IsInteger(rt) {
			return ir.ExpressionWrapper{}, invalid()
		}

		return p.arithmeticBinary(op, left, right, lt, rt), nil
	case "&&", "||":
		if !ctype.IsScalar(lt) || !ctype.IsScalar(rt) {
			return ir.ExpressionWrapper{}, invalid()
		}

		t := ctype.NewPrimary(ctype.SignedInt)
		value := &ir.BinaryExpression{Left: left.Scalar(), Operator: op, Right: right.Scalar(), Type: t}

		return scalarWrapper(t, value), nil
	default:
		return ir.ExpressionWrapper{}, pos.WrapError(fmt.Errorf("unhandled binary operator '%s'", op))
	}
}

func (p *Processor) arithmeticBinary(op string, left, right ir.ExpressionWrapper, lt, rt ctype.DataType) ir.ExpressionWrapper {
	common := ctype.UsualArithmeticConversions(lt, rt)

	value := &ir.BinaryExpression{
		Left:     convertTo(left.Scalar(), lt, common),
		Operator: op,
		Right:    convertTo(right.Scalar(), rt, common),
		Type:     common,
	}

	return scalarWrapper(common, value)
}

// pointerOffset scales the integer operand by the pointee size.
func (p *Processor) pointerOffset(op string, ptrW ir.ExpressionWrapper, ptr *ctype.Pointer, intW ir.ExpressionWrapper, intT ctype.DataType, pos ast.Position) (ir.ExpressionWrapper, error) {
	size, err := ctype.SizeOf(ptr.Pointee)
	if err != nil {
		return ir.ExpressionWrapper{}, pos.WrapError(err)
	}

	scaled := &ir.BinaryExpression{
		Left:     convertTo(intW.Scalar(), intT, addressType()),
		Operator: "*",
		Right:    &ir.IntegerConstant{Value: int64(size), Type: addressType()},
		Type:     addressType(),
	}

	value := &ir.BinaryExpression{
		Left:     ptrW.Scalar(),
		Operator: op,
		Right:    scaled,
		Type:     addressType(),
	}

	return scalarWrapper(ptr, value), nil
}

func (p *Processor) comparisonBinary(op string, left, right ir.ExpressionWrapper, lt, rt ctype.DataType, rightExpr ast.Expression, pos ast.Position) (ir.ExpressionWrapper, error) {
	resultType := ctype.NewPrimary(ctype.SignedInt)

	if ctype.IsArithmetic(lt) && ctype.IsArithmetic(rt) {
		common := ctype.UsualArithmeticConversions(lt, rt)
		value := &ir.BinaryExpression{
			Left:     convertTo(left.Scalar(), lt, common),
			Operator: op,
			Right:    convertTo(right.Scalar(), rt, common),
			Type:     common,
		}

		return scalarWrapper(resultType, value), nil
	}

	lptr, lIsPtr := lt.(*ctype.Pointer)
	rptr, rIsPtr := rt.(*ctype.Pointer)

	equality := op == "==" || op == "!="

	pointersOK := lIsPtr && rIsPtr &&
		(ctype.Compatible(lptr.Pointee, rptr.Pointee, true) ||
			(equality && (lptr.Pointee.Kind() == ctype.KindVoid || rptr.Pointee.Kind() == ctype.KindVoid)))

	nullOK := equality && lIsPtr && p.isNullPointerConstant(rightExpr)
	if equality && rIsPtr && !lIsPtr {
		if c, ok := left.Scalar().(*ir.IntegerConstant); ok && c.Value == 0 && ctype.IsInteger(lt) {
			nullOK = true
		}
	}

	if !pointersOK && !nullOK {
		return ir.ExpressionWrapper{}, pos.WrapError(fmt.Errorf("invalid operands to binary '%s' (have '%s' and '%s')", op, left.OriginalDataType, right.OriginalDataType))
	}

	value := &ir.BinaryExpression{
		Left:     left.Scalar(),
		Operator: op,
		Right:    right.Scalar(),
		Type:     addressType(),
	}

	return scalarWrapper(resultType, value), nil
}

func (p *Processor) processConditional(expr *ast.ConditionalExpression) (ir.ExpressionWrapper, error) {
	cond, err := p.operand(expr.Condition)
	if err != nil {
		return ir.ExpressionWrapper{}, err
	}

	if !ctype.IsScalar(ctype.Decay(cond.OriginalDataType)) {
		return ir.ExpressionWrapper{}, expr.WrapError(fmt.Errorf("used '%s' where scalar is required", cond.OriginalDataType))
	}

	left, err := p.processExpression(expr.Consequent)
	if err != nil {
		return ir.ExpressionWrapper{}, err
	}

	right, err := p.processExpression(expr.Alternative)
	if err != nil {
		return ir.ExpressionWrapper{}, err
	}

	lt := ctype.Decay(left.OriginalDataType)
	rt := ctype.Decay(right.OriginalDataType)

	var resultType ctype.DataType

	switch {
	case ctype.IsArithmetic(lt) && ctype.IsArithmetic(rt):
		common := ctype.UsualArithmeticConversions(lt, rt)
		left.Exprs[0] = convertTo(left.Scalar(), lt, common)
		right.Exprs[0] = convertTo(right.Scalar(), rt, common)
		resultType = common
	case lt.Kind() == ctype.KindStruct && rt.Kind() == ctype.KindStruct && ctype.Compatible(lt, rt, true):
		resultType = lt
	case lt.Kind() == ctype.KindPointer && rt.Kind() == ctype.KindPointer:
		lptr := lt.(*ctype.Pointer)
		rptr := rt.(*ctype.Pointer)
		switch {
		case lptr.Pointee.Kind() == ctype.KindVoid:
			resultType = lt
		case rptr.Pointee.Kind() == ctype.KindVoid:
			resultType = rt
		case ctype.Compatible(lptr.Pointee, rptr.Pointee, true):
			resultType = lt
		default:
			return ir.ExpressionWrapper{}, expr.WrapError(fmt.Errorf("type mismatch in conditional expression ('%s' and '%s')", left.OriginalDataType, right.OriginalDataType))
		}
	case lt.Kind() == ctype.KindPointer && p.isNullPointerConstant(expr.Alternative):
		resultType = lt
	case rt.Kind() == ctype.KindPointer && p.isNullPointerConstant(expr.Consequent):
		resultType = rt
	default:
		return ir.ExpressionWrapper{}, expr.WrapError(fmt.Errorf("type mismatch in conditional expression ('%s' and '%s')", left.OriginalDataType, right.OriginalDataType))
	}

	if len(left.Exprs) != len(right.Exprs) {
		return ir.ExpressionWrapper{}, expr.WrapError(fmt.Errorf("type mismatch in conditional expression ('%s' and '%s')", left.OriginalDataType, right.OriginalDataType))
	}

	exprs := make([]ir.Expression, 0, len(left.Exprs))
	for i := range left.Exprs {
		exprs = append(exprs, &ir.ConditionalExpression{
			Condition: cond.Scalar(),
			Then:      left.Exprs[i],
			Else:      right.Exprs[i],
			Type:      resultType,
		})
	}

	return ir.ExpressionWrapper{OriginalDataType: resultType, Exprs: exprs}, nil
}

func (p *Processor) processCast(expr *ast.CastExpression) (ir.ExpressionWrapper, error) {
	target, err := p.resolveType(expr.Target)
	if err != nil {
		return ir.ExpressionWrapper{}, err
	}

	if target.Kind() == ctype.KindVoid {
		// A cast to void discards the value; the effects survive.
		effects, err := p.processExpressionForEffects(expr.Operand)
		if err != nil {
			return ir.ExpressionWrapper{}, err
		}

		if len(effects) > 0 {
			return ir.ExpressionWrapper{
				OriginalDataType: ctype.VoidType,
				Exprs:            []ir.Expression{&ir.PreStatementExpression{Statements: effects, Expr: nil}},
			}, nil
		}

		return ir.ExpressionWrapper{OriginalDataType: ctype.VoidType}, nil
	}

	if !ctype.IsScalar(target) {
		return ir.ExpressionWrapper{}, expr.WrapError(fmt.Errorf("conversion to non-scalar type requested"))
	}

	w, err := p.operand(expr.Operand)
	if err != nil {
		return ir.ExpressionWrapper{}, err
	}

	from := ctype.Decay(w.OriginalDataType)
	if !ctype.IsScalar(from) {
		return ir.ExpressionWrapper{}, expr.WrapError(fmt.Errorf("conversion to non-scalar type requested"))
	}

	return scalarWrapper(target, convertTo(w.Scalar(), from, target)), nil
}

// functionTableIndex assigns (or returns) the function's stable index in the
// indirect-call table.
func (p *Processor) functionTableIndex(name string, fn *FunctionSymbol) int {
	if fn.TableIndex >= 0 {
		return fn.TableIndex
	}

	fn.TableIndex = len(p.functionTable)
	p.functionTable = append(p.functionTable, name)

	return fn.TableIndex
}

// assignmentStores lowers an assignment (plain or compound) into one store
// per primary scalar piece of the left object.
func (p *Processor) assignmentStores(expr *ast.AssignmentExpression) ([]ir.Statement, *lvalueInfo, error) {
	lv, err := p.processLvalue(expr.Lvalue)
	if err != nil {
		return nil, nil, err
	}
	if lv == nil {
		w, err := p.processExpression(expr.Lvalue)
		if err != nil {
			return nil, nil, err
		}

		return nil, nil, expr.WrapError(fmt.Errorf("assignment to expression with type '%s'", w.OriginalDataType))
	}

	if !lv.modifiable() {
		return nil, nil, expr.WrapError(fmt.Errorf("assignment to non-modifiable lvalue with type '%s'", lv.dataType))
	}

	var value ir.ExpressionWrapper
	if expr.Operator == "=" {
		value, err = p.processExpression(expr.Rvalue)
		if err != nil {
			return nil, nil, err
		}
	} else {
		current, err := p.loadObject(lv.addr, lv.dataType)
		if err != nil {
			return nil, nil, expr.WrapError(err)
		}

		right, err := p.operand(expr.Rvalue)
		if err != nil {
			return nil, nil, err
		}

		op := expr.Operator[:len(expr.Operator)-1]
		value, err = p.binaryCore(op, current, right, expr.Rvalue, expr.Position)
		if err != nil {
			return nil, nil, err
		}
	}

	valueType := ctype.Decay(value.OriginalDataType)
	if !ctype.CanAssign(lv.dataType, valueType, p.isNullPointerConstant(expr.Rvalue) && expr.Operator == "=") {
		return nil, nil, expr.WrapError(fmt.Errorf("incompatible types when assigning to type '%s' from type '%s'", lv.dataType, value.OriginalDataType))
	}

	return p.storeWrapper(lv.addr, lv.dataType, value, valueType)
}

// storeWrapper emits one store per scalar slot of the destination object.
func (p *Processor) storeWrapper(addr ir.Expression, dt ctype.DataType, value ir.ExpressionWrapper, valueType ctype.DataType) ([]ir.Statement, *lvalueInfo, error) {
	lv := &lvalueInfo{addr: addr, dataType: dt}

	slots, err := ctype.UnpackScalars(dt)
	if err != nil {
		return nil, nil, err
	}

	if len(slots) != len(value.Exprs) {
		return nil, nil, fmt.Errorf("bug: storing %d scalars into %d slots", len(value.Exprs), len(slots))
	}

	stores := make([]ir.Statement, 0, len(slots))
	for i, slot := range slots {
		v := value.Exprs[i]
		if len(slots) == 1 {
			v = convertTo(v, valueType, slot.Type)
		}

		stores = append(stores, &ir.MemoryStore{
			Addr:  addrAdd(addr, slot.Offset),
			Value: v,
			Type:  slot.Type,
		})
	}

	return stores, lv, nil
}

// processCall checks a call against the callee's prototype and lowers it to
// a FunctionCall with fully unpacked, converted arguments.
func (p *Processor) processCall(expr *ast.CallExpression) (*ir.FunctionCall, *ctype.Function, error) {
	call := &ir.FunctionCall{}
	var fnType *ctype.Function

	resolved := false
	if ident, ok := expr.Callee.(*ast.Identifier); ok {
		entry, found := p.table.Lookup(ident.Name)
		if !found {
			return nil, nil, ident.WrapError(fmt.Errorf("'%s' undeclared", ident.Name))
		}

		if fn, isFn := entry.(*FunctionSymbol); isFn {
			call.Name = ident.Name
			call.External = fn.External
			fnType = fn.DataType
			resolved = true
		}
	}

	if !resolved {
		callee, err := p.operand(expr.Callee)
		if err != nil {
			return nil, nil, err
		}

		decayed := ctype.Decay(callee.OriginalDataType)
		ptr, ok := decayed.(*ctype.Pointer)
		if ok {
			fnType, ok = ptr.Pointee.(*ctype.Function)
		}
		if !ok {
			return nil, nil, expr.WrapError(fmt.Errorf("called object is not a function or function pointer"))
		}

		call.Index = callee.Scalar()
	}

	if len(expr.Args) != len(fnType.Parameters) {
		return nil, nil, expr.WrapError(fmt.Errorf("number of arguments provided to function call does not match number of parameters specfied in prototype"))
	}

	for i, arg := range expr.Args {
		w, err := p.operand(arg)
		if err != nil {
			return nil, nil, err
		}

		paramType := fnType.Parameters[i]
		argType := ctype.Decay(w.OriginalDataType)

		if !ctype.CanAssign(paramType, argType, p.isNullPointerConstant(arg)) {
			return nil, nil, expr.WrapError(fmt.Errorf("cannot assign function call argument to parameter"))
		}

		slots, err := ctype.UnpackScalars(paramType)
		if err != nil {
			return nil, nil, expr.WrapError(err)
		}

		if len(slots) == 1 {
			call.Args = append(call.Args, convertTo(w.Scalar(), argType, slots[0].Type))
			call.ArgTypes = append(call.ArgTypes, slots[0].Type)
			continue
		}

		if len(slots) != len(w.Exprs) {
			return nil, nil, expr.WrapError(fmt.Errorf("cannot assign function call argument to parameter"))
		}

		for j, slot := range slots {
			call.Args = append(call.Args, w.Exprs[j])
			call.ArgTypes = append(call.ArgTypes, slot.Type)
		}
	}

	return call, fnType, nil
}

// processCallValue lowers a call in value position: the call statement is
// sequenced before loads from the return area.
func (p *Processor) processCallValue(expr *ast.CallExpression) (ir.ExpressionWrapper, error) {
	call, fnType, err := p.processCall(expr)
	if err != nil {
		return ir.ExpressionWrapper{}, err
	}

	if fnType.Return.Kind() == ctype.KindVoid {
		return ir.ExpressionWrapper{
			OriginalDataType: ctype.VoidType,
			Exprs:            []ir.Expression{&ir.PreStatementExpression{Statements: []ir.Statement{call}, Expr: nil}},
		}, nil
	}

	slots, err := ctype.UnpackScalars(fnType.Return)
	if err != nil {
		return ir.ExpressionWrapper{}, expr.WrapError(err)
	}

	exprs := make([]ir.Expression, 0, len(slots))
	for i, slot := range slots {
		var load ir.Expression = &ir.MemoryLoad{
			Addr: &ir.ReturnAreaAddress{Offset: slot.Offset},
			Type: slot.Type,
		}

		if i == 0 {
			load = &ir.PreStatementExpression{Statements: []ir.Statement{call}, Expr: load}
		}

		exprs = append(exprs, load)
	}

	return ir.ExpressionWrapper{OriginalDataType: fnType.Return, Exprs: exprs}, nil
}

// processExpressionForEffects lowers a statement-position expression into
// its side-effect statements, discarding pure values.
func (p *Processor) processExpressionForEffects(expr ast.Expression) ([]ir.Statement, error) {
	switch expr := expr.(type) {
	case *ast.AssignmentExpression:
		stores, _, err := p.assignmentStores(expr)
		return stores, err
	case *ast.CallExpression:
		call, _, err := p.processCall(expr)
		if err != nil {
			return nil, err
		}

		return []ir.Statement{call}, nil
	case *ast.PrefixExpression:
		_, stmts, err := p.processIncDec(expr.Operator, expr.Operand, true, expr.Position)
		return stmts, err
	case *ast.PostfixExpression:
		_, stmts, err := p.processIncDec(expr.Operator, expr.Operand, false, expr.Position)
		return stmts, err
	case *ast.CommaExpression:
		left, err := p.processExpressionForEffects(expr.Left)
		if err != nil {
			return nil, err
		}

		right, err := p.processExpressionForEffects(expr.Right)
		if err != nil {
			return nil, err
		}

		return append(left, right...), nil
	case *ast.CastExpression:
		target, err := p.resolveType(expr.Target)
		if err != nil {
			return nil, err
		}

		if target.Kind() == ctype.KindVoid {
			return p.processExpressionForEffects(expr.Operand)
		}

		_, err = p.processExpression(expr)
		return nil, err
	case *ast.ConditionalExpression:
		cond, err := p.operand(expr.Condition)
		if err != nil {
			return nil, err
		}

		if !ctype.IsScalar(ctype.Decay(cond.OriginalDataType)) {
			return nil, expr.WrapError(fmt.Errorf("used '%s' where scalar is required", cond.OriginalDataType))
		}

		thenStmts, err := p.processExpressionForEffects(expr.Consequent)
		if err != nil {
			return nil, err
		}

		elseStmts, err := p.processExpressionForEffects(expr.Alternative)
		if err != nil {
			return nil, err
		}

		if len(thenStmts) == 0 && len(elseStmts) == 0 {
			return nil, nil
		}

		return []ir.Statement{&ir.SelectionStatement{
			Condition: cond.Scalar(),
			Then:      thenStmts,
			Else:      elseStmts,
		}}, nil
	case *ast.BinaryExpression:
		if expr.Operator == "&&" || expr.Operator == "||" {
			left, err := p.operand(expr.Left)
			if err != nil {
				return nil, err
			}

			if !ctype.IsScalar(ctype.Decay(left.OriginalDataType)) {
				return nil, expr.WrapError(fmt.Errorf("used '%s' where scalar is required", left.OriginalDataType))
			}

			rightStmts, err := p.processExpressionForEffects(expr.Right)
			if err != nil {
				return nil, err
			}

			if len(rightStmts) == 0 {
				return nil, nil
			}

			sel := &ir.SelectionStatement{Condition: left.Scalar()}
			if expr.Operator == "&&" {
				sel.Then = rightStmts
			} else {
				sel.Else = rightStmts
			}

			return []ir.Statement{sel}, nil
		}

		_, err := p.processExpression(expr)
		return nil, err
	default:
		// A pure expression in statement position is typed and discarded.
		_, err := p.processExpression(expr)
		return nil, err
	}
}

func bigToInt64(v *big.Int) int64 {
	if v.IsInt64() {
		return v.Int64()
	}

	// Unsigned values beyond int64 range keep their two's-complement bits.
	return int64(v.Uint64())
}
