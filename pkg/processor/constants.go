package processor

import (
	"fmt"
	"math/big"

	"github.com/MrShadowKiller/c-slang/pkg/ast"
	"github.com/MrShadowKiller/c-slang/pkg/ctype"
)

// Constant is a folded compile-time value: an integer with a big value and
// an integral (or pointer) type, or a 64-bit float.
type Constant interface {
	constant()
	Type() ctype.DataType
}

type IntegerConstant struct {
	Value    *big.Int
	DataType ctype.DataType
}

func (*IntegerConstant) constant() {}

func (c *IntegerConstant) Type() ctype.DataType { return c.DataType }

type FloatConstant struct {
	Value    float64
	DataType ctype.DataType
}

func (*FloatConstant) constant() {}

func (c *FloatConstant) Type() ctype.DataType { return c.DataType }

func errNotConstant() error {
	return fmt.Errorf("expression is not a compile-time constant")
}

// wrapToKind reduces v to the two's-complement value range of the given
// integral kind.
func wrapToKind(v *big.Int, k ctype.PrimaryKind) *big.Int {
	bits := uint(k.Size() * 8)

	mod := new(big.Int).Lsh(big.NewInt(1), bits)
	wrapped := new(big.Int).Mod(v, mod)
	if wrapped.Sign() < 0 {
		wrapped.Add(wrapped, mod)
	}

	if k.IsSigned() {
		half := new(big.Int).Lsh(big.NewInt(1), bits-1)
		if wrapped.Cmp(half) >= 0 {
			wrapped.Sub(wrapped, mod)
		}
	}

	return wrapped
}

func constKind(c Constant) ctype.PrimaryKind {
	switch t := c.Type().(type) {
	case *ctype.Primary:
		return t.PrimaryKind
	case *ctype.Enum:
		return ctype.SignedInt
	case *ctype.Pointer:
		return ctype.UnsignedInt
	default:
		return ctype.SignedInt
	}
}

func constIsZero(c Constant) bool {
	switch c := c.(type) {
	case *IntegerConstant:
		return c.Value.Sign() == 0
	case *FloatConstant:
		return c.Value == 0
	default:
		return false
	}
}

// convertConstant folds a conversion of c to the given scalar kind.
func convertConstant(c Constant, k ctype.PrimaryKind) Constant {
	if k.IsFloat() {
		switch c := c.(type) {
		case *IntegerConstant:
			f, _ := new(big.Float).SetInt(c.Value).Float64()
			if k == ctype.Float {
				f = float64(float32(f))
			}
			return &FloatConstant{Value: f, DataType: ctype.NewPrimary(k)}
		case *FloatConstant:
			f := c.Value
			if k == ctype.Float {
				f = float64(float32(f))
			}
			return &FloatConstant{Value: f, DataType: ctype.NewPrimary(k)}
		}
	}

	switch c := c.(type) {
	case *IntegerConstant:
		return &IntegerConstant{Value: wrapToKind(c.Value, k), DataType: ctype.NewPrimary(k)}
	case *FloatConstant:
		// Truncation toward zero.
		i, _ := big.NewFloat(c.Value).Int(nil)
		return &IntegerConstant{Value: wrapToKind(i, k), DataType: ctype.NewPrimary(k)}
	}

	return c
}

func boolConstant(b bool) *IntegerConstant {
	v := int64(0)
	if b {
		v = 1
	}

	return &IntegerConstant{Value: big.NewInt(v), DataType: ctype.NewPrimary(ctype.SignedInt)}
}

// evaluateConstant folds expr into a Constant, or fails with "expression is
// not a compile-time constant".
func (p *Processor) evaluateConstant(expr ast.Expression) (Constant, error) {
	switch expr := expr.(type) {
	case *ast.IntegerLiteral:
		t := typeIntegerLiteral(expr)
		return &IntegerConstant{Value: wrapToKind(expr.Value, t.PrimaryKind), DataType: t}, nil
	case *ast.FloatLiteral:
		t := ctype.Double
		if expr.IsFloat {
			t = ctype.Float
		}

		return convertConstant(&FloatConstant{Value: expr.Value, DataType: ctype.NewPrimary(ctype.Double)}, t), nil
	case *ast.CharLiteral:
		return &IntegerConstant{Value: big.NewInt(int64(expr.Value)), DataType: ctype.NewPrimary(ctype.SignedInt)}, nil
	case *ast.Identifier:
		entry, ok := p.table.Lookup(expr.Name)
		if !ok {
			return nil, expr.WrapError(fmt.Errorf("'%s' undeclared", expr.Name))
		}

		switch entry := entry.(type) {
		case *EnumeratorSymbol:
			return &IntegerConstant{Value: new(big.Int).Set(entry.Value), DataType: ctype.NewPrimary(ctype.SignedInt)}, nil
		case *DataSegmentVariable:
			// An array designator decays to its address, an opaque constant
			// pointer into the data segment.
			if arr, ok := entry.DataType.(*ctype.Array); ok {
				return &IntegerConstant{
					Value:    big.NewInt(int64(entry.Offset)),
					DataType: ctype.NewPointer(arr.Elem),
				}, nil
			}

			return nil, errNotConstant()
		default:
			return nil, errNotConstant()
		}
	case *ast.StringLiteral:
		offset := p.table.InternString(expr.Value)
		return &IntegerConstant{
			Value:    big.NewInt(int64(offset)),
			DataType: ctype.NewPointer(ctype.NewPrimary(ctype.SignedChar)),
		}, nil
	case *ast.UnaryExpression:
		return p.evaluateConstantUnary(expr)
	case *ast.BinaryExpression:
		return p.evaluateConstantBinary(expr)
	case *ast.ConditionalExpression:
		cond, err := p.evaluateConstant(expr.Condition)
		if err != nil {
			return nil, err
		}

		if constIsZero(cond) {
			return p.evaluateConstant(expr.Alternative)
		}

		return p.evaluateConstant(expr.Consequent)
	case *ast.CastExpression:
		target, err := p.resolveType(expr.Target)
		if err != nil {
			return nil, err
		}

		c, err := p.evaluateConstant(expr.Operand)
		if err != nil {
			return nil, err
		}

		switch target := target.(type) {
		case *ctype.Primary:
			return convertConstant(c, target.PrimaryKind), nil
		case *ctype.Enum:
			return convertConstant(c, ctype.SignedInt), nil
		case *ctype.Pointer:
			ic, ok := c.(*IntegerConstant)
			if !ok {
				return nil, errNotConstant()
			}

			return &IntegerConstant{Value: wrapToKind(ic.Value, ctype.UnsignedInt), DataType: target}, nil
		default:
			return nil, expr.WrapError(fmt.Errorf("conversion to non-scalar type requested"))
		}
	case *ast.SizeofType:
		target, err := p.resolveType(expr.Target)
		if err != nil {
			return nil, err
		}

		size, err := p.sizeofValue(target, expr.Position)
		if err != nil {
			return nil, err
		}

		return &IntegerConstant{Value: big.NewInt(int64(size)), DataType: ctype.NewPrimary(ctype.UnsignedLong)}, nil
	case *ast.SizeofExpression:
		w, err := p.processExpression(expr.Operand)
		if err != nil {
			return nil, err
		}

		size, err := p.sizeofValue(w.OriginalDataType, expr.Position)
		if err != nil {
			return nil, err
		}

		return &IntegerConstant{Value: big.NewInt(int64(size)), DataType: ctype.NewPrimary(ctype.UnsignedLong)}, nil
	default:
		return nil, errNotConstant()
	}
}

func (p *Processor) evaluateConstantUnary(expr *ast.UnaryExpression) (Constant, error) {
	if expr.Operator == "&" {
		// The address of a data-segment object is an opaque constant
		// pointer, usable in other data-segment initializers.
		ident, ok := expr.Operand.(*ast.Identifier)
		if !ok {
			return nil, errNotConstant()
		}

		entry, ok := p.table.Lookup(ident.Name)
		if !ok {
			return nil, ident.WrapError(fmt.Errorf("'%s' undeclared", ident.Name))
		}

		dsv, ok := entry.(*DataSegmentVariable)
		if !ok {
			return nil, errNotConstant()
		}

		return &IntegerConstant{
			Value:    big.NewInt(int64(dsv.Offset)),
			DataType: ctype.NewPointer(dsv.DataType),
		}, nil
	}

	c, err := p.evaluateConstant(expr.Operand)
	if err != nil {
		return nil, err
	}

	switch expr.Operator {
	case "+":
		return c, nil
	case "-":
		switch c := c.(type) {
		case *IntegerConstant:
			k := constKind(c)
			k = promoteKind(k)
			return &IntegerConstant{Value: wrapToKind(new(big.Int).Neg(c.Value), k), DataType: ctype.NewPrimary(k)}, nil
		case *FloatConstant:
			return &FloatConstant{Value: -c.Value, DataType: c.DataType}, nil
		}
	case "~":
		ic, ok := c.(*IntegerConstant)
		if !ok {
			return nil, expr.WrapError(fmt.Errorf("wrong type argument to unary '~' (have '%s')", c.Type()))
		}

		k := promoteKind(constKind(ic))
		return &IntegerConstant{Value: wrapToKind(new(big.Int).Not(ic.Value), k), DataType: ctype.NewPrimary(k)}, nil
	case "!":
		return boolConstant(constIsZero(c)), nil
	}

	return nil, errNotConstant()
}

func promoteKind(k ctype.PrimaryKind) ctype.PrimaryKind {
	switch k {
	case ctype.SignedChar, ctype.UnsignedChar, ctype.SignedShort, ctype.UnsignedShort:
		return ctype.SignedInt
	default:
		return k
	}
}

func (p *Processor) evaluateConstantBinary(expr *ast.BinaryExpression) (Constant, error) {
	left, err := p.evaluateConstant(expr.Left)
	if err != nil {
		return nil, err
	}

	// Logical operators short-circuit; the unreached operand is not folded.
	switch expr.Operator {
	case "&&":
		if constIsZero(left) {
			return boolConstant(false), nil
		}

		right, err := p.evaluateConstant(expr.Right)
		if err != nil {
			return nil, err
		}

		return boolConstant(!constIsZero(right)), nil
	case "||":
		if !constIsZero(left) {
			return boolConstant(true), nil
		}

		right, err := p.evaluateConstant(expr.Right)
		if err != nil {
			return nil, err
		}

		return boolConstant(!constIsZero(right)), nil
	}

	right, err := p.evaluateConstant(expr.Right)
	if err != nil {
		return nil, err
	}

	switch expr.Operator {
	case "<<", ">>":
		li, lok := left.(*IntegerConstant)
		ri, rok := right.(*IntegerConstant)
		if !lok || !rok {
			return nil, expr.WrapError(fmt.Errorf("invalid operands to binary '%s' (have '%s' and '%s')", expr.Operator, left.Type(), right.Type()))
		}

		k := promoteKind(constKind(li))
		shift := uint(ri.Value.Uint64())

		var v *big.Int
		if expr.Operator == "<<" {
			v = new(big.Int).Lsh(wrapToKind(li.Value, k), shift)
		} else {
			v = new(big.Int).Rsh(wrapToKind(li.Value, k), shift)
		}

		return &IntegerConstant{Value: wrapToKind(v, k), DataType: ctype.NewPrimary(k)}, nil
	}

	lk := constKind(left)
	rk := constKind(right)

	common := ctype.UsualArithmeticConversions(ctype.NewPrimary(lk), ctype.NewPrimary(rk))

	if common.PrimaryKind.IsFloat() {
		lf := toFloat(left)
		rf := toFloat(right)

		switch expr.Operator {
		case "+":
			return convertConstant(&FloatConstant{Value: lf + rf, DataType: common}, common.PrimaryKind), nil
		case "-":
			return convertConstant(&FloatConstant{Value: lf - rf, DataType: common}, common.PrimaryKind), nil
		case "*":
			return convertConstant(&FloatConstant{Value: lf * rf, DataType: common}, common.PrimaryKind), nil
		case "/":
			if rf == 0 {
				return nil, expr.WrapError(fmt.Errorf("division by zero in constant expression"))
			}

			return convertConstant(&FloatConstant{Value: lf / rf, DataType: common}, common.PrimaryKind), nil
		case "<":
			return boolConstant(lf < rf), nil
		case "<=":
			return boolConstant(lf <= rf), nil
		case ">":
			return boolConstant(lf > rf), nil
		case ">=":
			return boolConstant(lf >= rf), nil
		case "==":
			return boolConstant(lf == rf), nil
		case "!=":
			return boolConstant(lf != rf), nil
		default:
			return nil, expr.WrapError(fmt.Errorf("invalid operands to binary '%s' (have '%s' and '%s')", expr.Operator, left.Type(), right.Type()))
		}
	}

	li, lok := left.(*IntegerConstant)
	ri, rok := right.(*IntegerConstant)
	if !lok || !rok {
		return nil, errNotConstant()
	}

	k := common.PrimaryKind
	lv := wrapToKind(li.Value, k)
	rv := wrapToKind(ri.Value, k)

	var v *big.Int
	switch expr.Operator {
	case "+":
		v = new(big.Int).Add(lv, rv)
	case "-":
		v = new(big.Int).Sub(lv, rv)
	case "*":
		v = new(big.Int).Mul(lv, rv)
	case "/":
		if rv.Sign() == 0 {
			return nil, expr.WrapError(fmt.Errorf("division by zero in constant expression"))
		}

		v = new(big.Int).Quo(lv, rv)
	case "%":
		if rv.Sign() == 0 {
			return nil, expr.WrapError(fmt.Errorf("division by zero in constant expression"))
		}

		v = new(big.Int).Rem(lv, rv)
	case "&":
		v = new(big.Int).And(lv, rv)
	case "|":
		v = new(big.Int).Or(lv, rv)
	case "^":
		v = new(big.Int).Xor(lv, rv)
	case "<":
		return boolConstant(lv.Cmp(rv) < 0), nil
	case "<=":
		return boolConstant(lv.Cmp(rv) <= 0), nil
	case ">":
		return boolConstant(lv.Cmp(rv) > 0), nil
	case ">=":
		return boolConstant(lv.Cmp(rv) >= 0), nil
	case "==":
		return boolConstant(lv.Cmp(rv) == 0), nil
	case "!=":
		return boolConstant(lv.Cmp(rv) != 0), nil
	default:
		return nil, expr.WrapError(fmt.Errorf("invalid operands to binary '%s' (have '%s' and '%s')", expr.Operator, left.Type(), right.Type()))
	}

	wrapped := wrapToKind(v, k)
	if wrapped.Cmp(v) != 0 {
		p.warnf(expr.Position, "integer overflow in expression of type '%s'", common)
	}

	return &IntegerConstant{Value: wrapped, DataType: common}, nil
}

func toFloat(c Constant) float64 {
	switch c := c.(type) {
	case *IntegerConstant:
		f, _ := new(big.Float).SetInt(c.Value).Float64()
		return f
	case *FloatConstant:
		return c.Value
	default:
		return 0
	}
}

// foldArrayLength folds an array size expression to a non-negative element
// count.
func (p *Processor) foldArrayLength(expr ast.Expression) (int, error) {
	c, err := p.evaluateConstant(expr)
	if err != nil {
		return 0, fmt.Errorf("Variable Length Arrays not supported")
	}

	ic, ok := c.(*IntegerConstant)
	if !ok || !ctype.IsInteger(ic.DataType) {
		return 0, fmt.Errorf("Variable Length Arrays not supported")
	}

	if ic.Value.Sign() < 0 {
		return 0, fmt.Errorf("size of array is negative")
	}

	return int(ic.Value.Int64()), nil
}

// isNullPointerConstant reports whether expr is an integer constant
// expression with value zero.
func (p *Processor) isNullPointerConstant(expr ast.Expression) bool {
	c, err := p.evaluateConstant(expr)
	if err != nil {
		return false
	}

	ic, ok := c.(*IntegerConstant)
	if !ok || !ctype.IsInteger(ic.DataType) {
		return false
	}

	return ic.Value.Sign() == 0
}

// typeIntegerLiteral types an integer constant per C17: the smallest of
// signed int, signed long and unsigned long that holds it, where hex and
// octal literals may also take the unsigned type of each rank.
func typeIntegerLiteral(lit *ast.IntegerLiteral) *ctype.Primary {
	v := lit.Value

	fitsSigned := func(bits uint) bool {
		max := new(big.Int).Lsh(big.NewInt(1), bits-1)
		return v.Cmp(max) < 0
	}

	fitsUnsigned := func(bits uint) bool {
		max := new(big.Int).Lsh(big.NewInt(1), bits)
		return v.Cmp(max) < 0
	}

	hexOrOctal := lit.Base == 8 || lit.Base == 16

	switch {
	case fitsSigned(32):
		return ctype.NewPrimary(ctype.SignedInt)
	case hexOrOctal && fitsUnsigned(32):
		return ctype.NewPrimary(ctype.UnsignedInt)
	case fitsSigned(64):
		return ctype.NewPrimary(ctype.SignedLong)
	default:
		return ctype.NewPrimary(ctype.UnsignedLong)
	}
}
