// Package ir defines the typed, memory-addressed intermediate representation
// the processor produces. Every aggregate value has already been unpacked
// into primary scalar pieces; the WebAssembly generator consuming these nodes
// never re-derives types, offsets or conversions.
package ir

import (
	"fmt"

	"github.com/MrShadowKiller/c-slang/pkg/ctype"
)

// Root is the processed translation unit.
type Root struct {
	Functions []*FunctionDefinition

	// DataSegmentByteStr encodes the initialized data segment with each byte
	// rendered as \XX (two hex digits), little-endian per scalar.
	DataSegmentByteStr     string
	DataSegmentSizeInBytes int

	ExternalFunctions []ExternalFunction

	// FunctionTable lists, in index order, the functions whose address was
	// taken or that were referenced by name as a value.
	FunctionTable []string
}

// ExternalFunction is an imported runtime function the generator must emit
// an import for.
type ExternalFunction struct {
	Module string
	Name   string
	Type   *ctype.Function
}

// Slot is one unpacked primary piece of a parameter or return value: its
// scalar type and byte offset within the region.
type Slot struct {
	Offset int
	Type   ctype.DataType
}

type FunctionDefinition struct {
	Name string

	Parameters []Slot
	Returns    []Slot

	SizeOfLocals     int
	SizeOfParameters int
	SizeOfReturn     int

	Body []Statement
}

type Statement interface {
	statement()
}

// MemoryStore writes one scalar Value of the given scalar type to Addr.
type MemoryStore struct {
	Addr  Expression
	Value Expression
	Type  ctype.DataType
}

func (*MemoryStore) statement() {}

type SelectionStatement struct {
	Condition Expression
	Then      []Statement
	Else      []Statement
}

func (*SelectionStatement) statement() {}

// SwitchStatement keeps its folded integer case values so the generator can
// emit a branch table; fallthrough between consecutive cases is preserved by
// the case order.
type SwitchStatement struct {
	Condition  Expression
	Cases      []SwitchCase
	Default    []Statement
	HasDefault bool
}

func (*SwitchStatement) statement() {}

type SwitchCase struct {
	Value int64
	Body  []Statement
}

type WhileStatement struct {
	Condition Expression
	Body      []Statement
}

func (*WhileStatement) statement() {}

type DoWhileStatement struct {
	Body      []Statement
	Condition Expression
}

func (*DoWhileStatement) statement() {}

type ForStatement struct {
	Init      []Statement
	Condition Expression
	Update    []Statement
	Body      []Statement
}

func (*ForStatement) statement() {}

type BreakStatement struct{}

func (*BreakStatement) statement() {}

type ContinueStatement struct{}

func (*ContinueStatement) statement() {}

// ReturnStatement transfers control back to the caller. The returned value,
// if any, has already been stored into the return area by preceding
// MemoryStore statements.
type ReturnStatement struct{}

func (*ReturnStatement) statement() {}

// FunctionCall invokes a function for its side effects. Args is the
// concatenation of every argument's unpacked scalar pieces in layout order.
// Exactly one of Name (direct or external call) or Index (indirect call
// through the function table) is set.
type FunctionCall struct {
	Name     string
	External bool
	Index    Expression

	Args     []Expression
	ArgTypes []ctype.DataType
}

func (*FunctionCall) statement() {}

type Expression interface {
	expression()
}

type BinaryExpression struct {
	Left     Expression
	Operator string
	Right    Expression

	// Type is the common operand type the operation is performed in.
	Type ctype.DataType
}

func (*BinaryExpression) expression() {}

type UnaryExpression struct {
	Operator string
	Operand  Expression

	Type ctype.DataType
}

func (*UnaryExpression) expression() {}

// ConvertExpression materializes an implicit or explicit scalar conversion
// with explicit source and target types.
type ConvertExpression struct {
	From    ctype.DataType
	To      ctype.DataType
	Operand Expression
}

func (*ConvertExpression) expression() {}

type IntegerConstant struct {
	Value int64
	Type  ctype.DataType
}

func (*IntegerConstant) expression() {}

type FloatConstant struct {
	Value float64
	Type  ctype.DataType
}

func (*FloatConstant) expression() {}

// LocalAddress is a frame-pointer-relative address; offsets are negative for
// locals and non-negative for parameters.
type LocalAddress struct {
	Offset int
}

func (*LocalAddress) expression() {}

type DataSegmentAddress struct {
	Offset int
}

func (*DataSegmentAddress) expression() {}

// ReturnAreaAddress addresses the callee's return region, both when a
// function stores its return value and when a caller loads it back after a
// call.
type ReturnAreaAddress struct {
	Offset int
}

func (*ReturnAreaAddress) expression() {}

// FunctionTableIndex is the value of a function designator: its stable index
// in the function table.
type FunctionTableIndex struct {
	Index int
}

func (*FunctionTableIndex) expression() {}

type MemoryLoad struct {
	Addr Expression
	Type ctype.DataType
}

func (*MemoryLoad) expression() {}

// ConditionalExpression selects between two scalar values; a struct-valued
// conditional produces one of these per unpacked primary piece.
type ConditionalExpression struct {
	Condition Expression
	Then      Expression
	Else      Expression

	Type ctype.DataType
}

func (*ConditionalExpression) expression() {}

// PreStatementExpression sequences side-effect statements before its value
// is produced (prefix increment, calls in value position).
type PreStatementExpression struct {
	Statements []Statement
	Expr       Expression
}

func (*PreStatementExpression) expression() {}

// PostStatementExpression sequences side-effect statements after its value
// is produced (postfix increment).
type PostStatementExpression struct {
	Statements []Statement
	Expr       Expression
}

func (*PostStatementExpression) expression() {}

// ExpressionWrapper is the public shape of any processed expression: the
// original C type and one scalar expression per unpacked primary piece, in
// layout order. Scalar expressions carry exactly one element.
type ExpressionWrapper struct {
	OriginalDataType ctype.DataType
	Exprs            []Expression
}

// Scalar returns the single expression of a scalar wrapper.
func (w ExpressionWrapper) Scalar() Expression {
	if len(w.Exprs) != 1 {
		panic(fmt.Sprintf("bug: scalar access on wrapper with %d expressions", len(w.Exprs)))
	}

	return w.Exprs[0]
}
