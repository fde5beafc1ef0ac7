package processor_test

import (
	"errors"
	"math/big"
	"testing"

	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/require"

	"github.com/MrShadowKiller/c-slang/pkg/ast"
	"github.com/MrShadowKiller/c-slang/pkg/ir"
	"github.com/MrShadowKiller/c-slang/pkg/processor"
)

func processUnit(t *testing.T, root *ast.CAstRoot) (*ir.Root, []processor.Warning, error) {
	t.Helper()

	p, err := processor.New(slogt.New(t), processor.Config{})
	require.NoError(t, err)

	return p.Process(root)
}

// requireProcessingError asserts the exact canonical message under the
// position wrapper.
func requireProcessingError(t *testing.T, err error, want string) {
	t.Helper()

	require.Error(t, err)

	var posErr processor.PositionError
	if errors.As(err, &posErr) {
		require.EqualError(t, posErr.Err, want)
		return
	}

	require.EqualError(t, err, want)
}

func unit(children ...ast.ExternalDeclaration) *ast.CAstRoot {
	return &ast.CAstRoot{
		IncludedModules: []string{"source_stdlib"},
		Children:        children,
	}
}

func intT() *ast.PrimaryType    { return &ast.PrimaryType{Name: "signed int"} }
func uintT() *ast.PrimaryType   { return &ast.PrimaryType{Name: "unsigned int"} }
func longT() *ast.PrimaryType   { return &ast.PrimaryType{Name: "signed long"} }
func ulongT() *ast.PrimaryType  { return &ast.PrimaryType{Name: "unsigned long"} }
func charT() *ast.PrimaryType   { return &ast.PrimaryType{Name: "signed char"} }
func doubleT() *ast.PrimaryType { return &ast.PrimaryType{Name: "double"} }
func voidT() *ast.VoidType      { return &ast.VoidType{} }
func ptrT(p ast.Type) ast.Type  { return &ast.PointerType{Pointee: p} }

func arrT(e ast.Type, n int64) ast.Type {
	return &ast.ArrayType{Elem: e, Length: lit(n)}
}

func lit(v int64) *ast.IntegerLiteral {
	return &ast.IntegerLiteral{Value: big.NewInt(v), Base: 10}
}

func neg(e ast.Expression) *ast.UnaryExpression {
	return &ast.UnaryExpression{Operator: "-", Operand: e}
}

func ident(name string) *ast.Identifier {
	return &ast.Identifier{Name: name}
}

func bin(op string, l, r ast.Expression) *ast.BinaryExpression {
	return &ast.BinaryExpression{Left: l, Operator: op, Right: r}
}

func assign(l, r ast.Expression) *ast.AssignmentExpression {
	return &ast.AssignmentExpression{Lvalue: l, Operator: "=", Rvalue: r}
}

func call(name string, args ...ast.Expression) *ast.CallExpression {
	return &ast.CallExpression{Callee: ident(name), Args: args}
}

func single(e ast.Expression) *ast.InitializerSingle {
	return &ast.InitializerSingle{Expr: e}
}

func initList(elems ...ast.Initializer) *ast.InitializerList {
	return &ast.InitializerList{Elems: elems}
}

func declVar(name string, t ast.Type, init ast.Initializer) *ast.Declaration {
	return &ast.Declaration{
		Specifier: t,
		Declarators: []ast.InitDeclarator{
			{Name: name, Type: t, Initializer: init},
		},
	}
}

func exprStmt(e ast.Expression) *ast.ExpressionStatement {
	return &ast.ExpressionStatement{Expr: e}
}

func ret(e ast.Expression) *ast.ReturnStatement {
	return &ast.ReturnStatement{Value: e}
}

func block(items ...ast.BlockItem) *ast.Block {
	return &ast.Block{Items: items}
}

func fnDef(name string, retType ast.Type, params []ast.ParameterDeclaration, body ...ast.BlockItem) *ast.FunctionDefinition {
	if retType == nil {
		retType = voidT()
	}

	return &ast.FunctionDefinition{
		Name: name,
		Type: &ast.FunctionType{Return: retType, Parameters: params},
		Body: block(body...),
	}
}

func mainFn(body ...ast.BlockItem) *ast.FunctionDefinition {
	return fnDef("main", intT(), nil, body...)
}

func param(name string, t ast.Type) ast.ParameterDeclaration {
	return ast.ParameterDeclaration{Name: name, Type: t}
}
