package processor_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MrShadowKiller/c-slang/pkg/ast"
	"github.com/MrShadowKiller/c-slang/pkg/ir"
)

func TestUndeclaredIdentifier(t *testing.T) {
	root := unit(
		mainFn(exprStmt(assign(ident("x"), lit(1))), ret(lit(0))),
	)

	_, _, err := processUnit(t, root)
	requireProcessingError(t, err, "'x' undeclared")
}

func TestAddressOfRequiresLvalue(t *testing.T) {
	root := unit(
		mainFn(
			declVar("p", ptrT(intT()), nil),
			exprStmt(assign(
				ident("p"),
				&ast.UnaryExpression{Operator: "&", Operand: bin("+", lit(1), lit(2))},
			)),
			ret(lit(0)),
		),
	)

	_, _, err := processUnit(t, root)
	requireProcessingError(t, err, "lvalue required for unary '&' operand")
}

func TestDereferenceNonPointer(t *testing.T) {
	root := unit(
		mainFn(
			declVar("x", intT(), single(lit(1))),
			exprStmt(assign(ident("x"), &ast.UnaryExpression{Operator: "*", Operand: ident("x")})),
			ret(lit(0)),
		),
	)

	_, _, err := processUnit(t, root)
	requireProcessingError(t, err, "cannot dereference non-pointer type")
}

func TestSizeofFunctionRejected(t *testing.T) {
	root := unit(
		fnDef("f", nil, nil),
		mainFn(
			exprStmt(&ast.SizeofExpression{Operand: ident("f")}),
			ret(lit(0)),
		),
	)

	_, _, err := processUnit(t, root)
	requireProcessingError(t, err, "invalid application of 'sizeof' to function type")
}

func TestSizeofValues(t *testing.T) {
	r := require.New(t)

	// unsigned long n = sizeof(long); unsigned long m = sizeof(int[3]);
	root := unit(
		declVar("n", ulongT(), single(&ast.SizeofType{Target: longT()})),
		declVar("m", ulongT(), single(&ast.SizeofType{Target: arrT(intT(), 3)})),
		mainFn(ret(lit(0))),
	)

	out, _, err := processUnit(t, root)
	r.NoError(err)

	r.Equal(`\08\00\00\00\00\00\00\00\0c\00\00\00\00\00\00\00`, out.DataSegmentByteStr)
}

func TestIncrementRequiresModifiableLvalue(t *testing.T) {
	root := unit(
		&ast.EnumDeclaration{Tag: "e", Members: []ast.EnumMember{{Name: "A"}}},
		mainFn(
			exprStmt(&ast.PrefixExpression{Operator: "++", Operand: ident("A")}),
			ret(lit(0)),
		),
	)

	_, _, err := processUnit(t, root)
	requireProcessingError(t, err, "argument to increment is not a modifiable lvalue")
}

func TestAssignmentToConstRejected(t *testing.T) {
	constInt := &ast.PrimaryType{Name: "signed int", Const: true}

	root := unit(
		mainFn(
			declVar("c", constInt, single(lit(1))),
			exprStmt(assign(ident("c"), lit(2))),
			ret(lit(0)),
		),
	)

	_, _, err := processUnit(t, root)
	requireProcessingError(t, err, "assignment to non-modifiable lvalue with type 'const signed int'")
}

func TestAssignmentToRvalueRejected(t *testing.T) {
	root := unit(
		mainFn(
			exprStmt(assign(bin("+", lit(1), lit(2)), lit(3))),
			ret(lit(0)),
		),
	)

	_, _, err := processUnit(t, root)
	requireProcessingError(t, err, "assignment to expression with type 'signed int'")
}

func TestMemberAccessErrors(t *testing.T) {
	structType := &ast.StructType{
		Tag:    "X",
		Fields: []ast.StructField{{Name: "x", Type: intT()}},
	}

	t.Run("missing member", func(t *testing.T) {
		root := unit(
			&ast.Declaration{
				Specifier:   structType,
				Declarators: []ast.InitDeclarator{{Name: "a", Type: structType}},
			},
			mainFn(
				exprStmt(assign(&ast.MemberExpression{Object: ident("a"), Member: "y"}, lit(1))),
				ret(lit(0)),
			),
		)

		_, _, err := processUnit(t, root)
		requireProcessingError(t, err, "struct X has no member named 'y'")
	})

	t.Run("not a struct", func(t *testing.T) {
		root := unit(
			mainFn(
				declVar("i", intT(), single(lit(1))),
				exprStmt(assign(&ast.MemberExpression{Object: ident("i"), Member: "x"}, lit(1))),
				ret(lit(0)),
			),
		)

		_, _, err := processUnit(t, root)
		requireProcessingError(t, err, "request for member 'x' in something that is not a structure")
	})
}

func TestPointerArithmeticScaling(t *testing.T) {
	r := require.New(t)

	// long *q = p + 2; the index scales by sizeof(long).
	root := unit(
		mainFn(
			declVar("p", ptrT(longT()), nil),
			declVar("q", ptrT(longT()), single(bin("+", ident("p"), lit(2)))),
			ret(lit(0)),
		),
	)

	out, _, err := processUnit(t, root)
	r.NoError(err)

	var store *ir.MemoryStore
	for _, stmt := range out.Functions[0].Body {
		if s, ok := stmt.(*ir.MemoryStore); ok {
			if addr, isLocal := s.Addr.(*ir.LocalAddress); isLocal && addr.Offset == -8 {
				store = s
			}
		}
	}

	r.NotNil(store)

	sum := store.Value.(*ir.BinaryExpression)
	r.Equal("+", sum.Operator)

	scale := sum.Right.(*ir.BinaryExpression)
	r.Equal("*", scale.Operator)
	r.Equal(int64(8), scale.Right.(*ir.IntegerConstant).Value)
}

func TestPointerDifference(t *testing.T) {
	r := require.New(t)

	// long d = q - p; yields a signed long element count.
	root := unit(
		mainFn(
			declVar("p", ptrT(intT()), nil),
			declVar("q", ptrT(intT()), nil),
			declVar("d", longT(), single(bin("-", ident("q"), ident("p")))),
			ret(lit(0)),
		),
	)

	out, _, err := processUnit(t, root)
	r.NoError(err)

	var store *ir.MemoryStore
	for _, stmt := range out.Functions[0].Body {
		if s, ok := stmt.(*ir.MemoryStore); ok {
			if addr, isLocal := s.Addr.(*ir.LocalAddress); isLocal && addr.Offset == -16 {
				store = s
			}
		}
	}

	r.NotNil(store)

	div := store.Value.(*ir.BinaryExpression)
	r.Equal("/", div.Operator)
	r.Equal(int64(4), div.Right.(*ir.IntegerConstant).Value)
	r.Equal("signed long", div.Type.String())
}

func TestCallArgumentTypeMismatch(t *testing.T) {
	structType := &ast.StructType{
		Tag:    "S",
		Fields: []ast.StructField{{Name: "x", Type: intT()}},
	}

	root := unit(
		&ast.Declaration{
			Specifier:   structType,
			Declarators: []ast.InitDeclarator{{Name: "s", Type: structType}},
		},
		mainFn(
			exprStmt(call("print_int", ident("s"))),
			ret(lit(0)),
		),
	)

	_, _, err := processUnit(t, root)
	requireProcessingError(t, err, "cannot assign function call argument to parameter")
}

func TestScalarRequired(t *testing.T) {
	structType := &ast.StructType{
		Tag:    "S",
		Fields: []ast.StructField{{Name: "x", Type: intT()}},
	}

	root := unit(
		&ast.Declaration{
			Specifier:   structType,
			Declarators: []ast.InitDeclarator{{Name: "s", Type: structType}},
		},
		mainFn(
			&ast.IfStatement{Condition: ident("s"), Then: block()},
			ret(lit(0)),
		),
	)

	_, _, err := processUnit(t, root)
	requireProcessingError(t, err, "used 'struct S' where scalar is required")
}

func TestVoidValueRejected(t *testing.T) {
	root := unit(
		mainFn(
			declVar("x", intT(), single(call("print_int", lit(1)))),
			ret(lit(0)),
		),
	)

	_, _, err := processUnit(t, root)
	requireProcessingError(t, err, "void value not ignored as it should be")
}

func TestUnsignedComparisonUsesCommonType(t *testing.T) {
	r := require.New(t)

	// if (u < i): the comparison runs in unsigned int after conversions.
	root := unit(
		mainFn(
			declVar("u", uintT(), single(lit(1))),
			declVar("i", intT(), single(lit(2))),
			&ast.IfStatement{
				Condition: bin("<", ident("u"), ident("i")),
				Then:      block(exprStmt(call("print_int", lit(1)))),
			},
			ret(lit(0)),
		),
	)

	out, _, err := processUnit(t, root)
	r.NoError(err)

	var sel *ir.SelectionStatement
	for _, stmt := range out.Functions[0].Body {
		if s, ok := stmt.(*ir.SelectionStatement); ok {
			sel = s
		}
	}

	r.NotNil(sel)

	cmp := sel.Condition.(*ir.BinaryExpression)
	r.Equal("unsigned int", cmp.Type.String())

	// The signed operand carries an explicit conversion.
	conv := cmp.Right.(*ir.ConvertExpression)
	r.Equal("signed int", conv.From.String())
	r.Equal("unsigned int", conv.To.String())
}

func TestPostfixIncrementSequencing(t *testing.T) {
	r := require.New(t)

	root := unit(
		mainFn(
			declVar("x", intT(), single(lit(1))),
			declVar("y", intT(), single(&ast.PostfixExpression{Operator: "++", Operand: ident("x")})),
			ret(lit(0)),
		),
	)

	out, _, err := processUnit(t, root)
	r.NoError(err)

	var store *ir.MemoryStore
	for _, stmt := range out.Functions[0].Body {
		if s, ok := stmt.(*ir.MemoryStore); ok {
			if addr, isLocal := s.Addr.(*ir.LocalAddress); isLocal && addr.Offset == -8 {
				store = s
			}
		}
	}

	r.NotNil(store)

	// y's initializer sequences the increment after the loaded value.
	post := store.Value.(*ir.PostStatementExpression)
	r.Len(post.Statements, 1)

	load := post.Expr.(*ir.MemoryLoad)
	r.Equal(-4, load.Addr.(*ir.LocalAddress).Offset)
}
