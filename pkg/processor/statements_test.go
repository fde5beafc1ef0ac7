package processor_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MrShadowKiller/c-slang/pkg/ast"
	"github.com/MrShadowKiller/c-slang/pkg/ir"
)

func TestBreakOutsideLoop(t *testing.T) {
	root := unit(
		mainFn(&ast.BreakStatement{}, ret(lit(0))),
	)

	_, _, err := processUnit(t, root)
	requireProcessingError(t, err, "break statement not within a switch or loop body")
}

func TestContinueOutsideLoop(t *testing.T) {
	root := unit(
		mainFn(&ast.ContinueStatement{}, ret(lit(0))),
	)

	_, _, err := processUnit(t, root)
	requireProcessingError(t, err, "continue statement not within a loop body")
}

func TestContinueInsideSwitchRejected(t *testing.T) {
	root := unit(
		mainFn(
			&ast.SwitchStatement{
				Condition: lit(1),
				Cases: []ast.SwitchCase{
					{Value: lit(1), Body: []ast.BlockItem{&ast.ContinueStatement{}}},
				},
			},
			ret(lit(0)),
		),
	)

	_, _, err := processUnit(t, root)
	requireProcessingError(t, err, "continue statement not within a loop body")
}

func TestSwitchQuantityMustBeInteger(t *testing.T) {
	root := unit(
		mainFn(
			declVar("d", doubleT(), single(lit(1))),
			&ast.SwitchStatement{Condition: ident("d")},
			ret(lit(0)),
		),
	)

	_, _, err := processUnit(t, root)
	requireProcessingError(t, err, "switch quantity is not an integer")
}

func TestCaseValueMustBeConstant(t *testing.T) {
	root := unit(
		mainFn(
			declVar("x", intT(), single(lit(1))),
			&ast.SwitchStatement{
				Condition: lit(1),
				Cases: []ast.SwitchCase{
					{Value: ident("x")},
				},
			},
			ret(lit(0)),
		),
	)

	_, _, err := processUnit(t, root)
	requireProcessingError(t, err, "case value not an integer constant expression")
}

func TestDuplicateCaseValue(t *testing.T) {
	root := unit(
		mainFn(
			&ast.SwitchStatement{
				Condition: lit(1),
				Cases: []ast.SwitchCase{
					{Value: lit(2)},
					{Value: bin("+", lit(1), lit(1))},
				},
			},
			ret(lit(0)),
		),
	)

	_, _, err := processUnit(t, root)
	requireProcessingError(t, err, "duplicate case value")
}

func TestSwitchLowering(t *testing.T) {
	r := require.New(t)

	// Enumerator case values fold; break survives in the case body.
	root := unit(
		&ast.EnumDeclaration{Tag: "color", Members: []ast.EnumMember{
			{Name: "RED"},
			{Name: "GREEN", Value: lit(5)},
		}},
		mainFn(
			declVar("c", intT(), single(ident("GREEN"))),
			&ast.SwitchStatement{
				Condition: ident("c"),
				Cases: []ast.SwitchCase{
					{Value: ident("RED"), Body: []ast.BlockItem{
						exprStmt(call("print_int", lit(0))),
						&ast.BreakStatement{},
					}},
					{Value: ident("GREEN"), Body: []ast.BlockItem{
						exprStmt(call("print_int", lit(1))),
					}},
				},
				DefaultBody: []ast.BlockItem{exprStmt(call("print_int", lit(9)))},
				HasDefault:  true,
			},
			ret(lit(0)),
		),
	)

	out, _, err := processUnit(t, root)
	r.NoError(err)

	var sw *ir.SwitchStatement
	for _, stmt := range out.Functions[0].Body {
		if s, ok := stmt.(*ir.SwitchStatement); ok {
			sw = s
		}
	}

	r.NotNil(sw)
	r.Len(sw.Cases, 2)
	r.Equal(int64(0), sw.Cases[0].Value)
	r.Equal(int64(5), sw.Cases[1].Value)
	r.True(sw.HasDefault)
	r.Len(sw.Cases[0].Body, 2)
}

func TestWhileLoopLowering(t *testing.T) {
	r := require.New(t)

	// int i = 0; while (i < 3) { i = i + 1; }
	root := unit(
		mainFn(
			declVar("i", intT(), single(lit(0))),
			&ast.WhileStatement{
				Condition: bin("<", ident("i"), lit(3)),
				Body: block(
					exprStmt(assign(ident("i"), bin("+", ident("i"), lit(1)))),
				),
			},
			ret(lit(0)),
		),
	)

	out, _, err := processUnit(t, root)
	r.NoError(err)

	var loop *ir.WhileStatement
	for _, stmt := range out.Functions[0].Body {
		if s, ok := stmt.(*ir.WhileStatement); ok {
			loop = s
		}
	}

	r.NotNil(loop)
	r.Len(loop.Body, 1)
	_, isStore := loop.Body[0].(*ir.MemoryStore)
	r.True(isStore)
}

func TestForLoopScoping(t *testing.T) {
	r := require.New(t)

	// for (int i = 0; i < 2; i++) { int i2 = i; } and a fresh i afterwards.
	root := unit(
		mainFn(
			&ast.ForStatement{
				Init:      declVar("i", intT(), single(lit(0))),
				Condition: bin("<", ident("i"), lit(2)),
				Update:    &ast.PostfixExpression{Operator: "++", Operand: ident("i")},
				Body: block(
					declVar("i2", intT(), single(ident("i"))),
				),
			},
			declVar("i", longT(), single(lit(7))),
			ret(lit(0)),
		),
	)

	out, _, err := processUnit(t, root)
	r.NoError(err)

	// Both i's plus i2 occupy distinct frame slots.
	r.Equal(4+4+8, out.Functions[0].SizeOfLocals)

	var loop *ir.ForStatement
	for _, stmt := range out.Functions[0].Body {
		if s, ok := stmt.(*ir.ForStatement); ok {
			loop = s
		}
	}

	r.NotNil(loop)
	r.Len(loop.Init, 1)
	r.NotNil(loop.Condition)
	r.Len(loop.Update, 1)
}

func TestRedeclarationErrors(t *testing.T) {
	t.Run("variable", func(t *testing.T) {
		root := unit(
			mainFn(
				declVar("x", intT(), single(lit(1))),
				declVar("x", intT(), single(lit(2))),
				ret(lit(0)),
			),
		)

		_, _, err := processUnit(t, root)
		requireProcessingError(t, err, "redeclaration of 'x'")
	})

	t.Run("inner scope shadows", func(t *testing.T) {
		root := unit(
			mainFn(
				declVar("x", intT(), single(lit(1))),
				block(declVar("x", longT(), single(lit(2)))),
				ret(lit(0)),
			),
		)

		_, _, err := processUnit(t, root)
		require.NoError(t, err)
	})

	t.Run("parameter", func(t *testing.T) {
		root := unit(
			fnDef("f", nil, []ast.ParameterDeclaration{
				param("a", intT()),
				param("a", longT()),
			}),
			mainFn(ret(lit(0))),
		)

		_, _, err := processUnit(t, root)
		requireProcessingError(t, err, "redefinition of parameter 'a'")
	})

	t.Run("function redefinition", func(t *testing.T) {
		root := unit(
			fnDef("f", nil, nil),
			fnDef("f", nil, nil),
			mainFn(ret(lit(0))),
		)

		_, _, err := processUnit(t, root)
		requireProcessingError(t, err, "redefinition of 'f'")
	})

	t.Run("compatible prototype then definition", func(t *testing.T) {
		root := unit(
			&ast.Declaration{
				Specifier: intT(),
				Declarators: []ast.InitDeclarator{{
					Name: "f",
					Type: &ast.FunctionType{Return: intT(), Parameters: []ast.ParameterDeclaration{param("", intT())}},
				}},
			},
			fnDef("f", intT(), []ast.ParameterDeclaration{param("x", intT())},
				ret(ident("x")),
			),
			mainFn(ret(call("f", lit(1)))),
		)

		_, _, err := processUnit(t, root)
		require.NoError(t, err)
	})

	t.Run("wrong kind of tag", func(t *testing.T) {
		root := unit(
			&ast.EnumDeclaration{Tag: "T", Members: []ast.EnumMember{{Name: "A"}}},
			&ast.Declaration{
				Specifier: &ast.StructType{Tag: "T", Fields: []ast.StructField{{Name: "x", Type: intT()}}},
			},
			mainFn(ret(lit(0))),
		)

		_, _, err := processUnit(t, root)
		requireProcessingError(t, err, "redefinition of 'T' as wrong kind of tag")
	})
}

func TestDeclarationErrors(t *testing.T) {
	t.Run("multiple storage classes", func(t *testing.T) {
		root := unit(
			&ast.Declaration{
				StorageClasses: []ast.StorageClass{ast.StorageClassStatic, ast.StorageClassExtern},
				Specifier:      intT(),
				Declarators:    []ast.InitDeclarator{{Name: "x", Type: intT()}},
			},
			mainFn(ret(lit(0))),
		)

		_, _, err := processUnit(t, root)
		requireProcessingError(t, err, "multiple storage class specifiers: 'static' and 'extern'")
	})

	t.Run("empty declaration", func(t *testing.T) {
		root := unit(
			&ast.Declaration{Specifier: intT()},
			mainFn(ret(lit(0))),
		)

		_, _, err := processUnit(t, root)
		requireProcessingError(t, err, "empty declaration")
	})

	t.Run("useless storage class", func(t *testing.T) {
		root := unit(
			&ast.Declaration{
				StorageClasses: []ast.StorageClass{ast.StorageClassStatic},
				Specifier:      &ast.StructType{Tag: "S", Fields: []ast.StructField{{Name: "x", Type: intT()}}},
			},
			mainFn(ret(lit(0))),
		)

		_, _, err := processUnit(t, root)
		requireProcessingError(t, err, "useless storage class qualifier in empty declaration")
	})

	t.Run("missing type specifier", func(t *testing.T) {
		root := unit(
			&ast.Declaration{
				Declarators: []ast.InitDeclarator{{Name: "x"}},
			},
			mainFn(ret(lit(0))),
		)

		_, _, err := processUnit(t, root)
		requireProcessingError(t, err, "at least 1 type specifier required for declaration of 'x'")
	})

	t.Run("struct has no members", func(t *testing.T) {
		root := unit(
			&ast.Declaration{
				Specifier: &ast.StructType{Tag: "S", Fields: []ast.StructField{}},
			},
			mainFn(ret(lit(0))),
		)

		_, _, err := processUnit(t, root)
		requireProcessingError(t, err, "struct has no members")
	})

	t.Run("incomplete type", func(t *testing.T) {
		structRef := &ast.StructType{Tag: "B"}

		root := unit(
			&ast.Declaration{
				Specifier:   structRef,
				Declarators: []ast.InitDeclarator{{Name: "b", Type: structRef}},
			},
			mainFn(ret(lit(0))),
		)

		_, _, err := processUnit(t, root)
		requireProcessingError(t, err, "'B' is an incomplete type")
	})

	t.Run("variable length array", func(t *testing.T) {
		root := unit(
			mainFn(
				declVar("n", intT(), single(lit(3))),
				declVar("a", &ast.ArrayType{Elem: intT(), Length: ident("n")}, nil),
				ret(lit(0)),
			),
		)

		_, _, err := processUnit(t, root)
		requireProcessingError(t, err, "Variable Length Arrays not supported")
	})
}

func TestSelfReferentialStruct(t *testing.T) {
	r := require.New(t)

	// struct list { int value; struct list *next; };
	listType := &ast.StructType{
		Tag: "list",
		Fields: []ast.StructField{
			{Name: "value", Type: intT()},
			{Name: "next", Type: &ast.PointerType{Pointee: &ast.StructType{Tag: "list"}}},
		},
	}

	root := unit(
		&ast.Declaration{Specifier: listType},
		mainFn(
			declVar("head", &ast.StructType{Tag: "list"}, nil),
			exprStmt(assign(
				&ast.MemberExpression{Object: ident("head"), Member: "next"},
				lit(0),
			)),
			exprStmt(assign(
				&ast.MemberExpression{Object: ident("head"), Member: "next"},
				&ast.UnaryExpression{Operator: "&", Operand: ident("head")},
			)),
			ret(lit(0)),
		),
	)

	out, _, err := processUnit(t, root)
	r.NoError(err)

	// value (4) + self pointer (4)
	r.Equal(8, out.Functions[0].SizeOfLocals)
}

func TestVoidReturnWithValueRejected(t *testing.T) {
	root := unit(
		fnDef("f", nil, nil, ret(lit(1))),
		mainFn(ret(lit(0))),
	)

	_, _, err := processUnit(t, root)
	requireProcessingError(t, err, "void function should not return a value")
}

func TestReturnTypeChecked(t *testing.T) {
	root := unit(
		mainFn(
			declVar("p", ptrT(intT()), nil),
			&ast.ReturnStatement{Value: ident("p")},
		),
	)

	_, _, err := processUnit(t, root)
	requireProcessingError(t, err, "incompatible types when returning type 'signed int *' but 'signed int' was expected")
}

func TestTypedefResolution(t *testing.T) {
	r := require.New(t)

	// typedef unsigned long size_t; size_t n = 9;
	root := unit(
		&ast.Declaration{
			StorageClasses: []ast.StorageClass{ast.StorageClassTypedef},
			Specifier:      ulongT(),
			Declarators:    []ast.InitDeclarator{{Name: "size_t", Type: ulongT()}},
		},
		declVar("n", &ast.TypedefName{Name: "size_t"}, single(lit(9))),
		mainFn(ret(lit(0))),
	)

	out, _, err := processUnit(t, root)
	r.NoError(err)

	r.Equal(8, out.DataSegmentSizeInBytes)
	r.Equal(`\09\00\00\00\00\00\00\00`, out.DataSegmentByteStr)
}

func TestStaticLocalGoesToDataSegment(t *testing.T) {
	r := require.New(t)

	root := unit(
		mainFn(
			&ast.Declaration{
				StorageClasses: []ast.StorageClass{ast.StorageClassStatic},
				Specifier:      intT(),
				Declarators:    []ast.InitDeclarator{{Name: "counter", Type: intT(), Initializer: single(lit(41))}},
			},
			ret(lit(0)),
		),
	)

	out, _, err := processUnit(t, root)
	r.NoError(err)

	r.Equal(0, out.Functions[0].SizeOfLocals)
	r.Equal(`\29\00\00\00`, out.DataSegmentByteStr)
}
