package processor_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MrShadowKiller/c-slang/pkg/ast"
	"github.com/MrShadowKiller/c-slang/pkg/ir"
)

func TestNestedBraceUnpacking(t *testing.T) {
	r := require.New(t)

	structType := &ast.StructType{
		Tag: "box",
		Fields: []ast.StructField{
			{Name: "tag", Type: intT()},
			{Name: "dims", Type: arrT(intT(), 2)},
		},
	}

	// struct box { int tag; int dims[2]; } b = {1, {2, 3}};
	root := unit(
		&ast.Declaration{
			Specifier: structType,
			Declarators: []ast.InitDeclarator{{
				Name: "b",
				Type: structType,
				Initializer: initList(
					single(lit(1)),
					initList(single(lit(2)), single(lit(3))),
				),
			}},
		},
		mainFn(ret(lit(0))),
	)

	out, _, err := processUnit(t, root)
	r.NoError(err)

	r.Equal(12, out.DataSegmentSizeInBytes)
	r.Equal(`\01\00\00\00\02\00\00\00\03\00\00\00`, out.DataSegmentByteStr)
}

func TestFlatBraceUnpacking(t *testing.T) {
	r := require.New(t)

	// Sub-aggregates may pull from the same list level: {1, 2, 3}.
	structType := &ast.StructType{
		Tag: "box",
		Fields: []ast.StructField{
			{Name: "tag", Type: intT()},
			{Name: "dims", Type: arrT(intT(), 2)},
		},
	}

	root := unit(
		&ast.Declaration{
			Specifier: structType,
			Declarators: []ast.InitDeclarator{{
				Name: "b",
				Type: structType,
				Initializer: initList(
					single(lit(1)), single(lit(2)), single(lit(3)),
				),
			}},
		},
		mainFn(ret(lit(0))),
	)

	out, _, err := processUnit(t, root)
	r.NoError(err)
	r.Equal(`\01\00\00\00\02\00\00\00\03\00\00\00`, out.DataSegmentByteStr)
}

func TestShortInitializerZeroFills(t *testing.T) {
	r := require.New(t)

	// int a[4] = {7}; the tail is zeroed.
	root := unit(
		declVar("a", arrT(intT(), 4), initList(single(lit(7)))),
		mainFn(ret(lit(0))),
	)

	out, _, err := processUnit(t, root)
	r.NoError(err)
	r.Equal(`\07\00\00\00\00\00\00\00\00\00\00\00\00\00\00\00`, out.DataSegmentByteStr)
}

func TestTentativeDefinitionZeroes(t *testing.T) {
	r := require.New(t)

	// double d; with no initializer becomes an all-zero region.
	root := unit(
		declVar("d", doubleT(), nil),
		mainFn(ret(lit(0))),
	)

	out, _, err := processUnit(t, root)
	r.NoError(err)
	r.Equal(8, out.DataSegmentSizeInBytes)
	r.Equal(`\00\00\00\00\00\00\00\00`, out.DataSegmentByteStr)
}

func TestExcessElements(t *testing.T) {
	root := unit(
		declVar("a", arrT(intT(), 2), initList(single(lit(1)), single(lit(2)), single(lit(3)))),
		mainFn(ret(lit(0))),
	)

	_, _, err := processUnit(t, root)
	requireProcessingError(t, err, "excess elements in initializer")
}

func TestScalarBracePeeling(t *testing.T) {
	r := require.New(t)

	// int x = {{5}}; peels down to the single expression.
	root := unit(
		declVar("x", intT(), initList(initList(single(lit(5))))),
		mainFn(ret(lit(0))),
	)

	out, _, err := processUnit(t, root)
	r.NoError(err)
	r.Equal(`\05\00\00\00`, out.DataSegmentByteStr)
}

func TestNonConstantDataSegmentInitializer(t *testing.T) {
	root := unit(
		declVar("a", intT(), single(lit(1))),
		declVar("b", intT(), single(bin("+", ident("a"), lit(1)))),
		mainFn(ret(lit(0))),
	)

	_, _, err := processUnit(t, root)
	requireProcessingError(t, err, "initializer element is not constant")
}

func TestIncompatibleInitializer(t *testing.T) {
	// int *p = 1; a non-zero integer is not a null pointer constant.
	root := unit(
		declVar("p", ptrT(intT()), single(lit(1))),
		mainFn(ret(lit(0))),
	)

	_, _, err := processUnit(t, root)
	requireProcessingError(t, err, "incompatible types when initializing type 'signed int *' using type 'signed int'")
}

func TestNullPointerInitializer(t *testing.T) {
	r := require.New(t)

	root := unit(
		declVar("p", ptrT(intT()), single(lit(0))),
		mainFn(ret(lit(0))),
	)

	out, _, err := processUnit(t, root)
	r.NoError(err)
	r.Equal(`\00\00\00\00`, out.DataSegmentByteStr)
}

func TestAddressConstantInitializer(t *testing.T) {
	r := require.New(t)

	// int x = 3; int *p = &x; the pointer bytes hold x's offset.
	root := unit(
		declVar("x", intT(), single(lit(3))),
		declVar("p", ptrT(intT()), single(&ast.UnaryExpression{Operator: "&", Operand: ident("x")})),
		mainFn(ret(lit(0))),
	)

	out, _, err := processUnit(t, root)
	r.NoError(err)
	r.Equal(`\03\00\00\00\00\00\00\00`, out.DataSegmentByteStr)
}

func TestFunctionInitializedLikeVariable(t *testing.T) {
	root := unit(
		&ast.Declaration{
			Specifier: intT(),
			Declarators: []ast.InitDeclarator{{
				Name:        "f",
				Type:        &ast.FunctionType{Return: intT()},
				Initializer: single(lit(1)),
			}},
		},
		mainFn(ret(lit(0))),
	)

	_, _, err := processUnit(t, root)
	requireProcessingError(t, err, "function 'f' is initialized like a variable")
}

func TestLocalInitializerStores(t *testing.T) {
	r := require.New(t)

	// int main() { int a[2] = {4, 5}; return 0; }
	root := unit(
		mainFn(
			declVar("a", arrT(intT(), 2), initList(single(lit(4)), single(lit(5)))),
			ret(lit(0)),
		),
	)

	out, _, err := processUnit(t, root)
	r.NoError(err)

	main := out.Functions[0]
	r.Equal(8, main.SizeOfLocals)

	var stores []*ir.MemoryStore
	for _, stmt := range main.Body {
		if s, ok := stmt.(*ir.MemoryStore); ok {
			if _, isLocal := s.Addr.(*ir.LocalAddress); isLocal {
				stores = append(stores, s)
			}
		}
	}

	r.Len(stores, 2)

	// The array packs downward: base offset -8, elements at -8 and -4.
	r.Equal(-8, stores[0].Addr.(*ir.LocalAddress).Offset)
	r.Equal(-4, stores[1].Addr.(*ir.LocalAddress).Offset)
	r.Equal(int64(4), stores[0].Value.(*ir.IntegerConstant).Value)
	r.Equal(int64(5), stores[1].Value.(*ir.IntegerConstant).Value)
}

func TestStringLiteralsInterned(t *testing.T) {
	r := require.New(t)

	// char *s = "hi"; char *u = "hi"; share one region.
	root := unit(
		declVar("s", ptrT(charT()), single(&ast.StringLiteral{Value: "hi"})),
		declVar("u", ptrT(charT()), single(&ast.StringLiteral{Value: "hi"})),
		mainFn(ret(lit(0))),
	)

	out, _, err := processUnit(t, root)
	r.NoError(err)

	// "hi\0" once, then two pointers at it.
	r.Equal(3+4+4, out.DataSegmentSizeInBytes)
	r.Equal(`\68\69\00\00\00\00\00\00\00\00\00`, out.DataSegmentByteStr)
}
