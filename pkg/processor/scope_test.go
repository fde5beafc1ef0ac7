package processor_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MrShadowKiller/c-slang/pkg/ctype"
	"github.com/MrShadowKiller/c-slang/pkg/processor"
)

func TestSymbolTableLookupWalksParents(t *testing.T) {
	r := require.New(t)

	table := processor.NewSymbolTable()

	outer := &processor.LocalVariable{DataType: ctype.NewPrimary(ctype.SignedInt), Offset: -4}
	r.NoError(table.Declare("x", outer))

	table.PushScope()

	entry, ok := table.Lookup("x")
	r.True(ok)
	r.Same(outer, entry)

	// Shadowing in the inner scope is not a redeclaration.
	inner := &processor.LocalVariable{DataType: ctype.NewPrimary(ctype.SignedLong), Offset: -12}
	r.NoError(table.Declare("x", inner))

	entry, ok = table.Lookup("x")
	r.True(ok)
	r.Same(inner, entry)

	table.PopScope()

	entry, ok = table.Lookup("x")
	r.True(ok)
	r.Same(outer, entry)

	r.True(table.HasSymbol("x"))
	r.False(table.HasSymbol("y"))
}

func TestSymbolTableRedeclaration(t *testing.T) {
	r := require.New(t)

	table := processor.NewSymbolTable()

	r.NoError(table.Declare("x", &processor.LocalVariable{DataType: ctype.NewPrimary(ctype.SignedInt)}))
	err := table.Declare("x", &processor.LocalVariable{DataType: ctype.NewPrimary(ctype.SignedInt)})
	r.EqualError(err, "redeclaration of 'x'")

	// Compatible function redeclaration is fine; two bodies are not.
	sig := &ctype.Function{Return: ctype.VoidType}
	r.NoError(table.Declare("f", &processor.FunctionSymbol{DataType: sig, TableIndex: -1}))
	r.NoError(table.Declare("f", &processor.FunctionSymbol{DataType: sig, TableIndex: -1, Defined: true}))

	err = table.Declare("f", &processor.FunctionSymbol{DataType: sig, TableIndex: -1, Defined: true})
	r.EqualError(err, "redefinition of 'f'")

	incompatible := &ctype.Function{Return: ctype.NewPrimary(ctype.SignedInt)}
	err = table.Declare("f", &processor.FunctionSymbol{DataType: incompatible, TableIndex: -1})
	r.EqualError(err, "conflicting types for 'f'")
}

func TestSymbolTableTagNamespace(t *testing.T) {
	r := require.New(t)

	table := processor.NewSymbolTable()

	st := &ctype.Struct{Tag: "T", Fields: []ctype.Field{{Tag: "x", Type: ctype.NewPrimary(ctype.SignedInt)}}}
	r.NoError(table.DeclareTag("T", st))

	// Tags do not collide with identifiers.
	r.NoError(table.Declare("T", &processor.LocalVariable{DataType: ctype.NewPrimary(ctype.SignedInt)}))

	got, ok := table.LookupTag("T")
	r.True(ok)
	r.Same(ctype.DataType(st), got)

	err := table.DeclareTag("T", &ctype.Struct{Tag: "T"})
	r.EqualError(err, "redefinition of 'struct T'")

	err = table.DeclareTag("T", &ctype.Enum{Tag: "T"})
	r.EqualError(err, "redefinition of 'T' as wrong kind of tag")
}

func TestAllocateLocalPacksDownward(t *testing.T) {
	r := require.New(t)

	table := processor.NewSymbolTable()
	table.ResetFrame()

	a, err := table.AllocateLocal(ctype.NewPrimary(ctype.SignedInt))
	r.NoError(err)
	r.Equal(-4, a)

	b, err := table.AllocateLocal(ctype.NewPrimary(ctype.SignedChar))
	r.NoError(err)
	r.Equal(-5, b)

	c, err := table.AllocateLocal(ctype.NewArray(ctype.NewPrimary(ctype.Double), 2))
	r.NoError(err)
	r.Equal(-21, c)

	r.Equal(21, table.SizeOfLocals())

	table.ResetFrame()
	r.Equal(0, table.SizeOfLocals())
}

func TestDataSegmentAllocation(t *testing.T) {
	r := require.New(t)

	table := processor.NewSymbolTable()

	offset, err := table.AllocateDataSegment(ctype.NewPrimary(ctype.SignedInt), []byte{1, 0, 0, 0})
	r.NoError(err)
	r.Equal(0, offset)

	offset, err = table.AllocateDataSegment(ctype.NewPrimary(ctype.SignedShort), []byte{2, 0})
	r.NoError(err)
	r.Equal(4, offset)

	r.Equal([]byte{1, 0, 0, 0, 2, 0}, table.DataSegment())

	_, err = table.AllocateDataSegment(ctype.NewPrimary(ctype.SignedInt), []byte{1})
	r.Error(err)
}

func TestStringInterning(t *testing.T) {
	r := require.New(t)

	table := processor.NewSymbolTable()

	first := table.InternString("hello")
	again := table.InternString("hello")
	other := table.InternString("world")

	r.Equal(first, again)
	r.NotEqual(first, other)

	// Both literals are NUL terminated in the segment.
	r.Equal("hello\x00world\x00", string(table.DataSegment()))
}
