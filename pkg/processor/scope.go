package processor

import (
	"fmt"
	"math/big"

	"github.com/cespare/xxhash/v2"

	"github.com/MrShadowKiller/c-slang/pkg/ctype"
)

// SymbolEntry is the closed sum of things an identifier can be bound to.
type SymbolEntry interface {
	symbolEntry()
}

type LocalVariable struct {
	DataType ctype.DataType

	// Offset is negative, measured from the frame pointer toward low
	// addresses, except for parameters, which sit at non-negative offsets.
	Offset int
}

func (*LocalVariable) symbolEntry() {}

type DataSegmentVariable struct {
	DataType ctype.DataType

	// Offset is the absolute address within the data segment.
	Offset int
}

func (*DataSegmentVariable) symbolEntry() {}

type FunctionSymbol struct {
	DataType *ctype.Function

	// TableIndex is the function's stable index for indirect calls, or -1
	// until its address is first taken.
	TableIndex int

	Defined  bool
	External bool
	Module   string
}

func (*FunctionSymbol) symbolEntry() {}

type TypedefSymbol struct {
	DataType ctype.DataType
}

func (*TypedefSymbol) symbolEntry() {}

// EnumeratorSymbol is a named enum member; its data type is always signed
// int.
type EnumeratorSymbol struct {
	Value *big.Int
}

func (*EnumeratorSymbol) symbolEntry() {}

// scope is one level of the lexical scope tree. Identifiers and tags live
// in separate namespaces.
type scope struct {
	parent  *scope
	symbols map[string]SymbolEntry
	tags    map[string]ctype.DataType
}

func newScope(parent *scope) *scope {
	return &scope{
		parent:  parent,
		symbols: make(map[string]SymbolEntry),
		tags:    make(map[string]ctype.DataType),
	}
}

func (s *scope) get(name string) (SymbolEntry, bool) {
	if s == nil {
		return nil, false
	}

	if entry, ok := s.symbols[name]; ok {
		return entry, true
	}

	return s.parent.get(name)
}

func (s *scope) getTag(name string) (ctype.DataType, bool) {
	if s == nil {
		return nil, false
	}

	if t, ok := s.tags[name]; ok {
		return t, true
	}

	return s.parent.getTag(name)
}

// SymbolTable owns the scope tree, the per-function frame allocator, and
// the accumulated data segment. The root scope is owned by the table and is
// never popped.
type SymbolTable struct {
	root    *scope
	current *scope

	dataSegment []byte

	// stringOffsets interns string literals: identical literals share one
	// data segment region.
	stringOffsets map[uint64]int

	// localOffset is the next free (negative) frame offset of the function
	// being processed.
	localOffset int
}

func NewSymbolTable() *SymbolTable {
	root := newScope(nil)
	return &SymbolTable{
		root:          root,
		current:       root,
		stringOffsets: make(map[uint64]int),
	}
}

func (t *SymbolTable) PushScope() {
	t.current = newScope(t.current)
}

func (t *SymbolTable) PopScope() {
	if t.current.parent == nil {
		panic("bug: popping the root scope")
	}

	t.current = t.current.parent
}

// Lookup walks the parent chain.
func (t *SymbolTable) Lookup(name string) (SymbolEntry, bool) {
	return t.current.get(name)
}

// LookupTag resolves a struct or enum tag; tags are a separate namespace.
func (t *SymbolTable) LookupTag(name string) (ctype.DataType, bool) {
	return t.current.getTag(name)
}

func (t *SymbolTable) HasSymbol(name string) bool {
	_, ok := t.current.get(name)
	return ok
}

// Declare binds name in the current scope, enforcing the redeclaration
// policy: a function may be re-declared with a compatible signature, and a
// declaration may follow a definition, but everything else conflicts.
func (t *SymbolTable) Declare(name string, entry SymbolEntry) error {
	existing, ok := t.current.symbols[name]
	if !ok {
		t.current.symbols[name] = entry
		return nil
	}

	existingFn, existingIsFn := existing.(*FunctionSymbol)
	newFn, newIsFn := entry.(*FunctionSymbol)
	if existingIsFn && newIsFn {
		if !ctype.Compatible(existingFn.DataType, newFn.DataType, false) {
			return fmt.Errorf("conflicting types for '%s'", name)
		}

		if existingFn.Defined && newFn.Defined {
			return fmt.Errorf("redefinition of '%s'", name)
		}

		if newFn.Defined {
			existingFn.Defined = true
		}

		return nil
	}

	return fmt.Errorf("redeclaration of '%s'", name)
}

// DeclareTag registers a struct or enum tag in the current scope.
func (t *SymbolTable) DeclareTag(name string, dt ctype.DataType) error {
	existing, ok := t.current.tags[name]
	if ok {
		if existing.Kind() != dt.Kind() {
			return fmt.Errorf("redefinition of '%s' as wrong kind of tag", name)
		}

		switch dt.Kind() {
		case ctype.KindEnum:
			return fmt.Errorf("redefinition of 'enum %s'", name)
		default:
			return fmt.Errorf("redefinition of 'struct %s'", name)
		}
	}

	t.current.tags[name] = dt

	return nil
}

// ResetFrame starts a fresh local frame for a new function.
func (t *SymbolTable) ResetFrame() {
	t.localOffset = 0
}

// SizeOfLocals is the byte size of every local allocated since the last
// ResetFrame.
func (t *SymbolTable) SizeOfLocals() int {
	return -t.localOffset
}

// AllocateLocal makes room for one local object. Locals pack downward from
// the frame pointer with alignment 1; the returned offset is negative.
func (t *SymbolTable) AllocateLocal(dt ctype.DataType) (int, error) {
	size, err := ctype.SizeOf(dt)
	if err != nil {
		return 0, err
	}

	t.localOffset -= size

	return t.localOffset, nil
}

// AllocateDataSegment appends an initialized object to the data segment and
// returns its absolute offset. The byte string must already have the
// declared size; the segment is append-only and never back-patched.
func (t *SymbolTable) AllocateDataSegment(dt ctype.DataType, init []byte) (int, error) {
	size, err := ctype.SizeOf(dt)
	if err != nil {
		return 0, err
	}

	if len(init) != size {
		return 0, fmt.Errorf("bug: initializer is %d bytes for a %d byte object", len(init), size)
	}

	offset := len(t.dataSegment)
	t.dataSegment = append(t.dataSegment, init...)

	return offset, nil
}

// InternString stores a NUL-terminated string literal in the data segment,
// reusing the region of an identical earlier literal.
func (t *SymbolTable) InternString(s string) int {
	sum := xxhash.Sum64String(s)
	if offset, ok := t.stringOffsets[sum]; ok {
		return offset
	}

	offset := len(t.dataSegment)
	t.dataSegment = append(t.dataSegment, s...)
	t.dataSegment = append(t.dataSegment, 0)
	t.stringOffsets[sum] = offset

	return offset
}

func (t *SymbolTable) DataSegment() []byte {
	return t.dataSegment
}
