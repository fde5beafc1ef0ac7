// Package ctype implements the closed algebra of C data types used by the
// processor: primary scalars, pointers, arrays, structs with self-reference,
// enums, function types and void, together with size, layout, compatibility
// and conversion queries.
package ctype

import (
	"fmt"
	"strings"
)

// PointerSize is the byte width of every pointer, including the
// struct-self-pointer marker.
const PointerSize = 4

type Kind int

const (
	KindPrimary Kind = iota
	KindPointer
	KindArray
	KindStruct
	KindSelfPointer
	KindEnum
	KindFunction
	KindVoid
)

func (k Kind) String() string {
	switch k {
	case KindPrimary:
		return "primary"
	case KindPointer:
		return "pointer"
	case KindArray:
		return "array"
	case KindStruct:
		return "struct"
	case KindSelfPointer:
		return "self pointer"
	case KindEnum:
		return "enum"
	case KindFunction:
		return "function"
	case KindVoid:
		return "void"
	default:
		return "<unknown>"
	}
}

type PrimaryKind int

const (
	SignedChar PrimaryKind = iota
	UnsignedChar
	SignedShort
	UnsignedShort
	SignedInt
	UnsignedInt
	SignedLong
	UnsignedLong
	Float
	Double
)

func (k PrimaryKind) String() string {
	switch k {
	case SignedChar:
		return "signed char"
	case UnsignedChar:
		return "unsigned char"
	case SignedShort:
		return "signed short"
	case UnsignedShort:
		return "unsigned short"
	case SignedInt:
		return "signed int"
	case UnsignedInt:
		return "unsigned int"
	case SignedLong:
		return "signed long"
	case UnsignedLong:
		return "unsigned long"
	case Float:
		return "float"
	case Double:
		return "double"
	default:
		return "<unknown>"
	}
}

func (k PrimaryKind) Size() int {
	switch k {
	case SignedChar, UnsignedChar:
		return 1
	case SignedShort, UnsignedShort:
		return 2
	case SignedInt, UnsignedInt, Float:
		return 4
	case SignedLong, UnsignedLong, Double:
		return 8
	default:
		return 0
	}
}

func (k PrimaryKind) IsFloat() bool {
	return k == Float || k == Double
}

func (k PrimaryKind) IsInteger() bool {
	return !k.IsFloat()
}

func (k PrimaryKind) IsSigned() bool {
	switch k {
	case SignedChar, SignedShort, SignedInt, SignedLong:
		return true
	default:
		return false
	}
}

// ParsePrimaryKind maps the canonical scalar spelling the parser emits back
// to its kind.
func ParsePrimaryKind(name string) (PrimaryKind, bool) {
	for k := SignedChar; k <= Double; k++ {
		if k.String() == name {
			return k, true
		}
	}

	return 0, false
}

// DataType is the closed sum of C data types. Implementations are *Primary,
// *Pointer, *Array, *Struct, *SelfPointer, *Enum, *Function and *Void.
type DataType interface {
	Kind() Kind
	String() string

	dataType()
}

type Primary struct {
	PrimaryKind PrimaryKind
	Const       bool
}

func NewPrimary(k PrimaryKind) *Primary {
	return &Primary{PrimaryKind: k}
}

func (*Primary) dataType()  {}
func (*Primary) Kind() Kind { return KindPrimary }

func (t *Primary) String() string {
	if t.Const {
		return "const " + t.PrimaryKind.String()
	}

	return t.PrimaryKind.String()
}

// Pointer is a pointer to Pointee, which may be *Void.
type Pointer struct {
	Pointee DataType
	Const   bool
}

func NewPointer(pointee DataType) *Pointer {
	return &Pointer{Pointee: pointee}
}

func (*Pointer) dataType()  {}
func (*Pointer) Kind() Kind { return KindPointer }

func (t *Pointer) String() string {
	s := fmt.Sprintf("%s *", t.Pointee)
	if t.Const {
		s += " const"
	}

	return s
}

// Array carries the folded, non-negative element count. The processor folds
// the parsed length expression before constructing one.
type Array struct {
	Elem   DataType
	Length int
	Const  bool
}

func NewArray(elem DataType, length int) *Array {
	return &Array{Elem: elem, Length: length}
}

func (*Array) dataType()  {}
func (*Array) Kind() Kind { return KindArray }

func (t *Array) String() string {
	return fmt.Sprintf("%s[%d]", t.Elem, t.Length)
}

type Struct struct {
	// Tag is empty for anonymous structs.
	Tag    string
	Fields []Field
}

func (*Struct) dataType()  {}
func (*Struct) Kind() Kind { return KindStruct }

func (t *Struct) String() string {
	if t.Tag == "" {
		return "struct <anonymous>"
	}

	return "struct " + t.Tag
}

func (t *Struct) Field(name string) (Field, bool) {
	for _, f := range t.Fields {
		if f.Tag == name {
			return f, true
		}
	}

	return Field{}, false
}

// FieldOffset returns the packed byte offset of the named field.
func (t *Struct) FieldOffset(name string) (int, bool) {
	offset := 0
	for _, f := range t.Fields {
		if f.Tag == name {
			return offset, true
		}

		size, err := SizeOf(f.Type)
		if err != nil {
			return 0, false
		}

		offset += size
	}

	return 0, false
}

type Field struct {
	Tag  string
	Type DataType
}

// SelfPointer stands for "pointer to the enclosing struct" inside that
// struct's own field list. EnclosingTag is recorded when the struct is built
// so compatibility checks can compare enclosing structs without a
// back-reference keeping the type algebra a tree.
type SelfPointer struct {
	EnclosingTag string
}

func (*SelfPointer) dataType()  {}
func (*SelfPointer) Kind() Kind { return KindSelfPointer }

func (t *SelfPointer) String() string {
	if t.EnclosingTag == "" {
		return "struct <anonymous> *"
	}

	return fmt.Sprintf("struct %s *", t.EnclosingTag)
}

// AsPointer resolves the marker against the enclosing struct.
func (t *SelfPointer) AsPointer(enclosing *Struct) *Pointer {
	return NewPointer(enclosing)
}

type Enum struct {
	Tag     string
	Members []Enumerator
}

func (*Enum) dataType()  {}
func (*Enum) Kind() Kind { return KindEnum }

func (t *Enum) String() string {
	if t.Tag == "" {
		return "enum <anonymous>"
	}

	return "enum " + t.Tag
}

type Enumerator struct {
	Name  string
	Value int64
}

type Function struct {
	// Return may be *Void.
	Return     DataType
	Parameters []DataType
}

func (*Function) dataType()  {}
func (*Function) Kind() Kind { return KindFunction }

func (t *Function) String() string {
	params := make([]string, 0, len(t.Parameters))
	for _, p := range t.Parameters {
		params = append(params, p.String())
	}

	return fmt.Sprintf("%s (%s)", t.Return, strings.Join(params, ", "))
}

type Void struct{}

func (*Void) dataType()      {}
func (*Void) Kind() Kind     { return KindVoid }
func (*Void) String() string { return "void" }

// VoidType is the shared void instance.
var VoidType = &Void{}

// SizeOf returns the byte size of t. Struct layout is packed in declaration
// order with no padding.
func SizeOf(t DataType) (int, error) {
	switch t := t.(type) {
	case *Primary:
		return t.PrimaryKind.Size(), nil
	case *Pointer, *SelfPointer:
		return PointerSize, nil
	case *Array:
		elemSize, err := SizeOf(t.Elem)
		if err != nil {
			return 0, err
		}

		return elemSize * t.Length, nil
	case *Struct:
		total := 0
		for _, f := range t.Fields {
			size, err := SizeOf(f.Type)
			if err != nil {
				return 0, err
			}

			total += size
		}

		return total, nil
	case *Enum:
		return SignedInt.Size(), nil
	case *Void:
		return 0, fmt.Errorf("void value not ignored as it should be")
	case *Function:
		return 0, fmt.Errorf("invalid application of 'sizeof' to function type")
	default:
		return 0, fmt.Errorf("unhandled data type %T", t)
	}
}

// ScalarSlot is one primary piece of an unpacked data type: a scalar type
// and its byte offset from the start of the object.
type ScalarSlot struct {
	Offset int
	Type   DataType
}

// UnpackScalars flattens t into its sequence of primary scalar pieces in
// layout order. Scalars unpack to themselves at offset 0.
func UnpackScalars(t DataType) ([]ScalarSlot, error) {
	var slots []ScalarSlot

	err := unpackScalars(t, 0, &slots)
	if err != nil {
		return nil, err
	}

	return slots, nil
}

func unpackScalars(t DataType, offset int, slots *[]ScalarSlot) error {
	switch t := t.(type) {
	case *Primary, *Pointer, *SelfPointer, *Enum:
		*slots = append(*slots, ScalarSlot{Offset: offset, Type: t})
		return nil
	case *Array:
		elemSize, err := SizeOf(t.Elem)
		if err != nil {
			return err
		}

		for i := 0; i < t.Length; i++ {
			err := unpackScalars(t.Elem, offset+i*elemSize, slots)
			if err != nil {
				return err
			}
		}

		return nil
	case *Struct:
		fieldOffset := offset
		for _, f := range t.Fields {
			err := unpackScalars(f.Type, fieldOffset, slots)
			if err != nil {
				return err
			}

			size, err := SizeOf(f.Type)
			if err != nil {
				return err
			}

			fieldOffset += size
		}

		return nil
	case *Void:
		return fmt.Errorf("void value not ignored as it should be")
	case *Function:
		return fmt.Errorf("cannot unpack function type")
	default:
		return fmt.Errorf("unhandled data type %T", t)
	}
}

// ScalarSize returns the byte width of a scalar slot type.
func ScalarSize(t DataType) int {
	switch t := t.(type) {
	case *Primary:
		return t.PrimaryKind.Size()
	case *Pointer, *SelfPointer:
		return PointerSize
	case *Enum:
		return SignedInt.Size()
	default:
		return 0
	}
}

// IsAggregate reports whether t is an array or struct.
func IsAggregate(t DataType) bool {
	switch t.Kind() {
	case KindArray, KindStruct:
		return true
	default:
		return false
	}
}

// IsArithmetic reports whether t participates in arithmetic: any primary
// scalar, or an enum (all enums behave as signed int).
func IsArithmetic(t DataType) bool {
	switch t.Kind() {
	case KindPrimary, KindEnum:
		return true
	default:
		return false
	}
}

// IsInteger reports whether t is an integral type.
func IsInteger(t DataType) bool {
	switch t := t.(type) {
	case *Primary:
		return t.PrimaryKind.IsInteger()
	case *Enum:
		return true
	default:
		return false
	}
}

// IsScalar reports whether t is arithmetic or a pointer.
func IsScalar(t DataType) bool {
	switch t.Kind() {
	case KindPrimary, KindEnum, KindPointer, KindSelfPointer:
		return true
	default:
		return false
	}
}

// IsConst reports whether t carries a top-level const qualifier.
func IsConst(t DataType) bool {
	switch t := t.(type) {
	case *Primary:
		return t.Const
	case *Pointer:
		return t.Const
	case *Array:
		return t.Const
	default:
		return false
	}
}

// Decay converts an array to a pointer to its element and a function to a
// pointer to itself; every other type is returned unchanged. Decay is
// idempotent.
func Decay(t DataType) DataType {
	switch t := t.(type) {
	case *Array:
		return NewPointer(t.Elem)
	case *Function:
		return NewPointer(t)
	default:
		return t
	}
}
