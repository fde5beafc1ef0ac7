package ctype

// Compatible implements C type compatibility over the closed algebra. When
// ignoreQualifiers is false, top-level const must match at every level.
func Compatible(a, b DataType, ignoreQualifiers bool) bool {
	// Enums are all represented as signed int, so any two enum types are
	// compatible regardless of tag.
	if a.Kind() == KindEnum && b.Kind() == KindEnum {
		return true
	}

	if a.Kind() != b.Kind() {
		return false
	}

	if !ignoreQualifiers && IsConst(a) != IsConst(b) {
		return false
	}

	switch a := a.(type) {
	case *Primary:
		return a.PrimaryKind == b.(*Primary).PrimaryKind
	case *Pointer:
		b := b.(*Pointer)
		if a.Pointee.Kind() == KindVoid && b.Pointee.Kind() == KindVoid {
			return true
		}

		return Compatible(a.Pointee, b.Pointee, ignoreQualifiers)
	case *Array:
		b := b.(*Array)
		return a.Length == b.Length && Compatible(a.Elem, b.Elem, ignoreQualifiers)
	case *Struct:
		b := b.(*Struct)
		if a.Tag != b.Tag || len(a.Fields) != len(b.Fields) {
			return false
		}

		for i := range a.Fields {
			if a.Fields[i].Tag != b.Fields[i].Tag {
				return false
			}

			if !fieldCompatible(a.Fields[i].Type, b.Fields[i].Type, ignoreQualifiers) {
				return false
			}
		}

		return true
	case *SelfPointer:
		// Self pointers are pointers to their enclosing structs; requiring
		// matching tags keeps two self-referential structs with different
		// tags distinct.
		return a.EnclosingTag == b.(*SelfPointer).EnclosingTag
	case *Function:
		b := b.(*Function)
		if len(a.Parameters) != len(b.Parameters) {
			return false
		}

		if !returnCompatible(a.Return, b.Return, ignoreQualifiers) {
			return false
		}

		for i := range a.Parameters {
			if !Compatible(a.Parameters[i], b.Parameters[i], ignoreQualifiers) {
				return false
			}
		}

		return true
	case *Void:
		return true
	default:
		return false
	}
}

func fieldCompatible(a, b DataType, ignoreQualifiers bool) bool {
	// A self pointer matches only another self pointer, never a plain
	// pointer, even one spelled out to the same struct.
	if (a.Kind() == KindSelfPointer) != (b.Kind() == KindSelfPointer) {
		return false
	}

	return Compatible(a, b, ignoreQualifiers)
}

func returnCompatible(a, b DataType, ignoreQualifiers bool) bool {
	if a.Kind() == KindVoid || b.Kind() == KindVoid {
		return a.Kind() == b.Kind()
	}

	return Compatible(a, b, ignoreQualifiers)
}

// CanAssign implements the C17 6.5.16.1 assignability constraints for
// storing a value of type `from` into an object of type `to`.
// fromIsNullPointerConstant reports whether the right operand is an integer
// constant expression with value zero.
func CanAssign(to, from DataType, fromIsNullPointerConstant bool) bool {
	if IsArithmetic(to) && IsArithmetic(from) {
		return true
	}

	if to.Kind() == KindStruct && from.Kind() == KindStruct {
		return Compatible(to, from, true)
	}

	toPtr := asPointer(to)
	fromPtr := asPointer(from)

	if toPtr != nil && fromIsNullPointerConstant {
		return true
	}

	if toPtr != nil && fromPtr != nil {
		// The left pointee must carry every qualifier of the right pointee.
		if IsConst(fromPtr.Pointee) && !IsConst(toPtr.Pointee) {
			return false
		}

		if toPtr.Pointee.Kind() == KindVoid || fromPtr.Pointee.Kind() == KindVoid {
			return true
		}

		return Compatible(toPtr.Pointee, fromPtr.Pointee, true)
	}

	return false
}

// asPointer views t as a plain pointer. Self pointers must be resolved
// against their enclosing struct (SelfPointer.AsPointer) before any
// assignability check, so they never reach here.
func asPointer(t DataType) *Pointer {
	if t, ok := t.(*Pointer); ok {
		return t
	}

	return nil
}
