package ctype

// PromoteInteger applies the C integer promotions: every integral type
// narrower than signed int promotes to signed int, everything else is
// unchanged. Enums promote to signed int.
func PromoteInteger(t DataType) DataType {
	switch t := t.(type) {
	case *Primary:
		switch t.PrimaryKind {
		case SignedChar, UnsignedChar, SignedShort, UnsignedShort:
			return NewPrimary(SignedInt)
		default:
			return NewPrimary(t.PrimaryKind)
		}
	case *Enum:
		return NewPrimary(SignedInt)
	default:
		return t
	}
}

// integerRank orders the promoted integral kinds.
func integerRank(k PrimaryKind) int {
	switch k {
	case SignedInt, UnsignedInt:
		return 1
	case SignedLong, UnsignedLong:
		return 2
	default:
		return 0
	}
}

func unsignedCounterpart(k PrimaryKind) PrimaryKind {
	switch k {
	case SignedInt:
		return UnsignedInt
	case SignedLong:
		return UnsignedLong
	default:
		return k
	}
}

// UsualArithmeticConversions returns the common type two arithmetic operands
// are brought to before a binary operation, per C17 6.3.1.8.
func UsualArithmeticConversions(a, b DataType) *Primary {
	ak := primaryKindOf(a)
	bk := primaryKindOf(b)

	if ak == Double || bk == Double {
		return NewPrimary(Double)
	}

	if ak == Float || bk == Float {
		return NewPrimary(Float)
	}

	ak = PromoteInteger(a).(*Primary).PrimaryKind
	bk = PromoteInteger(b).(*Primary).PrimaryKind

	if ak == bk {
		return NewPrimary(ak)
	}

	if ak.IsSigned() == bk.IsSigned() {
		if integerRank(ak) >= integerRank(bk) {
			return NewPrimary(ak)
		}

		return NewPrimary(bk)
	}

	signed, unsigned := ak, bk
	if bk.IsSigned() {
		signed, unsigned = bk, ak
	}

	if integerRank(unsigned) >= integerRank(signed) {
		return NewPrimary(unsigned)
	}

	// The signed type has greater rank; with 4-byte ints and 8-byte longs it
	// can represent every value of the lower-ranked unsigned type.
	if signed.Size() > unsigned.Size() {
		return NewPrimary(signed)
	}

	return NewPrimary(unsignedCounterpart(signed))
}

func primaryKindOf(t DataType) PrimaryKind {
	switch t := t.(type) {
	case *Primary:
		return t.PrimaryKind
	case *Enum:
		return SignedInt
	default:
		return SignedInt
	}
}
