// Package wa defines the primitive value types shared by every other
// package in this module: the module environment, the per-function
// compiler, the stub generator, and the generator's own side-tables.
package wa

// ScalarCategory distinguishes integer from floating-point scalars.
type ScalarCategory uint8

const (
	Int   = ScalarCategory(0)
	Float = ScalarCategory(1)
)

func (cat ScalarCategory) String() string {
	switch cat {
	case Int:
		return "int"

	case Float:
		return "float"

	default:
		return "<invalid scalar category>"
	}
}

// Size is the number of bytes a value occupies in its natural storage slot
// (a stack slot, a global-data slot, ...).
type Size uint8

const (
	Size32  = Size(4)
	Size64  = Size(8)
	Size128 = Size(16)
)

// Type is a WebAssembly-style value type. V128 (one 128-bit SIMD lane
// group) sits outside the 4|8 scalar-size mask so Size() can special-case
// it rather than let it alias an existing scalar encoding.
type Type uint8

const (
	Void = Type(0)
	I32  = Type(4 | Int)
	I64  = Type(8 | Int)
	F32  = Type(4 | Float)
	F64  = Type(8 | Float)
	V128 = Type(1 << 5)
)

// Category of a non-void, non-vector type.
func (t Type) Category() ScalarCategory {
	return ScalarCategory(t & 1)
}

// Size in bytes of the value's natural storage slot.
func (t Type) Size() Size {
	if t == V128 {
		return Size128
	}
	return Size(t) & (4 | 8)
}

func (t Type) String() string {
	switch t {
	case Void:
		return "void"

	case I32:
		return "i32"

	case I64:
		return "i64"

	case F32:
		return "f32"

	case F64:
		return "f64"

	case V128:
		return "v128"

	default:
		return "<invalid type>"
	}
}

var typeEncoding = map[Type]byte{
	Void: 0x00,
	I32:  0x7f,
	I64:  0x7e,
	F32:  0x7d,
	F64:  0x7c,
	V128: 0x7b,
}

// Encode as a WebAssembly value-type byte. Result is undefined if t is not
// one of the named constants.
func (t Type) Encode() byte {
	return typeEncoding[t]
}
