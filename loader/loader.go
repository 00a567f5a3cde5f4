// Package loader defines the execution context abstraction shared by all
// verification code. A Loader lifts raw field and curve constants into
// loaded values; the same verification algorithm then runs over plain
// arithmetic (loader/native) or emits constraints (loader/circuit)
// depending on which Loader produced its values.
//
// Loaded values hold a non-owning reference back to their Loader. Two
// loaded values may be combined only when they come from the same Loader
// instance; mixing contexts is a caller bug and panics.
package loader

import (
	"errors"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	fr "github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// ErrAssertionFailed wraps every equality assertion violation reported by
// a native Loader.
var ErrAssertionFailed = errors.New("assertion is not satisfied")

// Scalar is a field element loaded in an execution context. Values are
// immutable; every operation returns a new value bound to the same
// context.
type Scalar interface {
	// Loader returns the execution context that produced the value.
	Loader() Loader

	Add(other Scalar) Scalar
	Sub(other Scalar) Scalar
	Mul(other Scalar) Scalar
	Neg() Scalar
	Square() Scalar

	// Invert returns the multiplicative inverse of the value. The second
	// return value is false when the value is the additive identity, in
	// which case no inverse exists.
	Invert() (Scalar, bool)

	// Equal reports whether both values are known to be equal. In a
	// constraint-emitting context this is structural equality of the
	// underlying wires, not a proven equality; use
	// [Loader.AssertScalarsEqual] to enforce equality.
	Equal(other Scalar) bool
}

// EcPoint is a curve point loaded in an execution context.
type EcPoint interface {
	// Loader returns the execution context that produced the value.
	Loader() Loader

	// Equal reports whether both points are known to be equal. See the
	// caveat on [Scalar.Equal].
	Equal(other EcPoint) bool
}

// Loader is the capability surface of one execution context. All methods
// producing values bind them to the receiver.
type Loader interface {
	LoadConst(v *fr.Element) Scalar
	LoadZero() Scalar
	LoadOne() Scalar

	// AssertScalarsEqual fails with an error wrapping
	// [ErrAssertionFailed] when lhs != rhs in a native context, or emits
	// an equality constraint in a circuit context. The annotation is
	// diagnostic only and never influences the result.
	AssertScalarsEqual(annotation string, lhs, rhs Scalar) error

	LoadEcPoint(p *bn254.G1Affine) EcPoint
	EcPointZero() EcPoint
	EcPointGenerator() EcPoint
	AssertEcPointsEqual(annotation string, lhs, rhs EcPoint) error

	// MultiScalarMul computes Σᵢ scalars[i]·points[i]. It returns an
	// error when the slice lengths differ.
	MultiScalarMul(scalars []Scalar, points []EcPoint) (EcPoint, error)

	// EcPointSelect returns a when sel is one and b when sel is zero.
	// Circuit contexts must implement it; the native context has no use
	// for conditional loading and panics.
	EcPointSelect(a, b EcPoint, sel Scalar) EcPoint

	// StartCostMetering and EndCostMetering delimit a named region for
	// cost attribution. They are observability hooks with no effect on
	// results; contexts without a cost notion implement them as no-ops.
	StartCostMetering(tag string)
	EndCostMetering()
}

// Term is a (coefficient, value) pair of a linear combination.
type Term struct {
	Coeff fr.Element
	Value Scalar
}

// ProductTerm is a (coefficient, lhs, rhs) triple of a bilinear
// combination.
type ProductTerm struct {
	Coeff fr.Element
	A, B  Scalar
}

// SumWithCoeffAndConstant reduces Σᵢ coeffᵢ·valueᵢ + constant. A
// coefficient of exactly one skips the multiplication and a constant of
// exactly zero is not loaded at all; in a circuit context each skip is
// one fewer constraint. An empty term list returns the loaded constant
// alone.
func SumWithCoeffAndConstant(l Loader, terms []Term, constant fr.Element) Scalar {
	if len(terms) == 0 {
		return l.LoadConst(&constant)
	}
	var acc Scalar
	if !constant.IsZero() {
		acc = l.LoadConst(&constant)
	}
	for i := range terms {
		t := terms[i].Value
		if !terms[i].Coeff.IsOne() {
			t = l.LoadConst(&terms[i].Coeff).Mul(t)
		}
		if acc == nil {
			acc = t
		} else {
			acc = acc.Add(t)
		}
	}
	return acc
}

// SumWithCoeff reduces Σᵢ coeffᵢ·valueᵢ.
func SumWithCoeff(l Loader, terms ...Term) Scalar {
	var zero fr.Element
	return SumWithCoeffAndConstant(l, terms, zero)
}

// SumWithConst reduces Σᵢ valueᵢ + constant.
func SumWithConst(l Loader, constant fr.Element, values ...Scalar) Scalar {
	one := fr.One()
	terms := make([]Term, len(values))
	for i, v := range values {
		terms[i] = Term{Coeff: one, Value: v}
	}
	return SumWithCoeffAndConstant(l, terms, constant)
}

// Sum reduces Σᵢ valueᵢ.
func Sum(l Loader, values ...Scalar) Scalar {
	var zero fr.Element
	return SumWithConst(l, zero, values...)
}

// SumProductsWithCoeffAndConstant reduces Σᵢ coeffᵢ·aᵢ·bᵢ + constant with
// the same fast paths as [SumWithCoeffAndConstant].
func SumProductsWithCoeffAndConstant(l Loader, terms []ProductTerm, constant fr.Element) Scalar {
	if len(terms) == 0 {
		return l.LoadConst(&constant)
	}
	var acc Scalar
	if !constant.IsZero() {
		acc = l.LoadConst(&constant)
	}
	for i := range terms {
		t := terms[i].A.Mul(terms[i].B)
		if !terms[i].Coeff.IsOne() {
			t = l.LoadConst(&terms[i].Coeff).Mul(t)
		}
		if acc == nil {
			acc = t
		} else {
			acc = acc.Add(t)
		}
	}
	return acc
}

// SumProductsWithCoeff reduces Σᵢ coeffᵢ·aᵢ·bᵢ.
func SumProductsWithCoeff(l Loader, terms ...ProductTerm) Scalar {
	var zero fr.Element
	return SumProductsWithCoeffAndConstant(l, terms, zero)
}

// SumProducts reduces Σᵢ aᵢ·bᵢ over pairs of values.
func SumProducts(l Loader, a, b []Scalar) Scalar {
	if len(a) != len(b) {
		panic("loader: sum products over mismatching lengths")
	}
	one := fr.One()
	terms := make([]ProductTerm, len(a))
	for i := range a {
		terms[i] = ProductTerm{Coeff: one, A: a[i], B: b[i]}
	}
	var zero fr.Element
	return SumProductsWithCoeffAndConstant(l, terms, zero)
}

// Product reduces Πᵢ valueᵢ. An empty value list returns one.
func Product(l Loader, values ...Scalar) Scalar {
	acc := l.LoadOne()
	for _, v := range values {
		acc = acc.Mul(v)
	}
	return acc
}

// PowConst raises base to a compile-time-known positive exponent by
// binary square-and-multiply. It panics when exp is zero; callers must
// special-case that.
func PowConst(base Scalar, exp uint64) Scalar {
	if exp == 0 {
		panic("loader: pow with zero exponent")
	}
	for exp&1 == 0 {
		base = base.Square()
		exp >>= 1
	}
	acc := base
	for exp > 1 {
		exp >>= 1
		base = base.Square()
		if exp&1 == 1 {
			acc = acc.Mul(base)
		}
	}
	return acc
}

// Powers returns [1, x, x², …, xⁿ⁻¹], length exactly n. It panics when
// n < 1.
func Powers(x Scalar, n int) []Scalar {
	if n < 1 {
		panic("loader: powers of length zero")
	}
	res := make([]Scalar, n)
	res[0] = x.Loader().LoadOne()
	if n > 1 {
		res[1] = x
	}
	for i := 2; i < n; i++ {
		res[i] = res[i-1].Mul(x)
	}
	return res
}

// BatchInvert inverts values in place. A value with no inverse is left
// unchanged rather than reported: the constant failure mode is intended
// for inputs already checked non-zero (intentionally sparse inputs keep
// their zeroes), and callers must only rely on entries they have
// verified themselves.
func BatchInvert(values []Scalar) {
	for i, v := range values {
		if inv, ok := v.Invert(); ok {
			values[i] = inv
		}
	}
}
