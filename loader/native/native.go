// Package native implements the loader interfaces with plain BN254
// arithmetic. It is the execution context used for regular, out-of-circuit
// verification; equality assertions compare values and fail with a typed
// error instead of emitting constraints.
package native

import (
	"fmt"
	"sync/atomic"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254"
	fr "github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/consensys/snark-verifier/debug"
	"github.com/consensys/snark-verifier/loader"
)

var _, _, g1Gen, _ = bn254.Generators()

var loaderIDs atomic.Uint64

// Loader is a native execution context. The zero value is not usable;
// create instances with [NewLoader]. Each verification run owns exactly
// one Loader and all values it loads.
type Loader struct {
	// id makes the struct non-zero-sized; a zero-size context would make
	// every allocation share one address and defeat the pointer identity
	// the mismatch checks rely on.
	id uint64
}

// NewLoader returns a fresh native execution context.
func NewLoader() *Loader {
	return &Loader{id: loaderIDs.Add(1)}
}

// Scalar is a field element bound to a native context.
type Scalar struct {
	loader *Loader
	value  fr.Element
}

// Value returns the underlying field element.
func (s Scalar) Value() fr.Element {
	return s.value
}

func (s Scalar) Loader() loader.Loader {
	return s.loader
}

func (s Scalar) Add(other loader.Scalar) loader.Scalar {
	o := s.loader.scalar(other)
	var r fr.Element
	r.Add(&s.value, &o.value)
	return Scalar{loader: s.loader, value: r}
}

func (s Scalar) Sub(other loader.Scalar) loader.Scalar {
	o := s.loader.scalar(other)
	var r fr.Element
	r.Sub(&s.value, &o.value)
	return Scalar{loader: s.loader, value: r}
}

func (s Scalar) Mul(other loader.Scalar) loader.Scalar {
	o := s.loader.scalar(other)
	var r fr.Element
	r.Mul(&s.value, &o.value)
	return Scalar{loader: s.loader, value: r}
}

func (s Scalar) Neg() loader.Scalar {
	var r fr.Element
	r.Neg(&s.value)
	return Scalar{loader: s.loader, value: r}
}

func (s Scalar) Square() loader.Scalar {
	var r fr.Element
	r.Square(&s.value)
	return Scalar{loader: s.loader, value: r}
}

func (s Scalar) Invert() (loader.Scalar, bool) {
	if s.value.IsZero() {
		return nil, false
	}
	var r fr.Element
	r.Inverse(&s.value)
	return Scalar{loader: s.loader, value: r}, true
}

func (s Scalar) Equal(other loader.Scalar) bool {
	o := s.loader.scalar(other)
	return s.value.Equal(&o.value)
}

// EcPoint is a curve point bound to a native context.
type EcPoint struct {
	loader *Loader
	value  bn254.G1Affine
}

// Value returns the underlying affine point.
func (p EcPoint) Value() bn254.G1Affine {
	return p.value
}

func (p EcPoint) Loader() loader.Loader {
	return p.loader
}

func (p EcPoint) Equal(other loader.EcPoint) bool {
	o := p.loader.ecPoint(other)
	return p.value.Equal(&o.value)
}

func (l *Loader) LoadConst(v *fr.Element) loader.Scalar {
	return Scalar{loader: l, value: *v}
}

func (l *Loader) LoadZero() loader.Scalar {
	return Scalar{loader: l}
}

func (l *Loader) LoadOne() loader.Scalar {
	return Scalar{loader: l, value: fr.One()}
}

func (l *Loader) AssertScalarsEqual(annotation string, lhs, rhs loader.Scalar) error {
	a, b := l.scalar(lhs), l.scalar(rhs)
	if !a.value.Equal(&b.value) {
		return fmt.Errorf("%w: %s: %s != %s%s", loader.ErrAssertionFailed, annotation, a.value.String(), b.value.String(), stack())
	}
	return nil
}

// stack annotates assertion failures with the call stack in debug builds.
func stack() string {
	if !debug.Debug {
		return ""
	}
	return "\n" + debug.Stack()
}

func (l *Loader) LoadEcPoint(p *bn254.G1Affine) loader.EcPoint {
	return EcPoint{loader: l, value: *p}
}

// EcPointZero returns the point at infinity.
func (l *Loader) EcPointZero() loader.EcPoint {
	return EcPoint{loader: l}
}

func (l *Loader) EcPointGenerator() loader.EcPoint {
	return EcPoint{loader: l, value: g1Gen}
}

func (l *Loader) AssertEcPointsEqual(annotation string, lhs, rhs loader.EcPoint) error {
	a, b := l.ecPoint(lhs), l.ecPoint(rhs)
	if !a.value.Equal(&b.value) {
		return fmt.Errorf("%w: %s%s", loader.ErrAssertionFailed, annotation, stack())
	}
	return nil
}

func (l *Loader) MultiScalarMul(scalars []loader.Scalar, points []loader.EcPoint) (loader.EcPoint, error) {
	if len(scalars) != len(points) {
		return nil, fmt.Errorf("multi scalar multiplication over %d scalars and %d points", len(scalars), len(points))
	}
	s := make([]fr.Element, len(scalars))
	p := make([]bn254.G1Affine, len(points))
	for i := range scalars {
		s[i] = l.scalar(scalars[i]).value
		p[i] = l.ecPoint(points[i]).value
	}
	var res bn254.G1Affine
	if _, err := res.MultiExp(p, s, ecc.MultiExpConfig{}); err != nil {
		return nil, err
	}
	return EcPoint{loader: l, value: res}, nil
}

// EcPointSelect is not available natively; a native caller can branch on
// the selector value directly.
func (l *Loader) EcPointSelect(a, b loader.EcPoint, sel loader.Scalar) loader.EcPoint {
	panic("native loader: ec point select is not implemented")
}

func (l *Loader) StartCostMetering(tag string) {}

func (l *Loader) EndCostMetering() {}

func (l *Loader) scalar(v loader.Scalar) Scalar {
	s, ok := v.(Scalar)
	if !ok {
		panic(fmt.Sprintf("native loader: foreign scalar of type %T", v))
	}
	if s.loader != l {
		panic(fmt.Sprintf("native loader %d: scalar from execution context %d", l.id, s.loader.id))
	}
	return s
}

func (l *Loader) ecPoint(v loader.EcPoint) EcPoint {
	p, ok := v.(EcPoint)
	if !ok {
		panic(fmt.Sprintf("native loader: foreign ec point of type %T", v))
	}
	if p.loader != l {
		panic(fmt.Sprintf("native loader %d: ec point from execution context %d", l.id, p.loader.id))
	}
	return p
}
