// Package circuit implements the loader interfaces on top of an external
// constraint-system builder, so verification runs inside another proof's
// arithmetic circuit. The builder itself is out of scope: this package
// only talks to the [API] and [CurveAPI] interfaces and never inspects
// wire values.
//
// Unlike the native context, equality assertions emit constraints and
// always return nil; a violated constraint is only detected when the
// outer proof is generated or checked. Cost metering is implemented here:
// every emitted operation is attributed to the innermost open region.
package circuit

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	fr "github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/consensys/snark-verifier/loader"
	"github.com/consensys/snark-verifier/logger"
)

// Variable is an opaque handle to a scalar wire, as produced by the
// external circuit builder. Constants are passed as *big.Int.
//
// Handles must be comparable with ==; [Scalar.Equal] relies on this for
// structural equality. Builders with slice-backed wire representations
// must hand out a pointer or an index instead.
type Variable any

// Point is an opaque handle to a curve point gadget, under the same
// comparability requirement as [Variable].
type Point = Variable

// API is the scalar surface the external circuit builder must provide.
// It mirrors the usual builder API shape: inputs are never modified and
// every call may emit constraints.
type API interface {
	Add(i1, i2 Variable) Variable
	Sub(i1, i2 Variable) Variable
	Mul(i1, i2 Variable) Variable
	Neg(i1 Variable) Variable
	// Inverse constrains i1 to be invertible and returns its inverse.
	Inverse(i1 Variable) Variable
	AssertIsEqual(i1, i2 Variable)
	// Select returns i1 when b is one and i2 when b is zero.
	Select(b, i1, i2 Variable) Variable
}

// CurveAPI is the curve gadget surface the external circuit builder must
// provide for BN254 G1 points.
type CurveAPI interface {
	// Constant lifts a fixed affine point into the circuit.
	Constant(p bn254.G1Affine) Point
	AssertIsEqual(a, b Point)
	// Select returns a when b is one and p when b is zero.
	Select(b Variable, a, p Point) Point
	// MultiScalarMul computes Σᵢ scalars[i]·points[i]. It returns an
	// error when the slice lengths differ.
	MultiScalarMul(points []Point, scalars []Variable) (Point, error)
	// ExposeLimbs marks both affine coordinates of p as public outputs,
	// each decomposed into nbLimbs limbs of limbBits bits,
	// least-significant limb first.
	ExposeLimbs(p Point, limbBits, nbLimbs int) error
}

type costRegion struct {
	tag string
	ops int
}

// Loader is a constraint-emitting execution context wrapping an external
// circuit builder.
type Loader struct {
	api   API
	curve CurveAPI

	regions []costRegion   // open regions, innermost last
	costs   map[string]int // closed region totals
}

// NewLoader returns a circuit execution context over the given builder
// surfaces.
func NewLoader(api API, curve CurveAPI) *Loader {
	return &Loader{
		api:   api,
		curve: curve,
		costs: make(map[string]int),
	}
}

// Scalar is a scalar wire bound to a circuit context.
type Scalar struct {
	loader *Loader
	v      Variable
}

// Wire returns the underlying builder handle.
func (s Scalar) Wire() Variable {
	return s.v
}

func (s Scalar) Loader() loader.Loader {
	return s.loader
}

func (s Scalar) Add(other loader.Scalar) loader.Scalar {
	o := s.loader.scalar(other)
	s.loader.meter(1)
	return Scalar{loader: s.loader, v: s.loader.api.Add(s.v, o.v)}
}

func (s Scalar) Sub(other loader.Scalar) loader.Scalar {
	o := s.loader.scalar(other)
	s.loader.meter(1)
	return Scalar{loader: s.loader, v: s.loader.api.Sub(s.v, o.v)}
}

func (s Scalar) Mul(other loader.Scalar) loader.Scalar {
	o := s.loader.scalar(other)
	s.loader.meter(1)
	return Scalar{loader: s.loader, v: s.loader.api.Mul(s.v, o.v)}
}

func (s Scalar) Neg() loader.Scalar {
	s.loader.meter(1)
	return Scalar{loader: s.loader, v: s.loader.api.Neg(s.v)}
}

func (s Scalar) Square() loader.Scalar {
	s.loader.meter(1)
	return Scalar{loader: s.loader, v: s.loader.api.Mul(s.v, s.v)}
}

// Invert returns the inverse wire. A circuit cannot observe whether the
// value is zero: the builder emits a constraint that fails at proving
// time instead, so the boolean is always true here.
func (s Scalar) Invert() (loader.Scalar, bool) {
	s.loader.meter(1)
	return Scalar{loader: s.loader, v: s.loader.api.Inverse(s.v)}, true
}

// Equal is structural: it reports whether both scalars are the same
// wire, per the [Variable] comparability requirement. Value equality is
// not observable in-circuit.
func (s Scalar) Equal(other loader.Scalar) bool {
	o := s.loader.scalar(other)
	return s.v == o.v
}

// EcPoint is a point gadget bound to a circuit context.
type EcPoint struct {
	loader *Loader
	p      Point
}

// Gadget returns the underlying builder handle.
func (p EcPoint) Gadget() Point {
	return p.p
}

func (p EcPoint) Loader() loader.Loader {
	return p.loader
}

// Equal is structural, like [Scalar.Equal].
func (p EcPoint) Equal(other loader.EcPoint) bool {
	o := p.loader.ecPoint(other)
	return p.p == o.p
}

// FromWire binds an existing builder wire (a witness assignment, e.g. a
// proof element) to the context.
func (l *Loader) FromWire(v Variable) loader.Scalar {
	return Scalar{loader: l, v: v}
}

// FromGadget binds an existing point gadget to the context.
func (l *Loader) FromGadget(p Point) loader.EcPoint {
	return EcPoint{loader: l, p: p}
}

func (l *Loader) LoadConst(v *fr.Element) loader.Scalar {
	return Scalar{loader: l, v: v.BigInt(new(big.Int))}
}

func (l *Loader) LoadZero() loader.Scalar {
	return Scalar{loader: l, v: big.NewInt(0)}
}

func (l *Loader) LoadOne() loader.Scalar {
	return Scalar{loader: l, v: big.NewInt(1)}
}

// AssertScalarsEqual emits an equality constraint. It always returns nil:
// the violation, if any, surfaces when the outer proof is generated.
func (l *Loader) AssertScalarsEqual(annotation string, lhs, rhs loader.Scalar) error {
	a, b := l.scalar(lhs), l.scalar(rhs)
	l.meter(1)
	l.api.AssertIsEqual(a.v, b.v)
	return nil
}

func (l *Loader) LoadEcPoint(p *bn254.G1Affine) loader.EcPoint {
	l.meter(1)
	return EcPoint{loader: l, p: l.curve.Constant(*p)}
}

func (l *Loader) EcPointZero() loader.EcPoint {
	var inf bn254.G1Affine
	return l.LoadEcPoint(&inf)
}

func (l *Loader) EcPointGenerator() loader.EcPoint {
	_, _, g, _ := bn254.Generators()
	return l.LoadEcPoint(&g)
}

func (l *Loader) AssertEcPointsEqual(annotation string, lhs, rhs loader.EcPoint) error {
	a, b := l.ecPoint(lhs), l.ecPoint(rhs)
	l.meter(1)
	l.curve.AssertIsEqual(a.p, b.p)
	return nil
}

func (l *Loader) MultiScalarMul(scalars []loader.Scalar, points []loader.EcPoint) (loader.EcPoint, error) {
	if len(scalars) != len(points) {
		return nil, fmt.Errorf("multi scalar multiplication over %d scalars and %d points", len(scalars), len(points))
	}
	s := make([]Variable, len(scalars))
	p := make([]Point, len(points))
	for i := range scalars {
		s[i] = l.scalar(scalars[i]).v
		p[i] = l.ecPoint(points[i]).p
	}
	l.meter(len(scalars))
	res, err := l.curve.MultiScalarMul(p, s)
	if err != nil {
		return nil, err
	}
	return EcPoint{loader: l, p: res}, nil
}

func (l *Loader) EcPointSelect(a, b loader.EcPoint, sel loader.Scalar) loader.EcPoint {
	pa, pb := l.ecPoint(a), l.ecPoint(b)
	s := l.scalar(sel)
	l.meter(1)
	return EcPoint{loader: l, p: l.curve.Select(s.v, pa.p, pb.p)}
}

// ExposeAsPublic marks a point's coordinates as public outputs of the
// outer circuit, split into nbLimbs limbs of limbBits bits each.
func (l *Loader) ExposeAsPublic(p loader.EcPoint, limbBits, nbLimbs int) error {
	return l.curve.ExposeLimbs(l.ecPoint(p).p, limbBits, nbLimbs)
}

// StartCostMetering opens a named region; emitted operations are counted
// against the innermost open region until [Loader.EndCostMetering].
func (l *Loader) StartCostMetering(tag string) {
	l.regions = append(l.regions, costRegion{tag: tag})
}

// EndCostMetering closes the innermost region and records its count.
func (l *Loader) EndCostMetering() {
	if len(l.regions) == 0 {
		panic("circuit loader: end cost metering without a matching start")
	}
	r := l.regions[len(l.regions)-1]
	l.regions = l.regions[:len(l.regions)-1]
	l.costs[r.tag] += r.ops
	log := logger.Logger()
	log.Debug().Str("region", r.tag).Int("ops", r.ops).Msg("cost metering")
}

// Costs returns the per-region operation counts of all closed regions.
func (l *Loader) Costs() map[string]int {
	out := make(map[string]int, len(l.costs))
	for k, v := range l.costs {
		out[k] = v
	}
	return out
}

func (l *Loader) meter(n int) {
	if len(l.regions) > 0 {
		l.regions[len(l.regions)-1].ops += n
	}
}

func (l *Loader) scalar(v loader.Scalar) Scalar {
	s, ok := v.(Scalar)
	if !ok {
		panic(fmt.Sprintf("circuit loader: foreign scalar of type %T", v))
	}
	if s.loader != l {
		panic("circuit loader: scalar from a different execution context")
	}
	return s
}

func (l *Loader) ecPoint(v loader.EcPoint) EcPoint {
	p, ok := v.(EcPoint)
	if !ok {
		panic(fmt.Sprintf("circuit loader: foreign ec point of type %T", v))
	}
	if p.loader != l {
		panic("circuit loader: ec point from a different execution context")
	}
	return p
}
