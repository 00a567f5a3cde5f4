package test

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254"
	fr "github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/consensys/snark-verifier/loader/circuit"
)

// Engine implements [circuit.API] and [circuit.CurveAPI] by evaluating
// every operation eagerly over native arithmetic. It lets the tests run
// circuit-context code without an actual constraint-system builder:
// equality assertions are checked on the spot and recorded instead of
// deferred to proving time.
//
// Scalar wires are *big.Int, point gadgets are *bn254.G1Affine.
type Engine struct {
	failures []string
	exposed  []*big.Int
}

// NewEngine returns a fresh engine with no recorded failures.
func NewEngine() *Engine {
	return &Engine{}
}

// Failures returns the violated assertions recorded so far, in emission
// order.
func (e *Engine) Failures() []string {
	return e.failures
}

// Exposed returns the public output limbs recorded by ExposeLimbs, in
// emission order.
func (e *Engine) Exposed() []*big.Int {
	return e.exposed
}

func (e *Engine) fail(format string, args ...any) {
	e.failures = append(e.failures, fmt.Sprintf(format, args...))
}

// Element converts a scalar wire back to a field element. It accepts the
// value shapes the circuit loader produces.
func Element(i circuit.Variable) fr.Element {
	var el fr.Element
	switch v := i.(type) {
	case *big.Int:
		el.SetBigInt(v)
	case big.Int:
		el.SetBigInt(&v)
	case fr.Element:
		el = v
	case *fr.Element:
		el = *v
	case int:
		el.SetInt64(int64(v))
	default:
		panic(fmt.Sprintf("test engine: unsupported wire value %T", i))
	}
	return el
}

func wire(el fr.Element) circuit.Variable {
	return el.BigInt(new(big.Int))
}

func (e *Engine) Add(i1, i2 circuit.Variable) circuit.Variable {
	a, b := Element(i1), Element(i2)
	a.Add(&a, &b)
	return wire(a)
}

func (e *Engine) Sub(i1, i2 circuit.Variable) circuit.Variable {
	a, b := Element(i1), Element(i2)
	a.Sub(&a, &b)
	return wire(a)
}

func (e *Engine) Mul(i1, i2 circuit.Variable) circuit.Variable {
	a, b := Element(i1), Element(i2)
	a.Mul(&a, &b)
	return wire(a)
}

func (e *Engine) Neg(i1 circuit.Variable) circuit.Variable {
	a := Element(i1)
	a.Neg(&a)
	return wire(a)
}

func (e *Engine) Inverse(i1 circuit.Variable) circuit.Variable {
	a := Element(i1)
	if a.IsZero() {
		e.fail("inverse of zero")
		return wire(a)
	}
	a.Inverse(&a)
	return wire(a)
}

// AssertIsEqual serves both the scalar and the curve surface: Variable
// and Point are opaque handles, so the engine dispatches on the actual
// value.
func (e *Engine) AssertIsEqual(i1, i2 circuit.Variable) {
	if isPoint(i1) || isPoint(i2) {
		pa, pb := Gadget(i1), Gadget(i2)
		if !pa.Equal(&pb) {
			e.fail("points differ: %s != %s", pa.String(), pb.String())
		}
		return
	}
	a, b := Element(i1), Element(i2)
	if !a.Equal(&b) {
		e.fail("%s != %s", a.String(), b.String())
	}
}

// Select serves both surfaces, like AssertIsEqual.
func (e *Engine) Select(b, i1, i2 circuit.Variable) circuit.Variable {
	s := Element(b)
	if !s.IsOne() && !s.IsZero() {
		e.fail("selector %s is not boolean", s.String())
	}
	if isPoint(i1) || isPoint(i2) {
		if s.IsOne() {
			p := Gadget(i1)
			return &p
		}
		p := Gadget(i2)
		return &p
	}
	if s.IsOne() {
		return wire(Element(i1))
	}
	return wire(Element(i2))
}

func isPoint(v any) bool {
	switch v.(type) {
	case *bn254.G1Affine, bn254.G1Affine:
		return true
	}
	return false
}

// Gadget converts a point gadget back to an affine point.
func Gadget(p circuit.Point) bn254.G1Affine {
	switch v := p.(type) {
	case *bn254.G1Affine:
		return *v
	case bn254.G1Affine:
		return v
	default:
		panic(fmt.Sprintf("test engine: unsupported point value %T", p))
	}
}

func (e *Engine) Constant(p bn254.G1Affine) circuit.Point {
	c := p
	return &c
}

func (e *Engine) MultiScalarMul(points []circuit.Point, scalars []circuit.Variable) (circuit.Point, error) {
	if len(points) != len(scalars) {
		return nil, fmt.Errorf("msm over %d points and %d scalars", len(points), len(scalars))
	}
	ps := make([]bn254.G1Affine, len(points))
	ss := make([]fr.Element, len(scalars))
	for i := range points {
		ps[i] = Gadget(points[i])
		ss[i] = Element(scalars[i])
	}
	var res bn254.G1Affine
	if _, err := res.MultiExp(ps, ss, ecc.MultiExpConfig{}); err != nil {
		return nil, err
	}
	return &res, nil
}

func (e *Engine) ExposeLimbs(p circuit.Point, limbBits, nbLimbs int) error {
	pt := Gadget(p)
	mask := new(big.Int).Lsh(big.NewInt(1), uint(limbBits))
	mask.Sub(mask, big.NewInt(1))
	for _, coord := range []*big.Int{pt.X.BigInt(new(big.Int)), pt.Y.BigInt(new(big.Int))} {
		v := new(big.Int).Set(coord)
		for i := 0; i < nbLimbs; i++ {
			limb := new(big.Int).And(v, mask)
			e.exposed = append(e.exposed, limb)
			v.Rsh(v, uint(limbBits))
		}
		if v.Sign() != 0 {
			return fmt.Errorf("coordinate does not fit %d limbs of %d bits", nbLimbs, limbBits)
		}
	}
	return nil
}
