package transcript

import (
	"fmt"

	"github.com/consensys/snark-verifier/loader"
)

// Hasher is the algebraic hash gadget an external circuit backend
// supplies for in-circuit transcripts. It must be parameterized exactly
// like the native hash used to produce the proof (same permutation, same
// rate and round counts) and must absorb points per the [PointLimbs]
// convention; otherwise the challenge streams diverge and verification
// fails for every proof.
type Hasher interface {
	Reset()
	WriteScalar(v loader.Scalar)
	WritePoint(p loader.EcPoint)
	Sum() loader.Scalar
}

// Circuit is the in-circuit transcript. Proof elements are supplied up
// front as pre-assigned loaded values; "reading" pops the next one and
// absorbs it, mirroring the native byte-stream reads element for
// element.
type Circuit struct {
	l     loader.Loader
	h     Hasher
	state State

	scalars []loader.Scalar
	points  []loader.EcPoint
}

// NewCircuit returns an in-circuit transcript over the given hash
// gadget. scalars and points are the proof's wire elements in protocol
// order, each queue consumed independently.
func NewCircuit(l loader.Loader, h Hasher, scalars []loader.Scalar, points []loader.EcPoint) *Circuit {
	return &Circuit{l: l, h: h, scalars: scalars, points: points}
}

func (t *Circuit) State() State {
	return t.state
}

func (t *Circuit) SqueezeChallenge() (loader.Scalar, error) {
	if t.state == StateFresh {
		return nil, fmt.Errorf("squeeze on a fresh transcript")
	}
	c := t.h.Sum()
	t.h.Reset()
	t.h.WriteScalar(c)
	t.state = StateAbsorbing
	return c, nil
}

func (t *Circuit) CommonScalar(v loader.Scalar) error {
	t.h.WriteScalar(v)
	t.state = StateAbsorbing
	return nil
}

func (t *Circuit) CommonEcPoint(p loader.EcPoint) error {
	t.h.WritePoint(p)
	t.state = StateAbsorbing
	return nil
}

func (t *Circuit) ReadScalar() (loader.Scalar, error) {
	if len(t.scalars) == 0 {
		return nil, fmt.Errorf("%w: scalar", ErrProofExhausted)
	}
	v := t.scalars[0]
	t.scalars = t.scalars[1:]
	if err := t.CommonScalar(v); err != nil {
		return nil, err
	}
	return v, nil
}

func (t *Circuit) ReadEcPoint() (loader.EcPoint, error) {
	if len(t.points) == 0 {
		return nil, fmt.Errorf("%w: ec point", ErrProofExhausted)
	}
	p := t.points[0]
	t.points = t.points[1:]
	if err := t.CommonEcPoint(p); err != nil {
		return nil, err
	}
	return p, nil
}
