// Package plonk verifies PLONK-style polynomial commitment arguments
// succinctly: the expensive pairing check is deferred into a KZG
// accumulator so that many proofs can be folded and decided at once, or
// the whole verification replayed inside a circuit.
package plonk

import (
	"errors"
	"fmt"

	"github.com/consensys/snark-verifier/loader"
	"github.com/consensys/snark-verifier/pcs/kzg"
	"github.com/consensys/snark-verifier/protocol"
	"github.com/consensys/snark-verifier/transcript"
)

// ErrInstanceMismatch is returned when the supplied public inputs do not
// match the protocol's declared instance shape.
var ErrInstanceMismatch = errors.New("instance shape mismatch")

// Verify runs the succinct verification of one proof against p. The
// proof is consumed through ts, which must have been initialized with
// the proof bytes (or, in a circuit context, the proof wires) and
// nothing else. Public inputs come in instances, one slice per declared
// instance column.
//
// On success the returned accumulator carries the deferred pairing
// obligation; the proof is only valid once the accumulator passes
// [kzg.Decide], directly or after folding. In a native context a
// violated polynomial identity surfaces as an error wrapping
// [loader.ErrAssertionFailed]; in a circuit context it becomes an
// unsatisfiable constraint and Verify itself returns nil.
func Verify(l loader.Loader, p *protocol.Protocol, instances [][]loader.Scalar, ts transcript.Transcript, vk *kzg.VerifyingKey) (*kzg.Accumulator, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid protocol: %w", err)
	}
	if len(instances) != len(p.NumInstance) {
		return nil, fmt.Errorf("%w: got %d instance columns, protocol declares %d",
			ErrInstanceMismatch, len(instances), len(p.NumInstance))
	}
	for i, column := range instances {
		if len(column) != p.NumInstance[i] {
			return nil, fmt.Errorf("%w: instance column %d has %d values, protocol declares %d",
				ErrInstanceMismatch, i, len(column), p.NumInstance[i])
		}
	}

	preprocessed := make([]loader.EcPoint, len(p.Preprocessed))
	for i := range p.Preprocessed {
		preprocessed[i] = l.LoadEcPoint(&p.Preprocessed[i])
		if err := ts.CommonEcPoint(preprocessed[i]); err != nil {
			return nil, fmt.Errorf("absorb preprocessed commitment %d: %w", i, err)
		}
	}
	for i, column := range instances {
		for j, v := range column {
			if err := ts.CommonScalar(v); err != nil {
				return nil, fmt.Errorf("absorb instance (%d,%d): %w", i, j, err)
			}
		}
	}

	witnesses := make([]loader.EcPoint, 0, p.NumWitnessTotal())
	challenges := make([]loader.Scalar, 0, p.NumChallengeTotal())
	for phase := range p.NumWitness {
		for i := 0; i < p.NumWitness[phase]; i++ {
			w, err := ts.ReadEcPoint()
			if err != nil {
				return nil, fmt.Errorf("read phase %d witness commitment %d: %w", phase, i, err)
			}
			witnesses = append(witnesses, w)
		}
		for i := 0; i < p.NumChallenge[phase]; i++ {
			c, err := ts.SqueezeChallenge()
			if err != nil {
				return nil, fmt.Errorf("squeeze phase %d challenge %d: %w", phase, i, err)
			}
			challenges = append(challenges, c)
		}
	}

	chunks := make([]loader.EcPoint, p.QuotientChunks)
	for i := range chunks {
		c, err := ts.ReadEcPoint()
		if err != nil {
			return nil, fmt.Errorf("read quotient chunk commitment %d: %w", i, err)
		}
		chunks[i] = c
	}

	z, err := ts.SqueezeChallenge()
	if err != nil {
		return nil, fmt.Errorf("squeeze evaluation point: %w", err)
	}

	evals := make(map[protocol.Query]loader.Scalar, len(p.Queries))
	for _, q := range p.Queries {
		e, err := ts.ReadScalar()
		if err != nil {
			return nil, fmt.Errorf("read evaluation of poly %d at rotation %d: %w", q.Poly, q.Rotation, err)
		}
		evals[q] = e
	}
	chunkEvals := make([]loader.Scalar, p.QuotientChunks)
	for i := range chunkEvals {
		e, err := ts.ReadScalar()
		if err != nil {
			return nil, fmt.Errorf("read quotient chunk evaluation %d: %w", i, err)
		}
		chunkEvals[i] = e
	}

	// The gate polynomial must vanish over the whole domain, which over
	// a multiplicative subgroup of size n means divisibility by Xⁿ-1.
	// The prover supplied the quotient in chunks of degree below n:
	// h(X) = Σᵢ hᵢ(X)·Xⁿⁱ. Both sides of gate(z) = h(z)·(zⁿ-1) are
	// evaluations the KZG opening argument below binds to the
	// commitments, so one scalar equality settles the identity.
	num, err := p.Gate.Evaluate(&protocol.Env{
		Loader:     l,
		Challenges: challenges,
		Instances:  instances,
		Evals:      evals,
	})
	if err != nil {
		return nil, fmt.Errorf("evaluate gate: %w", err)
	}
	zn := loader.PowConst(z, p.DomainSize)
	foldedH := loader.SumProducts(l, chunkEvals, loader.Powers(zn, p.QuotientChunks))
	one := l.LoadOne()
	if err := l.AssertScalarsEqual("quotient", num, foldedH.Mul(zn.Sub(one))); err != nil {
		return nil, err
	}

	sets := querySets(l, p, z, preprocessed, witnesses, chunks, chunkEvals, evals)
	return kzg.SuccinctVerify(l, ts, vk, sets)
}

// querySets groups every opened polynomial by its evaluation point. One
// set per distinct rotation, in ascending rotation order; the quotient
// chunks open at the unrotated point and join the rotation zero set.
func querySets(
	l loader.Loader,
	p *protocol.Protocol,
	z loader.Scalar,
	preprocessed, witnesses, chunks []loader.EcPoint,
	chunkEvals []loader.Scalar,
	evals map[protocol.Query]loader.Scalar,
) []kzg.QuerySet {
	commitment := func(poly int) loader.EcPoint {
		if poly < len(preprocessed) {
			return preprocessed[poly]
		}
		return witnesses[poly-len(preprocessed)]
	}

	rotations := p.Rotations()
	if !rotationsHaveZero(rotations) {
		i := 0
		for i < len(rotations) && rotations[i] < 0 {
			i++
		}
		rotations = append(rotations[:i], append([]protocol.Rotation{0}, rotations[i:]...)...)
	}
	sets := make([]kzg.QuerySet, 0, len(rotations))
	for _, rot := range rotations {
		point := z
		if rot != 0 {
			point = loader.SumWithCoeff(l, loader.Term{Coeff: p.RotationPoint(rot), Value: z})
		}
		set := kzg.QuerySet{Point: point}
		for _, q := range p.Queries {
			if q.Rotation != rot {
				continue
			}
			set.Queries = append(set.Queries, kzg.Query{
				Commitment: commitment(q.Poly),
				Eval:       evals[q],
			})
		}
		if rot == 0 {
			for i := range chunks {
				set.Queries = append(set.Queries, kzg.Query{
					Commitment: chunks[i],
					Eval:       chunkEvals[i],
				})
			}
		}
		sets = append(sets, set)
	}
	return sets
}

func rotationsHaveZero(rotations []protocol.Rotation) bool {
	for _, r := range rotations {
		if r == 0 {
			return true
		}
	}
	return false
}
