// Package kzg implements succinct verification of KZG polynomial
// commitment openings and the accumulation scheme that folds many
// pending verifications into one deferred pairing check.
//
// Succinct verification never pairs: it reduces a batch of claimed
// openings to an [Accumulator], the pair (lhs, rhs) of the deferred
// equation e(lhs, [1]₂) = e(rhs, [τ]₂). A native caller holding the SRS
// decides accumulators with [Decide]; an in-circuit caller exposes the
// accumulator coordinates as public outputs instead.
package kzg

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	fp "github.com/consensys/gnark-crypto/ecc/bn254/fp"
	kzg_bn254 "github.com/consensys/gnark-crypto/ecc/bn254/kzg"

	"github.com/consensys/snark-verifier/loader"
	"github.com/consensys/snark-verifier/loader/native"
	"github.com/consensys/snark-verifier/transcript"
)

// ErrPairingCheckFailed is returned by [Decide] when the deferred pairing
// equation does not hold.
var ErrPairingCheckFailed = errors.New("deferred pairing check failed")

// VerifyingKey is the succinct KZG verifying key: the first generator
// power of the setup. It is all succinct verification needs; the G2
// powers stay with the native decider.
type VerifyingKey struct {
	G1 bn254.G1Affine
}

// Accumulator is one deferred pairing equation e(lhs, [1]₂) = e(rhs,
// [τ]₂). Accumulators are immutable: folding produces a new one.
type Accumulator struct {
	Lhs, Rhs loader.EcPoint
}

// RawAccumulator is an accumulator detached from any execution context,
// used to hand results between runs and to the decider.
type RawAccumulator struct {
	Lhs, Rhs bn254.G1Affine
}

// Raw extracts the underlying points. It fails when the accumulator does
// not live in a native context.
func (acc *Accumulator) Raw() (RawAccumulator, error) {
	lhs, ok := acc.Lhs.(native.EcPoint)
	if !ok {
		return RawAccumulator{}, fmt.Errorf("accumulator is not native: %T", acc.Lhs)
	}
	rhs, ok := acc.Rhs.(native.EcPoint)
	if !ok {
		return RawAccumulator{}, fmt.Errorf("accumulator is not native: %T", acc.Rhs)
	}
	return RawAccumulator{Lhs: lhs.Value(), Rhs: rhs.Value()}, nil
}

// LoadAccumulator lifts a raw accumulator into an execution context.
func LoadAccumulator(l loader.Loader, raw RawAccumulator) *Accumulator {
	return &Accumulator{
		Lhs: l.LoadEcPoint(&raw.Lhs),
		Rhs: l.LoadEcPoint(&raw.Rhs),
	}
}

// Limbs returns the four affine coordinates (lhs.X, lhs.Y, rhs.X, rhs.Y)
// each split into nbLimbs limbs of limbBits bits, least-significant limb
// first, for consumption as public inputs of an outer circuit. The limb
// convention must match the outer circuit's.
func (raw RawAccumulator) Limbs(limbBits, nbLimbs int) ([]*big.Int, error) {
	if limbBits*nbLimbs < fp.Bits {
		return nil, fmt.Errorf("%d limbs of %d bits cannot hold a %d-bit coordinate", nbLimbs, limbBits, fp.Bits)
	}
	coords := []fp.Element{raw.Lhs.X, raw.Lhs.Y, raw.Rhs.X, raw.Rhs.Y}
	mask := new(big.Int).Lsh(big.NewInt(1), uint(limbBits))
	mask.Sub(mask, big.NewInt(1))
	out := make([]*big.Int, 0, 4*nbLimbs)
	for i := range coords {
		v := coords[i].BigInt(new(big.Int))
		for k := 0; k < nbLimbs; k++ {
			limb := new(big.Int).Rsh(v, uint(k*limbBits))
			limb.And(limb, mask)
			out = append(out, limb)
		}
	}
	return out, nil
}

// Query is one claimed opening: a commitment and its claimed evaluation
// at the query set's point.
type Query struct {
	Commitment loader.EcPoint
	Eval       loader.Scalar
}

// QuerySet groups the openings claimed at one evaluation point. One
// opening proof is consumed per set.
type QuerySet struct {
	Point   loader.Scalar
	Queries []Query
}

// SuccinctVerify consumes the batched opening argument from the
// transcript and reduces it to an accumulator. The evaluations themselves
// must already have been absorbed by the caller; this squeezes the
// in-set batching challenge, reads one opening proof per set, squeezes
// the cross-set challenge and assembles the deferred equation with a
// single multi-scalar multiplication per side.
func SuccinctVerify(l loader.Loader, ts transcript.Transcript, vk *VerifyingKey, sets []QuerySet) (*Accumulator, error) {
	if len(sets) == 0 {
		panic("kzg: succinct verify over no query sets")
	}

	v, err := ts.SqueezeChallenge()
	if err != nil {
		return nil, fmt.Errorf("squeeze batching challenge: %w", err)
	}
	maxQueries := 0
	for i := range sets {
		if n := len(sets[i].Queries); n > maxQueries {
			maxQueries = n
		}
	}
	vPowers := loader.Powers(v, maxQueries)

	// fold claimed evaluations per set before reading the proofs; the
	// commitment side folds into the final MSM directly
	foldedEvals := make([]loader.Scalar, len(sets))
	for i := range sets {
		evals := make([]loader.Scalar, len(sets[i].Queries))
		for j := range sets[i].Queries {
			evals[j] = sets[i].Queries[j].Eval
		}
		foldedEvals[i] = loader.SumProducts(l, vPowers[:len(evals)], evals)
	}

	proofs := make([]loader.EcPoint, len(sets))
	for i := range sets {
		if proofs[i], err = ts.ReadEcPoint(); err != nil {
			return nil, fmt.Errorf("read opening proof %d: %w", i, err)
		}
	}

	u, err := ts.SqueezeChallenge()
	if err != nil {
		return nil, fmt.Errorf("squeeze set challenge: %w", err)
	}
	uPowers := loader.Powers(u, len(sets))

	// lhs = Σᵢ uⁱ·(Σⱼ vʲ·Cᵢⱼ + zᵢ·Wᵢ) − (Σᵢ uⁱ·valᵢ)·G
	var scalars []loader.Scalar
	var points []loader.EcPoint
	for i := range sets {
		for j := range sets[i].Queries {
			var coeff loader.Scalar
			switch {
			case i == 0 && j == 0:
				coeff = l.LoadOne()
			case i == 0:
				coeff = vPowers[j]
			case j == 0:
				coeff = uPowers[i]
			default:
				coeff = uPowers[i].Mul(vPowers[j])
			}
			scalars = append(scalars, coeff)
			points = append(points, sets[i].Queries[j].Commitment)
		}
		zw := sets[i].Point
		if i > 0 {
			zw = uPowers[i].Mul(zw)
		}
		scalars = append(scalars, zw)
		points = append(points, proofs[i])
	}
	scalars = append(scalars, loader.SumProducts(l, uPowers, foldedEvals).Neg())
	points = append(points, l.LoadEcPoint(&vk.G1))

	lhs, err := l.MultiScalarMul(scalars, points)
	if err != nil {
		return nil, fmt.Errorf("lhs msm: %w", err)
	}
	rhs, err := l.MultiScalarMul(uPowers, proofs)
	if err != nil {
		return nil, fmt.Errorf("rhs msm: %w", err)
	}
	return &Accumulator{Lhs: lhs, Rhs: rhs}, nil
}

// Decide performs the final pairing check of a raw accumulator against
// the SRS. Only a native caller holding the pairing primitive can
// decide; in-circuit accumulators are exposed as public outputs instead.
func Decide(raw RawAccumulator, vk kzg_bn254.VerifyingKey) error {
	var negRhs bn254.G1Affine
	negRhs.Neg(&raw.Rhs)
	ok, err := bn254.PairingCheck(
		[]bn254.G1Affine{raw.Lhs, negRhs},
		[]bn254.G2Affine{vk.G2[0], vk.G2[1]},
	)
	if err != nil {
		return fmt.Errorf("pairing: %w", err)
	}
	if !ok {
		return ErrPairingCheckFailed
	}
	return nil
}
