package kzg

import (
	"fmt"
	"io"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254"
	fr "github.com/consensys/gnark-crypto/ecc/bn254/fr"
	kzg_bn254 "github.com/consensys/gnark-crypto/ecc/bn254/kzg"

	"github.com/consensys/snark-verifier/loader"
	"github.com/consensys/snark-verifier/transcript"
)

// FoldingProvingKey holds the two SRS points the accumulation prover
// needs to blind a fold: [1]₁ and [τ]₁.
type FoldingProvingKey struct {
	G1    bn254.G1Affine
	G1Tau bn254.G1Affine
}

// NewFoldingProvingKey extracts the folding key from a KZG proving key.
func NewFoldingProvingKey(pk kzg_bn254.ProvingKey) FoldingProvingKey {
	return FoldingProvingKey{G1: pk.G1[0], G1Tau: pk.G1[1]}
}

// FoldAccumulators combines pending accumulators into one.
//
// A single accumulator is returned unchanged: the identity fold needs no
// transcript round and no proof. For two or more, every accumulator's
// points are absorbed in order, the folding proof's blinding accumulator
// is read when withProof is set, a challenge r is squeezed and both
// components are folded independently as Σⱼ rʲ·(·)ⱼ. A random linear
// combination of valid pairing equations is, with overwhelming
// probability, only satisfiable if every constituent held.
func FoldAccumulators(l loader.Loader, ts transcript.Transcript, accs []*Accumulator, withProof bool) (*Accumulator, error) {
	if len(accs) == 0 {
		panic("kzg: fold over no accumulators")
	}
	if len(accs) == 1 && !withProof {
		return accs[0], nil
	}

	for i, acc := range accs {
		if err := ts.CommonEcPoint(acc.Lhs); err != nil {
			return nil, fmt.Errorf("absorb accumulator %d: %w", i, err)
		}
		if err := ts.CommonEcPoint(acc.Rhs); err != nil {
			return nil, fmt.Errorf("absorb accumulator %d: %w", i, err)
		}
	}

	all := make([]*Accumulator, len(accs), len(accs)+1)
	copy(all, accs)
	if withProof {
		blindLhs, err := ts.ReadEcPoint()
		if err != nil {
			return nil, fmt.Errorf("read blinding accumulator: %w", err)
		}
		blindRhs, err := ts.ReadEcPoint()
		if err != nil {
			return nil, fmt.Errorf("read blinding accumulator: %w", err)
		}
		all = append(all, &Accumulator{Lhs: blindLhs, Rhs: blindRhs})
	}

	r, err := ts.SqueezeChallenge()
	if err != nil {
		return nil, fmt.Errorf("squeeze folding challenge: %w", err)
	}
	rPowers := loader.Powers(r, len(all))

	lhss := make([]loader.EcPoint, len(all))
	rhss := make([]loader.EcPoint, len(all))
	for i, acc := range all {
		lhss[i] = acc.Lhs
		rhss[i] = acc.Rhs
	}
	lhs, err := l.MultiScalarMul(rPowers, lhss)
	if err != nil {
		return nil, fmt.Errorf("fold lhs: %w", err)
	}
	rhs, err := l.MultiScalarMul(rPowers, rhss)
	if err != nil {
		return nil, fmt.Errorf("fold rhs: %w", err)
	}
	return &Accumulator{Lhs: lhs, Rhs: rhs}, nil
}

// ProveFold folds raw accumulators natively and produces the folding
// proof a remote verifier consumes: the blinding accumulator
// (s·[τ]₁, s·[1]₁) for a random s drawn from rng, written to the
// transcript before the challenge is squeezed. A single accumulator
// folds to itself with an empty proof.
//
// Only a native prover produces folding proofs; in-circuit verification
// only ever consumes them.
func ProveFold(w *transcript.Writer, pk FoldingProvingKey, accs []RawAccumulator, rng io.Reader) (RawAccumulator, []byte, error) {
	if len(accs) == 0 {
		panic("kzg: fold over no accumulators")
	}
	if len(accs) == 1 {
		return accs[0], nil, nil
	}

	for i := range accs {
		w.AbsorbPoint(&accs[i].Lhs)
		w.AbsorbPoint(&accs[i].Rhs)
	}

	var buf [fr.Bytes + 16]byte
	if _, err := io.ReadFull(rng, buf[:]); err != nil {
		return RawAccumulator{}, nil, fmt.Errorf("draw blinding scalar: %w", err)
	}
	var s fr.Element
	s.SetBytes(buf[:])
	var sBig big.Int
	s.BigInt(&sBig)

	var blind RawAccumulator
	blind.Lhs.ScalarMultiplication(&pk.G1Tau, &sBig)
	blind.Rhs.ScalarMultiplication(&pk.G1, &sBig)
	w.WriteEcPoint(&blind.Lhs)
	w.WriteEcPoint(&blind.Rhs)

	r := w.SqueezeChallenge()
	all := make([]RawAccumulator, len(accs), len(accs)+1)
	copy(all, accs)
	all = append(all, blind)

	folded, err := foldRaw(all, r)
	if err != nil {
		return RawAccumulator{}, nil, err
	}
	return folded, w.Bytes(), nil
}

func foldRaw(accs []RawAccumulator, r fr.Element) (RawAccumulator, error) {
	coeffs := make([]fr.Element, len(accs))
	lhss := make([]bn254.G1Affine, len(accs))
	rhss := make([]bn254.G1Affine, len(accs))
	coeffs[0] = fr.One()
	for i := range accs {
		if i > 0 {
			coeffs[i].Mul(&coeffs[i-1], &r)
		}
		lhss[i] = accs[i].Lhs
		rhss[i] = accs[i].Rhs
	}
	var out RawAccumulator
	if _, err := out.Lhs.MultiExp(lhss, coeffs, ecc.MultiExpConfig{}); err != nil {
		return out, err
	}
	if _, err := out.Rhs.MultiExp(rhss, coeffs, ecc.MultiExpConfig{}); err != nil {
		return out, err
	}
	return out, nil
}
