package aggregator

import (
	"fmt"

	"github.com/consensys/snark-verifier/loader"
	"github.com/consensys/snark-verifier/loader/circuit"
	"github.com/consensys/snark-verifier/pcs/kzg"
	"github.com/consensys/snark-verifier/transcript"
	"github.com/consensys/snark-verifier/verifier/plonk"
)

// Accumulator limb decomposition exposed to the outer circuit's public
// inputs: each affine coordinate split into two 128-bit limbs,
// least-significant first, matching [transcript.PointLimbs].
const (
	LimbBits = 128
	NbLimbs  = 2
)

// WireProof is one inner proof pre-assigned as circuit values: the
// public inputs per column, and the proof's scalar and point elements in
// protocol order, each queue consumed independently by the transcript.
type WireProof struct {
	Instances [][]loader.Scalar
	Scalars   []loader.Scalar
	Points    []loader.EcPoint
}

// AggregateInCircuit replays batch verification inside a circuit: one
// succinct verification per proof over its own transcript, then a fold
// replaying the folding proof's blinding accumulator through foldBlind
// (its two points, in lhs, rhs order). newHasher must return a fresh
// gadget of the algebraic hash the proofs and the folding proof were
// produced with.
//
// A single-proof batch is folded by identity: the folding proof is
// empty, foldBlind must be too, and the lone accumulator passes through
// without a transcript round, mirroring [kzg.ProveFold].
//
// The returned accumulator's limbs are what the outer circuit exposes;
// call [ExposeAccumulator] (or expose them yourself) so the native
// decider can reconstruct and check the pairing.
func AggregateInCircuit(l *circuit.Loader, newHasher func() transcript.Hasher, vk *VerifyingKey, proofs []WireProof, foldBlind []loader.EcPoint) (*kzg.Accumulator, error) {
	if len(proofs) == 0 {
		panic("aggregator: empty proof batch")
	}
	if len(proofs) == 1 {
		if len(foldBlind) != 0 {
			return nil, fmt.Errorf("single-proof batch folds by identity, got a %d point folding proof", len(foldBlind))
		}
	} else if len(foldBlind) != 2 {
		return nil, fmt.Errorf("folding proof must carry exactly two points, got %d", len(foldBlind))
	}

	accs := make([]*kzg.Accumulator, len(proofs))
	for i := range proofs {
		l.StartCostMetering(fmt.Sprintf("proof %d", i))
		ts := transcript.NewCircuit(l, newHasher(), proofs[i].Scalars, proofs[i].Points)
		acc, err := plonk.Verify(l, vk.Protocol, proofs[i].Instances, ts, &vk.Kzg)
		l.EndCostMetering()
		if err != nil {
			return nil, fmt.Errorf("proof %d: %w", i, err)
		}
		accs[i] = acc
	}

	if len(proofs) == 1 {
		return accs[0], nil
	}

	l.StartCostMetering("fold")
	ts := transcript.NewCircuit(l, newHasher(), nil, foldBlind)
	folded, err := kzg.FoldAccumulators(l, ts, accs, true)
	l.EndCostMetering()
	if err != nil {
		return nil, fmt.Errorf("fold: %w", err)
	}
	return folded, nil
}

// ExposeAccumulator marks both accumulator points as public outputs of
// the outer circuit, decomposed per the package limb convention.
func ExposeAccumulator(l *circuit.Loader, acc *kzg.Accumulator) error {
	if err := l.ExposeAsPublic(acc.Lhs, LimbBits, NbLimbs); err != nil {
		return fmt.Errorf("expose lhs: %w", err)
	}
	if err := l.ExposeAsPublic(acc.Rhs, LimbBits, NbLimbs); err != nil {
		return fmt.Errorf("expose rhs: %w", err)
	}
	return nil
}
