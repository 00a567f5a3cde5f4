// Package aggregator drives verification end to end: it runs the
// succinct verifier over batches of proofs, folds the resulting pairing
// accumulators into one, and either decides the fold natively or
// prepares it for in-circuit replay.
package aggregator

import (
	"fmt"
	"io"
	"time"

	fr "github.com/consensys/gnark-crypto/ecc/bn254/fr"
	kzg_bn254 "github.com/consensys/gnark-crypto/ecc/bn254/kzg"
	"golang.org/x/sync/errgroup"

	"github.com/consensys/snark-verifier/loader"
	"github.com/consensys/snark-verifier/loader/native"
	"github.com/consensys/snark-verifier/logger"
	"github.com/consensys/snark-verifier/pcs/kzg"
	"github.com/consensys/snark-verifier/protocol"
	"github.com/consensys/snark-verifier/transcript"
	"github.com/consensys/snark-verifier/verifier/plonk"
)

// TranscriptHash selects the Fiat-Shamir hash the proofs of a protocol
// are produced with.
type TranscriptHash uint8

const (
	// HashKeccak is the byte-oriented default for proofs only ever
	// verified natively.
	HashKeccak TranscriptHash = iota
	// HashMiMC is the algebraic choice for proofs whose verification is
	// replayed inside a circuit.
	HashMiMC
)

// VerifyingKey bundles everything needed to verify proofs of one
// protocol: the protocol description, the KZG generator for the
// succinct phase, the two-point G2 key for the final pairing and the
// transcript hash the proofs commit to.
type VerifyingKey struct {
	Protocol *protocol.Protocol
	Kzg      kzg.VerifyingKey
	Srs      kzg_bn254.VerifyingKey
	Hash     TranscriptHash
}

// Proof is one serialized proof together with its public inputs, one
// slice per instance column.
type Proof struct {
	Instances [][]fr.Element
	Bytes     []byte
}

// succinct runs the pairing-free phase of one proof in a fresh native
// context and hands back the raw deferred pairing.
func succinct(vk *VerifyingKey, proof *Proof) (kzg.RawAccumulator, error) {
	l := native.NewLoader()
	instances := make([][]loader.Scalar, len(proof.Instances))
	for i, column := range proof.Instances {
		instances[i] = make([]loader.Scalar, len(column))
		for j := range column {
			instances[i][j] = l.LoadConst(&column[j])
		}
	}
	var ts transcript.Transcript
	if vk.Hash == HashMiMC {
		ts = transcript.NewMiMC(l, proof.Bytes)
	} else {
		ts = transcript.NewKeccak(l, proof.Bytes)
	}
	acc, err := plonk.Verify(l, vk.Protocol, instances, ts, &vk.Kzg)
	if err != nil {
		return kzg.RawAccumulator{}, err
	}
	return acc.Raw()
}

// Accumulate verifies every proof succinctly, in parallel, and returns
// the raw accumulators in input order. A failed proof fails the whole
// batch; the error reports which one.
func Accumulate(vk *VerifyingKey, proofs []Proof) ([]kzg.RawAccumulator, error) {
	raws := make([]kzg.RawAccumulator, len(proofs))
	var g errgroup.Group
	for i := range proofs {
		g.Go(func() error {
			raw, err := succinct(vk, &proofs[i])
			if err != nil {
				return fmt.Errorf("proof %d: %w", i, err)
			}
			raws[i] = raw
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return raws, nil
}

// AggregateAndDecide verifies a batch of proofs with a single pairing:
// succinct verification per proof, one unblinded fold, one pairing
// check. It panics on an empty batch.
func AggregateAndDecide(vk *VerifyingKey, proofs []Proof) error {
	if len(proofs) == 0 {
		panic("aggregator: empty proof batch")
	}
	start := time.Now()
	log := logger.Logger().With().Str("protocol", vk.Protocol.Name).Int("proofs", len(proofs)).Logger()

	raws, err := Accumulate(vk, proofs)
	if err != nil {
		return err
	}
	log.Debug().Dur("took", time.Since(start)).Msg("succinct phase done")

	folded, err := foldRaws(raws, nil)
	if err != nil {
		return err
	}
	if err := kzg.Decide(folded, vk.Srs); err != nil {
		return err
	}
	log.Info().Dur("took", time.Since(start)).Msg("batch verified")
	return nil
}

// AggregateAndProve verifies a batch succinctly and folds it with a
// blinded fold, returning the folded accumulator and the folding proof
// a remote party needs to reproduce the fold (natively through
// [DecideFolded], or inside a circuit). It panics on an empty batch.
func AggregateAndProve(vk *VerifyingKey, fpk kzg.FoldingProvingKey, proofs []Proof, rng io.Reader) (kzg.RawAccumulator, []byte, error) {
	if len(proofs) == 0 {
		panic("aggregator: empty proof batch")
	}
	raws, err := Accumulate(vk, proofs)
	if err != nil {
		return kzg.RawAccumulator{}, nil, err
	}
	// The folding transcript is algebraic so a circuit can replay it.
	folded, asProof, err := kzg.ProveFold(transcript.NewMiMCWriter(), fpk, raws, rng)
	if err != nil {
		return kzg.RawAccumulator{}, nil, fmt.Errorf("fold: %w", err)
	}
	log := logger.Logger()
	log.Debug().
		Str("protocol", vk.Protocol.Name).
		Int("proofs", len(proofs)).
		Int("foldingProofBytes", len(asProof)).
		Msg("batch folded")
	return folded, asProof, nil
}

// DecideFolded re-verifies a batch against a folding proof produced by
// [AggregateAndProve]: every proof is verified succinctly, the fold is
// replayed with the prover's blinding accumulator, and the result is
// decided with one pairing. It is the native twin of the in-circuit
// replay.
func DecideFolded(vk *VerifyingKey, proofs []Proof, foldingProof []byte) error {
	if len(proofs) == 0 {
		panic("aggregator: empty proof batch")
	}
	raws, err := Accumulate(vk, proofs)
	if err != nil {
		return err
	}
	folded, err := foldRaws(raws, foldingProof)
	if err != nil {
		return err
	}
	return kzg.Decide(folded, vk.Srs)
}

// foldRaws folds raw accumulators in a fresh native context. A non-nil
// foldingProof carries the prover's blinding accumulator. Folds are
// always transcripted algebraically, matching [kzg.ProveFold] and the
// in-circuit replay.
func foldRaws(raws []kzg.RawAccumulator, foldingProof []byte) (kzg.RawAccumulator, error) {
	l := native.NewLoader()
	accs := make([]*kzg.Accumulator, len(raws))
	for i := range raws {
		accs[i] = kzg.LoadAccumulator(l, raws[i])
	}
	folded, err := kzg.FoldAccumulators(l, transcript.NewMiMC(l, foldingProof), accs, foldingProof != nil)
	if err != nil {
		return kzg.RawAccumulator{}, fmt.Errorf("fold: %w", err)
	}
	return folded.Raw()
}
