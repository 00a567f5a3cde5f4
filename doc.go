// Package snarkverifier implements succinct verification of PLONK-style
// proofs over KZG polynomial commitments, together with an accumulation
// (folding) scheme that defers the final pairing check across many proofs.
//
// The verification algorithm is written once against the loader.Loader
// abstraction and runs in two execution contexts:
//   - native: plain field and curve arithmetic (loader/native)
//   - in-circuit: constraint emission through an external circuit
//     backend (loader/circuit)
//
// Succinct verification of a proof yields a kzg.Accumulator, a single
// deferred pairing equation e(lhs, [1]₂) = e(rhs, [τ]₂). Accumulators
// from several proofs are folded into one by the accumulation scheme and
// decided with a single pairing, or exposed as public outputs when
// verifying inside another circuit.
package snarkverifier

import (
	"github.com/blang/semver/v4"
)

// Version of the verifier. Serialized protocol descriptions embed it and
// are rejected on a major version mismatch.
var Version = semver.MustParse("0.1.0")
