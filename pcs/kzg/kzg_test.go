package kzg_test

import (
	"crypto/rand"
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	fr "github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/stretchr/testify/require"

	"github.com/consensys/snark-verifier/loader/native"
	"github.com/consensys/snark-verifier/pcs/kzg"
	"github.com/consensys/snark-verifier/test"
	"github.com/consensys/snark-verifier/transcript"
)

func randScalar(t *testing.T) fr.Element {
	t.Helper()
	var v fr.Element
	_, err := v.SetRandom()
	require.NoError(t, err)
	return v
}

// validAccumulator returns (s·[τ]₁, s·[1]₁) for a random s, which
// satisfies the deferred pairing equation by construction.
func validAccumulator(t *testing.T, fpk kzg.FoldingProvingKey) kzg.RawAccumulator {
	t.Helper()
	s := randScalar(t)
	var sBig big.Int
	s.BigInt(&sBig)
	var raw kzg.RawAccumulator
	raw.Lhs.ScalarMultiplication(&fpk.G1Tau, &sBig)
	raw.Rhs.ScalarMultiplication(&fpk.G1, &sBig)
	return raw
}

func TestAccumulatorRawRoundTrip(t *testing.T) {
	srs := test.SRS(16)
	fpk := kzg.NewFoldingProvingKey(srs.Pk)
	raw := validAccumulator(t, fpk)

	l := native.NewLoader()
	acc := kzg.LoadAccumulator(l, raw)
	got, err := acc.Raw()
	require.NoError(t, err)
	require.True(t, raw.Lhs.Equal(&got.Lhs))
	require.True(t, raw.Rhs.Equal(&got.Rhs))
}

func TestLimbs(t *testing.T) {
	srs := test.SRS(16)
	raw := validAccumulator(t, kzg.NewFoldingProvingKey(srs.Pk))

	limbs, err := raw.Limbs(128, 2)
	require.NoError(t, err)
	require.Len(t, limbs, 8)

	shift := new(big.Int).Lsh(big.NewInt(1), 128)
	recombine := func(lo, hi *big.Int) *big.Int {
		return new(big.Int).Add(lo, new(big.Int).Mul(hi, shift))
	}
	require.Equal(t, raw.Lhs.X.BigInt(new(big.Int)), recombine(limbs[0], limbs[1]))
	require.Equal(t, raw.Lhs.Y.BigInt(new(big.Int)), recombine(limbs[2], limbs[3]))
	require.Equal(t, raw.Rhs.X.BigInt(new(big.Int)), recombine(limbs[4], limbs[5]))
	require.Equal(t, raw.Rhs.Y.BigInt(new(big.Int)), recombine(limbs[6], limbs[7]))

	_, err = raw.Limbs(64, 2)
	require.Error(t, err)
}

func TestDecide(t *testing.T) {
	srs := test.SRS(16)
	fpk := kzg.NewFoldingProvingKey(srs.Pk)

	require.NoError(t, kzg.Decide(validAccumulator(t, fpk), srs.Vk))

	bad := validAccumulator(t, fpk)
	bad.Lhs.Add(&bad.Lhs, &fpk.G1)
	require.ErrorIs(t, kzg.Decide(bad, srs.Vk), kzg.ErrPairingCheckFailed)
}

func TestFoldIdentity(t *testing.T) {
	srs := test.SRS(16)
	raw := validAccumulator(t, kzg.NewFoldingProvingKey(srs.Pk))

	l := native.NewLoader()
	acc := kzg.LoadAccumulator(l, raw)
	folded, err := kzg.FoldAccumulators(l, transcript.NewMiMC(l, nil), []*kzg.Accumulator{acc}, false)
	require.NoError(t, err)
	// no transcript round, no proof, same accumulator
	require.Same(t, acc, folded)
}

func TestFoldPreservesValidity(t *testing.T) {
	srs := test.SRS(16)
	fpk := kzg.NewFoldingProvingKey(srs.Pk)

	l := native.NewLoader()
	accs := make([]*kzg.Accumulator, 3)
	for i := range accs {
		accs[i] = kzg.LoadAccumulator(l, validAccumulator(t, fpk))
	}
	folded, err := kzg.FoldAccumulators(l, transcript.NewMiMC(l, nil), accs, false)
	require.NoError(t, err)
	raw, err := folded.Raw()
	require.NoError(t, err)
	require.NoError(t, kzg.Decide(raw, srs.Vk))
}

func TestFoldDetectsInvalidConstituent(t *testing.T) {
	srs := test.SRS(16)
	fpk := kzg.NewFoldingProvingKey(srs.Pk)

	bad := validAccumulator(t, fpk)
	bad.Rhs.Add(&bad.Rhs, &fpk.G1)

	l := native.NewLoader()
	accs := []*kzg.Accumulator{
		kzg.LoadAccumulator(l, validAccumulator(t, fpk)),
		kzg.LoadAccumulator(l, bad),
	}
	folded, err := kzg.FoldAccumulators(l, transcript.NewMiMC(l, nil), accs, false)
	require.NoError(t, err)
	raw, err := folded.Raw()
	require.NoError(t, err)
	require.ErrorIs(t, kzg.Decide(raw, srs.Vk), kzg.ErrPairingCheckFailed)
}

func TestProveFoldReplay(t *testing.T) {
	srs := test.SRS(16)
	fpk := kzg.NewFoldingProvingKey(srs.Pk)

	raws := make([]kzg.RawAccumulator, 3)
	for i := range raws {
		raws[i] = validAccumulator(t, fpk)
	}

	folded, proof, err := kzg.ProveFold(transcript.NewMiMCWriter(), fpk, raws, rand.Reader)
	require.NoError(t, err)
	require.Len(t, proof, 2*bn254.SizeOfG1AffineCompressed)
	require.NoError(t, kzg.Decide(folded, srs.Vk))

	// the verifier-side fold over the same transcript reproduces the
	// prover's accumulator exactly
	l := native.NewLoader()
	accs := make([]*kzg.Accumulator, len(raws))
	for i := range raws {
		accs[i] = kzg.LoadAccumulator(l, raws[i])
	}
	refolded, err := kzg.FoldAccumulators(l, transcript.NewMiMC(l, proof), accs, true)
	require.NoError(t, err)
	raw, err := refolded.Raw()
	require.NoError(t, err)
	require.True(t, folded.Lhs.Equal(&raw.Lhs))
	require.True(t, folded.Rhs.Equal(&raw.Rhs))
}

func TestProveFoldSingle(t *testing.T) {
	srs := test.SRS(16)
	fpk := kzg.NewFoldingProvingKey(srs.Pk)
	raw := validAccumulator(t, fpk)

	folded, proof, err := kzg.ProveFold(transcript.NewMiMCWriter(), fpk, []kzg.RawAccumulator{raw}, rand.Reader)
	require.NoError(t, err)
	require.Empty(t, proof)
	require.True(t, raw.Lhs.Equal(&folded.Lhs))
	require.True(t, raw.Rhs.Equal(&folded.Rhs))
}

func TestEmptyInputsPanic(t *testing.T) {
	l := native.NewLoader()
	require.Panics(t, func() {
		_, _ = kzg.FoldAccumulators(l, transcript.NewMiMC(l, nil), nil, false)
	})
	require.Panics(t, func() {
		_, _, _ = kzg.ProveFold(transcript.NewMiMCWriter(), kzg.FoldingProvingKey{}, nil, rand.Reader)
	})
	require.Panics(t, func() {
		_, _ = kzg.SuccinctVerify(l, transcript.NewMiMC(l, nil), &kzg.VerifyingKey{}, nil)
	})
}
