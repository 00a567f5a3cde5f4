package transcript_test

import (
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	fr "github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/stretchr/testify/require"

	"github.com/consensys/snark-verifier/loader"
	"github.com/consensys/snark-verifier/loader/circuit"
	"github.com/consensys/snark-verifier/loader/native"
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

func randPoint(t *testing.T) bn254.G1Affine {
	t.Helper()
	_, _, g, _ := bn254.Generators()
	s := randScalar(t)
	var p bn254.G1Affine
	p.ScalarMultiplication(&g, s.BigInt(new(big.Int)))
	return p
}

func TestSqueezeOnFreshFails(t *testing.T) {
	l := native.NewLoader()
	ts := transcript.NewKeccak(l, nil)
	require.Equal(t, transcript.StateFresh, ts.State())
	_, err := ts.SqueezeChallenge()
	require.Error(t, err)

	require.NoError(t, ts.CommonScalar(l.LoadOne()))
	require.Equal(t, transcript.StateAbsorbing, ts.State())
	_, err = ts.SqueezeChallenge()
	require.NoError(t, err)
}

func TestWriterReaderRoundTrip(t *testing.T) {
	for name, mk := range map[string]struct {
		writer func() *transcript.Writer
		reader func(*native.Loader, []byte) *transcript.Native
	}{
		"keccak": {transcript.NewKeccakWriter, transcript.NewKeccak},
		"mimc":   {transcript.NewMiMCWriter, transcript.NewMiMC},
	} {
		t.Run(name, func(t *testing.T) {
			s := randScalar(t)
			p := randPoint(t)
			common := randPoint(t)

			w := mk.writer()
			w.AbsorbPoint(&common)
			w.WriteScalar(&s)
			w.WriteEcPoint(&p)
			c1 := w.SqueezeChallenge()
			w.WriteScalar(&s)
			c2 := w.SqueezeChallenge()
			require.False(t, c1.Equal(&c2))

			l := native.NewLoader()
			ts := mk.reader(l, w.Bytes())
			require.NoError(t, ts.CommonEcPoint(l.LoadEcPoint(&common)))

			gotS, err := ts.ReadScalar()
			require.NoError(t, err)
			require.Equal(t, s, gotS.(native.Scalar).Value())

			gotP, err := ts.ReadEcPoint()
			require.NoError(t, err)
			v := gotP.(native.EcPoint).Value()
			require.True(t, p.Equal(&v))

			gotC1, err := ts.SqueezeChallenge()
			require.NoError(t, err)
			require.Equal(t, c1, gotC1.(native.Scalar).Value())

			_, err = ts.ReadScalar()
			require.NoError(t, err)
			gotC2, err := ts.SqueezeChallenge()
			require.NoError(t, err)
			require.Equal(t, c2, gotC2.(native.Scalar).Value())
		})
	}
}

func TestReadErrors(t *testing.T) {
	l := native.NewLoader()

	t.Run("exhausted stream", func(t *testing.T) {
		ts := transcript.NewKeccak(l, nil)
		_, err := ts.ReadScalar()
		require.ErrorIs(t, err, transcript.ErrProofExhausted)
		_, err = ts.ReadEcPoint()
		require.ErrorIs(t, err, transcript.ErrProofExhausted)
	})

	t.Run("non canonical scalar", func(t *testing.T) {
		mod := fr.Modulus().Bytes()
		buf := make([]byte, fr.Bytes)
		copy(buf[fr.Bytes-len(mod):], mod)
		ts := transcript.NewKeccak(l, buf)
		_, err := ts.ReadScalar()
		require.ErrorIs(t, err, transcript.ErrMalformedElement)
	})

	t.Run("invalid point encoding", func(t *testing.T) {
		buf := make([]byte, bn254.SizeOfG1AffineCompressed)
		for i := range buf {
			buf[i] = 0xff
		}
		ts := transcript.NewKeccak(l, buf)
		_, err := ts.ReadEcPoint()
		require.ErrorIs(t, err, transcript.ErrMalformedElement)
	})
}

// The native MiMC transcript and the in-circuit transcript over a MiMC
// gadget must produce identical challenge streams for the same proof.
func TestCircuitMatchesNativeMiMC(t *testing.T) {
	s := randScalar(t)
	p := randPoint(t)
	common := randPoint(t)

	w := transcript.NewMiMCWriter()
	w.AbsorbPoint(&common)
	w.WriteEcPoint(&p)
	c1 := w.SqueezeChallenge()
	w.WriteScalar(&s)
	c2 := w.SqueezeChallenge()

	nl := native.NewLoader()
	nts := transcript.NewMiMC(nl, w.Bytes())
	require.NoError(t, nts.CommonEcPoint(nl.LoadEcPoint(&common)))
	_, err := nts.ReadEcPoint()
	require.NoError(t, err)
	nc1, err := nts.SqueezeChallenge()
	require.NoError(t, err)
	_, err = nts.ReadScalar()
	require.NoError(t, err)
	nc2, err := nts.SqueezeChallenge()
	require.NoError(t, err)
	require.Equal(t, c1, nc1.(native.Scalar).Value())
	require.Equal(t, c2, nc2.(native.Scalar).Value())

	e := test.NewEngine()
	cl := circuit.NewLoader(e, e)
	cts := transcript.NewCircuit(cl, test.NewMiMCHasher(cl),
		[]loader.Scalar{cl.FromWire(s.BigInt(new(big.Int)))},
		[]loader.EcPoint{cl.FromGadget(&p)},
	)
	require.NoError(t, cts.CommonEcPoint(cl.LoadEcPoint(&common)))
	_, err = cts.ReadEcPoint()
	require.NoError(t, err)
	cc1, err := cts.SqueezeChallenge()
	require.NoError(t, err)
	_, err = cts.ReadScalar()
	require.NoError(t, err)
	cc2, err := cts.SqueezeChallenge()
	require.NoError(t, err)

	require.Equal(t, c1, test.Element(cc1.(circuit.Scalar).Wire()))
	require.Equal(t, c2, test.Element(cc2.(circuit.Scalar).Wire()))
	require.Empty(t, e.Failures())
}

func TestCircuitQueueExhausted(t *testing.T) {
	e := test.NewEngine()
	cl := circuit.NewLoader(e, e)
	cts := transcript.NewCircuit(cl, test.NewMiMCHasher(cl), nil, nil)
	_, err := cts.ReadScalar()
	require.ErrorIs(t, err, transcript.ErrProofExhausted)
	_, err = cts.ReadEcPoint()
	require.ErrorIs(t, err, transcript.ErrProofExhausted)
}
