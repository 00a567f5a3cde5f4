package test

import (
	stdhash "hash"
	"math/big"

	fr "github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"

	"github.com/consensys/snark-verifier/loader"
	"github.com/consensys/snark-verifier/loader/circuit"
	"github.com/consensys/snark-verifier/transcript"
)

// MiMCHasher implements [transcript.Hasher] over engine-backed wires by
// running the native MiMC permutation on the recovered values. Its
// challenge stream matches a native MiMC transcript bit for bit, which
// is exactly the property a real in-circuit MiMC gadget must have.
type MiMCHasher struct {
	l *circuit.Loader
	h stdhash.Hash
}

// NewMiMCHasher returns a hasher producing challenges bound to l. The
// returned value is what tests pass to [transcript.NewCircuit].
func NewMiMCHasher(l *circuit.Loader) *MiMCHasher {
	return &MiMCHasher{l: l, h: mimc.NewMiMC()}
}

func (m *MiMCHasher) Reset() {
	m.h.Reset()
}

func (m *MiMCHasher) WriteScalar(v loader.Scalar) {
	el := Element(v.(circuit.Scalar).Wire())
	b := el.Bytes()
	m.h.Write(b[:])
}

func (m *MiMCHasher) WritePoint(p loader.EcPoint) {
	pt := Gadget(p.(circuit.EcPoint).Gadget())
	limbs := transcript.PointLimbs(&pt)
	for i := range limbs {
		b := limbs[i].Bytes()
		m.h.Write(b[:])
	}
}

func (m *MiMCHasher) Sum() loader.Scalar {
	var c fr.Element
	c.SetBytes(m.h.Sum(nil))
	return m.l.FromWire(c.BigInt(new(big.Int)))
}
