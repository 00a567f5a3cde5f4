package test

import (
	"bytes"
	"fmt"
	"io"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	fr "github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/fft"
	kzg_bn254 "github.com/consensys/gnark-crypto/ecc/bn254/kzg"

	"github.com/consensys/snark-verifier/aggregator"
	"github.com/consensys/snark-verifier/loader"
	"github.com/consensys/snark-verifier/loader/circuit"
	"github.com/consensys/snark-verifier/pcs/kzg"
	"github.com/consensys/snark-verifier/protocol"
	"github.com/consensys/snark-verifier/transcript"
)

// FixtureDomain is the evaluation domain size of the fixture protocol.
const FixtureDomain = 8

// Fixture is a small but complete protocol together with an honest
// prover. One preprocessed polynomial q, a first-phase witness a, a
// challenge β, a second-phase witness b and one public input ι, bound by
// the gate
//
//	q·(b - a - β·ι) = 0 over the domain.
//
// The prover commits b = a + β·ι + (Xⁿ-1)·g for a random masking
// polynomial g, so the quotient is q·g and spans two chunks. The opening
// of a at the rotated point exercises the multi-point path of the
// batched opening argument.
type Fixture struct {
	Protocol *protocol.Protocol
	Kzg      kzg.VerifyingKey
	Srs      kzg_bn254.VerifyingKey
	Fpk      kzg.FoldingProvingKey

	pk    kzg_bn254.ProvingKey
	q     []fr.Element
	omega fr.Element
}

// NewFixture generates the fixture keys and preprocessed polynomial.
func NewFixture() *Fixture {
	srs := SRS(2 * FixtureDomain)
	domain := fft.NewDomain(FixtureDomain)

	q := randPoly(FixtureDomain)
	qc, err := kzg_bn254.Commit(q, srs.Pk)
	if err != nil {
		panic(err)
	}

	p := &protocol.Protocol{
		Name:           "fixture",
		DomainSize:     FixtureDomain,
		Generator:      domain.Generator,
		NumInstance:    []int{1},
		NumWitness:     []int{1, 1},
		NumChallenge:   []int{1, 0},
		Preprocessed:   []bn254.G1Affine{qc},
		QuotientChunks: 2,
		Queries: []protocol.Query{
			{Poly: 0, Rotation: 0},
			{Poly: 1, Rotation: 0},
			{Poly: 2, Rotation: 0},
			{Poly: 1, Rotation: 1},
		},
		Gate: protocol.Product{
			A: protocol.Polynomial{Query: protocol.Query{Poly: 0}},
			B: protocol.Sum{
				A: protocol.Polynomial{Query: protocol.Query{Poly: 2}},
				B: protocol.Negated{Inner: protocol.Sum{
					A: protocol.Polynomial{Query: protocol.Query{Poly: 1}},
					B: protocol.Product{
						A: protocol.Challenge{Index: 0},
						B: protocol.Instance{Column: 0, Row: 0},
					},
				}},
			},
		},
	}
	if err := p.Validate(); err != nil {
		panic(err)
	}

	return &Fixture{
		Protocol: p,
		Kzg:      kzg.VerifyingKey{G1: srs.Vk.G1},
		Srs:      srs.Vk,
		Fpk:      kzg.NewFoldingProvingKey(srs.Pk),
		pk:       srs.Pk,
		q:        q,
		omega:    domain.Generator,
	}
}

// VK bundles the fixture keys the way the aggregator consumes them.
// hash must match the writer the proofs are produced with.
func (f *Fixture) VK(hash aggregator.TranscriptHash) *aggregator.VerifyingKey {
	return &aggregator.VerifyingKey{Protocol: f.Protocol, Kzg: f.Kzg, Srs: f.Srs, Hash: hash}
}

// Prove produces an honest proof of the given public input through w,
// which chooses the transcript hash. The returned proof verifies against
// a reader-side transcript of the same hash.
func (f *Fixture) Prove(w *transcript.Writer, instance fr.Element) aggregator.Proof {
	n := FixtureDomain

	w.AbsorbPoint(&f.Protocol.Preprocessed[0])
	w.AbsorbScalar(&instance)

	a := randPoly(n)
	f.commitAndWrite(w, a)
	beta := w.SqueezeChallenge()

	// b = a + β·ι + (Xⁿ-1)·g, so the gate is q·(Xⁿ-1)·g and the
	// quotient is exactly q·g.
	g := randPoly(n)
	b := make([]fr.Element, 2*n)
	copy(b, a)
	var shift fr.Element
	shift.Mul(&beta, &instance)
	b[0].Add(&b[0], &shift)
	for i := 0; i < n; i++ {
		b[i].Sub(&b[i], &g[i])
		b[n+i].Add(&b[n+i], &g[i])
	}
	f.commitAndWrite(w, b)

	h := polyMul(f.q, g)
	h0, h1 := h[:n], h[n:]
	f.commitAndWrite(w, h0)
	f.commitAndWrite(w, h1)

	z := w.SqueezeChallenge()
	var wz fr.Element
	wz.Mul(&z, &f.omega)
	for _, ev := range []fr.Element{
		polyEval(f.q, z), polyEval(a, z), polyEval(b, z), polyEval(a, wz),
		polyEval(h0, z), polyEval(h1, z),
	} {
		w.WriteScalar(&ev)
	}

	v := w.SqueezeChallenge()
	folded := foldPolys(v, f.q, a, b, h0, h1)
	f.openAndWrite(w, folded, z)
	f.openAndWrite(w, a, wz)

	return aggregator.Proof{
		Instances: [][]fr.Element{{instance}},
		Bytes:     w.Bytes(),
	}
}

func (f *Fixture) commitAndWrite(w *transcript.Writer, p []fr.Element) {
	c, err := kzg_bn254.Commit(p, f.pk)
	if err != nil {
		panic(err)
	}
	w.WriteEcPoint(&c)
}

func (f *Fixture) openAndWrite(w *transcript.Writer, p []fr.Element, point fr.Element) {
	proof, err := kzg_bn254.Open(p, point, f.pk)
	if err != nil {
		panic(err)
	}
	w.WriteEcPoint(&proof.H)
}

// Wires re-parses a serialized proof into the pre-assigned element
// queues an in-circuit transcript consumes, bound to the given circuit
// context.
func (f *Fixture) Wires(l *circuit.Loader, proof aggregator.Proof) (aggregator.WireProof, error) {
	buf := bytes.NewReader(proof.Bytes)

	numScalars := len(f.Protocol.Queries) + f.Protocol.QuotientChunks

	// the wire stream interleaves points and scalars; consume it in
	// write order but queue per kind
	var wp aggregator.WireProof
	readPoints := func(n int) error {
		for i := 0; i < n; i++ {
			p, err := readPoint(buf)
			if err != nil {
				return err
			}
			wp.Points = append(wp.Points, l.FromGadget(p))
		}
		return nil
	}
	if err := readPoints(f.Protocol.NumWitnessTotal() + f.Protocol.QuotientChunks); err != nil {
		return wp, err
	}
	for i := 0; i < numScalars; i++ {
		s, err := readScalar(buf)
		if err != nil {
			return wp, err
		}
		wp.Scalars = append(wp.Scalars, l.FromWire(s.BigInt(new(big.Int))))
	}
	if err := readPoints(numQuerySets(f.Protocol)); err != nil {
		return wp, err
	}
	if buf.Len() != 0 {
		return wp, fmt.Errorf("%d trailing proof bytes", buf.Len())
	}

	wp.Instances = make([][]loader.Scalar, len(proof.Instances))
	for i, column := range proof.Instances {
		wp.Instances[i] = make([]loader.Scalar, len(column))
		for j := range column {
			wp.Instances[i][j] = l.FromWire(column[j].BigInt(new(big.Int)))
		}
	}
	return wp, nil
}

// BlindWires parses a folding proof into the point queue the in-circuit
// fold consumes. An empty folding proof, as produced for a single
// accumulator, yields an empty queue.
func BlindWires(l *circuit.Loader, foldingProof []byte) ([]loader.EcPoint, error) {
	if len(foldingProof) == 0 {
		return nil, nil
	}
	buf := bytes.NewReader(foldingProof)
	out := make([]loader.EcPoint, 2)
	for i := range out {
		p, err := readPoint(buf)
		if err != nil {
			return nil, err
		}
		out[i] = l.FromGadget(p)
	}
	return out, nil
}

func numQuerySets(p *protocol.Protocol) int {
	sets := 0
	hasZero := false
	for _, r := range p.Rotations() {
		sets++
		if r == 0 {
			hasZero = true
		}
	}
	if !hasZero {
		sets++
	}
	return sets
}

func readPoint(r io.Reader) (*bn254.G1Affine, error) {
	var buf [bn254.SizeOfG1AffineCompressed]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return nil, err
	}
	p := new(bn254.G1Affine)
	if _, err := p.SetBytes(buf[:]); err != nil {
		return nil, err
	}
	return p, nil
}

func readScalar(r io.Reader) (fr.Element, error) {
	var buf [fr.Bytes]byte
	var v fr.Element
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return v, err
	}
	err := v.SetBytesCanonical(buf[:])
	return v, err
}

func randPoly(n int) []fr.Element {
	p := make([]fr.Element, n)
	for i := range p {
		if _, err := p[i].SetRandom(); err != nil {
			panic(err)
		}
	}
	return p
}

func polyEval(p []fr.Element, x fr.Element) fr.Element {
	var acc fr.Element
	for i := len(p) - 1; i >= 0; i-- {
		acc.Mul(&acc, &x).Add(&acc, &p[i])
	}
	return acc
}

func polyMul(a, b []fr.Element) []fr.Element {
	out := make([]fr.Element, len(a)+len(b)-1)
	var t fr.Element
	for i := range a {
		for j := range b {
			t.Mul(&a[i], &b[j])
			out[i+j].Add(&out[i+j], &t)
		}
	}
	return out
}

// foldPolys combines polynomials coefficient-wise by powers of v, in the
// order the verifier folds a query set.
func foldPolys(v fr.Element, polys ...[]fr.Element) []fr.Element {
	size := 0
	for _, p := range polys {
		if len(p) > size {
			size = len(p)
		}
	}
	out := make([]fr.Element, size)
	coeff := fr.One()
	var t fr.Element
	for i, p := range polys {
		if i > 0 {
			coeff.Mul(&coeff, &v)
		}
		for j := range p {
			t.Mul(&coeff, &p[j])
			out[j].Add(&out[j], &t)
		}
	}
	return out
}
