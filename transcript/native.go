package transcript

import (
	"bytes"
	"fmt"
	stdhash "hash"
	"io"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	fr "github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"golang.org/x/crypto/sha3"

	"github.com/consensys/snark-verifier/loader"
	"github.com/consensys/snark-verifier/loader/native"
)

// PointLimbs splits the uncompressed encoding of p into four 128-bit
// big-endian chunks, each returned as a canonical field element. This is
// the absorption convention for curve points in algebraic transcripts:
// circuit-side hash gadgets must absorb points the same way for the
// challenge streams to match.
func PointLimbs(p *bn254.G1Affine) [4]fr.Element {
	raw := p.RawBytes()
	var limbs [4]fr.Element
	for i := range limbs {
		limbs[i].SetBytes(raw[i*16 : (i+1)*16])
	}
	return limbs
}

// Digest is the hashing core shared by the native transcripts and the
// prover-side writer. Two conventions exist:
//   - Keccak256: byte-oriented, points absorbed as raw 64-byte encodings;
//     the general-purpose choice for plain native verification.
//   - MiMC: field-oriented, points absorbed as [PointLimbs] blocks; the
//     algebraic choice replayable by an in-circuit hash gadget.
//
// A proof transcripted with one convention must be verified with the
// same one; the byte streams are not cross-compatible.
type Digest struct {
	h       stdhash.Hash
	asLimbs bool
}

// NewKeccakDigest returns a Keccak256 hashing core.
func NewKeccakDigest() *Digest {
	return &Digest{h: sha3.NewLegacyKeccak256()}
}

// NewMiMCDigest returns a MiMC hashing core.
func NewMiMCDigest() *Digest {
	return &Digest{h: mimc.NewMiMC(), asLimbs: true}
}

// AbsorbScalar absorbs the canonical big-endian encoding of v.
func (d *Digest) AbsorbScalar(v *fr.Element) {
	b := v.Bytes()
	d.h.Write(b[:])
}

// AbsorbPoint absorbs p per the digest's point convention.
func (d *Digest) AbsorbPoint(p *bn254.G1Affine) {
	if d.asLimbs {
		limbs := PointLimbs(p)
		for i := range limbs {
			b := limbs[i].Bytes()
			d.h.Write(b[:])
		}
		return
	}
	raw := p.RawBytes()
	d.h.Write(raw[:])
}

// Squeeze derives the next challenge from everything absorbed so far and
// chains it into the state.
func (d *Digest) Squeeze() fr.Element {
	sum := d.h.Sum(nil)
	var c fr.Element
	c.SetBytes(sum)
	d.h.Reset()
	d.h.Write(sum)
	return c
}

// Native is a verifier-side transcript over a native execution context,
// consuming the proof from a byte stream.
type Native struct {
	l     *native.Loader
	d     *Digest
	buf   *bytes.Reader
	state State
}

// NewKeccak returns a Keccak256 transcript reading the given proof
// stream. proof may be nil for transcripts that only absorb and squeeze.
func NewKeccak(l *native.Loader, proof []byte) *Native {
	return &Native{l: l, d: NewKeccakDigest(), buf: bytes.NewReader(proof)}
}

// NewMiMC returns a MiMC transcript reading the given proof stream. Its
// challenge stream matches a [Circuit] transcript over a MiMC gadget
// parameterized identically.
func NewMiMC(l *native.Loader, proof []byte) *Native {
	return &Native{l: l, d: NewMiMCDigest(), buf: bytes.NewReader(proof)}
}

func (t *Native) State() State {
	return t.state
}

func (t *Native) SqueezeChallenge() (loader.Scalar, error) {
	if t.state == StateFresh {
		return nil, fmt.Errorf("squeeze on a fresh transcript")
	}
	c := t.d.Squeeze()
	// the squeezed challenge is chained into the state, so the next
	// round starts absorbing on top of it
	t.state = StateAbsorbing
	return t.l.LoadConst(&c), nil
}

func (t *Native) CommonScalar(v loader.Scalar) error {
	s, ok := v.(native.Scalar)
	if !ok {
		return fmt.Errorf("absorbing non-native scalar %T", v)
	}
	val := s.Value()
	t.d.AbsorbScalar(&val)
	t.state = StateAbsorbing
	return nil
}

func (t *Native) CommonEcPoint(p loader.EcPoint) error {
	e, ok := p.(native.EcPoint)
	if !ok {
		return fmt.Errorf("absorbing non-native ec point %T", p)
	}
	val := e.Value()
	t.d.AbsorbPoint(&val)
	t.state = StateAbsorbing
	return nil
}

func (t *Native) ReadScalar() (loader.Scalar, error) {
	var buf [fr.Bytes]byte
	if _, err := io.ReadFull(t.buf, buf[:]); err != nil {
		return nil, fmt.Errorf("%w: scalar: %v", ErrProofExhausted, err)
	}
	var v fr.Element
	if err := v.SetBytesCanonical(buf[:]); err != nil {
		return nil, fmt.Errorf("%w: scalar: %v", ErrMalformedElement, err)
	}
	s := t.l.LoadConst(&v)
	if err := t.CommonScalar(s); err != nil {
		return nil, err
	}
	return s, nil
}

func (t *Native) ReadEcPoint() (loader.EcPoint, error) {
	var buf [bn254.SizeOfG1AffineCompressed]byte
	if _, err := io.ReadFull(t.buf, buf[:]); err != nil {
		return nil, fmt.Errorf("%w: ec point: %v", ErrProofExhausted, err)
	}
	var p bn254.G1Affine
	if _, err := p.SetBytes(buf[:]); err != nil {
		return nil, fmt.Errorf("%w: ec point: %v", ErrMalformedElement, err)
	}
	e := t.l.LoadEcPoint(&p)
	if err := t.CommonEcPoint(e); err != nil {
		return nil, err
	}
	return e, nil
}

// Writer is the prover-side counterpart of [Native]: it appends proof
// elements to a wire buffer while keeping the hash state in sync, so the
// produced stream replays byte-exactly on the verifier side. It operates
// on raw values; proving only ever happens natively.
type Writer struct {
	d     *Digest
	buf   bytes.Buffer
	state State
}

// NewKeccakWriter returns a prover-side Keccak256 transcript.
func NewKeccakWriter() *Writer {
	return &Writer{d: NewKeccakDigest()}
}

// NewMiMCWriter returns a prover-side MiMC transcript.
func NewMiMCWriter() *Writer {
	return &Writer{d: NewMiMCDigest()}
}

func (w *Writer) State() State {
	return w.state
}

// AbsorbScalar absorbs a value common to prover and verifier without
// writing it to the wire.
func (w *Writer) AbsorbScalar(v *fr.Element) {
	w.d.AbsorbScalar(v)
	w.state = StateAbsorbing
}

// AbsorbPoint absorbs a common point without writing it to the wire.
func (w *Writer) AbsorbPoint(p *bn254.G1Affine) {
	w.d.AbsorbPoint(p)
	w.state = StateAbsorbing
}

// WriteScalar appends v to the wire and absorbs it.
func (w *Writer) WriteScalar(v *fr.Element) {
	b := v.Bytes()
	w.buf.Write(b[:])
	w.AbsorbScalar(v)
}

// WriteEcPoint appends the compressed encoding of p to the wire and
// absorbs it.
func (w *Writer) WriteEcPoint(p *bn254.G1Affine) {
	b := p.Bytes()
	w.buf.Write(b[:])
	w.AbsorbPoint(p)
}

// SqueezeChallenge derives the next challenge; it must mirror every
// verifier-side squeeze, in order.
func (w *Writer) SqueezeChallenge() fr.Element {
	c := w.d.Squeeze()
	w.state = StateAbsorbing
	return c
}

// Bytes returns the wire stream written so far.
func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}
