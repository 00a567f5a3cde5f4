// Package transcript implements Fiat–Shamir challenge derivation over the
// loader abstraction. The same sequence of transcript operations yields
// bit-identical challenges whether the surrounding verification runs
// natively or in-circuit, provided both sides use matching hash
// parameterizations; this replay equivalence is what makes recursive
// verification sound.
//
// A transcript is a one-way state machine: absorbed data and squeezed
// challenges are append-only, never rewound. Reading a proof element is
// itself absorption.
package transcript

import (
	"errors"

	"github.com/consensys/snark-verifier/loader"
)

// State of the transcript machine. Squeezing from an Absorbing transcript
// moves it to Squeezed and implicitly back to Absorbing for the next
// round.
type State uint8

const (
	StateFresh State = iota
	StateAbsorbing
	StateSqueezed
)

var (
	// ErrProofExhausted is returned when a read outruns the proof stream.
	ErrProofExhausted = errors.New("proof stream exhausted")
	// ErrMalformedElement is returned when the next proof element does
	// not decode to a canonical field element or curve point.
	ErrMalformedElement = errors.New("malformed proof element")
)

// Transcript is the verifier-side transcript over loaded values.
//
// SqueezeChallenge derives the next challenge from everything absorbed so
// far; the challenge is chained into the state so later challenges depend
// on it. CommonScalar and CommonEcPoint absorb values that both prover
// and verifier know. ReadScalar and ReadEcPoint consume the next proof
// element and absorb it.
type Transcript interface {
	State() State
	SqueezeChallenge() (loader.Scalar, error)
	CommonScalar(v loader.Scalar) error
	CommonEcPoint(p loader.EcPoint) error
	ReadScalar() (loader.Scalar, error)
	ReadEcPoint() (loader.EcPoint, error)
}
