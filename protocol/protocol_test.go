package protocol_test

import (
	"math/big"
	"testing"

	fr "github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/fft"
	"github.com/stretchr/testify/require"

	"github.com/consensys/snark-verifier/loader"
	"github.com/consensys/snark-verifier/loader/native"
	"github.com/consensys/snark-verifier/protocol"
)

func elem(i int64) fr.Element {
	var e fr.Element
	e.SetInt64(i)
	return e
}

// validProtocol is a minimal consistent protocol for the Validate table:
// two witness polynomials in one phase with one challenge and a degree
// two gate.
func validProtocol() *protocol.Protocol {
	domain := fft.NewDomain(16)
	return &protocol.Protocol{
		Name:           "valid",
		DomainSize:     16,
		Generator:      domain.Generator,
		NumInstance:    []int{1},
		NumWitness:     []int{2},
		NumChallenge:   []int{1},
		QuotientChunks: 2,
		Queries: []protocol.Query{
			{Poly: 0, Rotation: 0},
			{Poly: 1, Rotation: -1},
		},
		Gate: protocol.Product{
			A: protocol.Polynomial{Query: protocol.Query{Poly: 0}},
			B: protocol.Polynomial{Query: protocol.Query{Poly: 1, Rotation: -1}},
		},
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, validProtocol().Validate())

	cases := map[string]func(*protocol.Protocol){
		"domain not power of two": func(p *protocol.Protocol) { p.DomainSize = 12 },
		"domain zero":             func(p *protocol.Protocol) { p.DomainSize = 0 },
		"phase count mismatch":    func(p *protocol.Protocol) { p.NumChallenge = nil },
		"no quotient chunks":      func(p *protocol.Protocol) { p.QuotientChunks = 0 },
		"missing gate":            func(p *protocol.Protocol) { p.Gate = nil },
		"gate degree too high": func(p *protocol.Protocol) {
			p.Gate = protocol.Product{A: p.Gate, B: protocol.Product{A: p.Gate, B: p.Gate}}
		},
		"query out of range": func(p *protocol.Protocol) {
			p.Queries = append(p.Queries, protocol.Query{Poly: 7})
		},
		"gate references unqueried rotation": func(p *protocol.Protocol) {
			p.Gate = protocol.Polynomial{Query: protocol.Query{Poly: 1, Rotation: 2}}
		},
		"gate references undeclared polynomial": func(p *protocol.Protocol) {
			p.Queries = p.Queries[:1]
		},
		"challenge out of range": func(p *protocol.Protocol) {
			p.Gate = protocol.Sum{A: p.Gate, B: protocol.Challenge{Index: 3}}
		},
		"instance out of shape": func(p *protocol.Protocol) {
			p.Gate = protocol.Sum{A: p.Gate, B: protocol.Instance{Column: 0, Row: 5}}
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			p := validProtocol()
			mutate(p)
			require.Error(t, p.Validate())
		})
	}
}

func TestCounters(t *testing.T) {
	p := validProtocol()
	require.Equal(t, 0, p.NumPreprocessed())
	require.Equal(t, 2, p.NumWitnessTotal())
	require.Equal(t, 1, p.NumChallengeTotal())
	require.Equal(t, 2, p.NumPoly())
}

func TestRotationsSorted(t *testing.T) {
	p := &protocol.Protocol{
		Queries: []protocol.Query{
			{Poly: 0, Rotation: 1},
			{Poly: 1, Rotation: -1},
			{Poly: 2, Rotation: 0},
			{Poly: 0, Rotation: 1},
		},
	}
	require.Equal(t, []protocol.Rotation{-1, 0, 1}, p.Rotations())
}

func TestRotationPoint(t *testing.T) {
	domain := fft.NewDomain(8)
	p := &protocol.Protocol{DomainSize: 8, Generator: domain.Generator}

	require.Equal(t, elem(1), p.RotationPoint(0))
	require.Equal(t, domain.Generator, p.RotationPoint(1))

	var w3 fr.Element
	w3.Exp(domain.Generator, big.NewInt(3))
	require.Equal(t, w3, p.RotationPoint(3))

	// negative rotations reduce into the positive range
	var w7 fr.Element
	w7.Exp(domain.Generator, big.NewInt(7))
	require.Equal(t, w7, p.RotationPoint(-1))

	require.Equal(t, elem(1), p.RotationPoint(8))
}

func TestExpressionEvaluate(t *testing.T) {
	l := native.NewLoader()
	q0 := protocol.Query{Poly: 0}
	q1 := protocol.Query{Poly: 1, Rotation: 1}

	env := &protocol.Env{
		Loader:     l,
		Challenges: []loader.Scalar{l.LoadConst(ptr(elem(7)))},
		Instances:  [][]loader.Scalar{{l.LoadConst(ptr(elem(11)))}},
		Evals: map[protocol.Query]loader.Scalar{
			q0: l.LoadConst(ptr(elem(3))),
			q1: l.LoadConst(ptr(elem(5))),
		},
	}

	// 2*(p0 * (p1 - c0)) + i00 = 2*(3*(5-7)) + 11 = -1
	e := protocol.Sum{
		A: protocol.Scaled{
			Coeff: elem(2),
			Inner: protocol.Product{
				A: protocol.Polynomial{Query: q0},
				B: protocol.Sum{
					A: protocol.Polynomial{Query: q1},
					B: protocol.Negated{Inner: protocol.Challenge{Index: 0}},
				},
			},
		},
		B: protocol.Instance{Column: 0, Row: 0},
	}
	require.Equal(t, 2, e.Degree())

	got, err := e.Evaluate(env)
	require.NoError(t, err)
	require.Equal(t, elem(-1), got.(native.Scalar).Value())
}

func TestEvaluateMissingBindings(t *testing.T) {
	l := native.NewLoader()
	env := &protocol.Env{Loader: l, Evals: map[protocol.Query]loader.Scalar{}}

	_, err := protocol.Polynomial{Query: protocol.Query{Poly: 9}}.Evaluate(env)
	require.Error(t, err)
	_, err = protocol.Challenge{Index: 0}.Evaluate(env)
	require.Error(t, err)
	_, err = protocol.Instance{Column: 0, Row: 0}.Evaluate(env)
	require.Error(t, err)
}

func ptr(e fr.Element) *fr.Element {
	return &e
}
