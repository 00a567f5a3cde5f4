// Package protocol describes the static shape of one proof system
// instance: column counts, challenge schedule, gate polynomials, opened
// queries and the evaluation domain. A Protocol is immutable once
// validated and shared by reference across all verifications of proofs
// from the same circuit.
package protocol

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/bits-and-blooms/bitset"
	"github.com/consensys/gnark-crypto/ecc/bn254"
	fr "github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// Rotation offsets the evaluation point by a power of the domain
// generator: a query at rotation k is opened at ζ·ωᵏ.
type Rotation int

// Query identifies an opened polynomial at a rotation. Polynomial
// indices are assigned in wire order: preprocessed polynomials first,
// then witness polynomials phase by phase.
type Query struct {
	Poly     int
	Rotation Rotation
}

// Protocol is the static metadata of one proof system instance.
type Protocol struct {
	// Name tags log entries and serialized blobs. Not absorbed.
	Name string

	// DomainSize is the size n of the multiplicative evaluation domain;
	// Generator is its generator ω.
	DomainSize uint64
	Generator  fr.Element

	// NumInstance is the number of public values per instance column.
	NumInstance []int

	// NumWitness[p] commitments are read and then NumChallenge[p]
	// challenges squeezed, for each phase p in order.
	NumWitness   []int
	NumChallenge []int

	// Preprocessed are the fixed-column commitments, absorbed at the
	// start of every transcript to bind the circuit.
	Preprocessed []bn254.G1Affine

	// QuotientChunks is the number of size-n chunks the quotient
	// polynomial is committed in.
	QuotientChunks int

	// Queries are the opened polynomial queries in wire order: their
	// claimed evaluations appear on the wire in exactly this order.
	Queries []Query

	// Gate is the combined gate expression; the identity
	// Gate(ζ) = h(ζ)·(ζⁿ-1) is asserted during verification.
	Gate Expression
}

// NumPreprocessed returns the number of fixed polynomials.
func (p *Protocol) NumPreprocessed() int {
	return len(p.Preprocessed)
}

// NumWitnessTotal returns the number of witness polynomials across all
// phases.
func (p *Protocol) NumWitnessTotal() int {
	total := 0
	for _, n := range p.NumWitness {
		total += n
	}
	return total
}

// NumChallengeTotal returns the number of squeezed phase challenges.
func (p *Protocol) NumChallengeTotal() int {
	total := 0
	for _, n := range p.NumChallenge {
		total += n
	}
	return total
}

// NumPoly returns the size of the query-addressable polynomial index
// space.
func (p *Protocol) NumPoly() int {
	return p.NumPreprocessed() + p.NumWitnessTotal()
}

// Rotations returns the distinct rotations of all queries in ascending
// order. This order is part of the protocol: the multi-open argument
// processes evaluation points in exactly this sequence.
func (p *Protocol) Rotations() []Rotation {
	seen := make(map[Rotation]struct{})
	var rots []Rotation
	for _, q := range p.Queries {
		if _, ok := seen[q.Rotation]; !ok {
			seen[q.Rotation] = struct{}{}
			rots = append(rots, q.Rotation)
		}
	}
	sort.Slice(rots, func(i, j int) bool { return rots[i] < rots[j] })
	return rots
}

// RotationPoint returns ωᵏ for rotation k, reducing k modulo the domain
// size.
func (p *Protocol) RotationPoint(k Rotation) fr.Element {
	e := big.NewInt(int64(k))
	e.Mod(e, big.NewInt(int64(p.DomainSize)))
	var w fr.Element
	w.Exp(p.Generator, e)
	return w
}

// Validate checks the protocol's internal consistency. It must pass
// before the protocol is used for verification; an inconsistent protocol
// is a construction bug, not a proof failure.
func (p *Protocol) Validate() error {
	if p.DomainSize == 0 || p.DomainSize&(p.DomainSize-1) != 0 {
		return fmt.Errorf("domain size %d is not a power of two", p.DomainSize)
	}
	if len(p.NumWitness) != len(p.NumChallenge) {
		return fmt.Errorf("%d witness phases but %d challenge phases", len(p.NumWitness), len(p.NumChallenge))
	}
	if p.QuotientChunks < 1 {
		return fmt.Errorf("at least one quotient chunk required")
	}
	if p.Gate == nil {
		return fmt.Errorf("missing gate expression")
	}
	if d := p.Gate.Degree(); d > p.QuotientChunks+1 {
		return fmt.Errorf("gate degree %d exceeds %d quotient chunks", d, p.QuotientChunks)
	}

	// every queried polynomial must exist, and the gate may only
	// reference declared queries
	declared := bitset.New(uint(p.NumPoly()))
	for _, q := range p.Queries {
		if q.Poly < 0 || q.Poly >= p.NumPoly() {
			return fmt.Errorf("query references polynomial %d out of %d", q.Poly, p.NumPoly())
		}
		declared.Set(uint(q.Poly))
	}
	var vErr error
	visit(p.Gate, func(e Expression) {
		if vErr != nil {
			return
		}
		switch n := e.(type) {
		case Polynomial:
			if n.Query.Poly < 0 || n.Query.Poly >= p.NumPoly() || !declared.Test(uint(n.Query.Poly)) {
				vErr = fmt.Errorf("gate references undeclared polynomial %d", n.Query.Poly)
				return
			}
			found := false
			for _, q := range p.Queries {
				if q == n.Query {
					found = true
					break
				}
			}
			if !found {
				vErr = fmt.Errorf("gate references undeclared query (%d, %d)", n.Query.Poly, n.Query.Rotation)
			}
		case Challenge:
			if n.Index < 0 || n.Index >= p.NumChallengeTotal() {
				vErr = fmt.Errorf("gate references challenge %d out of %d", n.Index, p.NumChallengeTotal())
			}
		case Instance:
			if n.Column < 0 || n.Column >= len(p.NumInstance) || n.Row < 0 || n.Row >= p.NumInstance[n.Column] {
				vErr = fmt.Errorf("gate references instance (%d, %d) out of shape %v", n.Column, n.Row, p.NumInstance)
			}
		}
	})
	return vErr
}
