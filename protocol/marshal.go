package protocol

import (
	"fmt"

	"github.com/blang/semver/v4"
	"github.com/consensys/gnark-crypto/ecc/bn254"
	fr "github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/fxamacker/cbor/v2"

	snarkverifier "github.com/consensys/snark-verifier"
)

// expression opcodes of the flattened postfix encoding
const (
	opConstant uint8 = iota
	opPolynomial
	opChallenge
	opInstance
	opNegated
	opSum
	opProduct
	opScaled
)

type exprOp struct {
	Kind uint8  `cbor:"k"`
	Arg  []byte `cbor:"a,omitempty"`
	I    int    `cbor:"i,omitempty"`
	J    int    `cbor:"j,omitempty"`
}

type serializedQuery struct {
	Poly     int `cbor:"p"`
	Rotation int `cbor:"r"`
}

type serializedProtocol struct {
	Version        string            `cbor:"version"`
	Name           string            `cbor:"name"`
	DomainSize     uint64            `cbor:"n"`
	Generator      []byte            `cbor:"omega"`
	NumInstance    []int             `cbor:"instance"`
	NumWitness     []int             `cbor:"witness"`
	NumChallenge   []int             `cbor:"challenge"`
	Preprocessed   [][]byte          `cbor:"preprocessed"`
	QuotientChunks int               `cbor:"quotient"`
	Queries        []serializedQuery `cbor:"queries"`
	Gate           []exprOp          `cbor:"gate"`
}

// MarshalBinary encodes the protocol as a versioned CBOR blob.
func (p *Protocol) MarshalBinary() ([]byte, error) {
	gate, err := flattenExpr(p.Gate)
	if err != nil {
		return nil, err
	}
	s := serializedProtocol{
		Version:        snarkverifier.Version.String(),
		Name:           p.Name,
		DomainSize:     p.DomainSize,
		NumInstance:    p.NumInstance,
		NumWitness:     p.NumWitness,
		NumChallenge:   p.NumChallenge,
		QuotientChunks: p.QuotientChunks,
		Gate:           gate,
	}
	g := p.Generator.Bytes()
	s.Generator = g[:]
	for i := range p.Preprocessed {
		b := p.Preprocessed[i].Bytes()
		s.Preprocessed = append(s.Preprocessed, b[:])
	}
	for _, q := range p.Queries {
		s.Queries = append(s.Queries, serializedQuery{Poly: q.Poly, Rotation: int(q.Rotation)})
	}
	return cbor.Marshal(s)
}

// UnmarshalBinary decodes a protocol blob, rejecting blobs produced by
// an incompatible (different major) version. The decoded protocol is
// validated before it is returned.
func (p *Protocol) UnmarshalBinary(data []byte) error {
	var s serializedProtocol
	if err := cbor.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decode protocol: %w", err)
	}
	v, err := semver.Parse(s.Version)
	if err != nil {
		return fmt.Errorf("protocol version %q: %w", s.Version, err)
	}
	if v.Major != snarkverifier.Version.Major {
		return fmt.Errorf("protocol version %s incompatible with %s", v, snarkverifier.Version)
	}

	p.Name = s.Name
	p.DomainSize = s.DomainSize
	if err := p.Generator.SetBytesCanonical(s.Generator); err != nil {
		return fmt.Errorf("decode domain generator: %w", err)
	}
	p.NumInstance = s.NumInstance
	p.NumWitness = s.NumWitness
	p.NumChallenge = s.NumChallenge
	p.QuotientChunks = s.QuotientChunks
	p.Preprocessed = make([]bn254.G1Affine, len(s.Preprocessed))
	for i := range s.Preprocessed {
		if _, err := p.Preprocessed[i].SetBytes(s.Preprocessed[i]); err != nil {
			return fmt.Errorf("decode preprocessed commitment %d: %w", i, err)
		}
	}
	p.Queries = make([]Query, len(s.Queries))
	for i, q := range s.Queries {
		p.Queries[i] = Query{Poly: q.Poly, Rotation: Rotation(q.Rotation)}
	}
	if p.Gate, err = unflattenExpr(s.Gate); err != nil {
		return fmt.Errorf("decode gate: %w", err)
	}
	return p.Validate()
}

func flattenExpr(e Expression) ([]exprOp, error) {
	var ops []exprOp
	var walk func(Expression) error
	walk = func(e Expression) error {
		switch n := e.(type) {
		case Constant:
			b := n.Value.Bytes()
			ops = append(ops, exprOp{Kind: opConstant, Arg: b[:]})
		case Polynomial:
			ops = append(ops, exprOp{Kind: opPolynomial, I: n.Query.Poly, J: int(n.Query.Rotation)})
		case Challenge:
			ops = append(ops, exprOp{Kind: opChallenge, I: n.Index})
		case Instance:
			ops = append(ops, exprOp{Kind: opInstance, I: n.Column, J: n.Row})
		case Negated:
			if err := walk(n.Inner); err != nil {
				return err
			}
			ops = append(ops, exprOp{Kind: opNegated})
		case Sum:
			if err := walk(n.A); err != nil {
				return err
			}
			if err := walk(n.B); err != nil {
				return err
			}
			ops = append(ops, exprOp{Kind: opSum})
		case Product:
			if err := walk(n.A); err != nil {
				return err
			}
			if err := walk(n.B); err != nil {
				return err
			}
			ops = append(ops, exprOp{Kind: opProduct})
		case Scaled:
			if err := walk(n.Inner); err != nil {
				return err
			}
			b := n.Coeff.Bytes()
			ops = append(ops, exprOp{Kind: opScaled, Arg: b[:]})
		default:
			return fmt.Errorf("unknown expression node %T", e)
		}
		return nil
	}
	if err := walk(e); err != nil {
		return nil, err
	}
	return ops, nil
}

func unflattenExpr(ops []exprOp) (Expression, error) {
	var stack []Expression
	pop := func() (Expression, error) {
		if len(stack) == 0 {
			return nil, fmt.Errorf("truncated gate encoding")
		}
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return e, nil
	}
	for _, op := range ops {
		switch op.Kind {
		case opConstant:
			var v fr.Element
			if err := v.SetBytesCanonical(op.Arg); err != nil {
				return nil, fmt.Errorf("decode constant: %w", err)
			}
			stack = append(stack, Constant{Value: v})
		case opPolynomial:
			stack = append(stack, Polynomial{Query: Query{Poly: op.I, Rotation: Rotation(op.J)}})
		case opChallenge:
			stack = append(stack, Challenge{Index: op.I})
		case opInstance:
			stack = append(stack, Instance{Column: op.I, Row: op.J})
		case opNegated:
			inner, err := pop()
			if err != nil {
				return nil, err
			}
			stack = append(stack, Negated{Inner: inner})
		case opSum, opProduct:
			b, err := pop()
			if err != nil {
				return nil, err
			}
			a, err := pop()
			if err != nil {
				return nil, err
			}
			if op.Kind == opSum {
				stack = append(stack, Sum{A: a, B: b})
			} else {
				stack = append(stack, Product{A: a, B: b})
			}
		case opScaled:
			inner, err := pop()
			if err != nil {
				return nil, err
			}
			var coeff fr.Element
			if err := coeff.SetBytesCanonical(op.Arg); err != nil {
				return nil, fmt.Errorf("decode coefficient: %w", err)
			}
			stack = append(stack, Scaled{Inner: inner, Coeff: coeff})
		default:
			return nil, fmt.Errorf("unknown gate opcode %d", op.Kind)
		}
	}
	if len(stack) != 1 {
		return nil, fmt.Errorf("gate encoding leaves %d values on the stack", len(stack))
	}
	return stack[0], nil
}
