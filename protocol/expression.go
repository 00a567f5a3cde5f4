package protocol

import (
	"fmt"

	fr "github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/consensys/snark-verifier/loader"
)

// Expression is a gate polynomial over committed polynomials, transcript
// challenges and public instance values. The verifier evaluates the
// protocol's combined gate expression at the evaluation point to
// recompute the quotient identity.
type Expression interface {
	// Degree is the total degree in the committed polynomials; constants,
	// challenges and instances count as degree zero.
	Degree() int

	// Evaluate reduces the expression over loaded values. All terminals
	// resolve through env; a reference that env cannot resolve is a
	// protocol/proof mismatch, reported as an error.
	Evaluate(env *Env) (loader.Scalar, error)
}

// Env resolves expression terminals during one verification run.
type Env struct {
	Loader     loader.Loader
	Challenges []loader.Scalar
	Instances  [][]loader.Scalar
	// Evals maps opened queries to their claimed evaluations read from
	// the proof.
	Evals map[Query]loader.Scalar
}

// Constant is a fixed field element.
type Constant struct {
	Value fr.Element
}

func (c Constant) Degree() int {
	return 0
}

func (c Constant) Evaluate(env *Env) (loader.Scalar, error) {
	return env.Loader.LoadConst(&c.Value), nil
}

// Polynomial references the claimed evaluation of an opened query.
type Polynomial struct {
	Query Query
}

func (p Polynomial) Degree() int {
	return 1
}

func (p Polynomial) Evaluate(env *Env) (loader.Scalar, error) {
	v, ok := env.Evals[p.Query]
	if !ok {
		return nil, fmt.Errorf("no evaluation for polynomial %d at rotation %d", p.Query.Poly, p.Query.Rotation)
	}
	return v, nil
}

// Challenge references the i-th squeezed challenge.
type Challenge struct {
	Index int
}

func (c Challenge) Degree() int {
	return 0
}

func (c Challenge) Evaluate(env *Env) (loader.Scalar, error) {
	if c.Index >= len(env.Challenges) {
		return nil, fmt.Errorf("challenge %d out of %d", c.Index, len(env.Challenges))
	}
	return env.Challenges[c.Index], nil
}

// Instance references a public instance value.
type Instance struct {
	Column, Row int
}

func (in Instance) Degree() int {
	return 0
}

func (in Instance) Evaluate(env *Env) (loader.Scalar, error) {
	if in.Column >= len(env.Instances) || in.Row >= len(env.Instances[in.Column]) {
		return nil, fmt.Errorf("instance (%d, %d) out of range", in.Column, in.Row)
	}
	return env.Instances[in.Column][in.Row], nil
}

// Negated is the additive inverse of an expression.
type Negated struct {
	Inner Expression
}

func (n Negated) Degree() int {
	return n.Inner.Degree()
}

func (n Negated) Evaluate(env *Env) (loader.Scalar, error) {
	v, err := n.Inner.Evaluate(env)
	if err != nil {
		return nil, err
	}
	return v.Neg(), nil
}

// Sum of two expressions.
type Sum struct {
	A, B Expression
}

func (s Sum) Degree() int {
	return max(s.A.Degree(), s.B.Degree())
}

func (s Sum) Evaluate(env *Env) (loader.Scalar, error) {
	a, err := s.A.Evaluate(env)
	if err != nil {
		return nil, err
	}
	b, err := s.B.Evaluate(env)
	if err != nil {
		return nil, err
	}
	return a.Add(b), nil
}

// Product of two expressions.
type Product struct {
	A, B Expression
}

func (p Product) Degree() int {
	return p.A.Degree() + p.B.Degree()
}

func (p Product) Evaluate(env *Env) (loader.Scalar, error) {
	a, err := p.A.Evaluate(env)
	if err != nil {
		return nil, err
	}
	b, err := p.B.Evaluate(env)
	if err != nil {
		return nil, err
	}
	return a.Mul(b), nil
}

// Scaled multiplies an expression by a fixed coefficient. A coefficient
// of one skips the multiplication.
type Scaled struct {
	Inner Expression
	Coeff fr.Element
}

func (s Scaled) Degree() int {
	return s.Inner.Degree()
}

func (s Scaled) Evaluate(env *Env) (loader.Scalar, error) {
	v, err := s.Inner.Evaluate(env)
	if err != nil {
		return nil, err
	}
	return loader.SumWithCoeff(env.Loader, loader.Term{Coeff: s.Coeff, Value: v}), nil
}

// visit walks the expression tree, calling fn on every node.
func visit(e Expression, fn func(Expression)) {
	fn(e)
	switch n := e.(type) {
	case Negated:
		visit(n.Inner, fn)
	case Sum:
		visit(n.A, fn)
		visit(n.B, fn)
	case Product:
		visit(n.A, fn)
		visit(n.B, fn)
	case Scaled:
		visit(n.Inner, fn)
	}
}
