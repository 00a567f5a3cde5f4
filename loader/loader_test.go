package loader_test

import (
	"math/big"
	"testing"

	fr "github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/stretchr/testify/require"

	"github.com/consensys/snark-verifier/loader"
	"github.com/consensys/snark-verifier/loader/native"
)

func value(t *testing.T, s loader.Scalar) fr.Element {
	t.Helper()
	ns, ok := s.(native.Scalar)
	require.True(t, ok, "expected a native scalar, got %T", s)
	return ns.Value()
}

func elem(i int64) fr.Element {
	var e fr.Element
	e.SetInt64(i)
	return e
}

func TestSumWithCoeffAndConstant(t *testing.T) {
	l := native.NewLoader()

	t.Run("empty terms load the constant", func(t *testing.T) {
		c := elem(42)
		got := loader.SumWithCoeffAndConstant(l, nil, c)
		require.True(t, c.Equal(ptr(value(t, got))))
	})

	t.Run("linear combination", func(t *testing.T) {
		// 3*5 + 1*7 + 11
		got := loader.SumWithCoeffAndConstant(l, []loader.Term{
			{Coeff: elem(3), Value: l.LoadConst(ptr(elem(5)))},
			{Coeff: elem(1), Value: l.LoadConst(ptr(elem(7)))},
		}, elem(11))
		require.Equal(t, elem(33), value(t, got))
	})

	t.Run("single unit term is returned as is", func(t *testing.T) {
		x := l.LoadConst(ptr(elem(9)))
		got := loader.SumWithCoeff(l, loader.Term{Coeff: elem(1), Value: x})
		require.Equal(t, x, got)
	})
}

func TestSumProducts(t *testing.T) {
	l := native.NewLoader()

	a := []loader.Scalar{l.LoadConst(ptr(elem(2))), l.LoadConst(ptr(elem(3)))}
	b := []loader.Scalar{l.LoadConst(ptr(elem(5))), l.LoadConst(ptr(elem(7)))}
	got := loader.SumProducts(l, a, b)
	require.Equal(t, elem(31), value(t, got))

	require.Panics(t, func() {
		loader.SumProducts(l, a, b[:1])
	})
}

func TestProduct(t *testing.T) {
	l := native.NewLoader()
	require.Equal(t, elem(1), value(t, loader.Product(l)))
	got := loader.Product(l, l.LoadConst(ptr(elem(2))), l.LoadConst(ptr(elem(3))), l.LoadConst(ptr(elem(4))))
	require.Equal(t, elem(24), value(t, got))
}

func TestPowConst(t *testing.T) {
	l := native.NewLoader()
	var x fr.Element
	_, err := x.SetRandom()
	require.NoError(t, err)

	for _, exp := range []uint64{1, 2, 3, 8, 31, 1 << 20} {
		var want fr.Element
		want.Exp(x, new(big.Int).SetUint64(exp))
		got := loader.PowConst(l.LoadConst(&x), exp)
		require.Equal(t, want, value(t, got), "exponent %d", exp)
	}

	require.Panics(t, func() {
		loader.PowConst(l.LoadConst(&x), 0)
	})
}

func TestPowers(t *testing.T) {
	l := native.NewLoader()
	var x fr.Element
	_, err := x.SetRandom()
	require.NoError(t, err)

	ps := loader.Powers(l.LoadConst(&x), 5)
	require.Len(t, ps, 5)
	require.Equal(t, elem(1), value(t, ps[0]))
	acc := fr.One()
	for i := 1; i < len(ps); i++ {
		acc.Mul(&acc, &x)
		require.Equal(t, acc, value(t, ps[i]))
	}

	require.Panics(t, func() {
		loader.Powers(l.LoadConst(&x), 0)
	})
}

func TestBatchInvert(t *testing.T) {
	l := native.NewLoader()
	var x fr.Element
	_, err := x.SetRandom()
	require.NoError(t, err)

	var xInv fr.Element
	xInv.Inverse(&x)

	vs := []loader.Scalar{l.LoadConst(&x), l.LoadZero(), l.LoadOne()}
	loader.BatchInvert(vs)
	require.Equal(t, xInv, value(t, vs[0]))
	// no inverse exists, the zero stays
	require.Equal(t, elem(0), value(t, vs[1]))
	require.Equal(t, elem(1), value(t, vs[2]))
}

func ptr(e fr.Element) *fr.Element {
	return &e
}
