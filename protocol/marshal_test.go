package protocol_test

import (
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	fr "github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/fft"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/consensys/snark-verifier/protocol"
)

func marshalProtocol() *protocol.Protocol {
	domain := fft.NewDomain(32)
	_, _, g, _ := bn254.Generators()
	var c1, c2 bn254.G1Affine
	c1.ScalarMultiplication(&g, big.NewInt(3))
	c2.ScalarMultiplication(&g, big.NewInt(17))

	q0 := protocol.Query{Poly: 0}
	q1 := protocol.Query{Poly: 2, Rotation: 1}
	return &protocol.Protocol{
		Name:           "marshal",
		DomainSize:     32,
		Generator:      domain.Generator,
		NumInstance:    []int{2},
		NumWitness:     []int{1, 1},
		NumChallenge:   []int{1, 0},
		Preprocessed:   []bn254.G1Affine{c1, c2},
		QuotientChunks: 3,
		Queries:        []protocol.Query{q0, q1},
		Gate: protocol.Sum{
			A: protocol.Scaled{
				Coeff: elem(5),
				Inner: protocol.Product{
					A: protocol.Polynomial{Query: q0},
					B: protocol.Polynomial{Query: q1},
				},
			},
			B: protocol.Negated{Inner: protocol.Product{
				A: protocol.Challenge{Index: 0},
				B: protocol.Sum{
					A: protocol.Instance{Column: 0, Row: 1},
					B: protocol.Constant{Value: elem(42)},
				},
			}},
		},
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	p := marshalProtocol()
	require.NoError(t, p.Validate())

	data, err := p.MarshalBinary()
	require.NoError(t, err)

	var got protocol.Protocol
	require.NoError(t, got.UnmarshalBinary(data))

	if diff := cmp.Diff(p, &got); diff != "" {
		t.Fatalf("protocol mismatch (-want +got):\n%s", diff)
	}
}

func TestUnmarshalRejectsIncompatibleVersion(t *testing.T) {
	data, err := marshalProtocol().MarshalBinary()
	require.NoError(t, err)

	var blob map[string]any
	require.NoError(t, cbor.Unmarshal(data, &blob))
	blob["version"] = "999.0.0"
	data, err = cbor.Marshal(blob)
	require.NoError(t, err)

	var got protocol.Protocol
	require.ErrorContains(t, got.UnmarshalBinary(data), "incompatible")
}

func TestUnmarshalRejectsGarbage(t *testing.T) {
	var got protocol.Protocol
	require.Error(t, got.UnmarshalBinary([]byte("not cbor")))
}

func TestUnmarshalRejectsBadGenerator(t *testing.T) {
	data, err := marshalProtocol().MarshalBinary()
	require.NoError(t, err)

	var blob map[string]any
	require.NoError(t, cbor.Unmarshal(data, &blob))
	mod := fr.Modulus().Bytes()
	buf := make([]byte, fr.Bytes)
	copy(buf[fr.Bytes-len(mod):], mod)
	blob["omega"] = buf
	data, err = cbor.Marshal(blob)
	require.NoError(t, err)

	var got protocol.Protocol
	require.ErrorContains(t, got.UnmarshalBinary(data), "generator")
}

func TestUnmarshalValidates(t *testing.T) {
	p := marshalProtocol()
	p.Gate = protocol.Polynomial{Query: protocol.Query{Poly: 1}}
	data, err := p.MarshalBinary()
	require.NoError(t, err)

	var got protocol.Protocol
	require.Error(t, got.UnmarshalBinary(data))
}
