// Package test provides the shared helpers the package tests build on: a
// cached structured reference string, an execution engine standing in for
// an external circuit builder, and a fixture protocol with an honest
// prover.
//
// Nothing here is safe for production use. The SRS trapdoor is drawn from
// an in-process source and the engine evaluates constraints eagerly
// instead of compiling them.
package test

import (
	"crypto/rand"
	"sync"

	fr "github.com/consensys/gnark-crypto/ecc/bn254/fr"
	kzg_bn254 "github.com/consensys/gnark-crypto/ecc/bn254/kzg"
)

const srsCachedSize = 1 << 10

var (
	srsOnce   sync.Once
	srsCached *kzg_bn254.SRS
)

// SRS returns a reference string of at least the given size. Sizes up to
// the cache threshold share one lazily generated SRS, so tests do not
// pay the generation cost repeatedly.
func SRS(size uint64) *kzg_bn254.SRS {
	if size > srsCachedSize {
		return newSRS(size)
	}
	srsOnce.Do(func() {
		srsCached = newSRS(srsCachedSize)
	})
	return srsCached
}

func newSRS(size uint64) *kzg_bn254.SRS {
	tau, err := rand.Int(rand.Reader, fr.Modulus())
	if err != nil {
		panic(err)
	}
	srs, err := kzg_bn254.NewSRS(size, tau)
	if err != nil {
		panic(err)
	}
	return srs
}
