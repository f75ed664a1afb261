package rng

import (
	"hash"
)

// pool is one entropy accumulator: a streaming hash absorbing tagged
// samples, plus the entropy estimate in bits absorbed since it was last
// drained for a reseed.
type pool struct {
	hash    hash.Hash
	entropy int
}

func newPool(newHash NewHashFunc) *pool {
	return &pool{
		hash: newHash(),
	}
}

// absorb mixes a framed absorption record into the pool.
func (p *pool) absorb(record []byte) {
	// hash.Hash writes never fail
	_, _ = p.hash.Write(record)
}

// drain finalizes the accumulator, resets it for the next generation and
// clears the entropy estimate. It returns the digest and the estimate the
// pool held.
func (p *pool) drain() (digest []byte, entropy int) {
	digest = p.hash.Sum(nil)
	p.hash.Reset()
	entropy = p.entropy
	p.entropy = 0
	return digest, entropy
}
