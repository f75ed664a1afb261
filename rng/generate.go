package rng

import (
	"encoding/binary"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/cryptbase/cryptbase/container"
	"github.com/cryptbase/cryptbase/errs"
)

// RandomWords returns exactly nwords pseudorandom 32-bit words. It fails
// with a not-ready error if the absorbed entropy is insufficient for the
// given (or default) paranoia level; it never blocks waiting for entropy.
// If a reseed is due it is performed first.
func (g *Generator) RandomWords(nwords int, paranoia ...int) ([]uint32, error) {
	if nwords < 0 {
		return nil, errs.Invalidf("rng: cannot generate %d words", nwords)
	}
	level, err := g.paranoiaLevel(paranoia)
	if err != nil {
		return nil, err
	}

	g.lock.Lock()
	defer g.lock.Unlock()

	readiness := g.readiness(level)
	if readiness == StatusNotReady {
		return nil, errs.NotReadyf("rng: generator isn't seeded")
	}
	if readiness.RequiresReseed() {
		// A catch-up reseed consumes all pools, a routine one follows the
		// logarithmic schedule.
		if err := g.reseedFromPools(!readiness.IsReady()); err != nil {
			return nil, err
		}
	}

	out := make([]uint32, 0, (nwords+3)/4*4)
	for i := 0; i < nwords; i += 4 {
		if i > 0 && i%maxWordsPerBurst == 0 {
			if err := g.gate(); err != nil {
				return nil, err
			}
		}
		w := g.gen4words()
		out = append(out, w[0], w[1], w[2], w[3])
	}
	if err := g.gate(); err != nil {
		return nil, err
	}

	wordsGeneratedTotal.Add(nwords)
	return out[:nwords], nil
}

// gen4words advances the 128-bit counter and encrypts it, yielding four
// pseudorandom words. Callers must hold the lock and must have reseeded at
// least once.
func (g *Generator) gen4words() [4]uint32 {
	g.incrCounter()

	var block [16]byte
	for i, w := range g.counter {
		binary.BigEndian.PutUint32(block[i*4:], w)
	}
	g.cipher.Encrypt(block[:], block[:])

	var out [4]uint32
	for i := range out {
		out[i] = binary.BigEndian.Uint32(block[i*4:])
	}
	return out
}

// incrCounter increments the counter lane by lane. Each lane wraps mod
// 2^32 and the carry stops propagating at the first lane that does not
// wrap.
func (g *Generator) incrCounter() {
	for i := range g.counter {
		g.counter[i]++
		if g.counter[i] != 0 {
			break
		}
	}
}

// gate rekeys the cipher with eight freshly self-generated words. Words
// produced before a gate cannot be recovered from a later key compromise.
// Callers must hold the lock.
func (g *Generator) gate() error {
	a := g.gen4words()
	b := g.gen4words()

	key := make([]byte, 32)
	for i := 0; i < 4; i++ {
		binary.BigEndian.PutUint32(key[i*4:], a[i])
		binary.BigEndian.PutUint32(key[i*4+16:], b[i])
	}

	c, err := g.newCipher(key)
	if err != nil {
		return errs.Bugf("rng: gate failed to rebuild cipher: %s", err)
	}
	g.key = key
	g.cipher = c

	gatesTotal.Inc()
	return nil
}

// reseedFromPools drains due pools into a reseed of the generator key.
// With full set, all pools are consumed; otherwise pool i participates only
// every 2^i reseeds. Callers must hold the lock.
func (g *Generator) reseedFromPools(full bool) error {
	seed := container.New()

	g.nextReseed = g.now().Add(g.reseedInterval)
	seed.AppendNumber(uint64(g.nextReseed.UnixMilli()))

	// Weak host randomness costs nothing to mix in and is occasionally
	// cryptographically relevant on some hosts.
	weak := make([]byte, 16*4)
	for i := 0; i < 16; i++ {
		binary.BigEndian.PutUint32(weak[i*4:], g.weakRand())
	}
	seed.Append(weak)

	strength := 0
	for i, p := range g.pools {
		digest, entropy := p.drain()
		seed.Append(digest)
		strength += entropy
		if !full && g.reseedCount&(1<<uint(i)) != 0 {
			break
		}
	}

	// the pool set grows once every pool has been drawn on enough times
	if g.reseedCount >= 1<<uint(len(g.pools)) {
		g.pools = append(g.pools, newPool(g.newHash))
	}

	g.poolStrength -= strength
	if strength > g.strength {
		g.strength = strength
	}
	g.reseedCount++

	if err := g.reseed(seed.CompileData()); err != nil {
		return err
	}

	reseedsTotal.Inc()
	logrus.Debugf("rng: reseeded (count=%d, pools=%d, strength=%d bits)", g.reseedCount, len(g.pools), g.strength)
	return nil
}

// reseed derives a new generator key by hashing the current key with the
// seed material, rebuilds the cipher and advances the counter.
func (g *Generator) reseed(seed []byte) error {
	h := g.newHash()
	_, _ = h.Write(g.key)
	_, _ = h.Write(seed)
	key := h.Sum(nil)
	if len(key) != 32 {
		return errs.Bugf("rng: hash digest size %d does not match the 256 bit key size", len(key)*8)
	}

	c, err := g.newCipher(key)
	if err != nil {
		return errs.Bugf("rng: reseed failed to rebuild cipher: %s", err)
	}
	g.key = key
	g.cipher = c

	g.incrCounter()
	return nil
}

// Read fills b with random bytes at the default paranoia level,
// implementing io.Reader. It fails like RandomWords when underseeded.
func (g *Generator) Read(b []byte) (int, error) {
	words, err := g.RandomWords((len(b) + 3) / 4)
	if err != nil {
		return 0, err
	}
	buf := make([]byte, len(words)*4)
	for i, w := range words {
		binary.BigEndian.PutUint32(buf[i*4:], w)
	}
	return copy(b, buf), nil
}

// Bytes allocates a new byte slice of given length and fills it with
// random data.
func (g *Generator) Bytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, errs.Invalidf("rng: cannot generate %d bytes", n)
	}
	b := make([]byte, n)
	if _, err := g.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// Number returns a uniform random number from 0 to (incl.) max, rejecting
// candidates that would introduce modulo bias.
func (g *Generator) Number(max uint64) (uint64, error) {
	if max == math.MaxUint64 {
		b, err := g.Bytes(8)
		if err != nil {
			return 0, err
		}
		return binary.BigEndian.Uint64(b), nil
	}

	n := max + 1
	secureLimit := math.MaxUint64 - math.MaxUint64%n

	for {
		b, err := g.Bytes(8)
		if err != nil {
			return 0, err
		}
		candidate := binary.BigEndian.Uint64(b)
		if candidate < secureLimit {
			return candidate % n, nil
		}
	}
}
