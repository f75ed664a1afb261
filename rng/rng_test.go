package rng

import (
	"crypto/cipher"
	"hash"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryptbase/cryptbase/errs"
)

// xorBlock is a fixed permutation standing in for a real block cipher, so
// generator behavior can be tested deterministically.
type xorBlock struct {
	key [16]byte
}

func newXorCipher(key []byte) (cipher.Block, error) {
	b := &xorBlock{}
	copy(b.key[:], key)
	return b, nil
}

func (b *xorBlock) BlockSize() int { return 16 }

func (b *xorBlock) Encrypt(dst, src []byte) {
	for i := 0; i < 16; i++ {
		dst[i] = src[i] ^ b.key[i]
	}
}

func (b *xorBlock) Decrypt(dst, src []byte) {
	b.Encrypt(dst, src)
}

// fakeHash is a deterministic toy accumulator with a 32 byte digest.
type fakeHash struct {
	state [32]byte
	n     uint64
}

func newFakeHash() hash.Hash { return &fakeHash{} }

func (h *fakeHash) Write(p []byte) (int, error) {
	for _, b := range p {
		h.state[h.n%32] ^= b + byte(h.n)
		h.n++
	}
	return len(p), nil
}

func (h *fakeHash) Sum(b []byte) []byte {
	out := h.state
	out[0] ^= byte(h.n)
	return append(b, out[:]...)
}

func (h *fakeHash) Reset()         { *h = fakeHash{} }
func (h *fakeHash) Size() int      { return 32 }
func (h *fakeHash) BlockSize() int { return 32 }

// fixedClock freezes time, so scheduled reseeds only happen when a test
// forces the deadline.
func fixedClock() time.Time {
	return time.Unix(1700000000, 0)
}

// newTestGenerator builds a fully deterministic generator: fixed cipher
// permutation, toy hash, frozen clock and a counting weak-rand source.
func newTestGenerator(t *testing.T) *Generator {
	t.Helper()
	var weak uint32
	g, err := NewGenerator(
		WithCipher(newXorCipher),
		WithHash(newFakeHash),
		WithClock(fixedClock),
		WithWeakRandSource(func() uint32 { weak++; return weak }),
	)
	require.NoError(t, err)
	return g
}

func TestNotReadyBeforeEntropy(t *testing.T) {
	t.Parallel()
	g := newTestGenerator(t)

	status, err := g.IsReady()
	require.NoError(t, err)
	assert.Equal(t, StatusNotReady, status)

	_, err = g.RandomWords(4)
	assert.True(t, errs.Is(err, errs.KindNotReady))

	// no partial results on failure
	words, err := g.RandomWords(4)
	assert.Error(t, err)
	assert.Nil(t, words)
}

func TestAddEntropyShapes(t *testing.T) {
	t.Parallel()
	g := newTestGenerator(t)

	// single integer defaults to 1 bit
	require.NoError(t, g.AddEntropy(7, DefaultEstimate, ""))
	assert.Equal(t, 1, g.poolStrength)

	// word sequences default to the sum of element bit lengths
	require.NoError(t, g.AddEntropy([]uint32{0b111, 0b1}, DefaultEstimate, ""))
	assert.Equal(t, 1+4, g.poolStrength)

	// text defaults to one bit per character
	require.NoError(t, g.AddEntropy("hello", DefaultEstimate, ""))
	assert.Equal(t, 1+4+5, g.poolStrength)

	// explicit estimates override the defaults
	require.NoError(t, g.AddEntropy(Int(42), 48, "spin"))
	assert.Equal(t, 1+4+5+48, g.poolStrength)

	// unsupported shapes are a caller bug
	err := g.AddEntropy(struct{}{}, DefaultEstimate, "")
	assert.True(t, errs.Is(err, errs.KindBug))
	err = g.AddEntropy(3.14, DefaultEstimate, "")
	assert.True(t, errs.Is(err, errs.KindBug))
}

func TestRoundRobinPoolSelection(t *testing.T) {
	t.Parallel()
	g := newTestGenerator(t)
	g.pools = append(g.pools, newPool(g.newHash), newPool(g.newHash))

	for i := 0; i < 6; i++ {
		require.NoError(t, g.AddEntropy(Int(i), 10, "mouse"))
	}
	// 3 pools, 6 samples: each pool got two 10 bit samples
	for i, p := range g.pools {
		assert.Equalf(t, 20, p.entropy, "pool %d", i)
	}

	// a second source starts its own robin at pool 0
	require.NoError(t, g.AddEntropy(Int(9), 5, "keyboard"))
	assert.Equal(t, 25, g.pools[0].entropy)
}

func TestSeededEventFiresExactlyOnce(t *testing.T) {
	t.Parallel()
	g := newTestGenerator(t)

	var seeded []float64
	var progress []float64
	_, err := g.AddEventListener(EventSeeded, func(v float64) { seeded = append(seeded, v) })
	require.NoError(t, err)
	_, err = g.AddEventListener(EventProgress, func(v float64) { progress = append(progress, v) })
	require.NoError(t, err)

	// default paranoia 6 requires 256 bits; 48 bit samples cross the
	// threshold on the sixth call
	for i := 0; i < 5; i++ {
		require.NoError(t, g.AddEntropy(Int(i), 48, "geiger"))

		status, err := g.IsReady(6)
		require.NoError(t, err)
		assert.Equal(t, StatusNotReady, status)
		assert.Empty(t, seeded)
	}

	require.NoError(t, g.AddEntropy(Int(99), 48, "geiger"))

	status, err := g.IsReady(6)
	require.NoError(t, err)
	assert.NotEqual(t, StatusNotReady, status)
	assert.True(t, status.RequiresReseed())

	require.Len(t, seeded, 1)
	assert.Equal(t, float64(288), seeded[0])

	// progress fired on every call up to and including the transition
	require.Len(t, progress, 6)
	assert.InDelta(t, 48.0/256.0, progress[0], 1e-9)
	assert.Equal(t, 1.0, progress[5])

	// once seeded, neither event fires again
	require.NoError(t, g.AddEntropy(Int(1), 48, "geiger"))
	assert.Len(t, seeded, 1)
	assert.Len(t, progress, 6)

	// generating promotes the status to ready via a catch-up reseed
	_, err = g.RandomWords(4, 6)
	require.NoError(t, err)
	status, err = g.IsReady(6)
	require.NoError(t, err)
	assert.True(t, status.IsReady())
}

func TestGetProgress(t *testing.T) {
	t.Parallel()
	g := newTestGenerator(t)

	p, err := g.GetProgress(4) // 128 bits required
	require.NoError(t, err)
	assert.Equal(t, 0.0, p)

	require.NoError(t, g.AddEntropy(Int(1), 64, ""))
	p, err = g.GetProgress(4)
	require.NoError(t, err)
	assert.Equal(t, 0.5, p)

	require.NoError(t, g.AddEntropy(Int(2), 64, ""))
	p, err = g.GetProgress(4)
	require.NoError(t, err)
	assert.Equal(t, 1.0, p)

	// higher paranoia is still unsatisfied
	p, err = g.GetProgress(10)
	require.NoError(t, err)
	assert.Equal(t, 0.125, p)

	_, err = g.GetProgress(11)
	assert.True(t, errs.Is(err, errs.KindInvalid))
}

func TestSetDefaultParanoia(t *testing.T) {
	t.Parallel()
	g := newTestGenerator(t)

	err := g.SetDefaultParanoia(0, "i promise i know what i am doing")
	assert.True(t, errs.Is(err, errs.KindInvalid))

	err = g.SetDefaultParanoia(42, ZeroParanoiaConfirmation)
	assert.True(t, errs.Is(err, errs.KindInvalid))

	require.NoError(t, g.SetDefaultParanoia(0, ZeroParanoiaConfirmation))

	// paranoia 0 defeats the entropy requirement entirely: generation
	// succeeds without a single absorbed sample
	words, err := g.RandomWords(8)
	require.NoError(t, err)
	assert.Len(t, words, 8)
}

func TestEventListenerRegistry(t *testing.T) {
	t.Parallel()
	g := newTestGenerator(t)

	_, err := g.AddEventListener("explosions", func(float64) {})
	assert.True(t, errs.Is(err, errs.KindInvalid))
	_, err = g.AddEventListener(EventSeeded, nil)
	assert.True(t, errs.Is(err, errs.KindInvalid))

	var first, second int
	h1, err := g.AddEventListener(EventProgress, func(float64) { first++ })
	require.NoError(t, err)
	_, err = g.AddEventListener(EventProgress, func(float64) { second++ })
	require.NoError(t, err)

	g.events.fire(EventProgress, 0.5)
	assert.Equal(t, 1, first)
	assert.Equal(t, 1, second)

	require.NoError(t, g.RemoveEventListener(EventProgress, h1))
	g.events.fire(EventProgress, 0.7)
	assert.Equal(t, 1, first)
	assert.Equal(t, 2, second)

	// removing twice is a no-op
	require.NoError(t, g.RemoveEventListener(EventProgress, h1))
}

func TestListenerMayRemoveItselfDuringDelivery(t *testing.T) {
	t.Parallel()
	g := newTestGenerator(t)

	var calls int
	var h uuid.UUID
	h, err := g.AddEventListener(EventSeeded, func(float64) {
		calls++
		require.NoError(t, g.RemoveEventListener(EventSeeded, h))
	})
	require.NoError(t, err)

	g.events.fire(EventSeeded, 256)
	assert.Equal(t, 1, calls)

	// the registration is gone on the next delivery
	g.events.fire(EventSeeded, 256)
	assert.Equal(t, 1, calls)
}

func TestCounterIncrementWraps(t *testing.T) {
	t.Parallel()
	g := newTestGenerator(t)

	g.counter = [4]uint32{0xffffffff, 0xffffffff, 5, 0}
	g.incrCounter()
	assert.Equal(t, [4]uint32{0, 0, 6, 0}, g.counter)

	g.counter = [4]uint32{41, 0, 0, 0}
	g.incrCounter()
	assert.Equal(t, [4]uint32{42, 0, 0, 0}, g.counter)

	// full wraparound
	g.counter = [4]uint32{0xffffffff, 0xffffffff, 0xffffffff, 0xffffffff}
	g.incrCounter()
	assert.Equal(t, [4]uint32{0, 0, 0, 0}, g.counter)
}

func TestOptionValidation(t *testing.T) {
	t.Parallel()

	_, err := NewGenerator(WithCipherAlgorithm("rot13"))
	assert.True(t, errs.Is(err, errs.KindInvalid))
	_, err = NewGenerator(WithHashAlgorithm("crc32"))
	assert.True(t, errs.Is(err, errs.KindInvalid))
	_, err = NewGenerator(WithReseedInterval(-time.Second))
	assert.True(t, errs.Is(err, errs.KindInvalid))

	g, err := NewGenerator(WithCipherAlgorithm("serpent"), WithHashAlgorithm("blake2b"))
	require.NoError(t, err)
	require.NoError(t, g.SetDefaultParanoia(0, ZeroParanoiaConfirmation))
	words, err := g.RandomWords(4)
	require.NoError(t, err)
	assert.Len(t, words, 4)
}
