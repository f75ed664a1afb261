// Package rng implements a Fortuna-derived cryptographically secure
// pseudorandom number generator for hosts that cannot rely on a synchronous
// OS random source.
//
// Entropy from arbitrary sources is absorbed into a growing set of
// accumulator pools. Pools are drawn on with exponentially decreasing
// frequency by index, so early reseeds get fresh entropy quickly while
// older pools accumulate enough to recover from a state compromise. Output
// is produced by a block cipher in counter mode, periodically rekeyed with
// its own output ("gating") for forward secrecy.
//
// A Generator is an explicit context object: the embedding application
// constructs one and owns its lifetime. All state-mutating operations are
// protected by a single mutex and are safe for concurrent use.
package rng

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"fmt"
	"hash"
	"math/rand"
	"sync"
	"time"

	"github.com/aead/serpent"
	"golang.org/x/crypto/blake2b"

	"github.com/cryptbase/cryptbase/errs"
)

const (
	// maxWordsPerBurst is the number of words generated between gates.
	maxWordsPerBurst = 65536

	// bitsPerReseed is the pool 0 entropy threshold that, together with the
	// reseed deadline, makes a scheduled reseed due.
	bitsPerReseed = 80

	// defaultReseedInterval is the wall-clock delay until the next
	// scheduled reseed becomes due.
	defaultReseedInterval = 30 * time.Second

	// DefaultParanoia is the paranoia level used when callers pass none.
	DefaultParanoia = 6
)

// paranoiaLevels maps a paranoia level to the required entropy in bits.
var paranoiaLevels = [11]int{0, 48, 64, 96, 128, 192, 256, 384, 512, 768, 1024}

// Status describes the generator's readiness as a bitmask.
type Status uint8

// Status flags. StatusNotReady is the zero value; StatusRequiresReseed can
// combine with either of the other two.
const (
	StatusNotReady       Status = 0
	StatusReady          Status = 1
	StatusRequiresReseed Status = 2
)

// IsReady reports whether the ready flag is set.
func (s Status) IsReady() bool {
	return s&StatusReady != 0
}

// RequiresReseed reports whether a reseed is due.
func (s Status) RequiresReseed() bool {
	return s&StatusRequiresReseed != 0
}

// NewCipherFunc builds a keyed block cipher for the generator.
type NewCipherFunc func(key []byte) (cipher.Block, error)

// NewHashFunc returns a fresh streaming hash used for entropy pools and
// reseed key derivation. The digest size must match the cipher key size.
type NewHashFunc func() hash.Hash

// Generator holds all mutable security state of the PRNG.
type Generator struct {
	lock sync.Mutex

	key     []byte
	counter [4]uint32
	cipher  cipher.Block

	pools        []*pool
	strength     int
	poolStrength int
	reseedCount  int
	nextReseed   time.Time

	defaultParanoia int
	reseedInterval  time.Duration

	robins          map[string]int
	collectorIDs    map[string]uint64
	collectorIDNext uint64
	eventID         uint64

	events eventRegistry

	newCipher NewCipherFunc
	newHash   NewHashFunc
	now       func() time.Time
	weakRand  func() uint32

	collectorCtl *collectorControl
}

// Option configures a Generator.
type Option func(*Generator) error

// WithCipher sets the block cipher factory.
func WithCipher(fn NewCipherFunc) Option {
	return func(g *Generator) error {
		g.newCipher = fn
		return nil
	}
}

// WithCipherAlgorithm selects a built-in block cipher: "aes" or "serpent".
func WithCipherAlgorithm(name string) Option {
	return func(g *Generator) error {
		switch name {
		case "aes":
			g.newCipher = aes.NewCipher
		case "serpent":
			g.newCipher = serpent.NewCipher
		default:
			return errs.Invalidf("rng: unknown or unsupported cipher: %s", name)
		}
		return nil
	}
}

// WithHash sets the hash factory.
func WithHash(fn NewHashFunc) Option {
	return func(g *Generator) error {
		g.newHash = fn
		return nil
	}
}

// WithHashAlgorithm selects a built-in hash: "sha256" or "blake2b".
func WithHashAlgorithm(name string) Option {
	return func(g *Generator) error {
		switch name {
		case "sha256":
			g.newHash = sha256.New
		case "blake2b":
			g.newHash = func() hash.Hash {
				h, err := blake2b.New256(nil)
				if err != nil {
					// unreachable with a nil key
					panic(err)
				}
				return h
			}
		default:
			return errs.Invalidf("rng: unknown or unsupported hash: %s", name)
		}
		return nil
	}
}

// WithReseedInterval sets the delay until a scheduled reseed becomes due.
func WithReseedInterval(d time.Duration) Option {
	return func(g *Generator) error {
		if d <= 0 {
			return errs.Invalidf("rng: reseed interval must be positive")
		}
		g.reseedInterval = d
		return nil
	}
}

// WithClock sets the time source. Only useful for testing.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) error {
		g.now = now
		return nil
	}
}

// WithWeakRandSource sets the non-cryptographic random source mixed into
// every reseed. Only useful for testing.
func WithWeakRandSource(fn func() uint32) Option {
	return func(g *Generator) error {
		g.weakRand = fn
		return nil
	}
}

// NewGenerator creates a generator with zero entropy. It is not ready for
// use until enough entropy has been absorbed, see AddEntropy and IsReady.
func NewGenerator(opts ...Option) (*Generator, error) {
	g := &Generator{
		key:             make([]byte, 32),
		defaultParanoia: DefaultParanoia,
		reseedInterval:  defaultReseedInterval,
		robins:          make(map[string]int),
		collectorIDs:    make(map[string]uint64),
		newCipher:       aes.NewCipher,
		newHash:         sha256.New,
		now:             time.Now,
		weakRand:        rand.Uint32,
	}
	for _, opt := range opts {
		if err := opt(g); err != nil {
			return nil, err
		}
	}
	g.pools = []*pool{newPool(g.newHash)}
	g.events.init()
	g.collectorCtl = newCollectorControl()
	return g, nil
}

// SetDefaultParanoia changes the paranoia level used when callers pass
// none. Level 0 disables the entropy requirement entirely and therefore
// requires the exact confirmation phrase ZeroParanoiaConfirmation.
func (g *Generator) SetDefaultParanoia(level int, confirmation string) error {
	if level < 0 || level >= len(paranoiaLevels) {
		return errs.Invalidf("rng: paranoia level %d out of range", level)
	}
	if level == 0 && confirmation != ZeroParanoiaConfirmation {
		return errs.Invalidf(ZeroParanoiaConfirmation)
	}

	g.lock.Lock()
	defer g.lock.Unlock()
	g.defaultParanoia = level
	return nil
}

// ZeroParanoiaConfirmation must be passed verbatim to SetDefaultParanoia to
// select paranoia level 0.
const ZeroParanoiaConfirmation = "Setting paranoia=0 will ruin your security; use it only for testing"

// paranoiaLevel resolves an optional paranoia argument.
func (g *Generator) paranoiaLevel(paranoia []int) (int, error) {
	switch len(paranoia) {
	case 0:
		g.lock.Lock()
		defer g.lock.Unlock()
		return g.defaultParanoia, nil
	case 1:
		if paranoia[0] < 0 || paranoia[0] >= len(paranoiaLevels) {
			return 0, errs.Invalidf("rng: paranoia level %d out of range", paranoia[0])
		}
		return paranoia[0], nil
	default:
		return 0, errs.Invalidf("rng: at most one paranoia level may be given")
	}
}

// IsReady returns the generator's readiness at the given (or default)
// paranoia level.
func (g *Generator) IsReady(paranoia ...int) (Status, error) {
	level, err := g.paranoiaLevel(paranoia)
	if err != nil {
		return StatusNotReady, err
	}

	g.lock.Lock()
	defer g.lock.Unlock()
	return g.readiness(level), nil
}

// GetProgress returns the fraction of required entropy absorbed so far for
// the given (or default) paranoia level, 1.0 meaning fully seeded.
func (g *Generator) GetProgress(paranoia ...int) (float64, error) {
	level, err := g.paranoiaLevel(paranoia)
	if err != nil {
		return 0, err
	}

	g.lock.Lock()
	defer g.lock.Unlock()
	return g.progress(level), nil
}

// readiness derives the two-bit status. Callers must hold the lock.
func (g *Generator) readiness(level int) Status {
	required := paranoiaLevels[level]

	if g.strength > 0 && g.strength >= required {
		if g.pools[0].entropy > bitsPerReseed && g.now().After(g.nextReseed) {
			return StatusReady | StatusRequiresReseed
		}
		return StatusReady
	}
	if g.poolStrength >= required {
		return StatusNotReady | StatusRequiresReseed
	}
	return StatusNotReady
}

// progress returns the readiness fraction. Callers must hold the lock.
func (g *Generator) progress(level int) float64 {
	required := paranoiaLevels[level]
	if required == 0 || g.strength >= required || g.poolStrength >= required {
		return 1.0
	}
	return float64(g.poolStrength) / float64(required)
}

func (g *Generator) String() string {
	g.lock.Lock()
	defer g.lock.Unlock()
	return fmt.Sprintf("rng.Generator{pools: %d, strength: %d bits, reseeds: %d}", len(g.pools), g.strength, g.reseedCount)
}
