package rng

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"github.com/tevino/abool"
)

// Ambient entropy collectors. They merely package host signals and funnel
// them into AddEntropy; the engine itself never depends on them.
const (
	osCollectorInterval = 10 * time.Second
	osCollectorBytes    = 64

	tickInterval     = 10 * time.Millisecond
	ticksPerSample   = 64
	tickSampleBits   = 8
	collectorBackoff = 10 * time.Second
)

type collectorControl struct {
	running  *abool.AtomicBool
	shutdown chan struct{}
}

func newCollectorControl() *collectorControl {
	return &collectorControl{
		running: abool.New(),
	}
}

type entropyCollector struct {
	name string
	// start probes the collector's signal source and, on success, spawns
	// its feeding goroutine.
	start func(g *Generator, shutdown <-chan struct{}) error
}

var ambientCollectors = []entropyCollector{
	{name: "os", start: startOSCollector},
	{name: "ticks", start: startTickCollector},
}

// StartCollectors attaches the ambient entropy collectors. Collectors keep
// feeding until StopCollectors is called. Starting an already started set
// is a no-op. Failures of individual collectors are combined; the ones
// that did start keep running.
func (g *Generator) StartCollectors() error {
	if !g.collectorCtl.running.SetToIf(false, true) {
		return nil
	}
	g.collectorCtl.shutdown = make(chan struct{})

	var combined *multierror.Error
	for _, c := range ambientCollectors {
		if err := c.start(g, g.collectorCtl.shutdown); err != nil {
			combined = multierror.Append(combined, fmt.Errorf("rng: failed to start %s collector: %w", c.name, err))
		}
	}
	return combined.ErrorOrNil()
}

// StopCollectors detaches all ambient entropy collectors.
func (g *Generator) StopCollectors() {
	if g.collectorCtl.running.SetToIf(true, false) {
		close(g.collectorCtl.shutdown)
	}
}

// startOSCollector feeds reads from the host's own random source. Where
// the host has a working OS RNG this seeds the generator almost
// immediately; where it has not, the other collectors carry the load.
func startOSCollector(g *Generator, shutdown <-chan struct{}) error {
	// probe the source once so a dead OS RNG surfaces as a start error
	probe := make([]byte, 8)
	if _, err := rand.Read(probe); err != nil {
		return err
	}
	if err := g.AddEntropy(bytesToWords(probe), DefaultEstimate, "os"); err != nil {
		return err
	}

	go func() {
		for {
			buf := make([]byte, osCollectorBytes)
			if _, err := rand.Read(buf); err != nil {
				logrus.Errorf("rng: could not read entropy from os: %s", err)
				select {
				case <-time.After(collectorBackoff):
					continue
				case <-shutdown:
					return
				}
			}
			if err := g.AddEntropy(bytesToWords(buf), len(buf)*8, "os"); err != nil {
				logrus.Errorf("rng: could not feed os entropy: %s", err)
			}

			select {
			case <-time.After(osCollectorInterval):
			case <-shutdown:
				return
			}
		}
	}()
	return nil
}

// startTickCollector accumulates the least significant bit of the current
// nanosecond unixtime on every tick. The more work the program does, the
// better the quality, as the scheduler cannot immediately resume the
// goroutine when it is ready.
func startTickCollector(g *Generator, shutdown <-chan struct{}) error {
	go func() {
		var value uint64
		var pushes int

		for {
			select {
			case <-time.After(tickInterval):
				value = value<<1 | uint64(time.Now().UnixNano()%2)

				pushes++
				if pushes >= ticksPerSample {
					if err := g.AddEntropy(Int(value), tickSampleBits, "ticks"); err != nil {
						logrus.Errorf("rng: could not feed tick entropy: %s", err)
					}
					pushes = 0
				}

			case <-shutdown:
				return
			}
		}
	}()
	return nil
}

func bytesToWords(b []byte) Words {
	words := make(Words, (len(b)+3)/4)
	for i := range words {
		chunk := b[i*4:]
		if len(chunk) >= 4 {
			words[i] = binary.BigEndian.Uint32(chunk)
		} else {
			for j, v := range chunk {
				words[i] |= uint32(v) << (24 - uint(j)*8)
			}
		}
	}
	return words
}
