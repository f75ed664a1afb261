package rng

import (
	"encoding/binary"
	"math/bits"
	"unicode/utf8"

	"github.com/cryptbase/cryptbase/container"
	"github.com/cryptbase/cryptbase/errs"
)

// DefaultEstimate selects the per-shape default entropy estimator in
// AddEntropy.
const DefaultEstimate = -1

// Datum is one entropy sample. Exactly three shapes exist: a single
// integer, a sequence of words, and text. Each carries its own default
// entropy estimation rule.
type Datum interface {
	// typeTag discriminates the shape in absorption records.
	typeTag() uint64
	// defaultEstimate returns the shape's default entropy estimate in
	// bits. These are deliberately conservative heuristics, not rigorous
	// entropy measurements.
	defaultEstimate() int
	// appendPayload frames the sample's content into a record.
	appendPayload(c *container.Container)
}

// Int is a single-integer entropy sample. Its default estimate is 1 bit.
type Int uint64

func (i Int) typeTag() uint64 {
	return 1
}

func (i Int) defaultEstimate() int {
	return 1
}

func (i Int) appendPayload(c *container.Container) {
	c.AppendNumber(uint64(i))
}

// Words is a word-sequence entropy sample. Its default estimate is the sum
// of the bit lengths of its elements. This treats magnitude as a proxy for
// entropy, a crude heuristic kept for compatibility; callers with a better
// estimate should pass one.
type Words []uint32

func (w Words) typeTag() uint64 {
	return 2
}

func (w Words) defaultEstimate() (estimate int) {
	for _, v := range w {
		estimate += bits.Len32(v)
	}
	return estimate
}

func (w Words) appendPayload(c *container.Container) {
	c.AppendNumber(uint64(len(w)))
	buf := make([]byte, len(w)*4)
	for i, v := range w {
		binary.BigEndian.PutUint32(buf[i*4:], v)
	}
	c.Append(buf)
}

// Text is a text entropy sample. Its default estimate is one bit per
// character, a conservative approximation for natural-language input.
type Text string

func (t Text) typeTag() uint64 {
	return 3
}

func (t Text) defaultEstimate() int {
	return utf8.RuneCountInString(string(t))
}

func (t Text) appendPayload(c *container.Container) {
	c.AppendAsBlock([]byte(t))
}

// coerceDatum maps loosely typed caller input onto the three sample shapes.
func coerceDatum(data any) (Datum, error) {
	switch v := data.(type) {
	case Int:
		return v, nil
	case Words:
		return v, nil
	case Text:
		return v, nil
	case int:
		return Int(v), nil
	case int64:
		return Int(v), nil
	case uint64:
		return Int(v), nil
	case uint32:
		return Int(v), nil
	case []uint32:
		return Words(v), nil
	case string:
		return Text(v), nil
	default:
		return nil, errs.Bugf("rng: addEntropy only supports integers, word sequences or text (got %T)", data)
	}
}

// AddEntropy absorbs one entropy sample into the pool selected by the
// source's round robin. data must be an integer, a []uint32 word sequence,
// a string, or one of the Datum types. estimatedEntropy is the claimed
// entropy of the sample in bits; pass DefaultEstimate to use the shape's
// default estimator. An empty source is recorded as "user".
func (g *Generator) AddEntropy(data any, estimatedEntropy int, source string) error {
	datum, err := coerceDatum(data)
	if err != nil {
		return err
	}
	if source == "" {
		source = "user"
	}
	if estimatedEntropy < 0 {
		estimatedEntropy = datum.defaultEstimate()
	}

	g.lock.Lock()

	id, seen := g.collectorIDs[source]
	if !seen {
		id = g.collectorIDNext
		g.collectorIDNext++
		g.collectorIDs[source] = id
	}
	robin := g.robins[source]
	g.robins[source] = (robin + 1) % len(g.pools)

	wasReady := g.readiness(g.defaultParanoia)

	record := container.New()
	record.AppendNumber(id)
	record.AppendNumber(g.eventID)
	g.eventID++
	record.AppendNumber(datum.typeTag())
	record.AppendNumber(uint64(estimatedEntropy))
	record.AppendNumber(uint64(g.now().UnixMilli()))
	datum.appendPayload(record)
	g.pools[robin].absorb(record.CompileData())

	g.pools[robin].entropy += estimatedEntropy
	g.poolStrength += estimatedEntropy

	// Collect events while holding the lock, deliver after releasing it so
	// listeners may call back into the generator.
	var seededValue float64
	var progressValue float64
	fireSeeded, fireProgress := false, false
	if wasReady == StatusNotReady {
		if g.readiness(g.defaultParanoia) != StatusNotReady {
			fireSeeded = true
			seededValue = float64(max(g.strength, g.poolStrength))
		}
		fireProgress = true
		progressValue = g.progress(g.defaultParanoia)
	}

	g.lock.Unlock()

	entropyEventsTotal.Inc()

	if fireSeeded {
		g.events.fire(EventSeeded, seededValue)
	}
	if fireProgress {
		g.events.fire(EventProgress, progressValue)
	}
	return nil
}
