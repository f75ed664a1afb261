package rng

import (
	"github.com/VictoriaMetrics/metrics"
)

var (
	entropyEventsTotal  = metrics.NewCounter("cryptbase_rng_entropy_events_total")
	reseedsTotal        = metrics.NewCounter("cryptbase_rng_reseeds_total")
	gatesTotal          = metrics.NewCounter("cryptbase_rng_gates_total")
	wordsGeneratedTotal = metrics.NewCounter("cryptbase_rng_words_generated_total")
)
