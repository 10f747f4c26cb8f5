package session

import "slices"

const (
	// rttSamples is how many recent round trips feed the ping estimate.
	rttSamples = 10
	// rttSpikeFloorMillis keeps small absolute jitter in the estimate.
	rttSpikeFloorMillis = 20
)

// rttWindow holds the latest round trip samples in a fixed ring.
type rttWindow struct {
	samples [rttSamples]int64
	n       int
	next    int
}

func (w *rttWindow) add(rtt int64) {
	w.samples[w.next] = rtt
	w.next = (w.next + 1) % rttSamples
	if w.n < rttSamples {
		w.n++
	}
}

// estimate averages the window after dropping spikes: samples above twice
// the median and above rttSpikeFloorMillis.
func (w *rttWindow) estimate() float64 {
	if w.n == 0 {
		return 0
	}
	sorted := slices.Clone(w.samples[:w.n])
	slices.Sort(sorted)

	mid := len(sorted) / 2
	median := sorted[mid]
	if len(sorted)%2 == 0 {
		median = (sorted[mid-1] + sorted[mid]) / 2
	}
	limit := max(2*median, rttSpikeFloorMillis)

	var total int64
	kept := 0
	for _, rtt := range sorted {
		if rtt > limit {
			break
		}
		total += rtt
		kept++
	}
	return float64(total) / float64(kept)
}
