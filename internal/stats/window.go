package stats

import "math"

type entry struct {
	ok  bool
	rtt float64
}

// window is a fixed-capacity ring of the most recent samples. Running sums
// are maintained on push and eviction so every update is O(1).
type window struct {
	buf   []entry
	head  int // index of the oldest entry
	count int

	okCount int
	sumRTT  float64
	sumDiff float64 // |rtt[i]-rtt[i-1]| over adjacent successful pairs
	pairs   int
}

func newWindow(size int) *window {
	return &window{buf: make([]entry, size)}
}

// at returns the i-th entry counting from the oldest
func (w *window) at(i int) entry {
	return w.buf[(w.head+i)%len(w.buf)]
}

func (w *window) push(e entry) {
	if w.count == len(w.buf) {
		w.evict()
	}

	if w.count > 0 {
		last := w.at(w.count - 1)
		if last.ok && e.ok {
			w.sumDiff += math.Abs(e.rtt - last.rtt)
			w.pairs++
		}
	}

	w.buf[(w.head+w.count)%len(w.buf)] = e
	w.count++
	if e.ok {
		w.okCount++
		w.sumRTT += e.rtt
	}
}

func (w *window) evict() {
	old := w.at(0)
	if old.ok {
		w.okCount--
		w.sumRTT -= old.rtt
	}
	if w.count > 1 {
		next := w.at(1)
		if old.ok && next.ok {
			w.sumDiff -= math.Abs(next.rtt - old.rtt)
			w.pairs--
		}
	}
	w.head = (w.head + 1) % len(w.buf)
	w.count--

	// clear accumulated float drift once a sum has no contributors left
	if w.okCount == 0 {
		w.sumRTT = 0
	}
	if w.pairs == 0 {
		w.sumDiff = 0
	}
}

func (w *window) latest() (entry, bool) {
	if w.count == 0 {
		return entry{}, false
	}
	return w.at(w.count - 1), true
}

func (w *window) latency() float64 {
	if w.okCount == 0 {
		return 0
	}
	return w.sumRTT / float64(w.okCount)
}

func (w *window) jitter() float64 {
	if w.pairs == 0 {
		return 0
	}
	return w.sumDiff / float64(w.pairs)
}

func (w *window) lossRatio() float64 {
	if w.count == 0 {
		return 0
	}
	return float64(w.count-w.okCount) / float64(w.count)
}

// values returns the entries from oldest to newest
func (w *window) values() []entry {
	out := make([]entry, w.count)
	for i := range out {
		out[i] = w.at(i)
	}
	return out
}
