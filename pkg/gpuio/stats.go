package gpuio

import (
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/nightstaker/gpuio/internal/metrics"
)

// Stats is a snapshot of per-context counters. Counters are monotonic until
// ResetStats. BandwidthGBps is derived from a sliding window of recent
// completions; CacheHitRate is reserved for higher-level callers and stays
// zero here.
type Stats struct {
	RequestsSubmitted uint64
	RequestsCompleted uint64
	RequestsFailed    uint64
	BytesRead         uint64
	BytesWritten      uint64
	BandwidthGBps     float64
	CacheHitRate      float64
}

// bandwidthWindow bounds the sample set the estimator looks at.
const (
	bandwidthWindow  = 5 * time.Second
	bandwidthSamples = 256
)

type bwSample struct {
	at    time.Time
	bytes float64
	gbps  float64
}

// statsCollector keeps the counters under their own lock, updated on every
// request completion.
type statsCollector struct {
	mu      sync.Mutex
	s       Stats
	samples []bwSample
}

func (c *statsCollector) init() {
	c.samples = make([]bwSample, 0, bandwidthSamples)
}

func (c *statsCollector) submitted() {
	c.mu.Lock()
	c.s.RequestsSubmitted++
	c.mu.Unlock()
	metrics.RequestsSubmitted.Inc()
}

// completed applies the outcome of one request. Reads and copies account
// bytes read; writes and copies account bytes written. Any non-OK outcome,
// including an absorbed one, counts as a failed request so operators can
// observe failure rates.
func (c *statsCollector) completed(typ ReqType, bytes int, code Code, elapsed time.Duration) {
	c.mu.Lock()
	if code == OK {
		c.s.RequestsCompleted++
		if typ == ReqRead || typ == ReqCopy {
			c.s.BytesRead += uint64(bytes)
		}
		if typ == ReqWrite || typ == ReqCopy {
			c.s.BytesWritten += uint64(bytes)
		}
		if elapsed > 0 && bytes > 0 {
			c.addSampleLocked(bwSample{
				at:    time.Now(),
				bytes: float64(bytes),
				gbps:  float64(bytes) / elapsed.Seconds() / 1e9,
			})
		}
	} else {
		c.s.RequestsFailed++
	}
	c.mu.Unlock()

	if code == OK {
		metrics.RequestsCompleted.Inc()
		if typ == ReqRead || typ == ReqCopy {
			metrics.BytesRead.Add(float64(bytes))
		}
		if typ == ReqWrite || typ == ReqCopy {
			metrics.BytesWritten.Add(float64(bytes))
		}
	} else {
		metrics.RequestsFailed.Inc()
	}
}

// addCopy accounts a plain synchronous memcpy, which has no tracked
// request.
func (c *statsCollector) addCopy(bytes int) {
	c.mu.Lock()
	c.s.BytesWritten += uint64(bytes)
	c.mu.Unlock()
	metrics.BytesWritten.Add(float64(bytes))
}

func (c *statsCollector) addSampleLocked(s bwSample) {
	if len(c.samples) >= bandwidthSamples {
		copy(c.samples, c.samples[1:])
		c.samples = c.samples[:len(c.samples)-1]
	}
	c.samples = append(c.samples, s)
}

// snapshot copies the counters and derives the bandwidth figure: the
// byte-weighted mean of per-request throughput over the samples still
// inside the window. Large transfers dominate, which matches what the
// window is trying to describe.
func (c *statsCollector) snapshot() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := time.Now().Add(-bandwidthWindow)
	rates := make([]float64, 0, len(c.samples))
	weights := make([]float64, 0, len(c.samples))
	for _, s := range c.samples {
		if s.at.Before(cutoff) {
			continue
		}
		rates = append(rates, s.gbps)
		weights = append(weights, s.bytes)
	}

	out := c.s
	if len(rates) > 0 {
		out.BandwidthGBps = stat.Mean(rates, weights)
	}
	metrics.BandwidthGBps.Set(out.BandwidthGBps)
	return out
}

func (c *statsCollector) reset() {
	c.mu.Lock()
	c.s = Stats{}
	c.samples = c.samples[:0]
	c.mu.Unlock()
}
