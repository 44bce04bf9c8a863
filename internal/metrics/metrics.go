package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gpuio_requests_submitted_total",
		Help: "The total number of transfer requests submitted",
	})

	RequestsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gpuio_requests_completed_total",
		Help: "The total number of transfer requests completed successfully",
	})

	RequestsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gpuio_requests_failed_total",
		Help: "The total number of transfer requests that failed or were canceled",
	})

	BytesRead = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gpuio_bytes_read_total",
		Help: "Bytes read from source regions by completed requests",
	})

	BytesWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gpuio_bytes_written_total",
		Help: "Bytes written to destination regions by completed requests and copies",
	})

	BandwidthGBps = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gpuio_bandwidth_gbps",
		Help: "Windowed transfer bandwidth in GB/s",
	})
)
