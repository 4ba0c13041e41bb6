package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "iogate"

// Direction labels for traffic counters.
const (
	DirectionIngress = "ingress"
	DirectionEgress  = "egress"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	frames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "serial",
			Name:      "frames_total",
			Help:      "Frames read from or written to the serial link.",
		},
		[]string{"direction"},
	)
	syncDrops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "serial",
			Name:      "sync_drops_total",
			Help:      "Read chunks rejected by the frame synchronizer.",
		},
		[]string{"reason"},
	)
	readErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "serial",
			Name:      "read_errors_total",
			Help:      "Transient serial read errors.",
		},
	)
	decodeErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "decode_errors_total",
			Help:      "Records that failed message decode.",
		},
		[]string{"reason"},
	)
	messages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "messages_total",
			Help:      "Decoded or encoded bus messages by type.",
		},
		[]string{"direction", "type"},
	)
	commands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "commands_total",
			Help:      "Commands received from the broker.",
		},
		[]string{"kind"},
	)
	published = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "published_total",
			Help:      "Events published to the broker.",
		},
		[]string{"kind", "success"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,
			frames,
			syncDrops,
			readErrors,
			decodeErrors,
			messages,
			commands,
			published,
		)
	})
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

func RecordFrame(direction string) {
	RegisterMetrics()
	frames.WithLabelValues(direction).Inc()
}

func RecordSyncDrop(reason string) {
	RegisterMetrics()
	syncDrops.WithLabelValues(reason).Inc()
}

func RecordReadError() {
	RegisterMetrics()
	readErrors.Inc()
}

func RecordDecodeError(reason string) {
	RegisterMetrics()
	decodeErrors.WithLabelValues(reason).Inc()
}

func RecordMessage(direction, msgType string) {
	RegisterMetrics()
	messages.WithLabelValues(direction, msgType).Inc()
}

func RecordCommand(kind string) {
	RegisterMetrics()
	commands.WithLabelValues(kind).Inc()
}

func RecordPublish(kind string, success bool) {
	RegisterMetrics()
	published.WithLabelValues(kind, strconv.FormatBool(success)).Inc()
}
