package obs

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP-level metrics shared by every handler.
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	wsConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ws_connections",
		Help: "Live websocket connections registered with the hub.",
	})

	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ws_events_total",
			Help: "Websocket events pushed to clients, by event and delivery outcome.",
		},
		[]string{"event", "outcome"},
	)

	notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_created_total",
			Help: "Durable notification rows written, by notification type.",
		},
		[]string{"type"},
	)
)

// Init registers all collectors in the default registry. Call once at startup.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration,
		wsConnections, wsEventsTotal, notificationsTotal,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ConnectionOpened / ConnectionClosed track the hub gauge.
func ConnectionOpened() { wsConnections.Inc() }
func ConnectionClosed() { wsConnections.Dec() }

// EventDelivered records one push attempt outcome for an event type.
func EventDelivered(event string, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	wsEventsTotal.WithLabelValues(event, outcome).Inc()
}

// NotificationCreated counts a durable notification write.
func NotificationCreated(notificationType string) {
	notificationsTotal.WithLabelValues(notificationType).Inc()
}

// Instrument wraps a handler with RPS, latency and in-flight measurements.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// CanonicalPath collapses entity identifiers so metric label cardinality stays
// bounded. Only paths with a known id segment are rewritten.
func CanonicalPath(path string) string {
	if path == "" {
		return "/"
	}
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "/v1/notifications/mark-all-read" {
		return path
	}
	segments := strings.Split(path, "/")
	rewrite := func(prefix []string, suffix []string) bool {
		if len(segments) != len(prefix)+1+len(suffix) {
			return false
		}
		for i, p := range prefix {
			if segments[i] != p {
				return false
			}
		}
		for i, s := range suffix {
			if segments[len(prefix)+1+i] != s {
				return false
			}
		}
		return true
	}
	switch {
	case rewrite([]string{"", "v1", "notifications"}, nil):
		return "/v1/notifications/:id"
	case rewrite([]string{"", "v1", "notifications"}, []string{"read"}):
		return "/v1/notifications/:id/read"
	case rewrite([]string{"", "v1", "notifications"}, []string{"unread"}):
		return "/v1/notifications/:id/unread"
	case rewrite([]string{"", "v1", "chat", "threads"}, nil):
		return "/v1/chat/threads/:id"
	case rewrite([]string{"", "v1", "chat", "threads"}, []string{"messages"}):
		return "/v1/chat/threads/:id/messages"
	case rewrite([]string{"", "v1", "chat", "threads"}, []string{"typing"}):
		return "/v1/chat/threads/:id/typing"
	case rewrite([]string{"", "v1", "chat", "messages"}, nil):
		return "/v1/chat/messages/:id"
	case rewrite([]string{"", "v1", "chat", "messages"}, []string{"attachments"}):
		return "/v1/chat/messages/:id/attachments"
	case rewrite([]string{"", "v1", "chat", "attachments"}, nil):
		return "/v1/chat/attachments/:id"
	}
	return path
}

// statusWriter captures the response code for labels.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack keeps websocket upgrades working through the instrumented wrapper.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	w.code = http.StatusSwitchingProtocols
	return h.Hijack()
}
