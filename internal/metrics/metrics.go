package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "meet_signaling"

// Dropped frame reasons.
const (
	DropReasonBinary      = "binary"
	DropReasonMalformed   = "malformed"
	DropReasonUnjoined    = "unjoined"
	DropReasonRateLimited = "rate_limited"
	DropReasonTooLarge    = "too_large"
	DropReasonRejoin      = "rejoin"
)

// Broadcast delivery results.
const (
	DeliveryOK     = "ok"
	DeliveryFailed = "failed"
)

// Metrics owns the collectors for one server instance. They live on a private
// registry so that tests can build as many servers as they like.
//
// All methods are safe to call on a nil *Metrics.
type Metrics struct {
	reg *prometheus.Registry

	roomsCreated       prometheus.Counter
	roomsDeleted       prometheus.Counter
	joins              *prometheus.CounterVec
	joinRejections     *prometheus.CounterVec
	messages           *prometheus.CounterVec
	deliveries         *prometheus.CounterVec
	droppedFrames      *prometheus.CounterVec
	connectionRejected *prometheus.CounterVec
	activeRooms        prometheus.Gauge
	activeConnections  prometheus.Gauge
	translateRequests  *prometheus.CounterVec
	translateCache     *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		roomsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "rooms_created_total",
			Help: "Rooms created by a host join.",
		}),
		roomsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "rooms_deleted_total",
			Help: "Rooms deleted after their last member left.",
		}),
		joins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "joins_total",
			Help: "Accepted joins by outcome.",
		}, []string{"outcome"}),
		joinRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "join_rejections_total",
			Help: "Rejected joins by reason.",
		}, []string{"reason"}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "messages_total",
			Help: "Inbound signaling messages dispatched, by kind.",
		}, []string{"type"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "broadcast_deliveries_total",
			Help: "Per-recipient broadcast deliveries by result.",
		}, []string{"result"}),
		droppedFrames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "dropped_frames_total",
			Help: "Inbound frames dropped before dispatch, by reason.",
		}, []string{"reason"}),
		connectionRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "connection_rejections_total",
			Help: "WebSocket upgrades refused before a session started, by reason.",
		}, []string{"reason"}),
		activeRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "active_rooms",
			Help: "Rooms currently alive.",
		}),
		activeConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "active_connections",
			Help: "Open signaling WebSocket connections.",
		}),
		translateRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "translate_requests_total",
			Help: "Translation requests by result.",
		}, []string{"result"}),
		translateCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "translate_cache_total",
			Help: "Translation cache lookups by result.",
		}, []string{"result"}),
	}

	m.reg.MustRegister(
		m.roomsCreated,
		m.roomsDeleted,
		m.joins,
		m.joinRejections,
		m.messages,
		m.deliveries,
		m.droppedFrames,
		m.connectionRejected,
		m.activeRooms,
		m.activeConnections,
		m.translateRequests,
		m.translateCache,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

func (m *Metrics) RoomCreated() {
	if m == nil {
		return
	}
	m.roomsCreated.Inc()
	m.activeRooms.Inc()
}

func (m *Metrics) RoomDeleted() {
	if m == nil {
		return
	}
	m.roomsDeleted.Inc()
	m.activeRooms.Dec()
}

func (m *Metrics) Join(outcome string) {
	if m == nil {
		return
	}
	m.joins.WithLabelValues(outcome).Inc()
}

func (m *Metrics) JoinRejected(reason string) {
	if m == nil {
		return
	}
	m.joinRejections.WithLabelValues(reason).Inc()
}

func (m *Metrics) Message(kind string) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(kind).Inc()
}

func (m *Metrics) Deliveries(ok, failed int) {
	if m == nil {
		return
	}
	if ok > 0 {
		m.deliveries.WithLabelValues(DeliveryOK).Add(float64(ok))
	}
	if failed > 0 {
		m.deliveries.WithLabelValues(DeliveryFailed).Add(float64(failed))
	}
}

func (m *Metrics) FrameDropped(reason string) {
	if m == nil {
		return
	}
	m.droppedFrames.WithLabelValues(reason).Inc()
}

func (m *Metrics) ConnectionRejected(reason string) {
	if m == nil {
		return
	}
	m.connectionRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.activeConnections.Inc()
}

func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.activeConnections.Dec()
}

func (m *Metrics) TranslateRequest(result string) {
	if m == nil {
		return
	}
	m.translateRequests.WithLabelValues(result).Inc()
}

func (m *Metrics) TranslateCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.translateCache.WithLabelValues(result).Inc()
}
