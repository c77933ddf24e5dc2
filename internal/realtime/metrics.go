package realtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================
// Prometheus метрики realtime-канала
// ============================================================

// ConnectionState - состояние соединения (значение enum State)
var ConnectionState = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "cafetrack",
		Subsystem: "channel",
		Name:      "connection_state",
		Help:      "Realtime channel connection state (0=disconnected 1=connecting 2=connected 3=reconnecting 4=closed)",
	},
)

// ReconnectsTotal - успешные переподключения
var ReconnectsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "cafetrack",
		Subsystem: "channel",
		Name:      "reconnects_total",
		Help:      "Total number of successful reconnects",
	},
)

// RoomJoinsTotal - отправленные join-сообщения (ровно одно на (пере)подключение)
var RoomJoinsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "cafetrack",
		Subsystem: "channel",
		Name:      "room_joins_total",
		Help:      "Total number of room-join messages sent",
	},
)

// EventsDropped - отброшенные входящие события
var EventsDropped = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "cafetrack",
		Subsystem: "channel",
		Name:      "events_dropped_total",
		Help:      "Total number of dropped inbound events",
	},
	[]string{"reason"}, // malformed, unknown_type, stale_epoch
)

// EventsDelivered - нормализованные дельты, переданные контроллеру
var EventsDelivered = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "cafetrack",
		Subsystem: "channel",
		Name:      "events_delivered_total",
		Help:      "Total number of normalized deltas delivered to the controller",
	},
)
