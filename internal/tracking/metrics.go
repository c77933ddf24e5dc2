package tracking

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================
// Prometheus метрики reconciliation-ядра
// ============================================================
//
// Назначение:
// - Наблюдаемость сериализованного цикла reconciliation
// - Подсчёт подавленных (no-op) публикаций - индикатор UI churn
// - Аномалии: нераспознанные статусы, отброшенные дельты
// - Подвисшие pending-заказы (открытый продуктовый вопрос про
//   безусловный override без cutoff)

// ReconcilePasses - проходы reconciliation по источникам триггера
var ReconcilePasses = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "cafetrack",
		Subsystem: "tracking",
		Name:      "reconcile_passes_total",
		Help:      "Total number of reconciliation passes by trigger source",
	},
	[]string{"trigger"}, // delta, tick, refresh, channel
)

// DeltasDiscarded - отброшенные дельты по причинам
var DeltasDiscarded = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "cafetrack",
		Subsystem: "tracking",
		Name:      "deltas_discarded_total",
		Help:      "Total number of discarded delta events",
	},
	[]string{"reason"}, // stale_seq, unknown_order, overflow
)

// PublishedUpdates - публикации изменившегося результата
var PublishedUpdates = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "cafetrack",
		Subsystem: "tracking",
		Name:      "published_updates_total",
		Help:      "Total number of published state changes",
	},
)

// SuppressedUpdates - подавленные no-op публикации
// Рост счётчика при стабильном заказе - норма (тики без изменений)
var SuppressedUpdates = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "cafetrack",
		Subsystem: "tracking",
		Name:      "suppressed_updates_total",
		Help:      "Total number of suppressed no-op publications",
	},
)

// FetchFailures - неудачные re-fetch (после исчерпания retry)
var FetchFailures = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "cafetrack",
		Subsystem: "tracking",
		Name:      "fetch_failures_total",
		Help:      "Total number of failed order re-fetches",
	},
)

// UnknownStatuses - встреченные нераспознанные статусы заказов
var UnknownStatuses = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "cafetrack",
		Subsystem: "tracking",
		Name:      "unknown_status_total",
		Help:      "Total number of orders observed with unrecognized status values",
	},
)

// StalePendingOrders - pending-заказы старше порога (см. StalePendingAge)
var StalePendingOrders = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "cafetrack",
		Subsystem: "tracking",
		Name:      "stale_pending_orders",
		Help:      "Number of unresolved pending orders older than the staleness threshold",
	},
)

// DegradedMode - 1 когда отображаемое состояние может быть неактуальным
var DegradedMode = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "cafetrack",
		Subsystem: "tracking",
		Name:      "degraded_mode",
		Help:      "Whether the tracker is in degraded (possibly stale) mode (1=degraded)",
	},
)

// ============ Вспомогательные функции ============

// RecordReconcile записывает проход reconciliation
func RecordReconcile(trigger string) {
	ReconcilePasses.WithLabelValues(trigger).Inc()
}

// RecordDiscardedDelta записывает отброшенную дельту
func RecordDiscardedDelta(reason string) {
	DeltasDiscarded.WithLabelValues(reason).Inc()
}

// UpdateDegraded обновляет gauge деградированного режима
func UpdateDegraded(degraded bool) {
	if degraded {
		DegradedMode.Set(1)
	} else {
		DegradedMode.Set(0)
	}
}
