package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"cafetrack/internal/models"
	"cafetrack/internal/orderapi"
	"cafetrack/internal/tracking"
)

// Tracker - интерфейс Reconciliation Controller для HTTP слоя.
// Интерфейс на стороне потребителя упрощает тестирование (mock).
type Tracker interface {
	CurrentOrder() *models.Order
	LastPublished() (tracking.PublishedState, bool)
	History() []models.Order
	ProgressFor(order models.Order) models.Progress
	GuestProgress(ctx context.Context, orderID string) (models.Order, models.Progress, error)
	Refresh()
}

// TrackingHandler отвечает за read-only выдачу состояния трекера
//
// Endpoints:
// - GET /api/v1/orders/current - текущий заказ (или явное пустое состояние)
// - GET /api/v1/orders/current/progress - проекция прогресса текущего заказа
// - GET /api/v1/orders - история заказов с прогрессом
// - GET /api/v1/orders/{id}/progress - guest-отслеживание по ID заказа
// - POST /api/v1/orders/refresh - явный re-fetch
type TrackingHandler struct {
	tracker Tracker
	log     *zap.Logger
}

// NewTrackingHandler создает новый TrackingHandler с внедрением зависимости
func NewTrackingHandler(tracker Tracker, log *zap.Logger) *TrackingHandler {
	return &TrackingHandler{tracker: tracker, log: log}
}

// ProgressDTO представляет проекцию прогресса в API
type ProgressDTO struct {
	Percent int    `json:"percent"`
	Phase   string `json:"phase"`
}

// CurrentOrderResponse представляет ответ текущего заказа.
// Order == null - явное пустое состояние, а не устаревший выбор.
type CurrentOrderResponse struct {
	Order    *models.Order `json:"order"`
	Progress *ProgressDTO  `json:"progress,omitempty"`
	Degraded bool          `json:"degraded"` // "данные могут быть неактуальны"
}

// HistoryEntry представляет заказ в истории вместе с прогрессом
type HistoryEntry struct {
	Order    models.Order `json:"order"`
	Progress ProgressDTO  `json:"progress"`
}

// HistoryResponse представляет ответ списка заказов
type HistoryResponse struct {
	Orders []HistoryEntry `json:"orders"`
	Total  int            `json:"total"`
}

// GetCurrentOrder возвращает текущий заказ
//
// GET /api/v1/orders/current
//
// HTTP коды:
// - 200 OK: всегда; order=null если текущего заказа нет
func (h *TrackingHandler) GetCurrentOrder(w http.ResponseWriter, r *http.Request) {
	resp := CurrentOrderResponse{Order: h.tracker.CurrentOrder()}

	if state, ok := h.tracker.LastPublished(); ok {
		resp.Degraded = state.Degraded
		if state.HasOrder && resp.Order != nil {
			resp.Progress = &ProgressDTO{Percent: state.Percent, Phase: state.Phase}
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetCurrentProgress возвращает только проекцию прогресса текущего заказа
//
// GET /api/v1/orders/current/progress
//
// HTTP коды:
// - 200 OK: есть текущий заказ
// - 404 Not Found: текущего заказа нет (явное пустое состояние)
func (h *TrackingHandler) GetCurrentProgress(w http.ResponseWriter, r *http.Request) {
	state, ok := h.tracker.LastPublished()
	if !ok || !state.HasOrder {
		writeError(w, http.StatusNotFound, "no current order")
		return
	}

	writeJSON(w, http.StatusOK, ProgressDTO{Percent: state.Percent, Phase: state.Phase})
}

// ListOrders возвращает историю заказов с проекцией прогресса
//
// GET /api/v1/orders
func (h *TrackingHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders := h.tracker.History()

	entries := make([]HistoryEntry, 0, len(orders))
	for _, o := range orders {
		prog := h.tracker.ProgressFor(o)
		entries = append(entries, HistoryEntry{
			Order:    o,
			Progress: ProgressDTO{Percent: int(prog.Percent + 0.5), Phase: prog.Phase},
		})
	}

	writeJSON(w, http.StatusOK, HistoryResponse{Orders: entries, Total: len(entries)})
}

// GetOrderProgress - guest-отслеживание одного заказа по идентификатору
//
// GET /api/v1/orders/{id}/progress
//
// HTTP коды:
// - 200 OK: заказ найден
// - 404 Not Found: заказ не существует
// - 502 Bad Gateway: Order Source недоступен
func (h *TrackingHandler) GetOrderProgress(w http.ResponseWriter, r *http.Request) {
	orderID := mux.Vars(r)["id"]

	order, prog, err := h.tracker.GuestProgress(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, orderapi.ErrOrderNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		h.log.Warn("guest progress lookup failed",
			zap.String("order_id", orderID),
			zap.Error(err))
		writeError(w, http.StatusBadGateway, "order source unavailable")
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Order    models.Order `json:"order"`
		Progress ProgressDTO  `json:"progress"`
	}{
		Order:    order,
		Progress: ProgressDTO{Percent: int(prog.Percent + 0.5), Phase: prog.Phase},
	})
}

// Refresh запускает явный re-fetch заказов
//
// POST /api/v1/orders/refresh
//
// HTTP коды:
// - 202 Accepted: re-fetch поставлен в очередь
func (h *TrackingHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	h.tracker.Refresh()
	writeJSON(w, http.StatusAccepted, SuccessResponse{Message: "refresh scheduled"})
}

// Health - проверка живости сервиса
//
// GET /healthz
func (h *TrackingHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
