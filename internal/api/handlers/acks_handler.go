package handlers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// AckStore - интерфейс персистентного набора прочитанных уведомлений
type AckStore interface {
	MarkRead(ctx context.Context, customerID, notificationID string) error
	ResetCustomer(ctx context.Context, customerID string) error
}

// AcksHandler отвечает за отметки прочитанных уведомлений
//
// Endpoints:
// - POST /api/v1/acks/{notification_id} - идемпотентная отметка
// - DELETE /api/v1/acks - сброс при смене идентичности
type AcksHandler struct {
	acks       AckStore // nil = персистентность отключена
	customerID string
	log        *zap.Logger
}

// NewAcksHandler создает новый AcksHandler
func NewAcksHandler(acks AckStore, customerID string, log *zap.Logger) *AcksHandler {
	return &AcksHandler{acks: acks, customerID: customerID, log: log}
}

// MarkRead помечает уведомление прочитанным (повтор безопасен)
//
// HTTP коды:
// - 204 No Content: отмечено (или уже было отмечено)
// - 503 Service Unavailable: хранилище отметок не сконфигурировано
func (h *AcksHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	if h.acks == nil {
		writeError(w, http.StatusServiceUnavailable, "ack store is not configured")
		return
	}

	notificationID := mux.Vars(r)["notification_id"]

	if err := h.acks.MarkRead(r.Context(), h.customerID, notificationID); err != nil {
		h.log.Error("failed to mark notification read",
			zap.String("notification_id", notificationID),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to persist ack")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Reset очищает отметки текущего клиента (смена идентичности)
//
// HTTP коды:
// - 204 No Content: очищено
// - 503 Service Unavailable: хранилище отметок не сконфигурировано
func (h *AcksHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if h.acks == nil {
		writeError(w, http.StatusServiceUnavailable, "ack store is not configured")
		return
	}

	if err := h.acks.ResetCustomer(r.Context(), h.customerID); err != nil {
		h.log.Error("failed to reset acks", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to reset acks")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
