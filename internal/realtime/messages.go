package realtime

import (
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"cafetrack/internal/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Типы входящих wire-событий канала
const (
	// EventOrderUpdated - изменился статус заказа
	EventOrderUpdated = "order-updated"

	// EventPaymentUpdated - изменился статус оплаты
	EventPaymentUpdated = "payment-updated"
)

// Ошибки нормализации событий
var (
	ErrMalformedEvent   = errors.New("malformed event payload")
	ErrUnknownEventType = errors.New("unknown event type")
)

// joinMessage - сообщение подписки на комнату.
//
// Отправляется при КАЖДОМ успешном (пере)подключении: состояние
// транспорта и состояние подписки - не одно и то же, reconnect без
// повторного join - тихий режим отказа.
type joinMessage struct {
	Type       string `json:"type"` // всегда "join"
	CustomerID string `json:"customer_id,omitempty"`
	OrderID    string `json:"order_id,omitempty"` // guest-режим
}

// wireEvent - событие канала как оно приходит по проводу.
//
// Сервер присылает только изменившиеся поля - это никогда не полная
// запись заказа. Опциональный seq - монотонный номер события для
// данного заказа (guard от out-of-order на стороне store).
type wireEvent struct {
	Type          string  `json:"type"`
	OrderID       string  `json:"order_id"`
	Status        *string `json:"status,omitempty"`
	PaymentStatus *string `json:"payment_status,omitempty"`
	Seq           *int64  `json:"seq,omitempty"`
}

// normalizeEvent приводит wire-событие к минимальной дельте для
// Reconciliation Controller. Искажённые payload'ы не пробрасываются
// дальше как исключения - вызывающий дропает их с логом и счётчиком.
func normalizeEvent(data []byte) (models.OrderDelta, error) {
	var ev wireEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return models.OrderDelta{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	if ev.OrderID == "" {
		return models.OrderDelta{}, fmt.Errorf("%w: missing order_id", ErrMalformedEvent)
	}

	switch ev.Type {
	case EventOrderUpdated:
		return models.OrderDelta{
			OrderID: ev.OrderID,
			Status:  ev.Status,
			Seq:     ev.Seq,
		}, nil

	case EventPaymentUpdated:
		return models.OrderDelta{
			OrderID:       ev.OrderID,
			PaymentStatus: ev.PaymentStatus,
			Seq:           ev.Seq,
		}, nil
	}

	return models.OrderDelta{}, fmt.Errorf("%w: %q", ErrUnknownEventType, ev.Type)
}
