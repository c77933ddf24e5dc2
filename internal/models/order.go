package models

import "time"

// Order представляет заказ клиента кофейни.
//
// Локальная копия заказа принадлежит Order Store и изменяется только
// через reconciliation (merge дельт или полная замена при re-fetch).
// Заказы никогда не удаляются на клиенте - только замещаются.
type Order struct {
	OrderID       string      `json:"order_id"`
	Status        string      `json:"status"`         // см. статусы ниже
	PaymentStatus string      `json:"payment_status"` // pending, pending_verification, paid, failed
	OrderTime     time.Time   `json:"order_time"`     // иммутабельно после создания
	CompletedTime *time.Time  `json:"completed_time,omitempty"`
	Items         []OrderItem `json:"items"`
	TotalPrice    float64     `json:"total_price"`
}

// OrderItem - позиция заказа (непрозрачна для движка, только для отображения)
type OrderItem struct {
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

// Статусы жизненного цикла заказа (закрытое перечисление).
// Нераспознанные значения НЕ приводятся к дефолту - они сохраняются
// как есть и классифицируются как "unknown" (аномалия).
const (
	OrderStatusPending             = "pending"
	OrderStatusPendingVerification = "pending_verification"
	OrderStatusConfirmed           = "confirmed"
	OrderStatusPreparing           = "preparing"
	OrderStatusReady               = "ready"
	OrderStatusCompleted           = "completed"
	OrderStatusCancelled           = "cancelled"
)

// Статусы оплаты
const (
	PaymentStatusPending             = "pending"
	PaymentStatusPendingVerification = "pending_verification"
	PaymentStatusPaid                = "paid"
	PaymentStatusFailed              = "failed"
)

// KnownOrderStatus возвращает true если статус входит в закрытое перечисление
func KnownOrderStatus(s string) bool {
	switch s {
	case OrderStatusPending, OrderStatusPendingVerification, OrderStatusConfirmed,
		OrderStatusPreparing, OrderStatusReady, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// KnownPaymentStatus возвращает true если статус оплаты входит в перечисление
func KnownPaymentStatus(s string) bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPendingVerification, PaymentStatusPaid, PaymentStatusFailed:
		return true
	}
	return false
}

// PaymentUnresolved возвращает true для неразрешённых платёжных состояний.
// Такие заказы не должны молча исчезать из поля зрения клиента,
// независимо от давности заказа.
func PaymentUnresolved(s string) bool {
	return s == PaymentStatusPending || s == PaymentStatusPendingVerification
}

// StatusUnresolved возвращает true для статусов ожидания подтверждения/оплаты
func StatusUnresolved(s string) bool {
	return s == OrderStatusPending || s == OrderStatusPendingVerification
}

// OrderDelta - частичное обновление заказа из realtime канала.
//
// Сервер никогда не гарантирует полную запись заказа: присутствуют
// только изменившиеся поля. Отсутствующее поле (nil) не должно
// обнулять локальное значение при merge.
type OrderDelta struct {
	OrderID       string
	Status        *string
	PaymentStatus *string

	// Seq - монотонный номер события для данного заказа.
	// nil = транспорт не поддерживает нумерацию, применяем в порядке прихода.
	Seq *int64
}
