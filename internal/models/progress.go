package models

// Progress - проекция прогресса заказа для отображения.
//
// Производное значение: вычисляется заново на каждом тике из дискретного
// статуса и прошедшего времени. Никогда не персистится и никогда не
// используется как вход для классификации (односторонняя зависимость:
// статус/время -> прогресс).
type Progress struct {
	Percent float64 `json:"percent"` // 0..100
	Phase   string  `json:"phase"`
}

// Фазы отображения прогресса
const (
	PhasePendingPayment = "pending_payment" // ожидание оплаты
	PhaseVerifying      = "verifying"       // проверка оплаты/подтверждение
	PhaseConfirmed      = "confirmed"       // заказ принят, приготовление ещё впереди
	PhasePreparing      = "preparing"       // заказ готовится
	PhaseReady          = "ready"           // готов к выдаче
	PhaseCompleted      = "completed"       // терминальная фаза
	PhaseCancelled      = "cancelled"       // терминальная фаза, заказ не восстанавливается
	PhaseUnknown        = "unknown"         // нераспознанный статус (аномалия, не дефолт)
)
