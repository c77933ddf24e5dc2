package tracking

import (
	"time"

	"cafetrack/internal/models"
)

// Окна по умолчанию для кусочно-линейной проекции прогресса
const (
	// DefaultPendingWindow - окно разгона 0% -> 20% для ожидания оплаты
	DefaultPendingWindow = 2 * time.Minute

	// DefaultPreparingWindow - окно разгона 20% -> 80% для приготовления
	DefaultPreparingWindow = 12 * time.Minute
)

// Projector проецирует дискретный статус заказа и прошедшее время
// в непрерывный процент готовности 0..100 и фазу для отображения.
//
// Чистая функция: прогресс анимируется между сетевыми событиями за счёт
// тиков часов, но авторитетным остаётся статус от сервера. Зависимость
// строго односторонняя: статус/время -> процент, никогда наоборот.
//
// Кусочно-линейная модель:
// - completed -> 100 (терминально)
// - cancelled -> 0 (терминально, заказ не восстанавливается)
// - ready -> фиксированные 90 (100 зарезервировано за явным completed,
//   готовность к выдаче не означает завершение)
// - confirmed/preparing -> 20 + min(1, (elapsed-pendingWindow)/preparingWindow)*60
//   (фазы confirmed и preparing различаются, формула общая)
// - pending/pending_verification -> min(1, elapsed/pendingWindow)*20
// - нераспознанный статус -> 0, фаза unknown (аномалия, не дефолт)
//
// Монотонность в пределах одного статуса гарантируется формулой
// (elapsed не убывает); защита от регрессии между рендерами - забота
// Order Store (см. ClampProgress).
type Projector struct {
	PendingWindow   time.Duration
	PreparingWindow time.Duration
}

// NewProjector создаёт проектор, подставляя окна по умолчанию вместо нулевых
func NewProjector(pendingWindow, preparingWindow time.Duration) Projector {
	if pendingWindow <= 0 {
		pendingWindow = DefaultPendingWindow
	}
	if preparingWindow <= 0 {
		preparingWindow = DefaultPreparingWindow
	}
	return Projector{PendingWindow: pendingWindow, PreparingWindow: preparingWindow}
}

// Project возвращает проекцию прогресса заказа на момент now
func (p Projector) Project(order models.Order, now time.Time) models.Progress {
	// Защита от clock skew: время до момента заказа считается нулевым
	elapsed := now.Sub(order.OrderTime)
	if elapsed < 0 {
		elapsed = 0
	}

	switch order.Status {
	case models.OrderStatusCompleted:
		return models.Progress{Percent: 100, Phase: models.PhaseCompleted}

	case models.OrderStatusCancelled:
		return models.Progress{Percent: 0, Phase: models.PhaseCancelled}

	case models.OrderStatusReady:
		return models.Progress{Percent: 90, Phase: models.PhaseReady}

	case models.OrderStatusConfirmed, models.OrderStatusPreparing:
		// Разгон 20 -> 80 за PreparingWindow, отсчёт после окна ожидания.
		// Процент общий, фаза различает принятый и готовящийся заказ.
		prep := elapsed - p.PendingWindow
		if prep < 0 {
			prep = 0
		}
		phase := models.PhasePreparing
		if order.Status == models.OrderStatusConfirmed {
			phase = models.PhaseConfirmed
		}
		return models.Progress{
			Percent: 20 + fraction(prep, p.PreparingWindow)*60,
			Phase:   phase,
		}

	case models.OrderStatusPending:
		return models.Progress{
			Percent: fraction(elapsed, p.PendingWindow) * 20,
			Phase:   models.PhasePendingPayment,
		}

	case models.OrderStatusPendingVerification:
		return models.Progress{
			Percent: fraction(elapsed, p.PendingWindow) * 20,
			Phase:   models.PhaseVerifying,
		}
	}

	// Нераспознанный статус: никакого числового прогресса, который
	// выглядел бы как ложное завершение или ложный сброс
	return models.Progress{Percent: 0, Phase: models.PhaseUnknown}
}

// fraction возвращает elapsed/window, ограниченное диапазоном [0, 1]
func fraction(elapsed, window time.Duration) float64 {
	if window <= 0 || elapsed >= window {
		return 1
	}
	if elapsed <= 0 {
		return 0
	}
	return float64(elapsed) / float64(window)
}
