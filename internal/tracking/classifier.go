package tracking

import (
	"time"

	"cafetrack/internal/models"
)

// DefaultRecencyWindow - окно давности для "обычных" активных статусов.
// Заказ в confirmed/preparing/ready старше окна не должен навсегда
// занимать слот текущего заказа.
const DefaultRecencyWindow = 24 * time.Hour

// Classifier выбирает "текущий" заказ из набора заказов клиента.
//
// Чистая функция без состояния и побочных эффектов: один и тот же вход
// всегда даёт один и тот же результат. Аномалии (нераспознанные статусы)
// здесь не логируются - это забота контроллера.
//
// Правила в порядке приоритета:
// 1. cancelled исключается безусловно, независимо от давности
// 2. pending/pending_verification (статус ИЛИ оплата) включается без
//    ограничения по времени И вытесняет любой разрешённый активный заказ,
//    даже более свежий - неразрешённая оплата не должна исчезать из слота
// 3. confirmed/preparing/ready включаются только в пределах RecencyWindow
// 4. completed и нераспознанные статусы никогда не являются текущими
// 5. внутри уровня приоритета выбирается заказ с самым поздним OrderTime,
//    при равенстве - больший OrderID (детерминизм)
// 6. если никто не подошёл - nil, UI показывает явное пустое состояние
type Classifier struct {
	// RecencyWindow - окно давности для правила 3 (default: 24h)
	RecencyWindow time.Duration
}

// NewClassifier создаёт классификатор с окном по умолчанию
func NewClassifier(window time.Duration) Classifier {
	if window <= 0 {
		window = DefaultRecencyWindow
	}
	return Classifier{RecencyWindow: window}
}

// Classify возвращает текущий заказ или nil если подходящих нет.
// Возвращается копия - вызывающий не может изменить исходный срез.
func (c Classifier) Classify(orders []models.Order, now time.Time) *models.Order {
	var best *models.Order
	bestUnresolved := false

	for i := range orders {
		o := &orders[i]
		if !c.eligible(o, now) {
			continue
		}

		// Два уровня приоритета: неразрешённые заказы вытесняют
		// разрешённые активные; давность сравнивается внутри уровня
		unresolved := hasUnresolved(o)
		switch {
		case best == nil,
			unresolved && !bestUnresolved,
			unresolved == bestUnresolved && moreRecent(o, best):
			picked := *o
			best = &picked
			bestUnresolved = unresolved
		}
	}

	return best
}

// hasUnresolved проверяет наличие неразрешённого статуса или оплаты
func hasUnresolved(o *models.Order) bool {
	return models.StatusUnresolved(o.Status) || models.PaymentUnresolved(o.PaymentStatus)
}

// eligible проверяет, может ли заказ претендовать на слот текущего
func (c Classifier) eligible(o *models.Order, now time.Time) bool {
	// Правило 1: отменённый заказ исключается безусловно
	if o.Status == models.OrderStatusCancelled {
		return false
	}

	// Правило 2: неразрешённая оплата/подтверждение - без ограничения по времени
	if hasUnresolved(o) {
		return true
	}

	// Правило 3: активные статусы только в пределах окна давности
	switch o.Status {
	case models.OrderStatusConfirmed, models.OrderStatusPreparing, models.OrderStatusReady:
		return now.Sub(o.OrderTime) <= c.RecencyWindow
	}

	// Правило 4: completed и нераспознанные статусы не бывают текущими
	return false
}

// moreRecent возвращает true если a побеждает b внутри одного уровня
// приоритета. Tie-break по OrderID по убыванию (идентификаторы выдаются
// монотонно).
func moreRecent(a, b *models.Order) bool {
	if !a.OrderTime.Equal(b.OrderTime) {
		return a.OrderTime.After(b.OrderTime)
	}
	return a.OrderID > b.OrderID
}
