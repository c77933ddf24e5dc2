package tracking

import (
	"sync"

	"cafetrack/internal/models"
)

// ApplyResult - исход применения дельты к Order Store
type ApplyResult int

const (
	// ApplyChanged - дельта изменила хотя бы одно поле
	ApplyChanged ApplyResult = iota
	// ApplyNoop - дельта полностью совпала с локальным состоянием
	ApplyNoop
	// ApplyUnknownOrder - заказ с таким ID в store отсутствует
	ApplyUnknownOrder
	// ApplyStaleSeq - sequence number дельты не новее уже применённого
	ApplyStaleSeq
)

// trackedOrder - заказ вместе со служебным состоянием reconciliation
type trackedOrder struct {
	order models.Order

	// Последний применённый sequence number дельты (guard от out-of-order)
	lastSeq    int64
	hasLastSeq bool

	// Пол прогресса в пределах одного статуса: отображаемый процент
	// не должен откатываться назад из-за устаревшего re-render
	floorStatus  string
	floorPercent float64
}

// Store - авторитетная локальная копия заказов клиента.
//
// Принадлежит исключительно Reconciliation Controller: все мутации
// (ReplaceAll, Apply) выполняются из его сериализованного цикла.
// RWMutex защищает только конкурентные чтения со стороны HTTP handlers,
// которые видят либо состояние до merge, либо после - никогда половинное.
type Store struct {
	mu     sync.RWMutex
	orders map[string]*trackedOrder
}

// NewStore создаёт пустой Order Store
func NewStore() *Store {
	return &Store{orders: make(map[string]*trackedOrder)}
}

// ReplaceAll замещает содержимое store результатом полного re-fetch.
//
// Служебное состояние (lastSeq, пол прогресса) сохраняется для заказов,
// переживших замену: поздняя дельта из старого соединения не должна
// обойти guard только потому, что случился re-fetch.
func (s *Store) ReplaceAll(orders []models.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]*trackedOrder, len(orders))
	for _, o := range orders {
		t := &trackedOrder{order: cloneOrder(o)}
		if prev, ok := s.orders[o.OrderID]; ok {
			t.lastSeq = prev.lastSeq
			t.hasLastSeq = prev.hasLastSeq
			t.floorStatus = prev.floorStatus
			t.floorPercent = prev.floorPercent

			// Инвариант: однажды установленный completedTime не меняется
			if prev.order.CompletedTime != nil && t.order.CompletedTime == nil {
				ct := *prev.order.CompletedTime
				t.order.CompletedTime = &ct
			}
		}
		next[o.OrderID] = t
	}
	s.orders = next
}

// Apply выполняет merge частичной дельты в заказ с совпадающим OrderID.
//
// Обновляются только присутствующие в дельте поля; отсутствующее поле
// никогда не обнуляет локальное значение. OrderTime и CompletedTime
// дельтой не изменяются.
func (s *Store) Apply(delta models.OrderDelta) ApplyResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.orders[delta.OrderID]
	if !ok {
		return ApplyUnknownOrder
	}

	// Guard от out-of-order доставки: дельта с номером не новее
	// последнего применённого отбрасывается молча
	if delta.Seq != nil {
		if t.hasLastSeq && *delta.Seq <= t.lastSeq {
			return ApplyStaleSeq
		}
		t.lastSeq = *delta.Seq
		t.hasLastSeq = true
	}

	changed := false
	if delta.Status != nil && t.order.Status != *delta.Status {
		t.order.Status = *delta.Status
		changed = true
	}
	if delta.PaymentStatus != nil && t.order.PaymentStatus != *delta.PaymentStatus {
		t.order.PaymentStatus = *delta.PaymentStatus
		changed = true
	}

	if !changed {
		return ApplyNoop
	}
	return ApplyChanged
}

// Get возвращает копию заказа по ID
func (s *Store) Get(orderID string) (models.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.orders[orderID]
	if !ok {
		return models.Order{}, false
	}
	return cloneOrder(t.order), true
}

// Snapshot возвращает копии всех заказов.
// Вызывающий никогда не получает ссылок на внутреннюю память store.
func (s *Store) Snapshot() []models.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Order, 0, len(s.orders))
	for _, t := range s.orders {
		out = append(out, cloneOrder(t.order))
	}
	return out
}

// Len возвращает количество заказов в store
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}

// ClampProgress применяет пол прогресса: возвращает max(percent, пол)
// в пределах одного статуса и запоминает новый максимум.
//
// Смена статуса сбрасывает пол - формула проекции сама гарантирует,
// что переходы статуса не уменьшают процент.
func (s *Store) ClampProgress(orderID, status string, percent float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.orders[orderID]
	if !ok {
		return percent
	}

	if t.floorStatus == status && t.floorPercent > percent {
		return t.floorPercent
	}

	t.floorStatus = status
	t.floorPercent = percent
	return percent
}

// cloneOrder возвращает глубокую копию заказа
func cloneOrder(o models.Order) models.Order {
	c := o
	if o.CompletedTime != nil {
		ct := *o.CompletedTime
		c.CompletedTime = &ct
	}
	if o.Items != nil {
		c.Items = make([]models.OrderItem, len(o.Items))
		copy(c.Items, o.Items)
	}
	return c
}
