package tracking

import (
	"testing"
	"time"

	"cafetrack/internal/models"
)

var classifyNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func makeOrder(id, status, payment string, age time.Duration) models.Order {
	return models.Order{
		OrderID:       id,
		Status:        status,
		PaymentStatus: payment,
		OrderTime:     classifyNow.Add(-age),
	}
}

// ============================================================
// Тесты правил выбора текущего заказа
// ============================================================

func TestClassify_EmptySet(t *testing.T) {
	c := NewClassifier(0)

	if got := c.Classify(nil, classifyNow); got != nil {
		t.Errorf("Classify(nil) = %+v, want nil", got)
	}
	if got := c.Classify([]models.Order{}, classifyNow); got != nil {
		t.Errorf("Classify(empty) = %+v, want nil", got)
	}
}

func TestClassify_CancelledNeverCurrent(t *testing.T) {
	c := NewClassifier(0)

	orders := []models.Order{
		// Отменённый заказ с неразрешённой оплатой - отмена важнее
		makeOrder("o1", models.OrderStatusCancelled, models.PaymentStatusPending, time.Minute),
	}

	if got := c.Classify(orders, classifyNow); got != nil {
		t.Errorf("cancelled order classified as current: %+v", got)
	}
}

func TestClassify_CompletedNeverCurrent(t *testing.T) {
	c := NewClassifier(0)

	orders := []models.Order{
		makeOrder("o1", models.OrderStatusCompleted, models.PaymentStatusPaid, time.Minute),
	}

	if got := c.Classify(orders, classifyNow); got != nil {
		t.Errorf("completed order classified as current: %+v", got)
	}
}

func TestClassify_UnknownStatusNeverCurrent(t *testing.T) {
	c := NewClassifier(0)

	orders := []models.Order{
		makeOrder("o1", "mystery_status", models.PaymentStatusPaid, time.Minute),
	}

	if got := c.Classify(orders, classifyNow); got != nil {
		t.Errorf("unknown status classified as current: %+v", got)
	}
}

func TestClassify_PendingIgnoresRecencyWindow(t *testing.T) {
	c := NewClassifier(24 * time.Hour)

	tests := []struct {
		name  string
		order models.Order
	}{
		{
			name:  "pending status 48h old",
			order: makeOrder("o1", models.OrderStatusPending, models.PaymentStatusPending, 48*time.Hour),
		},
		{
			name:  "pending_verification status 30 days old",
			order: makeOrder("o2", models.OrderStatusPendingVerification, models.PaymentStatusPendingVerification, 30*24*time.Hour),
		},
		{
			name:  "confirmed but payment pending 48h old",
			order: makeOrder("o3", models.OrderStatusConfirmed, models.PaymentStatusPending, 48*time.Hour),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify([]models.Order{tt.order}, classifyNow)
			if got == nil {
				t.Fatal("unresolved order excluded by recency window")
			}
			if got.OrderID != tt.order.OrderID {
				t.Errorf("got %s, want %s", got.OrderID, tt.order.OrderID)
			}
		})
	}
}

func TestClassify_PendingOverridesNewerActive(t *testing.T) {
	c := NewClassifier(24 * time.Hour)

	// Заказ 48-часовой давности с зависшей оплатой против свежего preparing.
	// Правило приоритета: неразрешённая оплата вытесняет даже более свежий
	// разрешённый заказ - иначе зависшая оплата молча исчезает из слота.
	old := makeOrder("o-old", models.OrderStatusPending, models.PaymentStatusPending, 48*time.Hour)
	fresh := makeOrder("o-new", models.OrderStatusPreparing, models.PaymentStatusPaid, time.Hour)

	got := c.Classify([]models.Order{fresh, old}, classifyNow)
	if got == nil {
		t.Fatal("Classify returned nil")
	}
	if got.OrderID != "o-old" {
		t.Errorf("got %s, want o-old (unresolved outranks fresher active)", got.OrderID)
	}

	// Порядок среза не влияет на результат
	got = c.Classify([]models.Order{old, fresh}, classifyNow)
	if got == nil || got.OrderID != "o-old" {
		t.Errorf("reversed input: got %+v, want o-old", got)
	}
}

func TestClassify_UnresolvedPaymentOutranksFreshPreparing(t *testing.T) {
	c := NewClassifier(24 * time.Hour)

	// Статус уже разрешён (confirmed), но оплата зависла в проверке:
	// заказ всё равно вытесняет свежий preparing с оплаченным чеком
	stuck := makeOrder("o-100", models.OrderStatusConfirmed, models.PaymentStatusPendingVerification, 48*time.Hour)
	fresh := makeOrder("o-200", models.OrderStatusPreparing, models.PaymentStatusPaid, time.Hour)

	got := c.Classify([]models.Order{stuck, fresh}, classifyNow)
	if got == nil || got.OrderID != "o-100" {
		t.Errorf("got %+v, want o-100 (pending_verification payment wins)", got)
	}
}

func TestClassify_LatestOrderTimeWithinUnresolvedTier(t *testing.T) {
	c := NewClassifier(24 * time.Hour)

	// Между двумя неразрешёнными заказами давность снова решает
	orders := []models.Order{
		makeOrder("o1", models.OrderStatusPending, models.PaymentStatusPending, 48*time.Hour),
		makeOrder("o2", models.OrderStatusPendingVerification, models.PaymentStatusPendingVerification, 2*time.Hour),
	}

	got := c.Classify(orders, classifyNow)
	if got == nil || got.OrderID != "o2" {
		t.Errorf("got %+v, want o2 (latest OrderTime among unresolved)", got)
	}
}

func TestClassify_RecencyWindowBoundary(t *testing.T) {
	c := NewClassifier(24 * time.Hour)

	tests := []struct {
		name    string
		age     time.Duration
		current bool
	}{
		{"well inside window", time.Hour, true},
		{"just inside window", 24*time.Hour - time.Minute, true},
		{"exactly at window", 24 * time.Hour, true},
		{"just outside window", 24*time.Hour + time.Minute, false},
		{"far outside window", 25 * time.Hour, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orders := []models.Order{
				makeOrder("o1", models.OrderStatusPreparing, models.PaymentStatusPaid, tt.age),
			}
			got := c.Classify(orders, classifyNow)
			if (got != nil) != tt.current {
				t.Errorf("age %v: current=%v, want %v", tt.age, got != nil, tt.current)
			}
		})
	}
}

func TestClassify_PicksLatestOrderTime(t *testing.T) {
	c := NewClassifier(0)

	orders := []models.Order{
		makeOrder("o1", models.OrderStatusConfirmed, models.PaymentStatusPaid, 3*time.Hour),
		makeOrder("o2", models.OrderStatusPreparing, models.PaymentStatusPaid, time.Hour),
		makeOrder("o3", models.OrderStatusReady, models.PaymentStatusPaid, 2*time.Hour),
	}

	got := c.Classify(orders, classifyNow)
	if got == nil || got.OrderID != "o2" {
		t.Errorf("got %+v, want o2 (latest OrderTime)", got)
	}
}

func TestClassify_TieBreakByOrderID(t *testing.T) {
	c := NewClassifier(0)

	// Одинаковый OrderTime - детерминированный выбор по большему OrderID
	orders := []models.Order{
		makeOrder("order-100", models.OrderStatusPreparing, models.PaymentStatusPaid, time.Hour),
		makeOrder("order-101", models.OrderStatusConfirmed, models.PaymentStatusPaid, time.Hour),
	}

	got := c.Classify(orders, classifyNow)
	if got == nil || got.OrderID != "order-101" {
		t.Errorf("got %+v, want order-101 (tie-break by OrderID desc)", got)
	}

	// Порядок среза не влияет на результат
	got = c.Classify([]models.Order{orders[1], orders[0]}, classifyNow)
	if got == nil || got.OrderID != "order-101" {
		t.Errorf("reversed input: got %+v, want order-101", got)
	}
}

func TestClassify_Idempotent(t *testing.T) {
	c := NewClassifier(0)

	orders := []models.Order{
		makeOrder("o1", models.OrderStatusPending, models.PaymentStatusPending, 48*time.Hour),
		makeOrder("o2", models.OrderStatusPreparing, models.PaymentStatusPaid, time.Hour),
		makeOrder("o3", models.OrderStatusCancelled, models.PaymentStatusFailed, time.Minute),
	}

	first := c.Classify(orders, classifyNow)
	second := c.Classify(orders, classifyNow)

	if first == nil || second == nil {
		t.Fatal("Classify returned nil")
	}
	if first.OrderID != second.OrderID {
		t.Errorf("non-deterministic result: %s vs %s", first.OrderID, second.OrderID)
	}
}

func TestClassify_ReturnsCopy(t *testing.T) {
	c := NewClassifier(0)

	orders := []models.Order{
		makeOrder("o1", models.OrderStatusPreparing, models.PaymentStatusPaid, time.Hour),
	}

	got := c.Classify(orders, classifyNow)
	if got == nil {
		t.Fatal("Classify returned nil")
	}

	got.Status = models.OrderStatusCancelled
	if orders[0].Status != models.OrderStatusPreparing {
		t.Error("mutating result leaked into input slice")
	}
}
