package tracking

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"cafetrack/internal/models"
	"cafetrack/pkg/retry"
)

// OrderSource - внешний источник заказов (REST-коллаборатор).
//
// Оба метода - идемпотентные GET, безопасные для повторного вызова:
// используются и для начальной загрузки, и для восстановительного re-fetch.
type OrderSource interface {
	ListOrders(ctx context.Context, customerID string) ([]models.Order, error)
	GetOrder(ctx context.Context, orderID string) (models.Order, error)
}

// PublishedState - результат reconciliation для презентационного слоя.
//
// Сравнимая структура: публикация происходит только при отличии от
// последнего опубликованного значения (shallow compare), что защищает
// UI от churn на тиках без видимых изменений.
type PublishedState struct {
	HasOrder bool
	OrderID  string
	Status   string
	Phase    string
	Percent  int // округлён до гранулярности отображения (целый процент)
	Degraded bool
}

// UpdateFunc - callback подписчика на изменения опубликованного состояния
type UpdateFunc func(PublishedState)

// Config - настройки Reconciliation Controller
type Config struct {
	// CustomerID - клиент, чьи заказы отслеживаются
	CustomerID string

	// OrderID - guest-режим: отслеживание одного заказа без аутентификации.
	// Используется когда CustomerID пуст.
	OrderID string

	// TickInterval - период тика часов (default: 1s).
	// Тики нужны чтобы прогресс анимировался без сетевых событий.
	TickInterval time.Duration

	// RecencyWindow - окно давности классификатора (default: 24h)
	RecencyWindow time.Duration

	// Окна проекции прогресса (default: 2m / 12m)
	PendingWindow   time.Duration
	PreparingWindow time.Duration

	// FetchRetry - backoff для неудачных re-fetch
	FetchRetry retry.Config

	// DegradedPollInterval - период принудительного re-fetch пока
	// realtime-канал деградирован (default: 30s). Без опроса система
	// молча устаревала бы до ручного refresh.
	DegradedPollInterval time.Duration

	// StalePendingAge - порог для метрики подвисших pending-заказов
	// (default: 7 суток). Поведения не меняет: override безусловен.
	StalePendingAge time.Duration
}

func (c *Config) applyDefaults() {
	if c.TickInterval <= 0 {
		c.TickInterval = time.Second
	}
	if c.StalePendingAge <= 0 {
		c.StalePendingAge = 7 * 24 * time.Hour
	}
	if c.FetchRetry.MaxRetries == 0 {
		c.FetchRetry = retry.NetworkConfig()
	}
	if c.DegradedPollInterval <= 0 {
		c.DegradedPollInterval = 30 * time.Second
	}
}

// Controller - единственное место, где пересчитываются и публикуются
// результаты классификации и проекции.
//
// Три независимых источника триггеров (дельты realtime-канала,
// периодический тик, явный refresh) сериализуются через один цикл:
// классификация никогда не выполняется против наполовину смерженного
// Order Store.
type Controller struct {
	cfg        Config
	store      *Store
	classifier Classifier
	projector  Projector
	source     OrderSource
	log        *zap.Logger

	// Каналы триггеров (все обрабатываются одним циклом)
	deltas       chan models.OrderDelta
	refreshCh    chan struct{}
	channelState chan bool

	shutdown chan struct{}
	done     chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	// Подменяется в тестах для детерминизма
	nowFn func() time.Time

	// Состояние, видимое снаружи цикла
	mu        sync.RWMutex
	last      PublishedState
	hasLast   bool
	current   *models.Order
	callbacks []UpdateFunc

	// Поля цикла (трогает только горутина loop)
	fetchDegraded   bool
	channelDegraded bool
	retryDelay      time.Duration
	warnedStale     map[string]bool

	closeOnce sync.Once
}

// NewController создаёт контроллер. Store переходит в его владение:
// никакой другой компонент не мутирует store напрямую.
func NewController(cfg Config, store *Store, source OrderSource, log *zap.Logger) *Controller {
	cfg.applyDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	return &Controller{
		cfg:          cfg,
		store:        store,
		classifier:   NewClassifier(cfg.RecencyWindow),
		projector:    NewProjector(cfg.PendingWindow, cfg.PreparingWindow),
		source:       source,
		log:          log,
		deltas:       make(chan models.OrderDelta, 64),
		refreshCh:    make(chan struct{}, 1),
		channelState: make(chan bool, 4),
		shutdown:     make(chan struct{}),
		done:         make(chan struct{}),
		ctx:          ctx,
		cancel:       cancel,
		nowFn:        time.Now,
		warnedStale:  make(map[string]bool),
	}
}

// Start запускает цикл reconciliation.
// Начальная загрузка выполняется внутри цикла первым действием.
func (c *Controller) Start() {
	go c.loop()
}

// Close останавливает цикл и отменяет in-flight re-fetch.
// После возврата состояние больше не публикуется.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		close(c.shutdown)
		<-c.done
	})
}

// ============================================================
// Внешний API (презентационный слой)
// ============================================================

// CurrentOrder возвращает копию текущего заказа или nil
func (c *Controller) CurrentOrder() *models.Order {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.current == nil {
		return nil
	}
	o := cloneOrder(*c.current)
	return &o
}

// LastPublished возвращает последнее опубликованное состояние
func (c *Controller) LastPublished() (PublishedState, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last, c.hasLast
}

// ProgressFor проецирует прогресс для произвольного заказа из store
// (используется для заказов, отображаемых в истории)
func (c *Controller) ProgressFor(order models.Order) models.Progress {
	prog := c.projector.Project(order, c.nowFn())
	prog.Percent = c.store.ClampProgress(order.OrderID, order.Status, prog.Percent)
	return prog
}

// History возвращает все заказы, отсортированные от новых к старым
func (c *Controller) History() []models.Order {
	orders := c.store.Snapshot()
	sort.Slice(orders, func(i, j int) bool {
		return moreRecent(&orders[i], &orders[j])
	})
	return orders
}

// GuestProgress - отслеживание одного заказа по идентификатору без
// аутентификации. Не затрагивает Order Store клиента.
func (c *Controller) GuestProgress(ctx context.Context, orderID string) (models.Order, models.Progress, error) {
	order, err := c.source.GetOrder(ctx, orderID)
	if err != nil {
		return models.Order{}, models.Progress{}, err
	}
	return order, c.projector.Project(order, c.nowFn()), nil
}

// OnUpdate регистрирует callback, вызываемый только при изменении
// опубликованного результата
func (c *Controller) OnUpdate(cb UpdateFunc) {
	c.mu.Lock()
	c.callbacks = append(c.callbacks, cb)
	c.mu.Unlock()
}

// Refresh запрашивает явный re-fetch (неблокирующе; повторный запрос
// при уже ожидающем refresh схлопывается)
func (c *Controller) Refresh() {
	select {
	case c.refreshCh <- struct{}{}:
	default:
	}
}

// HandleDelta принимает нормализованную дельту от realtime-канала.
// Неблокирующая постановка в очередь: переполнение буфера считается
// и компенсируется последующим re-fetch, а не блокировкой канала.
func (c *Controller) HandleDelta(d models.OrderDelta) {
	select {
	case c.deltas <- d:
	case <-c.shutdown:
	default:
		RecordDiscardedDelta("overflow")
		c.log.Warn("delta buffer overflow, scheduling refresh",
			zap.String("order_id", d.OrderID))
		c.Refresh()
	}
}

// SetChannelDegraded сообщает контроллеру о деградации realtime-канала
// (исчерпаны попытки переподключения - полагаемся на периодический fetch)
func (c *Controller) SetChannelDegraded(degraded bool) {
	select {
	case c.channelState <- degraded:
	case <-c.shutdown:
	default:
	}
}

// ============================================================
// Сериализованный цикл reconciliation
// ============================================================

func (c *Controller) loop() {
	defer close(c.done)

	ticker := time.NewTicker(c.cfg.TickInterval)
	defer ticker.Stop()

	// Канал отложенного retry после неудачного fetch.
	// nil пока retry не запланирован (nil-канал в select не срабатывает).
	var retryC <-chan time.Time

	// Канал периодического опроса источника: активен только пока
	// realtime-канал деградирован, иначе nil
	var pollC <-chan time.Time

	// Начальная загрузка
	retryC = c.doRefresh()
	c.reconcile("refresh")

	for {
		select {
		case <-c.shutdown:
			return

		case d := <-c.deltas:
			c.applyDelta(d)
			c.reconcile("delta")

		case <-c.refreshCh:
			retryC = c.doRefresh()
			c.reconcile("refresh")

		case <-retryC:
			retryC = c.doRefresh()
			c.reconcile("refresh")

		case degraded := <-c.channelState:
			c.channelDegraded = degraded
			if degraded {
				pollC = time.After(c.cfg.DegradedPollInterval)
			} else {
				pollC = nil
			}
			c.reconcile("channel")

		case <-pollC:
			pollC = time.After(c.cfg.DegradedPollInterval)
			retryC = c.doRefresh()
			c.reconcile("poll")

		case <-ticker.C:
			c.reconcile("tick")
		}
	}
}

// applyDelta выполняет merge дельты в Order Store
func (c *Controller) applyDelta(d models.OrderDelta) {
	if d.Status != nil && !models.KnownOrderStatus(*d.Status) {
		// Аномалия, но не ошибка: значение сохраняется как есть
		// и классифицируется как unknown
		UnknownStatuses.Inc()
		c.log.Warn("delta carries unrecognized order status",
			zap.String("order_id", d.OrderID),
			zap.String("status", *d.Status))
	}

	switch c.store.Apply(d) {
	case ApplyUnknownOrder:
		// Дельта для незнакомого заказа означает, что локальный набор
		// неполон - восстанавливаемся полным re-fetch
		RecordDiscardedDelta("unknown_order")
		c.log.Info("delta for unknown order, scheduling refresh",
			zap.String("order_id", d.OrderID))
		c.Refresh()
	case ApplyStaleSeq:
		// Out-of-order доставка: не ошибка, просто игнорируется
		RecordDiscardedDelta("stale_seq")
	}
}

// doRefresh выполняет re-fetch с retry и возвращает канал отложенного
// повтора (nil при успехе). Неудачный fetch оставляет store нетронутым.
func (c *Controller) doRefresh() <-chan time.Time {
	orders, err := retry.DoWithResult(c.ctx, c.fetch, c.cfg.FetchRetry)
	if err != nil {
		FetchFailures.Inc()
		c.fetchDegraded = true

		// Экспоненциальный рост задержки между сериями попыток
		if c.retryDelay <= 0 {
			c.retryDelay = c.cfg.FetchRetry.InitialDelay
			if c.retryDelay <= 0 {
				c.retryDelay = time.Second
			}
		} else {
			c.retryDelay *= 2
			if max := c.cfg.FetchRetry.MaxDelay; max > 0 && c.retryDelay > max {
				c.retryDelay = max
			}
		}

		c.log.Warn("order re-fetch failed, keeping last known state",
			zap.Error(err),
			zap.Duration("next_retry", c.retryDelay))
		return time.After(c.retryDelay)
	}

	c.fetchDegraded = false
	c.retryDelay = 0

	for _, o := range orders {
		if !models.KnownOrderStatus(o.Status) {
			UnknownStatuses.Inc()
			c.log.Warn("fetched order has unrecognized status",
				zap.String("order_id", o.OrderID),
				zap.String("status", o.Status))
		}
	}

	c.store.ReplaceAll(orders)
	return nil
}

// fetch загружает заказы: список по клиенту либо один заказ (guest-режим)
func (c *Controller) fetch() ([]models.Order, error) {
	ctx := c.ctx

	if c.cfg.CustomerID != "" {
		return c.source.ListOrders(ctx, c.cfg.CustomerID)
	}

	order, err := c.source.GetOrder(ctx, c.cfg.OrderID)
	if err != nil {
		return nil, err
	}
	return []models.Order{order}, nil
}

// reconcile - один проход: classify -> project -> publish (с подавлением no-op)
func (c *Controller) reconcile(trigger string) {
	RecordReconcile(trigger)

	now := c.nowFn()
	orders := c.store.Snapshot()
	current := c.classifier.Classify(orders, now)

	c.observeStalePending(orders, now)

	state := PublishedState{Degraded: c.fetchDegraded || c.channelDegraded}
	if current != nil {
		prog := c.projector.Project(*current, now)
		percent := c.store.ClampProgress(current.OrderID, current.Status, prog.Percent)

		state.HasOrder = true
		state.OrderID = current.OrderID
		state.Status = current.Status
		state.Phase = prog.Phase
		state.Percent = int(math.Round(percent))
	}

	UpdateDegraded(state.Degraded)
	c.publish(state, current)
}

// observeStalePending обновляет метрику подвисших pending-заказов.
// Открытый продуктовый вопрос: override без cutoff - порог здесь
// только для наблюдаемости, поведение не меняется.
func (c *Controller) observeStalePending(orders []models.Order, now time.Time) {
	stale := 0
	for _, o := range orders {
		if o.Status == models.OrderStatusCancelled || o.Status == models.OrderStatusCompleted {
			continue
		}
		if !models.StatusUnresolved(o.Status) && !models.PaymentUnresolved(o.PaymentStatus) {
			continue
		}
		if now.Sub(o.OrderTime) <= c.cfg.StalePendingAge {
			continue
		}
		stale++
		if !c.warnedStale[o.OrderID] {
			c.warnedStale[o.OrderID] = true
			c.log.Warn("pending order exceeds staleness threshold but remains current-eligible",
				zap.String("order_id", o.OrderID),
				zap.Time("order_time", o.OrderTime))
		}
	}
	StalePendingOrders.Set(float64(stale))
}

// publish публикует состояние только если оно отличается от последнего
func (c *Controller) publish(state PublishedState, current *models.Order) {
	c.mu.Lock()
	if c.hasLast && c.last == state {
		c.mu.Unlock()
		SuppressedUpdates.Inc()
		return
	}

	c.last = state
	c.hasLast = true
	if current != nil {
		o := cloneOrder(*current)
		c.current = &o
	} else {
		c.current = nil
	}
	cbs := make([]UpdateFunc, len(c.callbacks))
	copy(cbs, c.callbacks)
	c.mu.Unlock()

	PublishedUpdates.Inc()
	for _, cb := range cbs {
		cb(state)
	}
}
