package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"cafetrack/internal/models"
)

// Config - конфигурация переподключения realtime-канала
type Config struct {
	// Начальная задержка перед переподключением
	InitialDelay time.Duration
	// Максимальная задержка (после exponential backoff)
	MaxDelay time.Duration
	// Максимальное количество попыток (0 = бесконечно)
	MaxRetries int
	// Таймаут подключения
	ConnectTimeout time.Duration
	// Интервал ping для проверки соединения
	PingInterval time.Duration
	// Таймаут ожидания pong
	PongTimeout time.Duration
}

// DefaultConfig возвращает конфигурацию по умолчанию: 2s, 4s, 8s, 16s
func DefaultConfig() Config {
	return Config{
		InitialDelay:   2 * time.Second,
		MaxDelay:       16 * time.Second,
		MaxRetries:     10,
		ConnectTimeout: 10 * time.Second,
		PingInterval:   30 * time.Second,
		PongTimeout:    10 * time.Second,
	}
}

// State - состояние соединения канала
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Room - область подписки: заказы клиента либо один заказ (guest)
type Room struct {
	CustomerID string
	OrderID    string
}

// Client поддерживает best-effort подписку на server-push события
// заказов с автоматическим переподключением.
//
// Жизненный цикл:
// disconnected -> connecting -> connected (+ room join) -> ... ->
// reconnecting -> connecting ... ; после исчерпания попыток ->
// disconnected (degraded), контроллер переходит на периодический fetch.
//
// Гарантии:
// - join-сообщение переотправляется при каждом успешном (пере)подключении:
//   reconnect транспорта без повторной подписки - тихий режим отказа
// - после Close() события не доставляются; поздние события от
//   вытесненного соединения отбрасываются по счётчику эпохи
// - искажённые payload'ы дропаются с логом, не пробрасываются наверх
type Client struct {
	wsURL string
	room  Room
	cfg   Config
	log   *zap.Logger

	// Текущее соединение
	conn   *websocket.Conn
	connMu sync.RWMutex

	// Состояние
	state int32 // atomic State

	// Счётчик попыток переподключения
	retryCount int32 // atomic

	// Эпоха соединения: инкрементируется на каждом dial.
	// Пампы захватывают эпоху при старте; события с чужой эпохой
	// (от вытесненного соединения) отбрасываются.
	epoch int64 // atomic

	closeChan chan struct{}

	// Callbacks
	onDelta      func(models.OrderDelta)
	onConnect    func()
	onDisconnect func(error)
	onDegraded   func()
	callbackMu   sync.RWMutex
}

// NewClient создаёт клиент realtime-канала
func NewClient(wsURL string, room Room, cfg Config, log *zap.Logger) *Client {
	return &Client{
		wsURL:     wsURL,
		room:      room,
		cfg:       cfg,
		log:       log,
		closeChan: make(chan struct{}),
	}
}

// SetOnDelta устанавливает callback для нормализованных дельт
func (c *Client) SetOnDelta(handler func(models.OrderDelta)) {
	c.callbackMu.Lock()
	c.onDelta = handler
	c.callbackMu.Unlock()
}

// SetOnConnect устанавливает callback для события подключения
func (c *Client) SetOnConnect(handler func()) {
	c.callbackMu.Lock()
	c.onConnect = handler
	c.callbackMu.Unlock()
}

// SetOnDisconnect устанавливает callback для события отключения
func (c *Client) SetOnDisconnect(handler func(error)) {
	c.callbackMu.Lock()
	c.onDisconnect = handler
	c.callbackMu.Unlock()
}

// SetOnDegraded устанавливает callback исчерпания попыток переподключения
func (c *Client) SetOnDegraded(handler func()) {
	c.callbackMu.Lock()
	c.onDegraded = handler
	c.callbackMu.Unlock()
}

// GetState возвращает текущее состояние соединения
func (c *Client) GetState() State {
	return State(atomic.LoadInt32(&c.state))
}

// IsConnected проверяет, установлено ли соединение
func (c *Client) IsConnected() bool {
	return c.GetState() == StateConnected
}

// GetRetryCount возвращает текущее количество попыток переподключения
func (c *Client) GetRetryCount() int {
	return int(atomic.LoadInt32(&c.retryCount))
}

// Connect устанавливает соединение и подписывается на комнату
func (c *Client) Connect() error {
	select {
	case <-c.closeChan:
		return fmt.Errorf("client is closed")
	default:
	}

	c.setState(StateConnecting)

	epoch, err := c.dial()
	if err != nil {
		c.setState(StateDisconnected)
		return err
	}

	c.setState(StateConnected)
	atomic.StoreInt32(&c.retryCount, 0)

	c.fireOnConnect()

	go c.readPump(epoch)
	go c.pingPump(epoch)

	c.log.Info("realtime channel connected", zap.String("url", c.wsURL))
	return nil
}

// dial выполняет подключение, отправляет join и возвращает новую эпоху
func (c *Client) dial() (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ConnectTimeout)
	defer cancel()

	dialer := websocket.Dialer{
		HandshakeTimeout: c.cfg.ConnectTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, c.wsURL, nil)
	if err != nil {
		return 0, fmt.Errorf("dial error: %w", err)
	}

	// Подписка на комнату - НЕ то же самое, что соединение.
	// Без join сервер молча не присылает события.
	join := joinMessage{
		Type:       "join",
		CustomerID: c.room.CustomerID,
		OrderID:    c.room.OrderID,
	}
	if err := conn.WriteJSON(join); err != nil {
		conn.Close()
		return 0, fmt.Errorf("room join error: %w", err)
	}
	RoomJoinsTotal.Inc()

	epoch := atomic.AddInt64(&c.epoch, 1)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
	}
	c.conn = conn
	c.connMu.Unlock()

	return epoch, nil
}

// currentEpoch возвращает эпоху действующего соединения
func (c *Client) currentEpoch() int64 {
	return atomic.LoadInt64(&c.epoch)
}

// readPump читает и нормализует события для захваченной эпохи
func (c *Client) readPump(epoch int64) {
	defer c.handleDisconnect(epoch, nil)

	for {
		select {
		case <-c.closeChan:
			return
		default:
		}

		c.connMu.RLock()
		conn := c.conn
		c.connMu.RUnlock()

		if conn == nil || c.currentEpoch() != epoch {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			c.handleDisconnect(epoch, err)
			return
		}

		c.deliver(epoch, message)
	}
}

// deliver нормализует payload и передаёт дельту контроллеру.
// События закрытого клиента или чужой эпохи отбрасываются.
func (c *Client) deliver(epoch int64, message []byte) {
	select {
	case <-c.closeChan:
		return
	default:
	}

	if c.currentEpoch() != epoch {
		EventsDropped.WithLabelValues("stale_epoch").Inc()
		return
	}

	delta, err := normalizeEvent(message)
	if err != nil {
		reason := "malformed"
		if errors.Is(err, ErrUnknownEventType) {
			reason = "unknown_type"
		}
		EventsDropped.WithLabelValues(reason).Inc()
		c.log.Warn("dropping channel event", zap.Error(err))
		return
	}

	c.callbackMu.RLock()
	onDelta := c.onDelta
	c.callbackMu.RUnlock()

	if onDelta != nil {
		EventsDelivered.Inc()
		onDelta(delta)
	}
}

// pingPump отправляет ping для проверки живости соединения
func (c *Client) pingPump(epoch int64) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.closeChan:
			return
		case <-ticker.C:
			c.connMu.RLock()
			conn := c.conn
			c.connMu.RUnlock()

			if conn == nil || c.currentEpoch() != epoch {
				return
			}

			if c.GetState() != StateConnected {
				return
			}

			conn.SetWriteDeadline(time.Now().Add(c.cfg.PongTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.log.Warn("channel ping failed", zap.Error(err))
				c.handleDisconnect(epoch, err)
				return
			}
		}
	}
}

// handleDisconnect обрабатывает разрыв соединения указанной эпохи
func (c *Client) handleDisconnect(epoch int64, err error) {
	select {
	case <-c.closeChan:
		return
	default:
	}

	// Разрыв уже вытесненного соединения не трогает новое
	if c.currentEpoch() != epoch {
		return
	}

	// Переход в reconnecting захватывается атомарно: read- и ping-памп
	// одной эпохи могут упасть одновременно, reconnectLoop должен
	// стартовать ровно один раз
	for {
		state := State(atomic.LoadInt32(&c.state))
		if state == StateReconnecting || state == StateClosed {
			return
		}
		if atomic.CompareAndSwapInt32(&c.state, int32(state), int32(StateReconnecting)) {
			ConnectionState.Set(float64(StateReconnecting))
			break
		}
	}

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	c.callbackMu.RLock()
	onDisconnect := c.onDisconnect
	c.callbackMu.RUnlock()

	if onDisconnect != nil {
		onDisconnect(err)
	}

	if err != nil {
		c.log.Warn("realtime channel disconnected", zap.Error(err))
	}

	go c.reconnectLoop()
}

// reconnectLoop переподключается с exponential backoff и ограничением
// попыток. Каждое успешное переподключение заново выполняет room join
// (внутри dial).
func (c *Client) reconnectLoop() {
	delay := c.cfg.InitialDelay

	for {
		select {
		case <-c.closeChan:
			return
		default:
		}

		retryCount := atomic.AddInt32(&c.retryCount, 1)

		if c.cfg.MaxRetries > 0 && int(retryCount) > c.cfg.MaxRetries {
			// Деградация: канал молчит, система переходит на
			// периодический re-fetch вместо тихого устаревания
			c.log.Warn("max reconnect attempts reached, channel degraded",
				zap.Int("attempts", c.cfg.MaxRetries))
			c.setState(StateDisconnected)

			c.callbackMu.RLock()
			onDegraded := c.onDegraded
			c.callbackMu.RUnlock()
			if onDegraded != nil {
				onDegraded()
			}
			return
		}

		c.log.Info("reconnecting to realtime channel",
			zap.Duration("delay", delay),
			zap.Int32("attempt", retryCount),
			zap.Int("max_attempts", c.cfg.MaxRetries))

		select {
		case <-c.closeChan:
			return
		case <-time.After(delay):
		}

		epoch, err := c.dial()
		if err != nil {
			c.log.Warn("reconnect failed", zap.Error(err))

			delay = delay * 2
			if delay > c.cfg.MaxDelay {
				delay = c.cfg.MaxDelay
			}
			continue
		}

		c.setState(StateConnected)
		atomic.StoreInt32(&c.retryCount, 0)
		ReconnectsTotal.Inc()

		c.fireOnConnect()

		c.log.Info("realtime channel reconnected")

		go c.readPump(epoch)
		go c.pingPump(epoch)

		return
	}
}

// Close детерминированно освобождает транспорт.
// После возврата события не доставляются (guard по closeChan + эпохе).
func (c *Client) Close() error {
	select {
	case <-c.closeChan:
		return nil
	default:
		close(c.closeChan)
	}

	c.setState(StateClosed)

	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}

	return nil
}

func (c *Client) setState(s State) {
	atomic.StoreInt32(&c.state, int32(s))
	ConnectionState.Set(float64(s))
}

func (c *Client) fireOnConnect() {
	c.callbackMu.RLock()
	onConnect := c.onConnect
	c.callbackMu.RUnlock()

	if onConnect != nil {
		onConnect()
	}
}
