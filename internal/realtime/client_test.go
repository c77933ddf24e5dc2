package realtime

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"cafetrack/internal/models"
)

// channelServer - тестовый websocket-сервер: принимает join,
// отдаёт соединения тесту для отправки событий
type channelServer struct {
	t        *testing.T
	server   *httptest.Server
	upgrader websocket.Upgrader

	mu    sync.Mutex
	joins []joinMessage
	conns chan *websocket.Conn

	// Закрывать ли соединение сразу после join
	dropAfterJoin bool
}

func newChannelServer(t *testing.T) *channelServer {
	t.Helper()

	s := &channelServer{
		t:     t,
		conns: make(chan *websocket.Conn, 8),
	}
	s.server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.server.Close)
	return s
}

func (s *channelServer) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	var join joinMessage
	if err := conn.ReadJSON(&join); err != nil {
		conn.Close()
		return
	}

	s.mu.Lock()
	s.joins = append(s.joins, join)
	drop := s.dropAfterJoin
	s.mu.Unlock()

	if drop {
		conn.Close()
		return
	}

	s.conns <- conn
}

func (s *channelServer) wsURL() string {
	return strings.Replace(s.server.URL, "http", "ws", 1)
}

func (s *channelServer) joinCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.joins)
}

func (s *channelServer) lastJoin() joinMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.joins) == 0 {
		return joinMessage{}
	}
	return s.joins[len(s.joins)-1]
}

func (s *channelServer) waitConn() *websocket.Conn {
	s.t.Helper()
	select {
	case conn := <-s.conns:
		return conn
	case <-time.After(2 * time.Second):
		s.t.Fatal("timed out waiting for server-side connection")
		return nil
	}
}

func testClient(t *testing.T, url string, room Room) (*Client, chan models.OrderDelta) {
	t.Helper()

	client := NewClient(url, room, Config{
		InitialDelay:   10 * time.Millisecond,
		MaxDelay:       50 * time.Millisecond,
		MaxRetries:     3,
		ConnectTimeout: 2 * time.Second,
		PingInterval:   time.Hour, // пинги не участвуют в тестах
		PongTimeout:    time.Second,
	}, zap.NewNop())

	deltas := make(chan models.OrderDelta, 16)
	client.SetOnDelta(func(d models.OrderDelta) {
		deltas <- d
	})

	t.Cleanup(func() { client.Close() })
	return client, deltas
}

// ============================================================
// Тесты подключения и подписки
// ============================================================

func TestClient_ConnectSendsJoin(t *testing.T) {
	srv := newChannelServer(t)
	client, _ := testClient(t, srv.wsURL(), Room{CustomerID: "cust-1"})

	if err := client.Connect(); err != nil {
		t.Fatalf("Connect error: %v", err)
	}
	srv.waitConn()

	if got := srv.joinCount(); got != 1 {
		t.Errorf("join count = %d, want exactly 1", got)
	}
	join := srv.lastJoin()
	if join.Type != "join" || join.CustomerID != "cust-1" {
		t.Errorf("join = %+v, want {join cust-1}", join)
	}

	if !client.IsConnected() {
		t.Errorf("state = %s, want connected", client.GetState())
	}
}

func TestClient_GuestRoomJoin(t *testing.T) {
	srv := newChannelServer(t)
	client, _ := testClient(t, srv.wsURL(), Room{OrderID: "o-guest"})

	if err := client.Connect(); err != nil {
		t.Fatalf("Connect error: %v", err)
	}
	srv.waitConn()

	join := srv.lastJoin()
	if join.OrderID != "o-guest" || join.CustomerID != "" {
		t.Errorf("guest join = %+v, want order_id only", join)
	}
}

func TestClient_DeliversNormalizedDeltas(t *testing.T) {
	srv := newChannelServer(t)
	client, deltas := testClient(t, srv.wsURL(), Room{CustomerID: "cust-1"})

	if err := client.Connect(); err != nil {
		t.Fatalf("Connect error: %v", err)
	}
	conn := srv.waitConn()

	msg := `{"type":"order-updated","order_id":"o1","status":"ready","seq":3}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		t.Fatalf("server write error: %v", err)
	}

	select {
	case d := <-deltas:
		if d.OrderID != "o1" || d.Status == nil || *d.Status != models.OrderStatusReady {
			t.Errorf("delta = %+v, want o1/ready", d)
		}
		if d.Seq == nil || *d.Seq != 3 {
			t.Errorf("Seq = %v, want 3", d.Seq)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delta")
	}
}

func TestClient_MalformedEventDropped(t *testing.T) {
	srv := newChannelServer(t)
	client, deltas := testClient(t, srv.wsURL(), Room{CustomerID: "cust-1"})

	if err := client.Connect(); err != nil {
		t.Fatalf("Connect error: %v", err)
	}
	conn := srv.waitConn()

	// Искажённый payload дропается, затем валидный доставляется:
	// плохое событие не роняет соединение
	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"order-updated",`))
	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"order-updated","order_id":"o2","status":"ready"}`))

	select {
	case d := <-deltas:
		if d.OrderID != "o2" {
			t.Errorf("delta = %+v, want o2 (malformed one dropped)", d)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delta after malformed event")
	}
}

// ============================================================
// Тесты переподключения
// ============================================================

func TestClient_ReconnectRejoinsRoom(t *testing.T) {
	srv := newChannelServer(t)
	client, deltas := testClient(t, srv.wsURL(), Room{CustomerID: "cust-1"})

	if err := client.Connect(); err != nil {
		t.Fatalf("Connect error: %v", err)
	}
	conn := srv.waitConn()

	// Сервер рвёт соединение - клиент должен переподключиться
	// и заново выполнить room join
	conn.Close()

	conn2 := srv.waitConn()
	if got := srv.joinCount(); got != 2 {
		t.Errorf("join count after reconnect = %d, want 2", got)
	}

	// Новое соединение живое: события снова доставляются
	msg := `{"type":"payment-updated","order_id":"o1","payment_status":"paid"}`
	if err := conn2.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		t.Fatalf("server write error: %v", err)
	}

	select {
	case d := <-deltas:
		if d.PaymentStatus == nil || *d.PaymentStatus != models.PaymentStatusPaid {
			t.Errorf("delta after reconnect = %+v, want payment paid", d)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delta after reconnect")
	}
}

func TestClient_SimultaneousFailuresSingleReconnect(t *testing.T) {
	srv := newChannelServer(t)
	client, _ := testClient(t, srv.wsURL(), Room{CustomerID: "cust-1"})

	if err := client.Connect(); err != nil {
		t.Fatalf("Connect error: %v", err)
	}
	srv.waitConn()

	// Отказ обеих памп одной эпохи приходит одновременно:
	// переход в reconnecting должен достаться ровно одному вызову
	epoch := client.currentEpoch()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client.handleDisconnect(epoch, errors.New("connection reset"))
		}()
	}
	wg.Wait()

	// Единственное переподключение с повторным join
	srv.waitConn()

	// Лишним reconnectLoop (если бы они запустились) хватило бы этого
	// времени на повторный dial
	time.Sleep(150 * time.Millisecond)

	if got := srv.joinCount(); got != 2 {
		t.Errorf("join count = %d, want 2 (exactly one rejoin per drop)", got)
	}
	if !client.IsConnected() {
		t.Errorf("state = %s, want connected", client.GetState())
	}
}

func TestClient_DegradedAfterRetriesExhausted(t *testing.T) {
	srv := newChannelServer(t)
	client, _ := testClient(t, srv.wsURL(), Room{CustomerID: "cust-1"})

	degraded := make(chan struct{})
	client.SetOnDegraded(func() { close(degraded) })

	if err := client.Connect(); err != nil {
		t.Fatalf("Connect error: %v", err)
	}
	conn := srv.waitConn()

	// Сервер умирает совсем: все попытки переподключения упрутся в отказ
	srv.server.Close()
	conn.Close()

	select {
	case <-degraded:
	case <-time.After(5 * time.Second):
		t.Fatal("degraded callback never fired")
	}

	if got := client.GetState(); got != StateDisconnected {
		t.Errorf("state after degradation = %s, want disconnected", got)
	}
}

// ============================================================
// Тесты закрытия
// ============================================================

func TestClient_CloseStopsDelivery(t *testing.T) {
	srv := newChannelServer(t)
	client, deltas := testClient(t, srv.wsURL(), Room{CustomerID: "cust-1"})

	if err := client.Connect(); err != nil {
		t.Fatalf("Connect error: %v", err)
	}
	conn := srv.waitConn()

	if err := client.Close(); err != nil {
		t.Errorf("Close error: %v", err)
	}

	// Запись после Close либо падает, либо событие молча отбрасывается
	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"order-updated","order_id":"o1","status":"ready"}`))

	select {
	case d := <-deltas:
		t.Fatalf("delta delivered after Close: %+v", d)
	case <-time.After(200 * time.Millisecond):
	}

	if got := client.GetState(); got != StateClosed {
		t.Errorf("state = %s, want closed", got)
	}
}

func TestClient_ConnectAfterCloseFails(t *testing.T) {
	srv := newChannelServer(t)
	client, _ := testClient(t, srv.wsURL(), Room{CustomerID: "cust-1"})

	client.Close()

	if err := client.Connect(); err == nil {
		t.Error("Connect after Close: want error")
	}
}

func TestClient_CloseIdempotent(t *testing.T) {
	srv := newChannelServer(t)
	client, _ := testClient(t, srv.wsURL(), Room{CustomerID: "cust-1"})

	if err := client.Connect(); err != nil {
		t.Fatalf("Connect error: %v", err)
	}
	srv.waitConn()

	if err := client.Close(); err != nil {
		t.Errorf("first Close error: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("second Close error: %v", err)
	}
}
