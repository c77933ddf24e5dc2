package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"cafetrack/internal/api/handlers"
	"cafetrack/internal/api/middleware"
	"cafetrack/pkg/ratelimit"
)

// Dependencies содержит все зависимости для API handlers
type Dependencies struct {
	Tracker    handlers.Tracker
	Acks       handlers.AckStore // nil = отметки отключены
	CustomerID string
	Logger     *zap.Logger
}

// SetupRoutes настраивает все HTTP маршруты приложения
//
// Структура маршрутов:
//
// /api/v1/
//
//	├── /orders/
//	│   ├── GET /current - текущий заказ (null = явное пустое состояние)
//	│   ├── GET /current/progress - проекция прогресса текущего заказа
//	│   ├── GET / - история заказов с прогрессом
//	│   ├── GET /{id}/progress - guest-отслеживание по ID
//	│   └── POST /refresh - явный re-fetch
//	└── /acks/
//	    ├── POST /{notification_id} - идемпотентная отметка прочитанного
//	    └── DELETE / - сброс при смене идентичности
//
// /healthz - liveness
// /metrics - Prometheus
//
// Middleware применяется в порядке: Recovery -> Logging -> CORS.
// Auth отсутствует: аутентификация - внешний коллаборатор,
// трекер получает уже определённую идентичность клиента.
func SetupRoutes(deps *Dependencies) *mux.Router {
	router := mux.NewRouter()

	router.Use(middleware.Recovery(deps.Logger))
	router.Use(middleware.Logging(deps.Logger))
	router.Use(middleware.CORS)

	trackingHandler := handlers.NewTrackingHandler(deps.Tracker, deps.Logger)
	acksHandler := handlers.NewAcksHandler(deps.Acks, deps.CustomerID, deps.Logger)

	v1 := router.PathPrefix("/api/v1").Subrouter()

	orders := v1.PathPrefix("/orders").Subrouter()
	orders.HandleFunc("/current", trackingHandler.GetCurrentOrder).Methods(http.MethodGet)
	orders.HandleFunc("/current/progress", trackingHandler.GetCurrentProgress).Methods(http.MethodGet)
	// Явный re-fetch транслируется в запрос к Order Source:
	// ограничиваем частоту, burst на случай двойного тапа в UI
	refreshLimiter := ratelimit.NewRateLimiter(1, 3)
	orders.HandleFunc("/refresh", throttled(refreshLimiter, trackingHandler.Refresh)).Methods(http.MethodPost)
	orders.HandleFunc("/{id}/progress", trackingHandler.GetOrderProgress).Methods(http.MethodGet)
	orders.HandleFunc("", trackingHandler.ListOrders).Methods(http.MethodGet)

	acks := v1.PathPrefix("/acks").Subrouter()
	acks.HandleFunc("/{notification_id}", acksHandler.MarkRead).Methods(http.MethodPost)
	acks.HandleFunc("", acksHandler.Reset).Methods(http.MethodDelete)

	router.HandleFunc("/healthz", trackingHandler.Health).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return router
}

// throttled отклоняет запрос с 429 когда лимит частоты исчерпан
func throttled(limiter *ratelimit.RateLimiter, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, "too many refresh requests", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}
