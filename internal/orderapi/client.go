// Package orderapi - клиент внешнего Order Source (REST).
package orderapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	jsoniter "github.com/json-iterator/go"

	"cafetrack/internal/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Ошибки клиента
var (
	ErrOrderNotFound = errors.New("order not found")
)

// Config - настройки HTTP клиента Order Source
type Config struct {
	// BaseURL - origin API (единственная строка окружения, например
	// https://api.cafe.example)
	BaseURL string

	// Таймауты
	ConnectTimeout time.Duration // установка TCP соединения (default: 5s)
	TotalTimeout   time.Duration // общий таймаут запроса (default: 15s)

	// Connection pooling
	MaxIdleConns    int           // default: 10
	IdleConnTimeout time.Duration // default: 90s
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:         baseURL,
		ConnectTimeout:  5 * time.Second,
		TotalTimeout:    15 * time.Second,
		MaxIdleConns:    10,
		IdleConnTimeout: 90 * time.Second,
	}
}

// Client - REST клиент заказов.
//
// Оба метода - идемпотентные безопасные GET: используются как для
// начальной загрузки, так и для восстановительного re-fetch сколько
// угодно раз.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient создаёт клиент Order Source
func NewClient(cfg Config) *Client {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if cfg.TotalTimeout <= 0 {
		cfg.TotalTimeout = 15 * time.Second
	}
	if cfg.MaxIdleConns <= 0 {
		cfg.MaxIdleConns = 10
	}
	if cfg.IdleConnTimeout <= 0 {
		cfg.IdleConnTimeout = 90 * time.Second
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: cfg.ConnectTimeout,
		}).DialContext,
		MaxIdleConns:    cfg.MaxIdleConns,
		IdleConnTimeout: cfg.IdleConnTimeout,
	}

	return &Client{
		baseURL: cfg.BaseURL,
		http: &http.Client{
			Transport: transport,
			Timeout:   cfg.TotalTimeout,
		},
	}
}

// ListOrders возвращает все заказы клиента
//
// GET {base}/api/v1/customers/{customer_id}/orders
func (c *Client) ListOrders(ctx context.Context, customerID string) ([]models.Order, error) {
	endpoint := fmt.Sprintf("%s/api/v1/customers/%s/orders",
		c.baseURL, url.PathEscape(customerID))

	var orders []models.Order
	if err := c.getJSON(ctx, endpoint, &orders); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// GetOrder возвращает один заказ по идентификатору
// (guest-отслеживание без аутентификации)
//
// GET {base}/api/v1/orders/{order_id}
func (c *Client) GetOrder(ctx context.Context, orderID string) (models.Order, error) {
	endpoint := fmt.Sprintf("%s/api/v1/orders/%s",
		c.baseURL, url.PathEscape(orderID))

	var order models.Order
	if err := c.getJSON(ctx, endpoint, &order); err != nil {
		return models.Order{}, fmt.Errorf("get order %s: %w", orderID, err)
	}
	return order, nil
}

// getJSON выполняет GET и декодирует JSON ответ
func (c *Client) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		// Дочитываем тело чтобы соединение вернулось в пул
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrOrderNotFound
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
