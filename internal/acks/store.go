// Package acks - персистентный набор подтверждённых (прочитанных)
// уведомлений о заказах.
//
// Требование: идемпотентный "mark as read", безопасный при повторной
// доставке события; сброс набора при смене идентичности клиента;
// ленивая очистка старых записей.
package acks

import (
	"context"
	"database/sql"
	"time"
)

// Store - работа с таблицей order_acks
//
// Схема:
//
//	CREATE TABLE order_acks (
//	    customer_id     TEXT NOT NULL,
//	    notification_id TEXT NOT NULL,
//	    acked_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
//	    PRIMARY KEY (customer_id, notification_id)
//	);
type Store struct {
	db *sql.DB
}

// NewStore создает новый экземпляр Store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// MarkRead помечает уведомление прочитанным.
// Идемпотентна: повторная отметка того же уведомления - no-op,
// replay события безопасен.
func (s *Store) MarkRead(ctx context.Context, customerID, notificationID string) error {
	query := `
		INSERT INTO order_acks (customer_id, notification_id, acked_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (customer_id, notification_id) DO NOTHING`

	_, err := s.db.ExecContext(ctx, query, customerID, notificationID, time.Now().UTC())
	return err
}

// IsRead проверяет, подтверждено ли уведомление
func (s *Store) IsRead(ctx context.Context, customerID, notificationID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM order_acks
			WHERE customer_id = $1 AND notification_id = $2
		)`

	var read bool
	if err := s.db.QueryRowContext(ctx, query, customerID, notificationID).Scan(&read); err != nil {
		return false, err
	}
	return read, nil
}

// ResetCustomer удаляет все отметки клиента.
// Вызывается при смене идентичности (logout / смена аккаунта).
func (s *Store) ResetCustomer(ctx context.Context, customerID string) error {
	query := `DELETE FROM order_acks WHERE customer_id = $1`

	_, err := s.db.ExecContext(ctx, query, customerID)
	return err
}

// EvictOlderThan удаляет отметки старше cutoff (ленивая очистка).
// Возвращает количество удалённых записей.
func (s *Store) EvictOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM order_acks WHERE acked_at < $1`

	res, err := s.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
