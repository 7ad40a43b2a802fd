package storage

import (
	"context"
	"fmt"
	"time"
)

// Lease - аренда синхронизации очереди пользователя. Пока она у одного процесса
// (демон или команда CLI), другой не начинает свою синхронизацию.
type Lease struct {
	db        *SQLiteStorage
	namespace string
	holder    string
	ttl       time.Duration
	now       func() time.Time
}

// Lease возвращает аренду namespace для holder. Истекшую аренду может забрать любой.
func (s *SQLiteStorage) Lease(namespace, holder string, ttl time.Duration) *Lease {
	return &Lease{db: s, namespace: namespace, holder: holder, ttl: ttl, now: time.Now}
}

// Acquire берет или продлевает аренду. false - аренда у другого живого владельца.
func (l *Lease) Acquire(ctx context.Context) (bool, error) {
	now := l.now()
	res, err := l.db.db.ExecContext(ctx, `
		INSERT INTO sync_leases (namespace, holder, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT (namespace) DO UPDATE SET holder = excluded.holder, expires_at = excluded.expires_at
		WHERE sync_leases.holder = excluded.holder OR sync_leases.expires_at < ?
	`, l.namespace, l.holder, now.Add(l.ttl).UnixNano(), now.UnixNano())
	if err != nil {
		return false, fmt.Errorf("ошибка получения аренды синхронизации: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("ошибка получения аренды синхронизации: %w", err)
	}
	return n == 1, nil
}

// Release отдает аренду, если она еще принадлежит holder.
func (l *Lease) Release(ctx context.Context) error {
	_, err := l.db.db.ExecContext(ctx,
		"DELETE FROM sync_leases WHERE namespace = ? AND holder = ?",
		l.namespace, l.holder,
	)
	if err != nil {
		return fmt.Errorf("ошибка освобождения аренды синхронизации: %w", err)
	}
	return nil
}
