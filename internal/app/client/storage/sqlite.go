package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"plantkeeper/internal/app/client/queue"
)

// SQLiteStorage хранит снимки кэша и очередь мутаций в одной локальной базе.
type SQLiteStorage struct {
	db *sql.DB
}

func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия базы данных: %w", err)
	}
	// одно соединение на процесс, между процессами ждем по busy_timeout
	db.SetMaxOpenConns(1)

	storage := &SQLiteStorage{db: db}

	if err := storage.initTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ошибка инициализации таблиц: %w", err)
	}

	return storage, nil
}

func (s *SQLiteStorage) initTables() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS cache_snapshots (
			namespace TEXT NOT NULL,
			key TEXT NOT NULL,
			data BLOB NOT NULL,
			saved_at TEXT NOT NULL,
			PRIMARY KEY (namespace, key)
		);

		CREATE TABLE IF NOT EXISTS sync_queue (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			namespace TEXT NOT NULL,
			entity_type TEXT NOT NULL,
			action TEXT NOT NULL,
			entity_id TEXT NOT NULL,
			temp_id TEXT NOT NULL DEFAULT '',
			payload BLOB,
			created_at TEXT NOT NULL,
			attempts INTEGER NOT NULL DEFAULT 0,
			last_error TEXT NOT NULL DEFAULT ''
		);

		CREATE INDEX IF NOT EXISTS idx_sync_queue_namespace ON sync_queue(namespace, seq);

		CREATE TABLE IF NOT EXISTS sync_leases (
			namespace TEXT PRIMARY KEY,
			holder TEXT NOT NULL,
			expires_at INTEGER NOT NULL
		);
	`)

	return err
}

func (s *SQLiteStorage) SaveSnapshot(ctx context.Context, namespace, key string, data []byte, savedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cache_snapshots (namespace, key, data, saved_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (namespace, key) DO UPDATE SET data = excluded.data, saved_at = excluded.saved_at
	`, namespace, key, data, savedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("ошибка сохранения снимка %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStorage) LoadSnapshot(ctx context.Context, namespace, key string) ([]byte, time.Time, bool, error) {
	var (
		data    []byte
		savedAt string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT data, saved_at FROM cache_snapshots WHERE namespace = ? AND key = ?",
		namespace, key,
	).Scan(&data, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, false, nil
	}
	if err != nil {
		return nil, time.Time{}, false, fmt.Errorf("ошибка чтения снимка %s: %w", key, err)
	}

	ts, err := time.Parse(time.RFC3339Nano, savedAt)
	if err != nil {
		// битая метка времени не делает данные непригодными
		ts = time.Time{}
	}
	return data, ts, true, nil
}

func (s *SQLiteStorage) DeleteSnapshots(ctx context.Context, namespace string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM cache_snapshots WHERE namespace = ?", namespace); err != nil {
		return fmt.Errorf("ошибка удаления снимков: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) LoadQueue(ctx context.Context, namespace string) ([]queue.Mutation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, entity_type, action, entity_id, temp_id, payload, created_at, attempts, last_error
		FROM sync_queue
		WHERE namespace = ?
		ORDER BY seq
	`, namespace)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения очереди: %w", err)
	}
	defer rows.Close()

	var out []queue.Mutation
	for rows.Next() {
		var (
			m         queue.Mutation
			createdAt string
			payload   []byte
		)
		if err := rows.Scan(&m.ID, &m.EntityType, &m.Action, &m.EntityID, &m.TempID,
			&payload, &createdAt, &m.Attempts, &m.LastError); err != nil {
			return nil, fmt.Errorf("ошибка сканирования мутации: %w", err)
		}
		if len(payload) > 0 {
			m.Payload = payload
		}
		m.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, m)
	}

	return out, rows.Err()
}

func (s *SQLiteStorage) AppendMutation(ctx context.Context, namespace string, m queue.Mutation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_queue (id, namespace, entity_type, action, entity_id, temp_id,
		                        payload, created_at, attempts, last_error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, namespace, string(m.EntityType), string(m.Action), m.EntityID, m.TempID,
		[]byte(m.Payload), m.CreatedAt.UTC().Format(time.RFC3339Nano), m.Attempts, m.LastError)
	if err != nil {
		return fmt.Errorf("ошибка добавления мутации: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) UpdateMutation(ctx context.Context, namespace string, m queue.Mutation) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sync_queue
		SET entity_type = ?, action = ?, entity_id = ?, temp_id = ?, payload = ?,
		    attempts = ?, last_error = ?
		WHERE namespace = ? AND id = ?
	`, string(m.EntityType), string(m.Action), m.EntityID, m.TempID, []byte(m.Payload),
		m.Attempts, m.LastError, namespace, m.ID)
	if err != nil {
		return fmt.Errorf("ошибка обновления мутации: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) DeleteMutation(ctx context.Context, namespace, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM sync_queue WHERE namespace = ? AND id = ?", namespace, id); err != nil {
		return fmt.Errorf("ошибка удаления мутации: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) ClearQueue(ctx context.Context, namespace string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM sync_queue WHERE namespace = ?", namespace); err != nil {
		return fmt.Errorf("ошибка очистки очереди: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
