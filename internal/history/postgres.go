package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"latency-chart-service/internal/models"
)

const schemaSQL = `
	CREATE TABLE IF NOT EXISTS probe_history (
		id         BIGSERIAL PRIMARY KEY,
		url_id     INTEGER NOT NULL,
		latency_ms DOUBLE PRECISION NOT NULL,
		timestamp  TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS probe_history_url_ts_idx ON probe_history (url_id, timestamp);
	CREATE INDEX IF NOT EXISTS probe_history_ts_id_idx ON probe_history (timestamp, id);
`

// PostgresStore хранит историю в таблице probe_history
type PostgresStore struct {
	pool *pgxpool.Pool
	opts Options
}

// Проверка реализации интерфейса при компиляции
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore подключается к Postgres и создает схему, если ее нет
func NewPostgresStore(ctx context.Context, dsn string, opts Options) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &PostgresStore{pool: pool, opts: opts.withDefaults()}, nil
}

// Add сохраняет одно измерение
func (p *PostgresStore) Add(ctx context.Context, s models.RawSample) error {
	return p.AddBatch(ctx, []models.RawSample{s})
}

// AddBatch сохраняет пакет в одной транзакции и удаляет записи сверх
// срока хранения и предела числа строк
func (p *PostgresStore) AddBatch(ctx context.Context, samples []models.RawSample) error {
	if len(samples) == 0 {
		return nil
	}
	for _, s := range samples {
		if err := Validate(s); err != nil {
			return err
		}
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, s := range samples {
		batch.Queue(
			`INSERT INTO probe_history (url_id, latency_ms, timestamp) VALUES ($1, $2, $3)`,
			s.URLID, s.LatencyMs, s.Timestamp,
		)
	}
	batch.Queue(`DELETE FROM probe_history WHERE timestamp < $1`,
		p.opts.Now().Add(-p.opts.Retention))
	// граница - первая лишняя строка по индексу (timestamp, id); пока строк
	// не больше предела, подзапрос пуст и удалять нечего
	batch.Queue(`
		DELETE FROM probe_history WHERE (timestamp, id) <= (
			SELECT timestamp, id FROM probe_history
			ORDER BY timestamp DESC, id DESC
			OFFSET $1 LIMIT 1
		)`, p.opts.MaxSamples)

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert samples: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Range возвращает измерения цели начиная с since
func (p *PostgresStore) Range(ctx context.Context, target int, since time.Time) ([]models.RawSample, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT url_id, latency_ms, timestamp
		FROM probe_history
		WHERE url_id = $1 AND timestamp >= $2
		ORDER BY timestamp ASC, id ASC`, target, since)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	out := make([]models.RawSample, 0)
	for rows.Next() {
		var s models.RawSample
		if err := rows.Scan(&s.URLID, &s.LatencyMs, &s.Timestamp); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return out, nil
}

// Fetch возвращает измерения цели за диапазон
func (p *PostgresStore) Fetch(ctx context.Context, target int, rangeID string) ([]models.RawSample, error) {
	return p.Range(ctx, target, since(rangeID, p.opts.Now()))
}

// Delete удаляет историю цели
func (p *PostgresStore) Delete(ctx context.Context, target int) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM probe_history WHERE url_id = $1`, target); err != nil {
		return fmt.Errorf("delete history: %w", err)
	}
	return nil
}

// Ping проверяет соединение с Postgres
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close закрывает пул соединений
func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}
