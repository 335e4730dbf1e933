package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"insta-timetable-bot/internal/domain"
	"insta-timetable-bot/internal/infra/metrics"
)

// PostgresLedger — опциональный бэкенд журнала для случаев, когда файлового
// снапшота недостаточно (несколько писателей). Включается переменной
// LEDGER_PG_DSN; семантика та же: последняя запись побеждает.
type PostgresLedger struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

var _ domain.Ledger = (*PostgresLedger)(nil)

// NewPostgres подключается к базе и создаёт таблицу журнала при отсутствии.
func NewPostgres(ctx context.Context, dsn string, logger zerolog.Logger) (*PostgresLedger, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 2
	connCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(connCtx, cfg)
	if err != nil {
		return nil, err
	}

	initCtx, initCancel := context.WithTimeout(ctx, 5*time.Second)
	defer initCancel()
	_, err = pool.Exec(initCtx, `
CREATE TABLE IF NOT EXISTS post_ledger (
    ymd         text PRIMARY KEY,
    post_id     text NOT NULL,
    fingerprint text NOT NULL,
    updated_at  timestamptz NOT NULL DEFAULT now()
)`)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresLedger{pool: pool, log: logger}, nil
}

// Get возвращает запись за дату. Ошибка чтения трактуется как отсутствие
// записи (fail-open), как и для файлового бэкенда.
func (l *PostgresLedger) Get(ctx context.Context, ymd string) (domain.LedgerRecord, bool) {
	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var rec domain.LedgerRecord
	start := time.Now()
	err := l.pool.QueryRow(queryCtx,
		`SELECT post_id, fingerprint FROM post_ledger WHERE ymd = $1`, ymd).
		Scan(&rec.PostID, &rec.Fingerprint)
	metrics.ObserveNetworkRequest("postgres", "ledger_get", start, err)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			metrics.LedgerReadFailures.Inc()
			l.log.Warn().Err(err).Str("ymd", ymd).Msg("ledger: чтение из Postgres не удалось, считаем запись отсутствующей")
		}
		return domain.LedgerRecord{}, false
	}
	return rec, true
}

// Upsert перезаписывает запись за дату: последняя запись побеждает.
func (l *PostgresLedger) Upsert(ctx context.Context, ymd string, rec domain.LedgerRecord) error {
	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	start := time.Now()
	_, err := l.pool.Exec(queryCtx, `
INSERT INTO post_ledger (ymd, post_id, fingerprint)
VALUES ($1, $2, $3)
ON CONFLICT (ymd) DO UPDATE SET post_id = EXCLUDED.post_id, fingerprint = EXCLUDED.fingerprint, updated_at = now()
`, ymd, rec.PostID, rec.Fingerprint)
	metrics.ObserveNetworkRequest("postgres", "ledger_upsert", start, err)
	return err
}

// Close закрывает пул подключений.
func (l *PostgresLedger) Close() {
	l.pool.Close()
}
