package transcript

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlExchanges = `
CREATE TABLE IF NOT EXISTS exchanges (
    id              BIGSERIAL    PRIMARY KEY,
    session_id      TEXT         NOT NULL,
    recognized      TEXT         NOT NULL,
    translated      TEXT         NOT NULL DEFAULT '',
    spoken          TEXT         NOT NULL DEFAULT '',
    language        TEXT         NOT NULL DEFAULT '',
    target_language TEXT         NOT NULL DEFAULT '',
    wake_phrase     TEXT         NOT NULL DEFAULT '',
    timestamp       TIMESTAMPTZ  NOT NULL DEFAULT now(),
    duration_ns     BIGINT       NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_exchanges_session_timestamp
    ON exchanges (session_id, timestamp);

CREATE INDEX IF NOT EXISTS idx_exchanges_fts
    ON exchanges USING GIN (to_tsvector('simple', recognized));
`

// Log is a PostgreSQL-backed persistent exchange log.
//
// All methods are safe for concurrent use.
type Log struct {
	pool *pgxpool.Pool
}

// NewLog establishes a connection pool to the database at dsn and runs the
// idempotent schema migration. Call [Log.Close] when done.
func NewLog(ctx context.Context, dsn string) (*Log, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("transcript log: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("transcript log: ping: %w", err)
	}

	if _, err := pool.Exec(ctx, ddlExchanges); err != nil {
		pool.Close()
		return nil, fmt.Errorf("transcript log: migrate: %w", err)
	}

	return &Log{pool: pool}, nil
}

// Append writes an exchange to the log under sessionID.
func (l *Log) Append(ctx context.Context, sessionID string, e Exchange) error {
	const q = `
		INSERT INTO exchanges
		    (session_id, recognized, translated, spoken, language, target_language, wake_phrase, timestamp, duration_ns)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := l.pool.Exec(ctx, q,
		sessionID,
		e.Recognized,
		e.Translated,
		e.Spoken,
		e.Language,
		e.TargetLanguage,
		e.WakePhrase,
		e.Timestamp,
		e.Duration.Nanoseconds(),
	)
	if err != nil {
		return fmt.Errorf("transcript log: append: %w", err)
	}
	return nil
}

// Recent returns all exchanges for sessionID whose timestamp is no earlier
// than time.Now()-window, ordered chronologically (oldest first).
func (l *Log) Recent(ctx context.Context, sessionID string, window time.Duration) ([]Exchange, error) {
	const q = `
		SELECT recognized, translated, spoken, language, target_language, wake_phrase, timestamp, duration_ns
		FROM   exchanges
		WHERE  session_id = $1
		  AND  timestamp  >= now() - ($2::bigint * interval '1 microsecond')
		ORDER  BY timestamp`

	rows, err := l.pool.Query(ctx, q, sessionID, window.Microseconds())
	if err != nil {
		return nil, fmt.Errorf("transcript log: recent: %w", err)
	}
	return collectExchanges(rows)
}

// Search performs a full-text search over the recognized text of sessionID's
// exchanges. The query is passed to plainto_tsquery so no operator syntax is
// required. The 'simple' dictionary is used because transcripts can be in any
// language.
func (l *Log) Search(ctx context.Context, sessionID, query string) ([]Exchange, error) {
	const q = `
		SELECT recognized, translated, spoken, language, target_language, wake_phrase, timestamp, duration_ns
		FROM   exchanges
		WHERE  session_id = $1
		  AND  to_tsvector('simple', recognized) @@ plainto_tsquery('simple', $2)
		ORDER  BY timestamp`

	rows, err := l.pool.Query(ctx, q, sessionID, query)
	if err != nil {
		return nil, fmt.Errorf("transcript log: search: %w", err)
	}
	return collectExchanges(rows)
}

// Ping verifies database connectivity. Suitable as a readiness check.
func (l *Log) Ping(ctx context.Context) error {
	return l.pool.Ping(ctx)
}

// Close releases all connections held by the underlying pool.
func (l *Log) Close() {
	l.pool.Close()
}

// collectExchanges scans pgx rows into a slice of Exchange values.
func collectExchanges(rows pgx.Rows) ([]Exchange, error) {
	exchanges, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Exchange, error) {
		var (
			e          Exchange
			durationNS int64
		)
		if err := row.Scan(
			&e.Recognized,
			&e.Translated,
			&e.Spoken,
			&e.Language,
			&e.TargetLanguage,
			&e.WakePhrase,
			&e.Timestamp,
			&durationNS,
		); err != nil {
			return Exchange{}, err
		}
		e.Duration = time.Duration(durationNS)
		return e, nil
	})
	if err != nil {
		return nil, fmt.Errorf("transcript log: scan rows: %w", err)
	}
	if exchanges == nil {
		exchanges = []Exchange{}
	}
	return exchanges, nil
}
