package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"NYCU-SDC/survey-wizard-backend/internal"

	databaseutil "github.com/NYCU-SDC/summer/pkg/database"
	logutil "github.com/NYCU-SDC/summer/pkg/log"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	getQuery    = `SELECT value FROM kv_entries WHERE key = $1`
	upsertQuery = `INSERT INTO kv_entries (key, value) VALUES ($1, $2)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`
	deleteQuery = `DELETE FROM kv_entries WHERE key = $1`
	pruneQuery  = `DELETE FROM kv_entries WHERE updated_at < $1`
)

type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Postgres struct {
	logger *zap.Logger
	db     DBTX
	tracer trace.Tracer
}

func NewPostgres(logger *zap.Logger, db DBTX) *Postgres {
	return &Postgres{
		logger: logger,
		db:     db,
		tracer: otel.Tracer("kv/postgres"),
	}
}

func (p *Postgres) Get(ctx context.Context, key string) ([]byte, error) {
	traceCtx, span := p.tracer.Start(ctx, "Get")
	defer span.End()
	logger := logutil.WithContext(traceCtx, p.logger)

	var value []byte
	err := p.db.QueryRow(traceCtx, getQuery, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, internal.ErrKeyNotFound
		}
		err = databaseutil.WrapDBError(err, logger, "get kv entry")
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %v", internal.ErrStorageFailed, err)
	}

	return value, nil
}

func (p *Postgres) Set(ctx context.Context, key string, value []byte) error {
	traceCtx, span := p.tracer.Start(ctx, "Set")
	defer span.End()
	logger := logutil.WithContext(traceCtx, p.logger)

	_, err := p.db.Exec(traceCtx, upsertQuery, key, value)
	if err != nil {
		err = databaseutil.WrapDBError(err, logger, "upsert kv entry")
		span.RecordError(err)
		return fmt.Errorf("%w: %v", internal.ErrStorageFailed, err)
	}

	return nil
}

func (p *Postgres) Delete(ctx context.Context, key string) error {
	traceCtx, span := p.tracer.Start(ctx, "Delete")
	defer span.End()
	logger := logutil.WithContext(traceCtx, p.logger)

	_, err := p.db.Exec(traceCtx, deleteQuery, key)
	if err != nil {
		err = databaseutil.WrapDBError(err, logger, "delete kv entry")
		span.RecordError(err)
		return fmt.Errorf("%w: %v", internal.ErrStorageFailed, err)
	}

	return nil
}

// Prune removes every entry last written before olderThan and reports how many
// rows went away.
func (p *Postgres) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	traceCtx, span := p.tracer.Start(ctx, "Prune")
	defer span.End()
	logger := logutil.WithContext(traceCtx, p.logger)

	tag, err := p.db.Exec(traceCtx, pruneQuery, olderThan)
	if err != nil {
		err = databaseutil.WrapDBError(err, logger, "prune kv entries")
		span.RecordError(err)
		return 0, fmt.Errorf("%w: %v", internal.ErrStorageFailed, err)
	}

	return tag.RowsAffected(), nil
}
