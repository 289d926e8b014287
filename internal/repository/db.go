package repository

import (
	"context"
	"database/sql"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/joseph-ayodele/cv-autofill/internal/common"
	"github.com/joseph-ayodele/cv-autofill/internal/logger"
)

// DB bundles the ent SQL driver with the pool that backs it.
type DB struct {
	Driver  *entsql.Driver
	Dialect string
	pool    *pgxpool.Pool
	log     *zap.Logger
	now     func() time.Time
}

// Open connects to sqlite (database/sql + modernc) or postgres (pgxpool) and wraps
// the connection for ent's SQL builders.
func Open(ctx context.Context, cfg common.DatabaseConfig, log *zap.Logger) (*DB, error) {
	log = logger.OrNop(log)
	log.Info("db.connect", zap.String("driver", cfg.Driver))

	switch cfg.Driver {
	case "sqlite", "":
		sqldb, err := sql.Open("sqlite", cfg.DSN)
		if err != nil {
			log.Error("db.connect.failed", zap.Error(err))
			return nil, errors.Wrap(err, "open sqlite")
		}
		// one writer; also keeps file::memory: databases on a single connection
		sqldb.SetMaxOpenConns(1)
		db := &DB{Driver: entsql.OpenDB(dialect.SQLite, sqldb), Dialect: dialect.SQLite, log: log, now: time.Now}
		if err := db.HealthCheck(ctx, cfg.DialTimeout); err != nil {
			_ = sqldb.Close()
			log.Error("db.connect.failed", zap.Error(err))
			return nil, err
		}
		log.Info("db.connect.ok")
		return db, nil

	case "postgres":
		pc, err := pgxpool.ParseConfig(cfg.DSN)
		if err != nil {
			log.Error("db.connect.failed", zap.Error(err))
			return nil, errors.Wrap(err, "parse postgres dsn")
		}
		if cfg.MaxConns > 0 {
			pc.MaxConns = cfg.MaxConns
		}
		pc.MinConns = cfg.MinConns
		pc.MaxConnLifetime = cfg.MaxConnLifetime
		pc.MaxConnIdleTime = cfg.MaxConnIdleTime
		pc.ConnConfig.RuntimeParams["application_name"] = "cv-autofill"
		if cfg.StatementTimeout > 0 {
			pc.ConnConfig.RuntimeParams["statement_timeout"] = cfg.StatementTimeout.String()
		}

		dialCtx, cancel := common.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
		pool, err := pgxpool.NewWithConfig(dialCtx, pc)
		if err != nil {
			log.Error("db.connect.failed", zap.Error(err))
			return nil, errors.Wrap(err, "connect postgres")
		}

		// Wrap pool as *sql.DB for ent
		sqldb := stdlib.OpenDBFromPool(pool)
		log.Info("db.connect.ok")
		return &DB{Driver: entsql.OpenDB(dialect.Postgres, sqldb), Dialect: dialect.Postgres, pool: pool, log: log, now: time.Now}, nil
	}
	return nil, common.NewAppError(common.CodeConfig, "unknown database driver "+cfg.Driver, common.ErrInvalidInput)
}

// Close closes the database connections gracefully
func (db *DB) Close() {
	if db == nil {
		return
	}
	db.log.Info("db.close")
	if db.Driver != nil {
		if err := db.Driver.Close(); err != nil {
			db.log.Error("db.close.failed", zap.Error(err))
		}
	}
	if db.pool != nil {
		db.pool.Close()
	}
}

// HealthCheck pings the database to catch DSN issues early.
func (db *DB) HealthCheck(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := common.WithTimeout(ctx, timeout)
	defer cancel()
	if db.pool != nil {
		return db.pool.Ping(ctx)
	}
	return db.Driver.DB().PingContext(ctx)
}

func (db *DB) builder() *entsql.DialectBuilder {
	return entsql.Dialect(db.Dialect)
}

func (db *DB) exec(ctx context.Context, q querier) (int64, error) {
	query, args := q.Query()
	var res sql.Result
	if err := db.Driver.Exec(ctx, query, args, &res); err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (db *DB) query(ctx context.Context, q querier, scan func(*entsql.Rows) error) error {
	query, args := q.Query()
	rows := &entsql.Rows{}
	if err := db.Driver.Query(ctx, query, args, rows); err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

type querier interface {
	Query() (string, []any)
}

func millis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func nullableMillis(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}

func fromNullMillis(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromMillis(n.Int64)
	return &t
}
