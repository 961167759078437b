// Package sqlstore implements contentcache.Store and contentcache.WriteStore on
// Postgres or SQLite through bun.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/unkn0wn-root/contentcache"
)

var (
	_ contentcache.Store      = (*Store)(nil)
	_ contentcache.WriteStore = (*Store)(nil)
)

type Store struct {
	db  *bun.DB
	now func() time.Time
}

// New wraps an existing bun.DB. The caller owns it.
func New(db *bun.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Open connects with driver "postgres" (lib/pq) or "sqlite" (go-sqlite3).
func Open(driver, dsn string) (*Store, error) {
	var (
		sqldb *sql.DB
		db    *bun.DB
		err   error
	)
	switch driver {
	case "postgres":
		if sqldb, err = sql.Open("postgres", dsn); err != nil {
			return nil, fmt.Errorf("sqlstore: open postgres: %w", err)
		}
		db = bun.NewDB(sqldb, pgdialect.New())
	case "sqlite":
		if sqldb, err = sql.Open("sqlite3", dsn); err != nil {
			return nil, fmt.Errorf("sqlstore: open sqlite: %w", err)
		}
		// every pooled connection to :memory: would see its own empty database
		sqldb.SetMaxOpenConns(1)
		db = bun.NewDB(sqldb, sqlitedialect.New())
	default:
		return nil, fmt.Errorf("sqlstore: unsupported driver %q", driver)
	}
	return New(db), nil
}

func (s *Store) DB() *bun.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

// CreateSchema creates the contents table and its created_at index if missing.
func (s *Store) CreateSchema(ctx context.Context) error {
	if _, err := s.db.NewCreateTable().Model((*row)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("sqlstore: create table: %w", err)
	}
	_, err := s.db.NewCreateIndex().
		Model((*row)(nil)).
		Index("contents_created_at_idx").
		Column("created_at").
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("sqlstore: create index: %w", err)
	}
	return nil
}

func (s *Store) FindByID(ctx context.Context, id string) (contentcache.ContentItem, bool, error) {
	r, ok, err := s.get(ctx, s.db, id)
	if err != nil || !ok {
		return contentcache.ContentItem{}, ok, err
	}
	return r.item(), true, nil
}

func (s *Store) FindPage(ctx context.Context, skip, limit int) ([]contentcache.ContentItem, error) {
	var rows []row
	err := s.db.NewSelect().
		Model(&rows).
		OrderExpr("created_at DESC, id DESC").
		Offset(skip).
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return items(rows), nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	return s.db.NewSelect().Model((*row)(nil)).Count(ctx)
}

func (s *Store) FindCreatedBetween(ctx context.Context, from, to time.Time) ([]contentcache.ContentItem, error) {
	var rows []row
	err := s.db.NewSelect().
		Model(&rows).
		Where("created_at >= ?", from.UTC()).
		Where("created_at <= ?", to.UTC()).
		OrderExpr("created_at DESC, id DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return items(rows), nil
}

func (s *Store) Create(ctx context.Context, item contentcache.ContentItem) (contentcache.ContentItem, error) {
	r := fromItem(item)
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	now := s.now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	if _, err := s.db.NewInsert().Model(&r).Exec(ctx); err != nil {
		return contentcache.ContentItem{}, err
	}
	return r.item(), nil
}

func (s *Store) Update(ctx context.Context, item contentcache.ContentItem) (contentcache.ContentItem, bool, error) {
	r := fromItem(item)
	if r.ID == "" {
		r.ID = item.ID
	}
	r.UpdatedAt = s.now().UTC()

	var (
		out row
		ok  bool
	)
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model(&r).
			Column("title", "summary", "body", "quiz", "notes", "media", "updated_at").
			WherePK().
			Exec(ctx)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil
		}
		out, ok, err = s.get(ctx, tx, r.ID)
		return err
	})
	if err != nil || !ok {
		return contentcache.ContentItem{}, false, err
	}
	return out.item(), true, nil
}

func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.NewDelete().Model((*row)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *Store) AppendMedia(ctx context.Context, id string, m contentcache.MediaRef) (bool, error) {
	var found bool
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		r, ok, err := s.get(ctx, tx, id)
		if err != nil || !ok {
			return err
		}
		found = true
		r.Media = append(r.Media, m)
		r.UpdatedAt = s.now().UTC()
		_, err = tx.NewUpdate().Model(&r).Column("media", "updated_at").WherePK().Exec(ctx)
		return err
	})
	return found, err
}

func (s *Store) get(ctx context.Context, db bun.IDB, id string) (row, bool, error) {
	var r row
	err := db.NewSelect().Model(&r).Where("id = ?", id).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return row{}, false, nil
	}
	if err != nil {
		return row{}, false, err
	}
	return r, true, nil
}
