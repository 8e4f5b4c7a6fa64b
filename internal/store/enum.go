package store

import (
	"context"
	"database/sql"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"go.uber.org/zap"

	"github.com/matthewbaird/jigtrack/internal/ddl"
	"github.com/matthewbaird/jigtrack/internal/schema"
)

// EnumStore keeps one table per enumerated domain. Each table has a single
// column named after the table, one row per value, in insertion order.
type EnumStore struct {
	db       *sql.DB
	defaults map[string][]string
	log      *zap.Logger
}

// NewEnumStore returns a domain store seeding bootstraps from defaults.
func NewEnumStore(db *sql.DB, defaults map[string][]string, log *zap.Logger) *EnumStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &EnumStore{db: db, defaults: defaults, log: log}
}

func domainSchema(name string) *schema.Schema {
	return schema.MustNew([]schema.FieldSpec{{Name: name, Type: schema.FieldText}})
}

// LoadDomain returns the values of domain name in stored order.
func (s *EnumStore) LoadDomain(ctx context.Context, name string) ([]string, error) {
	query, args := entsql.Dialect(dialect.SQLite).
		Select(name).
		From(entsql.Dialect(dialect.SQLite).Table(name)).
		OrderBy("rowid").
		Query()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("reading domain %s: %w", name, err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("reading domain %s: %w", name, err)
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// Replace rewrites domain name with values, in order, in one transaction.
func (s *EnumStore) Replace(ctx context.Context, name string, values []string) error {
	if _, err := ddl.CreateTable(ctx, s.db, domainSchema(name), name, false); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrCommit, err)
	}
	defer tx.Rollback()

	query, args := entsql.Dialect(dialect.SQLite).Delete(name).Query()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%w: clearing domain %s: %v", ErrCommit, name, err)
	}
	for _, v := range values {
		query, args := entsql.Dialect(dialect.SQLite).
			Insert(name).
			Columns(name).
			Values(v).
			Query()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("%w: writing domain %s: %v", ErrCommit, name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit domain %s: %v", ErrCommit, name, err)
	}
	return nil
}

// Bootstrap recreates the named domain tables with their default values.
func (s *EnumStore) Bootstrap(ctx context.Context, names []string) error {
	for _, name := range names {
		values, ok := s.defaults[name]
		if !ok {
			return fmt.Errorf("no default values for domain %s", name)
		}
		if _, err := ddl.CreateTable(ctx, s.db, domainSchema(name), name, true); err != nil {
			return err
		}
		if err := s.Replace(ctx, name, values); err != nil {
			return err
		}
		s.log.Warn("enumerated domain bootstrapped", zap.String("op", "bootstrap"), zap.String("domain", name))
	}
	return nil
}
