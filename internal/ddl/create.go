package ddl

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/matthewbaird/jigtrack/internal/schema"
)

// Outcome reports what CreateTable did.
type Outcome int

const (
	Created Outcome = iota
	AlreadyExists
	Recreated
)

func (o Outcome) String() string {
	switch o {
	case Created:
		return "created"
	case AlreadyExists:
		return "already_exists"
	case Recreated:
		return "recreated"
	default:
		return "unknown"
	}
}

// ErrRecreateFailed marks a failed drop-and-create. The previous table is
// left in place.
var ErrRecreateFailed = errors.New("recreate failed")

// CreateError carries the failing stage and the engine's message.
type CreateError struct {
	Table    string
	Stage    string
	Recreate bool
	Err      error
}

func (e *CreateError) Error() string {
	return fmt.Sprintf("create table %s: %s: %v", e.Table, e.Stage, e.Err)
}

func (e *CreateError) Unwrap() error { return e.Err }

// Is matches ErrRecreateFailed for failures of a recreate.
func (e *CreateError) Is(target error) bool {
	return target == ErrRecreateFailed && e.Recreate
}

// CreateTable creates table from s. With recreate an existing table is
// dropped first; the drop and the create run in one transaction so a failed
// create keeps the previous table.
func CreateTable(ctx context.Context, db *sql.DB, s *schema.Schema, table string, recreate bool) (Outcome, error) {
	fail := func(stage string, err error) (Outcome, error) {
		return 0, &CreateError{Table: table, Stage: stage, Recreate: recreate, Err: err}
	}

	exists, err := TableExists(ctx, db, table)
	if err != nil {
		return fail("inspect", err)
	}
	if exists && !recreate {
		return AlreadyExists, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fail("begin", err)
	}
	defer tx.Rollback()

	if recreate {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s;", table)); err != nil {
			return fail("drop", err)
		}
	}
	if _, err := tx.ExecContext(ctx, CreateStatement(s, table, recreate)); err != nil {
		return fail("create", err)
	}
	if err := tx.Commit(); err != nil {
		return fail("commit", err)
	}
	if exists {
		return Recreated, nil
	}
	return Created, nil
}

// TableExists reports whether table is present in the database.
func TableExists(ctx context.Context, db *sql.DB, table string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx,
		"SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
