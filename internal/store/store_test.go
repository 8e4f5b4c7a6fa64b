package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/matthewbaird/jigtrack/internal/ddl"
	"github.com/matthewbaird/jigtrack/internal/schema"
)

func jigSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.Jig()
	require.NoError(t, err)
	return s
}

func newTable(t *testing.T) *Table {
	t.Helper()
	ctx := context.Background()
	db, err := Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := jigSchema(t)
	_, err = ddl.CreateTable(ctx, db, s, "Jig", false)
	require.NoError(t, err)
	tbl, err := NewTable(db, "Jig", s, nil)
	require.NoError(t, err)
	return tbl
}

func jigRecord(name, status, made string) schema.Record {
	d, _ := schema.ParseDate(made)
	return schema.Record{
		"id":             nil,
		"name":           name,
		"model":          "X1",
		"type":           schema.EnumMember{Domain: schema.DomainJigType, Value: "pc"},
		"count":          int64(1),
		"no":             "J-" + name,
		"CheckCycle":     int64(360),
		"UseStatus":      schema.EnumMember{Domain: schema.DomainJigUseStatus, Value: status},
		"Makedate":       d,
		"Maxcount":       int64(10000),
		"CheckMaxcount":  int64(500),
		"Version":        "A",
		"Checkdate":      d,
		"Usedcount":      int64(0),
		"CheckUsedcount": int64(0),
		"Location":       "Shelf 1",
		"Remark":         nil,
	}
}

func TestTable_InsertCommitSelect(t *testing.T) {
	ctx := context.Background()
	tbl := newTable(t)

	key, err := tbl.Insert(ctx, jigRecord("fixture-a", schema.StatusUnused, "2024-01-02"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), key)
	assert.True(t, tbl.Pending())
	require.NoError(t, tbl.Commit())
	assert.False(t, tbl.Pending())

	got, err := tbl.Get(ctx, key)
	require.NoError(t, err)
	want := jigRecord("fixture-a", schema.StatusUnused, "2024-01-02")
	want["id"] = key
	assert.Equal(t, want, got)
}

func TestTable_RevertDiscardsStagedEdits(t *testing.T) {
	ctx := context.Background()
	tbl := newTable(t)

	key, err := tbl.Insert(ctx, jigRecord("a", schema.StatusUnused, "2024-01-02"))
	require.NoError(t, err)
	require.NoError(t, tbl.Commit())

	_, err = tbl.Insert(ctx, jigRecord("b", schema.StatusUnused, "2024-01-02"))
	require.NoError(t, err)
	ok, err := tbl.Update(ctx, key, schema.Record{"name": "renamed"})
	require.NoError(t, err)
	assert.True(t, ok)

	rows, err := tbl.Select(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, rows, 2, "staged rows are visible before commit")

	require.NoError(t, tbl.Revert())
	rows, err = tbl.Select(ctx, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "a", rows[0]["name"])
}

func TestTable_UpdateOnlySchemaFields(t *testing.T) {
	ctx := context.Background()
	tbl := newTable(t)
	key, err := tbl.Insert(ctx, jigRecord("a", schema.StatusUnused, "2024-01-02"))
	require.NoError(t, err)

	ok, err := tbl.Update(ctx, key, schema.Record{"Usedcount": int64(5), "bogus": 1, "id": int64(99)})
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, tbl.Commit())

	got, err := tbl.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(5), got["Usedcount"])
	assert.Equal(t, key, got["id"])

	ok, err = tbl.Update(ctx, 404, schema.Record{"Usedcount": int64(1)})
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, tbl.Revert())
}

func TestTable_CheckViolationIsStorageError(t *testing.T) {
	ctx := context.Background()
	tbl := newTable(t)
	r := jigRecord("a", schema.StatusUnused, "2024-01-02")
	r["count"] = int64(1000)

	_, err := tbl.Insert(ctx, r)
	assert.ErrorIs(t, err, ErrCommit)
	require.NoError(t, tbl.Revert())
}

func TestTable_DeleteAndNotFound(t *testing.T) {
	ctx := context.Background()
	tbl := newTable(t)
	key, err := tbl.Insert(ctx, jigRecord("a", schema.StatusUnused, "2024-01-02"))
	require.NoError(t, err)
	require.NoError(t, tbl.Commit())

	ok, err := tbl.Delete(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, tbl.Commit())

	_, err = tbl.Get(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)

	ok, err = tbl.Delete(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, tbl.Revert())
}

func TestTable_SelectFilter(t *testing.T) {
	ctx := context.Background()
	tbl := newTable(t)
	for _, r := range []schema.Record{
		jigRecord("a", schema.StatusUnused, "2024-01-10"),
		jigRecord("b", schema.StatusInUse, "2024-02-10"),
		jigRecord("c", schema.StatusUnused, "2024-03-10"),
	} {
		_, err := tbl.Insert(ctx, r)
		require.NoError(t, err)
	}
	require.NoError(t, tbl.Commit())

	rows, err := tbl.Select(ctx, Filter{Eq("UseStatus", schema.StatusUnused)})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rows, err = tbl.Select(ctx, Filter{
		Eq("UseStatus", schema.StatusUnused),
		Between("Makedate", "2024-01-01", "2024-02-28"),
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "a", rows[0]["name"])

	rows, err = tbl.Select(ctx, Filter{Between("Makedate", "2024-02-10", "2024-03-10")})
	require.NoError(t, err)
	assert.Len(t, rows, 2, "BETWEEN is inclusive at both ends")
}

func TestTable_CommitFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	tbl, err := NewTable(db, "Jig", jigSchema(t), nil)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO").WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectCommit().WillReturnError(errors.New("database is locked"))

	ctx := context.Background()
	key, err := tbl.Insert(ctx, jigRecord("a", schema.StatusUnused, "2024-01-02"))
	require.NoError(t, err)
	assert.Equal(t, int64(7), key)

	err = tbl.Commit()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCommit)
	assert.Contains(t, err.Error(), "database is locked")
	assert.False(t, tbl.Pending())
	assert.NoError(t, tbl.Revert())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewTable_RequiresPrimaryKey(t *testing.T) {
	s := schema.MustNew([]schema.FieldSpec{{Name: "name", Type: schema.FieldText}})
	_, err := NewTable(&sql.DB{}, "t", s, nil)
	assert.Error(t, err)
}

func TestEnumStore_BootstrapReplaceLoad(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, ":memory:")
	require.NoError(t, err)
	defer db.Close()

	es := NewEnumStore(db, schema.DefaultDomains, nil)
	_, err = es.LoadDomain(ctx, schema.DomainJigType)
	require.Error(t, err, "domain table is missing before bootstrap")

	require.NoError(t, es.Bootstrap(ctx, []string{schema.DomainJigType, schema.DomainJigUseStatus}))
	values, err := es.LoadDomain(ctx, schema.DomainJigType)
	require.NoError(t, err)
	assert.Equal(t, schema.DefaultDomains[schema.DomainJigType], values)

	require.NoError(t, es.Replace(ctx, schema.DomainJigType, []string{"fixture", "gauge"}))
	values, err = es.LoadDomain(ctx, schema.DomainJigType)
	require.NoError(t, err)
	assert.Equal(t, []string{"fixture", "gauge"}, values)

	assert.Error(t, es.Bootstrap(ctx, []string{"Unknown"}))
}

func TestEnumStore_ResolvesSchema(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, ":memory:")
	require.NoError(t, err)
	defer db.Close()

	es := NewEnumStore(db, schema.DefaultDomains, nil)
	s, err := schema.Resolve(ctx, jigSchema(t), es, es)
	require.NoError(t, err)
	d, err := s.Enum(schema.DomainJigUseStatus)
	require.NoError(t, err)
	assert.Equal(t, []string{"UNUSE", "USING", "ERROR", "TO_BE_SCRAPPED"}, d.Values)
}
