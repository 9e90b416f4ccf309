package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"tickyai/internal/types/habit"
	"tickyai/internal/types/user"
)

type recordedQuery struct {
	sql  string
	args []any
}

// fakeDB satisfies dbtx and replays canned rows in order. Queries past the
// canned set scan as no-rows.
type fakeDB struct {
	queries []recordedQuery
	rows    []pgx.Row
}

func (f *fakeDB) record(sql string, args []any) {
	f.queries = append(f.queries, recordedQuery{sql: sql, args: args})
}

func (f *fakeDB) nextRow() pgx.Row {
	if len(f.rows) == 0 {
		return errRow{pgx.ErrNoRows}
	}
	row := f.rows[0]
	f.rows = f.rows[1:]
	return row
}

func (f *fakeDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	f.record(sql, args)
	return nil, errors.New("unexpected Query call")
}

func (f *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.record(sql, args)
	return f.nextRow()
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.record(sql, args)
	return pgconn.CommandTag{}, nil
}

type errRow struct {
	err error
}

func (r errRow) Scan(_ ...any) error { return r.err }

// stubUserRow scans as an existing user row with zero-value fields.
type stubUserRow struct{}

func (stubUserRow) Scan(dest ...any) error {
	for _, d := range dest {
		switch v := d.(type) {
		case *string:
			*v = "u1"
		case **string:
			*v = nil
		case *int64:
			*v = 1
		case *int:
			*v = 0
		case *bool:
			*v = true
		case *time.Time:
			*v = time.Unix(0, 0)
		case **time.Time:
			*v = nil
		case *user.SubscriptionType:
			*v = user.SubscriptionFree
		}
	}
	return nil
}

func TestUpdateHabitScopedToOwner(t *testing.T) {
	db := &fakeDB{}
	svc := &HabitService{db: db}

	title := "New title"
	_, err := svc.UpdateHabit(context.Background(), "h1", "intruder", &habit.UpdateHabitRequest{Title: &title})
	if !errors.Is(err, ErrHabitNotFound) {
		t.Fatalf("UpdateHabit for a non-owner = %v, want ErrHabitNotFound", err)
	}

	if len(db.queries) != 1 {
		t.Fatalf("recorded %d queries, want 1", len(db.queries))
	}
	q := db.queries[0]
	if !strings.Contains(q.sql, "user_id = $2") {
		t.Errorf("update is not ownership-scoped:\n%s", q.sql)
	}
	if len(q.args) < 2 || q.args[0] != "h1" || q.args[1] != "intruder" {
		t.Errorf("query args = %v, want habit id then user id first", q.args)
	}
}
