package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"haushaltsbuch/internal/core"
	"haushaltsbuch/internal/storage"
)

func newRepoWithMock(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return New(db), mock
}

func checkExpectations(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestInsert_ReturnsID(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	q := `(?s)^INSERT\s+INTO\s+entries\s*\(owner_id,\s*entry_date,\s*category,\s*amount_cents,\s*note\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5\)\s*RETURNING\s+id$`
	mock.ExpectQuery(q).
		WithArgs(int64(3), "2024-05-01", "Wohnen", int64(-80000), "Miete").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(17)))

	id, err := repo.Insert(context.Background(), 3, core.EntryInput{
		Date: "2024-05-01", Category: "Wohnen", Amount: core.Money{Cents: -80000}, Note: "Miete",
	})
	if err != nil {
		t.Fatalf("Insert error: %v", err)
	}
	if id != 17 {
		t.Fatalf("id = %d, want 17", id)
	}
	checkExpectations(t, mock)
}

func TestInsert_DBErrorIsStorageError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`INSERT\s+INTO\s+entries`).WillReturnError(errors.New("db down"))

	_, err := repo.Insert(context.Background(), 3, core.EntryInput{Date: "2024-05-01", Category: "x", Amount: core.Money{Cents: 1}})
	if !errors.Is(err, core.ErrStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
}

func TestFetch_UsesOwnerScopedFilter(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	q := `(?s)^SELECT\s+id,\s*owner_id,.*FROM\s+entries\s+WHERE\s+owner_id\s*=\s*\$1\s+AND\s+category\s*=\s*\$2\s+AND\s+amount_cents\s*<\s*0\s+ORDER\s+BY\s+id\s+DESC$`
	mock.ExpectQuery(q).
		WithArgs(int64(3), "Wohnen").
		WillReturnRows(sqlmock.NewRows([]string{"id", "owner_id", "entry_date", "category", "amount_cents", "note", "created_at"}).
			AddRow(int64(9), int64(3), "2024-05-01", "Wohnen", int64(-80000), "Miete", created).
			AddRow(int64(4), int64(3), "2024-04-01", "Wohnen", int64(-80000), "Miete", created))

	got, err := repo.Fetch(context.Background(), 3, core.Filter{Category: "Wohnen", Type: core.Expense})
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(got) != 2 || got[0].ID != 9 || got[1].ID != 4 {
		t.Fatalf("unexpected entries: %+v", got)
	}
	if got[0].Amount.Cents != -80000 || !got[0].CreatedAt.Equal(created) {
		t.Fatalf("unexpected first entry: %+v", got[0])
	}
	checkExpectations(t, mock)
}

func TestGet_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`FROM\s+entries\s+WHERE\s+id\s*=\s*\$1\s+AND\s+owner_id\s*=\s*\$2`).
		WithArgs(int64(5), int64(3)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), 3, 5)
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateAndDelete_AreOwnerScoped(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`(?s)^UPDATE\s+entries\s+SET.*WHERE\s+id\s*=\s*\$5\s+AND\s+owner_id\s*=\s*\$6$`).
		WithArgs("2024-05-02", "Wohnen", int64(-1), "", int64(5), int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`^DELETE\s+FROM\s+entries\s+WHERE\s+id\s*=\s*\$1\s+AND\s+owner_id\s*=\s*\$2$`).
		WithArgs(int64(5), int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ctx := context.Background()
	if err := repo.Update(ctx, 3, 5, core.EntryInput{Date: "2024-05-02", Category: "Wohnen", Amount: core.Money{Cents: -1}}); err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if err := repo.Delete(ctx, 3, 5); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	checkExpectations(t, mock)
}

func TestClear_ReturnsRowsAffected(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`^DELETE\s+FROM\s+entries\s+WHERE\s+owner_id\s*=\s*\$1$`).
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := repo.Clear(context.Background(), 3)
	if err != nil {
		t.Fatalf("Clear error: %v", err)
	}
	if n != 4 {
		t.Fatalf("n = %d, want 4", n)
	}
}

func TestTotals(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)SUM\(amount_cents\)\s+FILTER.*FROM\s+entries\s+WHERE\s+owner_id\s*=\s*\$1\s+AND\s+strpos\(note,\s*\$2\)\s*>\s*0$`).
		WithArgs(int64(3), "Miete").
		WillReturnRows(sqlmock.NewRows([]string{"income", "expense"}).AddRow(int64(250000), int64(-80000)))

	got, err := repo.Totals(context.Background(), 3, core.Filter{Query: "Miete"})
	if err != nil {
		t.Fatalf("Totals error: %v", err)
	}
	if got != core.NewTotals(250000, -80000) {
		t.Fatalf("totals = %+v", got)
	}
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`INSERT\s+INTO\s+users`).
		WithArgs("anna@example.org", "hash", false).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value"})

	_, err := repo.CreateUser(context.Background(), "anna@example.org", "hash", false)
	if !errors.Is(err, storage.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestCreateUser_Success(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+users\s*\(email,\s*password_hash,\s*is_admin\).*RETURNING`).
		WithArgs("anna@example.org", "hash", true).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash", "is_admin", "created_at"}).
			AddRow(int64(1), "anna@example.org", "hash", true, created))

	u, err := repo.CreateUser(context.Background(), "anna@example.org", "hash", true)
	if err != nil {
		t.Fatalf("CreateUser error: %v", err)
	}
	if u.ID != 1 || !u.IsAdmin || !u.CreatedAt.Equal(created) {
		t.Fatalf("unexpected user: %+v", u)
	}
}

func TestSetAdmin_UnknownUser(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`^UPDATE\s+users\s+SET\s+is_admin`).
		WithArgs(true, int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SetAdmin(context.Background(), 42, true)
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUserByEmail_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`FROM\s+users\s+WHERE\s+email\s*=\s*\$1`).
		WithArgs("nobody@example.org").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.UserByEmail(context.Background(), "nobody@example.org")
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
