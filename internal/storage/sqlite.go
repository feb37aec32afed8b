package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"haushaltsbuch/internal/core"
	"haushaltsbuch/internal/storage/sqlbuild"

	_ "modernc.org/sqlite"
)

const entryColumns = "id, owner_id, entry_date, category, amount_cents, note, created_at"

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	// SQLite serialises writers anyway; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return core.WrapStorage("ping", r.db.PingContext(ctx))
}

func (r *SQLiteRepository) Insert(ctx context.Context, owner int64, in core.EntryInput) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO entries (owner_id, entry_date, category, amount_cents, note, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		owner, in.Date, in.Category, in.Amount.Cents, in.Note, time.Now().Unix())
	if err != nil {
		return 0, core.WrapStorage("insert entry", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, core.WrapStorage("insert entry", err)
	}

	slog.DebugContext(ctx, "Entry saved to SQLite", "id", id, "owner", owner, "amount_cents", in.Amount.Cents)
	return id, nil
}

func (r *SQLiteRepository) Fetch(ctx context.Context, owner int64, f core.Filter) ([]core.Entry, error) {
	where, args := sqlbuild.SQLite.Where(owner, f)
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+entryColumns+" FROM entries WHERE "+where+" ORDER BY id DESC", args...)
	if err != nil {
		return nil, core.WrapStorage("fetch entries", err)
	}
	defer rows.Close()

	entries := []core.Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, core.WrapStorage("fetch entries", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, core.WrapStorage("fetch entries", err)
	}
	return entries, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, owner, id int64) (core.Entry, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+entryColumns+" FROM entries WHERE id = ? AND owner_id = ?", id, owner)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Entry{}, core.ErrNotFound
	}
	if err != nil {
		return core.Entry{}, core.WrapStorage("get entry", err)
	}
	return e, nil
}

func (r *SQLiteRepository) Update(ctx context.Context, owner, id int64, in core.EntryInput) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE entries SET entry_date = ?, category = ?, amount_cents = ?, note = ?
		 WHERE id = ? AND owner_id = ?`,
		in.Date, in.Category, in.Amount.Cents, in.Note, id, owner)
	return core.WrapStorage("update entry", err)
}

func (r *SQLiteRepository) Delete(ctx context.Context, owner, id int64) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM entries WHERE id = ? AND owner_id = ?", id, owner)
	return core.WrapStorage("delete entry", err)
}

func (r *SQLiteRepository) Clear(ctx context.Context, owner int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM entries WHERE owner_id = ?", owner)
	if err != nil {
		return 0, core.WrapStorage("clear entries", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, core.WrapStorage("clear entries", err)
	}
	return n, nil
}

func (r *SQLiteRepository) Totals(ctx context.Context, owner int64, f core.Filter) (core.Totals, error) {
	where, args := sqlbuild.SQLite.Where(owner, f)
	var income, expense int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(CASE WHEN amount_cents > 0 THEN amount_cents ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN amount_cents < 0 THEN amount_cents ELSE 0 END), 0)
		 FROM entries WHERE `+where, args...).Scan(&income, &expense)
	if err != nil {
		return core.Totals{}, core.WrapStorage("totals", err)
	}
	return core.NewTotals(income, expense), nil
}

func (r *SQLiteRepository) CreateUser(ctx context.Context, email, passwordHash string, isAdmin bool) (core.User, error) {
	now := time.Now().UTC().Truncate(time.Second)
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO users (email, password_hash, is_admin, created_at) VALUES (?, ?, ?, ?)",
		email, passwordHash, boolToInt(isAdmin), now.Unix())
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return core.User{}, ErrEmailTaken
		}
		return core.User{}, core.WrapStorage("create user", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.User{}, core.WrapStorage("create user", err)
	}
	return core.User{ID: id, Email: email, PasswordHash: passwordHash, IsAdmin: isAdmin, CreatedAt: now}, nil
}

func (r *SQLiteRepository) UserByEmail(ctx context.Context, email string) (core.User, error) {
	return r.userWhere(ctx, "email = ?", email)
}

func (r *SQLiteRepository) UserByID(ctx context.Context, id int64) (core.User, error) {
	return r.userWhere(ctx, "id = ?", id)
}

func (r *SQLiteRepository) userWhere(ctx context.Context, cond string, arg any) (core.User, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT id, email, password_hash, is_admin, created_at FROM users WHERE "+cond, arg)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, core.ErrNotFound
	}
	if err != nil {
		return core.User{}, core.WrapStorage("get user", err)
	}
	return u, nil
}

func (r *SQLiteRepository) ListUsers(ctx context.Context) ([]core.User, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, email, password_hash, is_admin, created_at FROM users ORDER BY id")
	if err != nil {
		return nil, core.WrapStorage("list users", err)
	}
	defer rows.Close()

	var users []core.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, core.WrapStorage("list users", err)
		}
		users = append(users, u)
	}
	return users, core.WrapStorage("list users", rows.Err())
}

func (r *SQLiteRepository) SetAdmin(ctx context.Context, id int64, isAdmin bool) error {
	res, err := r.db.ExecContext(ctx, "UPDATE users SET is_admin = ? WHERE id = ?", boolToInt(isAdmin), id)
	if err != nil {
		return core.WrapStorage("set admin", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (core.Entry, error) {
	var (
		e       core.Entry
		created int64
	)
	if err := s.Scan(&e.ID, &e.Owner, &e.Date, &e.Category, &e.Amount.Cents, &e.Note, &created); err != nil {
		return core.Entry{}, err
	}
	e.CreatedAt = time.Unix(created, 0).UTC()
	return e, nil
}

func scanUser(s scanner) (core.User, error) {
	var (
		u       core.User
		isAdmin int64
		created int64
	)
	if err := s.Scan(&u.ID, &u.Email, &u.PasswordHash, &isAdmin, &created); err != nil {
		return core.User{}, err
	}
	u.IsAdmin = isAdmin != 0
	u.CreatedAt = time.Unix(created, 0).UTC()
	return u, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
