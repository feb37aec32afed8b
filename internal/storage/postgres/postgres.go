// Package postgres implements storage.Store on PostgreSQL through the pgx
// database/sql driver. The schema is managed by goose.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"haushaltsbuch/internal/core"
	"haushaltsbuch/internal/storage"
	"haushaltsbuch/internal/storage/sqlbuild"
)

//go:embed migrations/*.sql
var migrations embed.FS

const (
	uniqueViolation = "23505"
	entryColumns    = "id, owner_id, entry_date, category, amount_cents, note, created_at"
	userColumns     = "id, email, password_hash, is_admin, created_at"
)

type Repository struct {
	db *sql.DB
}

var _ storage.Store = (*Repository)(nil)

// Open connects to dsn, verifies the connection and applies migrations.
func Open(ctx context.Context, dsn string) (*Repository, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return New(db), nil
}

// New wraps an existing handle without migrating it.
func New(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, "migrations")
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) Ping(ctx context.Context) error {
	return core.WrapStorage("ping", r.db.PingContext(ctx))
}

func (r *Repository) Insert(ctx context.Context, owner int64, in core.EntryInput) (int64, error) {
	query := `INSERT INTO entries (owner_id, entry_date, category, amount_cents, note)
	          VALUES ($1, $2, $3, $4, $5)
	          RETURNING id`

	var id int64
	err := r.db.QueryRowContext(ctx, query, owner, in.Date, in.Category, in.Amount.Cents, in.Note).Scan(&id)
	if err != nil {
		return 0, core.WrapStorage("insert entry", err)
	}
	return id, nil
}

func (r *Repository) Fetch(ctx context.Context, owner int64, f core.Filter) ([]core.Entry, error) {
	where, args := sqlbuild.Postgres.Where(owner, f)
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+entryColumns+" FROM entries WHERE "+where+" ORDER BY id DESC", args...)
	if err != nil {
		return nil, core.WrapStorage("fetch entries", err)
	}
	defer rows.Close()

	entries := []core.Entry{}
	for rows.Next() {
		var e core.Entry
		if err := rows.Scan(&e.ID, &e.Owner, &e.Date, &e.Category, &e.Amount.Cents, &e.Note, &e.CreatedAt); err != nil {
			return nil, core.WrapStorage("fetch entries", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, core.WrapStorage("fetch entries", err)
	}
	return entries, nil
}

func (r *Repository) Get(ctx context.Context, owner, id int64) (core.Entry, error) {
	var e core.Entry
	err := r.db.QueryRowContext(ctx,
		"SELECT "+entryColumns+" FROM entries WHERE id = $1 AND owner_id = $2", id, owner).
		Scan(&e.ID, &e.Owner, &e.Date, &e.Category, &e.Amount.Cents, &e.Note, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Entry{}, core.ErrNotFound
	}
	if err != nil {
		return core.Entry{}, core.WrapStorage("get entry", err)
	}
	return e, nil
}

func (r *Repository) Update(ctx context.Context, owner, id int64, in core.EntryInput) error {
	query := `UPDATE entries SET entry_date = $1, category = $2, amount_cents = $3, note = $4
	          WHERE id = $5 AND owner_id = $6`
	_, err := r.db.ExecContext(ctx, query, in.Date, in.Category, in.Amount.Cents, in.Note, id, owner)
	return core.WrapStorage("update entry", err)
}

func (r *Repository) Delete(ctx context.Context, owner, id int64) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM entries WHERE id = $1 AND owner_id = $2", id, owner)
	return core.WrapStorage("delete entry", err)
}

func (r *Repository) Clear(ctx context.Context, owner int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM entries WHERE owner_id = $1", owner)
	if err != nil {
		return 0, core.WrapStorage("clear entries", err)
	}
	n, err := res.RowsAffected()
	return n, core.WrapStorage("clear entries", err)
}

func (r *Repository) Totals(ctx context.Context, owner int64, f core.Filter) (core.Totals, error) {
	where, args := sqlbuild.Postgres.Where(owner, f)
	query := `SELECT COALESCE(SUM(amount_cents) FILTER (WHERE amount_cents > 0), 0),
	                 COALESCE(SUM(amount_cents) FILTER (WHERE amount_cents < 0), 0)
	          FROM entries WHERE ` + where

	var income, expense int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&income, &expense); err != nil {
		return core.Totals{}, core.WrapStorage("totals", err)
	}
	return core.NewTotals(income, expense), nil
}

func (r *Repository) CreateUser(ctx context.Context, email, passwordHash string, isAdmin bool) (core.User, error) {
	query := `INSERT INTO users (email, password_hash, is_admin)
	          VALUES ($1, $2, $3)
	          RETURNING ` + userColumns

	var u core.User
	err := r.db.QueryRowContext(ctx, query, email, passwordHash, isAdmin).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.IsAdmin, &u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return core.User{}, storage.ErrEmailTaken
		}
		return core.User{}, core.WrapStorage("create user", err)
	}
	return u, nil
}

func (r *Repository) UserByEmail(ctx context.Context, email string) (core.User, error) {
	return r.userWhere(ctx, "email = $1", email)
}

func (r *Repository) UserByID(ctx context.Context, id int64) (core.User, error) {
	return r.userWhere(ctx, "id = $1", id)
}

func (r *Repository) userWhere(ctx context.Context, cond string, arg any) (core.User, error) {
	var u core.User
	err := r.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE "+cond, arg).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.IsAdmin, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, core.ErrNotFound
	}
	if err != nil {
		return core.User{}, core.WrapStorage("get user", err)
	}
	return u, nil
}

func (r *Repository) ListUsers(ctx context.Context) ([]core.User, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY id")
	if err != nil {
		return nil, core.WrapStorage("list users", err)
	}
	defer rows.Close()

	var users []core.User
	for rows.Next() {
		var u core.User
		if err := rows.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.IsAdmin, &u.CreatedAt); err != nil {
			return nil, core.WrapStorage("list users", err)
		}
		users = append(users, u)
	}
	return users, core.WrapStorage("list users", rows.Err())
}

func (r *Repository) SetAdmin(ctx context.Context, id int64, isAdmin bool) error {
	res, err := r.db.ExecContext(ctx, "UPDATE users SET is_admin = $1 WHERE id = $2", isAdmin, id)
	if err != nil {
		return core.WrapStorage("set admin", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return core.WrapStorage("set admin", err)
	}
	if n == 0 {
		return fmt.Errorf("user %d: %w", id, core.ErrNotFound)
	}
	return nil
}
