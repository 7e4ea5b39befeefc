// Package record is the persistence collaborator shared by users, stores and
// items: one generic Postgres-backed store parameterised by a table layout.
package record

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record already exists")
)

type Store[T any] interface {
	FindByName(ctx context.Context, name string) (T, error)
	FindByID(ctx context.Context, id int64) (T, error)
	FindAll(ctx context.Context) ([]T, error)
	Save(ctx context.Context, rec *T) error
	Delete(ctx context.Context, rec T) error
}

type Scanner interface {
	Scan(dest ...any) error
}

// Table describes how T maps onto a table. Columns excludes the id column;
// Values must return one value per column in the same order.
type Table[T any] struct {
	Name       string
	NameColumn string
	Columns    []string
	Scan       func(row Scanner) (T, error)
	Values     func(rec T) []any
	ID         func(rec T) int64
	SetID      func(rec *T, id int64)
}

type PostgresStore[T any] struct {
	db    *sql.DB
	table Table[T]
}

func NewPostgresStore[T any](db *sql.DB, table Table[T]) *PostgresStore[T] {
	return &PostgresStore[T]{db: db, table: table}
}

func (s *PostgresStore[T]) selectList() string {
	return "id, " + strings.Join(s.table.Columns, ", ")
}

func (s *PostgresStore[T]) FindByName(ctx context.Context, name string) (T, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`, s.selectList(), s.table.Name, s.table.NameColumn)
	return s.queryOne(ctx, query, name)
}

func (s *PostgresStore[T]) FindByID(ctx context.Context, id int64) (T, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, s.selectList(), s.table.Name)
	return s.queryOne(ctx, query, id)
}

func (s *PostgresStore[T]) queryOne(ctx context.Context, query string, arg any) (T, error) {
	var zero T
	rec, err := s.table.Scan(s.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return zero, ErrNotFound
		}
		return zero, fmt.Errorf("query %s: %w", s.table.Name, err)
	}

	return rec, nil
}

func (s *PostgresStore[T]) FindAll(ctx context.Context) ([]T, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY id ASC`, s.selectList(), s.table.Name)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", s.table.Name, err)
	}
	defer rows.Close()

	records := make([]T, 0)
	for rows.Next() {
		rec, err := s.table.Scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", s.table.Name, err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", s.table.Name, err)
	}

	return records, nil
}

// Save inserts rec when its id is zero and updates it otherwise. The assigned
// id is written back on insert.
func (s *PostgresStore[T]) Save(ctx context.Context, rec *T) error {
	if s.table.ID(*rec) == 0 {
		return s.insert(ctx, rec)
	}
	return s.update(ctx, *rec)
}

func (s *PostgresStore[T]) insert(ctx context.Context, rec *T) error {
	placeholders := make([]string, len(s.table.Columns))
	for i := range s.table.Columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) RETURNING id`,
		s.table.Name, strings.Join(s.table.Columns, ", "), strings.Join(placeholders, ", "))

	var id int64
	if err := s.db.QueryRowContext(ctx, query, s.table.Values(*rec)...).Scan(&id); err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert %s: %w", s.table.Name, err)
	}
	s.table.SetID(rec, id)

	return nil
}

func (s *PostgresStore[T]) update(ctx context.Context, rec T) error {
	assignments := make([]string, len(s.table.Columns))
	for i, column := range s.table.Columns {
		assignments[i] = fmt.Sprintf("%s = $%d", column, i+2)
	}

	query := fmt.Sprintf(`UPDATE %s SET %s WHERE id = $1`, s.table.Name, strings.Join(assignments, ", "))
	args := append([]any{s.table.ID(rec)}, s.table.Values(rec)...)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("update %s: %w", s.table.Name, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

func (s *PostgresStore[T]) Delete(ctx context.Context, rec T) error {
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.table.Name), s.table.ID(rec))
	if err != nil {
		return fmt.Errorf("delete %s: %w", s.table.Name, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
