package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	database "tarediiran-industries.com/ticketing-services/internal/db"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("already exists")
	ErrReferenced          = errors.New("referenced by other records")
	ErrInvalid             = errors.New("invalid")
	ErrSeatTaken           = errors.New("seat already taken")
	ErrSoldOut             = errors.New("no seats available")
	ErrNotBookable         = errors.New("schedule is not open for booking")
	ErrIdempotencyMismatch = errors.New("idempotency key reused with a different request")
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

type Page struct {
	Limit  int
	Offset int
}

func (page Page) normalize() Page {
	if page.Limit <= 0 {
		page.Limit = DefaultPageSize
	}
	if page.Limit > MaxPageSize {
		page.Limit = MaxPageSize
	}
	if page.Offset < 0 {
		page.Offset = 0
	}
	return page
}

type Store struct {
	db  *database.Database
	now func() time.Time
}

func New(db *database.Database) *Store {
	return &Store{db: db, now: time.Now}
}

// WithClock replaces the time source used for created/booked timestamps.
func (store *Store) WithClock(now func() time.Time) *Store {
	store.now = now
	return store
}

func (store *Store) DB() *database.Database {
	return store.db
}

func (store *Store) Ping(ctx context.Context) error {
	return store.db.Ping(ctx)
}

func (store *Store) timestamp() time.Time {
	return normalizeTime(store.now())
}

// normalizeTime keeps every stored instant in UTC at second precision so
// SQLite's textual timestamps order the same way Postgres timestamps do.
func normalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

func normalizeTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	normalized := normalizeTime(*t)
	return &normalized
}

type rowScanner interface {
	Scan(dest ...any) error
}

func classify(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	case database.IsUniqueViolation(err):
		return fmt.Errorf("%s: %w", what, ErrConflict)
	case database.IsForeignKeyViolation(err):
		return fmt.Errorf("%s: %w", what, ErrReferenced)
	case database.IsCheckViolation(err):
		return fmt.Errorf("%s: %w", what, ErrInvalid)
	}
	return fmt.Errorf("%s: %w", what, err)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvalid)
}

func execAffecting(ctx context.Context, conn database.DBTX, what string, query string, args ...any) error {
	result, err := conn.ExecContext(ctx, query, args...)
	if err != nil {
		return classify(err, what)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return classify(err, what)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}

// whereClause accumulates AND-ed conditions. Conditions use ? markers which
// are rewritten to numbered placeholders in the order they are added.
type whereClause struct {
	conditions []string
	args       []any
}

func (where *whereClause) add(condition string, values ...any) {
	for _, value := range values {
		where.args = append(where.args, value)
		condition = strings.Replace(condition, "?", fmt.Sprintf("$%d", len(where.args)), 1)
	}
	where.conditions = append(where.conditions, condition)
}

func (where *whereClause) sql() string {
	if len(where.conditions) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(where.conditions, " AND ")
}

func (where *whereClause) paginate(page Page) string {
	page = page.normalize()
	where.args = append(where.args, page.Limit, page.Offset)
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(where.args)-1, len(where.args))
}

func likePattern(query string) string {
	return "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
}

func nullableInt64(value *int64) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *value, Valid: true}
}

func int64Ptr(value sql.NullInt64) *int64 {
	if !value.Valid {
		return nil
	}
	v := value.Int64
	return &v
}

func nullableTime(value *time.Time) sql.NullTime {
	if value == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: normalizeTime(*value), Valid: true}
}

func timePtr(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	v := value.Time.UTC()
	return &v
}
