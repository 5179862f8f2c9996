package db

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jackc/pgx/v5"
)

type CopyCapable interface {
	CopyFrom(ctx context.Context, table string, columns []string, filePath string) (int64, error)
	CopyFromSlice(ctx context.Context, table string, columns []string, length int, next func(int) ([]any, error)) (int64, error)
}

func quoteProtect(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func buildCopyQuery(tableName string, columns []string) string {
	protectedColumns := make([]string, len(columns))
	for i, col := range columns {
		protectedColumns[i] = quoteProtect(col)
	}

	return fmt.Sprintf(
		"COPY %s (%s) FROM STDIN WITH (FORMAT csv, HEADER true)",
		tableName,
		strings.Join(protectedColumns, ", "),
	)
}

func buildInsertQuery(tableName string, columns []string) string {
	protectedColumns := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	for i, col := range columns {
		protectedColumns[i] = quoteProtect(col)
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		tableName,
		strings.Join(protectedColumns, ", "),
		strings.Join(placeholders, ", "),
	)
}

// CopyFromCSVFile streams a CSV file with a header row into table. Postgres
// uses COPY FROM STDIN; SQLite inserts row by row inside one transaction.
func (db *Database) CopyFromCSVFile(ctx context.Context, table string, columns []string, filePath string) (int64, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return 0, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	if db.dialect == SQLite {
		return db.insertCSV(ctx, table, columns, file)
	}

	conn, err := db.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to acquire connection from pool: %w", err)
	}
	defer conn.Release()

	copyQuery := buildCopyQuery(table, columns)
	res, err := conn.Conn().PgConn().CopyFrom(ctx, file, copyQuery)
	if err != nil {
		return 0, fmt.Errorf("failed to copy from CSV file: %w", err)
	}
	return res.RowsAffected(), nil
}

func (db *Database) CopyFrom(ctx context.Context, table string, columns []string, filePath string) (int64, error) {
	return db.CopyFromCSVFile(ctx, table, columns, filePath)
}

// CopyFromSlice bulk-loads length rows produced by next.
func (db *Database) CopyFromSlice(ctx context.Context, table string, columns []string, length int, next func(int) ([]any, error)) (int64, error) {
	if length == 0 {
		return 0, nil
	}

	if db.dialect == SQLite {
		var inserted int64
		query := buildInsertQuery(table, columns)
		err := db.WithTx(ctx, func(tx *sql.Tx) error {
			for i := 0; i < length; i++ {
				values, err := next(i)
				if err != nil {
					return err
				}
				if _, err := tx.ExecContext(ctx, query, values...); err != nil {
					return fmt.Errorf("insert into %s: %w", table, err)
				}
				inserted++
			}
			return nil
		})
		return inserted, err
	}

	copied, err := db.pool.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromSlice(length, next))
	if err != nil {
		return 0, fmt.Errorf("failed to copy into %s: %w", table, err)
	}
	return copied, nil
}

func (db *Database) insertCSV(ctx context.Context, table string, columns []string, file io.Reader) (int64, error) {
	reader := csv.NewReader(file)
	if _, err := reader.Read(); err != nil {
		return 0, fmt.Errorf("read header: %w", err)
	}

	var inserted int64
	query := buildInsertQuery(table, columns)
	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		for {
			row, err := reader.Read()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return err
			}
			if len(row) != len(columns) {
				return fmt.Errorf("row has %d fields, expected %d", len(row), len(columns))
			}

			values := make([]any, len(row))
			for i, value := range row {
				values[i] = value
			}
			if _, err := tx.ExecContext(ctx, query, values...); err != nil {
				return fmt.Errorf("insert into %s: %w", table, err)
			}
			inserted++
		}
	})
	return inserted, err
}
