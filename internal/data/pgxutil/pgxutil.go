// Package pgxutil runs native pgx queries on connections borrowed from a database/sql pool.
package pgxutil

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
)

// ErrUnexpectedDriver is returned when the pool was not opened with the pgx stdlib driver.
var ErrUnexpectedDriver = errors.New("pool is not backed by the pgx stdlib driver")

// WithConn borrows one connection from db and hands its *pgx.Conn to fn.
func WithConn(ctx context.Context, db *sql.DB, fn func(*pgx.Conn) error) (err error) {
	sqlConn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("borrow connection: %w", err)
	}
	defer func() {
		if cerr := sqlConn.Close(); cerr != nil && !errors.Is(cerr, sql.ErrConnDone) {
			err = errors.Join(err, fmt.Errorf("return connection: %w", cerr))
		}
	}()

	return sqlConn.Raw(func(driverConn any) error {
		c, ok := driverConn.(*stdlib.Conn)
		if !ok {
			return ErrUnexpectedDriver
		}
		return fn(c.Conn())
	})
}

// Exec runs a single statement.
func Exec(ctx context.Context, db *sql.DB, query string, args ...any) error {
	return WithConn(ctx, db, func(conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, query, args...)
		return err
	})
}

// CollectRows runs query and scans every row into T by column name.
func CollectRows[T any](ctx context.Context, db *sql.DB, query string, args ...any) ([]T, error) {
	var out []T
	err := WithConn(ctx, db, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		out, err = pgx.CollectRows(rows, pgx.RowToStructByName[T])
		return err
	})
	return out, err
}
