// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Namath Provider Contributors

// Package store provides a PostgreSQL implementation of the cart store.
package store

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"

	"github.com/jancy-plugins/namath-provider/internal/cart"
	"github.com/jancy-plugins/namath-provider/internal/messaging"
)

// poolIface is the subset of pgxpool.Pool the store uses. pgxmock satisfies it.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Compile-time interface checks.
var (
	_ cart.Store               = (*PostgresStore)(nil)
	_ messaging.SignalRecorder = (*PostgresStore)(nil)
)

const cartColumns = `id, approval, is_waiting, is_error, responding_user, created_at, updated_at, expires_at, payload`

// PostgresStore is an append-only cart log in PostgreSQL. Like the memory
// store it never deletes rows; the newest row for an id is authoritative.
type PostgresStore struct {
	pool   poolIface
	closer func()
	logger *slog.Logger
}

// NewPostgresStore wraps an existing pool.
func NewPostgresStore(pool poolIface, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{pool: pool, closer: func() {}, logger: logger}
}

// Open connects to the database at dsn.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, oops.Code("CART_STORE_CONNECT_FAILED").Wrap(err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, oops.Code("CART_STORE_CONNECT_FAILED").With("operation", "ping").Wrap(err)
	}
	s := NewPostgresStore(pool, logger)
	s.closer = pool.Close
	return s, nil
}

// Close releases the connection pool if the store opened it.
func (s *PostgresStore) Close() {
	s.closer()
}

// Record appends a cart row.
func (s *PostgresStore) Record(ctx context.Context, c cart.Cart) error {
	if err := c.Validate(); err != nil {
		return err
	}

	// RETURNING runs against the pre-insert snapshot, so prior excludes this row.
	var prior int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO carts (`+cartColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING (SELECT COUNT(*) FROM carts c WHERE c.id = $1)`,
		string(c.ID),
		c.Approval.String(),
		c.IsWaiting,
		c.IsError,
		c.RespondingUser,
		c.CreatedAt,
		c.UpdatedAt,
		c.ExpiresAt,
		[]byte(c.Payload),
	).Scan(&prior)
	if err != nil {
		return wrapPgError(err, "record cart", c.ID)
	}
	if prior > 0 {
		s.logger.WarnContext(ctx, "duplicate cart id recorded", "cart_id", string(c.ID), "prior_records", prior)
	}
	return nil
}

// Find returns the newest row for id.
func (s *PostgresStore) Find(ctx context.Context, id cart.ID) (cart.Cart, bool, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+cartColumns+` FROM carts WHERE id = $1 ORDER BY seq DESC LIMIT 1`,
		string(id))
	c, err := scanCart(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return cart.Cart{}, false, nil
	}
	if err != nil {
		return cart.Cart{}, false, wrapPgError(err, "find cart", id)
	}
	return c, true, nil
}

// Resolve applies a decision to the newest row for the decision's cart when
// that row is still waiting.
func (s *PostgresStore) Resolve(ctx context.Context, d cart.Decision) (cart.Cart, bool, error) {
	if err := d.Validate(); err != nil {
		return cart.Cart{}, false, err
	}
	decidedAt := d.DecidedAt
	if decidedAt.IsZero() {
		decidedAt = time.Now()
	}

	row := s.pool.QueryRow(ctx,
		`UPDATE carts
		 SET approval = $2, is_waiting = FALSE, is_error = $3, responding_user = $4, updated_at = $5
		 WHERE seq = (SELECT seq FROM carts WHERE id = $1 ORDER BY seq DESC LIMIT 1)
		   AND is_waiting
		 RETURNING `+cartColumns,
		string(d.CartID),
		d.Approval.String(),
		d.IsError,
		d.RespondingUser,
		decidedAt,
	)
	c, err := scanCart(row)
	if errors.Is(err, pgx.ErrNoRows) {
		// Either the cart is unknown or its newest row is already decided.
		if _, found, findErr := s.Find(ctx, d.CartID); findErr != nil || !found {
			return cart.Cart{}, false, findErr
		}
		return cart.Cart{}, true, cart.AlreadyDecided(d.CartID)
	}
	if err != nil {
		return cart.Cart{}, false, wrapPgError(err, "resolve cart", d.CartID)
	}
	return c, true, nil
}

// Len counts all rows.
func (s *PostgresStore) Len(ctx context.Context) (int, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM carts`).Scan(&n); err != nil {
		return 0, wrapPgError(err, "count carts", "")
	}
	return int(n), nil
}

// RecordSignal persists a bump, expire, or test signal. Failures are logged;
// signals are best-effort.
func (s *PostgresStore) RecordSignal(ctx context.Context, sig messaging.Signal) {
	var cartID *string
	if sig.Cart != nil {
		id := string(sig.Cart.ID)
		cartID = &id
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO cart_signals (kind, cart_id, created_at) VALUES ($1, $2, $3)`,
		string(sig.Kind), cartID, sig.At)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to persist cart signal",
			"signal", string(sig.Kind),
			"error", err)
	}
}

func scanCart(row pgx.Row) (cart.Cart, error) {
	var (
		c        cart.Cart
		id       string
		approval string
		payload  []byte
	)
	if err := row.Scan(&id, &approval, &c.IsWaiting, &c.IsError, &c.RespondingUser,
		&c.CreatedAt, &c.UpdatedAt, &c.ExpiresAt, &payload); err != nil {
		return cart.Cart{}, err //nolint:wrapcheck // callers wrap with operation context
	}
	parsed, err := cart.ParseApproval(approval)
	if err != nil {
		return cart.Cart{}, oops.Code("CART_ROW_CORRUPT").With("cart_id", id).Wrap(err)
	}
	c.ID = cart.ID(id)
	c.Approval = parsed
	if payload != nil {
		c.Payload = payload
	}
	return c, nil
}

// wrapPgError attaches an error code, reporting a missing schema distinctly.
func wrapPgError(err error, operation string, id cart.ID) error {
	if _, coded := oops.AsOops(err); coded {
		return err
	}
	builder := oops.With("operation", operation)
	if id != "" {
		builder = builder.With("cart_id", string(id))
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UndefinedTable {
		return builder.Code("CART_STORE_NOT_MIGRATED").Hint("run the migrate command").Wrap(err)
	}
	return builder.Code("CART_STORE_FAILED").Wrap(err)
}
