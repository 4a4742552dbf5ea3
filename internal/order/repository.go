package order

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"trattoria-be/internal/logger"

	"go.uber.org/zap"
)

type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)

	// GetByIdempotencyKey returns (nil, nil) when no order carries the key.
	GetByIdempotencyKey(ctx context.Context, key string) (*Order, error)

	UpdateStatus(ctx context.Context, id string, status Status) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, o *Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO orders (
			id, number, idempotency_key, customer_name, phone,
			fulfillment, address, total, status, payment_method, paid,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
	`
	_, err = tx.ExecContext(ctx, query,
		o.ID, o.Number, o.IdempotencyKey, o.CustomerName, o.Phone,
		o.Fulfillment, o.Address, o.Total, o.Status, o.PaymentMethod, o.Paid,
		o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	lineQuery := `
		INSERT INTO order_lines (
			id, order_id, item_id, name, quantity, size, unit_price,
			addons, notes, conditional_pricing, included_free_count, total
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	for _, line := range o.Lines {
		addons, err := json.Marshal(line.AddOns)
		if err != nil {
			return fmt.Errorf("encode addons: %w", err)
		}
		_, err = tx.ExecContext(ctx, lineQuery,
			line.ID, o.ID, line.ItemID, line.Name, line.Quantity, line.Size,
			line.UnitPrice, addons, line.Notes,
			line.ConditionalPricing, line.IncludedFreeCount, line.Total,
		)
		if err != nil {
			return fmt.Errorf("insert order line: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	logger.FromCtx(ctx).Info("order persisted",
		zap.String("order_id", o.ID),
		zap.String("number", o.Number),
		zap.Int("lines", len(o.Lines)),
	)
	return nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*Order, error) {
	query := `
		SELECT id, number, idempotency_key, customer_name, phone,
		       fulfillment, address, total, status, payment_method, paid,
		       created_at, updated_at
		FROM orders
		WHERE id = $1
	`
	o, err := r.scanOrder(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := r.loadLines(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *repository) GetByIdempotencyKey(ctx context.Context, key string) (*Order, error) {
	query := `
		SELECT id, number, idempotency_key, customer_name, phone,
		       fulfillment, address, total, status, payment_method, paid,
		       created_at, updated_at
		FROM orders
		WHERE idempotency_key = $1
	`
	o, err := r.scanOrder(r.db.QueryRowContext(ctx, query, key))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := r.loadLines(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id string, status Status) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *repository) scanOrder(row rowScanner) (*Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.Number, &o.IdempotencyKey, &o.CustomerName, &o.Phone,
		&o.Fulfillment, &o.Address, &o.Total, &o.Status, &o.PaymentMethod,
		&o.Paid, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *repository) loadLines(ctx context.Context, o *Order) error {
	query := `
		SELECT id, item_id, name, quantity, size, unit_price,
		       addons, notes, conditional_pricing, included_free_count, total
		FROM order_lines
		WHERE order_id = $1
		ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query, o.ID)
	if err != nil {
		return fmt.Errorf("load lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var line Line
		var addons []byte
		err := rows.Scan(
			&line.ID, &line.ItemID, &line.Name, &line.Quantity, &line.Size,
			&line.UnitPrice, &addons, &line.Notes,
			&line.ConditionalPricing, &line.IncludedFreeCount, &line.Total,
		)
		if err != nil {
			return fmt.Errorf("scan line: %w", err)
		}
		if len(addons) > 0 {
			if err := json.Unmarshal(addons, &line.AddOns); err != nil {
				return fmt.Errorf("decode addons: %w", err)
			}
		}
		o.Lines = append(o.Lines, line)
	}
	return rows.Err()
}
