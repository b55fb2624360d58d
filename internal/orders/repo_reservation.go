package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrStockExhausted = errors.New("stock exhausted")

// StockExhaustedError reports a conditional decrement that found too little stock.
type StockExhaustedError struct {
	ProductID string
	Requested int
	Available int
}

func (e *StockExhaustedError) Error() string {
	return fmt.Sprintf("stock exhausted for product %s: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}

func (e *StockExhaustedError) Is(target error) bool { return target == ErrStockExhausted }

// ReservationTx is the unit of work a checkout commit runs in. Nothing written
// through it is visible to other readers until the surrounding InTx returns nil.
type ReservationTx interface {
	// LockProducts row-locks the given products in ascending id order.
	LockProducts(ctx context.Context, ids []string) error
	InsertGroup(ctx context.Context, g OrderGroup) error
	InsertOrder(ctx context.Context, o Order) error
	// DecrementStock subtracts qty only while stock stays >= 0 and the product is visible.
	// On failure it returns a *StockExhaustedError.
	DecrementStock(ctx context.Context, productID string, qty int) (remaining int, err error)
}

type ReservationRepo struct{ DB *pgxpool.Pool }

// InTx runs fn in one database transaction; any error from fn rolls everything back.
func (r *ReservationRepo) InTx(ctx context.Context, fn func(tx ReservationTx) error) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&pgReservationTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type pgReservationTx struct{ tx pgx.Tx }

func (t *pgReservationTx) LockProducts(ctx context.Context, ids []string) error {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	var prev string
	for i, id := range sorted {
		if i > 0 && id == prev {
			continue
		}
		prev = id
		var locked string
		err := t.tx.QueryRow(ctx, `SELECT id FROM products WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
		if errors.Is(err, pgx.ErrNoRows) {
			return &StockExhaustedError{ProductID: id}
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (t *pgReservationTx) InsertGroup(ctx context.Context, g OrderGroup) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO order_groups(id, created_at) VALUES ($1, $2)`, g.ID, g.CreatedAt)
	return err
}

func (t *pgReservationTx) InsertOrder(ctx context.Context, o Order) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO orders(id, group_id, customer_name, customer_email, phone, city, delivery_type, status,
		                   product_id, quantity, product_price, delivery_fee, total, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		o.ID, o.GroupID, o.CustomerName, o.CustomerEmail, o.Phone, o.City, string(o.DeliveryType), string(o.Status),
		o.ProductID, o.Quantity, o.ProductPrice, o.DeliveryFee, o.Total, o.CreatedAt, o.UpdatedAt,
	)
	return err
}

func (t *pgReservationTx) DecrementStock(ctx context.Context, productID string, qty int) (int, error) {
	var remaining int
	err := t.tx.QueryRow(ctx, `
		UPDATE products SET stock = stock - $2, updated_at = now()
		WHERE id = $1 AND visible AND stock >= $2
		RETURNING stock`, productID, qty).Scan(&remaining)
	if err == nil {
		return remaining, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}

	var (
		stock   int
		visible bool
	)
	err = t.tx.QueryRow(ctx, `SELECT stock, visible FROM products WHERE id = $1`, productID).Scan(&stock, &visible)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}
	if !visible {
		stock = 0
	}
	return 0, &StockExhaustedError{ProductID: productID, Requested: qty, Available: stock}
}

// IsConflict reports Postgres errors that mean another transaction won a race:
// serialization failure (40001) and deadlock (40P01).
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

// IsNumericOverflow reports a value that does not fit its NUMERIC column.
func IsNumericOverflow(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22003"
}
