package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid status transition")
)

type Repo struct{ DB *pgxpool.Pool }

const productColumns = `id, COALESCE(sku, ''), name, price, stock, visible, created_at, updated_at`

const orderColumns = `id::text, group_id::text, customer_name, customer_email, phone, city, delivery_type, status,
	product_id, quantity, product_price, delivery_fee, total, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Price, &p.Stock, &p.Visible, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o            Order
		deliveryType string
		status       string
	)
	err := row.Scan(&o.ID, &o.GroupID, &o.CustomerName, &o.CustomerEmail, &o.Phone, &o.City, &deliveryType, &status,
		&o.ProductID, &o.Quantity, &o.ProductPrice, &o.DeliveryFee, &o.Total, &o.CreatedAt, &o.UpdatedAt)
	o.DeliveryType = DeliveryType(deliveryType)
	o.Status = Status(status)
	return o, err
}

// LoadVisibleProducts reads all requested products in one round trip.
// Invisible and unknown ids are simply absent from the result.
func (r *Repo) LoadVisibleProducts(ctx context.Context, ids []string) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+productColumns+` FROM products WHERE id = ANY($1) AND visible`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) ListVisibleProducts(ctx context.Context) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+productColumns+` FROM products WHERE visible ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CityFee looks a city up by exact name; found=false when it is not configured.
func (r *Repo) CityFee(ctx context.Context, name string) (fee decimal.Decimal, found bool, err error) {
	err = r.DB.QueryRow(ctx, `SELECT delivery_fee FROM cities WHERE name = $1`, name).Scan(&fee)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, err
	}
	return fee, true, nil
}

func (r *Repo) GetOrder(ctx context.Context, id string) (Order, error) {
	if uuid.Validate(id) != nil {
		return Order{}, ErrNotFound
	}
	o, err := scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	return o, err
}

func (r *Repo) GetOrderStatus(ctx context.Context, orderID string) (Status, error) {
	if uuid.Validate(orderID) != nil {
		return "", ErrNotFound
	}
	var s string
	err := r.DB.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1`, orderID).Scan(&s)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return Status(s), nil
}

// ListByGroup returns the sibling orders of one checkout in creation order.
func (r *Repo) ListByGroup(ctx context.Context, groupID string) ([]Order, error) {
	if uuid.Validate(groupID) != nil {
		return nil, ErrNotFound
	}
	rows, err := r.DB.Query(ctx, `SELECT `+orderColumns+` FROM orders WHERE group_id = $1 ORDER BY seq`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

// UpdateStatus moves an order to a new status if the transition is allowed.
// It returns the updated order and the status it had before.
func (r *Repo) UpdateStatus(ctx context.Context, orderID string, to Status) (Order, Status, error) {
	if uuid.Validate(orderID) != nil {
		return Order{}, "", ErrNotFound
	}
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, "", err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var from string
	err = tx.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, orderID).Scan(&from)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, "", ErrNotFound
	}
	if err != nil {
		return Order{}, "", err
	}
	if !CanTransition(Status(from), to) {
		return Order{}, Status(from), fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	o, err := scanOrder(tx.QueryRow(ctx, `
		UPDATE orders SET status = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+orderColumns, orderID, string(to)))
	if err != nil {
		return Order{}, Status(from), err
	}
	if err := tx.Commit(ctx); err != nil {
		return Order{}, Status(from), err
	}
	return o, Status(from), nil
}
