package checkout

import (
	"context"
	"errors"
	"time"

	"github.com/ariefcatur/go-storefront-orders/internal/delivery"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ReservationStore interface {
	InTx(ctx context.Context, fn func(tx orders.ReservationTx) error) error
}

type FeeResolver interface {
	ResolveFee(ctx context.Context, city string) (delivery.Quote, error)
}

// Committer turns a validated cart into PENDING orders and stock decrements
// inside a single transaction.
type Committer struct {
	Store ReservationStore
	Fees  FeeResolver
	Now   func() time.Time
	NewID func() string
}

// Commit returns the created orders in cart order. Either every order row and
// every decrement is committed or nothing is.
func (c *Committer) Commit(ctx context.Context, cart ValidatedCart, customer CustomerInfo) ([]orders.Order, error) {
	if len(cart.Lines) == 0 {
		return nil, ErrEmptyCart
	}

	quote, err := c.Fees.ResolveFee(ctx, customer.City)
	if err != nil {
		return nil, &PersistenceError{Op: "resolve delivery fee", Err: err}
	}
	shares, err := delivery.Allocate(quote.Fee, len(cart.Lines))
	if err != nil {
		return nil, &PersistenceError{Op: "allocate delivery fee", Err: err}
	}

	var tooLarge []LineProblem
	for i, line := range cart.Lines {
		if lineTotal(line, shares[i]).GreaterThan(MaxOrderTotal) {
			tooLarge = append(tooLarge, LineProblem{Index: i, ProductID: line.Product.ID,
				Reason: "order total exceeds " + MaxOrderTotal.StringFixed(2)})
		}
	}
	if len(tooLarge) > 0 {
		return nil, &MalformedLineError{Problems: tooLarge}
	}

	// postgres keeps microseconds; truncate so returned rows equal stored rows
	now := c.now().UTC().Truncate(time.Microsecond)
	group := orders.OrderGroup{ID: c.newID(), CreatedAt: now}

	var created []orders.Order
	err = c.Store.InTx(ctx, func(tx orders.ReservationTx) error {
		created = make([]orders.Order, 0, len(cart.Lines))

		if err := tx.LockProducts(ctx, cart.ProductIDs()); err != nil {
			return err
		}
		if err := tx.InsertGroup(ctx, group); err != nil {
			return err
		}
		for i, line := range cart.Lines {
			price := line.Product.Price.Round(2)
			o := orders.Order{
				ID:            c.newID(),
				GroupID:       group.ID,
				CustomerName:  customer.Name,
				CustomerEmail: customer.Email,
				Phone:         customer.Phone,
				City:          customer.City,
				DeliveryType:  customer.DeliveryType,
				Status:        orders.StatusPending,
				ProductID:     line.Product.ID,
				Quantity:      line.Quantity,
				ProductPrice:  price,
				DeliveryFee:   shares[i],
				Total:         lineTotal(line, shares[i]),
				CreatedAt:     now,
				UpdatedAt:     now,
			}
			if err := tx.InsertOrder(ctx, o); err != nil {
				return err
			}
			if _, err := tx.DecrementStock(ctx, line.Product.ID, line.Quantity); err != nil {
				return err
			}
			created = append(created, o)
		}
		return nil
	})
	if err != nil {
		return nil, classifyCommitError(err)
	}
	return created, nil
}

// lineTotal is price x quantity plus the line's delivery fee share, in cents.
func lineTotal(l ValidatedLine, feeShare decimal.Decimal) decimal.Decimal {
	return l.Product.Price.Round(2).Mul(decimal.NewFromInt(int64(l.Quantity))).Add(feeShare).Round(2)
}

func classifyCommitError(err error) error {
	var exhausted *orders.StockExhaustedError
	if errors.As(err, &exhausted) {
		return &ConcurrentStockExhaustionError{
			ProductID: exhausted.ProductID,
			Requested: exhausted.Requested,
			Available: exhausted.Available,
			Err:       err,
		}
	}
	if orders.IsConflict(err) {
		return &ConcurrentStockExhaustionError{Err: err}
	}
	if orders.IsNumericOverflow(err) {
		return &MalformedLineError{Problems: []LineProblem{{Index: -1, Reason: "order amount out of range"}}}
	}
	return &PersistenceError{Op: "commit orders", Err: err}
}

func (c *Committer) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *Committer) newID() string {
	if c.NewID != nil {
		return c.NewID()
	}
	return uuid.NewString()
}
