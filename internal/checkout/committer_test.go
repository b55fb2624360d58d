package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-storefront-orders/internal/delivery"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCommitter(store *memStore) *Committer {
	return &Committer{
		Store: store,
		Fees:  newResolver(),
		Now:   func() time.Time { return time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC) },
	}
}

func validate(t *testing.T, store *memStore, lines ...CartLine) ValidatedCart {
	t.Helper()
	cart, err := (&Validator{Catalog: store}).Validate(context.Background(), lines)
	require.NoError(t, err)
	return cart
}

func TestCommit_twoLineScenario(t *testing.T) {
	store := newMemStore(product("A", "Mug", "100", 5), product("B", "Plate", "50", 3))
	cart := validate(t, store,
		CartLine{ProductID: "A", Quantity: 2, UnitPrice: price("100")},
		CartLine{ProductID: "B", Quantity: 1, UnitPrice: price("50")},
	)

	created, err := newCommitter(store).Commit(context.Background(), cart, customer("Algiers"))
	require.NoError(t, err)
	require.Len(t, created, 2)

	assert.Equal(t, "A", created[0].ProductID)
	assert.Equal(t, "210.00", created[0].Total.StringFixed(2))
	assert.Equal(t, "10.00", created[0].DeliveryFee.StringFixed(2))
	assert.Equal(t, "B", created[1].ProductID)
	assert.Equal(t, "60.00", created[1].Total.StringFixed(2))

	for _, o := range created {
		assert.Equal(t, orders.StatusPending, o.Status)
		assert.Equal(t, created[0].GroupID, o.GroupID)
		assert.Equal(t, "Algiers", o.City)
		assert.Equal(t, orders.DeliveryHome, o.DeliveryType)
	}
	assert.NotEqual(t, created[0].ID, created[1].ID)

	assert.Equal(t, 3, store.stock("A"))
	assert.Equal(t, 2, store.stock("B"))
	assert.Equal(t, 2, store.orderCount())
	require.Len(t, store.groups, 1)
	assert.Equal(t, created[0].GroupID, store.groups[0].ID)
}

func TestCommit_totalsAndFeeSharesAddUp(t *testing.T) {
	store := newMemStore(
		product("A", "Mug", "19.99", 50),
		product("B", "Plate", "5.25", 50),
		product("C", "Bowl", "7.10", 50),
	)
	cart := validate(t, store,
		CartLine{ProductID: "A", Quantity: 3, UnitPrice: price("19.99")},
		CartLine{ProductID: "B", Quantity: 1, UnitPrice: price("5.25")},
		CartLine{ProductID: "C", Quantity: 7, UnitPrice: price("7.10")},
	)

	created, err := newCommitter(store).Commit(context.Background(), cart, customer("Unknownville"))
	require.NoError(t, err)

	feeSum := decimal.Zero
	for i, o := range created {
		line := cart.Lines[i]
		want := line.Product.Price.Mul(decimal.NewFromInt(int64(line.Quantity))).Add(o.DeliveryFee)
		assert.True(t, want.Equal(o.Total), "line %d: %s != %s", i, want, o.Total)
		assert.Equal(t, line.ProductID, o.ProductID)
		feeSum = feeSum.Add(o.DeliveryFee)
	}
	assert.Equal(t, "10.00", feeSum.StringFixed(2), "unknown city falls back to the default fee")
	assert.Equal(t, 47, store.stock("A"))
	assert.Equal(t, 49, store.stock("B"))
	assert.Equal(t, 43, store.stock("C"))
}

func TestCommit_usesAuthoritativePriceNotClientPrice(t *testing.T) {
	store := newMemStore(product("A", "Mug", "100.00", 5))
	cart := validate(t, store, CartLine{ProductID: "A", Quantity: 1, UnitPrice: price("99.99")})

	created, err := newCommitter(store).Commit(context.Background(), cart, customer("Oran"))
	require.NoError(t, err)
	assert.Equal(t, "100.00", created[0].ProductPrice.StringFixed(2))
	assert.Equal(t, "110.00", created[0].Total.StringFixed(2))
}

func TestCommit_stockTakenAfterValidation(t *testing.T) {
	store := newMemStore(product("A", "Mug", "100", 2))
	cart := validate(t, store, CartLine{ProductID: "A", Quantity: 2, UnitPrice: price("100")})

	store.setStock("A", 1) // someone else bought one in between

	created, err := newCommitter(store).Commit(context.Background(), cart, customer("Algiers"))
	assert.Nil(t, created)

	var conflict *ConcurrentStockExhaustionError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "A", conflict.ProductID)
	assert.Equal(t, 1, conflict.Available)
	assert.Equal(t, 1, store.stock("A"))
	assert.Zero(t, store.orderCount())
	assert.Empty(t, store.groups)
}

func TestCommit_failureOnSecondLineLeavesNothingBehind(t *testing.T) {
	store := newMemStore(product("A", "Mug", "10", 5), product("B", "Plate", "20", 5), product("C", "Bowl", "30", 5))
	cart := validate(t, store,
		CartLine{ProductID: "A", Quantity: 1, UnitPrice: price("10")},
		CartLine{ProductID: "B", Quantity: 5, UnitPrice: price("20")},
		CartLine{ProductID: "C", Quantity: 1, UnitPrice: price("30")},
	)
	store.setStock("B", 4)

	_, err := newCommitter(store).Commit(context.Background(), cart, customer("Algiers"))

	var conflict *ConcurrentStockExhaustionError
	require.ErrorAs(t, err, &conflict)
	assert.Zero(t, store.orderCount())
	assert.Equal(t, 5, store.stock("A"))
	assert.Equal(t, 4, store.stock("B"))
	assert.Equal(t, 5, store.stock("C"))
}

func TestCommit_storageFailureIsPersistenceError(t *testing.T) {
	store := newMemStore(product("A", "Mug", "10", 5), product("B", "Plate", "20", 5))
	cart := validate(t, store,
		CartLine{ProductID: "A", Quantity: 1, UnitPrice: price("10")},
		CartLine{ProductID: "B", Quantity: 1, UnitPrice: price("20")},
	)
	store.decrementErr["B"] = errors.New("disk full")

	_, err := newCommitter(store).Commit(context.Background(), cart, customer("Algiers"))

	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "commit orders", perr.Op)
	assert.Zero(t, store.orderCount())
	assert.Equal(t, 5, store.stock("A"))
}

func TestCommit_commitTimeFailureIsPersistenceError(t *testing.T) {
	store := newMemStore(product("A", "Mug", "10", 5))
	cart := validate(t, store, CartLine{ProductID: "A", Quantity: 1, UnitPrice: price("10")})
	store.commitErr = context.DeadlineExceeded

	_, err := newCommitter(store).Commit(context.Background(), cart, customer("Algiers"))

	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, store.orderCount())
	assert.Equal(t, 5, store.stock("A"))
}

func TestCommit_serializationFailureIsConcurrentExhaustion(t *testing.T) {
	store := newMemStore(product("A", "Mug", "10", 5))
	cart := validate(t, store, CartLine{ProductID: "A", Quantity: 1, UnitPrice: price("10")})
	store.commitErr = &pgconn.PgError{Code: "40001", Message: "could not serialize access"}

	_, err := newCommitter(store).Commit(context.Background(), cart, customer("Algiers"))

	var conflict *ConcurrentStockExhaustionError
	assert.ErrorAs(t, err, &conflict)
}

func TestCommit_totalBeyondStorableAmountWritesNothing(t *testing.T) {
	store := newMemStore(product("A", "Mug", "10", 5), product("B", "Yacht", "9999999999.99", 1))
	cart := validate(t, store,
		CartLine{ProductID: "A", Quantity: 1, UnitPrice: price("10")},
		CartLine{ProductID: "B", Quantity: 1, UnitPrice: price("9999999999.99")},
	)

	_, err := newCommitter(store).Commit(context.Background(), cart, customer("Algiers"))

	var malformed *MalformedLineError
	require.ErrorAs(t, err, &malformed)
	require.Len(t, malformed.Problems, 1)
	assert.Equal(t, 1, malformed.Problems[0].Index)
	assert.Zero(t, store.orderCount())
	assert.Equal(t, 5, store.stock("A"))
	assert.Equal(t, 1, store.stock("B"))
}

func TestCommit_numericOverflowIsClientError(t *testing.T) {
	store := newMemStore(product("A", "Mug", "10", 5))
	cart := validate(t, store, CartLine{ProductID: "A", Quantity: 1, UnitPrice: price("10")})
	store.commitErr = &pgconn.PgError{Code: "22003", Message: "numeric field overflow"}

	_, err := newCommitter(store).Commit(context.Background(), cart, customer("Algiers"))

	var malformed *MalformedLineError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, []string{"order amount out of range"}, malformed.Details())
}

func TestCommit_feeLookupFailureIsPersistenceError(t *testing.T) {
	store := newMemStore(product("A", "Mug", "10", 5))
	cart := validate(t, store, CartLine{ProductID: "A", Quantity: 1, UnitPrice: price("10")})
	c := newCommitter(store)
	c.Fees = failingFees{}

	_, err := c.Commit(context.Background(), cart, customer("Algiers"))

	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "resolve delivery fee", perr.Op)
	assert.Equal(t, 5, store.stock("A"))
}

func TestCommit_concurrentCheckoutsForLastUnits(t *testing.T) {
	store := newMemStore(product("A", "Mug", "100", 3))
	line := CartLine{ProductID: "A", Quantity: 3, UnitPrice: price("100")}

	// both carts pass validation before either commits
	carts := []ValidatedCart{validate(t, store, line), validate(t, store, line)}
	c := newCommitter(store)

	var (
		wg      sync.WaitGroup
		start   = make(chan struct{})
		results = make([]error, len(carts))
	)
	for i := range carts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, results[i] = c.Commit(context.Background(), carts[i], customer("Algiers"))
		}(i)
	}
	close(start)
	wg.Wait()

	var wins, conflicts int
	for _, err := range results {
		var conflict *ConcurrentStockExhaustionError
		switch {
		case err == nil:
			wins++
		case errors.As(err, &conflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, conflicts)
	assert.Equal(t, 0, store.stock("A"))
	assert.Equal(t, 1, store.orderCount())
}

func TestCommit_emptyCart(t *testing.T) {
	_, err := newCommitter(newMemStore()).Commit(context.Background(), ValidatedCart{}, customer("Algiers"))
	assert.ErrorIs(t, err, ErrEmptyCart)
}

type failingFees struct{}

func (failingFees) ResolveFee(context.Context, string) (delivery.Quote, error) {
	return delivery.Quote{}, errors.New("cities table unavailable")
}
