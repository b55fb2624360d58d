package delivery

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-storefront-orders/internal/redisx"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type CityStore interface {
	CityFee(ctx context.Context, name string) (fee decimal.Decimal, found bool, err error)
}

type Quote struct {
	City  string
	Fee   decimal.Decimal
	Known bool // false when Fee is the default for an unconfigured city
}

// Resolver maps a city to its delivery fee. Unknown cities get Default instead
// of an error so checkout never blocks on missing city configuration.
type Resolver struct {
	Cities  CityStore
	Cache   *redis.Client // optional
	Default decimal.Decimal
	Log     *zap.Logger
}

func (r *Resolver) ResolveFee(ctx context.Context, city string) (Quote, error) {
	key := fmt.Sprintf(redisx.KeyCityFee, city)
	if r.Cache != nil {
		if s, ok, err := redisx.Get(ctx, r.Cache, key); err == nil && ok {
			if fee, err := decimal.NewFromString(s); err == nil {
				return Quote{City: city, Fee: fee, Known: true}, nil
			}
		} else if err != nil {
			r.logger().Debug("city fee cache read", zap.String("city", city), zap.Error(err))
		}
	}

	fee, found, err := r.Cities.CityFee(ctx, city)
	if err != nil {
		return Quote{}, fmt.Errorf("lookup delivery fee for %q: %w", city, err)
	}
	if !found {
		return Quote{City: city, Fee: r.Default.Round(2), Known: false}, nil
	}

	fee = fee.Round(2)
	if r.Cache != nil {
		_ = r.Cache.Set(ctx, key, fee.StringFixed(2), redisx.TTLCityFee).Err()
	}
	return Quote{City: city, Fee: fee, Known: true}, nil
}

func (r *Resolver) logger() *zap.Logger {
	if r.Log == nil {
		return zap.NewNop()
	}
	return r.Log
}
