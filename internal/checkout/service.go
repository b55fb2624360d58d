package checkout

import (
	"context"

	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Notifier mirrors committed orders to the outside world. It runs after the
// commit is durable, so its errors are logged and never surfaced.
type Notifier interface {
	NotifyOrderCreated(ctx context.Context, o orders.Order) error
}

type Result struct {
	GroupID     string
	Orders      []orders.Order
	DeliveryFee decimal.Decimal
	Total       decimal.Decimal
}

type Service struct {
	Validator *Validator
	Committer *Committer
	Notifier  Notifier // optional
	Log       *zap.Logger
}

func (s *Service) Checkout(ctx context.Context, req Request) (Result, error) {
	customer, err := req.Customer()
	if err != nil {
		return Result{}, err
	}
	cart, err := s.Validator.Validate(ctx, req.Items)
	if err != nil {
		return Result{}, err
	}
	created, err := s.Committer.Commit(ctx, cart, customer)
	if err != nil {
		return Result{}, err
	}

	res := Result{GroupID: created[0].GroupID, Orders: created, DeliveryFee: decimal.Zero, Total: decimal.Zero}
	for _, o := range created {
		res.DeliveryFee = res.DeliveryFee.Add(o.DeliveryFee)
		res.Total = res.Total.Add(o.Total)
	}

	log := s.logger().With(zap.String("group_id", res.GroupID))
	if req.Total.Valid && !req.Total.Decimal.Equal(res.Total) {
		log.Info("client total differs from committed total",
			zap.String("client_total", req.Total.Decimal.String()),
			zap.String("total", res.Total.StringFixed(2)))
	}
	log.Info("checkout committed", zap.Int("orders", len(created)), zap.String("total", res.Total.StringFixed(2)))

	s.notify(ctx, log, created)
	return res, nil
}

func (s *Service) notify(ctx context.Context, log *zap.Logger, created []orders.Order) {
	if s.Notifier == nil {
		return
	}
	for _, o := range created {
		if err := s.Notifier.NotifyOrderCreated(ctx, o); err != nil {
			log.Warn("order notification failed", zap.String("order_id", o.ID), zap.Error(err))
		}
	}
}

func (s *Service) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}
