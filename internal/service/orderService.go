package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ticket-office/config"
	"ticket-office/internal/database"
	"ticket-office/internal/entity"
	"ticket-office/internal/payment"

	"github.com/sirupsen/logrus"
)

type orderService struct {
	store           database.Store
	gateway         payment.Gateway
	queue           TaskPublisher
	defaultQuantity int
}

// NewOrderService creates the order orchestrator over the given store,
// payment gateway and notification queue. The queue may be nil; purchases
// then skip the notification step. A nil cfg falls back to a default
// quantity of one ticket.
func NewOrderService(store database.Store, gateway payment.Gateway, queue TaskPublisher, cfg *config.OrderConfig) OrderService {
	defaultQuantity := entity.MinQuantity
	if cfg != nil && cfg.DefaultQuantity > 0 {
		defaultQuantity = cfg.DefaultQuantity
	}

	return &orderService{
		store:           store,
		gateway:         gateway,
		queue:           queue,
		defaultQuantity: defaultQuantity,
	}
}

// PurchaseTickets runs the purchase as a single unit of work: eligibility
// check, inventory decrement, payment, order insert and notification enqueue
// all succeed together or leave no trace. An omitted quantity means one
// ticket. A repeated request with the same idempotency key returns the
// original order without charging again.
func (s *orderService) PurchaseTickets(ctx context.Context, req *PurchaseRequest) (*entity.Order, error) {
	quantity := req.Quantity
	if quantity == 0 {
		quantity = s.defaultQuantity
	}

	email := entity.NormalizeEmail(req.CustomerEmail)
	if verr := entity.ValidateCustomer(email, req.CustomerName, quantity); verr != nil {
		return nil, verr
	}

	if req.IdempotencyKey != "" {
		existing, err := s.store.Orders().GetByIdempotencyKey(ctx, req.IdempotencyKey)
		if err == nil {
			logrus.WithFields(logrus.Fields{
				"order_id":        existing.ID,
				"idempotency_key": req.IdempotencyKey,
			}).Info("Purchase replayed, returning existing order")
			return s.store.Orders().GetWithEvent(ctx, existing.ID)
		}
		if !errors.Is(err, entity.ErrOrderNotFound) {
			return nil, fmt.Errorf("failed to check idempotency key: %w", err)
		}
	}

	var order *entity.Order
	err := s.store.WithinTx(ctx, func(tx database.Store) error {
		event, err := tx.Events().GetByID(ctx, req.EventID)
		if err != nil {
			return err
		}
		if err := event.Purchasable(time.Now()); err != nil {
			return err
		}

		event, err = tx.Events().DecrementAvailable(ctx, req.EventID, quantity)
		if err != nil {
			return err
		}

		total := entity.TotalAmountFor(event.UnitPrice, quantity)
		charge, err := s.gateway.Charge(ctx, &payment.ChargeRequest{
			Amount:         total,
			CustomerEmail:  email,
			Description:    fmt.Sprintf("%d ticket(s) for %s", quantity, event.Name),
			IdempotencyKey: req.IdempotencyKey,
		})
		if err != nil {
			return &entity.PaymentError{Reason: err.Error(), Err: err}
		}

		now := time.Now()
		o := &entity.Order{
			EventID:       event.ID,
			CustomerEmail: email,
			CustomerName:  strings.TrimSpace(req.CustomerName),
			Quantity:      quantity,
			UnitPrice:     event.UnitPrice,
			TotalAmount:   total,
			Status:        entity.OrderStatusConfirmed,
			ChargeID:      &charge.ID,
			ConfirmedAt:   &now,
		}
		if req.IdempotencyKey != "" {
			key := req.IdempotencyKey
			o.IdempotencyKey = &key
		}

		if err := tx.Orders().Create(ctx, o); err != nil {
			// The charge already went through; give the money back
			// before the unit of work unwinds.
			s.compensateCharge(ctx, charge.ID)
			return err
		}

		if s.queue != nil {
			if err := s.queue.Publish(ctx, confirmationTask(o)); err != nil {
				s.compensateCharge(ctx, charge.ID)
				return &entity.EnqueueError{Err: err}
			}
		}

		o.Event = event
		order = o
		return nil
	})

	if errors.Is(err, entity.ErrIdempotencyKeyTaken) {
		// A concurrent request with the same key won the insert race.
		// Its inventory and charge stand; ours were rolled back.
		winner, err := s.store.Orders().GetByIdempotencyKey(ctx, req.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		return s.store.Orders().GetWithEvent(ctx, winner.ID)
	}
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"order_id": order.ID,
		"event_id": order.EventID,
		"quantity": order.Quantity,
		"total":    order.TotalAmount.String(),
	}).Info("Order confirmed")

	return order, nil
}

// compensateCharge refunds a charge whose order never materialized. Failure
// is logged, not returned; the purchase error is the one the caller needs.
func (s *orderService) compensateCharge(ctx context.Context, chargeID string) {
	if _, err := s.gateway.Refund(ctx, chargeID); err != nil {
		logrus.WithFields(logrus.Fields{
			"charge_id": chargeID,
		}).Errorf("Failed to refund orphaned charge: %v", err)
	}
}

// CancelOrder cancels a confirmed order: refund, inventory return and status
// flip happen in one unit of work with the order row locked, so concurrent
// cancellations of the same order refund at most once. A refund failure rolls
// everything back and leaves the order confirmed.
func (s *orderService) CancelOrder(ctx context.Context, orderID int64, reason string) (*entity.Order, error) {
	var order *entity.Order
	err := s.store.WithinTx(ctx, func(tx database.Store) error {
		o, err := tx.Orders().GetWithLock(ctx, orderID)
		if err != nil {
			return err
		}
		if o.Status != entity.OrderStatusConfirmed {
			return entity.ErrInvalidOrderStatus
		}

		if o.ChargeID != nil {
			if _, err := s.gateway.Refund(ctx, *o.ChargeID); err != nil {
				return &entity.RefundError{Reason: err.Error(), Err: err}
			}
		}

		event, err := tx.Events().IncrementAvailable(ctx, o.EventID, o.Quantity)
		if err != nil {
			return err
		}
		if err := tx.Orders().UpdateStatus(ctx, o.ID, entity.OrderStatusCancelled); err != nil {
			return err
		}

		o.Status = entity.OrderStatusCancelled
		o.Event = event
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"order_id": order.ID,
		"event_id": order.EventID,
		"reason":   reason,
	}).Info("Order cancelled")

	// The cancellation itself is committed; the notification is best
	// effort.
	if s.queue != nil {
		if err := s.queue.Publish(ctx, cancellationTask(order, reason)); err != nil {
			logrus.Errorf("Failed to enqueue cancellation notification for order %d: %v", order.ID, err)
		}
	}

	return order, nil
}

func (s *orderService) GetOrder(ctx context.Context, id int64) (*entity.Order, error) {
	return s.store.Orders().GetByID(ctx, id)
}

func (s *orderService) GetOrderWithEvent(ctx context.Context, id int64) (*entity.Order, error) {
	return s.store.Orders().GetWithEvent(ctx, id)
}

func (s *orderService) GetCustomerOrders(ctx context.Context, email string) ([]*entity.Order, error) {
	return s.store.Orders().GetByCustomerEmail(ctx, entity.NormalizeEmail(email))
}

func (s *orderService) GetRecentOrders(ctx context.Context, limit int) ([]*entity.Order, error) {
	return s.store.Orders().GetRecent(ctx, limit)
}

// MarkRefunded flips a confirmed order to refunded without touching inventory
// or the gateway. Meant for refunds settled manually with the provider. The
// row is locked so a concurrent cancellation cannot slip between the status
// check and the write.
func (s *orderService) MarkRefunded(ctx context.Context, orderID int64) (*entity.Order, error) {
	var order *entity.Order
	err := s.store.WithinTx(ctx, func(tx database.Store) error {
		o, err := tx.Orders().GetWithLock(ctx, orderID)
		if err != nil {
			return err
		}
		if err := tx.Orders().UpdateStatus(ctx, o.ID, entity.OrderStatusRefunded); err != nil {
			return err
		}

		o.Status = entity.OrderStatusRefunded
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.WithField("order_id", orderID).Info("Order marked refunded")
	return order, nil
}

func confirmationTask(order *entity.Order) *Task {
	return &Task{
		ID:   fmt.Sprintf("order_confirmation_%d_%d", order.ID, time.Now().UnixNano()),
		Type: TaskTypeOrderConfirmation,
		Data: map[string]interface{}{
			"order_id": order.ID,
			"event_id": order.EventID,
			"email":    order.CustomerEmail,
		},
		MaxRetries: notificationMaxRetries,
	}
}

func cancellationTask(order *entity.Order, reason string) *Task {
	return &Task{
		ID:   fmt.Sprintf("order_cancellation_%d_%d", order.ID, time.Now().UnixNano()),
		Type: TaskTypeOrderCancellation,
		Data: map[string]interface{}{
			"order_id": order.ID,
			"event_id": order.EventID,
			"email":    order.CustomerEmail,
			"reason":   reason,
		},
		MaxRetries: notificationMaxRetries,
	}
}
