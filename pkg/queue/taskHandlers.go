package queue

import (
	"context"
	"fmt"

	"ticket-office/internal/entity"

	"github.com/sirupsen/logrus"
)

// OrderReader loads orders for notification tasks. Kept narrow so the queue
// package does not depend on the service package it feeds.
type OrderReader interface {
	GetOrderWithEvent(ctx context.Context, id int64) (*entity.Order, error)
}

// Mailer sends customer emails for processed tasks.
type Mailer interface {
	SendOrderConfirmation(order *entity.Order) error
	SendOrderCancellation(order *entity.Order, reason string) error
}

// TaskHandler dispatches queue tasks to the order store and the mailer.
type TaskHandler struct {
	orders OrderReader
	mailer Mailer
}

func NewTaskHandler(orders OrderReader, mailer Mailer) *TaskHandler {
	return &TaskHandler{
		orders: orders,
		mailer: mailer,
	}
}

func (h *TaskHandler) HandleTask(task *Task) error {
	logrus.WithFields(logrus.Fields{
		"task_id": task.ID,
		"type":    task.Type,
		"attempt": task.Attempts,
	}).Debug("Processing task")

	switch task.Type {
	case TaskTypeOrderConfirmation:
		return h.handleOrderConfirmation(task)
	case TaskTypeOrderCancellation:
		return h.handleOrderCancellation(task)
	default:
		return fmt.Errorf("invalid task type: %s", task.Type)
	}
}

// handleOrderConfirmation emails the customer their confirmed order. A task
// for an order that no longer exists is dropped permanently; the "not found"
// error is classified as non-retryable.
func (h *TaskHandler) handleOrderConfirmation(task *Task) error {
	ctx := context.Background()

	orderID := task.GetInt64("order_id")
	if orderID == 0 {
		return fmt.Errorf("invalid order_id in task data")
	}

	order, err := h.orders.GetOrderWithEvent(ctx, orderID)
	if err != nil {
		return fmt.Errorf("failed to load order %d: %w", orderID, err)
	}

	if order.Status != entity.OrderStatusConfirmed {
		logrus.Infof("Order %d is no longer confirmed (status: %s), skipping confirmation email",
			order.ID, order.Status)
		return nil
	}

	if err := h.mailer.SendOrderConfirmation(order); err != nil {
		return fmt.Errorf("failed to send confirmation for order %d: %w", order.ID, err)
	}

	logrus.Infof("Confirmation email sent for order %d to %s", order.ID, order.CustomerEmail)
	return nil
}

func (h *TaskHandler) handleOrderCancellation(task *Task) error {
	ctx := context.Background()

	orderID := task.GetInt64("order_id")
	if orderID == 0 {
		return fmt.Errorf("invalid order_id in task data")
	}

	order, err := h.orders.GetOrderWithEvent(ctx, orderID)
	if err != nil {
		return fmt.Errorf("failed to load order %d: %w", orderID, err)
	}

	reason := task.GetString("reason")
	if reason == "" {
		reason = "cancelled by request"
	}

	if err := h.mailer.SendOrderCancellation(order, reason); err != nil {
		return fmt.Errorf("failed to send cancellation for order %d: %w", order.ID, err)
	}

	logrus.Infof("Cancellation email sent for order %d to %s", order.ID, order.CustomerEmail)
	return nil
}
