package service

import (
	"context"
	"strings"
	"time"

	"ticket-office/internal/database"
	"ticket-office/internal/entity"

	"github.com/sirupsen/logrus"
)

type eventService struct {
	store database.Store
}

// NewEventService creates the event catalog service.
func NewEventService(store database.Store) EventService {
	return &eventService{store: store}
}

func (s *eventService) CreateEvent(ctx context.Context, req *CreateEventRequest) (*entity.Event, error) {
	if verr := validateEventRequest(req); verr != nil {
		return nil, verr
	}

	event := &entity.Event{
		Name:             strings.TrimSpace(req.Name),
		Venue:            strings.TrimSpace(req.Venue),
		Date:             req.Date,
		UnitPrice:        req.UnitPrice,
		TotalTickets:     req.TotalTickets,
		AvailableTickets: req.TotalTickets,
		Status:           entity.EventStatusDraft,
	}

	if err := s.store.Events().Create(ctx, event); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"event_id": event.ID,
		"name":     event.Name,
		"tickets":  event.TotalTickets,
	}).Info("Event created")

	return event, nil
}

func validateEventRequest(req *CreateEventRequest) *entity.ValidationError {
	verr := entity.NewValidationError()

	if strings.TrimSpace(req.Name) == "" {
		verr.Add("name", "is required")
	}
	if strings.TrimSpace(req.Venue) == "" {
		verr.Add("venue", "is required")
	}
	if !req.Date.After(time.Now()) {
		verr.Add("date", "must be in the future")
	}
	if req.UnitPrice.IsNegative() {
		verr.Add("unit_price", "must not be negative")
	}
	if req.TotalTickets <= 0 {
		verr.Add("total_tickets", "must be positive")
	}

	if verr.Empty() {
		return nil
	}
	return verr
}

func (s *eventService) GetEvent(ctx context.Context, id int64) (*entity.Event, error) {
	return s.store.Events().GetByID(ctx, id)
}

func (s *eventService) GetAllEvents(ctx context.Context) ([]*entity.Event, error) {
	return s.store.Events().GetAll(ctx)
}

func (s *eventService) GetUpcomingEvents(ctx context.Context, limit int) ([]*entity.Event, error) {
	return s.store.Events().GetUpcoming(ctx, limit)
}

func (s *eventService) UpdateEvent(ctx context.Context, id int64, req *UpdateEventRequest) (*entity.Event, error) {
	event, err := s.store.Events().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		event.Name = strings.TrimSpace(*req.Name)
	}
	if req.Venue != nil {
		event.Venue = strings.TrimSpace(*req.Venue)
	}
	if req.Date != nil {
		event.Date = *req.Date
	}
	if req.UnitPrice != nil {
		if req.UnitPrice.IsNegative() {
			verr := entity.NewValidationError()
			verr.Add("unit_price", "must not be negative")
			return nil, verr
		}
		event.UnitPrice = *req.UnitPrice
	}

	if err := s.store.Events().Update(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

func (s *eventService) DeleteEvent(ctx context.Context, id int64) error {
	return s.store.Events().Delete(ctx, id)
}

// PublishEvent moves a draft event on sale.
func (s *eventService) PublishEvent(ctx context.Context, id int64) (*entity.Event, error) {
	return s.transitionEvent(ctx, id, entity.EventStatusPublished)
}

// CancelEvent takes an event off sale permanently.
func (s *eventService) CancelEvent(ctx context.Context, id int64) (*entity.Event, error) {
	return s.transitionEvent(ctx, id, entity.EventStatusCancelled)
}

func (s *eventService) transitionEvent(ctx context.Context, id int64, next entity.EventStatus) (*entity.Event, error) {
	var event *entity.Event
	err := s.store.WithinTx(ctx, func(tx database.Store) error {
		e, err := tx.Events().GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !e.Status.CanTransitionTo(next) {
			return entity.ErrInvalidEventStatus
		}
		if err := tx.Events().UpdateStatus(ctx, id, next); err != nil {
			return err
		}

		e.Status = next
		event = e
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"event_id": event.ID,
		"status":   event.Status,
	}).Info("Event status changed")

	return event, nil
}

// MarkPastEventsCompleted sweeps published events whose date has passed into
// the completed status and returns how many were flipped.
func (s *eventService) MarkPastEventsCompleted(ctx context.Context) (int64, error) {
	return s.store.Events().MarkPastCompleted(ctx, time.Now())
}

func (s *eventService) GetEventOrders(ctx context.Context, eventID int64) ([]*entity.Order, error) {
	if _, err := s.store.Events().GetByID(ctx, eventID); err != nil {
		return nil, err
	}
	return s.store.Orders().GetByEventID(ctx, eventID)
}

func (s *eventService) GetEventStats(ctx context.Context, eventID int64) (*entity.EventOrderStats, error) {
	if _, err := s.store.Events().GetByID(ctx, eventID); err != nil {
		return nil, err
	}
	return s.store.Orders().GetEventOrderStats(ctx, eventID)
}
