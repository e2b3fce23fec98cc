package orderstatus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tableserve-backend/internal/notify"
	"github.com/angelmondragon/tableserve-backend/pkg/db/models"
	"github.com/angelmondragon/tableserve-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tableserve-backend/pkg/errors"
	"github.com/angelmondragon/tableserve-backend/pkg/logger"
	"github.com/angelmondragon/tableserve-backend/pkg/metrics"
	"github.com/angelmondragon/tableserve-backend/pkg/outbox"
	"github.com/angelmondragon/tableserve-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service applies lifecycle transitions to orders.
type Service interface {
	Transition(ctx context.Context, input TransitionInput) (*TransitionResult, error)
	CustomerCancel(ctx context.Context, input CancelInput) (*TransitionResult, error)
}

// TransitionInput moves an order to To. RestaurantID, when set, limits the
// change to orders of that restaurant; other orders read as not found.
type TransitionInput struct {
	Order        OrderRef
	To           enums.OrderStatus
	RestaurantID *uuid.UUID
	ActorID      *uuid.UUID
	ActorType    *enums.SubjectType
	Actor        *outbox.ActorRef
	Note         string
}

// CancelInput is a customer cancelling one of their own orders.
type CancelInput struct {
	Order      OrderRef
	CustomerID uuid.UUID
	Reason     string
	Actor      *outbox.ActorRef
}

type TransitionResult struct {
	OrderID      uuid.UUID         `json:"orderId"`
	OrderNo      string            `json:"orderNo"`
	RestaurantID uuid.UUID         `json:"restaurantId"`
	CustomerID   *uuid.UUID        `json:"customerId,omitempty"`
	From         enums.OrderStatus `json:"from"`
	To           enums.OrderStatus `json:"to"`
	ChangedAt    time.Time         `json:"changedAt"`
}

type ServiceParams struct {
	Tx        txRunner
	Repo      Repository
	Outbox    outbox.Emitter
	Notifier  notify.Notifier
	Logger    *logger.Logger
	Metrics   *metrics.OrderMetrics
	TxTimeout time.Duration
}

type service struct {
	tx        txRunner
	repo      Repository
	outbox    outbox.Emitter
	notifier  notify.Notifier
	logg      *logger.Logger
	metrics   *metrics.OrderMetrics
	txTimeout time.Duration
	now       func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("order status repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Notifier == nil {
		params.Notifier = notify.Nop{}
	}
	if params.TxTimeout <= 0 {
		params.TxTimeout = 15 * time.Second
	}
	return &service{
		tx:        params.Tx,
		repo:      params.Repo,
		outbox:    params.Outbox,
		notifier:  params.Notifier,
		logg:      params.Logger,
		metrics:   params.Metrics,
		txTimeout: params.TxTimeout,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// Transition notifies the restaurant room and, when present, the customer room.
func (s *service) Transition(ctx context.Context, input TransitionInput) (*TransitionResult, error) {
	if input.Order.empty() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id or order number required")
	}
	if !input.To.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown order status %q", input.To))
	}

	result, err := s.apply(ctx, change{
		ref:        input.Order,
		to:         input.To,
		restaurant: input.RestaurantID,
		actorID:    input.ActorID,
		actorType:  input.ActorType,
		actor:      input.Actor,
		note:       input.Note,
		eventType:  enums.OrderEventStatusChanged,
	})
	if err != nil {
		return nil, err
	}

	s.notifier.SendNotification(notify.EventOrderStatusUpdated, notify.StatusChange{
		OrderID: result.OrderID,
		OrderNo: result.OrderNo,
		From:    result.From,
		To:      result.To,
		Note:    input.Note,
	}, notify.OrderRooms(result.RestaurantID, result.CustomerID)...)
	return result, nil
}

// CustomerCancel always targets Cancelled and notifies only the restaurant room.
func (s *service) CustomerCancel(ctx context.Context, input CancelInput) (*TransitionResult, error) {
	if input.Order.empty() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id or order number required")
	}
	if input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "customer identity missing")
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cancellation reason required").
			WithDetails(map[string]string{"reason": "required"})
	}

	customerID := input.CustomerID
	actorType := enums.SubjectCustomer
	result, err := s.apply(ctx, change{
		ref:       input.Order,
		to:        enums.OrderStatusCancelled,
		customer:  &customerID,
		actorID:   &customerID,
		actorType: &actorType,
		actor:     input.Actor,
		note:      reason,
		eventType: enums.OrderEventCancelledByCustomer,
	})
	if err != nil {
		return nil, err
	}

	s.notifier.SendNotification(notify.EventOrderCancelled, notify.StatusChange{
		OrderID: result.OrderID,
		OrderNo: result.OrderNo,
		From:    result.From,
		To:      result.To,
		Note:    reason,
	}, notify.RestaurantRoom(result.RestaurantID))
	return result, nil
}

type change struct {
	ref        OrderRef
	to         enums.OrderStatus
	restaurant *uuid.UUID
	customer   *uuid.UUID
	actorID    *uuid.UUID
	actorType  *enums.SubjectType
	actor      *outbox.ActorRef
	note       string
	eventType  enums.OrderEventType
}

func (s *service) apply(ctx context.Context, c change) (*TransitionResult, error) {
	txCtx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	var result *TransitionResult
	err := s.tx.WithTx(txCtx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.LockOrder(txCtx, c.ref)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return orderNotFound()
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if c.restaurant != nil && order.RestaurantID != *c.restaurant {
			return orderNotFound()
		}
		if c.customer != nil && (order.CustomerID == nil || *order.CustomerID != *c.customer) {
			return orderNotFound()
		}

		from := order.Status
		if _, err := EventFor(from, c.to); err != nil {
			return err
		}

		if err := repo.UpdateStatus(txCtx, order.ID, c.to); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if ticketStatus, ok := ticketStatusFor(c.to); ok {
			if err := repo.UpdateTicketStatus(txCtx, order.ID, ticketStatus); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update kitchen ticket")
			}
		}

		var note *string
		if c.note != "" {
			n := c.note
			note = &n
		}
		fromStatus := from
		if err := repo.AppendHistory(txCtx, &models.OrderStatusHistory{
			ID:         uuid.New(),
			OrderID:    order.ID,
			FromStatus: &fromStatus,
			ToStatus:   c.to,
			ActorID:    c.actorID,
			ActorType:  c.actorType,
			Note:       note,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append status history")
		}

		changedAt := s.now()
		changed := payloads.OrderStatusChangedEvent{
			OrderID:      order.ID,
			OrderNo:      order.OrderNo,
			RestaurantID: order.RestaurantID,
			CustomerID:   order.CustomerID,
			From:         from,
			To:           c.to,
			Note:         c.note,
			ChangedAt:    changedAt,
		}
		raw, err := json.Marshal(changed)
		if err != nil {
			return err
		}
		if err := repo.AppendEvent(txCtx, &models.OrderEvent{
			ID:        uuid.New(),
			OrderID:   order.ID,
			EventType: c.eventType,
			ActorID:   c.actorID,
			Payload:   raw,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append order event")
		}
		if err := s.outbox.Emit(txCtx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         c.actor,
			Data:          changed,
			OccurredAt:    changedAt,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit status event")
		}

		result = &TransitionResult{
			OrderID:      order.ID,
			OrderNo:      order.OrderNo,
			RestaurantID: order.RestaurantID,
			CustomerID:   order.CustomerID,
			From:         from,
			To:           c.to,
			ChangedAt:    changedAt,
		}
		return nil
	})
	if err != nil {
		if pkgerrors.HasReason(err, pkgerrors.ReasonInvalidTransition) || pkgerrors.HasReason(err, pkgerrors.ReasonOrderNotFound) {
			s.logg.Warn(s.logg.WithField(ctx, "reason", string(pkgerrors.ReasonOf(err))), "orderstatus.transition.rejected")
		} else {
			s.logg.Error(ctx, "orderstatus.transition.failed", err)
		}
		return nil, err
	}

	s.metrics.IncTransition(string(result.From), string(result.To))
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id": result.OrderID.String(),
		"from":     string(result.From),
		"to":       string(result.To),
	})
	s.logg.Info(logCtx, "orderstatus.transition.applied")
	return result, nil
}

func orderNotFound() error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "order not found").WithReason(pkgerrors.ReasonOrderNotFound)
}
