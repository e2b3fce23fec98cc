package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tableserve-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tableserve-backend/pkg/errors"
	"github.com/angelmondragon/tableserve-backend/pkg/logger"
	"github.com/angelmondragon/tableserve-backend/pkg/metrics"
	"github.com/angelmondragon/tableserve-backend/pkg/outbox"
	"github.com/angelmondragon/tableserve-backend/pkg/pagination"
)

// Service is the order placement and read facade used by controllers.
type Service interface {
	PlaceOrder(ctx context.Context, input PlaceOrderInput) (*PlaceOrderResult, error)
	ListOrders(ctx context.Context, filters ListFilters, params pagination.Params) (*OrderList, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*OrderView, error)
}

// PlaceOrderInput is a cart plus the identity placing it.
type PlaceOrderInput struct {
	Cart      Cart
	ActorID   *uuid.UUID
	ActorType *enums.SubjectType
	Actor     *outbox.ActorRef
}

type pricer interface {
	Price(ctx context.Context, cart Cart) (*PricingSnapshot, error)
}

type persister interface {
	Persist(ctx context.Context, snapshot *PricingSnapshot, meta PlacementMeta) (*Placement, error)
}

type service struct {
	repo    Repository
	pricer  pricer
	writer  persister
	logg    *logger.Logger
	metrics *metrics.OrderMetrics
}

// NewService wires pricing, persistence and reads.
func NewService(repo Repository, pricer pricer, writer persister, logg *logger.Logger, m *metrics.OrderMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if pricer == nil {
		return nil, fmt.Errorf("pricer required")
	}
	if writer == nil {
		return nil, fmt.Errorf("writer required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, pricer: pricer, writer: writer, logg: logg, metrics: m}, nil
}

// PlaceOrder prices and persists a cart. Rejections come back as a FAILED
// result together with the typed error so callers can map a status code.
func (s *service) PlaceOrder(ctx context.Context, input PlaceOrderInput) (*PlaceOrderResult, error) {
	cart := input.Cart
	ctx = s.logg.WithRestaurantID(ctx, cart.RestaurantID.String())

	snapshot, err := s.pricer.Price(ctx, cart)
	if err != nil {
		reason := pkgerrors.ReasonOf(err)
		s.metrics.IncFailed(string(reason))
		s.logg.Warn(s.logg.WithField(ctx, "reason", string(reason)), "orders.place.rejected")
		return failedResult(err), err
	}

	placement, err := s.writer.Persist(ctx, snapshot, PlacementMeta{
		CustomerID:   cart.CustomerID,
		DeliveryType: cart.DeliveryType,
		Channel:      cart.Channel,
		Note:         cart.Note,
		ActorID:      input.ActorID,
		ActorType:    input.ActorType,
		Actor:        input.Actor,
	})
	if err != nil {
		return failedResult(err), err
	}

	result := &PlaceOrderResult{Status: ResultSuccess, Partial: placement.Partial}
	if placement.Order != nil {
		result.Order = NewOrderView(placement.Order)
	} else {
		result.Order = placementView(placement, snapshot, PlacementMeta{
			CustomerID:   cart.CustomerID,
			DeliveryType: cart.DeliveryType,
			Channel:      cart.Channel,
		})
		result.Message = "order placed; details are temporarily unavailable"
	}
	return result, nil
}

func (s *service) ListOrders(ctx context.Context, filters ListFilters, params pagination.Params) (*OrderList, error) {
	records, total, filtered, err := s.repo.List(ctx, filters, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	views := make([]OrderView, 0, len(records))
	for i := range records {
		views = append(views, *NewOrderView(&records[i]))
	}
	return &OrderList{Records: views, RecordsTotal: total, RecordsFiltered: filtered}, nil
}

func (s *service) GetOrder(ctx context.Context, id uuid.UUID) (*OrderView, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found").WithReason(pkgerrors.ReasonOrderNotFound)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return NewOrderView(order), nil
}

func failedResult(err error) *PlaceOrderResult {
	message := "order could not be placed"
	if typed := pkgerrors.As(err); typed != nil && typed.Code() != pkgerrors.CodeInternal {
		message = typed.Message()
	}
	return &PlaceOrderResult{Status: ResultFailed, Message: message}
}
