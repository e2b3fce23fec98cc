package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/tableserve-backend/internal/notify"
	"github.com/angelmondragon/tableserve-backend/pkg/db"
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

// NumberGenerator issues order and kitchen ticket numbers.
type NumberGenerator interface {
	OrderNo() string
	TicketNo() string
}

// WriterConfig bounds the placement transaction and its retries.
type WriterConfig struct {
	TxTimeout             time.Duration
	NumberAttempts        int
	ReadBackAttempts      int
	ReadBackRetryInterval time.Duration
}

// WriterParams groups Writer collaborators.
type WriterParams struct {
	Tx       txRunner
	Repo     Repository
	Outbox   outbox.Emitter
	Numbers  NumberGenerator
	Notifier notify.Notifier
	Logger   *logger.Logger
	Metrics  *metrics.OrderMetrics
	Config   WriterConfig
}

// Writer turns a pricing snapshot into committed rows in one transaction.
type Writer struct {
	tx       txRunner
	repo     Repository
	outbox   outbox.Emitter
	numbers  NumberGenerator
	notifier notify.Notifier
	logg     *logger.Logger
	metrics  *metrics.OrderMetrics
	cfg      WriterConfig
	sleep    func(ctx context.Context, d time.Duration) error
}

func NewWriter(params WriterParams) (*Writer, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Numbers == nil {
		return nil, fmt.Errorf("number generator required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Notifier == nil {
		params.Notifier = notify.Nop{}
	}
	cfg := params.Config
	if cfg.TxTimeout <= 0 {
		cfg.TxTimeout = 15 * time.Second
	}
	if cfg.NumberAttempts <= 0 {
		cfg.NumberAttempts = 3
	}
	if cfg.ReadBackAttempts <= 0 {
		cfg.ReadBackAttempts = 3
	}
	return &Writer{
		tx:       params.Tx,
		repo:     params.Repo,
		outbox:   params.Outbox,
		numbers:  params.Numbers,
		notifier: params.Notifier,
		logg:     params.Logger,
		metrics:  params.Metrics,
		cfg:      cfg,
		sleep:    sleepContext,
	}, nil
}

// Persist commits the order, its items and addons, the kitchen ticket, the
// initial history row, the audit event and the outbox event atomically. A
// collision on order_no or ticket_no retries with fresh numbers. The read-back
// runs after commit; if it keeps failing the placement is returned with
// Partial set and the order stays committed.
func (w *Writer) Persist(ctx context.Context, snapshot *PricingSnapshot, meta PlacementMeta) (*Placement, error) {
	if snapshot == nil || snapshot.Restaurant == nil || len(snapshot.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "priced snapshot required").
			WithReason(pkgerrors.ReasonNoItems)
	}

	var (
		placement *Placement
		err       error
	)
	for attempt := 1; attempt <= w.cfg.NumberAttempts; attempt++ {
		placement, err = w.persistOnce(ctx, snapshot, meta)
		if err == nil {
			break
		}
		if isNumberCollision(err) && attempt < w.cfg.NumberAttempts {
			w.logg.Warn(w.logg.WithField(ctx, "attempt", attempt), "orders.writer.number_collision")
			continue
		}
		w.metrics.IncFailed(string(pkgerrors.ReasonOrderCreationFailed))
		w.logg.Error(ctx, "orders.writer.persist_failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "order creation failed").
			WithReason(pkgerrors.ReasonOrderCreationFailed)
	}
	w.metrics.IncPlaced()

	ctx = w.logg.WithFields(ctx, map[string]any{
		"order_id":      placement.OrderID.String(),
		"restaurant_id": placement.RestaurantID.String(),
	})
	w.logg.Info(w.logg.WithField(ctx, "order_no", placement.OrderNo), "orders.writer.committed")

	order, err := w.readBack(ctx, placement.OrderID)
	if err != nil {
		placement.Partial = true
		w.metrics.IncPartialReadBack()
		w.logg.Error(ctx, "orders.writer.read_back_failed", err)
		w.notifier.SendNotification(notify.EventNewOrder, placementView(placement, snapshot, meta), notify.RestaurantRoom(placement.RestaurantID))
		return placement, nil
	}
	placement.Order = order

	w.notifier.SendNotification(notify.EventNewOrder, NewOrderView(order), notify.RestaurantRoom(order.RestaurantID))
	return placement, nil
}

func (w *Writer) persistOnce(ctx context.Context, snapshot *PricingSnapshot, meta PlacementMeta) (*Placement, error) {
	txCtx, cancel := context.WithTimeout(ctx, w.cfg.TxTimeout)
	defer cancel()

	restaurant := snapshot.Restaurant
	order := &models.Order{
		ID:             uuid.New(),
		OrderNo:        w.numbers.OrderNo(),
		RestaurantID:   restaurant.ID,
		CustomerID:     meta.CustomerID,
		DeliveryType:   meta.DeliveryType,
		Channel:        meta.Channel,
		Status:         enums.OrderStatusPending,
		PaymentStatus:  enums.PaymentStatusUnpaid,
		TotalAmount:    snapshot.Total,
		TaxAmount:      decimal.Zero,
		DiscountAmount: decimal.Zero,
		TipsAmount:     decimal.Zero,
		NetAmount:      snapshot.Total,
		Currency:       snapshot.Currency,
	}
	if order.DeliveryType == "" {
		order.DeliveryType = enums.DeliveryTypeDineIn
	}
	if order.Channel == "" {
		order.Channel = enums.OrderChannelOnline
	}
	if snapshot.Table != nil {
		tableID := snapshot.Table.ID
		order.TableID = &tableID
	}
	if meta.Note != "" {
		note := meta.Note
		order.Note = &note
	}

	items := make([]models.OrderItem, 0, len(snapshot.Lines))
	var addons []models.OrderItemAddon
	for _, line := range snapshot.Lines {
		item := models.OrderItem{
			ID:          uuid.New(),
			OrderID:     order.ID,
			FoodItemID:  line.Item.ID,
			ItemName:    line.Item.Name,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			AddonsTotal: line.AddonsTotal,
			TotalPrice:  line.LineTotal,
		}
		if line.Variant != nil {
			variantID := line.Variant.ID
			variantName := line.Variant.Name
			item.VariantID = &variantID
			item.VariantName = &variantName
		}
		for _, addon := range line.Addons {
			addons = append(addons, models.OrderItemAddon{
				ID:          uuid.New(),
				OrderItemID: item.ID,
				AddonID:     addon.ID,
				Name:        addon.Name,
				Price:       addon.Price,
			})
		}
		items = append(items, item)
	}

	ticket := &models.KitchenTicket{
		ID:           uuid.New(),
		OrderID:      order.ID,
		RestaurantID: restaurant.ID,
		TicketNo:     w.numbers.TicketNo(),
		Status:       enums.KitchenTicketQueued,
	}
	ticketItems := make([]models.KitchenTicketItem, 0, len(items))
	for _, item := range items {
		ticketItems = append(ticketItems, models.KitchenTicketItem{
			ID:          uuid.New(),
			TicketID:    ticket.ID,
			OrderItemID: item.ID,
			ItemName:    item.ItemName,
			VariantName: item.VariantName,
			Quantity:    item.Quantity,
			Status:      enums.KitchenTicketQueued,
		})
	}

	err := w.tx.WithTx(txCtx, func(tx *gorm.DB) error {
		repo := w.repo.WithTx(tx)
		if err := repo.CreateOrder(txCtx, order); err != nil {
			return err
		}
		if err := repo.CreateItems(txCtx, items); err != nil {
			return fmt.Errorf("create order items: %w", err)
		}
		if err := repo.CreateItemAddons(txCtx, addons); err != nil {
			return fmt.Errorf("create order item addons: %w", err)
		}
		if err := repo.CreateKitchenTicket(txCtx, ticket); err != nil {
			return err
		}
		if err := repo.CreateKitchenTicketItems(txCtx, ticketItems); err != nil {
			return fmt.Errorf("create kitchen ticket items: %w", err)
		}
		if err := repo.CreateStatusHistory(txCtx, &models.OrderStatusHistory{
			ID:        uuid.New(),
			OrderID:   order.ID,
			ToStatus:  enums.OrderStatusPending,
			ActorID:   meta.ActorID,
			ActorType: meta.ActorType,
		}); err != nil {
			return fmt.Errorf("create status history: %w", err)
		}

		placed := payloads.OrderPlacedEvent{
			OrderID:      order.ID,
			OrderNo:      order.OrderNo,
			RestaurantID: order.RestaurantID,
			CustomerID:   order.CustomerID,
			TableID:      order.TableID,
			DeliveryType: order.DeliveryType,
			NetAmount:    order.NetAmount,
			Currency:     order.Currency,
			ItemCount:    len(items),
			TicketNo:     ticket.TicketNo,
		}
		raw, err := json.Marshal(placed)
		if err != nil {
			return err
		}
		if err := repo.CreateEvent(txCtx, &models.OrderEvent{
			ID:        uuid.New(),
			OrderID:   order.ID,
			EventType: enums.OrderEventPlaced,
			ActorID:   meta.ActorID,
			Payload:   raw,
		}); err != nil {
			return fmt.Errorf("create order event: %w", err)
		}

		return w.outbox.Emit(txCtx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPlaced,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         meta.Actor,
			Data:          placed,
		})
	})
	if err != nil {
		return nil, err
	}

	return &Placement{
		OrderID:      order.ID,
		OrderNo:      order.OrderNo,
		TicketNo:     ticket.TicketNo,
		RestaurantID: order.RestaurantID,
		NetAmount:    order.NetAmount,
		Currency:     order.Currency,
	}, nil
}

func (w *Writer) readBack(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var lastErr error
	for attempt := 1; attempt <= w.cfg.ReadBackAttempts; attempt++ {
		order, err := w.repo.FindByID(ctx, orderID)
		if err == nil {
			return order, nil
		}
		lastErr = err
		if attempt == w.cfg.ReadBackAttempts {
			break
		}
		if err := w.sleep(ctx, time.Duration(attempt)*w.cfg.ReadBackRetryInterval); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func isNumberCollision(err error) bool {
	return db.IsUniqueViolation(err, "order_no") || db.IsUniqueViolation(err, "ticket_no")
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
