package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/tableserve-backend/internal/notify"
	"github.com/angelmondragon/tableserve-backend/pkg/config"
	"github.com/angelmondragon/tableserve-backend/pkg/db"
	"github.com/angelmondragon/tableserve-backend/pkg/db/models"
	"github.com/angelmondragon/tableserve-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tableserve-backend/pkg/errors"
	"github.com/angelmondragon/tableserve-backend/pkg/lock"
	"github.com/angelmondragon/tableserve-backend/pkg/logger"
	"github.com/angelmondragon/tableserve-backend/pkg/metrics"
	"github.com/angelmondragon/tableserve-backend/pkg/outbox"
	"github.com/angelmondragon/tableserve-backend/pkg/outbox/payloads"
)

const (
	groupLockScope     = "group_payment"
	markerScope        = "group_payment"
	markerConstraint   = "payment_idempotency_markers"
	defaultGroupWindow = 24 * time.Hour

	kindGroup = "group"
	kindSplit = "split"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// LockFactory hands out per-key advisory locks.
type LockFactory interface {
	For(scope, id string) (lock.Lock, error)
}

// ReferenceGenerator issues payment correlation ids.
type ReferenceGenerator interface {
	GroupTxnID() string
	SplitTxnID() string
}

// Service settles orders: grouped by customer, split by party, and confirmed
// by gateway callbacks.
type Service interface {
	CreateGroupPayment(ctx context.Context, input GroupInput) (*GroupPayment, error)
	CreateSplitBills(ctx context.Context, input SplitInput) (*SplitBills, error)
	PaySplitBill(ctx context.Context, input PaySplitInput) (*SplitPayment, error)
	PaymentGatewayCallback(ctx context.Context, input CallbackInput) (*CallbackResult, error)
	SplitBillCallback(ctx context.Context, input CallbackInput) (*CallbackResult, error)
}

type ServiceParams struct {
	Tx       txRunner
	Repo     Repository
	Locks    LockFactory
	Refs     ReferenceGenerator
	Outbox   outbox.Emitter
	Notifier notify.Notifier
	Logger   *logger.Logger
	Metrics  *metrics.SettlementMetrics
	Config   config.SettlementConfig
}

type service struct {
	tx          txRunner
	repo        Repository
	locks       LockFactory
	refs        ReferenceGenerator
	outbox      outbox.Emitter
	notifier    notify.Notifier
	logg        *logger.Logger
	metrics     *metrics.SettlementMetrics
	groupWindow time.Duration
	epsilon     decimal.Decimal
	txTimeout   time.Duration
	now         func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("settlement repository required")
	}
	if params.Locks == nil {
		return nil, fmt.Errorf("lock factory required")
	}
	if params.Refs == nil {
		return nil, fmt.Errorf("reference generator required")
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

	epsilon := decimal.RequireFromString("0.01")
	if raw := strings.TrimSpace(params.Config.SplitEpsilon); raw != "" {
		parsed, err := decimal.NewFromString(raw)
		if err != nil || parsed.IsNegative() {
			return nil, fmt.Errorf("invalid split epsilon %q", raw)
		}
		epsilon = parsed
	}
	window := params.Config.GroupWindow
	if window <= 0 {
		window = defaultGroupWindow
	}
	txTimeout := params.Config.TxTimeout
	if txTimeout <= 0 {
		txTimeout = 15 * time.Second
	}

	return &service{
		tx:          params.Tx,
		repo:        params.Repo,
		locks:       params.Locks,
		refs:        params.Refs,
		outbox:      params.Outbox,
		notifier:    params.Notifier,
		logg:        params.Logger,
		metrics:     params.Metrics,
		groupWindow: window,
		epsilon:     epsilon,
		txTimeout:   txTimeout,
		now:         func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) CreateGroupPayment(ctx context.Context, input GroupInput) (*GroupPayment, error) {
	if input.CustomerID == uuid.Nil || input.RestaurantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer and restaurant are required")
	}
	provider, method, err := paymentChannel(input.Provider, input.Method)
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"customer_id":   input.CustomerID.String(),
		"restaurant_id": input.RestaurantID.String(),
	})

	lk, err := s.locks.For(groupLockScope, input.CustomerID.String())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build settlement lock")
	}
	acquired, err := lk.Acquire(ctx)
	if err != nil {
		s.metrics.IncInitiated(kindGroup, "error")
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire settlement lock")
	}
	if !acquired {
		s.metrics.IncInitiated(kindGroup, "busy")
		s.logg.Warn(ctx, "settlement.group.lock_busy")
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "a group payment for this customer is already in progress").
			WithReason(pkgerrors.ReasonDuplicateGroupPayment)
	}
	defer func() {
		if err := lk.Release(context.WithoutCancel(ctx)); err != nil {
			s.logg.Error(ctx, "settlement.group.lock_release_failed", err)
		}
	}()

	txCtx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	var result *GroupPayment
	err = s.tx.WithTx(txCtx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		orders, err := repo.UnpaidCompletedOrders(txCtx, input.CustomerID, input.RestaurantID, s.now().Add(-s.groupWindow))
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load unpaid orders")
		}
		if len(orders) == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "no unpaid orders found").WithReason(pkgerrors.ReasonNoUnpaidOrders)
		}

		txnID := s.refs.GroupTxnID()
		markerKey := markerScope + ":" + txnID
		if key := strings.TrimSpace(input.IdempotencyKey); key != "" {
			markerKey = markerScope + ":" + input.CustomerID.String() + ":" + key
		}
		if err := repo.CreateMarker(txCtx, &models.PaymentMarker{
			ID:          uuid.New(),
			MarkerKey:   markerKey,
			Owner:       "customer:" + input.CustomerID.String(),
			ProviderRef: txnID,
		}); err != nil {
			if db.IsUniqueViolation(err, markerConstraint) {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "group payment already initiated").
					WithReason(pkgerrors.ReasonDuplicateGroupPayment)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment marker")
		}

		customerID := input.CustomerID
		total := decimal.Zero
		orderIDs := make([]uuid.UUID, 0, len(orders))
		payments := make([]models.Payment, 0, len(orders))
		for _, order := range orders {
			total = total.Add(order.NetAmount)
			orderIDs = append(orderIDs, order.ID)
			payments = append(payments, models.Payment{
				ID:           uuid.New(),
				OrderID:      order.ID,
				RestaurantID: order.RestaurantID,
				CustomerID:   &customerID,
				Amount:       order.NetAmount,
				Currency:     order.Currency,
				Provider:     provider,
				ProviderRef:  txnID,
				Status:       enums.PaymentStatusUnpaid,
				Method:       method,
			})
		}
		if err := repo.CreatePayments(txCtx, payments); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payments")
		}

		initiated := payloads.PaymentInitiatedEvent{
			TransactionID: txnID,
			RestaurantID:  input.RestaurantID,
			CustomerID:    &customerID,
			OrderIDs:      orderIDs,
			Amount:        total,
			Currency:      orders[0].Currency,
			Provider:      provider,
		}
		if err := s.recordInitiated(txCtx, tx, repo, payments[0].ID, orderIDs, initiated, input.Actor); err != nil {
			return err
		}

		result = &GroupPayment{
			TransactionID: txnID,
			TotalAmount:   total,
			OrderIDs:      orderIDs,
			Currency:      orders[0].Currency,
			Provider:      provider,
		}
		return nil
	})
	if err != nil {
		s.logRejection(ctx, "settlement.group", err)
		s.metrics.IncInitiated(kindGroup, outcomeOf(err))
		return nil, err
	}

	s.metrics.IncInitiated(kindGroup, "created")
	logCtx := s.logg.WithFields(s.logg.WithTxnID(ctx, result.TransactionID), map[string]any{
		"orders": len(result.OrderIDs),
		"amount": result.TotalAmount.StringFixed(2),
	})
	s.logg.Info(logCtx, "settlement.group.created")
	return result, nil
}

func (s *service) CreateSplitBills(ctx context.Context, input SplitInput) (*SplitBills, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if len(input.Splits) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one split is required")
	}
	sum := decimal.Zero
	for i, line := range input.Splits {
		if !line.Amount.IsPositive() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "split amounts must be greater than zero").
				WithDetails(map[string]any{"index": i})
		}
		sum = sum.Add(line.Amount)
	}

	ctx = s.logg.WithOrderID(ctx, input.OrderID.String())
	txCtx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	var result *SplitBills
	err := s.tx.WithTx(txCtx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.LockOrder(txCtx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return orderNotFound()
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if !input.Scope.allows(order) {
			return orderNotFound()
		}
		if order.PaymentStatus == enums.PaymentStatusPaid {
			return pkgerrors.New(pkgerrors.CodeConflict, "order is already paid")
		}
		if order.Status == enums.OrderStatusCancelled || order.Status == enums.OrderStatusRefunded {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("order is %s", order.Status))
		}
		existing, err := repo.CountSplits(txCtx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count split bills")
		}
		if existing > 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "split bills already exist for this order")
		}

		if input.AllowPartial {
			if sum.GreaterThanOrEqual(order.NetAmount) {
				return splitMismatch(sum, order.NetAmount, "partial splits must be less than the order net amount")
			}
		} else if sum.Sub(order.NetAmount).Abs().GreaterThan(s.epsilon) {
			return splitMismatch(sum, order.NetAmount, fmt.Sprintf("split amounts (%s) do not match order net (%s)", sum.StringFixed(2), order.NetAmount.StringFixed(2)))
		}

		splits := make([]models.SplitBill, 0, len(input.Splits))
		for i, line := range input.Splits {
			label := strings.TrimSpace(line.Label)
			if label == "" {
				label = fmt.Sprintf("Split %d", i+1)
			}
			splits = append(splits, models.SplitBill{
				ID:        uuid.New(),
				OrderID:   order.ID,
				Label:     label,
				Amount:    line.Amount,
				IsPartial: input.AllowPartial,
			})
		}
		if err := repo.CreateSplitBills(txCtx, splits); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create split bills")
		}

		paymentStatus := order.PaymentStatus
		if input.AllowPartial {
			paymentStatus = enums.PaymentStatusPartiallyPaid
			if err := repo.UpdateOrderPayment(txCtx, order.ID, paymentStatus, nil); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order payment status")
			}
		}

		views := make([]SplitBillView, 0, len(splits))
		for _, split := range splits {
			views = append(views, newSplitBillView(split))
		}
		if err := appendEvent(txCtx, repo, order.ID, enums.OrderEventSplitBillsCreated, actorIDOf(input.Actor), views); err != nil {
			return err
		}

		result = &SplitBills{
			OrderID:       order.ID,
			PaymentStatus: paymentStatus,
			Total:         sum,
			Splits:        views,
		}
		return nil
	})
	if err != nil {
		s.logRejection(ctx, "settlement.split", err)
		s.metrics.IncInitiated(kindSplit, outcomeOf(err))
		return nil, err
	}

	s.metrics.IncInitiated(kindSplit, "created")
	s.logg.Info(s.logg.WithField(ctx, "splits", len(result.Splits)), "settlement.split.created")
	return result, nil
}

func (s *service) PaySplitBill(ctx context.Context, input PaySplitInput) (*SplitPayment, error) {
	if input.SplitBillID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "split bill id required")
	}
	provider, method, err := paymentChannel(input.Provider, input.Method)
	if err != nil {
		return nil, err
	}

	txCtx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	var result *SplitPayment
	err = s.tx.WithTx(txCtx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		split, err := repo.LockSplitBill(txCtx, input.SplitBillID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "split bill not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load split bill")
		}
		if split.Paid {
			return pkgerrors.New(pkgerrors.CodeConflict, "split bill already paid").WithReason(pkgerrors.ReasonSplitAlreadyPaid)
		}
		order, err := repo.LockOrder(txCtx, split.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return orderNotFound()
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if !input.Scope.allows(order) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "split bill not found")
		}

		txnID := s.refs.SplitTxnID()
		splitID := split.ID
		payment := models.Payment{
			ID:           uuid.New(),
			OrderID:      order.ID,
			RestaurantID: order.RestaurantID,
			CustomerID:   order.CustomerID,
			SplitBillID:  &splitID,
			Amount:       split.Amount,
			Currency:     order.Currency,
			Provider:     provider,
			ProviderRef:  txnID,
			Status:       enums.PaymentStatusUnpaid,
			Method:       method,
		}
		if err := repo.CreatePayments(txCtx, []models.Payment{payment}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create split payment")
		}

		initiated := payloads.PaymentInitiatedEvent{
			TransactionID: txnID,
			RestaurantID:  order.RestaurantID,
			CustomerID:    order.CustomerID,
			OrderIDs:      []uuid.UUID{order.ID},
			SplitBillID:   &splitID,
			Amount:        split.Amount,
			Currency:      order.Currency,
			Provider:      provider,
		}
		if err := s.recordInitiated(txCtx, tx, repo, payment.ID, []uuid.UUID{order.ID}, initiated, input.Actor); err != nil {
			return err
		}

		result = &SplitPayment{
			TransactionID: txnID,
			PaymentID:     payment.ID,
			SplitBillID:   split.ID,
			OrderID:       order.ID,
			Amount:        split.Amount,
			Currency:      order.Currency,
			Provider:      provider,
		}
		return nil
	})
	if err != nil {
		s.logRejection(ctx, "settlement.split_payment", err)
		s.metrics.IncInitiated("split_payment", outcomeOf(err))
		return nil, err
	}

	s.metrics.IncInitiated("split_payment", "created")
	s.logg.Info(s.logg.WithTxnID(ctx, result.TransactionID), "settlement.split_payment.created")
	return result, nil
}

func (s *service) PaymentGatewayCallback(ctx context.Context, input CallbackInput) (*CallbackResult, error) {
	return s.settle(ctx, kindGroup, input)
}

func (s *service) SplitBillCallback(ctx context.Context, input CallbackInput) (*CallbackResult, error) {
	return s.settle(ctx, kindSplit, input)
}

// settle applies a gateway outcome to every payment sharing the correlation id.
// Replays of an already applied outcome change nothing.
func (s *service) settle(ctx context.Context, kind string, input CallbackInput) (*CallbackResult, error) {
	txnID := strings.TrimSpace(input.TransactionID)
	if txnID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id required")
	}
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown callback status %q", input.Status))
	}
	ctx = s.logg.WithTxnID(ctx, txnID)

	txCtx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	result := &CallbackResult{TransactionID: txnID, Status: input.Status}
	err := s.tx.WithTx(txCtx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		payments, err := repo.LockPaymentsByRef(txCtx, txnID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payments")
		}
		if len(payments) == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "no payments found for transaction").WithReason(pkgerrors.ReasonPaymentNotFound)
		}
		result.Payments = len(payments)

		var applied bool
		if input.Status == CallbackSuccess {
			applied, err = s.capture(txCtx, tx, repo, txnID, payments, input)
		} else {
			applied, err = s.fail(txCtx, tx, repo, txnID, payments, input)
		}
		if err != nil {
			return err
		}
		result.AlreadyProcessed = !applied

		orders, err := repo.OrdersByIDs(txCtx, distinctOrderIDs(payments))
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload orders")
		}
		for _, order := range orders {
			result.Orders = append(result.Orders, OrderSettlement{
				OrderID:       order.ID,
				OrderNo:       order.OrderNo,
				RestaurantID:  order.RestaurantID,
				PaymentStatus: order.PaymentStatus,
			})
		}
		return nil
	})
	if err != nil {
		s.logRejection(ctx, "settlement.callback", err)
		s.metrics.IncCallback(kind, string(input.Status), outcomeOf(err))
		if pkgerrors.As(err) == nil {
			err = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "settlement failed").WithReason(pkgerrors.ReasonSettlementFailed)
		}
		return nil, err
	}

	if result.AlreadyProcessed {
		s.metrics.IncCallback(kind, string(input.Status), "duplicate")
		s.logg.Info(ctx, "settlement.callback.already_processed")
		return result, nil
	}

	s.metrics.IncCallback(kind, string(input.Status), "applied")
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"status": string(input.Status),
		"orders": len(result.Orders),
	}), "settlement.callback.applied")

	for _, order := range result.Orders {
		s.notifier.SendNotification(notify.EventPaymentStatusUpdated, notify.PaymentStatusChange{
			TransactionID: txnID,
			OrderID:       order.OrderID,
			OrderNo:       order.OrderNo,
			PaymentStatus: order.PaymentStatus,
		}, notify.RestaurantRoom(order.RestaurantID))
	}
	return result, nil
}

type capturedOrder struct {
	restaurantID uuid.UUID
	amount       decimal.Decimal
	method       enums.PaymentMethod
	splitIDs     []uuid.UUID
}

func (s *service) capture(ctx context.Context, tx *gorm.DB, repo Repository, txnID string, payments []models.Payment, input CallbackInput) (bool, error) {
	now := s.now()
	var gatewayRef *string
	if ref := strings.TrimSpace(input.GatewayRef); ref != "" {
		gatewayRef = &ref
	}

	var touched []uuid.UUID
	captured := make(map[uuid.UUID]*capturedOrder)
	for _, payment := range payments {
		if payment.Status == enums.PaymentStatusPaid {
			continue
		}
		if err := repo.MarkPaymentPaid(ctx, payment.ID, now, gatewayRef); err != nil {
			return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment paid")
		}

		entry, ok := captured[payment.OrderID]
		if !ok {
			entry = &capturedOrder{restaurantID: payment.RestaurantID, amount: decimal.Zero, method: payment.Method}
			captured[payment.OrderID] = entry
			touched = append(touched, payment.OrderID)
		}
		entry.amount = entry.amount.Add(payment.Amount)

		split, err := resolveSplit(ctx, repo, payment, input.SplitBillID)
		if err != nil {
			return false, err
		}
		if split == nil {
			continue
		}
		if err := repo.MarkSplitPaid(ctx, split.ID, payment.ID, now); err != nil {
			return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark split paid")
		}
		if payment.SplitBillID == nil || *payment.SplitBillID != split.ID {
			if err := repo.LinkPaymentSplit(ctx, payment.ID, split.ID); err != nil {
				return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "link payment to split")
			}
		}
		entry.splitIDs = append(entry.splitIDs, split.ID)
	}
	if len(touched) == 0 {
		return false, nil
	}

	for _, orderID := range touched {
		entry := captured[orderID]
		current, err := repo.LockOrder(ctx, orderID)
		if err != nil {
			return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		unpaid, err := repo.UnpaidSplits(ctx, orderID)
		if err != nil {
			return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load unpaid splits")
		}
		// the order flips only once no split is outstanding
		status := current.PaymentStatus
		if len(unpaid) == 0 {
			status = enums.PaymentStatusPaid
			method := entry.method
			if err := repo.UpdateOrderPayment(ctx, orderID, status, &method); err != nil {
				return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order payment status")
			}
		}

		event := payloads.PaymentCapturedEvent{
			TransactionID: txnID,
			OrderID:       orderID,
			RestaurantID:  entry.restaurantID,
			Amount:        entry.amount,
			SplitBillIDs:  entry.splitIDs,
			PaymentStatus: status,
			CapturedAt:    now,
		}
		eventType := enums.OrderEventPaymentCaptured
		if len(entry.splitIDs) > 0 {
			eventType = enums.OrderEventSplitPaymentCaptured
		}
		if err := appendEvent(ctx, repo, orderID, eventType, nil, event); err != nil {
			return false, err
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentCaptured,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Data:          event,
			OccurredAt:    now,
		}); err != nil {
			return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit payment captured")
		}
	}
	return true, nil
}

func (s *service) fail(ctx context.Context, tx *gorm.DB, repo Repository, txnID string, payments []models.Payment, input CallbackInput) (bool, error) {
	var reason *string
	if r := strings.TrimSpace(input.FailureReason); r != "" {
		reason = &r
	}

	var touched []uuid.UUID
	restaurants := make(map[uuid.UUID]uuid.UUID)
	for _, payment := range payments {
		if payment.Status != enums.PaymentStatusUnpaid {
			continue
		}
		if err := repo.MarkPaymentFailed(ctx, payment.ID, reason); err != nil {
			return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment failed")
		}
		if _, ok := restaurants[payment.OrderID]; !ok {
			restaurants[payment.OrderID] = payment.RestaurantID
			touched = append(touched, payment.OrderID)
		}
	}
	if len(touched) == 0 {
		return false, nil
	}

	now := s.now()
	for _, orderID := range touched {
		event := payloads.PaymentFailedEvent{
			TransactionID: txnID,
			OrderID:       orderID,
			RestaurantID:  restaurants[orderID],
			Reason:        input.FailureReason,
		}
		if err := appendEvent(ctx, repo, orderID, enums.OrderEventPaymentFailed, nil, event); err != nil {
			return false, err
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentFailed,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Data:          event,
			OccurredAt:    now,
		}); err != nil {
			return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit payment failed")
		}
	}
	return true, nil
}

// resolveSplit picks the split a captured payment settles: the split named by
// the callback when it belongs to the payment's order, else the payment's own
// split, else the first unpaid split of the order with the same amount.
func resolveSplit(ctx context.Context, repo Repository, payment models.Payment, explicit *uuid.UUID) (*models.SplitBill, error) {
	if explicit != nil && *explicit != uuid.Nil {
		split, err := repo.LockSplitBill(ctx, *explicit)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "split bill not found")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load split bill")
		}
		if split.OrderID == payment.OrderID {
			if split.Paid {
				return nil, nil
			}
			return split, nil
		}
	}

	if payment.SplitBillID != nil {
		split, err := repo.LockSplitBill(ctx, *payment.SplitBillID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load split bill")
		}
		if split != nil && !split.Paid {
			return split, nil
		}
		if split != nil {
			return nil, nil
		}
	}

	unpaid, err := repo.UnpaidSplits(ctx, payment.OrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load unpaid splits")
	}
	for i := range unpaid {
		if unpaid[i].Amount.Equal(payment.Amount) {
			return &unpaid[i], nil
		}
	}
	return nil, nil
}

func (s *service) recordInitiated(ctx context.Context, tx *gorm.DB, repo Repository, paymentID uuid.UUID, orderIDs []uuid.UUID, event payloads.PaymentInitiatedEvent, actor *outbox.ActorRef) error {
	for _, orderID := range orderIDs {
		if err := appendEvent(ctx, repo, orderID, enums.OrderEventPaymentInitiated, actorIDOf(actor), event); err != nil {
			return err
		}
	}
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPaymentInitiated,
		AggregateType: enums.AggregatePayment,
		AggregateID:   paymentID,
		Actor:         actor,
		Data:          event,
		OccurredAt:    s.now(),
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit payment initiated")
	}
	return nil
}

func (s *service) logRejection(ctx context.Context, op string, err error) {
	if !pkgerrors.MetadataFor(pkgerrors.CodeOf(err)).Retryable {
		s.logg.Warn(s.logg.WithField(ctx, "reason", string(pkgerrors.ReasonOf(err))), op+".rejected")
		return
	}
	s.logg.Error(ctx, op+".failed", err)
}

func appendEvent(ctx context.Context, repo Repository, orderID uuid.UUID, eventType enums.OrderEventType, actorID *uuid.UUID, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode order event")
	}
	if err := repo.AppendEvent(ctx, &models.OrderEvent{
		ID:        uuid.New(),
		OrderID:   orderID,
		EventType: eventType,
		ActorID:   actorID,
		Payload:   raw,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append order event")
	}
	return nil
}

func paymentChannel(provider enums.PaymentProvider, method enums.PaymentMethod) (enums.PaymentProvider, enums.PaymentMethod, error) {
	if provider == "" {
		provider = enums.PaymentProviderManual
	}
	if method == "" {
		method = enums.PaymentMethodCash
	}
	if !provider.IsValid() {
		return "", "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown payment provider %q", provider))
	}
	if !method.IsValid() {
		return "", "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown payment method %q", method))
	}
	return provider, method, nil
}

func actorIDOf(actor *outbox.ActorRef) *uuid.UUID {
	if actor == nil || actor.SubjectID == uuid.Nil {
		return nil
	}
	id := actor.SubjectID
	return &id
}

func distinctOrderIDs(payments []models.Payment) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(payments))
	ids := make([]uuid.UUID, 0, len(payments))
	for _, p := range payments {
		if _, ok := seen[p.OrderID]; ok {
			continue
		}
		seen[p.OrderID] = struct{}{}
		ids = append(ids, p.OrderID)
	}
	return ids
}

func outcomeOf(err error) string {
	if pkgerrors.MetadataFor(pkgerrors.CodeOf(err)).Retryable {
		return "error"
	}
	return "rejected"
}

func orderNotFound() error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "order not found").WithReason(pkgerrors.ReasonOrderNotFound)
}

func splitMismatch(sum, net decimal.Decimal, message string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, message).
		WithReason(pkgerrors.ReasonSplitMismatch).
		WithDetails(map[string]string{
			"splitTotal": sum.StringFixed(2),
			"netAmount":  net.StringFixed(2),
		})
}
