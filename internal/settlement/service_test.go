package settlement

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/tableserve-backend/internal/notify"
	"github.com/angelmondragon/tableserve-backend/pkg/config"
	"github.com/angelmondragon/tableserve-backend/pkg/db"
	"github.com/angelmondragon/tableserve-backend/pkg/db/dbtest"
	"github.com/angelmondragon/tableserve-backend/pkg/db/models"
	"github.com/angelmondragon/tableserve-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tableserve-backend/pkg/errors"
	"github.com/angelmondragon/tableserve-backend/pkg/lock"
	"github.com/angelmondragon/tableserve-backend/pkg/logger"
	"github.com/angelmondragon/tableserve-backend/pkg/outbox"
)

type memoryStore struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = fmt.Sprint(value)
	return true, nil
}

func (m *memoryStore) DeleteIfEquals(_ context.Context, key, value string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; !ok || v != value {
		return false, nil
	}
	delete(m.data, key)
	return true, nil
}

type sequentialRefs struct {
	mu sync.Mutex
	n  int
}

func (r *sequentialRefs) next(prefix string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.n++
	return fmt.Sprintf("%s20260105120000%04d", prefix, r.n)
}

func (r *sequentialRefs) GroupTxnID() string { return r.next("GRP") }
func (r *sequentialRefs) SplitTxnID() string { return r.next("SPL") }

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.PaymentStatusChange
	room []string
}

func (n *recordingNotifier) SendNotification(event string, payload any, rooms ...string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if change, ok := payload.(notify.PaymentStatusChange); ok && event == notify.EventPaymentStatusUpdated {
		n.sent = append(n.sent, change)
		n.room = append(n.room, rooms...)
	}
}

type fixture struct {
	conn     *gorm.DB
	svc      Service
	locks    *lock.Factory
	notifier *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	locks, err := lock.NewFactory(&memoryStore{data: map[string]string{}}, func(scope, id string) string {
		return "ts:lock:" + scope + ":" + id
	}, time.Minute)
	require.NoError(t, err)
	notifier := &recordingNotifier{}

	svc, err := NewService(ServiceParams{
		Tx:       db.FromGorm(conn),
		Repo:     NewRepository(conn),
		Locks:    locks,
		Refs:     &sequentialRefs{},
		Outbox:   outbox.NewService(outbox.NewRepository(conn), logg),
		Notifier: notifier,
		Logger:   logg,
		Config:   config.SettlementConfig{GroupWindow: 24 * time.Hour, SplitEpsilon: "0.01"},
	})
	require.NoError(t, err)
	return &fixture{conn: conn, svc: svc, locks: locks, notifier: notifier}
}

func (f *fixture) order(t *testing.T, id uuid.UUID) models.Order {
	t.Helper()
	var order models.Order
	require.NoError(t, f.conn.First(&order, "id = ?", id).Error)
	return order
}

func (f *fixture) split(t *testing.T, id uuid.UUID) models.SplitBill {
	t.Helper()
	var split models.SplitBill
	require.NoError(t, f.conn.First(&split, "id = ?", id).Error)
	return split
}

func (f *fixture) count(t *testing.T, model any, query string, args ...any) int64 {
	t.Helper()
	var n int64
	q := f.conn.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestSplitOrderPaidOnlyAfterEverySplit(t *testing.T) {
	f := newFixture(t)
	restaurant := dbtest.SeedRestaurant(t, f.conn, enums.RestaurantStatusActive)
	order := dbtest.SeedOrder(t, f.conn, dbtest.OrderSeed{RestaurantID: restaurant.ID, Status: enums.OrderStatusCompleted, NetAmount: "1000"})
	ctx := context.Background()

	bills, err := f.svc.CreateSplitBills(ctx, SplitInput{
		OrderID: order.ID,
		Splits:  []SplitLine{{Label: "A", Amount: dec("500")}, {Label: "B", Amount: dec("500")}},
	})
	require.NoError(t, err)
	require.Len(t, bills.Splits, 2)
	assert.Equal(t, enums.PaymentStatusUnpaid, bills.PaymentStatus)
	for _, split := range bills.Splits {
		assert.False(t, split.Paid)
	}
	splitA, splitB := bills.Splits[0], bills.Splits[1]

	payA, err := f.svc.PaySplitBill(ctx, PaySplitInput{SplitBillID: splitA.ID, Provider: enums.PaymentProviderManual, Method: enums.PaymentMethodUPI})
	require.NoError(t, err)
	assert.Regexp(t, `^SPL`, payA.TransactionID)
	assert.True(t, payA.Amount.Equal(dec("500")))
	assert.False(t, f.split(t, splitA.ID).Paid)

	result, err := f.svc.SplitBillCallback(ctx, CallbackInput{TransactionID: payA.TransactionID, Status: CallbackSuccess})
	require.NoError(t, err)
	assert.False(t, result.AlreadyProcessed)

	storedA := f.split(t, splitA.ID)
	assert.True(t, storedA.Paid)
	require.NotNil(t, storedA.PaymentID)
	assert.Equal(t, payA.PaymentID, *storedA.PaymentID)
	assert.False(t, f.split(t, splitB.ID).Paid)
	assert.Equal(t, enums.PaymentStatusUnpaid, f.order(t, order.ID).PaymentStatus)

	replay, err := f.svc.SplitBillCallback(ctx, CallbackInput{TransactionID: payA.TransactionID, Status: CallbackSuccess})
	require.NoError(t, err)
	assert.True(t, replay.AlreadyProcessed)

	_, err = f.svc.PaySplitBill(ctx, PaySplitInput{SplitBillID: splitA.ID})
	assert.True(t, pkgerrors.HasReason(err, pkgerrors.ReasonSplitAlreadyPaid))

	payB, err := f.svc.PaySplitBill(ctx, PaySplitInput{SplitBillID: splitB.ID})
	require.NoError(t, err)
	_, err = f.svc.SplitBillCallback(ctx, CallbackInput{TransactionID: payB.TransactionID, Status: CallbackSuccess})
	require.NoError(t, err)

	stored := f.order(t, order.ID)
	assert.Equal(t, enums.PaymentStatusPaid, stored.PaymentStatus)
	require.NotNil(t, stored.PaymentMethod)
	assert.Equal(t, enums.PaymentMethodCash, *stored.PaymentMethod)

	assert.EqualValues(t, 2, f.count(t, &models.OrderEvent{}, "order_id = ? AND event_type = ?", order.ID, enums.OrderEventSplitPaymentCaptured))
	require.Len(t, f.notifier.sent, 2)
	assert.Equal(t, enums.PaymentStatusPaid, f.notifier.sent[1].PaymentStatus)
	assert.Equal(t, notify.RestaurantRoom(restaurant.ID), f.notifier.room[1])
}

// A partial split set covers less than the net amount, yet paying every
// split in it settles the order: the flip is driven by outstanding splits.
func TestPartialSplitSetPaidInFullSettlesOrder(t *testing.T) {
	f := newFixture(t)
	restaurant := dbtest.SeedRestaurant(t, f.conn, enums.RestaurantStatusActive)
	order := dbtest.SeedOrder(t, f.conn, dbtest.OrderSeed{RestaurantID: restaurant.ID, Status: enums.OrderStatusCompleted, NetAmount: "100"})
	ctx := context.Background()

	bills, err := f.svc.CreateSplitBills(ctx, SplitInput{
		OrderID:      order.ID,
		AllowPartial: true,
		Splits:       []SplitLine{{Label: "A", Amount: dec("40")}, {Label: "B", Amount: dec("30")}},
	})
	require.NoError(t, err)
	require.Len(t, bills.Splits, 2)
	assert.Equal(t, enums.PaymentStatusPartiallyPaid, f.order(t, order.ID).PaymentStatus)

	payA, err := f.svc.PaySplitBill(ctx, PaySplitInput{SplitBillID: bills.Splits[0].ID})
	require.NoError(t, err)
	_, err = f.svc.SplitBillCallback(ctx, CallbackInput{TransactionID: payA.TransactionID, Status: CallbackSuccess})
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusPartiallyPaid, f.order(t, order.ID).PaymentStatus)

	payB, err := f.svc.PaySplitBill(ctx, PaySplitInput{SplitBillID: bills.Splits[1].ID})
	require.NoError(t, err)
	_, err = f.svc.SplitBillCallback(ctx, CallbackInput{TransactionID: payB.TransactionID, Status: CallbackSuccess})
	require.NoError(t, err)

	assert.Equal(t, enums.PaymentStatusPaid, f.order(t, order.ID).PaymentStatus)
	assert.EqualValues(t, 0, f.count(t, &models.SplitBill{}, "order_id = ? AND paid = ?", order.ID, false))
}

func TestCreateSplitBillsValidation(t *testing.T) {
	f := newFixture(t)
	restaurant := dbtest.SeedRestaurant(t, f.conn, enums.RestaurantStatusActive)
	ctx := context.Background()
	seed := func(net string, status enums.OrderStatus, payment enums.PaymentStatus) models.Order {
		return dbtest.SeedOrder(t, f.conn, dbtest.OrderSeed{RestaurantID: restaurant.ID, Status: status, PaymentStatus: payment, NetAmount: net})
	}

	t.Run("within tolerance", func(t *testing.T) {
		order := seed("100", enums.OrderStatusConfirmed, enums.PaymentStatusUnpaid)
		bills, err := f.svc.CreateSplitBills(ctx, SplitInput{OrderID: order.ID, Splits: []SplitLine{
			{Amount: dec("33.33")}, {Amount: dec("33.33")}, {Amount: dec("33.33")},
		}})
		require.NoError(t, err)
		assert.Equal(t, "Split 1", bills.Splits[0].Label)
	})

	t.Run("mismatch", func(t *testing.T) {
		order := seed("100", enums.OrderStatusConfirmed, enums.PaymentStatusUnpaid)
		_, err := f.svc.CreateSplitBills(ctx, SplitInput{OrderID: order.ID, Splits: []SplitLine{
			{Label: "A", Amount: dec("50")}, {Label: "B", Amount: dec("49.98")},
		}})
		require.Error(t, err)
		assert.True(t, pkgerrors.HasReason(err, pkgerrors.ReasonSplitMismatch))
		assert.EqualValues(t, 0, f.count(t, &models.SplitBill{}, "order_id = ?", order.ID))
	})

	t.Run("partial marks order partially paid", func(t *testing.T) {
		order := seed("100", enums.OrderStatusConfirmed, enums.PaymentStatusUnpaid)
		bills, err := f.svc.CreateSplitBills(ctx, SplitInput{OrderID: order.ID, AllowPartial: true, Splits: []SplitLine{{Label: "A", Amount: dec("40")}}})
		require.NoError(t, err)
		assert.True(t, bills.Splits[0].IsPartial)
		assert.Equal(t, enums.PaymentStatusPartiallyPaid, f.order(t, order.ID).PaymentStatus)

		_, err = f.svc.CreateSplitBills(ctx, SplitInput{OrderID: order.ID, Splits: []SplitLine{{Label: "B", Amount: dec("100")}}})
		require.Error(t, err)
		assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.As(err).Code())
	})

	t.Run("partial must stay below net", func(t *testing.T) {
		order := seed("100", enums.OrderStatusConfirmed, enums.PaymentStatusUnpaid)
		_, err := f.svc.CreateSplitBills(ctx, SplitInput{OrderID: order.ID, AllowPartial: true, Splits: []SplitLine{{Label: "A", Amount: dec("100")}}})
		assert.True(t, pkgerrors.HasReason(err, pkgerrors.ReasonSplitMismatch))
	})

	t.Run("paid order", func(t *testing.T) {
		order := seed("100", enums.OrderStatusCompleted, enums.PaymentStatusPaid)
		_, err := f.svc.CreateSplitBills(ctx, SplitInput{OrderID: order.ID, Splits: []SplitLine{{Label: "A", Amount: dec("100")}}})
		require.Error(t, err)
		assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.As(err).Code())
	})

	t.Run("cancelled order", func(t *testing.T) {
		order := seed("100", enums.OrderStatusCancelled, enums.PaymentStatusUnpaid)
		_, err := f.svc.CreateSplitBills(ctx, SplitInput{OrderID: order.ID, Splits: []SplitLine{{Label: "A", Amount: dec("100")}}})
		require.Error(t, err)
		assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())
	})

	t.Run("non positive amount", func(t *testing.T) {
		order := seed("100", enums.OrderStatusConfirmed, enums.PaymentStatusUnpaid)
		_, err := f.svc.CreateSplitBills(ctx, SplitInput{OrderID: order.ID, Splits: []SplitLine{{Label: "A", Amount: dec("100")}, {Label: "B", Amount: decimal.Zero}}})
		require.Error(t, err)
		assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
	})

	t.Run("unknown order", func(t *testing.T) {
		_, err := f.svc.CreateSplitBills(ctx, SplitInput{OrderID: uuid.New(), Splits: []SplitLine{{Label: "A", Amount: dec("1")}}})
		assert.True(t, pkgerrors.HasReason(err, pkgerrors.ReasonOrderNotFound))
	})
}

func TestGroupPaymentSumsEligibleOrders(t *testing.T) {
	f := newFixture(t)
	restaurant := dbtest.SeedRestaurant(t, f.conn, enums.RestaurantStatusActive)
	other := dbtest.SeedRestaurant(t, f.conn, enums.RestaurantStatusActive)
	customerID := uuid.New()
	now := time.Now().UTC()

	seed := func(rid uuid.UUID, status enums.OrderStatus, payment enums.PaymentStatus, net string, age time.Duration) models.Order {
		return dbtest.SeedOrder(t, f.conn, dbtest.OrderSeed{
			RestaurantID:  rid,
			CustomerID:    &customerID,
			Status:        status,
			PaymentStatus: payment,
			NetAmount:     net,
			CreatedAt:     now.Add(-age),
		})
	}
	first := seed(restaurant.ID, enums.OrderStatusCompleted, enums.PaymentStatusUnpaid, "100", 3*time.Hour)
	second := seed(restaurant.ID, enums.OrderStatusCompleted, enums.PaymentStatusUnpaid, "250.50", 2*time.Hour)
	third := seed(restaurant.ID, enums.OrderStatusCompleted, enums.PaymentStatusUnpaid, "49.50", time.Hour)
	seed(restaurant.ID, enums.OrderStatusPreparing, enums.PaymentStatusUnpaid, "75", time.Hour)
	seed(restaurant.ID, enums.OrderStatusCompleted, enums.PaymentStatusPaid, "80", time.Hour)
	seed(restaurant.ID, enums.OrderStatusCompleted, enums.PaymentStatusUnpaid, "90", 48*time.Hour)
	seed(other.ID, enums.OrderStatusCompleted, enums.PaymentStatusUnpaid, "60", time.Hour)

	group, err := f.svc.CreateGroupPayment(context.Background(), GroupInput{CustomerID: customerID, RestaurantID: restaurant.ID})
	require.NoError(t, err)
	assert.Regexp(t, `^GRP`, group.TransactionID)
	assert.True(t, group.TotalAmount.Equal(dec("400")), "total %s", group.TotalAmount)
	assert.Equal(t, []uuid.UUID{first.ID, second.ID, third.ID}, group.OrderIDs)
	assert.Equal(t, "INR", group.Currency)

	var payments []models.Payment
	require.NoError(t, f.conn.Where("provider_ref = ?", group.TransactionID).Find(&payments).Error)
	require.Len(t, payments, 3)
	sum := decimal.Zero
	for _, p := range payments {
		assert.Equal(t, enums.PaymentStatusUnpaid, p.Status)
		assert.Equal(t, enums.PaymentProviderManual, p.Provider)
		sum = sum.Add(p.Amount)
	}
	assert.True(t, sum.Equal(group.TotalAmount))

	assert.EqualValues(t, 1, f.count(t, &models.PaymentMarker{}, "provider_ref = ?", group.TransactionID))
	assert.EqualValues(t, 1, f.count(t, &models.OutboxEvent{}, "event_type = ?", enums.EventPaymentInitiated))
	assert.EqualValues(t, 3, f.count(t, &models.OrderEvent{}, "event_type = ?", enums.OrderEventPaymentInitiated))
}

func TestGroupPaymentIdempotencyKey(t *testing.T) {
	f := newFixture(t)
	restaurant := dbtest.SeedRestaurant(t, f.conn, enums.RestaurantStatusActive)
	customerID := uuid.New()
	dbtest.SeedOrder(t, f.conn, dbtest.OrderSeed{RestaurantID: restaurant.ID, CustomerID: &customerID, Status: enums.OrderStatusCompleted})
	input := GroupInput{CustomerID: customerID, RestaurantID: restaurant.ID, IdempotencyKey: "checkout-1"}

	_, err := f.svc.CreateGroupPayment(context.Background(), input)
	require.NoError(t, err)

	_, err = f.svc.CreateGroupPayment(context.Background(), input)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasReason(err, pkgerrors.ReasonDuplicateGroupPayment))
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.As(err).Code())
	assert.EqualValues(t, 1, f.count(t, &models.Payment{}, ""))
}

func TestGroupPaymentRejections(t *testing.T) {
	f := newFixture(t)
	restaurant := dbtest.SeedRestaurant(t, f.conn, enums.RestaurantStatusActive)
	customerID := uuid.New()

	_, err := f.svc.CreateGroupPayment(context.Background(), GroupInput{CustomerID: customerID, RestaurantID: restaurant.ID})
	assert.True(t, pkgerrors.HasReason(err, pkgerrors.ReasonNoUnpaidOrders))

	dbtest.SeedOrder(t, f.conn, dbtest.OrderSeed{RestaurantID: restaurant.ID, CustomerID: &customerID, Status: enums.OrderStatusCompleted})
	held, err := f.locks.For(groupLockScope, customerID.String())
	require.NoError(t, err)
	ok, err := held.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.svc.CreateGroupPayment(context.Background(), GroupInput{CustomerID: customerID, RestaurantID: restaurant.ID})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.As(err).Code())
	assert.EqualValues(t, 0, f.count(t, &models.Payment{}, ""))

	require.NoError(t, held.Release(context.Background()))
	_, err = f.svc.CreateGroupPayment(context.Background(), GroupInput{CustomerID: customerID, RestaurantID: restaurant.ID, Provider: "paypal"})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestGatewayCallbackIsIdempotent(t *testing.T) {
	f := newFixture(t)
	restaurant := dbtest.SeedRestaurant(t, f.conn, enums.RestaurantStatusActive)
	customerID := uuid.New()
	a := dbtest.SeedOrder(t, f.conn, dbtest.OrderSeed{RestaurantID: restaurant.ID, CustomerID: &customerID, Status: enums.OrderStatusCompleted, NetAmount: "120"})
	b := dbtest.SeedOrder(t, f.conn, dbtest.OrderSeed{RestaurantID: restaurant.ID, CustomerID: &customerID, Status: enums.OrderStatusCompleted, NetAmount: "80"})
	ctx := context.Background()

	group, err := f.svc.CreateGroupPayment(ctx, GroupInput{CustomerID: customerID, RestaurantID: restaurant.ID, Method: enums.PaymentMethodCard})
	require.NoError(t, err)

	result, err := f.svc.PaymentGatewayCallback(ctx, CallbackInput{TransactionID: group.TransactionID, Status: CallbackSuccess, GatewayRef: "sq_123"})
	require.NoError(t, err)
	assert.False(t, result.AlreadyProcessed)
	assert.Equal(t, 2, result.Payments)
	require.Len(t, result.Orders, 2)
	for _, o := range result.Orders {
		assert.Equal(t, enums.PaymentStatusPaid, o.PaymentStatus)
	}
	for _, id := range []uuid.UUID{a.ID, b.ID} {
		stored := f.order(t, id)
		assert.Equal(t, enums.PaymentStatusPaid, stored.PaymentStatus)
		require.NotNil(t, stored.PaymentMethod)
		assert.Equal(t, enums.PaymentMethodCard, *stored.PaymentMethod)
	}

	var payments []models.Payment
	require.NoError(t, f.conn.Where("provider_ref = ?", group.TransactionID).Find(&payments).Error)
	for _, p := range payments {
		assert.Equal(t, enums.PaymentStatusPaid, p.Status)
		assert.NotNil(t, p.CapturedAt)
		require.NotNil(t, p.GatewayRef)
		assert.Equal(t, "sq_123", *p.GatewayRef)
	}
	captured := f.count(t, &models.OutboxEvent{}, "event_type = ?", enums.EventPaymentCaptured)
	assert.EqualValues(t, 2, captured)
	assert.Len(t, f.notifier.sent, 2)

	replay, err := f.svc.PaymentGatewayCallback(ctx, CallbackInput{TransactionID: group.TransactionID, Status: CallbackSuccess})
	require.NoError(t, err)
	assert.True(t, replay.AlreadyProcessed)

	late, err := f.svc.PaymentGatewayCallback(ctx, CallbackInput{TransactionID: group.TransactionID, Status: CallbackFailed})
	require.NoError(t, err)
	assert.True(t, late.AlreadyProcessed)

	assert.Equal(t, captured, f.count(t, &models.OutboxEvent{}, "event_type = ?", enums.EventPaymentCaptured))
	assert.EqualValues(t, 2, f.count(t, &models.OrderEvent{}, "event_type = ?", enums.OrderEventPaymentCaptured))
	assert.Len(t, f.notifier.sent, 2)
}

func TestFailedCallbackKeepsOrderPaymentStatus(t *testing.T) {
	f := newFixture(t)
	restaurant := dbtest.SeedRestaurant(t, f.conn, enums.RestaurantStatusActive)
	customerID := uuid.New()
	order := dbtest.SeedOrder(t, f.conn, dbtest.OrderSeed{RestaurantID: restaurant.ID, CustomerID: &customerID, Status: enums.OrderStatusCompleted})
	ctx := context.Background()

	group, err := f.svc.CreateGroupPayment(ctx, GroupInput{CustomerID: customerID, RestaurantID: restaurant.ID})
	require.NoError(t, err)

	result, err := f.svc.PaymentGatewayCallback(ctx, CallbackInput{TransactionID: group.TransactionID, Status: CallbackFailed, FailureReason: "card declined"})
	require.NoError(t, err)
	assert.False(t, result.AlreadyProcessed)

	var payment models.Payment
	require.NoError(t, f.conn.Where("provider_ref = ?", group.TransactionID).First(&payment).Error)
	assert.Equal(t, enums.PaymentStatusFailed, payment.Status)
	require.NotNil(t, payment.FailureReason)
	assert.Equal(t, "card declined", *payment.FailureReason)
	assert.Equal(t, enums.PaymentStatusUnpaid, f.order(t, order.ID).PaymentStatus)
	assert.EqualValues(t, 1, f.count(t, &models.OrderEvent{}, "order_id = ? AND event_type = ?", order.ID, enums.OrderEventPaymentFailed))
	assert.EqualValues(t, 1, f.count(t, &models.OutboxEvent{}, "event_type = ?", enums.EventPaymentFailed))

	// a retried charge may still succeed on the same correlation id
	result, err = f.svc.PaymentGatewayCallback(ctx, CallbackInput{TransactionID: group.TransactionID, Status: CallbackSuccess})
	require.NoError(t, err)
	assert.False(t, result.AlreadyProcessed)
	assert.Equal(t, enums.PaymentStatusPaid, f.order(t, order.ID).PaymentStatus)
}

func TestCallbackRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.PaymentGatewayCallback(ctx, CallbackInput{TransactionID: "GRP404", Status: CallbackSuccess})
	assert.True(t, pkgerrors.HasReason(err, pkgerrors.ReasonPaymentNotFound))

	_, err = f.svc.SplitBillCallback(ctx, CallbackInput{TransactionID: "SPL1", Status: "MAYBE"})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	_, err = f.svc.SplitBillCallback(ctx, CallbackInput{Status: CallbackSuccess})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
	assert.Empty(t, f.notifier.sent)
}

func TestSplitCallbackMatching(t *testing.T) {
	f := newFixture(t)
	restaurant := dbtest.SeedRestaurant(t, f.conn, enums.RestaurantStatusActive)
	order := dbtest.SeedOrder(t, f.conn, dbtest.OrderSeed{RestaurantID: restaurant.ID, Status: enums.OrderStatusCompleted, NetAmount: "90"})
	ctx := context.Background()

	bills, err := f.svc.CreateSplitBills(ctx, SplitInput{OrderID: order.ID, Splits: []SplitLine{
		{Label: "A", Amount: dec("30")}, {Label: "B", Amount: dec("30")}, {Label: "C", Amount: dec("30")},
	}})
	require.NoError(t, err)
	splitB := bills.Splits[1]

	// a payment without a split link, settled with the split named explicitly
	insertPayment := func(ref string) {
		require.NoError(t, f.conn.Create(&models.Payment{
			ID:           uuid.New(),
			OrderID:      order.ID,
			RestaurantID: restaurant.ID,
			Amount:       dec("30"),
			Currency:     "INR",
			Provider:     enums.PaymentProviderManual,
			ProviderRef:  ref,
			Status:       enums.PaymentStatusUnpaid,
			Method:       enums.PaymentMethodCash,
		}).Error)
	}
	insertPayment("SPL-explicit")
	_, err = f.svc.SplitBillCallback(ctx, CallbackInput{TransactionID: "SPL-explicit", Status: CallbackSuccess, SplitBillID: &splitB.ID})
	require.NoError(t, err)
	assert.True(t, f.split(t, splitB.ID).Paid)
	assert.False(t, f.split(t, bills.Splits[0].ID).Paid)

	var linked models.Payment
	require.NoError(t, f.conn.Where("provider_ref = ?", "SPL-explicit").First(&linked).Error)
	require.NotNil(t, linked.SplitBillID)
	assert.Equal(t, splitB.ID, *linked.SplitBillID)

	// without a split id an unpaid split of equal amount is taken
	insertPayment("SPL-amount")
	_, err = f.svc.SplitBillCallback(ctx, CallbackInput{TransactionID: "SPL-amount", Status: CallbackSuccess})
	require.NoError(t, err)
	paidA, paidC := f.split(t, bills.Splits[0].ID).Paid, f.split(t, bills.Splits[2].ID).Paid
	assert.True(t, paidA != paidC, "exactly one equal-amount split is settled")
	assert.Equal(t, enums.PaymentStatusUnpaid, f.order(t, order.ID).PaymentStatus)
}

func TestSplitOperationsHonourScope(t *testing.T) {
	f := newFixture(t)
	restaurant := dbtest.SeedRestaurant(t, f.conn, enums.RestaurantStatusActive)
	other := uuid.New()
	customerID := uuid.New()
	ctx := context.Background()
	order := dbtest.SeedOrder(t, f.conn, dbtest.OrderSeed{
		RestaurantID:  restaurant.ID,
		CustomerID:    &customerID,
		Status:        enums.OrderStatusConfirmed,
		PaymentStatus: enums.PaymentStatusUnpaid,
		NetAmount:     "60",
	})
	lines := []SplitLine{{Label: "A", Amount: dec("30")}, {Label: "B", Amount: dec("30")}}

	_, err := f.svc.CreateSplitBills(ctx, SplitInput{OrderID: order.ID, Splits: lines, Scope: OrderScope{RestaurantID: &other}})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasReason(err, pkgerrors.ReasonOrderNotFound))

	_, err = f.svc.CreateSplitBills(ctx, SplitInput{OrderID: order.ID, Splits: lines, Scope: OrderScope{CustomerID: &other}})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasReason(err, pkgerrors.ReasonOrderNotFound))

	bills, err := f.svc.CreateSplitBills(ctx, SplitInput{OrderID: order.ID, Splits: lines, Scope: OrderScope{CustomerID: &customerID}})
	require.NoError(t, err)

	_, err = f.svc.PaySplitBill(ctx, PaySplitInput{SplitBillID: bills.Splits[0].ID, Scope: OrderScope{RestaurantID: &other}})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
	assert.EqualValues(t, 0, f.count(t, &models.Payment{}, "order_id = ?", order.ID))

	paid, err := f.svc.PaySplitBill(ctx, PaySplitInput{SplitBillID: bills.Splits[0].ID, Scope: OrderScope{RestaurantID: &restaurant.ID}})
	require.NoError(t, err)
	assert.Equal(t, order.ID, paid.OrderID)
}
