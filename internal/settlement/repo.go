package settlement

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/tableserve-backend/pkg/db/models"
	"github.com/angelmondragon/tableserve-backend/pkg/enums"
)

// Repository persists payments, split bills and idempotency markers.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	UnpaidCompletedOrders(ctx context.Context, customerID, restaurantID uuid.UUID, since time.Time) ([]models.Order, error)
	LockOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	OrdersByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Order, error)
	UpdateOrderPayment(ctx context.Context, orderID uuid.UUID, status enums.PaymentStatus, method *enums.PaymentMethod) error

	CreateMarker(ctx context.Context, marker *models.PaymentMarker) error
	DeleteMarkersBefore(ctx context.Context, cutoff time.Time) (int64, error)

	CreatePayments(ctx context.Context, payments []models.Payment) error
	LockPaymentsByRef(ctx context.Context, providerRef string) ([]models.Payment, error)
	MarkPaymentPaid(ctx context.Context, paymentID uuid.UUID, capturedAt time.Time, gatewayRef *string) error
	MarkPaymentFailed(ctx context.Context, paymentID uuid.UUID, reason *string) error
	LinkPaymentSplit(ctx context.Context, paymentID, splitBillID uuid.UUID) error

	CountSplits(ctx context.Context, orderID uuid.UUID) (int64, error)
	CreateSplitBills(ctx context.Context, splits []models.SplitBill) error
	LockSplitBill(ctx context.Context, splitBillID uuid.UUID) (*models.SplitBill, error)
	UnpaidSplits(ctx context.Context, orderID uuid.UUID) ([]models.SplitBill, error)
	MarkSplitPaid(ctx context.Context, splitBillID, paymentID uuid.UUID, paidAt time.Time) error

	AppendEvent(ctx context.Context, event *models.OrderEvent) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// UnpaidCompletedOrders returns the customer's Completed, Unpaid orders at the
// restaurant created at or after since, oldest first.
func (r *repository) UnpaidCompletedOrders(ctx context.Context, customerID, restaurantID uuid.UUID, since time.Time) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("customer_id = ? AND restaurant_id = ?", customerID, restaurantID).
		Where("status = ? AND payment_status = ?", enums.OrderStatusCompleted, enums.PaymentStatusUnpaid).
		Where("created_at >= ?", since).
		Order("created_at ASC").
		Order("id ASC").
		Find(&orders).Error
	return orders, err
}

func (r *repository) LockOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) OrdersByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Order, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Order("created_at ASC").
		Find(&orders).Error
	return orders, err
}

func (r *repository) UpdateOrderPayment(ctx context.Context, orderID uuid.UUID, status enums.PaymentStatus, method *enums.PaymentMethod) error {
	updates := map[string]any{"payment_status": status}
	if method != nil {
		updates["payment_method"] = *method
	}
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(updates).Error
}

func (r *repository) CreateMarker(ctx context.Context, marker *models.PaymentMarker) error {
	return r.db.WithContext(ctx).Create(marker).Error
}

func (r *repository) DeleteMarkersBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&models.PaymentMarker{})
	return res.RowsAffected, res.Error
}

func (r *repository) CreatePayments(ctx context.Context, payments []models.Payment) error {
	if len(payments) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&payments).Error
}

func (r *repository) LockPaymentsByRef(ctx context.Context, providerRef string) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("provider_ref = ?", providerRef).
		Order("created_at ASC").
		Order("id ASC").
		Find(&payments).Error
	return payments, err
}

func (r *repository) MarkPaymentPaid(ctx context.Context, paymentID uuid.UUID, capturedAt time.Time, gatewayRef *string) error {
	updates := map[string]any{
		"status":         enums.PaymentStatusPaid,
		"captured_at":    capturedAt,
		"failure_reason": nil,
	}
	if gatewayRef != nil {
		updates["gateway_ref"] = *gatewayRef
	}
	return r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ?", paymentID).
		Updates(updates).Error
}

func (r *repository) MarkPaymentFailed(ctx context.Context, paymentID uuid.UUID, reason *string) error {
	return r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND status <> ?", paymentID, enums.PaymentStatusPaid).
		Updates(map[string]any{
			"status":         enums.PaymentStatusFailed,
			"failure_reason": reason,
		}).Error
}

func (r *repository) LinkPaymentSplit(ctx context.Context, paymentID, splitBillID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ?", paymentID).
		Update("split_bill_id", splitBillID).Error
}

func (r *repository) CountSplits(ctx context.Context, orderID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.SplitBill{}).
		Where("order_id = ?", orderID).
		Count(&count).Error
	return count, err
}

func (r *repository) CreateSplitBills(ctx context.Context, splits []models.SplitBill) error {
	if len(splits) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&splits).Error
}

func (r *repository) LockSplitBill(ctx context.Context, splitBillID uuid.UUID) (*models.SplitBill, error) {
	var split models.SplitBill
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", splitBillID).
		First(&split).Error
	if err != nil {
		return nil, err
	}
	return &split, nil
}

func (r *repository) UnpaidSplits(ctx context.Context, orderID uuid.UUID) ([]models.SplitBill, error) {
	var splits []models.SplitBill
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND paid = ?", orderID, false).
		Order("created_at ASC").
		Order("id ASC").
		Find(&splits).Error
	return splits, err
}

func (r *repository) MarkSplitPaid(ctx context.Context, splitBillID, paymentID uuid.UUID, paidAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.SplitBill{}).
		Where("id = ?", splitBillID).
		Updates(map[string]any{
			"paid":       true,
			"payment_id": paymentID,
			"paid_at":    paidAt,
		}).Error
}

func (r *repository) AppendEvent(ctx context.Context, event *models.OrderEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}
