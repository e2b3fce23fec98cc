package orderstatus

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/tableserve-backend/pkg/db/models"
	"github.com/angelmondragon/tableserve-backend/pkg/enums"
)

// OrderRef identifies an order by id or by human order number.
type OrderRef struct {
	ID      uuid.UUID
	OrderNo string
}

func (r OrderRef) empty() bool {
	return r.ID == uuid.Nil && strings.TrimSpace(r.OrderNo) == ""
}

// Repository reads and mutates order status inside a caller transaction.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	LockOrder(ctx context.Context, ref OrderRef) (*models.Order, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) error
	UpdateTicketStatus(ctx context.Context, orderID uuid.UUID, status enums.KitchenTicketStatus) error
	AppendHistory(ctx context.Context, entry *models.OrderStatusHistory) error
	AppendEvent(ctx context.Context, event *models.OrderEvent) error
	History(ctx context.Context, orderID uuid.UUID) ([]models.OrderStatusHistory, error)
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

// LockOrder selects the order row FOR UPDATE so concurrent transitions on the
// same order serialize.
func (r *repository) LockOrder(ctx context.Context, ref OrderRef) (*models.Order, error) {
	if ref.empty() {
		return nil, gorm.ErrRecordNotFound
	}
	query := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"})
	if ref.ID != uuid.Nil {
		query = query.Where("id = ?", ref.ID)
	} else {
		query = query.Where("order_no = ?", strings.TrimSpace(ref.OrderNo))
	}
	var order models.Order
	if err := query.First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Update("status", status).Error
}

func (r *repository) UpdateTicketStatus(ctx context.Context, orderID uuid.UUID, status enums.KitchenTicketStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.KitchenTicket{}).
		Where("order_id = ? AND status <> ?", orderID, enums.KitchenTicketVoided).
		Update("status", status).Error
}

func (r *repository) AppendHistory(ctx context.Context, entry *models.OrderStatusHistory) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) AppendEvent(ctx context.Context, event *models.OrderEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *repository) History(ctx context.Context, orderID uuid.UUID) ([]models.OrderStatusHistory, error) {
	var rows []models.OrderStatusHistory
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}
