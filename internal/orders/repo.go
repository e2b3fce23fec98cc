package orders

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tableserve-backend/pkg/db/models"
	"github.com/angelmondragon/tableserve-backend/pkg/pagination"
)

// Repository persists orders and their placement-time children.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) error
	CreateItems(ctx context.Context, items []models.OrderItem) error
	CreateItemAddons(ctx context.Context, addons []models.OrderItemAddon) error
	CreateKitchenTicket(ctx context.Context, ticket *models.KitchenTicket) error
	CreateKitchenTicketItems(ctx context.Context, items []models.KitchenTicketItem) error
	CreateStatusHistory(ctx context.Context, entry *models.OrderStatusHistory) error
	CreateEvent(ctx context.Context, event *models.OrderEvent) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	List(ctx context.Context, filters ListFilters, params pagination.Params) ([]models.Order, int64, int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Omit("Items", "KitchenTicket").Create(order).Error
}

func (r *repository) CreateItems(ctx context.Context, items []models.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Omit("Variant", "Addons").Create(&items).Error
}

func (r *repository) CreateItemAddons(ctx context.Context, addons []models.OrderItemAddon) error {
	if len(addons) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&addons).Error
}

func (r *repository) CreateKitchenTicket(ctx context.Context, ticket *models.KitchenTicket) error {
	return r.db.WithContext(ctx).Omit("Items").Create(ticket).Error
}

func (r *repository) CreateKitchenTicketItems(ctx context.Context, items []models.KitchenTicketItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *repository) CreateStatusHistory(ctx context.Context, entry *models.OrderStatusHistory) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) CreateEvent(ctx context.Context, event *models.OrderEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

// FindByID loads the order with items, their variants and addons, and the kitchen ticket.
func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("Items.Variant").
		Preload("Items.Addons").
		Preload("KitchenTicket").
		Preload("KitchenTicket.Items").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// List returns one page of orders, newest first, plus the unfiltered total
// for the restaurant scope and the filtered total.
func (r *repository) List(ctx context.Context, filters ListFilters, params pagination.Params) ([]models.Order, int64, int64, error) {
	params = params.Normalize()

	scope := r.db.WithContext(ctx).Model(&models.Order{})
	if filters.RestaurantID != nil {
		scope = scope.Where("restaurant_id = ?", *filters.RestaurantID)
	}
	if filters.CustomerID != nil {
		scope = scope.Where("customer_id = ?", *filters.CustomerID)
	}

	var total int64
	if err := scope.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, 0, err
	}

	filtered := applyListFilters(scope.Session(&gorm.Session{}), filters)
	var filteredCount int64
	if err := filtered.Session(&gorm.Session{}).Count(&filteredCount).Error; err != nil {
		return nil, 0, 0, err
	}

	var records []models.Order
	err := filtered.
		Order("created_at DESC").
		Order("id DESC").
		Offset(params.Offset).
		Limit(params.Limit).
		Find(&records).Error
	if err != nil {
		return nil, 0, 0, err
	}
	return records, total, filteredCount, nil
}

func applyListFilters(q *gorm.DB, filters ListFilters) *gorm.DB {
	if orderNo := strings.TrimSpace(filters.OrderNo); orderNo != "" {
		q = q.Where("order_no LIKE ?", "%"+orderNo+"%")
	}
	if filters.Status != nil {
		q = q.Where("status = ?", *filters.Status)
	}
	if filters.PaymentStatus != nil {
		q = q.Where("payment_status = ?", *filters.PaymentStatus)
	}
	if filters.PaymentMethod != nil {
		q = q.Where("payment_method = ?", *filters.PaymentMethod)
	}
	if filters.Channel != nil {
		q = q.Where("channel = ?", *filters.Channel)
	}
	if filters.DeliveryType != nil {
		q = q.Where("delivery_type = ?", *filters.DeliveryType)
	}
	if filters.StartDate != nil {
		q = q.Where("created_at >= ?", filters.StartDate.UTC())
	}
	if filters.EndDate != nil {
		q = q.Where("created_at <= ?", filters.EndDate.UTC())
	}
	if filters.MinAmount != nil {
		q = q.Where("net_amount >= ?", *filters.MinAmount)
	}
	if filters.MaxAmount != nil {
		q = q.Where("net_amount <= ?", *filters.MaxAmount)
	}
	return q
}
