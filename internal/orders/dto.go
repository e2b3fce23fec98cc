package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tableserve-backend/pkg/db/models"
	"github.com/angelmondragon/tableserve-backend/pkg/enums"
	"github.com/angelmondragon/tableserve-backend/pkg/outbox"
)

// Cart is the placement request as received from a customer or POS client.
type Cart struct {
	RestaurantID uuid.UUID
	TableID      *uuid.UUID
	CustomerID   *uuid.UUID
	DeliveryType enums.DeliveryType
	Channel      enums.OrderChannel
	Items        []CartItem
	Note         string
}

type CartItem struct {
	FoodItemID uuid.UUID
	VariantID  *uuid.UUID
	Quantity   int
	AddonIDs   []uuid.UUID
}

// PricingSnapshot is the authoritative priced cart. The writer persists it
// verbatim and never consults the catalog again.
type PricingSnapshot struct {
	Restaurant *models.Restaurant
	Table      *models.RestaurantTable
	Lines      []PricedLine
	Total      decimal.Decimal
	Currency   string
}

type PricedLine struct {
	Item        *models.FoodItem
	Variant     *models.FoodItemVariant
	UnitPrice   decimal.Decimal
	Quantity    int
	Addons      []models.FoodItemAddon
	AddonsTotal decimal.Decimal
	LineTotal   decimal.Decimal
}

// PlacementMeta carries the non-priced cart fields and the placing actor.
type PlacementMeta struct {
	CustomerID   *uuid.UUID
	DeliveryType enums.DeliveryType
	Channel      enums.OrderChannel
	Note         string
	ActorID      *uuid.UUID
	ActorType    *enums.SubjectType
	Actor        *outbox.ActorRef
}

// Placement is the writer's result. Partial is set when the order committed
// but could not be read back; Order is nil in that case.
type Placement struct {
	OrderID      uuid.UUID
	OrderNo      string
	TicketNo     string
	RestaurantID uuid.UUID
	NetAmount    decimal.Decimal
	Currency     string
	Partial      bool
	Order        *models.Order
}

const (
	ResultSuccess = "SUCCESS"
	ResultFailed  = "FAILED"
)

// PlaceOrderResult is the tagged placement outcome returned to clients.
type PlaceOrderResult struct {
	Status  string     `json:"status"`
	Order   *OrderView `json:"order,omitempty"`
	Message string     `json:"message,omitempty"`
	Partial bool       `json:"partial,omitempty"`
}

// ListFilters narrows the order list. Zero values are ignored.
type ListFilters struct {
	RestaurantID  *uuid.UUID
	CustomerID    *uuid.UUID
	OrderNo       string
	Status        *enums.OrderStatus
	PaymentStatus *enums.PaymentStatus
	PaymentMethod *enums.PaymentMethod
	Channel       *enums.OrderChannel
	DeliveryType  *enums.DeliveryType
	StartDate     *time.Time
	EndDate       *time.Time
	MinAmount     *decimal.Decimal
	MaxAmount     *decimal.Decimal
}

type OrderList struct {
	Records         []OrderView
	RecordsTotal    int64
	RecordsFiltered int64
}

type OrderView struct {
	ID             uuid.UUID            `json:"id"`
	OrderNo        string               `json:"orderNo"`
	RestaurantID   uuid.UUID            `json:"restaurantId"`
	TableID        *uuid.UUID           `json:"tableId,omitempty"`
	CustomerID     *uuid.UUID           `json:"customerId,omitempty"`
	DeliveryType   enums.DeliveryType   `json:"deliveryType"`
	Channel        enums.OrderChannel   `json:"channel"`
	Status         enums.OrderStatus    `json:"status"`
	PaymentStatus  enums.PaymentStatus  `json:"paymentStatus"`
	PaymentMethod  *enums.PaymentMethod `json:"paymentMethod,omitempty"`
	TotalAmount    decimal.Decimal      `json:"totalAmount"`
	TaxAmount      decimal.Decimal      `json:"taxAmount"`
	DiscountAmount decimal.Decimal      `json:"discountAmount"`
	TipsAmount     decimal.Decimal      `json:"tipsAmount"`
	NetAmount      decimal.Decimal      `json:"netAmount"`
	Currency       string               `json:"currency"`
	Note           *string              `json:"note,omitempty"`
	Items          []OrderItemView      `json:"items,omitempty"`
	KitchenTicket  *KitchenTicketView   `json:"kitchenTicket,omitempty"`
	CreatedAt      time.Time            `json:"createdAt"`
	UpdatedAt      time.Time            `json:"updatedAt"`
}

type OrderItemView struct {
	ID          uuid.UUID       `json:"id"`
	FoodItemID  uuid.UUID       `json:"foodItemId"`
	VariantID   *uuid.UUID      `json:"variantId,omitempty"`
	ItemName    string          `json:"itemName"`
	VariantName *string         `json:"variantName,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	AddonsTotal decimal.Decimal `json:"addonsTotal"`
	TotalPrice  decimal.Decimal `json:"totalPrice"`
	Addons      []AddonView     `json:"addons,omitempty"`
}

type AddonView struct {
	AddonID uuid.UUID       `json:"addonId"`
	Name    string          `json:"name"`
	Price   decimal.Decimal `json:"price"`
}

type KitchenTicketView struct {
	ID       uuid.UUID                 `json:"id"`
	TicketNo string                    `json:"ticketNo"`
	Status   enums.KitchenTicketStatus `json:"status"`
}

// NewOrderView flattens a loaded order for API and realtime payloads.
func NewOrderView(order *models.Order) *OrderView {
	if order == nil {
		return nil
	}
	view := &OrderView{
		ID:             order.ID,
		OrderNo:        order.OrderNo,
		RestaurantID:   order.RestaurantID,
		TableID:        order.TableID,
		CustomerID:     order.CustomerID,
		DeliveryType:   order.DeliveryType,
		Channel:        order.Channel,
		Status:         order.Status,
		PaymentStatus:  order.PaymentStatus,
		PaymentMethod:  order.PaymentMethod,
		TotalAmount:    order.TotalAmount,
		TaxAmount:      order.TaxAmount,
		DiscountAmount: order.DiscountAmount,
		TipsAmount:     order.TipsAmount,
		NetAmount:      order.NetAmount,
		Currency:       order.Currency,
		Note:           order.Note,
		CreatedAt:      order.CreatedAt,
		UpdatedAt:      order.UpdatedAt,
	}
	for _, item := range order.Items {
		itemView := OrderItemView{
			ID:          item.ID,
			FoodItemID:  item.FoodItemID,
			VariantID:   item.VariantID,
			ItemName:    item.ItemName,
			VariantName: item.VariantName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			AddonsTotal: item.AddonsTotal,
			TotalPrice:  item.TotalPrice,
		}
		for _, addon := range item.Addons {
			itemView.Addons = append(itemView.Addons, AddonView{AddonID: addon.AddonID, Name: addon.Name, Price: addon.Price})
		}
		view.Items = append(view.Items, itemView)
	}
	if order.KitchenTicket != nil {
		view.KitchenTicket = &KitchenTicketView{
			ID:       order.KitchenTicket.ID,
			TicketNo: order.KitchenTicket.TicketNo,
			Status:   order.KitchenTicket.Status,
		}
	}
	return view
}

// placementView builds the client payload from the snapshot when the
// committed order could not be read back.
func placementView(p *Placement, snapshot *PricingSnapshot, meta PlacementMeta) *OrderView {
	view := &OrderView{
		ID:            p.OrderID,
		OrderNo:       p.OrderNo,
		RestaurantID:  p.RestaurantID,
		CustomerID:    meta.CustomerID,
		DeliveryType:  meta.DeliveryType,
		Channel:       meta.Channel,
		Status:        enums.OrderStatusPending,
		PaymentStatus: enums.PaymentStatusUnpaid,
		TotalAmount:   snapshot.Total,
		NetAmount:     p.NetAmount,
		Currency:      p.Currency,
	}
	if snapshot.Table != nil {
		tableID := snapshot.Table.ID
		view.TableID = &tableID
	}
	if p.TicketNo != "" {
		view.KitchenTicket = &KitchenTicketView{TicketNo: p.TicketNo, Status: enums.KitchenTicketQueued}
	}
	return view
}
