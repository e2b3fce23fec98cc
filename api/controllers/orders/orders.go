package orders

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/tableserve-backend/api/middleware"
	"github.com/angelmondragon/tableserve-backend/api/responses"
	"github.com/angelmondragon/tableserve-backend/api/validators"
	internalorders "github.com/angelmondragon/tableserve-backend/internal/orders"
	"github.com/angelmondragon/tableserve-backend/internal/orderstatus"
	"github.com/angelmondragon/tableserve-backend/pkg/auth"
	"github.com/angelmondragon/tableserve-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tableserve-backend/pkg/errors"
	"github.com/angelmondragon/tableserve-backend/pkg/logger"
	"github.com/angelmondragon/tableserve-backend/pkg/pagination"
)

// OrderReader is the read side of the orders service used for scoped lookups.
type OrderReader interface {
	GetOrder(ctx context.Context, id uuid.UUID) (*internalorders.OrderView, error)
}

type placeOrderItem struct {
	FoodItemID uuid.UUID   `json:"foodItemId"`
	VariantID  *uuid.UUID  `json:"variantId,omitempty"`
	Quantity   int         `json:"quantity" validate:"min=1"`
	AddonIDs   []uuid.UUID `json:"addonIds,omitempty"`
}

type placeOrderRequest struct {
	RestaurantID uuid.UUID        `json:"restaurantId"`
	TableID      *uuid.UUID       `json:"tableId,omitempty"`
	CustomerID   *uuid.UUID       `json:"customerId,omitempty"`
	DeliveryType string           `json:"deliveryType" validate:"omitempty,oneof=dine_in pickup delivery"`
	Channel      string           `json:"channel" validate:"omitempty,oneof=pos qr online"`
	Note         string           `json:"note" validate:"max=500"`
	Items        []placeOrderItem `json:"items" validate:"dive"`
}

// Place prices and persists a cart. Customers always order for themselves;
// staff place orders for their own restaurant and may attach a customer.
func Place(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		caller, err := middleware.CallerFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req placeOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if req.RestaurantID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "restaurantId is required"))
			return
		}

		customerID := req.CustomerID
		switch {
		case caller.IsCustomer():
			id := caller.SubjectID
			customerID = &id
		case !caller.IsStaffOf(req.RestaurantID):
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "orders can only be placed for your restaurant"))
			return
		}

		cart := internalorders.Cart{
			RestaurantID: req.RestaurantID,
			TableID:      req.TableID,
			CustomerID:   customerID,
			DeliveryType: enums.DeliveryType(req.DeliveryType),
			Channel:      enums.OrderChannel(req.Channel),
			Note:         validators.SanitizeString(req.Note, 500),
		}
		for _, item := range req.Items {
			cart.Items = append(cart.Items, internalorders.CartItem{
				FoodItemID: item.FoodItemID,
				VariantID:  item.VariantID,
				Quantity:   item.Quantity,
				AddonIDs:   item.AddonIDs,
			})
		}

		actorID := caller.SubjectID
		actorType := caller.SubjectType
		result, err := svc.PlaceOrder(r.Context(), internalorders.PlaceOrderInput{
			Cart:      cart,
			ActorID:   &actorID,
			ActorType: &actorType,
			Actor:     caller.ActorRef(),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		message := "order placed"
		if result.Message != "" {
			message = result.Message
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, message, result.Order)
	}
}

// List returns a filtered order page. Restaurant staff only ever see their
// own restaurant; platform admins may filter by restaurant_id.
func List(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		caller, err := middleware.CallerFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filters, err := buildListFilters(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if caller.Role != enums.RolePlatformAdmin {
			if caller.RestaurantID == nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "restaurant context required"))
				return
			}
			filters.RestaurantID = caller.RestaurantID
		}

		params, err := pagination.Parse(r.URL.Query().Get("offset"), r.URL.Query().Get("limit"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error()))
			return
		}

		list, err := svc.ListOrders(r.Context(), filters, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteList(w, "orders fetched", list.Records, list.RecordsTotal, list.RecordsFiltered)
	}
}

// Detail returns one order to its customer or to staff of its restaurant.
func Detail(reader OrderReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if reader == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		caller, err := middleware.CallerFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseURLParamUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := ScopedOrder(r.Context(), reader, caller, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, "order fetched", order)
	}
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
	Note   string `json:"note" validate:"max=500"`
}

// UpdateStatus moves an order through its lifecycle on behalf of staff.
func UpdateStatus(statuses orderstatus.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if statuses == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order status service unavailable"))
			return
		}
		caller, err := middleware.CallerFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseURLParamUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req statusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		to, err := enums.ParseOrderStatus(strings.TrimSpace(req.Status))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error()))
			return
		}

		var scope *uuid.UUID
		if caller.Role != enums.RolePlatformAdmin {
			if caller.RestaurantID == nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "restaurant context required"))
				return
			}
			scope = caller.RestaurantID
		}

		actorID := caller.SubjectID
		actorType := caller.SubjectType
		result, err := statuses.Transition(r.Context(), orderstatus.TransitionInput{
			Order:        orderstatus.OrderRef{ID: orderID},
			To:           to,
			RestaurantID: scope,
			ActorID:      &actorID,
			ActorType:    &actorType,
			Actor:        caller.ActorRef(),
			Note:         validators.SanitizeString(req.Note, 500),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, "order status updated", result)
	}
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// Cancel lets a customer cancel one of their own orders.
func Cancel(statuses orderstatus.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if statuses == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order status service unavailable"))
			return
		}
		caller, err := middleware.CallerFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !caller.IsCustomer() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "customer access required"))
			return
		}
		orderID, err := validators.ParseURLParamUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req cancelRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := statuses.CustomerCancel(r.Context(), orderstatus.CancelInput{
			Order:      orderstatus.OrderRef{ID: orderID},
			CustomerID: caller.SubjectID,
			Reason:     validators.SanitizeString(req.Reason, 500),
			Actor:      caller.ActorRef(),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, "order cancelled", result)
	}
}

// ScopedOrder loads an order the caller may see. Orders outside the caller's
// scope are reported as not found.
func ScopedOrder(ctx context.Context, reader OrderReader, caller auth.Identity, orderID uuid.UUID) (*internalorders.OrderView, error) {
	order, err := reader.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	visible := caller.IsStaffOf(order.RestaurantID)
	if caller.IsCustomer() {
		visible = order.CustomerID != nil && *order.CustomerID == caller.SubjectID
	}
	if !visible {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found").WithReason(pkgerrors.ReasonOrderNotFound)
	}
	return order, nil
}

func buildListFilters(r *http.Request) (internalorders.ListFilters, error) {
	q := r.URL.Query()
	filters := internalorders.ListFilters{
		OrderNo: strings.TrimSpace(q.Get("order_no")),
	}

	var err error
	if filters.RestaurantID, err = validators.ParseQueryUUID(r, "restaurant_id"); err != nil {
		return filters, err
	}
	if filters.CustomerID, err = validators.ParseQueryUUID(r, "customer_id"); err != nil {
		return filters, err
	}
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		status, err := enums.ParseOrderStatus(raw)
		if err != nil {
			return filters, invalidFilter("status", err)
		}
		filters.Status = &status
	}
	if raw := strings.TrimSpace(q.Get("payment_status")); raw != "" {
		status, err := enums.ParsePaymentStatus(raw)
		if err != nil {
			return filters, invalidFilter("payment_status", err)
		}
		filters.PaymentStatus = &status
	}
	if raw := strings.TrimSpace(q.Get("payment_method")); raw != "" {
		method, err := enums.ParsePaymentMethod(raw)
		if err != nil {
			return filters, invalidFilter("payment_method", err)
		}
		filters.PaymentMethod = &method
	}
	if raw := strings.TrimSpace(q.Get("channel")); raw != "" {
		channel, err := enums.ParseOrderChannel(raw)
		if err != nil {
			return filters, invalidFilter("channel", err)
		}
		filters.Channel = &channel
	}
	if raw := strings.TrimSpace(q.Get("delivery_type")); raw != "" {
		deliveryType, err := enums.ParseDeliveryType(raw)
		if err != nil {
			return filters, invalidFilter("delivery_type", err)
		}
		filters.DeliveryType = &deliveryType
	}
	if filters.StartDate, err = validators.ParseQueryTime(r, "start_date"); err != nil {
		return filters, err
	}
	if filters.EndDate, err = validators.ParseQueryTime(r, "end_date"); err != nil {
		return filters, err
	}
	if filters.MinAmount, err = validators.ParseQueryDecimal(r, "min_amount"); err != nil {
		return filters, err
	}
	if filters.MaxAmount, err = validators.ParseQueryDecimal(r, "max_amount"); err != nil {
		return filters, err
	}
	return filters, nil
}

func invalidFilter(field string, err error) error {
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid filter").WithDetails(map[string]any{"field": field})
}
