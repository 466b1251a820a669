package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/furever-shop/api/internal/domain"
	"github.com/furever-shop/api/internal/platform/auth"
	"github.com/furever-shop/api/internal/platform/httpx"
	"github.com/furever-shop/api/internal/services"
)

const (
	maxOrderBodySize = 64 * 1024
	maxOrderListSize = 100
)

// OrderHandlers exposes the order lifecycle endpoints.
type OrderHandlers struct {
	orders     services.OrderService
	dispatcher services.SideEffectDispatcher
}

// NewOrderHandlers constructs the order endpoints.
func NewOrderHandlers(orders services.OrderService, dispatcher services.SideEffectDispatcher) *OrderHandlers {
	return &OrderHandlers{orders: orders, dispatcher: dispatcher}
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.createOrder)
	r.With(auth.RequireAdmin).Get("/", h.listAllOrders)
	r.With(auth.RequireUser).Get("/user/{userID}", h.listUserOrders)
	r.With(auth.RequireUser).Get("/{orderID}", h.getOrder)
	r.With(auth.RequireAdmin).Put("/{orderID}/status", h.updateStatus)
	r.With(auth.RequireUser).Put("/{orderID}/cancel", h.cancelOrder)
}

type orderItemRequest struct {
	// The mobile clients are inconsistent about the product reference key;
	// all three spellings are accepted.
	Product  string `json:"product"`
	ID       string `json:"id"`
	MongoID  string `json:"_id"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Image    string `json:"image"`
	Quantity int    `json:"quantity"`
}

func (i orderItemRequest) productRef() string {
	for _, candidate := range []string{i.Product, i.ID, i.MongoID} {
		if ref := strings.TrimSpace(candidate); ref != "" {
			return ref
		}
	}
	return ""
}

type createOrderRequest struct {
	// The mobile client sends orderItems; items is kept as a fallback for
	// older payloads.
	OrderItems       []orderItemRequest `json:"orderItems"`
	Items            []orderItemRequest `json:"items"`
	ShippingAddress1 string             `json:"shippingAddress1"`
	ShippingAddress2 string             `json:"shippingAddress2"`
	City             string             `json:"city"`
	Zip              string             `json:"zip"`
	Country          string             `json:"country"`
	Phone            string             `json:"phone"`
	PaymentMethod    string             `json:"paymentMethod"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := readLimitedBody(r, maxOrderBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	var req createOrderRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}

	cmd := services.CreateOrderCommand{
		ShippingAddress1: req.ShippingAddress1,
		ShippingAddress2: req.ShippingAddress2,
		City:             req.City,
		Zip:              req.Zip,
		Country:          req.Country,
		Phone:            req.Phone,
		PaymentMethod:    req.PaymentMethod,
	}
	if identity, ok := auth.IdentityFromContext(ctx); ok {
		uid := identity.UID
		cmd.CustomerRef = &uid
	}
	items := req.OrderItems
	if len(items) == 0 {
		items = req.Items
	}
	for _, item := range items {
		cmd.Items = append(cmd.Items, services.OrderItemInput{
			ProductRef: item.productRef(),
			Name:       item.Name,
			UnitPrice:  item.Price,
			ImageRef:   item.Image,
			Quantity:   item.Quantity,
		})
	}

	change, err := h.orders.CreateOrder(ctx, cmd)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	h.dispatch(ctx, change)

	writeJSONResponse(w, http.StatusCreated, orderResponse{Order: buildOrderPayload(change.Order)})
}

func (h *OrderHandlers) listAllOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	var status *domain.OrderStatus
	if raw := strings.TrimSpace(query.Get("status")); raw != "" {
		parsed := domain.OrderStatus(raw)
		status = &parsed
	}

	limit := 0
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "limit must be an integer", http.StatusBadRequest))
			return
		}
		if parsed > maxOrderListSize {
			parsed = maxOrderListSize
		}
		if parsed > 0 {
			limit = parsed
		}
	}

	orders, err := h.orders.ListAllOrders(ctx, services.OrderListQuery{Status: status, Limit: limit})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderListResponse(orders))
}

func (h *OrderHandlers) listUserOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := strings.TrimSpace(chi.URLParam(r, "userID"))
	if userID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "user id is required", http.StatusBadRequest))
		return
	}
	if !auth.CanAccessUser(ctx, userID) {
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "cannot access another user's orders", http.StatusForbidden))
		return
	}

	orders, err := h.orders.ListOrdersForCustomer(ctx, userID)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderListResponse(orders))
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	order, err := h.orders.GetOrder(ctx, orderID)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	if !h.canAccessOrder(ctx, order) {
		// Hide existence from other customers.
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	body, err := readLimitedBody(r, maxOrderBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	var req updateStatusRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}
	if strings.TrimSpace(req.Status) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "status is required", http.StatusBadRequest))
		return
	}

	change, err := h.orders.ApplyStatus(ctx, services.ApplyStatusCommand{
		OrderID: orderID,
		Target:  domain.OrderStatus(strings.TrimSpace(req.Status)),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	h.dispatch(ctx, change)

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(change.Order)})
}

func (h *OrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	order, err := h.orders.GetOrder(ctx, orderID)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	if !h.canAccessOrder(ctx, order) {
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
		return
	}

	change, err := h.orders.CancelOrder(ctx, services.CancelOrderCommand{OrderID: orderID})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	h.dispatch(ctx, change)

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(change.Order)})
}

func (h *OrderHandlers) canAccessOrder(ctx context.Context, order services.Order) bool {
	if customer := order.CustomerID(); customer != "" {
		return auth.CanAccessUser(ctx, customer)
	}
	// Guest orders are only visible to admins.
	identity, ok := auth.IdentityFromContext(ctx)
	return ok && identity.Admin
}

func (h *OrderHandlers) dispatch(ctx context.Context, change services.OrderChange) {
	if h.dispatcher != nil {
		h.dispatcher.Dispatch(ctx, change)
	}
}

type orderListResponse struct {
	Items []orderPayload `json:"items"`
}

type orderResponse struct {
	Order orderPayload `json:"order"`
}

type orderPayload struct {
	ID           string             `json:"id"`
	OrderNumber  string             `json:"order_number"`
	User         string             `json:"user,omitempty"`
	Status       string             `json:"status"`
	TotalPrice   int64              `json:"total_price"`
	Items        []orderItemPayload `json:"items"`
	Shipping     shippingPayload    `json:"shipping"`
	StockApplied bool               `json:"stock_applied"`
	CreatedAt    string             `json:"created_at"`
	UpdatedAt    string             `json:"updated_at,omitempty"`
	DeliveredAt  string             `json:"delivered_at,omitempty"`
	CanceledAt   string             `json:"canceled_at,omitempty"`
}

type orderItemPayload struct {
	Product  string `json:"product"`
	Name     string `json:"name,omitempty"`
	Price    int64  `json:"price"`
	Image    string `json:"image,omitempty"`
	Quantity int    `json:"quantity"`
	Subtotal int64  `json:"subtotal"`
}

type shippingPayload struct {
	Address1      string `json:"address1,omitempty"`
	Address2      string `json:"address2,omitempty"`
	City          string `json:"city,omitempty"`
	Zip           string `json:"zip,omitempty"`
	Country       string `json:"country,omitempty"`
	Phone         string `json:"phone,omitempty"`
	PaymentMethod string `json:"payment_method,omitempty"`
}

func buildOrderListResponse(orders []services.Order) orderListResponse {
	items := make([]orderPayload, 0, len(orders))
	for _, order := range orders {
		items = append(items, buildOrderPayload(order))
	}
	return orderListResponse{Items: items}
}

func buildOrderPayload(order services.Order) orderPayload {
	payload := orderPayload{
		ID:           order.ID,
		OrderNumber:  order.OrderNumber,
		User:         order.CustomerID(),
		Status:       string(order.Status),
		TotalPrice:   order.TotalPrice,
		Items:        make([]orderItemPayload, 0, len(order.Items)),
		StockApplied: order.StockApplied,
		Shipping: shippingPayload{
			Address1:      order.ShippingAddress1,
			Address2:      order.ShippingAddress2,
			City:          order.City,
			Zip:           order.Zip,
			Country:       order.Country,
			Phone:         order.Phone,
			PaymentMethod: order.PaymentMethod,
		},
		CreatedAt:   formatTime(order.CreatedAt),
		UpdatedAt:   formatTime(order.UpdatedAt),
		DeliveredAt: formatTimePtr(order.DeliveredAt),
		CanceledAt:  formatTimePtr(order.CanceledAt),
	}
	for _, item := range order.Items {
		payload.Items = append(payload.Items, orderItemPayload{
			Product:  item.ProductRef,
			Name:     item.Name,
			Price:    item.UnitPrice,
			Image:    item.ImageRef,
			Quantity: item.Quantity,
			Subtotal: item.Subtotal(),
		})
	}
	return payload
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrInvalidTransition):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_status_transition", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("storage_unavailable", "order storage unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "failed to process order request", http.StatusInternalServerError))
	}
}

func writeBodyError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is required", http.StatusBadRequest))
	}
}
