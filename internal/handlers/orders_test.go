package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/furever-shop/api/internal/domain"
	"github.com/furever-shop/api/internal/platform/auth"
	"github.com/furever-shop/api/internal/services"
)

type stubOrderService struct {
	createFn  func(context.Context, services.CreateOrderCommand) (services.OrderChange, error)
	getFn     func(context.Context, string) (services.Order, error)
	listForFn func(context.Context, string) ([]services.Order, error)
	listAllFn func(context.Context, services.OrderListQuery) ([]services.Order, error)
	applyFn   func(context.Context, services.ApplyStatusCommand) (services.OrderChange, error)
	cancelFn  func(context.Context, services.CancelOrderCommand) (services.OrderChange, error)
}

func (s *stubOrderService) CreateOrder(ctx context.Context, cmd services.CreateOrderCommand) (services.OrderChange, error) {
	if s.createFn != nil {
		return s.createFn(ctx, cmd)
	}
	return services.OrderChange{}, errors.New("not implemented")
}

func (s *stubOrderService) GetOrder(ctx context.Context, orderID string) (services.Order, error) {
	if s.getFn != nil {
		return s.getFn(ctx, orderID)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) ListOrdersForCustomer(ctx context.Context, customerRef string) ([]services.Order, error) {
	if s.listForFn != nil {
		return s.listForFn(ctx, customerRef)
	}
	return nil, nil
}

func (s *stubOrderService) ListAllOrders(ctx context.Context, query services.OrderListQuery) ([]services.Order, error) {
	if s.listAllFn != nil {
		return s.listAllFn(ctx, query)
	}
	return nil, nil
}

func (s *stubOrderService) ApplyStatus(ctx context.Context, cmd services.ApplyStatusCommand) (services.OrderChange, error) {
	if s.applyFn != nil {
		return s.applyFn(ctx, cmd)
	}
	return services.OrderChange{}, errors.New("not implemented")
}

func (s *stubOrderService) CancelOrder(ctx context.Context, cmd services.CancelOrderCommand) (services.OrderChange, error) {
	if s.cancelFn != nil {
		return s.cancelFn(ctx, cmd)
	}
	return services.OrderChange{}, errors.New("not implemented")
}

type stubDispatcher struct {
	changes []services.OrderChange
}

func (s *stubDispatcher) Dispatch(_ context.Context, change services.OrderChange) {
	s.changes = append(s.changes, change)
}

func newOrderTestServer(orders services.OrderService, dispatcher services.SideEffectDispatcher) http.Handler {
	h := NewOrderHandlers(orders, dispatcher)
	return NewRouter(
		WithMiddlewares(auth.Middleware()),
		WithOrderRoutes(h.Routes),
	)
}

func sampleOrder(customer string) services.Order {
	order := services.Order{
		ID:          "ord_1",
		OrderNumber: "FE-2026-000001",
		Status:      domain.OrderStatusPending,
		TotalPrice:  2500,
		Items: []services.OrderLineItem{
			{ProductRef: "prod-1", Name: "Chew Toy", UnitPrice: 1000, Quantity: 2},
		},
		CreatedAt: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
	}
	if customer != "" {
		order.CustomerRef = &customer
	}
	return order
}

func TestCreateOrderGuest(t *testing.T) {
	dispatcher := &stubDispatcher{}
	var captured services.CreateOrderCommand
	orders := &stubOrderService{
		createFn: func(_ context.Context, cmd services.CreateOrderCommand) (services.OrderChange, error) {
			captured = cmd
			return services.OrderChange{Order: sampleOrder("")}, nil
		},
	}
	server := newOrderTestServer(orders, dispatcher)

	body := `{"items":[{"_id":"prod-1","name":"Chew Toy","price":1000,"quantity":2}],"city":"Dogtown"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body))
	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.CustomerRef != nil {
		t.Fatalf("guest request must not carry a customer ref")
	}
	if len(captured.Items) != 1 || captured.Items[0].ProductRef != "prod-1" {
		t.Fatalf("expected _id accepted as product ref, got %#v", captured.Items)
	}
	if len(dispatcher.changes) != 1 {
		t.Fatalf("expected dispatcher invoked once, got %d", len(dispatcher.changes))
	}
}

func TestCreateOrderAuthenticatedSetsCustomer(t *testing.T) {
	var captured services.CreateOrderCommand
	orders := &stubOrderService{
		createFn: func(_ context.Context, cmd services.CreateOrderCommand) (services.OrderChange, error) {
			captured = cmd
			return services.OrderChange{Order: sampleOrder("user-1")}, nil
		},
	}
	server := newOrderTestServer(orders, &stubDispatcher{})

	body := `{"orderItems":[{"product":"prod-1","price":500,"quantity":1}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body))
	req.Header.Set("X-User-Id", "user-1")
	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.CustomerRef == nil || *captured.CustomerRef != "user-1" {
		t.Fatalf("expected customer ref user-1, got %v", captured.CustomerRef)
	}
	if len(captured.Items) != 1 || captured.Items[0].ProductRef != "prod-1" {
		t.Fatalf("expected orderItems parsed, got %#v", captured.Items)
	}
}

func TestCreateOrderValidationError(t *testing.T) {
	orders := &stubOrderService{
		createFn: func(context.Context, services.CreateOrderCommand) (services.OrderChange, error) {
			return services.OrderChange{}, services.ErrOrderInvalidInput
		},
	}
	server := newOrderTestServer(orders, &stubDispatcher{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(`{"items":[]}`))
	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
}

func TestListAllOrdersRequiresAdmin(t *testing.T) {
	server := newOrderTestServer(&stubOrderService{}, &stubDispatcher{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	req.Header.Set("X-User-Id", "user-1")
	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", rr.Code)
	}
}

func TestListAllOrdersAdmin(t *testing.T) {
	var captured services.OrderListQuery
	orders := &stubOrderService{
		listAllFn: func(_ context.Context, query services.OrderListQuery) ([]services.Order, error) {
			captured = query
			return []services.Order{sampleOrder("user-1")}, nil
		},
	}
	server := newOrderTestServer(orders, &stubDispatcher{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders?status=Pending&limit=10", nil)
	req.Header.Set("X-User-Id", "admin-1")
	req.Header.Set("X-User-Role", "admin")
	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.Status == nil || *captured.Status != domain.OrderStatusPending {
		t.Fatalf("expected Pending filter, got %v", captured.Status)
	}
	if captured.Limit != 10 {
		t.Fatalf("expected limit 10 got %d", captured.Limit)
	}

	var payload orderListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payload.Items) != 1 || payload.Items[0].OrderNumber != "FE-2026-000001" {
		t.Fatalf("unexpected payload %#v", payload)
	}
}

func TestListUserOrdersOwnershipEnforced(t *testing.T) {
	server := newOrderTestServer(&stubOrderService{}, &stubDispatcher{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/user/user-2", nil)
	req.Header.Set("X-User-Id", "user-1")
	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", rr.Code)
	}
}

func TestGetOrderHiddenFromOtherCustomers(t *testing.T) {
	orders := &stubOrderService{
		getFn: func(_ context.Context, orderID string) (services.Order, error) {
			return sampleOrder("user-2"), nil
		},
	}
	server := newOrderTestServer(orders, &stubDispatcher{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/ord_1", nil)
	req.Header.Set("X-User-Id", "user-1")
	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rr.Code)
	}
}

func TestGetOrderOwner(t *testing.T) {
	orders := &stubOrderService{
		getFn: func(_ context.Context, orderID string) (services.Order, error) {
			return sampleOrder("user-1"), nil
		},
	}
	server := newOrderTestServer(orders, &stubDispatcher{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/ord_1", nil)
	req.Header.Set("X-User-Id", "user-1")
	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	var payload orderResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Order.TotalPrice != 2500 {
		t.Fatalf("expected total 2500 got %d", payload.Order.TotalPrice)
	}
}

func TestUpdateStatusRequiresAdmin(t *testing.T) {
	server := newOrderTestServer(&stubOrderService{}, &stubDispatcher{})

	req := httptest.NewRequest(http.MethodPut, "/api/v1/orders/ord_1/status", strings.NewReader(`{"status":"Shipped"}`))
	req.Header.Set("X-User-Id", "user-1")
	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", rr.Code)
	}
}

func TestUpdateStatusInvalidTransition(t *testing.T) {
	orders := &stubOrderService{
		applyFn: func(context.Context, services.ApplyStatusCommand) (services.OrderChange, error) {
			return services.OrderChange{}, services.ErrInvalidTransition
		},
	}
	server := newOrderTestServer(orders, &stubDispatcher{})

	req := httptest.NewRequest(http.MethodPut, "/api/v1/orders/ord_1/status", strings.NewReader(`{"status":"Delivered"}`))
	req.Header.Set("X-User-Id", "admin-1")
	req.Header.Set("X-User-Role", "admin")
	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", rr.Code)
	}
}

func TestUpdateStatusDispatchesEffects(t *testing.T) {
	dispatcher := &stubDispatcher{}
	orders := &stubOrderService{
		applyFn: func(_ context.Context, cmd services.ApplyStatusCommand) (services.OrderChange, error) {
			if cmd.Target != domain.OrderStatusShipped {
				t.Fatalf("expected Shipped target got %s", cmd.Target)
			}
			order := sampleOrder("user-1")
			order.Status = domain.OrderStatusShipped
			return services.OrderChange{Order: order, Effects: []services.SideEffect{{Kind: services.EffectNotifyCustomer}}}, nil
		},
	}
	server := newOrderTestServer(orders, dispatcher)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/orders/ord_1/status", strings.NewReader(`{"status":"Shipped"}`))
	req.Header.Set("X-User-Id", "admin-1")
	req.Header.Set("X-User-Role", "admin")
	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	if len(dispatcher.changes) != 1 || len(dispatcher.changes[0].Effects) != 1 {
		t.Fatalf("expected effects handed to dispatcher, got %#v", dispatcher.changes)
	}
}

func TestCancelOrderOwner(t *testing.T) {
	dispatcher := &stubDispatcher{}
	orders := &stubOrderService{
		getFn: func(context.Context, string) (services.Order, error) {
			return sampleOrder("user-1"), nil
		},
		cancelFn: func(_ context.Context, cmd services.CancelOrderCommand) (services.OrderChange, error) {
			order := sampleOrder("user-1")
			order.Status = domain.OrderStatusCanceled
			return services.OrderChange{Order: order}, nil
		},
	}
	server := newOrderTestServer(orders, dispatcher)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/orders/ord_1/cancel", nil)
	req.Header.Set("X-User-Id", "user-1")
	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	var payload orderResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Order.Status != string(domain.OrderStatusCanceled) {
		t.Fatalf("expected Canceled got %s", payload.Order.Status)
	}
	if len(dispatcher.changes) != 1 {
		t.Fatalf("expected dispatcher invoked once, got %d", len(dispatcher.changes))
	}
}

func TestCancelOrderRequiresAuth(t *testing.T) {
	server := newOrderTestServer(&stubOrderService{}, &stubDispatcher{})

	req := httptest.NewRequest(http.MethodPut, "/api/v1/orders/ord_1/cancel", nil)
	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rr.Code)
	}
}
