package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/furever-shop/api/internal/domain"
	"github.com/furever-shop/api/internal/repositories"
)

// Sentinel errors returned by OrderService.
var (
	ErrOrderInvalidInput = errors.New("order: invalid input")
	ErrOrderNotFound     = errors.New("order: not found")
	ErrInvalidTransition = errors.New("order: invalid status transition")
	ErrOrderUnavailable  = errors.New("order: storage unavailable")
)

// orderStateTransitions is the single transition table. A transition is legal
// iff the target appears under the current status; terminal states map to an
// empty list and self-transitions are never legal.
var orderStateTransitions = map[domain.OrderStatus][]domain.OrderStatus{
	domain.OrderStatusPending:    {domain.OrderStatusProcessing, domain.OrderStatusCanceled},
	domain.OrderStatusProcessing: {domain.OrderStatusShipped, domain.OrderStatusCanceled},
	domain.OrderStatusShipped:    {domain.OrderStatusDelivered},
	domain.OrderStatusDelivered:  {},
	domain.OrderStatusCanceled:   {},
}

func canTransition(from, to domain.OrderStatus) bool {
	allowed, ok := orderStateTransitions[from]
	if !ok {
		return false
	}
	return slices.Contains(allowed, to)
}

// statusNotificationKinds maps a newly entered status to the customer
// notification kind it triggers.
var statusNotificationKinds = map[domain.OrderStatus]domain.NotificationKind{
	domain.OrderStatusProcessing: domain.NotificationOrderProcessing,
	domain.OrderStatusShipped:    domain.NotificationOrderShipped,
	domain.OrderStatusDelivered:  domain.NotificationOrderDelivered,
	domain.OrderStatusCanceled:   domain.NotificationOrderCanceled,
}

const orderNumberCounterPrefix = "orders"

// OrderServiceDeps wires the order service dependencies.
type OrderServiceDeps struct {
	Orders   repositories.OrderRepository
	Counters repositories.CounterRepository
	Clock    Clock
	IDGen    IDGenerator
}

type orderService struct {
	orders   repositories.OrderRepository
	counters repositories.CounterRepository
	clock    Clock
	idGen    IDGenerator
}

// NewOrderService validates dependencies and returns an OrderService.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service requires order repository")
	}
	if deps.Counters == nil {
		return nil, errors.New("order service requires counter repository")
	}
	clock := deps.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	idGen := deps.IDGen
	if idGen == nil {
		idGen = func() string { return "ord_" + ulid.Make().String() }
	}
	return &orderService{
		orders:   deps.Orders,
		counters: deps.Counters,
		clock:    clock,
		idGen:    idGen,
	}, nil
}

// CreateOrder validates the payload, freezes the total, stores the order in
// Pending, and returns the side effects for the dispatcher.
func (s *orderService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (OrderChange, error) {
	items, err := normalizeItems(cmd.Items)
	if err != nil {
		return OrderChange{}, err
	}

	now := s.clock()
	order := domain.Order{
		ID:               s.idGen(),
		Items:            items,
		Status:           domain.OrderStatusPending,
		TotalPrice:       computeTotal(items),
		ShippingAddress1: strings.TrimSpace(cmd.ShippingAddress1),
		ShippingAddress2: strings.TrimSpace(cmd.ShippingAddress2),
		City:             strings.TrimSpace(cmd.City),
		Zip:              strings.TrimSpace(cmd.Zip),
		Country:          strings.TrimSpace(cmd.Country),
		Phone:            strings.TrimSpace(cmd.Phone),
		PaymentMethod:    strings.TrimSpace(cmd.PaymentMethod),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if cmd.CustomerRef != nil {
		if ref := strings.TrimSpace(*cmd.CustomerRef); ref != "" {
			order.CustomerRef = &ref
		}
	}

	number, err := s.nextOrderNumber(ctx, now)
	if err != nil {
		return OrderChange{}, err
	}
	order.OrderNumber = number

	if err := s.orders.Insert(ctx, order); err != nil {
		return OrderChange{}, mapOrderRepositoryError(err)
	}

	effects := []SideEffect{}
	if customer := order.CustomerID(); customer != "" {
		effects = append(effects,
			SideEffect{Kind: EffectNotifyCustomer, NotificationKind: domain.NotificationOrderConfirmed, CustomerRef: customer, Order: order},
			SideEffect{Kind: EffectSendEmail, NotificationKind: domain.NotificationOrderConfirmed, CustomerRef: customer, Order: order},
		)
	}
	effects = append(effects,
		SideEffect{Kind: EffectNotifyAdmins, NotificationKind: domain.NotificationAdminNewOrder, Order: order},
		SideEffect{Kind: EffectPublishEvent, Order: order, Event: &OrderEventMessage{
			Type:        OrderEventCreated,
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			Status:      string(order.Status),
			TotalPrice:  order.TotalPrice,
			OccurredAt:  now,
		}},
	)

	return OrderChange{Order: order, Effects: effects}, nil
}

// GetOrder loads a single order.
func (s *orderService) GetOrder(ctx context.Context, orderID string) (Order, error) {
	id := strings.TrimSpace(orderID)
	if id == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return Order{}, mapOrderRepositoryError(err)
	}
	return order, nil
}

// ListOrdersForCustomer returns the customer's orders, newest first.
func (s *orderService) ListOrdersForCustomer(ctx context.Context, customerRef string) ([]Order, error) {
	ref := strings.TrimSpace(customerRef)
	if ref == "" {
		return nil, fmt.Errorf("%w: customer ref is required", ErrOrderInvalidInput)
	}
	orders, err := s.orders.List(ctx, repositories.OrderListFilter{CustomerRef: ref})
	if err != nil {
		return nil, mapOrderRepositoryError(err)
	}
	return orders, nil
}

// ListAllOrders returns the admin listing, newest first.
func (s *orderService) ListAllOrders(ctx context.Context, query OrderListQuery) ([]Order, error) {
	if query.Status != nil && !query.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, *query.Status)
	}
	orders, err := s.orders.List(ctx, repositories.OrderListFilter{
		Status: query.Status,
		Limit:  query.Limit,
	})
	if err != nil {
		return nil, mapOrderRepositoryError(err)
	}
	return orders, nil
}

// ApplyStatus is the single transition chokepoint. It enforces the transition
// table, stamps lifecycle timestamps, persists the change, and returns the
// side effects for the dispatcher.
func (s *orderService) ApplyStatus(ctx context.Context, cmd ApplyStatusCommand) (OrderChange, error) {
	id := strings.TrimSpace(cmd.OrderID)
	if id == "" {
		return OrderChange{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if !cmd.Target.Valid() {
		return OrderChange{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, cmd.Target)
	}

	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return OrderChange{}, mapOrderRepositoryError(err)
	}

	previous := order.Status
	if !canTransition(previous, cmd.Target) {
		return OrderChange{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, previous, cmd.Target)
	}

	now := s.clock()
	order.Status = cmd.Target
	order.UpdatedAt = now
	switch cmd.Target {
	case domain.OrderStatusDelivered:
		order.DeliveredAt = &now
	case domain.OrderStatusCanceled:
		order.CanceledAt = &now
	}

	if err := s.orders.Update(ctx, order); err != nil {
		return OrderChange{}, mapOrderRepositoryError(err)
	}

	var effects []SideEffect
	if kind, ok := statusNotificationKinds[cmd.Target]; ok {
		if customer := order.CustomerID(); customer != "" {
			effects = append(effects,
				SideEffect{Kind: EffectNotifyCustomer, NotificationKind: kind, CustomerRef: customer, Order: order},
				SideEffect{Kind: EffectSendEmail, NotificationKind: kind, CustomerRef: customer, Order: order},
			)
		}
	}
	if cmd.Target == domain.OrderStatusDelivered {
		effects = append(effects,
			SideEffect{Kind: EffectAdjustStock, Order: order},
			SideEffect{Kind: EffectNotifyAdmins, NotificationKind: domain.NotificationAdminOrderDelivered, Order: order},
		)
	}
	effects = append(effects, SideEffect{Kind: EffectPublishEvent, Order: order, Event: &OrderEventMessage{
		Type:           OrderEventStatusChanged,
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		Status:         string(order.Status),
		PreviousStatus: string(previous),
		TotalPrice:     order.TotalPrice,
		OccurredAt:     now,
	}})

	return OrderChange{Order: order, PreviousStatus: &previous, Effects: effects}, nil
}

// CancelOrder requests cancellation through the same chokepoint as every
// other transition; the table rejects shipped and terminal orders.
func (s *orderService) CancelOrder(ctx context.Context, cmd CancelOrderCommand) (OrderChange, error) {
	return s.ApplyStatus(ctx, ApplyStatusCommand{
		OrderID: cmd.OrderID,
		Target:  domain.OrderStatusCanceled,
	})
}

func (s *orderService) nextOrderNumber(ctx context.Context, now time.Time) (string, error) {
	year := now.UTC().Year()
	counterID := fmt.Sprintf("%s-%04d", orderNumberCounterPrefix, year)
	seq, err := s.counters.Next(ctx, counterID, 1)
	if err != nil {
		return "", mapOrderRepositoryError(err)
	}
	return fmt.Sprintf("FE-%04d-%06d", year, seq), nil
}

func normalizeItems(inputs []OrderItemInput) ([]domain.OrderLineItem, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: order must contain at least one item", ErrOrderInvalidInput)
	}

	items := make([]domain.OrderLineItem, 0, len(inputs))
	for i, input := range inputs {
		productRef := strings.TrimSpace(input.ProductRef)
		if productRef == "" {
			return nil, fmt.Errorf("%w: item %d is missing a product reference", ErrOrderInvalidInput, i)
		}
		if input.UnitPrice < 0 {
			return nil, fmt.Errorf("%w: item %d has a negative price", ErrOrderInvalidInput, i)
		}
		quantity := input.Quantity
		if quantity < 1 {
			quantity = 1
		}
		items = append(items, domain.OrderLineItem{
			ProductRef: productRef,
			Name:       strings.TrimSpace(input.Name),
			UnitPrice:  input.UnitPrice,
			ImageRef:   strings.TrimSpace(input.ImageRef),
			Quantity:   quantity,
		})
	}
	return items, nil
}

func computeTotal(items []domain.OrderLineItem) int64 {
	var total int64
	for _, item := range items {
		total += item.Subtotal()
	}
	return total
}

func mapOrderRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrOrderUnavailable, err)
		}
	}
	return err
}
