// Package services holds the order lifecycle business logic. Services depend
// on repository interfaces and return explicit side-effect lists; the
// dispatcher consumes those effects after the state change commits.
package services

import (
	"context"
	"time"

	"github.com/furever-shop/api/internal/domain"
)

// Aliases keep service signatures terse while the canonical types live in domain.
type (
	Order            = domain.Order
	OrderLineItem    = domain.OrderLineItem
	OrderStatus      = domain.OrderStatus
	Notification     = domain.Notification
	NotificationKind = domain.NotificationKind
	UserProfile      = domain.UserProfile
	StockAlert       = domain.StockAlert
)

// Clock supplies the current time; injected for deterministic tests.
type Clock func() time.Time

// IDGenerator mints identifiers for new entities.
type IDGenerator func() string

// OrderService owns order creation, retrieval, and status transitions.
type OrderService interface {
	CreateOrder(ctx context.Context, cmd CreateOrderCommand) (OrderChange, error)
	GetOrder(ctx context.Context, orderID string) (Order, error)
	ListOrdersForCustomer(ctx context.Context, customerRef string) ([]Order, error)
	ListAllOrders(ctx context.Context, query OrderListQuery) ([]Order, error)
	ApplyStatus(ctx context.Context, cmd ApplyStatusCommand) (OrderChange, error)
	CancelOrder(ctx context.Context, cmd CancelOrderCommand) (OrderChange, error)
}

// CreateOrderCommand carries the inbound order payload. Name, price, and
// image snapshots come from the client per the trust boundary; the service
// never re-reads the catalog at creation time.
type CreateOrderCommand struct {
	CustomerRef      *string
	Items            []OrderItemInput
	ShippingAddress1 string
	ShippingAddress2 string
	City             string
	Zip              string
	Country          string
	Phone            string
	PaymentMethod    string
}

// OrderItemInput is one requested line item.
type OrderItemInput struct {
	ProductRef string
	Name       string
	UnitPrice  int64
	ImageRef   string
	Quantity   int
}

// ApplyStatusCommand requests a transition on an order. Every status change,
// including customer cancellation, flows through this command.
type ApplyStatusCommand struct {
	OrderID string
	Target  OrderStatus
}

// CancelOrderCommand requests cancellation of an order.
type CancelOrderCommand struct {
	OrderID string
}

// OrderListQuery narrows the admin order listing.
type OrderListQuery struct {
	Status *OrderStatus
	Limit  int
}

// OrderChange couples the stored order with the side effects to dispatch
// after the write committed.
type OrderChange struct {
	Order          Order
	PreviousStatus *OrderStatus
	Effects        []SideEffect
}

// NotificationService creates and reads in-app notifications.
type NotificationService interface {
	NotifyCustomer(ctx context.Context, cmd NotifyCustomerCommand) (Notification, error)
	NotifyAllAdmins(ctx context.Context, cmd NotifyAdminsCommand) ([]Notification, error)
	NotifyLowStock(ctx context.Context, cmd StockAlertCommand) ([]Notification, error)
	NotifyOutOfStock(ctx context.Context, cmd StockAlertCommand) ([]Notification, error)
	Get(ctx context.Context, notificationID string) (Notification, error)
	ListForRecipient(ctx context.Context, recipientRef string, limit int) ([]Notification, error)
	UnreadCount(ctx context.Context, recipientRef string) (int, error)
	MarkRead(ctx context.Context, notificationID string) (Notification, error)
	MarkAllRead(ctx context.Context, recipientRef string) (int, error)
}

// NotifyCustomerCommand addresses a single customer about their order.
type NotifyCustomerCommand struct {
	CustomerRef string
	Kind        NotificationKind
	Order       Order
}

// NotifyAdminsCommand fans an order notification out to every active admin.
type NotifyAdminsCommand struct {
	Kind  NotificationKind
	Order Order
}

// StockAlertCommand fans an inventory alert out to every active admin,
// subject to the per-admin per-product dedup window.
type StockAlertCommand struct {
	ProductRef  string
	ProductName string
	Remaining   int
}

// InventoryService applies the delivery stock adjustment and reports
// threshold crossings.
type InventoryService interface {
	ApplyDelivery(ctx context.Context, orderID string) ([]StockAlert, error)
}

// Mailer sends transactional order email. Implementations are best effort;
// the dispatcher logs and swallows failures.
type Mailer interface {
	SendOrderEmail(ctx context.Context, email OrderEmail) error
}

// OrderEmail is one transactional message to a customer.
type OrderEmail struct {
	To            string
	RecipientName string
	Kind          NotificationKind
	Order         Order
}

// OrderEventPublisher pushes order lifecycle events to the event bus.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEventMessage) (string, error)
}

// OrderEventMessage is the wire payload published on the order events topic.
type OrderEventMessage struct {
	Type           string    `json:"type"`
	OrderID        string    `json:"orderId"`
	OrderNumber    string    `json:"orderNumber"`
	Status         string    `json:"status"`
	PreviousStatus string    `json:"previousStatus,omitempty"`
	TotalPrice     int64     `json:"totalPrice"`
	OccurredAt     time.Time `json:"occurredAt"`
}
