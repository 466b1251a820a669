package domain

import (
	"strings"
	"time"
)

// OrderStatus enumerates the lifecycle states an order moves through.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "Pending"
	OrderStatusProcessing OrderStatus = "Processing"
	OrderStatusShipped    OrderStatus = "Shipped"
	OrderStatusDelivered  OrderStatus = "Delivered"
	OrderStatusCanceled   OrderStatus = "Canceled"
)

// Terminal reports whether no further transition can leave the status.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCanceled
}

// Valid reports whether the status is one of the five lifecycle states.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCanceled:
		return true
	}
	return false
}

// OrderLineItem is the immutable snapshot of a purchased product captured at
// order creation. Name, price, and image are frozen so later catalog edits do
// not rewrite order history.
type OrderLineItem struct {
	ProductRef string
	Name       string
	UnitPrice  int64 // cents
	ImageRef   string
	Quantity   int
}

// Subtotal returns the line contribution to the order total in cents.
func (li OrderLineItem) Subtotal() int64 {
	return li.UnitPrice * int64(li.Quantity)
}

// Order is the aggregate root of the order lifecycle.
type Order struct {
	ID          string
	OrderNumber string
	CustomerRef *string
	Items       []OrderLineItem
	Status      OrderStatus

	// TotalPrice is computed once at creation and never recomputed.
	TotalPrice int64 // cents

	ShippingAddress1 string
	ShippingAddress2 string
	City             string
	Zip              string
	Country          string
	Phone            string
	PaymentMethod    string

	// StockApplied records that the delivery stock adjustment has run. It is
	// written in the same transaction as the stock decrements so the
	// adjustment happens at most once.
	StockApplied bool

	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeliveredAt *time.Time
	CanceledAt  *time.Time
}

// ShortRef returns the short order reference used in customer-facing copy,
// the uppercased tail of the order id.
func (o Order) ShortRef() string {
	id := strings.TrimSpace(o.ID)
	if len(id) > 8 {
		id = id[len(id)-8:]
	}
	return strings.ToUpper(id)
}

// CustomerID returns the owning customer reference, or "" for guest orders.
func (o Order) CustomerID() string {
	if o.CustomerRef == nil {
		return ""
	}
	return strings.TrimSpace(*o.CustomerRef)
}

// NotificationKind enumerates the in-app notification types.
type NotificationKind string

const (
	NotificationOrderConfirmed      NotificationKind = "order_confirmed"
	NotificationOrderProcessing     NotificationKind = "order_processing"
	NotificationOrderShipped        NotificationKind = "order_shipped"
	NotificationOrderDelivered      NotificationKind = "order_delivered"
	NotificationOrderCanceled       NotificationKind = "order_canceled"
	NotificationAdminNewOrder       NotificationKind = "admin_new_order"
	NotificationAdminOrderDelivered NotificationKind = "admin_order_delivered"
	NotificationAdminLowStock       NotificationKind = "admin_low_stock"
	NotificationAdminOutOfStock     NotificationKind = "admin_out_of_stock"

	// Produced by the review moderation flow, which lives outside this
	// service; the kinds stay in the enum so stored rows keep decoding.
	NotificationReviewApproved NotificationKind = "review_approved"
	NotificationReviewRejected NotificationKind = "review_rejected"
)

// Notification is a single in-app message addressed to one recipient.
type Notification struct {
	ID           string
	RecipientRef string
	Kind         NotificationKind
	Title        string
	Message      string
	OrderRef     *string
	ProductRef   *string
	Read         bool
	CreatedAt    time.Time
}

// DefaultLowStockThreshold applies when a product does not carry its own.
const DefaultLowStockThreshold = 10

// Product is the slice of the catalog this service reads and adjusts.
type Product struct {
	ID                string
	Name              string
	Price             int64 // cents
	CountInStock      int
	LowStockThreshold int
	ImageRef          string
	UpdatedAt         time.Time
}

// EffectiveLowStockThreshold resolves the per-product threshold, falling back
// to the service default when unset.
func (p Product) EffectiveLowStockThreshold() int {
	if p.LowStockThreshold > 0 {
		return p.LowStockThreshold
	}
	return DefaultLowStockThreshold
}

// UserProfile is the user directory entry consumed for fan-out and email.
type UserProfile struct {
	ID          string
	DisplayName string
	Email       string
	IsAdmin     bool
	IsActive    bool
}

// StockAlertKind distinguishes the two inventory alert conditions.
type StockAlertKind string

const (
	StockAlertLow StockAlertKind = "low_stock"
	StockAlertOut StockAlertKind = "out_of_stock"
)

// StockAlert reports a product that crossed an inventory threshold during a
// delivery adjustment.
type StockAlert struct {
	Kind      StockAlertKind
	Product   Product
	Remaining int
}
