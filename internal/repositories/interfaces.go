// Package repositories defines persistence interfaces consumed by the service
// layer. Implementations live in the firestore subpackage; services depend on
// these interfaces only.
package repositories

import (
	"context"
	"time"

	"github.com/furever-shop/api/internal/domain"
)

// RepositoryError categorises low-level persistence failures so services can
// map them onto domain sentinels.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// OrderRepository persists order documents.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	Update(ctx context.Context, order domain.Order) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) ([]domain.Order, error)
}

// NotificationRepository persists in-app notifications.
type NotificationRepository interface {
	Insert(ctx context.Context, notification domain.Notification) error
	FindByID(ctx context.Context, notificationID string) (domain.Notification, error)
	ListForRecipient(ctx context.Context, recipientRef string, limit int) ([]domain.Notification, error)
	CountUnread(ctx context.Context, recipientRef string) (int, error)
	MarkRead(ctx context.Context, notificationID string) (domain.Notification, error)
	MarkAllRead(ctx context.Context, recipientRef string) (int, error)
	// ExistsRecent reports whether the recipient already received a
	// notification of the given kind for the product since the given time.
	// Used to deduplicate inventory alerts.
	ExistsRecent(ctx context.Context, query RecentNotificationQuery) (bool, error)
}

// InventoryRepository applies delivery stock adjustments. The whole
// adjustment, including the order's stockApplied guard, commits in a single
// transaction.
type InventoryRepository interface {
	ApplyDeliveryAdjustment(ctx context.Context, orderID string) (DeliveryAdjustment, error)
}

// UserRepository reads the user directory for fan-out and email resolution.
type UserRepository interface {
	FindByID(ctx context.Context, userID string) (domain.UserProfile, error)
	ListActiveAdmins(ctx context.Context) ([]domain.UserProfile, error)
}

// CounterRepository hands out monotonically increasing sequence numbers.
type CounterRepository interface {
	Next(ctx context.Context, counterID string, step int64) (int64, error)
}

// OrderListFilter narrows order listings.
type OrderListFilter struct {
	CustomerRef string
	Status      *domain.OrderStatus
	Limit       int
}

// RecentNotificationQuery identifies a dedup lookup for inventory alerts.
type RecentNotificationQuery struct {
	RecipientRef string
	Kind         domain.NotificationKind
	ProductRef   string
	Since        time.Time
}

// DeliveryAdjustment reports the outcome of a delivery stock adjustment.
type DeliveryAdjustment struct {
	// AlreadyApplied is true when the order's stockApplied guard was set
	// before this call; no stock was changed.
	AlreadyApplied bool
	Lines          []StockAdjustment
}

// StockAdjustment describes one line item's stock mutation.
type StockAdjustment struct {
	ProductID string
	Name      string
	Requested int
	Remaining int
	Threshold int
	// Missing marks line items whose product no longer exists; they are
	// skipped without failing the delivery.
	Missing bool
}
