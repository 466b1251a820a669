package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/furever-shop/api/internal/domain"
	"github.com/furever-shop/api/internal/platform/requestctx"
	"github.com/furever-shop/api/internal/repositories"
)

// Sentinel errors returned by NotificationService.
var (
	ErrNotificationInvalidInput = errors.New("notification: invalid input")
	ErrNotificationNotFound     = errors.New("notification: not found")
)

const defaultAlertDedupWindow = 24 * time.Hour

// notificationTemplate fixes the title and message shape per kind.
type notificationTemplate struct {
	title   string
	message func(order Order) string
}

var orderNotificationTemplates = map[domain.NotificationKind]notificationTemplate{
	domain.NotificationOrderConfirmed: {
		title: "Order Confirmed!",
		message: func(order Order) string {
			return fmt.Sprintf("Your order #%s has been placed. Total: %s.", order.ShortRef(), formatMoney(order.TotalPrice))
		},
	},
	domain.NotificationOrderProcessing: {
		title: "Order is Being Processed",
		message: func(order Order) string {
			return fmt.Sprintf("Your order #%s is being prepared.", order.ShortRef())
		},
	},
	domain.NotificationOrderShipped: {
		title: "Order Shipped!",
		message: func(order Order) string {
			return fmt.Sprintf("Your order #%s is on its way.", order.ShortRef())
		},
	},
	domain.NotificationOrderDelivered: {
		title: "Order Delivered",
		message: func(order Order) string {
			return fmt.Sprintf("Your order #%s has been delivered. Thanks for shopping with us!", order.ShortRef())
		},
	},
	domain.NotificationOrderCanceled: {
		title: "Order Canceled",
		message: func(order Order) string {
			return fmt.Sprintf("Your order #%s has been canceled.", order.ShortRef())
		},
	},
	domain.NotificationAdminNewOrder: {
		title: "New Order Placed",
		message: func(order Order) string {
			return fmt.Sprintf("Order #%s placed for %s.", order.ShortRef(), formatMoney(order.TotalPrice))
		},
	},
	domain.NotificationAdminOrderDelivered: {
		title: "Order Delivered",
		message: func(order Order) string {
			return fmt.Sprintf("Order #%s was delivered to the customer.", order.ShortRef())
		},
	},
}

// NotificationServiceDeps wires the notification service dependencies.
type NotificationServiceDeps struct {
	Notifications repositories.NotificationRepository
	Users         repositories.UserRepository
	Clock         Clock
	IDGen         IDGenerator
	// DedupWindow bounds how often the same stock alert reaches the same
	// admin for the same product. Defaults to 24h.
	DedupWindow time.Duration
}

type notificationService struct {
	notifications repositories.NotificationRepository
	users         repositories.UserRepository
	clock         Clock
	idGen         IDGenerator
	dedupWindow   time.Duration
}

// NewNotificationService validates dependencies and returns a NotificationService.
func NewNotificationService(deps NotificationServiceDeps) (NotificationService, error) {
	if deps.Notifications == nil {
		return nil, errors.New("notification service requires notification repository")
	}
	if deps.Users == nil {
		return nil, errors.New("notification service requires user repository")
	}
	clock := deps.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	idGen := deps.IDGen
	if idGen == nil {
		idGen = func() string { return "ntf_" + ulid.Make().String() }
	}
	window := deps.DedupWindow
	if window <= 0 {
		window = defaultAlertDedupWindow
	}
	return &notificationService{
		notifications: deps.Notifications,
		users:         deps.Users,
		clock:         clock,
		idGen:         idGen,
		dedupWindow:   window,
	}, nil
}

// NotifyCustomer creates the fixed-template notification for the order's
// customer.
func (s *notificationService) NotifyCustomer(ctx context.Context, cmd NotifyCustomerCommand) (Notification, error) {
	recipient := strings.TrimSpace(cmd.CustomerRef)
	if recipient == "" {
		return Notification{}, fmt.Errorf("%w: customer ref is required", ErrNotificationInvalidInput)
	}
	template, ok := orderNotificationTemplates[cmd.Kind]
	if !ok {
		return Notification{}, fmt.Errorf("%w: no template for kind %q", ErrNotificationInvalidInput, cmd.Kind)
	}

	notification := s.buildOrderNotification(recipient, cmd.Kind, template, cmd.Order)
	if err := s.notifications.Insert(ctx, notification); err != nil {
		return Notification{}, mapNotificationRepositoryError(err)
	}
	return notification, nil
}

// NotifyAllAdmins creates one notification per active admin. A failure for
// one admin is logged and never aborts the rest of the fan-out.
func (s *notificationService) NotifyAllAdmins(ctx context.Context, cmd NotifyAdminsCommand) ([]Notification, error) {
	template, ok := orderNotificationTemplates[cmd.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: no template for kind %q", ErrNotificationInvalidInput, cmd.Kind)
	}

	admins, err := s.users.ListActiveAdmins(ctx)
	if err != nil {
		return nil, mapNotificationRepositoryError(err)
	}

	logger := requestctx.Logger(ctx)
	created := make([]Notification, 0, len(admins))
	for _, admin := range admins {
		notification := s.buildOrderNotification(admin.ID, cmd.Kind, template, cmd.Order)
		if err := s.notifications.Insert(ctx, notification); err != nil {
			logger.Warn("admin notification failed",
				zap.String("admin_id", admin.ID),
				zap.String("kind", string(cmd.Kind)),
				zap.Error(err),
			)
			continue
		}
		created = append(created, notification)
	}
	return created, nil
}

// NotifyLowStock alerts every active admin that a product dropped to or below
// its threshold, at most once per admin per product per dedup window.
func (s *notificationService) NotifyLowStock(ctx context.Context, cmd StockAlertCommand) ([]Notification, error) {
	title := "Low Stock Warning"
	message := fmt.Sprintf("%s is running low: %d left.", displayProductName(cmd), cmd.Remaining)
	return s.fanOutStockAlert(ctx, domain.NotificationAdminLowStock, title, message, cmd)
}

// NotifyOutOfStock alerts every active admin that a product hit zero stock,
// at most once per admin per product per dedup window.
func (s *notificationService) NotifyOutOfStock(ctx context.Context, cmd StockAlertCommand) ([]Notification, error) {
	title := "Out of Stock Alert"
	message := fmt.Sprintf("%s is now out of stock.", displayProductName(cmd))
	return s.fanOutStockAlert(ctx, domain.NotificationAdminOutOfStock, title, message, cmd)
}

// Get loads a single notification.
func (s *notificationService) Get(ctx context.Context, notificationID string) (Notification, error) {
	id := strings.TrimSpace(notificationID)
	if id == "" {
		return Notification{}, fmt.Errorf("%w: notification id is required", ErrNotificationInvalidInput)
	}
	notification, err := s.notifications.FindByID(ctx, id)
	if err != nil {
		return Notification{}, mapNotificationRepositoryError(err)
	}
	return notification, nil
}

// ListForRecipient returns the recipient's notifications, newest first.
func (s *notificationService) ListForRecipient(ctx context.Context, recipientRef string, limit int) ([]Notification, error) {
	recipient := strings.TrimSpace(recipientRef)
	if recipient == "" {
		return nil, fmt.Errorf("%w: recipient ref is required", ErrNotificationInvalidInput)
	}
	notifications, err := s.notifications.ListForRecipient(ctx, recipient, limit)
	if err != nil {
		return nil, mapNotificationRepositoryError(err)
	}
	return notifications, nil
}

// UnreadCount returns the recipient's unread notification count.
func (s *notificationService) UnreadCount(ctx context.Context, recipientRef string) (int, error) {
	recipient := strings.TrimSpace(recipientRef)
	if recipient == "" {
		return 0, fmt.Errorf("%w: recipient ref is required", ErrNotificationInvalidInput)
	}
	count, err := s.notifications.CountUnread(ctx, recipient)
	if err != nil {
		return 0, mapNotificationRepositoryError(err)
	}
	return count, nil
}

// MarkRead marks a single notification as read.
func (s *notificationService) MarkRead(ctx context.Context, notificationID string) (Notification, error) {
	id := strings.TrimSpace(notificationID)
	if id == "" {
		return Notification{}, fmt.Errorf("%w: notification id is required", ErrNotificationInvalidInput)
	}
	notification, err := s.notifications.MarkRead(ctx, id)
	if err != nil {
		return Notification{}, mapNotificationRepositoryError(err)
	}
	return notification, nil
}

// MarkAllRead marks every unread notification for the recipient as read.
func (s *notificationService) MarkAllRead(ctx context.Context, recipientRef string) (int, error) {
	recipient := strings.TrimSpace(recipientRef)
	if recipient == "" {
		return 0, fmt.Errorf("%w: recipient ref is required", ErrNotificationInvalidInput)
	}
	updated, err := s.notifications.MarkAllRead(ctx, recipient)
	if err != nil {
		return updated, mapNotificationRepositoryError(err)
	}
	return updated, nil
}

func (s *notificationService) buildOrderNotification(recipient string, kind NotificationKind, template notificationTemplate, order Order) Notification {
	orderRef := order.ID
	return Notification{
		ID:           s.idGen(),
		RecipientRef: recipient,
		Kind:         kind,
		Title:        template.title,
		Message:      template.message(order),
		OrderRef:     &orderRef,
		CreatedAt:    s.clock(),
	}
}

func (s *notificationService) fanOutStockAlert(ctx context.Context, kind NotificationKind, title, message string, cmd StockAlertCommand) ([]Notification, error) {
	productRef := strings.TrimSpace(cmd.ProductRef)
	if productRef == "" {
		return nil, fmt.Errorf("%w: product ref is required", ErrNotificationInvalidInput)
	}

	admins, err := s.users.ListActiveAdmins(ctx)
	if err != nil {
		return nil, mapNotificationRepositoryError(err)
	}

	logger := requestctx.Logger(ctx)
	now := s.clock()
	since := now.Add(-s.dedupWindow)

	created := make([]Notification, 0, len(admins))
	for _, admin := range admins {
		exists, err := s.notifications.ExistsRecent(ctx, repositories.RecentNotificationQuery{
			RecipientRef: admin.ID,
			Kind:         kind,
			ProductRef:   productRef,
			Since:        since,
		})
		if err != nil {
			logger.Warn("stock alert dedup lookup failed",
				zap.String("admin_id", admin.ID),
				zap.String("product_id", productRef),
				zap.Error(err),
			)
			continue
		}
		if exists {
			continue
		}

		notification := Notification{
			ID:           s.idGen(),
			RecipientRef: admin.ID,
			Kind:         kind,
			Title:        title,
			Message:      message,
			ProductRef:   &productRef,
			CreatedAt:    now,
		}
		if err := s.notifications.Insert(ctx, notification); err != nil {
			logger.Warn("stock alert notification failed",
				zap.String("admin_id", admin.ID),
				zap.String("product_id", productRef),
				zap.Error(err),
			)
			continue
		}
		created = append(created, notification)
	}
	return created, nil
}

func displayProductName(cmd StockAlertCommand) string {
	if name := strings.TrimSpace(cmd.ProductName); name != "" {
		return name
	}
	return strings.TrimSpace(cmd.ProductRef)
}

func formatMoney(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}

func mapNotificationRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsNotFound() {
		return fmt.Errorf("%w: %v", ErrNotificationNotFound, err)
	}
	return err
}
