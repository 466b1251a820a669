package services

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/furever-shop/api/internal/domain"
	"github.com/furever-shop/api/internal/platform/requestctx"
	"github.com/furever-shop/api/internal/repositories"
)

// SideEffectDispatcher consumes the effects emitted by a committed order state
// change. Every effect is best effort: a failure is logged and never bubbles
// back to the request that triggered it.
type SideEffectDispatcher interface {
	Dispatch(ctx context.Context, change OrderChange)
}

// SideEffectDispatcherDeps wires the dispatcher dependencies. Mailer and
// Events may be nil when email or the event bus is not configured.
type SideEffectDispatcherDeps struct {
	Notifications NotificationService
	Inventory     InventoryService
	Users         repositories.UserRepository
	Mailer        Mailer
	Events        OrderEventPublisher
}

type sideEffectDispatcher struct {
	notifications NotificationService
	inventory     InventoryService
	users         repositories.UserRepository
	mailer        Mailer
	events        OrderEventPublisher
}

// NewSideEffectDispatcher validates dependencies and returns a dispatcher.
func NewSideEffectDispatcher(deps SideEffectDispatcherDeps) (SideEffectDispatcher, error) {
	if deps.Notifications == nil {
		return nil, errors.New("side effect dispatcher requires notification service")
	}
	if deps.Inventory == nil {
		return nil, errors.New("side effect dispatcher requires inventory service")
	}
	if deps.Users == nil {
		return nil, errors.New("side effect dispatcher requires user repository")
	}
	return &sideEffectDispatcher{
		notifications: deps.Notifications,
		inventory:     deps.Inventory,
		users:         deps.Users,
		mailer:        deps.Mailer,
		events:        deps.Events,
	}, nil
}

// Dispatch runs every effect in the order it was emitted. A stock adjustment
// fans its alerts out inline, so they never need a second pass.
func (d *sideEffectDispatcher) Dispatch(ctx context.Context, change OrderChange) {
	logger := requestctx.Logger(ctx).With(
		zap.String("order_id", change.Order.ID),
		zap.String("status", string(change.Order.Status)),
	)

	for _, effect := range change.Effects {
		switch effect.Kind {
		case EffectNotifyCustomer:
			d.notifyCustomer(ctx, logger, effect)
		case EffectNotifyAdmins:
			d.notifyAdmins(ctx, logger, effect)
		case EffectSendEmail:
			d.sendEmail(ctx, logger, effect)
		case EffectAdjustStock:
			d.adjustStock(ctx, logger, effect)
		case EffectPublishEvent:
			d.publishEvent(ctx, logger, effect)
		default:
			logger.Warn("unknown side effect kind", zap.String("kind", string(effect.Kind)))
		}
	}
}

func (d *sideEffectDispatcher) notifyCustomer(ctx context.Context, logger *zap.Logger, effect SideEffect) {
	_, err := d.notifications.NotifyCustomer(ctx, NotifyCustomerCommand{
		CustomerRef: effect.CustomerRef,
		Kind:        effect.NotificationKind,
		Order:       effect.Order,
	})
	if err != nil {
		logger.Warn("customer notification failed",
			zap.String("kind", string(effect.NotificationKind)),
			zap.Error(err),
		)
	}
}

func (d *sideEffectDispatcher) notifyAdmins(ctx context.Context, logger *zap.Logger, effect SideEffect) {
	if _, err := d.notifications.NotifyAllAdmins(ctx, NotifyAdminsCommand{
		Kind:  effect.NotificationKind,
		Order: effect.Order,
	}); err != nil {
		logger.Warn("admin notification fan-out failed",
			zap.String("kind", string(effect.NotificationKind)),
			zap.Error(err),
		)
	}
}

func (d *sideEffectDispatcher) sendEmail(ctx context.Context, logger *zap.Logger, effect SideEffect) {
	if d.mailer == nil {
		return
	}

	profile, err := d.users.FindByID(ctx, effect.CustomerRef)
	if err != nil {
		logger.Warn("email recipient lookup failed",
			zap.String("customer_id", effect.CustomerRef),
			zap.Error(err),
		)
		return
	}
	address := strings.TrimSpace(profile.Email)
	if address == "" {
		logger.Info("customer has no email address, skipping",
			zap.String("customer_id", effect.CustomerRef),
		)
		return
	}

	if err := d.mailer.SendOrderEmail(ctx, OrderEmail{
		To:            address,
		RecipientName: profile.DisplayName,
		Kind:          effect.NotificationKind,
		Order:         effect.Order,
	}); err != nil {
		logger.Warn("order email failed",
			zap.String("kind", string(effect.NotificationKind)),
			zap.Error(err),
		)
	}
}

func (d *sideEffectDispatcher) adjustStock(ctx context.Context, logger *zap.Logger, effect SideEffect) {
	alerts, err := d.inventory.ApplyDelivery(ctx, effect.Order.ID)
	if err != nil {
		logger.Error("delivery stock adjustment failed", zap.Error(err))
		return
	}

	for _, alert := range alerts {
		cmd := StockAlertCommand{
			ProductRef:  alert.Product.ID,
			ProductName: alert.Product.Name,
			Remaining:   alert.Remaining,
		}
		var alertErr error
		switch alert.Kind {
		case domain.StockAlertOut:
			_, alertErr = d.notifications.NotifyOutOfStock(ctx, cmd)
		case domain.StockAlertLow:
			_, alertErr = d.notifications.NotifyLowStock(ctx, cmd)
		}
		if alertErr != nil {
			logger.Warn("stock alert fan-out failed",
				zap.String("product_id", alert.Product.ID),
				zap.String("alert", string(alert.Kind)),
				zap.Error(alertErr),
			)
		}
	}
}

func (d *sideEffectDispatcher) publishEvent(ctx context.Context, logger *zap.Logger, effect SideEffect) {
	if d.events == nil || effect.Event == nil {
		return
	}
	if _, err := d.events.PublishOrderEvent(ctx, *effect.Event); err != nil {
		logger.Warn("order event publish failed",
			zap.String("event_type", effect.Event.Type),
			zap.Error(err),
		)
	}
}
