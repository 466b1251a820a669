package services

// Event type values published on the order events topic.
const (
	OrderEventCreated       = "order.created"
	OrderEventStatusChanged = "order.status_changed"
)

// SideEffectKind enumerates the deferred actions a state change can request.
type SideEffectKind string

const (
	// EffectNotifyCustomer creates an in-app notification for the order's
	// customer.
	EffectNotifyCustomer SideEffectKind = "notify_customer"
	// EffectNotifyAdmins fans a notification out to every active admin.
	EffectNotifyAdmins SideEffectKind = "notify_admins"
	// EffectSendEmail queues a transactional email to the customer.
	EffectSendEmail SideEffectKind = "send_email"
	// EffectAdjustStock runs the delivery stock adjustment.
	EffectAdjustStock SideEffectKind = "adjust_stock"
	// EffectPublishEvent pushes an event message to the event bus.
	EffectPublishEvent SideEffectKind = "publish_event"
)

// SideEffect is one deferred action produced by a committed state change.
// Effects carry a snapshot of the order so the dispatcher never re-reads it.
type SideEffect struct {
	Kind             SideEffectKind
	NotificationKind NotificationKind
	CustomerRef      string
	Order            Order
	Event            *OrderEventMessage
}
