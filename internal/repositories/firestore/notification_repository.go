package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/furever-shop/api/internal/domain"
	pfirestore "github.com/furever-shop/api/internal/platform/firestore"
	"github.com/furever-shop/api/internal/repositories"
)

const notificationsCollection = "notifications"

// Listing defaults mirror the mobile client's notification feed.
const (
	defaultNotificationLimit = 50
	maxNotificationLimit     = 50
)

type notificationDocument struct {
	RecipientRef string     `firestore:"recipientRef"`
	Kind         string     `firestore:"type"`
	Title        string     `firestore:"title"`
	Message      string     `firestore:"message"`
	OrderRef     *string    `firestore:"orderRef,omitempty"`
	ProductRef   *string    `firestore:"productRef,omitempty"`
	Read         bool       `firestore:"read"`
	ReadAt       *time.Time `firestore:"readAt,omitempty"`
	CreatedAt    time.Time  `firestore:"createdAt"`
}

// NotificationRepository implements repositories.NotificationRepository.
type NotificationRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[notificationDocument]
	clock    func() time.Time
}

// NewNotificationRepository constructs a Firestore-backed notification repository.
func NewNotificationRepository(provider *pfirestore.Provider) (*NotificationRepository, error) {
	if provider == nil {
		return nil, errors.New("notification repository requires firestore provider")
	}
	return &NotificationRepository{
		provider: provider,
		base:     pfirestore.NewBaseRepository[notificationDocument](provider, notificationsCollection, nil, nil),
		clock:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// WithClock overrides the timestamp source.
func (r *NotificationRepository) WithClock(clock func() time.Time) *NotificationRepository {
	if clock != nil {
		r.clock = clock
	}
	return r
}

// Insert stores a new notification.
func (r *NotificationRepository) Insert(ctx context.Context, notification domain.Notification) error {
	if r == nil || r.base == nil {
		return errors.New("notification repository not initialised")
	}
	if strings.TrimSpace(notification.ID) == "" {
		return errors.New("notification id is required")
	}
	_, err := r.base.Create(ctx, notification.ID, fromDomainNotification(notification))
	return err
}

// FindByID loads a single notification.
func (r *NotificationRepository) FindByID(ctx context.Context, notificationID string) (domain.Notification, error) {
	if r == nil || r.base == nil {
		return domain.Notification{}, errors.New("notification repository not initialised")
	}
	doc, err := r.base.Get(ctx, notificationID)
	if err != nil {
		return domain.Notification{}, err
	}
	return toDomainNotification(doc.ID, doc.Data), nil
}

// ListForRecipient returns the recipient's notifications, newest first.
func (r *NotificationRepository) ListForRecipient(ctx context.Context, recipientRef string, limit int) ([]domain.Notification, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("notification repository not initialised")
	}
	recipient := strings.TrimSpace(recipientRef)
	if recipient == "" {
		return nil, errors.New("recipient ref is required")
	}
	if limit <= 0 || limit > maxNotificationLimit {
		limit = defaultNotificationLimit
	}

	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.
			Where("recipientRef", "==", recipient).
			OrderBy("createdAt", firestore.Desc).
			Limit(limit)
	})
	if err != nil {
		return nil, err
	}

	notifications := make([]domain.Notification, 0, len(docs))
	for _, doc := range docs {
		notifications = append(notifications, toDomainNotification(doc.ID, doc.Data))
	}
	return notifications, nil
}

// CountUnread returns the number of unread notifications for the recipient.
func (r *NotificationRepository) CountUnread(ctx context.Context, recipientRef string) (int, error) {
	if r == nil || r.base == nil {
		return 0, errors.New("notification repository not initialised")
	}
	recipient := strings.TrimSpace(recipientRef)
	if recipient == "" {
		return 0, errors.New("recipient ref is required")
	}

	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.
			Where("recipientRef", "==", recipient).
			Where("read", "==", false).
			Select()
	})
	if err != nil {
		return 0, err
	}
	return len(docs), nil
}

// MarkRead flips the read flag and returns the updated notification.
func (r *NotificationRepository) MarkRead(ctx context.Context, notificationID string) (domain.Notification, error) {
	if r == nil || r.base == nil {
		return domain.Notification{}, errors.New("notification repository not initialised")
	}

	now := r.clock()
	_, err := r.base.Update(ctx, notificationID, []firestore.Update{
		{Path: "read", Value: true},
		{Path: "readAt", Value: now},
	})
	if err != nil {
		return domain.Notification{}, err
	}
	return r.FindByID(ctx, notificationID)
}

// MarkAllRead marks every unread notification for the recipient as read and
// returns the number updated.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, recipientRef string) (int, error) {
	if r == nil || r.base == nil {
		return 0, errors.New("notification repository not initialised")
	}
	recipient := strings.TrimSpace(recipientRef)
	if recipient == "" {
		return 0, errors.New("recipient ref is required")
	}

	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.
			Where("recipientRef", "==", recipient).
			Where("read", "==", false).
			Select()
	})
	if err != nil {
		return 0, err
	}

	now := r.clock()
	updated := 0
	for _, doc := range docs {
		if _, err := r.base.Update(ctx, doc.ID, []firestore.Update{
			{Path: "read", Value: true},
			{Path: "readAt", Value: now},
		}); err != nil {
			return updated, err
		}
		updated++
	}
	return updated, nil
}

// ExistsRecent reports whether a matching notification exists since the
// given time. Backs the 24h inventory alert dedup window.
func (r *NotificationRepository) ExistsRecent(ctx context.Context, query repositories.RecentNotificationQuery) (bool, error) {
	if r == nil || r.base == nil {
		return false, errors.New("notification repository not initialised")
	}
	recipient := strings.TrimSpace(query.RecipientRef)
	productRef := strings.TrimSpace(query.ProductRef)
	if recipient == "" || productRef == "" {
		return false, errors.New("recipient and product refs are required")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.
			Where("recipientRef", "==", recipient).
			Where("type", "==", string(query.Kind)).
			Where("productRef", "==", productRef).
			Where("createdAt", ">=", query.Since).
			Limit(1).
			Select()
	})
	if err != nil {
		return false, err
	}
	return len(docs) > 0, nil
}

func fromDomainNotification(notification domain.Notification) notificationDocument {
	return notificationDocument{
		RecipientRef: notification.RecipientRef,
		Kind:         string(notification.Kind),
		Title:        notification.Title,
		Message:      notification.Message,
		OrderRef:     notification.OrderRef,
		ProductRef:   notification.ProductRef,
		Read:         notification.Read,
		CreatedAt:    notification.CreatedAt,
	}
}

func toDomainNotification(id string, doc notificationDocument) domain.Notification {
	return domain.Notification{
		ID:           id,
		RecipientRef: doc.RecipientRef,
		Kind:         domain.NotificationKind(doc.Kind),
		Title:        doc.Title,
		Message:      doc.Message,
		OrderRef:     doc.OrderRef,
		ProductRef:   doc.ProductRef,
		Read:         doc.Read,
		CreatedAt:    doc.CreatedAt,
	}
}
