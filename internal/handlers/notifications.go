package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/furever-shop/api/internal/platform/auth"
	"github.com/furever-shop/api/internal/platform/httpx"
	"github.com/furever-shop/api/internal/services"
)

// NotificationHandlers exposes the in-app notification read endpoints.
type NotificationHandlers struct {
	notifications services.NotificationService
}

// NewNotificationHandlers constructs the notification endpoints.
func NewNotificationHandlers(notifications services.NotificationService) *NotificationHandlers {
	return &NotificationHandlers{notifications: notifications}
}

// Routes registers the /notifications endpoints. Every route requires an
// authenticated caller.
func (h *NotificationHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Use(auth.RequireUser)
	r.Get("/user/{userID}", h.listForUser)
	r.Get("/user/{userID}/unread-count", h.unreadCount)
	r.Put("/user/{userID}/read-all", h.markAllRead)
	r.Put("/{notificationID}/read", h.markRead)
}

func (h *NotificationHandlers) listForUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUserAccess(ctx, w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "limit must be an integer", http.StatusBadRequest))
			return
		}
		if parsed > 0 {
			limit = parsed
		}
	}

	notifications, err := h.notifications.ListForRecipient(ctx, userID, limit)
	if err != nil {
		writeNotificationError(ctx, w, err)
		return
	}

	items := make([]notificationPayload, 0, len(notifications))
	for _, n := range notifications {
		items = append(items, buildNotificationPayload(n))
	}
	writeJSONResponse(w, http.StatusOK, notificationListResponse{Items: items})
}

func (h *NotificationHandlers) unreadCount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUserAccess(ctx, w, r)
	if !ok {
		return
	}

	count, err := h.notifications.UnreadCount(ctx, userID)
	if err != nil {
		writeNotificationError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]int{"unread": count})
}

func (h *NotificationHandlers) markRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	notificationID := strings.TrimSpace(chi.URLParam(r, "notificationID"))
	if notificationID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "notification id is required", http.StatusBadRequest))
		return
	}

	notification, err := h.notifications.Get(ctx, notificationID)
	if err != nil {
		writeNotificationError(ctx, w, err)
		return
	}
	if !auth.CanAccessUser(ctx, notification.RecipientRef) {
		// Hide existence from other users.
		httpx.WriteError(ctx, w, httpx.NewError("notification_not_found", "notification not found", http.StatusNotFound))
		return
	}

	updated, err := h.notifications.MarkRead(ctx, notificationID)
	if err != nil {
		writeNotificationError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, notificationResponse{Notification: buildNotificationPayload(updated)})
}

func (h *NotificationHandlers) markAllRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUserAccess(ctx, w, r)
	if !ok {
		return
	}

	updated, err := h.notifications.MarkAllRead(ctx, userID)
	if err != nil {
		writeNotificationError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]int{"updated": updated})
}

func (h *NotificationHandlers) requireUserAccess(ctx context.Context, w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := strings.TrimSpace(chi.URLParam(r, "userID"))
	if userID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "user id is required", http.StatusBadRequest))
		return "", false
	}
	if !auth.CanAccessUser(ctx, userID) {
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "cannot access another user's notifications", http.StatusForbidden))
		return "", false
	}
	return userID, true
}

type notificationListResponse struct {
	Items []notificationPayload `json:"items"`
}

type notificationResponse struct {
	Notification notificationPayload `json:"notification"`
}

type notificationPayload struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Order     string `json:"order,omitempty"`
	Product   string `json:"product,omitempty"`
	Read      bool   `json:"read"`
	CreatedAt string `json:"created_at"`
}

func buildNotificationPayload(n services.Notification) notificationPayload {
	payload := notificationPayload{
		ID:        n.ID,
		Type:      string(n.Kind),
		Title:     n.Title,
		Message:   n.Message,
		Read:      n.Read,
		CreatedAt: formatTime(n.CreatedAt),
	}
	if n.OrderRef != nil {
		payload.Order = *n.OrderRef
	}
	if n.ProductRef != nil {
		payload.Product = *n.ProductRef
	}
	return payload
}

func writeNotificationError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrNotificationInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrNotificationNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("notification_not_found", "notification not found", http.StatusNotFound))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("notification_error", "failed to process notification request", http.StatusInternalServerError))
	}
}
