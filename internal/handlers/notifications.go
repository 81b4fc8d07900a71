package handlers

import (
	"net/http"
)

// ListNotifications returns the caller's notifications, newest first.
// Pass unread=true to filter to unread ones.
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(w, r)
	if user == nil {
		return
	}
	limit, offset := pagination(r, 50, 100)
	unreadOnly := r.URL.Query().Get("unread") == "true"

	notifications, err := h.pg.ListNotifications(r.Context(), user.ID, unreadOnly, limit, offset)
	if err != nil {
		h.AppError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, map[string]any{"notifications": notifications})
}

// MarkNotificationRead marks one of the caller's notifications as read.
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(w, r)
	if user == nil {
		return
	}
	id, err := urlUUID(r, "id")
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid notification ID")
		return
	}
	if err := h.pg.MarkNotificationRead(r.Context(), id, user.ID); err != nil {
		h.AppError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, map[string]string{"status": "read"})
}

// MarkAllNotificationsRead marks every notification of the caller read.
func (h *Handler) MarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(w, r)
	if user == nil {
		return
	}
	if err := h.pg.MarkAllNotificationsRead(r.Context(), user.ID); err != nil {
		h.AppError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, map[string]string{"status": "read"})
}

// DeleteNotification removes one of the caller's notifications.
func (h *Handler) DeleteNotification(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(w, r)
	if user == nil {
		return
	}
	id, err := urlUUID(r, "id")
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid notification ID")
		return
	}
	if err := h.pg.DeleteNotification(r.Context(), id, user.ID); err != nil {
		h.AppError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
