package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/EgorMochalov/dota2ComfyBack2/internal/api/middleware"
	"github.com/EgorMochalov/dota2ComfyBack2/internal/metrics"
	"github.com/EgorMochalov/dota2ComfyBack2/internal/store"
)

// GetUser returns a public profile, decorated with live presence. Served
// from the profile cache when possible.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "id")
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid user ID")
		return
	}

	user := h.cache.GetCachedUser(r.Context(), id)
	if user != nil {
		metrics.CacheHits.WithLabelValues("user", "hit").Inc()
	} else {
		metrics.CacheHits.WithLabelValues("user", "miss").Inc()
		full, err := h.pg.GetUserByID(r.Context(), id)
		if err != nil {
			h.AppError(w, err)
			return
		}
		if full == nil {
			h.Error(w, http.StatusNotFound, "user not found")
			return
		}
		h.cache.CacheUser(r.Context(), full)
		user = full.PublicProfile()
	}

	status := h.presence.GetStatus(r.Context(), id)
	h.JSON(w, http.StatusOK, map[string]any{
		"user":     user,
		"isOnline": status.IsOnline,
		"lastSeen": status.LastSeen,
	})
}

// UpdateProfileRequest represents the mutable profile fields. Pointer
// fields distinguish "not sent" from "clear".
type UpdateProfileRequest struct {
	Username       *string   `json:"username"`
	AvatarURL      *string   `json:"avatar_url"`
	Region         *string   `json:"region"`
	MMRRating      *int      `json:"mmr_rating"`
	PreferredRoles *[]string `json:"preferred_roles"`
	AboutMe        *string   `json:"about_me"`
	Tags           *[]string `json:"tags"`
	IsSearching    *bool     `json:"is_searching"`
}

// UpdateMe updates the caller's profile and drops the cached copy.
func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.Username != nil {
		name := sanitizeName(*req.Username, 50)
		if name == "" {
			h.Error(w, http.StatusBadRequest, "username cannot be empty")
			return
		}
		user.Username = name
	}
	if req.AvatarURL != nil {
		user.AvatarURL = *req.AvatarURL
	}
	if req.Region != nil {
		user.Region = *req.Region
	}
	if req.MMRRating != nil {
		if *req.MMRRating < 0 || *req.MMRRating > 20000 {
			h.Error(w, http.StatusBadRequest, "mmr_rating out of range")
			return
		}
		user.MMRRating = *req.MMRRating
	}
	if req.PreferredRoles != nil {
		user.PreferredRoles = *req.PreferredRoles
	}
	if req.AboutMe != nil {
		user.AboutMe = sanitizeName(*req.AboutMe, 1000)
	}
	if req.Tags != nil {
		user.Tags = *req.Tags
	}
	if req.IsSearching != nil {
		user.IsSearching = *req.IsSearching
	}

	if err := h.pg.UpdateUser(r.Context(), user); err != nil {
		h.AppError(w, err)
		return
	}
	h.cache.InvalidateUser(r.Context(), user.ID)

	h.JSON(w, http.StatusOK, user)
}

// SearchUsers finds players matching the query parameters.
func (h *Handler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r, 50, 100)
	f := store.UserFilter{
		Region:        r.URL.Query().Get("region"),
		Role:          r.URL.Query().Get("role"),
		SearchingOnly: r.URL.Query().Get("searching") == "true",
		Limit:         limit,
		Offset:        offset,
	}
	if v := r.URL.Query().Get("min_mmr"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			f.MinMMR = n
		}
	}
	if v := r.URL.Query().Get("max_mmr"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			f.MaxMMR = n
		}
	}

	users, err := h.pg.SearchUsers(r.Context(), f)
	if err != nil {
		h.AppError(w, err)
		return
	}
	metrics.SearchQueries.WithLabelValues("users").Inc()

	out := make([]any, len(users))
	for i := range users {
		status := h.presence.GetStatus(r.Context(), users[i].ID)
		out[i] = map[string]any{
			"user":     users[i].PublicProfile(),
			"isOnline": status.IsOnline,
		}
	}
	h.JSON(w, http.StatusOK, map[string]any{"users": out, "total": len(out)})
}

// OnlineUsers returns the live presence records of everyone currently
// connected.
func (h *Handler) OnlineUsers(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}
	statuses, err := h.presence.OnlineUsers(r.Context())
	if err != nil {
		h.AppError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, map[string]any{"users": statuses, "count": len(statuses)})
}

// BlockUser blocks another user. Idempotent.
func (h *Handler) BlockUser(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}
	target, err := urlUUID(r, "id")
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid user ID")
		return
	}
	if target == user.ID {
		h.Error(w, http.StatusBadRequest, "cannot block yourself")
		return
	}

	other, err := h.pg.GetUserByID(r.Context(), target)
	if err != nil {
		h.AppError(w, err)
		return
	}
	if other == nil {
		h.Error(w, http.StatusNotFound, "user not found")
		return
	}

	if err := h.pg.CreateBlock(r.Context(), user.ID, target); err != nil {
		h.AppError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, map[string]string{"status": "blocked"})
}

// UnblockUser removes the caller's block on another user. Idempotent.
func (h *Handler) UnblockUser(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}
	target, err := urlUUID(r, "id")
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid user ID")
		return
	}
	if err := h.pg.DeleteBlock(r.Context(), user.ID, target); err != nil {
		h.AppError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, map[string]string{"status": "unblocked"})
}

// ListBlockedUsers returns the profiles the caller has blocked.
func (h *Handler) ListBlockedUsers(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}
	users, err := h.pg.ListBlockedUsers(r.Context(), user.ID)
	if err != nil {
		h.AppError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, map[string]any{"users": users})
}
