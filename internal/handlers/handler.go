package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/EgorMochalov/dota2ComfyBack2/internal/api/middleware"
	"github.com/EgorMochalov/dota2ComfyBack2/internal/apperr"
	"github.com/EgorMochalov/dota2ComfyBack2/internal/chat"
	"github.com/EgorMochalov/dota2ComfyBack2/internal/metrics"
	"github.com/EgorMochalov/dota2ComfyBack2/internal/models"
	"github.com/EgorMochalov/dota2ComfyBack2/internal/presence"
	"github.com/EgorMochalov/dota2ComfyBack2/internal/store"
	"github.com/EgorMochalov/dota2ComfyBack2/internal/ws"
)

// emailRegex validates email addresses per RFC 5322 (simplified).
var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	pg       store.DataStore
	cache    ProfileCache
	chats    *chat.Service
	hub      *ws.Hub
	presence *presence.Service
	tokens   TokenIssuer
	log      zerolog.Logger
}

// TokenIssuer issues and verifies bearer tokens.
type TokenIssuer interface {
	Issue(userID uuid.UUID) (string, error)
	Verify(token string) (uuid.UUID, error)
}

// ProfileCache caches public user and team profiles. RedisStore
// implements it.
type ProfileCache interface {
	Ping(ctx context.Context) error
	GetCachedUser(ctx context.Context, id uuid.UUID) *models.User
	CacheUser(ctx context.Context, u *models.User)
	InvalidateUser(ctx context.Context, id uuid.UUID)
	InvalidateUsers(ctx context.Context, ids []uuid.UUID)
	GetCachedTeam(ctx context.Context, id uuid.UUID) *models.Team
	CacheTeam(ctx context.Context, t *models.Team)
	InvalidateTeam(ctx context.Context, id uuid.UUID)
}

// NewHandler creates a new Handler with the given dependencies.
func NewHandler(pg store.DataStore, cache ProfileCache, chats *chat.Service, hub *ws.Hub, pres *presence.Service, tokens TokenIssuer, log zerolog.Logger) *Handler {
	return &Handler{
		pg:       pg,
		cache:    cache,
		chats:    chats,
		hub:      hub,
		presence: pres,
		tokens:   tokens,
		log:      log,
	}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// AppError maps a service or store error to an HTTP response.
func (h *Handler) AppError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		h.Error(w, http.StatusNotFound, "not found")
	case errors.Is(err, apperr.ErrNotMember):
		h.Error(w, http.StatusForbidden, "not a member of this chat")
	case errors.Is(err, apperr.ErrForbidden):
		h.Error(w, http.StatusForbidden, errorMessage(err, apperr.ErrForbidden))
	case errors.Is(err, apperr.ErrDuplicate):
		h.Error(w, http.StatusConflict, "already exists")
	case errors.Is(err, apperr.ErrValidation):
		h.Error(w, http.StatusBadRequest, errorMessage(err, apperr.ErrValidation))
	default:
		h.log.Error().Err(err).Msg("internal error")
		h.Error(w, http.StatusInternalServerError, "internal error")
	}
}

// errorMessage strips the sentinel prefix from a wrapped error, leaving
// the caller-facing message.
func errorMessage(err, sentinel error) string {
	return strings.TrimPrefix(err.Error(), sentinel.Error()+": ")
}

// currentUser returns the authenticated user, writing a 401 when absent.
func (h *Handler) currentUser(w http.ResponseWriter, r *http.Request) *models.User {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
	}
	return user
}

// urlUUID parses a uuid path parameter.
func urlUUID(r *http.Request, name string) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, name))
}

// pagination reads limit/offset query parameters with sane bounds.
func pagination(r *http.Request, defaultLimit, maxLimit int) (limit, offset int) {
	limit = defaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

// sanitizeName trims, strips control characters and caps length.
func sanitizeName(name string, max int) string {
	name = strings.TrimSpace(name)
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	if len(name) > max {
		name = name[:max]
	}
	return name
}

// isValidEmail validates email addresses using RFC 5322 pattern.
func isValidEmail(email string) bool {
	if len(email) > 254 {
		return false
	}
	return emailRegex.MatchString(email)
}

// notify persists a notification and pushes it to the user's sessions.
func (h *Handler) notify(ctx context.Context, n *models.Notification) {
	created, err := h.pg.CreateNotification(ctx, n)
	if err != nil {
		h.log.Warn().Err(err).Str("user_id", n.UserID.String()).Msg("notification create failed")
		return
	}
	metrics.NotificationsCreated.WithLabelValues(created.Type).Inc()
	if h.hub != nil {
		h.hub.ToUser(created.UserID, chat.Event{Type: chat.EventNotification, Data: created})
	}
}
