package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/EgorMochalov/dota2ComfyBack2/internal/api/middleware"
	"github.com/EgorMochalov/dota2ComfyBack2/internal/metrics"
	"github.com/EgorMochalov/dota2ComfyBack2/internal/models"
)

// RegisterRequest represents the registration request body.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
	Region   string `json:"region"`
}

// AuthResponse carries a fresh token and the owner's full profile.
type AuthResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Register handles account creation.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Username = sanitizeName(req.Username, 50)

	if !isValidEmail(req.Email) {
		h.Error(w, http.StatusBadRequest, "invalid email")
		return
	}
	if req.Username == "" {
		h.Error(w, http.StatusBadRequest, "username is required")
		return
	}
	if len(req.Password) < 8 {
		h.Error(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	user, err := h.pg.CreateUser(r.Context(), &models.User{
		Email:        req.Email,
		Username:     req.Username,
		PasswordHash: string(hash),
		Region:       req.Region,
	})
	if err != nil {
		h.AppError(w, err)
		return
	}

	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	metrics.UsersRegistered.Inc()
	h.log.Info().Str("user_id", user.ID.String()).Msg("user registered")
	h.JSON(w, http.StatusCreated, AuthResponse{Token: token, User: user})
}

// LoginRequest represents the login request body.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles credential exchange for a token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	user, err := h.pg.GetUserByEmail(r.Context(), email)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		h.Error(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.JSON(w, http.StatusOK, AuthResponse{Token: token, User: user})
}

// Logout flips the caller offline. Tokens are stateless, so the client
// simply discards its copy.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if h.presence != nil {
		if err := h.presence.SetOffline(r.Context(), user.ID); err != nil {
			h.log.Warn().Err(err).Str("user_id", user.ID.String()).Msg("logout presence update failed")
		}
	}
	if err := h.pg.UpdateLastOnline(r.Context(), user.ID, time.Now()); err != nil {
		h.log.Warn().Err(err).Str("user_id", user.ID.String()).Msg("last online update failed")
	}
	h.JSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// Me returns the caller's own profile, email included.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}
	h.JSON(w, http.StatusOK, user)
}
