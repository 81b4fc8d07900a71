package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/EgorMochalov/dota2ComfyBack2/internal/models"
)

// ApplyRequest represents the team application request body.
type ApplyRequest struct {
	TeamID  uuid.UUID `json:"team_id"`
	Message string    `json:"message"`
}

// Apply creates a pending application to a team. At most one pending
// application per user and team; a concurrent duplicate gets a 409.
func (h *Handler) Apply(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(w, r)
	if user == nil {
		return
	}
	if user.TeamID != nil {
		h.Error(w, http.StatusBadRequest, "you are already in a team")
		return
	}

	var req ApplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	team, err := h.pg.GetTeam(r.Context(), req.TeamID)
	if err != nil {
		h.AppError(w, err)
		return
	}
	if team == nil {
		h.Error(w, http.StatusNotFound, "team not found")
		return
	}

	blocked, err := h.pg.IsBlockedEither(r.Context(), user.ID, team.CaptainID)
	if err != nil {
		h.AppError(w, err)
		return
	}
	if blocked {
		h.Error(w, http.StatusForbidden, "you cannot apply to this team")
		return
	}

	app, err := h.pg.CreateApplication(r.Context(), &models.Application{
		TeamID:  team.ID,
		UserID:  user.ID,
		Message: sanitizeName(req.Message, 500),
	})
	if err != nil {
		h.AppError(w, err)
		return
	}

	h.notify(r.Context(), &models.Notification{
		UserID:            team.CaptainID,
		Type:              models.NotifyApplication,
		Title:             "New application",
		Message:           user.Username + " applied to join " + team.Name,
		RelatedEntityType: "application",
		RelatedEntityID:   &app.ID,
	})

	h.JSON(w, http.StatusCreated, app)
}

// ListTeamApplications returns the pending applications to the caller's
// team. Captain only.
func (h *Handler) ListTeamApplications(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(w, r)
	if user == nil {
		return
	}
	team, ok := h.captainTeam(w, r, user)
	if !ok {
		return
	}

	apps, err := h.pg.ListTeamApplications(r.Context(), team.ID)
	if err != nil {
		h.AppError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, map[string]any{"applications": apps})
}

// ListMyApplications returns the caller's own applications.
func (h *Handler) ListMyApplications(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(w, r)
	if user == nil {
		return
	}
	apps, err := h.pg.ListUserApplications(r.Context(), user.ID)
	if err != nil {
		h.AppError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, map[string]any{"applications": apps})
}

// AcceptApplication accepts a pending application: the applicant joins
// the team and its chat room atomically. Captain only.
func (h *Handler) AcceptApplication(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(w, r)
	if user == nil {
		return
	}
	app, team, ok := h.applicationForCaptain(w, r, user)
	if !ok {
		return
	}

	accepted, room, err := h.pg.AcceptApplication(r.Context(), app.ID)
	if err != nil {
		h.AppError(w, err)
		return
	}

	h.cache.InvalidateTeam(r.Context(), team.ID)
	h.cache.InvalidateUser(r.Context(), accepted.UserID)

	h.notify(r.Context(), &models.Notification{
		UserID:            accepted.UserID,
		Type:              models.NotifyApplication,
		Title:             "Application accepted",
		Message:           "You joined team " + team.Name,
		RelatedEntityType: "team",
		RelatedEntityID:   &team.ID,
	})

	h.log.Info().
		Str("application_id", accepted.ID.String()).
		Str("team_id", team.ID.String()).
		Msg("application accepted")

	h.JSON(w, http.StatusOK, map[string]any{"application": accepted, "chatRoom": room})
}

// RejectApplication rejects a pending application. Captain only.
func (h *Handler) RejectApplication(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(w, r)
	if user == nil {
		return
	}
	app, team, ok := h.applicationForCaptain(w, r, user)
	if !ok {
		return
	}

	if err := h.pg.RejectApplication(r.Context(), app.ID); err != nil {
		h.AppError(w, err)
		return
	}

	h.notify(r.Context(), &models.Notification{
		UserID:            app.UserID,
		Type:              models.NotifyApplication,
		Title:             "Application rejected",
		Message:           "Team " + team.Name + " rejected your application",
		RelatedEntityType: "team",
		RelatedEntityID:   &team.ID,
	})

	h.JSON(w, http.StatusOK, map[string]string{"status": "rejected"})
}

// CancelApplication withdraws the caller's own pending application.
func (h *Handler) CancelApplication(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(w, r)
	if user == nil {
		return
	}
	id, err := urlUUID(r, "id")
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid application ID")
		return
	}

	app, err := h.pg.GetApplication(r.Context(), id)
	if err != nil {
		h.AppError(w, err)
		return
	}
	if app == nil {
		h.Error(w, http.StatusNotFound, "application not found")
		return
	}
	if app.UserID != user.ID {
		h.Error(w, http.StatusForbidden, "not your application")
		return
	}

	if err := h.pg.DeleteApplication(r.Context(), id); err != nil {
		h.AppError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// applicationForCaptain loads a pending application and verifies the
// caller captains its team.
func (h *Handler) applicationForCaptain(w http.ResponseWriter, r *http.Request, user *models.User) (*models.Application, *models.Team, bool) {
	id, err := urlUUID(r, "id")
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid application ID")
		return nil, nil, false
	}

	app, err := h.pg.GetApplication(r.Context(), id)
	if err != nil {
		h.AppError(w, err)
		return nil, nil, false
	}
	if app == nil {
		h.Error(w, http.StatusNotFound, "application not found")
		return nil, nil, false
	}
	if app.Status != models.StatusPending {
		h.Error(w, http.StatusBadRequest, "application is not pending")
		return nil, nil, false
	}

	team, err := h.pg.GetTeam(r.Context(), app.TeamID)
	if err != nil {
		h.AppError(w, err)
		return nil, nil, false
	}
	if team == nil {
		h.Error(w, http.StatusNotFound, "team not found")
		return nil, nil, false
	}
	if team.CaptainID != user.ID {
		h.Error(w, http.StatusForbidden, "only the captain can do this")
		return nil, nil, false
	}
	return app, team, true
}
