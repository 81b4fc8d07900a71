package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/EgorMochalov/dota2ComfyBack2/internal/models"
)

// InviteRequest represents the invitation request body.
type InviteRequest struct {
	UserID  uuid.UUID `json:"user_id"`
	Message string    `json:"message"`
}

// Invite creates a pending invitation from the caller's team to a user.
// Captain only; at most one pending invitation per team and user.
func (h *Handler) Invite(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(w, r)
	if user == nil {
		return
	}
	team, ok := h.captainTeam(w, r, user)
	if !ok {
		return
	}

	var req InviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	target, err := h.pg.GetUserByID(r.Context(), req.UserID)
	if err != nil {
		h.AppError(w, err)
		return
	}
	if target == nil {
		h.Error(w, http.StatusNotFound, "user not found")
		return
	}
	if target.TeamID != nil {
		h.Error(w, http.StatusBadRequest, "user is already in a team")
		return
	}

	blocked, err := h.pg.IsBlockedEither(r.Context(), user.ID, target.ID)
	if err != nil {
		h.AppError(w, err)
		return
	}
	if blocked {
		h.Error(w, http.StatusForbidden, "you cannot invite this user")
		return
	}

	inv, err := h.pg.CreateInvitation(r.Context(), &models.Invitation{
		TeamID:        team.ID,
		InvitedUserID: target.ID,
		InviterID:     user.ID,
		Message:       sanitizeName(req.Message, 500),
	})
	if err != nil {
		h.AppError(w, err)
		return
	}

	h.notify(r.Context(), &models.Notification{
		UserID:            target.ID,
		Type:              models.NotifyInvitation,
		Title:             "Team invitation",
		Message:           "Team " + team.Name + " invited you to join",
		RelatedEntityType: "invitation",
		RelatedEntityID:   &inv.ID,
	})

	h.JSON(w, http.StatusCreated, inv)
}

// ListTeamInvitations returns the pending invitations sent by the
// caller's team. Captain only.
func (h *Handler) ListTeamInvitations(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(w, r)
	if user == nil {
		return
	}
	team, ok := h.captainTeam(w, r, user)
	if !ok {
		return
	}

	invs, err := h.pg.ListTeamInvitations(r.Context(), team.ID)
	if err != nil {
		h.AppError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, map[string]any{"invitations": invs})
}

// ListMyInvitations returns the pending invitations addressed to the
// caller.
func (h *Handler) ListMyInvitations(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(w, r)
	if user == nil {
		return
	}
	invs, err := h.pg.ListUserInvitations(r.Context(), user.ID)
	if err != nil {
		h.AppError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, map[string]any{"invitations": invs})
}

// AcceptInvitation accepts an invitation addressed to the caller: they
// join the team and its chat room atomically.
func (h *Handler) AcceptInvitation(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(w, r)
	if user == nil {
		return
	}
	if user.TeamID != nil {
		h.Error(w, http.StatusBadRequest, "you are already in a team")
		return
	}
	inv, ok := h.invitationForInvitee(w, r, user)
	if !ok {
		return
	}

	accepted, room, err := h.pg.AcceptInvitation(r.Context(), inv.ID)
	if err != nil {
		h.AppError(w, err)
		return
	}

	team, err := h.pg.GetTeam(r.Context(), accepted.TeamID)
	if err != nil {
		h.AppError(w, err)
		return
	}

	h.cache.InvalidateTeam(r.Context(), accepted.TeamID)
	h.cache.InvalidateUser(r.Context(), user.ID)

	if team != nil {
		h.notify(r.Context(), &models.Notification{
			UserID:            team.CaptainID,
			Type:              models.NotifyInvitation,
			Title:             "Invitation accepted",
			Message:           user.Username + " joined your team",
			RelatedEntityType: "team",
			RelatedEntityID:   &team.ID,
		})
	}

	h.JSON(w, http.StatusOK, map[string]any{"invitation": accepted, "chatRoom": room})
}

// RejectInvitation declines an invitation addressed to the caller.
func (h *Handler) RejectInvitation(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(w, r)
	if user == nil {
		return
	}
	inv, ok := h.invitationForInvitee(w, r, user)
	if !ok {
		return
	}

	if err := h.pg.RejectInvitation(r.Context(), inv.ID); err != nil {
		h.AppError(w, err)
		return
	}

	h.notify(r.Context(), &models.Notification{
		UserID:            inv.InviterID,
		Type:              models.NotifyInvitation,
		Title:             "Invitation declined",
		Message:           user.Username + " declined your invitation",
		RelatedEntityType: "invitation",
		RelatedEntityID:   &inv.ID,
	})

	h.JSON(w, http.StatusOK, map[string]string{"status": "rejected"})
}

// CancelInvitation withdraws a pending invitation. Inviter or team
// captain only.
func (h *Handler) CancelInvitation(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(w, r)
	if user == nil {
		return
	}
	id, err := urlUUID(r, "id")
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid invitation ID")
		return
	}

	inv, err := h.pg.GetInvitation(r.Context(), id)
	if err != nil {
		h.AppError(w, err)
		return
	}
	if inv == nil {
		h.Error(w, http.StatusNotFound, "invitation not found")
		return
	}

	if inv.InviterID != user.ID {
		team, err := h.pg.GetTeam(r.Context(), inv.TeamID)
		if err != nil {
			h.AppError(w, err)
			return
		}
		if team == nil || team.CaptainID != user.ID {
			h.Error(w, http.StatusForbidden, "not your invitation")
			return
		}
	}

	if err := h.pg.DeleteInvitation(r.Context(), id); err != nil {
		h.AppError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// invitationForInvitee loads a pending invitation and verifies it is
// addressed to the caller.
func (h *Handler) invitationForInvitee(w http.ResponseWriter, r *http.Request, user *models.User) (*models.Invitation, bool) {
	id, err := urlUUID(r, "id")
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid invitation ID")
		return nil, false
	}

	inv, err := h.pg.GetInvitation(r.Context(), id)
	if err != nil {
		h.AppError(w, err)
		return nil, false
	}
	if inv == nil {
		h.Error(w, http.StatusNotFound, "invitation not found")
		return nil, false
	}
	if inv.InvitedUserID != user.ID {
		h.Error(w, http.StatusForbidden, "not your invitation")
		return nil, false
	}
	if inv.Status != models.StatusPending {
		h.Error(w, http.StatusBadRequest, "invitation is not pending")
		return nil, false
	}
	return inv, true
}
