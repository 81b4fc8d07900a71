package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/EgorMochalov/dota2ComfyBack2/internal/api/middleware"
	"github.com/EgorMochalov/dota2ComfyBack2/internal/metrics"
	"github.com/EgorMochalov/dota2ComfyBack2/internal/models"
	"github.com/EgorMochalov/dota2ComfyBack2/internal/store"
)

// CreateTeamRequest represents the team creation request body.
type CreateTeamRequest struct {
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	Region        string   `json:"region"`
	GameModes     []string `json:"game_modes"`
	MMRRangeMin   int      `json:"mmr_range_min"`
	MMRRangeMax   int      `json:"mmr_range_max"`
	RequiredRoles []string `json:"required_roles"`
	Tags          []string `json:"tags"`
	IsSearching   bool     `json:"is_searching"`
}

// CreateTeam creates a team with the caller as captain. The team chat
// room and the captain's membership come with it atomically.
func (h *Handler) CreateTeam(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(w, r)
	if user == nil {
		return
	}
	if user.TeamID != nil {
		h.Error(w, http.StatusBadRequest, "you are already in a team")
		return
	}

	var req CreateTeamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	req.Name = sanitizeName(req.Name, 100)
	if req.Name == "" {
		h.Error(w, http.StatusBadRequest, "team name is required")
		return
	}
	if req.MMRRangeMin < 0 || req.MMRRangeMax < req.MMRRangeMin {
		h.Error(w, http.StatusBadRequest, "invalid mmr range")
		return
	}

	team, room, err := h.pg.CreateTeamWithCaptain(r.Context(), &models.Team{
		Name:          req.Name,
		Description:   req.Description,
		CaptainID:     user.ID,
		Region:        req.Region,
		GameModes:     req.GameModes,
		MMRRangeMin:   req.MMRRangeMin,
		MMRRangeMax:   req.MMRRangeMax,
		RequiredRoles: req.RequiredRoles,
		Tags:          req.Tags,
		IsSearching:   req.IsSearching,
	})
	if err != nil {
		h.AppError(w, err)
		return
	}

	h.cache.InvalidateUser(r.Context(), user.ID)
	metrics.TeamsCreated.Inc()
	h.log.Info().
		Str("team_id", team.ID.String()).
		Str("captain_id", user.ID.String()).
		Msg("team created")

	h.JSON(w, http.StatusCreated, map[string]any{"team": team, "chatRoom": room})
}

// GetTeam returns a team profile with its roster. Cache-first.
func (h *Handler) GetTeam(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "id")
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid team ID")
		return
	}

	team := h.cache.GetCachedTeam(r.Context(), id)
	if team != nil {
		metrics.CacheHits.WithLabelValues("team", "hit").Inc()
	} else {
		metrics.CacheHits.WithLabelValues("team", "miss").Inc()
		team, err = h.pg.GetTeam(r.Context(), id)
		if err != nil {
			h.AppError(w, err)
			return
		}
		if team == nil {
			h.Error(w, http.StatusNotFound, "team not found")
			return
		}
		h.cache.CacheTeam(r.Context(), team)
	}

	members, err := h.pg.ListTeamMembers(r.Context(), id)
	if err != nil {
		h.AppError(w, err)
		return
	}
	roster := make([]*models.User, len(members))
	for i := range members {
		roster[i] = members[i].PublicProfile()
	}

	resp := map[string]any{"team": team, "members": roster}

	// Members also get their team chat room.
	if user := middleware.GetUserFromContext(r.Context()); user != nil && user.TeamID != nil && *user.TeamID == id {
		if room, err := h.pg.GetTeamRoom(r.Context(), id); err == nil && room != nil {
			resp["chatRoom"] = room
		}
	}

	h.JSON(w, http.StatusOK, resp)
}

// UpdateTeamRequest represents the mutable team fields.
type UpdateTeamRequest struct {
	Name            *string   `json:"name"`
	Description     *string   `json:"description"`
	AvatarURL       *string   `json:"avatar_url"`
	Region          *string   `json:"region"`
	GameModes       *[]string `json:"game_modes"`
	MMRRangeMin     *int      `json:"mmr_range_min"`
	MMRRangeMax     *int      `json:"mmr_range_max"`
	RequiredRoles   *[]string `json:"required_roles"`
	Tags            *[]string `json:"tags"`
	IsSearching     *bool     `json:"is_searching"`
	LookingForScrim *bool     `json:"looking_for_scrim"`
}

// UpdateTeam updates team fields. Captain only.
func (h *Handler) UpdateTeam(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(w, r)
	if user == nil {
		return
	}
	team, ok := h.captainTeam(w, r, user)
	if !ok {
		return
	}

	var req UpdateTeamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.Name != nil {
		name := sanitizeName(*req.Name, 100)
		if name == "" {
			h.Error(w, http.StatusBadRequest, "team name cannot be empty")
			return
		}
		team.Name = name
	}
	if req.Description != nil {
		team.Description = *req.Description
	}
	if req.AvatarURL != nil {
		team.AvatarURL = *req.AvatarURL
	}
	if req.Region != nil {
		team.Region = *req.Region
	}
	if req.GameModes != nil {
		team.GameModes = *req.GameModes
	}
	if req.MMRRangeMin != nil {
		team.MMRRangeMin = *req.MMRRangeMin
	}
	if req.MMRRangeMax != nil {
		team.MMRRangeMax = *req.MMRRangeMax
	}
	if team.MMRRangeMin < 0 || team.MMRRangeMax < team.MMRRangeMin {
		h.Error(w, http.StatusBadRequest, "invalid mmr range")
		return
	}
	if req.RequiredRoles != nil {
		team.RequiredRoles = *req.RequiredRoles
	}
	if req.Tags != nil {
		team.Tags = *req.Tags
	}
	if req.IsSearching != nil {
		team.IsSearching = *req.IsSearching
	}
	if req.LookingForScrim != nil {
		team.LookingForScrim = *req.LookingForScrim
	}

	if err := h.pg.UpdateTeam(r.Context(), team); err != nil {
		h.AppError(w, err)
		return
	}
	h.cache.InvalidateTeam(r.Context(), team.ID)

	h.JSON(w, http.StatusOK, team)
}

// DeleteTeam disbands the team: members are released, the team room and
// pending applications and invitations go with it. Captain only.
func (h *Handler) DeleteTeam(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(w, r)
	if user == nil {
		return
	}
	team, ok := h.captainTeam(w, r, user)
	if !ok {
		return
	}

	members, err := h.pg.ListTeamMembers(r.Context(), team.ID)
	if err != nil {
		h.AppError(w, err)
		return
	}

	if err := h.pg.DeleteTeam(r.Context(), team.ID); err != nil {
		h.AppError(w, err)
		return
	}

	memberIDs := make([]uuid.UUID, len(members))
	for i := range members {
		memberIDs[i] = members[i].ID
	}
	h.cache.InvalidateTeam(r.Context(), team.ID)
	h.cache.InvalidateUsers(r.Context(), memberIDs)

	for _, m := range members {
		if m.ID == user.ID {
			continue
		}
		h.notify(r.Context(), &models.Notification{
			UserID:            m.ID,
			Type:              models.NotifySystem,
			Title:             "Team disbanded",
			Message:           "Team " + team.Name + " has been disbanded",
			RelatedEntityType: "team",
			RelatedEntityID:   &team.ID,
		})
	}

	h.log.Info().Str("team_id", team.ID.String()).Msg("team deleted")
	h.JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// LeaveTeam removes the caller from their team. The captain cannot leave;
// they disband or transfer first.
func (h *Handler) LeaveTeam(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(w, r)
	if user == nil {
		return
	}
	if user.TeamID == nil {
		h.Error(w, http.StatusBadRequest, "you are not in a team")
		return
	}

	team, err := h.pg.GetTeam(r.Context(), *user.TeamID)
	if err != nil {
		h.AppError(w, err)
		return
	}
	if team == nil {
		h.Error(w, http.StatusNotFound, "team not found")
		return
	}
	if team.CaptainID == user.ID {
		h.Error(w, http.StatusBadRequest, "captain cannot leave the team, disband it instead")
		return
	}

	if err := h.pg.LeaveTeam(r.Context(), team.ID, user.ID); err != nil {
		h.AppError(w, err)
		return
	}
	h.cache.InvalidateTeam(r.Context(), team.ID)
	h.cache.InvalidateUser(r.Context(), user.ID)

	h.notify(r.Context(), &models.Notification{
		UserID:            team.CaptainID,
		Type:              models.NotifySystem,
		Title:             "Member left",
		Message:           user.Username + " left the team",
		RelatedEntityType: "team",
		RelatedEntityID:   &team.ID,
	})

	h.JSON(w, http.StatusOK, map[string]string{"status": "left"})
}

// RemoveMember kicks a member from the team. Captain only.
func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(w, r)
	if user == nil {
		return
	}
	team, ok := h.captainTeam(w, r, user)
	if !ok {
		return
	}

	memberID, err := urlUUID(r, "userId")
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid user ID")
		return
	}
	if memberID == user.ID {
		h.Error(w, http.StatusBadRequest, "captain cannot kick themselves")
		return
	}

	if err := h.pg.LeaveTeam(r.Context(), team.ID, memberID); err != nil {
		h.AppError(w, err)
		return
	}
	h.cache.InvalidateTeam(r.Context(), team.ID)
	h.cache.InvalidateUser(r.Context(), memberID)

	h.notify(r.Context(), &models.Notification{
		UserID:            memberID,
		Type:              models.NotifySystem,
		Title:             "Removed from team",
		Message:           "You were removed from team " + team.Name,
		RelatedEntityType: "team",
		RelatedEntityID:   &team.ID,
	})

	h.JSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

// SearchTeams finds teams matching the query parameters.
func (h *Handler) SearchTeams(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r, 50, 100)
	f := store.TeamFilter{
		Region:        r.URL.Query().Get("region"),
		Role:          r.URL.Query().Get("role"),
		SearchingOnly: r.URL.Query().Get("searching") == "true",
		ScrimOnly:     r.URL.Query().Get("scrim") == "true",
		Limit:         limit,
		Offset:        offset,
	}
	if v := r.URL.Query().Get("mmr"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			f.MMR = n
		}
	}

	teams, err := h.pg.SearchTeams(r.Context(), f)
	if err != nil {
		h.AppError(w, err)
		return
	}
	metrics.SearchQueries.WithLabelValues("teams").Inc()

	h.JSON(w, http.StatusOK, map[string]any{"teams": teams, "total": len(teams)})
}

// captainTeam loads the team from the id path parameter and verifies the
// caller is its captain.
func (h *Handler) captainTeam(w http.ResponseWriter, r *http.Request, user *models.User) (*models.Team, bool) {
	id, err := urlUUID(r, "id")
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid team ID")
		return nil, false
	}
	team, err := h.pg.GetTeam(r.Context(), id)
	if err != nil {
		h.AppError(w, err)
		return nil, false
	}
	if team == nil {
		h.Error(w, http.StatusNotFound, "team not found")
		return nil, false
	}
	if team.CaptainID != user.ID {
		h.Error(w, http.StatusForbidden, "only the captain can do this")
		return nil, false
	}
	return team, true
}
