package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/promptmarket/api/internal/middleware"
	"github.com/promptmarket/api/internal/models"
	"github.com/promptmarket/api/internal/services"
	"github.com/promptmarket/api/pkg/utils"
)

// ProfileUpdater applies profile edits. *services.AuthService
// satisfies it.
type ProfileUpdater interface {
	UpdateProfile(ctx context.Context, actor models.UserSnapshot, targetID uuid.UUID, input services.UpdateProfileInput) (*models.User, error)
}

// SnapshotRefresher rewrites the user snapshot carried by live
// sessions after a profile edit. *services.SessionService satisfies it.
type SnapshotRefresher interface {
	RefreshSnapshots(ctx context.Context, user *models.User) error
}

// UserHandler handles the profile endpoints.
type UserHandler struct {
	users    ProfileUpdater
	sessions SnapshotRefresher
}

// NewUserHandler creates a user handler.
func NewUserHandler(users ProfileUpdater, sessions SnapshotRefresher) *UserHandler {
	return &UserHandler{
		users:    users,
		sessions: sessions,
	}
}

type updateProfileRequest struct {
	Name               *string `json:"name,omitempty"`
	Bio                *string `json:"bio,omitempty"`
	Avatar             *string `json:"avatar,omitempty"`
	EmailNotifications *bool   `json:"email_notifications,omitempty"`
	PushNotifications  *bool   `json:"push_notifications,omitempty"`
}

// UpdateProfile applies a partial profile edit. Users may only edit
// their own profile; editing someone else's answers 403 unless the
// actor is an admin. On success the snapshots of the user's live
// sessions are refreshed so every device sees the edit immediately.
//
// @Summary      Update a user profile
// @Description  Partially updates profile fields. Non-admins may only edit themselves.
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        id    path      string                true  "User ID"
// @Param        body  body      updateProfileRequest  true  "Fields to update"
// @Success      200   {object}  models.UserSnapshot   "Updated profile"
// @Failure      400   {object}  utils.ErrorResponse   "Invalid ID or body"
// @Failure      401   {object}  utils.ErrorResponse   "Not authenticated"
// @Failure      403   {object}  utils.ErrorResponse   "Not the profile owner"
// @Failure      404   {object}  utils.ErrorResponse   "No such user"
// @Router       /api/users/{id} [put]
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.GetUser(r.Context())
	if !ok {
		utils.RespondWithError(w, r, http.StatusUnauthorized, "Not authenticated")
		return
	}

	targetID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		utils.RespondWithError(w, r, http.StatusBadRequest, "Invalid user ID")
		return
	}

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.users.UpdateProfile(r.Context(), actor, targetID, services.UpdateProfileInput{
		Name:               req.Name,
		Bio:                req.Bio,
		Avatar:             req.Avatar,
		EmailNotifications: req.EmailNotifications,
		PushNotifications:  req.PushNotifications,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUnauthorized):
			utils.RespondWithError(w, r, http.StatusForbidden, "You can only edit your own profile")
		case errors.Is(err, services.ErrNotFound):
			utils.RespondWithError(w, r, http.StatusNotFound, "User not found")
		default:
			if ve, ok := services.IsValidationError(err); ok {
				utils.RespondWithError(w, r, http.StatusBadRequest, ve.Message)
				return
			}
			utils.RespondWithError(w, r, http.StatusInternalServerError, "Profile update failed")
		}
		return
	}

	// Keep live sessions in sync with the edit
	if err := h.sessions.RefreshSnapshots(r.Context(), user); err != nil {
		log.Warn().Err(err).Str("user_id", user.ID.String()).Msg("Failed to refresh session snapshots")
	}

	utils.RespondWithJSON(w, r, http.StatusOK, user.Snapshot())
}
