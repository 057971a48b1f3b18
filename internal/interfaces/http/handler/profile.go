package handler

import (
	"github.com/gin-gonic/gin"
)

// ProfileHandler serves the signed-in user's profile record
type ProfileHandler struct {
	BaseHandler
	profiles ProfileService
}

// NewProfileHandler creates a new profile handler
func NewProfileHandler(profiles ProfileService) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

// AvatarUploadRequest names the image type to be uploaded
type AvatarUploadRequest struct {
	ContentType string `json:"content_type" binding:"required,oneof=image/jpeg image/png image/webp"`
}

// UpdateUsernameRequest sets the profile username
type UpdateUsernameRequest struct {
	Username string `json:"username" binding:"required,min=2,max=50"`
}

// Get godoc
// @Summary      Load profile
// @Description  Profile record with username fallback and new-user flag
// @Tags         profile
// @Produce      json
// @Success      200 {object} dto.Response{data=profile.View}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      503 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /profile [get]
func (h *ProfileHandler) Get(c *gin.Context) {
	userID, ok := h.UserID(c)
	if !ok {
		return
	}
	view, err := h.profiles.Load(c.Request.Context(), userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, view)
}

// UpdateUsername godoc
// @Summary      Change username
// @Tags         profile
// @Accept       json
// @Produce      json
// @Param        request body UpdateUsernameRequest true "Username"
// @Success      200 {object} dto.Response{data=profile.View}
// @Security     BearerAuth
// @Router       /profile [put]
func (h *ProfileHandler) UpdateUsername(c *gin.Context) {
	userID, ok := h.UserID(c)
	if !ok {
		return
	}
	var req UpdateUsernameRequest
	if !h.BindJSON(c, &req) {
		return
	}
	view, err := h.profiles.UpdateUsername(c.Request.Context(), userID, req.Username)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, view)
}

// AvatarUpload godoc
// @Summary      Avatar upload URL
// @Description  Presigned URL the client PUTs the image to
// @Tags         profile
// @Accept       json
// @Produce      json
// @Param        request body AvatarUploadRequest true "Content type"
// @Success      200 {object} dto.Response{data=profile.AvatarUpload}
// @Security     BearerAuth
// @Router       /profile/avatar [post]
func (h *ProfileHandler) AvatarUpload(c *gin.Context) {
	userID, ok := h.UserID(c)
	if !ok {
		return
	}
	var req AvatarUploadRequest
	if !h.BindJSON(c, &req) {
		return
	}
	upload, err := h.profiles.AvatarUploadURL(c.Request.Context(), userID, req.ContentType)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, upload)
}
