package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Marga-Ghale/together-culture-crm/internal/api/middleware"
	"github.com/Marga-Ghale/together-culture-crm/internal/service"
)

// ============================================
// User Handler
// ============================================

type UserHandler struct {
	profileService service.ProfileService
}

// GetCurrentUser returns the account and whether its profile is complete.
func (h *UserHandler) GetCurrentUser(c *gin.Context) {
	user, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	_, hasProfile, err := h.profileService.ProfileFor(c.Request.Context(), user.ID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":        toUserResponse(user),
		"has_profile": hasProfile,
	})
}
