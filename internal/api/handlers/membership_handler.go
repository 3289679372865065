package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Marga-Ghale/together-culture-crm/internal/api/middleware"
	"github.com/Marga-Ghale/together-culture-crm/internal/models"
	"github.com/Marga-Ghale/together-culture-crm/internal/repository"
	"github.com/Marga-Ghale/together-culture-crm/internal/service"
)

// ============================================
// Membership Handler
// ============================================

type MembershipHandler struct {
	membershipService service.MembershipService
	profileService    service.ProfileService
}

func (h *MembershipHandler) Request(c *gin.Context) {
	user, ok := middleware.RequireUser(c)
	if !ok {
		return
	}
	var req models.MembershipRequest
	if !bindJSON(c, &req) {
		return
	}

	m, err := h.membershipService.Request(c.Request.Context(), user, req.MembershipType)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toMembershipResponse(m))
}

func (h *MembershipHandler) CancelPending(c *gin.Context) {
	user, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	if err := h.membershipService.CancelPending(c.Request.Context(), user); err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Membership request cancelled"})
}

func (h *MembershipHandler) History(c *gin.Context) {
	user, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	history, err := h.membershipService.History(c.Request.Context(), user)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, toMembershipList(history))
}

// Current returns the open approved membership and any pending request.
func (h *MembershipHandler) Current(c *gin.Context) {
	user, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	profile, found, err := h.profileService.ProfileFor(c.Request.Context(), user.ID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	if !found {
		c.JSON(http.StatusOK, gin.H{"current_membership": nil, "pending_membership_request": nil})
		return
	}

	current, err := h.membershipService.Current(c.Request.Context(), profile.ID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	pending, err := h.membershipService.Pending(c.Request.Context(), profile.ID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"current_membership":         toMembershipResponsePtr(current),
		"pending_membership_request": toMembershipResponsePtr(pending),
	})
}

func (h *MembershipHandler) ListPending(c *gin.Context) {
	user, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	pending, err := h.membershipService.ListPending(c.Request.Context(), user)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, toPendingList(pending))
}

func toPendingList(list []*repository.PendingMembership) []models.PendingMembershipResponse {
	out := make([]models.PendingMembershipResponse, len(list))
	for i, p := range list {
		out[i] = models.PendingMembershipResponse{
			Membership: toMembershipResponse(p.Membership),
			Profile:    toProfileResponse(p.Profile),
			User:       toUserResponsePtr(p.User),
		}
	}
	return out
}

func (h *MembershipHandler) Approve(c *gin.Context) {
	user, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	m, err := h.membershipService.Approve(c.Request.Context(), user, c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, toMembershipResponse(m))
}
