package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Marga-Ghale/together-culture-crm/internal/api/middleware"
	"github.com/Marga-Ghale/together-culture-crm/internal/models"
	"github.com/Marga-Ghale/together-culture-crm/internal/service"
)

// ============================================
// Profile Handler
// ============================================

type ProfileHandler struct {
	profileService service.ProfileService
}

func toUpdateProfileInput(req models.UpdateProfileRequest) service.UpdateProfileInput {
	in := service.UpdateProfileInput{
		FullName:    req.FullName,
		PhoneNumber: req.PhoneNumber,
		Location:    req.Location,
		Bio:         req.Bio,
		Interests:   req.Interests,
	}
	if req.InterestsUpdate != nil {
		in.InterestsUpdate = &service.InterestsDiff{
			Added:   req.InterestsUpdate.Added,
			Removed: req.InterestsUpdate.Removed,
		}
	}
	return in
}

func (h *ProfileHandler) Create(c *gin.Context) {
	user, ok := middleware.RequireUser(c)
	if !ok {
		return
	}
	var req models.CreateProfileRequest
	if !bindJSON(c, &req) {
		return
	}

	detail, err := h.profileService.Create(c.Request.Context(), user, service.CreateProfileInput{
		FullName:    req.FullName,
		PhoneNumber: req.PhoneNumber,
		Location:    req.Location,
		Bio:         req.Bio,
		Interests:   req.Interests,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toProfileDetailResponse(detail))
}

func (h *ProfileHandler) Get(c *gin.Context) {
	user, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	detail, err := h.profileService.Get(c.Request.Context(), user)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, toProfileDetailResponse(detail))
}

func (h *ProfileHandler) Update(c *gin.Context) {
	user, ok := middleware.RequireUser(c)
	if !ok {
		return
	}
	var req models.UpdateProfileRequest
	if !bindJSON(c, &req) {
		return
	}

	detail, err := h.profileService.Update(c.Request.Context(), user, toUpdateProfileInput(req))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, toProfileDetailResponse(detail))
}

func (h *ProfileHandler) InterestHistory(c *gin.Context) {
	user, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	history, err := h.profileService.InterestHistory(c.Request.Context(), user)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, toInterestList(history))
}

func (h *ProfileHandler) AdminGet(c *gin.Context) {
	user, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	detail, err := h.profileService.AdminGet(c.Request.Context(), user, c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, toProfileDetailResponse(detail))
}

func (h *ProfileHandler) AdminUpdate(c *gin.Context) {
	user, ok := middleware.RequireUser(c)
	if !ok {
		return
	}
	var req models.UpdateProfileRequest
	if !bindJSON(c, &req) {
		return
	}

	detail, err := h.profileService.AdminUpdate(c.Request.Context(), user, c.Param("id"), toUpdateProfileInput(req))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, toProfileDetailResponse(detail))
}
