package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Marga-Ghale/together-culture-crm/internal/api/middleware"
	"github.com/Marga-Ghale/together-culture-crm/internal/models"
	"github.com/Marga-Ghale/together-culture-crm/internal/repository"
	"github.com/Marga-Ghale/together-culture-crm/internal/service"
)

// ============================================
// Benefit Handler
// ============================================

type BenefitHandler struct {
	benefitService service.BenefitService
}

func toBenefitInput(req models.BenefitRequest) service.BenefitInput {
	return service.BenefitInput{
		Name:                    req.Name,
		Description:             req.Description,
		MembershipLevelRequired: req.MembershipLevelRequired,
		IsActive:                req.IsActive,
	}
}

func toBenefitList(list []*repository.Benefit) []models.BenefitResponse {
	out := make([]models.BenefitResponse, len(list))
	for i, b := range list {
		out[i] = toBenefitResponse(b)
	}
	return out
}

// bindOptionalJSON accepts an empty body.
func bindOptionalJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error(), Reason: "invalid_body"})
		return false
	}
	return true
}

func (h *BenefitHandler) List(c *gin.Context) {
	user, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	benefits, err := h.benefitService.List(c.Request.Context(), user, c.Query("membership_level"))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, toBenefitList(benefits))
}

func (h *BenefitHandler) Get(c *gin.Context) {
	user, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	b, err := h.benefitService.Get(c.Request.Context(), user, c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, toBenefitResponse(b))
}

func (h *BenefitHandler) Create(c *gin.Context) {
	user, ok := middleware.RequireUser(c)
	if !ok {
		return
	}
	var req models.BenefitRequest
	if !bindJSON(c, &req) {
		return
	}

	b, err := h.benefitService.Create(c.Request.Context(), user, toBenefitInput(req))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toBenefitResponse(b))
}

func (h *BenefitHandler) Update(c *gin.Context) {
	user, ok := middleware.RequireUser(c)
	if !ok {
		return
	}
	var req models.BenefitRequest
	if !bindJSON(c, &req) {
		return
	}

	b, err := h.benefitService.Update(c.Request.Context(), user, c.Param("id"), toBenefitInput(req))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, toBenefitResponse(b))
}

func (h *BenefitHandler) Delete(c *gin.Context) {
	user, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	if err := h.benefitService.Delete(c.Request.Context(), user, c.Param("id")); err != nil {
		handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *BenefitHandler) Activate(c *gin.Context) {
	user, ok := middleware.RequireUser(c)
	if !ok {
		return
	}
	var req models.ActivateBenefitRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	ub, err := h.benefitService.Activate(c.Request.Context(), user, c.Param("id"), req.ExpiresInDays)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, toUserBenefitResponse(ub))
}

func (h *BenefitHandler) Use(c *gin.Context) {
	user, ok := middleware.RequireUser(c)
	if !ok {
		return
	}
	var req models.UseBenefitRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	l, err := h.benefitService.Use(c.Request.Context(), user, c.Param("id"), req.Notes)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toUsageResponse(l))
}

func (h *BenefitHandler) LogUsage(c *gin.Context) {
	user, ok := middleware.RequireUser(c)
	if !ok {
		return
	}
	var req models.LogUsageRequest
	if !bindJSON(c, &req) {
		return
	}

	l, err := h.benefitService.LogUsage(c.Request.Context(), user, c.Param("id"), req.UserID, req.Notes)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toUsageResponse(l))
}

func (h *BenefitHandler) My(c *gin.Context) {
	user, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	activations, err := h.benefitService.My(c.Request.Context(), user)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response := make([]models.UserBenefitResponse, len(activations))
	for i, ub := range activations {
		response[i] = toUserBenefitResponse(ub)
	}
	c.JSON(http.StatusOK, response)
}

func (h *BenefitHandler) Usage(c *gin.Context) {
	user, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	logs, err := h.benefitService.Usage(c.Request.Context(), user, service.UsageQuery{
		BenefitID: c.Query("benefit_id"),
		UserID:    c.Query("user_id"),
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response := make([]models.BenefitUsageResponse, len(logs))
	for i, l := range logs {
		response[i] = toUsageResponse(l)
	}
	c.JSON(http.StatusOK, response)
}
