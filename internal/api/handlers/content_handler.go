package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Marga-Ghale/together-culture-crm/internal/api/middleware"
	"github.com/Marga-Ghale/together-culture-crm/internal/models"
	"github.com/Marga-Ghale/together-culture-crm/internal/service"
)

// ============================================
// Content Handler
// ============================================

type ContentHandler struct {
	contentService service.ContentService
}

func toContentInput(req models.ContentRequest) service.ContentInput {
	return service.ContentInput{
		Title:       req.Title,
		Description: req.Description,
		ContentType: req.ContentType,
		AccessLevel: req.AccessLevel,
		URL:         req.URL,
		IsActive:    req.IsActive,
	}
}

func (h *ContentHandler) List(c *gin.Context) {
	user, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	items, err := h.contentService.List(c.Request.Context(), user, c.Query("content_type"))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response := make([]models.ContentResponse, len(items))
	for i, item := range items {
		response[i] = toContentResponse(item)
	}
	c.JSON(http.StatusOK, response)
}

func (h *ContentHandler) Get(c *gin.Context) {
	user, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	item, err := h.contentService.Get(c.Request.Context(), user, c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, toContentWithProgress(item))
}

func (h *ContentHandler) Create(c *gin.Context) {
	user, ok := middleware.RequireUser(c)
	if !ok {
		return
	}
	var req models.ContentRequest
	if !bindJSON(c, &req) {
		return
	}

	item, err := h.contentService.Create(c.Request.Context(), user, toContentInput(req))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toContentResponse(item))
}

func (h *ContentHandler) Update(c *gin.Context) {
	user, ok := middleware.RequireUser(c)
	if !ok {
		return
	}
	var req models.ContentRequest
	if !bindJSON(c, &req) {
		return
	}

	item, err := h.contentService.Update(c.Request.Context(), user, c.Param("id"), toContentInput(req))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, toContentResponse(item))
}

func (h *ContentHandler) Delete(c *gin.Context) {
	user, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	if err := h.contentService.Delete(c.Request.Context(), user, c.Param("id")); err != nil {
		handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *ContentHandler) View(c *gin.Context) {
	user, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	views, err := h.contentService.View(c.Request.Context(), user, c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"views": views})
}

func (h *ContentHandler) Download(c *gin.Context) {
	user, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	downloads, err := h.contentService.Download(c.Request.Context(), user, c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"downloads": downloads})
}

func (h *ContentHandler) UpdateProgress(c *gin.Context) {
	user, ok := middleware.RequireUser(c)
	if !ok {
		return
	}
	var req models.ProgressRequest
	if !bindJSON(c, &req) {
		return
	}

	p, err := h.contentService.UpdateProgress(c.Request.Context(), user, c.Param("id"), req.ProgressPercentage, req.Completed)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, toProgressResponse(p))
}

func (h *ContentHandler) My(c *gin.Context) {
	user, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	items, err := h.contentService.My(c.Request.Context(), user)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response := make([]models.ContentResponse, len(items))
	for i, item := range items {
		response[i] = toContentWithProgress(item)
	}
	c.JSON(http.StatusOK, response)
}

func (h *ContentHandler) Progress(c *gin.Context) {
	user, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	rows, err := h.contentService.Progress(c.Request.Context(), user)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response := make([]*models.ProgressResponse, len(rows))
	for i, p := range rows {
		response[i] = toProgressResponse(p)
	}
	c.JSON(http.StatusOK, response)
}
