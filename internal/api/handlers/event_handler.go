package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Marga-Ghale/together-culture-crm/internal/api/middleware"
	"github.com/Marga-Ghale/together-culture-crm/internal/models"
	"github.com/Marga-Ghale/together-culture-crm/internal/service"
)

// ============================================
// Event Handler
// ============================================

type EventHandler struct {
	eventService service.EventService
}

func toEventInput(req models.EventRequest) service.EventInput {
	return service.EventInput{
		Title:                   req.Title,
		Description:             req.Description,
		EventType:               req.EventType,
		StartDate:               req.StartDate,
		EndDate:                 req.EndDate,
		Location:                req.Location,
		Capacity:                req.Capacity,
		Cost:                    req.Cost,
		RegistrationOpens:       req.RegistrationOpens,
		RegistrationCloses:      req.RegistrationCloses,
		EligibleMembershipTypes: req.EligibleMembershipTypes,
		IsActive:                req.IsActive,
		IsPublic:                req.IsPublic,
	}
}

func (h *EventHandler) list(c *gin.Context, upcoming bool) {
	user, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	events, err := h.eventService.List(c.Request.Context(), user, service.EventQuery{
		EventType: c.Query("event_type"),
		Upcoming:  upcoming || c.Query("upcoming") == "true",
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response := make([]models.EventDetailResponse, len(events))
	for i, e := range events {
		response[i] = toEventDetailResponse(e)
	}
	c.JSON(http.StatusOK, response)
}

func (h *EventHandler) List(c *gin.Context)     { h.list(c, false) }
func (h *EventHandler) Upcoming(c *gin.Context) { h.list(c, true) }

func (h *EventHandler) Get(c *gin.Context) {
	user, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	detail, err := h.eventService.Get(c.Request.Context(), user, c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, toEventDetailResponse(detail))
}

func (h *EventHandler) Create(c *gin.Context) {
	user, ok := middleware.RequireUser(c)
	if !ok {
		return
	}
	var req models.EventRequest
	if !bindJSON(c, &req) {
		return
	}

	ev, err := h.eventService.Create(c.Request.Context(), user, toEventInput(req))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toEventResponse(ev))
}

func (h *EventHandler) Update(c *gin.Context) {
	user, ok := middleware.RequireUser(c)
	if !ok {
		return
	}
	var req models.EventRequest
	if !bindJSON(c, &req) {
		return
	}

	ev, err := h.eventService.Update(c.Request.Context(), user, c.Param("id"), toEventInput(req))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, toEventResponse(ev))
}

func (h *EventHandler) Delete(c *gin.Context) {
	user, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	if err := h.eventService.Delete(c.Request.Context(), user, c.Param("id")); err != nil {
		handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *EventHandler) Register(c *gin.Context) {
	user, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	att, err := h.eventService.Register(c.Request.Context(), user, c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toAttendanceResponse(att))
}

func (h *EventHandler) Cancel(c *gin.Context) {
	user, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	if err := h.eventService.Cancel(c.Request.Context(), user, c.Param("id")); err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Registration cancelled"})
}

func (h *EventHandler) Status(c *gin.Context) {
	user, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	detail, err := h.eventService.Get(c.Request.Context(), user, c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	resp := models.EventStatusResponse{
		EventID:      detail.Event.ID,
		IsRegistered: detail.IsRegistered(),
		CanRegister:  detail.CanRegister,
		Reason:       string(detail.Reason),
	}
	if detail.Attendance != nil {
		a := toAttendanceResponse(detail.Attendance)
		resp.Attendance = &a
	}
	c.JSON(http.StatusOK, resp)
}

// GuestRegister is public; no token is required.
func (h *EventHandler) GuestRegister(c *gin.Context) {
	var req models.GuestRegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	att, err := h.eventService.GuestRegister(c.Request.Context(), c.Param("id"), service.GuestInput{
		Email:       req.Email,
		FullName:    req.FullName,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toAttendanceResponse(att))
}

func (h *EventHandler) MyEvents(c *gin.Context) {
	user, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	list, err := h.eventService.MyEvents(c.Request.Context(), user)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, toAttendanceList(list))
}

func (h *EventHandler) Attendees(c *gin.Context) {
	user, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	list, err := h.eventService.Attendees(c.Request.Context(), user, c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, toAttendanceList(list))
}

func (h *EventHandler) CheckIn(c *gin.Context) {
	user, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	att, err := h.eventService.CheckIn(c.Request.Context(), user, c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, toAttendanceResponse(att))
}

func (h *EventHandler) MarkAttended(c *gin.Context) {
	user, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	att, err := h.eventService.MarkAttended(c.Request.Context(), user, c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, toAttendanceResponse(att))
}

func (h *EventHandler) BulkCheckIn(c *gin.Context) {
	user, ok := middleware.RequireUser(c)
	if !ok {
		return
	}
	var req models.BulkCheckInRequest
	if !bindJSON(c, &req) {
		return
	}

	n, err := h.eventService.BulkCheckIn(c.Request.Context(), user, c.Param("id"), req.UserIDs)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"checked_in": n})
}
