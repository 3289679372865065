package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Marga-Ghale/together-culture-crm/internal/api/middleware"
	"github.com/Marga-Ghale/together-culture-crm/internal/models"
	"github.com/Marga-Ghale/together-culture-crm/internal/service"
)

// ============================================
// Community Handler
// ============================================

type CommunityHandler struct {
	communityService service.CommunityService
}

func (h *CommunityHandler) ListDiscussions(c *gin.Context) {
	discussions, err := h.communityService.ListDiscussions(c.Request.Context())
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response := make([]models.DiscussionResponse, len(discussions))
	for i, d := range discussions {
		response[i] = toDiscussionResponse(d)
	}
	c.JSON(http.StatusOK, response)
}

func (h *CommunityHandler) CreateDiscussion(c *gin.Context) {
	user, ok := middleware.RequireUser(c)
	if !ok {
		return
	}
	var req models.DiscussionRequest
	if !bindJSON(c, &req) {
		return
	}

	d, err := h.communityService.CreateDiscussion(c.Request.Context(), user, req.Title)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toDiscussionResponse(d))
}

func (h *CommunityHandler) GetDiscussion(c *gin.Context) {
	user, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	detail, err := h.communityService.GetDiscussion(c.Request.Context(), user, c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	resp := toDiscussionResponse(detail.Discussion)
	resp.Replies = make([]models.ReplyResponse, len(detail.Replies))
	for i, r := range detail.Replies {
		resp.Replies[i] = toReplyResponse(r)
	}
	c.JSON(http.StatusOK, resp)
}

func (h *CommunityHandler) Reply(c *gin.Context) {
	user, ok := middleware.RequireUser(c)
	if !ok {
		return
	}
	var req models.ReplyRequest
	if !bindJSON(c, &req) {
		return
	}

	r, err := h.communityService.Reply(c.Request.Context(), user, c.Param("id"), req.Content)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toReplyResponse(r))
}

func (h *CommunityHandler) React(c *gin.Context) {
	user, ok := middleware.RequireUser(c)
	if !ok {
		return
	}
	var req models.ReactionRequest
	if !bindJSON(c, &req) {
		return
	}

	r, err := h.communityService.React(c.Request.Context(), user, c.Param("id"), req.Reaction == "like")
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, toReplyResponse(r))
}

func (h *CommunityHandler) Messages(c *gin.Context) {
	user, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	messages, err := h.communityService.Messages(c.Request.Context(), user)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response := make([]models.MessageResponse, len(messages))
	for i, m := range messages {
		response[i] = toMessageResponse(m)
	}
	c.JSON(http.StatusOK, response)
}

func (h *CommunityHandler) SendMessage(c *gin.Context) {
	user, ok := middleware.RequireUser(c)
	if !ok {
		return
	}
	var req models.MessageRequest
	if !bindJSON(c, &req) {
		return
	}

	m, err := h.communityService.SendMessage(c.Request.Context(), user, service.MessageInput{
		RecipientID:     req.RecipientID,
		Content:         req.Content,
		ParentMessageID: req.ParentMessageID,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toMessageResponse(m))
}

func (h *CommunityHandler) ToggleLike(c *gin.Context) {
	user, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	liked, err := h.communityService.ToggleLike(c.Request.Context(), user, c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"liked": liked})
}

func (h *CommunityHandler) Forward(c *gin.Context) {
	user, ok := middleware.RequireUser(c)
	if !ok {
		return
	}
	var req models.ForwardRequest
	if !bindJSON(c, &req) {
		return
	}

	m, err := h.communityService.Forward(c.Request.Context(), user, c.Param("id"), req.RecipientID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toMessageResponse(m))
}

func (h *CommunityHandler) Members(c *gin.Context) {
	members, err := h.communityService.Members(c.Request.Context())
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response := make([]models.MemberResponse, len(members))
	for i, m := range members {
		response[i] = models.MemberResponse{Profile: toProfileResponse(m.Profile)}
		if m.Tier != nil {
			tier := string(*m.Tier)
			response[i].MembershipType = &tier
		}
	}
	c.JSON(http.StatusOK, response)
}
