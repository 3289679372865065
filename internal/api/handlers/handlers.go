package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Marga-Ghale/together-culture-crm/internal/models"
	"github.com/Marga-Ghale/together-culture-crm/internal/repository"
	"github.com/Marga-Ghale/together-culture-crm/internal/service"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	Auth         *AuthHandler
	User         *UserHandler
	Profile      *ProfileHandler
	Membership   *MembershipHandler
	Benefit      *BenefitHandler
	Content      *ContentHandler
	Event        *EventHandler
	Community    *CommunityHandler
	Notification *NotificationHandler
}

// NewHandlers creates all handlers
func NewHandlers(services *service.Services) *Handlers {
	return &Handlers{
		Auth:         &AuthHandler{authService: services.Auth},
		User:         &UserHandler{profileService: services.Profile},
		Profile:      &ProfileHandler{profileService: services.Profile},
		Membership:   &MembershipHandler{membershipService: services.Membership, profileService: services.Profile},
		Benefit:      &BenefitHandler{benefitService: services.Benefit},
		Content:      &ContentHandler{contentService: services.Content},
		Event:        &EventHandler{eventService: services.Event},
		Community:    &CommunityHandler{communityService: services.Community},
		Notification: &NotificationHandler{notificationService: services.Notification},
	}
}

// ============================================
// Error Mapping
// ============================================

// handleServiceError maps service errors to HTTP responses. Rule errors
// carry their reason and per-field messages through to the client.
func handleServiceError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrInvalidToken),
		errors.Is(err, service.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrConflict):
		status = http.StatusConflict
	}

	var re *service.RuleError
	if errors.As(err, &re) {
		c.JSON(status, models.ErrorResponse{Error: re.Message, Reason: re.Reason, Fields: re.Fields})
		return
	}
	if status == http.StatusInternalServerError {
		log.Printf("[HTTP] %s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(status, models.ErrorResponse{Error: "Internal server error"})
		return
	}
	c.JSON(status, models.ErrorResponse{Error: err.Error()})
}

// bindJSON decodes the body and writes 400 on failure.
func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error(), Reason: "invalid_body"})
		return false
	}
	return true
}

// ============================================
// Response Mappers
// ============================================

func toUserResponse(u *repository.User) models.UserResponse {
	return models.UserResponse{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		IsStaff:     u.IsStaff,
		IsSuperuser: u.IsSuperuser,
		IsGuest:     u.IsGuest,
	}
}

func toUserResponsePtr(u *repository.User) *models.UserResponse {
	if u == nil {
		return nil
	}
	r := toUserResponse(u)
	return &r
}

func toProfileResponse(p *repository.Profile) models.ProfileResponse {
	return models.ProfileResponse{
		ID:          p.ID,
		UserID:      p.UserID,
		FullName:    p.FullName,
		PhoneNumber: p.PhoneNumber,
		Location:    p.Location,
		Bio:         p.Bio,
		Verified:    p.Verified,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func toMembershipResponse(m *repository.Membership) models.MembershipResponse {
	return models.MembershipResponse{
		ID:             m.ID,
		ProfileID:      m.ProfileID,
		MembershipType: string(m.MembershipType),
		Label:          m.MembershipType.Label(),
		StartDate:      m.StartDate,
		EndDate:        m.EndDate,
		IsApproved:     m.IsApproved,
		ApprovedBy:     m.ApprovedBy,
		ApprovedDate:   m.ApprovedDate,
	}
}

func toMembershipResponsePtr(m *repository.Membership) *models.MembershipResponse {
	if m == nil {
		return nil
	}
	r := toMembershipResponse(m)
	return &r
}

func toMembershipList(list []*repository.Membership) []models.MembershipResponse {
	out := make([]models.MembershipResponse, len(list))
	for i, m := range list {
		out[i] = toMembershipResponse(m)
	}
	return out
}

func toInterestList(list []*repository.Interest) []models.InterestResponse {
	out := make([]models.InterestResponse, len(list))
	for i, it := range list {
		out[i] = models.InterestResponse{
			ID:           it.ID,
			InterestType: string(it.InterestType),
			StartDate:    it.StartDate,
			EndDate:      it.EndDate,
		}
	}
	return out
}

func toProfileDetailResponse(d *service.ProfileDetail) models.ProfileDetailResponse {
	return models.ProfileDetailResponse{
		User:                     toUserResponsePtr(d.User),
		Profile:                  toProfileResponse(d.Profile),
		CurrentMembership:        toMembershipResponsePtr(d.CurrentMembership),
		PendingMembershipRequest: toMembershipResponsePtr(d.PendingRequest),
		MembershipHistory:        toMembershipList(d.History),
		CurrentInterests:         toInterestList(d.CurrentInterests),
	}
}

func toBenefitResponse(b *repository.Benefit) models.BenefitResponse {
	return models.BenefitResponse{
		ID:                      b.ID,
		Name:                    b.Name,
		Description:             b.Description,
		MembershipLevelRequired: string(b.MembershipLevelRequired),
		IsActive:                b.IsActive,
		CreatedAt:               b.CreatedAt,
	}
}

func toBenefitResponsePtr(b *repository.Benefit) *models.BenefitResponse {
	if b == nil {
		return nil
	}
	r := toBenefitResponse(b)
	return &r
}

func toUserBenefitResponse(ub *repository.UserBenefit) models.UserBenefitResponse {
	return models.UserBenefitResponse{
		ID:          ub.ID,
		BenefitID:   ub.BenefitID,
		IsActive:    ub.IsActive,
		ActivatedAt: ub.ActivatedAt,
		ExpiresAt:   ub.ExpiresAt,
		Benefit:     toBenefitResponsePtr(ub.Benefit),
	}
}

func toUsageResponse(l *repository.BenefitUsageLog) models.BenefitUsageResponse {
	return models.BenefitUsageResponse{
		ID:        l.ID,
		UserID:    l.UserID,
		BenefitID: l.BenefitID,
		UsedAt:    l.UsedAt,
		Notes:     l.Notes,
		LoggedBy:  l.LoggedBy,
		Benefit:   toBenefitResponsePtr(l.Benefit),
	}
}

func toContentResponse(c *repository.DigitalContent) models.ContentResponse {
	return models.ContentResponse{
		ID:          c.ID,
		Title:       c.Title,
		Description: c.Description,
		ContentType: c.ContentType,
		AccessLevel: string(c.AccessLevel),
		URL:         c.URL,
		IsActive:    c.IsActive,
		Views:       c.Views,
		Downloads:   c.Downloads,
		CreatedAt:   c.CreatedAt,
	}
}

func toProgressResponse(p *repository.ContentProgress) *models.ProgressResponse {
	if p == nil {
		return nil
	}
	r := &models.ProgressResponse{
		ContentID:          p.ContentID,
		ProgressPercentage: p.ProgressPercentage,
		Completed:          p.Completed,
		LastAccessed:       p.LastAccessed,
	}
	if p.Content != nil {
		c := toContentResponse(p.Content)
		r.Content = &c
	}
	return r
}

func toContentWithProgress(cp *service.ContentWithProgress) models.ContentResponse {
	r := toContentResponse(cp.Content)
	r.Progress = toProgressResponse(cp.Progress)
	return r
}

func toEventResponse(e *repository.Event) models.EventResponse {
	return models.EventResponse{
		ID:                      e.ID,
		Title:                   e.Title,
		Description:             e.Description,
		EventType:               e.EventType,
		StartDate:               e.StartDate,
		EndDate:                 e.EndDate,
		Location:                e.Location,
		Capacity:                e.Capacity,
		Cost:                    e.Cost,
		RegistrationOpens:       e.RegistrationOpens,
		RegistrationCloses:      e.RegistrationCloses,
		EligibleMembershipTypes: e.EligibleMembershipTypes,
		IsActive:                e.IsActive,
		IsPublic:                e.IsPublic,
		RegistrationCount:       e.RegisteredCount,
		AttendanceCount:         e.AttendedCount,
	}
}

func toEventDetailResponse(d *service.EventDetail) models.EventDetailResponse {
	r := models.EventDetailResponse{
		EventResponse:    toEventResponse(d.Event),
		IsFull:           d.IsFull,
		RegistrationOpen: d.RegistrationOpen,
		IsRegistered:     d.IsRegistered(),
		CanRegister:      d.CanRegister,
		Reason:           string(d.Reason),
	}
	if d.Reason != "" {
		r.ReasonMessage = d.Reason.Message()
	}
	return r
}

func toAttendanceResponse(a *repository.Attendance) models.AttendanceResponse {
	r := models.AttendanceResponse{
		ID:           a.ID,
		EventID:      a.EventID,
		UserID:       a.UserID,
		RegisteredAt: a.RegisteredAt,
		Attended:     a.Attended,
		AttendedAt:   a.AttendedAt,
		CheckedIn:    a.CheckedIn,
		CheckedInAt:  a.CheckedInAt,
		User:         toUserResponsePtr(a.User),
	}
	if a.Ticket != nil {
		r.TicketNumber = a.Ticket.TicketNumber
	}
	if a.Event != nil {
		e := toEventResponse(a.Event)
		r.Event = &e
	}
	return r
}

func toAttendanceList(list []*repository.Attendance) []models.AttendanceResponse {
	out := make([]models.AttendanceResponse, len(list))
	for i, a := range list {
		out[i] = toAttendanceResponse(a)
	}
	return out
}

func toDiscussionResponse(d *repository.Discussion) models.DiscussionResponse {
	return models.DiscussionResponse{
		ID:           d.ID,
		Title:        d.Title,
		AuthorID:     d.AuthorID,
		RepliesCount: d.RepliesCount,
		CreatedAt:    d.CreatedAt,
		Author:       toUserResponsePtr(d.Author),
	}
}

func toReplyResponse(r *repository.Reply) models.ReplyResponse {
	resp := models.ReplyResponse{
		ID:           r.ID,
		DiscussionID: r.DiscussionID,
		AuthorID:     r.AuthorID,
		Content:      r.Content,
		Likes:        r.Likes,
		Dislikes:     r.Dislikes,
		CreatedAt:    r.CreatedAt,
		Author:       toUserResponsePtr(r.Author),
	}
	if r.MyReaction != nil {
		reaction := "dislike"
		if *r.MyReaction {
			reaction = "like"
		}
		resp.MyReaction = &reaction
	}
	return resp
}

func toMessageResponse(m *repository.Message) models.MessageResponse {
	return models.MessageResponse{
		ID:              m.ID,
		SenderID:        m.SenderID,
		RecipientID:     m.RecipientID,
		Content:         m.Content,
		ParentMessageID: m.ParentMessageID,
		Likes:           m.Likes,
		LikedByMe:       m.LikedByMe,
		CreatedAt:       m.CreatedAt,
		Sender:          toUserResponsePtr(m.Sender),
		Recipient:       toUserResponsePtr(m.Recipient),
	}
}

func toNotificationResponse(n *repository.Notification) models.NotificationResponse {
	resp := models.NotificationResponse{
		ID:        n.ID,
		UserID:    n.UserID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
	}
	if n.Data != nil {
		resp.Data = &n.Data
	}
	return resp
}
