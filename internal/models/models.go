package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================
// Auth DTOs
// ============================================

type RegisterRequest struct {
	Username  string `json:"username" binding:"required"`
	Email     string `json:"email" binding:"required"`
	Password  string `json:"password" binding:"required"`
	Password2 string `json:"password2" binding:"required"`
}

type LoginRequest struct {
	// Email or username.
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type PasswordResetRequest struct {
	Email string `json:"email" binding:"required"`
}

type PasswordResetConfirmRequest struct {
	Token           string `json:"token" binding:"required"`
	Password        string `json:"password" binding:"required"`
	ConfirmPassword string `json:"confirm_password" binding:"required"`
}

type AuthResponse struct {
	User         UserResponse `json:"user"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
}

// ============================================
// User DTOs
// ============================================

type UserResponse struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	IsStaff     bool   `json:"is_staff"`
	IsSuperuser bool   `json:"is_superuser"`
	IsGuest     bool   `json:"is_guest"`
}

// ============================================
// Profile DTOs
// ============================================

type CreateProfileRequest struct {
	FullName    string   `json:"full_name"`
	PhoneNumber string   `json:"phone_number"`
	Location    string   `json:"location"`
	Bio         string   `json:"bio"`
	Interests   []string `json:"interests"`
}

type InterestsUpdateRequest struct {
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
}

type UpdateProfileRequest struct {
	FullName        *string                 `json:"full_name,omitempty"`
	PhoneNumber     *string                 `json:"phone_number,omitempty"`
	Location        *string                 `json:"location,omitempty"`
	Bio             *string                 `json:"bio,omitempty"`
	Interests       []string                `json:"interests,omitempty"`
	InterestsUpdate *InterestsUpdateRequest `json:"interests_update,omitempty"`
}

type ProfileResponse struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	FullName    string    `json:"full_name"`
	PhoneNumber string    `json:"phone_number"`
	Location    string    `json:"location"`
	Bio         string    `json:"bio"`
	Verified    bool      `json:"verified"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type ProfileDetailResponse struct {
	User                     *UserResponse        `json:"user,omitempty"`
	Profile                  ProfileResponse      `json:"profile"`
	CurrentMembership        *MembershipResponse  `json:"current_membership"`
	PendingMembershipRequest *MembershipResponse  `json:"pending_membership_request"`
	MembershipHistory        []MembershipResponse `json:"membership_history"`
	CurrentInterests         []InterestResponse   `json:"current_interests"`
}

type InterestResponse struct {
	ID           string     `json:"id"`
	InterestType string     `json:"interest_type"`
	StartDate    time.Time  `json:"start_date"`
	EndDate      *time.Time `json:"end_date"`
}

// ============================================
// Membership DTOs
// ============================================

type MembershipRequest struct {
	MembershipType string `json:"membership_type" binding:"required"`
}

type MembershipResponse struct {
	ID             string     `json:"id"`
	ProfileID      string     `json:"profile_id"`
	MembershipType string     `json:"membership_type"`
	Label          string     `json:"label"`
	StartDate      time.Time  `json:"start_date"`
	EndDate        *time.Time `json:"end_date"`
	IsApproved     bool       `json:"is_approved"`
	ApprovedBy     *string    `json:"approved_by"`
	ApprovedDate   *time.Time `json:"approved_date"`
}

type PendingMembershipResponse struct {
	Membership MembershipResponse `json:"membership"`
	Profile    ProfileResponse    `json:"profile"`
	User       *UserResponse      `json:"user,omitempty"`
}

// ============================================
// Benefit DTOs
// ============================================

type BenefitRequest struct {
	Name                    string `json:"name" binding:"required"`
	Description             string `json:"description"`
	MembershipLevelRequired string `json:"membership_level_required"`
	IsActive                *bool  `json:"is_active,omitempty"`
}

type ActivateBenefitRequest struct {
	ExpiresInDays *int `json:"expires_in_days,omitempty"`
}

type UseBenefitRequest struct {
	Notes string `json:"notes"`
}

type LogUsageRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Notes  string `json:"notes"`
}

type BenefitResponse struct {
	ID                      string    `json:"id"`
	Name                    string    `json:"name"`
	Description             string    `json:"description"`
	MembershipLevelRequired string    `json:"membership_level_required"`
	IsActive                bool      `json:"is_active"`
	CreatedAt               time.Time `json:"created_at"`
}

type UserBenefitResponse struct {
	ID          string           `json:"id"`
	BenefitID   string           `json:"benefit_id"`
	IsActive    bool             `json:"is_active"`
	ActivatedAt time.Time        `json:"activated_at"`
	ExpiresAt   *time.Time       `json:"expires_at"`
	Benefit     *BenefitResponse `json:"benefit,omitempty"`
}

type BenefitUsageResponse struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	BenefitID string           `json:"benefit_id"`
	UsedAt    time.Time        `json:"used_at"`
	Notes     *string          `json:"notes"`
	LoggedBy  *string          `json:"logged_by"`
	Benefit   *BenefitResponse `json:"benefit,omitempty"`
}

// ============================================
// Content DTOs
// ============================================

type ContentRequest struct {
	Title       string  `json:"title" binding:"required"`
	Description *string `json:"description,omitempty"`
	ContentType string  `json:"content_type"`
	AccessLevel string  `json:"access_level"`
	URL         *string `json:"url,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

type ProgressRequest struct {
	ProgressPercentage int  `json:"progress_percentage"`
	Completed          bool `json:"completed"`
}

type ContentResponse struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Description *string           `json:"description"`
	ContentType string            `json:"content_type"`
	AccessLevel string            `json:"access_level"`
	URL         *string           `json:"url"`
	IsActive    bool              `json:"is_active"`
	Views       int               `json:"views"`
	Downloads   int               `json:"downloads"`
	CreatedAt   time.Time         `json:"created_at"`
	Progress    *ProgressResponse `json:"progress,omitempty"`
}

type ProgressResponse struct {
	ContentID          string           `json:"content_id"`
	ProgressPercentage int              `json:"progress_percentage"`
	Completed          bool             `json:"completed"`
	LastAccessed       time.Time        `json:"last_accessed"`
	Content            *ContentResponse `json:"content,omitempty"`
}

// ============================================
// Event DTOs
// ============================================

type EventRequest struct {
	Title                   string     `json:"title" binding:"required"`
	Description             *string    `json:"description,omitempty"`
	EventType               string     `json:"event_type"`
	StartDate               time.Time  `json:"start_date" binding:"required"`
	EndDate                 time.Time  `json:"end_date" binding:"required"`
	Location                *string    `json:"location,omitempty"`
	Capacity                int        `json:"capacity"`
	Cost                    string     `json:"cost"`
	RegistrationOpens       *time.Time `json:"registration_opens,omitempty"`
	RegistrationCloses      *time.Time `json:"registration_closes,omitempty"`
	EligibleMembershipTypes string     `json:"eligible_membership_types"`
	IsActive                *bool      `json:"is_active,omitempty"`
	IsPublic                bool       `json:"is_public"`
}

type GuestRegisterRequest struct {
	Email       string `json:"email" binding:"required"`
	FullName    string `json:"full_name" binding:"required"`
	PhoneNumber string `json:"phone_number"`
}

type BulkCheckInRequest struct {
	UserIDs []string `json:"user_ids"`
}

type EventResponse struct {
	ID                      string          `json:"id"`
	Title                   string          `json:"title"`
	Description             *string         `json:"description"`
	EventType               string          `json:"event_type"`
	StartDate               time.Time       `json:"start_date"`
	EndDate                 time.Time       `json:"end_date"`
	Location                *string         `json:"location"`
	Capacity                int             `json:"capacity"`
	Cost                    decimal.Decimal `json:"cost"`
	RegistrationOpens       *time.Time      `json:"registration_opens"`
	RegistrationCloses      *time.Time      `json:"registration_closes"`
	EligibleMembershipTypes string          `json:"eligible_membership_types"`
	IsActive                bool            `json:"is_active"`
	IsPublic                bool            `json:"is_public"`
	RegistrationCount       int             `json:"registration_count"`
	AttendanceCount         int             `json:"attendance_count"`
}

type EventDetailResponse struct {
	EventResponse
	IsFull           bool   `json:"is_full"`
	RegistrationOpen bool   `json:"registration_open"`
	IsRegistered     bool   `json:"is_registered"`
	CanRegister      bool   `json:"can_register"`
	Reason           string `json:"reason,omitempty"`
	ReasonMessage    string `json:"reason_message,omitempty"`
}

type EventStatusResponse struct {
	EventID      string              `json:"event_id"`
	IsRegistered bool                `json:"is_registered"`
	CanRegister  bool                `json:"can_register"`
	Reason       string              `json:"reason,omitempty"`
	Attendance   *AttendanceResponse `json:"attendance"`
}

type AttendanceResponse struct {
	ID           string         `json:"id"`
	EventID      string         `json:"event_id"`
	UserID       string         `json:"user_id"`
	RegisteredAt time.Time      `json:"registered_at"`
	Attended     bool           `json:"attended"`
	AttendedAt   *time.Time     `json:"attended_at"`
	CheckedIn    bool           `json:"checked_in"`
	CheckedInAt  *time.Time     `json:"checked_in_at"`
	TicketNumber string         `json:"ticket_number,omitempty"`
	User         *UserResponse  `json:"user,omitempty"`
	Event        *EventResponse `json:"event,omitempty"`
}

// ============================================
// Community DTOs
// ============================================

type DiscussionRequest struct {
	Title string `json:"title"`
}

type ReplyRequest struct {
	Content string `json:"content"`
}

type ReactionRequest struct {
	// "like" or "dislike"
	Reaction string `json:"reaction" binding:"required,oneof=like dislike"`
}

type MessageRequest struct {
	RecipientID     string  `json:"recipient_id" binding:"required"`
	Content         string  `json:"content"`
	ParentMessageID *string `json:"parent_message_id,omitempty"`
}

type ForwardRequest struct {
	RecipientID string `json:"recipient_id" binding:"required"`
}

type DiscussionResponse struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	AuthorID     string          `json:"author_id"`
	RepliesCount int             `json:"replies_count"`
	CreatedAt    time.Time       `json:"created_at"`
	Author       *UserResponse   `json:"author,omitempty"`
	Replies      []ReplyResponse `json:"replies,omitempty"`
}

type ReplyResponse struct {
	ID           string        `json:"id"`
	DiscussionID string        `json:"discussion_id"`
	AuthorID     string        `json:"author_id"`
	Content      string        `json:"content"`
	Likes        int           `json:"likes"`
	Dislikes     int           `json:"dislikes"`
	MyReaction   *string       `json:"my_reaction"`
	CreatedAt    time.Time     `json:"created_at"`
	Author       *UserResponse `json:"author,omitempty"`
}

type MessageResponse struct {
	ID              string        `json:"id"`
	SenderID        string        `json:"sender_id"`
	RecipientID     string        `json:"recipient_id"`
	Content         string        `json:"content"`
	ParentMessageID *string       `json:"parent_message_id"`
	Likes           int           `json:"likes"`
	LikedByMe       bool          `json:"liked_by_me"`
	CreatedAt       time.Time     `json:"created_at"`
	Sender          *UserResponse `json:"sender,omitempty"`
	Recipient       *UserResponse `json:"recipient,omitempty"`
}

type MemberResponse struct {
	Profile        ProfileResponse `json:"profile"`
	MembershipType *string         `json:"membership_type"`
}

// ============================================
// Notification DTOs
// ============================================

type NotificationResponse struct {
	ID        string                  `json:"id"`
	UserID    string                  `json:"user_id"`
	Type      string                  `json:"type"`
	Title     string                  `json:"title"`
	Message   string                  `json:"message"`
	Read      bool                    `json:"read"`
	Data      *map[string]interface{} `json:"data,omitempty"`
	CreatedAt time.Time               `json:"created_at"`
}

type NotificationCountResponse struct {
	Total  int `json:"total"`
	Unread int `json:"unread"`
}

// ============================================
// Shared
// ============================================

type ErrorResponse struct {
	Error  string            `json:"error"`
	Reason string            `json:"reason,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}
