package notification

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/Marga-Ghale/together-culture-crm/internal/repository"
	"github.com/Marga-Ghale/together-culture-crm/internal/socket"
	"github.com/Marga-Ghale/together-culture-crm/internal/types"
)

// Notification types
const (
	TypeMembershipRequested = "MEMBERSHIP_REQUESTED"
	TypeMembershipApproved  = "MEMBERSHIP_APPROVED"
	TypeEventRegistered     = "EVENT_REGISTERED"
	TypeEventReminder       = "EVENT_REMINDER"
	TypeBenefitUsageLogged  = "BENEFIT_USAGE_LOGGED"
	TypeDiscussionReply     = "DISCUSSION_REPLY"
	TypeMention             = "MENTION"
	TypeMessageReceived     = "MESSAGE_RECEIVED"
)

var mentionRegex = regexp.MustCompile(`@([A-Za-z0-9_]{3,})`)

// Service stores in-app notifications and pushes them to connected clients.
type Service struct {
	notificationRepo repository.NotificationRepository
	userRepo         repository.UserRepository
	broadcaster      *socket.Broadcaster
}

// NewService creates a new notification service
func NewService(notificationRepo repository.NotificationRepository, userRepo repository.UserRepository) *Service {
	return &Service{
		notificationRepo: notificationRepo,
		userRepo:         userRepo,
	}
}

func (s *Service) SetBroadcaster(b *socket.Broadcaster) {
	s.broadcaster = b
}

// ============================================
// WebSocket Helper
// ============================================

func (s *Service) sendWebSocketNotification(notification *repository.Notification) {
	if s.broadcaster == nil || notification == nil {
		return
	}

	s.broadcaster.SendNotification(notification.UserID, map[string]interface{}{
		"id":        notification.ID,
		"type":      notification.Type,
		"title":     notification.Title,
		"message":   notification.Message,
		"data":      notification.Data,
		"read":      notification.Read,
		"createdAt": notification.CreatedAt,
	})
}

// send stores and pushes one notification.
func (s *Service) send(ctx context.Context, userID, kind, title, message string, data map[string]interface{}) error {
	if userID == "" {
		return nil
	}
	notification := &repository.Notification{
		UserID:  userID,
		Type:    kind,
		Title:   title,
		Message: message,
		Data:    data,
	}
	if err := s.notificationRepo.Create(ctx, notification); err != nil {
		return err
	}
	s.sendWebSocketNotification(notification)
	return nil
}

// SendBatchNotifications sends the same notification to several users
func (s *Service) SendBatchNotifications(ctx context.Context, userIDs []string, excludeUserID, kind, title, message string, data map[string]interface{}) error {
	var errs []error
	for _, userID := range userIDs {
		if userID == "" || userID == excludeUserID {
			continue
		}
		if err := s.send(ctx, userID, kind, title, message, data); err != nil {
			errs = append(errs, fmt.Errorf("failed to notify user %s: %w", userID, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors sending batch notifications: %v", errs)
	}
	return nil
}

// ============================================
// Membership
// ============================================

// SendMembershipRequested tells every staff account about a new request.
func (s *Service) SendMembershipRequested(ctx context.Context, requester string, tier types.MembershipType, membershipID string) error {
	staff, err := s.userRepo.FindStaff(ctx)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(staff))
	for _, u := range staff {
		ids = append(ids, u.ID)
	}
	return s.SendBatchNotifications(ctx, ids, "", TypeMembershipRequested,
		"New Membership Request",
		fmt.Sprintf("%s asked to become a %s", requester, tier.Label()),
		map[string]interface{}{
			"membershipId":   membershipID,
			"membershipType": string(tier),
			"action":         "review_membership",
		})
}

func (s *Service) SendMembershipApproved(ctx context.Context, userID string, tier types.MembershipType, membershipID string) error {
	return s.send(ctx, userID, TypeMembershipApproved,
		"Membership Approved",
		fmt.Sprintf("You are now a %s", tier.Label()),
		map[string]interface{}{
			"membershipId":   membershipID,
			"membershipType": string(tier),
			"action":         "view_membership",
		})
}

// ============================================
// Events
// ============================================

func (s *Service) SendEventRegistered(ctx context.Context, userID string, ev *repository.Event, ticketNumber string) error {
	return s.send(ctx, userID, TypeEventRegistered,
		"Registration Confirmed",
		fmt.Sprintf("You are registered for %s. Ticket %s", ev.Title, ticketNumber),
		map[string]interface{}{
			"eventId":      ev.ID,
			"ticketNumber": ticketNumber,
			"action":       "view_event",
		})
}

func (s *Service) SendEventReminder(ctx context.Context, userID string, ev *repository.Event, now time.Time) error {
	hours := int(ev.StartDate.Sub(now).Hours())
	when := "soon"
	if hours >= 1 {
		when = fmt.Sprintf("in %d hours", hours)
	}
	return s.send(ctx, userID, TypeEventReminder,
		"Event Reminder",
		fmt.Sprintf("%s starts %s", ev.Title, when),
		map[string]interface{}{
			"eventId":   ev.ID,
			"startDate": ev.StartDate,
			"action":    "view_event",
		})
}

// ============================================
// Benefits
// ============================================

func (s *Service) SendBenefitUsageLogged(ctx context.Context, userID, benefitName, benefitID string) error {
	return s.send(ctx, userID, TypeBenefitUsageLogged,
		"Benefit Used",
		fmt.Sprintf("A use of %s was recorded on your account", benefitName),
		map[string]interface{}{
			"benefitId": benefitID,
			"action":    "view_benefits",
		})
}

// ============================================
// Community
// ============================================

func (s *Service) SendDiscussionReply(ctx context.Context, userID, replierName, discussionTitle, discussionID string) error {
	return s.send(ctx, userID, TypeDiscussionReply,
		"New Reply",
		fmt.Sprintf("%s replied to %s", replierName, discussionTitle),
		map[string]interface{}{
			"discussionId": discussionID,
			"action":       "view_discussion",
		})
}

func (s *Service) SendMention(ctx context.Context, userID, mentionedBy, discussionTitle, discussionID string) error {
	return s.send(ctx, userID, TypeMention,
		"You were mentioned",
		fmt.Sprintf("%s mentioned you in %s", mentionedBy, discussionTitle),
		map[string]interface{}{
			"discussionId": discussionID,
			"mentionedBy":  mentionedBy,
			"action":       "view_discussion",
		})
}

// ParseAndSendMentions notifies every @username found in content, once
// each, skipping the author and anyone in skip.
func (s *Service) ParseAndSendMentions(ctx context.Context, content, authorName, authorID, discussionTitle, discussionID string, skip ...string) error {
	notified := map[string]bool{authorID: true}
	for _, id := range skip {
		notified[id] = true
	}

	var errs []error
	for _, match := range mentionRegex.FindAllStringSubmatch(content, -1) {
		user, err := s.userRepo.FindByUsername(ctx, match[1])
		if err != nil || user == nil || notified[user.ID] {
			continue
		}
		notified[user.ID] = true
		if err := s.SendMention(ctx, user.ID, authorName, discussionTitle, discussionID); err != nil {
			errs = append(errs, fmt.Errorf("failed to send mention to user %s: %w", user.ID, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors sending mentions: %v", errs)
	}
	return nil
}

func (s *Service) SendMessageReceived(ctx context.Context, userID, senderName, messageID string) error {
	return s.send(ctx, userID, TypeMessageReceived,
		"New Message",
		fmt.Sprintf("%s sent you a message", senderName),
		map[string]interface{}{
			"messageId": messageID,
			"action":    "view_messages",
		})
}

// ============================================
// Maintenance
// ============================================

// Cleanup removes read notifications older than maxAge.
func (s *Service) Cleanup(ctx context.Context, maxAge time.Duration) (int, error) {
	return s.notificationRepo.DeleteOlderThan(ctx, time.Now().Add(-maxAge), true)
}
