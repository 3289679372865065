package service

import (
	"context"
	"log"

	"github.com/Marga-Ghale/together-culture-crm/internal/repository"
	"github.com/Marga-Ghale/together-culture-crm/internal/socket"
)

// ============================================
// Notification Service (for handlers)
// ============================================

type NotificationService interface {
	List(ctx context.Context, userID string, unreadOnly bool) ([]*repository.Notification, error)
	Count(ctx context.Context, userID string) (total int, unread int, err error)
	MarkAsRead(ctx context.Context, userID, id string) error
	MarkAllAsRead(ctx context.Context, userID string) (int, error)
}

type notificationService struct {
	notificationRepo repository.NotificationRepository
	broadcaster      *socket.Broadcaster
}

func NewNotificationService(notificationRepo repository.NotificationRepository, broadcaster *socket.Broadcaster) NotificationService {
	return &notificationService{notificationRepo: notificationRepo, broadcaster: broadcaster}
}

func (s *notificationService) List(ctx context.Context, userID string, unreadOnly bool) ([]*repository.Notification, error) {
	return s.notificationRepo.FindByUserID(ctx, userID, unreadOnly)
}

func (s *notificationService) Count(ctx context.Context, userID string) (total int, unread int, err error) {
	return s.notificationRepo.CountByUserID(ctx, userID)
}

func (s *notificationService) MarkAsRead(ctx context.Context, userID, id string) error {
	ok, err := s.notificationRepo.MarkAsRead(ctx, id, userID)
	if err != nil {
		return err
	}
	if !ok {
		return notFoundError("notification_not_found", "Notification not found.")
	}
	s.pushCount(ctx, userID)
	return nil
}

func (s *notificationService) MarkAllAsRead(ctx context.Context, userID string) (int, error) {
	n, err := s.notificationRepo.MarkAllAsRead(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.pushCount(ctx, userID)
	return n, nil
}

// pushCount refreshes the badge on every open tab of the user.
func (s *notificationService) pushCount(ctx context.Context, userID string) {
	if s.broadcaster == nil {
		return
	}
	total, unread, err := s.notificationRepo.CountByUserID(ctx, userID)
	if err != nil {
		log.Printf("[Notification] Failed to count for %s: %v", userID, err)
		return
	}
	s.broadcaster.SendNotificationCount(userID, total, unread)
}
