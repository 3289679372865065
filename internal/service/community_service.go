package service

import (
	"context"
	"log"
	"strings"

	"github.com/Marga-Ghale/together-culture-crm/internal/notification"
	"github.com/Marga-Ghale/together-culture-crm/internal/repository"
	"github.com/Marga-Ghale/together-culture-crm/internal/socket"
	"github.com/Marga-Ghale/together-culture-crm/internal/types"
)

// ============================================
// Community Service
// ============================================

type DiscussionDetail struct {
	Discussion *repository.Discussion
	Replies    []*repository.Reply
}

type MessageInput struct {
	RecipientID     string
	Content         string
	ParentMessageID *string
}

// MemberSummary is a profile with the tier it currently holds.
type MemberSummary struct {
	Profile *repository.Profile
	Tier    *types.MembershipType
}

type CommunityService interface {
	CreateDiscussion(ctx context.Context, actor *repository.User, title string) (*repository.Discussion, error)
	ListDiscussions(ctx context.Context) ([]*repository.Discussion, error)
	GetDiscussion(ctx context.Context, actor *repository.User, id string) (*DiscussionDetail, error)
	Reply(ctx context.Context, actor *repository.User, discussionID, content string) (*repository.Reply, error)
	// React sets like (true) or dislike (false); repeating it clears it.
	React(ctx context.Context, actor *repository.User, replyID string, like bool) (*repository.Reply, error)

	SendMessage(ctx context.Context, actor *repository.User, in MessageInput) (*repository.Message, error)
	Messages(ctx context.Context, actor *repository.User) ([]*repository.Message, error)
	ToggleLike(ctx context.Context, actor *repository.User, messageID string) (bool, error)
	Forward(ctx context.Context, actor *repository.User, messageID, recipientID string) (*repository.Message, error)

	Members(ctx context.Context) ([]*MemberSummary, error)
}

type communityService struct {
	communityRepo repository.CommunityRepository
	userRepo      repository.UserRepository
	profileRepo   repository.ProfileRepository
	notifSvc      *notification.Service
	broadcaster   *socket.Broadcaster
}

func NewCommunityService(
	communityRepo repository.CommunityRepository,
	userRepo repository.UserRepository,
	profileRepo repository.ProfileRepository,
	notifSvc *notification.Service,
	broadcaster *socket.Broadcaster,
) CommunityService {
	return &communityService{
		communityRepo: communityRepo,
		userRepo:      userRepo,
		profileRepo:   profileRepo,
		notifSvc:      notifSvc,
		broadcaster:   broadcaster,
	}
}

// displayName prefers the profile name over the username.
func (s *communityService) displayName(ctx context.Context, u *repository.User) string {
	if p, err := s.profileRepo.FindByUserID(ctx, u.ID); err == nil && p != nil && p.FullName != "" {
		return p.FullName
	}
	return u.Username
}

// ============================================
// Discussions
// ============================================

func (s *communityService) CreateDiscussion(ctx context.Context, actor *repository.User, title string) (*repository.Discussion, error) {
	title = strings.TrimSpace(title)
	if len(title) < 5 {
		return nil, invalidField("title", "Title must be at least 5 characters long.")
	}
	d := &repository.Discussion{Title: title, AuthorID: actor.ID}
	if err := s.communityRepo.CreateDiscussion(ctx, d); err != nil {
		return nil, err
	}
	d.Author = actor
	return d, nil
}

func (s *communityService) ListDiscussions(ctx context.Context) ([]*repository.Discussion, error) {
	return s.communityRepo.ListDiscussions(ctx)
}

func (s *communityService) findDiscussion(ctx context.Context, id string) (*repository.Discussion, error) {
	d, err := s.communityRepo.FindDiscussionByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, notFoundError("discussion_not_found", "Discussion not found.")
	}
	return d, nil
}

func (s *communityService) GetDiscussion(ctx context.Context, actor *repository.User, id string) (*DiscussionDetail, error) {
	d, err := s.findDiscussion(ctx, id)
	if err != nil {
		return nil, err
	}
	replies, err := s.communityRepo.FindReplies(ctx, d.ID, actor.ID)
	if err != nil {
		return nil, err
	}
	return &DiscussionDetail{Discussion: d, Replies: replies}, nil
}

func (s *communityService) Reply(ctx context.Context, actor *repository.User, discussionID, content string) (*repository.Reply, error) {
	content = strings.TrimSpace(content)
	if len(content) < 5 {
		return nil, invalidField("content", "Reply must be at least 5 characters long.")
	}
	d, err := s.findDiscussion(ctx, discussionID)
	if err != nil {
		return nil, err
	}
	r := &repository.Reply{DiscussionID: d.ID, AuthorID: actor.ID, Content: content}
	if err := s.communityRepo.CreateReply(ctx, r); err != nil {
		return nil, err
	}
	r.Author = actor

	name := s.displayName(ctx, actor)
	if s.notifSvc != nil {
		if d.AuthorID != actor.ID {
			if err := s.notifSvc.SendDiscussionReply(ctx, d.AuthorID, name, d.Title, d.ID); err != nil {
				log.Printf("[Community] Failed to notify %s: %v", d.AuthorID, err)
			}
		}
		if err := s.notifSvc.ParseAndSendMentions(ctx, content, name, actor.ID, d.Title, d.ID, d.AuthorID); err != nil {
			log.Printf("[Community] Failed to send mentions: %v", err)
		}
	}
	if s.broadcaster != nil {
		s.broadcaster.BroadcastReplyAdded(d.ID, map[string]interface{}{
			"id":           r.ID,
			"discussionId": d.ID,
			"authorId":     actor.ID,
			"authorName":   name,
			"content":      r.Content,
			"createdAt":    r.CreatedAt,
		}, actor.ID)
	}
	return r, nil
}

func (s *communityService) React(ctx context.Context, actor *repository.User, replyID string, like bool) (*repository.Reply, error) {
	r, err := s.communityRepo.FindReplyByID(ctx, replyID, actor.ID)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, notFoundError("reply_not_found", "Reply not found.")
	}
	if err := s.communityRepo.SetReaction(ctx, r.ID, actor.ID, like); err != nil {
		return nil, err
	}
	if r, err = s.communityRepo.FindReplyByID(ctx, replyID, actor.ID); err != nil {
		return nil, err
	}
	if s.broadcaster != nil {
		s.broadcaster.BroadcastReplyReactions(r.DiscussionID, r.ID, r.Likes, r.Dislikes)
	}
	return r, nil
}

// ============================================
// Direct Messages
// ============================================

func (s *communityService) SendMessage(ctx context.Context, actor *repository.User, in MessageInput) (*repository.Message, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, invalidField("content", "Message cannot be empty.")
	}
	recipient, err := s.userRepo.FindByID(ctx, in.RecipientID)
	if err != nil {
		return nil, err
	}
	if recipient == nil {
		return nil, notFoundError("recipient_not_found", "Recipient not found.")
	}
	if in.ParentMessageID != nil && *in.ParentMessageID != "" {
		if _, err := s.ownMessage(ctx, actor, *in.ParentMessageID); err != nil {
			return nil, err
		}
	} else {
		in.ParentMessageID = nil
	}

	m := &repository.Message{
		SenderID:        actor.ID,
		RecipientID:     recipient.ID,
		Content:         content,
		ParentMessageID: in.ParentMessageID,
	}
	if err := s.communityRepo.CreateMessage(ctx, m); err != nil {
		return nil, err
	}
	m.Sender = actor
	m.Recipient = recipient
	s.deliver(ctx, actor, m)
	return m, nil
}

func (s *communityService) deliver(ctx context.Context, sender *repository.User, m *repository.Message) {
	name := s.displayName(ctx, sender)
	if s.notifSvc != nil {
		if err := s.notifSvc.SendMessageReceived(ctx, m.RecipientID, name, m.ID); err != nil {
			log.Printf("[Community] Failed to notify %s: %v", m.RecipientID, err)
		}
	}
	if s.broadcaster != nil {
		s.broadcaster.SendDirectMessage(m.RecipientID, map[string]interface{}{
			"id":              m.ID,
			"senderId":        m.SenderID,
			"senderName":      name,
			"content":         m.Content,
			"parentMessageId": m.ParentMessageID,
			"createdAt":       m.CreatedAt,
		})
	}
}

// ownMessage loads a message the actor sent or received.
func (s *communityService) ownMessage(ctx context.Context, actor *repository.User, id string) (*repository.Message, error) {
	m, err := s.communityRepo.FindMessageByID(ctx, id, actor.ID)
	if err != nil {
		return nil, err
	}
	if m == nil || (m.SenderID != actor.ID && m.RecipientID != actor.ID) {
		return nil, notFoundError("message_not_found", "Message not found.")
	}
	return m, nil
}

func (s *communityService) Messages(ctx context.Context, actor *repository.User) ([]*repository.Message, error) {
	return s.communityRepo.FindMessagesForUser(ctx, actor.ID)
}

func (s *communityService) ToggleLike(ctx context.Context, actor *repository.User, messageID string) (bool, error) {
	m, err := s.ownMessage(ctx, actor, messageID)
	if err != nil {
		return false, err
	}
	liked, err := s.communityRepo.ToggleMessageLike(ctx, m.ID, actor.ID)
	if err != nil {
		return false, err
	}
	if s.broadcaster != nil && m.SenderID != actor.ID {
		s.broadcaster.SendMessageLiked(m.SenderID, m.ID, actor.ID, liked)
	}
	return liked, nil
}

// Forward sends a copy of a message the actor can see to someone else.
func (s *communityService) Forward(ctx context.Context, actor *repository.User, messageID, recipientID string) (*repository.Message, error) {
	m, err := s.ownMessage(ctx, actor, messageID)
	if err != nil {
		return nil, err
	}
	return s.SendMessage(ctx, actor, MessageInput{
		RecipientID: recipientID,
		Content:     m.Content,
	})
}

// ============================================
// Members
// ============================================

func (s *communityService) Members(ctx context.Context) ([]*MemberSummary, error) {
	profiles, err := s.profileRepo.ListMembers(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*MemberSummary, 0, len(profiles))
	for _, p := range profiles {
		m, err := s.profileRepo.FindCurrentMembership(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		summary := &MemberSummary{Profile: p}
		if m != nil {
			tier := m.MembershipType
			summary.Tier = &tier
		}
		out = append(out, summary)
	}
	return out, nil
}
