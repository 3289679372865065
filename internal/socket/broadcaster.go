package socket

import "fmt"

// Broadcaster provides high-level methods for broadcasting events
type Broadcaster struct {
	hub *Hub
}

// NewBroadcaster creates a new Broadcaster
func NewBroadcaster(hub *Hub) *Broadcaster {
	return &Broadcaster{hub: hub}
}

// ============================================
// Notifications
// ============================================

// SendNotification sends a notification to a specific user
func (b *Broadcaster) SendNotification(userID string, notification map[string]interface{}) {
	b.hub.SendToUser(userID, MessageNotification, notification)
}

// SendNotificationCount updates notification count for a user
func (b *Broadcaster) SendNotificationCount(userID string, total, unread int) {
	b.hub.SendToUser(userID, MessageNotificationCount, map[string]interface{}{
		"total":  total,
		"unread": unread,
	})
}

// ============================================
// Community
// ============================================

// SendDirectMessage pushes a new message to its recipient
func (b *Broadcaster) SendDirectMessage(recipientID string, message map[string]interface{}) {
	b.hub.SendToUser(recipientID, MessageDirectMessage, message)
}

// SendMessageLiked tells the sender their message was liked or unliked
func (b *Broadcaster) SendMessageLiked(senderID, messageID, likedBy string, liked bool) {
	b.hub.SendToUser(senderID, MessageMessageLiked, map[string]interface{}{
		"messageId": messageID,
		"likedBy":   likedBy,
		"liked":     liked,
	})
}

// BroadcastReplyAdded sends a new reply to everyone watching the discussion
func (b *Broadcaster) BroadcastReplyAdded(discussionID string, reply map[string]interface{}, excludeUserID string) {
	b.hub.SendToRoom(fmt.Sprintf("discussion:%s", discussionID), MessageReplyAdded, reply, excludeUserID)
}

// BroadcastReplyReactions sends updated like and dislike counts
func (b *Broadcaster) BroadcastReplyReactions(discussionID, replyID string, likes, dislikes int) {
	b.hub.SendToRoom(fmt.Sprintf("discussion:%s", discussionID), MessageReplyReactions, map[string]interface{}{
		"replyId":  replyID,
		"likes":    likes,
		"dislikes": dislikes,
	}, "")
}

// ============================================
// Events
// ============================================

// BroadcastRegistrations publishes an event's seat count
func (b *Broadcaster) BroadcastRegistrations(eventID string, registered, capacity int) {
	b.hub.SendToRoom(fmt.Sprintf("event:%s", eventID), MessageEventRegistrations, map[string]interface{}{
		"eventId":    eventID,
		"registered": registered,
		"capacity":   capacity,
		"isFull":     capacity > 0 && registered >= capacity,
	}, "")
}
