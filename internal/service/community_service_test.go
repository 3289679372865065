package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Marga-Ghale/together-culture-crm/internal/notification"
	"github.com/Marga-Ghale/together-culture-crm/internal/types"
)

func TestDiscussionReplies(t *testing.T) {
	e := newTestEnv(t)
	ada, _ := e.member(t, "ada")
	bob, _ := e.member(t, "bob")
	cy, _ := e.member(t, "cy_p")

	_, err := e.svc.Community.CreateDiscussion(e.ctx, ada, "Hi")
	assert.ErrorIs(t, err, ErrValidation)

	d, err := e.svc.Community.CreateDiscussion(e.ctx, ada, "  Tool library  ")
	require.NoError(t, err)
	assert.Equal(t, "Tool library", d.Title)

	_, err = e.svc.Community.Reply(e.ctx, bob, d.ID, "ok")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = e.svc.Community.Reply(e.ctx, bob, "missing", "Count me in")
	assert.Equal(t, "discussion_not_found", ReasonOf(err))

	_, err = e.svc.Community.Reply(e.ctx, bob, d.ID, "Count me in, @cy_p and @ada")
	require.NoError(t, err)

	// The author hears about the reply once, not again as a mention.
	assert.Equal(t, 1, countNotifications(t, e, ada.ID, notification.TypeDiscussionReply))
	assert.Zero(t, countNotifications(t, e, ada.ID, notification.TypeMention))
	assert.Equal(t, 1, countNotifications(t, e, cy.ID, notification.TypeMention))

	// Replying to your own thread notifies nobody.
	_, err = e.svc.Community.Reply(e.ctx, ada, d.ID, "Thanks everyone")
	require.NoError(t, err)
	assert.Equal(t, 1, countNotifications(t, e, ada.ID, notification.TypeDiscussionReply))

	detail, err := e.svc.Community.GetDiscussion(e.ctx, ada, d.ID)
	require.NoError(t, err)
	assert.Len(t, detail.Replies, 2)

	list, err := e.svc.Community.ListDiscussions(e.ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 2, list[0].RepliesCount)
}

func TestReplyReactions(t *testing.T) {
	e := newTestEnv(t)
	ada, _ := e.member(t, "ada")
	bob, _ := e.member(t, "bob")
	d, err := e.svc.Community.CreateDiscussion(e.ctx, ada, "Tool library")
	require.NoError(t, err)
	r, err := e.svc.Community.Reply(e.ctx, ada, d.ID, "First post here")
	require.NoError(t, err)

	got, err := e.svc.Community.React(e.ctx, bob, r.ID, true)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Likes)
	require.NotNil(t, got.MyReaction)
	assert.True(t, *got.MyReaction)

	got, err = e.svc.Community.React(e.ctx, bob, r.ID, false)
	require.NoError(t, err)
	assert.Zero(t, got.Likes)
	assert.Equal(t, 1, got.Dislikes)

	// Repeating a reaction clears it.
	got, err = e.svc.Community.React(e.ctx, bob, r.ID, false)
	require.NoError(t, err)
	assert.Zero(t, got.Dislikes)
	assert.Nil(t, got.MyReaction)

	_, err = e.svc.Community.React(e.ctx, bob, "missing", true)
	assert.Equal(t, "reply_not_found", ReasonOf(err))
}

func TestDirectMessages(t *testing.T) {
	e := newTestEnv(t)
	ada, _ := e.member(t, "ada")
	bob, _ := e.member(t, "bob")
	cy, _ := e.member(t, "cy")

	_, err := e.svc.Community.SendMessage(e.ctx, ada, MessageInput{RecipientID: bob.ID, Content: "   "})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = e.svc.Community.SendMessage(e.ctx, ada, MessageInput{RecipientID: "missing", Content: "hello"})
	assert.Equal(t, "recipient_not_found", ReasonOf(err))

	m, err := e.svc.Community.SendMessage(e.ctx, ada, MessageInput{RecipientID: bob.ID, Content: "Lathe free Tuesday?"})
	require.NoError(t, err)
	assert.Equal(t, 1, countNotifications(t, e, bob.ID, notification.TypeMessageReceived))

	parent := m.ID
	reply, err := e.svc.Community.SendMessage(e.ctx, bob, MessageInput{RecipientID: ada.ID, Content: "Yes", ParentMessageID: &parent})
	require.NoError(t, err)
	require.NotNil(t, reply.ParentMessageID)

	// A third party can neither thread onto nor like someone else's message.
	_, err = e.svc.Community.SendMessage(e.ctx, cy, MessageInput{RecipientID: ada.ID, Content: "Me too", ParentMessageID: &parent})
	assert.Equal(t, "message_not_found", ReasonOf(err))
	_, err = e.svc.Community.ToggleLike(e.ctx, cy, m.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	liked, err := e.svc.Community.ToggleLike(e.ctx, bob, m.ID)
	require.NoError(t, err)
	assert.True(t, liked)
	liked, err = e.svc.Community.ToggleLike(e.ctx, bob, m.ID)
	require.NoError(t, err)
	assert.False(t, liked)

	fwd, err := e.svc.Community.Forward(e.ctx, bob, m.ID, cy.ID)
	require.NoError(t, err)
	assert.Equal(t, m.Content, fwd.Content)
	assert.Equal(t, bob.ID, fwd.SenderID)

	inbox, err := e.svc.Community.Messages(e.ctx, ada)
	require.NoError(t, err)
	assert.Len(t, inbox, 2)
}

func TestMembers(t *testing.T) {
	e := newTestEnv(t)
	ada, _ := e.member(t, "ada")
	e.member(t, "bob")
	e.promote(t, ada, types.MembershipKeyAccess)

	members, err := e.svc.Community.Members(e.ctx)
	require.NoError(t, err)
	require.Len(t, members, 2)

	tiers := map[string]types.MembershipType{}
	for _, m := range members {
		require.NotNil(t, m.Tier)
		tiers[m.Profile.FullName] = *m.Tier
	}
	assert.Equal(t, types.MembershipKeyAccess, tiers["Member ada"])
	assert.Equal(t, types.MembershipCommunity, tiers["Member bob"])
}
