package helpers

import (
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/tunebot/core/state"
)

const identityKey = "identity"

// IsGroup reports whether the update comes from a group or supergroup.
func IsGroup(c tele.Context) bool {
	chat := c.Chat()
	return chat != nil && (chat.Type == tele.ChatGroup || chat.Type == tele.ChatSuperGroup)
}

// TopicOf returns the forum topic of the update, or 0 when topics mode is off
// or the message is not addressed to a topic.
func TopicOf(c tele.Context, topicsMode bool) int {
	if !topicsMode {
		return 0
	}
	msg := c.Message()
	if msg == nil || !msg.TopicMessage {
		return 0
	}
	return msg.ThreadID
}

// IdentityOf derives the session key of the update's sender. Private chats
// map to a chat-less key; groups add the chat and, in topics mode, the topic.
// A key cached by the identity middleware wins.
func IdentityOf(c tele.Context, topicsMode bool) state.Key {
	if key, ok := c.Get(identityKey).(state.Key); ok {
		return key
	}
	user := c.Sender()
	if user == nil {
		return state.Key{}
	}
	if !IsGroup(c) {
		return state.Private(user.ID)
	}
	return state.InChat(user.ID, c.Chat().ID, TopicOf(c, topicsMode))
}

// StoreIdentity caches key on the update context.
func StoreIdentity(c tele.Context, key state.Key) {
	c.Set(identityKey, key)
}
