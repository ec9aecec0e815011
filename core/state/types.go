package state

import "strconv"

// Well-known state names.
const (
	WaitingForQuery = "waiting_for_query"
	WaitingForLink  = "waiting_for_link"
	BrowsingResults = "browsing_results"
	SearchResults   = "search_results"
)

// Key identifies a conversational scope. ChatID 0 is a private session and
// TopicID 0 means the chat has no topic addressing.
type Key struct {
	UserID  int64
	ChatID  int64
	TopicID int
}

// Private returns the key of a direct conversation with the user.
func Private(userID int64) Key {
	return Key{UserID: userID}
}

// InChat returns the key of the user inside a group chat and optional topic.
func InChat(userID, chatID int64, topicID int) Key {
	return Key{UserID: userID, ChatID: chatID, TopicID: topicID}
}

// IsPrivate reports whether the key has no chat component.
func (k Key) IsPrivate() bool {
	return k.ChatID == 0
}

// String renders user:chat:topic, mainly for logs.
func (k Key) String() string {
	return strconv.FormatInt(k.UserID, 10) + ":" +
		strconv.FormatInt(k.ChatID, 10) + ":" +
		strconv.Itoa(k.TopicID)
}

// bundle is an immutable set of named values. Writers publish a modified copy.
type bundle map[string]any

func (b bundle) with(kv ...any) bundle {
	out := make(bundle, len(b)+len(kv)/2)
	for k, v := range b {
		out[k] = v
	}
	for i := 0; i+1 < len(kv); i += 2 {
		out[kv[i].(string)] = kv[i+1]
	}
	return out
}

func (b bundle) without(names ...string) bundle {
	out := make(bundle, len(b))
	for k, v := range b {
		out[k] = v
	}
	for _, n := range names {
		delete(out, n)
	}
	return out
}

func (b bundle) flag(name string) bool {
	v, ok := b[name].(bool)
	return ok && v
}
