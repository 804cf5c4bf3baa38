package chat

import "livechat/internal/app/user"

// PresenceSource yields the current online-user snapshot.
type PresenceSource interface {
	Snapshot() []user.Presence
}

// PresenceList builds the userList payload from src.
// The returned slice is a fresh copy and is never shared with the registry.
func PresenceList(src PresenceSource) UserListPayload {
	users := src.Snapshot()
	if users == nil {
		users = []user.Presence{}
	}

	return UserListPayload{Users: users}
}

// JoinNotification builds the userJoined payload for u.
func JoinNotification(u user.User, onlineCount int) UserEventPayload {
	return UserEventPayload{
		UserID:    u.ID,
		Username:  u.Username,
		UserCount: onlineCount,
	}
}

// LeaveNotification builds the userLeft payload for u.
func LeaveNotification(u user.User, onlineCount int) UserEventPayload {
	return UserEventPayload{
		UserID:    u.ID,
		Username:  u.Username,
		UserCount: onlineCount,
	}
}

// TypingNotification builds the userTyping payload for u.
func TypingNotification(u user.User) UserTypingPayload {
	return UserTypingPayload{
		UserID:   u.ID,
		Username: u.Username,
		IsTyping: u.IsTyping,
	}
}
