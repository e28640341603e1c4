package domain

import "time"

// MessageType enumerates the wire message kinds.
type MessageType string

const (
	MessageEventUpdate   MessageType = "event_update"
	MessageSessionStart  MessageType = "session_start"
	MessageSessionEnd    MessageType = "session_end"
	MessageNotification  MessageType = "notification"
	MessageChatMessage   MessageType = "chat_message"
	MessageAttendeeJoin  MessageType = "attendee_join"
	MessageAttendeeLeave MessageType = "attendee_leave"
)

// Valid reports whether t is one of the known message types.
func (t MessageType) Valid() bool {
	switch t {
	case MessageEventUpdate, MessageSessionStart, MessageSessionEnd,
		MessageNotification, MessageChatMessage, MessageAttendeeJoin, MessageAttendeeLeave:
		return true
	}
	return false
}

// Target selects connections for a broadcast. All clauses are AND-combined.
// The zero value selects every alive connection.
type Target struct {
	EventID        string   `json:"eventId,omitempty"`
	SessionID      string   `json:"sessionId,omitempty"`
	UserIDs        []string `json:"userIds,omitempty"`
	ExcludeUserIDs []string `json:"excludeUserIds,omitempty"`
}

// Empty reports whether the target carries no selection clauses.
func (t Target) Empty() bool {
	return t.EventID == "" && t.SessionID == "" && len(t.UserIDs) == 0 && len(t.ExcludeUserIDs) == 0
}

// Message is the wire envelope delivered to connections. ID and Timestamp are
// assigned at enqueue/send time and immutable afterwards.
type Message struct {
	ID        string      `json:"id"`
	Type      MessageType `json:"type"`
	Data      any         `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
	Target    *Target     `json:"target,omitempty"`
}
