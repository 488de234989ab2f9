// Package bus is the room-scoped publish/subscribe primitive. A session joins
// its room's group on connect and leaves on disconnect; anything published to
// the group reaches every joined subscriber, the publisher included.
package bus

import "context"

type EventType string

const (
	EventChatMessage          EventType = "chat_message"
	EventUserJoin             EventType = "user_join"
	EventUserLeave            EventType = "user_leave"
	EventUserKicked           EventType = "user_kicked"
	EventUserBanned           EventType = "user_banned"
	EventRoomDeleted          EventType = "room_deleted"
	EventOwnershipTransferred EventType = "ownership_transferred"
	EventSound                EventType = "sound"
)

// Event is the single variant union carried by the bus. Which fields are
// meaningful depends on Type; the session dispatches on Type exhaustively.
type Event struct {
	Type EventType `json:"type"`

	// Subject of the event: message author, joiner/leaver, kick/ban target.
	Username    string `json:"username,omitempty"`
	DisplayName string `json:"display_name,omitempty"`

	// Chat message payload.
	Text      string `json:"text,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	MessageID int64  `json:"message_id,omitempty"`

	// Human-readable reason for terminal notices (kick, ban, room deleted).
	Notice string `json:"notice,omitempty"`

	// Ownership transfer.
	OldOwner string `json:"old_owner,omitempty"`
	NewOwner string `json:"new_owner,omitempty"`

	// Ephemeral media events.
	Sound string `json:"sound,omitempty"`
}

// Subscription is one group membership. Events arrive on C until Leave.
type Subscription struct {
	C     <-chan Event
	leave func()
}

// Leave detaches from the group and closes C. Safe to call more than once.
func (s *Subscription) Leave() {
	if s.leave != nil {
		s.leave()
	}
}

// Bus delivers at-least-once within a process, ordered per publisher only.
// Subscribers too slow to drain their channel lose events rather than block
// the publisher.
type Bus interface {
	Join(room string) *Subscription
	Publish(ctx context.Context, room string, ev Event) error
}
