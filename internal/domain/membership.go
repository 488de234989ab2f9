package domain

import "time"

type Role string

const (
	RoleHost   Role = "host"
	RoleMember Role = "member"
)

type MemberStatus string

const (
	StatusOnline  MemberStatus = "online"
	StatusOffline MemberStatus = "offline"
)

// Membership is the durable record of a user's role and status in a room.
// Exactly one row per (room, user).
type Membership struct {
	ID       uint         `gorm:"primaryKey" json:"id"`
	RoomID   uint         `gorm:"uniqueIndex:idx_room_user" json:"room_id"`
	UserID   uint         `gorm:"uniqueIndex:idx_room_user" json:"user_id"`
	Role     Role         `gorm:"size:10;default:member" json:"role"`
	Status   MemberStatus `gorm:"size:10;default:offline" json:"status"`
	JoinedAt time.Time    `json:"joined_at"`
	LastSeen time.Time    `json:"last_seen"`
}
