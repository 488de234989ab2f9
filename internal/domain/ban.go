package domain

import "time"

// Ban keeps history: rows are deactivated on unban, never deleted.
type Ban struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	RoomID    uint      `gorm:"uniqueIndex:idx_ban_room_user" json:"room_id"`
	UserID    uint      `gorm:"uniqueIndex:idx_ban_room_user" json:"user_id"`
	BannedBy  uint      `json:"banned_by"`
	Reason    string    `gorm:"size:256" json:"reason"`
	Active    bool      `gorm:"index" json:"active"`
	CreatedAt time.Time `json:"created_at"`
}
