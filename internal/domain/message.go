package domain

import "time"

const MaxMessageLen = 1000

type Message struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	RoomID    uint      `gorm:"index" json:"room_id"`
	UserID    uint      `gorm:"index" json:"user_id"`
	Content   string    `gorm:"size:1000" json:"content"`
	Deleted   bool      `json:"deleted"`
	CreatedAt time.Time `json:"created_at"`
}
