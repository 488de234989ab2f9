package domain

import (
	"errors"
	"strings"
	"time"
)

const MaxRoomNameLen = 64

type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

var (
	ErrRoomNameEmpty    = errors.New("room name empty")
	ErrRoomNameTooLong  = errors.New("room name too long")
	ErrPasswordRequired = errors.New("private room requires a password")
)

type Room struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Name         string     `gorm:"uniqueIndex;size:64" json:"name"`
	Visibility   Visibility `gorm:"size:10;default:public" json:"visibility"`
	PasswordHash string     `gorm:"size:128" json:"-"`
	CreatorID    uint       `gorm:"index" json:"creator_id"`
	Finalized    bool       `json:"finalized"`
	CreatedAt    time.Time  `json:"created_at"`
}

// NewRoom validates the name and the private-room password invariant.
// hash is the already-bcrypted password, empty for public rooms.
func NewRoom(name string, visibility Visibility, hash string, creatorID uint) (*Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrRoomNameEmpty
	}
	if len(name) > MaxRoomNameLen {
		return nil, ErrRoomNameTooLong
	}
	if visibility == "" {
		visibility = VisibilityPublic
	}
	if visibility == VisibilityPrivate && hash == "" {
		return nil, ErrPasswordRequired
	}
	return &Room{
		Name:         name,
		Visibility:   visibility,
		PasswordHash: hash,
		CreatorID:    creatorID,
		Finalized:    true,
	}, nil
}

func (r *Room) IsPrivate() bool {
	return r.Visibility == VisibilityPrivate
}
