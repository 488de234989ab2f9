// Package store is the durable ledger: rooms, memberships, bans and messages.
package store

import (
	"context"
	"errors"

	"github.com/ryanhackme1207/Everspace/internal/domain"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrNotMember     = errors.New("user is not a member of the room")
	ErrBanned        = errors.New("user is banned from the room")
	ErrAlreadyBanned = errors.New("user is already banned")
	ErrDuplicate     = errors.New("record already exists")
)

type RoomRepository interface {
	Create(ctx context.Context, room *domain.Room) error
	GetByName(ctx context.Context, name string) (*domain.Room, error)
	// GetOrCreate returns the room, creating a public one owned by creatorID
	// when it does not exist yet. The bool reports whether it was created.
	GetOrCreate(ctx context.Context, name string, creatorID uint) (*domain.Room, bool, error)
	Delete(ctx context.Context, roomID uint) error
	List(ctx context.Context) ([]domain.Room, error)
	SetCreator(ctx context.Context, roomID, userID uint) error
}

type MembershipRepository interface {
	Get(ctx context.Context, roomID, userID uint) (*domain.Membership, error)
	Upsert(ctx context.Context, m *domain.Membership) error
	Delete(ctx context.Context, roomID, userID uint) error
	SetStatus(ctx context.Context, roomID, userID uint, status domain.MemberStatus) error
	ListOnline(ctx context.Context, roomID uint) ([]domain.Membership, error)
	HostOf(ctx context.Context, roomID uint) (*domain.Membership, error)
	// TransferHost demotes the current host and promotes newOwnerID in one
	// transaction, keeping the single-host invariant.
	TransferHost(ctx context.Context, roomID, newOwnerID uint) error
}

type BanRepository interface {
	// Upsert creates the ban or reactivates a previously lifted one.
	Upsert(ctx context.Context, ban *domain.Ban) error
	Deactivate(ctx context.Context, roomID, userID uint) error
	IsActive(ctx context.Context, roomID, userID uint) (bool, error)
	ListActive(ctx context.Context, roomID uint) ([]domain.Ban, error)
}

type MessageRepository interface {
	// Create persists a message after re-checking, in the same transaction,
	// that the author still holds a membership and carries no active ban.
	// Returns ErrNotMember or ErrBanned when the check fails.
	Create(ctx context.Context, roomID, userID uint, text string) (*domain.Message, error)
	ListRecent(ctx context.Context, roomID uint, limit int) ([]domain.Message, error)
	SoftDelete(ctx context.Context, messageID int64) error
}

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByID(ctx context.Context, id uint) (*domain.User, error)
}
