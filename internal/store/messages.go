package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/ryanhackme1207/Everspace/internal/domain"
)

type GormMessageRepository struct {
	db *gorm.DB
}

func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	return &GormMessageRepository{db: db}
}

// Create re-checks membership and ban inside the write transaction. A user
// banned after connecting must fail here even though the connect-time check
// passed.
func (r *GormMessageRepository) Create(ctx context.Context, roomID, userID uint, text string) (*domain.Message, error) {
	msg := &domain.Message{RoomID: roomID, UserID: userID, Content: text}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ban domain.Ban
		err := tx.Where("room_id = ? AND user_id = ? AND active = ?", roomID, userID, true).First(&ban).Error
		if err == nil {
			return ErrBanned
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("check ban: %w", err)
		}
		var m domain.Membership
		err = tx.Where("room_id = ? AND user_id = ?", roomID, userID).First(&m).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotMember
			}
			return fmt.Errorf("check membership: %w", err)
		}
		if err := tx.Create(msg).Error; err != nil {
			return fmt.Errorf("create message: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func (r *GormMessageRepository) ListRecent(ctx context.Context, roomID uint, limit int) ([]domain.Message, error) {
	var out []domain.Message
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND deleted = ?", roomID, false).
		Order("id DESC").Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	// Oldest first for rendering.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (r *GormMessageRepository) SoftDelete(ctx context.Context, messageID int64) error {
	res := r.db.WithContext(ctx).Model(&domain.Message{}).
		Where("id = ?", messageID).
		Update("deleted", true)
	if res.Error != nil {
		return fmt.Errorf("soft delete message: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
