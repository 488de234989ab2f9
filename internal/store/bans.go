package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ryanhackme1207/Everspace/internal/domain"
)

type GormBanRepository struct {
	db *gorm.DB
}

func NewGormBanRepository(db *gorm.DB) *GormBanRepository {
	return &GormBanRepository{db: db}
}

func (r *GormBanRepository) Upsert(ctx context.Context, ban *domain.Ban) error {
	ban.Active = true
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "room_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"banned_by", "reason", "active"}),
	}).Create(ban).Error
	if err != nil {
		return fmt.Errorf("upsert ban: %w", err)
	}
	return nil
}

func (r *GormBanRepository) Deactivate(ctx context.Context, roomID, userID uint) error {
	res := r.db.WithContext(ctx).Model(&domain.Ban{}).
		Where("room_id = ? AND user_id = ? AND active = ?", roomID, userID, true).
		Update("active", false)
	if res.Error != nil {
		return fmt.Errorf("deactivate ban: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormBanRepository) IsActive(ctx context.Context, roomID, userID uint) (bool, error) {
	var ban domain.Ban
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND user_id = ? AND active = ?", roomID, userID, true).
		First(&ban).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("check ban: %w", err)
	}
	return true, nil
}

func (r *GormBanRepository) ListActive(ctx context.Context, roomID uint) ([]domain.Ban, error) {
	var out []domain.Ban
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND active = ?", roomID, true).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list bans: %w", err)
	}
	return out, nil
}
